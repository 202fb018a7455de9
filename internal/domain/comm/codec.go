package comm

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

// Protocol tags with a registered codec.
const (
	ProtocolDICOM = "DICOM"
	ProtocolHL7   = "HL7"
)

// Codec converts protocol payloads between their raw form and the text carried
// in an envelope.
type Codec interface {
	Name() string
	Encode(raw []byte) (string, error)
	Decode(wire string) ([]byte, error)
}

// Base64Codec carries binary data as standard base64 text.
type Base64Codec struct {
	name string
}

func NewBase64Codec(name string) *Base64Codec {
	return &Base64Codec{name: name}
}

func (c *Base64Codec) Name() string { return c.name }

func (c *Base64Codec) Encode(raw []byte) (string, error) {
	return base64.StdEncoding.EncodeToString(raw), nil
}

func (c *Base64Codec) Decode(wire string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, c.name, err)
	}
	return b, nil
}

// TextCodec passes text through unchanged.
type TextCodec struct {
	name string
}

func NewTextCodec(name string) *TextCodec {
	return &TextCodec{name: name}
}

func (c *TextCodec) Name() string { return c.name }

func (c *TextCodec) Encode(raw []byte) (string, error) {
	return string(raw), nil
}

func (c *TextCodec) Decode(wire string) ([]byte, error) {
	return []byte(wire), nil
}

// CodecRegistry maps protocol tags to codecs. Tags are case-insensitive.
// It is built once at startup and read concurrently afterwards.
type CodecRegistry struct {
	codecs   map[string]Codec
	fallback Codec
}

// NewCodecRegistry returns a registry holding the given codecs keyed by Name.
// Unknown tags resolve to a passthrough codec named "RAW".
func NewCodecRegistry(codecs ...Codec) *CodecRegistry {
	r := &CodecRegistry{
		codecs:   make(map[string]Codec, len(codecs)),
		fallback: NewTextCodec("RAW"),
	}
	for _, c := range codecs {
		r.codecs[normalizeTag(c.Name())] = c
	}
	return r
}

// DefaultCodecRegistry registers the DICOM (base64) and HL7 (text) codecs.
func DefaultCodecRegistry() *CodecRegistry {
	return NewCodecRegistry(
		NewBase64Codec(ProtocolDICOM),
		NewTextCodec(ProtocolHL7),
	)
}

// Lookup returns the codec registered for tag.
func (r *CodecRegistry) Lookup(tag string) (Codec, bool) {
	c, ok := r.codecs[normalizeTag(tag)]
	return c, ok
}

// Resolve returns the registered codec or the passthrough fallback. The bool
// reports whether a codec was registered for tag.
func (r *CodecRegistry) Resolve(tag string) (Codec, bool) {
	if c, ok := r.Lookup(tag); ok {
		return c, true
	}
	return r.fallback, false
}

// Tags lists registered protocol tags in sorted order.
func (r *CodecRegistry) Tags() []string {
	tags := make([]string, 0, len(r.codecs))
	for _, c := range r.codecs {
		tags = append(tags, c.Name())
	}
	sort.Strings(tags)
	return tags
}

func normalizeTag(tag string) string {
	return strings.ToUpper(strings.TrimSpace(tag))
}
