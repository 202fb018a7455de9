package comm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
)

// Envelope is the unit exchanged between nodes. It is a value: construct it
// with NewEnvelope and do not mutate it afterwards.
type Envelope struct {
	Protocol    string          `json:"protocol"`
	Type        string          `json:"type"`
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Timestamp   string          `json:"timestamp"`
	Payload     json.RawMessage `json:"payload"`
}

// NewEnvelope builds an envelope stamped with the current UTC time. payload may
// be a string, a json.RawMessage, or any value that encodes as JSON.
func NewEnvelope(source, destination, protocol, msgType string, payload any) (Envelope, error) {
	raw, err := encodePayload(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Protocol:    protocol,
		Type:        msgType,
		Source:      source,
		Destination: destination,
		Timestamp:   biztime.FormatWire(biztime.NowUTC()),
		Payload:     raw,
	}, nil
}

func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, fmt.Errorf("%w: payload is not valid JSON", ErrInvalidPayload)
		}
		return append(json.RawMessage(nil), p...), nil
	default:
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		return b, nil
	}
}

// Marshal serialises the envelope to its wire form.
func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// ParseEnvelope decodes wire bytes. Anything that is not a single JSON object
// with string header fields yields ErrMalformedEnvelope.
func ParseEnvelope(data []byte) (Envelope, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Envelope{}, fmt.Errorf("%w: not a JSON object", ErrMalformedEnvelope)
	}

	var e Envelope
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	if err := dec.Decode(&e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if dec.More() {
		return Envelope{}, fmt.Errorf("%w: trailing data", ErrMalformedEnvelope)
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage("null")
	}
	return e, nil
}

// PayloadText returns the payload as a string when it is a JSON string.
func (e Envelope) PayloadText() (string, bool) {
	if len(e.Payload) == 0 || e.Payload[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(e.Payload, &s); err != nil {
		return "", false
	}
	return s, true
}

// CodecInput returns the text a codec decodes: the string value for string
// payloads, the compact JSON text otherwise.
func (e Envelope) CodecInput() string {
	if s, ok := e.PayloadText(); ok {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Payload); err != nil {
		return string(e.Payload)
	}
	return buf.String()
}

// Time parses the envelope timestamp.
func (e Envelope) Time() (time.Time, error) {
	return biztime.ParseWire(e.Timestamp)
}
