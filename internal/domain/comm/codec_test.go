package comm

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBase64Codec_RoundTrip(t *testing.T) {
	codec := NewBase64Codec(ProtocolDICOM)
	rng := rand.New(rand.NewSource(42))

	inputs := [][]byte{
		nil,
		{},
		{0x00},
		{0xff, 0x00, 0x7f, 0x80},
		[]byte("DICM"),
	}
	for i := 0; i < 50; i++ {
		b := make([]byte, rng.Intn(512))
		rng.Read(b)
		inputs = append(inputs, b)
	}

	for _, in := range inputs {
		wire, err := codec.Encode(in)
		require.NoError(t, err)

		out, err := codec.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, len(in), len(out))
		if len(in) > 0 {
			assert.Equal(t, in, out)
		}
	}
}

func TestBase64Codec_DecodeError(t *testing.T) {
	codec := NewBase64Codec(ProtocolDICOM)

	_, err := codec.Decode("not base64!")
	assert.ErrorIs(t, err, ErrDecode)
}

func TestTextCodec_RoundTrip(t *testing.T) {
	codec := NewTextCodec(ProtocolHL7)

	for _, s := range []string{"", "MSH|^~\\&|SendingApp", "unicode ✓ 日本", "line1\rline2\n"} {
		wire, err := codec.Encode([]byte(s))
		require.NoError(t, err)
		assert.Equal(t, s, wire)

		out, err := codec.Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, s, string(out))
	}
}

func TestCodecRegistry(t *testing.T) {
	registry := DefaultCodecRegistry()

	t.Run("registered tags", func(t *testing.T) {
		assert.Equal(t, []string{"DICOM", "HL7"}, registry.Tags())
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		c, ok := registry.Lookup("hl7")
		require.True(t, ok)
		assert.Equal(t, ProtocolHL7, c.Name())

		c, ok = registry.Lookup(" Dicom ")
		require.True(t, ok)
		assert.Equal(t, ProtocolDICOM, c.Name())
	})

	t.Run("unknown tag is absent", func(t *testing.T) {
		_, ok := registry.Lookup("UNKNOWN_XYZ")
		assert.False(t, ok)
	})

	t.Run("resolve falls back to passthrough", func(t *testing.T) {
		c, ok := registry.Resolve("CUSTOM")
		assert.False(t, ok)
		assert.Equal(t, "RAW", c.Name())

		out, err := c.Decode("Surgery prep complete.")
		require.NoError(t, err)
		assert.Equal(t, "Surgery prep complete.", string(out))
	})
}
