package comm

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alissayuxuan/OMNI-SYS/internal/shared/biztime"
)

func TestNewEnvelope(t *testing.T) {
	restore := biztime.SetNowFunc(func() time.Time {
		return time.Date(2025, 5, 4, 10, 11, 12, 500, time.UTC)
	})
	defer restore()

	t.Run("string payload", func(t *testing.T) {
		env, err := NewEnvelope("device_X", "robot_1", "HL7", "admit", "MSH|^~\\&|")
		require.NoError(t, err)

		assert.Equal(t, "device_X", env.Source)
		assert.Equal(t, "robot_1", env.Destination)
		assert.Equal(t, "HL7", env.Protocol)
		assert.Equal(t, "admit", env.Type)
		assert.Equal(t, "2025-05-04T10:11:12Z", env.Timestamp)

		text, ok := env.PayloadText()
		require.True(t, ok)
		assert.Equal(t, "MSH|^~\\&|", text)
	})

	t.Run("structured payload", func(t *testing.T) {
		payload := map[string]any{"patient_id": "P67890", "observation": "ECG normal"}
		env, err := NewEnvelope("doctor-1", "16", "hl7", "report", payload)
		require.NoError(t, err)

		_, ok := env.PayloadText()
		assert.False(t, ok)
		assert.JSONEq(t, `{"patient_id":"P67890","observation":"ECG normal"}`, string(env.Payload))
	})

	t.Run("raw json payload is validated", func(t *testing.T) {
		_, err := NewEnvelope("a", "b", "X", "t", json.RawMessage(`{"broken"`))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})

	t.Run("unencodable payload", func(t *testing.T) {
		_, err := NewEnvelope("a", "b", "X", "t", make(chan int))
		assert.ErrorIs(t, err, ErrInvalidPayload)
	})
}

func TestEnvelope_WireFormat(t *testing.T) {
	env := Envelope{
		Protocol:    "DICOM",
		Type:        "image",
		Source:      "device_X",
		Destination: "nurse_station",
		Timestamp:   "2025-05-04T10:11:12Z",
		Payload:     json.RawMessage(`"AAEC"`),
	}

	data, err := env.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"protocol": "DICOM",
		"type": "image",
		"source": "device_X",
		"destination": "nurse_station",
		"timestamp": "2025-05-04T10:11:12Z",
		"payload": "AAEC"
	}`, string(data))

	parsed, err := ParseEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env, parsed)

	ts, err := parsed.Time()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 5, 4, 10, 11, 12, 0, time.UTC), ts)
}

func TestParseEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "not json", data: []byte("not json")},
		{name: "empty", data: nil},
		{name: "json string", data: []byte(`"hello"`)},
		{name: "json null", data: []byte(`null`)},
		{name: "json array", data: []byte(`[1,2]`)},
		{name: "wrong field type", data: []byte(`{"protocol": 5}`)},
		{name: "trailing data", data: []byte(`{"protocol":"HL7"} {"protocol":"HL7"}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEnvelope(tt.data)
			assert.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestParseEnvelope_MissingPayload(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"protocol":"CUSTOM","type":"status","source":"a","destination":"b"}`))
	require.NoError(t, err)
	assert.Equal(t, json.RawMessage("null"), env.Payload)
	assert.Equal(t, "null", env.CodecInput())
}

func TestEnvelope_CodecInput(t *testing.T) {
	env := Envelope{Payload: json.RawMessage(`{ "a" : 1 }`)}
	assert.Equal(t, `{"a":1}`, env.CodecInput())

	env = Envelope{Payload: json.RawMessage(`"plain text"`)}
	assert.Equal(t, "plain text", env.CodecInput())
}
