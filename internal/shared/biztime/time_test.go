package biztime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatWire(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)

	tests := []struct {
		name     string
		in       time.Time
		expected string
	}{
		{
			name:     "utc input",
			in:       time.Date(2025, 3, 1, 9, 30, 5, 0, time.UTC),
			expected: "2025-03-01T09:30:05Z",
		},
		{
			name:     "offset input is converted",
			in:       time.Date(2025, 3, 1, 8, 0, 0, 0, shanghai),
			expected: "2025-03-01T00:00:00Z",
		},
		{
			name:     "sub-second precision is dropped",
			in:       time.Date(2025, 3, 1, 9, 30, 5, 999_000_000, time.UTC),
			expected: "2025-03-01T09:30:05Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatWire(tt.in))
		})
	}
}

func TestParseWire(t *testing.T) {
	got, err := ParseWire("2025-03-01T09:30:05Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 30, 5, 0, time.UTC), got)

	_, err = ParseWire("2025-03-01 09:30:05")
	assert.Error(t, err)
}

func TestSetNowFunc(t *testing.T) {
	fixed := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	restore := SetNowFunc(func() time.Time { return fixed })

	assert.Equal(t, fixed, NowUTC())

	restore()
	assert.NotEqual(t, fixed, NowUTC())
}
