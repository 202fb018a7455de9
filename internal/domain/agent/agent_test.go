package agent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgent(t *testing.T) {
	a, err := NewAgent("  Doctor One ", "doctor-1", "hash")
	require.NoError(t, err)
	assert.Equal(t, "Doctor One", a.Name())
	assert.Equal(t, "doctor-1", a.Username())
	assert.False(t, a.IsArchived())
	assert.False(t, a.CreatedAt().IsZero())

	_, err = NewAgent("", "doctor-1", "hash")
	assert.Error(t, err)
	_, err = NewAgent("Doctor", " ", "hash")
	assert.Error(t, err)
	_, err = NewAgent("Doctor", "doctor-1", "")
	assert.Error(t, err)
}

func TestAgent_SetIDAndIdentity(t *testing.T) {
	a, err := NewAgent("Device", "device-1", "hash")
	require.NoError(t, err)

	assert.Error(t, a.SetID(0))
	require.NoError(t, a.SetID(42))
	assert.Error(t, a.SetID(43))
	assert.Equal(t, "42", a.Identity())
}

func TestParseIdentity(t *testing.T) {
	id, ok := ParseIdentity("42")
	assert.True(t, ok)
	assert.Equal(t, uint(42), id)

	for _, bad := range []string{"", "0", "-1", "abc", "4.2"} {
		_, ok := ParseIdentity(bad)
		assert.False(t, ok, bad)
	}
}

func TestAgent_Archive(t *testing.T) {
	a := ReconstructAgent(7, "Device", "device-7", "hash", false, nowForTest(), nowForTest())
	a.Archive()
	assert.True(t, a.IsArchived())
	assert.True(t, a.UpdatedAt().After(nowForTest()) || a.UpdatedAt().Equal(nowForTest()))
}

func nowForTest() time.Time {
	return time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
}
