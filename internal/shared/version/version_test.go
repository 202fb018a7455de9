package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withVersion(t *testing.T, v string) {
	t.Helper()
	prev := Version
	Version = v
	t.Cleanup(func() { Version = prev })
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "v1.2.3", Normalize("1.2.3"))
	assert.Equal(t, "v1.2.3", Normalize(" v1.2.3 "))
	assert.Equal(t, "", Normalize(""))
}

func TestString(t *testing.T) {
	withVersion(t, "1.2")
	assert.Equal(t, "v1.2.0", String())

	withVersion(t, "dev")
	assert.Equal(t, "dev", String())
}

func TestCompatible(t *testing.T) {
	withVersion(t, "1.4.0")
	assert.True(t, Compatible("v1.0.2"))
	assert.False(t, Compatible("2.0.0"))
	assert.True(t, Compatible("dev"))

	withVersion(t, "dev")
	assert.True(t, Compatible("3.1.0"))
}
