package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "1.0.0 (3f2a9c1)", Info{Version: "1.0.0", Commit: "3f2a9c1d9e"}.Short())
	assert.Equal(t, "dev", Info{Version: "dev", Commit: "none"}.Short())
}

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Contains(t, info.String(), info.Platform)
}
