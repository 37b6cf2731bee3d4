package linguine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_DefaultsArePrimed(t *testing.T) {
	c := NewConfig()
	assert.Equal(t, 4096, c.GCThreshold)
	assert.Equal(t, 1024, c.CallDepthLimit)
	assert.False(t, c.DebugHooksEnabled)
}

func TestConfig_FieldsAreMutable(t *testing.T) {
	c := NewConfig()
	c.GCThreshold = 100
	c.DebugHooksEnabled = true
	assert.Equal(t, 100, c.GCThreshold)
	assert.True(t, c.DebugHooksEnabled)
}
