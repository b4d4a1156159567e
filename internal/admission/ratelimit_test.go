package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
}

func TestRateLimiterIsPerIP(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiterRecoversAfterWindow(t *testing.T) {
	rl := NewRateLimiter(1, 30*time.Millisecond)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	time.Sleep(80 * time.Millisecond)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.Equal(t, 1, rl.ActiveIPs())
}

func TestRateLimiterCount(t *testing.T) {
	rl := NewRateLimiter(5, time.Minute)

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.1")

	assert.Equal(t, 2, rl.Count("10.0.0.1"))
	assert.Equal(t, 0, rl.Count("10.0.0.2"))
}
