package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRelayRateLimiter_SlidingWindow(t *testing.T) {
	rl := NewRelayRateLimiter(2, time.Second)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "limits are per connection")

	now = now.Add(1500 * time.Millisecond)
	assert.True(t, rl.Allow("a"))

	rl.Forget("a")
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}
