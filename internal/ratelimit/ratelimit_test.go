package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowEnforcesBurstPerKey(t *testing.T) {
	l := New(0.001, 2, 0)
	defer l.Stop()

	assert.True(t, l.Allow("10.0.0.1"))
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"), "third request exceeds burst")

	assert.True(t, l.Allow("10.0.0.2"), "other keys have their own bucket")
}

func TestSweepEvictsIdleKeys(t *testing.T) {
	l := New(1, 1, 0)
	defer l.Stop()
	l.idle = time.Minute

	current := time.Now()
	l.now = func() time.Time { return current }

	l.Allow("old")
	current = current.Add(2 * time.Minute)
	l.Allow("fresh")

	l.sweep()

	assert.Equal(t, 1, l.Len())
	_, ok := l.entries["fresh"]
	assert.True(t, ok)
}

func TestStopIsIdempotent(t *testing.T) {
	l := New(1, 1, time.Millisecond)
	l.Stop()
	l.Stop()
}
