package aprs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
)

func TestDedupCacheDetectsRepeat(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0), 1)
	d := NewDedupCache(28*time.Second, fake)

	f := ax25.NewUIFrame(testUIPath(), PIDNoLayer3, []byte("hello"))

	assert.False(t, d.Seen(f), "first sighting should not be a dup")
	assert.True(t, d.Seen(f), "second sighting should be a dup")
	assert.Equal(t, 1, d.Len())
}

func TestDedupCacheExpires(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0), 1)
	d := NewDedupCache(10*time.Second, fake)

	f := ax25.NewUIFrame(testUIPath(), PIDNoLayer3, []byte("hello"))
	require.False(t, d.Seen(f))

	fake.Advance(11 * time.Second)
	assert.False(t, d.Seen(f), "entry should have expired")
}

func TestDedupCacheDistinguishesPayloads(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0), 1)
	d := NewDedupCache(28*time.Second, fake)

	a := ax25.NewUIFrame(testUIPath(), PIDNoLayer3, []byte("hello"))
	b := ax25.NewUIFrame(testUIPath(), PIDNoLayer3, []byte("world"))

	assert.False(t, d.Seen(a))
	assert.False(t, d.Seen(b))
	assert.Equal(t, 2, d.Len())
}
