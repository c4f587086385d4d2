package ax25

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseCallsign(t *testing.T) {
	c, err := ParseCallsign("VK3ABC-7")
	require.NoError(t, err)
	assert.Equal(t, "VK3ABC", c.Base)
	assert.Equal(t, uint8(7), c.SSID)
	assert.False(t, c.Repeated)

	c, err = ParseCallsign("wide1-1*")
	require.NoError(t, err)
	assert.Equal(t, "WIDE1", c.Base)
	assert.Equal(t, uint8(1), c.SSID)
	assert.True(t, c.Repeated)

	c, err = ParseCallsign("N0CALL")
	require.NoError(t, err)
	assert.Equal(t, uint8(0), c.SSID)
	assert.Equal(t, "N0CALL", c.String())
}

func TestParseCallsignRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "TOOLONGCALL", "VK3ABC-16", "VK3ABC-", "VK3@BC"} {
		_, err := ParseCallsign(s)
		assert.Errorf(t, err, "expected error parsing %q", s)
		assert.True(t, errors.Is(err, ErrMalformedCallsign))
	}
}

func TestCallsignEqualIgnoresFlags(t *testing.T) {
	a := MustParseCallsign("VK3ABC-1")
	b := a.WithRepeated(true)
	b.Res0, b.Res1 = false, false
	assert.True(t, a.Equal(b))

	c := a.WithSSID(2)
	assert.False(t, a.Equal(c))
}

func TestCallsignStringRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.StringMatching(`^[A-Z0-9]{1,6}$`).Draw(t, "base")
		ssid := rapid.IntRange(0, 15).Draw(t, "ssid")
		repeated := rapid.Bool().Draw(t, "repeated")

		c := Callsign{Base: base, SSID: uint8(ssid), Repeated: repeated}
		parsed, err := ParseCallsign(c.String())
		require.NoError(t, err)
		assert.True(t, c.Equal(parsed))
		assert.Equal(t, c.Repeated, parsed.Repeated)
	})
}

func TestCallsignWireRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		base := rapid.StringMatching(`^[A-Z0-9]{1,6}$`).Draw(t, "base")
		ssid := rapid.IntRange(0, 15).Draw(t, "ssid")
		last := rapid.Bool().Draw(t, "last")

		c := Callsign{Base: base, SSID: uint8(ssid), Res0: true, Res1: true}
		buf := make([]byte, 7)
		c.encode(buf, last)

		decoded, decodedLast, err := decodeCallsign(buf)
		require.NoError(t, err)
		assert.True(t, c.Equal(decoded))
		assert.Equal(t, last, decodedLast)
	})
}
