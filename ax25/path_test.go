package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPathEncodeDecodeRoundTrip(t *testing.T) {
	dst := MustParseCallsign("APRS")
	src := MustParseCallsign("VK3ABC-9")
	rep1 := MustParseCallsign("WIDE1-1")
	rep2 := MustParseCallsign("WIDE2-2*")
	p := NewPath(dst, src, rep1, rep2)

	wire, err := encodePath(p)
	require.NoError(t, err)
	assert.Equal(t, 7*4, len(wire))

	decoded, rest, err := decodePath(wire)
	require.NoError(t, err)
	assert.Empty(t, rest)
	require.Len(t, decoded, 4)
	assert.True(t, decoded.Destination().Equal(dst))
	assert.True(t, decoded.Source().Equal(src))
	assert.True(t, decoded.Repeaters()[1].Repeated)
}

func TestPathEncodeRejectsTooManyDigipeaters(t *testing.T) {
	repeaters := make([]Callsign, MaxDigipeaters+1)
	for i := range repeaters {
		repeaters[i] = MustParseCallsign("WIDE1-1")
	}
	_, err := encodePath(NewPath(MustParseCallsign("APRS"), MustParseCallsign("N0CALL"), repeaters...))
	assert.ErrorIs(t, err, ErrMalformedPath)
}

func TestDecodePathStopsOnLastBit(t *testing.T) {
	dst := MustParseCallsign("APRS")
	src := MustParseCallsign("N0CALL")
	wire, err := encodePath(NewPath(dst, src))
	require.NoError(t, err)

	trailer := []byte{0xAA, 0xBB}
	decoded, rest, err := decodePath(append(wire, trailer...))
	require.NoError(t, err)
	assert.Equal(t, trailer, rest)
	assert.Len(t, decoded, 2)
}

func TestPathRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, MaxDigipeaters).Draw(t, "nrepeaters")
		repeaters := make([]Callsign, n)
		for i := range repeaters {
			repeaters[i] = MustParseCallsign(rapid.StringMatching(`^[A-Z0-9]{1,6}$`).Draw(t, "rpt"))
		}
		p := NewPath(MustParseCallsign("APRS"), MustParseCallsign("N0CALL-5"), repeaters...)

		wire, err := encodePath(p)
		require.NoError(t, err)
		decoded, rest, err := decodePath(wire)
		require.NoError(t, err)
		assert.Empty(t, rest)
		require.Len(t, decoded, len(p))
		for i := range p {
			assert.True(t, p[i].Equal(decoded[i]))
		}
	})
}
