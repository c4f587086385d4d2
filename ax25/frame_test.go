package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testPath() Path {
	return NewPath(MustParseCallsign("APRS"), MustParseCallsign("VK3ABC-9"), MustParseCallsign("WIDE1-1"))
}

func TestUIFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := NewUIFrame(testPath(), 0xF0, []byte(">hello world"))

	wire, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, FrameUI, decoded.Type)
	assert.Equal(t, f.Payload, decoded.Payload)
	require.NotNil(t, decoded.PID)
	assert.Equal(t, uint8(0xF0), *decoded.PID)
	assert.True(t, decoded.Path.Destination().Equal(f.Path.Destination()))
}

func TestDecodeRejectsBadFCS(t *testing.T) {
	f := NewUIFrame(testPath(), 0xF0, []byte("test"))
	wire, err := Encode(f)
	require.NoError(t, err)

	wire[len(wire)-1] ^= 0xFF
	_, err = Decode(wire)
	assert.ErrorIs(t, err, ErrBadFCS)
}

func TestDecodeRejectsTruncated(t *testing.T) {
	f := NewUIFrame(testPath(), 0xF0, []byte("test"))
	wire, err := Encode(f)
	require.NoError(t, err)

	_, err = Decode(wire[:len(wire)-4])
	assert.Error(t, err)
}

func TestSFrameEncodeDecodeRoundTrip(t *testing.T) {
	f := Frame{
		Path:      testPath(),
		Type:      FrameS,
		SSubtype:  SREJ,
		NR:        3,
		PollFinal: true,
	}
	wire, err := Encode(f)
	require.NoError(t, err)

	decoded, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, FrameS, decoded.Type)
	assert.Equal(t, SREJ, decoded.SSubtype)
	assert.Equal(t, uint8(3), decoded.NR)
	assert.True(t, decoded.PollFinal)
}

func TestUFrameEncodeDecodeRoundTrip(t *testing.T) {
	for _, ut := range []UType{USABM, USABME, UDISC, UDM, UUA, UFRMR, UXID, UTEST} {
		f := Frame{Path: testPath(), Type: FrameU, USubtype: ut}
		wire, err := Encode(f)
		require.NoError(t, err)

		decoded, err := Decode(wire)
		require.NoError(t, err)
		assert.Equal(t, FrameU, decoded.Type)
		assert.Equal(t, ut, decoded.USubtype, "round-tripping %s", ut)
	}
}

func TestUIFramePayloadRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		f := NewUIFrame(testPath(), 0xF0, payload)

		wire, err := Encode(f)
		require.NoError(t, err)
		decoded, err := Decode(wire)
		require.NoError(t, err)

		assert.Equal(t, payload, decoded.Payload)
	})
}
