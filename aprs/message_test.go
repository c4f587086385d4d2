package aprs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madpsy/ax25aprs/ax25"
)

func testUIPath() ax25.Path {
	return ax25.NewPath(ax25.MustParseCallsign("APZAIO"), ax25.MustParseCallsign("VK3ABC-9"))
}

func TestMessageFramePayloadRoundTrip(t *testing.T) {
	addressee := ax25.MustParseCallsign("VK3XYZ-2")
	payload, err := BuildMessagePayload(addressee, "hello there", "123", ReplyAck{})
	require.NoError(t, err)
	assert.Equal(t, ":VK3XYZ-2 :hello there{123", string(payload))

	ui := EncodeUI(testUIPath(), payload)
	frame, err := Decode(ui)
	require.NoError(t, err)

	msg, ok := frame.(*MessageFrame)
	require.True(t, ok)
	assert.True(t, msg.Addressee.Equal(addressee))
	assert.Equal(t, "hello there", msg.Text)
	assert.Equal(t, "123", msg.MsgID)
}

func TestMessageFrameReplyAckAdvertise(t *testing.T) {
	addressee := ax25.MustParseCallsign("VK3XYZ")
	payload, err := BuildMessagePayload(addressee, "hi", "9", ReplyAck{Advertise: true})
	require.NoError(t, err)
	assert.Equal(t, ":VK3XYZ   :hi{9}", string(payload))

	frame, err := Decode(EncodeUI(testUIPath(), payload))
	require.NoError(t, err)
	msg := frame.(*MessageFrame)
	assert.True(t, msg.ReplyAck.Advertise)
	assert.Empty(t, msg.ReplyAck.AckID)
}

func TestMessageFrameReplyAckEmbeddedID(t *testing.T) {
	addressee := ax25.MustParseCallsign("VK3XYZ")
	payload, err := BuildMessagePayload(addressee, "hi", "9", ReplyAck{AckID: "77"})
	require.NoError(t, err)
	assert.Equal(t, ":VK3XYZ   :hi{9}77", string(payload))

	frame, err := Decode(EncodeUI(testUIPath(), payload))
	require.NoError(t, err)
	msg := frame.(*MessageFrame)
	assert.Equal(t, "77", msg.ReplyAck.AckID)
}

func TestMessageFromRejectRoundTrip(t *testing.T) {
	ui := EncodeUI(testUIPath(), BuildAckPayload("42"))
	frame, err := Decode(ui)
	require.NoError(t, err)
	ack, ok := frame.(*AckFrame)
	require.True(t, ok)
	assert.Equal(t, "42", ack.MsgID)

	ui = EncodeUI(testUIPath(), BuildRejPayload("42"))
	frame, err = Decode(ui)
	require.NoError(t, err)
	rej, ok := frame.(*RejectFrame)
	require.True(t, ok)
	assert.Equal(t, "42", rej.MsgID)
}

func TestMessagePayloadTooLongMsgID(t *testing.T) {
	_, err := BuildMessagePayload(ax25.MustParseCallsign("VK3XYZ"), "hi", "123456", ReplyAck{})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestMessagePayloadTruncatesLongText(t *testing.T) {
	long := make([]byte, 100)
	for i := range long {
		long[i] = 'x'
	}
	payload, err := BuildMessagePayload(ax25.MustParseCallsign("VK3XYZ"), string(long), "", ReplyAck{})
	require.NoError(t, err)

	frame, err := Decode(EncodeUI(testUIPath(), payload))
	require.NoError(t, err)
	msg := frame.(*MessageFrame)
	assert.Len(t, msg.Text, 67)
}

func TestDecodeMalformedMessageFallsBackToRaw(t *testing.T) {
	ui := EncodeUI(testUIPath(), []byte(":missingcolon"))
	frame, err := Decode(ui)
	require.NoError(t, err)
	_, ok := frame.(*RawFrame)
	assert.True(t, ok)
}

func TestDecodeRejectsNonUIFrame(t *testing.T) {
	f := ax25.Frame{Path: testUIPath(), Type: ax25.FrameS}
	_, err := Decode(f)
	assert.ErrorIs(t, err, ErrNotAPRS)
}
