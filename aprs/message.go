package aprs

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/madpsy/ax25aprs/ax25"
)

// msgIDPattern extracts an optional trailing "{MSGID[}ACKID]" suffix
// from a message's text (spec.md §4.6).
var msgIDPattern = regexp.MustCompile(`\{([0-9A-Za-z]{1,5})(\}[0-9A-Za-z]{0,5})?$`)

// ackRejPattern matches a bare ACK/REJ payload: "ack<MSGID>[}<ACKID>]"
// or "rej<MSGID>[}<ACKID>]" (spec.md §4.6/§6).
var ackRejPattern = regexp.MustCompile(`^(ack|rej)([A-Za-z0-9]{1,5})(\}([A-Za-z0-9]{1,5}))?$`)

// ReplyAck captures the APRS 1.1 reply-ack suffix of a message (spec.md
// §3): either a bare capability advertisement, or an embedded ACK of
// another message ID riding on this outgoing message.
type ReplyAck struct {
	Advertise bool   // message ends in a bare '}' advertising reply-ack support
	AckID     string // non-empty: this message also acks AckID
}

// MessageFrame is a `:AAAAAAAAA:TEXT{MSGID[}ACKID]` APRS message
// (spec.md §3/§4.6).
type MessageFrame struct {
	base
	Addressee ax25.Callsign
	Text      string
	MsgID     string // "" if the message carries no message ID
	ReplyAck  ReplyAck
}

// AckFrame is an APRS message acknowledgement ("ack<msgid>").
type AckFrame struct {
	base
	Addressee ax25.Callsign
	MsgID     string
}

// RejectFrame is an APRS message rejection ("rej<msgid>").
type RejectFrame struct {
	base
	Addressee ax25.Callsign
	MsgID     string
}

func decodeMessageFrame(b base) (Frame, error) {
	payload := b.ui.Payload
	if len(payload) < 11 || payload[0] != ':' || payload[10] != ':' {
		return nil, fmt.Errorf("%w: message frame missing addressee delimiter", ErrMalformedPayload)
	}

	addresseeStr := strings.TrimSpace(string(payload[1:10]))
	addressee, err := ax25.ParseCallsign(addresseeStr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	text := string(payload[11:])

	if m := ackRejPattern.FindStringSubmatch(text); m != nil {
		msgid := m[2]
		if m[1] == "ack" {
			return &AckFrame{base: b, Addressee: addressee, MsgID: msgid}, nil
		}
		return &RejectFrame{base: b, Addressee: addressee, MsgID: msgid}, nil
	}

	msgid := ""
	var ra ReplyAck
	if m := msgIDPattern.FindStringSubmatch(text); m != nil {
		msgid = m[1]
		text = text[:len(text)-len(m[0])]
		switch {
		case m[2] == "}":
			ra.Advertise = true
		case m[2] != "":
			ra.AckID = m[2][1:]
		}
	}

	return &MessageFrame{
		base:      b,
		Addressee: addressee,
		Text:      text,
		MsgID:     msgid,
		ReplyAck:  ra,
	}, nil
}

// BuildMessagePayload constructs the wire payload for an outgoing
// message, per spec.md §4.6/§6: ":AAAAAAAAA:TEXT[{MSGID[}ACKID]]".
// Encoders must not emit '}' unless reply-ack is explicitly requested.
func BuildMessagePayload(addressee ax25.Callsign, text string, msgid string, replyack ReplyAck) ([]byte, error) {
	if len(msgid) > 5 {
		return nil, fmt.Errorf("%w: message id %q too long", ErrMalformedPayload, msgid)
	}
	if len(text) > 67 {
		text = text[:67]
	}

	addr := addressee.Base
	if addressee.SSID != 0 {
		addr = fmt.Sprintf("%s-%d", addr, addressee.SSID)
	}
	payload := fmt.Sprintf(":%-9s:%s", addr, text)

	if msgid != "" {
		payload += "{" + msgid
		if replyack.AckID != "" {
			payload += "}" + replyack.AckID
		} else if replyack.Advertise {
			payload += "}"
		}
	}
	return []byte(payload), nil
}

// BuildAckPayload builds an "ack<msgid>" payload.
func BuildAckPayload(msgid string) []byte { return []byte("ack" + msgid) }

// BuildRejPayload builds a "rej<msgid>" payload.
func BuildRejPayload(msgid string) []byte { return []byte("rej" + msgid) }

// NewMessageFrame builds a complete outgoing UI frame for a message.
// path.Destination() is the AX.25 destination (typically the station's
// APRS destination callsign, e.g. APZAIO); path.Source() is the sending
// station; path's remaining entries are the digipeater path.
func NewMessageFrame(path ax25.Path, addressee ax25.Callsign, text string, msgid string, replyack ReplyAck) (ax25.Frame, error) {
	payload, err := BuildMessagePayload(addressee, text, msgid, replyack)
	if err != nil {
		return ax25.Frame{}, err
	}
	return EncodeUI(path, payload), nil
}

// NewAckFrame builds a complete outgoing ACK UI frame.
func NewAckFrame(path ax25.Path, msgid string) ax25.Frame {
	return EncodeUI(path, BuildAckPayload(msgid))
}

// NewRejFrame builds a complete outgoing REJ UI frame.
func NewRejFrame(path ax25.Path, msgid string) ax25.Frame {
	return EncodeUI(path, BuildRejPayload(msgid))
}
