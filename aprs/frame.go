package aprs

import (
	"fmt"

	"github.com/madpsy/ax25aprs/ax25"
)

// Frame is a decoded APRS payload riding inside an AX.25 UI frame
// (spec.md §3's APRSFrame). Every concrete type embeds base so the
// original AX.25 path/addresses remain available.
type Frame interface {
	UI() ax25.Frame
	Type() DataType
	Source() ax25.Callsign
	Destination() ax25.Callsign
}

// base carries the fields every APRS frame has in common.
type base struct {
	ui       ax25.Frame
	dataType DataType
}

func (b base) UI() ax25.Frame          { return b.ui }
func (b base) Type() DataType          { return b.dataType }
func (b base) Source() ax25.Callsign   { return b.ui.Path.Source() }
func (b base) Destination() ax25.Callsign { return b.ui.Path.Destination() }

// RawFrame is the fallback for APRS data types this stack doesn't give a
// dedicated Go type to (position, status, object, telemetry, …) — callers
// needing those can parse base.UI().Payload themselves, or supply a
// custom MICEDecoder (see mice.go) for the MIC-E variants.
type RawFrame struct {
	base
	Payload []byte
}

// Decode recognises an APRS payload within an already-decoded AX.25 UI
// frame and dispatches to the appropriate concrete Frame type. A non-UI
// frame, a non-APRS PID or an empty payload returns ErrNotAPRS. Frames
// with an unrecognised data-type byte, or a payload that fails
// variant-specific parsing, decode as RawFrame rather than erroring
// — consistent with spec.md's dedup/dispatch pipeline, which must not be
// derailed by a single malformed APRS message.
func Decode(ui ax25.Frame) (Frame, error) {
	if ui.Type != ax25.FrameUI {
		return nil, fmt.Errorf("%w: not a UI frame", ErrNotAPRS)
	}
	if ui.PID == nil || *ui.PID != PIDNoLayer3 {
		return nil, fmt.Errorf("%w: PID 0x%02x is not APRS", ErrNotAPRS, derefPID(ui.PID))
	}
	if len(ui.Payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrNotAPRS)
	}

	dt := DataType(ui.Payload[0])
	b := base{ui: ui, dataType: dt}

	switch dt {
	case DataTypeMessage:
		if f, err := decodeMessageFrame(b); err == nil {
			return f, nil
		}
	case DataTypeMICE, DataTypeMICEOld, DataTypeMICEBeta0, DataTypeMICEOldBeta0:
		if f, err := decodeMICEFrame(b); err == nil {
			return f, nil
		}
	}

	return &RawFrame{base: b, Payload: ui.Payload[1:]}, nil
}

func derefPID(p *uint8) uint8 {
	if p == nil {
		return 0
	}
	return *p
}

// ErrNotAPRS is returned when a UI frame's PID or payload doesn't look
// like APRS traffic at all (spec.md §7's MalformedAprsPayload family).
var ErrNotAPRS = fmt.Errorf("aprs: not an APRS payload")

// ErrMalformedPayload covers APRS-recognised payloads that fail
// type-specific parsing (e.g. a ':' message frame missing its second
// colon).
var ErrMalformedPayload = fmt.Errorf("aprs: malformed payload")

// EncodeUI builds the AX.25 UI frame carrying payload, using the APRS
// PID (spec.md §4.6's "APRSFrame" constructor contract).
func EncodeUI(path ax25.Path, payload []byte) ax25.Frame {
	return ax25.NewUIFrame(path, PIDNoLayer3, payload)
}
