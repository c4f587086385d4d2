package aprs

import "fmt"

// ErrMICEUnsupported is returned by the default MICEDecoder for any
// input: MIC-E's destination-callsign-encoded position/status scheme is
// out of scope for this stack (spec.md §4.6 Non-goals), but callers
// supplying their own decoder can still plug into DecodeMICE.
var ErrMICEUnsupported = fmt.Errorf("aprs: mic-e decoding not supported")

// MICEPosition is the decoded result of a MIC-E frame: enough fields
// for a caller-supplied decoder to report a fix without this package
// needing to understand MIC-E's bit-packed encoding itself.
type MICEPosition struct {
	Latitude  float64
	Longitude float64
	Course    uint16
	SpeedKnots uint16
	Symbol    byte
	SymbolTable byte
	Status    string
}

// MICEDecoder decodes the MIC-E data types (spec.md §4.6: "MIC-E
// decoding may be represented as a decoder plugged in behind an
// interface rather than implemented in full"). destination carries the
// AX.25 destination callsign base, which is where MIC-E encodes most of
// its payload.
type MICEDecoder interface {
	DecodeMICE(destination string, info []byte) (MICEPosition, error)
}

// unsupportedMICEDecoder is the zero-value decoder wired in by default:
// it recognises MIC-E frames as MIC-E (so callers can distinguish them
// from RawFrame) without attempting to decode their payload.
type unsupportedMICEDecoder struct{}

func (unsupportedMICEDecoder) DecodeMICE(_ string, _ []byte) (MICEPosition, error) {
	return MICEPosition{}, ErrMICEUnsupported
}

var defaultMICEDecoder MICEDecoder = unsupportedMICEDecoder{}

// SetMICEDecoder installs a package-wide MIC-E decoder, letting an
// integrator that needs MIC-E support supply their own without this
// package taking on that complexity.
func SetMICEDecoder(d MICEDecoder) {
	if d == nil {
		d = unsupportedMICEDecoder{}
	}
	defaultMICEDecoder = d
}

// MICEFrame wraps a MIC-E data type frame, deferring position decoding
// to the installed MICEDecoder.
type MICEFrame struct {
	base
	Info []byte
}

// Decode runs the installed MICEDecoder against this frame's AX.25
// destination callsign and information field.
func (f *MICEFrame) Decode() (MICEPosition, error) {
	return defaultMICEDecoder.DecodeMICE(f.ui.Path.Destination().Base, f.Info)
}

func decodeMICEFrame(b base) (Frame, error) {
	return &MICEFrame{base: b, Info: b.ui.Payload}, nil
}
