package ax25

import "errors"

// Error kinds from spec.md §7. Decode/encode errors wrap one of these so
// callers can errors.Is against a stable sentinel.
var (
	ErrMalformedCallsign = errors.New("ax25: malformed callsign")
	ErrMalformedPath     = errors.New("ax25: malformed path")
	ErrBadFCS            = errors.New("ax25: frame check sequence mismatch")
	ErrTruncated         = errors.New("ax25: truncated frame")
	ErrUnknownVariant    = errors.New("ax25: unrecognised control field variant")
	ErrPortOutOfRange    = errors.New("ax25: port number out of range")
	ErrDeviceClosed      = errors.New("ax25: device closed")
	ErrQueueFull         = errors.New("ax25: transmit queue full")
)
