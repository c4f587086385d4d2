package ax25

import "fmt"

// maxPathAddresses is destination + source + MaxDigipeaters.
const maxPathAddresses = 2 + MaxDigipeaters

// Path is the ordered address list of an AX.25 frame: destination,
// source, then 0-8 digipeaters (spec.md §3).
type Path []Callsign

// NewPath builds a Path from destination, source and optional digipeaters.
func NewPath(destination, source Callsign, repeaters ...Callsign) Path {
	p := make(Path, 0, 2+len(repeaters))
	p = append(p, destination, source)
	p = append(p, repeaters...)
	return p
}

// Destination returns the path's destination address.
func (p Path) Destination() Callsign { return p[0] }

// Source returns the path's source address.
func (p Path) Source() Callsign { return p[1] }

// Repeaters returns the digipeater slots, in path order.
func (p Path) Repeaters() []Callsign {
	if len(p) <= 2 {
		return nil
	}
	return p[2:]
}

// Clone returns a deep copy of the path so callers can mutate repeater
// slots (e.g. during digipeating) without aliasing the original frame.
func (p Path) Clone() Path {
	c := make(Path, len(p))
	copy(c, p)
	return c
}

// encode serialises the path to its wire form: each address as 7 octets,
// with the low "last address" bit set on, and only on, the final entry
// (spec.md's invariant in §3).
func encodePath(p Path) ([]byte, error) {
	if len(p) < 2 {
		return nil, fmt.Errorf("%w: path needs at least destination and source", ErrMalformedPath)
	}
	if len(p) > maxPathAddresses {
		return nil, fmt.Errorf("%w: path has %d addresses, max %d", ErrMalformedPath, len(p), maxPathAddresses)
	}

	out := make([]byte, 7*len(p))
	for i, c := range p {
		last := i == len(p)-1
		c.encode(out[i*7:i*7+7], last)
	}
	return out, nil
}

// decodePath consumes addresses from data until one with the wire
// "last address" bit set is seen, or until maxPathAddresses is exceeded
// (spec.md §4.2: "stop when low-bit-set octet seen or after 10
// addresses"). It returns the decoded path and the remaining bytes.
func decodePath(data []byte) (Path, []byte, error) {
	var p Path
	for {
		if len(p) >= maxPathAddresses {
			return nil, nil, fmt.Errorf("%w: path exceeds %d addresses", ErrMalformedPath, maxPathAddresses)
		}
		if len(data) < 7 {
			return nil, nil, fmt.Errorf("%w: %v", ErrTruncated, "incomplete address field")
		}
		c, last, err := decodeCallsign(data[:7])
		if err != nil {
			return nil, nil, err
		}
		p = append(p, c)
		data = data[7:]
		if last {
			break
		}
	}
	if len(p) < 2 {
		return nil, nil, fmt.Errorf("%w: too few addresses", ErrMalformedPath)
	}
	return p, data, nil
}
