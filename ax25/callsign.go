package ax25

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MaxDigipeaters is the AX.25 path length limit this stack enforces.
// spec.md's source material caps this at 8 in some places and not others;
// this implementation takes 8 (spec.md §4.2, resolved Open Question).
const MaxDigipeaters = 8

var callsignPattern = regexp.MustCompile(`^([A-Za-z0-9]{1,6})(?:-([0-9]{1,2}))?(\*)?$`)

// Callsign is an AX.25 address: a 1-6 character alphanumeric base,
// secondary station identifier (0-15), and the flags carried in the
// SSID octet on the wire (spec.md §3).
type Callsign struct {
	Base string // 1-6 uppercase alphanumerics, no padding
	SSID uint8  // 0-15

	// Repeated is the AX.25 "has-been-repeated" / command-response (C/H)
	// bit. For digipeater slots it means "already used"; for the
	// destination/source pair it carries the command/response bit.
	Repeated bool

	// Res0, Res1 are the two reserved bits, set by default per spec.md
	// §4.1 ("reserved bits (two, default set)").
	Res0, Res1 bool
}

// ParseCallsign parses "BASE[-SSID][*]" per spec.md §4.1. A trailing '*'
// sets the H-bit (Repeated), indicating this station has already
// digipeated the frame.
func ParseCallsign(s string) (Callsign, error) {
	m := callsignPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Callsign{}, fmt.Errorf("%w: %q", ErrMalformedCallsign, s)
	}

	base := strings.ToUpper(m[1])
	ssid := 0
	if m[2] != "" {
		var err error
		ssid, err = strconv.Atoi(m[2])
		if err != nil {
			return Callsign{}, fmt.Errorf("%w: %q", ErrMalformedCallsign, s)
		}
	}
	if ssid < 0 || ssid > 15 {
		return Callsign{}, fmt.Errorf("%w: ssid %d out of range in %q", ErrMalformedCallsign, ssid, s)
	}

	return Callsign{
		Base:     base,
		SSID:     uint8(ssid),
		Repeated: m[3] == "*",
		Res0:     true,
		Res1:     true,
	}, nil
}

// MustParseCallsign is ParseCallsign but panics on error, for use with
// compile-time-known callsigns (test fixtures, default configuration).
func MustParseCallsign(s string) Callsign {
	c, err := ParseCallsign(s)
	if err != nil {
		panic(err)
	}
	return c
}

// String formats the callsign as "BASE[-SSID][*]".
func (c Callsign) String() string {
	var b strings.Builder
	b.WriteString(c.Base)
	if c.SSID != 0 {
		fmt.Fprintf(&b, "-%d", c.SSID)
	}
	if c.Repeated {
		b.WriteByte('*')
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler so Callsign can be used
// directly in YAML/JSON configuration.
func (c Callsign) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Callsign) UnmarshalText(text []byte) error {
	parsed, err := ParseCallsign(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Equal reports whether two callsigns identify the same station: base and
// SSID match. The C/H bit and reserved bits are not significant for
// routing (spec.md §3).
func (c Callsign) Equal(o Callsign) bool {
	return c.Base == o.Base && c.SSID == o.SSID
}

// WithRepeated returns a copy of c with the Repeated (H) bit set as given.
func (c Callsign) WithRepeated(repeated bool) Callsign {
	c.Repeated = repeated
	return c
}

// WithSSID returns a copy of c with a different SSID.
func (c Callsign) WithSSID(ssid uint8) Callsign {
	c.SSID = ssid
	return c
}

// encode writes the 7-octet wire form of the address into out (which must
// be len(out) == 7). last marks this as the final address in the path,
// setting the low "extension" bit — a property of the address's position
// in the path, not of the Callsign value itself, so it is a parameter
// here rather than a field (spec.md §4.1: "must be set exactly by the
// path serializer, not the callsign").
func (c Callsign) encode(out []byte, last bool) {
	base := c.Base
	if len(base) > 6 {
		base = base[:6]
	}
	base = base + strings.Repeat(" ", 6-len(base))
	for i := 0; i < 6; i++ {
		out[i] = base[i] << 1
	}

	b := (c.SSID & 0x0F) << 1
	b |= 0x00
	if c.Res0 {
		b |= 0b00100000
	}
	if c.Res1 {
		b |= 0b01000000
	}
	if c.Repeated {
		b |= 0b10000000
	}
	if last {
		b |= 0b00000001
	}
	out[6] = b
}

// decodeCallsign parses a raw 7-octet AX.25 address field, returning the
// Callsign and whether the wire "last address" bit was set.
func decodeCallsign(addr []byte) (Callsign, bool, error) {
	if len(addr) != 7 {
		return Callsign{}, false, fmt.Errorf("%w: address field must be 7 octets", ErrMalformedPath)
	}

	var sb strings.Builder
	for i := 0; i < 6; i++ {
		ch := addr[i] >> 1
		if ch != ' ' {
			sb.WriteByte(ch)
		}
	}
	base := strings.TrimSpace(sb.String())
	if base == "" {
		return Callsign{}, false, fmt.Errorf("%w: empty callsign in address field", ErrMalformedPath)
	}

	ssidByte := addr[6]
	c := Callsign{
		Base:     base,
		SSID:     (ssidByte >> 1) & 0x0F,
		Repeated: ssidByte&0b10000000 != 0,
		Res1:     ssidByte&0b01000000 != 0,
		Res0:     ssidByte&0b00100000 != 0,
	}
	last := ssidByte&0b00000001 != 0
	return c, last, nil
}
