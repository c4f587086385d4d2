package ax25

import "github.com/sigurn/crc16"

// fcsParams describes CRC-16/X.25 (poly 0x1021, init 0xFFFF, reflected
// in/out, final XOR 0xFFFF) per spec.md §3. Built from a literal Params
// rather than relying on a predefined table name, since those vary
// between crc16 package versions.
var fcsParams = crc16.Params{
	Poly:   0x1021,
	Init:   0xFFFF,
	RefIn:  true,
	RefOut: true,
	XorOut: 0xFFFF,
	Check:  0x906E,
	Name:   "CRC-16/X-25",
}

var fcsTable = crc16.MakeTable(fcsParams)

// computeFCS computes the AX.25 frame check sequence over data (every
// octet preceding the FCS field itself).
func computeFCS(data []byte) uint16 {
	crc := crc16.Init(fcsTable)
	crc = crc16.Update(crc, data, fcsTable)
	return crc16.Complete(crc, fcsTable)
}
