package ax25

import "github.com/madpsy/ax25aprs/xsignal"

// Port is the abstract transport an Interface schedules transmissions
// over: spec.md §6's "KissPort.received: Signal<bytes>; KissPort.send
// (bytes)". kiss.Port implements this; tests use a fake.
type Port interface {
	Send(data []byte) error
	Received() *xsignal.Signal[[]byte]
}
