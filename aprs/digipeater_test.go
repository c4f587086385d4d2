package aprs

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/xsignal"
)

type digiFakePort struct {
	mu       sync.Mutex
	sent     [][]byte
	received xsignal.Signal[[]byte]
}

func (p *digiFakePort) Send(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	p.sent = append(p.sent, cp)
	return nil
}

func (p *digiFakePort) Received() *xsignal.Signal[[]byte] { return &p.received }
func (p *digiFakePort) deliver(data []byte)                { p.received.Emit(data) }

func (p *digiFakePort) sentFrames(t *testing.T) []ax25.Frame {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ax25.Frame
	for _, raw := range p.sent {
		f, err := ax25.Decode(raw)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func newTestDigipeaterSetup(t *testing.T, mycall string, aliases ...string) (*digiFakePort, *ax25.Interface, *Digipeater, *clock.Fake) {
	fake := clock.NewFake(time.Unix(0, 0), 1)
	port := &digiFakePort{}
	iface := ax25.NewInterface(port, ax25.WithClock(fake), ax25.WithCTS(0, 0))
	t.Cleanup(iface.Close)

	g := NewDigipeater()
	for _, a := range aliases {
		g.AddAliases(ax25.MustParseCallsign(a))
	}
	g.Connect(iface, ax25.MustParseCallsign(mycall))
	return port, iface, g, fake
}

func deliverAndWait(t *testing.T, fake *clock.Fake, port *digiFakePort, f ax25.Frame, wantSent int) []ax25.Frame {
	wire, err := ax25.Encode(f)
	require.NoError(t, err)
	port.deliver(wire)

	require.Eventually(t, func() bool {
		fake.Advance(0)
		return len(port.sentFrames(t)) == wantSent
	}, time.Second, time.Millisecond)
	return port.sentFrames(t)
}

func TestDigipeaterDirectAlias(t *testing.T) {
	port, _, _, fake := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"), ax25.MustParseCallsign("VK3RPT"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))

	sent := deliverAndWait(t, fake, port, f, 1)
	repeaters := sent[0].Path.Repeaters()
	require.Len(t, repeaters, 1)
	assert.True(t, repeaters[0].Equal(ax25.MustParseCallsign("VK3RPT")))
	assert.True(t, repeaters[0].Repeated)
}

func TestDigipeaterWidenDecrementsHopCount(t *testing.T) {
	port, _, _, fake := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"), ax25.MustParseCallsign("WIDE2-2"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))

	sent := deliverAndWait(t, fake, port, f, 1)
	repeaters := sent[0].Path.Repeaters()
	require.Len(t, repeaters, 2)
	assert.True(t, repeaters[0].Equal(ax25.MustParseCallsign("VK3RPT")))
	assert.True(t, repeaters[0].Repeated)
	assert.True(t, repeaters[1].Equal(ax25.MustParseCallsign("WIDE2-1")))
	assert.False(t, repeaters[1].Repeated)
}

func TestDigipeaterWidenLastHopConsumesAlias(t *testing.T) {
	port, _, _, fake := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"), ax25.MustParseCallsign("WIDE1-1"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))

	sent := deliverAndWait(t, fake, port, f, 1)
	repeaters := sent[0].Path.Repeaters()
	require.Len(t, repeaters, 1, "last hop should leave only our own callsign, no WIDEn-0 reinserted")
	assert.True(t, repeaters[0].Equal(ax25.MustParseCallsign("VK3RPT")))
}

func TestDigipeaterWidenExhaustedHopsDropped(t *testing.T) {
	port, _, _, _ := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"), ax25.MustParseCallsign("WIDE1-0"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))
	wire, err := ax25.Encode(f)
	require.NoError(t, err)
	port.deliver(wire)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, len(port.sentFrames(t)), "a WIDEn-0 alias has no hops left and must not be digipeated")
}

func TestDigipeaterRepeatsWhenEarlierHopAlreadyUsed(t *testing.T) {
	port, _, _, fake := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"),
		ax25.MustParseCallsign("VK3OTH").WithRepeated(true), ax25.MustParseCallsign("VK3RPT"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))

	sent := deliverAndWait(t, fake, port, f, 1)
	repeaters := sent[0].Path.Repeaters()
	require.Len(t, repeaters, 2)
	assert.True(t, repeaters[1].Repeated, "our alias slot should now be marked repeated")
}

func TestDigipeaterSkipsUntilItsTurn(t *testing.T) {
	port, _, _, _ := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"),
		ax25.MustParseCallsign("VK3OTH"), ax25.MustParseCallsign("VK3RPT"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))
	wire, err := ax25.Encode(f)
	require.NoError(t, err)
	port.deliver(wire)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, len(port.sentFrames(t)), "our alias slot is not next in line until the earlier hop has been used")
}

func TestDigipeaterIgnoresNonMatchingPath(t *testing.T) {
	port, _, _, _ := newTestDigipeaterSetup(t, "VK3RPT")

	path := ax25.NewPath(ax25.MustParseCallsign("APRS"), ax25.MustParseCallsign("VK3SRC-9"), ax25.MustParseCallsign("VK3OTH"))
	f := ax25.NewUIFrame(path, PIDNoLayer3, []byte(">hello"))
	wire, err := ax25.Encode(f)
	require.NoError(t, err)
	port.deliver(wire)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, len(port.sentFrames(t)))
}
