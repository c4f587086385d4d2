package aprs

import (
	"regexp"
	"sync"
	"time"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/xsignal"
)

// widenPattern matches the WIDEn/TRACEn alias family (spec.md §4.9).
var widenPattern = regexp.MustCompile(`^(WIDE|TRACE)([0-9])$`)

// DigipeaterOption configures a Digipeater at construction.
type DigipeaterOption func(*Digipeater)

// WithDigipeatTimeout sets how long a digipeated frame may sit in an
// interface's transmit queue before being dropped instead of sent
// (spec.md §4.9/§8 S8, default 5s).
func WithDigipeatTimeout(d time.Duration) DigipeaterOption {
	return func(g *Digipeater) { g.timeout = d }
}

func withDigipeaterClock(c clock.Clock) DigipeaterOption {
	return func(g *Digipeater) { g.clock = c }
}

// WithDigipeaterLogger attaches a logger.
func WithDigipeaterLogger(log *logging.Logger) DigipeaterOption {
	return func(g *Digipeater) { g.log = log }
}

// Digipeater implements pure WIDEn-N/TRACEn-N UI digipeating (spec.md
// §4.9, C9): it edits the repeater path of unrepeated frames whose path
// names one of its own aliases, and retransmits them on the same
// interface they arrived on. It keeps no record of frames it has already
// digipeated, so a frame heard more than once is digipeated each time its
// path still calls for it. Cross-interface digipeating is out of scope,
// matching the source this is grounded on.
type Digipeater struct {
	timeout time.Duration
	clock   clock.Clock
	log     *logging.Logger

	mu        sync.Mutex
	mydigi    map[ax25.Callsign]bool
	ifaceCall map[*ax25.Interface]ax25.Callsign

	bound map[*ax25.Interface]xsignal.Token
}

// NewDigipeater creates a digipeater responding to no aliases; use
// AddAliases to configure it before connecting an interface.
func NewDigipeater(opts ...DigipeaterOption) *Digipeater {
	g := &Digipeater{
		timeout: 5 * time.Second,
		clock:   clock.Real{},
		log:     logging.Discard(),
		mydigi:    make(map[ax25.Callsign]bool),
		ifaceCall: make(map[*ax25.Interface]ax25.Callsign),
		bound:     make(map[*ax25.Interface]xsignal.Token),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// AddAliases adds one or more digipeat aliases (e.g. own callsign,
// "WIDE1-1").
func (g *Digipeater) AddAliases(calls ...ax25.Callsign) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range calls {
		g.mydigi[c.WithRepeated(false)] = true
	}
}

// RemoveAliases removes previously added aliases.
func (g *Digipeater) RemoveAliases(calls ...ax25.Callsign) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, c := range calls {
		delete(g.mydigi, c.WithRepeated(false))
	}
}

// AliasCount returns the number of aliases currently configured, for
// status reporting.
func (g *Digipeater) AliasCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.mydigi)
}

func (g *Digipeater) hasAlias(c ax25.Callsign) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mydigi[c.WithRepeated(false)]
}

// Connect hooks the digipeater into iface's raw received-frame signal,
// digipeating on the same interface a frame arrived on. mycall, if
// non-zero, is also added to the alias set (spec.md §4.9's addcall
// default).
func (g *Digipeater) Connect(iface *ax25.Interface, mycall ax25.Callsign) {
	var zero ax25.Callsign
	if mycall != zero {
		g.AddAliases(mycall)
	}
	tok := iface.ReceivedMsg.Connect(func(ev ax25.ReceivedEvent) {
		g.onReceive(ev.Interface, ev.Frame)
	})
	g.mu.Lock()
	g.bound[iface] = tok
	g.ifaceCall[iface] = mycall
	g.mu.Unlock()
}

// Disconnect unhooks a previously Connect-ed interface.
func (g *Digipeater) Disconnect(iface *ax25.Interface) {
	g.mu.Lock()
	tok, ok := g.bound[iface]
	delete(g.bound, iface)
	delete(g.ifaceCall, iface)
	g.mu.Unlock()
	if ok {
		iface.ReceivedMsg.Disconnect(tok)
	}
}

func (g *Digipeater) onReceive(iface *ax25.Interface, frame ax25.Frame) {
	if frame.Type != ax25.FrameUI {
		return
	}
	repeaters := frame.Path.Repeaters()

	var prevRepeated = true
	for idx, digi := range repeaters {
		if g.hasAlias(digi) {
			if prevRepeated && !digi.Repeated {
				g.digipeatDirect(iface, frame, idx)
			}
			return
		}
		if m := widenPattern.FindStringSubmatch(digi.Base); m != nil {
			g.digipeatWiden(iface, frame, idx, digi)
			return
		}
		prevRepeated = digi.Repeated
	}
}

// digipeatDirect handles an alias that names this station explicitly
// (not a WIDEn-N counter): mark it repeated by us and resend unchanged.
func (g *Digipeater) digipeatDirect(iface *ax25.Interface, frame ax25.Frame, idx int) {
	mycall := g.myCallFor(iface)
	path := frame.Path.Clone()
	path[2+idx] = mycall.WithRepeated(true)
	g.transmit(iface, frame, path)
}

// digipeatWiden handles a WIDEn-N/TRACEn-N alias: decrement its hop
// count, replace the slot with our own call marked repeated, and
// reinsert the alias with the decremented count if hops remain.
func (g *Digipeater) digipeatWiden(iface *ax25.Interface, frame ax25.Frame, idx int, alias ax25.Callsign) {
	remaining := alias.SSID
	if remaining == 0 {
		g.log.Debugf("hops exhausted for %s, not digipeating", alias)
		return
	}

	mycall := g.myCallFor(iface)
	repeaters := frame.Path.Repeaters()

	path := make(ax25.Path, 0, len(frame.Path)+1)
	path = append(path, frame.Path.Destination(), frame.Path.Source())
	path = append(path, repeaters[:idx]...)
	path = append(path, mycall.WithRepeated(true))
	if remaining > 1 {
		path = append(path, alias.WithSSID(remaining-1).WithRepeated(false))
	}
	path = append(path, repeaters[idx+1:]...)

	g.transmit(iface, frame, path)
}

func (g *Digipeater) myCallFor(iface *ax25.Interface) ax25.Callsign {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ifaceCall[iface]
}

func (g *Digipeater) transmit(iface *ax25.Interface, orig ax25.Frame, path ax25.Path) {
	out := orig
	out.Path = path
	deadline := g.clock.Now().Add(g.timeout)
	if _, err := iface.TransmitBefore(out, deadline, nil); err != nil {
		g.log.Warnf("digipeat transmit failed: %v", err)
	}
}
