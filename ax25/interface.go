package ax25

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/xsignal"
)

const (
	stateIdle        = "idle"
	stateRxCooldown  = "rx_cooldown"
	stateTxCooldown  = "tx_cooldown"
	eventReceived    = "received"
	eventTransmitted = "transmitted"
	eventExpire      = "expire"
)

// defaults per spec.md §4.5.
const (
	DefaultCTSDelay = 100 * time.Millisecond
	DefaultCTSRand  = 100 * time.Millisecond
)

// ReceivedEvent is the payload of Interface.ReceivedMsg, fired for every
// successfully decoded inbound frame regardless of destination (spec.md
// §4.5).
type ReceivedEvent struct {
	Interface *Interface
	Frame     Frame
}

// SentFunc is invoked once a queued frame has been handed to the KISS
// port (spec.md §4.5 step 4).
type SentFunc func(iface *Interface, frame Frame)

// TxHandle identifies a queued (possibly already sent) transmission for
// cancellation, matched by identity rather than by frame contents
// (spec.md §4.5's cancel_transmit semantics).
type TxHandle struct {
	frame     Frame
	onSent    SentFunc
	cancelled bool

	// Deadline, if non-zero, causes pump to silently drop the frame
	// instead of sending it once the clock passes this point (spec.md
	// §4.9/§8 S8: digipeated frames queued too long are dropped rather
	// than sent stale).
	Deadline time.Time
}

// InterfaceOption configures an Interface at construction.
type InterfaceOption func(*Interface)

// WithCTS overrides the CSMA hold-off delay and randomisation window.
func WithCTS(delay, jitter time.Duration) InterfaceOption {
	return func(i *Interface) {
		i.ctsDelay = delay
		i.ctsRand = jitter
	}
}

// WithClock injects a Clock, primarily for deterministic tests.
func WithClock(c clock.Clock) InterfaceOption {
	return func(i *Interface) { i.clock = c }
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) InterfaceOption {
	return func(i *Interface) { i.log = log }
}

// Interface is the AX.25 CSMA-style transmit scheduler and receive
// dispatcher of spec.md §4.5 (C5): a single logical event loop per
// interface, matching one KISS port, with a FIFO transmit queue and a
// clear-to-send hold-off timer that backs off whenever the medium was
// just used for transmission or reception.
type Interface struct {
	port    Port
	router  *Router
	clock   clock.Clock
	log     *logging.Logger
	ctsDelay time.Duration
	ctsRand  time.Duration

	ReceivedMsg xsignal.Signal[ReceivedEvent]

	fsm *fsm.FSM

	cmds   chan func()
	done   chan struct{}
	queue  []*TxHandle
	timer  clock.Timer
}

// NewInterface wraps port with a CSMA scheduler and starts its event
// loop goroutine.
func NewInterface(port Port, opts ...InterfaceOption) *Interface {
	i := &Interface{
		port:     port,
		router:   NewRouter(),
		clock:    clock.Real{},
		log:      logging.Discard(),
		ctsDelay: DefaultCTSDelay,
		ctsRand:  DefaultCTSRand,
		cmds:     make(chan func(), 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(i)
	}

	i.fsm = fsm.NewFSM(stateIdle, fsm.Events{
		{Name: eventReceived, Src: []string{stateIdle, stateRxCooldown, stateTxCooldown}, Dst: stateRxCooldown},
		{Name: eventTransmitted, Src: []string{stateIdle, stateRxCooldown, stateTxCooldown}, Dst: stateTxCooldown},
		{Name: eventExpire, Src: []string{stateRxCooldown, stateTxCooldown}, Dst: stateIdle},
	}, fsm.Callbacks{
		"enter_" + stateRxCooldown: func(ctx context.Context, e *fsm.Event) { i.armCooldown() },
		"enter_" + stateTxCooldown: func(ctx context.Context, e *fsm.Event) { i.armCooldown() },
		"enter_" + stateIdle:       func(ctx context.Context, e *fsm.Event) { i.pump() },
	})

	port.Received().Connect(func(data []byte) { i.enqueueCmd(func() { i.onReceive(data) }) })

	go i.loop()
	return i
}

func (i *Interface) loop() {
	for {
		select {
		case cmd := <-i.cmds:
			cmd()
		case <-i.done:
			return
		}
	}
}

// enqueueCmd posts a closure to run on the interface's single event-loop
// goroutine, the Go rendition of spec.md §5's "single logical event
// loop" requirement.
func (i *Interface) enqueueCmd(fn func()) {
	select {
	case i.cmds <- fn:
	case <-i.done:
	}
}

func (i *Interface) armCooldown() {
	if i.timer != nil {
		i.timer.Stop()
	}
	delay := i.ctsDelay
	if i.ctsRand > 0 {
		delay += time.Duration(i.clock.Float64() * float64(i.ctsRand))
	}
	i.timer = i.clock.AfterFunc(delay, func() {
		i.enqueueCmd(func() {
			_ = i.fsm.Event(context.Background(), eventExpire)
		})
	})
}

// Bind registers recv for frames whose destination callsign base matches
// pattern exactly.
func (i *Interface) Bind(pattern string, ssid *uint8, recv Receiver) int {
	return i.router.Bind(pattern, ssid, recv)
}

// Router exposes the underlying router, used for regex binds
// (Router.BindRegex) and direct dispatch introspection.
func (i *Interface) Router() *Router { return i.router }

// Unbind removes a binding previously returned by Bind.
func (i *Interface) Unbind(token int) { i.router.Unbind(token) }

// Transmit enqueues frame for transmission. Frames submitted to a single
// Interface are sent in submission order relative to each other, modulo
// cancellation (spec.md §5). onSent, if non-nil, is invoked once the
// frame has been handed to the KISS port.
func (i *Interface) Transmit(frame Frame, onSent SentFunc) (*TxHandle, error) {
	if _, err := Encode(frame); err != nil {
		return nil, err
	}
	h := &TxHandle{frame: frame, onSent: onSent}
	i.enqueueCmd(func() {
		i.log.Debugf("queueing frame for %s", frame.Path.Destination())
		i.queue = append(i.queue, h)
		if i.fsm.Current() == stateIdle {
			i.pump()
		}
	})
	return h, nil
}

// TransmitBefore is Transmit with an expiry: if the frame is still
// queued once the clock passes deadline, it is dropped instead of sent
// (spec.md §4.9's digipeat_timeout).
func (i *Interface) TransmitBefore(frame Frame, deadline time.Time, onSent SentFunc) (*TxHandle, error) {
	if _, err := Encode(frame); err != nil {
		return nil, err
	}
	h := &TxHandle{frame: frame, onSent: onSent, Deadline: deadline}
	i.enqueueCmd(func() {
		i.queue = append(i.queue, h)
		if i.fsm.Current() == stateIdle {
			i.pump()
		}
	})
	return h, nil
}

// RunLocked posts fn to run on the interface's own event-loop goroutine,
// letting callers outside the package (such as message retry timers)
// safely touch shared state without racing transmit/receive
// processing.
func (i *Interface) RunLocked(fn func()) {
	i.enqueueCmd(fn)
}

// CancelTransmit marks h cancelled. It is best-effort: a no-op if the
// frame has already been sent (spec.md §5's cancellation semantics).
func (i *Interface) CancelTransmit(h *TxHandle) {
	i.enqueueCmd(func() {
		h.cancelled = true
	})
}

// pump runs on the event-loop goroutine: if the medium is idle and the
// queue non-empty, send the head frame and transition to TX_COOLDOWN
// (spec.md §4.5 steps 1-4).
func (i *Interface) pump() {
	for {
		if i.fsm.Current() != stateIdle || len(i.queue) == 0 {
			return
		}
		h := i.queue[0]
		i.queue = i.queue[1:]
		if h.cancelled {
			continue
		}
		if !h.Deadline.IsZero() && i.clock.Now().After(h.Deadline) {
			i.log.Debugf("dropping expired queued frame for %s", h.frame.Path.Destination())
			continue
		}

		raw, err := Encode(h.frame)
		if err != nil {
			i.log.Errorf("encode failed for queued frame: %v", err)
			continue
		}
		if err := i.port.Send(raw); err != nil {
			i.log.Errorf("port send failed: %v", err)
			continue
		}

		_ = i.fsm.Event(context.Background(), eventTransmitted)
		if h.onSent != nil {
			h.onSent(i, h.frame)
		}
		return
	}
}

// onReceive runs on the event-loop goroutine for every inbound byte
// frame from the KISS port. Decode failures are logged and dropped but
// still count as medium activity (spec.md §4.5/§7).
func (i *Interface) onReceive(data []byte) {
	// A reception while already in rx_cooldown is a self-transition, which
	// looplab/fsm reports as NoTransitionError without re-running the enter
	// callback, so the hold-off timer is restarted here instead.
	var noTransition fsm.NoTransitionError
	if err := i.fsm.Event(context.Background(), eventReceived); errors.As(err, &noTransition) {
		i.armCooldown()
	}

	frame, err := Decode(data)
	if err != nil {
		i.log.Warnf("dropping undecodable frame: %v", err)
		return
	}

	i.ReceivedMsg.Emit(ReceivedEvent{Interface: i, Frame: frame})
	i.router.Dispatch(frame)
}

// Close stops the event-loop goroutine. Queued transmits are discarded.
func (i *Interface) Close() {
	select {
	case <-i.done:
	default:
		close(i.done)
	}
	if i.timer != nil {
		i.timer.Stop()
	}
}
