package aprs

import (
	"context"
	"errors"
	"time"

	"github.com/looplab/fsm"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/xsignal"
)

// Outcome is the terminal result delivered to a MessageHandler's Done
// signal (spec.md §4.7/§8).
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeReject
	OutcomeTimeout
	OutcomeCancel
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeReject:
		return "reject"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// HandlerOption configures a MessageHandler at construction.
type HandlerOption func(*MessageHandler)

// WithRetransmitCount sets the number of retransmits attempted before
// giving up (spec.md §4.7: default 2, distinct from the aioax25 source's
// default of 4).
func WithRetransmitCount(n int) HandlerOption {
	return func(h *MessageHandler) { h.retransmitCount = n }
}

// WithRetransmitTimeout sets the base retry timeout and its random
// jitter ceiling: each attempt waits base + U(0, rand) (spec.md §4.7,
// default base=30s, rand=5s — the rand default differs from the
// aioax25 source's 10s).
func WithRetransmitTimeout(base, rnd time.Duration) HandlerOption {
	return func(h *MessageHandler) {
		h.retransmitTimeout = base
		h.retransmitTimeoutRand = rnd
	}
}

// WithRetransmitTimeoutScale sets the multiplier applied to the timeout
// after each retry (spec.md §4.7, default 1.5).
func WithRetransmitTimeoutScale(scale float64) HandlerOption {
	return func(h *MessageHandler) { h.retransmitTimeoutScale = scale }
}

func withHandlerClock(c clock.Clock) HandlerOption {
	return func(h *MessageHandler) { h.clock = c }
}

func withHandlerLogger(log *logging.Logger) HandlerOption {
	return func(h *MessageHandler) { h.log = log }
}

// MessageHandler drives the send/retry/ack lifecycle of one outgoing
// confirmable message (spec.md §4.7's C8): INIT -> SEND -> WAIT, looping
// back to WAIT on retry until SUCCESS, REJECT, TIMEOUT or CANCEL is
// reached. Each instance is single-use: once Done fires, it is inert.
type MessageHandler struct {
	iface     *Interface
	path      ax25.Path
	addressee ax25.Callsign
	text      string
	msgid     string

	clock clock.Clock
	log   *logging.Logger

	retransmitCount        int
	retransmitTimeout      time.Duration
	retransmitTimeoutRand  time.Duration
	retransmitTimeoutScale float64

	fsm *fsm.FSM

	attempt int
	timer   clock.Timer

	Done xsignal.Signal[Outcome]
}

func newMessageHandler(iface *Interface, path ax25.Path, addressee ax25.Callsign, text, msgid string, opts ...HandlerOption) *MessageHandler {
	h := &MessageHandler{
		iface:                  iface,
		path:                   path,
		addressee:              addressee,
		text:                   text,
		msgid:                  msgid,
		clock:                  clock.Real{},
		log:                    logging.Discard(),
		retransmitCount:        2,
		retransmitTimeout:      30 * time.Second,
		retransmitTimeoutRand:  5 * time.Second,
		retransmitTimeoutScale: 1.5,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.fsm = fsm.NewFSM(
		"init",
		fsm.Events{
			{Name: "send", Src: []string{"init", "wait"}, Dst: "wait"},
			{Name: "ack", Src: []string{"wait"}, Dst: "success"},
			{Name: "reject", Src: []string{"wait"}, Dst: "reject"},
			{Name: "retry", Src: []string{"wait"}, Dst: "wait"},
			{Name: "timeout", Src: []string{"wait"}, Dst: "timeout"},
			{Name: "cancel", Src: []string{"init", "wait"}, Dst: "cancel"},
		},
		fsm.Callbacks{
			"enter_wait":    func(_ context.Context, _ *fsm.Event) { h.transmit() },
			"enter_success": func(_ context.Context, _ *fsm.Event) { h.finish(OutcomeSuccess) },
			"enter_reject":  func(_ context.Context, _ *fsm.Event) { h.finish(OutcomeReject) },
			"enter_timeout": func(_ context.Context, _ *fsm.Event) { h.finish(OutcomeTimeout) },
			"enter_cancel":  func(_ context.Context, _ *fsm.Event) { h.finish(OutcomeCancel) },
		},
	)
	return h
}

// Send starts the handler: transmits the message and arms the first
// retry timer.
func (h *MessageHandler) Send() {
	_ = h.fsm.Event(context.Background(), "send")
}

// Cancel aborts a pending handler without a terminal ack/reject/timeout.
func (h *MessageHandler) Cancel() {
	if h.fsm.Is("success") || h.fsm.Is("reject") || h.fsm.Is("timeout") || h.fsm.Is("cancel") {
		return
	}
	h.stopTimer()
	_ = h.fsm.Event(context.Background(), "cancel")
}

// HandleAck delivers an ack matching this handler's message id.
func (h *MessageHandler) HandleAck() {
	if !h.fsm.Is("wait") {
		return
	}
	h.stopTimer()
	_ = h.fsm.Event(context.Background(), "ack")
}

// HandleReject delivers a rej matching this handler's message id.
func (h *MessageHandler) HandleReject() {
	if !h.fsm.Is("wait") {
		return
	}
	h.stopTimer()
	_ = h.fsm.Event(context.Background(), "reject")
}

func (h *MessageHandler) transmit() {
	frame, err := NewMessageFrame(h.path, h.addressee, h.text, h.msgid, ReplyAck{})
	if err != nil {
		h.log.Errorf("message handler: build frame: %v", err)
		_ = h.fsm.Event(context.Background(), "timeout")
		return
	}
	if _, err := h.iface.ax25iface.Transmit(frame, nil); err != nil {
		h.log.Warnf("message handler: transmit msgid=%s: %v", h.msgid, err)
	}
	h.armTimer()
}

func (h *MessageHandler) armTimer() {
	timeout := h.currentTimeout()
	h.timer = h.clock.AfterFunc(timeout, func() {
		h.iface.ax25iface.RunLocked(h.onTimerFired)
	})
}

func (h *MessageHandler) onTimerFired() {
	if !h.fsm.Is("wait") {
		return
	}
	if h.attempt >= h.retransmitCount {
		_ = h.fsm.Event(context.Background(), "timeout")
		return
	}
	h.attempt++
	h.retransmitTimeout = time.Duration(float64(h.retransmitTimeout) * h.retransmitTimeoutScale)
	// looplab/fsm reports a wait -> wait transition as NoTransitionError
	// without re-running enter_wait, so retransmit and re-arm here.
	var noTransition fsm.NoTransitionError
	if err := h.fsm.Event(context.Background(), "retry"); errors.As(err, &noTransition) {
		h.transmit()
	}
}

func (h *MessageHandler) currentTimeout() time.Duration {
	jitter := time.Duration(h.clock.Float64() * float64(h.retransmitTimeoutRand))
	return h.retransmitTimeout + jitter
}

func (h *MessageHandler) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

func (h *MessageHandler) finish(outcome Outcome) {
	h.stopTimer()
	h.Done.Emit(outcome)
}
