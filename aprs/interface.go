package aprs

import (
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/xsignal"
)

// ErrQueueFull is returned by SendMessage when every message id in
// [1, msgid_modulo) is already assigned to a pending handler (spec.md
// §4.7's resolved Open Question: exhausting the id space fails the send
// rather than silently reusing an id).
var ErrQueueFull = fmt.Errorf("aprs: message id space exhausted")

// ListenSpec is one destination-callsign match rule an Interface binds
// to on the underlying ax25.Interface (spec.md §4.6, APRS 1.0.1 p13's
// generic-destination table: AIR*, ALL*, CQ*, WX*, BEACON, …).
type ListenSpec struct {
	pattern *regexp.Regexp
	exact   string
}

// ExactListen matches a destination callsign base exactly (e.g. "BEACON").
func ExactListen(base string) ListenSpec { return ListenSpec{exact: base} }

// PrefixListen matches any destination callsign base starting with prefix
// (e.g. "WX" matches WXABCD).
func PrefixListen(prefix string) ListenSpec {
	return ListenSpec{pattern: regexp.MustCompile("^" + regexp.QuoteMeta(prefix))}
}

// defaultListenDestinations mirrors the APRS 1.0.1 generic destination
// address table.
var defaultListenDestinations = []ListenSpec{
	{pattern: regexp.MustCompile("^AIR")},
	{pattern: regexp.MustCompile("^ALL")},
	{pattern: regexp.MustCompile("^AP")},
	{exact: "BEACON"},
	{pattern: regexp.MustCompile("^CQ")},
	{pattern: regexp.MustCompile("^GPS")},
	{pattern: regexp.MustCompile("^DF")},
	{pattern: regexp.MustCompile("^DGPS")},
	{pattern: regexp.MustCompile("^DRILL")},
	{pattern: regexp.MustCompile("^ID")},
	{pattern: regexp.MustCompile("^JAVA")},
	{pattern: regexp.MustCompile("^MAIL")},
	{pattern: regexp.MustCompile("^MICE")},
	{pattern: regexp.MustCompile("^QST")},
	{pattern: regexp.MustCompile("^QTH")},
	{pattern: regexp.MustCompile("^RTCM")},
	{pattern: regexp.MustCompile("^SKY")},
	{pattern: regexp.MustCompile("^SPACE")},
	{pattern: regexp.MustCompile("^SPC")},
	{pattern: regexp.MustCompile("^SYM")},
	{pattern: regexp.MustCompile("^TEL")},
	{pattern: regexp.MustCompile("^TEST")},
	{pattern: regexp.MustCompile("^TLM")},
	{pattern: regexp.MustCompile("^WX")},
	{pattern: regexp.MustCompile("^ZIP")},
}

// InterfaceOption configures an Interface at construction.
type InterfaceOption func(*Interface)

// WithAPRSDestination overrides the AX.25 destination address used for
// outgoing traffic (default APZAIO).
func WithAPRSDestination(call ax25.Callsign) InterfaceOption {
	return func(a *Interface) { a.aprsDestination = call }
}

// WithAPRSPath sets the default digipeater path for outgoing messages.
func WithAPRSPath(path []ax25.Callsign) InterfaceOption {
	return func(a *Interface) { a.aprsPath = path }
}

// WithAltnets adds additional destination-match rules beyond the
// standard APRS generic destinations (spec.md §4.6 listen_altnets).
func WithAltnets(alt []ListenSpec) InterfaceOption {
	return func(a *Interface) { a.altnets = alt }
}

// WithMsgIDModulo sets the exclusive upper bound of allocated message
// ids (spec.md §4.7 default 1000; ids are drawn from [1, modulo)).
func WithMsgIDModulo(modulo int) InterfaceOption {
	return func(a *Interface) { a.msgidModulo = modulo }
}

// WithDeduplicationExpiry sets how long a frame hash is remembered
// (spec.md §4.6 default 28s).
func WithDeduplicationExpiry(d time.Duration) InterfaceOption {
	return func(a *Interface) { a.dedupExpiry = d }
}

// WithInterfaceClock injects a Clock for deterministic tests.
func WithInterfaceClock(c clock.Clock) InterfaceOption {
	return func(a *Interface) { a.clock = c }
}

// WithInterfaceLogger attaches a logger.
func WithInterfaceLogger(log *logging.Logger) InterfaceOption {
	return func(a *Interface) { a.log = log }
}

// WithHandlerOptions applies opts to every MessageHandler this Interface
// creates.
func WithHandlerOptions(opts ...HandlerOption) InterfaceOption {
	return func(a *Interface) { a.handlerOpts = append(a.handlerOpts, opts...) }
}

// ReceivedMessage is the payload of Interface.ReceivedMsg: any decoded
// APRS frame not consumed internally as a response to a pending
// MessageHandler (spec.md §4.7's received_msg signal).
type ReceivedMessage struct {
	Frame Frame
}

// Interface is the APRS application layer bound to one AX.25 interface
// (spec.md §4.7, C7): message id allocation, dedup, ack/rej correlation
// to pending MessageHandlers, and delivery of everything else via
// ReceivedMsg.
type Interface struct {
	ax25iface *ax25.Interface
	mycall    ax25.Callsign

	aprsDestination ax25.Callsign
	aprsPath        []ax25.Callsign
	altnets         []ListenSpec

	msgidModulo int
	dedupExpiry time.Duration

	clock clock.Clock
	log   *logging.Logger

	handlerOpts []HandlerOption

	dedup *DedupCache

	mu      sync.Mutex
	nextID  int
	pending map[string]*MessageHandler

	ReceivedMsg xsignal.Signal[ReceivedMessage]

	bindToken int
}

// NewInterface builds an APRS Interface over ax25iface, listening for
// traffic addressed to mycall and to the standard APRS generic
// destinations.
func NewInterface(ax25iface *ax25.Interface, mycall ax25.Callsign, opts ...InterfaceOption) *Interface {
	a := &Interface{
		ax25iface:       ax25iface,
		mycall:          mycall,
		aprsDestination: ax25.MustParseCallsign("APZAIO"),
		aprsPath: []ax25.Callsign{
			ax25.MustParseCallsign("WIDE1-1"),
			ax25.MustParseCallsign("WIDE2-1"),
		},
		msgidModulo: 1000,
		dedupExpiry: 28 * time.Second,
		clock:       clock.Real{},
		log:         logging.Discard(),
		pending:     make(map[string]*MessageHandler),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.dedup = NewDedupCache(a.dedupExpiry, a.clock)

	a.bindToken = ax25iface.Bind(mycall.Base, ssidPtr(mycall.SSID), a.onReceive)
	for _, spec := range append(append([]ListenSpec{}, defaultListenDestinations...), a.altnets...) {
		if spec.pattern != nil {
			ax25iface.Router().BindRegex(spec.pattern, nil, a.onReceive)
		} else {
			ax25iface.Bind(spec.exact, nil, a.onReceive)
		}
	}
	return a
}

func ssidPtr(v uint8) *uint8 { return &v }

func (a *Interface) onReceive(uiFrame ax25.Frame, _ []string) {
	if a.dedup.Seen(uiFrame) {
		a.log.Debugf("ignoring duplicate frame from %s", uiFrame.Path.Source())
		return
	}

	msg, err := Decode(uiFrame)
	if err != nil {
		a.log.Debugf("dropping unparseable APRS frame: %v", err)
		return
	}

	switch m := msg.(type) {
	case *AckFrame:
		if m.Addressee.Equal(a.mycall) {
			a.deliverResponse(m.MsgID, true)
			return
		}
	case *RejectFrame:
		if m.Addressee.Equal(a.mycall) {
			a.deliverResponse(m.MsgID, false)
			return
		}
	}

	a.ReceivedMsg.Emit(ReceivedMessage{Frame: msg})
}

func (a *Interface) deliverResponse(msgid string, ack bool) {
	a.mu.Lock()
	h, ok := a.pending[msgid]
	if ok {
		delete(a.pending, msgid)
	}
	a.mu.Unlock()
	if !ok {
		a.log.Debugf("response to unknown message id %s", msgid)
		return
	}
	if ack {
		h.HandleAck()
	} else {
		h.HandleReject()
	}
}

// SendMessage allocates a message id and starts a MessageHandler that
// sends text to addressee over path (or the interface's default path if
// path is nil), retrying until acked, rejected, cancelled, or the retry
// budget is exhausted.
func (a *Interface) SendMessage(addressee ax25.Callsign, text string, path []ax25.Callsign) (*MessageHandler, error) {
	if path == nil {
		path = a.aprsPath
	}
	msgid, err := a.allocMsgID()
	if err != nil {
		return nil, err
	}

	full := ax25.NewPath(a.aprsDestination, a.mycall, path...)
	h := newMessageHandler(a, full, addressee, text, msgid, a.handlerOpts...)
	h.Done.Connect(func(Outcome) {
		a.mu.Lock()
		delete(a.pending, msgid)
		a.mu.Unlock()
	})

	a.mu.Lock()
	a.pending[msgid] = h
	a.mu.Unlock()

	h.Send()
	return h, nil
}

// SendOneShot sends text to addressee without expecting or tracking a
// reply (spec.md §4.7's oneshot mode, used by SendResponse for ACK/REJ
// responses).
func (a *Interface) SendOneShot(addressee ax25.Callsign, text string, path []ax25.Callsign) error {
	if path == nil {
		path = a.aprsPath
	}
	full := ax25.NewPath(a.aprsDestination, a.mycall, path...)
	frame, err := NewMessageFrame(full, addressee, text, "", ReplyAck{})
	if err != nil {
		return err
	}
	_, err = a.ax25iface.Transmit(frame, nil)
	return err
}

// SendResponse acks (or rejects) a received message that carried a
// message id with an "ack<msgid>"/"rej<msgid>" message addressed to the
// message's sender, replying along the reversed repeater path (spec.md
// §4.6's send_response, "no-op if the message carried no message id").
func (a *Interface) SendResponse(msg *MessageFrame, ack bool) error {
	if msg.MsgID == "" {
		return nil
	}
	text := "ack" + msg.MsgID
	if !ack {
		text = "rej" + msg.MsgID
	}
	return a.SendOneShot(msg.Source(), text, reversePath(msg.UI().Path.Repeaters()))
}

func reversePath(repeaters []ax25.Callsign) []ax25.Callsign {
	out := make([]ax25.Callsign, len(repeaters))
	for i, r := range repeaters {
		out[len(repeaters)-1-i] = r.WithRepeated(false)
	}
	return out
}

func (a *Interface) allocMsgID() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for tries := 0; tries < a.msgidModulo; tries++ {
		a.nextID++
		if a.nextID >= a.msgidModulo {
			a.nextID = 1
		}
		id := fmt.Sprintf("%d", a.nextID)
		if _, taken := a.pending[id]; !taken {
			return id, nil
		}
	}
	return "", ErrQueueFull
}

// Close releases this interface's binding on the underlying ax25.Interface.
func (a *Interface) Close() {
	a.ax25iface.Unbind(a.bindToken)
}
