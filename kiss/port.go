package kiss

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/madpsy/ax25aprs/clock"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/xsignal"
)

// DeviceOption configures a Device at construction.
type DeviceOption func(*Device)

// WithResetOnClose sends the TNC reset/return sequence on Close
// (spec.md §4.3/§6, the reset_on_close option).
func WithResetOnClose(reset bool) DeviceOption {
	return func(d *Device) { d.resetOnClose = reset }
}

// WithSendBlock sets the chunking used for outbound writes: writes
// larger than size are split into pieces separated by delay
// (spec.md §4.3, send_block_size/send_block_delay). size <= 0 disables
// chunking.
func WithSendBlock(size int, delay time.Duration) DeviceOption {
	return func(d *Device) {
		d.sendBlockSize = size
		d.sendBlockDelay = delay
	}
}

// WithInitDelay sets the pause Open makes after each step of the
// KISS-mode init sequence: the command-mode exit string, the KISS-mode
// frame, and each parameter frame. The bytes within one step are written
// in a single call, with no pause between them.
func WithInitDelay(d time.Duration) DeviceOption {
	return func(dev *Device) { dev.initDelay = d }
}

// WithInitParams overrides the TNC parameter commands sent on Open, in
// order. Each entry is a (command, value) pair framed individually.
func WithInitParams(params []InitParam) DeviceOption {
	return func(d *Device) { d.initParams = params }
}

// WithClock injects a Clock for deterministic pacing in tests.
func WithClock(c clock.Clock) DeviceOption {
	return func(d *Device) { d.clock = c }
}

// WithLogger attaches a logger.
func WithLogger(log *logging.Logger) DeviceOption {
	return func(d *Device) { d.log = log }
}

// InitParam is one KISS configuration command sent during Open, e.g.
// {CmdTXDelay, 50} (spec.md §4.3/§6).
type InitParam struct {
	Command Command
	Value   byte
}

// DefaultInitParams matches common TNC defaults: TXDELAY 50 (x10ms),
// PERSIST 63, SLOTTIME 10 (x10ms), TXTAIL 5 (x10ms).
var DefaultInitParams = []InitParam{
	{CmdTXDelay, 50},
	{CmdPersist, 63},
	{CmdSlotTime, 10},
	{CmdTXTail, 5},
}

// Port is one of up to 16 logical KISS ports multiplexed over a single
// Device's byte stream (spec.md §4.3/§6).
type Port struct {
	num    uint8
	device *Device

	received xsignal.Signal[[]byte]
}

// Received returns the signal fired once per inbound data frame
// addressed to this port.
func (p *Port) Received() *xsignal.Signal[[]byte] { return &p.received }

// Send transmits data as a KISS data frame on this port. Writes larger
// than the device's configured send-block size are chunked.
func (p *Port) Send(data []byte) error {
	return p.device.send(p.num, data)
}

// Device is a KISS TNC device, multiplexing 1-16 ports over one
// underlying byte stream (spec.md §4.3). It does not itself implement a
// transport: callers supply any io.ReadWriteCloser (serial, TCP, pipe).
type Device struct {
	transport io.ReadWriteCloser
	clock     clock.Clock
	log       *logging.Logger

	resetOnClose   bool
	sendBlockSize  int
	sendBlockDelay time.Duration
	initDelay      time.Duration
	initParams     []InitParam

	mu     sync.Mutex
	ports  map[uint8]*Port
	closed bool
	parser *StreamParser
}

// NewDevice wraps transport in a KISS multiplexer. It does not perform
// I/O until Open is called.
func NewDevice(transport io.ReadWriteCloser, opts ...DeviceOption) *Device {
	d := &Device{
		transport:      transport,
		clock:          clock.Real{},
		log:            logging.Discard(),
		resetOnClose:   true,
		sendBlockSize:  0,
		sendBlockDelay: 0,
		initDelay:      150 * time.Millisecond,
		initParams:     DefaultInitParams,
		ports:          make(map[uint8]*Port),
		parser:         NewStreamParser(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.parser.OnDrop = func(reason error) {
		d.log.Warnf("dropping malformed KISS frame: %v", reason)
	}
	return d
}

// Port returns (creating if necessary) the logical port numbered i
// (0-15).
func (d *Device) Port(i uint8) (*Port, error) {
	if i > 15 {
		return nil, fmt.Errorf("%w: %d", ErrPortOutOfRange, i)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if p, ok := d.ports[i]; ok {
		return p, nil
	}
	p := &Port{num: i, device: d}
	d.ports[i] = p
	return p, nil
}

// Open exits the TNC's command mode (if it's in TNC2/terminal mode) and
// sends the configured KISS init sequence, pacing each parameter by
// initDelay (spec.md §4.3). It does not start the read pump; callers
// should run Device.ReadLoop in its own goroutine after Open returns.
func (d *Device) Open() error {
	exitCmd := []byte("\r\nKISS ON\r\n")
	if _, err := d.transport.Write(exitCmd); err != nil {
		return fmt.Errorf("kiss: exit command mode: %w", err)
	}
	d.sleep(d.initDelay)

	enter := []byte{FEND, byte(CmdReturn) | 0xF0, FEND}
	if _, err := d.transport.Write(enter); err != nil {
		return fmt.Errorf("kiss: enter kiss mode: %w", err)
	}
	d.sleep(d.initDelay)

	for _, p := range d.initParams {
		frame, err := EncodeFrame(Frame{Port: 0, Command: p.Command, Data: []byte{p.Value}})
		if err != nil {
			return err
		}
		if _, err := d.transport.Write(frame); err != nil {
			return fmt.Errorf("kiss: send init param: %w", err)
		}
		d.sleep(d.initDelay)
	}
	return nil
}

func (d *Device) sleep(dur time.Duration) {
	if dur <= 0 {
		return
	}
	done := make(chan struct{})
	d.clock.AfterFunc(dur, func() { close(done) })
	<-done
}

// Close sends the optional reset sequence then closes the underlying
// transport. All queued transmits belonging to interfaces bound to this
// device's ports should be cancelled by the caller (spec.md §5: "KISS
// port close cancels all queued transmits for that port's interfaces" —
// Device has no visibility into interfaces, so ax25.Interface.Close must
// be called alongside this).
func (d *Device) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	if d.resetOnClose {
		frame, _ := EncodeFrame(Frame{Port: 15, Command: CmdReturn})
		_, _ = d.transport.Write(frame)
	}
	return d.transport.Close()
}

// send writes a KISS data frame for port, chunking large writes per
// send_block_size/send_block_delay (spec.md §4.3).
func (d *Device) send(port uint8, data []byte) error {
	frame, err := EncodeFrame(Frame{Port: port, Command: CmdData, Data: data})
	if err != nil {
		return err
	}

	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return fmt.Errorf("kiss: %w", errDeviceClosed)
	}

	if d.sendBlockSize <= 0 || len(frame) <= d.sendBlockSize {
		_, err := d.transport.Write(frame)
		return err
	}

	for len(frame) > 0 {
		n := d.sendBlockSize
		if n > len(frame) {
			n = len(frame)
		}
		if _, err := d.transport.Write(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
		if len(frame) > 0 {
			d.sleep(d.sendBlockDelay)
		}
	}
	return nil
}

var errDeviceClosed = fmt.Errorf("device closed")

// ReadLoop reads from the transport until it errors or returns io.EOF,
// feeding bytes through the KISS stream parser and dispatching complete
// frames to their port's Received signal. It runs until the transport
// is closed, and should be started in its own goroutine.
func (d *Device) ReadLoop() error {
	buf := make([]byte, 4096)
	for {
		n, err := d.transport.Read(buf)
		if n > 0 {
			d.dispatch(buf[:n])
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
	}
}

func (d *Device) dispatch(data []byte) {
	for _, frame := range d.parser.Feed(data) {
		if frame.Command != CmdData {
			// Non-data (hardware/init echo) frames are not traffic.
			continue
		}
		d.mu.Lock()
		p, ok := d.ports[frame.Port]
		d.mu.Unlock()
		if !ok {
			d.log.Debugf("frame for unbound port %d dropped", frame.Port)
			continue
		}
		p.received.Emit(frame.Data)
	}
}
