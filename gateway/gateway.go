// Package gateway wires the config, transport, ax25, aprs and
// digipeater packages into a running station: one KISS device per
// configured interface, each carrying an AX.25 scheduler and an APRS
// application layer, with a single digipeater shared across all of
// them. This is the composition root cmd/ax25gwd drives.
package gateway

import (
	"fmt"
	"io"
	"sync"

	"github.com/madpsy/ax25aprs/aprs"
	"github.com/madpsy/ax25aprs/ax25"
	"github.com/madpsy/ax25aprs/config"
	"github.com/madpsy/ax25aprs/internal/logging"
	"github.com/madpsy/ax25aprs/kiss"
	"github.com/madpsy/ax25aprs/transport/serial"
	"github.com/madpsy/ax25aprs/transport/tcpkiss"
)

// Link bundles the layers built for one configured interface.
type Link struct {
	Name   string
	MyCall ax25.Callsign
	device *kiss.Device
	AX25   *ax25.Interface
	APRS   *aprs.Interface
}

func (l *Link) close() {
	l.AX25.Close()
	l.APRS.Close()
	_ = l.device.Close()
}

// Station owns every configured Link plus the digipeater shared across
// all of them.
type Station struct {
	log        *logging.Logger
	cfg        config.Config
	Digipeater *aprs.Digipeater

	mu    sync.Mutex
	links []*Link
}

// New builds a Station from cfg and starts I/O on every configured
// interface (opening transports, sending the KISS init sequence, and
// starting each device's read loop).
func New(cfg config.Config, log *logging.Logger) (*Station, error) {
	if log == nil {
		log = logging.Discard()
	}
	s := &Station{
		log: log,
		cfg: cfg,
		Digipeater: aprs.NewDigipeater(
			aprs.WithDigipeatTimeout(cfg.Digipeater.Timeout()),
			aprs.WithDigipeaterLogger(log.With("digipeater")),
		),
	}
	s.Digipeater.AddAliases(cfg.Digipeater.AliasCallsigns()...)

	for _, ic := range cfg.Interfaces {
		link, err := s.buildLink(ic, log)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("gateway: building interface %s: %w", ic.Name, err)
		}
		s.links = append(s.links, link)
		if cfg.Digipeater.Enabled {
			s.Digipeater.Connect(link.AX25, ic.Call())
		}
	}
	return s, nil
}

func (s *Station) buildLink(ic config.InterfaceConfig, log *logging.Logger) (*Link, error) {
	ifaceLog := log.With(ic.Name)

	var transport io.ReadWriteCloser
	switch ic.Transport {
	case config.TransportSerial:
		port, err := serial.Open(serial.DefaultConfig(ic.Device, ic.Baud))
		if err != nil {
			return nil, err
		}
		transport = port
	case config.TransportTCP:
		conn, err := tcpkiss.Dial(tcpkiss.Config{Addr: ic.Addr})
		if err != nil {
			return nil, err
		}
		transport = conn
	default:
		return nil, fmt.Errorf("unknown transport %q", ic.Transport)
	}

	device := kiss.NewDevice(transport, kiss.WithLogger(ifaceLog.With("kiss")))
	if err := device.Open(); err != nil {
		transport.Close()
		return nil, err
	}
	go func() {
		if err := device.ReadLoop(); err != nil {
			ifaceLog.Errorf("kiss read loop ended: %v", err)
		}
	}()

	port, err := device.Port(ic.KissPort)
	if err != nil {
		return nil, err
	}

	ctsDelay, ctsRand := ic.CTSDelay(), ic.CTSRand()
	if ctsDelay == 0 {
		ctsDelay = ax25.DefaultCTSDelay
	}
	if ctsRand == 0 {
		ctsRand = ax25.DefaultCTSRand
	}
	ax25iface := ax25.NewInterface(port,
		ax25.WithCTS(ctsDelay, ctsRand),
		ax25.WithLogger(ifaceLog.With("ax25")),
	)

	aprsiface := aprs.NewInterface(ax25iface, ic.Call(),
		aprs.WithMsgIDModulo(s.cfg.Message.MsgIDModulo),
		aprs.WithDeduplicationExpiry(s.cfg.Message.DedupExpiry()),
		aprs.WithInterfaceLogger(ifaceLog.With("aprs")),
		aprs.WithHandlerOptions(
			aprs.WithRetransmitCount(s.cfg.Message.RetransmitCount),
			aprs.WithRetransmitTimeout(s.cfg.Message.RetransmitTimeout(), s.cfg.Message.RetransmitTimeoutRand()),
			aprs.WithRetransmitTimeoutScale(s.cfg.Message.RetransmitTimeoutScale),
		),
	)

	return &Link{
		Name:   ic.Name,
		MyCall: ic.Call(),
		device: device,
		AX25:   ax25iface,
		APRS:   aprsiface,
	}, nil
}

// SetDigipeaterAliases replaces the digipeater's alias set with
// aliases (plus each link's own callsign), used for fsnotify-driven
// config hot-reload in cmd/ax25gwd.
func (s *Station) SetDigipeaterAliases(aliases []ax25.Callsign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Digipeater.RemoveAliases(s.cfg.Digipeater.AliasCallsigns()...)
	s.cfg.Digipeater.Aliases = make([]config.WireCallsign, 0, len(aliases))
	for _, c := range aliases {
		s.cfg.Digipeater.Aliases = append(s.cfg.Digipeater.Aliases, config.NewWireCallsign(c))
	}
	s.Digipeater.AddAliases(aliases...)
	for _, l := range s.links {
		s.Digipeater.AddAliases(l.MyCall)
	}
}

// Links returns the station's configured links, for status reporting.
func (s *Station) Links() []*Link {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Link, len(s.links))
	copy(out, s.links)
	return out
}

// Close tears down every link's device, AX.25 and APRS interfaces.
func (s *Station) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.links {
		l.close()
	}
}
