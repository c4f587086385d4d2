// Package serial adapts go.bug.st/serial ports to the io.ReadWriteCloser
// a kiss.Device expects as its transport.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// Config holds the serial line parameters (spec.md's transport
// configuration surface).
type Config struct {
	Port        string
	BaudRate    int
	DataBits    int
	Parity      serial.Parity
	StopBits    serial.StopBits
	ReadTimeout time.Duration
}

// DefaultConfig matches common TNC serial defaults: 8N1 at the given
// baud rate, with a short read timeout so ReadLoop can notice a closed
// port promptly.
func DefaultConfig(port string, baud int) Config {
	return Config{
		Port:        port,
		BaudRate:    baud,
		DataBits:    8,
		Parity:      serial.NoParity,
		StopBits:    serial.OneStopBit,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// Port wraps a serial.Port to satisfy io.ReadWriteCloser cleanly (the
// underlying library's Port interface already does, but Open here
// centralises the mode/timeout set-up so callers don't repeat it).
type Port struct {
	serial.Port
}

// Open opens and configures a serial port per cfg.
func Open(cfg Config) (*Port, error) {
	sp, err := serial.Open(cfg.Port, &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: cfg.DataBits,
		Parity:   cfg.Parity,
		StopBits: cfg.StopBits,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := sp.SetReadTimeout(cfg.ReadTimeout); err != nil {
			sp.Close()
			return nil, fmt.Errorf("serial: set read timeout: %w", err)
		}
	}
	return &Port{Port: sp}, nil
}
