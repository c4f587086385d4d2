// Package config loads the daemon configuration: a YAML file (the
// on-disk source of truth, in the style of doismellburning-samoyed's
// tocalls.yaml loader) overlaid with command-line flags parsed by
// github.com/spf13/pflag, which take priority when set explicitly.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/madpsy/ax25aprs/ax25"
)

// WireCallsign is a YAML-friendly wrapper around ax25.Callsign: yaml.v3
// doesn't consult encoding.TextMarshaler/TextUnmarshaler the way
// encoding/json does, so the "BASE-SSID" string form needs its own
// Marshaler/Unmarshaler here rather than on ax25.Callsign itself
// (keeping the ax25 package free of a YAML dependency).
type WireCallsign struct {
	ax25.Callsign
}

// NewWireCallsign wraps c for use in a Config's YAML-backed fields.
func NewWireCallsign(c ax25.Callsign) WireCallsign { return WireCallsign{Callsign: c} }

func (c WireCallsign) MarshalYAML() (interface{}, error) {
	return c.String(), nil
}

func (c *WireCallsign) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := ax25.ParseCallsign(s)
	if err != nil {
		return err
	}
	c.Callsign = parsed
	return nil
}

// Transport selects the KISS byte-stream carrier for an interface.
type Transport string

const (
	TransportSerial Transport = "serial"
	TransportTCP    Transport = "tcp"
)

// InterfaceConfig describes one KISS/AX.25/APRS interface stack. Timing
// knobs are plain milliseconds rather than time.Duration, the way the
// rest of this stack's YAML-facing config stores durations as bare
// numbers and converts at the point of use (yaml.v3 has no built-in
// support for parsing "100ms"-style strings into time.Duration).
type InterfaceConfig struct {
	Name       string       `yaml:"name"`
	Transport  Transport    `yaml:"transport"`
	Device     string       `yaml:"device"`    // serial port path, e.g. /dev/ttyUSB0
	Baud       int          `yaml:"baud"`      // serial only
	Addr       string       `yaml:"addr"`      // tcp only, host:port
	KissPort   uint8        `yaml:"kiss_port"` // logical KISS port, 0-15
	MyCall     WireCallsign `yaml:"mycall"`
	CTSDelayMS int          `yaml:"cts_delay_ms"`
	CTSRandMS  int          `yaml:"cts_rand_ms"`
}

// CTSDelay returns the configured CTS hold-off as a time.Duration.
func (i InterfaceConfig) CTSDelay() time.Duration {
	return time.Duration(i.CTSDelayMS) * time.Millisecond
}

// CTSRand returns the configured CTS jitter window as a time.Duration.
func (i InterfaceConfig) CTSRand() time.Duration {
	return time.Duration(i.CTSRandMS) * time.Millisecond
}

// DigipeaterConfig describes the aliases one Digipeater listens for.
// The alias list is what cmd/ax25gwd hot-reloads when the config file
// changes.
type DigipeaterConfig struct {
	Enabled        bool           `yaml:"enabled"`
	Aliases        []WireCallsign `yaml:"aliases"`
	TimeoutSeconds int            `yaml:"timeout_seconds"`
}

// Timeout returns the configured digipeat queue timeout as a
// time.Duration.
func (d DigipeaterConfig) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// AliasCallsigns returns the digipeater's configured aliases as plain
// ax25.Callsign values.
func (d DigipeaterConfig) AliasCallsigns() []ax25.Callsign {
	out := make([]ax25.Callsign, len(d.Aliases))
	for i, c := range d.Aliases {
		out[i] = c.Callsign
	}
	return out
}

// Call returns the interface's configured station callsign.
func (i InterfaceConfig) Call() ax25.Callsign { return i.MyCall.Callsign }

// MessageConfig holds the APRS confirmable-message retry schedule.
type MessageConfig struct {
	RetransmitCount           int     `yaml:"retransmit_count"`
	RetransmitTimeoutSeconds  int     `yaml:"retransmit_timeout_seconds"`
	RetransmitTimeoutRandSecs int     `yaml:"retransmit_timeout_rand_seconds"`
	RetransmitTimeoutScale    float64 `yaml:"retransmit_timeout_scale"`
	DedupExpirySeconds        int     `yaml:"dedup_expiry_seconds"`
	MsgIDModulo               int     `yaml:"msgid_modulo"`
}

// RetransmitTimeout returns the configured base retry timeout.
func (m MessageConfig) RetransmitTimeout() time.Duration {
	return time.Duration(m.RetransmitTimeoutSeconds) * time.Second
}

// RetransmitTimeoutRand returns the configured retry jitter window.
func (m MessageConfig) RetransmitTimeoutRand() time.Duration {
	return time.Duration(m.RetransmitTimeoutRandSecs) * time.Second
}

// DedupExpiry returns the configured dedup cache entry lifetime.
func (m MessageConfig) DedupExpiry() time.Duration {
	return time.Duration(m.DedupExpirySeconds) * time.Second
}

// Config is the full on-disk configuration for cmd/ax25gwd.
type Config struct {
	LogLevel   string            `yaml:"log_level"`
	HTTPAddr   string            `yaml:"http_addr"`
	Interfaces []InterfaceConfig `yaml:"interfaces"`
	Digipeater DigipeaterConfig  `yaml:"digipeater"`
	Message    MessageConfig     `yaml:"message"`
}

// Default returns a Config with the same defaults the rest of this
// stack's constructors apply, so a config file only needs to mention
// what it wants to override.
func Default() Config {
	return Config{
		LogLevel: "info",
		HTTPAddr: "127.0.0.1:8080",
		Digipeater: DigipeaterConfig{
			TimeoutSeconds: 5,
		},
		Message: MessageConfig{
			RetransmitCount:           2,
			RetransmitTimeoutSeconds:  30,
			RetransmitTimeoutRandSecs: 5,
			RetransmitTimeoutScale:    1.5,
			DedupExpirySeconds:        28,
			MsgIDModulo:               1000,
		},
	}
}

// Load reads path (if non-empty and it exists) over the Default
// config, returning the merged result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Flags is the set of command-line overrides recognised by
// cmd/ax25gwd, registered with a *pflag.FlagSet so callers can test
// flag parsing without touching the global pflag.CommandLine.
type Flags struct {
	ConfigFile string
	LogLevel   *string
	HTTPAddr   *string
}

// RegisterFlags registers the daemon's flags on fs and returns the
// bound Flags. ConfigFile is parsed eagerly by the caller (it gates
// which file Load reads) and so is returned as a plain string pointer
// target via fs itself.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVarP(&f.ConfigFile, "config", "c", "", "Path to YAML configuration file.")
	f.LogLevel = fs.String("log-level", "", "Override log_level from the config file (debug, info, warn, error).")
	f.HTTPAddr = fs.String("http-addr", "", "Override http_addr from the config file.")
	return f
}

// Apply overlays any flags the caller explicitly set onto cfg.
func Apply(cfg Config, fs *pflag.FlagSet, f *Flags) Config {
	if fs.Changed("log-level") {
		cfg.LogLevel = *f.LogLevel
	}
	if fs.Changed("http-addr") {
		cfg.HTTPAddr = *f.HTTPAddr
	}
	return cfg
}
