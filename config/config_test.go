package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madpsy/ax25aprs/ax25"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
log_level: debug
http_addr: 0.0.0.0:9000
interfaces:
  - name: radio0
    transport: serial
    device: /dev/ttyUSB0
    baud: 9600
    kiss_port: 0
    mycall: VK3ABC-9
digipeater:
  enabled: true
  aliases:
    - VK3ABC
    - WIDE1-1
  timeout_seconds: 10
message:
  retransmit_count: 3
`
	require.NoError(t, writeFile(path, yaml))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "0.0.0.0:9000", cfg.HTTPAddr)
	require.Len(t, cfg.Interfaces, 1)
	assert.Equal(t, TransportSerial, cfg.Interfaces[0].Transport)
	assert.True(t, cfg.Interfaces[0].Call().Equal(ax25.MustParseCallsign("VK3ABC-9")))
	assert.True(t, cfg.Digipeater.Enabled)
	require.Len(t, cfg.Digipeater.Aliases, 2)
	assert.True(t, cfg.Digipeater.AliasCallsigns()[1].Equal(ax25.MustParseCallsign("WIDE1-1")))
	assert.Equal(t, 10*time.Second, cfg.Digipeater.Timeout())
	assert.Equal(t, 3, cfg.Message.RetransmitCount)
}

func TestLoadRejectsBadCallsign(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, writeFile(path, "digipeater:\n  aliases:\n    - \"not a callsign!!\"\n"))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyOverridesOnlyExplicitFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--log-level", "warn"}))

	cfg := Apply(Default(), fs, flags)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, Default().HTTPAddr, cfg.HTTPAddr, "unset flag must not override the config default")
}

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0o644)
}
