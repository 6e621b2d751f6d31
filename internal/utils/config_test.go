package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "PRINTER_001", cfg.Printer.ID)
	assert.Equal(t, 5*time.Second, cfg.Server.RegistrationTimeout)
	assert.False(t, cfg.Dispatch.AlwaysSummarize)
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	body := `
server:
  url: ws://print.example:25625/ws
  registration_timeout: 10s
printer:
  id: DOCK_7
  location: Dock 7
device:
  vendor_id: 0x0A5F
  product_id: 0x0164
  auto_detect: false
dispatch:
  always_summarize: true
logging:
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://print.example:25625/ws", cfg.Server.URL)
	assert.Equal(t, 10*time.Second, cfg.Server.RegistrationTimeout)
	assert.Equal(t, "DOCK_7", cfg.Printer.ID)
	assert.Equal(t, uint16(0x0A5F), cfg.Device.VendorID)
	assert.Equal(t, uint16(0x0164), cfg.Device.ProductID)
	assert.False(t, cfg.Device.AutoDetect)
	assert.True(t, cfg.Dispatch.AlwaysSummarize)
	// untouched keys keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.PingInterval)
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	env := map[string]string{
		"SERVER_URL":       "ws://10.0.0.5:25625/ws",
		"PRINTER_ID":       "PRINTER_042",
		"USB_VENDOR_ID":    "0x04F9",
		"USB_PRODUCT_ID":   "2028",
		"AUTO_DETECT":      "false",
		"ALWAYS_SUMMARIZE": "true",
		"PING_INTERVAL":    "15",
		"PONG_WAIT":        "10s",
		"RECONNECT_DELAY":  "2s",
	}
	err := applyEnv(&cfg, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	require.NoError(t, err)

	assert.Equal(t, "ws://10.0.0.5:25625/ws", cfg.Server.URL)
	assert.Equal(t, "PRINTER_042", cfg.Printer.ID)
	assert.Equal(t, uint16(0x04F9), cfg.Device.VendorID)
	assert.Equal(t, uint16(0x2028), cfg.Device.ProductID)
	assert.False(t, cfg.Device.AutoDetect)
	assert.True(t, cfg.Dispatch.AlwaysSummarize)
	assert.Equal(t, 15*time.Second, cfg.Server.PingInterval)
	assert.Equal(t, 10*time.Second, cfg.Server.PongWait)
	assert.Equal(t, 2*time.Second, cfg.Server.ReconnectInitial)
}

func TestApplyEnvRejectsBadValues(t *testing.T) {
	cfg := DefaultConfig()
	err := applyEnv(&cfg, func(k string) (string, bool) {
		if k == "AUTO_DETECT" {
			return "maybe", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "AUTO_DETECT")
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, ValidateConfig(cfg))

	cfg.Server.RegistrationTimeout = time.Minute
	cfg.Logging.Level = "verbose"
	cfg.Printer.ID = ""
	err := ValidateConfig(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "registration_timeout")
	assert.ErrorContains(t, err, "logging.level")
	assert.ErrorContains(t, err, "printer.id")
}

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: 10 * time.Second}
	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 2*time.Second, b.Delay(2))
	assert.Equal(t, 8*time.Second, b.Delay(4))
	assert.Equal(t, 10*time.Second, b.Delay(5))
	assert.Equal(t, 10*time.Second, b.Delay(500))
}

func TestParseUSBID(t *testing.T) {
	for in, want := range map[string]uint16{
		"0x0A5F": 0x0A5F,
		"0a5f":   0x0A5F,
		"04b8":   0x04B8,
		"65535":  0xFFFF,
	} {
		got, err := ParseUSBID(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUSBID("zebra")
	assert.Error(t, err)
	assert.Equal(t, "0x0A5F", FormatUSBID(0x0A5F))
}
