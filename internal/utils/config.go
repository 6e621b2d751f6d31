package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
)

// DefaultConfig returns the configuration used when neither file nor environment set a value.
func DefaultConfig() model.Config {
	return model.Config{
		Server: model.ServerConfig{
			URL:                      "ws://localhost:25625/ws",
			RegistrationTimeout:      5 * time.Second,
			PingInterval:             30 * time.Second,
			PongWait:                 45 * time.Second,
			ReconnectInitial:         5 * time.Second,
			ReconnectMax:             60 * time.Second,
			RegistrationRetryInitial: 2 * time.Second,
			RegistrationRetryMax:     60 * time.Second,
		},
		Printer: model.PrinterConfig{
			ID:           "PRINTER_001",
			Name:         "Thermal Label Printer",
			Type:         "thermal",
			Location:     "Warehouse",
			Capabilities: []string{"zpl", "thermal", "label"},
		},
		Device: model.DeviceConfig{
			AutoDetect:   true,
			WriteTimeout: 5 * time.Second,
		},
		Delivery: model.DeliveryConfig{
			TempDir:      os.TempDir(),
			CleanupDelay: 10 * time.Second,
		},
		Dispatch: model.DispatchConfig{
			QueueCapacity:   32,
			DocumentWorkers: 2,
		},
		Logging: model.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig layers the YAML file at path (if present) and the environment over the defaults.
func LoadConfig(path string) (model.Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func applyEnv(cfg *model.Config, lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("SERVER_URL", &cfg.Server.URL)
	str("API_KEY", &cfg.Server.APIKey)
	str("PRINTER_ID", &cfg.Printer.ID)
	str("PRINTER_NAME", &cfg.Printer.Name)
	str("PRINTER_TYPE", &cfg.Printer.Type)
	str("PRINTER_LOCATION", &cfg.Printer.Location)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)
	str("STATUS_ADDR", &cfg.Status.Addr)
	str("TEMP_DIR", &cfg.Delivery.TempDir)

	if v, ok := lookup("USB_VENDOR_ID"); ok && v != "" {
		id, err := ParseUSBID(v)
		if err != nil {
			return fmt.Errorf("USB_VENDOR_ID: %w", err)
		}
		cfg.Device.VendorID = id
	}
	if v, ok := lookup("USB_PRODUCT_ID"); ok && v != "" {
		id, err := ParseUSBID(v)
		if err != nil {
			return fmt.Errorf("USB_PRODUCT_ID: %w", err)
		}
		cfg.Device.ProductID = id
	}

	boolean := func(key string, dst *bool) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = b
		return nil
	}
	if err := boolean("AUTO_DETECT", &cfg.Device.AutoDetect); err != nil {
		return err
	}
	if err := boolean("ALWAYS_SUMMARIZE", &cfg.Dispatch.AlwaysSummarize); err != nil {
		return err
	}

	// PING_INTERVAL, PONG_WAIT and RECONNECT_DELAY accept plain seconds or Go durations.
	seconds := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := parseSeconds(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = d
		return nil
	}
	if err := seconds("PING_INTERVAL", &cfg.Server.PingInterval); err != nil {
		return err
	}
	if err := seconds("PONG_WAIT", &cfg.Server.PongWait); err != nil {
		return err
	}
	if err := seconds("RECONNECT_DELAY", &cfg.Server.ReconnectInitial); err != nil {
		return err
	}
	return nil
}

func parseSeconds(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// ValidateConfig rejects configurations the agent cannot run with.
func ValidateConfig(cfg model.Config) error {
	var errs []error

	if cfg.Server.URL == "" {
		errs = append(errs, errors.New("server.url is required"))
	}
	if cfg.Printer.ID == "" {
		errs = append(errs, errors.New("printer.id is required"))
	}
	if t := cfg.Server.RegistrationTimeout; t < 5*time.Second || t > 30*time.Second {
		errs = append(errs, fmt.Errorf("server.registration_timeout must be between 5s and 30s, got %s", t))
	}
	for name, d := range map[string]time.Duration{
		"server.ping_interval":              cfg.Server.PingInterval,
		"server.pong_wait":                  cfg.Server.PongWait,
		"server.reconnect_initial":          cfg.Server.ReconnectInitial,
		"server.reconnect_max":              cfg.Server.ReconnectMax,
		"server.registration_retry_initial": cfg.Server.RegistrationRetryInitial,
		"server.registration_retry_max":     cfg.Server.RegistrationRetryMax,
		"device.write_timeout":              cfg.Device.WriteTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if cfg.Server.ReconnectMax < cfg.Server.ReconnectInitial {
		errs = append(errs, errors.New("server.reconnect_max must not be below server.reconnect_initial"))
	}
	if cfg.Dispatch.QueueCapacity <= 0 {
		errs = append(errs, errors.New("dispatch.queue_capacity must be positive"))
	}
	if cfg.Dispatch.DocumentWorkers <= 0 {
		errs = append(errs, errors.New("dispatch.document_workers must be positive"))
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.level %q", cfg.Logging.Level))
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("invalid logging.format %q", cfg.Logging.Format))
	}

	return errors.Join(errs...)
}
