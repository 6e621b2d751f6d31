package model

import "time"

// --- Configuration Structures ---

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Printer  PrinterConfig  `yaml:"printer"`
	Device   DeviceConfig   `yaml:"device"`
	Delivery DeliveryConfig `yaml:"delivery"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Logging  LoggingConfig  `yaml:"logging"`
	Status   StatusConfig   `yaml:"status"`
}

type ServerConfig struct {
	URL                      string        `yaml:"url"`
	APIKey                   string        `yaml:"api_key"`
	RegistrationTimeout      time.Duration `yaml:"registration_timeout"`
	PingInterval             time.Duration `yaml:"ping_interval"`
	PongWait                 time.Duration `yaml:"pong_wait"`
	ReconnectInitial         time.Duration `yaml:"reconnect_initial"`
	ReconnectMax             time.Duration `yaml:"reconnect_max"`
	RegistrationRetryInitial time.Duration `yaml:"registration_retry_initial"`
	RegistrationRetryMax     time.Duration `yaml:"registration_retry_max"`
}

type PrinterConfig struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Type         string   `yaml:"type"`
	Location     string   `yaml:"location"`
	Capabilities []string `yaml:"capabilities"`
}

type DeviceConfig struct {
	VendorID     uint16        `yaml:"vendor_id"`
	ProductID    uint16        `yaml:"product_id"`
	AutoDetect   bool          `yaml:"auto_detect"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DeliveryConfig struct {
	TempDir      string        `yaml:"temp_dir"`
	CleanupDelay time.Duration `yaml:"cleanup_delay"`
	ChromePath   string        `yaml:"chrome_path"`
	DisablePDF   bool          `yaml:"disable_pdf"`
}

type DispatchConfig struct {
	// AlwaysSummarize runs the summary leg even when the label leg failed.
	AlwaysSummarize bool `yaml:"always_summarize"`
	QueueCapacity   int  `yaml:"queue_capacity"`
	DocumentWorkers int  `yaml:"document_workers"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}
