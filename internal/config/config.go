// Package config loads the pipeline manager's configuration from YAML plus
// environment overrides. Keys mirror the ones recognized by the control
// plane's original Rust configuration loader, generalized to the engine
// tuning knobs this implementation adds.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	RecordingDirectory string          `mapstructure:"recording_directory"`
	Server             ServerConfig    `mapstructure:"server"`
	Database           DatabaseConfig  `mapstructure:"database"`
	Recording          RecordingConfig `mapstructure:"recording"`
	Logging            LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig is the Control API's HTTP listener configuration.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig locates the Recording Registry's backing store.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RecordingConfig tunes the ingest/recording graph. The defaults reproduce
// the exact element properties and timeouts the dynamic-pad attach/detach
// contract requires; operators can override them per deployment.
type RecordingConfig struct {
	// RTSPConnectTimeout is passed to the source element as ConnectTimeout,
	// which the source stores but does not apply.
	RTSPConnectTimeout time.Duration `mapstructure:"rtsp_connect_timeout"`
	RTSPRetry          int           `mapstructure:"rtsp_retry"`
	RTSPTCPTimeout     time.Duration `mapstructure:"rtsp_tcp_timeout"`
	RTSPUDPBufferBytes int           `mapstructure:"rtsp_udp_buffer_bytes"`

	// IngestQueueMaxBuffers bounds the ingest buffer queue (spec: 1000).
	IngestQueueMaxBuffers int `mapstructure:"ingest_queue_max_buffers"`
	// BranchQueueMaxBuffers bounds each recording branch's queue (spec: >=100).
	BranchQueueMaxBuffers int `mapstructure:"branch_queue_max_buffers"`

	StartupTimeout     time.Duration `mapstructure:"startup_timeout"`
	StartupPollInterval time.Duration `mapstructure:"startup_poll_interval"`
	ReadinessWait      time.Duration `mapstructure:"readiness_wait"`
	ReadinessPoll      time.Duration `mapstructure:"readiness_poll"`
	DetachBusWait      time.Duration `mapstructure:"detach_bus_wait"`
	TeardownBusWait    time.Duration `mapstructure:"teardown_bus_wait"`

	// FFmpegPath is the muxer subprocess binary (MP4Muxer+FileSink element).
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	// LowSpaceWarnBytes triggers a logged warning, not a failure.
	LowSpaceWarnBytes uint64 `mapstructure:"low_space_warn_bytes"`
}

// LoggingConfig mirrors internal/logging.LoggingConfig's mapstructure shape
// so it can be decoded directly from the same YAML document.
type LoggingConfig struct {
	Level          string `mapstructure:"level"`
	Format         string `mapstructure:"format"`
	FileEnabled    bool   `mapstructure:"file_enabled"`
	FilePath       string `mapstructure:"file_path"`
	MaxFileSize    int    `mapstructure:"max_file_size"`
	BackupCount    int    `mapstructure:"backup_count"`
	ConsoleEnabled bool   `mapstructure:"console_enabled"`
}
