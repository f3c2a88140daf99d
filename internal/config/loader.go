package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/streampipe/recordpipe/internal/streamerrors"
)

// Loader loads configuration from config/record.yaml, overridden by
// RECORD_-prefixed environment variables.
type Loader struct {
	viper  *viper.Viper
	logger *logrus.Logger
}

// NewLoader creates a configuration loader.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("RECORD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v, logger: logrus.New()}
}

// Load reads configPath, applies defaults and environment overrides, and
// validates the result.
func (l *Loader) Load(configPath string) (*Config, error) {
	l.viper.SetConfigFile(configPath)
	l.setDefaults()

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			l.logger.Warn("configuration file not found, using defaults and environment")
		} else if os.IsNotExist(err) {
			l.logger.Warn("configuration file not found, using defaults and environment")
		} else {
			return nil, streamerrors.NewConfigError("failed to read config file", err)
		}
	}

	var cfg Config
	if err := l.viper.Unmarshal(&cfg); err != nil {
		return nil, streamerrors.NewConfigError("failed to unmarshal config", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.RecordingDirectory, 0o755); err != nil {
		return nil, streamerrors.NewConfigError("failed to create recording directory", err)
	}

	l.logger.WithField("recording_directory", cfg.RecordingDirectory).Info("configuration loaded")
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.viper.SetDefault("recording_directory", "/var/lib/recordpipe/recordings")

	l.viper.SetDefault("server.host", "0.0.0.0")
	l.viper.SetDefault("server.port", 3000)

	l.viper.SetDefault("database.url", "sqlite:///var/lib/recordpipe/recordpipe.db")

	l.viper.SetDefault("recording.rtsp_connect_timeout", 120*time.Second)
	l.viper.SetDefault("recording.rtsp_retry", 5)
	l.viper.SetDefault("recording.rtsp_tcp_timeout", 10*time.Second)
	l.viper.SetDefault("recording.rtsp_udp_buffer_bytes", 512*1024)
	l.viper.SetDefault("recording.ingest_queue_max_buffers", 1000)
	l.viper.SetDefault("recording.branch_queue_max_buffers", 100)
	l.viper.SetDefault("recording.startup_timeout", 30*time.Second)
	l.viper.SetDefault("recording.startup_poll_interval", 100*time.Millisecond)
	l.viper.SetDefault("recording.readiness_wait", 10*time.Second)
	l.viper.SetDefault("recording.readiness_poll", 1*time.Second)
	l.viper.SetDefault("recording.detach_bus_wait", 2*time.Second)
	l.viper.SetDefault("recording.teardown_bus_wait", 1*time.Second)
	l.viper.SetDefault("recording.ffmpeg_path", "ffmpeg")
	l.viper.SetDefault("recording.low_space_warn_bytes", uint64(512*1024*1024))

	l.viper.SetDefault("logging.level", "info")
	l.viper.SetDefault("logging.format", "text")
	l.viper.SetDefault("logging.file_enabled", false)
	l.viper.SetDefault("logging.file_path", "/var/log/recordpipe/recordpipe.log")
	l.viper.SetDefault("logging.max_file_size", 10485760)
	l.viper.SetDefault("logging.backup_count", 5)
	l.viper.SetDefault("logging.console_enabled", true)
}

// Validate checks structural correctness of a loaded Config.
func Validate(cfg *Config) error {
	if cfg.RecordingDirectory == "" {
		return streamerrors.NewConfigError("recording_directory must not be empty", nil)
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return streamerrors.NewConfigError(fmt.Sprintf("server.port %d out of range", cfg.Server.Port), nil)
	}
	if cfg.Database.URL == "" {
		return streamerrors.NewConfigError("database.url must not be empty", nil)
	}
	return nil
}
