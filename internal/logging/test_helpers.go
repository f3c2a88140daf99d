package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// TestLoggerConfig is a test logger configuration.
type TestLoggerConfig struct {
	Component string
	Level     logrus.Level
}

// DefaultTestConfig returns a default test configuration.
func DefaultTestConfig() *TestLoggerConfig {
	return &TestLoggerConfig{Component: "test-component", Level: logrus.InfoLevel}
}

// CreateTestLogger creates a logger for testing with the given configuration.
func CreateTestLogger(t *testing.T, config *TestLoggerConfig) *Logger {
	t.Helper()
	if config == nil {
		config = DefaultTestConfig()
	}
	logger := GetLogger(config.Component)
	base.SetLevel(config.Level)
	return logger
}

// CreateTestLoggingConfig creates a test logging configuration.
func CreateTestLoggingConfig(level, format string, consoleEnabled, fileEnabled bool, filePath string) *LoggingConfig {
	return &LoggingConfig{
		Level:          level,
		Format:         format,
		ConsoleEnabled: consoleEnabled,
		FileEnabled:    fileEnabled,
		FilePath:       filePath,
		MaxFileSize:    10,
		BackupCount:    3,
	}
}

// CreateTempLogFile creates a temporary log file for testing.
func CreateTempLogFile(t *testing.T) string {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "recordpipe_logging_test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tempDir) })

	logFilePath := filepath.Join(tempDir, "test.log")
	f, err := os.Create(logFilePath)
	require.NoError(t, err)
	f.Close()
	return logFilePath
}

// AssertLoggerBasicProperties asserts basic logger properties.
func AssertLoggerBasicProperties(t *testing.T, logger *Logger, expectedComponent string) {
	t.Helper()
	require.NotNil(t, logger)
	require.NotNil(t, logger.Entry)
	require.Equal(t, expectedComponent, logger.Data["component"])
}
