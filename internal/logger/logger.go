// Package logger wraps zerolog with the config shape and async-diode
// option this service family standardizes on.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/diode"
	"github.com/rs/zerolog/log"
)

// Logger wraps a configured zerolog.Logger.
type Logger struct {
	logger  zerolog.Logger
	config  *Config
	logFile *os.File
}

// Config controls level, format and output target.
type Config struct {
	Level      string `json:"level" mapstructure:"level"`           // debug, info, warn, error
	Format     string `json:"format" mapstructure:"format"`         // console, json
	Output     string `json:"output" mapstructure:"output"`         // stdout, stderr, or a file path
	TimeFormat string `json:"timeFormat" mapstructure:"timeFormat"`
	Caller     bool   `json:"caller" mapstructure:"caller"`
	Async      bool   `json:"async" mapstructure:"async"`
}

// DefaultConfig returns the service default: console, info, synchronous.
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
		Caller:     true,
		Async:      false,
	}
}

// New builds a Logger and installs it as the package-level global.
func New(config *Config) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	zerolog.TimeFieldFormat = config.TimeFormat

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	var logFile *os.File
	switch strings.ToLower(config.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		if err := ensureDir(filepath.Dir(config.Output)); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		output = file
		logFile = file
	}

	if config.Async {
		output = diode.NewWriter(output, 1000, 10*time.Millisecond, func(missed int) {
			fmt.Fprintf(os.Stderr, "logger dropped %d messages\n", missed)
		})
	}

	var zl zerolog.Logger
	switch strings.ToLower(config.Format) {
	case "console":
		zl = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: config.TimeFormat,
		})
	case "json":
		zl = zerolog.New(output)
	default:
		return nil, fmt.Errorf("unsupported log format: %s", config.Format)
	}

	zl = zl.With().Timestamp().Logger()
	if config.Caller {
		zl = zl.With().Caller().Logger()
	}
	zl = zl.Level(level)

	log.Logger = zl

	l := &Logger{logger: zl, config: config, logFile: logFile}
	globalLogger = l
	return l, nil
}

// GetLogger exposes the underlying zerolog.Logger for call sites that need
// structured builders (e.g. zerolog.Event chains).
func (l *Logger) GetLogger() zerolog.Logger {
	return l.logger
}

func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.logger.Debug().Msgf(format, args...) }

func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

func (l *Logger) Infof(format string, args ...interface{}) { l.logger.Info().Msgf(format, args...) }

func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

func (l *Logger) Warnf(format string, args ...interface{}) { l.logger.Warn().Msgf(format, args...) }

func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }

func (l *Logger) Errorf(format string, args ...interface{}) { l.logger.Error().Msgf(format, args...) }

func (l *Logger) ErrorWithErr(err error, msg string) { l.logger.Error().Err(err).Msg(msg) }

func (l *Logger) Fatal(msg string) { l.logger.Fatal().Msg(msg) }

func (l *Logger) Fatalf(format string, args ...interface{}) { l.logger.Fatal().Msgf(format, args...) }

// WithField returns a builder event carrying one extra field, at info level.
func (l *Logger) WithField(key string, value interface{}) *zerolog.Event {
	return l.logger.Info().Interface(key, value)
}

// WithFields returns a builder event carrying several extra fields.
func (l *Logger) WithFields(fields map[string]interface{}) *zerolog.Event {
	event := l.logger.Info()
	for k, v := range fields {
		event = event.Interface(k, v)
	}
	return event
}

// SetLevel changes the level of the already-constructed logger.
func (l *Logger) SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", level, err)
	}
	l.logger = l.logger.Level(lvl)
	l.config.Level = level
	return nil
}

// GetLevel returns the configured level string.
func (l *Logger) GetLevel() string {
	return l.config.Level
}

// Close flushes and releases the backing file handle, if any.
func (l *Logger) Close() error {
	if l.logFile != nil {
		return l.logFile.Close()
	}
	return nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

var globalLogger *Logger

// InitGlobalLogger builds a Logger and assigns it to the package global,
// for components constructed before an explicit Logger is threaded in.
func InitGlobalLogger(config *Config) error {
	l, err := New(config)
	if err != nil {
		return err
	}
	globalLogger = l
	return nil
}

func Debug(msg string) {
	if globalLogger != nil {
		globalLogger.Debug(msg)
	}
}

func Debugf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Debugf(format, args...)
	}
}

func Info(msg string) {
	if globalLogger != nil {
		globalLogger.Info(msg)
	}
}

func Infof(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Infof(format, args...)
	}
}

func Warn(msg string) {
	if globalLogger != nil {
		globalLogger.Warn(msg)
	}
}

func Warnf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Warnf(format, args...)
	}
}

func Error(msg string) {
	if globalLogger != nil {
		globalLogger.Error(msg)
	}
}

func Errorf(format string, args ...interface{}) {
	if globalLogger != nil {
		globalLogger.Errorf(format, args...)
	}
}

func ErrorWithErr(err error, msg string) {
	if globalLogger != nil {
		globalLogger.ErrorWithErr(err, msg)
	}
}
