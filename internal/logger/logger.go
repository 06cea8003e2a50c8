// internal/logger/logger.go
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	// Log levels
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel converts a level name (case-insensitive) to a LogLevel
func ParseLevel(name string) (LogLevel, error) {
	for lvl, n := range levelNames {
		if strings.EqualFold(n, name) {
			return lvl, nil
		}
	}
	if strings.EqualFold(name, "warning") {
		return WARN, nil
	}
	return INFO, fmt.Errorf("unknown log level: %s", name)
}

func (l LogLevel) zap() zapcore.Level {
	switch l {
	case DEBUG:
		return zapcore.DebugLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// sink is the configuration shared by a logger and its named children.
type sink struct {
	mu         sync.Mutex
	level      zap.AtomicLevel
	outputs    map[LogLevel][]io.Writer
	showFile   bool
	json       bool
	timeFormat string
	base       *zap.Logger
}

// Logger represents a logger instance
type Logger struct {
	sink *sink
	name string
	kv   []interface{}
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	once.Do(func() {
		defaultLogger = NewLogger(WARN)
		defaultLogger.AddOutput(DEBUG, os.Stderr)
	})
	return defaultLogger
}

// NewLogger creates a new logger instance with the specified minimum log level
func NewLogger(level LogLevel) *Logger {
	s := &sink{
		level:      zap.NewAtomicLevelAt(level.zap()),
		outputs:    make(map[LogLevel][]io.Writer),
		timeFormat: "2006-01-02 15:04:05",
		showFile:   true,
	}
	s.rebuild()
	return &Logger{sink: s}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return NewLogger(ERROR)
}

// SetLevel changes the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.sink.level.SetLevel(level.zap())
}

// SetTimeFormat sets the time format string used in log messages
func (l *Logger) SetTimeFormat(format string) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.timeFormat = format
	l.sink.rebuild()
}

// SetShowFile enables or disables showing file and line information in logs
func (l *Logger) SetShowFile(show bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.showFile = show
	l.sink.rebuild()
}

// SetJSON switches between the console encoder and JSON lines with ISO-8601 timestamps.
func (l *Logger) SetJSON(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.json = enabled
	l.sink.rebuild()
}

// AddOutput adds an output writer receiving messages at the given level and above
func (l *Logger) AddOutput(level LogLevel, w io.Writer) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.outputs[level] = append(l.sink.outputs[level], w)
	l.sink.rebuild()
}

// AddFileOutput adds a file output for the specified log level
func (l *Logger) AddFileOutput(level LogLevel, filename string) error {
	// Ensure directory exists
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.AddOutput(level, file)
	return nil
}

// Named returns a child logger for a component; it shares outputs and level with l.
func (l *Logger) Named(component string) *Logger {
	name := component
	if l.name != "" {
		name = l.name + "." + component
	}
	return &Logger{sink: l.sink, name: name, kv: l.kv}
}

// With returns a child logger that adds the given key/value pairs to every message.
func (l *Logger) With(keysAndValues ...interface{}) *Logger {
	kv := make([]interface{}, 0, len(l.kv)+len(keysAndValues))
	kv = append(kv, l.kv...)
	kv = append(kv, keysAndValues...)
	return &Logger{sink: l.sink, name: l.name, kv: kv}
}

// Zap exposes the underlying zap logger, e.g. for libraries expecting one.
func (l *Logger) Zap() *zap.Logger {
	l.sink.mu.Lock()
	base := l.sink.base
	l.sink.mu.Unlock()
	return base.Named(l.name).Sugar().With(l.kv...).Desugar()
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return l.sink.base.Sync()
}

// rebuild recreates the zap core after an output or format change. Callers hold mu.
func (s *sink) rebuild() {
	var enc zapcore.Encoder
	if s.json {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.EncodeTime = zapcore.TimeEncoderOfLayout(s.timeFormat)
		encCfg.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	levels := make([]LogLevel, 0, len(s.outputs))
	for lvl := range s.outputs {
		levels = append(levels, lvl)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })

	var cores []zapcore.Core
	for _, lvl := range levels {
		threshold := lvl.zap()
		enabler := zap.LevelEnablerFunc(func(z zapcore.Level) bool {
			return z >= threshold && s.level.Enabled(z)
		})
		for _, w := range s.outputs[lvl] {
			cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(w), enabler))
		}
	}

	var opts []zap.Option
	if s.showFile {
		// skip log() and the exported level method
		opts = append(opts, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	s.base = zap.New(zapcore.NewTee(cores...), opts...)
}

// log writes a message to all configured outputs for the given level
func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	l.sink.mu.Lock()
	base := l.sink.base
	l.sink.mu.Unlock()

	sugar := base.Named(l.name).Sugar()
	if len(l.kv) > 0 {
		sugar = sugar.With(l.kv...)
	}

	// Format the message
	var msg string
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	} else {
		msg = format
	}

	switch level {
	case DEBUG:
		sugar.Debug(msg)
	case INFO:
		sugar.Info(msg)
	case WARN:
		sugar.Warn(msg)
	default:
		sugar.Error(msg)
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Global convenience functions that use the default logger

func Debug(format string, args ...interface{}) {
	GetLogger().Debug(format, args...)
}

func Info(format string, args ...interface{}) {
	GetLogger().Info(format, args...)
}

func Warn(format string, args ...interface{}) {
	GetLogger().Warn(format, args...)
}

func Error(format string, args ...interface{}) {
	GetLogger().Error(format, args...)
}

// SetGlobalLevel sets the level for the default logger
func SetGlobalLevel(level LogLevel) {
	GetLogger().SetLevel(level)
}
