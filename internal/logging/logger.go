package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// ParseLogLevel parses a string into a LogLevel
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToLower(level) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

// StructuredLogger implements the Logger interface on top of logrus,
// giving every entry consistent field handling regardless of sink.
type StructuredLogger struct {
	entry  *logrus.Entry
	closer io.Closer
}

// NewStructuredLogger creates a new structured logger writing to writer.
func NewStructuredLogger(level LogLevel, writer io.Writer) *StructuredLogger {
	base := logrus.New()
	base.SetOutput(writer)
	base.SetLevel(level.logrusLevel())
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	closer, _ := writer.(io.Closer)
	return &StructuredLogger{entry: logrus.NewEntry(base), closer: closer}
}

// NewFileLogger creates a logger that writes to a file
func NewFileLogger(level LogLevel, filename string) (*StructuredLogger, error) {
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", filename, err)
	}
	return NewStructuredLogger(level, file), nil
}

// NewConsoleLogger creates a logger that writes to stdout
func NewConsoleLogger(level LogLevel) *StructuredLogger {
	return NewStructuredLogger(level, os.Stdout)
}

// NewMultiLogger creates a logger that writes to multiple outputs
func NewMultiLogger(level LogLevel, writers ...io.Writer) *StructuredLogger {
	return NewStructuredLogger(level, io.MultiWriter(writers...))
}

func (l *StructuredLogger) fields(fields []Field) logrus.Fields {
	if len(fields) == 0 {
		return nil
	}
	f := make(logrus.Fields, len(fields))
	for _, field := range fields {
		f[field.Key] = field.Value
	}
	return f
}

// Debug logs a debug message with optional fields
func (l *StructuredLogger) Debug(msg string, fields ...Field) {
	l.entry.WithFields(l.fields(fields)).Debug(msg)
}

// Info logs an info message with optional fields
func (l *StructuredLogger) Info(msg string, fields ...Field) {
	l.entry.WithFields(l.fields(fields)).Info(msg)
}

// Warn logs a warning message with optional fields
func (l *StructuredLogger) Warn(msg string, fields ...Field) {
	l.entry.WithFields(l.fields(fields)).Warn(msg)
}

// Error logs an error message with optional fields
func (l *StructuredLogger) Error(msg string, fields ...Field) {
	l.entry.WithFields(l.fields(fields)).Error(msg)
}

// SetLevel changes the logging level
func (l *StructuredLogger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(level.logrusLevel())
}

// GetLevel returns the current logging level
func (l *StructuredLogger) GetLevel() LogLevel {
	switch l.entry.Logger.GetLevel() {
	case logrus.DebugLevel:
		return DebugLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// Close closes the logger if it's writing to a file
func (l *StructuredLogger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Helper functions for creating common fields

// StringField creates a string field
func StringField(key, value string) Field {
	return Field{Key: key, Value: value}
}

// IntField creates an integer field
func IntField(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// ErrorField creates an error field
func ErrorField(err error) Field {
	return Field{Key: "error", Value: err.Error()}
}

// TransactionField creates a transaction ID field
func TransactionField(txnID string) Field {
	return Field{Key: "transaction_id", Value: txnID}
}

// MethodField creates a SIP method field
func MethodField(method string) Field {
	return Field{Key: "sip_method", Value: method}
}

// AddressField creates an address field
func AddressField(key, address string) Field {
	return Field{Key: key, Value: address}
}

// CallIDField creates a Call-ID field
func CallIDField(callID string) Field {
	return Field{Key: "call_id", Value: callID}
}

// UserField creates a user field
func UserField(user string) Field {
	return Field{Key: "user", Value: user}
}

// LoggerConfig represents logger configuration
type LoggerConfig struct {
	Level string
	File  string
}

// NewLoggerFromConfig creates a logger based on configuration
func NewLoggerFromConfig(config LoggerConfig) (Logger, error) {
	level, err := ParseLogLevel(config.Level)
	if err != nil {
		return nil, err
	}

	if config.File == "" || config.File == "stdout" {
		return NewConsoleLogger(level), nil
	}

	fileLogger, err := NewFileLogger(level, config.File)
	if err != nil {
		return nil, err
	}

	if level <= WarnLevel {
		return NewMultiLogger(level, fileLogger.entry.Logger.Out, os.Stdout), nil
	}

	return fileLogger, nil
}
