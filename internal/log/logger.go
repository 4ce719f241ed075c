// Package log is the structured logger shared by every waitroom component.
// It wraps logrus with the field helpers, error annotation and caller
// reporting the rest of the code base expects.
package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"waitroom/internal/errors"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02 15:04:05"

var (
	isDebug atomic.Bool
	logger  = NewLogger()
)

// Field is a single structured key/value pair.
type Field struct {
	Key   string
	Value interface{}
}

// F builds a Field.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Option configures a Logger.
type Option func(*options)

type options struct {
	out      io.Writer
	json     bool
	filePath string
}

// WithOutput sends log lines to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.out = w }
}

// WithJSON switches to one JSON object per line.
func WithJSON() Option {
	return func(o *options) { o.json = true }
}

// WithFile mirrors output to the file at path (appending).
func WithFile(path string) Option {
	return func(o *options) { o.filePath = path }
}

// Logger writes leveled, structured log lines.
type Logger struct {
	base   *logrus.Logger
	fields logrus.Fields
	file   *os.File
}

// NewLogger creates a logger. Without options it writes text to stdout.
func NewLogger(opts ...Option) *Logger {
	o := options{out: os.Stdout}
	for _, opt := range opts {
		opt(&o)
	}

	l := &Logger{fields: logrus.Fields{}}
	out := o.out
	if o.filePath != "" {
		if err := os.MkdirAll(filepath.Dir(o.filePath), 0o755); err == nil {
			f, err := os.OpenFile(o.filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err == nil {
				l.file = f
				out = io.MultiWriter(out, f)
			} else {
				fmt.Fprintf(os.Stderr, "log: cannot open %s: %v\n", o.filePath, err)
			}
		}
	}

	l.base = &logrus.Logger{
		Out:       out,
		Formatter: &lineFormatter{json: o.json},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.DebugLevel,
	}
	return l
}

// Configure replaces the package-level logger.
func Configure(opts ...Option) {
	logger = NewLogger(opts...)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// SetDebug toggles debug output for every logger.
func SetDebug(debug bool) {
	isDebug.Store(debug)
}

// With returns a child logger carrying the additional fields.
func (l *Logger) With(fields ...Field) *Logger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for _, f := range fields {
		merged[f.Key] = f.Value
	}
	return &Logger{base: l.base, fields: merged, file: l.file}
}

// WithContext returns a logger for ctx. No context values are extracted yet.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	return l
}

// WithError annotates the logger with err and, for application errors,
// its kind and subject.
func (l *Logger) WithError(err error) *Logger {
	return l.With(errorFields(err)...)
}

func (l *Logger) Info(msg string)                          { l.write(logrus.InfoLevel, msg) }
func (l *Logger) Infof(format string, args ...interface{}) { l.write(logrus.InfoLevel, fmt.Sprintf(format, args...)) }
func (l *Logger) Warn(msg string)                          { l.write(logrus.WarnLevel, msg) }
func (l *Logger) Error(msg string)                         { l.write(logrus.ErrorLevel, msg) }
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.write(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

func (l *Logger) Debug(msg string) {
	if isDebug.Load() {
		l.write(logrus.DebugLevel, msg)
	}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		l.write(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

// write must be called directly from an exported logging function so that
// the caller two frames up is the user's code.
func (l *Logger) write(level logrus.Level, msg string) {
	fields := make(logrus.Fields, len(l.fields)+1)
	for k, v := range l.fields {
		fields[k] = v
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		fields["caller"] = fmt.Sprintf("%s:%d", filepath.Base(file), line)
	}
	l.base.WithFields(fields).Log(level, msg)
}

// LogWithFields returns the package logger with fields attached.
func LogWithFields(fields ...Field) *Logger {
	return logger.With(fields...)
}

// LogWithError returns the package logger annotated with err.
func LogWithError(err error) *Logger {
	return logger.WithError(err)
}

// LogError logs err at error level with msg.
func LogError(err error, msg string) {
	logger.WithError(err).write(logrus.ErrorLevel, msg)
}

// Info logs at info level; args, when present, format msg.
func Info(msg string, args ...interface{}) { logger.write(logrus.InfoLevel, sprintf(msg, args)) }

// Infof logs a formatted info message.
func Infof(format string, args ...interface{}) {
	logger.write(logrus.InfoLevel, fmt.Sprintf(format, args...))
}

// Warn logs at warning level.
func Warn(msg string, args ...interface{}) { logger.write(logrus.WarnLevel, sprintf(msg, args)) }

// Error logs at error level.
func Error(msg string, args ...interface{}) { logger.write(logrus.ErrorLevel, sprintf(msg, args)) }

// Errorf logs a formatted error message.
func Errorf(format string, args ...interface{}) {
	logger.write(logrus.ErrorLevel, fmt.Sprintf(format, args...))
}

// Debug logs at debug level when debug output is on.
func Debug(msg string, args ...interface{}) {
	if isDebug.Load() {
		logger.write(logrus.DebugLevel, sprintf(msg, args))
	}
}

// Debugf logs a formatted debug message when debug output is on.
func Debugf(format string, args ...interface{}) {
	if isDebug.Load() {
		logger.write(logrus.DebugLevel, fmt.Sprintf(format, args...))
	}
}

func sprintf(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

func errorFields(err error) []Field {
	if err == nil {
		return []Field{F("error", "<nil>")}
	}
	fields := []Field{F("error", err.Error())}

	var appErr interface{ Kind() errors.ErrorKind }
	if errors.As(err, &appErr) {
		fields = append(fields, F("error_kind", int(appErr.Kind())))
	}

	var fileErr *errors.FileError
	if errors.As(err, &fileErr) && fileErr.Path() != "" {
		fields = append(fields, F("path", fileErr.Path()))
	}
	var configErr *errors.ConfigError
	if errors.As(err, &configErr) && configErr.Param() != "" {
		fields = append(fields, F("param", configErr.Param()))
	}
	var contentErr *errors.ContentError
	if errors.As(err, &contentErr) && contentErr.Filename() != "" {
		fields = append(fields, F("filename", contentErr.Filename()))
	}
	var valErr *errors.ValidationError
	if errors.As(err, &valErr) && valErr.Field() != "" {
		fields = append(fields, F("field", valErr.Field()))
	}
	var remoteErr *errors.RemoteError
	if errors.As(err, &remoteErr) {
		fields = append(fields, F("endpoint", remoteErr.Endpoint()))
	}
	return fields
}

// lineFormatter renders entries either as
// "2006-01-02 15:04:05 INFO message key=value ..." or as a JSON object
// with level, message, timestamp and caller keys.
type lineFormatter struct {
	json bool
}

func (f *lineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	level := strings.ToUpper(entry.Level.String())
	if entry.Level == logrus.WarnLevel {
		level = "WARN"
	}

	if f.json {
		data := make(map[string]interface{}, len(entry.Data)+3)
		for k, v := range entry.Data {
			if e, ok := v.(error); ok {
				v = e.Error()
			}
			data[k] = v
		}
		data["level"] = level
		data["message"] = entry.Message
		data["timestamp"] = entry.Time.Format(time.RFC3339)
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return append(b, '\n'), nil
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %-5s %s", entry.Time.Format(timestampFormat), level, entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		if k != "caller" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteByte(' ')
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(formatValue(entry.Data[k]))
	}
	if caller, ok := entry.Data["caller"]; ok {
		fmt.Fprintf(&buf, " caller=%v", caller)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func formatValue(v interface{}) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}
