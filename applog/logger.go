// Package applog provides the structured, component-tagged logger used
// across arbwatch, wrapping logrus the way rahjooh-CryptoTrade's logger
// package does: JSON formatting, a caller-fixing hook, and optional
// rotated-file output via lumberjack.
package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Fields has the same shape as logrus.Fields and is converted to it, so
// call sites stay free of the logrus import.
type Fields map[string]interface{}

// Log wraps *logrus.Logger with component-scoped helpers.
type Log struct {
	*logrus.Logger
}

// Entry wraps *logrus.Entry with the same component-scoped helpers.
type Entry struct {
	*logrus.Entry
}

var global *Log

func init() {
	global = New()
}

// New builds a Log with defaults appropriate for local development: text
// output to stderr at info level. Call Configure to change any of that.
func New() *Log {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetReportCaller(true)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, CallerPrettyfier: callerPrettyfier})
	l.AddHook(&callerHook{})
	return &Log{Logger: l}
}

// Default returns the process-wide logger.
func Default() *Log { return global }

// Configure applies level/format/output settings, typically once at
// startup from config.Config.
func (l *Log) Configure(level, format, output string) error {
	lvl, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("applog: invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)

	switch format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
			CallerPrettyfier: callerPrettyfier,
		})
	case "text", "":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, CallerPrettyfier: callerPrettyfier})
	default:
		return fmt.Errorf("applog: invalid log format %q", format)
	}

	switch output {
	case "", "stderr":
		l.SetOutput(os.Stderr)
	case "stdout":
		l.SetOutput(os.Stdout)
	default:
		l.SetOutput(&lumberjack.Logger{Filename: output, MaxSize: 100, MaxAge: 14, Compress: true})
	}
	return nil
}

// WithComponent tags subsequent entries with a component name, e.g. "binance".
func (l *Log) WithComponent(component string) *Entry {
	return &Entry{Entry: l.Logger.WithField("component", component)}
}

// WithFields tags subsequent entries with arbitrary structured fields.
func (l *Log) WithFields(fields Fields) *Entry {
	return &Entry{Entry: l.Logger.WithFields(logrus.Fields(fields))}
}

// WithComponent narrows an existing entry to a sub-component.
func (e *Entry) WithComponent(component string) *Entry {
	return &Entry{Entry: e.Entry.WithField("component", component)}
}

// WithFields adds structured fields to an existing entry.
func (e *Entry) WithFields(fields Fields) *Entry {
	return &Entry{Entry: e.Entry.WithFields(logrus.Fields(fields))}
}

// WithError attaches an error to an existing entry.
func (e *Entry) WithError(err error) *Entry {
	return &Entry{Entry: e.Entry.WithError(err)}
}

func callerPrettyfier(f *runtime.Frame) (string, string) {
	return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
}

// callerHook adjusts the reported caller to the first frame outside logrus
// and this package, mirroring rahjooh-CryptoTrade's logger.callerHook.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 16)
	n := runtime.Callers(8, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !more {
			break
		}
		fn := frame.Function
		if strings.Contains(fn, "sirupsen/logrus") || strings.Contains(fn, "arbwatch/applog") {
			continue
		}
		entry.Caller = &frame
		break
	}
	return nil
}
