// Package logging implements the structured logger used throughout the
// service: leveled output, multiple writers, and RFC5424-encoded structured
// fields for machine-parseable logs.
package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	}
	return "UNKNOWN"
}

func (l Level) Valid() bool {
	return l >= OFF && l <= FATAL
}

// LevelFromString parses one of DEBUG, INFO, WARN, ERROR, FATAL (case
// insensitive), plus OFF and the alias WARNING. It is the inverse of
// Level.String; main.go passes the LOG_LEVEL value to it via SetLevelString.
func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OFF":
		return OFF, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	}
	return OFF, ErrInvalidLevel
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.Debug
	case INFO:
		return rfc5424.Info
	case WARN:
		return rfc5424.Warning
	case ERROR:
		return rfc5424.Error
	case FATAL:
		return rfc5424.Crit
	}
	return rfc5424.Info
}

var (
	ErrNotOpen      = errors.New("logger is not open")
	ErrInvalidLevel = errors.New("invalid log level")
)

// Logger is a leveled, multi-writer structured logger. The zero value is not
// usable; construct with New.
type Logger struct {
	mtx      sync.Mutex
	wtrs     []io.WriteCloser
	lvl      Level
	hot      bool
	hostname string
	appname  string
}

// New builds a logger writing to wtr at level INFO.
func New(wtr io.WriteCloser, appname string) *Logger {
	l := &Logger{
		wtrs:    []io.WriteCloser{wtr},
		lvl:     INFO,
		hot:     true,
		appname: appname,
	}
	if h, err := os.Hostname(); err == nil {
		l.hostname = h
	}
	return l
}

// NewDiscard returns a logger that drops everything; useful as a default
// before a real sink is wired up, and in tests.
func NewDiscard() *Logger {
	return New(discardCloser{}, "logserver")
}

type discardCloser struct{}

func (discardCloser) Write(b []byte) (int, error) { return len(b), nil }
func (discardCloser) Close() error                { return nil }

func (l *Logger) AddWriter(wtr io.WriteCloser) error {
	if wtr == nil {
		return errors.New("nil writer")
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.wtrs = append(l.wtrs, wtr)
	return nil
}

func (l *Logger) SetLevel(lvl Level) error {
	if !lvl.Valid() {
		return ErrInvalidLevel
	}
	l.mtx.Lock()
	l.lvl = lvl
	l.mtx.Unlock()
	return nil
}

func (l *Logger) SetLevelString(s string) error {
	lvl, err := LevelFromString(s)
	if err != nil {
		return err
	}
	return l.SetLevel(lvl)
}

func (l *Logger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	if !l.hot {
		return ErrNotOpen
	}
	l.hot = false
	var err error
	for _, w := range l.wtrs {
		if lerr := w.Close(); lerr != nil {
			err = lerr
		}
	}
	return err
}

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) { l.output(DEBUG, msg, sds...) }
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.output(INFO, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.output(WARN, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) { l.output(ERROR, msg, sds...) }

// Fatal logs at FATAL and exits the process. Use sparingly — only at
// startup, never from a request-handling or ingest goroutine.
func (l *Logger) Fatal(msg string, sds ...rfc5424.SDParam) {
	l.output(FATAL, msg, sds...)
	os.Exit(1)
}

func (l *Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) {
	l.mtx.Lock()
	cur := l.lvl
	hot := l.hot
	hostname, appname := l.hostname, l.appname
	wtrs := l.wtrs
	l.mtx.Unlock()

	if !hot || cur == OFF || lvl < cur {
		return
	}
	ts := time.Now()
	b, err := genMessage(ts, lvl.priority(), hostname, appname, msg, sds...)
	if err != nil || len(b) == 0 {
		return
	}
	line := strings.TrimRight(string(b), "\n\r")

	l.mtx.Lock()
	for _, w := range wtrs {
		io.WriteString(w, line)
		io.WriteString(w, "\n")
	}
	l.mtx.Unlock()
}

func genMessage(ts time.Time, prio rfc5424.Priority, hostname, appname, msg string, sds ...rfc5424.SDParam) ([]byte, error) {
	m := rfc5424.Message{
		Priority:  prio,
		Timestamp: ts,
		Hostname:  trimLength(255, hostname),
		AppName:   trimLength(48, appname),
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{
			ID:         "log@1",
			Parameters: sds,
		}}
	}
	return m.MarshalBinary()
}

func trimLength(max int, s string) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}

// KV builds a structured field pair for use with Logger's leveled methods.
func KV(name string, value interface{}) rfc5424.SDParam {
	var r rfc5424.SDParam
	r.Name = name
	switch v := value.(type) {
	case string:
		r.Value = v
	default:
		r.Value = fmt.Sprintf("%v", value)
	}
	return r
}

// KVErr is shorthand for KV("error", err).
func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}
