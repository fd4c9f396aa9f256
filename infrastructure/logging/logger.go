// Package logging wraps bolt with the field helpers ragent logs with.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/felixgeelhaar/bolt/v3"
)

var (
	root     *bolt.Logger
	rootOnce sync.Once
)

var levels = map[string]bolt.Level{
	"trace": bolt.TRACE,
	"debug": bolt.DEBUG,
	"info":  bolt.INFO,
	"warn":  bolt.WARN,
	"error": bolt.ERROR,
}

// Config selects the level, encoding and sink of the process logger.
type Config struct {
	Level  string
	Format string // json or console
	// Output defaults to stderr so command output on stdout stays parseable.
	Output io.Writer
}

// DefaultConfig logs info and above to stderr in console format.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "console", Output: os.Stderr}
}

// FromSettings builds a Config from the logging section of a ragent
// configuration file. Empty values fall back to DefaultConfig.
func FromSettings(level, format string, out io.Writer) Config {
	cfg := DefaultConfig()
	if level != "" {
		cfg.Level = level
	}
	if format != "" {
		cfg.Format = format
	}
	if out != nil {
		cfg.Output = out
	}
	return cfg
}

func parseLevel(s string) bolt.Level {
	if l, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return l
	}
	return bolt.INFO
}

// New builds a standalone logger. Most code logs through the package
// helpers instead.
func New(cfg Config) *bolt.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var h bolt.Handler = bolt.NewConsoleHandler(out)
	if strings.EqualFold(cfg.Format, "json") {
		h = bolt.NewJSONHandler(out)
	}
	return bolt.New(h).SetLevel(parseLevel(cfg.Level))
}

// Init installs the process logger. Only the first call has an effect;
// later level changes go through SetLevel.
func Init(cfg Config) {
	rootOnce.Do(func() { root = New(cfg) })
}

// Get returns the process logger, installing the default one if Init was
// never called.
func Get() *bolt.Logger {
	Init(DefaultConfig())
	return root
}

// SetLevel changes the minimum level of the process logger.
func SetLevel(level string) {
	Get().SetLevel(parseLevel(level))
}

// LogEvent chains Fields onto a pending bolt event.
type LogEvent struct {
	e *bolt.Event
}

// NewEvent wraps e.
func NewEvent(e *bolt.Event) *LogEvent { return &LogEvent{e: e} }

// Add applies f and returns the event for chaining.
func (l *LogEvent) Add(f Field) *LogEvent {
	l.e = f(l.e)
	return l
}

// Msg writes the event with msg.
func (l *LogEvent) Msg(msg string) { l.e.Msg(msg) }

// Send writes the event without a message.
func (l *LogEvent) Send() { l.e.Send() }

func Trace() *LogEvent { return NewEvent(Get().Trace()) }
func Debug() *LogEvent { return NewEvent(Get().Debug()) }
func Info() *LogEvent  { return NewEvent(Get().Info()) }
func Warn() *LogEvent  { return NewEvent(Get().Warn()) }
func Error() *LogEvent { return NewEvent(Get().Error()) }
