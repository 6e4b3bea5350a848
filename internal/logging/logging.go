package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

type Level int

const (
	Debug Level = iota
	Info
	Warn
	Error
)

// LevelIDs lists the command-line spellings of each level.
var LevelIDs = map[Level][]string{
	Debug: {"debug"},
	Info:  {"info"},
	Warn:  {"warn", "warning"},
	Error: {"error"},
}

type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var FormatIDs = map[Format][]string{
	FormatText: {"text"},
	FormatJSON: {"json"},
}

type Config struct {
	Level  Level
	Format Format
	Output io.Writer
}

type Logger struct {
	zl zerolog.Logger
}

func NewLogger(cfg Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatText {
		out = zerolog.ConsoleWriter{Out: out, NoColor: !isTerminal(out)}
	}
	zl := zerolog.New(out).Level(cfg.Level.zerolog()).With().Timestamp().Logger()
	return &Logger{zl: zl}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{zl: zerolog.Nop()}
}

func (lvl Level) zerolog() zerolog.Level {
	switch lvl {
	case Debug:
		return zerolog.DebugLevel
	case Warn:
		return zerolog.WarnLevel
	case Error:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a child logger annotating every event with key=value.
func (l *Logger) With(key string, value any) *Logger {
	return &Logger{zl: l.zl.With().Interface(key, value).Logger()}
}

func (l *Logger) Debugf(f string, a ...any) {
	l.zl.Debug().Msgf(f, a...)
}

func (l *Logger) Infof(f string, a ...any) {
	l.zl.Info().Msgf(f, a...)
}

func (l *Logger) Warnf(f string, a ...any) {
	l.zl.Warn().Msgf(f, a...)
}

func (l *Logger) Errorf(f string, a ...any) {
	l.zl.Error().Msgf(f, a...)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
