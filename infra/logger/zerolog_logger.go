package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ZerologLogger implements the core Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

var (
	levelMu         sync.RWMutex
	componentLevels = map[string]zerolog.Level{}
)

// SetComponentLevel sets a minimum level for one component on top of the
// global level, so a noisy component can be silenced (or a single one turned
// up to debug) without touching the rest. Unknown level strings are ignored.
func SetComponentLevel(component, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return
	}
	levelMu.Lock()
	componentLevels[component] = lvl
	levelMu.Unlock()
}

func componentLevel(component string) (zerolog.Level, bool) {
	levelMu.RLock()
	defer levelMu.RUnlock()
	lvl, ok := componentLevels[component]
	return lvl, ok
}

// NewZerologLogger creates a logger writing to stdout. APP_ENV=dev switches
// to the human-readable console format. All lines carry the component field.
func NewZerologLogger(component string) Logger {
	return newZerologLogger(component, os.Stdout)
}

func newZerologLogger(component string, out io.Writer) Logger {
	w := out
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	z := zerolog.New(w).With().Timestamp().Str("component", component).Logger()
	if lvl, ok := componentLevel(component); ok {
		z = z.Level(lvl)
	}
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}
