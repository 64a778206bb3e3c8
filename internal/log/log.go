package log

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu         sync.RWMutex
	logger     zerolog.Logger
	loggerOnce sync.Once
	minLevel   = LevelInfo
)

// initLogger initializes the global logger to write JSON lines to stderr.
func initLogger() {
	loggerOnce.Do(func() {
		zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000000Z07:00"
		logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	})
}

// SetOutput redirects log output. With pretty set, lines are rendered by
// zerolog's console writer instead of JSON.
func SetOutput(w io.Writer, pretty bool) {
	initLogger()
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	}
	mu.Lock()
	logger = zerolog.New(w).With().Timestamp().Logger()
	mu.Unlock()
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	minLevel = l
	mu.Unlock()
}

// ParseLevel maps a config string to a Level. Unknown values fall back to
// LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(LevelDebug, msg, nil, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(LevelInfo, msg, nil, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(LevelWarn, msg, nil, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(LevelError, msg, err, kv...)
}

func logWithLevel(level Level, msg string, err error, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	on := enabled(level)
	mu.RUnlock()
	if !on {
		return
	}

	ev := l.WithLevel(zerologLevel(level))
	if err != nil {
		ev = ev.Err(err)
	}
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

func enabled(level Level) bool {
	return rank(level) >= rank(minLevel)
}

func rank(l Level) int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 0
	}
}

func zerologLevel(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
