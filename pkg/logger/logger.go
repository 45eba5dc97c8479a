// Package logger holds the process-wide zerolog instance.
//
// Call Init once from main, then pass the returned logger (or a Component
// sub-logger) down by value. Get exists for the rare places that cannot
// take an injected logger.
package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options controls how the root logger is built.
type Options struct {
	// Level is the minimum level emitted: trace, debug, info, warn or
	// error. Anything else falls back to info.
	Level string
	// Service is stamped on every line as the "service" field.
	Service string
	// Pretty switches to the human console writer. Production keeps the
	// default JSON output.
	Pretty bool
	// Output defaults to os.Stdout.
	Output io.Writer
}

var (
	mu   sync.Mutex
	root zerolog.Logger
	up   bool
)

// Init builds the root logger. The first call wins; later calls return the
// existing instance unchanged.
func Init(opts Options) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if up {
		return root
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	lvl := parseLevel(opts.Level)
	zerolog.SetGlobalLevel(lvl)

	ctx := zerolog.New(out).Level(lvl).With().Timestamp()
	if opts.Service != "" {
		ctx = ctx.Str("service", opts.Service)
	}
	root = ctx.Logger()
	up = true
	return root
}

// Get returns the root logger. Panics when Init has not run yet, which is
// always a wiring mistake.
func Get() zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if !up {
		panic("logger: Get called before Init")
	}
	return root
}

// Component derives a sub-logger tagged with the given component name.
func Component(name string) zerolog.Logger {
	return Get().With().Str("component", name).Logger()
}

// Reset discards the root logger so the next Init rebuilds it. Test use only.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	root = zerolog.Logger{}
	up = false
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
