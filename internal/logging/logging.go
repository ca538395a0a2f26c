// Package logging builds the process logger. Everything goes to stderr so
// stdout stays reserved for the SUMMARY line and --json payloads.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	// Verbosity 0 is production JSON at info. 1 switches to console output,
	// 2+ enables debug (logr V(1)) lines.
	Verbosity int
	// Level overrides Verbosity when set: debug|info|warn|error.
	Level   string
	Command string
	Version string
	Out     io.Writer
}

// New returns a logr.Logger backed by zap plus a flush func for deferred Sync.
func New(opts Options) (logr.Logger, func(), error) {
	var cfg zap.Config
	switch {
	case opts.Verbosity <= 0:
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	level := zapcore.InfoLevel
	if opts.Verbosity >= 2 {
		level = zapcore.DebugLevel
	}
	if strings.TrimSpace(opts.Level) != "" {
		l, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
		if err != nil {
			return logr.Discard(), func() {}, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = l
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	fields := map[string]any{"service": "docseal"}
	if opts.Command != "" {
		fields["command"] = opts.Command
	}
	if opts.Version != "" {
		fields["version"] = opts.Version
	}
	var encoder zapcore.Encoder
	if cfg.Encoding == "console" {
		encoder = zapcore.NewConsoleEncoder(cfg.EncoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(cfg.EncoderConfig)
	}
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	core := zapcore.NewCore(encoder, zapcore.AddSync(out), cfg.Level)

	zopts := []zap.Option{zap.AddCaller()}
	zf := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	zopts = append(zopts, zap.Fields(zf...))
	zl := zap.New(core, zopts...)
	return zapr.NewLogger(zl), func() { _ = zl.Sync() }, nil
}
