package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects what every entry of a process logger is tagged with and
// where it is written.
type Options struct {
	Service string
	Env     string
	// File, when set, receives a copy of every entry next to stdout.
	File string
}

// New builds the JSON logger shared by the server and the load generator.
// The dev env lowers the level to debug.
func New(opts Options) (*zap.Logger, error) {
	outputs := []string{"stdout"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		outputs = append(outputs, opts.File)
	}

	level := zap.InfoLevel
	if opts.Env == "dev" {
		level = zap.DebugLevel
	}

	encoder := zap.NewProductionEncoderConfig()
	encoder.TimeKey = "ts"
	encoder.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoder.EncodeLevel = zapcore.LowercaseLevelEncoder

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Encoding:         "json",
		EncoderConfig:    encoder,
		OutputPaths:      outputs,
		ErrorOutputPaths: outputs,
		InitialFields: map[string]any{
			"service": opts.Service,
			"env":     opts.Env,
		},
	}
	return cfg.Build()
}

func MustNew(opts Options) *zap.Logger {
	logger, err := New(opts)
	if err != nil {
		panic(err)
	}
	return logger
}
