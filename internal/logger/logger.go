// Package logger builds the zap logger used by the ventusky command.
package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// ErrInvalidLevel is returned when an invalid logging level is provided.
	ErrInvalidLevel = errors.New("invalid logging level")
	// ErrInvalidEncoding is returned when an invalid log encoding format is provided.
	ErrInvalidEncoding = errors.New("invalid log encoding format")
)

// Config holds logging settings.
type Config struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
}

var logLevels = map[string]zapcore.Level{
	"debug": zapcore.DebugLevel,
	"info":  zapcore.InfoLevel,
	"warn":  zapcore.WarnLevel,
	"error": zapcore.ErrorLevel,
}

// New creates a logger writing to stderr, so stdout stays free for command output.
func New(cfg Config) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "console"
	}

	level, ok := logLevels[strings.ToLower(cfg.Level)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLevel, cfg.Level)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	encoderConfig.EncodeCaller = zapcore.ShortCallerEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	if cfg.Development {
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
		}
	}

	var encoder zapcore.Encoder
	switch cfg.Encoding {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidEncoding, cfg.Encoding)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), level)
	opts := []zap.Option{
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	}
	if cfg.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(core, opts...), nil
}
