package log

import (
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

type Config struct {
	Level       string `mapstructure:"level" structs:"level"`
	Development bool   `mapstructure:"development" structs:"development"`
}

var (
	mu     sync.RWMutex
	logger = defaultLogger().Sugar()
)

// defaultLogger writes info and above to stderr until Init runs, so failures
// before configuration is loaded are still reported.
func defaultLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Init builds the package logger. JSON output unless Development is set.
func Init(cfg Config) error {
	lvl := zapcore.InfoLevel
	if cfg.Level != "" {
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return errors.Wrapf(err, "invalid log level %q", cfg.Level)
		}
	}

	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	zcfg.OutputPaths = []string{"stderr"}

	l, err := zcfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return errors.Wrap(err, "failed to build logger")
	}
	SetLogger(l)
	return nil
}

// SetLogger replaces the package logger, mostly useful in tests.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	logger = l.Sugar()
}

// L returns the underlying zap logger.
func L() *zap.Logger {
	return sugar().Desugar()
}

func Sync() {
	_ = sugar().Sync()
}

func sugar() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, keysAndValues ...interface{}) {
	sugar().Debugw(msg, keysAndValues...)
}

func Info(msg string, keysAndValues ...interface{}) {
	sugar().Infow(msg, keysAndValues...)
}

func Warn(msg string, keysAndValues ...interface{}) {
	sugar().Warnw(msg, keysAndValues...)
}

func Error(msg string, keysAndValues ...interface{}) {
	sugar().Errorw(msg, keysAndValues...)
}

// Log writes at a level chosen at runtime. Unknown levels fall back to info.
func Log(level Level, msg string, keysAndValues ...interface{}) {
	switch level {
	case DebugLevel:
		Debug(msg, keysAndValues...)
	case WarnLevel:
		Warn(msg, keysAndValues...)
	case ErrorLevel:
		Error(msg, keysAndValues...)
	default:
		Info(msg, keysAndValues...)
	}
}
