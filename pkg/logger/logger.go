package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the process logger. format is "json" or "console".
func New(level string, format ...string) *zap.Logger {
	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		lvl.SetLevel(zapcore.InfoLevel)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if len(format) > 0 && format[0] == "console" {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encCfg)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(os.Stdout), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

// LineSink receives one captured console line.
type LineSink func(line string)

// WithConsoleCapture returns a logger that also hands every written entry to
// sink, prefixed the way browser console capture does it ("LOG: ", "WARN: ",
// "ERROR: "). The sink must not log through the returned logger.
func WithConsoleCapture(l *zap.Logger, sink LineSink) *zap.Logger {
	if sink == nil {
		return l
	}
	return l.WithOptions(zap.Hooks(func(e zapcore.Entry) error {
		sink(ConsolePrefix(e.Level) + e.Message)
		return nil
	}))
}

// ConsolePrefix maps a zap level to the captured console prefix.
func ConsolePrefix(level zapcore.Level) string {
	switch {
	case level >= zapcore.ErrorLevel:
		return "ERROR: "
	case level == zapcore.WarnLevel:
		return "WARN: "
	default:
		return "LOG: "
	}
}
