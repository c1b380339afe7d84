package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the service logger. Production uses JSON with ISO8601
// timestamps, anything else the colored development console. When sink is
// non-nil every entry is also written to it as JSON (CloudWatch Logs).
func New(env, service string, sink io.Writer) (*zap.Logger, error) {
	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if sink == nil {
		l, err := cfg.Build()
		if err != nil {
			return nil, err
		}
		return l.With(zap.String("service", service)), nil
	}

	level := zap.NewAtomicLevelAt(cfg.Level.Level())
	console := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg.EncoderConfig), zapcore.AddSync(os.Stdout), level)

	jsonCfg := cfg.EncoderConfig
	jsonCfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	remote := zapcore.NewCore(zapcore.NewJSONEncoder(jsonCfg), zapcore.AddSync(sink), level)

	l := zap.New(zapcore.NewTee(console, remote), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return l.With(zap.String("service", service)), nil
}
