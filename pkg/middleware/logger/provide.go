package logger

import (
	"github.com/joeydtaylor/steeze-handoff/pkg/config"
	"go.uber.org/zap"
)

func ProvideLogger(cfg config.Config) (*zap.Logger, error) {
	return NewLog(cfg.LogDir, "system.log", cfg.LogLevel)
}

// ProvideLoggerMiddleware writes access lines to their own http-access.log.
func ProvideLoggerMiddleware(cfg config.Config) (*Middleware, error) {
	l, err := NewLog(cfg.LogDir, "http-access.log", cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	m := NewMiddleware(l)
	m.AddQuietPaths(cfg.HeartbeatPath, cfg.MetricsPath)
	return m, nil
}
