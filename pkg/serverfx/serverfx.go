package serverfx

import (
	"context"
	"os"

	"github.com/joeydtaylor/steeze-handoff/pkg/config"
	"github.com/joeydtaylor/steeze-handoff/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-handoff/pkg/registry"
	"github.com/joeydtaylor/steeze-handoff/pkg/server"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ---------- Options ----------

type Options struct {
	Service       string // for logs/metrics tags only
	ConfigEnv     string // env var naming the config file
	DefaultConfig string // used when ConfigEnv is unset; empty means built-in defaults
}

type Option func(*Options)

func WithService(s string) Option          { return func(o *Options) { o.Service = s } }
func WithConfigEnv(k string) Option        { return func(o *Options) { o.ConfigEnv = k } }
func WithDefaultConfig(path string) Option { return func(o *Options) { o.DefaultConfig = path } }

func defaultOptions() Options {
	return Options{
		Service:   "handoff",
		ConfigEnv: "HANDOFF_CONFIG",
	}
}

// Module returns a complete Fx option set; add app-specific fx.Invoke(...)
// taking registry.Registrator alongside.
func Module(opts ...Option) fx.Option {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return fx.Options(
		fx.Supply(o),
		fx.Provide(provideConfig),
		logger.Module,
		fx.Provide(provideServer),
		fx.Provide(provideRegistrator),
		fx.Invoke(registerHooks),
	)
}

// ---------- Providers ----------

func provideConfig(o Options) (config.Config, error) {
	var (
		cfg config.Config
		err error
	)
	if path := envOr(o.ConfigEnv, o.DefaultConfig); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg = config.Default()
		if err = cfg.ApplyEnv(); err == nil {
			err = cfg.Validate()
		}
	}
	if err != nil {
		return config.Config{}, err
	}
	if o.Service != "" && cfg.Service == config.Default().Service {
		cfg.Service = o.Service
	}
	return cfg, nil
}

func provideServer(cfg config.Config, zl *zap.Logger, lm *logger.Middleware) (*server.Server, error) {
	return server.New(cfg, server.WithLogger(zl), server.WithAccessLog(lm))
}

func provideRegistrator(s *server.Server) registry.Registrator { return s.Registrator() }

// ---------- Lifecycle ----------

func registerHooks(lc fx.Lifecycle, s *server.Server, zl *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			err := s.Shutdown(ctx)
			_ = zl.Sync()
			return err
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if k == "" {
		return def
	}
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
