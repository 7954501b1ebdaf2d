package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joeydtaylor/steeze-handoff/pkg/config"
	"github.com/joeydtaylor/steeze-handoff/pkg/registry"
	"github.com/joeydtaylor/steeze-handoff/pkg/serverfx"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func newServeCmd() *cobra.Command {
	var (
		listen string
		files  []string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
		Example: `  handoffd serve -c handoff.toml
  handoffd serve --listen :8080 --file /report=./out/report.csv`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, _ := cmd.Flags().GetString("config")

			extra := make([]config.File, 0, len(files))
			for _, spec := range files {
				f, err := parseFileFlag(spec)
				if err != nil {
					return err
				}
				extra = append(extra, f)
			}

			app := fx.New(
				serverfx.Module(serverfx.WithDefaultConfig(cfgPath)),
				fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
					return &fxevent.ZapLogger{Logger: l}
				}),
				fx.Decorate(func(c config.Config) config.Config {
					if listen != "" {
						c.Listen = listen
					}
					return c
				}),
				fx.Invoke(func(lc fx.Lifecycle, reg registry.Registrator, zl *zap.Logger) {
					lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
						return registerFiles(ctx, reg, zl, extra)
					}})
				}),
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	cmd.Flags().StringArrayVar(&files, "file", nil, "register PATH=SOURCE[:NAME] at startup (repeatable)")
	return cmd
}

// parseFileFlag reads PATH=SOURCE or PATH=SOURCE:NAME.
func parseFileFlag(s string) (config.File, error) {
	path, rest, ok := strings.Cut(s, "=")
	if !ok || !strings.HasPrefix(path, "/") || rest == "" {
		return config.File{}, fmt.Errorf("--file %q: want PATH=SOURCE[:NAME] with PATH starting with /", s)
	}
	f := config.File{Path: path, Source: rest}
	if i := strings.LastIndex(rest, ":"); i > 0 && !strings.ContainsAny(rest[i+1:], `/\`) {
		f.Source, f.Name = rest[:i], rest[i+1:]
	}
	if f.Name == "" {
		f.Name = filepath.Base(f.Source)
	}
	return f, nil
}

func registerFiles(ctx context.Context, reg registry.Registrator, zl *zap.Logger, files []config.File) error {
	for _, f := range files {
		if err := reg.RegisterFile(ctx, f.Path, f.Source, f.Name); err != nil {
			return err
		}
		zl.Info("registered from flag", zap.String("path", f.Path), zap.String("source", f.Source))
	}
	return nil
}
