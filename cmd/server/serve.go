package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/scriptbox/config"
	"github.com/isdmx/scriptbox/engine"
	"github.com/isdmx/scriptbox/logger"
	"github.com/isdmx/scriptbox/mcpserver"
	"github.com/isdmx/scriptbox/nuget"
	"github.com/isdmx/scriptbox/pkgcache"
	"github.com/isdmx/scriptbox/resolver"
	"github.com/isdmx/scriptbox/sandbox"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long:  `Starts the MCP server on the transport selected by server.transport (stdio or http).`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	app := fx.New(
		core(),

		fx.Provide(
			// MCP Server
			func(e *engine.Engine) mcpserver.Runner { return e },
			mcpserver.New,
		),

		fx.Invoke(registerWatcher, registerTransport),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}

// core provides everything needed to run a script.
func core() fx.Option {
	return fx.Provide(
		// Config
		func() (*config.Config, error) { return config.Load(configPath) },

		// Logger with configuration
		logger.NewFromConfig,

		// Package source, on-disk cache and resolver
		nuget.NewSource,
		pkgcache.NewStoreFromConfig,
		resolver.NewFromConfig,

		// Evaluator based on config
		sandbox.NewEvaluator,

		engine.NewFromConfig,
	)
}

// registerWatcher drops cached packages from the session when their
// directories are deleted.
func registerWatcher(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, store *pkgcache.Store) error {
	if !cfg.Resolver.WatchCache {
		return nil
	}
	w, err := pkgcache.NewWatcher(log.Named("pkgcache"), store)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return w.Start(context.Background())
		},
		OnStop: func(context.Context) error {
			return w.Close()
		},
	})
	return nil
}

// registerTransport starts the transport selected by the configuration.
func registerTransport(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, log *zap.Logger, server *mcpserver.MCPServer) error {
	switch cfg.Server.Transport {
	case "stdio":
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					defer close(done)
					if err := server.ServeStdio(ctx); err != nil {
						log.Error("stdio transport failed", zap.Error(err))
					}
					// stdin closed: the client is gone
					_ = shutdowner.Shutdown()
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
				case <-stopCtx.Done():
				}
				return nil
			},
		})
	case "http":
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				go func() {
					if err := server.ServeHTTP(); err != nil {
						log.Error("http transport failed", zap.Error(err))
						_ = shutdowner.Shutdown(fx.ExitCode(1))
					}
				}()
				return nil
			},
			OnStop: server.Shutdown,
		})
	default:
		return fmt.Errorf("unsupported transport: %s", cfg.Server.Transport)
	}
	return nil
}
