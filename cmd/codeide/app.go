package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/api"
	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/logger"
	"github.com/isdmx/codeide/mcpserver"
	"github.com/isdmx/codeide/sandbox"
	"github.com/isdmx/codeide/storage"
	"github.com/isdmx/codeide/storage/sqlite"
)

// coreOptions wires everything needed to execute code.
func coreOptions(loadConfig func() (*config.Config, error)) fx.Option {
	return fx.Options(
		fx.Provide(
			// Config
			loadConfig,

			// Logger with configuration
			logger.NewFromConfig,

			// Language registry with configured images
			language.NewFromConfig,

			// Container engine, closed on stop
			newEngine,

			// Sandbox runner and execution service
			sandbox.NewRunnerFromConfig,
			execution.NewFromConfig,
		),

		// Use the application logger for fx logs
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

// configFromFlags loads the configuration named by --config.
func configFromFlags() (*config.Config, error) {
	return config.Load(configFlag)
}

func newEngine(lc fx.Lifecycle, log *zap.Logger, cfg *config.Config) (sandbox.Engine, error) {
	engine, err := sandbox.NewDockerEngineFromConfig(log, cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return engine.Close()
		},
	})
	return engine, nil
}

func newStore(lc fx.Lifecycle, cfg *config.Config) (storage.Store, error) {
	store, err := sqlite.Open(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func newMCPServer(cfg *config.Config, log *zap.Logger, registry *language.Registry, svc *execution.Service) (*mcpserver.MCPServer, error) {
	return mcpserver.New(cfg, log.Named("mcp"), registry, svc)
}

func newAPIServer(cfg *config.Config, log *zap.Logger, registry *language.Registry, svc *execution.Service, store storage.Store, mcp *mcpserver.MCPServer) *api.Server {
	var opts []api.Option
	if cfg.Server.MCPEnabled {
		opts = append(opts, api.WithMCPHandler(mcp.HTTPHandler()))
	}
	return api.New(cfg, log.Named("http"), registry, svc, store, opts...)
}
