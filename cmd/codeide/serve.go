package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/api"
	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/execution"
)

var portFlag int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API for the editor frontend.

Endpoints are under /api. When server.mcp_enabled is set, the MCP streamable
HTTP transport is mounted at /mcp.

Examples:
  codeide serve
  codeide serve --port 9090 --config /etc/codeide/config.yaml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	loadConfig := func() (*config.Config, error) {
		cfg, err := configFromFlags()
		if err != nil {
			return nil, err
		}
		if portFlag > 0 {
			cfg.Server.HTTPPort = portFlag
		}
		return cfg, nil
	}

	app := fx.New(
		coreOptions(loadConfig),
		fx.Provide(newStore, newMCPServer, newAPIServer),
		fx.Invoke(func(lc fx.Lifecycle, srv *api.Server, svc *execution.Service, log *zap.Logger) {
			log.Info("execution admission", zap.Int("max_concurrent", svc.Capacity()))
			lc.Append(fx.Hook{
				OnStart: srv.Start,
				OnStop:  srv.Shutdown,
			})
		}),
	)

	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}
