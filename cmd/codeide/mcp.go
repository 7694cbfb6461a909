package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/isdmx/codeide/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	Long: `Serve the execute_code and list_languages tools over the MCP stdio
transport. Logs go to stderr; stdout carries the protocol.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(_ *cobra.Command, _ []string) error {
	app := fx.New(
		coreOptions(configFromFlags),
		fx.Provide(newMCPServer),
		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, server *mcpserver.MCPServer, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						if err := server.ServeStdio(); err != nil {
							log.Error("MCP stdio server stopped", zap.Error(err))
						}
						_ = sd.Shutdown()
					}()
					return nil
				},
			})
		}),
	)

	if err := app.Err(); err != nil {
		return err
	}

	app.Run()
	return nil
}
