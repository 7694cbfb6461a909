// Package main is the entry point for the codeide server.
//
// codeide runs untrusted Python, C++ and Node.js submissions in throwaway
// Docker containers with networking disabled, a hard memory ceiling and a
// wall-clock timeout. It serves an HTTP API for an online editor (execution,
// saved files, language list), an MCP endpoint for agents, and a one-shot
// run command for the terminal.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, zap for structured logging, viper for configuration
// and cobra for the command line.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configFlag string

var rootCmd = &cobra.Command{
	Use:   "codeide",
	Short: "codeide - sandboxed code execution backend",
	Long: `codeide executes untrusted source code in ephemeral, resource-limited,
network-disabled containers.

Supported languages: python, cpp, nodejs.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config.yaml (default: ./config.yaml or ./config/config.yaml)")
}

// exitCodeError carries a process exit status out of a command.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exit *exitCodeError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
