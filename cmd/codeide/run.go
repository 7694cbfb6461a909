package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/isdmx/codeide/execution"
	"github.com/isdmx/codeide/language"
	"github.com/isdmx/codeide/sandbox"
)

// infraExitStatus is the process status when the engine, not the program, failed.
const infraExitStatus = 125

var (
	languageFlag string
	stdinFlag    string
	outputFlag   string
)

var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Execute one source file in the sandbox",
	Long: `Execute one source file in a fresh container and print the result.

The language is inferred from the file extension unless --language is given.
Use --stdin - to forward this process's standard input to the program.
The command exits with the program's exit code, or 125 when the sandbox
itself failed (timeout, image or container error).

Examples:
  codeide run hello.py
  codeide run main.cpp --stdin "3 4"
  codeide run script.js --output yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&languageFlag, "language", "l", "", "Language (python, cpp, nodejs)")
	runCmd.Flags().StringVar(&stdinFlag, "stdin", "", "Standard input for the program, or - to read it from this process")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", "json", "Output format: json or yaml")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if outputFlag != "json" && outputFlag != "yaml" {
		return fmt.Errorf("unknown output format %q (json or yaml)", outputFlag)
	}

	code, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading source: %w", err)
	}

	stdin := stdinFlag
	if stdin == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading stdin: %w", err)
		}
		stdin = string(data)
	}

	var (
		svc      *execution.Service
		registry *language.Registry
	)
	app := fx.New(
		coreOptions(configFromFlags),
		fx.Populate(&svc, &registry),
	)
	if err := app.Err(); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Stop(context.Background())

	lang := languageFlag
	if lang == "" {
		lang = languageForFile(registry, args[0])
	}

	result, err := svc.Execute(ctx, execution.Request{
		Code:     string(code),
		Language: lang,
		Stdin:    stdin,
	})
	if err != nil {
		return err
	}

	if err := printResult(cmd.OutOrStdout(), result); err != nil {
		return err
	}

	switch {
	case result.ExitCode < 0:
		return &exitCodeError{code: infraExitStatus}
	case result.ExitCode > 0:
		return &exitCodeError{code: result.ExitCode}
	}
	return nil
}

// languageForFile maps a file extension to a registered language, or "" when none matches.
func languageForFile(registry *language.Registry, path string) string {
	ext := filepath.Ext(path)
	for _, p := range registry.Profiles() {
		if p.Extension == ext {
			return string(p.ID)
		}
	}
	return ""
}

func printResult(w io.Writer, result sandbox.Result) error {
	if outputFlag == "yaml" {
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
