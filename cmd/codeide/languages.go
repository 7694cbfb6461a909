package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/isdmx/codeide/config"
	"github.com/isdmx/codeide/language"
)

var languagesCmd = &cobra.Command{
	Use:   "languages",
	Short: "List supported languages and their runtime images",
	RunE:  runLanguages,
}

func init() {
	rootCmd.AddCommand(languagesCmd)
}

func runLanguages(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	registry, err := language.NewFromConfig(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-8s %-6s %-24s %s\n", "ID", "EXT", "IMAGE", "COMMAND")
	for _, p := range registry.Profiles() {
		fmt.Fprintf(out, "%-8s %-6s %-24s %v\n", p.ID, p.Extension, p.Image, p.Command(p.SourceFile()))
	}
	return nil
}
