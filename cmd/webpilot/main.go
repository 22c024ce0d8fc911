// Command webpilot runs browser automation tasks from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webpilot",
	Short: "LLM-driven browser task execution",
	Long: `webpilot executes natural-language tasks against a browser environment
by looping a language model over a registry of browser tools.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	rootCmd.AddCommand(runCmd, workflowCmd, modelsCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}
