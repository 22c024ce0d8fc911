package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/webpilot-ai/webpilot/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Inspect workflow plans",
}

var workflowValidateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Validate workflow YAML files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var failed bool
		for _, path := range args {
			w, err := workflow.Load(path)
			if err != nil {
				color.Red("%s: %v", path, err)
				failed = true
				continue
			}
			color.Green("%s: ok (%s, %d steps)", path, w.Name, len(w.Steps))
		}
		if failed {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

var workflowShowCmd = &cobra.Command{
	Use:   "show <file>",
	Short: "Render a workflow plan as it appears in the prompt",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		w, err := workflow.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Print(w.Render())
		return nil
	},
}

func init() {
	workflowCmd.AddCommand(workflowValidateCmd, workflowShowCmd)
}
