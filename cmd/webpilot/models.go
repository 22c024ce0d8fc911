package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/webpilot-ai/webpilot/llm"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models",
	RunE: func(cmd *cobra.Command, args []string) error {
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MODEL\tPROVIDER\tTIER\tCONTEXT\tMAX OUTPUT")
		for _, m := range llm.ListModels("") {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
				m.ID, m.Provider, m.Tier, m.ContextWindow, m.MaxOutput)
		}
		return tw.Flush()
	},
}
