package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/handlers"
	"github.com/shakram02/go-mcp-mssql/internal/sqlguard"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the operations exposed for the configured dialect",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := load()
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Operation", "Family", "Accepts", "Description"}}
		for _, desc := range handlers.Operations(a.dialect, handlers.Options{}) {
			accepts := "-"
			if desc.Intent != "" && desc.Intent != sqlguard.None {
				accepts = string(desc.Intent)
			}
			data = append(data, []string{desc.Name, string(desc.Family), accepts, desc.Description})
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
}
