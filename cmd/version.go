package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/mcpserver"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the server version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", mcpserver.ServerName, mcpserver.ServerVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
