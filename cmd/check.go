package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/logging"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the database connection",
	Long: `check builds the connection string from the current settings, prints it
with the password masked, and pings the database.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := load()
		if err != nil {
			return err
		}
		dsn, err := a.dsn()
		if err != nil {
			return err
		}

		pterm.DefaultBox.
			WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint(a.dialect.Name())).
			WithPadding(1).
			Println(logging.Mask(dsn))

		spinner, _ := pterm.DefaultSpinner.Start("Connecting...")
		pool, err := a.connect(cmd.Context())
		if err != nil {
			spinner.Fail(logging.Mask(err.Error()))
			return err
		}
		defer pool.Close()

		if err := pool.Ping(cmd.Context()); err != nil {
			spinner.Fail(err.Error())
			return err
		}
		spinner.Success("Connected")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
