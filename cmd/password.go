package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/shakram02/go-mcp-mssql/internal/config"
)

var passwordKeys = map[string]string{
	"sqlserver": config.KeyMSSQLPassword,
	"postgres":  config.KeyPostgresPassword,
	"mysql":     config.KeyMySQLPassword,
}

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Store the database password in the OS keyring",
	Long: `password reads a password from stdin and stores it in the OS credential
store. It is used whenever the matching environment variable and config file
entry are absent.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := load()
		if err != nil {
			return err
		}
		key, ok := passwordKeys[a.dialect.Name()]
		if !ok {
			return fmt.Errorf("%s does not use a password", a.dialect.Name())
		}

		fmt.Fprintf(os.Stderr, "Password for %s: ", config.EnvName(key))
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read password: %w", err)
		}
		secret := strings.TrimRight(line, "\r\n")
		if secret == "" {
			return errors.New("password is required")
		}

		ring := config.NewKeyring(config.Lookup(a.src, config.KeyKeyringService, config.DefaultKeyringService))
		if err := ring.Store(key, secret); err != nil {
			return fmt.Errorf("failed to store password: %w", err)
		}
		pterm.Success.Printfln("Stored %s in the OS keyring", config.EnvName(key))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(passwordCmd)
}
