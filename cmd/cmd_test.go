package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"version"})
	t.Cleanup(func() { rootCmd.SetArgs(nil); rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, "mssql-mcp-server 1.0.0\n", out.String())
}

func TestLoad_SQLite(t *testing.T) {
	t.Setenv("MCP_DIALECT", "sqlite")
	t.Setenv("MCP_SQLITE_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("MCP_QUERY_TIMEOUT", "5")

	a, err := load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", a.dialect.Name())
	assert.Equal(t, int64(5), int64(a.settings.QueryTimeout.Seconds()))

	pool, err := a.connect(t.Context())
	require.NoError(t, err)
	defer pool.Close()
	assert.NoError(t, pool.Ping(t.Context()))
}

func TestLoad_UnknownDialect(t *testing.T) {
	t.Setenv("MCP_DIALECT", "oracle")
	_, err := load()
	assert.ErrorContains(t, err, "unsupported dialect")
}

func TestConnect_MissingSettings(t *testing.T) {
	t.Setenv("MCP_DIALECT", "sqlserver")
	for _, name := range []string{"MSSQL_SERVER", "MSSQL_DATABASE", "MSSQL_USER", "MSSQL_PASSWORD"} {
		t.Setenv(name, "")
	}
	t.Setenv("MCP_KEYRING_SERVICE", "go-mcp-mssql-test-absent")

	a, err := load()
	require.NoError(t, err)
	_, err = a.dsn()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MSSQL_SERVER")
}
