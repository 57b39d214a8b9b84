// Package config resolves named settings from layered sources: environment
// variables, an optional YAML file and the OS keyring.
package config

import "fmt"

// Source resolves a dotted setting key to a string.
type Source interface {
	Get(key string) (string, bool)
}

// Setting keys and the environment variables that supply them.
const (
	KeyDialect = "connection.dialect"

	KeyMSSQLServer          = "mssql.server"
	KeyMSSQLPort            = "mssql.port"
	KeyMSSQLDatabase        = "mssql.database"
	KeyMSSQLUser            = "mssql.user"
	KeyMSSQLPassword        = "mssql.password"
	KeyMSSQLTrustServerCert = "mssql.trust_server_certificate"
	KeyMSSQLTrustedConn     = "mssql.trusted_connection"
	KeyMSSQLEncrypt         = "mssql.encrypt"
	KeyPostgresHost         = "postgres.host"
	KeyPostgresPort         = "postgres.port"
	KeyPostgresDatabase     = "postgres.database"
	KeyPostgresUser         = "postgres.user"
	KeyPostgresPassword     = "postgres.password"
	KeyPostgresSSLMode      = "postgres.sslmode"
	KeyMySQLHost            = "mysql.host"
	KeyMySQLPort            = "mysql.port"
	KeyMySQLDatabase        = "mysql.database"
	KeyMySQLUser            = "mysql.user"
	KeyMySQLPassword        = "mysql.password"
	KeySQLitePath           = "sqlite.path"
	KeyQueryTimeout         = "query.timeout"
	KeyQueryMaxRows         = "query.max_rows"
	KeyQueryRejectBatches   = "query.reject_batches"
	KeyLogLevel             = "log.level"
	KeyPoolMaxOpen          = "pool.max_open"
	KeyPoolMaxIdle          = "pool.max_idle"
	KeyKeyringService       = "keyring.service"
)

var envNames = map[string]string{
	KeyDialect:              "MCP_DIALECT",
	KeyMSSQLServer:          "MSSQL_SERVER",
	KeyMSSQLPort:            "MSSQL_PORT",
	KeyMSSQLDatabase:        "MSSQL_DATABASE",
	KeyMSSQLUser:            "MSSQL_USER",
	KeyMSSQLPassword:        "MSSQL_PASSWORD",
	KeyMSSQLTrustServerCert: "TrustServerCertificate",
	KeyMSSQLTrustedConn:     "Trusted_Connection",
	KeyMSSQLEncrypt:         "MSSQL_ENCRYPT",
	KeyPostgresHost:         "MCP_PG_HOST",
	KeyPostgresPort:         "MCP_PG_PORT",
	KeyPostgresDatabase:     "MCP_PG_DB",
	KeyPostgresUser:         "MCP_PG_USER",
	KeyPostgresPassword:     "MCP_PG_PASSWORD",
	KeyPostgresSSLMode:      "MCP_PG_SSLMODE",
	KeyMySQLHost:            "MCP_MYSQL_HOST",
	KeyMySQLPort:            "MCP_MYSQL_PORT",
	KeyMySQLDatabase:        "MCP_MYSQL_DB",
	KeyMySQLUser:            "MCP_MYSQL_USER",
	KeyMySQLPassword:        "MCP_MYSQL_PASSWORD",
	KeySQLitePath:           "MCP_SQLITE_PATH",
	KeyQueryTimeout:         "MCP_QUERY_TIMEOUT",
	KeyQueryMaxRows:         "MCP_MAX_ROWS",
	KeyQueryRejectBatches:   "MCP_REJECT_BATCHES",
	KeyLogLevel:             "MCP_LOG_LEVEL",
	KeyPoolMaxOpen:          "MCP_POOL_MAX_OPEN",
	KeyPoolMaxIdle:          "MCP_POOL_MAX_IDLE",
	KeyKeyringService:       "MCP_KEYRING_SERVICE",
}

// EnvName returns the environment variable for key, or key itself when unmapped.
func EnvName(key string) string {
	if name, ok := envNames[key]; ok {
		return name
	}
	return key
}

// Lookup returns the value of key or def when it is unset or empty.
func Lookup(src Source, key, def string) string {
	if v, ok := src.Get(key); ok && v != "" {
		return v
	}
	return def
}

// Require resolves every key and reports all missing ones at once,
// named by their environment variables.
func Require(src Source, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v, ok := src.Get(k)
		if !ok || v == "" {
			missing = append(missing, EnvName(k))
			continue
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required settings: %v", missing)
	}
	return out, nil
}

// Chain consults sources in order and returns the first hit.
type Chain []Source

func (c Chain) Get(key string) (string, bool) {
	for _, s := range c {
		if s == nil {
			continue
		}
		if v, ok := s.Get(key); ok {
			return v, true
		}
	}
	return "", false
}

// Map is a fixed in-memory source.
type Map map[string]string

func (m Map) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

