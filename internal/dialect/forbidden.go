package dialect

import "github.com/shakram02/go-mcp-mssql/internal/sqlguard"

var sqlServerForbidden = []sqlguard.Rule{
	sqlguard.Forbid(`(?i)\bxp_\w+`, "extended stored procedures"),
	sqlguard.Forbid(`(?i)\bOPENROWSET\s*\(`, "OPENROWSET()"),
	sqlguard.Forbid(`(?i)\bOPENDATASOURCE\s*\(`, "OPENDATASOURCE()"),
	sqlguard.Forbid(`(?i)\bOPENQUERY\s*\(`, "OPENQUERY()"),
	sqlguard.Forbid(`(?i)\bWAITFOR\s+(DELAY|TIME)\b`, "WAITFOR"),
	sqlguard.Keyword("BACKUP"),
	sqlguard.Keyword("RESTORE"),
	sqlguard.Keyword("DBCC"),
	sqlguard.Keyword("SHUTDOWN"),
}

var postgresForbidden = []sqlguard.Rule{
	sqlguard.Forbid(`(?i)\bCOPY\s+.*\bTO\b`, "COPY ... TO"),
	sqlguard.Forbid(`(?i)\bCOPY\s+.*\bFROM\b`, "COPY ... FROM"),
	sqlguard.Forbid(`(?i)\bpg_read_file\s*\(`, "pg_read_file()"),
	sqlguard.Forbid(`(?i)\bpg_read_binary_file\s*\(`, "pg_read_binary_file()"),
	sqlguard.Forbid(`(?i)\bpg_ls_dir\s*\(`, "pg_ls_dir()"),
	sqlguard.Forbid(`(?i)\blo_import\s*\(`, "lo_import()"),
	sqlguard.Forbid(`(?i)\blo_export\s*\(`, "lo_export()"),
	sqlguard.Forbid(`(?i)\bpg_sleep(_for|_until)?\s*\(`, "pg_sleep()"),
	sqlguard.Forbid(`(?i)\bpg_(try_)?advisory(_xact)?_lock\s*\(`, "pg_advisory_lock()"),
	sqlguard.Keyword("CALL"),
	sqlguard.Keyword("COPY"),
	sqlguard.Keyword("LISTEN"),
	sqlguard.Keyword("NOTIFY"),
	sqlguard.Keyword("PREPARE"),
	sqlguard.Keyword("DEALLOCATE"),
	sqlguard.Keyword("VACUUM"),
}

var mysqlForbidden = []sqlguard.Rule{
	sqlguard.Forbid(`(?i)\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
	sqlguard.Forbid(`(?i)\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
	sqlguard.Forbid(`(?i)\bLOAD_FILE\s*\(`, "LOAD_FILE()"),
	sqlguard.Forbid(`(?i)\bSLEEP\s*\(`, "SLEEP()"),
	sqlguard.Forbid(`(?i)\bBENCHMARK\s*\(`, "BENCHMARK()"),
	sqlguard.Forbid(`(?i)\b(GET|RELEASE|IS_FREE|IS_USED)_LOCK\s*\(`, "named locks"),
	sqlguard.Forbid(`(?i)\b(MASTER|SOURCE)_POS_WAIT\s*\(`, "replication waits"),
	sqlguard.Forbid(`(?i)\bWAIT_(FOR_EXECUTED_GTID_SET|UNTIL_SQL_THREAD_AFTER_GTIDS)\s*\(`, "replication waits"),
	sqlguard.Keyword("HANDLER"),
	sqlguard.Keyword("LOAD"),
}

var sqliteForbidden = []sqlguard.Rule{
	sqlguard.Forbid(`(?i)\bload_extension\s*\(`, "load_extension()"),
	sqlguard.Forbid(`(?i)\bwritefile\s*\(`, "writefile()"),
	sqlguard.Forbid(`(?i)\bedit\s*\(`, "edit()"),
	sqlguard.Forbid(`(?i)\bfts3_tokenizer\s*\(`, "fts3_tokenizer()"),
	sqlguard.Forbid(`(?i)\bREPLACE\s+INTO\b`, "REPLACE INTO"),
	sqlguard.Keyword("ATTACH"),
	sqlguard.Keyword("DETACH"),
	sqlguard.Keyword("REINDEX"),
	sqlguard.Keyword("VACUUM"),
	sqlguard.Keyword("PRAGMA"),
}

// ForbiddenInRead lists constructs rejected by strict mode in read statements.
func (d *SQLServer) ForbiddenInRead() []sqlguard.Rule { return sqlServerForbidden }

func (d *Postgres) ForbiddenInRead() []sqlguard.Rule { return postgresForbidden }

func (d *MySQL) ForbiddenInRead() []sqlguard.Rule { return mysqlForbidden }

func (d *SQLite) ForbiddenInRead() []sqlguard.Rule { return sqliteForbidden }
