package sqlguard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

func TestClassify_Accepted(t *testing.T) {
	tests := []struct {
		intent Intent
		query  string
	}{
		{Read, "SELECT * FROM users"},
		{Read, "select id from users"},
		{Read, "   \n\tSELECT 1"},
		{Read, "-- leading comment\nSELECT 1"},
		{Read, "/* block */ WITH cte AS (SELECT 1 AS x) SELECT x FROM cte"},
		{Read, "/* outer /* nested */ still comment */SELECT 1"},
		{Write, "INSERT INTO t VALUES (1)"},
		{Write, "update t set a = 1"},
		{Write, "DELETE FROM t"},
		{Create, "CREATE TABLE T (ID INT)"},
		{Alter, "ALTER VIEW v AS SELECT 1"},
		{Drop, "DROP TABLE T"},
		{Execute, "EXEC sp_who"},
		{Execute, "execute dbo.DoThing @a = 1"},
		{None, "anything at all"},
		{None, ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.intent)+"/"+tc.query, func(t *testing.T) {
			assert.NoError(t, Classify(tc.intent, tc.query))
		})
	}
}

func TestClassify_Rejected(t *testing.T) {
	tests := []struct {
		intent  Intent
		query   string
		keyword string
	}{
		{Read, "DELETE FROM users", "DELETE"},
		{Read, "SELECTX FROM t", "SELECTX"},
		{Read, "-- SELECT\nDROP TABLE t", "DROP"},
		{Write, "DROP TABLE T", "DROP"},
		{Write, "SELECT 1", "SELECT"},
		{Create, "ALTER TABLE t ADD c INT", "ALTER"},
		{Alter, "CREATE VIEW v AS SELECT 1", "CREATE"},
		{Drop, "TRUNCATE TABLE t", "TRUNCATE"},
		{Execute, "SELECT 1", "SELECT"},
	}
	for _, tc := range tests {
		t.Run(string(tc.intent)+"/"+tc.query, func(t *testing.T) {
			err := Classify(tc.intent, tc.query)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.DisallowedStatementKind))
			assert.Contains(t, err.Error(), tc.keyword)
		})
	}
}

func TestClassify_EmptyOrCommentOnly(t *testing.T) {
	for _, q := range []string{"", "   ", "-- only a comment", "/* unterminated", "(SELECT 1)"} {
		err := Classify(Read, q)
		assert.True(t, apperr.Is(err, apperr.DisallowedStatementKind), "query %q", q)
	}
}

func TestClassify_BatchingIsNotDetected(t *testing.T) {
	// First-keyword policy only; strict mode covers batches.
	assert.NoError(t, Classify(Read, "SELECT 1; DROP TABLE X"))
}

func TestFirstKeyword(t *testing.T) {
	assert.Equal(t, "SELECT", FirstKeyword("  select * from t"))
	assert.Equal(t, "WITH", FirstKeyword("/*x*/--y\nwith c as (select 1) select * from c"))
	assert.Equal(t, "", FirstKeyword("123"))
}

type bracketScrubber struct{}

// RemoveStringsAndComments is a minimal T-SQL-like scrubber for guard tests.
func (bracketScrubber) RemoveStringsAndComments(sql string) string {
	var b strings.Builder
	inString := false
	for i := 0; i < len(sql); i++ {
		c := sql[i]
		if c == '\'' {
			inString = !inString
			if !inString {
				b.WriteString("''")
			}
			continue
		}
		if inString {
			continue
		}
		if c == '-' && i+1 < len(sql) && sql[i+1] == '-' {
			for i < len(sql) && sql[i] != '\n' {
				i++
			}
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func TestGuard_StrictMode(t *testing.T) {
	strict := New(bracketScrubber{}, true)
	lenient := New(bracketScrubber{}, false)

	blocked := []struct {
		intent Intent
		query  string
	}{
		{Read, "SELECT 1; DROP TABLE X"},
		{Read, "SELECT 1; -- comment\nDROP TABLE users"},
		{Read, "SELECT * INTO backup FROM users"},
		{Read, "WITH d AS (SELECT 1 AS x) DELETE FROM t"},
		{Read, "SELECT 1;\nSET NOCOUNT ON"},
		{Write, "INSERT INTO t VALUES (1); DROP TABLE t"},
	}
	for _, tc := range blocked {
		t.Run("blocked/"+tc.query, func(t *testing.T) {
			err := strict.Check(tc.intent, tc.query)
			assert.True(t, apperr.Is(err, apperr.DisallowedStatementKind), "got %v", err)
			assert.NoError(t, lenient.Check(tc.intent, tc.query))
		})
	}

	allowed := []struct {
		intent Intent
		query  string
	}{
		{Read, "SELECT * FROM users WHERE name = 'DROP TABLE users'"},
		{Read, "SELECT created_at, updated_at, deleted FROM orders"},
		{Read, "SELECT * FROM settings;"},
		{Read, "SELECT 1 -- ; DROP TABLE users"},
		{Write, "UPDATE t SET a = 'x;y'"},
	}
	for _, tc := range allowed {
		t.Run("allowed/"+tc.query, func(t *testing.T) {
			assert.NoError(t, strict.Check(tc.intent, tc.query))
		})
	}
	assert.True(t, strict.Strict())
}
