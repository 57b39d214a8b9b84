// Package sqlguard decides whether raw SQL text matches the statement
// category an operation is allowed to run.
package sqlguard

import (
	"fmt"
	"slices"
	"strings"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

// Intent is the statement category an operation may execute.
type Intent string

const (
	None    Intent = "none"
	Read    Intent = "read"
	Write   Intent = "write"
	Create  Intent = "create"
	Alter   Intent = "alter"
	Drop    Intent = "drop"
	Execute Intent = "execute"
)

var allowedKeywords = map[Intent][]string{
	Read:    {"SELECT", "WITH"},
	Write:   {"INSERT", "UPDATE", "DELETE"},
	Create:  {"CREATE"},
	Alter:   {"ALTER"},
	Drop:    {"DROP"},
	Execute: {"EXEC", "EXECUTE"},
}

// AllowedKeywords returns the leading keywords accepted for intent.
func AllowedKeywords(intent Intent) []string {
	return slices.Clone(allowedKeywords[intent])
}

// Classify accepts sqlText when its first keyword belongs to intent's
// allow-list. Intent None is always accepted.
func Classify(intent Intent, sqlText string) error {
	if intent == None {
		return nil
	}
	allowed, ok := allowedKeywords[intent]
	if !ok {
		return apperr.Newf(apperr.DisallowedStatementKind, "unknown intent %q", intent)
	}
	kw := FirstKeyword(sqlText)
	if kw == "" {
		return apperr.Newf(apperr.DisallowedStatementKind,
			"%s operation requires a statement starting with %s", intent, strings.Join(allowed, " or "))
	}
	if !slices.Contains(allowed, kw) {
		return apperr.Newf(apperr.DisallowedStatementKind,
			"%s operation does not allow %s statements (expected %s)", intent, kw, strings.Join(allowed, " or "))
	}
	return nil
}

// FirstKeyword returns the upper-cased first keyword after leading
// whitespace and comments, or "" when the text does not start with one.
func FirstKeyword(sqlText string) string {
	s := skipLeading(sqlText)
	end := 0
	for end < len(s) && isWordByte(s[end]) {
		end++
	}
	return strings.ToUpper(s[:end])
}

// skipLeading drops whitespace, -- line comments and nested /* */ blocks.
func skipLeading(s string) string {
	for {
		s = strings.TrimLeft(s, " \t\r\n\f\v")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			depth, i := 1, 2
			for i < len(s) && depth > 0 {
				switch {
				case strings.HasPrefix(s[i:], "/*"):
					depth++
					i += 2
				case strings.HasPrefix(s[i:], "*/"):
					depth--
					i += 2
				default:
					i++
				}
			}
			s = s[i:]
		default:
			return s
		}
	}
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func describe(intent Intent) string {
	return fmt.Sprintf("%s (%s)", intent, strings.Join(allowedKeywords[intent], ", "))
}
