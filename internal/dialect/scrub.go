package dialect

import "strings"

// lexRules describes how a dialect spells comments, strings and quoted
// identifiers, for stripping everything but code from SQL text.
type lexRules struct {
	hashComments     bool // MySQL: # to end of line
	nestedComments   bool // T-SQL and Postgres allow /* /* */ */
	backslashEscapes bool // MySQL strings
	dollarQuotes     bool // Postgres $tag$...$tag$
	doubleQuoteIsStr bool // MySQL without ANSI_QUOTES
	identQuotes      []byte
}

func closerFor(open byte) byte {
	switch open {
	case '[':
		return ']'
	default:
		return open
	}
}

// removeStringsAndComments replaces string literals with '' and comments
// with a single space, keeping quoted identifiers intact.
func (r lexRules) removeStringsAndComments(sql string) string {
	var out strings.Builder
	n := len(sql)

	for i := 0; i < n; {
		c := sql[i]

		switch {
		case c == '-' && i+1 < n && sql[i+1] == '-', r.hashComments && c == '#':
			for i < n && sql[i] != '\n' {
				i++
			}
			out.WriteByte(' ')
			continue

		case c == '/' && i+1 < n && sql[i+1] == '*':
			i = r.skipBlockComment(sql, i)
			out.WriteByte(' ')
			continue

		case r.dollarQuotes && c == '$':
			if end, ok := dollarQuoteEnd(sql, i); ok {
				i = end
				out.WriteString("''")
				continue
			}

		case c == '\'':
			i = r.skipString(sql, i, '\'')
			out.WriteString("''")
			continue

		case c == '"' && r.doubleQuoteIsStr:
			i = r.skipString(sql, i, '"')
			out.WriteString(`""`)
			continue

		case strings.IndexByte(string(r.identQuotes), c) >= 0:
			i = copyQuotedIdent(&out, sql, i, closerFor(c))
			continue
		}

		out.WriteByte(c)
		i++
	}
	return out.String()
}

func (r lexRules) skipBlockComment(sql string, i int) int {
	n := len(sql)
	depth := 1
	i += 2
	for i < n && depth > 0 {
		switch {
		case r.nestedComments && sql[i] == '/' && i+1 < n && sql[i+1] == '*':
			depth++
			i += 2
		case sql[i] == '*' && i+1 < n && sql[i+1] == '/':
			depth--
			i += 2
		default:
			i++
		}
	}
	return i
}

// skipString returns the index just past the closing quote, honouring
// doubled quotes and, where enabled, backslash escapes.
func (r lexRules) skipString(sql string, i int, quote byte) int {
	n := len(sql)
	i++
	for i < n {
		switch {
		case sql[i] == quote && i+1 < n && sql[i+1] == quote:
			i += 2
		case sql[i] == quote:
			return i + 1
		case r.backslashEscapes && sql[i] == '\\' && i+1 < n:
			i += 2
		default:
			i++
		}
	}
	return n
}

func dollarQuoteEnd(sql string, i int) (int, bool) {
	tagEnd := strings.IndexByte(sql[i+1:], '$')
	if tagEnd < 0 {
		return 0, false
	}
	tag := sql[i : i+tagEnd+2]
	for _, c := range tag[1 : len(tag)-1] {
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return 0, false
		}
	}
	closeIdx := strings.Index(sql[i+len(tag):], tag)
	if closeIdx < 0 {
		return 0, false
	}
	return i + len(tag) + closeIdx + len(tag), true
}

func copyQuotedIdent(out *strings.Builder, sql string, i int, closer byte) int {
	n := len(sql)
	out.WriteByte(sql[i])
	i++
	for i < n {
		if sql[i] == closer {
			if i+1 < n && sql[i+1] == closer {
				out.WriteByte(closer)
				out.WriteByte(closer)
				i += 2
				continue
			}
			out.WriteByte(closer)
			return i + 1
		}
		out.WriteByte(sql[i])
		i++
	}
	return n
}
