package sqlguard

import (
	"regexp"
	"strings"

	"github.com/shakram02/go-mcp-mssql/internal/apperr"
)

// Scrubber strips string literals and comments so keyword scans only see code.
type Scrubber interface {
	RemoveStringsAndComments(sql string) string
}

// Rule is a construct a read statement may not contain.
type Rule struct {
	Pattern *regexp.Regexp
	Desc    string
}

// Forbidder is implemented by scrubbers that also know the functions and
// commands of their dialect that reach outside a plain read.
type Forbidder interface {
	ForbiddenInRead() []Rule
}

// Forbid compiles pattern into a Rule. It panics on a bad pattern.
func Forbid(pattern, desc string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Desc: desc}
}

// Keyword returns a Rule matching word as a whole keyword.
func Keyword(word string) Rule {
	return Rule{Pattern: keyword(word), Desc: word}
}

// writeKeywords are rejected anywhere in a read statement under strict mode.
var writeKeywords = []struct {
	re   *regexp.Regexp
	desc string
}{
	{keyword("INSERT"), "INSERT"},
	{keyword("UPDATE"), "UPDATE"},
	{keyword("DELETE"), "DELETE"},
	{keyword("MERGE"), "MERGE"},
	{keyword("DROP"), "DROP"},
	{keyword("CREATE"), "CREATE"},
	{keyword("ALTER"), "ALTER"},
	{keyword("TRUNCATE"), "TRUNCATE"},
	{keyword("GRANT"), "GRANT"},
	{keyword("REVOKE"), "REVOKE"},
	{keyword("EXEC"), "EXEC"},
	{keyword("EXECUTE"), "EXECUTE"},
	{keyword("INTO"), "SELECT ... INTO"},
}

var setStatement = regexp.MustCompile(`(?i)(?:^|;)\s*SET\b`)

func keyword(word string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)(?:^|[^a-zA-Z_])` + word + `(?:[^a-zA-Z_]|$)`)
}

// Guard runs Classify and, in strict mode, rejects batches and hidden
// write keywords inside read statements.
type Guard struct {
	scrub  Scrubber
	strict bool
}

func New(scrub Scrubber, strict bool) *Guard {
	return &Guard{scrub: scrub, strict: strict}
}

func (g *Guard) Strict() bool { return g.strict }

func (g *Guard) Check(intent Intent, sqlText string) error {
	if err := Classify(intent, sqlText); err != nil {
		return err
	}
	if !g.strict || intent == None || g.scrub == nil {
		return nil
	}

	cleaned := g.scrub.RemoveStringsAndComments(sqlText)
	if parts := strings.SplitN(cleaned, ";", 2); len(parts) > 1 && strings.TrimSpace(parts[1]) != "" {
		return apperr.Newf(apperr.DisallowedStatementKind,
			"multiple statements are not allowed for %s", describe(intent))
	}
	if intent != Read {
		return nil
	}
	for _, wk := range writeKeywords {
		if wk.re.MatchString(cleaned) {
			return apperr.Newf(apperr.DisallowedStatementKind,
				"read statement contains forbidden keyword: %s", wk.desc)
		}
	}
	if setStatement.MatchString(cleaned) {
		return apperr.New(apperr.DisallowedStatementKind, "SET statements are not allowed in read statements")
	}
	if f, ok := g.scrub.(Forbidder); ok {
		for _, rule := range f.ForbiddenInRead() {
			if rule.Pattern.MatchString(cleaned) {
				return apperr.Newf(apperr.DisallowedStatementKind,
					"read statement contains forbidden construct: %s", rule.Desc)
			}
		}
	}
	return nil
}
