package schema

// Args holds arguments narrowed to their declared kinds:
// string, int64, bool, []string or float64.
type Args map[string]any

func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a Args) Int(name string) int64 {
	switch n := a[name].(type) {
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func (a Args) Bool(name string) bool {
	b, _ := a[name].(bool)
	return b
}

func (a Args) Strings(name string) []string {
	s, _ := a[name].([]string)
	return s
}

// Number returns an optional number and whether it was supplied.
func (a Args) Number(name string) (float64, bool) {
	switch n := a[name].(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
