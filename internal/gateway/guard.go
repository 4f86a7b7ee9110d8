package gateway

import (
	"strings"
	"unicode"
)

// denylist holds the mutating keywords rejected by the substring guard.
// Each entry carries a trailing space so that identifiers merely containing
// a keyword (e.g. "dropped_at") do not trip the check.
var denylist = []string{"DROP ", "DELETE ", "TRUNCATE ", "UPDATE ", "INSERT "}

// statement heads allowed through the read-only gate. WITH is accepted only
// when the top-level body resolves to SELECT or VALUES.
var allowedHeads = map[string]bool{
	"SELECT": true,
	"VALUES": true,
	"WITH":   true,
}

// statement heads that start a non-read statement. Used to catch mutations
// hiding behind a CTE list; the denylist already covers the common DML verbs.
var forbiddenWords = map[string]bool{
	"CREATE": true, "ALTER": true, "GRANT": true, "REVOKE": true,
	"COPY": true, "CALL": true, "DO": true, "MERGE": true,
	"VACUUM": true, "SET": true, "COMMENT": true, "REINDEX": true,
	"CLUSTER": true, "LOCK": true,
}

// CheckReadOnly validates a statement before any connection is acquired.
// It applies two layers: the substring denylist, and a keyword-level check
// that the statement head is a read (single statement, SELECT/VALUES root).
// The substring scan is deliberately a best-effort guard, not a SQL parser.
func CheckReadOnly(sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return &ValidationError{Reason: "sql query is required"}
	}

	upper := strings.ToUpper(sqlText)
	for _, kw := range denylist {
		if strings.Contains(upper, kw) {
			return &PolicyViolationError{Detail: "statement contains " + strings.TrimSpace(kw)}
		}
	}

	return checkStatementShape(sqlText)
}

// checkStatementShape tokenizes top-level words (outside strings, comments
// and parentheses) and requires a single statement rooted at a read keyword.
func checkStatementShape(sqlText string) error {
	words, extraStatement := topLevelWords(sqlText)
	if extraStatement {
		return &PolicyViolationError{Detail: "multiple statements are not allowed"}
	}
	if len(words) == 0 {
		return &ValidationError{Reason: "sql query is required"}
	}

	head := words[0]
	if !allowedHeads[head] {
		return &PolicyViolationError{Detail: "only SELECT statements are allowed, got " + head}
	}

	if head == "WITH" {
		// The CTE bodies sit inside parentheses, so any remaining top-level
		// statement keyword belongs to the main statement.
		body := ""
		for _, w := range words[1:] {
			if forbiddenWords[w] {
				return &PolicyViolationError{Detail: "only SELECT statements are allowed, got " + w}
			}
			if body == "" && (w == "SELECT" || w == "VALUES") {
				body = w
			}
		}
		if body == "" {
			return &PolicyViolationError{Detail: "WITH statement must resolve to a SELECT"}
		}
	}

	return nil
}

// topLevelWords returns the upper-cased keywords appearing at parenthesis
// depth zero, skipping string literals, quoted identifiers, dollar-quoted
// strings, and both comment styles. The second result reports whether a
// second statement follows a semicolon.
func topLevelWords(s string) (words []string, extraStatement bool) {
	depth := 0
	i := 0
	n := len(s)
	terminated := false

	for i < n {
		c := s[i]
		switch {
		case c == '-' && i+1 < n && s[i+1] == '-':
			// line comment
			for i < n && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < n && s[i+1] == '*':
			// block comment, postgres-style nesting
			level := 1
			i += 2
			for i < n && level > 0 {
				if i+1 < n && s[i] == '/' && s[i+1] == '*' {
					level++
					i += 2
				} else if i+1 < n && s[i] == '*' && s[i+1] == '/' {
					level--
					i += 2
				} else {
					i++
				}
			}
		case c == '\'':
			// string literal, '' escapes a quote
			i++
			for i < n {
				if s[i] == '\'' {
					if i+1 < n && s[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case c == '"':
			// quoted identifier
			i++
			for i < n && s[i] != '"' {
				i++
			}
			if i < n {
				i++
			}
		case c == '$':
			// dollar-quoted string: $tag$ ... $tag$
			end := strings.IndexByte(s[i+1:], '$')
			if end >= 0 && isDollarTag(s[i+1:i+1+end]) {
				tag := s[i : i+end+2]
				closing := strings.Index(s[i+len(tag):], tag)
				if closing >= 0 {
					i += len(tag) + closing + len(tag)
					continue
				}
			}
			i++
		case c == '(':
			depth++
			i++
		case c == ')':
			if depth > 0 {
				depth--
			}
			i++
		case c == ';':
			terminated = true
			i++
		case isWordStart(rune(c)):
			start := i
			for i < n && isWordPart(rune(s[i])) {
				i++
			}
			if terminated {
				return words, true
			}
			if depth == 0 {
				words = append(words, strings.ToUpper(s[start:i]))
			}
		default:
			if terminated && !unicode.IsSpace(rune(c)) && c != ';' {
				return words, true
			}
			i++
		}
	}

	return words, false
}

func isWordStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isWordPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

func isDollarTag(s string) bool {
	for _, r := range s {
		if !isWordPart(r) {
			return false
		}
	}
	return true
}
