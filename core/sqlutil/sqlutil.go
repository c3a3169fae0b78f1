// Package sqlutil provides SQL text utilities shared by the migration runner.
//
// Migration files may contain several statements separated by semicolons.
// The MySQL driver rejects multi-statement Exec calls, so statements have to
// be split before execution. Naive splitting on ';' breaks on semicolons
// inside string literals, quoted identifiers and comments, so the functions
// here walk the text with a small state machine instead.
package sqlutil

import "strings"

// StripComments removes SQL comments from the input while preserving
// comment-like sequences inside string literals and quoted identifiers.
// Both `-- line` and `/* block */` comment styles are handled.
func StripComments(sql string) string {
	var b strings.Builder
	b.Grow(len(sql))

	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]

		switch c {
		case '\'', '"', '`':
			// Copy the whole quoted region verbatim, honoring doubled quotes.
			quote := c
			b.WriteByte(c)
			i++
			for i < n {
				b.WriteByte(sql[i])
				if sql[i] == quote {
					if i+1 < n && sql[i+1] == quote {
						b.WriteByte(sql[i+1])
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case '-':
			if i+1 < n && sql[i+1] == '-' {
				// Line comment runs to end of line; keep the newline so
				// statements stay visually separated.
				for i < n && sql[i] != '\n' {
					i++
				}
				continue
			}
			b.WriteByte(c)
			i++
		case '/':
			if i+1 < n && sql[i+1] == '*' {
				i += 2
				for i+1 < n && !(sql[i] == '*' && sql[i+1] == '/') {
					i++
				}
				i += 2
				if i > n {
					i = n
				}
				continue
			}
			b.WriteByte(c)
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	return b.String()
}

// SplitSQLStatements splits a SQL script into individual statements on
// semicolons that appear outside string literals and quoted identifiers.
// Empty statements are dropped and surrounding whitespace is trimmed.
func SplitSQLStatements(sql string) []string {
	var statements []string
	var b strings.Builder

	i := 0
	n := len(sql)
	for i < n {
		c := sql[i]

		switch c {
		case '\'', '"', '`':
			quote := c
			b.WriteByte(c)
			i++
			for i < n {
				b.WriteByte(sql[i])
				if sql[i] == quote {
					if i+1 < n && sql[i+1] == quote {
						b.WriteByte(sql[i+1])
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
		case ';':
			if stmt := strings.TrimSpace(b.String()); stmt != "" {
				statements = append(statements, stmt)
			}
			b.Reset()
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}

	if stmt := strings.TrimSpace(b.String()); stmt != "" {
		statements = append(statements, stmt)
	}

	return statements
}
