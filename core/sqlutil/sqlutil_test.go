package sqlutil_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/societal-sandpaper/partsdb/core/sqlutil"
)

func TestSplitSQLStatements(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single statement",
			input:    "CREATE TABLE categories (id INTEGER PRIMARY KEY);",
			expected: []string{"CREATE TABLE categories (id INTEGER PRIMARY KEY)"},
		},
		{
			name:  "multiple statements",
			input: "CREATE TABLE a (id INTEGER);\nCREATE TABLE b (id INTEGER);",
			expected: []string{
				"CREATE TABLE a (id INTEGER)",
				"CREATE TABLE b (id INTEGER)",
			},
		},
		{
			name:     "semicolon inside string literal",
			input:    "INSERT INTO categories (category) VALUES ('a;b');",
			expected: []string{"INSERT INTO categories (category) VALUES ('a;b')"},
		},
		{
			name:     "semicolon inside quoted identifier",
			input:    `CREATE TABLE t ("weird;name" TEXT);`,
			expected: []string{`CREATE TABLE t ("weird;name" TEXT)`},
		},
		{
			name:     "escaped quote inside literal",
			input:    "INSERT INTO m (name) VALUES ('O''Brien;Co');",
			expected: []string{"INSERT INTO m (name) VALUES ('O''Brien;Co')"},
		},
		{
			name:     "trailing statement without semicolon",
			input:    "DROP TABLE components",
			expected: []string{"DROP TABLE components"},
		},
		{
			name:     "empty statements are dropped",
			input:    ";;\n;  ;",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			result := sqlutil.SplitSQLStatements(tt.input)
			c.Assert(result, qt.DeepEquals, tt.expected)
		})
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "line comment",
			input:    "SELECT 1; -- trailing note\nSELECT 2;",
			expected: "SELECT 1; \nSELECT 2;",
		},
		{
			name:     "block comment",
			input:    "SELECT /* inline */ 1;",
			expected: "SELECT  1;",
		},
		{
			name:     "comment markers inside string literal",
			input:    "INSERT INTO c (description) VALUES ('50V -- ceramic');",
			expected: "INSERT INTO c (description) VALUES ('50V -- ceramic');",
		},
		{
			name:     "comment markers inside backtick identifier",
			input:    "SELECT `a--b` FROM t;",
			expected: "SELECT `a--b` FROM t;",
		},
		{
			name:     "unterminated block comment",
			input:    "SELECT 1 /* never closed",
			expected: "SELECT 1 ",
		},
		{
			name:     "no comments",
			input:    "SELECT 1;",
			expected: "SELECT 1;",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := qt.New(t)
			result := sqlutil.StripComments(tt.input)
			c.Assert(result, qt.Equals, tt.expected)
		})
	}
}

func TestStripThenSplit(t *testing.T) {
	c := qt.New(t)

	script := `
-- base schema
CREATE TABLE categories (
	id INTEGER PRIMARY KEY, -- surrogate key
	category TEXT NOT NULL
);
/* second table */
CREATE TABLE manufacturers (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
`

	statements := sqlutil.SplitSQLStatements(sqlutil.StripComments(script))
	c.Assert(statements, qt.HasLen, 2)
	c.Assert(statements[0], qt.Contains, "CREATE TABLE categories")
	c.Assert(statements[1], qt.Contains, "CREATE TABLE manufacturers")
}
