package migrator

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Migration files follow the catalog's historical naming convention:
//
//	YYYY-MM-DD_NN_description.up.sql
//	YYYY-MM-DD_NN_description.down.sql
//
// The date plus the two-digit sequence number NN form the version
// (YYYYMMDDNN as an integer), so lexical file order and numeric version
// order agree.
var migrationFileRe = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})_(\d{2})_([A-Za-z0-9_]+)\.(up|down)\.sql$`)

// MigrationFile describes a parsed migration file name
type MigrationFile struct {
	Version   int
	Name      string // Humanized description, e.g. "Create Base Schema"
	Direction string // "up" or "down"
}

// ParseMigrationFileName parses a migration file name into its version,
// humanized description and direction. Files that do not match the naming
// convention return an error.
func ParseMigrationFileName(filename string) (*MigrationFile, error) {
	m := migrationFileRe.FindStringSubmatch(filename)
	if m == nil {
		return nil, fmt.Errorf("file name %q does not match migration naming convention", filename)
	}

	version, err := strconv.Atoi(m[1] + m[2] + m[3] + m[4])
	if err != nil {
		return nil, fmt.Errorf("invalid migration version in %q: %w", filename, err)
	}

	return &MigrationFile{
		Version:   version,
		Name:      humanizeDescription(m[5]),
		Direction: m[6],
	}, nil
}

// GenerateMigrationFileName builds a migration file name from a version,
// description and direction, inverting ParseMigrationFileName.
func GenerateMigrationFileName(version int, description, direction string) string {
	date := version / 100
	seq := version % 100
	year := date / 10000
	month := (date / 100) % 100
	day := date % 100

	slug := strings.ToLower(description)
	slug = strings.ReplaceAll(slug, " ", "_")

	return fmt.Sprintf("%04d-%02d-%02d_%02d_%s.%s.sql", year, month, day, seq, slug, direction)
}

// humanizeDescription turns a snake_case file slug into a title-cased
// description, e.g. "add_foreign_keys" -> "Add Foreign Keys"
func humanizeDescription(slug string) string {
	words := strings.Split(slug, "_")
	titled := cases.Title(language.English)
	for i, w := range words {
		words[i] = titled.String(w)
	}
	return strings.Join(words, " ")
}
