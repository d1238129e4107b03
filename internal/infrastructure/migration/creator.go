package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"
)

// versionLayout orders migrations by creation time
const versionLayout = "20060102150405"

var (
	upTemplate = template.Must(template.New("up").Parse(`-- Migration: {{.Name}}
-- Description: {{.Description}}

`))
	downTemplate = template.Must(template.New("down").Parse(`-- Migration: {{.Name}} (Rollback)

`))
)

// MigrationFile is a newly created up/down file pair
type MigrationFile struct {
	Version     string
	Name        string
	Description string
	UpPath      string
	DownPath    string
}

// CreateMigration writes an empty up/down pair into dir, versioned by now.
// The files are picked up by the embedded source on the next build.
func CreateMigration(dir, name, description string, now time.Time) (*MigrationFile, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return nil, fmt.Errorf("invalid migration name %q", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create migrations directory: %w", err)
	}

	version := now.UTC().Format(versionLayout)
	base := filepath.Join(dir, version+"_"+slug)
	mf := &MigrationFile{
		Version:     version,
		Name:        slug,
		Description: description,
		UpPath:      base + ".up.sql",
		DownPath:    base + ".down.sql",
	}

	if err := writeTemplate(mf.UpPath, upTemplate, mf); err != nil {
		return nil, err
	}
	if err := writeTemplate(mf.DownPath, downTemplate, mf); err != nil {
		_ = os.Remove(mf.UpPath)
		return nil, err
	}
	return mf, nil
}

func writeTemplate(path string, tmpl *template.Template, data *MigrationFile) error {
	// O_EXCL: two creates within the same second must not clobber each other
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// sanitizeName lower-cases name and joins its words with underscores
func sanitizeName(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	})
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				return r
			}
			return -1
		}, f)
		if w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, "_")
}
