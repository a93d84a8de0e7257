// Package migrations provides embedded database migration loading and
// execution.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

//go:embed sql/*.sql
var files embed.FS

// Migration represents one embedded migration file.
type Migration struct {
	Version   string
	Name      string
	Direction string // "up" or "down"
	Path      string
}

// String returns the migration identifier.
func (m Migration) String() string {
	return fmt.Sprintf("%s_%s.%s.sql", m.Version, m.Name, m.Direction)
}

// Load returns the embedded migrations for one direction, sorted by
// version.
func Load(direction string) ([]Migration, error) {
	suffix := fmt.Sprintf(".%s.sql", direction)

	entries, err := fs.ReadDir(files, "sql")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		filename := entry.Name()
		if !strings.HasSuffix(filename, suffix) {
			continue
		}

		// Parse filename: 000001_init.up.sql -> version=000001, name=init
		baseName := strings.TrimSuffix(filename, suffix)
		parts := strings.SplitN(baseName, "_", 2)
		if len(parts) != 2 {
			continue
		}

		migrations = append(migrations, Migration{
			Version:   parts[0],
			Name:      parts[1],
			Direction: direction,
			Path:      "sql/" + filename,
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// Content reads the SQL of a migration.
func Content(m Migration) ([]byte, error) {
	return files.ReadFile(m.Path)
}
