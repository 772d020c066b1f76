package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

var (
	mu          sync.RWMutex
	filesystems []fs.FS
)

// Register records a filesystem that contains go-profilesync migrations.
// Callers can then feed all registered filesystems into go-persistence-bun
// (or any other runner) via Filesystems().
func Register(fsys fs.FS) {
	if fsys == nil {
		return
	}
	mu.Lock()
	filesystems = append(filesystems, fsys)
	mu.Unlock()
}

// Filesystems returns a copy of all registered migration filesystems.
func Filesystems() []fs.FS {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]fs.FS, len(filesystems))
	copy(out, filesystems)
	return out
}

// Dialect names understood by ApplyUp.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// ApplyUp runs every registered up migration for dialect in file order. It is
// meant for tests and local tooling; servers run migrations through
// go-persistence-bun.
func ApplyUp(ctx context.Context, db *sql.DB, dialect string) error {
	pattern := "*.up.sql"
	if dialect == DialectSQLite {
		pattern = path.Join(DialectSQLite, pattern)
	}
	for _, fsys := range Filesystems() {
		entries, err := fs.Glob(fsys, pattern)
		if err != nil {
			return err
		}
		sort.Strings(entries)
		for _, entry := range entries {
			content, err := fs.ReadFile(fsys, entry)
			if err != nil {
				return err
			}
			for _, stmt := range SplitStatements(string(content)) {
				if _, err := db.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// SplitStatements splits a migration file on statement terminators, skipping
// comment lines.
func SplitStatements(sql string) []string {
	var builder strings.Builder
	var statements []string
	for _, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		builder.WriteString(line)
		if strings.HasSuffix(line, ";") {
			statements = append(statements, strings.TrimSuffix(builder.String(), ";"))
			builder.Reset()
		} else {
			builder.WriteString(" ")
		}
	}
	if rest := strings.TrimSpace(builder.String()); rest != "" {
		statements = append(statements, rest)
	}
	return statements
}
