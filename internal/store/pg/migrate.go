package pg

import (
	"context"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/varela-dev/multipass/internal/observability/logger"
)

// RunMigrations ejecuta los *_up.sql del filesystem dado en orden
// lexicográfico. Las sentencias son idempotentes (IF NOT EXISTS), así que
// correrlas en cada arranque es seguro.
func (s *Store) RunMigrations(ctx context.Context, fsys fs.FS) error {
	files, err := migrationFiles(fsys, "_up.sql")
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", f, err)
		}
		s.log.Info("migration applied", logger.String("file", f))
	}
	return nil
}

// RunMigrationsDown ejecuta los *_down.sql en orden inverso.
func (s *Store) RunMigrationsDown(ctx context.Context, fsys fs.FS) error {
	files, err := migrationFiles(fsys, "_down.sql")
	if err != nil {
		return err
	}
	for i := len(files) - 1; i >= 0; i-- {
		b, err := fs.ReadFile(fsys, files[i])
		if err != nil {
			return err
		}
		if _, err := s.pool.Exec(ctx, string(b)); err != nil {
			return fmt.Errorf("exec %s: %w", files[i], err)
		}
		s.log.Info("migration reverted", logger.String("file", files[i]))
	}
	return nil
}

func migrationFiles(fsys fs.FS, suffix string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && strings.HasSuffix(strings.ToLower(e.Name()), suffix) {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
