package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/sirupsen/logrus"

	"modquant-lab/internal/storage/postgres"
)

// RunPostgresMigrations applies every embedded PostgreSQL file in lexical order.
// Files use IF NOT EXISTS throughout and are safe to re-apply.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) error {
	files, err := sqlFiles(PostgresFS, "postgres")
	if err != nil {
		return err
	}

	for _, file := range files {
		data, err := fs.ReadFile(PostgresFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		// pgx simple protocol accepts several statements per Exec.
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", file, err)
		}
		logrus.WithField("file", file).Debug("applied postgres migration")
	}

	return nil
}
