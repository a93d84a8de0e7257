package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Runner executes embedded database migrations.
type Runner struct {
	db *sql.DB
}

// NewRunner creates a new migration runner.
func NewRunner(db *sql.DB) *Runner {
	return &Runner{db: db}
}

// MigrationRecord represents a migration in the schema_migrations table.
type MigrationRecord struct {
	Version   string
	AppliedAt time.Time
}

// EnsureMigrationTable creates the schema_migrations table if it doesn't exist.
func (r *Runner) EnsureMigrationTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(14) PRIMARY KEY,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`
	_, err := r.db.ExecContext(ctx, query)
	return err
}

// GetAppliedMigrations returns all applied migration versions.
func (r *Runner) GetAppliedMigrations(ctx context.Context) ([]MigrationRecord, error) {
	query := `SELECT version, applied_at FROM schema_migrations ORDER BY version`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var rec MigrationRecord
		if err := rows.Scan(&rec.Version, &rec.AppliedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetPendingMigrations returns migrations that need to be applied.
func (r *Runner) GetPendingMigrations(ctx context.Context) ([]Migration, error) {
	available, err := Load("up")
	if err != nil {
		return nil, err
	}

	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	appliedSet := make(map[string]bool)
	for _, rec := range applied {
		appliedSet[rec.Version] = true
	}

	var pending []Migration
	for _, m := range available {
		if !appliedSet[m.Version] {
			pending = append(pending, m)
		}
	}
	return pending, nil
}

// Up runs all pending migrations.
func (r *Runner) Up(ctx context.Context) error {
	if err := r.EnsureMigrationTable(ctx); err != nil {
		return fmt.Errorf("failed to ensure migration table: %w", err)
	}

	pending, err := r.GetPendingMigrations(ctx)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		fmt.Println("No pending migrations")
		return nil
	}

	fmt.Printf("Running %d migrations...\n", len(pending))

	for _, m := range pending {
		if err := r.runMigration(ctx, m, true); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
		fmt.Printf("  Applied: %s\n", m)
	}

	return nil
}

// Down rolls back the last applied migration.
func (r *Runner) Down(ctx context.Context) error {
	applied, err := r.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	if len(applied) == 0 {
		fmt.Println("No migrations to rollback")
		return nil
	}

	last := applied[len(applied)-1]

	downs, err := Load("down")
	if err != nil {
		return err
	}

	for _, m := range downs {
		if m.Version != last.Version {
			continue
		}
		if err := r.runMigration(ctx, m, false); err != nil {
			return fmt.Errorf("rollback %s failed: %w", m.Version, err)
		}

		_, err = r.db.ExecContext(ctx, "DELETE FROM schema_migrations WHERE version = $1", m.Version)
		if err != nil {
			return fmt.Errorf("failed to remove migration record: %w", err)
		}

		fmt.Printf("Rolled back: %s\n", m)
		return nil
	}

	return fmt.Errorf("down migration not found for version %s", last.Version)
}

// runMigration executes a single migration within a transaction.
func (r *Runner) runMigration(ctx context.Context, m Migration, record bool) error {
	content, err := Content(m)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return err
	}

	if record {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version) VALUES ($1)", m.Version)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
