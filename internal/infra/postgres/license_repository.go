package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/vulnwatch/api/pkg/domain/license"
	"github.com/vulnwatch/api/pkg/domain/shared"
)

// LicenseRepository implements license.Repository using PostgreSQL.
type LicenseRepository struct {
	db *DB
}

// NewLicenseRepository creates a new LicenseRepository.
func NewLicenseRepository(db *DB) *LicenseRepository {
	return &LicenseRepository{db: db}
}

// GetByName retrieves a license catalog entry by name.
func (r *LicenseRepository) GetByName(ctx context.Context, name string) (*license.License, error) {
	query := `
		SELECT id, name, spdx_id, classification, created_at
		FROM licenses
		WHERE name = $1
	`

	var (
		l              license.License
		idStr          string
		classification string
	)

	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&idStr, &l.Name, &l.SPDXID, &classification, &l.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: license %s", shared.ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to get license: %w", err)
	}

	id, err := shared.IDFromString(idStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse license id: %w", err)
	}
	l.ID = id
	l.Classification = license.Classification(classification)

	return &l, nil
}

// Upsert creates the catalog entry or refreshes its classification.
func (r *LicenseRepository) Upsert(ctx context.Context, l *license.License) error {
	query := `
		INSERT INTO licenses (id, name, spdx_id, classification, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE SET
			spdx_id = EXCLUDED.spdx_id,
			classification = EXCLUDED.classification
	`

	_, err := r.db.ExecContext(ctx, query,
		l.ID.String(),
		l.Name,
		l.SPDXID,
		l.Classification.String(),
		l.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert license %s: %w", l.Name, err)
	}

	return nil
}

// CreatePackageLicenses persists a batch of per-scan observations using
// a single multi-row COPY.
func (r *LicenseRepository) CreatePackageLicenses(ctx context.Context, observations []*license.PackageLicense) error {
	if len(observations) == 0 {
		return nil
	}

	return r.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, pq.CopyIn("package_licenses",
			"id", "scan_id", "pkg_name", "pkg_version", "pkg_path",
			"raw_license", "spdx_id", "classification", "created_at",
		))
		if err != nil {
			return fmt.Errorf("failed to prepare bulk insert: %w", err)
		}
		defer stmt.Close()

		for _, obs := range observations {
			var classification sql.NullString
			if obs.Classification != nil {
				classification = nullString(obs.Classification.String())
			}

			_, err := stmt.ExecContext(ctx,
				obs.ID.String(),
				obs.ScanID.String(),
				obs.PkgName,
				nullString(obs.PkgVersion),
				nullString(obs.PkgPath),
				obs.RawLicense,
				obs.SPDXID,
				classification,
				obs.CreatedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to buffer license observation: %w", err)
			}
		}

		if _, err := stmt.ExecContext(ctx); err != nil {
			return fmt.Errorf("failed to flush license observations: %w", err)
		}

		return nil
	})
}

// ListByScan returns the observations recorded for a scan.
func (r *LicenseRepository) ListByScan(ctx context.Context, scanID shared.ID) ([]*license.PackageLicense, error) {
	query := `
		SELECT id, scan_id, pkg_name, pkg_version, pkg_path,
		       raw_license, spdx_id, classification, created_at
		FROM package_licenses
		WHERE scan_id = $1
		ORDER BY pkg_name, raw_license
	`

	rows, err := r.db.QueryContext(ctx, query, scanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list license observations: %w", err)
	}
	defer rows.Close()

	var observations []*license.PackageLicense
	for rows.Next() {
		var (
			obs            license.PackageLicense
			idStr          string
			scanIDStr      string
			pkgVersion     sql.NullString
			pkgPath        sql.NullString
			classification sql.NullString
		)

		err := rows.Scan(
			&idStr, &scanIDStr, &obs.PkgName, &pkgVersion, &pkgPath,
			&obs.RawLicense, &obs.SPDXID, &classification, &obs.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan license observation: %w", err)
		}

		id, err := shared.IDFromString(idStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse observation id: %w", err)
		}
		sid, err := shared.IDFromString(scanIDStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan id: %w", err)
		}

		obs.ID = id
		obs.ScanID = sid
		obs.PkgVersion = nullStringValue(pkgVersion)
		obs.PkgPath = nullStringValue(pkgPath)
		if classification.Valid {
			c := license.Classification(classification.String)
			obs.Classification = &c
		}

		observations = append(observations, &obs)
	}

	return observations, rows.Err()
}
