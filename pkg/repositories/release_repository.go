package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/database"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
)

// ReleaseRepository provides data access for standard releases.
type ReleaseRepository interface {
	Create(ctx context.Context, release *models.Release) error
	Get(ctx context.Context, id uuid.UUID) (*models.Release, error)
	GetByVersion(ctx context.Context, version string) (*models.Release, error)
	List(ctx context.Context) ([]*models.Release, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error)
	// Clone creates the new release and bulk-copies the base release's node
	// set (and optionally its links, anti-join) in a single transaction.
	Clone(ctx context.Context, baseID uuid.UUID, release *models.Release, copyLinks bool) error
	// LatestActive returns the most recently created ACTIVE release, or
	// ErrReleaseNotFound when none exists.
	LatestActive(ctx context.Context) (*models.Release, error)
}

type releaseRepository struct {
	db *database.DB
}

// NewReleaseRepository creates a new ReleaseRepository.
func NewReleaseRepository(db *database.DB) ReleaseRepository {
	return &releaseRepository{db: db}
}

var _ ReleaseRepository = (*releaseRepository)(nil)

func (r *releaseRepository) Create(ctx context.Context, release *models.Release) error {
	if release.ID == uuid.Nil {
		release.ID = uuid.New()
	}
	if release.Status == "" {
		release.Status = models.ReleaseStatusDraft
	}
	release.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO std_releases (id, version, status, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(ctx, query, release.ID, release.Version, release.Status, release.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.ErrDuplicateVersion
		}
		return fmt.Errorf("failed to create release: %w", err)
	}

	return nil
}

func (r *releaseRepository) Get(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	query := `
		SELECT id, version, status, created_at
		FROM std_releases
		WHERE id = $1`

	release, err := scanRelease(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReleaseNotFound
		}
		return nil, err
	}
	return release, nil
}

func (r *releaseRepository) GetByVersion(ctx context.Context, version string) (*models.Release, error) {
	query := `
		SELECT id, version, status, created_at
		FROM std_releases
		WHERE version = $1`

	release, err := scanRelease(r.db.QueryRow(ctx, query, version))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReleaseNotFound
		}
		return nil, err
	}
	return release, nil
}

func (r *releaseRepository) List(ctx context.Context) ([]*models.Release, error) {
	query := `
		SELECT id, version, status, created_at
		FROM std_releases
		ORDER BY created_at DESC, version DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query releases: %w", err)
	}
	defer rows.Close()

	var releases []*models.Release
	for rows.Next() {
		release, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, release)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating releases: %w", err)
	}

	return releases, nil
}

func (r *releaseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error) {
	query := `
		UPDATE std_releases
		SET status = $2
		WHERE id = $1
		RETURNING id, version, status, created_at`

	release, err := scanRelease(r.db.QueryRow(ctx, query, id, status))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReleaseNotFound
		}
		return nil, err
	}
	return release, nil
}

func (r *releaseRepository) Clone(ctx context.Context, baseID uuid.UUID, release *models.Release, copyLinks bool) error {
	if release.ID == uuid.Nil {
		release.ID = uuid.New()
	}
	release.Status = models.ReleaseStatusDraft
	release.CreatedAt = time.Now().UTC()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx,
		`INSERT INTO std_releases (id, version, status, created_at) VALUES ($1, $2, $3, $4)`,
		release.ID, release.Version, release.Status, release.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, "") {
			return apperrors.ErrDuplicateVersion
		}
		return fmt.Errorf("failed to create cloned release: %w", err)
	}

	nodeCopy := `
		INSERT INTO std_nodes (
			id, release_id, node_uid, parent_uid, name, level,
			order_index, path, parent_path, vals, kind
		)
		SELECT gen_random_uuid(), $1, node_uid, parent_uid, name, level,
		       order_index, path, parent_path, vals, kind
		FROM std_nodes
		WHERE release_id = $2`

	if _, err := tx.Exec(ctx, nodeCopy, release.ID, baseID); err != nil {
		return fmt.Errorf("failed to copy nodes: %w", err)
	}

	if copyLinks {
		// Anti-join copy: skip (node_uid, row_id) pairs already present in
		// the destination.
		linkCopy := `
			INSERT INTO std_wms_links (release_id, node_uid, row_id, assigned_at)
			SELECT $1, l.node_uid, l.row_id, now()
			FROM std_wms_links l
			WHERE l.release_id = $2
			  AND NOT EXISTS (
				SELECT 1 FROM std_wms_links d
				WHERE d.release_id = $1
				  AND d.node_uid = l.node_uid
				  AND d.row_id = l.row_id
			  )`

		if _, err := tx.Exec(ctx, linkCopy, release.ID, baseID); err != nil {
			return fmt.Errorf("failed to copy links: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *releaseRepository) LatestActive(ctx context.Context) (*models.Release, error) {
	query := `
		SELECT id, version, status, created_at
		FROM std_releases
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT 1`

	release, err := scanRelease(r.db.QueryRow(ctx, query, models.ReleaseStatusActive))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrReleaseNotFound
		}
		return nil, err
	}
	return release, nil
}

func scanRelease(row pgx.Row) (*models.Release, error) {
	var rel models.Release
	if err := row.Scan(&rel.ID, &rel.Version, &rel.Status, &rel.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan release: %w", err)
	}
	return &rel, nil
}
