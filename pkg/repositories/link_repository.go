package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stdworks-inc/stdworks-engine/pkg/database"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
)

// LinkRepository provides data access for node-row links.
type LinkRepository interface {
	// Assign inserts links for the given rows under one node, skipping pairs
	// that already exist. Returns the number of links actually added.
	Assign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	// Unassign removes links for the given rows under one node. Returns the
	// number of links actually removed.
	Unassign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	ListByNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error)
	// CopyFromRelease bulk-copies links between releases (anti-join: pairs
	// already in the destination are skipped). When onlyExistingNodes is
	// set, links whose node uid is absent from the destination release are
	// skipped instead of failing the composite foreign key.
	CopyFromRelease(ctx context.Context, toReleaseID, fromReleaseID uuid.UUID, onlyExistingNodes bool) (int, error)
	// ListByReleaseAndBatch returns the release's links whose row belongs to
	// the given batch.
	ListByReleaseAndBatch(ctx context.Context, releaseID, batchID uuid.UUID) ([]*models.Link, error)
	// ListKeysByRelease returns every (node_uid, row_id) pair linked in the
	// release, for existing-pair checks.
	ListKeysByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.LinkKey, error)
	// LatestLinkedBatch returns the most recently received batch of the
	// given source that the release's links reference, or uuid.Nil when the
	// release has no links into that source.
	LatestLinkedBatch(ctx context.Context, releaseID uuid.UUID, source string) (uuid.UUID, error)
	// ApplyRebase inserts the staged links and deletes the staged old links
	// in one transaction. Returns (inserted, deleted).
	ApplyRebase(ctx context.Context, releaseID uuid.UUID, inserts, deletes []models.LinkKey) (int, int, error)
}

type linkRepository struct {
	db *database.DB
}

// NewLinkRepository creates a new LinkRepository.
func NewLinkRepository(db *database.DB) LinkRepository {
	return &linkRepository{db: db}
}

var _ LinkRepository = (*linkRepository)(nil)

func (r *linkRepository) Assign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	query := `
		INSERT INTO std_wms_links (release_id, node_uid, row_id, assigned_at)
		SELECT $1, $2, id, now()
		FROM wms_rows
		WHERE id = ANY($3)
		ON CONFLICT (release_id, node_uid, row_id) DO NOTHING`

	result, err := r.db.Exec(ctx, query, releaseID, nodeUID, rowIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to assign links: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *linkRepository) Unassign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	query := `
		DELETE FROM std_wms_links
		WHERE release_id = $1 AND node_uid = $2 AND row_id = ANY($3)`

	result, err := r.db.Exec(ctx, query, releaseID, nodeUID, rowIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to unassign links: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *linkRepository) ListByNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error) {
	query := `
		SELECT release_id, node_uid, row_id, assigned_at
		FROM std_wms_links
		WHERE release_id = $1 AND node_uid = $2
		ORDER BY assigned_at`

	rows, err := r.db.Query(ctx, query, releaseID, nodeUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

func (r *linkRepository) CopyFromRelease(ctx context.Context, toReleaseID, fromReleaseID uuid.UUID, onlyExistingNodes bool) (int, error) {
	query := `
		INSERT INTO std_wms_links (release_id, node_uid, row_id, assigned_at)
		SELECT $1, l.node_uid, l.row_id, now()
		FROM std_wms_links l
		WHERE l.release_id = $2
		  AND ($3 = false OR EXISTS (
			SELECT 1 FROM std_nodes n
			WHERE n.release_id = $1 AND n.node_uid = l.node_uid
		  ))
		  AND NOT EXISTS (
			SELECT 1 FROM std_wms_links d
			WHERE d.release_id = $1
			  AND d.node_uid = l.node_uid
			  AND d.row_id = l.row_id
		  )`

	result, err := r.db.Exec(ctx, query, toReleaseID, fromReleaseID, onlyExistingNodes)
	if err != nil {
		return 0, fmt.Errorf("failed to copy links: %w", err)
	}

	return int(result.RowsAffected()), nil
}

func (r *linkRepository) ListByReleaseAndBatch(ctx context.Context, releaseID, batchID uuid.UUID) ([]*models.Link, error) {
	query := `
		SELECT l.release_id, l.node_uid, l.row_id, l.assigned_at
		FROM std_wms_links l
		JOIN wms_rows r ON r.id = l.row_id
		WHERE l.release_id = $1 AND r.batch_id = $2
		ORDER BY l.node_uid, l.row_id`

	rows, err := r.db.Query(ctx, query, releaseID, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	defer rows.Close()

	return collectLinks(rows)
}

func (r *linkRepository) ListKeysByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.LinkKey, error) {
	query := `
		SELECT node_uid, row_id
		FROM std_wms_links
		WHERE release_id = $1`

	rows, err := r.db.Query(ctx, query, releaseID)
	if err != nil {
		return nil, fmt.Errorf("failed to query link keys: %w", err)
	}
	defer rows.Close()

	var keys []models.LinkKey
	for rows.Next() {
		var k models.LinkKey
		if err := rows.Scan(&k.NodeUID, &k.RowID); err != nil {
			return nil, fmt.Errorf("failed to scan link key: %w", err)
		}
		keys = append(keys, k)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating link keys: %w", err)
	}

	return keys, nil
}

func (r *linkRepository) LatestLinkedBatch(ctx context.Context, releaseID uuid.UUID, source string) (uuid.UUID, error) {
	query := `
		SELECT b.id
		FROM std_wms_links l
		JOIN wms_rows r ON r.id = l.row_id
		JOIN wms_batches b ON b.id = r.batch_id
		WHERE l.release_id = $1 AND b.source = $2
		ORDER BY b.received_at DESC
		LIMIT 1`

	var batchID uuid.UUID
	err := r.db.QueryRow(ctx, query, releaseID, source).Scan(&batchID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to resolve latest linked batch: %w", err)
	}

	return batchID, nil
}

func (r *linkRepository) ApplyRebase(ctx context.Context, releaseID uuid.UUID, inserts, deletes []models.LinkKey) (int, int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	inserted := 0
	insertQuery := `
		INSERT INTO std_wms_links (release_id, node_uid, row_id, assigned_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (release_id, node_uid, row_id) DO NOTHING`

	for _, k := range inserts {
		result, err := tx.Exec(ctx, insertQuery, releaseID, k.NodeUID, k.RowID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to insert rebased link: %w", err)
		}
		inserted += int(result.RowsAffected())
	}

	deleted := 0
	deleteQuery := `
		DELETE FROM std_wms_links
		WHERE release_id = $1 AND node_uid = $2 AND row_id = $3`

	for _, k := range deletes {
		result, err := tx.Exec(ctx, deleteQuery, releaseID, k.NodeUID, k.RowID)
		if err != nil {
			return 0, 0, fmt.Errorf("failed to delete old link: %w", err)
		}
		deleted += int(result.RowsAffected())
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, deleted, nil
}

func collectLinks(rows pgx.Rows) ([]*models.Link, error) {
	var links []*models.Link
	for rows.Next() {
		var l models.Link
		if err := rows.Scan(&l.ReleaseID, &l.NodeUID, &l.RowID, &l.AssignedAt); err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, &l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating links: %w", err)
	}

	return links, nil
}
