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

// RowValidation carries one row's classification outcome.
type RowValidation struct {
	RowID  uuid.UUID
	Status string
	Errors []string
}

// ItemFilter narrows the flattened item query.
type ItemFilter struct {
	Sources  []string
	Search   string
	BatchIDs []uuid.UUID
	Limit    int
	Offset   int
}

// BatchRepository provides data access for work-master batches and rows.
type BatchRepository interface {
	// CreateWithRows inserts the batch and all its rows in one transaction.
	CreateWithRows(ctx context.Context, batch *models.Batch, payloads []map[string]any) error
	Get(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	ListSummaries(ctx context.Context) ([]*models.BatchSummary, error)
	ListRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error)
	ListRowsByStatus(ctx context.Context, batchID uuid.UUID, status string) ([]*models.Row, error)
	ListAllRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error)
	// ApplyValidation writes every row's classification and the batch status
	// in one transaction.
	ApplyValidation(ctx context.Context, batchID uuid.UUID, results []RowValidation, batchStatus string) error
	// SetCurrent points the source's current-batch pointer at the batch
	// (clear-then-set upsert).
	SetCurrent(ctx context.Context, source string, batchID uuid.UUID) error
	// GetCurrentPointer returns the pointed-at batch for the source, or
	// uuid.Nil when no pointer is set.
	GetCurrentPointer(ctx context.Context, source string) (uuid.UUID, error)
	// LatestBySource returns the most recently received batch for the
	// source, optionally restricted to a status ("" matches any).
	LatestBySource(ctx context.Context, source, status string) (*models.Batch, error)
	ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error)
}

type batchRepository struct {
	db *database.DB
}

// NewBatchRepository creates a new BatchRepository.
func NewBatchRepository(db *database.DB) BatchRepository {
	return &batchRepository{db: db}
}

var _ BatchRepository = (*batchRepository)(nil)

func (r *batchRepository) CreateWithRows(ctx context.Context, batch *models.Batch, payloads []map[string]any) error {
	if batch.ID == uuid.Nil {
		batch.ID = uuid.New()
	}
	if batch.Status == "" {
		batch.Status = models.BatchStatusReceived
	}
	batch.ReceivedAt = time.Now().UTC()

	meta, err := jsonbValue(batch.Meta)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO wms_batches (id, source, project_ref, uploader, status, meta, received_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		batch.ID, batch.Source, batch.ProjectRef, nullString(batch.Uploader), batch.Status, meta, batch.ReceivedAt)
	if err != nil {
		return fmt.Errorf("failed to create batch: %w", err)
	}

	rowQuery := `
		INSERT INTO wms_rows (id, batch_id, row_index, payload, status)
		VALUES ($1, $2, $3, $4, $5)`

	for i, payload := range payloads {
		data, err := jsonbValue(payload)
		if err != nil {
			return err
		}
		if data == nil {
			data = []byte("{}")
		}
		if _, err := tx.Exec(ctx, rowQuery, uuid.New(), batch.ID, i, data, models.RowStatusReceived); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *batchRepository) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	query := `
		SELECT id, source, project_ref, uploader, status, meta, received_at
		FROM wms_batches
		WHERE id = $1`

	batch, err := scanBatch(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

func (r *batchRepository) ListSummaries(ctx context.Context) ([]*models.BatchSummary, error) {
	query := `
		SELECT b.id, b.source, b.project_ref, b.uploader, b.status, b.meta, b.received_at,
		       COUNT(r.id) AS total_rows,
		       COUNT(r.id) FILTER (WHERE r.status = 'ok') AS ok_rows,
		       COUNT(r.id) FILTER (WHERE r.status = 'error') AS error_rows
		FROM wms_batches b
		LEFT JOIN wms_rows r ON r.batch_id = b.id
		GROUP BY b.id
		ORDER BY b.received_at DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var summaries []*models.BatchSummary
	for rows.Next() {
		var s models.BatchSummary
		var meta []byte
		var uploader, projectRef *string
		err := rows.Scan(&s.ID, &s.Source, &projectRef, &uploader, &s.Status, &meta, &s.ReceivedAt,
			&s.TotalRows, &s.OKRows, &s.ErrorRows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan batch summary: %w", err)
		}
		s.ProjectRef = projectRef
		if uploader != nil {
			s.Uploader = *uploader
		}
		if s.Meta, err = unmarshalMap(meta); err != nil {
			return nil, err
		}
		summaries = append(summaries, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating batches: %w", err)
	}

	return summaries, nil
}

func (r *batchRepository) ListRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error) {
	query := `
		SELECT id, batch_id, row_index, payload, status, errors
		FROM wms_rows
		WHERE batch_id = $1
		ORDER BY row_index
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, batchID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (r *batchRepository) ListRowsByStatus(ctx context.Context, batchID uuid.UUID, status string) ([]*models.Row, error) {
	query := `
		SELECT id, batch_id, row_index, payload, status, errors
		FROM wms_rows
		WHERE batch_id = $1 AND status = $2
		ORDER BY row_index`

	rows, err := r.db.Query(ctx, query, batchID, status)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (r *batchRepository) ListAllRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error) {
	query := `
		SELECT id, batch_id, row_index, payload, status, errors
		FROM wms_rows
		WHERE batch_id = $1
		ORDER BY row_index`

	rows, err := r.db.Query(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rows: %w", err)
	}
	defer rows.Close()

	return collectRows(rows)
}

func (r *batchRepository) ApplyValidation(ctx context.Context, batchID uuid.UUID, results []RowValidation, batchStatus string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	rowQuery := `
		UPDATE wms_rows
		SET status = $2, errors = $3
		WHERE id = $1`

	for _, res := range results {
		errs, err := jsonbStrings(res.Errors)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, rowQuery, res.RowID, res.Status, errs); err != nil {
			return fmt.Errorf("failed to update row %s: %w", res.RowID, err)
		}
	}

	if _, err := tx.Exec(ctx, `UPDATE wms_batches SET status = $2 WHERE id = $1`, batchID, batchStatus); err != nil {
		return fmt.Errorf("failed to update batch status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *batchRepository) SetCurrent(ctx context.Context, source string, batchID uuid.UUID) error {
	query := `
		INSERT INTO wms_current_batches (source, batch_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (source) DO UPDATE
		SET batch_id = EXCLUDED.batch_id,
		    updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, source, batchID); err != nil {
		return fmt.Errorf("failed to set current batch: %w", err)
	}

	return nil
}

func (r *batchRepository) GetCurrentPointer(ctx context.Context, source string) (uuid.UUID, error) {
	query := `SELECT batch_id FROM wms_current_batches WHERE source = $1`

	var batchID uuid.UUID
	err := r.db.QueryRow(ctx, query, source).Scan(&batchID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return uuid.Nil, nil
		}
		return uuid.Nil, fmt.Errorf("failed to get current batch pointer: %w", err)
	}

	return batchID, nil
}

func (r *batchRepository) LatestBySource(ctx context.Context, source, status string) (*models.Batch, error) {
	query := `
		SELECT id, source, project_ref, uploader, status, meta, received_at
		FROM wms_batches
		WHERE source = $1 AND ($2 = '' OR status = $2)
		ORDER BY received_at DESC
		LIMIT 1`

	batch, err := scanBatch(r.db.QueryRow(ctx, query, source, status))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrBatchNotFound
		}
		return nil, err
	}
	return batch, nil
}

func (r *batchRepository) ListItems(ctx context.Context, filter ItemFilter) ([]*models.Item, error) {
	query := `
		SELECT r.id, r.batch_id, r.row_index, r.payload, r.status, r.errors,
		       b.source, b.received_at
		FROM wms_rows r
		JOIN wms_batches b ON b.id = r.batch_id
		WHERE ($1::text[] IS NULL OR b.source = ANY($1))
		  AND ($2 = '' OR r.payload::text ILIKE '%' || $2 || '%')
		  AND ($3::uuid[] IS NULL OR r.batch_id = ANY($3))
		ORDER BY b.received_at DESC, r.row_index
		LIMIT $4 OFFSET $5`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var sources any
	if len(filter.Sources) > 0 {
		sources = filter.Sources
	}
	var batchIDs any
	if len(filter.BatchIDs) > 0 {
		batchIDs = filter.BatchIDs
	}

	rows, err := r.db.Query(ctx, query, sources, filter.Search, batchIDs, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		var it models.Item
		var payload, errs []byte
		err := rows.Scan(&it.ID, &it.BatchID, &it.RowIndex, &payload, &it.Status, &errs,
			&it.Source, &it.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		if it.Payload, err = unmarshalMap(payload); err != nil {
			return nil, err
		}
		if it.Errors, err = unmarshalStrings(errs); err != nil {
			return nil, err
		}
		items = append(items, &it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

func scanBatch(row pgx.Row) (*models.Batch, error) {
	var b models.Batch
	var meta []byte
	var uploader, projectRef *string

	err := row.Scan(&b.ID, &b.Source, &projectRef, &uploader, &b.Status, &meta, &b.ReceivedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan batch: %w", err)
	}

	b.ProjectRef = projectRef
	if uploader != nil {
		b.Uploader = *uploader
	}
	if b.Meta, err = unmarshalMap(meta); err != nil {
		return nil, err
	}

	return &b, nil
}

func collectRows(rows pgx.Rows) ([]*models.Row, error) {
	var result []*models.Row
	for rows.Next() {
		var row models.Row
		var payload, errs []byte
		if err := rows.Scan(&row.ID, &row.BatchID, &row.RowIndex, &payload, &row.Status, &errs); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		var err error
		if row.Payload, err = unmarshalMap(payload); err != nil {
			return nil, err
		}
		if row.Errors, err = unmarshalStrings(errs); err != nil {
			return nil, err
		}
		result = append(result, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}
