package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
)

// defaultRequiredFields are the payload fields every work-master row must
// carry a non-blank value for.
var defaultRequiredFields = []string{models.CodeField, "name"}

// IngestRequest carries a raw work-master batch upload.
type IngestRequest struct {
	Source     string           `json:"source"`
	ProjectRef *string          `json:"project_ref,omitempty"`
	Rows       []map[string]any `json:"rows"`
	Meta       map[string]any   `json:"meta,omitempty"`
}

// ValidateOptions tunes a batch validation run. Zero value applies the
// default required-field set.
type ValidateOptions struct {
	RequiredFields []string `json:"required_fields,omitempty"`
}

// BatchService ingests, validates and serves tabular work-master batches.
type BatchService interface {
	Ingest(ctx context.Context, req *IngestRequest, uploader string) (*models.Batch, error)
	Get(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
	List(ctx context.Context) ([]*models.BatchSummary, error)
	PreviewRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error)
	ListErrorRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error)
	// Validate re-checks every row of the batch and settles the batch status
	// to VALIDATED or INVALID.
	Validate(ctx context.Context, batchID uuid.UUID, opts ValidateOptions) (*models.BatchSummary, error)
	ListItems(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error)
	// SetCurrent pins batchID as the current batch for its source.
	SetCurrent(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
	// GetCurrent resolves the current batch for a source: the explicit pin
	// first, then the newest validated batch, then the newest batch at all.
	GetCurrent(ctx context.Context, source string) (*models.Batch, error)
}

type batchService struct {
	batches repositories.BatchRepository
	logger  *zap.Logger
}

// NewBatchService creates a new BatchService.
func NewBatchService(batches repositories.BatchRepository, logger *zap.Logger) BatchService {
	return &batchService{batches: batches, logger: logger}
}

var _ BatchService = (*batchService)(nil)

func (s *batchService) Ingest(ctx context.Context, req *IngestRequest, uploader string) (*models.Batch, error) {
	source := strings.TrimSpace(req.Source)
	if source == "" {
		return nil, apperrors.Validation("source must not be empty")
	}
	if len(req.Rows) == 0 {
		return nil, apperrors.Validation("batch must contain at least one row")
	}

	batch := &models.Batch{
		ID:         uuid.New(),
		Source:     source,
		ProjectRef: req.ProjectRef,
		Uploader:   uploader,
		Status:     models.BatchStatusReceived,
		Meta:       req.Meta,
	}

	if err := s.batches.CreateWithRows(ctx, batch, req.Rows); err != nil {
		return nil, err
	}

	s.logger.Info("Ingested batch",
		zap.String("batch_id", batch.ID.String()),
		zap.String("source", batch.Source),
		zap.Int("rows", len(req.Rows)))

	return batch, nil
}

func (s *batchService) Get(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	return s.batches.Get(ctx, batchID)
}

func (s *batchService) List(ctx context.Context) ([]*models.BatchSummary, error) {
	return s.batches.ListSummaries(ctx)
}

func (s *batchService) PreviewRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error) {
	if _, err := s.batches.Get(ctx, batchID); err != nil {
		return nil, err
	}
	return s.batches.ListRows(ctx, batchID, limit, offset)
}

func (s *batchService) ListErrorRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error) {
	if _, err := s.batches.Get(ctx, batchID); err != nil {
		return nil, err
	}
	return s.batches.ListRowsByStatus(ctx, batchID, models.RowStatusError)
}

func (s *batchService) Validate(ctx context.Context, batchID uuid.UUID, opts ValidateOptions) (*models.BatchSummary, error) {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	required := opts.RequiredFields
	if len(required) == 0 {
		required = defaultRequiredFields
	}

	rows, err := s.batches.ListAllRows(ctx, batchID)
	if err != nil {
		return nil, err
	}

	validations := validateRows(rows, required)

	okRows, errorRows := 0, 0
	for _, v := range validations {
		if v.Status == models.RowStatusOK {
			okRows++
		} else {
			errorRows++
		}
	}

	batchStatus := models.BatchStatusValidated
	if errorRows > 0 {
		batchStatus = models.BatchStatusInvalid
	}

	if err := s.batches.ApplyValidation(ctx, batchID, validations, batchStatus); err != nil {
		return nil, err
	}

	s.logger.Info("Validated batch",
		zap.String("batch_id", batchID.String()),
		zap.String("status", batchStatus),
		zap.Int("ok_rows", okRows),
		zap.Int("error_rows", errorRows))

	batch.Status = batchStatus
	return &models.BatchSummary{
		Batch:     *batch,
		TotalRows: len(rows),
		OKRows:    okRows,
		ErrorRows: errorRows,
	}, nil
}

// validateRows checks every row against the required fields and flags
// duplicate codes within the batch.
func validateRows(rows []*models.Row, required []string) []repositories.RowValidation {
	codeCounts := make(map[string]int, len(rows))
	for _, row := range rows {
		if code := row.Code(); code != "" {
			codeCounts[code]++
		}
	}

	validations := make([]repositories.RowValidation, 0, len(rows))
	for _, row := range rows {
		var errs []string
		for _, field := range required {
			if blankField(row.Payload, field) {
				errs = append(errs, fmt.Sprintf("missing required field %q", field))
			}
		}
		if code := row.Code(); code != "" && codeCounts[code] > 1 {
			errs = append(errs, fmt.Sprintf("duplicate code %q in batch", code))
		}

		status := models.RowStatusOK
		if len(errs) > 0 {
			status = models.RowStatusError
		}
		validations = append(validations, repositories.RowValidation{
			RowID:  row.ID,
			Status: status,
			Errors: errs,
		})
	}

	return validations
}

// blankField reports whether the payload field is absent, not a string, or
// whitespace-only. Non-string scalars count as present.
func blankField(payload map[string]any, field string) bool {
	v, ok := payload[field]
	if !ok || v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

func (s *batchService) ListItems(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error) {
	return s.batches.ListItems(ctx, filter)
}

func (s *batchService) SetCurrent(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if err := s.batches.SetCurrent(ctx, batch.Source, batch.ID); err != nil {
		return nil, err
	}

	s.logger.Info("Pinned current batch",
		zap.String("source", batch.Source),
		zap.String("batch_id", batch.ID.String()))

	return batch, nil
}

func (s *batchService) GetCurrent(ctx context.Context, source string) (*models.Batch, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, apperrors.Validation("source must not be empty")
	}

	pinned, err := s.batches.GetCurrentPointer(ctx, source)
	if err != nil {
		return nil, err
	}
	if pinned != uuid.Nil {
		batch, err := s.batches.Get(ctx, pinned)
		if err == nil {
			return batch, nil
		}
		// A stale pin falls through to the heuristics rather than failing
		// the lookup.
	}

	batch, err := s.batches.LatestBySource(ctx, source, models.BatchStatusValidated)
	if err == nil {
		return batch, nil
	}
	if !errors.Is(err, apperrors.ErrBatchNotFound) {
		return nil, err
	}

	batch, err = s.batches.LatestBySource(ctx, source, "")
	if err != nil {
		if errors.Is(err, apperrors.ErrBatchNotFound) {
			return nil, apperrors.ErrNoCurrentBatch
		}
		return nil, err
	}
	return batch, nil
}
