package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
)

// ReleaseSelector names a source release for link copying: explicit id first,
// then version, otherwise the most recently created ACTIVE release.
type ReleaseSelector struct {
	ID      *uuid.UUID `json:"id,omitempty"`
	Version string     `json:"version,omitempty"`
}

// RebaseRequest describes a link rebase of a release from one work-master
// batch generation onto another. Unset batch ids are resolved from Source.
// Old links survive the rebase unless DeleteOld is set.
type RebaseRequest struct {
	FromBatchID *uuid.UUID `json:"from_batch_id,omitempty"`
	ToBatchID   *uuid.UUID `json:"to_batch_id,omitempty"`
	Source      string     `json:"source,omitempty"`
	DryRun      bool       `json:"dry_run"`
	DeleteOld   bool       `json:"delete_old"`
}

// LinkService manages node-to-row links and their migration across batch
// generations.
type LinkService interface {
	Assign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	Unassign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	ListByNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error)
	// CopyLinks imports links from another release, keeping only those whose
	// node uid exists in the destination when onlyExistingNodes is set.
	CopyLinks(ctx context.Context, releaseID uuid.UUID, source ReleaseSelector, onlyExistingNodes bool) (int, error)
	// Rebase remaps the release's links from an old batch onto a new one by
	// matching rows on their business code. Unmatched links are left alone.
	Rebase(ctx context.Context, releaseID uuid.UUID, req *RebaseRequest) (*models.RebaseResult, error)
}

type linkService struct {
	releases repositories.ReleaseRepository
	nodes    repositories.NodeRepository
	batches  repositories.BatchRepository
	links    repositories.LinkRepository
	logger   *zap.Logger
}

// NewLinkService creates a new LinkService.
func NewLinkService(releases repositories.ReleaseRepository, nodes repositories.NodeRepository, batches repositories.BatchRepository, links repositories.LinkRepository, logger *zap.Logger) LinkService {
	return &linkService{releases: releases, nodes: nodes, batches: batches, links: links, logger: logger}
}

var _ LinkService = (*linkService)(nil)

func (s *linkService) editableRelease(ctx context.Context, releaseID uuid.UUID) (*models.Release, error) {
	release, err := s.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !release.IsDraft() {
		return nil, &apperrors.ReleaseNotEditableError{Version: release.Version, Status: release.Status}
	}
	return release, nil
}

func (s *linkService) Assign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	if len(rowIDs) == 0 {
		return 0, apperrors.Validation("row_ids must not be empty")
	}
	if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return 0, err
	}
	if _, err := s.nodes.GetByUID(ctx, releaseID, nodeUID); err != nil {
		return 0, err
	}

	assigned, err := s.links.Assign(ctx, releaseID, nodeUID, rowIDs)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Assigned rows to node",
		zap.String("release_id", releaseID.String()),
		zap.String("node_uid", nodeUID),
		zap.Int("assigned", assigned))

	return assigned, nil
}

func (s *linkService) Unassign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	if len(rowIDs) == 0 {
		return 0, apperrors.Validation("row_ids must not be empty")
	}
	if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return 0, err
	}
	if _, err := s.nodes.GetByUID(ctx, releaseID, nodeUID); err != nil {
		return 0, err
	}

	return s.links.Unassign(ctx, releaseID, nodeUID, rowIDs)
}

func (s *linkService) ListByNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error) {
	if _, err := s.nodes.GetByUID(ctx, releaseID, nodeUID); err != nil {
		return nil, err
	}
	return s.links.ListByNode(ctx, releaseID, nodeUID)
}

func (s *linkService) CopyLinks(ctx context.Context, releaseID uuid.UUID, source ReleaseSelector, onlyExistingNodes bool) (int, error) {
	if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return 0, err
	}

	var from *models.Release
	var err error
	switch {
	case source.ID != nil:
		from, err = s.releases.Get(ctx, *source.ID)
	case source.Version != "":
		from, err = s.releases.GetByVersion(ctx, source.Version)
	default:
		from, err = s.releases.LatestActive(ctx)
	}
	if err != nil {
		return 0, err
	}
	if from.ID == releaseID {
		return 0, apperrors.Validation("cannot copy links from the release itself")
	}

	copied, err := s.links.CopyFromRelease(ctx, releaseID, from.ID, onlyExistingNodes)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Copied links",
		zap.String("release_id", releaseID.String()),
		zap.String("source_release_id", from.ID.String()),
		zap.Int("copied", copied))

	return copied, nil
}

func (s *linkService) Rebase(ctx context.Context, releaseID uuid.UUID, req *RebaseRequest) (*models.RebaseResult, error) {
	if req.DryRun {
		// A dry run only reads, so an ACTIVE release may preview it.
		if _, err := s.releases.Get(ctx, releaseID); err != nil {
			return nil, err
		}
	} else if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return nil, err
	}

	fromBatchID, toBatchID, err := s.resolveRebaseBatches(ctx, releaseID, req)
	if err != nil {
		return nil, err
	}
	if fromBatchID == toBatchID {
		// Already on the target generation, nothing to move.
		return &models.RebaseResult{
			FromBatchID: fromBatchID,
			ToBatchID:   toBatchID,
			DeleteOld:   req.DeleteOld,
			DryRun:      req.DryRun,
		}, nil
	}

	oldLinks, err := s.links.ListByReleaseAndBatch(ctx, releaseID, fromBatchID)
	if err != nil {
		return nil, err
	}
	if len(oldLinks) == 0 {
		return nil, apperrors.ErrNoLinksToRebase
	}

	oldRows, err := s.batches.ListAllRows(ctx, fromBatchID)
	if err != nil {
		return nil, err
	}
	newRows, err := s.batches.ListAllRows(ctx, toBatchID)
	if err != nil {
		return nil, err
	}

	existingKeys, err := s.links.ListKeysByRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	plan := planRebase(oldLinks, oldRows, newRows, existingKeys)

	deletes := plan.deletes
	if !req.DeleteOld {
		// Insert-only rebase: matched old links stay until the caller opts
		// into deleting them.
		deletes = nil
	}

	result := &models.RebaseResult{
		FromBatchID: fromBatchID,
		ToBatchID:   toBatchID,
		Inserted:    len(plan.inserts),
		Deleted:     len(deletes),
		Skipped:     plan.skipped,
		DeleteOld:   req.DeleteOld,
		DryRun:      req.DryRun,
	}

	if req.DryRun {
		return result, nil
	}

	inserted, deleted, err := s.links.ApplyRebase(ctx, releaseID, plan.inserts, deletes)
	if err != nil {
		return nil, err
	}
	result.Inserted = inserted
	result.Deleted = deleted

	s.logger.Info("Rebased links",
		zap.String("release_id", releaseID.String()),
		zap.String("from_batch_id", fromBatchID.String()),
		zap.String("to_batch_id", toBatchID.String()),
		zap.Int("inserted", inserted),
		zap.Int("deleted", deleted),
		zap.Int("skipped", plan.skipped))

	return result, nil
}

// resolveRebaseBatches fills in the batch endpoints the request left
// implicit: the target defaults to the source's current batch (pinned, else
// newest validated, else newest), the origin to the newest batch the release
// currently links into. Explicit ids must belong to the named source.
func (s *linkService) resolveRebaseBatches(ctx context.Context, releaseID uuid.UUID, req *RebaseRequest) (uuid.UUID, uuid.UUID, error) {
	var toBatchID uuid.UUID
	if req.ToBatchID != nil {
		batch, err := s.sourceBatch(ctx, *req.ToBatchID, req.Source)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		toBatchID = batch.ID
	} else {
		if req.Source == "" {
			return uuid.Nil, uuid.Nil, apperrors.Validation("either to_batch_id or source is required")
		}
		id, err := s.currentBatchID(ctx, req.Source)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		toBatchID = id
	}

	if req.FromBatchID != nil {
		batch, err := s.sourceBatch(ctx, *req.FromBatchID, req.Source)
		if err != nil {
			return uuid.Nil, uuid.Nil, err
		}
		return batch.ID, toBatchID, nil
	}

	fromBatchID, err := s.links.LatestLinkedBatch(ctx, releaseID, req.Source)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	if fromBatchID == uuid.Nil {
		return uuid.Nil, uuid.Nil, apperrors.ErrNoLinksToRebase
	}

	return fromBatchID, toBatchID, nil
}

// sourceBatch loads a batch by id and, when a source is named, rejects a
// batch that belongs to a different source.
func (s *linkService) sourceBatch(ctx context.Context, batchID uuid.UUID, source string) (*models.Batch, error) {
	batch, err := s.batches.Get(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if source != "" && batch.Source != source {
		return nil, apperrors.Validation("batch %s belongs to source %q, not %q", batchID, batch.Source, source)
	}
	return batch, nil
}

// currentBatchID mirrors the batch service's current-batch selection so the
// rebase target agrees with GET /api/wms/current: pinned pointer first, then
// the newest validated batch, then the newest batch of any status.
func (s *linkService) currentBatchID(ctx context.Context, source string) (uuid.UUID, error) {
	pinned, err := s.batches.GetCurrentPointer(ctx, source)
	if err != nil {
		return uuid.Nil, err
	}
	if pinned != uuid.Nil {
		if _, err := s.batches.Get(ctx, pinned); err == nil {
			return pinned, nil
		}
		// A stale pin falls through to the heuristics.
	}

	batch, err := s.batches.LatestBySource(ctx, source, models.BatchStatusValidated)
	if err == nil {
		return batch.ID, nil
	}
	if !errors.Is(err, apperrors.ErrBatchNotFound) {
		return uuid.Nil, err
	}

	batch, err = s.batches.LatestBySource(ctx, source, "")
	if err != nil {
		if errors.Is(err, apperrors.ErrBatchNotFound) {
			return uuid.Nil, apperrors.ErrNoCurrentBatch
		}
		return uuid.Nil, err
	}
	return batch.ID, nil
}

type rebasePlan struct {
	inserts []models.LinkKey
	deletes []models.LinkKey
	skipped int
}

// planRebase maps every old link onto the new batch generation by row code.
// A link whose old row has no code, or whose code has no counterpart in the
// new batch, is skipped and keeps its old link. A matched link gets the
// (node, new row) pair staged for insert and the old pair staged for delete;
// when the new pair already exists only the delete is staged.
func planRebase(oldLinks []*models.Link, oldRows, newRows []*models.Row, existingKeys []models.LinkKey) rebasePlan {
	codeByOldRow := make(map[uuid.UUID]string, len(oldRows))
	for _, row := range oldRows {
		codeByOldRow[row.ID] = row.Code()
	}

	newRowByCode := make(map[string]uuid.UUID, len(newRows))
	for _, row := range newRows {
		code := row.Code()
		if code == "" {
			continue
		}
		if _, seen := newRowByCode[code]; !seen {
			newRowByCode[code] = row.ID
		}
	}

	existing := make(map[models.LinkKey]bool, len(existingKeys))
	for _, k := range existingKeys {
		existing[k] = true
	}

	var plan rebasePlan
	staged := make(map[models.LinkKey]bool)
	for _, link := range oldLinks {
		code := codeByOldRow[link.RowID]
		if code == "" {
			plan.skipped++
			continue
		}
		newRowID, ok := newRowByCode[code]
		if !ok {
			plan.skipped++
			continue
		}

		newKey := models.LinkKey{NodeUID: link.NodeUID, RowID: newRowID}
		if !existing[newKey] && !staged[newKey] {
			plan.inserts = append(plan.inserts, newKey)
			staged[newKey] = true
		}
		plan.deletes = append(plan.deletes, models.LinkKey{NodeUID: link.NodeUID, RowID: link.RowID})
	}

	return plan
}
