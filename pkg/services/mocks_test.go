package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
)

// Hand-rolled mocks over the repository interfaces. Tests set only the
// function fields they exercise; unset read fields report not-found and
// unset write fields succeed.

type mockReleaseRepo struct {
	createFn       func(ctx context.Context, release *models.Release) error
	getFn          func(ctx context.Context, id uuid.UUID) (*models.Release, error)
	getByVersionFn func(ctx context.Context, version string) (*models.Release, error)
	listFn         func(ctx context.Context) ([]*models.Release, error)
	updateStatusFn func(ctx context.Context, id uuid.UUID, status string) (*models.Release, error)
	cloneFn        func(ctx context.Context, baseID uuid.UUID, release *models.Release, copyLinks bool) error
	latestActiveFn func(ctx context.Context) (*models.Release, error)
}

func (m *mockReleaseRepo) Create(ctx context.Context, release *models.Release) error {
	if m.createFn != nil {
		return m.createFn(ctx, release)
	}
	return nil
}

func (m *mockReleaseRepo) Get(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, apperrors.ErrReleaseNotFound
}

func (m *mockReleaseRepo) GetByVersion(ctx context.Context, version string) (*models.Release, error) {
	if m.getByVersionFn != nil {
		return m.getByVersionFn(ctx, version)
	}
	return nil, apperrors.ErrReleaseNotFound
}

func (m *mockReleaseRepo) List(ctx context.Context) ([]*models.Release, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockReleaseRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, status)
	}
	return nil, apperrors.ErrReleaseNotFound
}

func (m *mockReleaseRepo) Clone(ctx context.Context, baseID uuid.UUID, release *models.Release, copyLinks bool) error {
	if m.cloneFn != nil {
		return m.cloneFn(ctx, baseID, release, copyLinks)
	}
	return nil
}

func (m *mockReleaseRepo) LatestActive(ctx context.Context) (*models.Release, error) {
	if m.latestActiveFn != nil {
		return m.latestActiveFn(ctx)
	}
	return nil, apperrors.ErrReleaseNotFound
}

type mockNodeRepo struct {
	createFn          func(ctx context.Context, node *models.Node) error
	getByUIDFn        func(ctx context.Context, releaseID uuid.UUID, nodeUID string) (*models.Node, error)
	listByReleaseFn   func(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.Node, error)
	listDescendantsFn func(ctx context.Context, releaseID uuid.UUID, path string) ([]*models.Node, error)
	updateFieldsFn    func(ctx context.Context, node *models.Node) error
	applyReparentFn   func(ctx context.Context, releaseID uuid.UUID, updates []repositories.NodePathUpdate) error
	deleteSubtreeFn   func(ctx context.Context, releaseID uuid.UUID, path string) (int64, error)
}

func (m *mockNodeRepo) Create(ctx context.Context, node *models.Node) error {
	if m.createFn != nil {
		return m.createFn(ctx, node)
	}
	return nil
}

func (m *mockNodeRepo) GetByUID(ctx context.Context, releaseID uuid.UUID, nodeUID string) (*models.Node, error) {
	if m.getByUIDFn != nil {
		return m.getByUIDFn(ctx, releaseID, nodeUID)
	}
	return nil, apperrors.ErrNodeNotFound
}

func (m *mockNodeRepo) ListByRelease(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.Node, error) {
	if m.listByReleaseFn != nil {
		return m.listByReleaseFn(ctx, releaseID, kind)
	}
	return nil, nil
}

func (m *mockNodeRepo) ListDescendants(ctx context.Context, releaseID uuid.UUID, path string) ([]*models.Node, error) {
	if m.listDescendantsFn != nil {
		return m.listDescendantsFn(ctx, releaseID, path)
	}
	return nil, nil
}

func (m *mockNodeRepo) UpdateFields(ctx context.Context, node *models.Node) error {
	if m.updateFieldsFn != nil {
		return m.updateFieldsFn(ctx, node)
	}
	return nil
}

func (m *mockNodeRepo) ApplyReparent(ctx context.Context, releaseID uuid.UUID, updates []repositories.NodePathUpdate) error {
	if m.applyReparentFn != nil {
		return m.applyReparentFn(ctx, releaseID, updates)
	}
	return nil
}

func (m *mockNodeRepo) DeleteSubtree(ctx context.Context, releaseID uuid.UUID, path string) (int64, error) {
	if m.deleteSubtreeFn != nil {
		return m.deleteSubtreeFn(ctx, releaseID, path)
	}
	return 0, nil
}

type mockBatchRepo struct {
	createWithRowsFn    func(ctx context.Context, batch *models.Batch, payloads []map[string]any) error
	getFn               func(ctx context.Context, id uuid.UUID) (*models.Batch, error)
	listSummariesFn     func(ctx context.Context) ([]*models.BatchSummary, error)
	listRowsFn          func(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error)
	listRowsByStatusFn  func(ctx context.Context, batchID uuid.UUID, status string) ([]*models.Row, error)
	listAllRowsFn       func(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error)
	applyValidationFn   func(ctx context.Context, batchID uuid.UUID, results []repositories.RowValidation, batchStatus string) error
	setCurrentFn        func(ctx context.Context, source string, batchID uuid.UUID) error
	getCurrentPointerFn func(ctx context.Context, source string) (uuid.UUID, error)
	latestBySourceFn    func(ctx context.Context, source, status string) (*models.Batch, error)
	listItemsFn         func(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error)
}

func (m *mockBatchRepo) CreateWithRows(ctx context.Context, batch *models.Batch, payloads []map[string]any) error {
	if m.createWithRowsFn != nil {
		return m.createWithRowsFn(ctx, batch, payloads)
	}
	return nil
}

func (m *mockBatchRepo) Get(ctx context.Context, id uuid.UUID) (*models.Batch, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, apperrors.ErrBatchNotFound
}

func (m *mockBatchRepo) ListSummaries(ctx context.Context) ([]*models.BatchSummary, error) {
	if m.listSummariesFn != nil {
		return m.listSummariesFn(ctx)
	}
	return nil, nil
}

func (m *mockBatchRepo) ListRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error) {
	if m.listRowsFn != nil {
		return m.listRowsFn(ctx, batchID, limit, offset)
	}
	return nil, nil
}

func (m *mockBatchRepo) ListRowsByStatus(ctx context.Context, batchID uuid.UUID, status string) ([]*models.Row, error) {
	if m.listRowsByStatusFn != nil {
		return m.listRowsByStatusFn(ctx, batchID, status)
	}
	return nil, nil
}

func (m *mockBatchRepo) ListAllRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error) {
	if m.listAllRowsFn != nil {
		return m.listAllRowsFn(ctx, batchID)
	}
	return nil, nil
}

func (m *mockBatchRepo) ApplyValidation(ctx context.Context, batchID uuid.UUID, results []repositories.RowValidation, batchStatus string) error {
	if m.applyValidationFn != nil {
		return m.applyValidationFn(ctx, batchID, results, batchStatus)
	}
	return nil
}

func (m *mockBatchRepo) SetCurrent(ctx context.Context, source string, batchID uuid.UUID) error {
	if m.setCurrentFn != nil {
		return m.setCurrentFn(ctx, source, batchID)
	}
	return nil
}

func (m *mockBatchRepo) GetCurrentPointer(ctx context.Context, source string) (uuid.UUID, error) {
	if m.getCurrentPointerFn != nil {
		return m.getCurrentPointerFn(ctx, source)
	}
	return uuid.Nil, nil
}

func (m *mockBatchRepo) LatestBySource(ctx context.Context, source, status string) (*models.Batch, error) {
	if m.latestBySourceFn != nil {
		return m.latestBySourceFn(ctx, source, status)
	}
	return nil, apperrors.ErrBatchNotFound
}

func (m *mockBatchRepo) ListItems(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, filter)
	}
	return nil, nil
}

type mockLinkRepo struct {
	assignFn                func(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	unassignFn              func(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)
	listByNodeFn            func(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error)
	copyFromReleaseFn       func(ctx context.Context, toReleaseID, fromReleaseID uuid.UUID, onlyExistingNodes bool) (int, error)
	listByReleaseAndBatchFn func(ctx context.Context, releaseID, batchID uuid.UUID) ([]*models.Link, error)
	listKeysByReleaseFn     func(ctx context.Context, releaseID uuid.UUID) ([]models.LinkKey, error)
	latestLinkedBatchFn     func(ctx context.Context, releaseID uuid.UUID, source string) (uuid.UUID, error)
	applyRebaseFn           func(ctx context.Context, releaseID uuid.UUID, inserts, deletes []models.LinkKey) (int, int, error)
}

func (m *mockLinkRepo) Assign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	if m.assignFn != nil {
		return m.assignFn(ctx, releaseID, nodeUID, rowIDs)
	}
	return 0, nil
}

func (m *mockLinkRepo) Unassign(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error) {
	if m.unassignFn != nil {
		return m.unassignFn(ctx, releaseID, nodeUID, rowIDs)
	}
	return 0, nil
}

func (m *mockLinkRepo) ListByNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) ([]*models.Link, error) {
	if m.listByNodeFn != nil {
		return m.listByNodeFn(ctx, releaseID, nodeUID)
	}
	return nil, nil
}

func (m *mockLinkRepo) CopyFromRelease(ctx context.Context, toReleaseID, fromReleaseID uuid.UUID, onlyExistingNodes bool) (int, error) {
	if m.copyFromReleaseFn != nil {
		return m.copyFromReleaseFn(ctx, toReleaseID, fromReleaseID, onlyExistingNodes)
	}
	return 0, nil
}

func (m *mockLinkRepo) ListByReleaseAndBatch(ctx context.Context, releaseID, batchID uuid.UUID) ([]*models.Link, error) {
	if m.listByReleaseAndBatchFn != nil {
		return m.listByReleaseAndBatchFn(ctx, releaseID, batchID)
	}
	return nil, nil
}

func (m *mockLinkRepo) ListKeysByRelease(ctx context.Context, releaseID uuid.UUID) ([]models.LinkKey, error) {
	if m.listKeysByReleaseFn != nil {
		return m.listKeysByReleaseFn(ctx, releaseID)
	}
	return nil, nil
}

func (m *mockLinkRepo) LatestLinkedBatch(ctx context.Context, releaseID uuid.UUID, source string) (uuid.UUID, error) {
	if m.latestLinkedBatchFn != nil {
		return m.latestLinkedBatchFn(ctx, releaseID, source)
	}
	return uuid.Nil, nil
}

func (m *mockLinkRepo) ApplyRebase(ctx context.Context, releaseID uuid.UUID, inserts, deletes []models.LinkKey) (int, int, error) {
	if m.applyRebaseFn != nil {
		return m.applyRebaseFn(ctx, releaseID, inserts, deletes)
	}
	return len(inserts), len(deletes), nil
}

type mockLockRepo struct {
	deleteExpiredFn    func(ctx context.Context, now time.Time) (int64, error)
	getLiveFn          func(ctx context.Context, resourceType string, resourceID uuid.UUID, now time.Time) (*models.EditLock, error)
	getByIDFn          func(ctx context.Context, id uuid.UUID) (*models.EditLock, error)
	insertFn           func(ctx context.Context, lock *models.EditLock) error
	renewFn            func(ctx context.Context, id uuid.UUID, heartbeatAt, expiresAt time.Time) error
	deleteFn           func(ctx context.Context, id uuid.UUID) (bool, error)
	deleteByResourceFn func(ctx context.Context, resourceType string, resourceID uuid.UUID) (int64, error)
}

func (m *mockLockRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx, now)
	}
	return 0, nil
}

func (m *mockLockRepo) GetLive(ctx context.Context, resourceType string, resourceID uuid.UUID, now time.Time) (*models.EditLock, error) {
	if m.getLiveFn != nil {
		return m.getLiveFn(ctx, resourceType, resourceID, now)
	}
	return nil, nil
}

func (m *mockLockRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.EditLock, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, apperrors.ErrLockNotFound
}

func (m *mockLockRepo) Insert(ctx context.Context, lock *models.EditLock) error {
	if m.insertFn != nil {
		return m.insertFn(ctx, lock)
	}
	return nil
}

func (m *mockLockRepo) Renew(ctx context.Context, id uuid.UUID, heartbeatAt, expiresAt time.Time) error {
	if m.renewFn != nil {
		return m.renewFn(ctx, id, heartbeatAt, expiresAt)
	}
	return nil
}

func (m *mockLockRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return true, nil
}

func (m *mockLockRepo) DeleteByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) (int64, error) {
	if m.deleteByResourceFn != nil {
		return m.deleteByResourceFn(ctx, resourceType, resourceID)
	}
	return 0, nil
}
