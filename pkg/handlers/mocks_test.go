package handlers

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// Hand-rolled service mocks. Tests set only the function fields the route
// under test calls.

type mockLockService struct {
	acquireFn      func(ctx context.Context, resourceType string, resourceID, userID uuid.UUID, userName string, ttl time.Duration) (*models.EditLock, error)
	heartbeatFn    func(ctx context.Context, lockID, userID uuid.UUID, ttl time.Duration) (*models.EditLock, error)
	releaseFn      func(ctx context.Context, lockID, userID uuid.UUID) (bool, error)
	forceReleaseFn func(ctx context.Context, resourceType string, resourceID uuid.UUID) error
	getFn          func(ctx context.Context, resourceType string, resourceID uuid.UUID) (*models.EditLock, error)
	ensureHeldByFn func(ctx context.Context, resourceType string, resourceID, userID uuid.UUID) error
}

var _ services.LockService = (*mockLockService)(nil)

func (m *mockLockService) Acquire(ctx context.Context, resourceType string, resourceID, userID uuid.UUID, userName string, ttl time.Duration) (*models.EditLock, error) {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, resourceType, resourceID, userID, userName, ttl)
	}
	return &models.EditLock{ID: uuid.New(), ResourceType: resourceType, ResourceID: resourceID, UserID: userID}, nil
}

func (m *mockLockService) Heartbeat(ctx context.Context, lockID, userID uuid.UUID, ttl time.Duration) (*models.EditLock, error) {
	if m.heartbeatFn != nil {
		return m.heartbeatFn(ctx, lockID, userID, ttl)
	}
	return &models.EditLock{ID: lockID, UserID: userID}, nil
}

func (m *mockLockService) Release(ctx context.Context, lockID, userID uuid.UUID) (bool, error) {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, lockID, userID)
	}
	return true, nil
}

func (m *mockLockService) ForceRelease(ctx context.Context, resourceType string, resourceID uuid.UUID) error {
	if m.forceReleaseFn != nil {
		return m.forceReleaseFn(ctx, resourceType, resourceID)
	}
	return nil
}

func (m *mockLockService) Get(ctx context.Context, resourceType string, resourceID uuid.UUID) (*models.EditLock, error) {
	if m.getFn != nil {
		return m.getFn(ctx, resourceType, resourceID)
	}
	return nil, nil
}

func (m *mockLockService) EnsureHeldBy(ctx context.Context, resourceType string, resourceID, userID uuid.UUID) error {
	if m.ensureHeldByFn != nil {
		return m.ensureHeldByFn(ctx, resourceType, resourceID, userID)
	}
	return nil
}

type mockTreeService struct {
	createNodeFn func(ctx context.Context, releaseID uuid.UUID, req *services.CreateNodeRequest, kindHint string) (*models.Node, error)
	updateNodeFn func(ctx context.Context, releaseID uuid.UUID, nodeUID string, req *services.UpdateNodeRequest) (*models.Node, error)
	deleteNodeFn func(ctx context.Context, releaseID uuid.UUID, nodeUID string) (int64, error)
	getTreeFn    func(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error)
}

var _ services.TreeService = (*mockTreeService)(nil)

func (m *mockTreeService) CreateNode(ctx context.Context, releaseID uuid.UUID, req *services.CreateNodeRequest, kindHint string) (*models.Node, error) {
	if m.createNodeFn != nil {
		return m.createNodeFn(ctx, releaseID, req, kindHint)
	}
	return &models.Node{ReleaseID: releaseID, NodeUID: req.NodeUID, Name: req.Name, Path: req.NodeUID}, nil
}

func (m *mockTreeService) UpdateNode(ctx context.Context, releaseID uuid.UUID, nodeUID string, req *services.UpdateNodeRequest) (*models.Node, error) {
	if m.updateNodeFn != nil {
		return m.updateNodeFn(ctx, releaseID, nodeUID, req)
	}
	return &models.Node{ReleaseID: releaseID, NodeUID: nodeUID}, nil
}

func (m *mockTreeService) DeleteNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) (int64, error) {
	if m.deleteNodeFn != nil {
		return m.deleteNodeFn(ctx, releaseID, nodeUID)
	}
	return 1, nil
}

func (m *mockTreeService) GetTree(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error) {
	if m.getTreeFn != nil {
		return m.getTreeFn(ctx, releaseID, kind)
	}
	return []*models.TreeNode{}, nil
}

type mockReleaseService struct {
	listFn      func(ctx context.Context) ([]*models.Release, error)
	getFn       func(ctx context.Context, id uuid.UUID) (*models.Release, error)
	createFn    func(ctx context.Context, version string) (*models.Release, error)
	cloneFn     func(ctx context.Context, req *services.CloneReleaseRequest) (*models.Release, error)
	setStatusFn func(ctx context.Context, id uuid.UUID, status string) (*models.Release, error)
}

var _ services.ReleaseService = (*mockReleaseService)(nil)

func (m *mockReleaseService) List(ctx context.Context) ([]*models.Release, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockReleaseService) Get(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, apperrors.ErrReleaseNotFound
}

func (m *mockReleaseService) Create(ctx context.Context, version string) (*models.Release, error) {
	if m.createFn != nil {
		return m.createFn(ctx, version)
	}
	return &models.Release{ID: uuid.New(), Version: version, Status: models.ReleaseStatusDraft}, nil
}

func (m *mockReleaseService) Clone(ctx context.Context, req *services.CloneReleaseRequest) (*models.Release, error) {
	if m.cloneFn != nil {
		return m.cloneFn(ctx, req)
	}
	return &models.Release{ID: uuid.New(), Version: req.NewVersion, Status: models.ReleaseStatusDraft}, nil
}

func (m *mockReleaseService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error) {
	if m.setStatusFn != nil {
		return m.setStatusFn(ctx, id, status)
	}
	return &models.Release{ID: id, Status: status}, nil
}

type mockBatchService struct {
	ingestFn        func(ctx context.Context, req *services.IngestRequest, uploader string) (*models.Batch, error)
	getFn           func(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
	listFn          func(ctx context.Context) ([]*models.BatchSummary, error)
	previewRowsFn   func(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error)
	listErrorRowsFn func(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error)
	validateFn      func(ctx context.Context, batchID uuid.UUID, opts services.ValidateOptions) (*models.BatchSummary, error)
	listItemsFn     func(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error)
	setCurrentFn    func(ctx context.Context, batchID uuid.UUID) (*models.Batch, error)
	getCurrentFn    func(ctx context.Context, source string) (*models.Batch, error)
}

var _ services.BatchService = (*mockBatchService)(nil)

func (m *mockBatchService) Ingest(ctx context.Context, req *services.IngestRequest, uploader string) (*models.Batch, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, req, uploader)
	}
	return &models.Batch{ID: uuid.New(), Source: req.Source, Uploader: uploader, Status: models.BatchStatusReceived}, nil
}

func (m *mockBatchService) Get(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	if m.getFn != nil {
		return m.getFn(ctx, batchID)
	}
	return nil, apperrors.ErrBatchNotFound
}

func (m *mockBatchService) List(ctx context.Context) ([]*models.BatchSummary, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockBatchService) PreviewRows(ctx context.Context, batchID uuid.UUID, limit, offset int) ([]*models.Row, error) {
	if m.previewRowsFn != nil {
		return m.previewRowsFn(ctx, batchID, limit, offset)
	}
	return nil, nil
}

func (m *mockBatchService) ListErrorRows(ctx context.Context, batchID uuid.UUID) ([]*models.Row, error) {
	if m.listErrorRowsFn != nil {
		return m.listErrorRowsFn(ctx, batchID)
	}
	return nil, nil
}

func (m *mockBatchService) Validate(ctx context.Context, batchID uuid.UUID, opts services.ValidateOptions) (*models.BatchSummary, error) {
	if m.validateFn != nil {
		return m.validateFn(ctx, batchID, opts)
	}
	return &models.BatchSummary{}, nil
}

func (m *mockBatchService) ListItems(ctx context.Context, filter repositories.ItemFilter) ([]*models.Item, error) {
	if m.listItemsFn != nil {
		return m.listItemsFn(ctx, filter)
	}
	return nil, nil
}

func (m *mockBatchService) SetCurrent(ctx context.Context, batchID uuid.UUID) (*models.Batch, error) {
	if m.setCurrentFn != nil {
		return m.setCurrentFn(ctx, batchID)
	}
	return &models.Batch{ID: batchID}, nil
}

func (m *mockBatchService) GetCurrent(ctx context.Context, source string) (*models.Batch, error) {
	if m.getCurrentFn != nil {
		return m.getCurrentFn(ctx, source)
	}
	return nil, apperrors.ErrNoCurrentBatch
}

type mockSpreadsheetService struct {
	parseFn func(r io.Reader, source, sheet string) ([]map[string]any, error)
}

var _ services.SpreadsheetService = (*mockSpreadsheetService)(nil)

func (m *mockSpreadsheetService) Parse(r io.Reader, source, sheet string) ([]map[string]any, error) {
	if m.parseFn != nil {
		return m.parseFn(r, source, sheet)
	}
	return nil, nil
}
