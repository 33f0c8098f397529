package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

func TestListReleases(t *testing.T) {
	releases := &mockReleaseService{
		listFn: func(ctx context.Context) ([]*models.Release, error) {
			return []*models.Release{
				{ID: uuid.New(), Version: "2025.08", Status: models.ReleaseStatusActive},
				{ID: uuid.New(), Version: "2025.09", Status: models.ReleaseStatusDraft},
			}, nil
		},
	}
	h := NewReleasesHandler(releases, &mockTreeService{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.List(w, httptest.NewRequest("GET", "/api/std/releases", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)
	assert.Contains(t, w.Body.String(), "2025.09")
}

func TestCreateRelease(t *testing.T) {
	h := NewReleasesHandler(&mockReleaseService{}, &mockTreeService{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.Create(w, jsonRequest("POST", "/api/std/releases", CreateReleaseRequest{Version: "2025.10"}, nil))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "2025.10")
	assert.Contains(t, w.Body.String(), models.ReleaseStatusDraft)
}

func TestCreateRelease_Duplicate(t *testing.T) {
	releases := &mockReleaseService{
		createFn: func(ctx context.Context, version string) (*models.Release, error) {
			return nil, apperrors.ErrDuplicateVersion
		},
	}
	h := NewReleasesHandler(releases, &mockTreeService{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.Create(w, jsonRequest("POST", "/api/std/releases", CreateReleaseRequest{Version: "2025.08"}, nil))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCloneRelease(t *testing.T) {
	sourceID := uuid.New()
	releases := &mockReleaseService{
		cloneFn: func(ctx context.Context, req *services.CloneReleaseRequest) (*models.Release, error) {
			assert.Equal(t, sourceID, req.SourceID)
			assert.True(t, req.CopyLinks)
			return &models.Release{ID: uuid.New(), Version: req.NewVersion, Status: models.ReleaseStatusDraft}, nil
		},
	}
	h := NewReleasesHandler(releases, &mockTreeService{}, zap.NewNop())

	r := jsonRequest("POST", "/api/std/releases/"+sourceID.String()+"/clone",
		CloneReleaseRequest{NewVersion: "2025.09", CopyLinks: true}, nil)
	r.SetPathValue("rid", sourceID.String())

	w := httptest.NewRecorder()
	h.Clone(w, r)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "2025.09")
}

func TestSetReleaseStatus(t *testing.T) {
	id := uuid.New()
	h := NewReleasesHandler(&mockReleaseService{}, &mockTreeService{}, zap.NewNop())

	r := jsonRequest("PATCH", "/api/std/releases/"+id.String()+"/status",
		SetStatusRequest{Status: models.ReleaseStatusActive}, nil)
	r.SetPathValue("rid", id.String())

	w := httptest.NewRecorder()
	h.SetStatus(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), models.ReleaseStatusActive)
}

func TestGetTree_DefaultsToGWM(t *testing.T) {
	id := uuid.New()
	var requestedKind string
	trees := &mockTreeService{
		getTreeFn: func(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error) {
			requestedKind = kind
			return []*models.TreeNode{}, nil
		},
	}
	h := NewReleasesHandler(&mockReleaseService{}, trees, zap.NewNop())

	r := httptest.NewRequest("GET", "/api/std/releases/"+id.String()+"/tree", nil)
	r.SetPathValue("rid", id.String())

	w := httptest.NewRecorder()
	h.GetTree(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindGWM, requestedKind)
}

func TestGetTree_KindParam(t *testing.T) {
	id := uuid.New()
	var requestedKind string
	trees := &mockTreeService{
		getTreeFn: func(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error) {
			requestedKind = kind
			return []*models.TreeNode{}, nil
		},
	}
	h := NewReleasesHandler(&mockReleaseService{}, trees, zap.NewNop())

	r := httptest.NewRequest("GET", "/api/std/releases/"+id.String()+"/tree?kind=SWM", nil)
	r.SetPathValue("rid", id.String())

	w := httptest.NewRecorder()
	h.GetTree(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.KindSWM, requestedKind)
}

func TestGetRelease_NotFound(t *testing.T) {
	h := NewReleasesHandler(&mockReleaseService{}, &mockTreeService{}, zap.NewNop())

	id := uuid.New()
	r := httptest.NewRequest("GET", "/api/std/releases/"+id.String(), nil)
	r.SetPathValue("rid", id.String())

	w := httptest.NewRecorder()
	h.Get(w, r)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
