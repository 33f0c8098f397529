package services

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
)

func TestCreateRelease(t *testing.T) {
	var created *models.Release
	releases := &mockReleaseRepo{
		createFn: func(ctx context.Context, release *models.Release) error {
			created = release
			return nil
		},
	}
	svc := NewReleaseService(releases, zap.NewNop())

	release, err := svc.Create(context.Background(), "  2025.08  ")
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, "2025.08", release.Version)
	assert.Equal(t, models.ReleaseStatusDraft, release.Status)
	assert.NotEqual(t, uuid.Nil, release.ID)
}

func TestCreateRelease_EmptyVersion(t *testing.T) {
	svc := NewReleaseService(&mockReleaseRepo{}, zap.NewNop())

	_, err := svc.Create(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCreateRelease_DuplicateVersion(t *testing.T) {
	releases := &mockReleaseRepo{
		createFn: func(ctx context.Context, release *models.Release) error {
			return apperrors.ErrDuplicateVersion
		},
	}
	svc := NewReleaseService(releases, zap.NewNop())

	_, err := svc.Create(context.Background(), "2025.08")
	assert.ErrorIs(t, err, apperrors.ErrConflict)
}

func TestCloneRelease_ByID(t *testing.T) {
	sourceID := uuid.New()
	var clonedFrom uuid.UUID
	var clone *models.Release
	var copiedLinks bool
	releases := &mockReleaseRepo{
		getFn: func(ctx context.Context, id uuid.UUID) (*models.Release, error) {
			assert.Equal(t, sourceID, id)
			return &models.Release{ID: sourceID, Version: "2025.08", Status: models.ReleaseStatusActive}, nil
		},
		cloneFn: func(ctx context.Context, baseID uuid.UUID, release *models.Release, copyLinks bool) error {
			clonedFrom = baseID
			clone = release
			copiedLinks = copyLinks
			return nil
		},
	}
	svc := NewReleaseService(releases, zap.NewNop())

	release, err := svc.Clone(context.Background(), &CloneReleaseRequest{
		SourceID:   sourceID,
		NewVersion: "2025.09",
		CopyLinks:  true,
	})
	require.NoError(t, err)
	require.NotNil(t, clone)

	assert.Equal(t, sourceID, clonedFrom)
	assert.True(t, copiedLinks)
	assert.Equal(t, "2025.09", release.Version)
	// Clones always start as drafts regardless of the source status.
	assert.Equal(t, models.ReleaseStatusDraft, release.Status)
}

func TestCloneRelease_NoSource(t *testing.T) {
	svc := NewReleaseService(&mockReleaseRepo{}, zap.NewNop())

	_, err := svc.Clone(context.Background(), &CloneReleaseRequest{NewVersion: "2025.09"})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestCloneRelease_SourceMissing(t *testing.T) {
	svc := NewReleaseService(&mockReleaseRepo{}, zap.NewNop())

	_, err := svc.Clone(context.Background(), &CloneReleaseRequest{
		SourceID:   uuid.New(),
		NewVersion: "2025.09",
	})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	id := uuid.New()
	releases := &mockReleaseRepo{
		getFn: func(ctx context.Context, rid uuid.UUID) (*models.Release, error) {
			return &models.Release{ID: id, Version: "2025.08", Status: models.ReleaseStatusDraft}, nil
		},
		updateStatusFn: func(ctx context.Context, rid uuid.UUID, status string) (*models.Release, error) {
			return &models.Release{ID: id, Version: "2025.08", Status: status}, nil
		},
	}
	svc := NewReleaseService(releases, zap.NewNop())

	release, err := svc.SetStatus(context.Background(), id, models.ReleaseStatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.ReleaseStatusActive, release.Status)
}

func TestSetStatus_NoChange(t *testing.T) {
	id := uuid.New()
	releases := &mockReleaseRepo{
		getFn: func(ctx context.Context, rid uuid.UUID) (*models.Release, error) {
			return &models.Release{ID: id, Status: models.ReleaseStatusActive}, nil
		},
		updateStatusFn: func(ctx context.Context, rid uuid.UUID, status string) (*models.Release, error) {
			t.Fatal("no update expected when the status is unchanged")
			return nil, nil
		},
	}
	svc := NewReleaseService(releases, zap.NewNop())

	_, err := svc.SetStatus(context.Background(), id, models.ReleaseStatusActive)
	assert.NoError(t, err)
}

func TestSetStatus_Invalid(t *testing.T) {
	svc := NewReleaseService(&mockReleaseRepo{}, zap.NewNop())

	_, err := svc.SetStatus(context.Background(), uuid.New(), "SHIPPED")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}
