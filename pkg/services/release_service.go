package services

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
)

// CloneReleaseRequest describes a release clone operation.
type CloneReleaseRequest struct {
	SourceID   uuid.UUID `json:"source_id"`
	NewVersion string    `json:"new_version"`
	CopyLinks  bool      `json:"copy_links"`
}

// ReleaseService manages the release catalog and its lifecycle.
type ReleaseService interface {
	List(ctx context.Context) ([]*models.Release, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Release, error)
	Create(ctx context.Context, version string) (*models.Release, error)
	Clone(ctx context.Context, req *CloneReleaseRequest) (*models.Release, error)
	// SetStatus transitions the release unconditionally between lifecycle
	// states.
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error)
}

type releaseService struct {
	releases repositories.ReleaseRepository
	logger   *zap.Logger
}

// NewReleaseService creates a new ReleaseService.
func NewReleaseService(releases repositories.ReleaseRepository, logger *zap.Logger) ReleaseService {
	return &releaseService{releases: releases, logger: logger}
}

var _ ReleaseService = (*releaseService)(nil)

func (s *releaseService) List(ctx context.Context) ([]*models.Release, error) {
	return s.releases.List(ctx)
}

func (s *releaseService) Get(ctx context.Context, id uuid.UUID) (*models.Release, error) {
	return s.releases.Get(ctx, id)
}

func (s *releaseService) Create(ctx context.Context, version string) (*models.Release, error) {
	version = strings.TrimSpace(version)
	if version == "" {
		return nil, apperrors.Validation("version must not be empty")
	}

	release := &models.Release{
		ID:      uuid.New(),
		Version: version,
		Status:  models.ReleaseStatusDraft,
	}

	if err := s.releases.Create(ctx, release); err != nil {
		return nil, err
	}

	s.logger.Info("Created release",
		zap.String("release_id", release.ID.String()),
		zap.String("version", release.Version))

	return release, nil
}

func (s *releaseService) Clone(ctx context.Context, req *CloneReleaseRequest) (*models.Release, error) {
	newVersion := strings.TrimSpace(req.NewVersion)
	if newVersion == "" {
		return nil, apperrors.Validation("new_version must not be empty")
	}

	if req.SourceID == uuid.Nil {
		return nil, apperrors.Validation("source_id is required")
	}
	source, err := s.releases.Get(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	clone := &models.Release{
		ID:      uuid.New(),
		Version: newVersion,
		Status:  models.ReleaseStatusDraft,
	}

	if err := s.releases.Clone(ctx, source.ID, clone, req.CopyLinks); err != nil {
		return nil, err
	}

	s.logger.Info("Cloned release",
		zap.String("source_id", source.ID.String()),
		zap.String("source_version", source.Version),
		zap.String("release_id", clone.ID.String()),
		zap.String("version", clone.Version),
		zap.Bool("copy_links", req.CopyLinks))

	return clone, nil
}

func (s *releaseService) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Release, error) {
	if !models.IsValidReleaseStatus(status) {
		return nil, apperrors.Validation("invalid status %q", status)
	}

	release, err := s.releases.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if release.Status == status {
		return release, nil
	}

	updated, err := s.releases.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Changed release status",
		zap.String("release_id", id.String()),
		zap.String("from", release.Status),
		zap.String("to", status))

	return updated, nil
}
