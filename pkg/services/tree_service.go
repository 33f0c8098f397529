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

// CreateNodeRequest carries a node creation payload.
type CreateNodeRequest struct {
	NodeUID    string         `json:"node_uid"`
	Name       string         `json:"name"`
	ParentUID  *string        `json:"parent_uid,omitempty"`
	OrderIndex int            `json:"order_index"`
	Values     map[string]any `json:"values,omitempty"`
	// Kind is only honored for roots; children always inherit the parent's.
	Kind string `json:"kind,omitempty"`
}

// UpdateNodeRequest carries a partial node update. Nil fields are left
// untouched; a present ParentUID triggers a reparent ("" makes the node a
// root).
type UpdateNodeRequest struct {
	Name       *string        `json:"name,omitempty"`
	ParentUID  *string        `json:"parent_uid,omitempty"`
	OrderIndex *int           `json:"order_index,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
}

// TreeService orchestrates all structural mutations of a release's standard
// tree. Every level/path derivation goes through computePath; nothing else
// computes paths.
type TreeService interface {
	CreateNode(ctx context.Context, releaseID uuid.UUID, req *CreateNodeRequest, kindHint string) (*models.Node, error)
	UpdateNode(ctx context.Context, releaseID uuid.UUID, nodeUID string, req *UpdateNodeRequest) (*models.Node, error)
	// DeleteNode removes the node and its whole subtree, returning the
	// number of nodes removed.
	DeleteNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) (int64, error)
	GetTree(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error)
}

type treeService struct {
	releases repositories.ReleaseRepository
	nodes    repositories.NodeRepository
	logger   *zap.Logger
}

// NewTreeService creates a new TreeService.
func NewTreeService(releases repositories.ReleaseRepository, nodes repositories.NodeRepository, logger *zap.Logger) TreeService {
	return &treeService{releases: releases, nodes: nodes, logger: logger}
}

var _ TreeService = (*treeService)(nil)

// computePath derives (level, path, parent_path) for a node below the given
// parent. Roots get (0, uid, nil). Returns the parent node when one was
// resolved so callers can inherit its kind without a second lookup.
func (s *treeService) computePath(ctx context.Context, releaseID uuid.UUID, parentUID *string, selfUID string) (int, string, *string, *models.Node, error) {
	if err := validateNodeUID(selfUID); err != nil {
		return 0, "", nil, nil, err
	}

	if parentUID == nil || *parentUID == "" {
		return 0, selfUID, nil, nil, nil
	}

	if *parentUID == selfUID {
		return 0, "", nil, nil, apperrors.Validation("parent_uid cannot be self")
	}

	parent, err := s.nodes.GetByUID(ctx, releaseID, *parentUID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNodeNotFound) {
			return 0, "", nil, nil, apperrors.ErrParentNotFound
		}
		return 0, "", nil, nil, err
	}

	return parent.Level + 1, childPath(parent.Path, selfUID), &parent.Path, parent, nil
}

func (s *treeService) editableRelease(ctx context.Context, releaseID uuid.UUID) (*models.Release, error) {
	release, err := s.releases.Get(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	if !release.IsDraft() {
		return nil, &apperrors.ReleaseNotEditableError{Version: release.Version, Status: release.Status}
	}
	return release, nil
}

// inferKindFromVersion guesses the taxonomy from the release version prefix
// ("SWM-2025.08" -> SWM), defaulting to GWM.
func inferKindFromVersion(version string) string {
	if strings.HasPrefix(strings.ToUpper(version), models.KindSWM) {
		return models.KindSWM
	}
	return models.KindGWM
}

func (s *treeService) CreateNode(ctx context.Context, releaseID uuid.UUID, req *CreateNodeRequest, kindHint string) (*models.Node, error) {
	release, err := s.editableRelease(ctx, releaseID)
	if err != nil {
		return nil, err
	}

	if req.Name == "" {
		return nil, apperrors.Validation("name must not be empty")
	}
	if req.Kind != "" && !models.IsValidKind(req.Kind) {
		return nil, apperrors.Validation("invalid kind %q", req.Kind)
	}
	if kindHint != "" && !models.IsValidKind(kindHint) {
		return nil, apperrors.Validation("invalid kind %q", kindHint)
	}

	level, path, parentPath, parent, err := s.computePath(ctx, releaseID, req.ParentUID, req.NodeUID)
	if err != nil {
		return nil, err
	}

	// Children inherit the parent's kind; explicit values only matter for
	// roots, falling back to the query hint and then the version prefix.
	var kind string
	switch {
	case parent != nil:
		kind = parent.Kind
	case req.Kind != "":
		kind = req.Kind
	case kindHint != "":
		kind = kindHint
	default:
		kind = inferKindFromVersion(release.Version)
	}

	node := &models.Node{
		ReleaseID:  releaseID,
		NodeUID:    req.NodeUID,
		ParentUID:  normalizeParentUID(req.ParentUID),
		Name:       req.Name,
		Level:      level,
		OrderIndex: req.OrderIndex,
		Path:       path,
		ParentPath: parentPath,
		Values:     req.Values,
		Kind:       kind,
	}

	if err := s.nodes.Create(ctx, node); err != nil {
		return nil, err
	}

	s.logger.Info("Created node",
		zap.String("release_id", releaseID.String()),
		zap.String("node_uid", node.NodeUID),
		zap.String("path", node.Path))

	return node, nil
}

func (s *treeService) UpdateNode(ctx context.Context, releaseID uuid.UUID, nodeUID string, req *UpdateNodeRequest) (*models.Node, error) {
	if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return nil, err
	}

	node, err := s.nodes.GetByUID(ctx, releaseID, nodeUID)
	if err != nil {
		return nil, err
	}

	fieldsChanged := false
	if req.Name != nil {
		if *req.Name == "" {
			return nil, apperrors.Validation("name must not be empty")
		}
		node.Name = *req.Name
		fieldsChanged = true
	}
	if req.OrderIndex != nil {
		node.OrderIndex = *req.OrderIndex
		fieldsChanged = true
	}
	if req.Values != nil {
		node.Values = req.Values
		fieldsChanged = true
	}

	if fieldsChanged {
		if err := s.nodes.UpdateFields(ctx, node); err != nil {
			return nil, err
		}
	}

	if req.ParentUID != nil && *req.ParentUID != currentParentUID(node) {
		if err := s.reparent(ctx, releaseID, node, *req.ParentUID); err != nil {
			return nil, err
		}
	}

	return s.nodes.GetByUID(ctx, releaseID, nodeUID)
}

// reparent moves node under newParentUID ("" makes it a root) and rewrites
// the level/path/parent_path of the node and every descendant in one
// transaction.
func (s *treeService) reparent(ctx context.Context, releaseID uuid.UUID, node *models.Node, newParentUID string) error {
	var parentPtr *string
	if newParentUID != "" {
		parent, err := s.nodes.GetByUID(ctx, releaseID, newParentUID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNodeNotFound) {
				return apperrors.ErrParentNotFound
			}
			return err
		}
		if parent.Kind != node.Kind {
			return apperrors.Validation("cannot move node across taxonomies (%s -> %s)", node.Kind, parent.Kind)
		}
		if isSelfOrDescendantPath(node.Path, parent.Path) {
			return apperrors.Validation("cannot reparent %s under its own subtree", node.NodeUID)
		}
		parentPtr = &newParentUID
	}

	oldPath := node.Path
	oldLevel := node.Level

	newLevel, newPath, newParentPath, _, err := s.computePath(ctx, releaseID, parentPtr, node.NodeUID)
	if err != nil {
		return err
	}

	descendants, err := s.nodes.ListDescendants(ctx, releaseID, oldPath)
	if err != nil {
		return err
	}

	levelDelta := newLevel - oldLevel
	updates := make([]repositories.NodePathUpdate, 0, len(descendants)+1)
	updates = append(updates, repositories.NodePathUpdate{
		NodeUID:    node.NodeUID,
		ParentUID:  parentPtr,
		Level:      newLevel,
		Path:       newPath,
		ParentPath: newParentPath,
	})

	for _, d := range descendants {
		dPath := rebasePath(oldPath, newPath, d.Path)
		updates = append(updates, repositories.NodePathUpdate{
			NodeUID:    d.NodeUID,
			ParentUID:  d.ParentUID,
			Level:      d.Level + levelDelta,
			Path:       dPath,
			ParentPath: splitParentPath(dPath),
		})
	}

	if err := s.nodes.ApplyReparent(ctx, releaseID, updates); err != nil {
		return fmt.Errorf("failed to apply reparent of %s: %w", node.NodeUID, err)
	}

	s.logger.Info("Reparented node",
		zap.String("release_id", releaseID.String()),
		zap.String("node_uid", node.NodeUID),
		zap.String("old_path", oldPath),
		zap.String("new_path", newPath),
		zap.Int("descendants", len(descendants)))

	return nil
}

func (s *treeService) DeleteNode(ctx context.Context, releaseID uuid.UUID, nodeUID string) (int64, error) {
	if _, err := s.editableRelease(ctx, releaseID); err != nil {
		return 0, err
	}

	node, err := s.nodes.GetByUID(ctx, releaseID, nodeUID)
	if err != nil {
		return 0, err
	}

	removed, err := s.nodes.DeleteSubtree(ctx, releaseID, node.Path)
	if err != nil {
		return 0, err
	}

	s.logger.Info("Deleted subtree",
		zap.String("release_id", releaseID.String()),
		zap.String("path", node.Path),
		zap.Int64("removed", removed))

	return removed, nil
}

func (s *treeService) GetTree(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.TreeNode, error) {
	if !models.IsValidKind(kind) {
		return nil, apperrors.Validation("invalid kind %q", kind)
	}

	if _, err := s.releases.Get(ctx, releaseID); err != nil {
		return nil, err
	}

	nodes, err := s.nodes.ListByRelease(ctx, releaseID, kind)
	if err != nil {
		return nil, err
	}

	return buildForest(nodes), nil
}

// buildForest reconstructs the nested tree from a flat, (level, order_index,
// uid)-sorted node list. Two passes: index every node, then attach children.
// Nodes whose declared parent is absent from the set are promoted to roots.
func buildForest(nodes []*models.Node) []*models.TreeNode {
	byUID := make(map[string]*models.TreeNode, len(nodes))
	for _, n := range nodes {
		byUID[n.NodeUID] = &models.TreeNode{Node: *n, Children: []*models.TreeNode{}}
	}

	roots := []*models.TreeNode{}
	for _, n := range nodes {
		tn := byUID[n.NodeUID]
		if n.ParentUID != nil && *n.ParentUID != "" {
			if parent, ok := byUID[*n.ParentUID]; ok {
				parent.Children = append(parent.Children, tn)
				continue
			}
		}
		roots = append(roots, tn)
	}

	return roots
}

// normalizeParentUID maps an empty parent uid to nil (root).
func normalizeParentUID(uid *string) *string {
	if uid == nil || *uid == "" {
		return nil
	}
	return uid
}

// currentParentUID returns the node's parent uid, "" for roots.
func currentParentUID(node *models.Node) string {
	if node.ParentUID == nil {
		return ""
	}
	return *node.ParentUID
}
