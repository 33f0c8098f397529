package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/database"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
)

// NodePathUpdate carries the recomputed position of one node during a
// reparent cascade.
type NodePathUpdate struct {
	NodeUID    string
	ParentUID  *string
	Level      int
	Path       string
	ParentPath *string
}

// NodeRepository provides data access for standard tree nodes.
type NodeRepository interface {
	Create(ctx context.Context, node *models.Node) error
	GetByUID(ctx context.Context, releaseID uuid.UUID, nodeUID string) (*models.Node, error)
	// ListByRelease returns the release's nodes for one taxonomy, ordered by
	// (level, order_index, node_uid) for tree reconstruction.
	ListByRelease(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.Node, error)
	// ListDescendants returns nodes whose path is strictly below the given
	// path. The path prefix is matched literally, LIKE metacharacters in uids
	// included.
	ListDescendants(ctx context.Context, releaseID uuid.UUID, path string) ([]*models.Node, error)
	// UpdateFields persists name/order_index/vals changes for one node.
	UpdateFields(ctx context.Context, node *models.Node) error
	// ApplyReparent writes the moved node's and all its descendants'
	// recomputed positions in one transaction.
	ApplyReparent(ctx context.Context, releaseID uuid.UUID, updates []NodePathUpdate) error
	// DeleteSubtree removes the node at path and every node below it in one
	// bulk statement, returning the number of nodes removed.
	DeleteSubtree(ctx context.Context, releaseID uuid.UUID, path string) (int64, error)
}

type nodeRepository struct {
	db *database.DB
}

// NewNodeRepository creates a new NodeRepository.
func NewNodeRepository(db *database.DB) NodeRepository {
	return &nodeRepository{db: db}
}

var _ NodeRepository = (*nodeRepository)(nil)

const nodeColumns = `id, release_id, node_uid, parent_uid, name, level, order_index, path, parent_path, vals, kind`

func (r *nodeRepository) Create(ctx context.Context, node *models.Node) error {
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}

	vals, err := jsonbValue(node.Values)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO std_nodes (` + nodeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, query,
		node.ID,
		node.ReleaseID,
		node.NodeUID,
		node.ParentUID,
		node.Name,
		node.Level,
		node.OrderIndex,
		node.Path,
		node.ParentPath,
		vals,
		node.Kind,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_std_nodes_release_uid") {
			return apperrors.ErrDuplicateNode
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

func (r *nodeRepository) GetByUID(ctx context.Context, releaseID uuid.UUID, nodeUID string) (*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM std_nodes
		WHERE release_id = $1 AND node_uid = $2`

	node, err := scanNode(r.db.QueryRow(ctx, query, releaseID, nodeUID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNodeNotFound
		}
		return nil, err
	}
	return node, nil
}

func (r *nodeRepository) ListByRelease(ctx context.Context, releaseID uuid.UUID, kind string) ([]*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM std_nodes
		WHERE release_id = $1 AND kind = $2
		ORDER BY level, order_index, node_uid`

	rows, err := r.db.Query(ctx, query, releaseID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

func (r *nodeRepository) ListDescendants(ctx context.Context, releaseID uuid.UUID, path string) ([]*models.Node, error) {
	query := `
		SELECT ` + nodeColumns + `
		FROM std_nodes
		WHERE release_id = $1 AND path LIKE $2
		ORDER BY level, order_index, node_uid`

	rows, err := r.db.Query(ctx, query, releaseID, escapeLike(path)+"/%")
	if err != nil {
		return nil, fmt.Errorf("failed to query descendants: %w", err)
	}
	defer rows.Close()

	return collectNodes(rows)
}

func (r *nodeRepository) UpdateFields(ctx context.Context, node *models.Node) error {
	vals, err := jsonbValue(node.Values)
	if err != nil {
		return err
	}

	query := `
		UPDATE std_nodes
		SET name = $3, order_index = $4, vals = $5
		WHERE release_id = $1 AND node_uid = $2`

	result, err := r.db.Exec(ctx, query, node.ReleaseID, node.NodeUID, node.Name, node.OrderIndex, vals)
	if err != nil {
		return fmt.Errorf("failed to update node: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrNodeNotFound
	}

	return nil
}

func (r *nodeRepository) ApplyReparent(ctx context.Context, releaseID uuid.UUID, updates []NodePathUpdate) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	query := `
		UPDATE std_nodes
		SET parent_uid = $3, level = $4, path = $5, parent_path = $6
		WHERE release_id = $1 AND node_uid = $2`

	for _, u := range updates {
		result, err := tx.Exec(ctx, query, releaseID, u.NodeUID, u.ParentUID, u.Level, u.Path, u.ParentPath)
		if err != nil {
			return fmt.Errorf("failed to update node %s: %w", u.NodeUID, err)
		}
		if result.RowsAffected() == 0 {
			return fmt.Errorf("node %s vanished during reparent", u.NodeUID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (r *nodeRepository) DeleteSubtree(ctx context.Context, releaseID uuid.UUID, path string) (int64, error) {
	query := `
		DELETE FROM std_nodes
		WHERE release_id = $1 AND (path = $2 OR path LIKE $3)`

	result, err := r.db.Exec(ctx, query, releaseID, path, escapeLike(path)+"/%")
	if err != nil {
		return 0, fmt.Errorf("failed to delete subtree: %w", err)
	}

	return result.RowsAffected(), nil
}

func scanNode(row pgx.Row) (*models.Node, error) {
	var n models.Node
	var vals []byte

	err := row.Scan(
		&n.ID,
		&n.ReleaseID,
		&n.NodeUID,
		&n.ParentUID,
		&n.Name,
		&n.Level,
		&n.OrderIndex,
		&n.Path,
		&n.ParentPath,
		&vals,
		&n.Kind,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan node: %w", err)
	}

	n.Values, err = unmarshalMap(vals)
	if err != nil {
		return nil, err
	}

	return &n, nil
}

func collectNodes(rows pgx.Rows) ([]*models.Node, error) {
	var nodes []*models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}
