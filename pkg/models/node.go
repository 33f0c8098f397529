package models

import (
	"github.com/google/uuid"
)

// Kind values partitioning a release's nodes into two disjoint taxonomies.
const (
	KindGWM = "GWM" // general work master
	KindSWM = "SWM" // specialty work master
)

// IsValidKind checks if the given kind is one of the two taxonomies.
func IsValidKind(kind string) bool {
	return kind == KindGWM || kind == KindSWM
}

// Node is one entry in a standard tree, uniquely identified within its
// release by NodeUID. Path is the full ancestry as a '/'-joined string of
// uids; Level always equals the number of separators in Path.
type Node struct {
	ID         uuid.UUID      `json:"-"`
	ReleaseID  uuid.UUID      `json:"release_id"`
	NodeUID    string         `json:"node_uid"`
	ParentUID  *string        `json:"parent_uid,omitempty"`
	Name       string         `json:"name"`
	Level      int            `json:"level"`
	OrderIndex int            `json:"order_index"`
	Path       string         `json:"path"`
	ParentPath *string        `json:"parent_path,omitempty"`
	Values     map[string]any `json:"values,omitempty"`
	Kind       string         `json:"kind"` // 'GWM' or 'SWM'
}

// TreeNode is a Node with its resolved children, returned by the tree view.
type TreeNode struct {
	Node
	Children []*TreeNode `json:"children"`
}
