package models

import (
	"time"

	"github.com/google/uuid"
)

// Link associates a standard node with a work-master row, scoped to a
// release. Keyed by (release_id, node_uid, row_id); a composite foreign key
// ties (release_id, node_uid) to std_nodes so links cascade with nodes.
type Link struct {
	ReleaseID  uuid.UUID `json:"release_id"`
	NodeUID    string    `json:"node_uid"`
	RowID      uuid.UUID `json:"row_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// LinkKey identifies a link without its timestamp, used for staged rebase
// deletions and existing-pair checks.
type LinkKey struct {
	NodeUID string
	RowID   uuid.UUID
}

// RebaseResult summarizes one rebase run.
type RebaseResult struct {
	FromBatchID uuid.UUID `json:"from_batch_id"`
	ToBatchID   uuid.UUID `json:"to_batch_id"`
	Inserted    int       `json:"inserted"`
	Deleted     int       `json:"deleted"`
	Skipped     int       `json:"skipped"`
	DeleteOld   bool      `json:"delete_old"`
	DryRun      bool      `json:"dry_run"`
}
