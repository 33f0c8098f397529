package models

import (
	"time"

	"github.com/google/uuid"
)

// Release lifecycle status values.
const (
	ReleaseStatusDraft    = "DRAFT"
	ReleaseStatusActive   = "ACTIVE"
	ReleaseStatusArchived = "ARCHIVED"
)

// ValidReleaseStatuses contains all valid release status values.
var ValidReleaseStatuses = []string{ReleaseStatusDraft, ReleaseStatusActive, ReleaseStatusArchived}

// IsValidReleaseStatus checks if the given status is valid.
func IsValidReleaseStatus(status string) bool {
	for _, s := range ValidReleaseStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Release is a versioned, independently editable snapshot of a standard tree.
// Stored in std_releases table. Nodes cascade-delete with their release.
type Release struct {
	ID        uuid.UUID `json:"id"`
	Version   string    `json:"version"`
	Status    string    `json:"status"` // 'DRAFT', 'ACTIVE', 'ARCHIVED'
	CreatedAt time.Time `json:"created_at"`
}

// IsDraft reports whether the release is editable.
func (r *Release) IsDraft() bool {
	return r.Status == ReleaseStatusDraft
}
