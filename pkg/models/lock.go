package models

import (
	"time"

	"github.com/google/uuid"
)

// Lockable resource types.
const (
	ResourceStdRelease = "STD_RELEASE"
)

// IsValidResourceType checks the lockable resource type tag.
func IsValidResourceType(rt string) bool {
	return rt == ResourceStdRelease
}

// EditLock is a time-boxed advisory claim giving one user exclusive editing
// rights over a resource. At most one live lock may exist per
// (resource_type, resource_id); expired locks are reaped lazily.
type EditLock struct {
	ID              uuid.UUID `json:"id"`
	ResourceType    string    `json:"resource_type"`
	ResourceID      uuid.UUID `json:"resource_id"`
	UserID          uuid.UUID `json:"user_id"`
	UserName        string    `json:"user_name,omitempty"`
	AcquiredAt      time.Time `json:"acquired_at"`
	LastHeartbeatAt time.Time `json:"last_heartbeat_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

// Expired reports whether the lock is past its expiry at the given instant.
func (l *EditLock) Expired(now time.Time) bool {
	return !l.ExpiresAt.After(now)
}

// RemainingSeconds returns the lock's remaining validity, clamped to >= 0.
func (l *EditLock) RemainingSeconds(now time.Time) int {
	rem := int(l.ExpiresAt.Sub(now).Seconds())
	if rem < 0 {
		return 0
	}
	return rem
}
