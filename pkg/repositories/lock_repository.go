package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/database"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
)

// LockRepository provides data access for edit locks.
//
// Mutual exclusion relies on the unique index over
// (resource_type, resource_id): expired locks are reaped before insert
// attempts, and a unique violation on insert means another request won the
// race (surfaced as ErrConflict for the service to resolve).
type LockRepository interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	// GetLive returns the unexpired lock on the resource joined with the
	// holder's display name, or nil when the resource is unlocked.
	GetLive(ctx context.Context, resourceType string, resourceID uuid.UUID, now time.Time) (*models.EditLock, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EditLock, error)
	Insert(ctx context.Context, lock *models.EditLock) error
	// Renew extends the lock's expiry and records the heartbeat.
	Renew(ctx context.Context, id uuid.UUID, heartbeatAt, expiresAt time.Time) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) (int64, error)
}

type lockRepository struct {
	db *database.DB
}

// NewLockRepository creates a new LockRepository.
func NewLockRepository(db *database.DB) LockRepository {
	return &lockRepository{db: db}
}

var _ LockRepository = (*lockRepository)(nil)

const lockColumns = `l.id, l.resource_type, l.resource_id, l.user_id, COALESCE(u.name, ''),
		       l.acquired_at, l.last_heartbeat_at, l.expires_at`

func (r *lockRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM edit_locks WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to reap expired locks: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *lockRepository) GetLive(ctx context.Context, resourceType string, resourceID uuid.UUID, now time.Time) (*models.EditLock, error) {
	query := `
		SELECT ` + lockColumns + `
		FROM edit_locks l
		LEFT JOIN users u ON u.id = l.user_id
		WHERE l.resource_type = $1 AND l.resource_id = $2 AND l.expires_at > $3`

	lock, err := scanLock(r.db.QueryRow(ctx, query, resourceType, resourceID, now))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return lock, nil
}

func (r *lockRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.EditLock, error) {
	query := `
		SELECT ` + lockColumns + `
		FROM edit_locks l
		LEFT JOIN users u ON u.id = l.user_id
		WHERE l.id = $1`

	lock, err := scanLock(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrLockNotFound
		}
		return nil, err
	}
	return lock, nil
}

func (r *lockRepository) Insert(ctx context.Context, lock *models.EditLock) error {
	if lock.ID == uuid.Nil {
		lock.ID = uuid.New()
	}

	query := `
		INSERT INTO edit_locks (id, resource_type, resource_id, user_id, acquired_at, last_heartbeat_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		lock.ID, lock.ResourceType, lock.ResourceID, lock.UserID,
		lock.AcquiredAt, lock.LastHeartbeatAt, lock.ExpiresAt)
	if err != nil {
		if isUniqueViolation(err, "uq_edit_locks_resource") {
			return apperrors.ErrConflict
		}
		return fmt.Errorf("failed to insert lock: %w", err)
	}

	return nil
}

func (r *lockRepository) Renew(ctx context.Context, id uuid.UUID, heartbeatAt, expiresAt time.Time) error {
	query := `
		UPDATE edit_locks
		SET last_heartbeat_at = $2, expires_at = $3
		WHERE id = $1`

	result, err := r.db.Exec(ctx, query, id, heartbeatAt, expiresAt)
	if err != nil {
		return fmt.Errorf("failed to renew lock: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.ErrLockNotFound
	}

	return nil
}

func (r *lockRepository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.db.Exec(ctx, `DELETE FROM edit_locks WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete lock: %w", err)
	}
	return result.RowsAffected() > 0, nil
}

func (r *lockRepository) DeleteByResource(ctx context.Context, resourceType string, resourceID uuid.UUID) (int64, error) {
	query := `DELETE FROM edit_locks WHERE resource_type = $1 AND resource_id = $2`

	result, err := r.db.Exec(ctx, query, resourceType, resourceID)
	if err != nil {
		return 0, fmt.Errorf("failed to force-release lock: %w", err)
	}
	return result.RowsAffected(), nil
}

func scanLock(row pgx.Row) (*models.EditLock, error) {
	var l models.EditLock
	err := row.Scan(&l.ID, &l.ResourceType, &l.ResourceID, &l.UserID, &l.UserName,
		&l.AcquiredAt, &l.LastHeartbeatAt, &l.ExpiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan lock: %w", err)
	}
	return &l, nil
}
