package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/apperrors"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
)

const (
	// MinLockTTL and MaxLockTTL bound the requested lock lifetime.
	MinLockTTL = 30 * time.Second
	MaxLockTTL = 10 * time.Minute

	// DefaultLockTTL is used when the caller does not ask for a TTL.
	DefaultLockTTL = 3 * time.Minute
)

// LockService hands out advisory edit locks. A resource has at most one live
// holder; expired locks are reaped lazily on every acquire and guard check.
type LockService interface {
	// Acquire grants or renews the lock for user. A live lock held by
	// someone else yields a LockConflictError.
	Acquire(ctx context.Context, resourceType string, resourceID, userID uuid.UUID, userName string, ttl time.Duration) (*models.EditLock, error)
	// Heartbeat extends the caller's lock from now by ttl.
	Heartbeat(ctx context.Context, lockID, userID uuid.UUID, ttl time.Duration) (*models.EditLock, error)
	// Release drops the caller's lock. Returns false when the lock was
	// already gone.
	Release(ctx context.Context, lockID, userID uuid.UUID) (bool, error)
	// ForceRelease drops whatever lock exists on the resource.
	ForceRelease(ctx context.Context, resourceType string, resourceID uuid.UUID) error
	// Get returns the live lock on the resource, nil when unlocked.
	Get(ctx context.Context, resourceType string, resourceID uuid.UUID) (*models.EditLock, error)
	// EnsureHeldBy fails with a LockConflictError unless user holds a live
	// lock on the resource. Guards all tree and lifecycle mutations.
	EnsureHeldBy(ctx context.Context, resourceType string, resourceID, userID uuid.UUID) error
}

type lockService struct {
	locks  repositories.LockRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewLockService creates a new LockService.
func NewLockService(locks repositories.LockRepository, logger *zap.Logger) LockService {
	return &lockService{locks: locks, logger: logger, now: time.Now}
}

var _ LockService = (*lockService)(nil)

// clampTTL normalizes the requested lifetime into [MinLockTTL, MaxLockTTL].
func clampTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultLockTTL
	}
	if ttl < MinLockTTL {
		return MinLockTTL
	}
	if ttl > MaxLockTTL {
		return MaxLockTTL
	}
	return ttl
}

func (s *lockService) Acquire(ctx context.Context, resourceType string, resourceID, userID uuid.UUID, userName string, ttl time.Duration) (*models.EditLock, error) {
	if !models.IsValidResourceType(resourceType) {
		return nil, apperrors.Validation("invalid resource type %q", resourceType)
	}
	ttl = clampTTL(ttl)
	now := s.now()

	if _, err := s.locks.DeleteExpired(ctx, now); err != nil {
		return nil, err
	}

	existing, err := s.locks.GetLive(ctx, resourceType, resourceID, now)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.UserID != userID {
			return nil, &apperrors.LockConflictError{HolderID: existing.UserID.String(), HolderName: existing.UserName}
		}
		// Re-acquire by the current holder just extends the lease.
		existing.LastHeartbeatAt = now
		existing.ExpiresAt = now.Add(ttl)
		if err := s.locks.Renew(ctx, existing.ID, now, existing.ExpiresAt); err != nil {
			return nil, err
		}
		return existing, nil
	}

	lock := &models.EditLock{
		ID:              uuid.New(),
		ResourceType:    resourceType,
		ResourceID:      resourceID,
		UserID:          userID,
		UserName:        userName,
		AcquiredAt:      now,
		LastHeartbeatAt: now,
		ExpiresAt:       now.Add(ttl),
	}

	if err := s.locks.Insert(ctx, lock); err != nil {
		// Unique constraint trip means someone got there first between the
		// live check and the insert. Report the winner.
		if errors.Is(err, apperrors.ErrConflict) {
			winner, gerr := s.locks.GetLive(ctx, resourceType, resourceID, now)
			if gerr == nil && winner != nil {
				return nil, &apperrors.LockConflictError{HolderID: winner.UserID.String(), HolderName: winner.UserName}
			}
		}
		return nil, err
	}

	s.logger.Info("Acquired edit lock",
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID.String()),
		zap.String("user_id", userID.String()),
		zap.Duration("ttl", ttl))

	return lock, nil
}

func (s *lockService) Heartbeat(ctx context.Context, lockID, userID uuid.UUID, ttl time.Duration) (*models.EditLock, error) {
	ttl = clampTTL(ttl)
	now := s.now()

	lock, err := s.locks.GetByID(ctx, lockID)
	if err != nil {
		return nil, err
	}
	if lock.UserID != userID {
		return nil, apperrors.ErrNotLockOwner
	}
	if lock.Expired(now) {
		return nil, apperrors.ErrLockExpired
	}

	lock.LastHeartbeatAt = now
	lock.ExpiresAt = now.Add(ttl)
	if err := s.locks.Renew(ctx, lock.ID, now, lock.ExpiresAt); err != nil {
		return nil, err
	}

	return lock, nil
}

func (s *lockService) Release(ctx context.Context, lockID, userID uuid.UUID) (bool, error) {
	lock, err := s.locks.GetByID(ctx, lockID)
	if err != nil {
		if errors.Is(err, apperrors.ErrLockNotFound) {
			return false, nil
		}
		return false, err
	}
	if lock.UserID != userID {
		return false, apperrors.ErrNotLockOwner
	}

	released, err := s.locks.Delete(ctx, lock.ID)
	if err != nil {
		return false, err
	}

	s.logger.Info("Released edit lock",
		zap.String("resource_type", lock.ResourceType),
		zap.String("resource_id", lock.ResourceID.String()),
		zap.String("user_id", userID.String()))

	return released, nil
}

func (s *lockService) ForceRelease(ctx context.Context, resourceType string, resourceID uuid.UUID) error {
	if _, err := s.locks.DeleteByResource(ctx, resourceType, resourceID); err != nil {
		return err
	}

	s.logger.Info("Force-released edit lock",
		zap.String("resource_type", resourceType),
		zap.String("resource_id", resourceID.String()))

	return nil
}

func (s *lockService) Get(ctx context.Context, resourceType string, resourceID uuid.UUID) (*models.EditLock, error) {
	return s.locks.GetLive(ctx, resourceType, resourceID, s.now())
}

func (s *lockService) EnsureHeldBy(ctx context.Context, resourceType string, resourceID, userID uuid.UUID) error {
	now := s.now()

	if _, err := s.locks.DeleteExpired(ctx, now); err != nil {
		return err
	}

	lock, err := s.locks.GetLive(ctx, resourceType, resourceID, now)
	if err != nil {
		return err
	}
	if lock == nil {
		return &apperrors.LockConflictError{}
	}
	if lock.UserID != userID {
		return &apperrors.LockConflictError{HolderID: lock.UserID.String(), HolderName: lock.UserName}
	}

	return nil
}
