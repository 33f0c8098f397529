package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/auth"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// AcquireLockRequest for POST /api/locks/acquire
type AcquireLockRequest struct {
	ResourceType string    `json:"resource_type"`
	ResourceID   uuid.UUID `json:"resource_id"`
	TTLSeconds   int       `json:"ttl_seconds,omitempty"`
}

// HeartbeatRequest for POST /api/locks/heartbeat
type HeartbeatRequest struct {
	LockID     uuid.UUID `json:"lock_id"`
	TTLSeconds int       `json:"ttl_seconds,omitempty"`
}

// ReleaseLockRequest for POST /api/locks/release
type ReleaseLockRequest struct {
	LockID uuid.UUID `json:"lock_id"`
}

// ReleaseLockResponse reports whether a lock was actually dropped.
type ReleaseLockResponse struct {
	Released bool `json:"released"`
}

// ForceReleaseRequest for POST /api/locks/force-release
type ForceReleaseRequest struct {
	ResourceType string    `json:"resource_type"`
	ResourceID   uuid.UUID `json:"resource_id"`
}

// LockStatusResponse for GET /api/locks
type LockStatusResponse struct {
	Locked           bool             `json:"locked"`
	Lock             *models.EditLock `json:"lock,omitempty"`
	RemainingSeconds int              `json:"remaining_seconds,omitempty"`
}

// LocksHandler handles edit lock requests.
type LocksHandler struct {
	lockService services.LockService
	logger      *zap.Logger
}

// NewLocksHandler creates a new LocksHandler.
func NewLocksHandler(lockService services.LockService, logger *zap.Logger) *LocksHandler {
	return &LocksHandler{lockService: lockService, logger: logger}
}

// RegisterRoutes registers the lock handler's routes on the given mux.
func (h *LocksHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	editors := authMiddleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	mux.HandleFunc("GET /api/locks", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/locks/acquire", editors(h.Acquire))
	mux.HandleFunc("POST /api/locks/heartbeat", editors(h.Heartbeat))
	mux.HandleFunc("POST /api/locks/release", editors(h.Release))
	mux.HandleFunc("POST /api/locks/force-release",
		authMiddleware.RequireRole(models.RoleAdmin)(h.ForceRelease))
}

// Get handles GET /api/locks?resource_type=&resource_id=
func (h *LocksHandler) Get(w http.ResponseWriter, r *http.Request) {
	resourceType := r.URL.Query().Get("resource_type")
	resourceID, err := uuid.Parse(r.URL.Query().Get("resource_id"))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_resource_id", "Query parameter 'resource_id' must be a UUID"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	lock, err := h.lockService.Get(r.Context(), resourceType, resourceID)
	if err != nil {
		ServiceError(w, h.logger, "get_lock_failed", err)
		return
	}

	response := LockStatusResponse{Locked: lock != nil, Lock: lock}
	if lock != nil {
		response.RemainingSeconds = lock.RemainingSeconds(time.Now())
	}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Acquire handles POST /api/locks/acquire
func (h *LocksHandler) Acquire(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var req AcquireLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	lock, err := h.lockService.Acquire(r.Context(), req.ResourceType, req.ResourceID, userID,
		auth.UserNameFromContext(r.Context()), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		ServiceError(w, h.logger, "acquire_lock_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: lock}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Heartbeat handles POST /api/locks/heartbeat
func (h *LocksHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var req HeartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	lock, err := h.lockService.Heartbeat(r.Context(), req.LockID, userID, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		ServiceError(w, h.logger, "heartbeat_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: lock}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Release handles POST /api/locks/release
func (h *LocksHandler) Release(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	var req ReleaseLockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	released, err := h.lockService.Release(r.Context(), req.LockID, userID)
	if err != nil {
		ServiceError(w, h.logger, "release_lock_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: ReleaseLockResponse{Released: released}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ForceRelease handles POST /api/locks/force-release
func (h *LocksHandler) ForceRelease(w http.ResponseWriter, r *http.Request) {
	var req ForceReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := h.lockService.ForceRelease(r.Context(), req.ResourceType, req.ResourceID); err != nil {
		ServiceError(w, h.logger, "force_release_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: ReleaseLockResponse{Released: true}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
