package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/auth"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// DeleteNodeResponse for DELETE /api/std/releases/{rid}/nodes/{uid}
type DeleteNodeResponse struct {
	Removed int64 `json:"removed"`
}

// NodesHandler handles tree node mutations. Every mutation requires the
// caller to hold the release's edit lock.
type NodesHandler struct {
	treeService services.TreeService
	lockService services.LockService
	logger      *zap.Logger
}

// NewNodesHandler creates a new NodesHandler.
func NewNodesHandler(treeService services.TreeService, lockService services.LockService, logger *zap.Logger) *NodesHandler {
	return &NodesHandler{
		treeService: treeService,
		lockService: lockService,
		logger:      logger,
	}
}

// RegisterRoutes registers the node handler's routes on the given mux.
func (h *NodesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/std/releases/{rid}/nodes"
	editors := authMiddleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	mux.HandleFunc("POST "+base, editors(h.Create))
	mux.HandleFunc("PATCH "+base+"/{uid}", editors(h.Update))
	mux.HandleFunc("DELETE "+base+"/{uid}", editors(h.Delete))
}

// guardLock rejects the mutation unless the caller holds a live edit lock on
// the release. Returns false after writing the error response.
func (h *NodesHandler) guardLock(w http.ResponseWriter, r *http.Request, releaseID uuid.UUID) bool {
	userID, err := auth.UserIDFromContext(r.Context())
	if err != nil {
		if werr := ErrorResponse(w, http.StatusUnauthorized, "unauthorized", "Authentication required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return false
	}

	if err := h.lockService.EnsureHeldBy(r.Context(), models.ResourceStdRelease, releaseID, userID); err != nil {
		ServiceError(w, h.logger, "edit_lock_required", err)
		return false
	}

	return true
}

// Create handles POST /api/std/releases/{rid}/nodes
func (h *NodesHandler) Create(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.guardLock(w, r, releaseID) {
		return
	}

	var req services.CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	node, err := h.treeService.CreateNode(r.Context(), releaseID, &req, r.URL.Query().Get("kind"))
	if err != nil {
		ServiceError(w, h.logger, "create_node_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: node}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Update handles PATCH /api/std/releases/{rid}/nodes/{uid}
func (h *NodesHandler) Update(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}
	nodeUID, ok := ParseNodeUID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.guardLock(w, r, releaseID) {
		return
	}

	var req services.UpdateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	node, err := h.treeService.UpdateNode(r.Context(), releaseID, nodeUID, &req)
	if err != nil {
		ServiceError(w, h.logger, "update_node_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: node}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Delete handles DELETE /api/std/releases/{rid}/nodes/{uid}
func (h *NodesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}
	nodeUID, ok := ParseNodeUID(w, r, h.logger)
	if !ok {
		return
	}
	if !h.guardLock(w, r, releaseID) {
		return
	}

	removed, err := h.treeService.DeleteNode(r.Context(), releaseID, nodeUID)
	if err != nil {
		ServiceError(w, h.logger, "delete_node_failed", err)
		return
	}

	response := DeleteNodeResponse{Removed: removed}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
