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

// ReleaseListResponse for GET /api/std/releases
type ReleaseListResponse struct {
	Releases []*models.Release `json:"releases"`
	Total    int               `json:"total"`
}

// CreateReleaseRequest for POST /api/std/releases
type CreateReleaseRequest struct {
	Version string `json:"version"`
}

// CloneReleaseRequest for POST /api/std/releases/{rid}/clone
type CloneReleaseRequest struct {
	NewVersion string `json:"new_version"`
	CopyLinks  bool   `json:"copy_links"`
}

// SetStatusRequest for PATCH /api/std/releases/{rid}/status
type SetStatusRequest struct {
	Status string `json:"status"`
}

// TreeResponse for GET /api/std/releases/{rid}/tree
type TreeResponse struct {
	ReleaseID uuid.UUID          `json:"release_id"`
	Kind      string             `json:"kind"`
	Roots     []*models.TreeNode `json:"roots"`
}

// ReleasesHandler handles release catalog and tree read requests.
type ReleasesHandler struct {
	releaseService services.ReleaseService
	treeService    services.TreeService
	logger         *zap.Logger
}

// NewReleasesHandler creates a new ReleasesHandler.
func NewReleasesHandler(releaseService services.ReleaseService, treeService services.TreeService, logger *zap.Logger) *ReleasesHandler {
	return &ReleasesHandler{
		releaseService: releaseService,
		treeService:    treeService,
		logger:         logger,
	}
}

// RegisterRoutes registers the release handler's routes on the given mux.
func (h *ReleasesHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	base := "/api/std/releases"
	editors := authMiddleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	mux.HandleFunc("GET "+base, authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST "+base, editors(h.Create))
	mux.HandleFunc("GET "+base+"/{rid}", authMiddleware.RequireAuth(h.Get))
	mux.HandleFunc("POST "+base+"/{rid}/clone", editors(h.Clone))
	mux.HandleFunc("PATCH "+base+"/{rid}/status", editors(h.SetStatus))
	mux.HandleFunc("GET "+base+"/{rid}/tree", authMiddleware.RequireAuth(h.GetTree))
}

// List handles GET /api/std/releases
func (h *ReleasesHandler) List(w http.ResponseWriter, r *http.Request) {
	releases, err := h.releaseService.List(r.Context())
	if err != nil {
		ServiceError(w, h.logger, "list_releases_failed", err)
		return
	}

	response := ReleaseListResponse{Releases: releases, Total: len(releases)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Get handles GET /api/std/releases/{rid}
func (h *ReleasesHandler) Get(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}

	release, err := h.releaseService.Get(r.Context(), releaseID)
	if err != nil {
		ServiceError(w, h.logger, "get_release_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: release}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Create handles POST /api/std/releases
func (h *ReleasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	release, err := h.releaseService.Create(r.Context(), req.Version)
	if err != nil {
		ServiceError(w, h.logger, "create_release_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: release}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Clone handles POST /api/std/releases/{rid}/clone
func (h *ReleasesHandler) Clone(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}

	var req CloneReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	release, err := h.releaseService.Clone(r.Context(), &services.CloneReleaseRequest{
		SourceID:   releaseID,
		NewVersion: req.NewVersion,
		CopyLinks:  req.CopyLinks,
	})
	if err != nil {
		ServiceError(w, h.logger, "clone_release_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: release}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetStatus handles PATCH /api/std/releases/{rid}/status
func (h *ReleasesHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	release, err := h.releaseService.SetStatus(r.Context(), releaseID, req.Status)
	if err != nil {
		ServiceError(w, h.logger, "set_release_status_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: release}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetTree handles GET /api/std/releases/{rid}/tree?kind=
func (h *ReleasesHandler) GetTree(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}

	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = models.KindGWM
	}

	roots, err := h.treeService.GetTree(r.Context(), releaseID, kind)
	if err != nil {
		ServiceError(w, h.logger, "get_tree_failed", err)
		return
	}

	response := TreeResponse{ReleaseID: releaseID, Kind: kind, Roots: roots}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
