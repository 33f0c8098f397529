package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/auth"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// LinkMutationRequest for POST /api/wms/links/assign and /unassign
type LinkMutationRequest struct {
	ReleaseID uuid.UUID   `json:"release_id"`
	NodeUID   string      `json:"node_uid"`
	RowIDs    []uuid.UUID `json:"row_ids"`
}

// LinkMutationResponse reports how many links an assign/unassign touched.
type LinkMutationResponse struct {
	ReleaseID uuid.UUID `json:"release_id"`
	NodeUID   string    `json:"node_uid"`
	Affected  int       `json:"affected"`
}

// LinkListResponse for GET /api/wms/links
type LinkListResponse struct {
	ReleaseID uuid.UUID      `json:"release_id"`
	NodeUID   string         `json:"node_uid"`
	Links     []*models.Link `json:"links"`
	Total     int            `json:"total"`
}

// CopyLinksRequest for POST /api/std/releases/{rid}/links/copy
type CopyLinksRequest struct {
	FromReleaseID     *uuid.UUID `json:"from_release_id,omitempty"`
	FromVersion       string     `json:"from_version,omitempty"`
	MostRecentActive  bool       `json:"most_recent_active,omitempty"`
	OnlyExistingNodes bool       `json:"only_existing_nodes"`
}

// CopyLinksResponse reports how many links were copied.
type CopyLinksResponse struct {
	Copied int `json:"copied"`
}

// RebaseLinksRequest for POST /api/wms/rebase-links
type RebaseLinksRequest struct {
	ReleaseID   uuid.UUID  `json:"release_id"`
	Source      string     `json:"source,omitempty"`
	FromBatchID *uuid.UUID `json:"from_batch_id,omitempty"`
	ToBatchID   *uuid.UUID `json:"to_batch_id,omitempty"`
	DryRun      bool       `json:"dry_run"`
	DeleteOld   bool       `json:"delete_old"`
}

// LinksHandler handles node-to-row link requests.
type LinksHandler struct {
	linkService services.LinkService
	logger      *zap.Logger
}

// NewLinksHandler creates a new LinksHandler.
func NewLinksHandler(linkService services.LinkService, logger *zap.Logger) *LinksHandler {
	return &LinksHandler{linkService: linkService, logger: logger}
}

// RegisterRoutes registers the link handler's routes on the given mux.
func (h *LinksHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	editors := authMiddleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	mux.HandleFunc("GET /api/wms/links", authMiddleware.RequireAuth(h.List))
	mux.HandleFunc("POST /api/wms/links/assign", editors(h.Assign))
	mux.HandleFunc("POST /api/wms/links/unassign", editors(h.Unassign))
	mux.HandleFunc("POST /api/std/releases/{rid}/links/copy", editors(h.Copy))
	mux.HandleFunc("POST /api/wms/rebase-links", editors(h.Rebase))
}

// List handles GET /api/wms/links?release_id=&node_uid=
func (h *LinksHandler) List(w http.ResponseWriter, r *http.Request) {
	releaseID, err := uuid.Parse(r.URL.Query().Get("release_id"))
	if err != nil {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_release_id", "Query parameter 'release_id' must be a UUID"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}
	nodeUID := r.URL.Query().Get("node_uid")
	if nodeUID == "" {
		if werr := ErrorResponse(w, http.StatusBadRequest, "invalid_node_uid", "Query parameter 'node_uid' is required"); werr != nil {
			h.logger.Error("Failed to write error response", zap.Error(werr))
		}
		return
	}

	links, err := h.linkService.ListByNode(r.Context(), releaseID, nodeUID)
	if err != nil {
		ServiceError(w, h.logger, "list_links_failed", err)
		return
	}

	response := LinkListResponse{ReleaseID: releaseID, NodeUID: nodeUID, Links: links, Total: len(links)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Assign handles POST /api/wms/links/assign
func (h *LinksHandler) Assign(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "assign_links_failed", h.linkService.Assign)
}

// Unassign handles POST /api/wms/links/unassign
func (h *LinksHandler) Unassign(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, "unassign_links_failed", h.linkService.Unassign)
}

func (h *LinksHandler) mutate(w http.ResponseWriter, r *http.Request, errorCode string, op func(ctx context.Context, releaseID uuid.UUID, nodeUID string, rowIDs []uuid.UUID) (int, error)) {
	var req LinkMutationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	affected, err := op(r.Context(), req.ReleaseID, req.NodeUID, req.RowIDs)
	if err != nil {
		ServiceError(w, h.logger, errorCode, err)
		return
	}

	response := LinkMutationResponse{ReleaseID: req.ReleaseID, NodeUID: req.NodeUID, Affected: affected}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Copy handles POST /api/std/releases/{rid}/links/copy
func (h *LinksHandler) Copy(w http.ResponseWriter, r *http.Request) {
	releaseID, ok := ParseReleaseID(w, r, h.logger)
	if !ok {
		return
	}

	var req CopyLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if req.FromReleaseID == nil && req.FromVersion == "" && !req.MostRecentActive {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_source_release",
			"Provide one of from_release_id, from_version or most_recent_active"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	selector := services.ReleaseSelector{ID: req.FromReleaseID, Version: req.FromVersion}
	copied, err := h.linkService.CopyLinks(r.Context(), releaseID, selector, req.OnlyExistingNodes)
	if err != nil {
		ServiceError(w, h.logger, "copy_links_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: CopyLinksResponse{Copied: copied}}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Rebase handles POST /api/wms/rebase-links
func (h *LinksHandler) Rebase(w http.ResponseWriter, r *http.Request) {
	var req RebaseLinksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	result, err := h.linkService.Rebase(r.Context(), req.ReleaseID, &services.RebaseRequest{
		FromBatchID: req.FromBatchID,
		ToBatchID:   req.ToBatchID,
		Source:      req.Source,
		DryRun:      req.DryRun,
		DeleteOld:   req.DeleteOld,
	})
	if err != nil {
		ServiceError(w, h.logger, "rebase_links_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: result}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
