package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stdworks-inc/stdworks-engine/pkg/auth"
	"github.com/stdworks-inc/stdworks-engine/pkg/models"
	"github.com/stdworks-inc/stdworks-engine/pkg/repositories"
	"github.com/stdworks-inc/stdworks-engine/pkg/services"
)

// BatchListResponse for GET /api/wms/batches
type BatchListResponse struct {
	Batches []*models.BatchSummary `json:"batches"`
	Total   int                    `json:"total"`
}

// RowListResponse for batch row queries.
type RowListResponse struct {
	BatchID uuid.UUID     `json:"batch_id"`
	Rows    []*models.Row `json:"rows"`
	Total   int           `json:"total"`
}

// ItemListResponse for GET /api/wms/items
type ItemListResponse struct {
	Items []*models.Item `json:"items"`
	Total int            `json:"total"`
}

// UploadResponse for POST /api/wms/upload
type UploadResponse struct {
	Batch  *models.Batch    `json:"batch,omitempty"`
	Rows   []map[string]any `json:"rows,omitempty"`
	Total  int              `json:"total"`
	DryRun bool             `json:"dry_run"`
}

// WMSHandler handles work-master batch ingestion and queries.
type WMSHandler struct {
	batchService       services.BatchService
	spreadsheetService services.SpreadsheetService
	maxUploadBytes     int64
	logger             *zap.Logger
}

// NewWMSHandler creates a new WMSHandler.
func NewWMSHandler(batchService services.BatchService, spreadsheetService services.SpreadsheetService, maxUploadBytes int64, logger *zap.Logger) *WMSHandler {
	return &WMSHandler{
		batchService:       batchService,
		spreadsheetService: spreadsheetService,
		maxUploadBytes:     maxUploadBytes,
		logger:             logger,
	}
}

// RegisterRoutes registers the WMS handler's routes on the given mux.
func (h *WMSHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	editors := authMiddleware.RequireRole(models.RoleAdmin, models.RoleEditor)

	mux.HandleFunc("POST /api/wms/ingest", editors(h.Ingest))
	mux.HandleFunc("POST /api/wms/upload", editors(h.Upload))
	mux.HandleFunc("GET /api/wms/batches", authMiddleware.RequireAuth(h.ListBatches))
	mux.HandleFunc("GET /api/wms/batches/{bid}/preview", authMiddleware.RequireAuth(h.Preview))
	mux.HandleFunc("GET /api/wms/batches/{bid}/errors", authMiddleware.RequireAuth(h.Errors))
	mux.HandleFunc("POST /api/wms/batches/{bid}/validate", editors(h.Validate))
	mux.HandleFunc("POST /api/wms/batches/{bid}/set-current", editors(h.SetCurrent))
	mux.HandleFunc("GET /api/wms/current", authMiddleware.RequireAuth(h.GetCurrent))
	mux.HandleFunc("GET /api/wms/items", authMiddleware.RequireAuth(h.ListItems))
}

// Ingest handles POST /api/wms/ingest
func (h *WMSHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req services.IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	batch, err := h.batchService.Ingest(r.Context(), &req, auth.UserNameFromContext(r.Context()))
	if err != nil {
		ServiceError(w, h.logger, "ingest_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: batch}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Upload handles POST /api/wms/upload (multipart workbook).
// Query: source (required), sheet (optional), dry_run (optional).
func (h *WMSHandler) Upload(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "missing_source", "Query parameter 'source' is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_upload", "Multipart field 'file' is required"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	defer file.Close() //nolint:errcheck // read-only handle

	rows, err := h.spreadsheetService.Parse(file, source, r.URL.Query().Get("sheet"))
	if err != nil {
		ServiceError(w, h.logger, "parse_upload_failed", err)
		return
	}

	if queryBool(r, "dry_run") {
		response := UploadResponse{Rows: rows, Total: len(rows), DryRun: true}
		if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
			h.logger.Error("Failed to write response", zap.Error(err))
		}
		return
	}

	batch, err := h.batchService.Ingest(r.Context(), &services.IngestRequest{
		Source: source,
		Rows:   rows,
		Meta:   map[string]any{"upload": "spreadsheet"},
	}, auth.UserNameFromContext(r.Context()))
	if err != nil {
		ServiceError(w, h.logger, "ingest_failed", err)
		return
	}

	response := UploadResponse{Batch: batch, Total: len(rows)}
	if err := WriteJSON(w, http.StatusCreated, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListBatches handles GET /api/wms/batches
func (h *WMSHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.batchService.List(r.Context())
	if err != nil {
		ServiceError(w, h.logger, "list_batches_failed", err)
		return
	}

	response := BatchListResponse{Batches: batches, Total: len(batches)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Preview handles GET /api/wms/batches/{bid}/preview?limit=&offset=
func (h *WMSHandler) Preview(w http.ResponseWriter, r *http.Request) {
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	rows, err := h.batchService.PreviewRows(r.Context(), batchID, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		ServiceError(w, h.logger, "preview_batch_failed", err)
		return
	}

	response := RowListResponse{BatchID: batchID, Rows: rows, Total: len(rows)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Errors handles GET /api/wms/batches/{bid}/errors
func (h *WMSHandler) Errors(w http.ResponseWriter, r *http.Request) {
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	rows, err := h.batchService.ListErrorRows(r.Context(), batchID)
	if err != nil {
		ServiceError(w, h.logger, "list_error_rows_failed", err)
		return
	}

	response := RowListResponse{BatchID: batchID, Rows: rows, Total: len(rows)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// Validate handles POST /api/wms/batches/{bid}/validate
func (h *WMSHandler) Validate(w http.ResponseWriter, r *http.Request) {
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	var opts services.ValidateOptions
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "Invalid request body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	summary, err := h.batchService.Validate(r.Context(), batchID, opts)
	if err != nil {
		ServiceError(w, h.logger, "validate_batch_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: summary}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// SetCurrent handles POST /api/wms/batches/{bid}/set-current
func (h *WMSHandler) SetCurrent(w http.ResponseWriter, r *http.Request) {
	batchID, ok := ParseBatchID(w, r, h.logger)
	if !ok {
		return
	}

	batch, err := h.batchService.SetCurrent(r.Context(), batchID)
	if err != nil {
		ServiceError(w, h.logger, "set_current_batch_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: batch}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// GetCurrent handles GET /api/wms/current?source=
func (h *WMSHandler) GetCurrent(w http.ResponseWriter, r *http.Request) {
	batch, err := h.batchService.GetCurrent(r.Context(), r.URL.Query().Get("source"))
	if err != nil {
		ServiceError(w, h.logger, "get_current_batch_failed", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: batch}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// ListItems handles GET /api/wms/items?sources=&search=&batch_ids=&limit=&offset=
func (h *WMSHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter := repositories.ItemFilter{
		Search: r.URL.Query().Get("search"),
		Limit:  queryInt(r, "limit", 0),
		Offset: queryInt(r, "offset", 0),
	}

	if raw := r.URL.Query().Get("sources"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Sources = append(filter.Sources, s)
			}
		}
	}

	if raw := r.URL.Query().Get("batch_ids"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				if err := ErrorResponse(w, http.StatusBadRequest, "invalid_batch_id", "Invalid batch ID in batch_ids"); err != nil {
					h.logger.Error("Failed to write error response", zap.Error(err))
				}
				return
			}
			filter.BatchIDs = append(filter.BatchIDs, id)
		}
	}

	items, err := h.batchService.ListItems(r.Context(), filter)
	if err != nil {
		ServiceError(w, h.logger, "list_items_failed", err)
		return
	}

	response := ItemListResponse{Items: items, Total: len(items)}
	if err := WriteJSON(w, http.StatusOK, ApiResponse{Success: true, Data: response}); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
