package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/platform/httputil"
	"docucred/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service defines the document operations exposed over HTTP.
type Service interface {
	Extract(ctx context.Context, userID id.UserID, upload *models.Upload) (*models.ExtractionResult, error)
	SaveCorrection(ctx context.Context, userID id.UserID, req *models.CorrectionRequest) (*models.EntryResponse, error)
	GetLatest(ctx context.Context, userID id.UserID, fingerprint models.Fingerprint) (*models.Lookup, error)
	History(ctx context.Context, userID id.UserID, fingerprint models.Fingerprint) (*models.History, error)
	Verify(ctx context.Context, userID id.UserID, upload *models.Upload, claimed *models.FieldMap) (*models.VerificationResult, error)
}

const (
	formFieldFile          = "file"
	formFieldSubmittedData = "submitted_data"

	// multipartMemory is how much of a form is buffered before spilling to disk.
	multipartMemory = 32 << 20
)

// Handler serves the /ocr routes. Every route requires an authenticated user.
type Handler struct {
	docs           Service
	maxUploadBytes int64
	logger         *slog.Logger
}

func New(docs Service, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = models.MaxDocumentBytes
	}
	return &Handler{docs: docs, maxUploadBytes: maxUploadBytes, logger: logger}
}

// Register mounts routes that must sit behind RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/ocr/extract", h.HandleExtract)
	r.Post("/ocr/verify", h.HandleVerify)
	r.Post("/ocr/cache", h.HandleSaveCorrection)
	r.Get("/ocr/{imageHash}", h.HandleGetLatest)
	r.Get("/ocr/{imageHash}/history", h.HandleHistory)
}

// HandleExtract implements POST /ocr/extract.
//
// Input: multipart form with a "file" part.
// Output: { "extracted_fields": {...}, "quality_scores": [...], "file_id": "...",
// "imageHash": "<sha256 hex>", "total_pages": 1 }
func (h *Handler) HandleExtract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	upload, err := h.readUpload(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.docs.Extract(ctx, userID, upload)
	if err != nil {
		h.logFailure(ctx, "extract failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleVerify implements POST /ocr/verify.
//
// Input: multipart form with "file" and "submitted_data" (a JSON object).
func (h *Handler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	upload, err := h.readUpload(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	submitted := strings.TrimSpace(r.FormValue(formFieldSubmittedData))
	if submitted == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "submitted_data is required"))
		return
	}
	claimed, err := models.ParseFieldMap(submitted)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	res, err := h.docs.Verify(ctx, userID, upload, claimed)
	if err != nil {
		h.logFailure(ctx, "verify failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleSaveCorrection implements POST /ocr/cache.
//
// Input: { "imageHash": "...", "ocrText": {...}, "userEdits": {...} }
// Output: 201 with the recorded entry.
func (h *Handler) HandleSaveCorrection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.CorrectionRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.docs.SaveCorrection(ctx, userID, req)
	if err != nil {
		h.logFailure(ctx, "save correction failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, res)
}

// HandleGetLatest implements GET /ocr/{imageHash}.
//
// Output: { "found": true, "entry": {...} } or { "found": false }
func (h *Handler) HandleGetLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, fingerprint, ok := h.lookupParams(w, r)
	if !ok {
		return
	}

	res, err := h.docs.GetLatest(ctx, userID, fingerprint)
	if err != nil {
		h.logFailure(ctx, "cache lookup failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

// HandleHistory implements GET /ocr/{imageHash}/history.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, fingerprint, ok := h.lookupParams(w, r)
	if !ok {
		return
	}

	res, err := h.docs.History(ctx, userID, fingerprint)
	if err != nil {
		h.logFailure(ctx, "cache history failed", err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) lookupParams(w http.ResponseWriter, r *http.Request) (id.UserID, models.Fingerprint, bool) {
	userID, err := httputil.RequireUserID(r.Context(), h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, "", false
	}
	fingerprint, err := models.ParseFingerprint(chi.URLParam(r, "imageHash"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, "", false
	}
	return userID, fingerprint, true
}

// readUpload reads the "file" part. Size and type are checked by the service.
func (h *Handler) readUpload(r *http.Request) (*models.Upload, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, dErrors.New(dErrors.CodeValidation, "request must be multipart/form-data")
		}
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, dErrors.New(dErrors.CodeValidation, "document exceeds the maximum upload size")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid multipart form")
	}

	file, header, err := r.FormFile(formFieldFile)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, dErrors.New(dErrors.CodeValidation, "document file is required")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "invalid document upload")
	}
	defer file.Close()

	// One byte past the limit is enough for the service to reject it.
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeValidation, "failed to read document")
	}
	return &models.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Bytes:       data,
	}, nil
}

func (h *Handler) logFailure(ctx context.Context, msg string, err error) {
	h.logger.WarnContext(ctx, msg,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
}
