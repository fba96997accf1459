package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"docucred/internal/issuance/models"
	id "docucred/pkg/domain"
	"docucred/pkg/platform/httputil"
	"docucred/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/handler-mocks.go -package=mocks Service

// Service defines the issuance operation exposed over HTTP.
type Service interface {
	Issue(ctx context.Context, userID id.UserID, req *models.IssueRequest) (*models.IssuanceResult, error)
}

type Handler struct {
	issuance Service
	logger   *slog.Logger
}

func New(issuance Service, logger *slog.Logger) *Handler {
	return &Handler{issuance: issuance, logger: logger}
}

// Register mounts routes that must sit behind RequireAuth.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vc/issue", h.HandleIssue)
}

// HandleIssue implements POST /vc/issue.
//
// Input: { "file_id": "...", "verified_data": {...} }
// Output: { "vc": {...}, "vc_download_url": "...", "qr_download_url": "...", "qr_code": "data:image/png;base64,..." }
func (h *Handler) HandleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[models.IssueRequest](w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.issuance.Issue(ctx, userID, req)
	if err != nil {
		h.logger.WarnContext(ctx, "issue failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, res)
}
