package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/requestcontext"
)

// Sanitizable request bodies normalize themselves before validation.
type Sanitizable interface {
	Sanitize()
}

// Validatable request bodies check their own required fields.
type Validatable interface {
	Validate() error
}

// DecodeJSON reads exactly one JSON value from the body into a new T. On
// failure it writes a bad_request response and returns false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, err := decodeBody[T](r.Body)
	if err != nil {
		reject(w, r, logger, "decode request body", err)
		return nil, false
	}
	return req, true
}

func decodeBody[T any](body io.Reader) (*T, error) {
	dec := json.NewDecoder(body)
	var req T
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "request body must hold a single JSON value")
	}
	return &req, nil
}

// PrepareRequest runs Sanitize then Validate on whichever of the two req
// implements.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	v, ok := req.(Validatable)
	if !ok {
		return nil
	}
	if err := v.Validate(); err != nil {
		if _, coded := dErrors.As(err); coded {
			return err
		}
		return dErrors.Wrap(err, dErrors.CodeValidation, err.Error())
	}
	return nil
}

// DecodeAndPrepare decodes the body and prepares it. Validation errors
// without a domain code are reported as validation_failed.
//
//	req, ok := httputil.DecodeAndPrepare[models.RegisterRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger)
	if !ok {
		return nil, false
	}
	if err := PrepareRequest(req); err != nil {
		reject(w, r, logger, "invalid request", err)
		return nil, false
	}
	return req, true
}

func reject(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	ctx := r.Context()
	logger.WarnContext(ctx, msg,
		"error", err,
		"path", r.URL.Path,
		"request_id", requestcontext.RequestID(ctx),
	)
	WriteError(w, err)
}
