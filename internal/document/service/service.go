package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docucred/internal/document/models"
	"docucred/internal/platform/metrics"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/platform/sentinel"
	"docucred/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Store,Extractor,Matcher

// Store is the append-only cache of extraction and correction entries.
// Error Contract: Latest returns sentinel.ErrNotFound when nothing matches.
type Store interface {
	Record(ctx context.Context, entry *models.CacheEntry) (*models.CacheEntry, error)
	Latest(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) (*models.CacheEntry, error)
	History(ctx context.Context, fingerprint models.Fingerprint, userID id.UserID) ([]*models.CacheEntry, error)
}

// Extractor is the recognition engine.
type Extractor interface {
	Extract(ctx context.Context, upload *models.Upload) (*models.Extraction, error)
}

// Matcher is the matching engine.
type Matcher interface {
	Verify(ctx context.Context, upload *models.Upload, claimed *models.FieldMap) (*models.VerificationResult, error)
}

// Service orchestrates extraction, corrections and verification.
type Service struct {
	store          Store
	extractor      Extractor
	matcher        Matcher
	maxUploadBytes int64
	logger         *slog.Logger
	metrics        *metrics.Metrics
	now            func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithMaxUploadBytes caps accepted documents; zero keeps models.MaxDocumentBytes.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(store Store, extractor Extractor, matcher Matcher, opts ...Option) *Service {
	svc := &Service{
		store:          store,
		extractor:      extractor,
		matcher:        matcher,
		maxUploadBytes: models.MaxDocumentBytes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Extract sends the document to the recognition engine and records the
// fields under the document's fingerprint. Nothing is recorded when the
// engine fails.
func (s *Service) Extract(ctx context.Context, userID id.UserID, upload *models.Upload) (*models.ExtractionResult, error) {
	if err := upload.Validate(s.maxUploadBytes); err != nil {
		return nil, err
	}

	extraction, err := s.extractor.Extract(ctx, upload)
	if err != nil {
		s.logger.ErrorContext(ctx, "extraction failed upstream",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, upstreamError(err, "text extraction failed")
	}

	fingerprint := models.ComputeFingerprint(upload.Bytes)
	fields, err := extraction.Fields.Serialize()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize extracted fields")
	}

	entry, err := s.record(ctx, &models.CacheEntry{
		Fingerprint: fingerprint,
		UserID:      userID,
		Fields:      fields,
	}, models.OriginExtraction)
	if err != nil {
		return nil, err
	}

	s.metrics.IncExtractions()
	s.logger.InfoContext(ctx, "document extracted",
		"user_id", userID.String(),
		"image_hash", fingerprint.String(),
		"entry_id", entry.ID,
		"fields", extraction.Fields.Len(),
		"request_id", requestcontext.RequestID(ctx),
	)

	qualityScores := extraction.QualityScores
	if qualityScores == nil {
		qualityScores = []models.QualityScore{}
	}
	return &models.ExtractionResult{
		Fields:        extraction.Fields,
		QualityScores: qualityScores,
		FileID:        extraction.FileID,
		Fingerprint:   fingerprint,
		TotalPages:    extraction.TotalPages,
	}, nil
}

// SaveCorrection appends a correction entry. The request must already be
// sanitized and validated. No prior extraction is required.
func (s *Service) SaveCorrection(ctx context.Context, userID id.UserID, req *models.CorrectionRequest) (*models.EntryResponse, error) {
	fingerprint, fields, edits := req.Parsed()
	if fields == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "ocrText is required")
	}

	fieldsText, err := fields.Serialize()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize fields")
	}
	entry := &models.CacheEntry{
		Fingerprint: fingerprint,
		UserID:      userID,
		Fields:      fieldsText,
	}
	if edits != nil {
		editsText, err := edits.Serialize()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to serialize edits")
		}
		entry.Edits = &editsText
	}

	stored, err := s.record(ctx, entry, models.OriginCorrection)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "correction saved",
		"user_id", userID.String(),
		"image_hash", fingerprint.String(),
		"entry_id", stored.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return stored.Response(), nil
}

// GetLatest returns the caller's most recent entry for the fingerprint.
func (s *Service) GetLatest(ctx context.Context, userID id.UserID, fingerprint models.Fingerprint) (*models.Lookup, error) {
	entry, err := s.store.Latest(ctx, fingerprint, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncCacheLookup(false)
			return &models.Lookup{Found: false}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read cache entry")
	}
	s.metrics.IncCacheLookup(true)
	return &models.Lookup{Found: true, EntryResponse: entry.Response()}, nil
}

// History lists the caller's entries for the fingerprint, newest first.
func (s *Service) History(ctx context.Context, userID id.UserID, fingerprint models.Fingerprint) (*models.History, error) {
	entries, err := s.store.History(ctx, fingerprint, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read cache history")
	}
	out := &models.History{Entries: make([]*models.EntryResponse, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, e.Response())
	}
	return out, nil
}

// Verify relays the matching engine's verdict. Results are not persisted.
func (s *Service) Verify(ctx context.Context, userID id.UserID, upload *models.Upload, claimed *models.FieldMap) (*models.VerificationResult, error) {
	if err := upload.Validate(s.maxUploadBytes); err != nil {
		return nil, err
	}
	if claimed == nil || claimed.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeValidation, "submitted_data is required")
	}

	result, err := s.matcher.Verify(ctx, upload, claimed)
	if err != nil {
		s.logger.ErrorContext(ctx, "verification failed upstream",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, upstreamError(err, "verification failed")
	}

	s.metrics.IncVerifications()
	s.logger.InfoContext(ctx, "document verified",
		"user_id", userID.String(),
		"overall_match", result.OverallMatch,
		"overall_score", result.OverallScore,
		"request_id", requestcontext.RequestID(ctx),
	)
	if result.Mismatches == nil {
		result.Mismatches = []string{}
	}
	return result, nil
}

func (s *Service) record(ctx context.Context, entry *models.CacheEntry, origin string) (*models.CacheEntry, error) {
	// Postgres keeps microseconds; truncating keeps every backend's ordering identical.
	entry.CreatedAt = s.now().UTC().Truncate(time.Microsecond)
	stored, err := s.store.Record(ctx, entry)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record cache entry")
	}
	s.metrics.IncCacheEntriesRecorded(origin)
	return stored, nil
}

// upstreamError keeps domain errors from the engine client and classifies
// anything else as an upstream failure.
func upstreamError(err error, msg string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUpstream, msg+": "+err.Error())
}
