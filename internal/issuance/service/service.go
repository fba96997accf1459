package service

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/url"

	"github.com/skip2/go-qrcode"

	docmodels "docucred/internal/document/models"
	"docucred/internal/issuance/models"
	"docucred/internal/platform/metrics"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks Issuer

// Issuer is the signing engine.
type Issuer interface {
	Issue(ctx context.Context, fileID string, verified *docmodels.FieldMap) (*models.Credential, error)
}

const qrSize = 256

// Service issues verifiable credentials for verified field values.
type Service struct {
	issuer  Issuer
	baseURL *url.URL
	logger  *slog.Logger
	metrics *metrics.Metrics
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

// New builds the service. Relative download links from the engine resolve
// against engineBaseURL.
func New(issuer Issuer, engineBaseURL string, opts ...Option) (*Service, error) {
	base, err := url.Parse(engineBaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, dErrors.New(dErrors.CodeInternal, "engine base URL must be absolute: "+engineBaseURL)
	}
	svc := &Service{issuer: issuer, baseURL: base}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

var errMissingInput = dErrors.New(dErrors.CodeBadRequest, "file_id and verified_data are required")

// Issue forwards the verified values to the signing engine and returns the
// credential with absolute download URLs and a QR code of the VC link.
// A blank file id or empty verified data is rejected before the engine is
// called.
func (s *Service) Issue(ctx context.Context, userID id.UserID, req *models.IssueRequest) (*models.IssuanceResult, error) {
	if req == nil {
		return nil, errMissingInput
	}
	req.Sanitize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	cred, err := s.issuer.Issue(ctx, req.FileID, req.VerifiedData)
	if err != nil {
		s.logger.ErrorContext(ctx, "issuance failed upstream",
			"error", err,
			"file_id", req.FileID,
			"request_id", requestcontext.RequestID(ctx),
		)
		if dErrors.HasCode(err, dErrors.CodeUpstream) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeUpstream, "credential issuance failed: "+err.Error())
	}

	vcURL, err := s.resolve(cred.VCDownloadURL)
	if err != nil {
		return nil, err
	}
	if vcURL == "" {
		return nil, dErrors.New(dErrors.CodeUpstream, "credential issuance failed: engine returned no credential link")
	}
	qrURL, err := s.resolve(cred.QRDownloadURL)
	if err != nil {
		return nil, err
	}

	png, err := qrcode.Encode(vcURL, qrcode.Medium, qrSize)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render QR code")
	}

	s.metrics.IncCredentialsIssued()
	s.logger.InfoContext(ctx, "credential issued",
		"user_id", userID.String(),
		"file_id", req.FileID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return &models.IssuanceResult{
		VC:            cred.VC,
		VCDownloadURL: vcURL,
		QRDownloadURL: qrURL,
		QRCode:        "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}

func (s *Service) resolve(ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUpstream, "credential issuance failed: invalid download link")
	}
	return s.baseURL.ResolveReference(u).String(), nil
}
