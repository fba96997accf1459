// Package engine calls the recognition, matching and signing engine over HTTP.
//
// Every call passes through one circuit breaker and one span. Failures come
// back as domain errors with code upstream_failure carrying the engine's
// detail, so services can return them unchanged.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	docmodels "docucred/internal/document/models"
	issmodels "docucred/internal/issuance/models"
	"docucred/internal/platform/metrics"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/platform/circuit"
)

const (
	pathExtract  = "/api/extract"
	pathVerify   = "/api/verify"
	pathIssue    = "/api/generate-vc"
	maxReplySize = 16 << 20
	maxDetailLen = 300
)

var stageFailure = map[string]string{
	metrics.StageExtraction:   "text extraction failed",
	metrics.StageVerification: "verification failed",
	metrics.StageIssuance:     "credential issuance failed",
}

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to one engine deployment.
type Client struct {
	baseURL string
	http    HTTPDoer
	breaker *circuit.Breaker
	tracer  trace.Tracer
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Client)

func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		c.http = doer
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New builds a client for baseURL. timeout bounds each call end to end.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuit.New("engine")
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("docucred/engine")
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL is the engine root that relative download links resolve against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CircuitState reports the breaker state for readiness checks.
func (c *Client) CircuitState() circuit.State {
	return c.breaker.State()
}

// Extract sends the document to the recognition engine with quality scoring on.
func (c *Client) Extract(ctx context.Context, upload *docmodels.Upload) (*docmodels.Extraction, error) {
	body, contentType, err := documentForm(upload, map[string]string{"include_quality_score": "true"})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build extraction request")
	}
	var out docmodels.Extraction
	if err := c.call(ctx, metrics.StageExtraction, pathExtract, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify sends the document and the claimed values to the matching engine.
func (c *Client) Verify(ctx context.Context, upload *docmodels.Upload, claimed *docmodels.FieldMap) (*docmodels.VerificationResult, error) {
	submitted, err := claimed.Serialize()
	if err != nil {
		return nil, err
	}
	body, contentType, err := documentForm(upload, map[string]string{"submitted_data": submitted})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build verification request")
	}
	var out docmodels.VerificationResult
	if err := c.call(ctx, metrics.StageVerification, pathVerify, body, contentType, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Issue asks the signing engine for a credential over the verified values.
func (c *Client) Issue(ctx context.Context, fileID string, verified *docmodels.FieldMap) (*issmodels.Credential, error) {
	data, err := verified.Serialize()
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("file_id", fileID)
	form.Set("verified_data", data)

	var out issmodels.Credential
	err = c.call(ctx, metrics.StageIssuance, pathIssue,
		strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, stage, path string, body io.Reader, contentType string, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "engine."+stage, trace.WithAttributes(
		attribute.String("engine.stage", stage),
		attribute.String("http.url", c.baseURL+path),
	))
	start := c.now()
	defer func() {
		c.metrics.ObserveUpstreamLatency(stage, c.now().Sub(start).Seconds())
		if err != nil {
			c.metrics.IncUpstreamFailure(stage)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create engine request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if !c.breaker.Allow() {
		return c.failure(stage, "engine unavailable (circuit open)", nil)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if callerCanceled(ctx) {
			c.breaker.Release()
			return c.failure(stage, "request canceled", err)
		}
		c.recordFailure(ctx)
		if isTimeout(ctx, err) {
			return c.failure(stage, "engine timed out", err)
		}
		return c.failure(stage, "engine unreachable", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxReplySize))
	if err != nil {
		if callerCanceled(ctx) {
			c.breaker.Release()
			return c.failure(stage, "request canceled", err)
		}
		c.recordFailure(ctx)
		return c.failure(stage, "failed to read engine response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 4xx means the engine is up and rejected the input.
		if resp.StatusCode >= 500 {
			c.recordFailure(ctx)
		} else {
			c.recordSuccess(ctx)
		}
		return c.failure(stage, fmt.Sprintf("engine returned %d: %s", resp.StatusCode, errorDetail(payload)), nil)
	}
	c.recordSuccess(ctx)

	if err := json.Unmarshal(payload, out); err != nil {
		return c.failure(stage, "malformed engine response", err)
	}
	return nil
}

func (c *Client) failure(stage, detail string, cause error) error {
	msg := stageFailure[stage] + ": " + detail
	if cause != nil {
		return dErrors.Wrap(cause, dErrors.CodeUpstream, msg)
	}
	return dErrors.New(dErrors.CodeUpstream, msg)
}

func (c *Client) recordFailure(ctx context.Context) {
	if change := c.breaker.RecordFailure(); change.Opened() {
		c.metrics.SetCircuitOpen(true)
		c.logger.WarnContext(ctx, "engine circuit opened", "circuit", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if change := c.breaker.RecordSuccess(); change.Closed() {
		c.metrics.SetCircuitOpen(false)
		c.logger.InfoContext(ctx, "engine circuit closed", "circuit", c.breaker.Name())
	}
}

// callerCanceled reports a call abandoned by its caller. It says nothing
// about engine health.
func callerCanceled(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.Canceled)
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// errorDetail extracts the engine's {"detail": ...} message, falling back to
// the raw body.
func errorDetail(payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	detail := strings.TrimSpace(string(payload))
	if err := json.Unmarshal(payload, &body); err == nil && len(body.Detail) > 0 {
		var text string
		if json.Unmarshal(body.Detail, &text) == nil {
			detail = text
		} else {
			detail = string(body.Detail)
		}
	}
	if detail == "" {
		detail = "empty response"
	}
	if len(detail) > maxDetailLen {
		cut := maxDetailLen
		for cut > 0 && !utf8.RuneStart(detail[cut]) {
			cut--
		}
		detail = detail[:cut] + "..."
	}
	return detail
}

func documentForm(upload *docmodels.Upload, fields map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", upload.Filename)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Bytes); err != nil {
		return nil, "", err
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}
