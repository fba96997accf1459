package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docucred/internal/document/models"
	"docucred/internal/document/service/mocks"
	"docucred/internal/document/store"
	"docucred/internal/platform/metrics"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	fixtures "docucred/pkg/testutil"
)

type DocumentServiceSuite struct {
	suite.Suite
	ctx       context.Context
	now       time.Time
	store     *store.InMemoryStore
	extractor *mocks.MockExtractor
	matcher   *mocks.MockMatcher
	metrics   *metrics.Metrics
	service   *Service
	alice     id.UserID
	bob       id.UserID
	upload    *models.Upload
}

func TestDocumentServiceSuite(t *testing.T) {
	suite.Run(t, new(DocumentServiceSuite))
}

func (s *DocumentServiceSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.ctx = context.Background()
	s.now = time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)
	s.store = store.NewInMemory()
	s.extractor = mocks.NewMockExtractor(ctrl)
	s.matcher = mocks.NewMockMatcher(ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.service = New(s.store, s.extractor, s.matcher,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(s.metrics),
		WithClock(func() time.Time { return s.now }),
	)
	s.alice = fixtures.TestIDs.UserID1
	s.bob = fixtures.TestIDs.UserID2
	s.upload = &models.Upload{Filename: "card.png", ContentType: "image/png", Bytes: fixtures.PNGHeader}
}

func (s *DocumentServiceSuite) fields(text string) *models.FieldMap {
	m, err := models.ParseFieldMap(text)
	s.Require().NoError(err)
	return m
}

func (s *DocumentServiceSuite) extraction(text string) *models.Extraction {
	return &models.Extraction{
		FileID:     "file-1",
		Fields:     *s.fields(text),
		TotalPages: 1,
		QualityScores: []models.QualityScore{
			{Page: 1, BlurScore: 120.5, BlurStatus: "sharp", OverallQuality: "good"},
		},
	}
}

func (s *DocumentServiceSuite) correction(hash models.Fingerprint, ocr, edits string) *models.CorrectionRequest {
	req := &models.CorrectionRequest{ImageHash: hash.String(), OCRText: []byte(ocr)}
	if edits != "" {
		req.UserEdits = []byte(edits)
	}
	req.Sanitize()
	s.Require().NoError(req.Validate())
	return req
}

func (s *DocumentServiceSuite) TestExtract() {
	s.Run("records fields under the document fingerprint", func() {
		s.extractor.EXPECT().Extract(gomock.Any(), s.upload).Return(s.extraction(`{"name":"Jane Doe","age":34}`), nil)

		res, err := s.service.Extract(s.ctx, s.alice, s.upload)
		s.Require().NoError(err)

		fp := models.ComputeFingerprint(fixtures.PNGHeader)
		s.Equal(fp, res.Fingerprint)
		s.Equal("file-1", res.FileID)
		s.Equal(1, res.TotalPages)
		s.Len(res.QualityScores, 1)

		entry, err := s.store.Latest(s.ctx, fp, s.alice)
		s.Require().NoError(err)
		s.JSONEq(`{"name":"Jane Doe","age":34}`, entry.Fields)
		s.Nil(entry.Edits)
		s.True(s.now.Equal(entry.CreatedAt))
		s.Equal(1.0, testutil.ToFloat64(s.metrics.Extractions))
	})

	s.Run("every extraction appends an entry", func() {
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(s.extraction(`{"name":"again"}`), nil)

		_, err := s.service.Extract(s.ctx, s.alice, s.upload)
		s.Require().NoError(err)

		history, err := s.store.History(s.ctx, models.ComputeFingerprint(fixtures.PNGHeader), s.alice)
		s.Require().NoError(err)
		s.Len(history, 2)
	})
}

func (s *DocumentServiceSuite) TestExtractRejectsBeforeUpstream() {
	cases := []struct {
		name   string
		upload *models.Upload
	}{
		{"missing document", &models.Upload{Filename: "card.png"}},
		{"unsupported extension", &models.Upload{Filename: "card.gif", Bytes: fixtures.PNGHeader}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, err := s.service.Extract(s.ctx, s.alice, tc.upload)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}

	s.Run("over the configured limit", func() {
		svc := New(s.store, s.extractor, s.matcher, WithMaxUploadBytes(4))
		_, err := svc.Extract(s.ctx, s.alice, s.upload)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func (s *DocumentServiceSuite) TestExtractUpstreamFailureWritesNothing() {
	s.Run("plain error becomes upstream failure with detail", func() {
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(nil, errors.New("connection refused"))

		_, err := s.service.Extract(s.ctx, s.alice, s.upload)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
		s.Contains(err.Error(), "connection refused")
	})

	s.Run("domain error from the client is kept", func() {
		s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeTimeout, "recognition engine timed out"))

		_, err := s.service.Extract(s.ctx, s.alice, s.upload)
		s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
	})

	history, err := s.store.History(s.ctx, models.ComputeFingerprint(fixtures.PNGHeader), s.alice)
	s.Require().NoError(err)
	s.Empty(history)
}

func (s *DocumentServiceSuite) TestExtractStoreFailureIsInternal() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockStore(ctrl)
	svc := New(failing, s.extractor, s.matcher)

	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(s.extraction(`{"name":"J"}`), nil)
	failing.EXPECT().Record(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk full"))

	_, err := svc.Extract(s.ctx, s.alice, s.upload)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *DocumentServiceSuite) TestCorrectionPrecedence() {
	fp := models.ComputeFingerprint(fixtures.PNGHeader)
	s.extractor.EXPECT().Extract(gomock.Any(), gomock.Any()).Return(s.extraction(`{"name":"JANE D0E"}`), nil)
	_, err := s.service.Extract(s.ctx, s.alice, s.upload)
	s.Require().NoError(err)

	s.now = s.now.Add(time.Second)
	saved, err := s.service.SaveCorrection(s.ctx, s.alice, s.correction(fp, `{"name":"JANE D0E"}`, `{"name":"Jane Doe"}`))
	s.Require().NoError(err)
	s.JSONEq(`{"name":"Jane Doe"}`, string(saved.UserEdits))

	lookup, err := s.service.GetLatest(s.ctx, s.alice, fp)
	s.Require().NoError(err)
	s.True(lookup.Found)
	s.Equal(saved.ID, lookup.EntryResponse.ID)
	s.JSONEq(`{"name":"Jane Doe"}`, string(lookup.EntryResponse.UserEdits))

	history, err := s.service.History(s.ctx, s.alice, fp)
	s.Require().NoError(err)
	s.Require().Len(history.Entries, 2)
	s.Equal(saved.ID, history.Entries[0].ID)
}

func (s *DocumentServiceSuite) TestSaveCorrectionWithoutExtraction() {
	fp := models.ComputeFingerprint([]byte("never extracted"))

	saved, err := s.service.SaveCorrection(s.ctx, s.alice, s.correction(fp, `"{\"name\":\"A\"}"`, ""))
	s.Require().NoError(err)
	s.Equal(fp.String(), saved.Fingerprint)
	s.JSONEq(`{"name":"A"}`, string(saved.OCRText))
	s.Nil(saved.UserEdits)
}

func (s *DocumentServiceSuite) TestCrossUserIsolation() {
	fp := models.ComputeFingerprint(fixtures.PNGHeader)
	_, err := s.service.SaveCorrection(s.ctx, s.alice, s.correction(fp, `{"name":"Alice"}`, ""))
	s.Require().NoError(err)

	lookup, err := s.service.GetLatest(s.ctx, s.bob, fp)
	s.Require().NoError(err)
	s.False(lookup.Found)
	s.Nil(lookup.EntryResponse)

	history, err := s.service.History(s.ctx, s.bob, fp)
	s.Require().NoError(err)
	s.Empty(history.Entries)
}

func (s *DocumentServiceSuite) TestGetLatestStoreFailure() {
	ctrl := gomock.NewController(s.T())
	failing := mocks.NewMockStore(ctrl)
	svc := New(failing, s.extractor, s.matcher)
	failing.EXPECT().Latest(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := svc.GetLatest(s.ctx, s.alice, models.ComputeFingerprint(fixtures.PNGHeader))
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *DocumentServiceSuite) TestVerify() {
	claimed := s.fields(`{"name":"Jane Doe","dob":"1990-01-01"}`)

	s.Run("relays the matching engine verdict", func() {
		s.matcher.EXPECT().Verify(gomock.Any(), s.upload, claimed).Return(&models.VerificationResult{
			OverallScore: 0.92,
			OverallMatch: true,
			Fields: map[string]models.FieldVerification{
				"name": {Match: true, Confidence: 0.98},
			},
		}, nil)

		res, err := s.service.Verify(s.ctx, s.alice, s.upload, claimed)
		s.Require().NoError(err)
		s.Equal(0.92, res.OverallScore)
		s.True(res.OverallMatch)
		s.NotNil(res.Mismatches)
	})

	s.Run("missing claims", func() {
		_, err := s.service.Verify(s.ctx, s.alice, s.upload, &models.FieldMap{})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing document", func() {
		_, err := s.service.Verify(s.ctx, s.alice, &models.Upload{}, claimed)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("upstream failure", func() {
		s.matcher.EXPECT().Verify(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, errors.New("502 bad gateway"))

		_, err := s.service.Verify(s.ctx, s.alice, s.upload, claimed)
		s.True(dErrors.HasCode(err, dErrors.CodeUpstream))
	})

	history, err := s.store.History(s.ctx, models.ComputeFingerprint(fixtures.PNGHeader), s.alice)
	s.Require().NoError(err)
	s.Empty(history, "verification never writes the cache")
}
