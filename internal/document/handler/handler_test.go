package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docucred/internal/document/handler/mocks"
	"docucred/internal/document/models"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/requestcontext"
	"docucred/pkg/testutil"
)

type DocumentHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
	userID  id.UserID
	hash    models.Fingerprint
}

func TestDocumentHandlerSuite(t *testing.T) {
	suite.Run(t, new(DocumentHandlerSuite))
}

func (s *DocumentHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.userID = testutil.TestIDs.UserID1
	s.hash = models.ComputeFingerprint(testutil.PNGHeader)

	h := New(s.service, 1<<20, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *DocumentHandlerSuite) authed(req *http.Request) *http.Request {
	return req.WithContext(requestcontext.WithUser(req.Context(), s.userID, "alice"))
}

func (s *DocumentHandlerSuite) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func (s *DocumentHandlerSuite) multipartRequest(path, filename string, data []byte, fields map[string]string) *http.Request {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		s.Require().NoError(err)
		_, err = part.Write(data)
		s.Require().NoError(err)
	}
	for k, v := range fields {
		s.Require().NoError(mw.WriteField(k, v))
	}
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return s.authed(req)
}

func (s *DocumentHandlerSuite) TestExtract() {
	s.Run("passes the uploaded bytes to the service", func() {
		s.service.EXPECT().Extract(gomock.Any(), s.userID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.UserID, upload *models.Upload) (*models.ExtractionResult, error) {
				s.Equal("card.png", upload.Filename)
				s.Equal(testutil.PNGHeader, upload.Bytes)
				return &models.ExtractionResult{FileID: "file-1", Fingerprint: s.hash, TotalPages: 1, QualityScores: []models.QualityScore{}}, nil
			})

		w, body := s.do(s.multipartRequest("/ocr/extract", "card.png", testutil.PNGHeader, nil))

		s.Equal(http.StatusOK, w.Code)
		s.Equal(s.hash.String(), body["imageHash"])
		s.Equal("file-1", body["file_id"])
	})

	s.Run("missing file part", func() {
		w, body := s.do(s.multipartRequest("/ocr/extract", "", nil, map[string]string{"other": "x"}))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", body["error"])
	})

	s.Run("not multipart", func() {
		req := s.authed(httptest.NewRequest(http.MethodPost, "/ocr/extract", strings.NewReader(`{}`)))
		req.Header.Set("Content-Type", "application/json")

		w, body := s.do(req)

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", body["error"])
	})

	s.Run("upstream failure is 500 with the detail", func() {
		s.service.EXPECT().Extract(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeUpstream, "text extraction failed: engine returned 503"))

		w, body := s.do(s.multipartRequest("/ocr/extract", "card.png", testutil.PNGHeader, nil))

		s.Equal(http.StatusInternalServerError, w.Code)
		s.Equal("upstream_failure", body["error"])
		s.Contains(body["error_description"], "503")
	})

	s.Run("no user in context", func() {
		req := httptest.NewRequest(http.MethodPost, "/ocr/extract", strings.NewReader(""))
		w, _ := s.do(req)
		s.Equal(http.StatusInternalServerError, w.Code)
	})
}

func (s *DocumentHandlerSuite) TestVerify() {
	s.Run("parses submitted_data", func() {
		s.service.EXPECT().Verify(gomock.Any(), s.userID, gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, _ id.UserID, _ *models.Upload, claimed *models.FieldMap) (*models.VerificationResult, error) {
				name, ok := claimed.Get(models.FieldName)
				s.True(ok)
				s.Equal("Jane Doe", name)
				return &models.VerificationResult{OverallScore: 0.9, OverallMatch: true, Mismatches: []string{}}, nil
			})

		w, body := s.do(s.multipartRequest("/ocr/verify", "card.png", testutil.PNGHeader,
			map[string]string{"submitted_data": `{"name":"Jane Doe"}`}))

		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, body["overall_match"])
		s.InDelta(0.9, body["overall_score"], 0.0001)
	})

	s.Run("missing submitted_data", func() {
		w, body := s.do(s.multipartRequest("/ocr/verify", "card.png", testutil.PNGHeader, nil))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("submitted_data is required", body["error_description"])
	})

	s.Run("submitted_data not an object", func() {
		w, body := s.do(s.multipartRequest("/ocr/verify", "card.png", testutil.PNGHeader,
			map[string]string{"submitted_data": `[1,2]`}))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", body["error"])
	})
}

func (s *DocumentHandlerSuite) TestSaveCorrection() {
	s.Run("returns 201 with the entry", func() {
		s.service.EXPECT().SaveCorrection(gomock.Any(), s.userID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.UserID, req *models.CorrectionRequest) (*models.EntryResponse, error) {
				fp, fields, edits := req.Parsed()
				s.Equal(s.hash, fp)
				s.NotNil(fields)
				s.NotNil(edits)
				return &models.EntryResponse{ID: 7, Fingerprint: fp.String(), OCRText: json.RawMessage(`{"name":"A"}`)}, nil
			})

		body := `{"imageHash":"` + s.hash.String() + `","ocrText":{"name":"A"},"userEdits":{"name":"B"}}`
		w, res := s.do(s.authed(httptest.NewRequest(http.MethodPost, "/ocr/cache", strings.NewReader(body))))

		s.Equal(http.StatusCreated, w.Code)
		s.InDelta(7, res["id"], 0)
	})

	s.Run("bad fingerprint never reaches service", func() {
		body := `{"imageHash":"not-a-hash","ocrText":{"name":"A"}}`
		w, res := s.do(s.authed(httptest.NewRequest(http.MethodPost, "/ocr/cache", strings.NewReader(body))))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", res["error"])
	})

	s.Run("missing ocrText", func() {
		body := `{"imageHash":"` + s.hash.String() + `"}`
		w, res := s.do(s.authed(httptest.NewRequest(http.MethodPost, "/ocr/cache", strings.NewReader(body))))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", res["error"])
	})
}

func (s *DocumentHandlerSuite) TestGetLatest() {
	s.Run("found", func() {
		s.service.EXPECT().GetLatest(gomock.Any(), s.userID, s.hash).
			Return(&models.Lookup{Found: true, EntryResponse: &models.EntryResponse{
				ID: 3, Fingerprint: s.hash.String(), OCRText: json.RawMessage(`{"name":"Jane Doe"}`),
			}}, nil)

		w, body := s.do(s.authed(httptest.NewRequest(http.MethodGet, "/ocr/"+s.hash.String(), nil)))

		s.Equal(http.StatusOK, w.Code)
		s.Equal(true, body["found"])
		s.Equal(s.hash.String(), body["imageHash"])
		s.Equal(map[string]any{"name": "Jane Doe"}, body["ocrText"])
		s.NotContains(body, "entry")
	})

	s.Run("not found is a normal outcome", func() {
		s.service.EXPECT().GetLatest(gomock.Any(), s.userID, s.hash).Return(&models.Lookup{Found: false}, nil)

		w, body := s.do(s.authed(httptest.NewRequest(http.MethodGet, "/ocr/"+s.hash.String(), nil)))

		s.Equal(http.StatusOK, w.Code)
		s.Equal(map[string]any{"found": false}, body)
	})

	s.Run("malformed hash", func() {
		w, body := s.do(s.authed(httptest.NewRequest(http.MethodGet, "/ocr/XYZ", nil)))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", body["error"])
	})
}

func (s *DocumentHandlerSuite) TestHistory() {
	s.service.EXPECT().History(gomock.Any(), s.userID, s.hash).Return(&models.History{Entries: []*models.EntryResponse{
		{ID: 2, Fingerprint: s.hash.String(), OCRText: json.RawMessage(`{}`)},
		{ID: 1, Fingerprint: s.hash.String(), OCRText: json.RawMessage(`{}`)},
	}}, nil)

	w, body := s.do(s.authed(httptest.NewRequest(http.MethodGet, "/ocr/"+s.hash.String()+"/history", nil)))

	s.Equal(http.StatusOK, w.Code)
	s.Len(body["entries"], 2)
}
