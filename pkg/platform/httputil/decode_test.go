package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "docucred/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type plainBody struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// checkedBody trims its name and requires it, failing with a plain error.
type checkedBody struct {
	Name  string `json:"name"`
	steps []string
}

func (b *checkedBody) Sanitize() {
	b.steps = append(b.steps, "sanitize")
	b.Name = strings.TrimSpace(b.Name)
}

func (b *checkedBody) Validate() error {
	b.steps = append(b.steps, "validate")
	if b.Name == "" {
		return errors.New("name is required")
	}
	return nil
}

// codedBody fails validation with its own domain code.
type codedBody struct {
	ID string `json:"id"`
}

func (b *codedBody) Validate() error {
	if b.ID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "id is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

type DecodeSuite struct {
	suite.Suite
	w *httptest.ResponseRecorder
}

func TestDecodeSuite(t *testing.T) {
	suite.Run(t, new(DecodeSuite))
}

func (s *DecodeSuite) SetupTest() {
	s.w = httptest.NewRecorder()
}

func (s *DecodeSuite) post(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
}

func (s *DecodeSuite) errorBody() map[string]string {
	return decodeError(s.T(), s.w)
}

func (s *DecodeSuite) TestDecodeJSON() {
	got, ok := DecodeJSON[plainBody](s.w, s.post(`{"name":"alice","value":3}`), discardLogger())

	s.True(ok)
	s.Equal(&plainBody{Name: "alice", Value: 3}, got)
}

func (s *DecodeSuite) TestDecodeJSONRejects() {
	cases := []struct {
		name string
		body string
		desc string
	}{
		{name: "malformed", body: `{invalid`, desc: "invalid request body"},
		{name: "empty", body: ``, desc: "request body is required"},
		{name: "two values", body: `{"name":"a"} {"name":"b"}`, desc: "request body must hold a single JSON value"},
		{name: "wrong type", body: `{"value":"three"}`, desc: "invalid request body"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.SetupTest()

			got, ok := DecodeJSON[plainBody](s.w, s.post(tc.body), discardLogger())

			s.False(ok)
			s.Nil(got)
			s.Equal(http.StatusBadRequest, s.w.Code)
			s.Equal("bad_request", s.errorBody()["error"])
			s.Equal(tc.desc, s.errorBody()["error_description"])
		})
	}
}

func (s *DecodeSuite) TestDecodeAndPrepareSanitizesFirst() {
	got, ok := DecodeAndPrepare[checkedBody](s.w, s.post(`{"name":"  bob  "}`), discardLogger())

	s.Require().True(ok)
	s.Equal("bob", got.Name)
	s.Equal([]string{"sanitize", "validate"}, got.steps)
}

func (s *DecodeSuite) TestDecodeAndPrepareBlankAfterTrim() {
	_, ok := DecodeAndPrepare[checkedBody](s.w, s.post(`{"name":"   "}`), discardLogger())

	s.False(ok)
	s.Equal(http.StatusBadRequest, s.w.Code)
	s.Equal("validation_failed", s.errorBody()["error"])
	s.Equal("name is required", s.errorBody()["error_description"])
}

func (s *DecodeSuite) TestDecodeAndPrepareKeepsDomainCode() {
	_, ok := DecodeAndPrepare[codedBody](s.w, s.post(`{"id":""}`), discardLogger())

	s.False(ok)
	s.Equal("bad_request", s.errorBody()["error"])
	s.Equal("id is required", s.errorBody()["error_description"])
}

func (s *DecodeSuite) TestDecodeAndPrepareStopsOnDecodeError() {
	_, ok := DecodeAndPrepare[checkedBody](s.w, s.post(`nope`), discardLogger())

	s.False(ok)
	s.Equal("bad_request", s.errorBody()["error"])
}

func TestPrepareRequest(t *testing.T) {
	assert.NoError(t, PrepareRequest(&checkedBody{Name: "x"}))
	assert.NoError(t, PrepareRequest(&plainBody{}))

	err := PrepareRequest(&checkedBody{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	assert.True(t, dErrors.HasCode(PrepareRequest(&codedBody{}), dErrors.CodeBadRequest))
}
