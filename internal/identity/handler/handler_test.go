package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"docucred/internal/identity/handler/mocks"
	"docucred/internal/identity/models"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/requestcontext"
)

type IdentityHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestIdentityHandlerSuite(t *testing.T) {
	suite.Run(t, new(IdentityHandlerSuite))
}

func (s *IdentityHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	h := New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.router = chi.NewRouter()
	h.RegisterPublic(s.router)
	h.Register(s.router)
}

func (s *IdentityHandlerSuite) do(req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	var body map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func (s *IdentityHandlerSuite) TestRegister() {
	s.Run("trims username and returns 201", func() {
		s.service.EXPECT().
			Register(gomock.Any(), &models.RegisterRequest{Username: "alice", Password: "pw"}).
			Return(&models.UserSummary{ID: "u-1", Username: "alice"}, nil)

		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"  alice ","password":"pw"}`)))

		s.Equal(http.StatusCreated, w.Code)
		s.Equal("alice", body["username"])
		s.NotContains(w.Body.String(), "pw")
	})

	s.Run("validation failure never reaches service", func() {
		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"alice"}`)))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("validation_failed", body["error"])
	})

	s.Run("duplicate username is 400", func() {
		s.service.EXPECT().Register(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeDuplicateUsername, "username already taken"))

		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{"username":"alice","password":"pw"}`)))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("duplicate_username", body["error"])
	})

	s.Run("malformed JSON", func() {
		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(`{`)))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("bad_request", body["error"])
	})
}

func (s *IdentityHandlerSuite) TestLogin() {
	s.Run("returns token", func() {
		s.service.EXPECT().Login(gomock.Any(), &models.LoginRequest{Username: "alice", Password: "pw"}).
			Return(&models.TokenResult{Token: "t", TokenType: "Bearer", ExpiresIn: 3600}, nil)

		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"pw"}`)))

		s.Equal(http.StatusOK, w.Code)
		s.Equal("t", body["token"])
		s.Equal("Bearer", body["token_type"])
		s.InDelta(3600, body["expires_in"], 0)
	})

	s.Run("invalid credentials is 400", func() {
		s.service.EXPECT().Login(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidCredentials, "invalid username or password"))

		w, body := s.do(httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"username":"alice","password":"x"}`)))

		s.Equal(http.StatusBadRequest, w.Code)
		s.Equal("invalid_credentials", body["error"])
	})
}

func (s *IdentityHandlerSuite) TestMe() {
	userID := id.NewUserID()
	s.service.EXPECT().Me(gomock.Any(), userID).Return(&models.UserSummary{ID: userID.String(), Username: "alice"}, nil)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req = req.WithContext(requestcontext.WithUser(context.Background(), userID, "alice"))
	w, body := s.do(req)

	s.Equal(http.StatusOK, w.Code)
	s.Equal(userID.String(), body["id"])
}
