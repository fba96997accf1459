package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"docucred/internal/identity/models"
	jwttoken "docucred/internal/jwt_token"
	"docucred/internal/platform/metrics"
	id "docucred/pkg/domain"
	dErrors "docucred/pkg/domain-errors"
	"docucred/pkg/platform/sentinel"
	"docucred/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/service-mocks.go -package=mocks UserStore,TokenIssuer,PasswordHasher

// UserStore persists accounts.
// Error Contract: Find methods return sentinel.ErrNotFound; Create returns
// sentinel.ErrAlreadyUsed for a taken username.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID id.UserID, username string) (jwttoken.IssuedToken, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) error
}

const tokenTypeBearer = "Bearer"

// invalidCredentials is shared by every login rejection so responses do not
// reveal whether the username exists.
var invalidCredentials = dErrors.New(dErrors.CodeInvalidCredentials, "invalid username or password")

type Service struct {
	users   UserStore
	tokens  TokenIssuer
	hasher  PasswordHasher
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
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

func New(users UserStore, tokens TokenIssuer, hasher PasswordHasher, opts ...Option) *Service {
	svc := &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc
}

// Register creates an account. The request must already be sanitized and validated.
func (s *Service) Register(ctx context.Context, req *models.RegisterRequest) (*models.UserSummary, error) {
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           id.NewUserID(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeDuplicateUsername, "username already taken")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	s.metrics.IncUsersRegistered()
	s.logger.InfoContext(ctx, "user registered",
		"user_id", user.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return user.Summary(), nil
}

// Login exchanges credentials for a bearer token.
func (s *Service) Login(ctx context.Context, req *models.LoginRequest) (*models.TokenResult, error) {
	user, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.rejectLogin(ctx, "unknown username")
			return nil, invalidCredentials
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}

	if err := s.hasher.Verify(req.Password, user.PasswordHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidCredentials) {
			s.rejectLogin(ctx, "password mismatch")
			return nil, invalidCredentials
		}
		return nil, err
	}

	issued, err := s.tokens.GenerateAccessToken(user.ID, user.Username)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	return &models.TokenResult{
		Token:     issued.Token,
		TokenType: tokenTypeBearer,
		ExpiresIn: int64(issued.ExpiresAt.Sub(s.now()).Round(time.Second).Seconds()),
	}, nil
}

// Me returns the authenticated account.
func (s *Service) Me(ctx context.Context, userID id.UserID) (*models.UserSummary, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// The token outlived the account, e.g. after a memory-store restart.
			return nil, dErrors.New(dErrors.CodeUnauthorized, "account no longer exists")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user.Summary(), nil
}

func (s *Service) rejectLogin(ctx context.Context, reason string) {
	s.metrics.IncLoginFailures()
	s.logger.WarnContext(ctx, "login rejected",
		"reason", reason,
		"request_id", requestcontext.RequestID(ctx),
	)
}
