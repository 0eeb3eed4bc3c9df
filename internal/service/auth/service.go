package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/orderdesk/internal/auth"
	"github.com/Additional-Code/orderdesk/internal/cache"
	"github.com/Additional-Code/orderdesk/internal/config"
	"github.com/Additional-Code/orderdesk/internal/dto"
	"github.com/Additional-Code/orderdesk/internal/entity"
	repo "github.com/Additional-Code/orderdesk/internal/repository/user"
	"github.com/Additional-Code/orderdesk/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/orderdesk/service/auth")

// Service implements registration, login, and bearer token resolution.
type Service struct {
	repo     *repo.Repository
	hasher   *auth.Hasher
	tokens   *auth.TokenIssuer
	cache    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Hasher     *auth.Hasher
	Tokens     *auth.TokenIssuer
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	return &Service{
		repo:     p.Repository,
		hasher:   p.Hasher,
		tokens:   p.Tokens,
		cache:    p.Cache,
		cacheTTL: p.Config.Cache.DefaultTTL,
		logger:   p.Logger,
	}
}

// Register creates a new account. A duplicate email is rejected with a
// 400 regardless of the password supplied.
func (s *Service) Register(ctx context.Context, name, email, password string) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Register")
	defer span.End()

	exists, err := s.repo.ExistsByEmail(ctx, email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to check registration", errorbank.WithCause(err))
	}
	if exists {
		return nil, errorbank.BadRequest("email already registered")
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "hashing error")
		return nil, err
	}

	user := &entity.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, user); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to create user", errorbank.WithCause(err))
	}

	s.logger.Info("user registered", zap.Int64("id", user.ID), zap.String("email", user.Email))
	return user, nil
}

// Login verifies credentials and mints a bearer token. Unknown email
// and wrong password produce the same 401; the hash comparison still
// runs against a throwaway hash on unknown emails so the two paths take
// comparable time.
func (s *Service) Login(ctx context.Context, email, password string) (dto.TokenResponse, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Login")
	defer span.End()

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.hasher.Verify(password, "$2a$10$000000000000000000000uGyUWBmXrNBLDrFxoTMJZoXqZAbsOLCO")
			return dto.TokenResponse{}, errorbank.Unauthenticated("incorrect email or password")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return dto.TokenResponse{}, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		s.logger.Warn("login failed", zap.String("email", email))
		return dto.TokenResponse{}, errorbank.Unauthenticated("incorrect email or password")
	}

	token, _, err := s.tokens.Sign(user.Email)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "signing error")
		return dto.TokenResponse{}, err
	}

	s.logger.Info("user logged in", zap.String("email", user.Email))
	return dto.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int(s.tokens.TTL().Minutes()),
	}, nil
}

// Resolve maps a bearer token to the authenticated user. A missing
// subject claim and a user deleted since the token was minted both
// collapse to Unauthenticated; account existence is never leaked.
func (s *Service) Resolve(ctx context.Context, token string) (*entity.User, error) {
	ctx, span := serviceTracer.Start(ctx, "AuthService.Resolve")
	defer span.End()

	subject, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	if subject == "" {
		return nil, errorbank.Unauthenticated("could not validate credentials")
	}

	if user, err := s.getFromCache(ctx, subject); err == nil {
		return user, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("users cache read failed", zap.Error(err))
	}

	user, err := s.repo.GetByEmail(ctx, subject)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.Unauthenticated("could not validate credentials")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, errorbank.Internal("failed to load user", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, user); err != nil {
		s.logger.Warn("users cache write failed", zap.Error(err))
	}

	return user, nil
}

func (s *Service) cacheKey(email string) string {
	return fmt.Sprintf("users:email:%s", email)
}

func (s *Service) getFromCache(ctx context.Context, email string) (*entity.User, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(email))
	if err != nil {
		return nil, err
	}
	var user entity.User
	if err := json.Unmarshal(bytes, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Service) storeInCache(ctx context.Context, user *entity.User) error {
	if s.cache == nil || user == nil {
		return nil
	}
	bytes, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(user.Email), bytes, s.cacheTTL)
}
