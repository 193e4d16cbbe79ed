package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/FunkyDevv/ITRACK-sub000/internal/apperr"
	"github.com/FunkyDevv/ITRACK-sub000/internal/directory"
)

// ErrInvalidCredentials covers unknown emails, wrong passwords and bad
// refresh tokens alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

var validate = validator.New()

// LoginRequest is the body of a password login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// Options configures token issuance.
type Options struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Service authenticates directory users and issues tokens.
type Service struct {
	users directory.Directory
	opts  Options
	now   func() time.Time
}

// NewService creates an auth service.
func NewService(users directory.Directory, opts Options) *Service {
	return &Service{users: users, opts: opts, now: time.Now}
}

// Login checks a password against the stored bcrypt hash.
func (s *Service) Login(ctx context.Context, req LoginRequest) (TokenPair, directory.User, error) {
	if err := validate.Struct(req); err != nil {
		return TokenPair{}, directory.User{}, apperr.Wrap(err, apperr.KindValidation, "email and password are required")
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, directory.ErrUserNotFound) {
		return TokenPair{}, directory.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, directory.User{}, apperr.Backend(err, "load user")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Ctx(ctx).Info().Str("user_id", user.ID).Msg("login rejected")
		return TokenPair{}, directory.User{}, ErrInvalidCredentials
	}
	pair, err := s.issue(user)
	return pair, user, err
}

// Refresh exchanges a refresh token for a new pair. The user is re-read so
// role and teacher changes take effect.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := Parse(refreshToken, s.opts.SigningKey, s.opts.Issuer)
	if err != nil || claims.TokenType != tokenRefresh {
		return TokenPair{}, ErrInvalidCredentials
	}
	user, err := s.users.FindByID(ctx, claims.Subject)
	if errors.Is(err, directory.ErrUserNotFound) {
		return TokenPair{}, ErrInvalidCredentials
	}
	if err != nil {
		return TokenPair{}, apperr.Backend(err, "load user")
	}
	return s.issue(user)
}

func (s *Service) issue(u directory.User) (TokenPair, error) {
	id := Identity{Subject: u.ID, Role: string(u.Role), TeacherID: u.TeacherID}
	return Issue(id, s.opts.Issuer, s.opts.SigningKey, s.opts.AccessTTL, s.opts.RefreshTTL, s.now())
}

// HashPassword returns a bcrypt hash suitable for the users table.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}
