package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/geocoder89/collegehub/internal/auth"
	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/observability"
	"github.com/geocoder89/collegehub/internal/security"
)

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	Issue(userID, role string) (string, error)
	Verify(token string) (*auth.Claims, error)
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Role     user.Role
}

type LoginInput struct {
	Email    string
	Password string
	Role     user.Role
}

type Result struct {
	Token string
	User  user.PublicView
}

type Service struct {
	users  UserStore
	tokens TokenIssuer
	log    *slog.Logger
	prom   *observability.Prom
}

func NewService(users UserStore, tokens TokenIssuer, log *slog.Logger, prom *observability.Prom) *Service {
	if log == nil {
		log = slog.Default()
	}

	return &Service{
		users:  users,
		tokens: tokens,
		log:    log,
		prom:   prom,
	}
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (Result, error) {
	name := strings.TrimSpace(in.Name)
	email := user.NormalizeEmail(in.Email)

	if name == "" || email == "" || in.Password == "" || !in.Role.IsValid() {
		s.prom.ObserveAuth("register", "invalid")
		return Result{}, ErrValidation
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		s.log.ErrorContext(ctx, "hash password failed", "err", err)
		s.prom.ObserveAuth("register", "error")
		return Result{}, ErrInternal
	}

	u, err := s.users.Create(ctx, name, email, hash, in.Role)
	if err != nil {
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			s.prom.ObserveAuth("register", "duplicate")
			return Result{}, ErrDuplicateEmail
		}

		s.log.ErrorContext(ctx, "create user failed", "err", err)
		s.prom.ObserveAuth("register", "error")
		return Result{}, ErrInternal
	}

	res, err := s.authorize(ctx, u)
	if err != nil {
		s.prom.ObserveAuth("register", "error")
		return Result{}, err
	}

	s.log.InfoContext(ctx, "user registered", "user_id", u.ID, "role", u.Role)
	s.prom.ObserveAuth("register", "ok")
	return res, nil
}

// Login rejects an unknown email, a role mismatch and a wrong password with
// the same ErrInvalidCredentials so callers cannot tell which check failed.
func (s *Service) Login(ctx context.Context, in LoginInput) (Result, error) {
	email := user.NormalizeEmail(in.Email)

	if email == "" || in.Password == "" {
		s.prom.ObserveAuth("login", "invalid")
		return Result{}, ErrValidation
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			security.BurnCompare(in.Password)
			s.prom.ObserveAuth("login", "rejected")
			return Result{}, ErrInvalidCredentials
		}

		s.log.ErrorContext(ctx, "lookup user failed", "err", err)
		s.prom.ObserveAuth("login", "error")
		return Result{}, ErrInternal
	}

	passwordErr := security.CheckPassword(u.PasswordHash, in.Password)

	if passwordErr != nil || u.Role != in.Role {
		s.prom.ObserveAuth("login", "rejected")
		return Result{}, ErrInvalidCredentials
	}

	res, err := s.authorize(ctx, u)
	if err != nil {
		s.prom.ObserveAuth("login", "error")
		return Result{}, err
	}

	s.prom.ObserveAuth("login", "ok")
	return res, nil
}

// Profile verifies token and returns the public view of the user it names.
func (s *Service) Profile(ctx context.Context, token string) (user.PublicView, error) {
	if token == "" {
		s.prom.ObserveAuth("profile", "rejected")
		return user.PublicView{}, ErrUnauthorized
	}

	claims, err := s.tokens.Verify(token)
	if err != nil {
		s.log.DebugContext(ctx, "token rejected", "err", err)
		s.prom.ObserveAuth("profile", "rejected")
		return user.PublicView{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			s.prom.ObserveAuth("profile", "rejected")
			return user.PublicView{}, ErrUnauthorized
		}

		s.log.ErrorContext(ctx, "lookup user failed", "err", err)
		s.prom.ObserveAuth("profile", "error")
		return user.PublicView{}, ErrInternal
	}

	s.prom.ObserveAuth("profile", "ok")
	return u.Public(), nil
}

// Lookup returns any user's public view. Callers gate it on role.
func (s *Service) Lookup(ctx context.Context, id string) (user.PublicView, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.PublicView{}, ErrNotFound
		}

		s.log.ErrorContext(ctx, "lookup user failed", "err", err)
		return user.PublicView{}, ErrInternal
	}

	return u.Public(), nil
}

func (s *Service) authorize(ctx context.Context, u user.User) (Result, error) {
	token, err := s.tokens.Issue(u.ID, string(u.Role))
	if err != nil {
		s.log.ErrorContext(ctx, "issue token failed", "err", err)
		return Result{}, ErrInternal
	}

	return Result{Token: token, User: u.Public()}, nil
}
