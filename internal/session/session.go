// Package session owns the signed-in identity of one client process.
//
// A Session is the only writer of that identity. Login, Logout and Bootstrap
// are the transitions; everything else reads.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/geocoder89/collegehub/internal/client"
	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/tokenstore"
)

type View string

const (
	ViewLanding View = "/dashboard"
	ViewEntry   View = "/login"
)

const DefaultBootstrapTimeout = 5 * time.Second

var ErrAlreadyBootstrapped = errors.New("session already bootstrapped")

type API interface {
	Register(ctx context.Context, in client.RegisterRequest) (client.AuthResponse, error)
	Login(ctx context.Context, in client.LoginRequest) (client.AuthResponse, error)
	Profile(ctx context.Context, token string) (user.PublicView, error)
}

type Navigator interface {
	Navigate(view View)
}

type NavigatorFunc func(View)

func (f NavigatorFunc) Navigate(v View) { f(v) }

type Session struct {
	api    API
	tokens tokenstore.Store
	nav    Navigator
	log    *slog.Logger

	bootstrapTimeout time.Duration

	mu           sync.RWMutex
	current      *user.PublicView
	bootstrapped bool
}

type Option func(*Session)

func WithBootstrapTimeout(d time.Duration) Option {
	return func(s *Session) {
		s.bootstrapTimeout = d
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Session) {
		s.log = log
	}
}

func New(api API, tokens tokenstore.Store, nav Navigator, opts ...Option) *Session {
	s := &Session{
		api:              api,
		tokens:           tokens,
		nav:              nav,
		log:              slog.Default(),
		bootstrapTimeout: DefaultBootstrapTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.nav == nil {
		s.nav = NavigatorFunc(func(View) {})
	}
	return s
}

// Login sets the identity and moves to the landing view.
func (s *Session) Login(u user.PublicView) {
	s.mu.Lock()
	s.current = &u
	s.mu.Unlock()

	s.nav.Navigate(ViewLanding)
}

// Logout clears the identity, discards the stored token and moves to the
// entry view. The token stays valid on the server until it expires.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	err := s.tokens.Clear(ctx)

	s.nav.Navigate(ViewEntry)

	if err != nil {
		return fmt.Errorf("discard token: %w", err)
	}
	return nil
}

// Bootstrap re-derives the identity from a stored token. It runs once per
// Session; any failure discards the token and leaves the session signed out.
func (s *Session) Bootstrap(ctx context.Context) error {
	s.mu.Lock()
	if s.bootstrapped {
		s.mu.Unlock()
		return ErrAlreadyBootstrapped
	}
	s.bootstrapped = true
	s.mu.Unlock()

	token, err := s.tokens.Load(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}
	if token == "" {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, s.bootstrapTimeout)
	defer cancel()

	profile, err := s.api.Profile(pctx, token)
	if err != nil {
		if client.IsUnauthorized(err) {
			s.log.Debug("stored token rejected, signing out", "err", err)
		} else {
			s.log.Warn("profile check failed, signing out", "err", err)
		}

		if clearErr := s.tokens.Clear(ctx); clearErr != nil {
			return fmt.Errorf("discard token: %w", clearErr)
		}
		return nil
	}

	s.mu.Lock()
	s.current = &profile
	s.mu.Unlock()

	return nil
}

// SignIn logs in against the API, stores the token and calls Login.
func (s *Session) SignIn(ctx context.Context, in client.LoginRequest) (user.PublicView, error) {
	res, err := s.api.Login(ctx, in)
	if err != nil {
		return user.PublicView{}, err
	}

	return s.adopt(ctx, res)
}

// SignUp registers against the API, stores the token and calls Login.
func (s *Session) SignUp(ctx context.Context, in client.RegisterRequest) (user.PublicView, error) {
	res, err := s.api.Register(ctx, in)
	if err != nil {
		return user.PublicView{}, err
	}

	return s.adopt(ctx, res)
}

func (s *Session) adopt(ctx context.Context, res client.AuthResponse) (user.PublicView, error) {
	if err := s.tokens.Save(ctx, res.Token); err != nil {
		return user.PublicView{}, fmt.Errorf("store token: %w", err)
	}

	s.Login(res.User)
	return res.User, nil
}

func (s *Session) Current() (user.PublicView, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return user.PublicView{}, false
	}
	return *s.current, true
}

func (s *Session) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}
