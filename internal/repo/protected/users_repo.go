package protected

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/sony/gobreaker"
)

var ErrStoreUnavailable = errors.New("user store unavailable")

// callerGone marks a failure caused by the caller's context ending. It says
// nothing about store health, so the breaker counts it as a success.
type callerGone struct{ err error }

func (c callerGone) Error() string { return c.err.Error() }
func (c callerGone) Unwrap() error { return c.err }

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Ping(ctx context.Context) error
}

type Config struct {
	Timeout          time.Duration // hard timeout per store call
	FailureThreshold uint32        // consecutive failures to open circuit
	Cooldown         time.Duration // how long to stay open before half-open
	HalfOpenMaxCalls uint32        // trial calls allowed in half-open
}

// UsersRepo fails fast with ErrStoreUnavailable while the underlying store
// keeps erroring, instead of letting every request wait out a dial timeout.
type UsersRepo struct {
	inner UserStore
	cfg   Config
	cb    *gobreaker.CircuitBreaker
}

func NewUsersRepo(inner UserStore, cfg Config, onStateChange func(from, to string)) *UsersRepo {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 3
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	if cfg.HalfOpenMaxCalls == 0 {
		cfg.HalfOpenMaxCalls = 1
	}

	settings := gobreaker.Settings{
		Name:        "user-store",
		MaxRequests: cfg.HalfOpenMaxCalls,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			var gone callerGone
			return err == nil ||
				errors.As(err, &gone) ||
				errors.Is(err, user.ErrNotFound) ||
				errors.Is(err, user.ErrEmailAlreadyUsed)
		},
	}

	if onStateChange != nil {
		settings.OnStateChange = func(_ string, from, to gobreaker.State) {
			onStateChange(from.String(), to.String())
		}
	}

	return &UsersRepo{
		inner: inner,
		cfg:   cfg,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (r *UsersRepo) State() string {
	return r.cb.State().String()
}

func (r *UsersRepo) Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error) {
	return r.call(ctx, func(ctx context.Context) (user.User, error) {
		return r.inner.Create(ctx, name, email, passwordHash, role)
	})
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.call(ctx, func(ctx context.Context) (user.User, error) {
		return r.inner.GetByEmail(ctx, email)
	})
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.call(ctx, func(ctx context.Context) (user.User, error) {
		return r.inner.GetByID(ctx, id)
	})
}

// Ping bypasses the breaker so readiness reflects the real store.
func (r *UsersRepo) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// call runs fn through the breaker. Only store-side faults count against
// it; a caller that has already gone away never reaches the breaker, and
// one that leaves mid-call is recorded as a success.
func (r *UsersRepo) call(ctx context.Context, fn func(context.Context) (user.User, error)) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	out, err := r.cb.Execute(func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		u, err := fn(callCtx)
		if err != nil && ctx.Err() != nil {
			return u, callerGone{err: err}
		}
		return u, err
	})

	if err != nil {
		var gone callerGone
		switch {
		case errors.As(err, &gone):
			return user.User{}, gone.err
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return user.User{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		return user.User{}, err
	}

	return out.(user.User), nil
}
