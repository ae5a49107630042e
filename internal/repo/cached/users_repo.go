package cached

import (
	"context"
	"time"

	"github.com/geocoder89/collegehub/internal/cache"
	"github.com/geocoder89/collegehub/internal/domain/user"
)

type UserStore interface {
	Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Ping(ctx context.Context) error
}

// UsersRepo serves profile lookups by id from a short-lived cache. User
// records are never updated after creation, so entries cannot go stale.
type UsersRepo struct {
	UserStore
	byID *cache.Cache[user.User]
}

func NewUsersRepo(inner UserStore, ttl time.Duration) *UsersRepo {
	return &UsersRepo{
		UserStore: inner,
		byID:      cache.New[user.User](ttl),
	}
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.byID.GetOrLoad(id, func() (user.User, error) {
		return r.UserStore.GetByID(ctx, id)
	})
}
