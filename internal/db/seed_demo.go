package db

import (
	"context"
	"errors"

	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/geocoder89/collegehub/internal/security"
)

type UserCreator interface {
	Create(ctx context.Context, name, email, passwordHash string, role user.Role) (user.User, error)
}

type DemoUser struct {
	Name     string
	Email    string
	Password string
	Role     user.Role
}

// DemoUsers are the two accounts the in-memory test server ships with.
var DemoUsers = []DemoUser{
	{Name: "Test Student", Email: "student@example.com", Password: "password", Role: user.RoleStudent},
	{Name: "Test Admin", Email: "admin@example.com", Password: "password", Role: user.RoleAdmin},
}

// SeedDemoUsers stores each demo account with a bcrypt hash. Accounts that
// already exist are left alone.
func SeedDemoUsers(ctx context.Context, store UserCreator, users []DemoUser) error {
	for _, d := range users {
		hash, err := security.HashPassword(d.Password)

		if err != nil {
			return err
		}

		_, err = store.Create(ctx, d.Name, d.Email, hash, d.Role)

		if err != nil && !errors.Is(err, user.ErrEmailAlreadyUsed) {
			return err
		}
	}

	return nil
}
