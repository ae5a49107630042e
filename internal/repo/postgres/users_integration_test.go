package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/geocoder89/collegehub/internal/db"
	"github.com/geocoder89/collegehub/internal/domain/user"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Runs only when TEST_DB_DSN points at a disposable database.
func setupUsersRepo(t *testing.T) (*UsersRepo, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		t.Skip("TEST_DB_DSN not set")
	}

	pool, err := db.NewPool(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed to create pgx pool: %v", err)
	}
	t.Cleanup(pool.Close)

	ctx := context.Background()
	if err := db.Migrate(ctx, pool); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if _, err := pool.Exec(ctx, `TRUNCATE users`); err != nil {
		t.Fatalf("failed to truncate users: %v", err)
	}

	return NewUsersRepo(pool, nil), pool
}

func TestUsersRepoIntegration(t *testing.T) {
	repo, _ := setupUsersRepo(t)
	ctx := context.Background()

	created, err := repo.Create(ctx, "Alice", "A@X.com", "hash", user.RoleStudent)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if created.Email != "a@x.com" {
		t.Fatalf("got email %q, want normalized a@x.com", created.Email)
	}

	_, err = repo.Create(ctx, "Alice 2", "a@x.com", "hash", user.RoleAdmin)
	if !errors.Is(err, user.ErrEmailAlreadyUsed) {
		t.Fatalf("got %v, want ErrEmailAlreadyUsed", err)
	}

	byEmail, err := repo.GetByEmail(ctx, "a@x.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if byEmail.ID != created.ID || byEmail.Role != user.RoleStudent {
		t.Fatalf("unexpected record %+v", byEmail)
	}

	if _, err := repo.GetByID(ctx, created.ID); err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	if _, err := repo.GetByID(ctx, "not-a-uuid"); !errors.Is(err, user.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
