// Package tokenstore keeps the client's bearer token between runs.
//
// Load returns ("", nil) when no token is stored.
package tokenstore

import (
	"context"
	"sync"
)

type Store interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	return m.token, nil
}

func (m *MemoryStore) Save(ctx context.Context, token string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
	return m.Save(ctx, "")
}
