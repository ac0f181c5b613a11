package storage

import (
	"context"
	"errors"

	"github.com/garotm/RunOn/internal/models"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("not found")

// UserStore persists user profiles
type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id string) error
}

// SyncStore persists the calendar sync ledger
type SyncStore interface {
	UpsertSync(ctx context.Context, record models.SyncRecord) error
	ListSyncs(ctx context.Context, userID string) ([]models.SyncRecord, error)
}

// Store is the gateway's document store
type Store interface {
	UserStore
	SyncStore
	HealthCheck(ctx context.Context) error
	Close() error
}
