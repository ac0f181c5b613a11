package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/garotm/RunOn/internal/models"
)

// MemoryStorage keeps users and the sync ledger in process memory.
// Used for local development and tests.
type MemoryStorage struct {
	mu    sync.RWMutex
	users map[string]models.User
	syncs map[string]map[string]models.SyncRecord // user id -> calendar event id
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users: make(map[string]models.User),
		syncs: make(map[string]map[string]models.SyncRecord),
	}
}

func (s *MemoryStorage) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(user), nil
}

func (s *MemoryStorage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.ID]; exists {
		return nil
	}
	s.users[user.ID] = *cloneUser(*user)
	return nil
}

func (s *MemoryStorage) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	updated := *cloneUser(*user)
	updated.Provider = existing.Provider
	updated.CreatedAt = existing.CreatedAt
	s.users[user.ID] = updated
	return nil
}

func (s *MemoryStorage) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	delete(s.users, id)
	delete(s.syncs, id)
	return nil
}

func (s *MemoryStorage) UpsertSync(_ context.Context, record models.SyncRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byEvent, ok := s.syncs[record.UserID]
	if !ok {
		byEvent = make(map[string]models.SyncRecord)
		s.syncs[record.UserID] = byEvent
	}

	if existing, ok := byEvent[record.CalendarEventID]; ok {
		record.CreatedAt = existing.CreatedAt
		if record.Name == "" {
			record.Name = existing.Name
			record.EventDate = existing.EventDate
			record.Location = existing.Location
			record.Description = existing.Description
			record.URL = existing.URL
			record.Distance = existing.Distance
		}
	}
	byEvent[record.CalendarEventID] = record
	return nil
}

// ListSyncs returns a user's ledger, newest first
func (s *MemoryStorage) ListSyncs(_ context.Context, userID string) ([]models.SyncRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]models.SyncRecord, 0, len(s.syncs[userID]))
	for _, rec := range s.syncs[userID] {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	return records, nil
}

func (s *MemoryStorage) HealthCheck(context.Context) error { return nil }

func (s *MemoryStorage) Close() error { return nil }

func cloneUser(u models.User) *models.User {
	if u.Preferences != nil {
		prefs := make(map[string]interface{}, len(u.Preferences))
		for k, v := range u.Preferences {
			prefs[k] = v
		}
		u.Preferences = prefs
	}
	return &u
}
