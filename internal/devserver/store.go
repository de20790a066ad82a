package devserver

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/kubecloud/console-agent/internal/model"
)

// ErrNotFound is returned for operations on a missing notification.
var ErrNotFound = errors.New("notification not found")

// Store persists notifications per user, newest first.
type Store interface {
	Insert(ctx context.Context, userID string, n model.Notification) error
	List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]model.Notification, int, error)
	SetStatus(ctx context.Context, userID, id string, status model.Status) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) error
}

// MemoryStore is the in-memory Store used when no database is configured.
type MemoryStore struct {
	mu    sync.Mutex
	byUsr map[string][]model.Notification
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byUsr: make(map[string][]model.Notification)}
}

func (s *MemoryStore) Insert(ctx context.Context, userID string, n model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	if n.Status == "" {
		n.Status = model.StatusUnread
	}
	s.byUsr[userID] = append(s.byUsr[userID], n)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, userID string, limit, offset int, unreadOnly bool) ([]model.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.byUsr[userID]
	matched := make([]model.Notification, 0, len(all))
	for _, n := range all {
		if unreadOnly && n.Status != model.StatusUnread {
			continue
		}
		matched = append(matched, n)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return append([]model.Notification(nil), matched...), total, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, userID, id string, status model.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUsr[userID]
	for i, n := range list {
		if n.ID == id {
			list[i].Status = status
			if status == model.StatusRead {
				now := time.Now()
				list[i].ReadAt = &now
			} else {
				list[i].ReadAt = nil
			}
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	list := s.byUsr[userID]
	for i := range list {
		if list[i].Status == model.StatusUnread {
			list[i].Status = model.StatusRead
			list[i].ReadAt = &now
		}
	}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.byUsr[userID]
	for i, n := range list {
		if n.ID == id {
			s.byUsr[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) DeleteAll(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byUsr, userID)
	return nil
}
