package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/huddle/backend/internal/models"
)

// MemoryFriendStore indexes rows by id and by unordered pair key.
type MemoryFriendStore struct {
	mu       sync.RWMutex
	rows     map[string]models.FriendRequest
	pairs    map[string]string // pair key -> row id
	snapshot *JSONStore
}

func NewMemoryFriendStore(dataDir string) (*MemoryFriendStore, error) {
	snap, err := NewJSONStore(dataDir, "friends.json")
	if err != nil {
		return nil, err
	}
	s := &MemoryFriendStore{
		rows:     make(map[string]models.FriendRequest),
		pairs:    make(map[string]string),
		snapshot: snap,
	}
	if err := snap.Load(&s.rows); err != nil {
		return nil, err
	}
	for id, row := range s.rows {
		s.pairs[row.PairKey()] = id
	}
	return s, nil
}

func (s *MemoryFriendStore) Insert(ctx context.Context, req *models.FriendRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := req.PairKey()
	if _, exists := s.pairs[key]; exists {
		return ErrDuplicate
	}
	if _, exists := s.rows[req.ID]; exists {
		return ErrDuplicate
	}
	s.rows[req.ID] = *req
	s.pairs[key] = req.ID
	if err := s.snapshot.Save(s.rows); err != nil {
		delete(s.rows, req.ID)
		delete(s.pairs, key)
		return err
	}
	return nil
}

func (s *MemoryFriendStore) Get(ctx context.Context, id string) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *MemoryFriendStore) FindPair(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.pairs[models.PairKey(a, b)]
	if !ok {
		return nil, ErrNotFound
	}
	row := s.rows[id]
	return &row, nil
}

// ListForUser returns every row touching userID, newest first.
func (s *MemoryFriendStore) ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.FriendRequest, 0)
	for _, row := range s.rows {
		if row.Involves(userID) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryFriendStore) Accept(ctx context.Context, id string) (*models.FriendRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	row := prev
	row.Status = models.FriendshipAccepted
	s.rows[id] = row
	if err := s.snapshot.Save(s.rows); err != nil {
		s.rows[id] = prev
		return nil, err
	}
	return &row, nil
}

func (s *MemoryFriendStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.rows, id)
	delete(s.pairs, row.PairKey())
	if err := s.snapshot.Save(s.rows); err != nil {
		s.rows[id] = row
		s.pairs[row.PairKey()] = id
		return err
	}
	return nil
}
