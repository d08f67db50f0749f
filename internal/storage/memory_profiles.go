package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/huddle/backend/internal/models"
)

type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
	snapshot *JSONStore
}

func NewMemoryProfileStore(dataDir string) (*MemoryProfileStore, error) {
	snap, err := NewJSONStore(dataDir, "profiles.json")
	if err != nil {
		return nil, err
	}
	s := &MemoryProfileStore{
		profiles: make(map[string]models.Profile),
		snapshot: snap,
	}
	if err := snap.Load(&s.profiles); err != nil {
		return nil, err
	}
	return s, nil
}

func cloneProfile(p models.Profile) models.Profile {
	if p.Avatar != nil {
		v := *p.Avatar
		p.Avatar = &v
	}
	return p
}

func (s *MemoryProfileStore) Create(ctx context.Context, profile *models.Profile) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[profile.ID]; exists {
		return ErrDuplicate
	}
	s.profiles[profile.ID] = cloneProfile(*profile)
	if err := s.snapshot.Save(s.profiles); err != nil {
		delete(s.profiles, profile.ID)
		return err
	}
	return nil
}

func (s *MemoryProfileStore) Get(ctx context.Context, id string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = cloneProfile(p)
	return &p, nil
}

func (s *MemoryProfileStore) GetMany(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out[id] = cloneProfile(p)
		}
	}
	return out, nil
}

func (s *MemoryProfileStore) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := models.NormalizeEmail(email)
	if want == "" {
		return nil, ErrNotFound
	}
	for _, p := range s.profiles {
		if models.NormalizeEmail(p.Email) == want {
			p = cloneProfile(p)
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryProfileStore) Update(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	p := cloneProfile(prev)
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		p.Email = models.NormalizeEmail(*req.Email)
	}
	if req.Avatar != nil {
		if v := strings.TrimSpace(*req.Avatar); v != "" {
			p.Avatar = &v
		} else {
			p.Avatar = nil
		}
	}
	p.UpdatedAt = time.Now().UTC()
	s.profiles[id] = p

	if err := s.snapshot.Save(s.profiles); err != nil {
		s.profiles[id] = prev
		return nil, err
	}
	p = cloneProfile(p)
	return &p, nil
}

// Search matches query case-insensitively against name and email, ordered by name.
func (s *MemoryProfileStore) Search(ctx context.Context, query string, limit int) ([]models.Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := strings.ToLower(strings.TrimSpace(query))
	results := make([]models.Profile, 0)
	for _, p := range s.profiles {
		if q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Email), q) {
			results = append(results, cloneProfile(p))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].ID < results[j].ID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}
