package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/huddle/backend/internal/models"
)

// MemoryEventStore serializes every mutation behind one lock, which gives the
// same per-event atomicity the Mongo store gets from single-document updates.
type MemoryEventStore struct {
	mu       sync.RWMutex
	events   map[string]models.Event
	snapshot *JSONStore
}

func NewMemoryEventStore(dataDir string) (*MemoryEventStore, error) {
	snap, err := NewJSONStore(dataDir, "events.json")
	if err != nil {
		return nil, err
	}
	s := &MemoryEventStore{
		events:   make(map[string]models.Event),
		snapshot: snap,
	}
	if err := snap.Load(&s.events); err != nil {
		return nil, err
	}
	return s, nil
}

func cloneEvent(e models.Event) models.Event {
	e.Attendees = append([]string{}, e.Attendees...)
	e.PollResponses = append([]models.PollResponse{}, e.PollResponses...)
	if e.InvitationResponses != nil {
		m := make(map[string]models.InvitationStatus, len(e.InvitationResponses))
		for k, v := range e.InvitationResponses {
			m[k] = v
		}
		e.InvitationResponses = m
	}
	if e.Latitude != nil {
		v := *e.Latitude
		e.Latitude = &v
	}
	if e.Longitude != nil {
		v := *e.Longitude
		e.Longitude = &v
	}
	return e
}

func (s *MemoryEventStore) Insert(ctx context.Context, event *models.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.events[event.ID]; exists {
		return ErrDuplicate
	}
	s.events[event.ID] = cloneEvent(*event)
	if err := s.snapshot.Save(s.events); err != nil {
		delete(s.events, event.ID)
		return err
	}
	return nil
}

func (s *MemoryEventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	e = cloneEvent(e)
	return &e, nil
}

// ListForAttendee returns events whose attendee list contains userID, by creation time.
func (s *MemoryEventStore) ListForAttendee(ctx context.Context, userID string) ([]models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Event, 0)
	for _, e := range s.events {
		if e.HasAttendee(userID) {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryEventStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	if err := s.snapshot.Save(s.events); err != nil {
		s.events[id] = prev
		return err
	}
	return nil
}

// mutate applies fn to a copy of the stored event under the write lock. The copy replaces the
// stored event only if the snapshot is written.
func (s *MemoryEventStore) mutate(ctx context.Context, id string, fn func(e *models.Event)) (*models.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	e := cloneEvent(prev)
	fn(&e)
	s.events[id] = e
	if err := s.snapshot.Save(s.events); err != nil {
		s.events[id] = prev
		return nil, err
	}
	out := cloneEvent(e)
	return &out, nil
}

func (s *MemoryEventStore) RemoveAttendee(ctx context.Context, id, userID string) (*models.Event, error) {
	return s.mutate(ctx, id, func(e *models.Event) {
		e.Attendees = removeString(e.Attendees, userID)
	})
}

func removeString(list []string, v string) []string {
	kept := make([]string, 0, len(list))
	for _, s := range list {
		if s != v {
			kept = append(kept, s)
		}
	}
	return kept
}

func (s *MemoryEventStore) UpsertPollResponse(ctx context.Context, id string, resp models.PollResponse) (*models.Event, error) {
	return s.mutate(ctx, id, func(e *models.Event) {
		e.PollResponses = models.UpsertPollResponse(e.PollResponses, resp)
	})
}

func (s *MemoryEventStore) SetInvitationResponse(ctx context.Context, id, userID string, status models.InvitationStatus) (*models.Event, error) {
	return s.mutate(ctx, id, func(e *models.Event) {
		if e.InvitationResponses == nil {
			e.InvitationResponses = make(map[string]models.InvitationStatus)
		}
		e.InvitationResponses[userID] = status
		switch status {
		case models.InvitationAccepted:
			if !e.HasAttendee(userID) {
				e.Attendees = append(e.Attendees, userID)
			}
		case models.InvitationDeclined:
			e.Attendees = removeString(e.Attendees, userID)
		}
	})
}

func (s *MemoryEventStore) SetCoordinates(ctx context.Context, id string, lat, lng float64) error {
	_, err := s.mutate(ctx, id, func(e *models.Event) {
		e.Latitude = &lat
		e.Longitude = &lng
	})
	return err
}
