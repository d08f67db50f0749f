package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/notify"
	"github.com/huddle/backend/internal/storage"
)

type fakeGeocoder struct {
	mu     sync.Mutex
	places map[string]*geocode.Place
	calls  int
}

func newFakeGeocoder() *fakeGeocoder {
	return &fakeGeocoder{places: make(map[string]*geocode.Place)}
}

func (g *fakeGeocoder) add(query string, p *geocode.Place) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.places[geocode.NormalizeQuery(query)] = p
}

func (g *fakeGeocoder) Lookup(_ context.Context, query string) (*geocode.Place, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	p, ok := g.places[geocode.NormalizeQuery(query)]
	if !ok {
		return nil, geocode.ErrNoMatch
	}
	cp := *p
	return &cp, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingPublisher) Publish(_ context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
	return nil
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, n := range r.sent {
		out = append(out, n.Type)
	}
	return out
}

const testAddress = "10 Downing Street, London"

var testNow = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

type fixture struct {
	ctx        context.Context
	profiles   *ProfileService
	friends    *FriendService
	events     *EventService
	chat       *ChatService
	maps       *MapService
	eventStore *storage.MemoryEventStore
	geo        *fakeGeocoder
	published  *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	profileStore, err := storage.NewMemoryProfileStore("")
	require.NoError(t, err)
	friendStore, err := storage.NewMemoryFriendStore("")
	require.NoError(t, err)
	eventStore, err := storage.NewMemoryEventStore("")
	require.NoError(t, err)

	log := zap.NewNop()
	geo := newFakeGeocoder()
	geo.add(testAddress, &geocode.Place{Latitude: 51.5033, Longitude: -0.1276, HouseNumber: "10", Road: "Downing Street"})
	pub := &recordingPublisher{}

	profiles := NewProfileService(profileStore, log)
	friends := NewFriendService(friendStore, profiles, pub, log)
	friends.now = func() time.Time { return testNow }
	chat := NewChatService(eventStore, profiles, 3, time.UTC)
	chat.now = func() time.Time { return testNow }
	events := NewEventService(eventStore, profiles, friends, chat, geo, pub, EventServiceConfig{
		StrictAddressCheck: true,
		Location:           time.UTC,
	}, log)
	events.now = func() time.Time { return testNow }
	maps := NewMapService(eventStore, geo, time.UTC, log)
	maps.now = func() time.Time { return testNow }

	return &fixture{
		ctx:        context.Background(),
		profiles:   profiles,
		friends:    friends,
		events:     events,
		chat:       chat,
		maps:       maps,
		eventStore: eventStore,
		geo:        geo,
		published:  pub,
	}
}

func (f *fixture) addUser(t *testing.T, id, name string) {
	t.Helper()
	email := strings.ToLower(name) + "@example.com"
	_, err := f.profiles.GetOrCreate(f.ctx, id, email, name)
	require.NoError(t, err)
}

func (f *fixture) befriend(t *testing.T, a, b string) {
	t.Helper()
	req, err := f.friends.SendRequest(f.ctx, a, b)
	require.NoError(t, err)
	_, err = f.friends.Respond(f.ctx, b, req.ID, true)
	require.NoError(t, err)
}

func (f *fixture) createEvent(t *testing.T, ownerID string, invitees ...string) *models.EventView {
	t.Helper()
	v, err := f.events.Create(f.ctx, ownerID, &models.CreateEventRequest{
		Title:    "Dinner",
		Date:     "2025-01-02",
		Time:     "19:30",
		Location: testAddress,
		Invitees: invitees,
	})
	require.NoError(t, err)
	return v
}

func newEventRequest(date, clock, location string) *models.CreateEventRequest {
	return &models.CreateEventRequest{
		Title:    "Meetup",
		Date:     date,
		Time:     clock,
		Location: location,
	}
}

func (f *fixture) createEventAt(t *testing.T, ownerID, date, clock string) *models.EventView {
	t.Helper()
	v, err := f.events.Create(f.ctx, ownerID, newEventRequest(date, clock, testAddress))
	require.NoError(t, err)
	return v
}
