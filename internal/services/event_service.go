package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/notify"
	"github.com/huddle/backend/internal/storage"
)

var ErrEventNotFound = errors.New("event not found")

const (
	msgAddressFormat     = "Enter a street address starting with the house number"
	msgAddressUnverified = "Address could not be verified"
)

type EventServiceConfig struct {
	// StrictAddressCheck requires the location to geocode to a numbered street address.
	StrictAddressCheck bool
	Location           *time.Location
}

type EventService struct {
	events   storage.EventStore
	profiles *ProfileService
	friends  *FriendService
	chat     *ChatService
	geocoder geocode.Lookuper
	notifier notify.Publisher
	strict   bool
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func NewEventService(
	events storage.EventStore,
	profiles *ProfileService,
	friends *FriendService,
	chat *ChatService,
	geocoder geocode.Lookuper,
	notifier notify.Publisher,
	cfg EventServiceConfig,
	log *zap.Logger,
) *EventService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	return &EventService{
		events:   events,
		profiles: profiles,
		friends:  friends,
		chat:     chat,
		geocoder: geocoder,
		notifier: notifier,
		strict:   cfg.StrictAddressCheck,
		loc:      loc,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// Create validates the request, checks invitees and the address, and inserts the
// event with the owner as the first attendee.
func (s *EventService) Create(ctx context.Context, ownerID string, req *models.CreateEventRequest) (*models.EventView, error) {
	req.Normalize()
	verrs := req.Validate()

	invitees, err := s.checkInvitees(ctx, ownerID, req.Invitees, verrs)
	if err != nil {
		return nil, err
	}

	var place *geocode.Place
	if _, bad := verrs["location"]; !bad {
		place = s.checkAddress(ctx, ownerID, req.Location, verrs)
	}

	if err := verrs.OrNil(); err != nil {
		return nil, err
	}

	event := &models.Event{
		ID:                 uuid.New().String(),
		OwnerID:            ownerID,
		Title:              req.Title,
		Date:               req.Date,
		Time:               req.Time,
		Location:           req.Location,
		Description:        req.Description,
		Attendees:          append([]string{ownerID}, invitees...),
		SpotifyPlaylistURL: req.SpotifyPlaylistURL,
		PollResponses:      []models.PollResponse{},
		CreatedAt:          s.now().UTC(),
	}
	if place != nil {
		lat, lng := place.Latitude, place.Longitude
		event.Latitude = &lat
		event.Longitude = &lng
	}

	if err := s.events.Insert(ctx, event); err != nil {
		return nil, err
	}

	s.log.Info("[Events] created",
		zap.String("user", ownerID),
		zap.String("event", event.ID),
		zap.Int("invitees", len(invitees)),
	)
	notify.Send(ctx, s.notifier, s.log, notify.Notification{
		Type:         notify.EventCreated,
		RecipientIDs: []string{ownerID},
		ActorID:      ownerID,
		Subject:      event.ID,
		Payload:      map[string]string{"title": event.Title},
	})
	notify.Send(ctx, s.notifier, s.log, notify.Notification{
		Type:         notify.EventInvited,
		RecipientIDs: invitees,
		ActorID:      ownerID,
		Subject:      event.ID,
		Payload:      map[string]string{"title": event.Title, "date": event.Date, "time": event.Time},
	})

	return s.view(ctx, event, ownerID)
}

// checkInvitees drops duplicates and the owner, then requires each invitee to be an
// existing profile and an accepted friend of the owner.
func (s *EventService) checkInvitees(ctx context.Context, ownerID string, ids []string, verrs models.ValidationErrors) ([]string, error) {
	seen := map[string]bool{ownerID: true}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true

		if _, err := s.profiles.Get(ctx, id); err != nil {
			if errors.Is(err, ErrProfileNotFound) {
				verrs["invitees"] = "Unknown user in invitees"
				continue
			}
			return nil, err
		}
		ok, err := s.friends.AreFriends(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			verrs["invitees"] = "You can only invite your friends"
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// checkAddress records a field error when the location is not a verifiable street
// address. Lookup failures count as unverifiable. It returns the match when there is one.
func (s *EventService) checkAddress(ctx context.Context, userID, location string, verrs models.ValidationErrors) *geocode.Place {
	if !s.strict {
		return nil
	}
	if !geocode.LooksLikeStreetAddress(location) {
		verrs["location"] = msgAddressFormat
		return nil
	}
	if s.geocoder == nil {
		verrs["location"] = msgAddressUnverified
		return nil
	}

	place, err := s.geocoder.Lookup(ctx, location)
	if err != nil {
		s.log.Info("[Events] address lookup failed", zap.String("user", userID), zap.Error(err))
		verrs["location"] = msgAddressUnverified
		return nil
	}
	if !place.IsStreetAddress() {
		verrs["location"] = msgAddressUnverified
		return nil
	}
	return place
}

func (s *EventService) load(ctx context.Context, viewerID, id string) (*models.Event, error) {
	event, err := s.events.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.CanView(viewerID) {
		return nil, ErrEventNotFound
	}
	return event, nil
}

func (s *EventService) view(ctx context.Context, event *models.Event, viewerID string) (*models.EventView, error) {
	attendees, err := s.profiles.GetMany(ctx, event.Attendees)
	if err != nil {
		return nil, err
	}
	v := models.NewEventView(*event, viewerID, attendees, s.now(), s.loc)
	return &v, nil
}

func (s *EventService) Get(ctx context.Context, viewerID, id string) (*models.EventView, error) {
	event, err := s.load(ctx, viewerID, id)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, event, viewerID)
}

// ListForUser splits the viewer's events into active (soonest first) and expired
// (most recent first).
func (s *EventService) ListForUser(ctx context.Context, viewerID string) (*models.EventLists, error) {
	events, err := s.events.ListForAttendee(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0)
	seen := make(map[string]bool)
	for _, e := range events {
		for _, a := range e.Attendees {
			if !seen[a] {
				seen[a] = true
				ids = append(ids, a)
			}
		}
	}
	found, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Profile, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}

	now := s.now()
	views := make([]models.EventView, 0, len(events))
	for _, e := range events {
		attendees := make([]models.Profile, 0, len(e.Attendees))
		for _, a := range e.Attendees {
			attendees = append(attendees, byID[a])
		}
		views = append(views, models.NewEventView(e, viewerID, attendees, now, s.loc))
	}

	lists := models.SplitEvents(views)
	return &lists, nil
}

// Delete removes the event and its chat. Only the owner may delete.
func (s *EventService) Delete(ctx context.Context, viewerID, id string) error {
	event, err := s.load(ctx, viewerID, id)
	if err != nil {
		return err
	}
	if event.OwnerID != viewerID {
		return ErrForbidden
	}

	if err := s.events.Delete(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if s.chat != nil {
		s.chat.Drop(id)
	}

	others := make([]string, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		if a != viewerID {
			others = append(others, a)
		}
	}
	s.log.Info("[Events] deleted", zap.String("user", viewerID), zap.String("event", id))
	notify.Send(ctx, s.notifier, s.log, notify.Notification{
		Type:         notify.EventDeleted,
		RecipientIDs: others,
		ActorID:      viewerID,
		Subject:      id,
		Payload:      map[string]string{"title": event.Title},
	})
	return nil
}

// Leave removes the viewer from the attendees with a single atomic removal. A repeated
// leave never changes the list; once the viewer can no longer see the event it reports ErrEventNotFound.
func (s *EventService) Leave(ctx context.Context, viewerID, id string) (*models.EventView, error) {
	if _, err := s.load(ctx, viewerID, id); err != nil {
		return nil, err
	}
	event, err := s.events.RemoveAttendee(ctx, id, viewerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.view(ctx, event, viewerID)
}

// Vote records the viewer's poll answer, replacing any earlier one.
func (s *EventService) Vote(ctx context.Context, viewerID, id string, req *models.VoteRequest) (*models.EventView, error) {
	if err := req.Validate().OrNil(); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, viewerID, id); err != nil {
		return nil, err
	}

	email := viewerID
	if prof, err := s.profiles.Get(ctx, viewerID); err == nil && prof.Email != "" {
		email = prof.Email
	}

	event, err := s.events.UpsertPollResponse(ctx, id, models.PollResponse{
		UserID:    viewerID,
		UserEmail: email,
		Response:  req.Response,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.view(ctx, event, viewerID)
}

// RespondInvitation records accepted or declined. Declining leaves the event;
// accepting rejoins it.
func (s *EventService) RespondInvitation(ctx context.Context, viewerID, id string, req *models.InvitationResponseRequest) (*models.EventView, error) {
	if err := req.Validate().OrNil(); err != nil {
		return nil, err
	}
	event, err := s.events.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if !event.HasAttendee(viewerID) && !event.Invited(viewerID) {
		return nil, ErrEventNotFound
	}

	event, err = s.events.SetInvitationResponse(ctx, id, viewerID, req.Response)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return s.view(ctx, event, viewerID)
}
