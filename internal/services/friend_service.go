package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/notify"
	"github.com/huddle/backend/internal/storage"
)

var (
	ErrCannotFriendSelf      = errors.New("you cannot send a friend request to yourself")
	ErrAlreadyFriends        = errors.New("you are already friends with this user")
	ErrRequestExists         = errors.New("a friend request already exists between you and this user")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrForbidden             = errors.New("forbidden")
)

type FriendService struct {
	store    storage.FriendStore
	profiles *ProfileService
	notifier notify.Publisher
	log      *zap.Logger
	now      func() time.Time
}

func NewFriendService(store storage.FriendStore, profiles *ProfileService, notifier notify.Publisher, log *zap.Logger) *FriendService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &FriendService{
		store:    store,
		profiles: profiles,
		notifier: notifier,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// SendRequest creates a pending request from selfID to targetID. At most one row
// exists per unordered pair.
func (s *FriendService) SendRequest(ctx context.Context, selfID, targetID string) (*models.FriendRequest, error) {
	if targetID == selfID {
		return nil, ErrCannotFriendSelf
	}
	if _, err := s.profiles.Get(ctx, targetID); err != nil {
		return nil, err
	}

	existing, err := s.store.FindPair(ctx, selfID, targetID)
	switch {
	case err == nil && existing.Status == models.FriendshipAccepted:
		return nil, ErrAlreadyFriends
	case err == nil:
		return nil, ErrRequestExists
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	req := &models.FriendRequest{
		ID:          uuid.New().String(),
		RequesterID: selfID,
		AddresseeID: targetID,
		Status:      models.FriendshipPending,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.store.Insert(ctx, req); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, ErrRequestExists
		}
		return nil, err
	}

	s.log.Info("[Friends] request sent", zap.String("user", selfID), zap.String("target", targetID))
	notify.Send(ctx, s.notifier, s.log, notify.Notification{
		Type:         notify.FriendRequested,
		RecipientIDs: []string{targetID},
		ActorID:      selfID,
		Subject:      req.ID,
	})
	return req, nil
}

// SendRequestByEmail resolves the addressee by email and sends the request.
func (s *FriendService) SendRequestByEmail(ctx context.Context, selfID, email string) (*models.FriendRequest, error) {
	target, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.SendRequest(ctx, selfID, target.ID)
}

// Respond lets the addressee accept or decline a pending request. Declining deletes the row.
func (s *FriendService) Respond(ctx context.Context, selfID, requestID string, accept bool) (*models.FriendRequest, error) {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFriendRequestNotFound
		}
		return nil, err
	}
	if !req.Involves(selfID) {
		return nil, ErrFriendRequestNotFound
	}
	if req.AddresseeID != selfID || req.Status != models.FriendshipPending {
		return nil, ErrForbidden
	}

	if !accept {
		if err := s.store.Delete(ctx, requestID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrFriendRequestNotFound
			}
			return nil, err
		}
		return req, nil
	}

	accepted, err := s.store.Accept(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrFriendRequestNotFound
		}
		return nil, err
	}

	notify.Send(ctx, s.notifier, s.log, notify.Notification{
		Type:         notify.FriendAccepted,
		RecipientIDs: []string{accepted.RequesterID},
		ActorID:      selfID,
		Subject:      accepted.ID,
	})
	return accepted, nil
}

// Cancel withdraws a pending request the caller sent.
func (s *FriendService) Cancel(ctx context.Context, selfID, requestID string) error {
	req, err := s.store.Get(ctx, requestID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFriendRequestNotFound
		}
		return err
	}
	if !req.Involves(selfID) {
		return ErrFriendRequestNotFound
	}
	if req.RequesterID != selfID || req.Status != models.FriendshipPending {
		return ErrForbidden
	}
	if err := s.store.Delete(ctx, requestID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrFriendRequestNotFound
		}
		return err
	}
	return nil
}

// List returns the accepted, incoming and outgoing views for selfID joined with the
// profile on the other side of each row.
func (s *FriendService) List(ctx context.Context, selfID string) (*models.FriendLists, error) {
	rows, err := s.store.ListForUser(ctx, selfID)
	if err != nil {
		return nil, err
	}
	views := models.PartitionFriendships(selfID, rows)

	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.Counterpart(selfID))
	}
	profiles, err := s.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}

	entries := func(rows []models.FriendRequest) []models.FriendEntry {
		out := make([]models.FriendEntry, 0, len(rows))
		for _, row := range rows {
			out = append(out, models.FriendEntry{
				RequestID: row.ID,
				Status:    row.Status,
				CreatedAt: row.CreatedAt,
				Profile:   byID[row.Counterpart(selfID)],
			})
		}
		return out
	}

	return &models.FriendLists{
		Accepted: entries(views.Accepted),
		Incoming: entries(views.Incoming),
		Outgoing: entries(views.Outgoing),
	}, nil
}

func (s *FriendService) AreFriends(ctx context.Context, a, b string) (bool, error) {
	row, err := s.store.FindPair(ctx, a, b)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return row.Status == models.FriendshipAccepted, nil
}
