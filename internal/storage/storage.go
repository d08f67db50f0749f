package storage

import (
	"context"
	"errors"

	"github.com/huddle/backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
)

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

type ProfileStore interface {
	Create(ctx context.Context, profile *models.Profile) error
	Get(ctx context.Context, id string) (*models.Profile, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	// Update applies the non-nil fields of req. An empty Avatar clears it.
	Update(ctx context.Context, id string, req *models.UpdateProfileRequest) (*models.Profile, error)
	Search(ctx context.Context, query string, limit int) ([]models.Profile, error)
}

type FriendStore interface {
	// Insert fails with ErrDuplicate when any row already exists for the unordered pair.
	Insert(ctx context.Context, req *models.FriendRequest) error
	Get(ctx context.Context, id string) (*models.FriendRequest, error)
	// FindPair returns the row between a and b in either direction.
	FindPair(ctx context.Context, a, b string) (*models.FriendRequest, error)
	ListForUser(ctx context.Context, userID string) ([]models.FriendRequest, error)
	// Accept moves a pending row to accepted. Accepting an accepted row is a no-op.
	Accept(ctx context.Context, id string) (*models.FriendRequest, error)
	Delete(ctx context.Context, id string) error
}

// EventStore mutates attendee and poll columns with single atomic operations
// so concurrent writers on the same event never overwrite each other.
type EventStore interface {
	Insert(ctx context.Context, event *models.Event) error
	Get(ctx context.Context, id string) (*models.Event, error)
	ListForAttendee(ctx context.Context, userID string) ([]models.Event, error)
	Delete(ctx context.Context, id string) error
	RemoveAttendee(ctx context.Context, id, userID string) (*models.Event, error)
	UpsertPollResponse(ctx context.Context, id string, resp models.PollResponse) (*models.Event, error)
	// SetInvitationResponse records status and, in the same update, adds (accepted) or
	// removes (declined) userID from the attendees.
	SetInvitationResponse(ctx context.Context, id, userID string, status models.InvitationStatus) (*models.Event, error)
	SetCoordinates(ctx context.Context, id string, lat, lng float64) error
}
