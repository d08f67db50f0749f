package models

import (
	"strconv"
	"strings"
	"time"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// FriendRequest is a directed relationship row between two profiles.
// At most one row exists per unordered pair; PairKey is the same for both directions.
type FriendRequest struct {
	ID          string           `json:"id"`
	RequesterID string           `json:"requester_id"`
	AddresseeID string           `json:"addressee_id"`
	Status      FriendshipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// PairKey identifies the unordered pair {a, b}. The length prefix keeps ids that
// contain the separator from colliding.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return strconv.Itoa(len(a)) + ":" + a + ":" + b
}

func (f *FriendRequest) PairKey() string {
	return PairKey(f.RequesterID, f.AddresseeID)
}

// Involves reports whether userID is either side of the relationship.
func (f *FriendRequest) Involves(userID string) bool {
	return f.RequesterID == userID || f.AddresseeID == userID
}

// Counterpart returns the id on the side that is not selfID.
func (f *FriendRequest) Counterpart(selfID string) string {
	if f.RequesterID == selfID {
		return f.AddresseeID
	}
	return f.RequesterID
}

// FriendViews is the three-way split of the rows touching one user.
type FriendViews struct {
	Accepted []FriendRequest
	Incoming []FriendRequest
	Outgoing []FriendRequest
}

// PartitionFriendships derives the accepted, incoming and outgoing views for selfID.
// Rows that do not involve selfID are ignored.
func PartitionFriendships(selfID string, rows []FriendRequest) FriendViews {
	views := FriendViews{
		Accepted: []FriendRequest{},
		Incoming: []FriendRequest{},
		Outgoing: []FriendRequest{},
	}
	for _, row := range rows {
		if !row.Involves(selfID) {
			continue
		}
		switch {
		case row.Status == FriendshipAccepted:
			views.Accepted = append(views.Accepted, row)
		case row.Status == FriendshipPending && row.AddresseeID == selfID:
			views.Incoming = append(views.Incoming, row)
		case row.Status == FriendshipPending && row.RequesterID == selfID:
			views.Outgoing = append(views.Outgoing, row)
		}
	}
	return views
}

// FriendEntry pairs a relationship row with the profile on the other side.
type FriendEntry struct {
	RequestID string           `json:"request_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	Profile   Profile          `json:"profile"`
}

type FriendLists struct {
	Accepted []FriendEntry `json:"accepted"`
	Incoming []FriendEntry `json:"incoming"`
	Outgoing []FriendEntry `json:"outgoing"`
}

// SendFriendRequest targets a profile by id or, when AddresseeID is empty, by email.
type SendFriendRequest struct {
	AddresseeID string `json:"addressee_id"`
	Email       string `json:"email"`
}

func (r *SendFriendRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)
	if strings.TrimSpace(r.AddresseeID) == "" && strings.TrimSpace(r.Email) == "" {
		errors["addressee_id"] = "Either addressee_id or email is required"
	}
	return errors
}
