package models

import "time"

type PollAnswer string

const (
	PollYes   PollAnswer = "yes"
	PollNo    PollAnswer = "no"
	PollMaybe PollAnswer = "maybe"
)

func (a PollAnswer) Valid() bool {
	switch a {
	case PollYes, PollNo, PollMaybe:
		return true
	}
	return false
}

// PollResponse is one user's attendance vote on an event.
type PollResponse struct {
	UserID    string     `json:"user_id" bson:"user_id"`
	UserEmail string     `json:"user_email" bson:"user_email"`
	Response  PollAnswer `json:"response" bson:"response"`
	Timestamp time.Time  `json:"timestamp" bson:"timestamp"`
}

type PollCounts struct {
	Yes   int `json:"yes"`
	No    int `json:"no"`
	Maybe int `json:"maybe"`
	Total int `json:"total"`
}

// CountPoll tallies responses by a single scan.
func CountPoll(responses []PollResponse) PollCounts {
	var c PollCounts
	for _, r := range responses {
		switch r.Response {
		case PollYes:
			c.Yes++
		case PollNo:
			c.No++
		case PollMaybe:
			c.Maybe++
		default:
			continue
		}
		c.Total++
	}
	return c
}

// UpsertPollResponse drops any earlier response by the same user and appends r.
// The input slice is not modified.
func UpsertPollResponse(responses []PollResponse, r PollResponse) []PollResponse {
	out := make([]PollResponse, 0, len(responses)+1)
	for _, existing := range responses {
		if existing.UserID != r.UserID {
			out = append(out, existing)
		}
	}
	return append(out, r)
}

// FindPollResponse returns the response recorded for userID, if any.
func FindPollResponse(responses []PollResponse, userID string) *PollResponse {
	for i := range responses {
		if responses[i].UserID == userID {
			r := responses[i]
			return &r
		}
	}
	return nil
}

type VoteRequest struct {
	Response PollAnswer `json:"response"`
}

func (r *VoteRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)
	if !r.Response.Valid() {
		errors["response"] = "Response must be one of yes, no, maybe"
	}
	return errors
}
