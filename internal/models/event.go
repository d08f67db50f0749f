package models

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

var spotifyPlaylistPattern = regexp.MustCompile(`^https://open\.spotify\.com/playlist/[A-Za-z0-9]+(\?.*)?$`)

// ValidSpotifyPlaylistURL reports whether raw is empty or a Spotify playlist link.
func ValidSpotifyPlaylistURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	return raw == "" || spotifyPlaylistPattern.MatchString(raw)
}

type InvitationStatus string

const (
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
)

// Event is an owned gathering. Attendees holds profile ids; the owner is first at creation.
// Date and Time are wall-clock values without a zone.
type Event struct {
	ID                  string                      `json:"id"`
	OwnerID             string                      `json:"owner_id"`
	Title               string                      `json:"title"`
	Date                string                      `json:"date"`
	Time                string                      `json:"time"`
	Location            string                      `json:"location"`
	Description         string                      `json:"description,omitempty"`
	Attendees           []string                    `json:"attendees"`
	SpotifyPlaylistURL  string                      `json:"spotify_playlist_url,omitempty"`
	Latitude            *float64                    `json:"latitude,omitempty"`
	Longitude           *float64                    `json:"longitude,omitempty"`
	PollResponses       []PollResponse              `json:"poll_responses"`
	InvitationResponses map[string]InvitationStatus `json:"invitation_responses,omitempty"`
	CreatedAt           time.Time                   `json:"created_at"`
}

// StartsAt interprets Date and Time as wall-clock time in loc.
func (e *Event) StartsAt(loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return parseWallClock(e.Date, e.Time, loc)
}

// IsExpired reports whether the scheduled start lies strictly before now.
// An event whose schedule cannot be parsed is never expired.
func (e *Event) IsExpired(now time.Time, loc *time.Location) bool {
	start, err := e.StartsAt(loc)
	if err != nil {
		return false
	}
	return now.After(start)
}

func (e *Event) HasAttendee(userID string) bool {
	for _, a := range e.Attendees {
		if a == userID {
			return true
		}
	}
	return false
}

// Invited reports whether userID has an invitation response recorded.
func (e *Event) Invited(userID string) bool {
	_, ok := e.InvitationResponses[userID]
	return ok
}

// CanView is the visibility rule: owner, attendees, and anyone who answered an invitation.
func (e *Event) CanView(userID string) bool {
	return userID != "" && (e.OwnerID == userID || e.HasAttendee(userID) || e.Invited(userID))
}

func parseWallClock(date, clock string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(date), loc)
	if err != nil {
		return time.Time{}, err
	}
	t, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
}

// parseClock accepts "15:04" and the "15:04:05" form some time inputs emit.
func parseClock(clock string) (time.Time, error) {
	clock = strings.TrimSpace(clock)
	t, err := time.Parse(TimeLayout, clock)
	if err == nil {
		return t, nil
	}
	return time.Parse("15:04:05", clock)
}

type CreateEventRequest struct {
	Title              string   `json:"title"`
	Date               string   `json:"date"`
	Time               string   `json:"time"`
	Location           string   `json:"location"`
	Description        string   `json:"description"`
	Invitees           []string `json:"invitees"`
	SpotifyPlaylistURL string   `json:"spotify_playlist_url"`
}

// Normalize trims user input in place.
func (r *CreateEventRequest) Normalize() {
	r.Title = strings.TrimSpace(r.Title)
	r.Date = strings.TrimSpace(r.Date)
	r.Time = strings.TrimSpace(r.Time)
	r.Location = strings.TrimSpace(r.Location)
	r.Description = strings.TrimSpace(r.Description)
	r.SpotifyPlaylistURL = strings.TrimSpace(r.SpotifyPlaylistURL)
}

func (r *CreateEventRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)

	if strings.TrimSpace(r.Title) == "" {
		errors["title"] = "Title is required"
	}
	if strings.TrimSpace(r.Date) == "" {
		errors["date"] = "Date is required"
	} else if _, err := time.Parse(DateLayout, strings.TrimSpace(r.Date)); err != nil {
		errors["date"] = "Date must be formatted YYYY-MM-DD"
	}
	if strings.TrimSpace(r.Time) == "" {
		errors["time"] = "Time is required"
	} else if _, err := parseClock(r.Time); err != nil {
		errors["time"] = "Time must be formatted HH:MM"
	}
	if strings.TrimSpace(r.Location) == "" {
		errors["location"] = "Location is required"
	}
	if !ValidSpotifyPlaylistURL(r.SpotifyPlaylistURL) {
		errors["spotify_playlist_url"] = "Must be a Spotify playlist link (https://open.spotify.com/playlist/...)"
	}

	return errors
}

type InvitationResponseRequest struct {
	Response InvitationStatus `json:"response"`
}

func (r *InvitationResponseRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)
	if r.Response != InvitationAccepted && r.Response != InvitationDeclined {
		errors["response"] = "Response must be accepted or declined"
	}
	return errors
}

// EventView is an event as shown to one viewer.
type EventView struct {
	Event
	AttendeeProfiles []Profile     `json:"attendee_profiles"`
	PollCounts       PollCounts    `json:"poll_counts"`
	MyResponse       *PollResponse `json:"my_response,omitempty"`
	Expired          bool          `json:"expired"`
	startsAt         time.Time
}

type EventLists struct {
	Active  []EventView `json:"active"`
	Expired []EventView `json:"expired"`
}

// NewEventView builds the viewer-specific projection of e.
func NewEventView(e Event, viewerID string, attendees []Profile, now time.Time, loc *time.Location) EventView {
	if attendees == nil {
		attendees = []Profile{}
	}
	if e.PollResponses == nil {
		e.PollResponses = []PollResponse{}
	}
	if e.Attendees == nil {
		e.Attendees = []string{}
	}
	start, _ := e.StartsAt(loc)
	return EventView{
		Event:            e,
		AttendeeProfiles: attendees,
		PollCounts:       CountPoll(e.PollResponses),
		MyResponse:       FindPollResponse(e.PollResponses, viewerID),
		Expired:          e.IsExpired(now, loc),
		startsAt:         start,
	}
}

// SplitEvents separates views into active (soonest first) and expired (most recent first).
func SplitEvents(views []EventView) EventLists {
	lists := EventLists{Active: []EventView{}, Expired: []EventView{}}
	for _, v := range views {
		if v.Expired {
			lists.Expired = append(lists.Expired, v)
		} else {
			lists.Active = append(lists.Active, v)
		}
	}
	sort.SliceStable(lists.Active, func(i, j int) bool {
		return lists.Active[i].startsAt.Before(lists.Active[j].startsAt)
	})
	sort.SliceStable(lists.Expired, func(i, j int) bool {
		return lists.Expired[i].startsAt.After(lists.Expired[j].startsAt)
	})
	return lists
}
