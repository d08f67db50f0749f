package models

import (
	"net/mail"
	"net/url"
	"strings"
	"time"
)

// Profile is the stored identity record for an account, keyed by the account or identity-provider id.
type Profile struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Avatar    *string   `json:"avatar" bson:"avatar,omitempty"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// DisplayName is the label shown for the profile in chat and attendee lists.
func (p *Profile) DisplayName() string {
	if p == nil {
		return ""
	}
	if strings.TrimSpace(p.Name) != "" {
		return p.Name
	}
	return p.Email
}

// UpdateProfileRequest is a partial update; nil fields are left unchanged.
// An empty Avatar clears the avatar.
type UpdateProfileRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email"`
	Avatar *string `json:"avatar"`
}

func (r *UpdateProfileRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)

	if r.Name != nil && len([]rune(strings.TrimSpace(*r.Name))) < 2 {
		errors["name"] = "Name is too short"
	}
	if r.Email != nil {
		if _, err := mail.ParseAddress(strings.TrimSpace(*r.Email)); err != nil {
			errors["email"] = "Invalid email"
		}
	}
	if r.Avatar != nil && strings.TrimSpace(*r.Avatar) != "" && !isHTTPURL(*r.Avatar) {
		errors["avatar"] = "Must be a valid image URL"
	}

	return errors
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
