package models

import (
	"net/mail"
	"strings"
	"time"
)

// Account is a locally issued identity. Users authenticated by the hosted identity provider have none.
type Account struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Name         string    `json:"name" bson:"name"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

type SignUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

// NormalizeEmail lower-cases and trims an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *SignUpRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	} else if _, err := mail.ParseAddress(strings.TrimSpace(r.Email)); err != nil {
		errors["email"] = "Invalid email"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}

	return errors
}

func (r *SignInRequest) Validate() ValidationErrors {
	errors := make(ValidationErrors)

	if strings.TrimSpace(r.Email) == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}
