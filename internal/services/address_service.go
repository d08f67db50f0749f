package services

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/logger"
)

// AddressCheck is the result of validating a typed address.
type AddressCheck struct {
	Valid  bool           `json:"valid"`
	Reason string         `json:"reason,omitempty"`
	Place  *geocode.Place `json:"place,omitempty"`
}

// AddressService validates addresses as they are typed. Lookups are debounced per
// user so only the latest input reaches the geocoder.
type AddressService struct {
	debouncer *geocode.Debouncer
	log       *zap.Logger
}

func NewAddressService(debouncer *geocode.Debouncer, log *zap.Logger) *AddressService {
	return &AddressService{debouncer: debouncer, log: logger.OrNop(log)}
}

// Validate returns geocode.ErrSuperseded when a newer call for the same user replaced this one.
func (s *AddressService) Validate(ctx context.Context, userID, text string) (*AddressCheck, error) {
	if !geocode.LooksLikeStreetAddress(text) {
		return &AddressCheck{Reason: "address must start with a house number followed by a street"}, nil
	}

	place, err := s.debouncer.Do(ctx, userID, text)
	if errors.Is(err, geocode.ErrSuperseded) {
		return nil, err
	}
	if err != nil {
		if !errors.Is(err, geocode.ErrNoMatch) {
			s.log.Info("[Address] lookup failed", zap.String("user", userID), zap.Error(err))
		}
		return &AddressCheck{Reason: "address could not be verified"}, nil
	}
	if !place.IsStreetAddress() {
		return &AddressCheck{Reason: "address is not a specific street address", Place: place}, nil
	}
	return &AddressCheck{Valid: true, Place: place}, nil
}
