package services

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/huddle/backend/internal/geocode"
	"github.com/huddle/backend/internal/logger"
	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/storage"
)

// DirectionsURL is the maps search deep link for a free-text location.
func DirectionsURL(location string) string {
	q := strings.ReplaceAll(url.QueryEscape(location), "+", "%20")
	return "https://www.google.com/maps/search/?api=1&query=" + q
}

type MapService struct {
	events   storage.EventStore
	geocoder geocode.Lookuper
	loc      *time.Location
	log      *zap.Logger
	now      func() time.Time
}

func NewMapService(events storage.EventStore, geocoder geocode.Lookuper, loc *time.Location, log *zap.Logger) *MapService {
	if loc == nil {
		loc = time.Local
	}
	return &MapService{
		events:   events,
		geocoder: geocoder,
		loc:      loc,
		log:      logger.OrNop(log),
		now:      time.Now,
	}
}

// Pins places the viewer's active events on the map. Events without stored
// coordinates are geocoded and the result is saved; events that cannot be placed are skipped.
func (s *MapService) Pins(ctx context.Context, viewerID string) ([]models.MapPin, error) {
	events, err := s.events.ListForAttendee(ctx, viewerID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	pins := make([]models.MapPin, 0, len(events))
	for _, e := range events {
		if e.IsExpired(now, s.loc) {
			continue
		}

		if e.Latitude == nil || e.Longitude == nil {
			if s.geocoder == nil {
				continue
			}
			place, err := s.geocoder.Lookup(ctx, e.Location)
			if err != nil {
				s.log.Debug("[Map] geocode skipped", zap.String("event", e.ID), zap.Error(err))
				continue
			}
			lat, lng := place.Latitude, place.Longitude
			e.Latitude, e.Longitude = &lat, &lng
			if err := s.events.SetCoordinates(ctx, e.ID, lat, lng); err != nil {
				s.log.Warn("[Map] saving coordinates failed", zap.String("event", e.ID), zap.Error(err))
			}
		}

		pins = append(pins, models.MapPin{
			EventID:       e.ID,
			Title:         e.Title,
			Date:          e.Date,
			Time:          e.Time,
			Location:      e.Location,
			Latitude:      *e.Latitude,
			Longitude:     *e.Longitude,
			DirectionsURL: DirectionsURL(e.Location),
		})
	}
	return pins, nil
}
