package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/huddle/backend/internal/models"
	"github.com/huddle/backend/internal/storage"
)

const (
	defaultChatHistory  = 200
	maxChatMessageRunes = 1000
)

var ErrEmptyMessage = errors.New("message text is required")

// ChatService keeps each event's chat in process memory. History is lost on restart.
type ChatService struct {
	mu       sync.RWMutex
	messages map[string][]models.ChatMessage // eventID -> messages in append order

	events   storage.EventStore
	profiles *ProfileService
	limit    int
	loc      *time.Location
	now      func() time.Time
}

func NewChatService(events storage.EventStore, profiles *ProfileService, limit int, loc *time.Location) *ChatService {
	if limit <= 0 {
		limit = defaultChatHistory
	}
	if loc == nil {
		loc = time.Local
	}
	return &ChatService{
		messages: make(map[string][]models.ChatMessage),
		events:   events,
		profiles: profiles,
		limit:    limit,
		loc:      loc,
		now:      time.Now,
	}
}

func (s *ChatService) authorize(ctx context.Context, viewerID, eventID string) error {
	event, err := s.events.Get(ctx, eventID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	if !event.CanView(viewerID) {
		return ErrEventNotFound
	}
	return nil
}

func (s *ChatService) Send(ctx context.Context, viewerID, eventID, text string) (*models.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > maxChatMessageRunes {
		text = string([]rune(text)[:maxChatMessageRunes])
	}
	if err := s.authorize(ctx, viewerID, eventID); err != nil {
		return nil, err
	}

	sender := "You"
	if prof, err := s.profiles.Get(ctx, viewerID); err == nil {
		if name := prof.DisplayName(); name != "" {
			sender = name
		}
	}

	now := s.now()
	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		EventID:   eventID,
		SenderID:  viewerID,
		Sender:    sender,
		Text:      text,
		Timestamp: now.In(s.loc).Format(models.TimeLayout),
		SentAt:    now.UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.messages[eventID], msg)
	if len(list) > s.limit {
		list = append([]models.ChatMessage(nil), list[len(list)-s.limit:]...)
	}
	s.messages[eventID] = list

	return &msg, nil
}

// History returns the event's messages in append order.
func (s *ChatService) History(ctx context.Context, viewerID, eventID string) ([]models.ChatMessage, error) {
	if err := s.authorize(ctx, viewerID, eventID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.ChatMessage{}, s.messages[eventID]...), nil
}

// Drop discards an event's chat history.
func (s *ChatService) Drop(eventID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, eventID)
}
