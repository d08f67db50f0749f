package models

import "time"

// ChatMessage is a client-visible message in an event's transient chat.
type ChatMessage struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	SenderID  string    `json:"sender_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp string    `json:"timestamp"`
	SentAt    time.Time `json:"sent_at"`
}

type SendChatMessageRequest struct {
	Text string `json:"text"`
}

// MapPin is an event placed on the map with a directions deep link.
type MapPin struct {
	EventID       string  `json:"event_id"`
	Title         string  `json:"title"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Location      string  `json:"location"`
	Latitude      float64 `json:"lat"`
	Longitude     float64 `json:"lng"`
	DirectionsURL string  `json:"directions_url"`
}
