package chat

import "time"

// Session captures a transient anonymous conversation and its per-session settings.
type Session struct {
	ID           string    `json:"id"`
	PersonaID    string    `json:"personaId"`
	Language     string    `json:"language"`
	VoiceEnabled bool      `json:"voiceEnabled"`
	CreatedAt    time.Time `json:"createdAt"`
}
