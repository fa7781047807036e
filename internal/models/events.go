package models

import "time"

// VoiceEventType distinguishes the two voice-activity transitions.
type VoiceEventType string

const (
	SpeechStart VoiceEventType = "speech_start"
	SpeechEnd   VoiceEventType = "speech_end"
)

// VoiceEvent is an ephemeral voice-activity notification. Duration is set
// only on speech_end and equals the accumulated above-threshold time.
type VoiceEvent struct {
	Type       VoiceEventType `json:"type"`
	Confidence float64        `json:"confidence"`
	Duration   time.Duration  `json:"duration,omitempty"`
}

// WakeWordEvent is an ephemeral trigger-phrase notification.
type WakeWordEvent struct {
	Phrase     string    `json:"phrase"`
	Confidence float64   `json:"confidence"`
	Timestamp  time.Time `json:"timestamp"`
}
