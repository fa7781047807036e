package models

import (
	"strings"
	"time"
)

// Satisfaction is explicit user feedback on an exchange.
type Satisfaction string

const (
	SatisfactionPositive Satisfaction = "positive"
	SatisfactionNegative Satisfaction = "negative"
)

// EpisodeContext captures what the user was working on during the exchange.
type EpisodeContext struct {
	Files     []string `json:"files,omitempty"`
	Screen    string   `json:"screen,omitempty"`
	Workspace string   `json:"workspace,omitempty"`
}

// Episode is one recorded user/assistant exchange with contextual metadata.
// The embedding is computed once at creation; only Satisfaction may change
// afterwards.
type Episode struct {
	ID                string         `json:"id"`
	ConversationID    string         `json:"conversation_id"`
	Timestamp         time.Time      `json:"timestamp"`
	UserMessage       string         `json:"user_message"`
	AssistantResponse string         `json:"assistant_response"`
	Context           EpisodeContext `json:"context,omitempty"`
	Embedding         []float32      `json:"embedding,omitempty"`
	Satisfaction      *Satisfaction  `json:"satisfaction,omitempty"`
}

// SearchableText builds the text representation that gets embedded and
// matched against queries: both sides of the exchange plus the context
// fields that carry semantic signal.
func (e *Episode) SearchableText() string {
	parts := []string{e.UserMessage, e.AssistantResponse}
	if e.Context.Screen != "" {
		parts = append(parts, e.Context.Screen)
	}
	if e.Context.Workspace != "" {
		parts = append(parts, e.Context.Workspace)
	}
	if len(e.Context.Files) > 0 {
		parts = append(parts, strings.Join(e.Context.Files, " "))
	}
	return strings.Join(parts, "\n")
}

// RetrievedEpisode is an Episode scored against a query. Produced per
// search, never persisted.
type RetrievedEpisode struct {
	Episode
	Similarity float64 `json:"similarity"`
	Rank       int     `json:"rank"`
}

// SearchResult carries the ranked episodes plus the number of candidates
// that cleared the similarity floor before truncation to topK.
type SearchResult struct {
	Episodes   []RetrievedEpisode `json:"episodes"`
	MatchCount int                `json:"match_count"`
}

// TimeRange bounds a search to [From, To). A zero bound is open.
type TimeRange struct {
	From time.Time `json:"from,omitempty"`
	To   time.Time `json:"to,omitempty"`
}

// MemoryStats summarizes the persisted episode store.
type MemoryStats struct {
	TotalEpisodes   int        `json:"total_episodes"`
	CachedEpisodes  int        `json:"cached_episodes"`
	OldestTimestamp *time.Time `json:"oldest_timestamp,omitempty"`
	NewestTimestamp *time.Time `json:"newest_timestamp,omitempty"`
	AvgSatisfaction *float64   `json:"avg_satisfaction,omitempty"`
}
