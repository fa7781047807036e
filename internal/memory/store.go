// Package memory implements the episodic memory store: durable episode
// persistence fronted by a bounded in-memory working set that similarity
// search runs against.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/models"
)

// Persistence is the durable episode backend. Implemented by db.Client.
type Persistence interface {
	CreateEpisode(ctx context.Context, ep *models.Episode) error
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)
	DeleteEpisode(ctx context.Context, id string) (bool, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int, error)
	DeleteAll(ctx context.Context) (int, error)
	RecentEpisodes(ctx context.Context, n int) ([]models.Episode, error)
	UpdateSatisfaction(ctx context.Context, id string, value models.Satisfaction) (bool, error)
	Stats(ctx context.Context) (models.MemoryStats, error)
}

// TextEmbedder turns text into a vector. Implemented by llm.Embedder.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchOptions narrows a similarity search. TopK and MinSimilarity are
// required; ConversationID and TimeRange are optional filters applied
// before scoring.
type SearchOptions struct {
	TopK           int
	MinSimilarity  float64
	ConversationID string
	TimeRange      *models.TimeRange
}

// Store is the episodic memory store. Episodes are written through to
// persistence and mirrored into a capacity-bounded cache, oldest first.
// When the cache is full the oldest cached episode is dropped; the
// persisted row is untouched. Search scores the cached working set only.
type Store struct {
	persist   Persistence
	embedder  TextEmbedder
	capacity  int
	collector *metrics.Collector

	mu          sync.RWMutex
	cache       []models.Episode
	initialized bool
}

// NewStore creates a store with the given cache capacity. The store is
// unusable until Initialize is called.
func NewStore(persist Persistence, embedder TextEmbedder, capacity int, collector *metrics.Collector) *Store {
	return &Store{
		persist:   persist,
		embedder:  embedder,
		capacity:  capacity,
		collector: collector,
	}
}

// Initialize warms the cache with the most recent persisted episodes.
// A failure to load is not fatal: the store starts with an empty cache
// and logs a warning, so a corrupted or unreachable history never blocks
// startup.
func (s *Store) Initialize(ctx context.Context) error {
	recent, err := s.persist.RecentEpisodes(ctx, s.capacity)
	if err != nil {
		slog.Warn("loading recent episodes failed, starting with empty cache", "error", err)
		recent = nil
	}

	// RecentEpisodes returns newest first; the cache keeps oldest first
	// so eviction can drop from the front.
	cache := make([]models.Episode, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		cache = append(cache, recent[i])
	}

	s.mu.Lock()
	s.cache = cache
	s.initialized = true
	s.mu.Unlock()

	slog.Info("memory store initialized", "cached_episodes", len(cache), "capacity", s.capacity)
	return nil
}

func (s *Store) checkInitialized() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.initialized {
		return ErrNotInitialized
	}
	return nil
}

// StoreEpisode embeds and persists a new episode, then admits it to the
// cache. Returns the episode id. A missing id or timestamp is filled in.
func (s *Store) StoreEpisode(ctx context.Context, ep *models.Episode) (string, error) {
	if err := s.checkInitialized(); err != nil {
		return "", err
	}

	if ep.ID == "" {
		ep.ID = "ep_" + uuid.NewString()
	}
	if ep.Timestamp.IsZero() {
		ep.Timestamp = time.Now().UTC()
	}

	embedding, err := s.embedder.Embed(ctx, ep.SearchableText())
	if err != nil {
		return "", fmt.Errorf("embed episode: %w", err)
	}
	ep.Embedding = embedding

	if err := s.persist.CreateEpisode(ctx, ep); err != nil {
		return "", fmt.Errorf("persist episode: %w", err)
	}

	s.mu.Lock()
	s.admit(*ep)
	s.mu.Unlock()

	slog.Debug("episode stored", "id", ep.ID, "conversation_id", ep.ConversationID)
	return ep.ID, nil
}

// admit appends an episode, evicting the oldest when at capacity.
// Caller holds the write lock.
func (s *Store) admit(ep models.Episode) {
	if s.capacity > 0 && len(s.cache) >= s.capacity {
		n := copy(s.cache, s.cache[1:])
		s.cache = s.cache[:n]
	}
	s.cache = append(s.cache, ep)
}

// SearchEpisodes embeds the query and scores it against the cached
// working set. Results are sorted by similarity descending, filtered to
// MinSimilarity, and truncated to TopK. MatchCount reports how many
// episodes cleared the floor before truncation.
func (s *Store) SearchEpisodes(ctx context.Context, query string, opts SearchOptions) (*models.SearchResult, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}

	start := time.Now()

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Op: "embed query", Err: err}
	}

	s.mu.RLock()
	candidates := make([]models.Episode, len(s.cache))
	copy(candidates, s.cache)
	s.mu.RUnlock()

	scored := make([]models.RetrievedEpisode, 0, len(candidates))
	for i := range candidates {
		ep := &candidates[i]
		if opts.ConversationID != "" && ep.ConversationID != opts.ConversationID {
			continue
		}
		if opts.TimeRange != nil && !inRange(ep.Timestamp, opts.TimeRange) {
			continue
		}
		sim := Cosine(queryVec, ep.Embedding)
		if sim < opts.MinSimilarity {
			continue
		}
		scored = append(scored, models.RetrievedEpisode{Episode: *ep, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	matchCount := len(scored)
	if opts.TopK > 0 && len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}

	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpRetrieval, time.Since(start))
	}
	slog.Debug("episode search", "matches", matchCount, "returned", len(scored))

	return &models.SearchResult{Episodes: scored, MatchCount: matchCount}, nil
}

func inRange(t time.Time, r *models.TimeRange) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}

// FindSimilarEpisodes scores a stored episode's embedding against the
// rest of the cached working set, excluding the episode itself.
func (s *Store) FindSimilarEpisodes(ctx context.Context, episodeID string, topK int) ([]models.RetrievedEpisode, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}

	target, err := s.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, &RetrievalError{Op: "find similar", Err: fmt.Errorf("episode %q not found", episodeID)}
	}

	s.mu.RLock()
	candidates := make([]models.Episode, len(s.cache))
	copy(candidates, s.cache)
	s.mu.RUnlock()

	scored := make([]models.RetrievedEpisode, 0, len(candidates))
	for i := range candidates {
		ep := &candidates[i]
		if ep.ID == episodeID {
			continue
		}
		sim := Cosine(target.Embedding, ep.Embedding)
		scored = append(scored, models.RetrievedEpisode{Episode: *ep, Similarity: sim})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})

	if topK > 0 && len(scored) > topK {
		scored = scored[:topK]
	}
	for i := range scored {
		scored[i].Rank = i + 1
	}
	return scored, nil
}

// GetEpisode returns an episode by id, or nil if it does not exist.
// The cache is checked first to spare a round trip.
func (s *Store) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	if err := s.checkInitialized(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	for i := range s.cache {
		if s.cache[i].ID == id {
			ep := s.cache[i]
			s.mu.RUnlock()
			return &ep, nil
		}
	}
	s.mu.RUnlock()

	ep, err := s.persist.GetEpisode(ctx, id)
	if err != nil {
		return nil, &RetrievalError{Op: "get episode", Err: err}
	}
	return ep, nil
}

// DeleteEpisode removes an episode from persistence and the cache.
// Returns false without error when the episode does not exist.
func (s *Store) DeleteEpisode(ctx context.Context, id string) (bool, error) {
	if err := s.checkInitialized(); err != nil {
		return false, err
	}

	found, err := s.persist.DeleteEpisode(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].ID == id {
			s.cache = append(s.cache[:i], s.cache[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	return found, nil
}

// ClearEpisodes deletes all episodes of one conversation, or every
// episode when conversationID is empty. Returns the number removed from
// persistence.
func (s *Store) ClearEpisodes(ctx context.Context, conversationID string) (int, error) {
	if err := s.checkInitialized(); err != nil {
		return 0, err
	}

	var removed int
	var err error
	if conversationID == "" {
		removed, err = s.persist.DeleteAll(ctx)
	} else {
		removed, err = s.persist.DeleteByConversation(ctx, conversationID)
	}
	if err != nil {
		return 0, fmt.Errorf("clear episodes: %w", err)
	}

	s.mu.Lock()
	if conversationID == "" {
		s.cache = s.cache[:0]
	} else {
		kept := s.cache[:0]
		for i := range s.cache {
			if s.cache[i].ConversationID != conversationID {
				kept = append(kept, s.cache[i])
			}
		}
		s.cache = kept
	}
	s.mu.Unlock()

	slog.Info("episodes cleared", "conversation_id", conversationID, "removed", removed)
	return removed, nil
}

// UpdateSatisfaction records user feedback on an episode. Returns false
// when the episode does not exist.
func (s *Store) UpdateSatisfaction(ctx context.Context, id string, value models.Satisfaction) (bool, error) {
	if err := s.checkInitialized(); err != nil {
		return false, err
	}

	found, err := s.persist.UpdateSatisfaction(ctx, id, value)
	if err != nil {
		return false, fmt.Errorf("update satisfaction: %w", err)
	}
	if !found {
		return false, nil
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].ID == id {
			v := value
			s.cache[i].Satisfaction = &v
			break
		}
	}
	s.mu.Unlock()

	return true, nil
}

// Stats aggregates persisted statistics plus the live cache size.
func (s *Store) Stats(ctx context.Context) (models.MemoryStats, error) {
	if err := s.checkInitialized(); err != nil {
		return models.MemoryStats{}, err
	}

	stats, err := s.persist.Stats(ctx)
	if err != nil {
		return models.MemoryStats{}, fmt.Errorf("memory stats: %w", err)
	}

	s.mu.RLock()
	stats.CachedEpisodes = len(s.cache)
	s.mu.RUnlock()

	return stats, nil
}
