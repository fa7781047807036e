package db

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/edenlabs/eden/internal/metrics"
	"github.com/edenlabs/eden/internal/models"
)

// episodeRow is the persisted shape of an episode. SurrealDB record ids
// decode into RecordID; everything else maps straight onto the model.
type episodeRow struct {
	ID                surrealmodels.RecordID `json:"id"`
	ConversationID    string                 `json:"conversation_id"`
	UserMessage       string                 `json:"user_message"`
	AssistantResponse string                 `json:"assistant_response"`
	Context           *models.EpisodeContext `json:"context,omitempty"`
	Embedding         []float32              `json:"embedding"`
	Timestamp         time.Time              `json:"timestamp"`
	Satisfaction      *string                `json:"satisfaction,omitempty"`
}

func (r *episodeRow) toModel() (models.Episode, error) {
	id, ok := r.ID.ID.(string)
	if !ok {
		return models.Episode{}, fmt.Errorf("unexpected episode id type: %T", r.ID.ID)
	}

	ep := models.Episode{
		ID:                id,
		ConversationID:    r.ConversationID,
		UserMessage:       r.UserMessage,
		AssistantResponse: r.AssistantResponse,
		Embedding:         r.Embedding,
		Timestamp:         r.Timestamp,
	}
	if r.Context != nil {
		ep.Context = *r.Context
	}
	if r.Satisfaction != nil {
		s := models.Satisfaction(*r.Satisfaction)
		ep.Satisfaction = &s
	}
	return ep, nil
}

func rowsToModels(rows []episodeRow) ([]models.Episode, error) {
	episodes := make([]models.Episode, 0, len(rows))
	for i := range rows {
		ep, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, ep)
	}
	return episodes, nil
}

// CreateEpisode persists an episode. Uses UPSERT so replays of the same id
// are idempotent.
func (c *Client) CreateEpisode(ctx context.Context, ep *models.Episode) error {
	defer c.record(metrics.OpDBQuery, time.Now())

	sql := `
		UPSERT type::record("episode", $id) SET
			conversation_id = $conversation_id,
			user_message = $user_message,
			assistant_response = $assistant_response,
			context = $context,
			embedding = $embedding,
			timestamp = type::datetime($timestamp),
			satisfaction = $satisfaction
	`

	var satisfaction *string
	if ep.Satisfaction != nil {
		s := string(*ep.Satisfaction)
		satisfaction = &s
	}

	_, err := surrealdb.Query[any](ctx, c.db, sql, map[string]any{
		"id":                 ep.ID,
		"conversation_id":    ep.ConversationID,
		"user_message":       ep.UserMessage,
		"assistant_response": ep.AssistantResponse,
		"context":            ep.Context,
		"embedding":          ep.Embedding,
		"timestamp":          ep.Timestamp.UTC().Format(time.RFC3339Nano),
		"satisfaction":       satisfaction,
	})
	if err != nil {
		return fmt.Errorf("create episode: %w", wrapQueryError(err))
	}
	return nil
}

// GetEpisode retrieves an episode by id. Returns nil if not found.
func (c *Client) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db, `
		SELECT * FROM type::record("episode", $id)
	`, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, nil
	}
	ep, err := (*results)[0].Result[0].toModel()
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return &ep, nil
}

// DeleteEpisode deletes an episode by id. Returns false if it did not
// exist; never an error for a missing id.
func (c *Client) DeleteEpisode(ctx context.Context, id string) (bool, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db,
		`DELETE type::record("episode", $id) RETURN BEFORE`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return false, nil
	}
	return len((*results)[0].Result) > 0, nil
}

// DeleteByConversation deletes all episodes of one conversation and
// returns the number removed.
func (c *Client) DeleteByConversation(ctx context.Context, conversationID string) (int, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db,
		`DELETE episode WHERE conversation_id = $cid RETURN BEFORE`,
		map[string]any{"cid": conversationID})
	if err != nil {
		return 0, fmt.Errorf("delete conversation episodes: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// DeleteAll deletes every episode and returns the number removed.
func (c *Client) DeleteAll(ctx context.Context) (int, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db,
		`DELETE episode RETURN BEFORE`, nil)
	if err != nil {
		return 0, fmt.Errorf("delete all episodes: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// RecentEpisodes returns the n most recent episodes, newest first.
// Used to warm the in-memory cache at startup.
func (c *Client) RecentEpisodes(ctx context.Context, n int) ([]models.Episode, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db, `
		SELECT * FROM episode ORDER BY timestamp DESC LIMIT $n
	`, map[string]any{"n": n})
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
	}

	if results == nil || len(*results) == 0 {
		return []models.Episode{}, nil
	}
	return rowsToModels((*results)[0].Result)
}

// UpdateSatisfaction sets the satisfaction feedback on an episode.
// Returns false if the episode does not exist.
func (c *Client) UpdateSatisfaction(ctx context.Context, id string, value models.Satisfaction) (bool, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	results, err := surrealdb.Query[[]episodeRow](ctx, c.db, `
		UPDATE type::record("episode", $id) SET satisfaction = $value RETURN AFTER
	`, map[string]any{"id": id, "value": string(value)})
	if err != nil {
		return false, fmt.Errorf("update satisfaction: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return false, nil
	}
	return len((*results)[0].Result) > 0, nil
}

type countRow struct {
	Count int `json:"count"`
}

// Stats aggregates store-wide episode statistics.
func (c *Client) Stats(ctx context.Context) (models.MemoryStats, error) {
	defer c.record(metrics.OpDBQuery, time.Now())

	var stats models.MemoryStats

	counts, err := surrealdb.Query[[]countRow](ctx, c.db,
		`SELECT count() AS count FROM episode GROUP ALL`, nil)
	if err != nil {
		return stats, fmt.Errorf("count episodes: %w", err)
	}
	if counts != nil && len(*counts) > 0 && len((*counts)[0].Result) > 0 {
		stats.TotalEpisodes = (*counts)[0].Result[0].Count
	}

	if stats.TotalEpisodes == 0 {
		return stats, nil
	}

	bounds, err := surrealdb.Query[[]episodeRow](ctx, c.db, `
		SELECT * FROM episode ORDER BY timestamp ASC LIMIT 1;
		SELECT * FROM episode ORDER BY timestamp DESC LIMIT 1;
	`, nil)
	if err != nil {
		return stats, fmt.Errorf("episode bounds: %w", err)
	}
	if bounds != nil && len(*bounds) >= 2 {
		if rows := (*bounds)[0].Result; len(rows) > 0 {
			t := rows[0].Timestamp
			stats.OldestTimestamp = &t
		}
		if rows := (*bounds)[1].Result; len(rows) > 0 {
			t := rows[0].Timestamp
			stats.NewestTimestamp = &t
		}
	}

	rated, err := surrealdb.Query[[]countRow](ctx, c.db, `
		SELECT count() AS count FROM episode WHERE satisfaction = 'positive' GROUP ALL;
		SELECT count() AS count FROM episode WHERE satisfaction != NONE GROUP ALL;
	`, nil)
	if err != nil {
		return stats, fmt.Errorf("satisfaction counts: %w", err)
	}
	if rated != nil && len(*rated) >= 2 {
		positive := 0
		total := 0
		if rows := (*rated)[0].Result; len(rows) > 0 {
			positive = rows[0].Count
		}
		if rows := (*rated)[1].Result; len(rows) > 0 {
			total = rows[0].Count
		}
		if total > 0 {
			avg := float64(positive) / float64(total)
			stats.AvgSatisfaction = &avg
		}
	}

	return stats, nil
}
