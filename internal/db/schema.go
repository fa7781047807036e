package db

import "fmt"

// schemaSQL returns the schema initialization SQL. The HNSW index dimension
// must match the embedder output; it is fixed per store instance.
func schemaSQL(dimension int) string {
	return fmt.Sprintf(`
    -- ==========================================================================
    -- EPISODE TABLE (Episodic Memory)
    -- ==========================================================================
    DEFINE TABLE IF NOT EXISTS episode SCHEMAFULL;
    DEFINE FIELD IF NOT EXISTS conversation_id ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS user_message ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS assistant_response ON episode TYPE string;
    DEFINE FIELD IF NOT EXISTS context ON episode TYPE option<object> FLEXIBLE;
    DEFINE FIELD IF NOT EXISTS embedding ON episode TYPE array<float>;
    DEFINE FIELD IF NOT EXISTS timestamp ON episode TYPE datetime DEFAULT time::now();
    DEFINE FIELD IF NOT EXISTS satisfaction ON episode TYPE option<string>;

    DEFINE INDEX IF NOT EXISTS episode_conversation ON episode FIELDS conversation_id;
    DEFINE INDEX IF NOT EXISTS episode_timestamp ON episode FIELDS timestamp;
    DEFINE INDEX IF NOT EXISTS episode_embedding ON episode FIELDS embedding HNSW DIMENSION %d DIST COSINE TYPE F32;
`, dimension)
}
