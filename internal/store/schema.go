package store

import (
	"context"
	"database/sql"
	"fmt"
)

const schema = `
CREATE TABLE IF NOT EXISTS harpoon_drafts (
	id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
	campaign_type TEXT NOT NULL,
	strategy TEXT,
	original_post_id TEXT NOT NULL UNIQUE,
	original_author TEXT NOT NULL,
	original_text TEXT NOT NULL,
	extracted_context TEXT,
	status TEXT NOT NULL DEFAULT 'pending_review',
	reply_text TEXT,
	media_url TEXT,
	attribution TEXT,
	action_type TEXT NOT NULL DEFAULT 'reply',
	score INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_harpoon_drafts_created_at ON harpoon_drafts (created_at DESC);
CREATE INDEX IF NOT EXISTS idx_harpoon_drafts_status ON harpoon_drafts (status);
`

// EnsureSchema creates the drafts table if it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure drafts schema: %w", err)
	}
	return nil
}
