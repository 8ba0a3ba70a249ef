package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"harpoon/internal/models"
)

// ErrDuplicateOriginalPost is returned when a draft already exists for the
// same source post. The unique constraint on original_post_id is the
// pipeline's idempotence backstop.
var ErrDuplicateOriginalPost = errors.New("draft already exists for original post")

// ErrNotFound is returned when a draft lookup matches nothing.
var ErrNotFound = errors.New("draft not found")

type DraftStore interface {
	Save(ctx context.Context, draft models.Draft) (models.Draft, error)
	Get(ctx context.Context, id string) (models.Draft, error)
	FindByOriginalPostID(ctx context.Context, postID string) (models.Draft, error)
	UpdateStatus(ctx context.Context, id string, status models.DraftStatus) error
	ListRecent(ctx context.Context, limit int) ([]models.Draft, error)
	List(ctx context.Context, status models.DraftStatus, limit, offset int) ([]models.Draft, error)
	CountToday(ctx context.Context) (int, error)
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

type SQLDraftStore struct {
	db *sql.DB
}

func NewDraftStore(db *sql.DB) *SQLDraftStore {
	return &SQLDraftStore{db: db}
}

const draftColumns = `id,
	campaign_type,
	strategy,
	original_post_id,
	original_author,
	original_text,
	extracted_context,
	status,
	reply_text,
	media_url,
	attribution,
	action_type,
	score,
	created_at`

func (s *SQLDraftStore) Save(ctx context.Context, draft models.Draft) (models.Draft, error) {
	if s == nil || s.db == nil {
		return models.Draft{}, errors.New("draft store unavailable")
	}

	status := draft.Status
	if status == "" {
		status = models.StatusPendingReview
	}
	actionType := draft.ActionType
	if actionType == "" {
		actionType = models.ActionReply
	}

	var strategy sql.NullString
	if draft.Strategy != "" {
		strategy = sql.NullString{String: draft.Strategy, Valid: true}
	}

	var id string
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO harpoon_drafts (
			campaign_type,
			strategy,
			original_post_id,
			original_author,
			original_text,
			extracted_context,
			status,
			reply_text,
			media_url,
			attribution,
			action_type,
			score,
			created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW())
		RETURNING id, created_at
	`,
		draft.CampaignType,
		strategy,
		draft.OriginalPostID,
		draft.OriginalAuthor,
		draft.OriginalText,
		draft.ExtractedContext,
		string(status),
		draft.ReplyText,
		draft.MediaURL,
		draft.Attribution,
		string(actionType),
		draft.Score,
	).Scan(&id, &createdAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.Draft{}, ErrDuplicateOriginalPost
		}
		return models.Draft{}, fmt.Errorf("insert draft: %w", err)
	}

	draft.ID = id
	draft.Status = status
	draft.ActionType = actionType
	draft.CreatedAt = createdAt
	return draft, nil
}

func (s *SQLDraftStore) Get(ctx context.Context, id string) (models.Draft, error) {
	if s == nil || s.db == nil {
		return models.Draft{}, errors.New("draft store unavailable")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM harpoon_drafts WHERE id = $1`, id)
	draft, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Draft{}, ErrNotFound
	}
	return draft, err
}

func (s *SQLDraftStore) FindByOriginalPostID(ctx context.Context, postID string) (models.Draft, error) {
	if s == nil || s.db == nil {
		return models.Draft{}, errors.New("draft store unavailable")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+draftColumns+` FROM harpoon_drafts WHERE original_post_id = $1`, postID)
	draft, err := scanDraft(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Draft{}, ErrNotFound
	}
	return draft, err
}

func (s *SQLDraftStore) UpdateStatus(ctx context.Context, id string, status models.DraftStatus) error {
	if s == nil || s.db == nil {
		return errors.New("draft store unavailable")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE harpoon_drafts SET status = $1 WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("update draft status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRecent returns the newest drafts regardless of status. The duplicate
// suppressor uses this as its recency window.
func (s *SQLDraftStore) ListRecent(ctx context.Context, limit int) ([]models.Draft, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("draft store unavailable")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+draftColumns+` FROM harpoon_drafts ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent drafts: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func (s *SQLDraftStore) List(ctx context.Context, status models.DraftStatus, limit, offset int) ([]models.Draft, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("draft store unavailable")
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows *sql.Rows
	var err error
	if status == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+draftColumns+` FROM harpoon_drafts ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
			limit, offset)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+draftColumns+` FROM harpoon_drafts WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			string(status), limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	defer rows.Close()

	return collectDrafts(rows)
}

func (s *SQLDraftStore) CountToday(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("draft store unavailable")
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM harpoon_drafts
		WHERE created_at >= (CURRENT_DATE AT TIME ZONE 'UTC')
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today drafts: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes terminal drafts (rejected, published, failed) older
// than the given age. Pending and approved drafts are never reaped.
func (s *SQLDraftStore) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("draft store unavailable")
	}

	result, err := s.db.ExecContext(ctx, `
		DELETE FROM harpoon_drafts
		WHERE status IN ('rejected', 'published', 'failed')
		AND created_at < NOW() - $1::interval
	`, fmt.Sprintf("%d seconds", int(age.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("delete old drafts: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete old drafts: rows affected: %w", err)
	}
	return affected, nil
}

type draftScanner interface {
	Scan(dest ...any) error
}

func scanDraft(s draftScanner) (models.Draft, error) {
	var draft models.Draft
	var strategy, extractedContext, replyText, mediaURL, attribution sql.NullString
	var status, actionType string
	if err := s.Scan(
		&draft.ID,
		&draft.CampaignType,
		&strategy,
		&draft.OriginalPostID,
		&draft.OriginalAuthor,
		&draft.OriginalText,
		&extractedContext,
		&status,
		&replyText,
		&mediaURL,
		&attribution,
		&actionType,
		&draft.Score,
		&draft.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Draft{}, err
		}
		return models.Draft{}, fmt.Errorf("scan draft: %w", err)
	}
	draft.Strategy = strategy.String
	draft.ExtractedContext = extractedContext.String
	draft.ReplyText = replyText.String
	draft.MediaURL = mediaURL.String
	draft.Attribution = attribution.String
	draft.Status = models.DraftStatus(status)
	draft.ActionType = models.ActionType(actionType)
	return draft, nil
}

func collectDrafts(rows *sql.Rows) ([]models.Draft, error) {
	var drafts []models.Draft
	for rows.Next() {
		d, err := scanDraft(rows)
		if err != nil {
			return nil, err
		}
		drafts = append(drafts, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drafts: %w", err)
	}
	return drafts, nil
}
