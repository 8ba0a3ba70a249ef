package replywatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"harpoon/internal/models"
	"harpoon/pkg/logging"
)

const (
	defaultSweepInterval = 15 * time.Minute
	defaultTopK          = 3
	defaultRetention     = 24 * time.Hour
)

// Sink receives harvested replies for standard admission processing.
type Sink interface {
	ProcessReplyCandidate(ctx context.Context, post models.CandidatePost)
}

// Fetcher is the reply-fetching slice of the search collaborator.
type Fetcher interface {
	FetchRepliesTo(ctx context.Context, postID string, limit int) ([]models.CandidatePost, error)
}

type Config struct {
	Fetcher Fetcher
	Sink    Sink
	Logger  logging.Logger

	SweepInterval time.Duration
	TopK          int
	Retention     time.Duration
	// Now overrides the clock. Tests only.
	Now func() time.Time
}

type record struct {
	fetch       models.DelayedFetch
	processedAt time.Time
}

// Watcher revisits high-score leads hours after acceptance to harvest the
// replies their reply attracted. Stronger leads wait longer: more and
// better replies accumulate under them.
type Watcher struct {
	fetcher   Fetcher
	sink      Sink
	logger    logging.Logger
	interval  time.Duration
	topK      int
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending []*record
}

func New(cfg Config) *Watcher {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = defaultTopK
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = defaultRetention
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Watcher{
		fetcher:   cfg.Fetcher,
		sink:      cfg.Sink,
		logger:    cfg.Logger,
		interval:  interval,
		topK:      topK,
		retention: retention,
		now:       now,
	}
}

// DelayForScore computes how long to wait before harvesting a lead's
// replies.
func DelayForScore(score int) time.Duration {
	switch {
	case score >= 95:
		return 3 * time.Hour
	case score >= 90:
		return 2 * time.Hour
	default:
		return time.Hour
	}
}

// Schedule registers a delayed fetch for a freshly accepted high-score
// lead. Scheduling the same post twice while the first fetch is pending is
// a no-op.
func (w *Watcher) Schedule(postID, author string, score int) {
	now := w.now()
	delay := DelayForScore(score)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, r := range w.pending {
		if r.fetch.OriginalPostID == postID && !r.fetch.Processed {
			return
		}
	}
	w.pending = append(w.pending, &record{fetch: models.DelayedFetch{
		OriginalPostID: postID,
		OriginalAuthor: author,
		Score:          score,
		FoundAt:        now,
		FetchAt:        now.Add(delay),
	}})
	w.logger.WithFields(logging.Fields{
		"post_id":  postID,
		"score":    score,
		"fetch_at": now.Add(delay).Format(time.RFC3339),
	}).Info("Reply watcher: delayed fetch scheduled")
}

// Start runs the periodic sweep until the context is cancelled. Blocks.
func (w *Watcher) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep processes every due delayed fetch and drops processed records past
// the retention window.
func (w *Watcher) Sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.WithField("panic", fmt.Sprint(r)).Error("Reply watcher: sweep panic")
		}
	}()

	now := w.now()
	due := w.takeDue(now)
	for _, r := range due {
		w.harvest(ctx, r)
	}
	w.expire(now)
}

func (w *Watcher) takeDue(now time.Time) []*record {
	w.mu.Lock()
	defer w.mu.Unlock()
	var due []*record
	for _, r := range w.pending {
		if !r.fetch.Processed && !r.fetch.FetchAt.After(now) {
			due = append(due, r)
		}
	}
	return due
}

func (w *Watcher) harvest(ctx context.Context, r *record) {
	replies, err := w.fetcher.FetchRepliesTo(ctx, r.fetch.OriginalPostID, w.topK)
	if err != nil {
		// Left unprocessed, the next sweep retries.
		w.logger.WithError(err).WithField("post_id", r.fetch.OriginalPostID).Warn("Reply watcher: fetch failed")
		return
	}
	if len(replies) > w.topK {
		replies = replies[:w.topK]
	}
	for _, reply := range replies {
		w.sink.ProcessReplyCandidate(ctx, reply)
	}

	w.mu.Lock()
	r.fetch.Processed = true
	r.processedAt = w.now()
	w.mu.Unlock()

	w.logger.WithFields(logging.Fields{
		"post_id": r.fetch.OriginalPostID,
		"replies": len(replies),
	}).Info("Reply watcher: reply chain harvested")
}

func (w *Watcher) expire(now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.pending[:0]
	for _, r := range w.pending {
		if r.fetch.Processed && now.Sub(r.processedAt) >= w.retention {
			continue
		}
		kept = append(kept, r)
	}
	w.pending = kept
}

// Pending returns a snapshot of the schedule, most useful for inspection.
func (w *Watcher) Pending() []models.DelayedFetch {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.DelayedFetch, 0, len(w.pending))
	for _, r := range w.pending {
		out = append(out, r.fetch)
	}
	return out
}
