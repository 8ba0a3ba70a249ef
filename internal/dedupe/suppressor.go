package dedupe

import (
	"context"
	"errors"
	"sync"
	"time"

	"harpoon/internal/models"
	"harpoon/internal/store"
	"harpoon/pkg/cache"
	"harpoon/pkg/logging"
)

// Suppression reasons, logged and published with every verdict.
const (
	ReasonDuplicatePostID  = "duplicate_post_id"
	ReasonSessionDuplicate = "session_duplicate"
	ReasonFingerprintMatch = "fingerprint_match"
	ReasonSimilarText      = "similar_text"
)

const (
	defaultSessionTTL       = time.Minute
	defaultRecencyWindow    = 200
	defaultSimilarity       = 0.80
	minFingerprintLength    = 20
	defaultSessionCacheSize = 1000
)

// DraftLookup is the slice of the draft store the suppressor needs.
type DraftLookup interface {
	FindByOriginalPostID(ctx context.Context, postID string) (models.Draft, error)
	ListRecent(ctx context.Context, limit int) ([]models.Draft, error)
}

// Verdict is the outcome of a suppression check.
type Verdict struct {
	Suppress bool
	Reason   string
}

type sessionEntry struct {
	AuthorHandle string
	PostID       string
	InsertedAt   time.Time
}

type Config struct {
	Store               DraftLookup
	Logger              logging.Logger
	SessionTTL          time.Duration
	RecencyWindow       int
	SimilarityThreshold float64
	// Now overrides the clock used for session-cache expiry. Tests only.
	Now func() time.Time
}

// Suppressor decides whether a candidate post is a near-duplicate of
// something already queued this cycle or already drafted recently. Three
// persistent layers plus a session cache, each catching a different
// duplication pattern.
type Suppressor struct {
	store   DraftLookup
	session *cache.Cache
	logger  logging.Logger
	now     func() time.Time

	window int

	mu        sync.RWMutex
	threshold float64
}

func NewSuppressor(cfg Config) *Suppressor {
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	window := cfg.RecencyWindow
	if window < 100 {
		window = defaultRecencyWindow
	}
	threshold := cfg.SimilarityThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = defaultSimilarity
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Suppressor{
		store:     cfg.Store,
		session:   cache.NewWithClock(cache.Options{TTL: ttl, MaxEntries: defaultSessionCacheSize}, now),
		logger:    cfg.Logger,
		now:       now,
		window:    window,
		threshold: threshold,
	}
}

// SimilarityThreshold returns the current fuzzy-match threshold.
func (s *Suppressor) SimilarityThreshold() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.threshold
}

// SetSimilarityThreshold tunes the fuzzy-match threshold at runtime. Values
// outside (0, 1] are ignored.
func (s *Suppressor) SetSimilarityThreshold(threshold float64) {
	if threshold <= 0 || threshold > 1 {
		return
	}
	s.mu.Lock()
	s.threshold = threshold
	s.mu.Unlock()
}

// ShouldSuppress runs the layered duplicate checks in order, short-circuiting
// on the first match. A store failure never suppresses: losing one dedupe
// layer is preferable to silently dropping a legitimate lead.
func (s *Suppressor) ShouldSuppress(ctx context.Context, text, authorHandle, postID string) Verdict {
	// Layer 1: exact source match. At most one draft per source post.
	if _, err := s.store.FindByOriginalPostID(ctx, postID); err == nil {
		return s.verdict(postID, authorHandle, ReasonDuplicatePostID)
	} else if !errors.Is(err, store.ErrNotFound) {
		s.logger.WithError(err).WithField("post_id", postID).Warn("Suppressor: draft lookup failed")
	}

	fingerprint := Fingerprint(text)

	// Layer 2: same-cycle duplicate. Closes the race window before the first
	// of a batch of duplicates has been persisted.
	if fingerprint != "" {
		if _, hit := s.session.Peek(fingerprint); hit {
			return s.verdict(postID, authorHandle, ReasonSessionDuplicate)
		}
		s.session.Set(fingerprint, sessionEntry{
			AuthorHandle: authorHandle,
			PostID:       postID,
			InsertedAt:   s.now(),
		}, 0)
	}

	recent, err := s.store.ListRecent(ctx, s.window)
	if err != nil {
		s.logger.WithError(err).Warn("Suppressor: recency window unavailable, skipping historical checks")
		return Verdict{}
	}

	// Layer 3: exact fingerprint match across accounts. Cheap set lookup that
	// catches bot networks posting identical promotional text. Short
	// fingerprints are skipped to avoid false positives.
	if len(fingerprint) > minFingerprintLength {
		for _, draft := range recent {
			if Fingerprint(draft.OriginalText) == fingerprint {
				return s.verdict(postID, authorHandle, ReasonFingerprintMatch)
			}
		}
	}

	// Layer 4: fuzzy word-overlap match for paraphrased spam that exact
	// fingerprinting misses.
	threshold := s.SimilarityThreshold()
	for _, draft := range recent {
		if sim := Similarity(text, draft.OriginalText); sim >= threshold {
			s.logger.WithFields(logging.Fields{
				"post_id":    postID,
				"similarity": sim,
				"against":    draft.ID,
			}).Debug("Suppressor: fuzzy match")
			return s.verdict(postID, authorHandle, ReasonSimilarText)
		}
	}

	return Verdict{}
}

func (s *Suppressor) verdict(postID, authorHandle, reason string) Verdict {
	s.logger.WithFields(logging.Fields{
		"post_id": postID,
		"author":  authorHandle,
		"reason":  reason,
	}).Info("Suppressor: candidate suppressed")
	return Verdict{Suppress: true, Reason: reason}
}
