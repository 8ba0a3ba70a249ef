package dedupe

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harpoon/internal/models"
	"harpoon/internal/store"
	"harpoon/pkg/logging"
)

type fakeDraftLookup struct {
	byPostID map[string]models.Draft
	recent   []models.Draft
	listErr  error
}

func (f *fakeDraftLookup) FindByOriginalPostID(ctx context.Context, postID string) (models.Draft, error) {
	if d, ok := f.byPostID[postID]; ok {
		return d, nil
	}
	return models.Draft{}, store.ErrNotFound
}

func (f *fakeDraftLookup) ListRecent(ctx context.Context, limit int) ([]models.Draft, error) {
	return f.recent, f.listErr
}

func newTestSuppressor(lookup *fakeDraftLookup, now *time.Time) *Suppressor {
	return NewSuppressor(Config{
		Store:  lookup,
		Logger: logging.NewLogger(),
		Now:    func() time.Time { return *now },
	})
}

func TestSuppressExactPostIDMatch(t *testing.T) {
	now := time.Now()
	lookup := &fakeDraftLookup{byPostID: map[string]models.Draft{
		"t1": {ID: "d1", OriginalPostID: "t1"},
	}}
	s := newTestSuppressor(lookup, &now)

	v := s.ShouldSuppress(context.Background(), "any text at all", "alice", "t1")
	require.True(t, v.Suppress)
	require.Equal(t, ReasonDuplicatePostID, v.Reason)
}

func TestSessionDuplicateWithinTTL(t *testing.T) {
	now := time.Now()
	lookup := &fakeDraftLookup{}
	s := newTestSuppressor(lookup, &now)

	text := "first time visiting paris any tips"
	v := s.ShouldSuppress(context.Background(), text, "alice", "t1")
	require.False(t, v.Suppress)

	// 59 seconds later: still inside the session TTL
	now = now.Add(59 * time.Second)
	v = s.ShouldSuppress(context.Background(), "Paris visiting time first, tips any?!", "bob", "t2")
	require.True(t, v.Suppress)
	require.Equal(t, ReasonSessionDuplicate, v.Reason)
}

func TestSessionEntryExpiresAfterTTL(t *testing.T) {
	now := time.Now()
	lookup := &fakeDraftLookup{}
	s := newTestSuppressor(lookup, &now)

	text := "first time visiting paris any tips"
	v := s.ShouldSuppress(context.Background(), text, "alice", "t1")
	require.False(t, v.Suppress)

	// 61 seconds later: the cache entry has expired, candidate is evaluated fresh
	now = now.Add(61 * time.Second)
	v = s.ShouldSuppress(context.Background(), text, "bob", "t2")
	require.False(t, v.Suppress)
}

func TestFingerprintMatchAgainstRecentDrafts(t *testing.T) {
	now := time.Now()
	spam := "Amazing crypto trading signals join telegram channel today"
	lookup := &fakeDraftLookup{recent: []models.Draft{
		{ID: "d1", OriginalPostID: "t0", OriginalText: spam},
	}}
	s := newTestSuppressor(lookup, &now)

	// Same words, different order, different account: bot-network spam
	v := s.ShouldSuppress(context.Background(), "join today: amazing telegram crypto signals trading channel", "mallory", "t9")
	require.True(t, v.Suppress)
	require.Equal(t, ReasonFingerprintMatch, v.Reason)
}

func TestShortFingerprintSkipsExactMatch(t *testing.T) {
	now := time.Now()
	lookup := &fakeDraftLookup{recent: []models.Draft{
		{ID: "d1", OriginalPostID: "t0", OriginalText: "nice trip"},
	}}
	s := newTestSuppressor(lookup, &now)

	// Fingerprints this short are not trusted as exact matches, and a
	// single shared word stays well under the fuzzy threshold.
	v := s.ShouldSuppress(context.Background(), "nice hike", "bob", "t2")
	require.False(t, v.Suppress)
}

func TestFuzzySimilarityMatch(t *testing.T) {
	now := time.Now()
	base := "alpha bravo charlie delta echo foxtrot golf hotel india"
	lookup := &fakeDraftLookup{recent: []models.Draft{
		{ID: "d1", OriginalPostID: "t0", OriginalText: base + " juliet"},
	}}
	s := newTestSuppressor(lookup, &now)

	v := s.ShouldSuppress(context.Background(), base+" kilo", "bob", "t2")
	require.True(t, v.Suppress)
	require.Equal(t, ReasonSimilarText, v.Reason)
}

func TestTunableThreshold(t *testing.T) {
	now := time.Now()
	base := "alpha bravo charlie delta echo foxtrot"
	lookup := &fakeDraftLookup{recent: []models.Draft{
		{ID: "d1", OriginalPostID: "t0", OriginalText: base + " golf hotel"},
	}}
	s := newTestSuppressor(lookup, &now)

	// 6/10 overlap = 0.60: below the default 0.80
	candidate := base + " india juliet"
	require.False(t, s.ShouldSuppress(context.Background(), candidate, "bob", "t2").Suppress)

	// Step past the session TTL so the retry is not caught by layer 2.
	now = now.Add(2 * time.Minute)
	s.SetSimilarityThreshold(0.50)
	v := s.ShouldSuppress(context.Background(), candidate, "bob", "t3")
	require.True(t, v.Suppress)
	require.Equal(t, ReasonSimilarText, v.Reason)

	// Out-of-range values are ignored
	s.SetSimilarityThreshold(1.5)
	require.InDelta(t, 0.50, s.SimilarityThreshold(), 1e-9)
}

func TestStoreFailureDoesNotSuppress(t *testing.T) {
	now := time.Now()
	lookup := &fakeDraftLookup{listErr: context.DeadlineExceeded}
	s := newTestSuppressor(lookup, &now)

	v := s.ShouldSuppress(context.Background(), "a perfectly normal candidate post", "alice", "t1")
	require.False(t, v.Suppress)
}
