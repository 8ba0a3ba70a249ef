package replywatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harpoon/internal/models"
	"harpoon/pkg/logging"
)

type fakeFetcher struct {
	replies map[string][]models.CandidatePost
	err     error
	calls   int
}

func (f *fakeFetcher) FetchRepliesTo(ctx context.Context, postID string, limit int) ([]models.CandidatePost, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.replies[postID], nil
}

type fakeSink struct {
	received []models.CandidatePost
}

func (f *fakeSink) ProcessReplyCandidate(ctx context.Context, post models.CandidatePost) {
	f.received = append(f.received, post)
}

func newTestWatcher(fetcher *fakeFetcher, sink *fakeSink, now *time.Time) *Watcher {
	return New(Config{
		Fetcher: fetcher,
		Sink:    sink,
		Logger:  logging.NewLogger(),
		Now:     func() time.Time { return *now },
	})
}

func TestDelayForScore(t *testing.T) {
	require.Equal(t, 3*time.Hour, DelayForScore(99))
	require.Equal(t, 3*time.Hour, DelayForScore(95))
	require.Equal(t, 2*time.Hour, DelayForScore(94))
	require.Equal(t, 2*time.Hour, DelayForScore(90))
	require.Equal(t, time.Hour, DelayForScore(89))
	require.Equal(t, time.Hour, DelayForScore(0))
}

func TestSweepProcessesOnlyDueFetches(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{replies: map[string][]models.CandidatePost{
		"t1": {{ID: "r1", AuthorHandle: "carol", Text: "me too, going in June!"}},
	}}
	sink := &fakeSink{}
	w := newTestWatcher(fetcher, sink, &now)

	w.Schedule("t1", "alice", 92)

	// One hour in: the 2h delay has not elapsed
	now = now.Add(time.Hour)
	w.Sweep(context.Background())
	require.Empty(t, sink.received)
	require.Zero(t, fetcher.calls)

	now = now.Add(time.Hour + time.Minute)
	w.Sweep(context.Background())
	require.Len(t, sink.received, 1)
	require.Equal(t, "r1", sink.received[0].ID)

	// Already processed, not fetched again
	w.Sweep(context.Background())
	require.Equal(t, 1, fetcher.calls)
}

func TestSweepTakesTopK(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{replies: map[string][]models.CandidatePost{
		"t1": {
			{ID: "r1", Text: "a"}, {ID: "r2", Text: "b"},
			{ID: "r3", Text: "c"}, {ID: "r4", Text: "d"},
		},
	}}
	sink := &fakeSink{}
	w := newTestWatcher(fetcher, sink, &now)

	w.Schedule("t1", "alice", 99)
	now = now.Add(3*time.Hour + time.Minute)
	w.Sweep(context.Background())

	require.Len(t, sink.received, 3)
}

func TestFetchFailureRetriedNextSweep(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{err: errors.New("search down")}
	sink := &fakeSink{}
	w := newTestWatcher(fetcher, sink, &now)

	w.Schedule("t1", "alice", 90)
	now = now.Add(2*time.Hour + time.Minute)
	w.Sweep(context.Background())
	require.Equal(t, 1, fetcher.calls)

	fetcher.err = nil
	fetcher.replies = map[string][]models.CandidatePost{"t1": {{ID: "r1", Text: "late reply"}}}
	w.Sweep(context.Background())
	require.Equal(t, 2, fetcher.calls)
	require.Len(t, sink.received, 1)
}

func TestScheduleDedupesPendingPost(t *testing.T) {
	now := time.Now()
	w := newTestWatcher(&fakeFetcher{}, &fakeSink{}, &now)

	w.Schedule("t1", "alice", 92)
	w.Schedule("t1", "alice", 97)
	require.Len(t, w.Pending(), 1)
	require.Equal(t, 92, w.Pending()[0].Score)
}

func TestProcessedRecordsExpireAfterRetention(t *testing.T) {
	now := time.Now()
	fetcher := &fakeFetcher{replies: map[string][]models.CandidatePost{}}
	sink := &fakeSink{}
	w := newTestWatcher(fetcher, sink, &now)

	w.Schedule("t1", "alice", 90)
	now = now.Add(2*time.Hour + time.Minute)
	w.Sweep(context.Background())

	pending := w.Pending()
	require.Len(t, pending, 1)
	require.True(t, pending[0].Processed)

	// Retained for observability until the 24h window passes
	now = now.Add(23 * time.Hour)
	w.Sweep(context.Background())
	require.Len(t, w.Pending(), 1)

	now = now.Add(2 * time.Hour)
	w.Sweep(context.Background())
	require.Empty(t, w.Pending())
}
