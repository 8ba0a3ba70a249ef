package hunter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"harpoon/internal/dedupe"
	"harpoon/internal/events"
	"harpoon/internal/gate"
	"harpoon/internal/genai"
	"harpoon/internal/models"
	"harpoon/internal/search"
	"harpoon/internal/store"
	"harpoon/internal/strategy"
	"harpoon/pkg/logging"
)

type fakeSearcher struct {
	mu      sync.Mutex
	results map[string][]models.CandidatePost
	replies map[string][]models.CandidatePost
	block   chan struct{}
	queries []string
}

func (f *fakeSearcher) SearchAllPlatforms(ctx context.Context, keyword string, platforms []string) ([]models.CandidatePost, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, keyword)
	posts := f.results[keyword]
	for i := range posts {
		posts[i].DiscoveredViaKeyword = keyword
	}
	return posts, nil
}

func (f *fakeSearcher) FetchRepliesTo(ctx context.Context, postID string, limit int) ([]models.CandidatePost, error) {
	return f.replies[postID], nil
}

var _ search.Searcher = (*fakeSearcher)(nil)

type memStore struct {
	mu     sync.Mutex
	drafts []models.Draft
	next   int
}

func (m *memStore) Save(ctx context.Context, draft models.Draft) (models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drafts {
		if d.OriginalPostID == draft.OriginalPostID {
			return models.Draft{}, store.ErrDuplicateOriginalPost
		}
	}
	m.next++
	draft.ID = fmt.Sprintf("d%d", m.next)
	draft.CreatedAt = time.Now()
	m.drafts = append(m.drafts, draft)
	return draft, nil
}

func (m *memStore) CountToday(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.drafts), nil
}

func (m *memStore) FindByOriginalPostID(ctx context.Context, postID string) (models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.drafts {
		if d.OriginalPostID == postID {
			return d, nil
		}
	}
	return models.Draft{}, store.ErrNotFound
}

func (m *memStore) ListRecent(ctx context.Context, limit int) ([]models.Draft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Draft(nil), m.drafts...), nil
}

func (m *memStore) all() []models.Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Draft(nil), m.drafts...)
}

type fakeGenerator struct {
	reply genai.Reply
	err   error
	calls int
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, req genai.ReplyRequest) (genai.Reply, error) {
	f.calls++
	return f.reply, f.err
}

type fakeClassifier struct {
	inScope bool
	err     error
}

func (f *fakeClassifier) ClassifyIntent(ctx context.Context, text, campaignType string) (bool, error) {
	return f.inScope, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	decisions []events.Decision
}

func (f *fakePublisher) PublishDecision(d events.Decision) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions = append(f.decisions, d)
	return nil
}

func (f *fakePublisher) byOutcome(outcome string) []events.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Decision
	for _, d := range f.decisions {
		if d.Decision == outcome {
			out = append(out, d)
		}
	}
	return out
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []models.DelayedFetch
}

func (f *fakeScheduler) Schedule(postID, author string, score int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, models.DelayedFetch{OriginalPostID: postID, OriginalAuthor: author, Score: score})
}

type fixture struct {
	hunter    *Hunter
	store     *memStore
	searcher  *fakeSearcher
	generator *fakeGenerator
	publisher *fakePublisher
	scheduler *fakeScheduler
}

func newFixture(t *testing.T, mutate func(cfg *Config)) *fixture {
	t.Helper()
	logger := logging.NewLogger()
	st := &memStore{}
	searcher := &fakeSearcher{results: map[string][]models.CandidatePost{}}
	generator := &fakeGenerator{reply: genai.Reply{Text: "Have a great trip!", Context: "Paris", Score: 88}}
	publisher := &fakePublisher{}
	scheduler := &fakeScheduler{}

	registry := strategy.MustNewRegistry(strategy.Definition{
		ID:              "travel-first-timers",
		CampaignType:    "travel",
		Keywords:        []string{"visiting Paris"},
		PositiveSignals: []string{"any tips"},
		NegativeSignals: []string{"hiring", "discount"},
		Persona:         "a well-traveled friend",
		ScoreBonus:      5,
	})

	cfg := Config{
		Registry: registry,
		Search:   searcher,
		Suppressor: dedupe.NewSuppressor(dedupe.Config{
			Store:  st,
			Logger: logger,
		}),
		Gate:         gate.New(testGateConfig(&fakeClassifier{inScope: true}, logger)),
		Generator:    generator,
		Store:        st,
		Publisher:    publisher,
		Logger:       logger,
		MaxPerDay:    10,
		KeywordDelay: time.Millisecond,
		Sleep:        func(ctx context.Context, d time.Duration) {},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	h := New(cfg)
	h.SetScheduler(scheduler)
	return &fixture{hunter: h, store: st, searcher: searcher, generator: generator, publisher: publisher, scheduler: scheduler}
}

// testGateConfig builds a gate config for tests.
func testGateConfig(c gate.IntentClassifier, logger logging.Logger) gate.Config {
	return gate.Config{Classifier: c, Logger: logger}
}

func parisPost(id, author string) models.CandidatePost {
	return models.CandidatePost{ID: id, AuthorHandle: author, Text: "First time visiting Paris, any tips?"}
}

func TestCycleCreatesDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	drafts := f.store.all()
	require.Len(t, drafts, 1)
	require.Equal(t, "t1", drafts[0].OriginalPostID)
	require.Equal(t, models.StatusPendingReview, drafts[0].Status)
	require.Equal(t, "travel-first-timers", drafts[0].Strategy)
	// 88 from the model plus the positive-signal bonus of 5
	require.Equal(t, 93, drafts[0].Score)

	accepted := f.publisher.byOutcome(events.DecisionAccepted)
	require.Len(t, accepted, 1)
	require.Equal(t, "visiting Paris", accepted[0].Keyword)
	require.Equal(t, drafts[0].ID, accepted[0].DraftID)
}

func TestDuplicateInSecondCycleSuppressed(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)
	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.store.all(), 1)
	suppressed := f.publisher.byOutcome(events.DecisionSuppressed)
	require.NotEmpty(t, suppressed)
	require.Equal(t, dedupe.ReasonDuplicatePostID, suppressed[0].Reason)
}

func TestParaphraseFromOtherAuthorSuppressed(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results["visiting Paris"] = []models.CandidatePost{
		parisPost("t1", "alice"),
		{ID: "t2", AuthorHandle: "bob", Text: "first time visiting paris any tips!!"},
	}

	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.store.all(), 1)
	require.Equal(t, "t1", f.store.all()[0].OriginalPostID)
	require.NotEmpty(t, f.publisher.byOutcome(events.DecisionSuppressed))
}

func TestNegativeSignalRejectedBeforeGeneration(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results["visiting Paris"] = []models.CandidatePost{
		{ID: "t1", AuthorHandle: "spammer", Text: "Visiting Paris? Use my DISCOUNT code"},
	}

	f.hunter.runCycle(context.Background(), false)

	require.Empty(t, f.store.all())
	require.Zero(t, f.generator.calls)
	rejected := f.publisher.byOutcome(events.DecisionRejectedSignal)
	require.Len(t, rejected, 1)
	require.Contains(t, rejected[0].Reason, "discount")
}

func TestOutOfScopeRejected(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Gate = gate.New(testGateConfig(&fakeClassifier{inScope: false}, logging.NewLogger()))
	})
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Empty(t, f.store.all())
	require.Zero(t, f.generator.calls)
	require.Len(t, f.publisher.byOutcome(events.DecisionRejectedIntent), 1)
}

func TestClassifierFailureFailsOpen(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		cfg.Gate = gate.New(testGateConfig(&fakeClassifier{err: errors.New("llm down")}, logging.NewLogger()))
	})
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.store.all(), 1)
}

func TestLowScoreRejected(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.reply = genai.Reply{Text: "meh", Score: 40}
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Empty(t, f.store.all())
	rejected := f.publisher.byOutcome(events.DecisionRejectedScore)
	require.Len(t, rejected, 1)
	// 40 plus the signal bonus of 5, still below 70
	require.Equal(t, 45, rejected[0].Score)
}

func TestGenerationFailureSkipsCandidate(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.err = errors.New("model exploded")
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Empty(t, f.store.all())
}

func TestDailyCapEndsCycleGracefully(t *testing.T) {
	f := newFixture(t, func(cfg *Config) { cfg.MaxPerDay = 1 })
	f.searcher.results["visiting Paris"] = []models.CandidatePost{
		parisPost("t1", "alice"),
		{ID: "t2", AuthorHandle: "bob", Text: "Planning to go visiting Paris in June, any tips for museums?"},
	}

	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.store.all(), 1)
	require.NotEmpty(t, f.publisher.byOutcome(events.DecisionCapped))
}

func TestHighScoreSchedulesDelayedFetch(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.reply = genai.Reply{Text: "great lead", Context: "Paris", Score: 92}
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.scheduler.scheduled, 1)
	require.Equal(t, "t1", f.scheduler.scheduled[0].OriginalPostID)
	require.Equal(t, 97, f.scheduler.scheduled[0].Score)
}

func TestMediumScoreNotScheduled(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.reply = genai.Reply{Text: "fine lead", Score: 75}
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.runCycle(context.Background(), false)

	require.Len(t, f.store.all(), 1)
	require.Empty(t, f.scheduler.scheduled)
}

func TestPausedCampaignSkipped(t *testing.T) {
	f := newFixture(t, nil)
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	f.hunter.Pause("travel")
	f.hunter.runCycle(context.Background(), false)
	require.Empty(t, f.store.all())

	f.hunter.Resume("travel")
	f.hunter.runCycle(context.Background(), false)
	require.Len(t, f.store.all(), 1)
}

func TestHuntPostForcesLowScore(t *testing.T) {
	f := newFixture(t, nil)
	f.generator.reply = genai.Reply{Text: "forced reply", Score: 10}

	draft, err := f.hunter.HuntPost(context.Background(), parisPost("t1", "alice"))
	require.NoError(t, err)
	require.Equal(t, 15, draft.Score)
	require.Len(t, f.store.all(), 1)
}

func TestHuntPostNeverBypassesDedupe(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.hunter.HuntPost(context.Background(), parisPost("t1", "alice"))
	require.NoError(t, err)

	_, err = f.hunter.HuntPost(context.Background(), parisPost("t1", "alice"))
	require.Error(t, err)
	require.Contains(t, err.Error(), events.DecisionSuppressed)
	require.Len(t, f.store.all(), 1)
}

func TestSweepModeIteratesAllStrategies(t *testing.T) {
	f := newFixture(t, func(cfg *Config) {
		require.NoError(t, cfg.Registry.Register(strategy.Definition{
			ID:           "devtools-pain-points",
			CampaignType: "devtools",
			Keywords:     []string{"flaky tests", "k2", "k3", "k4"},
		}))
	})

	f.hunter.runCycle(context.Background(), true)

	f.searcher.mu.Lock()
	queries := append([]string(nil), f.searcher.queries...)
	f.searcher.mu.Unlock()
	require.Contains(t, queries, "visiting Paris")
	require.Contains(t, queries, "flaky tests")
	// Sweep mode takes at most three keywords per strategy
	require.NotContains(t, queries, "k4")
}

func TestTriggerStateMachine(t *testing.T) {
	f := newFixture(t, nil)
	require.Equal(t, "stopped", f.hunter.State())
	require.ErrorIs(t, f.hunter.Trigger(false), ErrNotStarted)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hunter.Start(ctx)
	require.Eventually(t, func() bool { return f.hunter.State() == "idle" }, time.Second, 5*time.Millisecond)

	f.searcher.block = make(chan struct{})
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}

	require.NoError(t, f.hunter.Trigger(false))
	require.Eventually(t, func() bool { return f.hunter.State() == "hunting" }, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, f.hunter.Trigger(false), ErrAlreadyHunting)

	close(f.searcher.block)
	require.Eventually(t, func() bool { return f.hunter.State() == "idle" }, time.Second, 5*time.Millisecond)
	require.Len(t, f.store.all(), 1)
}

func TestForceResetClearsStuckFlag(t *testing.T) {
	f := newFixture(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.hunter.Start(ctx)
	require.Eventually(t, func() bool { return f.hunter.State() == "idle" }, time.Second, 5*time.Millisecond)

	require.False(t, f.hunter.ForceReset())

	f.searcher.block = make(chan struct{})
	f.searcher.results["visiting Paris"] = []models.CandidatePost{parisPost("t1", "alice")}
	require.NoError(t, f.hunter.Trigger(false))
	require.Eventually(t, func() bool { return f.hunter.State() == "hunting" }, time.Second, 5*time.Millisecond)

	require.True(t, f.hunter.ForceReset())
	require.Equal(t, "idle", f.hunter.State())
	close(f.searcher.block)
}

func TestProcessReplyCandidate(t *testing.T) {
	f := newFixture(t, nil)

	f.hunter.ProcessReplyCandidate(context.Background(), parisPost("r1", "carol"))
	require.Len(t, f.store.all(), 1)
	require.Equal(t, "r1", f.store.all()[0].OriginalPostID)
}
