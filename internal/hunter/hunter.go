package hunter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"harpoon/internal/dedupe"
	"harpoon/internal/events"
	"harpoon/internal/gate"
	"harpoon/internal/genai"
	"harpoon/internal/models"
	"harpoon/internal/search"
	"harpoon/internal/strategy"
	"harpoon/pkg/logging"
)

// Hunter states. Exactly one hunting cycle may be in progress at a time.
const (
	StateStopped int32 = iota
	StateIdle
	StateHunting
)

var (
	// ErrAlreadyHunting reports a trigger while a cycle is in progress.
	// A no-op for the caller, not a failure.
	ErrAlreadyHunting = errors.New("hunt already running")
	// ErrNotStarted reports a trigger before Start.
	ErrNotStarted = errors.New("hunter not started")
)

const (
	defaultMaxPerDay        = 20
	defaultKeywordDelay     = 5 * time.Second
	defaultHighQualityScore = 90
)

// Suppressor is the duplicate-suppression slice the hunter needs.
type Suppressor interface {
	ShouldSuppress(ctx context.Context, text, authorHandle, postID string) dedupe.Verdict
}

// Generator is the reply-generation slice of the LLM collaborator.
type Generator interface {
	GenerateReply(ctx context.Context, req genai.ReplyRequest) (genai.Reply, error)
}

// DraftStore is the persistence slice the hunter needs.
type DraftStore interface {
	Save(ctx context.Context, draft models.Draft) (models.Draft, error)
	CountToday(ctx context.Context) (int, error)
}

// ReplyScheduler receives high-score leads for delayed reply harvesting.
type ReplyScheduler interface {
	Schedule(postID, author string, score int)
}

// DecisionPublisher receives every admission decision. Nil-safe.
type DecisionPublisher interface {
	PublishDecision(decision events.Decision) error
}

// Notifier is told about new pending-review drafts. Best effort.
type Notifier interface {
	NotifyDraft(draft models.Draft)
}

type Config struct {
	Registry   *strategy.Registry
	Search     search.Searcher
	Suppressor Suppressor
	Gate       *gate.Gate
	Generator  Generator
	Store      DraftStore
	Publisher  DecisionPublisher
	Notifier   Notifier
	Logger     logging.Logger

	// Interval between automatic hunt cycles. 0 disables automatic hunts;
	// cycles then run only via Trigger.
	Interval time.Duration
	// MaxPerDay caps drafts created per calendar day. 0 means the default.
	MaxPerDay int
	// KeywordDelay is the pause between keyword queries, the pipeline's
	// one explicit backpressure mechanism.
	KeywordDelay time.Duration
	// HighQualityScore is the minimum score that schedules a delayed
	// reply fetch.
	HighQualityScore int
	// Attribution is stamped on every created draft.
	Attribution string

	// Sleep overrides the inter-keyword pause. Tests only.
	Sleep func(ctx context.Context, d time.Duration)
}

// Hunter drives hunting cycles: keywords from the active strategy through
// search, dedupe, gating, generation and persistence. Single-writer: one
// cycle runs to completion before another may start.
type Hunter struct {
	registry   *strategy.Registry
	search     search.Searcher
	suppressor Suppressor
	gate       *gate.Gate
	generator  Generator
	store      DraftStore
	publisher  DecisionPublisher
	notifier   Notifier
	scheduler  ReplyScheduler
	metrics    *Metrics
	logger     logging.Logger

	interval         time.Duration
	maxPerDay        int
	keywordDelay     time.Duration
	highQualityScore int
	attribution      string
	sleep            func(ctx context.Context, d time.Duration)

	state atomic.Int32

	mu      sync.Mutex
	lifeCtx context.Context
	paused  map[string]bool
}

func New(cfg Config) *Hunter {
	maxPerDay := cfg.MaxPerDay
	if maxPerDay <= 0 {
		maxPerDay = defaultMaxPerDay
	}
	keywordDelay := cfg.KeywordDelay
	if keywordDelay <= 0 {
		keywordDelay = defaultKeywordDelay
	}
	highQuality := cfg.HighQualityScore
	if highQuality <= 0 {
		highQuality = defaultHighQualityScore
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	return &Hunter{
		registry:         cfg.Registry,
		search:           cfg.Search,
		suppressor:       cfg.Suppressor,
		gate:             cfg.Gate,
		generator:        cfg.Generator,
		store:            cfg.Store,
		publisher:        cfg.Publisher,
		notifier:         cfg.Notifier,
		logger:           cfg.Logger,
		interval:         cfg.Interval,
		maxPerDay:        maxPerDay,
		keywordDelay:     keywordDelay,
		highQualityScore: highQuality,
		attribution:      cfg.Attribution,
		sleep:            sleep,
		paused:           make(map[string]bool),
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// SetMetrics attaches pipeline metrics. Must be called before Start.
func (h *Hunter) SetMetrics(m *Metrics) { h.metrics = m }

// SetScheduler attaches the delayed reply scheduler. Must be called before
// Start; wired late because the scheduler feeds replies back into the hunter.
func (h *Hunter) SetScheduler(s ReplyScheduler) { h.scheduler = s }

// Start moves the hunter from stopped to idle and, when an interval is
// configured, runs automatic hunt cycles until the context is cancelled.
// Blocks; run it in its own goroutine.
func (h *Hunter) Start(ctx context.Context) {
	if !h.state.CompareAndSwap(StateStopped, StateIdle) {
		return
	}
	h.mu.Lock()
	h.lifeCtx = ctx
	h.mu.Unlock()

	if h.interval <= 0 {
		<-ctx.Done()
		h.state.Store(StateStopped)
		return
	}

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.state.Store(StateStopped)
			return
		case <-ticker.C:
			if err := h.Trigger(false); err != nil && !errors.Is(err, ErrAlreadyHunting) {
				h.logger.WithError(err).Warn("Hunter: scheduled trigger failed")
			}
		}
	}
}

// State returns the current state name.
func (h *Hunter) State() string {
	switch h.state.Load() {
	case StateIdle:
		return "idle"
	case StateHunting:
		return "hunting"
	default:
		return "stopped"
	}
}

// Trigger starts one hunting cycle in the background. Sweep mode iterates
// every registered strategy with a small keyword budget instead of the
// active strategy's full budget. A trigger while hunting is a no-op.
func (h *Hunter) Trigger(sweep bool) error {
	if h.state.Load() == StateStopped {
		return ErrNotStarted
	}
	if !h.state.CompareAndSwap(StateIdle, StateHunting) {
		return ErrAlreadyHunting
	}

	h.mu.Lock()
	ctx := h.lifeCtx
	h.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}

	go func() {
		defer h.state.CompareAndSwap(StateHunting, StateIdle)
		h.runCycle(ctx, sweep)
	}()
	return nil
}

// ForceReset clears a stuck hunting flag. Operator escape hatch: there is
// no cancellation for an in-flight cycle, so this only releases the guard.
func (h *Hunter) ForceReset() bool {
	reset := h.state.CompareAndSwap(StateHunting, StateIdle)
	if reset {
		h.logger.Warn("Hunter: hunting flag force-reset by operator")
	}
	return reset
}

// Pause suspends hunting for one campaign. Draft review is unaffected.
func (h *Hunter) Pause(campaignType string) {
	h.mu.Lock()
	h.paused[campaignType] = true
	h.mu.Unlock()
	h.logger.WithField("campaign", campaignType).Info("Hunter: campaign paused")
}

// Resume lifts a campaign pause.
func (h *Hunter) Resume(campaignType string) {
	h.mu.Lock()
	delete(h.paused, campaignType)
	h.mu.Unlock()
	h.logger.WithField("campaign", campaignType).Info("Hunter: campaign resumed")
}

func (h *Hunter) isPaused(campaignType string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paused[campaignType]
}
