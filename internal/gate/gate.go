package gate

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"harpoon/pkg/logging"
)

// ErrorPolicy decides what the gate does when the intent classifier fails.
type ErrorPolicy string

const (
	// PolicyAdmit treats classifier failures as in-scope. A transient
	// outage must not starve the pipeline of leads; a human reviewer
	// catches the occasional false positive.
	PolicyAdmit ErrorPolicy = "admit"
	// PolicyReject treats classifier failures as out-of-scope.
	PolicyReject ErrorPolicy = "reject"
)

const (
	defaultThreshold = 70
	defaultScore     = 50
	maxScore         = 99
)

// IntentClassifier is the classification slice of the generation collaborator.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, text, campaignType string) (bool, error)
}

type Config struct {
	Classifier IntentClassifier
	Logger     logging.Logger
	// OnClassifierError defaults to PolicyAdmit.
	OnClassifierError ErrorPolicy
	// Threshold defaults to 70 when zero.
	Threshold int
}

// Gate scopes candidates to a campaign and applies the score admission
// threshold to generated replies.
type Gate struct {
	classifier IntentClassifier
	logger     logging.Logger
	policy     ErrorPolicy

	mu        sync.RWMutex
	threshold int
}

func New(cfg Config) *Gate {
	policy := cfg.OnClassifierError
	if policy != PolicyReject {
		policy = PolicyAdmit
	}
	threshold := cfg.Threshold
	if threshold <= 0 || threshold > maxScore {
		threshold = defaultThreshold
	}
	return &Gate{
		classifier: cfg.Classifier,
		logger:     cfg.Logger,
		policy:     policy,
		threshold:  threshold,
	}
}

// Evaluate asks the classifier whether the candidate is in scope for the
// campaign. On classifier failure the configured error policy applies.
func (g *Gate) Evaluate(ctx context.Context, text, campaignType string) bool {
	if g.classifier == nil {
		return g.policy == PolicyAdmit
	}
	inScope, err := g.classifier.ClassifyIntent(ctx, text, campaignType)
	if err != nil {
		g.logger.WithError(err).WithFields(logging.Fields{
			"campaign": campaignType,
			"policy":   string(g.policy),
		}).Warn("Gate: intent classifier failed")
		return g.policy == PolicyAdmit
	}
	return inScope
}

// ParseScore extracts a 0-99 quality score from a raw model response.
// Malformed or missing scores default to 50, never reject outright.
func ParseScore(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultScore
	}
	// Models occasionally answer "88/99" or "score: 88".
	if idx := strings.LastIndexByte(raw, ':'); idx >= 0 {
		raw = strings.TrimSpace(raw[idx+1:])
	}
	if idx := strings.IndexByte(raw, '/'); idx >= 0 {
		raw = strings.TrimSpace(raw[:idx])
	}
	score, err := strconv.Atoi(raw)
	if err != nil {
		return defaultScore
	}
	return ClampScore(score)
}

// ClampScore bounds a score to the 0-99 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}

// Admit reports whether a generated reply clears the admission threshold.
// A forced request is admitted regardless of score.
func (g *Gate) Admit(score int, force bool) bool {
	if force {
		return true
	}
	return score >= g.Threshold()
}

// Threshold returns the current admission threshold.
func (g *Gate) Threshold() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.threshold
}

// SetThreshold tunes the admission threshold at runtime. Values outside
// (0, 99] are ignored.
func (g *Gate) SetThreshold(threshold int) {
	if threshold <= 0 || threshold > maxScore {
		return
	}
	g.mu.Lock()
	g.threshold = threshold
	g.mu.Unlock()
}
