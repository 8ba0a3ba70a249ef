package strategy

import (
	"fmt"
	"strings"
	"sync"
)

const (
	// DefaultKeywordLimit bounds how many keywords a normal hunt cycle
	// consumes from the active strategy.
	DefaultKeywordLimit = 10
	// SweepKeywordLimit bounds keywords per strategy in sweep mode.
	SweepKeywordLimit = 3
)

// Definition is a named go-to-market angle within a campaign: the keywords
// fed to search, the local signal word lists, and the persona used for
// reply generation. Immutable once registered.
type Definition struct {
	ID              string
	CampaignType    string
	Keywords        []string
	PositiveSignals []string
	NegativeSignals []string
	Persona         string
	ScoreBonus      int
}

// SignalCheck is the outcome of the cheap local signal filter.
type SignalCheck struct {
	OK     bool
	Reason string
	// Bonus is a score adjustment hint applied when positive signals match.
	Bonus int
}

// Registry holds the strategies of one or more campaigns and a single
// active-strategy pointer. Switching is atomic from the caller's
// perspective: keywords, signal lists and persona all change together.
type Registry struct {
	mu         sync.RWMutex
	strategies map[string]Definition
	order      []string
	activeID   string
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{strategies: make(map[string]Definition)}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for static built-in strategy sets.
func MustNewRegistry(defs ...Definition) *Registry {
	r, err := NewRegistry(defs...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("strategy id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[def.ID]; exists {
		return fmt.Errorf("strategy %q already registered", def.ID)
	}
	r.strategies[def.ID] = def
	r.order = append(r.order, def.ID)
	if r.activeID == "" {
		r.activeID = def.ID
	}
	return nil
}

// Activate switches the active strategy pointer.
func (r *Registry) Activate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.strategies[id]; !exists {
		return fmt.Errorf("unknown strategy %q", id)
	}
	r.activeID = id
	return nil
}

// Active returns the currently active strategy.
func (r *Registry) Active() Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategies[r.activeID]
}

// All returns every registered strategy in registration order.
func (r *Registry) All() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]Definition, 0, len(r.order))
	for _, id := range r.order {
		defs = append(defs, r.strategies[id])
	}
	return defs
}

// KeywordsForCycle returns at most limit keywords from the active strategy.
func (r *Registry) KeywordsForCycle(limit int) []string {
	return KeywordsFor(r.Active(), limit)
}

// KeywordsFor bounds a strategy's keyword list for one cycle.
func KeywordsFor(def Definition, limit int) []string {
	if limit <= 0 {
		limit = DefaultKeywordLimit
	}
	if len(def.Keywords) <= limit {
		return def.Keywords
	}
	return def.Keywords[:limit]
}

// CheckSignals runs the active strategy's local word-list filter over a
// candidate's text. Negative signals reject before any expensive call is
// made; positive signals contribute a score bonus hint.
func (r *Registry) CheckSignals(text string) SignalCheck {
	return CheckSignals(r.Active(), text)
}

func CheckSignals(def Definition, text string) SignalCheck {
	lower := strings.ToLower(text)
	for _, phrase := range def.NegativeSignals {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			return SignalCheck{Reason: fmt.Sprintf("negative signal %q", phrase)}
		}
	}
	check := SignalCheck{OK: true}
	for _, phrase := range def.PositiveSignals {
		if phrase != "" && strings.Contains(lower, strings.ToLower(phrase)) {
			check.Bonus = def.ScoreBonus
			break
		}
	}
	return check
}
