package strategy

// Built-in strategy sets. New go-to-market angles are added here (or loaded
// from config) without touching the hunter or either gate.

const (
	CampaignTravel   = "travel"
	CampaignDevtools = "devtools"
)

func TravelStrategies() []Definition {
	return []Definition{
		{
			ID:           "travel-first-timers",
			CampaignType: CampaignTravel,
			Keywords: []string{
				"visiting Paris", "first trip to Tokyo", "visiting Rome tips",
				"first time in London", "trip to Barcelona advice",
				"visiting New York first time", "Lisbon itinerary help",
				"Amsterdam what to see", "first time Bangkok", "visiting Istanbul",
			},
			PositiveSignals: []string{"any tips", "first time", "recommend", "advice", "itinerary"},
			NegativeSignals: []string{"hiring", "discount", "promo code", "giveaway", "sponsored"},
			Persona: "a well-traveled friend who gives one specific, genuinely useful " +
				"tip per reply, warm but never salesy",
			ScoreBonus: 5,
		},
		{
			ID:           "travel-planners",
			CampaignType: CampaignTravel,
			Keywords: []string{
				"planning honeymoon destination", "where to travel in spring",
				"best city break europe", "travel bucket list help",
				"planning a road trip europe", "two weeks in japan itinerary",
			},
			PositiveSignals: []string{"planning", "where should", "suggestions", "help me decide"},
			NegativeSignals: []string{"hiring", "discount", "promo code", "giveaway", "sponsored", "win a trip"},
			Persona: "an experienced trip planner who asks one clarifying question and " +
				"offers a concrete starting point",
			ScoreBonus: 5,
		},
	}
}

func DevtoolsStrategies() []Definition {
	return []Definition{
		{
			ID:           "devtools-pain-points",
			CampaignType: CampaignDevtools,
			Keywords: []string{
				"CI pipeline so slow", "debugging in production", "flaky tests driving me",
				"kubernetes yaml hell", "on-call fatigue", "monorepo build times",
				"staging environment broken", "docker compose pain",
			},
			PositiveSignals: []string{"anyone else", "how do you", "is there a tool", "frustrated"},
			NegativeSignals: []string{"hiring", "we're hiring", "discount", "webinar", "sponsored"},
			Persona: "a pragmatic senior engineer who commiserates briefly and shares " +
				"what actually worked, no buzzwords",
			ScoreBonus: 5,
		},
	}
}

// DefaultRegistry builds the registry with all built-in strategy sets.
// The first registered strategy starts active.
func DefaultRegistry() *Registry {
	defs := append(TravelStrategies(), DevtoolsStrategies()...)
	return MustNewRegistry(defs...)
}
