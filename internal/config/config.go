package config

import (
	"time"

	"harpoon/pkg/config"
)

// Config stores environment configuration for Harpoon.
type Config struct {
	Port        string
	DatabaseURL string

	LLMProvider  string
	LLMModel     string
	LLMAPIKey    string
	LLMAPIURL    string
	LLMMaxTokens int

	SearchAPIURL    string
	SearchAPIKey    string
	SearchPlatforms []string
	SearchTimeout   time.Duration

	HuntInterval     time.Duration
	MaxDraftsPerDay  int
	KeywordDelay     time.Duration
	ScoreThreshold   int
	HighQualityScore int
	Attribution      string

	SimilarityThreshold float64
	RecencyWindow       int
	SessionTTL          time.Duration

	ClassifierFailOpen bool

	SweepInterval  time.Duration
	ReplyTopK      int
	ReplyRetention time.Duration

	JanitorInterval time.Duration
	DraftMaxAge     time.Duration

	KafkaBrokers   []string
	KafkaClusterID string
	DecisionTopic  string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string
	ReviewEmail  string
}

// LoadConfig loads the Harpoon configuration from environment variables.
func LoadConfig() Config {
	platforms := config.GetEnvList("SEARCH_PLATFORMS")
	if len(platforms) == 0 {
		platforms = []string{"x"}
	}
	return Config{
		Port:        config.GetEnv("PORT", "18020"),
		DatabaseURL: config.RequireEnv("DATABASE_URL"),

		LLMProvider:  config.GetEnv("LLM_PROVIDER", ""),
		LLMModel:     config.GetEnv("LLM_MODEL", ""),
		LLMAPIKey:    config.GetEnv("LLM_API_KEY", ""),
		LLMAPIURL:    config.GetEnv("LLM_API_URL", ""),
		LLMMaxTokens: config.GetEnvInt("LLM_MAX_TOKENS", 4096),

		SearchAPIURL:    config.RequireEnv("SEARCH_API_URL"),
		SearchAPIKey:    config.GetEnv("SEARCH_API_KEY", ""),
		SearchPlatforms: platforms,
		SearchTimeout:   config.GetEnvDuration("SEARCH_TIMEOUT", 20*time.Second),

		HuntInterval:     config.GetEnvDuration("HUNT_INTERVAL", 2*time.Hour),
		MaxDraftsPerDay:  config.GetEnvInt("MAX_DRAFTS_PER_DAY", 20),
		KeywordDelay:     config.GetEnvDuration("KEYWORD_DELAY", 5*time.Second),
		ScoreThreshold:   config.GetEnvInt("SCORE_THRESHOLD", 70),
		HighQualityScore: config.GetEnvInt("HIGH_QUALITY_SCORE", 90),
		Attribution:      config.GetEnv("DRAFT_ATTRIBUTION", ""),

		SimilarityThreshold: config.GetEnvFloat("SIMILARITY_THRESHOLD", 0.80),
		RecencyWindow:       config.GetEnvInt("DEDUPE_RECENCY_WINDOW", 200),
		SessionTTL:          config.GetEnvDuration("DEDUPE_SESSION_TTL", time.Minute),

		ClassifierFailOpen: config.GetEnvBool("CLASSIFIER_FAIL_OPEN", true),

		SweepInterval:  config.GetEnvDuration("REPLY_SWEEP_INTERVAL", 15*time.Minute),
		ReplyTopK:      config.GetEnvInt("REPLY_TOP_K", 3),
		ReplyRetention: config.GetEnvDuration("REPLY_RETENTION", 24*time.Hour),

		JanitorInterval: config.GetEnvDuration("JANITOR_INTERVAL", 6*time.Hour),
		DraftMaxAge:     config.GetEnvDuration("DRAFT_MAX_AGE", 90*24*time.Hour),

		KafkaBrokers:   config.GetEnvList("KAFKA_BROKERS"),
		KafkaClusterID: config.GetEnv("KAFKA_CLUSTER_ID", "local"),
		DecisionTopic:  config.GetEnv("DECISION_KAFKA_TOPIC", "harpoon.decisions"),

		SMTPHost:     config.GetEnv("SMTP_HOST", ""),
		SMTPPort:     config.GetEnv("SMTP_PORT", "587"),
		SMTPUser:     config.GetEnv("SMTP_USER", ""),
		SMTPPassword: config.GetEnv("SMTP_PASSWORD", ""),
		SMTPFrom:     config.GetEnv("SMTP_FROM", ""),
		SMTPFromName: config.GetEnv("SMTP_FROM_NAME", "Harpoon"),
		ReviewEmail:  config.GetEnv("REVIEW_EMAIL", ""),
	}
}
