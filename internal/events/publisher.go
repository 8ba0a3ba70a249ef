package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"harpoon/pkg/kafka"
	"harpoon/pkg/logging"
)

// Admission decision outcomes published for offline analysis. Suppression
// tuning is a quiet-failure risk, so every decision leaves an audit trail.
const (
	DecisionAccepted       = "accepted"
	DecisionSuppressed     = "suppressed"
	DecisionRejectedSignal = "rejected_signal"
	DecisionRejectedIntent = "rejected_intent"
	DecisionRejectedScore  = "rejected_score"
	DecisionCapped         = "capped"
)

// Decision is one admission-control verdict for one candidate post.
type Decision struct {
	EventID      string    `json:"event_id"`
	Timestamp    time.Time `json:"timestamp"`
	CampaignType string    `json:"campaign_type"`
	Strategy     string    `json:"strategy,omitempty"`
	Keyword      string    `json:"keyword,omitempty"`
	PostID       string    `json:"post_id"`
	Author       string    `json:"author,omitempty"`
	Decision     string    `json:"decision"`
	Reason       string    `json:"reason,omitempty"`
	Score        int       `json:"score,omitempty"`
	DraftID      string    `json:"draft_id,omitempty"`
}

type PublisherConfig struct {
	Brokers   []string
	ClusterID string
	Topic     string
	Source    string
	Logger    logging.Logger
}

// Publisher emits admission decisions to Kafka. A nil Publisher is valid
// and publishes nothing, so callers need no enabled-check.
type Publisher struct {
	producer *kafka.Producer
	topic    string
	source   string
	logger   logging.Logger
}

func NewPublisher(cfg PublisherConfig) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required for decision publisher")
	}
	topic := cfg.Topic
	if topic == "" {
		topic = "harpoon.decisions"
	}
	source := cfg.Source
	if source == "" {
		source = "harpoon"
	}
	clusterID := cfg.ClusterID
	if clusterID == "" {
		clusterID = "local"
	}
	producer, err := kafka.NewProducer(cfg.Brokers, source, clusterID, cfg.Logger)
	if err != nil {
		return nil, err
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		source:   source,
		logger:   cfg.Logger,
	}, nil
}

// Producer exposes the underlying Kafka producer for health checks.
func (p *Publisher) Producer() *kafka.Producer {
	if p == nil {
		return nil
	}
	return p.producer
}

func (p *Publisher) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishDecision emits one admission decision, keyed by source post id.
func (p *Publisher) PublishDecision(decision Decision) error {
	if p == nil || p.producer == nil {
		return nil
	}
	if decision.EventID == "" {
		decision.EventID = uuid.New().String()
	}
	if decision.Timestamp.IsZero() {
		decision.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(decision)
	if err != nil {
		return fmt.Errorf("marshal admission decision: %w", err)
	}
	err = p.producer.ProduceMessage(
		p.topic,
		[]byte(decision.PostID),
		payload,
		map[string]string{
			"source":   p.source,
			"type":     "admission_decision",
			"decision": decision.Decision,
		},
	)
	if err != nil {
		return err
	}
	if p.logger != nil {
		p.logger.WithFields(logging.Fields{
			"post_id":  decision.PostID,
			"decision": decision.Decision,
			"topic":    p.topic,
		}).Debug("Published admission decision")
	}
	return nil
}
