package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"harpoon/pkg/llm"
	"harpoon/pkg/logging"
)

const (
	maxReplyLength  = 280
	completeTimeout = 30 * time.Second
)

const classifySystemPrompt = `You screen social media posts for a marketing team.
Given a post and a campaign type, decide whether the author is a genuine potential
lead for that campaign: a real person expressing the need the campaign addresses,
not a bot, an advertiser, or someone selling something themselves.
Respond with ONLY the word "yes" or "no".`

const generateSystemPrompt = `You draft short social media replies for the %s campaign.
Persona: %s
Write a single reply (max 280 characters) to the post below. Be specific and
genuinely helpful. Never sound like an advertisement.
Also extract the key context from the post (a location, a tool, a topic) and
self-assess the lead quality from 0 to 99, where 99 is a perfect lead.
Respond with ONLY a JSON object: {"reply": "...", "context": "...", "score": N}`

// ReplyRequest carries everything generation needs about one candidate.
type ReplyRequest struct {
	Author       string
	Text         string
	CampaignType string
	StrategyID   string
	Persona      string
}

// Reply is a generated draft reply with the model's self-assessment.
type Reply struct {
	Text    string
	Context string
	Score   int
}

type Config struct {
	Provider llm.Provider
	Logger   logging.Logger
}

// Generator is the classification and generation collaborator, backed by a
// single LLM provider.
type Generator struct {
	provider llm.Provider
	logger   logging.Logger
}

func New(cfg Config) *Generator {
	return &Generator{
		provider: cfg.Provider,
		logger:   cfg.Logger,
	}
}

// ClassifyIntent asks the model whether a post is in scope for a campaign.
func (g *Generator) ClassifyIntent(ctx context.Context, text, campaignType string) (bool, error) {
	if g.provider == nil {
		return false, errors.New("LLM provider not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	answer, err := llm.CompleteText(ctx, g.provider, []llm.Message{
		{Role: "system", Content: classifySystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Campaign: %s\nPost: %s", campaignType, text)},
	})
	if err != nil {
		return false, fmt.Errorf("classify intent: %w", err)
	}
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(answer)), "yes"), nil
}

// GenerateReply drafts a reply for one candidate and parses the model's
// self-assessed score. Overlong replies get one retry, then a hard
// word-boundary truncation.
func (g *Generator) GenerateReply(ctx context.Context, req ReplyRequest) (Reply, error) {
	if g.provider == nil {
		return Reply{}, errors.New("LLM provider not configured")
	}

	persona := req.Persona
	if persona == "" {
		persona = "a helpful, knowledgeable person"
	}
	system := fmt.Sprintf(generateSystemPrompt, req.CampaignType, persona)
	userPrompt := buildReplyPrompt(req)

	raw, err := g.generate(ctx, system, userPrompt)
	if err != nil {
		return Reply{}, fmt.Errorf("generate reply: %w", err)
	}
	reply := parseReply(raw)

	if len(reply.Text) > maxReplyLength {
		g.logger.WithField("length", len(reply.Text)).Debug("Generator: reply too long, retrying")
		raw, err = g.generate(ctx, system, userPrompt+"\n\nIMPORTANT: Your previous reply was too long. Keep it under 280 characters.")
		if err != nil {
			return Reply{}, fmt.Errorf("generate reply retry: %w", err)
		}
		retried := parseReply(raw)
		if retried.Text != "" {
			reply = retried
		}
		if len(reply.Text) > maxReplyLength {
			reply.Text = truncateAtWord(reply.Text, maxReplyLength)
		}
	}
	return reply, nil
}

func (g *Generator) generate(ctx context.Context, system, userPrompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, completeTimeout)
	defer cancel()

	return llm.CompleteText(ctx, g.provider, []llm.Message{
		{Role: "system", Content: system},
		{Role: "user", Content: userPrompt},
	})
}

func buildReplyPrompt(req ReplyRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Author: @%s\n", req.Author)
	if req.StrategyID != "" {
		fmt.Fprintf(&b, "Strategy: %s\n", req.StrategyID)
	}
	fmt.Fprintf(&b, "Post: %s\n", req.Text)
	return b.String()
}

func truncateAtWord(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	truncated := s[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen/2 {
		return truncated[:lastSpace]
	}
	return truncated
}
