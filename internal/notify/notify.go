package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"harpoon/internal/models"
	"harpoon/pkg/email"
	"harpoon/pkg/logging"
)

const sendTimeout = 15 * time.Second

type ReviewNotifierConfig struct {
	Sender *email.Sender
	SMTP   email.Config
	To     string
	Logger logging.Logger
}

// ReviewNotifier emails the review inbox when a new draft lands in
// pending_review. Delivery is best effort; the draft is already persisted.
type ReviewNotifier struct {
	sender *email.Sender
	smtp   email.Config
	to     string
	logger logging.Logger
}

func NewReviewNotifier(cfg ReviewNotifierConfig) *ReviewNotifier {
	return &ReviewNotifier{
		sender: cfg.Sender,
		smtp:   cfg.SMTP,
		to:     cfg.To,
		logger: cfg.Logger,
	}
}

func (n *ReviewNotifier) NotifyDraft(draft models.Draft) {
	if !n.smtp.Configured() || n.to == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	subject := draftSubject(draft)
	if err := n.sender.SendMail(ctx, n.to, subject, renderDraftEmail(draft)); err != nil {
		n.logger.WithError(err).WithField("draft_id", draft.ID).Warn("Review notifier: email send failed")
		return
	}
	n.logger.WithField("draft_id", draft.ID).Info("Review notifier: draft email sent")
}

func draftSubject(draft models.Draft) string {
	preview := draft.ReplyText
	if len(preview) > 60 {
		preview = preview[:57] + "..."
	}
	return fmt.Sprintf("[Harpoon] Draft for review (%s, score %d): %s", draft.CampaignType, draft.Score, preview)
}

func renderDraftEmail(draft models.Draft) string {
	var b strings.Builder
	b.WriteString("<h2>New draft awaiting review</h2>")
	fmt.Fprintf(&b, "<p><b>Campaign:</b> %s", html.EscapeString(draft.CampaignType))
	if draft.Strategy != "" {
		fmt.Fprintf(&b, " / %s", html.EscapeString(draft.Strategy))
	}
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p><b>Score:</b> %d</p>", draft.Score)
	fmt.Fprintf(&b, "<p><b>Original post</b> by @%s:</p><blockquote>%s</blockquote>",
		html.EscapeString(draft.OriginalAuthor), html.EscapeString(draft.OriginalText))
	fmt.Fprintf(&b, "<p><b>Proposed reply:</b></p><blockquote>%s</blockquote>",
		html.EscapeString(draft.ReplyText))
	if draft.ExtractedContext != "" {
		fmt.Fprintf(&b, "<p><b>Context:</b> %s</p>", html.EscapeString(draft.ExtractedContext))
	}
	fmt.Fprintf(&b, "<p>Draft ID: %s</p>", html.EscapeString(draft.ID))
	return b.String()
}
