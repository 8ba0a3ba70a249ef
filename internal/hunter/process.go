package hunter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"harpoon/internal/dedupe"
	"harpoon/internal/events"
	"harpoon/internal/gate"
	"harpoon/internal/genai"
	"harpoon/internal/models"
	"harpoon/internal/store"
	"harpoon/internal/strategy"
	"harpoon/pkg/logging"
)

type admissionResult struct {
	decision string
	reason   string
	draft    models.Draft
	err      error
}

func (h *Hunter) runCycle(ctx context.Context, sweep bool) {
	start := time.Now()
	defer h.metrics.cycleDone(start)
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithField("panic", fmt.Sprint(r)).Error("Hunter: cycle panic")
		}
	}()

	mode := "normal"
	limit := strategy.DefaultKeywordLimit
	defs := []strategy.Definition{h.registry.Active()}
	if sweep {
		mode = "sweep"
		limit = strategy.SweepKeywordLimit
		defs = h.registry.All()
	}
	h.logger.WithFields(logging.Fields{
		"mode":       mode,
		"strategies": len(defs),
	}).Info("Hunter: cycle started")

	created := 0
	for _, def := range defs {
		if h.isPaused(def.CampaignType) {
			h.logger.WithField("campaign", def.CampaignType).Debug("Hunter: campaign paused, skipping")
			continue
		}
		for _, keyword := range strategy.KeywordsFor(def, limit) {
			if ctx.Err() != nil {
				return
			}
			if h.capReached(ctx, keyword) {
				return
			}

			posts, err := h.search.SearchAllPlatforms(ctx, keyword, nil)
			if err != nil {
				h.logger.WithError(err).WithField("keyword", keyword).Warn("Hunter: search failed, continuing with next keyword")
				continue
			}
			h.logger.WithFields(logging.Fields{
				"keyword":    keyword,
				"candidates": len(posts),
			}).Debug("Hunter: keyword searched")

			for _, post := range posts {
				if h.capReached(ctx, keyword) {
					return
				}
				res := h.processCandidate(ctx, def, post, false)
				if res.decision == events.DecisionAccepted {
					created++
				}
			}
			h.sleep(ctx, h.keywordDelay)
		}
	}

	h.logger.WithFields(logging.Fields{
		"mode":     mode,
		"created":  created,
		"duration": time.Since(start).String(),
	}).Info("Hunter: cycle complete")
}

// capReached checks the rolling daily draft quota. Reaching it ends the
// cycle gracefully, not with an error.
func (h *Hunter) capReached(ctx context.Context, keyword string) bool {
	count, err := h.store.CountToday(ctx)
	if err != nil {
		h.logger.WithError(err).Warn("Hunter: daily count unavailable")
		return false
	}
	if count < h.maxPerDay {
		return false
	}
	h.logger.WithFields(logging.Fields{
		"count": count,
		"cap":   h.maxPerDay,
	}).Info("Hunter: daily draft cap reached, ending cycle")
	h.publish(events.Decision{
		CampaignType: h.registry.Active().CampaignType,
		Keyword:      keyword,
		Decision:     events.DecisionCapped,
		Reason:       fmt.Sprintf("daily cap %d reached", h.maxPerDay),
	})
	h.metrics.decision(events.DecisionCapped, "daily_cap")
	return true
}

// processCandidate runs one candidate through the full admission path.
// force bypasses the signal check, the intent gate and the score threshold,
// never duplicate suppression.
func (h *Hunter) processCandidate(ctx context.Context, def strategy.Definition, post models.CandidatePost, force bool) (res admissionResult) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithFields(logging.Fields{
				"post_id": post.ID,
				"panic":   fmt.Sprint(r),
			}).Error("Hunter: candidate processing panic")
			res = admissionResult{err: fmt.Errorf("candidate panic: %v", r)}
		}
	}()

	h.metrics.candidateSeen(def.CampaignType)

	check := strategy.CheckSignals(def, post.Text)
	if !check.OK && !force {
		return h.filtered(def, post, events.DecisionRejectedSignal, check.Reason, 0)
	}

	if v := h.suppressor.ShouldSuppress(ctx, post.Text, post.AuthorHandle, post.ID); v.Suppress {
		return h.filtered(def, post, events.DecisionSuppressed, v.Reason, 0)
	}

	if !force && !h.gate.Evaluate(ctx, post.Text, def.CampaignType) {
		return h.filtered(def, post, events.DecisionRejectedIntent, "classifier out of scope", 0)
	}

	reply, err := h.generator.GenerateReply(ctx, genai.ReplyRequest{
		Author:       post.AuthorHandle,
		Text:         post.Text,
		CampaignType: def.CampaignType,
		StrategyID:   def.ID,
		Persona:      def.Persona,
	})
	if err != nil {
		h.logger.WithError(err).WithField("post_id", post.ID).Warn("Hunter: reply generation failed, skipping candidate")
		return admissionResult{err: err}
	}

	score := gate.ClampScore(reply.Score + check.Bonus)
	if !h.gate.Admit(score, force) {
		return h.filtered(def, post, events.DecisionRejectedScore,
			fmt.Sprintf("score %d below threshold %d", score, h.gate.Threshold()), score)
	}

	saved, err := h.store.Save(ctx, models.Draft{
		CampaignType:     def.CampaignType,
		Strategy:         def.ID,
		OriginalPostID:   post.ID,
		OriginalAuthor:   post.AuthorHandle,
		OriginalText:     post.Text,
		ExtractedContext: reply.Context,
		Status:           models.StatusPendingReview,
		ReplyText:        reply.Text,
		Attribution:      h.attribution,
		ActionType:       models.ActionReply,
		Score:            score,
	})
	if errors.Is(err, store.ErrDuplicateOriginalPost) {
		return h.filtered(def, post, events.DecisionSuppressed, dedupe.ReasonDuplicatePostID, score)
	}
	if err != nil {
		h.logger.WithError(err).WithField("post_id", post.ID).Warn("Hunter: draft save failed")
		return admissionResult{err: err}
	}

	h.publish(events.Decision{
		CampaignType: def.CampaignType,
		Strategy:     def.ID,
		Keyword:      post.DiscoveredViaKeyword,
		PostID:       post.ID,
		Author:       post.AuthorHandle,
		Decision:     events.DecisionAccepted,
		Score:        score,
		DraftID:      saved.ID,
	})
	h.metrics.decision(events.DecisionAccepted, "")
	h.metrics.draftCreated(def.CampaignType)
	h.logger.WithFields(logging.Fields{
		"draft_id": saved.ID,
		"post_id":  post.ID,
		"author":   post.AuthorHandle,
		"score":    score,
		"strategy": def.ID,
	}).Info("Hunter: draft created")

	if h.notifier != nil {
		h.notifier.NotifyDraft(saved)
	}
	if score >= h.highQualityScore && h.scheduler != nil {
		h.scheduler.Schedule(post.ID, post.AuthorHandle, score)
	}
	return admissionResult{decision: events.DecisionAccepted, draft: saved}
}

// filtered records an admission rejection. Rejections are outcomes, not
// errors; they produce no draft.
func (h *Hunter) filtered(def strategy.Definition, post models.CandidatePost, decision, reason string, score int) admissionResult {
	h.logger.WithFields(logging.Fields{
		"post_id":  post.ID,
		"author":   post.AuthorHandle,
		"decision": decision,
		"reason":   reason,
	}).Info("Hunter: candidate filtered")
	h.publish(events.Decision{
		CampaignType: def.CampaignType,
		Strategy:     def.ID,
		Keyword:      post.DiscoveredViaKeyword,
		PostID:       post.ID,
		Author:       post.AuthorHandle,
		Decision:     decision,
		Reason:       reason,
		Score:        score,
	})
	h.metrics.decision(decision, reason)
	return admissionResult{decision: decision, reason: reason}
}

func (h *Hunter) publish(decision events.Decision) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.PublishDecision(decision); err != nil {
		h.logger.WithError(err).Debug("Hunter: decision publish failed")
	}
}

// HuntPost runs a single post through the admission path as a forced manual
// override. Duplicate suppression still applies; the signal check, intent
// gate and score threshold do not.
func (h *Hunter) HuntPost(ctx context.Context, post models.CandidatePost) (models.Draft, error) {
	def := h.registry.Active()
	res := h.processCandidate(ctx, def, post, true)
	if res.err != nil {
		return models.Draft{}, res.err
	}
	if res.decision != events.DecisionAccepted {
		return models.Draft{}, fmt.Errorf("candidate filtered: %s (%s)", res.decision, res.reason)
	}
	return res.draft, nil
}

// ProcessReplyCandidate feeds a harvested reply through the standard
// admission path, so a reply chain can spawn new drafts. Called by the
// delayed reply sweep.
func (h *Hunter) ProcessReplyCandidate(ctx context.Context, post models.CandidatePost) {
	if h.capReached(ctx, post.DiscoveredViaKeyword) {
		return
	}
	h.processCandidate(ctx, h.registry.Active(), post, false)
}
