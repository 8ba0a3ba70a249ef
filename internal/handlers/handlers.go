package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"harpoon/internal/dedupe"
	"harpoon/internal/gate"
	"harpoon/internal/hunter"
	"harpoon/internal/models"
	"harpoon/internal/replywatch"
	"harpoon/internal/store"
	"harpoon/internal/strategy"
	"harpoon/pkg/logging"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Handlers is the operator control surface: thin pass-throughs to the
// hunter, registry, gate and store.
type Handlers struct {
	Hunter     *hunter.Hunter
	Registry   *strategy.Registry
	Gate       *gate.Gate
	Suppressor *dedupe.Suppressor
	Store      store.DraftStore
	Watcher    *replywatch.Watcher
	Logger     logging.Logger
}

func RegisterRoutes(router gin.IRoutes, h *Handlers) {
	router.POST("/hunt", h.HandleHunt)
	router.POST("/hunt/sweep", h.HandleSweep)
	router.POST("/hunt/post/:id", h.HandleHuntPost)
	router.GET("/hunter/status", h.HandleHunterStatus)
	router.POST("/hunter/reset", h.HandleHunterReset)
	router.POST("/campaigns/:id/pause", h.HandleCampaignPause)
	router.POST("/campaigns/:id/resume", h.HandleCampaignResume)
	router.POST("/strategies/:id/activate", h.HandleActivateStrategy)
	router.GET("/strategies", h.HandleListStrategies)
	router.GET("/drafts", h.HandleListDrafts)
	router.GET("/drafts/:id", h.HandleGetDraft)
	router.POST("/drafts/:id/approve", h.HandleApproveDraft)
	router.POST("/drafts/:id/reject", h.HandleRejectDraft)
	router.PUT("/admission", h.HandleTuneAdmission)
}

func (h *Handlers) triggerHunt(c *gin.Context, sweep bool) {
	err := h.Hunter.Trigger(sweep)
	switch {
	case errors.Is(err, hunter.ErrAlreadyHunting):
		c.JSON(http.StatusOK, gin.H{"status": "already_running"})
	case errors.Is(err, hunter.ErrNotStarted):
		c.JSON(http.StatusConflict, gin.H{"error": "hunter not started"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	}
}

func (h *Handlers) HandleHunt(c *gin.Context) {
	h.triggerHunt(c, false)
}

func (h *Handlers) HandleSweep(c *gin.Context) {
	h.triggerHunt(c, true)
}

type huntPostRequest struct {
	Author string `json:"author"`
	Text   string `json:"text" binding:"required"`
}

// HandleHuntPost runs one post through the pipeline as a forced manual
// override.
func (h *Handlers) HandleHuntPost(c *gin.Context) {
	var req huntPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	draft, err := h.Hunter.HuntPost(c.Request.Context(), models.CandidatePost{
		ID:           c.Param("id"),
		AuthorHandle: req.Author,
		Text:         req.Text,
	})
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, toDraftResponse(draft))
}

func (h *Handlers) HandleHunterStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":           h.Hunter.State(),
		"active_strategy": h.Registry.Active().ID,
		"delayed_fetches": len(h.Watcher.Pending()),
	})
}

func (h *Handlers) HandleHunterReset(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reset": h.Hunter.ForceReset(), "state": h.Hunter.State()})
}

func (h *Handlers) HandleCampaignPause(c *gin.Context) {
	h.Hunter.Pause(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"campaign": c.Param("id"), "paused": true})
}

func (h *Handlers) HandleCampaignResume(c *gin.Context) {
	h.Hunter.Resume(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"campaign": c.Param("id"), "paused": false})
}

func (h *Handlers) HandleActivateStrategy(c *gin.Context) {
	id := c.Param("id")
	if err := h.Registry.Activate(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	h.Logger.WithField("strategy", id).Info("Active strategy switched")
	c.JSON(http.StatusOK, gin.H{"active_strategy": id})
}

func (h *Handlers) HandleListStrategies(c *gin.Context) {
	active := h.Registry.Active().ID
	defs := h.Registry.All()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"id":       def.ID,
			"campaign": def.CampaignType,
			"keywords": len(def.Keywords),
			"active":   def.ID == active,
		})
	}
	c.JSON(http.StatusOK, gin.H{"strategies": out})
}

func (h *Handlers) HandleListDrafts(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultListLimit)))
	if err != nil || limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	drafts, err := h.Store.List(c.Request.Context(), models.DraftStatus(c.Query("status")), limit, offset)
	if err != nil {
		h.Logger.WithError(err).Error("List drafts failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list drafts"})
		return
	}
	out := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, toDraftResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"drafts": out})
}

func (h *Handlers) HandleGetDraft(c *gin.Context) {
	draft, err := h.Store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load draft"})
		return
	}
	c.JSON(http.StatusOK, toDraftResponse(draft))
}

func (h *Handlers) HandleApproveDraft(c *gin.Context) {
	h.reviewDraft(c, models.StatusApproved)
}

func (h *Handlers) HandleRejectDraft(c *gin.Context) {
	h.reviewDraft(c, models.StatusRejected)
}

func (h *Handlers) reviewDraft(c *gin.Context, status models.DraftStatus) {
	id := c.Param("id")
	err := h.Store.UpdateStatus(c.Request.Context(), id, status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "draft not found"})
		return
	}
	if err != nil {
		h.Logger.WithError(err).WithField("draft_id", id).Error("Draft review update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update draft"})
		return
	}
	h.Logger.WithFields(logging.Fields{
		"draft_id": id,
		"status":   string(status),
	}).Info("Draft reviewed")
	c.JSON(http.StatusOK, gin.H{"id": id, "status": string(status)})
}

type admissionRequest struct {
	ScoreThreshold      *int     `json:"score_threshold"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
}

// HandleTuneAdmission adjusts the runtime-tunable admission parameters.
// Both thresholds moved repeatedly in production; they stay tunable
// instead of hard-coded.
func (h *Handlers) HandleTuneAdmission(c *gin.Context) {
	var req admissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	if req.ScoreThreshold != nil {
		h.Gate.SetThreshold(*req.ScoreThreshold)
	}
	if req.SimilarityThreshold != nil {
		h.Suppressor.SetSimilarityThreshold(*req.SimilarityThreshold)
	}
	c.JSON(http.StatusOK, gin.H{
		"score_threshold":      h.Gate.Threshold(),
		"similarity_threshold": h.Suppressor.SimilarityThreshold(),
	})
}

type draftResponse struct {
	ID               string `json:"id"`
	CampaignType     string `json:"campaign_type"`
	Strategy         string `json:"strategy,omitempty"`
	OriginalPostID   string `json:"original_post_id"`
	OriginalAuthor   string `json:"original_author"`
	OriginalText     string `json:"original_text"`
	ExtractedContext string `json:"extracted_context,omitempty"`
	Status           string `json:"status"`
	ReplyText        string `json:"reply_text"`
	MediaURL         string `json:"media_url,omitempty"`
	Attribution      string `json:"attribution,omitempty"`
	ActionType       string `json:"action_type"`
	Score            int    `json:"score"`
	CreatedAt        string `json:"created_at"`
}

func toDraftResponse(d models.Draft) draftResponse {
	return draftResponse{
		ID:               d.ID,
		CampaignType:     d.CampaignType,
		Strategy:         d.Strategy,
		OriginalPostID:   d.OriginalPostID,
		OriginalAuthor:   d.OriginalAuthor,
		OriginalText:     d.OriginalText,
		ExtractedContext: d.ExtractedContext,
		Status:           string(d.Status),
		ReplyText:        d.ReplyText,
		MediaURL:         d.MediaURL,
		Attribution:      d.Attribution,
		ActionType:       string(d.ActionType),
		Score:            d.Score,
		CreatedAt:        d.CreatedAt.UTC().Format(time.RFC3339),
	}
}
