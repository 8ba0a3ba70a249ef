package models

import "time"

// DraftStatus is the review lifecycle state of a draft.
type DraftStatus string

const (
	StatusPendingReview DraftStatus = "pending_review"
	StatusApproved      DraftStatus = "approved"
	StatusRejected      DraftStatus = "rejected"
	StatusPublished     DraftStatus = "published"
	StatusFailed        DraftStatus = "failed"
)

// ActionType describes how a draft would be posted.
type ActionType string

const (
	ActionReply      ActionType = "reply"
	ActionQuoteTweet ActionType = "quote_tweet"
)

// CandidatePost is an inbound social post under evaluation. It lives for one
// pipeline pass and is never persisted as its own entity.
type CandidatePost struct {
	ID                   string
	AuthorHandle         string
	Text                 string
	DiscoveredViaKeyword string
}

// Draft is the durable unit of work: a generated reply tied one-to-one to a
// source post, awaiting human review. OriginalPostID is unique across all
// drafts — at most one generation attempt per source post.
type Draft struct {
	ID               string
	CampaignType     string
	Strategy         string // empty when no named strategy produced it
	OriginalPostID   string
	OriginalAuthor   string
	OriginalText     string
	ExtractedContext string
	Status           DraftStatus
	ReplyText        string
	MediaURL         string
	Attribution      string
	ActionType       ActionType
	Score            int
	CreatedAt        time.Time
}

// DelayedFetch schedules a secondary harvesting pass over a high-score lead's
// reply chain. In-memory only; consumed by the reply watcher.
type DelayedFetch struct {
	OriginalPostID string
	OriginalAuthor string
	Score          int
	FoundAt        time.Time
	FetchAt        time.Time
	Processed      bool
}
