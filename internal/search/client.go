package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"harpoon/internal/models"
	"harpoon/pkg/logging"
)

const (
	defaultTimeout    = 20 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = 500 * time.Millisecond
	retryMaxDelay     = 5 * time.Second
)

// Searcher is the external search collaborator boundary.
type Searcher interface {
	SearchAllPlatforms(ctx context.Context, keyword string, platforms []string) ([]models.CandidatePost, error)
	FetchRepliesTo(ctx context.Context, postID string, limit int) ([]models.CandidatePost, error)
}

type Config struct {
	BaseURL   string
	APIKey    string
	Platforms []string
	Timeout   time.Duration
	Logger    logging.Logger
}

// Client talks to the social search aggregator over HTTP. Transient
// failures (network errors, 429, 5xx) are retried with backoff.
type Client struct {
	baseURL   string
	apiKey    string
	platforms []string
	client    *http.Client
	executor  failsafe.Executor[*http.Response]
	logger    logging.Logger
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(retryBaseDelay, retryMaxDelay).
		WithMaxRetries(defaultMaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			return shouldRetry(resp, err)
		}).
		Build()

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		platforms: cfg.Platforms,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
		executor: failsafe.With(retry),
		logger:   cfg.Logger,
	}
}

// shouldRetry retries network errors, rate limits and server errors.
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil || resp == nil {
		return true
	}
	switch resp.StatusCode {
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

type wirePost struct {
	ID           string `json:"id"`
	AuthorHandle string `json:"author_handle"`
	Text         string `json:"text"`
}

type searchResponse struct {
	Posts []wirePost `json:"posts"`
}

// SearchAllPlatforms queries the aggregator for recent posts matching a
// keyword across the configured platforms.
func (c *Client) SearchAllPlatforms(ctx context.Context, keyword string, platforms []string) ([]models.CandidatePost, error) {
	if len(platforms) == 0 {
		platforms = c.platforms
	}
	params := url.Values{}
	params.Set("q", keyword)
	if len(platforms) > 0 {
		params.Set("platforms", strings.Join(platforms, ","))
	}

	posts, err := c.get(ctx, "/v1/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}
	return toCandidates(posts, keyword), nil
}

// FetchRepliesTo fetches replies to a previously published post, ranked by
// the aggregator. Used by the delayed reply sweep.
func (c *Client) FetchRepliesTo(ctx context.Context, postID string, limit int) ([]models.CandidatePost, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/posts/" + url.PathEscape(postID) + "/replies"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}

	posts, err := c.get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch replies to %s: %w", postID, err)
	}
	return toCandidates(posts, ""), nil
}

func (c *Client) get(ctx context.Context, path string) ([]wirePost, error) {
	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}
		req.Header.Set("Accept", "application/json")

		r, doErr := c.client.Do(req)
		if doErr != nil {
			return nil, doErr
		}
		if shouldRetry(r, nil) {
			// Drain so the failed attempt's connection can be reused.
			r.Body.Close()
		}
		return r, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Posts, nil
}

func toCandidates(posts []wirePost, keyword string) []models.CandidatePost {
	candidates := make([]models.CandidatePost, 0, len(posts))
	for _, p := range posts {
		if p.ID == "" || p.Text == "" {
			continue
		}
		candidates = append(candidates, models.CandidatePost{
			ID:                   p.ID,
			AuthorHandle:         p.AuthorHandle,
			Text:                 p.Text,
			DiscoveredViaKeyword: keyword,
		})
	}
	return candidates
}
