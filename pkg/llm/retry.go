package llm

import (
	"context"
	"net/http"
	"time"
)

const maxRequestRetries = 3

// doWithRetry executes an HTTP request with exponential backoff on transient
// failures (network errors, 429, 5xx). The request is rebuilt per attempt so
// the body reader is fresh.
func doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	backoff := 500 * time.Millisecond

	for attempt := 0; attempt <= maxRequestRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &retryStatusError{status: resp.Status}
			_ = resp.Body.Close()
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}

type retryStatusError struct {
	status string
}

func (e *retryStatusError) Error() string {
	return "retryable status: " + e.status
}
