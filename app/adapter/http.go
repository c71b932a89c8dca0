package adapter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxResponseBytes = 10 << 20

type StatusError struct {
	URL        string
	StatusCode int
	Status     string
	Snippet    string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("HTTP error: %s", e.Status)
	if e.StatusCode == http.StatusTooManyRequests {
		msg = fmt.Sprintf("rate limited: %s", e.Status)
	}
	if e.Snippet != "" {
		msg += ": " + e.Snippet
	}
	return msg
}

func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func fetchBody(ctx context.Context, client *http.Client, url, userAgent string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{
			URL:        url,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Snippet:    strings.TrimSpace(string(snippet)),
		}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}

	return data, nil
}
