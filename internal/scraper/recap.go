package scraper

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbraddock/showcircuit/internal/platform/logging"
)

// unavailableMarker appears in the recap page body while scores have not been
// published yet.
const unavailableMarker = "not available"

const maxRecapBody = 2 << 20

// RecapChecker decides whether an event's recap link actually resolves to a
// published recap. A missing or broken recap is a normal outcome, so Validate
// never returns an error.
type RecapChecker struct {
	client *http.Client
	logger *logging.Logger
}

func NewRecapChecker(client *http.Client, logger *logging.Logger) *RecapChecker {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RecapChecker{client: client, logger: logger}
}

// Validate returns recapURL when the page looks published, or "" when the URL
// is empty, the page carries the unavailable marker, or the fetch fails.
func (c *RecapChecker) Validate(ctx context.Context, recapURL string) string {
	if strings.TrimSpace(recapURL) == "" {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recapURL, nil)
	if err != nil {
		c.logger.WarnContext(ctx, "invalid recap url", "url", recapURL, "error", err)
		return ""
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "recap fetch failed", "url", recapURL, "error", err)
		return ""
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.WarnContext(ctx, "recap fetch returned non-2xx", "url", recapURL, "status", resp.StatusCode)
		return ""
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecapBody))
	if err != nil {
		c.logger.WarnContext(ctx, "recap body read failed", "url", recapURL, "error", err)
		return ""
	}

	if strings.Contains(string(body), unavailableMarker) {
		c.logger.DebugContext(ctx, "recap not yet available", "url", recapURL)
		return ""
	}

	return recapURL
}
