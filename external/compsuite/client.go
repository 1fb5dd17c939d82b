package compsuite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/tbraddock/showcircuit/internal/domain/catalog"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
	"github.com/tbraddock/showcircuit/internal/platform/resilience"
	"github.com/tbraddock/showcircuit/internal/usecase"
)

const (
	defaultBaseURL  = "https://api.competitionsuite.com/v3"
	maxResponseBody = 6 << 20
)

var errCompSuiteTransient = crerr.New("competitionsuite transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	TokenURL       string
	ClientID       string
	ClientSecret   string
	Timeout        time.Duration
	MaxRetries     int
	Logger         *logging.Logger
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the CompetitionSuite v3 API. It holds no token state;
// callers open a Session per run via NewSession.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokenURL       string
	clientID       string
	clientSecret   string
	maxRetries     int
	logger         *logging.Logger
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	tokenURL := strings.TrimSpace(cfg.TokenURL)
	if tokenURL == "" {
		tokenURL = baseURL + "/oauth2/token"
	}
	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		tokenURL:       tokenURL,
		clientID:       strings.TrimSpace(cfg.ClientID),
		clientSecret:   strings.TrimSpace(cfg.ClientSecret),
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		logger:         logger,
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
	}
}

// Session carries one client-credentials token. Sessions are cheap and
// short-lived: one per pipeline run or proxy request.
type Session struct {
	client *Client
	token  string
}

// NewSession exchanges client credentials for a bearer token.
func (c *Client) NewSession(ctx context.Context) (*Session, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return nil, crerr.New("client credentials are not configured")
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, crerr.Wrap(err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange: %s", usecase.ErrDependencyUnavailable, c.sanitize(err.Error()))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, crerr.Wrap(err, "read token response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: token endpoint status=%d", usecase.ErrDependencyUnavailable, resp.StatusCode)
	}

	var token tokenEnvelope
	if err := sonic.Unmarshal(raw, &token); err != nil {
		return nil, crerr.Wrap(err, "decode token response")
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return nil, crerr.New("token endpoint returned an empty access_token")
	}

	return &Session{client: c, token: token.AccessToken}, nil
}

// ListSeasons returns all seasons sorted newest-first. Season names sort
// chronologically as strings, so descending name order is recency order.
func (s *Session) ListSeasons(ctx context.Context) ([]catalog.Season, error) {
	var envelope seasonsEnvelope
	if err := s.client.doJSON(ctx, s.token, "/seasons", nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch seasons: %w", err)
	}

	seasons := envelope.Data
	sort.SliceStable(seasons, func(i, j int) bool { return seasons[i].Name > seasons[j].Name })
	return seasons, nil
}

func (s *Session) GetSeason(ctx context.Context, seasonID string) (catalog.Season, error) {
	if strings.TrimSpace(seasonID) == "" {
		return catalog.Season{}, fmt.Errorf("%w: season id is required", usecase.ErrInvalidInput)
	}

	var season seasonEnvelope
	if err := s.client.doJSON(ctx, s.token, "/seasons/"+url.PathEscape(seasonID), nil, &season); err != nil {
		return catalog.Season{}, fmt.Errorf("fetch season id=%s: %w", seasonID, err)
	}

	return catalog.Season{ID: firstNonEmpty(season.ID, seasonID), Name: season.Name}, nil
}

func (s *Session) ListEvents(ctx context.Context, seasonID string) ([]catalog.Event, error) {
	if strings.TrimSpace(seasonID) == "" {
		return nil, fmt.Errorf("%w: season id is required", usecase.ErrInvalidInput)
	}

	var envelope eventsEnvelope
	query := map[string]string{"seasonId": seasonID}
	if err := s.client.doJSON(ctx, s.token, "/events", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch events season_id=%s: %w", seasonID, err)
	}

	return envelope.Data, nil
}

func (s *Session) GetEvent(ctx context.Context, eventID string) (catalog.EventDetail, error) {
	if strings.TrimSpace(eventID) == "" {
		return catalog.EventDetail{}, fmt.Errorf("%w: event id is required", usecase.ErrInvalidInput)
	}

	var detail catalog.EventDetail
	if err := s.client.doJSON(ctx, s.token, "/events/"+url.PathEscape(eventID), nil, &detail); err != nil {
		return catalog.EventDetail{}, fmt.Errorf("fetch event id=%s: %w", eventID, err)
	}

	return detail, nil
}

func (s *Session) ListGroups(ctx context.Context, seasonID string) ([]catalog.Group, error) {
	if strings.TrimSpace(seasonID) == "" {
		return nil, fmt.Errorf("%w: season id is required", usecase.ErrInvalidInput)
	}

	var envelope groupsEnvelope
	query := map[string]string{"seasonId": seasonID}
	if err := s.client.doJSON(ctx, s.token, "/groups", query, &envelope); err != nil {
		return nil, fmt.Errorf("fetch groups season_id=%s: %w", seasonID, err)
	}

	return envelope.Data, nil
}

func (s *Session) ListAllGroups(ctx context.Context) ([]catalog.Group, error) {
	var envelope groupsEnvelope
	if err := s.client.doJSON(ctx, s.token, "/groups", nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch groups: %w", err)
	}

	return envelope.Data, nil
}

func (s *Session) ListCircuitEvents(ctx context.Context, circuitID string) ([]catalog.Event, error) {
	if strings.TrimSpace(circuitID) == "" {
		return nil, fmt.Errorf("%w: circuit id is required", usecase.ErrInvalidInput)
	}

	var envelope eventsEnvelope
	if err := s.client.doJSON(ctx, s.token, "/circuits/"+url.PathEscape(circuitID)+"/events", nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch circuit events circuit_id=%s: %w", circuitID, err)
	}

	return envelope.Data, nil
}

func (s *Session) ListGroupEvents(ctx context.Context, groupID string) ([]catalog.Event, error) {
	if strings.TrimSpace(groupID) == "" {
		return nil, fmt.Errorf("%w: group id is required", usecase.ErrInvalidInput)
	}

	var envelope eventsEnvelope
	if err := s.client.doJSON(ctx, s.token, "/groups/"+url.PathEscape(groupID)+"/events", nil, &envelope); err != nil {
		return nil, fmt.Errorf("fetch group events group_id=%s: %w", groupID, err)
	}

	return envelope.Data, nil
}

func (c *Client) doJSON(ctx context.Context, token, path string, query map[string]string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "competitionsuite circuit breaker rejected request", "state", c.breaker.State())
			return fmt.Errorf("%w: catalog service is temporarily unavailable", usecase.ErrDependencyUnavailable)
		}
	}

	values := url.Values{}
	for key, value := range query {
		values.Set(key, value)
	}

	fullURL := c.baseURL + path
	if encoded := values.Encode(); encoded != "" {
		fullURL += "?" + encoded
	}

	// Dedup is scoped to the session token so concurrent sessions never
	// share in-flight responses or block on each other's requests.
	flightKey := token + "|" + path + "?" + values.Encode()
	out, err, _ := c.flight.Do(flightKey, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, token, fullURL)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, errCompSuiteTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode catalog payload: %w", err)
	}

	return nil
}

func (c *Client) executeRequest(ctx context.Context, token, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %s", errCompSuiteTransient, c.sanitize(err.Error()))
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", errCompSuiteTransient, readErr)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				return raw, nil
			case resp.StatusCode == http.StatusNotFound:
				return nil, fmt.Errorf("%w: catalog status=404", usecase.ErrNotFound)
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: catalog status=%d body=%s", errCompSuiteTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("catalog status=%d body=%s", resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}
		backoff := time.Duration(attempt+1) * time.Second
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return nil, lastErr
}

func (c *Client) sanitize(text string) string {
	if c.clientSecret == "" {
		return text
	}
	return strings.ReplaceAll(text, c.clientSecret, "***")
}

func isRetryableStatus(status int) bool {
	switch status {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

func abbreviateBody(raw []byte) string {
	const max = 512
	body := strings.TrimSpace(string(raw))
	if len(body) > max {
		return body[:max] + "..."
	}
	return body
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
