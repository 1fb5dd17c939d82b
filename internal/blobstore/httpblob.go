package blobstore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	crerr "github.com/cockroachdb/errors"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
	"github.com/valyala/bytebufferpool"
)

const maxBlobBody = 16 << 20

type HTTPStoreConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// HTTPStore writes snapshots to a remote blob endpoint over plain HTTP: PUT
// {base}/{key} overwrites, GET {base}/{key} reads back. The endpoint is
// expected to answer 404 for keys that were never written.
type HTTPStore struct {
	client  *http.Client
	baseURL string
	token   string
	logger  *logging.Logger
}

func NewHTTPStore(cfg HTTPStoreConfig, logger *logging.Logger) (*HTTPStore, error) {
	baseURL, err := validateHTTPBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, crerr.Wrap(err, "invalid blob base url")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &HTTPStore{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		token:   strings.TrimSpace(cfg.Token),
		logger:  logger,
	}, nil
}

func (s *HTTPStore) Put(ctx context.Context, key string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.blobURL(key), bytes.NewReader(body))
	if err != nil {
		return crerr.Wrapf(err, "build blob put key=%s", key)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return crerr.Wrapf(err, "put blob key=%s", key)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return crerr.Newf("put blob key=%s status=%d body=%s", key, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	s.logger.DebugContext(ctx, "blob stored", "key", key, "bytes", len(body))
	return nil
}

func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.blobURL(key), nil)
	if err != nil {
		return nil, crerr.Wrapf(err, "build blob get key=%s", key)
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, crerr.Wrapf(err, "get blob key=%s", key)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode/100 != 2 {
		return nil, crerr.Newf("get blob key=%s status=%d", key, resp.StatusCode)
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := io.Copy(buf, io.LimitReader(resp.Body, maxBlobBody)); err != nil {
		return nil, crerr.Wrapf(err, "read blob key=%s", key)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func (s *HTTPStore) blobURL(key string) string {
	return s.baseURL + "/" + strings.TrimLeft(key, "/")
}

func validateHTTPBaseURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", crerr.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}

	return strings.TrimRight(candidate, "/"), nil
}
