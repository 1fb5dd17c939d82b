package scraper

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	crerr "github.com/cockroachdb/errors"
	"github.com/tbraddock/showcircuit/internal/domain/catalog"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
)

const (
	userAgent      = "showcircuit/1.0 (github.com/tbraddock/showcircuit)"
	defaultTimeout = 30 * time.Second

	rowSelector      = ".schedule-row"
	nameSelector     = ".schedule-row__name"
	initialsSelector = ".schedule-row__initials"
)

// ScheduleScraper extracts roster rows from an event's public schedule page.
// The selectors are the only coupling to the third-party markup; if the page
// layout changes, this file is the whole blast radius.
type ScheduleScraper struct {
	client *http.Client
	logger *logging.Logger
}

func NewScheduleScraper(client *http.Client, logger *logging.Logger) *ScheduleScraper {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ScheduleScraper{client: client, logger: logger}
}

// Scrape fetches the page and returns one entry per schedule row that has
// both a non-empty name and class code, in document order. Duplicate rows are
// kept; the roster is reported as printed. Fetch and parse failures are
// returned to the caller, not swallowed.
func (s *ScheduleScraper) Scrape(ctx context.Context, pageURL string) ([]catalog.ScrapedGroup, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, crerr.Wrap(err, "build schedule request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, crerr.Wrapf(err, "fetch schedule page url=%s", pageURL)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, crerr.Newf("fetch schedule page url=%s status=%d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, crerr.Wrapf(err, "parse schedule page url=%s", pageURL)
	}

	groups := make([]catalog.ScrapedGroup, 0, 16)
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		name := strings.TrimSpace(row.Find(nameSelector).Text())
		class := strings.TrimSpace(row.Find(initialsSelector).Text())
		if name == "" || class == "" {
			return
		}
		groups = append(groups, catalog.ScrapedGroup{Name: name, Class: class})
	})

	s.logger.DebugContext(ctx, "scraped schedule page", "url", pageURL, "rows", len(groups))
	return groups, nil
}
