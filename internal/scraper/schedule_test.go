package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const scheduleHTML = `<!doctype html>
<html><body>
<div class="schedule">
  <div class="schedule-row">
    <span class="schedule-row__time">10:00</span>
    <span class="schedule-row__name">Team A</span>
    <span class="schedule-row__initials">V</span>
  </div>
  <div class="schedule-row">
    <span class="schedule-row__name">Team B</span>
    <span class="schedule-row__initials">JV</span>
  </div>
  <div class="schedule-row">
    <span class="schedule-row__name">  </span>
    <span class="schedule-row__initials">X</span>
  </div>
  <div class="schedule-row">
    <span class="schedule-row__name">No Class Yet</span>
    <span class="schedule-row__initials"></span>
  </div>
  <div class="schedule-row">
    <span class="schedule-row__name">Team A</span>
    <span class="schedule-row__initials">V</span>
  </div>
</div>
</body></html>`

func TestScheduleScraper_ParsesRowsInDocumentOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(scheduleHTML))
	}))
	defer srv.Close()

	scraper := NewScheduleScraper(srv.Client(), nil)
	groups, err := scraper.Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}

	// Rows missing a name or class are dropped; the duplicate Team A row is a
	// separate entry, not collapsed.
	if len(groups) != 3 {
		t.Fatalf("len = %d, want 3 (%+v)", len(groups), groups)
	}
	if groups[0].Name != "Team A" || groups[0].Class != "V" {
		t.Fatalf("groups[0] = %+v", groups[0])
	}
	if groups[1].Name != "Team B" || groups[1].Class != "JV" {
		t.Fatalf("groups[1] = %+v", groups[1])
	}
	if groups[2].Name != "Team A" || groups[2].Class != "V" {
		t.Fatalf("groups[2] = %+v", groups[2])
	}
}

func TestScheduleScraper_EmptyPageYieldsNoRows(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>no schedule posted</p></body></html>`))
	}))
	defer srv.Close()

	groups, err := NewScheduleScraper(srv.Client(), nil).Scrape(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Scrape: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("len = %d, want 0", len(groups))
	}
}

func TestScheduleScraper_Non2xxIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewScheduleScraper(srv.Client(), nil).Scrape(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 schedule page")
	}
}

func TestScheduleScraper_TransportFailureIsAnError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if _, err := NewScheduleScraper(nil, nil).Scrape(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for unreachable host")
	}
}
