package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	sonic "github.com/bytedance/sonic"
	"github.com/tbraddock/showcircuit/internal/blobstore"
	"github.com/tbraddock/showcircuit/internal/domain/catalog"
)

type stubCatalogAPI struct {
	seasons        []catalog.Season
	eventsBySeason map[string][]catalog.Event
	eventsErr      map[string]error
	groupsBySeason map[string][]catalog.Group
	details        map[string]catalog.EventDetail
	detailErr      map[string]error
}

func (a *stubCatalogAPI) ListSeasons(context.Context) ([]catalog.Season, error) {
	return a.seasons, nil
}

func (a *stubCatalogAPI) GetSeason(_ context.Context, seasonID string) (catalog.Season, error) {
	for _, season := range a.seasons {
		if season.ID == seasonID {
			return season, nil
		}
	}
	return catalog.Season{}, fmt.Errorf("%w: season=%s", ErrNotFound, seasonID)
}

func (a *stubCatalogAPI) ListEvents(_ context.Context, seasonID string) ([]catalog.Event, error) {
	if err := a.eventsErr[seasonID]; err != nil {
		return nil, err
	}
	return a.eventsBySeason[seasonID], nil
}

func (a *stubCatalogAPI) GetEvent(_ context.Context, eventID string) (catalog.EventDetail, error) {
	if err := a.detailErr[eventID]; err != nil {
		return catalog.EventDetail{}, err
	}
	detail, ok := a.details[eventID]
	if !ok {
		return catalog.EventDetail{}, fmt.Errorf("%w: event=%s", ErrNotFound, eventID)
	}
	return detail, nil
}

func (a *stubCatalogAPI) ListGroups(_ context.Context, seasonID string) ([]catalog.Group, error) {
	return a.groupsBySeason[seasonID], nil
}

func (a *stubCatalogAPI) ListAllGroups(context.Context) ([]catalog.Group, error) {
	var all []catalog.Group
	for _, groups := range a.groupsBySeason {
		all = append(all, groups...)
	}
	return all, nil
}

func (a *stubCatalogAPI) ListCircuitEvents(_ context.Context, circuitID string) ([]catalog.Event, error) {
	return a.eventsBySeason[circuitID], nil
}

func (a *stubCatalogAPI) ListGroupEvents(_ context.Context, groupID string) ([]catalog.Event, error) {
	return a.eventsBySeason[groupID], nil
}

type stubScraper struct {
	rowsByURL  map[string][]catalog.ScrapedGroup
	errByURL   map[string]error
	delayByURL map[string]time.Duration
}

func (s *stubScraper) Scrape(_ context.Context, pageURL string) ([]catalog.ScrapedGroup, error) {
	if delay := s.delayByURL[pageURL]; delay > 0 {
		time.Sleep(delay)
	}
	if err := s.errByURL[pageURL]; err != nil {
		return nil, err
	}
	return s.rowsByURL[pageURL], nil
}

type concurrencyTrackingScraper struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	rows     []catalog.ScrapedGroup
}

func (s *concurrencyTrackingScraper) Scrape(_ context.Context, _ string) ([]catalog.ScrapedGroup, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if current <= peak || s.peak.CompareAndSwap(peak, current) {
			break
		}
	}
	time.Sleep(15 * time.Millisecond)
	return s.rows, nil
}

type stubRecap struct {
	published map[string]bool
}

func (r *stubRecap) Validate(_ context.Context, recapURL string) string {
	if r.published[recapURL] {
		return recapURL
	}
	return ""
}

func sessionsFor(api CatalogAPI) SessionFactory {
	return func(context.Context) (CatalogAPI, error) {
		return api, nil
	}
}

func scheduleURL(event string) string {
	return "https://host/sched/" + event
}

func detailWith(eventID, recapURL string) catalog.EventDetail {
	return catalog.EventDetail{
		ID:   eventID,
		Name: "Event " + eventID,
		Competitions: []catalog.Competition{
			{ID: eventID + "-c", StandardScheduleURL: scheduleURL(eventID), RecapURL: recapURL},
		},
	}
}

func TestSnapshotSeason_KeepsEventOrderUnderUnevenLatency(t *testing.T) {
	t.Parallel()

	events := make([]catalog.Event, 0, 6)
	details := make(map[string]catalog.EventDetail, 6)
	rows := make(map[string][]catalog.ScrapedGroup, 6)
	delays := make(map[string]time.Duration, 6)
	for i := 0; i < 6; i++ {
		eventID := fmt.Sprintf("e%d", i)
		events = append(events, catalog.Event{ID: eventID, Name: "Event " + eventID})
		details[eventID] = detailWith(eventID, "")
		rows[scheduleURL(eventID)] = []catalog.ScrapedGroup{{Name: "Alpha Ensemble", Class: "A"}}
		// The earliest submitted tasks take the longest, so completion order
		// inverts submission order.
		delays[scheduleURL(eventID)] = time.Duration(6-i) * 20 * time.Millisecond
	}

	api := &stubCatalogAPI{
		seasons:        []catalog.Season{{ID: "s1", Name: "2025-2026"}},
		eventsBySeason: map[string][]catalog.Event{"s1": events},
		groupsBySeason: map[string][]catalog.Group{
			"s1": {{ID: "g1", Name: "Alpha Ensemble (World)"}},
		},
		details: details,
	}
	service := NewSnapshotService(
		sessionsFor(api),
		&stubScraper{rowsByURL: rows, delayByURL: delays},
		&stubRecap{},
		blobstore.NewMemoryStore(),
		nil, 3, SnapshotKeys{}, nil,
	)

	result, err := service.SnapshotSeason(context.Background(), "s1")
	if err != nil {
		t.Fatalf("SnapshotSeason: %v", err)
	}
	if result.EventCount != len(events) {
		t.Fatalf("EventCount = %d, want %d", result.EventCount, len(events))
	}
	if result.Key != "events-with-groups/2025-2026.json" {
		t.Fatalf("Key = %q", result.Key)
	}

	body, err := service.store.Get(context.Background(), result.Key)
	if err != nil {
		t.Fatalf("read back snapshot: %v", err)
	}
	var snapshot catalog.SeasonSnapshot
	if err := sonic.Unmarshal(body, &snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Events) != len(events) {
		t.Fatalf("records = %d, want %d", len(snapshot.Events), len(events))
	}
	for i, record := range snapshot.Events {
		if record.ID != events[i].ID {
			t.Fatalf("record[%d].ID = %s, want %s", i, record.ID, events[i].ID)
		}
		if len(record.Groups) != 1 || record.Groups[0].GroupID == nil || *record.Groups[0].GroupID != "g1" {
			t.Fatalf("record[%d].Groups = %+v, want resolved g1", i, record.Groups)
		}
	}
}

func TestSnapshotSeason_BoundsScrapeConcurrency(t *testing.T) {
	t.Parallel()

	const bound = 3

	events := make([]catalog.Event, 0, 12)
	details := make(map[string]catalog.EventDetail, 12)
	for i := 0; i < 12; i++ {
		eventID := fmt.Sprintf("e%d", i)
		events = append(events, catalog.Event{ID: eventID, Name: "Event " + eventID})
		details[eventID] = detailWith(eventID, "")
	}

	api := &stubCatalogAPI{
		seasons:        []catalog.Season{{ID: "s1", Name: "2025-2026"}},
		eventsBySeason: map[string][]catalog.Event{"s1": events},
		groupsBySeason: map[string][]catalog.Group{},
		details:        details,
	}
	scraper := &concurrencyTrackingScraper{rows: []catalog.ScrapedGroup{{Name: "Alpha Ensemble", Class: "A"}}}
	service := NewSnapshotService(
		sessionsFor(api),
		scraper,
		&stubRecap{},
		blobstore.NewMemoryStore(),
		nil, bound, SnapshotKeys{}, nil,
	)

	if _, err := service.SnapshotSeason(context.Background(), "s1"); err != nil {
		t.Fatalf("SnapshotSeason: %v", err)
	}
	if peak := scraper.peak.Load(); peak > bound {
		t.Fatalf("peak in-flight scrapes = %d, want at most %d", peak, bound)
	}
	if still := scraper.inFlight.Load(); still != 0 {
		t.Fatalf("scrapes still in flight after run: %d", still)
	}
}

func TestSnapshotSeason_SoftFailuresStayInTheirSlot(t *testing.T) {
	t.Parallel()

	events := []catalog.Event{
		{ID: "ok", Name: "Event ok"},
		{ID: "detail-fails", Name: "Event detail-fails"},
		{ID: "scrape-fails", Name: "Event scrape-fails"},
		{ID: "no-competition", Name: "Event no-competition"},
	}
	api := &stubCatalogAPI{
		seasons:        []catalog.Season{{ID: "s1", Name: "2025-2026"}},
		eventsBySeason: map[string][]catalog.Event{"s1": events},
		groupsBySeason: map[string][]catalog.Group{
			"s1": {{ID: "g1", Name: "Alpha Ensemble"}},
		},
		details: map[string]catalog.EventDetail{
			"ok":             detailWith("ok", "https://host/recap/ok"),
			"scrape-fails":   detailWith("scrape-fails", "https://host/recap/sf"),
			"no-competition": {ID: "no-competition", Name: "Event no-competition"},
		},
		detailErr: map[string]error{
			"detail-fails": errors.New("upstream detail exploded"),
		},
	}
	scraper := &stubScraper{
		rowsByURL: map[string][]catalog.ScrapedGroup{
			scheduleURL("ok"): {
				{Name: "Alpha Ensemble", Class: "A"},
				{Name: "Unknown Crew", Class: "O"},
			},
		},
		errByURL: map[string]error{
			scheduleURL("scrape-fails"): errors.New("schedule page 500"),
		},
	}
	service := NewSnapshotService(
		sessionsFor(api),
		scraper,
		&stubRecap{published: map[string]bool{"https://host/recap/ok": true}},
		blobstore.NewMemoryStore(),
		nil, 0, SnapshotKeys{}, nil,
	)

	records, err := service.EventsWithGroups(context.Background())
	if err != nil {
		t.Fatalf("EventsWithGroups: %v", err)
	}
	if len(records) != len(events) {
		t.Fatalf("records = %d, want %d", len(records), len(events))
	}

	ok := records[0]
	if ok.Error != "" {
		t.Fatalf("ok record carries error: %q", ok.Error)
	}
	if len(ok.Groups) != 2 {
		t.Fatalf("ok groups = %+v", ok.Groups)
	}
	if ok.Groups[0].GroupID == nil || *ok.Groups[0].GroupID != "g1" {
		t.Fatalf("matched group not resolved: %+v", ok.Groups[0])
	}
	if ok.Groups[1].GroupID != nil {
		t.Fatalf("unmatched group should keep nil id: %+v", ok.Groups[1])
	}
	if ok.RecapURL != "https://host/recap/ok" {
		t.Fatalf("ok recap = %q", ok.RecapURL)
	}

	detailFail := records[1]
	if detailFail.Error == "" || len(detailFail.Groups) != 0 || detailFail.RecapURL != "" {
		t.Fatalf("detail failure record = %+v, want error with empty groups and recap", detailFail)
	}

	scrapeFail := records[2]
	if scrapeFail.Error == "" || len(scrapeFail.Groups) != 0 || scrapeFail.RecapURL != "" {
		t.Fatalf("scrape failure record = %+v, want error with empty groups and recap", scrapeFail)
	}
	if scrapeFail.ScheduleURL != nil {
		t.Fatalf("scrape failure record keeps schedule url %q, want nil", *scrapeFail.ScheduleURL)
	}

	noComp := records[3]
	if noComp.Error != "" || noComp.ScheduleURL != nil || len(noComp.Groups) != 0 {
		t.Fatalf("no-competition record = %+v, want clean empty record", noComp)
	}
}

func TestSnapshotAllSeasons_SkipsEmptyAndFailingSeasons(t *testing.T) {
	t.Parallel()

	api := &stubCatalogAPI{
		seasons: []catalog.Season{
			{ID: "s3", Name: "2025-2026"},
			{ID: "s2", Name: "2024-2025"},
			{ID: "s1", Name: "2023-2024"},
		},
		eventsBySeason: map[string][]catalog.Event{
			"s3": {{ID: "e1", Name: "Event e1"}},
			"s2": {},
		},
		eventsErr: map[string]error{
			"s1": errors.New("season archive offline"),
		},
		groupsBySeason: map[string][]catalog.Group{},
		details: map[string]catalog.EventDetail{
			"e1": detailWith("e1", ""),
		},
	}
	store := blobstore.NewMemoryStore()
	service := NewSnapshotService(
		sessionsFor(api),
		&stubScraper{rowsByURL: map[string][]catalog.ScrapedGroup{}},
		&stubRecap{},
		store,
		nil, 2, SnapshotKeys{}, nil,
	)

	summary, err := service.SnapshotAllSeasons(context.Background())
	if err != nil {
		t.Fatalf("SnapshotAllSeasons: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("empty run id")
	}
	if len(summary.Updated) != 1 || summary.Updated[0] != "2025-2026" {
		t.Fatalf("Updated = %v", summary.Updated)
	}
	if len(summary.Skipped) != 2 || summary.Skipped[0] != "2024-2025" || summary.Skipped[1] != "2023-2024" {
		t.Fatalf("Skipped = %v", summary.Skipped)
	}

	body, err := store.Get(context.Background(), DefaultSnapshotKeys().AllSeasons)
	if err != nil {
		t.Fatalf("read back all-seasons blob: %v", err)
	}
	var snapshots []catalog.SeasonSnapshot
	if err := sonic.Unmarshal(body, &snapshots); err != nil {
		t.Fatalf("decode all-seasons blob: %v", err)
	}
	if len(snapshots) != 1 || snapshots[0].Name != "2025-2026" || len(snapshots[0].Events) != 1 {
		t.Fatalf("snapshots = %+v", snapshots)
	}
}

func TestSnapshotCurrentSeason_WritesFirstSeasonOnly(t *testing.T) {
	t.Parallel()

	api := &stubCatalogAPI{
		seasons: []catalog.Season{
			{ID: "s2", Name: "2025-2026"},
			{ID: "s1", Name: "2024-2025"},
		},
		eventsBySeason: map[string][]catalog.Event{
			"s2": {{ID: "e1", Name: "Event e1"}},
			"s1": {{ID: "old", Name: "Old Event"}},
		},
		groupsBySeason: map[string][]catalog.Group{},
		details: map[string]catalog.EventDetail{
			"e1": detailWith("e1", ""),
		},
	}
	store := blobstore.NewMemoryStore()
	service := NewSnapshotService(
		sessionsFor(api),
		&stubScraper{rowsByURL: map[string][]catalog.ScrapedGroup{}},
		&stubRecap{},
		store,
		nil, 3, SnapshotKeys{}, nil,
	)

	summary, err := service.SnapshotCurrentSeason(context.Background())
	if err != nil {
		t.Fatalf("SnapshotCurrentSeason: %v", err)
	}
	if len(summary.Updated) != 1 || summary.Updated[0] != "2025-2026" {
		t.Fatalf("Updated = %v", summary.Updated)
	}

	body, err := store.Get(context.Background(), DefaultSnapshotKeys().CurrentSeason)
	if err != nil {
		t.Fatalf("read back current-season blob: %v", err)
	}
	var snapshot catalog.SeasonSnapshot
	if err := sonic.Unmarshal(body, &snapshot); err != nil {
		t.Fatalf("decode current-season blob: %v", err)
	}
	if snapshot.ID != "s2" || len(snapshot.Events) != 1 || snapshot.Events[0].ID != "e1" {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestReadSnapshot_MapsMissingKeyToNotFound(t *testing.T) {
	t.Parallel()

	service := NewSnapshotService(
		sessionsFor(&stubCatalogAPI{}),
		&stubScraper{},
		&stubRecap{},
		blobstore.NewMemoryStore(),
		nil, 3, SnapshotKeys{}, nil,
	)

	if _, err := service.ReadSnapshot(context.Background(), DefaultSnapshotKeys().AllSeasons); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
