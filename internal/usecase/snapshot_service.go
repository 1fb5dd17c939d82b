package usecase

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	sonic "github.com/bytedance/sonic"
	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/pool"
	"github.com/tbraddock/showcircuit/internal/blobstore"
	"github.com/tbraddock/showcircuit/internal/domain/catalog"
	"github.com/tbraddock/showcircuit/internal/platform/id"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
)

const defaultScrapeConcurrency = 3

// ScheduleScraper extracts roster rows from one schedule page.
type ScheduleScraper interface {
	Scrape(ctx context.Context, pageURL string) ([]catalog.ScrapedGroup, error)
}

// RecapValidator reports the recap URL when the recap is published, "" when
// it is missing, unpublished, or unreachable.
type RecapValidator interface {
	Validate(ctx context.Context, recapURL string) string
}

// SnapshotKeys names the blobs the pipeline writes.
type SnapshotKeys struct {
	AllSeasons    string
	CurrentSeason string
	SeasonPrefix  string
}

func DefaultSnapshotKeys() SnapshotKeys {
	return SnapshotKeys{
		AllSeasons:    "events-with-groups/all-seasons.json",
		CurrentSeason: "current-season.json",
		SeasonPrefix:  "events-with-groups/",
	}
}

// RunSummary reports which seasons a pipeline run refreshed and which it
// skipped. A run that fails mid-way still returns the counters accumulated so
// far alongside the error.
type RunSummary struct {
	RunID   string   `json:"runId"`
	Updated []string `json:"updated"`
	Skipped []string `json:"skipped"`
}

type SeasonSnapshotResult struct {
	RunID      string `json:"runId"`
	SeasonName string `json:"seasonName"`
	Key        string `json:"key"`
	EventCount int    `json:"eventCount"`
}

// SnapshotService runs the scrape-and-enrich pipeline: per season it fetches
// the event list and group registry, enriches every event with its scraped
// roster and recap link under a fixed worker ceiling, and writes the result
// as one overwritten blob per key.
type SnapshotService struct {
	sessions    SessionFactory
	scraper     ScheduleScraper
	recaps      RecapValidator
	store       blobstore.Store
	ids         id.Generator
	concurrency int
	keys        SnapshotKeys
	logger      *logging.Logger
}

func NewSnapshotService(
	sessions SessionFactory,
	scraper ScheduleScraper,
	recaps RecapValidator,
	store blobstore.Store,
	ids id.Generator,
	concurrency int,
	keys SnapshotKeys,
	logger *logging.Logger,
) *SnapshotService {
	if concurrency <= 0 {
		concurrency = defaultScrapeConcurrency
	}
	if keys == (SnapshotKeys{}) {
		keys = DefaultSnapshotKeys()
	}
	if ids == nil {
		ids = id.NewRandomGenerator()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SnapshotService{
		sessions:    sessions,
		scraper:     scraper,
		recaps:      recaps,
		store:       store,
		ids:         ids,
		concurrency: concurrency,
		keys:        keys,
		logger:      logger,
	}
}

// SnapshotAllSeasons refreshes every season the catalog knows about, newest
// first, and overwrites the all-seasons blob. A season whose fetch fails or
// that has no events is skipped and the run continues; a store write failure
// ends the run.
func (s *SnapshotService) SnapshotAllSeasons(ctx context.Context) (RunSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.SnapshotAllSeasons")
	defer span.End()

	summary, err := s.newRunSummary()
	if err != nil {
		return summary, err
	}

	api, err := s.sessions(ctx)
	if err != nil {
		return summary, fmt.Errorf("open catalog session: %w", err)
	}
	seasons, err := api.ListSeasons(ctx)
	if err != nil {
		return summary, fmt.Errorf("list seasons: %w", err)
	}

	snapshots := make([]catalog.SeasonSnapshot, 0, len(seasons))
	for _, season := range seasons {
		snapshot, err := s.buildSeasonSnapshot(ctx, api, season)
		if err != nil {
			s.logger.WarnContext(ctx, "season skipped", "run_id", summary.RunID, "season", season.Name, "error", err)
			summary.Skipped = append(summary.Skipped, season.Name)
			continue
		}
		if len(snapshot.Events) == 0 {
			s.logger.InfoContext(ctx, "season has no events, skipped", "run_id", summary.RunID, "season", season.Name)
			summary.Skipped = append(summary.Skipped, season.Name)
			continue
		}
		snapshots = append(snapshots, snapshot)
		summary.Updated = append(summary.Updated, season.Name)
	}

	if err := s.writeBlob(ctx, s.keys.AllSeasons, snapshots); err != nil {
		return summary, err
	}

	s.logger.InfoContext(ctx, "all-seasons snapshot written",
		"run_id", summary.RunID, "key", s.keys.AllSeasons,
		"updated", len(summary.Updated), "skipped", len(summary.Skipped))
	return summary, nil
}

// SnapshotCurrentSeason refreshes only the most recent season and overwrites
// the current-season blob.
func (s *SnapshotService) SnapshotCurrentSeason(ctx context.Context) (RunSummary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.SnapshotCurrentSeason")
	defer span.End()

	summary, err := s.newRunSummary()
	if err != nil {
		return summary, err
	}

	api, err := s.sessions(ctx)
	if err != nil {
		return summary, fmt.Errorf("open catalog session: %w", err)
	}
	season, err := s.currentSeason(ctx, api)
	if err != nil {
		return summary, err
	}

	snapshot, err := s.buildSeasonSnapshot(ctx, api, season)
	if err != nil {
		return summary, fmt.Errorf("build season snapshot season=%s: %w", season.Name, err)
	}
	if len(snapshot.Events) == 0 {
		summary.Skipped = append(summary.Skipped, season.Name)
		s.logger.InfoContext(ctx, "current season has no events, nothing written", "run_id", summary.RunID, "season", season.Name)
		return summary, nil
	}

	if err := s.writeBlob(ctx, s.keys.CurrentSeason, snapshot); err != nil {
		return summary, err
	}

	summary.Updated = append(summary.Updated, season.Name)
	s.logger.InfoContext(ctx, "current-season snapshot written", "run_id", summary.RunID, "season", season.Name, "key", s.keys.CurrentSeason)
	return summary, nil
}

// SnapshotSeason refreshes one season, the most recent when seasonID is
// empty, and overwrites that season's own blob.
func (s *SnapshotService) SnapshotSeason(ctx context.Context, seasonID string) (SeasonSnapshotResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.SnapshotSeason")
	defer span.End()

	runID, err := s.ids.NewID()
	if err != nil {
		return SeasonSnapshotResult{}, fmt.Errorf("generate run id: %w", err)
	}
	result := SeasonSnapshotResult{RunID: runID}

	api, err := s.sessions(ctx)
	if err != nil {
		return result, fmt.Errorf("open catalog session: %w", err)
	}

	var season catalog.Season
	if seasonID = strings.TrimSpace(seasonID); seasonID != "" {
		season, err = api.GetSeason(ctx, seasonID)
		if err != nil {
			return result, fmt.Errorf("get season id=%s: %w", seasonID, err)
		}
	} else {
		season, err = s.currentSeason(ctx, api)
		if err != nil {
			return result, err
		}
	}

	snapshot, err := s.buildSeasonSnapshot(ctx, api, season)
	if err != nil {
		return result, fmt.Errorf("build season snapshot season=%s: %w", season.Name, err)
	}

	key := s.keys.SeasonPrefix + season.Name + ".json"
	if err := s.writeBlob(ctx, key, snapshot); err != nil {
		return result, err
	}

	result.SeasonName = season.Name
	result.Key = key
	result.EventCount = len(snapshot.Events)
	s.logger.InfoContext(ctx, "season snapshot written", "run_id", runID, "season", season.Name, "key", key, "events", result.EventCount)
	return result, nil
}

// EventsWithGroups enriches the most recent season live and returns the
// records without writing any blob.
func (s *SnapshotService) EventsWithGroups(ctx context.Context) ([]catalog.EnrichedEvent, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.EventsWithGroups")
	defer span.End()

	api, err := s.sessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("open catalog session: %w", err)
	}
	season, err := s.currentSeason(ctx, api)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.buildSeasonSnapshot(ctx, api, season)
	if err != nil {
		return nil, fmt.Errorf("build season snapshot season=%s: %w", season.Name, err)
	}
	return snapshot.Events, nil
}

// ReadSnapshot returns the stored bytes for one of the pipeline's keys.
func (s *SnapshotService) ReadSnapshot(ctx context.Context, key string) ([]byte, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SnapshotService.ReadSnapshot")
	defer span.End()

	body, err := s.store.Get(ctx, key)
	if stderrors.Is(err, blobstore.ErrNotFound) {
		return nil, fmt.Errorf("%w: snapshot key=%s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot key=%s: %w", key, err)
	}
	return body, nil
}

// buildSeasonSnapshot fetches the season's event list and group registry
// concurrently, then enriches every event under the worker ceiling. The
// result holds exactly one record per event, in the event list's order.
func (s *SnapshotService) buildSeasonSnapshot(ctx context.Context, api CatalogAPI, season catalog.Season) (catalog.SeasonSnapshot, error) {
	var (
		events   []catalog.Event
		registry catalog.GroupRegistry
	)

	fetch := pool.New().WithErrors().WithContext(ctx)
	fetch.Go(func(ctx context.Context) error {
		listed, err := api.ListEvents(ctx, season.ID)
		if err != nil {
			return fmt.Errorf("list events season=%s: %w", season.ID, err)
		}
		events = listed
		return nil
	})
	fetch.Go(func(ctx context.Context) error {
		groups, err := api.ListGroups(ctx, season.ID)
		if err != nil {
			return fmt.Errorf("list groups season=%s: %w", season.ID, err)
		}
		registry = catalog.BuildGroupRegistry(groups)
		return nil
	})
	if err := fetch.Wait(); err != nil {
		return catalog.SeasonSnapshot{}, err
	}

	enriched := make([]catalog.EnrichedEvent, len(events))
	workers, err := ants.NewPool(s.concurrency)
	if err != nil {
		return catalog.SeasonSnapshot{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer workers.Release()

	var wg sync.WaitGroup
	for i, event := range events {
		i, event := i, event
		wg.Add(1)
		if err := workers.Submit(func() {
			defer wg.Done()
			enriched[i] = s.enrichEvent(ctx, api, registry, event)
		}); err != nil {
			wg.Done()
			return catalog.SeasonSnapshot{}, fmt.Errorf("submit enrichment task: %w", err)
		}
	}
	wg.Wait()

	return catalog.SeasonSnapshot{ID: season.ID, Name: season.Name, Events: enriched}, nil
}

// enrichEvent never fails the run: any per-event problem is captured in the
// record's error field and the record keeps its slot.
func (s *SnapshotService) enrichEvent(ctx context.Context, api CatalogAPI, registry catalog.GroupRegistry, event catalog.Event) catalog.EnrichedEvent {
	record := catalog.EnrichedEvent{ID: event.ID, Name: event.Name}

	detail, err := api.GetEvent(ctx, event.ID)
	if err != nil {
		record.Error = err.Error()
		return record
	}
	if len(detail.Competitions) == 0 {
		return record
	}
	competition := detail.Competitions[0]

	if scheduleURL := strings.TrimSpace(competition.StandardScheduleURL); scheduleURL != "" {
		rows, err := s.scraper.Scrape(ctx, scheduleURL)
		if err != nil {
			// A failed record carries only its error: no URL, no groups.
			record.Error = err.Error()
			return record
		}
		record.ScheduleURL = &scheduleURL
		for _, row := range rows {
			row.GroupID = registry.Resolve(row.Name)
			record.Groups = append(record.Groups, row)
		}
	}

	record.RecapURL = s.recaps.Validate(ctx, competition.RecapURL)
	return record
}

func (s *SnapshotService) currentSeason(ctx context.Context, api CatalogAPI) (catalog.Season, error) {
	seasons, err := api.ListSeasons(ctx)
	if err != nil {
		return catalog.Season{}, fmt.Errorf("list seasons: %w", err)
	}
	if len(seasons) == 0 {
		return catalog.Season{}, fmt.Errorf("%w: no seasons registered", ErrNotFound)
	}
	return seasons[0], nil
}

func (s *SnapshotService) newRunSummary() (RunSummary, error) {
	runID, err := s.ids.NewID()
	if err != nil {
		return RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	return RunSummary{RunID: runID, Updated: []string{}, Skipped: []string{}}, nil
}

func (s *SnapshotService) writeBlob(ctx context.Context, key string, payload any) error {
	body, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal snapshot key=%s: %w", key, err)
	}
	if err := s.store.Put(ctx, key, body); err != nil {
		return fmt.Errorf("write snapshot key=%s: %w", key, err)
	}
	return nil
}
