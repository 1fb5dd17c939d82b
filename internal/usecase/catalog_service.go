package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbraddock/showcircuit/internal/domain/catalog"
	"github.com/tbraddock/showcircuit/internal/platform/cache"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
)

const divisionFallback = "Uncategorized"

// CatalogService serves read-only catalog lookups straight from the upstream
// API, with a short TTL cache in front so repeated reads within the window
// cost one upstream round trip.
type CatalogService struct {
	sessions  SessionFactory
	cache     *cache.Store
	circuitID string
	logger    *logging.Logger
}

func NewCatalogService(sessions SessionFactory, store *cache.Store, circuitID string, logger *logging.Logger) *CatalogService {
	if logger == nil {
		logger = logging.Default()
	}
	return &CatalogService{
		sessions:  sessions,
		cache:     store,
		circuitID: strings.TrimSpace(circuitID),
		logger:    logger,
	}
}

func (s *CatalogService) ListSeasons(ctx context.Context) ([]catalog.Season, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListSeasons")
	defer span.End()

	return cached(ctx, s.cache, "seasons", func(ctx context.Context) ([]catalog.Season, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return nil, err
		}
		return api.ListSeasons(ctx)
	})
}

func (s *CatalogService) ListCircuitEvents(ctx context.Context) ([]catalog.Event, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListCircuitEvents")
	defer span.End()

	if s.circuitID == "" {
		return nil, fmt.Errorf("%w: circuit id is not configured", ErrDependencyUnavailable)
	}

	return cached(ctx, s.cache, "circuit-events:"+s.circuitID, func(ctx context.Context) ([]catalog.Event, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return nil, err
		}
		return api.ListCircuitEvents(ctx, s.circuitID)
	})
}

func (s *CatalogService) GetEvent(ctx context.Context, eventID string) (catalog.EventDetail, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.GetEvent")
	defer span.End()

	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return catalog.EventDetail{}, fmt.Errorf("%w: event id is required", ErrInvalidInput)
	}

	return cached(ctx, s.cache, "event:"+eventID, func(ctx context.Context) (catalog.EventDetail, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return catalog.EventDetail{}, err
		}
		return api.GetEvent(ctx, eventID)
	})
}

func (s *CatalogService) ListGroupEvents(ctx context.Context, groupID string) ([]catalog.Event, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.ListGroupEvents")
	defer span.End()

	groupID = strings.TrimSpace(groupID)
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrInvalidInput)
	}

	return cached(ctx, s.cache, "group-events:"+groupID, func(ctx context.Context) ([]catalog.Event, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return nil, err
		}
		return api.ListGroupEvents(ctx, groupID)
	})
}

// GroupsByDivision buckets every registered group under its division name.
// Groups without a division land under the fallback bucket.
func (s *CatalogService) GroupsByDivision(ctx context.Context) (map[string][]catalog.Group, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.GroupsByDivision")
	defer span.End()

	return cached(ctx, s.cache, "groups-by-division", func(ctx context.Context) (map[string][]catalog.Group, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return nil, err
		}
		groups, err := api.ListAllGroups(ctx)
		if err != nil {
			return nil, fmt.Errorf("list groups: %w", err)
		}

		buckets := make(map[string][]catalog.Group)
		for _, group := range groups {
			division := divisionFallback
			if group.Division != nil && strings.TrimSpace(group.Division.Name) != "" {
				division = group.Division.Name
			}
			buckets[division] = append(buckets[division], group)
		}
		return buckets, nil
	})
}

// GroupMap returns the season's normalized-name to group-id registry.
func (s *CatalogService) GroupMap(ctx context.Context, seasonID string) (catalog.GroupRegistry, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.CatalogService.GroupMap")
	defer span.End()

	seasonID = strings.TrimSpace(seasonID)
	if seasonID == "" {
		return nil, fmt.Errorf("%w: season id is required", ErrInvalidInput)
	}

	return cached(ctx, s.cache, "group-map:"+seasonID, func(ctx context.Context) (catalog.GroupRegistry, error) {
		api, err := s.sessions(ctx)
		if err != nil {
			return nil, err
		}
		groups, err := api.ListGroups(ctx, seasonID)
		if err != nil {
			return nil, fmt.Errorf("list season groups: %w", err)
		}
		return catalog.BuildGroupRegistry(groups), nil
	})
}

func cached[T any](ctx context.Context, store *cache.Store, key string, load func(context.Context) (T, error)) (T, error) {
	if store == nil {
		return load(ctx)
	}

	value, err := store.GetOrLoad(ctx, key, func(ctx context.Context) (any, error) {
		return load(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	typed, ok := value.(T)
	if !ok {
		return load(ctx)
	}
	return typed, nil
}
