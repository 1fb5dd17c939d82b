package usecase

import (
	"context"

	"github.com/tbraddock/showcircuit/internal/domain/catalog"
)

// CatalogAPI is the authenticated view of the upstream competition catalog.
// external/compsuite.Session satisfies it.
type CatalogAPI interface {
	ListSeasons(ctx context.Context) ([]catalog.Season, error)
	GetSeason(ctx context.Context, seasonID string) (catalog.Season, error)
	ListEvents(ctx context.Context, seasonID string) ([]catalog.Event, error)
	GetEvent(ctx context.Context, eventID string) (catalog.EventDetail, error)
	ListGroups(ctx context.Context, seasonID string) ([]catalog.Group, error)
	ListAllGroups(ctx context.Context) ([]catalog.Group, error)
	ListCircuitEvents(ctx context.Context, circuitID string) ([]catalog.Event, error)
	ListGroupEvents(ctx context.Context, groupID string) ([]catalog.Event, error)
}

// SessionFactory exchanges credentials for an authenticated catalog session.
// Each pipeline run and each proxy read opens its own session; no token is
// held across calls.
type SessionFactory func(ctx context.Context) (CatalogAPI, error)
