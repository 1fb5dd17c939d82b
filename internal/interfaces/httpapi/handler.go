package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tbraddock/showcircuit/internal/platform/logging"
	"github.com/tbraddock/showcircuit/internal/usecase"
)

type Handler struct {
	catalogService  *usecase.CatalogService
	snapshotService *usecase.SnapshotService
	snapshotKeys    usecase.SnapshotKeys
	logger          *logging.Logger
	validator       *validator.Validate
}

func NewHandler(
	catalogService *usecase.CatalogService,
	snapshotService *usecase.SnapshotService,
	snapshotKeys usecase.SnapshotKeys,
	logger *logging.Logger,
) *Handler {
	if snapshotKeys == (usecase.SnapshotKeys{}) {
		snapshotKeys = usecase.DefaultSnapshotKeys()
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Handler{
		catalogService:  catalogService,
		snapshotService: snapshotService,
		snapshotKeys:    snapshotKeys,
		logger:          logger,
		validator:       validator.New(),
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListSeasons(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListSeasons")
	defer span.End()

	seasons, err := h.catalogService.ListSeasons(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list seasons failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeData(ctx, w, http.StatusOK, seasons)
}

func (h *Handler) ListCircuitEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListCircuitEvents")
	defer span.End()

	events, err := h.catalogService.ListCircuitEvents(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list circuit events failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeData(ctx, w, http.StatusOK, events)
}

func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetEvent")
	defer span.End()

	detail, err := h.catalogService.GetEvent(ctx, r.PathValue("eventID"))
	if err != nil {
		h.logger.ErrorContext(ctx, "get event failed", "event_id", r.PathValue("eventID"), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, detail)
}

func (h *Handler) ListGroupEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListGroupEvents")
	defer span.End()

	events, err := h.catalogService.ListGroupEvents(ctx, r.PathValue("groupID"))
	if err != nil {
		h.logger.ErrorContext(ctx, "list group events failed", "group_id", r.PathValue("groupID"), "error", err)
		writeError(ctx, w, err)
		return
	}

	writeData(ctx, w, http.StatusOK, events)
}

func (h *Handler) ListGroupsByDivision(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListGroupsByDivision")
	defer span.End()

	buckets, err := h.catalogService.GroupsByDivision(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "list groups by division failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, buckets)
}

type groupMapQuery struct {
	SeasonID string `validate:"required"`
}

func (h *Handler) GetGroupMap(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetGroupMap")
	defer span.End()

	query := groupMapQuery{SeasonID: strings.TrimSpace(r.URL.Query().Get("seasonId"))}
	if err := h.validator.StructCtx(ctx, query); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: seasonId query parameter is required", usecase.ErrInvalidInput))
		return
	}

	registry, err := h.catalogService.GroupMap(ctx, query.SeasonID)
	if err != nil {
		h.logger.ErrorContext(ctx, "get group map failed", "season_id", query.SeasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, registry)
}

func (h *Handler) ListEventsWithGroups(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListEventsWithGroups")
	defer span.End()

	records, err := h.snapshotService.EventsWithGroups(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "live events-with-groups failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeData(ctx, w, http.StatusOK, records)
}

func (h *Handler) RunAllSeasonsSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunAllSeasonsSnapshot")
	defer span.End()

	summary, err := h.snapshotService.SnapshotAllSeasons(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "all-seasons snapshot run failed", "run_id", summary.RunID, "error", err)
		writePipelineError(ctx, w, err, summary)
		return
	}

	writeJSON(ctx, w, http.StatusOK, summary)
}

func (h *Handler) RunCurrentSeasonSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunCurrentSeasonSnapshot")
	defer span.End()

	summary, err := h.snapshotService.SnapshotCurrentSeason(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "current-season snapshot run failed", "run_id", summary.RunID, "error", err)
		writePipelineError(ctx, w, err, summary)
		return
	}

	writeJSON(ctx, w, http.StatusOK, summary)
}

func (h *Handler) RunSeasonSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunSeasonSnapshot")
	defer span.End()

	seasonID := strings.TrimSpace(r.URL.Query().Get("seasonId"))
	result, err := h.snapshotService.SnapshotSeason(ctx, seasonID)
	if err != nil {
		h.logger.ErrorContext(ctx, "season snapshot run failed", "run_id", result.RunID, "season_id", seasonID, "error", err)
		writeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

func (h *Handler) GetAllSeasonsSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetAllSeasonsSnapshot")
	defer span.End()

	h.serveStoredSnapshot(ctx, w, h.snapshotKeys.AllSeasons)
}

func (h *Handler) GetCurrentSeasonSnapshot(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCurrentSeasonSnapshot")
	defer span.End()

	h.serveStoredSnapshot(ctx, w, h.snapshotKeys.CurrentSeason)
}

func (h *Handler) serveStoredSnapshot(ctx context.Context, w http.ResponseWriter, key string) {
	body, err := h.snapshotService.ReadSnapshot(ctx, key)
	if err != nil {
		h.logger.ErrorContext(ctx, "read stored snapshot failed", "key", key, "error", err)
		writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
