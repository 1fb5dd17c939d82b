package httpapi

import "net/http"

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerCatalogRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/seasons", handler.ListSeasons)
	mux.HandleFunc("GET /v1/circuit/events", handler.ListCircuitEvents)
	mux.HandleFunc("GET /v1/events/{eventID}", handler.GetEvent)
	mux.HandleFunc("GET /v1/groups/divisions", handler.ListGroupsByDivision)
	mux.HandleFunc("GET /v1/groups/map", handler.GetGroupMap)
	mux.HandleFunc("GET /v1/groups/{groupID}/events", handler.ListGroupEvents)
	mux.HandleFunc("GET /v1/events-with-groups", handler.ListEventsWithGroups)
}

func registerSnapshotRoutes(mux *http.ServeMux, handler *Handler, internalJobToken string) {
	mux.Handle("POST /v1/snapshots/all-seasons", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunAllSeasonsSnapshot)))
	mux.Handle("POST /v1/snapshots/current-season", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunCurrentSeasonSnapshot)))
	mux.Handle("POST /v1/snapshots/season", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunSeasonSnapshot)))

	mux.HandleFunc("GET /v1/snapshots/all-seasons", handler.GetAllSeasonsSnapshot)
	mux.HandleFunc("GET /v1/snapshots/current-season", handler.GetCurrentSeasonSnapshot)
}
