package catalog

// Season is a named competition cycle. Season names sort chronologically as
// strings, so "most recent" is the lexicographically largest name.
type Season struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Event is a catalog entry belonging to one season.
type Event struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// Competition is one judged show within an event; the first competition
// carries the public schedule and recap links.
type Competition struct {
	ID                  string `json:"id,omitempty"`
	Name                string `json:"name,omitempty"`
	StandardScheduleURL string `json:"standardScheduleUrl,omitempty"`
	RecapURL            string `json:"recapUrl,omitempty"`
}

// EventDetail is the full upstream event record.
type EventDetail struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Location     string        `json:"location,omitempty"`
	Competitions []Competition `json:"competitions,omitempty"`
}

// Group is a registered ensemble, scoped to one season.
type Group struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Division *Division `json:"division,omitempty"`
}

type Division struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// ScrapedGroup is one roster row from an event's schedule page. GroupID stays
// nil when the printed name has no match in the season's registry; unmatched
// rows are kept, not dropped.
type ScrapedGroup struct {
	Name    string  `json:"name"`
	Class   string  `json:"class"`
	GroupID *string `json:"groupId"`
}

// EnrichedEvent is the pipeline's per-event output. Error is set, and Groups
// left empty, when enrichment failed for this event; a record never mixes a
// populated roster with an error.
type EnrichedEvent struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	ScheduleURL *string        `json:"scheduleUrl"`
	RecapURL    string         `json:"recapUrl"`
	Groups      []ScrapedGroup `json:"groups,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// SeasonSnapshot is one season's fully enriched event list.
type SeasonSnapshot struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Events []EnrichedEvent `json:"events"`
}

// GroupRegistry maps normalized group names to season-scoped registry ids.
// It is rebuilt for every season and never shared across seasons.
type GroupRegistry map[string]string

// Resolve returns the registry id for a raw printed name, or nil.
func (r GroupRegistry) Resolve(rawName string) *string {
	if len(r) == 0 {
		return nil
	}
	id, ok := r[NormalizeGroupName(rawName)]
	if !ok {
		return nil
	}
	return &id
}

// BuildGroupRegistry normalizes every group name into a lookup map. When two
// groups normalize to the same key the later one wins; the upstream registry
// treats that as an accepted ambiguity.
func BuildGroupRegistry(groups []Group) GroupRegistry {
	registry := make(GroupRegistry, len(groups))
	for _, group := range groups {
		registry[NormalizeGroupName(group.Name)] = group.ID
	}
	return registry
}
