// Package cache provides the durable, size-bounded discovery-result cache.
// One envelope per deployment holds the last normalized discovery result per
// template plus the shared request context that produced them. The envelope
// is persisted under a fixed versioned key and kept eventually consistent
// across service instances with last-writer-wins semantics.
package cache

import (
	"encoding/json"

	"github.com/AlfRonDon/neurareport/internal/discovery"
)

// StorageKey is the fixed key the serialized envelope lives under. The v1
// suffix versions the owned format.
const StorageKey = "neurareport:discovery:v1"

// Entry is one cached discovery result stamped with its last write time
type Entry struct {
	discovery.Result
	AccessedAt int64 `json:"_accessedAt"`
}

// Meta is the shared context of the last discovery run. It is a single value
// for the whole envelope, not per-template: a result is meaningless outside
// the query context that produced it.
type Meta struct {
	StartDate      string                  `json:"start_date"`
	EndDate        string                  `json:"end_date"`
	Templates      []discovery.TemplateRef `json:"templates"`
	ConnectionID   string                  `json:"connection_id,omitempty"`
	ConnectionName string                  `json:"connection_name,omitempty"`
	FetchedAt      int64                   `json:"fetched_at"`
}

// Envelope is the persisted cache format
type Envelope struct {
	Results map[string]*Entry `json:"results"`
	Meta    *Meta             `json:"meta"`
	TS      int64             `json:"ts"`
}

// EmptyEnvelope returns a fresh envelope with no results
func EmptyEnvelope() Envelope {
	return Envelope{Results: map[string]*Entry{}}
}

// parseEnvelope decodes a serialized envelope and rebuilds the derived state
// of every entry. Any decode failure yields ok=false; callers substitute the
// empty envelope rather than surfacing the error.
func parseEnvelope(data []byte) (Envelope, bool) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, false
	}
	if env.Results == nil {
		env.Results = map[string]*Entry{}
	}
	for _, e := range env.Results {
		e.Rebuild()
	}
	return env, true
}
