package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/AlfRonDon/neurareport/internal/discovery"
	"github.com/AlfRonDon/neurareport/internal/logging"
)

// ChangeEvent is broadcast after every successful envelope write or clear.
// Receivers re-read the shared backend; the event itself carries no payload
// beyond the key, matching last-writer-wins replacement with no merge.
type ChangeEvent struct {
	Key    string `json:"key"`
	Origin string `json:"origin"`
	TS     int64  `json:"ts"`
}

// Publisher is the minimal change-notification surface the store needs.
// Satisfied by the bus implementations.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// ChangeSubject is the bus subject envelope change events go out on
const ChangeSubject = "cache.discovery.changed"

// Options configures optional Store collaborators
type Options struct {
	Publisher Publisher   // nil disables change notifications
	Clock     clock.Clock // nil uses the wall clock
	Logger    *logging.Logger
}

// Store is the discovery-result cache: an in-memory result set per template
// plus a size-bounded persisted copy. The persisted copy is a write-through
// convenience, not the source of truth for the running instance, so a failed
// write never disturbs in-memory state.
type Store struct {
	mu      sync.RWMutex
	results map[string]*Entry
	meta    *Meta

	backend    Backend
	pub        Publisher
	clk        clock.Clock
	logger     *logging.Logger
	origin     string
	maxBytes   int64
	maxEntries int
}

// NewStore creates a Store over the given backend with the given budgets
func NewStore(backend Backend, maxBytes int64, maxEntries int, opts Options) *Store {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Global().With("component", "cache.store")
	}

	return &Store{
		results:    map[string]*Entry{},
		backend:    backend,
		pub:        opts.Publisher,
		clk:        clk,
		logger:     logger,
		origin:     uuid.New().String(),
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
	}
}

// Origin returns the instance identity used to filter self-published events
func (s *Store) Origin() string {
	return s.origin
}

// Load reads the persisted envelope into memory. An absent or unparseable
// value loads as empty; a value over the byte budget is deleted outright and
// loads as empty, since corrupted or oversized state is not worth salvaging.
// Load never fails the caller.
func (s *Store) Load(ctx context.Context) Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.loadLocked(ctx)
	s.results = env.Results
	s.meta = env.Meta
	return env
}

func (s *Store) loadLocked(ctx context.Context) Envelope {
	data, ok, err := s.backend.Get(ctx, StorageKey)
	if err != nil {
		s.logger.Warn("Cache read failed, treating as empty", "error", err)
		return EmptyEnvelope()
	}
	if !ok {
		return EmptyEnvelope()
	}

	if int64(len(data)) > s.maxBytes {
		s.logger.Warn("Persisted cache exceeds byte budget, discarding",
			"size", len(data), "budget", s.maxBytes)
		if err := s.backend.Delete(ctx, StorageKey); err != nil {
			s.logger.Warn("Failed to delete oversized cache entry", "error", err)
		}
		return EmptyEnvelope()
	}

	env, ok := parseEnvelope(data)
	if !ok {
		s.logger.Warn("Persisted cache is unparseable, treating as empty")
		return EmptyEnvelope()
	}
	return env
}

// Put stores the discovery result for its template, stamps it, and persists.
// Existing selection or filter state for the template is overwritten: a fresh
// discovery supersedes whatever the client had toggled before it landed.
func (s *Store) Put(ctx context.Context, res *discovery.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results[res.TemplateID] = &Entry{
		Result:     *cloneResult(res),
		AccessedAt: s.clk.Now().UnixMilli(),
	}
	s.persistLocked(ctx)
}

// SetMeta replaces the shared discovery request context and persists
func (s *Store) SetMeta(ctx context.Context, meta *Meta) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.meta = meta
	s.persistLocked(ctx)
}

// Get returns a copy of the result for templateID, if cached
func (s *Store) Get(templateID string) (*discovery.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.results[templateID]
	if !ok {
		return nil, false
	}
	return cloneResult(&entry.Result), true
}

// Snapshot returns a copy of the full in-memory envelope
func (s *Store) Snapshot() Envelope {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env := Envelope{Results: make(map[string]*Entry, len(s.results)), Meta: s.meta}
	for id, entry := range s.results {
		env.Results[id] = &Entry{
			Result:     *cloneResult(&entry.Result),
			AccessedAt: entry.AccessedAt,
		}
	}
	return env
}

// Meta returns the shared discovery request context, if any
func (s *Store) Meta() *Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// ToggleByID flips the selection flag of one batch, addressed by batch id.
// A missing template or batch is a no-op returning ok=false: toggles race
// against re-discovery by design and must never fail loudly.
func (s *Store) ToggleByID(ctx context.Context, templateID, batchID string, selected bool) (*discovery.Result, bool) {
	return s.mutate(ctx, templateID, func(r *discovery.Result) bool {
		return r.ToggleID(batchID, selected)
	})
}

// ToggleByIndex flips the selection flag of the batch at the given position
// in the template's currently visible list
func (s *Store) ToggleByIndex(ctx context.Context, templateID string, index int, selected bool) (*discovery.Result, bool) {
	return s.mutate(ctx, templateID, func(r *discovery.Result) bool {
		return r.ToggleIndex(index, selected)
	})
}

// Resample applies a resample filter/config update to the template's result
func (s *Store) Resample(ctx context.Context, templateID string, payload discovery.ResamplePayload) (*discovery.Result, bool) {
	return s.mutate(ctx, templateID, func(r *discovery.Result) bool {
		r.ApplyResample(payload)
		return true
	})
}

// mutate runs fn against the live result for templateID and persists when fn
// reports a change. The entry's access stamp refreshes on every mutation.
func (s *Store) mutate(ctx context.Context, templateID string, fn func(*discovery.Result) bool) (*discovery.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.results[templateID]
	if !ok {
		return nil, false
	}

	if !fn(&entry.Result) {
		return nil, false
	}

	entry.AccessedAt = s.clk.Now().UnixMilli()
	s.persistLocked(ctx)
	return cloneResult(&entry.Result), true
}

// Clear removes the persisted envelope and resets in-memory state. Used when
// the query context (template set or date range) changes and every cached
// result turns stale at once.
func (s *Store) Clear(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.results = map[string]*Entry{}
	s.meta = nil

	if err := s.backend.Delete(ctx, StorageKey); err != nil {
		s.logger.Warn("Failed to delete cache entry", "error", err)
	}
	s.notifyLocked(ctx)
}

// ApplyRemote replaces in-memory state with the given serialized envelope.
// An unparseable value resets state to empty rather than leaving whatever was
// there before, so every instance converges on the same (possibly empty)
// view of the shared value.
func (s *Store) ApplyRemote(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	env, ok := parseEnvelope(data)
	if !ok {
		env = EmptyEnvelope()
	}
	s.results = env.Results
	s.meta = env.Meta
}

// HandleChangeEvent processes a change notification from another instance by
// re-reading the shared backend. Events published by this instance are
// ignored. Last writer wins; no merge is attempted.
func (s *Store) HandleChangeEvent(ctx context.Context, data []byte) error {
	var ev ChangeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		s.logger.Warn("Ignoring malformed change event", "error", err)
		return nil
	}
	if ev.Origin == s.origin || ev.Key != StorageKey {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	env := s.loadLocked(ctx)
	s.results = env.Results
	s.meta = env.Meta
	s.logger.Debug("Replaced cache state from remote change", "origin", ev.Origin, "entries", len(env.Results))
	return nil
}

// Stats returns cache statistics for the admin surface
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	env := Envelope{Results: s.results, Meta: s.meta}
	size := 0
	if data, err := json.Marshal(env); err == nil {
		size = len(data)
	}

	return map[string]interface{}{
		"entries":          len(s.results),
		"serialized_bytes": size,
		"byte_budget":      s.maxBytes,
		"entry_budget":     s.maxEntries,
		"has_meta":         s.meta != nil,
	}
}

// persistLocked serializes the envelope, evicts it down to budget, and writes
// it through the backend. Eviction trims only the persisted copy; in-memory
// results are untouched. A quota error deletes the stored key rather than
// leaving a partially written value, and the write is silently abandoned.
func (s *Store) persistLocked(ctx context.Context) {
	now := s.clk.Now().UnixMilli()

	kept := make(map[string]*Entry, len(s.results))
	for id, entry := range s.results {
		e := *entry
		if e.AccessedAt == 0 {
			e.AccessedAt = now
		}
		kept[id] = &e
	}

	payload, ok := s.evict(kept, now)
	if !ok {
		return
	}

	err := s.backend.Set(ctx, StorageKey, payload)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			s.logger.Warn("Cache write exceeded storage quota, dropping persisted state",
				"size", len(payload))
			if delErr := s.backend.Delete(ctx, StorageKey); delErr != nil {
				s.logger.Warn("Failed to delete cache entry after quota error", "error", delErr)
			}
		} else {
			s.logger.Warn("Cache write failed", "error", err)
		}
		return
	}

	s.notifyLocked(ctx)
}

// evict trims the result map to the entry budget, then drops the single
// oldest remaining entry until the serialized envelope fits the byte budget
// or one entry remains. An irreducible single oversized entry is kept: a
// cache holding something usable beats an empty one.
func (s *Store) evict(results map[string]*Entry, now int64) ([]byte, bool) {
	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	// Oldest first by access stamp
	sort.Slice(ids, func(i, j int) bool {
		return results[ids[i]].AccessedAt < results[ids[j]].AccessedAt
	})

	if len(ids) > s.maxEntries {
		for _, id := range ids[:len(ids)-s.maxEntries] {
			delete(results, id)
		}
		ids = ids[len(ids)-s.maxEntries:]
	}

	for {
		payload, err := json.Marshal(Envelope{Results: results, Meta: s.meta, TS: now})
		if err != nil {
			s.logger.Error("Failed to serialize cache envelope", "error", err)
			return nil, false
		}
		if int64(len(payload)) <= s.maxBytes || len(ids) <= 1 {
			return payload, true
		}
		delete(results, ids[0])
		ids = ids[1:]
	}
}

// notifyLocked broadcasts a change event when a publisher is wired
func (s *Store) notifyLocked(ctx context.Context) {
	if s.pub == nil {
		return
	}

	ev := ChangeEvent{Key: StorageKey, Origin: s.origin, TS: s.clk.Now().UnixMilli()}
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	if err := s.pub.Publish(ctx, ChangeSubject, data); err != nil {
		s.logger.Warn("Failed to publish cache change event", "error", err)
	}
}

// cloneResult deep-copies a result through its JSON form and rebuilds the
// derived visible subset
func cloneResult(r *discovery.Result) *discovery.Result {
	data, err := json.Marshal(r)
	if err != nil {
		copied := *r
		return &copied
	}
	var out discovery.Result
	if err := json.Unmarshal(data, &out); err != nil {
		copied := *r
		return &copied
	}
	out.Rebuild()
	return &out
}
