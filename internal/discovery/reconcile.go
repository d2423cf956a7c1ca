package discovery

// Reconciliation entry points. These run inside optimistic update paths where
// stale references are expected (a batch toggled just as a fresh discovery
// overwrote the result set), so every miss is a silent no-op and nothing here
// returns an error.

// ToggleID flips the selection flag of the batch with the given id. The flag
// is updated in AllBatches, never in the visible subset: the visible list is
// recomputed afterwards so selection state of filtered-out batches survives.
// Returns false when no batch carries the id.
func (r *Result) ToggleID(batchID string, selected bool) bool {
	for i := range r.AllBatches {
		if r.AllBatches[i].ID == batchID {
			r.AllBatches[i].Selected = selected
			r.refreshVisible()
			return true
		}
	}
	return false
}

// ToggleIndex flips the selection flag of the batch at the given position in
// the currently visible list. The batch identity is resolved to its id first
// so the toggle lands on the right AllBatches entry even when the visible
// list is a filtered view. Returns false for an out-of-range index.
func (r *Result) ToggleIndex(index int, selected bool) bool {
	if index < 0 || index >= len(r.Batches) {
		return false
	}
	return r.ToggleID(r.Batches[index].ID, selected)
}

// ApplyResample updates the resample view. A non-nil AllowedBatchIDs replaces
// the active filter; nil retains the previous one so the call can update
// config alone (e.g. changing a chart dimension without changing filtering).
// Config keys merge shallowly with incoming keys winning. AllBatches is never
// mutated by filtering.
func (r *Result) ApplyResample(payload ResamplePayload) {
	if payload.AllowedBatchIDs != nil {
		ids := make([]string, len(payload.AllowedBatchIDs))
		copy(ids, payload.AllowedBatchIDs)
		r.Resample.FilteredIDs = ids
	}

	if payload.Config != nil {
		if r.Resample.Config == nil {
			r.Resample.Config = map[string]interface{}{}
		}
		for k, v := range payload.Config {
			r.Resample.Config[k] = v
		}
	}

	r.refreshVisible()
}

// ClearResampleFilter drops the active filter, making all batches visible
// again. Config is left untouched.
func (r *Result) ClearResampleFilter() {
	r.Resample.FilteredIDs = nil
	r.refreshVisible()
}

// SelectedBatches returns the batches currently marked for generation,
// drawn from the full ledger regardless of the active filter.
func (r *Result) SelectedBatches() []Batch {
	var selected []Batch
	for _, b := range r.AllBatches {
		if b.Selected {
			selected = append(selected, b)
		}
	}
	return selected
}

// refreshVisible recomputes the visible subset from AllBatches under the
// active filter, preserving relative order.
func (r *Result) refreshVisible() {
	if r.Resample.FilteredIDs == nil {
		r.Batches = make([]Batch, len(r.AllBatches))
		copy(r.Batches, r.AllBatches)
		return
	}

	allowed := make(map[string]struct{}, len(r.Resample.FilteredIDs))
	for _, id := range r.Resample.FilteredIDs {
		allowed[id] = struct{}{}
	}

	visible := make([]Batch, 0, len(allowed))
	for _, b := range r.AllBatches {
		if _, ok := allowed[b.ID]; ok {
			visible = append(visible, b)
		}
	}
	r.Batches = visible
}

// Rebuild restores derived state after a Result round-trips through JSON
// (the persisted envelope stores AllBatches and the resample view; the
// visible subset is recomputed rather than trusted).
func (r *Result) Rebuild() {
	if r.Resample.Config == nil {
		r.Resample.Config = map[string]interface{}{}
	}
	r.refreshVisible()
}
