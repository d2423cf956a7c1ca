// Package discovery normalizes raw batch-discovery payloads from the data
// backend into a stable internal shape and reconciles client-driven selection
// toggles and resample filters against it without losing state.
package discovery

import "encoding/json"

// Batch is one discovered group of rows, the unit of selection for report
// generation. IDs are compared by string form everywhere.
type Batch struct {
	ID            string  `json:"id"`
	Rows          int64   `json:"rows"`
	Parent        int64   `json:"parent"`
	RowsPerParent float64 `json:"rows_per_parent"`
	Time          *string `json:"time"`
	Category      *string `json:"category"`
	Selected      bool    `json:"selected"`
}

// Field describes a discovery dimension or metric usable for charting
type Field struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// ChartDefaults is the dimension/metric pair a results chart opens with
type ChartDefaults struct {
	Dimension string `json:"dimension"`
	Metric    string `json:"metric"`
}

// Schema is optional server-provided discovery metadata
type Schema struct {
	Defaults   *ChartDefaults `json:"defaults,omitempty"`
	Dimensions []Field        `json:"dimensions,omitempty"`
}

// BatchMetric is one per-batch row of chart data. Synthesized metrics use the
// same field names as server-supplied ones so chart consumers cannot tell the
// two apart.
type BatchMetric struct {
	BatchIndex    int     `json:"batch_index"`
	BatchID       string  `json:"batch_id"`
	Rows          int64   `json:"rows"`
	Parent        int64   `json:"parent"`
	RowsPerParent float64 `json:"rows_per_parent"`
	Time          *string `json:"time"`
	Category      *string `json:"category"`
}

// Resample is the client-side view state narrowing the visible batch set.
// FilteredIDs == nil means no filter is active and all batches are visible.
type Resample struct {
	Config      map[string]interface{} `json:"config"`
	FilteredIDs []string               `json:"filtered_ids"`
}

// ResamplePayload carries a resample update. A nil AllowedBatchIDs retains
// the previous filter state so the call can update config alone.
type ResamplePayload struct {
	AllowedBatchIDs []string               `json:"allowed_batch_ids"`
	Config          map[string]interface{} `json:"config"`
}

// TemplateRef identifies the template a discovery ran for
type TemplateRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Result is the normalized discovery outcome for one template.
// AllBatches is the durable selection ledger; Batches is the subset visible
// under the active resample filter and is always derived from AllBatches.
type Result struct {
	TemplateID     string          `json:"template_id"`
	Name           string          `json:"name"`
	Kind           string          `json:"kind,omitempty"`
	AllBatches     []Batch         `json:"all_batches"`
	Batches        []Batch         `json:"batches"`
	BatchesCount   int64           `json:"batches_count"`
	RowsTotal      int64           `json:"rows_total"`
	FieldCatalog   []Field         `json:"field_catalog"`
	Schema         *Schema         `json:"discovery_schema,omitempty"`
	BatchMetrics   []BatchMetric   `json:"batch_metrics"`
	NumericBins    json.RawMessage `json:"numeric_bins,omitempty"`
	CategoryGroups json.RawMessage `json:"category_groups,omitempty"`
	Defaults       ChartDefaults   `json:"chart_defaults"`
	Resample       Resample        `json:"resample"`
}

// RawBatch is one loosely-typed batch as received from the backend.
// Pointer fields distinguish absent from zero.
type RawBatch struct {
	ID       *string
	Rows     int64
	Parent   int64
	Time     *string
	Category *string
	Selected *bool
}

// RawResponse is the tolerant decode of an inbound discovery response.
// All fields are optional; the zero value is a valid empty response.
type RawResponse struct {
	Batches        []RawBatch
	BatchesCount   *int64
	RowsTotal      *int64
	FieldCatalog   []Field
	Schema         *Schema
	BatchMetrics   []BatchMetric
	NumericBins    json.RawMessage
	CategoryGroups json.RawMessage
}
