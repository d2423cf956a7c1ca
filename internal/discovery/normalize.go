package discovery

import "strconv"

// Chart axis fallback chains. Applied only when the server does not declare
// defaults in the discovery schema.
var (
	dimensionFallbacks = []string{"time", "category"}
	metricFallbacks    = []string{"rows", "rows_per_parent", "parent"}
)

const fallbackDimension = "batch_index"
const fallbackMetric = "rows"

// Normalize converts one raw discovery response into a Result for the given
// template. Output batch order equals input order: the batch index doubles as
// the fallback identifier, so stability matters for repeatable selection
// behavior across refetches of the same query.
func Normalize(raw RawResponse, tpl TemplateRef) *Result {
	batches := make([]Batch, 0, len(raw.Batches))
	for i, rb := range raw.Batches {
		batches = append(batches, normalizeBatch(rb, i))
	}

	result := &Result{
		TemplateID:     tpl.ID,
		Name:           tpl.Name,
		Kind:           tpl.Kind,
		AllBatches:     batches,
		FieldCatalog:   raw.FieldCatalog,
		Schema:         raw.Schema,
		BatchMetrics:   raw.BatchMetrics,
		NumericBins:    raw.NumericBins,
		CategoryGroups: raw.CategoryGroups,
		Resample: Resample{
			Config:      map[string]interface{}{},
			FilteredIDs: nil,
		},
	}

	// Server-reported aggregates win; otherwise derive from the batches
	if raw.BatchesCount != nil {
		result.BatchesCount = *raw.BatchesCount
	} else {
		result.BatchesCount = int64(len(batches))
	}
	if raw.RowsTotal != nil {
		result.RowsTotal = *raw.RowsTotal
	} else {
		for _, b := range batches {
			result.RowsTotal += b.Rows
		}
	}

	result.Defaults = resolveChartDefaults(raw.Schema, raw.FieldCatalog)

	if len(result.BatchMetrics) == 0 {
		result.BatchMetrics = synthesizeMetrics(batches)
	}

	result.refreshVisible()
	return result
}

// normalizeBatch applies the defaulting rules for one batch at index i:
// missing id falls back to i+1, parent 0 substitutes 1 when computing the
// per-parent ratio so rows_per_parent never divides by zero.
func normalizeBatch(rb RawBatch, i int) Batch {
	b := Batch{
		Rows:     rb.Rows,
		Parent:   rb.Parent,
		Time:     rb.Time,
		Category: rb.Category,
		Selected: true,
	}

	if rb.ID != nil {
		b.ID = *rb.ID
	} else {
		b.ID = strconv.Itoa(i + 1)
	}

	safeParent := b.Parent
	if safeParent == 0 {
		safeParent = 1
	}
	b.RowsPerParent = float64(b.Rows) / float64(safeParent)

	if rb.Selected != nil {
		b.Selected = *rb.Selected
	}

	return b
}

// resolveChartDefaults picks the axis pair a results chart opens with.
// Server-declared defaults take precedence; otherwise walk the ordered
// fallback chains against the field catalog.
func resolveChartDefaults(schema *Schema, catalog []Field) ChartDefaults {
	defaults := ChartDefaults{}
	if schema != nil && schema.Defaults != nil {
		defaults = *schema.Defaults
	}

	if defaults.Dimension == "" {
		defaults.Dimension = pickField(catalog, dimensionFallbacks, fallbackDimension)
	}
	if defaults.Metric == "" {
		defaults.Metric = pickField(catalog, metricFallbacks, fallbackMetric)
	}

	return defaults
}

func pickField(catalog []Field, preferred []string, fallback string) string {
	for _, name := range preferred {
		for _, f := range catalog {
			if f.Name == name {
				return name
			}
		}
	}
	return fallback
}

// synthesizeMetrics builds a batch_metrics array from normalized batches when
// the server supplies none, field-name compatible with a server-supplied one.
func synthesizeMetrics(batches []Batch) []BatchMetric {
	metrics := make([]BatchMetric, 0, len(batches))
	for i, b := range batches {
		metrics = append(metrics, BatchMetric{
			BatchIndex:    i,
			BatchID:       b.ID,
			Rows:          b.Rows,
			Parent:        b.Parent,
			RowsPerParent: b.RowsPerParent,
			Time:          b.Time,
			Category:      b.Category,
		})
	}
	return metrics
}
