package discovery

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// ParseResponse decodes a raw discovery payload into a RawResponse. The
// backend is loosely typed: rows may arrive as a string or a number, ids may
// be absent or any scalar. This is the only place that loose shape is
// tolerated; nothing past this boundary sees it. Malformed input yields the
// empty response, never an error.
func ParseResponse(data []byte) RawResponse {
	if !gjson.ValidBytes(data) {
		return RawResponse{}
	}

	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return RawResponse{}
	}

	var raw RawResponse

	root.Get("batches").ForEach(func(_, b gjson.Result) bool {
		raw.Batches = append(raw.Batches, parseBatch(b))
		return true
	})

	if v := root.Get("batches_count"); v.Exists() {
		n := v.Int()
		raw.BatchesCount = &n
	}
	if v := root.Get("rows_total"); v.Exists() {
		n := v.Int()
		raw.RowsTotal = &n
	}

	root.Get("field_catalog").ForEach(func(_, f gjson.Result) bool {
		name := f.Get("name").String()
		if name == "" {
			return true
		}
		raw.FieldCatalog = append(raw.FieldCatalog, Field{
			Name: name,
			Kind: f.Get("kind").String(),
		})
		return true
	})

	if v := root.Get("discovery_schema"); v.IsObject() {
		raw.Schema = parseSchema(v)
	}

	root.Get("batch_metrics").ForEach(func(_, m gjson.Result) bool {
		raw.BatchMetrics = append(raw.BatchMetrics, BatchMetric{
			BatchIndex:    int(m.Get("batch_index").Int()),
			BatchID:       m.Get("batch_id").String(),
			Rows:          m.Get("rows").Int(),
			Parent:        m.Get("parent").Int(),
			RowsPerParent: m.Get("rows_per_parent").Float(),
			Time:          optString(m.Get("time")),
			Category:      optString(m.Get("category")),
		})
		return true
	})

	if v := root.Get("numeric_bins"); v.IsObject() {
		raw.NumericBins = json.RawMessage(v.Raw)
	}
	if v := root.Get("category_groups"); v.IsObject() {
		raw.CategoryGroups = json.RawMessage(v.Raw)
	}

	return raw
}

// parseBatch applies the scalar coercion rules for a single raw batch:
// ids keep their string form, rows/parent coerce to integers with 0 for
// anything non-numeric.
func parseBatch(b gjson.Result) RawBatch {
	var rb RawBatch

	if id := b.Get("id"); id.Exists() && id.Type != gjson.Null {
		s := id.String()
		rb.ID = &s
	}

	rb.Rows = b.Get("rows").Int()
	rb.Parent = b.Get("parent").Int()
	rb.Time = optString(b.Get("time"))
	rb.Category = optString(b.Get("category"))

	if sel := b.Get("selected"); sel.Exists() && sel.Type != gjson.Null {
		v := sel.Bool()
		rb.Selected = &v
	}

	return rb
}

func parseSchema(v gjson.Result) *Schema {
	schema := &Schema{}

	if d := v.Get("defaults"); d.IsObject() {
		schema.Defaults = &ChartDefaults{
			Dimension: d.Get("dimension").String(),
			Metric:    d.Get("metric").String(),
		}
	}

	v.Get("dimensions").ForEach(func(_, f gjson.Result) bool {
		name := f.Get("name").String()
		if name == "" {
			return true
		}
		schema.Dimensions = append(schema.Dimensions, Field{
			Name: name,
			Kind: f.Get("kind").String(),
		})
		return true
	})

	return schema
}

func optString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}
