package rag

import (
	"fmt"

	"github.com/ModaAI/moda-mvp/engine/domain"
	"github.com/ModaAI/moda-mvp/engine/semantic"
)

// Field extraction runs an explicit strategy ladder per display field:
// the canonical payload key first, then a nested "metadata" map, then
// known free-form aliases. First non-empty string wins. This tolerates
// schema drift across differently-configured indexes without runtime
// introspection.
var fieldAliases = map[string][]string{
	"title":       {"name", "product_title", "product_name"},
	"description": {"desc", "content", "text", "summary"},
	"product_id":  {"id", "pid", "sku"},
	"link":        {"url", "product_link", "product_url"},
	"video_url":   {"video", "video_link"},
	"start_time":  {"start", "start_offset_sec"},
	"end_time":    {"end", "end_offset_sec"},
}

// extractField resolves one display field from a hit's payload, or ""
// when no strategy produces a value.
func extractField(fields map[string]any, name string) string {
	if s := stringField(fields, name); s != "" {
		return s
	}
	if meta, ok := fields["metadata"].(map[string]any); ok {
		if s := stringField(meta, name); s != "" {
			return s
		}
		for _, alias := range fieldAliases[name] {
			if s := stringField(meta, alias); s != "" {
				return s
			}
		}
	}
	for _, alias := range fieldAliases[name] {
		if s := stringField(fields, alias); s != "" {
			return s
		}
	}
	return ""
}

func stringField(fields map[string]any, key string) string {
	switch v := fields[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	case int64:
		return fmt.Sprintf("%d", v)
	default:
		return ""
	}
}

// normalizeHit extracts a canonical record from one raw hit. The second
// return is false when the hit exposes no usable display content (neither
// title nor description) under any strategy; such hits are dropped from
// the result set, never treated as errors. Surviving fields independently
// fall back to their placeholders.
func normalizeHit(hit semantic.RawHit, metric domain.Metric) (domain.NormalizedRecord, bool) {
	title := extractField(hit.Fields, "title")
	description := extractField(hit.Fields, "description")
	if title == "" && description == "" {
		return domain.NormalizedRecord{}, false
	}

	if title == "" {
		title = domain.PlaceholderTitle
	}
	if description == "" {
		description = domain.PlaceholderDescription
	}

	return domain.NormalizedRecord{
		Title:       title,
		Description: description,
		ProductID:   extractField(hit.Fields, "product_id"),
		Link:        extractField(hit.Fields, "link"),
		VideoURL:    extractField(hit.Fields, "video_url"),
		StartTime:   extractField(hit.Fields, "start_time"),
		EndTime:     extractField(hit.Fields, "end_time"),
		Similarity:  calibrate(hit.Score, metric),
		RawScore:    hit.Score,
	}, true
}

// normalizeHits maps raw hits to records, dropping unusable ones while
// preserving the store's rank order.
func normalizeHits(hits []semantic.RawHit, metric domain.Metric) []domain.NormalizedRecord {
	records := make([]domain.NormalizedRecord, 0, len(hits))
	for _, h := range hits {
		if rec, ok := normalizeHit(h, metric); ok {
			records = append(records, rec)
		}
	}
	return records
}
