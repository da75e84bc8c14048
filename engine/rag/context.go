package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ModaAI/moda-mvp/engine/domain"
)

// maxDescriptionChars caps each record's description in the prompt context.
// The cap is applied uniformly to every record to bound prompt size; no
// other truncation happens.
const maxDescriptionChars = 1000

// buildContext assembles the generation context from normalized records in
// rank order. An empty result set yields an empty string; the orchestrator
// short-circuits before calling the generator in that case.
func buildContext(records []domain.NormalizedRecord) string {
	var b strings.Builder
	for i, r := range records {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Product: %s\n", r.Title)
		fmt.Fprintf(&b, "Description: %s\n", truncate(r.Description, maxDescriptionChars))
		if r.ProductID != "" {
			fmt.Fprintf(&b, "Product ID: %s\n", r.ProductID)
		}
		if r.Link != "" {
			fmt.Fprintf(&b, "Link: %s\n", r.Link)
		}
		if r.StartTime != "" && r.EndTime != "" {
			fmt.Fprintf(&b, "Segment: %s - %s\n", r.StartTime, r.EndTime)
		}
		fmt.Fprintf(&b, "Similarity: %.2f%%\n", r.Similarity)
	}
	return b.String()
}

// truncate cuts s to at most limit bytes without splitting a multi-byte
// rune; the prompt must stay valid UTF-8.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
