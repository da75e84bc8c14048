package domain

import "strings"

// ValidateProduct checks a ProductRecord before ingestion. All fields are
// required; the add-product flow rejects partial records rather than
// storing placeholders.
func ValidateProduct(p ProductRecord) error {
	fields := []struct {
		name  string
		value string
	}{
		{"product_id", p.ProductID},
		{"title", p.Title},
		{"description", p.Description},
		{"link", p.Link},
		{"video_url", p.VideoURL},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return NewValidationError(f.name, f.value, ErrInvalidProduct)
		}
	}
	return nil
}

// ValidateQuery checks a Query at the orchestrator entry point.
func ValidateQuery(q Query) error {
	switch q.Kind {
	case QueryText:
		if strings.TrimSpace(q.Text) == "" {
			return NewValidationError("text", q.Text, ErrInvalidQuery)
		}
	case QueryImage:
		if len(q.Image) == 0 {
			return NewValidationError("image", "", ErrInvalidQuery)
		}
	default:
		return NewValidationError("kind", string(q.Kind), ErrInvalidQuery)
	}
	return nil
}
