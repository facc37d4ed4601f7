package citations

import (
	"strconv"
	"strings"
)

// The retrieval engine is not consistent about response shape. Three variants
// have been observed in the wild, keyed by one of these top-level fields; the
// first present, non-empty list wins.
var variantKeys = []string{"sources", "chunks", "references"}

// Field aliases are pooled across all variants because individual deployments
// mix them freely within a single shape.
var (
	textKeys  = []string{"text", "content", "excerpt", "chunk_text"}
	pageKeys  = []string{"page_number", "page_num", "page"}
	scoreKeys = []string{"score", "similarity_score", "relevance", "confidence"}
	docKeys   = []string{"document_id", "doc_id"}
)

// Normalize converts a raw engine response into canonical citations. Unknown
// or malformed input yields an empty slice; this is an expected outcome, never
// an error. Input order is preserved.
func Normalize(raw map[string]any, policy Policy) []Citation {
	if raw == nil {
		return []Citation{}
	}

	var items []any
	for _, key := range variantKeys {
		v, ok := raw[key]
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok || len(list) == 0 {
			continue
		}
		items = list
		break
	}
	if items == nil {
		return []Citation{}
	}

	out := make([]Citation, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		text, ok := firstString(obj, textKeys)
		if !ok {
			// An excerpt-less citation cannot be displayed or located.
			continue
		}

		cit := Citation{
			DocumentID:  stringOr(obj, docKeys, ""),
			PageNumber:  pageOr(obj, pageKeys, 1),
			TextExcerpt: truncateExcerpt(text, policy.MaxExcerptChars),
			Confidence:  clampConfidence(floatOr(obj, scoreKeys, 0.0)),
		}
		if p, ok := intField(obj, "start_position"); ok {
			cit.StartPosition = &p
		}
		if p, ok := intField(obj, "end_position"); ok {
			cit.EndPosition = &p
		}
		out = append(out, cit)
	}
	return out
}

func truncateExcerpt(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}

func clampConfidence(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func firstString(obj map[string]any, keys []string) (string, bool) {
	for _, key := range keys {
		if v, ok := obj[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func stringOr(obj map[string]any, keys []string, fallback string) string {
	if s, ok := firstString(obj, keys); ok {
		return s
	}
	return fallback
}

// pageOr coerces the first present page field to an integer, tolerating JSON
// numbers and numeric strings. Missing or unparseable pages default, and the
// result is floored at 1.
func pageOr(obj map[string]any, keys []string, fallback int) int {
	page := fallback
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if n, ok := coerceInt(v); ok {
			page = n
		}
		break
	}
	if page < 1 {
		page = 1
	}
	return page
}

func floatOr(obj map[string]any, keys []string, fallback float64) float64 {
	for _, key := range keys {
		v, ok := obj[key]
		if !ok {
			continue
		}
		if f, ok := coerceFloat(v); ok {
			return f
		}
		return fallback
	}
	return fallback
}

func intField(obj map[string]any, key string) (int, bool) {
	v, ok := obj[key]
	if !ok || v == nil {
		return 0, false
	}
	return coerceInt(v)
}

func coerceInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
