package citations

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// DedupeAndRank merges duplicate citations, orders the survivors by confidence
// and bounds the result. Pure and deterministic: the same input slice (in the
// same order) always produces the same output.
//
// Two citations are duplicates when they share (document_id, page_number) and
// the normalized prefix of their excerpts. The higher-confidence duplicate
// wins; on equal confidence the earlier one is kept.
func DedupeAndRank(in []Citation, policy Policy) []Citation {
	byKey := make(map[string]int, len(in))
	winners := make([]Citation, 0, len(in))

	for _, cit := range in {
		key := dedupKey(cit, policy.DedupPrefixChars)
		if j, ok := byKey[key]; ok {
			// Winner keeps its slot, so dedup itself is position-stable.
			if cit.Confidence > winners[j].Confidence {
				winners[j] = cit
			}
			continue
		}
		byKey[key] = len(winners)
		winners = append(winners, cit)
	}

	// Stable keeps equal-confidence citations in their original relative order.
	sort.SliceStable(winners, func(a, b int) bool {
		return winners[a].Confidence > winners[b].Confidence
	})

	max := policy.MaxCitations
	if max > 0 && len(winners) > max {
		winners = winners[:max]
	}

	out := make([]Citation, len(winners))
	copy(out, winners)
	return out
}

func dedupKey(cit Citation, prefixChars int) string {
	return cit.DocumentID + "\x00" + strconv.Itoa(cit.PageNumber) + "\x00" + normalizedPrefix(cit.TextExcerpt, prefixChars)
}

// normalizedPrefix lowercases, collapses whitespace runs to single spaces and
// truncates to the first prefixChars characters, so that re-chunked copies of
// the same passage collide on the key.
func normalizedPrefix(text string, prefixChars int) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.TrimSpace(text) {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
			continue
		}
		lastSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	norm := []rune(b.String())
	if prefixChars > 0 && len(norm) > prefixChars {
		norm = norm[:prefixChars]
	}
	return string(norm)
}
