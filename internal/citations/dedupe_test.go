package citations

import (
	"encoding/json"
	"testing"
)

func TestDedupeKeepsHigherConfidence(t *testing.T) {
	in := []Citation{
		{DocumentID: "d1", PageNumber: 4, TextExcerpt: "Revenue grew 20%", Confidence: 0.75},
		{DocumentID: "d1", PageNumber: 4, TextExcerpt: "revenue  GREW 20%", Confidence: 0.91},
	}
	got := DedupeAndRank(in, DefaultPolicy())
	if len(got) != 1 {
		t.Fatalf("DedupeAndRank returned %d citations, want 1", len(got))
	}
	if got[0].Confidence != 0.91 {
		t.Errorf("kept confidence %v, want 0.91", got[0].Confidence)
	}
}

func TestDedupeTieKeepsEarliest(t *testing.T) {
	in := []Citation{
		{DocumentID: "d1", PageNumber: 2, TextExcerpt: "same passage", Confidence: 0.5, DocumentFilename: "first.pdf"},
		{DocumentID: "d1", PageNumber: 2, TextExcerpt: "same passage", Confidence: 0.5, DocumentFilename: "second.pdf"},
	}
	got := DedupeAndRank(in, DefaultPolicy())
	if len(got) != 1 {
		t.Fatalf("DedupeAndRank returned %d citations, want 1", len(got))
	}
	if got[0].DocumentFilename != "first.pdf" {
		t.Errorf("tie should keep the earliest item, got %q", got[0].DocumentFilename)
	}
}

func TestDedupeDistinctKeysSurvive(t *testing.T) {
	in := []Citation{
		{DocumentID: "d1", PageNumber: 1, TextExcerpt: "alpha", Confidence: 0.3},
		{DocumentID: "d1", PageNumber: 2, TextExcerpt: "alpha", Confidence: 0.3},
		{DocumentID: "d2", PageNumber: 1, TextExcerpt: "alpha", Confidence: 0.3},
		{DocumentID: "d1", PageNumber: 1, TextExcerpt: "completely different text", Confidence: 0.3},
	}
	got := DedupeAndRank(in, DefaultPolicy())
	if len(got) != 4 {
		t.Fatalf("DedupeAndRank merged distinct keys: got %d, want 4", len(got))
	}
}

func TestRankSortsDescendingStable(t *testing.T) {
	in := []Citation{
		{DocumentID: "a", PageNumber: 1, TextExcerpt: "one", Confidence: 0.2},
		{DocumentID: "b", PageNumber: 1, TextExcerpt: "two", Confidence: 0.9},
		{DocumentID: "c", PageNumber: 1, TextExcerpt: "three", Confidence: 0.5},
		{DocumentID: "d", PageNumber: 1, TextExcerpt: "four", Confidence: 0.5},
	}
	got := DedupeAndRank(in, DefaultPolicy())
	wantOrder := []string{"b", "c", "d", "a"}
	if len(got) != len(wantOrder) {
		t.Fatalf("DedupeAndRank returned %d citations, want %d", len(got), len(wantOrder))
	}
	for i, id := range wantOrder {
		if got[i].DocumentID != id {
			t.Errorf("position %d = %q, want %q (stable descending sort)", i, got[i].DocumentID, id)
		}
	}
}

func TestRankCapsAtMaxCitations(t *testing.T) {
	var in []Citation
	for i := 0; i < 12; i++ {
		in = append(in, Citation{
			DocumentID:  "d",
			PageNumber:  i + 1,
			TextExcerpt: "passage",
			Confidence:  float64(i) / 12,
		})
	}
	got := DedupeAndRank(in, DefaultPolicy())
	if len(got) != 5 {
		t.Fatalf("DedupeAndRank returned %d citations, want cap of 5", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Confidence > got[i-1].Confidence {
			t.Errorf("output not sorted descending at %d: %v > %v", i, got[i].Confidence, got[i-1].Confidence)
		}
	}
}

func TestDedupeDeterministic(t *testing.T) {
	in := []Citation{
		{DocumentID: "d1", PageNumber: 1, TextExcerpt: "a", Confidence: 0.5},
		{DocumentID: "d2", PageNumber: 1, TextExcerpt: "b", Confidence: 0.5},
		{DocumentID: "d1", PageNumber: 1, TextExcerpt: "a", Confidence: 0.5},
	}
	first := DedupeAndRank(in, DefaultPolicy())
	for i := 0; i < 10; i++ {
		again := DedupeAndRank(in, DefaultPolicy())
		if len(again) != len(first) {
			t.Fatalf("run %d changed length: %d vs %d", i, len(again), len(first))
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d changed output at %d: %+v vs %+v", i, j, again[j], first[j])
			}
		}
	}
}

// End-to-end: duplicate sources collapse to the single higher-confidence
// citation after normalize + dedupe/rank.
func TestNormalizeThenDedupe(t *testing.T) {
	raw := `{"sources":[
		{"content":"Revenue grew 20%","page":4,"score":0.91,"doc_id":"d1"},
		{"content":"Revenue grew 20%","page":4,"score":0.75,"doc_id":"d1"}
	]}`
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		t.Fatalf("decode raw payload: %v", err)
	}
	got := DedupeAndRank(Normalize(obj, DefaultPolicy()), DefaultPolicy())
	if len(got) != 1 {
		t.Fatalf("pipeline returned %d citations, want 1", len(got))
	}
	want := Citation{DocumentID: "d1", PageNumber: 4, TextExcerpt: "Revenue grew 20%", Confidence: 0.91}
	if got[0] != want {
		t.Errorf("pipeline result = %+v, want %+v", got[0], want)
	}
}
