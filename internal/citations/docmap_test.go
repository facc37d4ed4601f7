package citations

import "testing"

func TestDocumentMapperResolve(t *testing.T) {
	m := NewDocumentMapper()
	m.Rebuild(map[string]DocumentRef{
		"eng-1": {ID: "local-1", Filename: "report.pdf"},
	})

	ref, ok := m.Resolve("eng-1")
	if !ok {
		t.Fatal("known id should resolve")
	}
	if ref.ID != "local-1" || ref.Filename != "report.pdf" {
		t.Errorf("Resolve = %+v", ref)
	}
}

func TestDocumentMapperFallbackOrdinalsStable(t *testing.T) {
	m := NewDocumentMapper()

	first, ok := m.Resolve("mystery-a")
	if ok {
		t.Fatal("unknown id reported as known")
	}
	if first.Filename != "Document 1" {
		t.Fatalf("first fallback label = %q, want %q", first.Filename, "Document 1")
	}
	second, _ := m.Resolve("mystery-b")
	if second.Filename != "Document 2" {
		t.Fatalf("second fallback label = %q, want %q", second.Filename, "Document 2")
	}

	// Re-resolving and rebuilding must not reassign ordinals.
	m.Rebuild(map[string]DocumentRef{"eng-1": {ID: "local-1", Filename: "report.pdf"}})
	again, _ := m.Resolve("mystery-a")
	if again.Filename != "Document 1" {
		t.Errorf("ordinal reassigned after rebuild: %q", again.Filename)
	}
}

func TestDocumentMapperApply(t *testing.T) {
	m := NewDocumentMapper()
	m.Rebuild(map[string]DocumentRef{
		"eng-1": {ID: "local-1", Filename: "report.pdf"},
	})

	in := []Citation{
		{DocumentID: "eng-1", PageNumber: 3, TextExcerpt: "a"},
		{DocumentID: "eng-unknown", PageNumber: 1, TextExcerpt: "b"},
	}
	got := m.Apply(in)

	if got[0].DocumentID != "local-1" || got[0].DocumentFilename != "report.pdf" {
		t.Errorf("known citation not remapped: %+v", got[0])
	}
	if got[1].DocumentFilename != "Document 1" {
		t.Errorf("unknown citation missing fallback label: %+v", got[1])
	}
	if in[0].DocumentID != "eng-1" {
		t.Errorf("Apply mutated its input: %+v", in[0])
	}
}
