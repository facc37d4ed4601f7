package citations

import (
	"fmt"
	"sync"
)

// DocumentRef is the user-facing identity a citation resolves to.
type DocumentRef struct {
	ID       string
	Filename string
}

// DocumentMapper resolves opaque engine document ids to local documents. Ids
// the mapper has never seen get a stable "Document <n>" fallback label: the
// ordinal is assigned on first sight and is never reassigned, so repeated
// renders of the same citation list keep their labels even across Rebuild.
type DocumentMapper struct {
	mu       sync.RWMutex
	byEngine map[string]DocumentRef
	ordinals map[string]int
	nextOrd  int
}

func NewDocumentMapper() *DocumentMapper {
	return &DocumentMapper{
		byEngine: make(map[string]DocumentRef),
		ordinals: make(map[string]int),
		nextOrd:  1,
	}
}

// Rebuild replaces the lookup table. Fallback ordinals are retained.
func (m *DocumentMapper) Rebuild(refs map[string]DocumentRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEngine = make(map[string]DocumentRef, len(refs))
	for engineID, ref := range refs {
		m.byEngine[engineID] = ref
	}
}

// Resolve returns the local document for an engine id, or a fallback ref with
// a stable display label when the id is unknown. The ok flag reports whether
// the id was known; an unknown id is a normal outcome, not an error.
func (m *DocumentMapper) Resolve(engineID string) (DocumentRef, bool) {
	m.mu.RLock()
	ref, ok := m.byEngine[engineID]
	m.mu.RUnlock()
	if ok {
		return ref, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ref, ok := m.byEngine[engineID]; ok {
		return ref, true
	}
	ord, ok := m.ordinals[engineID]
	if !ok {
		ord = m.nextOrd
		m.ordinals[engineID] = ord
		m.nextOrd++
	}
	return DocumentRef{ID: engineID, Filename: fmt.Sprintf("Document %d", ord)}, false
}

// Apply maps engine document ids on a citation list to local ids and display
// filenames. Citations are value-copied; inputs are never mutated.
func (m *DocumentMapper) Apply(in []Citation) []Citation {
	out := make([]Citation, len(in))
	for i, cit := range in {
		ref, _ := m.Resolve(cit.DocumentID)
		cit.DocumentID = ref.ID
		cit.DocumentFilename = ref.Filename
		out[i] = cit
	}
	return out
}
