package highlight

import (
	"testing"
	"time"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/textlayer"
)

type eventSink struct {
	events []Event
}

func (s *eventSink) record(e Event) { s.events = append(s.events, e) }

func (s *eventSink) kinds() []EventKind {
	out := make([]EventKind, len(s.events))
	for i, e := range s.events {
		out[i] = e.Kind
	}
	return out
}

func newTestController(t *testing.T, cfg Config) (*Controller, *eventSink) {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	t.Cleanup(log.Sync)
	sink := &eventSink{}
	return NewController(log, cfg, sink.record), sink
}

func pageFragments(texts ...string) []textlayer.Fragment {
	out := make([]textlayer.Fragment, len(texts))
	for i, text := range texts {
		out[i] = textlayer.Fragment{Index: i, Text: text}
	}
	return out
}

func TestClickOnCurrentPageAppliesImmediately(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(4, pageFragments("Revenue ", "grew 20% ", "this year"))

	c.ClickCitation(citations.Citation{PageNumber: 4, TextExcerpt: "grew 20%"})

	state, page, rng := c.State()
	if state != StateHighlighted {
		t.Fatalf("state = %v, want StateHighlighted", state)
	}
	if page != 4 || rng != (textlayer.Range{Start: 1, End: 1}) {
		t.Errorf("highlight at page %d range %+v", page, rng)
	}
	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != EventApplied {
		t.Errorf("events = %v, want [highlight_applied]", kinds)
	}
}

func TestClickOtherPageNavigatesThenApplies(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(1, pageFragments("intro text"))

	c.ClickCitation(citations.Citation{PageNumber: 6, TextExcerpt: "net margin"})

	if state, _, _ := c.State(); state != StateIdle {
		t.Fatalf("state before render-complete = %v, want StateIdle", state)
	}
	if kinds := sink.kinds(); len(kinds) != 1 || kinds[0] != EventNavigate {
		t.Fatalf("events = %v, want [navigate]", kinds)
	}

	c.PageChange(6)
	c.PageReady(6, pageFragments("the net ", "margin improved"))

	state, page, rng := c.State()
	if state != StateHighlighted || page != 6 {
		t.Fatalf("state=%v page=%d after render-complete", state, page)
	}
	if rng != (textlayer.Range{Start: 0, End: 1}) {
		t.Errorf("range = %+v, want {0 1}", rng)
	}
	kinds := sink.kinds()
	if kinds[len(kinds)-1] != EventApplied {
		t.Errorf("events = %v, want trailing highlight_applied", kinds)
	}
}

func TestSecondClickClearsBeforeApplying(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(2, pageFragments("alpha beta ", "gamma delta"))

	c.ClickCitation(citations.Citation{PageNumber: 2, TextExcerpt: "alpha"})
	c.ClickCitation(citations.Citation{PageNumber: 2, TextExcerpt: "delta"})

	kinds := sink.kinds()
	want := []EventKind{EventApplied, EventCleared, EventApplied}
	if len(kinds) != len(want) {
		t.Fatalf("events = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("events = %v, want %v (clear must precede the new apply)", kinds, want)
		}
	}

	_, _, rng := c.State()
	if rng != (textlayer.Range{Start: 1, End: 1}) {
		t.Errorf("second highlight range = %+v, want {1 1}", rng)
	}
}

func TestPageChangeClearsHighlight(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(3, pageFragments("some content"))
	c.ClickCitation(citations.Citation{PageNumber: 3, TextExcerpt: "content"})

	c.PageChange(4)

	if state, _, _ := c.State(); state != StateIdle {
		t.Fatalf("state after page change = %v, want StateIdle", state)
	}
	kinds := sink.kinds()
	if kinds[len(kinds)-1] != EventCleared {
		t.Errorf("events = %v, want trailing highlight_cleared", kinds)
	}
}

func TestStalePendingDiscardedOnOtherPageReady(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(1, pageFragments("page one"))

	c.ClickCitation(citations.Citation{PageNumber: 5, TextExcerpt: "page five text"})
	// User navigates somewhere else before page 5 renders.
	c.PageChange(9)
	c.PageReady(9, pageFragments("page five text happens to be here too"))

	if state, _, _ := c.State(); state != StateIdle {
		t.Fatalf("state = %v, stale pending click must not apply", state)
	}
	for _, k := range sink.kinds() {
		if k == EventApplied {
			t.Fatal("stale locate result was applied")
		}
	}
}

func TestNotFoundStaysIdle(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(2, pageFragments("nothing relevant here"))

	c.ClickCitation(citations.Citation{PageNumber: 2, TextExcerpt: "absent excerpt"})

	if state, _, _ := c.State(); state != StateIdle {
		t.Fatalf("state = %v, want StateIdle after NotFound", state)
	}
	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != EventNotFound {
		t.Errorf("events = %v, want [highlight_not_found]", kinds)
	}
}

func TestPendingClickTimesOut(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PendingTimeout = 20 * time.Millisecond
	c, sink := newTestController(t, cfg)
	c.PageReady(1, pageFragments("page one"))

	c.ClickCitation(citations.Citation{PageNumber: 8, TextExcerpt: "late excerpt"})

	deadline := time.Now().Add(time.Second)
	for {
		c.mu.Lock()
		done := c.pending == nil
		c.mu.Unlock()
		if done {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("pending click never timed out")
		}
		time.Sleep(5 * time.Millisecond)
	}

	c.mu.Lock()
	kinds := append([]EventKind(nil), sink.kinds()...)
	c.mu.Unlock()
	if kinds[len(kinds)-1] != EventUnavailable {
		t.Fatalf("events = %v, want trailing highlight_unavailable", kinds)
	}

	// A late render-complete for the abandoned page must not highlight.
	c.PageReady(8, pageFragments("late excerpt arrives"))
	if state, _, _ := c.State(); state != StateIdle {
		t.Error("abandoned click applied after timeout")
	}
}

func TestCorruptFragmentsAbortAttemptOnly(t *testing.T) {
	c, sink := newTestController(t, DefaultConfig())
	c.PageReady(2, []textlayer.Fragment{
		{Index: 1, Text: "out "},
		{Index: 0, Text: "of order"},
	})

	c.ClickCitation(citations.Citation{PageNumber: 2, TextExcerpt: "order"})

	if state, _, _ := c.State(); state != StateIdle {
		t.Fatalf("state = %v, want StateIdle after corrupt text layer", state)
	}
	kinds := sink.kinds()
	if len(kinds) != 1 || kinds[0] != EventUnavailable {
		t.Fatalf("events = %v, want [highlight_unavailable]", kinds)
	}

	// The controller stays usable for the next attempt.
	c.PageReady(2, pageFragments("back in order"))
	c.ClickCitation(citations.Citation{PageNumber: 2, TextExcerpt: "in order"})
	if state, _, _ := c.State(); state != StateHighlighted {
		t.Error("controller unusable after aborted attempt")
	}
}
