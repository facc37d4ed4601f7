package textlayer

import (
	"errors"
	"math/rand"
	"strings"
	"testing"
)

func frags(texts ...string) []Fragment {
	out := make([]Fragment, len(texts))
	for i, text := range texts {
		out[i] = Fragment{Index: i, Text: text}
	}
	return out
}

func TestLocateBasics(t *testing.T) {
	cases := []struct {
		name      string
		fragments []Fragment
		excerpt   string
		want      Range
		found     bool
	}{
		{
			name:      "span_across_fragments",
			fragments: frags("The quick ", "brown fox ", "jumps"),
			excerpt:   "brown fox jumps",
			want:      Range{Start: 1, End: 2},
			found:     true,
		},
		{
			name:      "single_fragment",
			fragments: frags("The quick ", "brown fox ", "jumps"),
			excerpt:   "quick",
			want:      Range{Start: 0, End: 0},
			found:     true,
		},
		{
			name:      "case_insensitive",
			fragments: frags("HELLO "),
			excerpt:   "hello",
			want:      Range{Start: 0, End: 0},
			found:     true,
		},
		{
			name:      "not_found",
			fragments: frags("The quick ", "brown fox ", "jumps"),
			excerpt:   "lazy dog",
			found:     false,
		},
		{
			name:      "empty_excerpt",
			fragments: frags("anything"),
			excerpt:   "",
			found:     false,
		},
		{
			name:      "no_fragments",
			fragments: nil,
			excerpt:   "anything",
			found:     false,
		},
		{
			name:      "whole_excerpt_inside_one_fragment",
			fragments: frags("alpha beta gamma"),
			excerpt:   "beta",
			want:      Range{Start: 0, End: 0},
			found:     true,
		},
		{
			name:      "match_spans_three_fragments",
			fragments: frags("aa", "bb", "cc", "dd"),
			excerpt:   "abbc",
			want:      Range{Start: 0, End: 2},
			found:     true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, found, err := Locate(tc.fragments, tc.excerpt, DefaultConfig())
			if err != nil {
				t.Fatalf("Locate returned error: %v", err)
			}
			if found != tc.found {
				t.Fatalf("found = %v, want %v", found, tc.found)
			}
			if found && got != tc.want {
				t.Errorf("range = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestLocateEarliestOccurrenceOnly(t *testing.T) {
	fragments := frags("needle in the ", "haystack, another ", "needle later")
	got, found, err := Locate(fragments, "needle", DefaultConfig())
	if err != nil || !found {
		t.Fatalf("Locate: found=%v err=%v", found, err)
	}
	if got != (Range{Start: 0, End: 0}) {
		t.Errorf("range = %+v, want the earliest occurrence in fragment 0", got)
	}
}

func TestLocateNoWhitespaceNormalization(t *testing.T) {
	// The match is verbatim apart from case; re-flowed whitespace is a miss.
	_, found, err := Locate(frags("spaced   out"), "spaced out", DefaultConfig())
	if err != nil {
		t.Fatalf("Locate returned error: %v", err)
	}
	if found {
		t.Error("whitespace-normalized match should not be found")
	}
}

func TestLocateCorruptFragmentList(t *testing.T) {
	fragments := []Fragment{
		{Index: 0, Text: "abc "},
		{Index: 2, Text: "def "},
		{Index: 1, Text: "ghi"},
	}
	_, _, err := Locate(fragments, "zzz", DefaultConfig())
	if !errors.Is(err, ErrCorruptFragments) {
		t.Fatalf("err = %v, want ErrCorruptFragments", err)
	}
}

func TestLocateNonContiguousIndicesAllowed(t *testing.T) {
	// Ascending but gapped indices are fine; the renderer may skip empties.
	fragments := []Fragment{
		{Index: 3, Text: "one "},
		{Index: 7, Text: "two "},
		{Index: 9, Text: "three"},
	}
	got, found, err := Locate(fragments, "two three", DefaultConfig())
	if err != nil || !found {
		t.Fatalf("Locate: found=%v err=%v", found, err)
	}
	if got != (Range{Start: 7, End: 9}) {
		t.Errorf("range = %+v, want {7 9}", got)
	}
}

// The excerpt is planted so the match crosses the buffer-trim boundary; it
// must still be found for arbitrary fragment split points.
func TestLocateMatchStraddlesTrimBoundary(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	excerpt := "the revenue of the fourth quarter grew by twenty percent year over year"

	for trial := 0; trial < 50; trial++ {
		filler := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 40) // ~1560 chars
		page := filler[:960+rng.Intn(120)] + excerpt + filler

		var fragments []Fragment
		for pos, idx := 0, 0; pos < len(page); idx++ {
			n := 10 + rng.Intn(31)
			if pos+n > len(page) {
				n = len(page) - pos
			}
			fragments = append(fragments, Fragment{Index: idx, Text: page[pos : pos+n]})
			pos += n
		}

		got, found, err := Locate(fragments, excerpt, DefaultConfig())
		if err != nil {
			t.Fatalf("trial %d: Locate returned error: %v", trial, err)
		}
		if !found {
			t.Fatalf("trial %d: excerpt straddling trim boundary not found", trial)
		}
		if got.Start > got.End {
			t.Fatalf("trial %d: inverted range %+v", trial, got)
		}

		// The reported run must actually contain the excerpt.
		var b strings.Builder
		for _, f := range fragments {
			if f.Index >= got.Start && f.Index <= got.End {
				b.WriteString(f.Text)
			}
		}
		if !strings.Contains(strings.ToLower(b.String()), strings.ToLower(excerpt)) {
			t.Fatalf("trial %d: fragments %+v do not contain the excerpt", trial, got)
		}
	}
}

func TestLocateBoundedBuffer(t *testing.T) {
	// A long page with the excerpt near the end still matches after many trims.
	var fragments []Fragment
	for i := 0; i < 2000; i++ {
		fragments = append(fragments, Fragment{Index: i, Text: "padding text block "})
	}
	fragments = append(fragments, Fragment{Index: 2000, Text: "the final answer is 42"})

	got, found, err := Locate(fragments, "final answer", DefaultConfig())
	if err != nil || !found {
		t.Fatalf("Locate: found=%v err=%v", found, err)
	}
	if got != (Range{Start: 2000, End: 2000}) {
		t.Errorf("range = %+v, want {2000 2000}", got)
	}
}

func TestLocateCustomConfig(t *testing.T) {
	cfg := Config{RefineWindow: 3, BufferSlack: 50, TrimKeep: 30}
	fragments := frags("aaaa aaaa ", "bbbb bbbb ", "cccc cccc ", "dddd dddd ", "target text here")
	got, found, err := Locate(fragments, "target text", cfg)
	if err != nil || !found {
		t.Fatalf("Locate: found=%v err=%v", found, err)
	}
	if got != (Range{Start: 4, End: 4}) {
		t.Errorf("range = %+v, want {4 4}", got)
	}
}
