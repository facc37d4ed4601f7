package textlayer

import (
	"errors"
	"strings"
)

// ErrCorruptFragments reports a fragment list whose indices are not strictly
// ascending. This is the only failure mode of Locate; it aborts the current
// highlight attempt and nothing else.
var ErrCorruptFragments = errors.New("textlayer: fragment indices not strictly ascending")

// Config carries the locator's cost/memory bounds. These are policy values,
// not correctness requirements; DefaultConfig matches the reference behavior.
type Config struct {
	// RefineWindow is how many fragments behind the detection point are
	// rescanned to resolve the exact fragment span of a match.
	RefineWindow int
	// BufferSlack: the trailing buffer is trimmed once it exceeds
	// len(excerpt)+BufferSlack characters.
	BufferSlack int
	// TrimKeep is how many trailing characters a trim retains. A trim never
	// keeps fewer than len(excerpt) characters, so a match straddling the
	// trim boundary stays detectable.
	TrimKeep int
}

func DefaultConfig() Config {
	return Config{
		RefineWindow: 10,
		BufferSlack:  1000,
		TrimKeep:     500,
	}
}

// contribution records which slice of the virtual page text one fragment
// produced. Offsets are absolute (pre-trim) positions in the lowercased
// concatenation, so entries stay valid across buffer trims.
type contribution struct {
	index    int
	absStart int
	absEnd   int
}

// Locate finds the minimal contiguous fragment run whose concatenated text
// contains excerpt, case-insensitively. It scans the fragments once through a
// bounded trailing buffer and never materializes the full page text.
//
// The ok result is false when the excerpt does not occur anywhere in the
// concatenation; that is a normal outcome, not an error. Only the earliest
// occurrence is reported. Matching is verbatim apart from case: no whitespace
// or punctuation normalization is applied, so a re-flowed excerpt may
// legitimately come back not found.
func Locate(fragments []Fragment, excerpt string, cfg Config) (Range, bool, error) {
	needle := strings.ToLower(excerpt)
	if needle == "" {
		return Range{}, false, nil
	}

	var (
		buf      []byte
		base     int // absolute offset of buf[0]
		contribs []contribution
		prevIdx  int
		havePrev bool
	)

	for _, frag := range fragments {
		if havePrev && frag.Index <= prevIdx {
			return Range{}, false, ErrCorruptFragments
		}
		prevIdx = frag.Index
		havePrev = true

		lower := strings.ToLower(frag.Text)
		contribs = append(contribs, contribution{
			index:    frag.Index,
			absStart: base + len(buf),
			absEnd:   base + len(buf) + len(lower),
		})
		buf = append(buf, lower...)

		// Only the suffix that could complete a new occurrence needs
		// searching; everything earlier was covered by previous appends.
		from := len(buf) - len(lower) - len(needle) + 1
		if from < 0 {
			from = 0
		}
		if rel := strings.Index(string(buf[from:]), needle); rel >= 0 {
			matchStart := base + from + rel
			matchEnd := matchStart + len(needle)
			return refine(contribs, matchStart, matchEnd, cfg.RefineWindow), true, nil
		}

		if len(buf) > len(needle)+cfg.BufferSlack {
			keep := cfg.TrimKeep
			if keep < len(needle) {
				keep = len(needle)
			}
			if drop := len(buf) - keep; drop > 0 {
				buf = append(buf[:0:0], buf[drop:]...)
				base += drop
				contribs = prune(contribs, base)
			}
		}
	}

	return Range{}, false, nil
}

// refine maps a match's absolute offset range back to fragment indices by
// rescanning only a bounded window behind the detection fragment, not the
// whole contribution map. A match reaching past the window is clamped to the
// window's earliest fragment.
func refine(contribs []contribution, matchStart, matchEnd, window int) Range {
	lo := len(contribs) - 1 - window
	if lo < 0 {
		lo = 0
	}
	win := contribs[lo:]

	start := win[0].index
	for _, c := range win {
		if c.absEnd > matchStart {
			start = c.index
			break
		}
	}
	end := win[len(win)-1].index
	for i := len(win) - 1; i >= 0; i-- {
		if win[i].absStart < matchEnd {
			end = win[i].index
			break
		}
	}
	return Range{Start: start, End: end}
}

// prune drops contribution entries wholly behind the trimmed buffer.
func prune(contribs []contribution, base int) []contribution {
	keepFrom := 0
	for keepFrom < len(contribs) && contribs[keepFrom].absEnd <= base {
		keepFrom++
	}
	if keepFrom == 0 {
		return contribs
	}
	return append(contribs[:0:0], contribs[keepFrom:]...)
}
