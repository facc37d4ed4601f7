package highlight

import (
	"sync"
	"time"

	"github.com/yungbote/pdfchat-backend/internal/citations"
	"github.com/yungbote/pdfchat-backend/internal/logger"
	"github.com/yungbote/pdfchat-backend/internal/textlayer"
)

type State int

const (
	StateIdle State = iota
	StateHighlighted
)

type EventKind string

const (
	// EventNavigate asks the rendering layer to show a page. The controller
	// then waits for that page's PageReady before locating.
	EventNavigate EventKind = "navigate"
	// EventApplied carries the fragment range the renderer should style.
	EventApplied EventKind = "highlight_applied"
	// EventCleared tells the renderer to remove any active highlight.
	EventCleared EventKind = "highlight_cleared"
	// EventNotFound is informational: the excerpt does not occur in the
	// rendered text layer. Not an error.
	EventNotFound EventKind = "highlight_not_found"
	// EventUnavailable is informational: the pending highlight was abandoned
	// (render-complete never arrived in time, or the text layer was corrupt).
	EventUnavailable EventKind = "highlight_unavailable"
)

type Event struct {
	Kind    EventKind        `json:"kind"`
	Page    int              `json:"page,omitempty"`
	Range   *textlayer.Range `json:"range,omitempty"`
	Excerpt string           `json:"excerpt,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// Config bounds the controller. PendingTimeout caps how long a citation click
// may wait for the target page's render-complete signal; the reference
// behavior waited forever, which is not acceptable in production.
type Config struct {
	PendingTimeout time.Duration
	Locator        textlayer.Config
}

func DefaultConfig() Config {
	return Config{
		PendingTimeout: 2 * time.Second,
		Locator:        textlayer.DefaultConfig(),
	}
}

type pendingClick struct {
	seq     uint64
	page    int
	excerpt string
	timer   *time.Timer
}

// Controller sequences citation clicks, page navigation and locator runs for
// one viewer instance, and owns the single-highlight invariant: at most one
// highlight exists at any time, and a stale locate result is never applied.
//
// All decisions surface through the emit callback (navigate requests and
// highlight instructions); the controller never touches how fragments are
// painted. The callback runs with the controller's lock held and must not call
// back into the controller.
type Controller struct {
	mu   sync.Mutex
	log  *logger.Logger
	emit func(Event)
	cfg  Config

	state       State
	hlPage      int
	hlRange     textlayer.Range
	currentPage int
	fragments   []textlayer.Fragment
	pending     *pendingClick
	seq         uint64
}

func NewController(baseLog *logger.Logger, cfg Config, emit func(Event)) *Controller {
	if cfg.PendingTimeout <= 0 {
		cfg.PendingTimeout = DefaultConfig().PendingTimeout
	}
	if emit == nil {
		emit = func(Event) {}
	}
	return &Controller{
		log:  baseLog.With("component", "HighlightController"),
		emit: emit,
		cfg:  cfg,
	}
}

// ClickCitation starts a highlight attempt for one citation. Any previous
// highlight is cleared first. If the viewer is already showing the target page
// the locator runs immediately; otherwise the click is suspended until
// PageReady for that page arrives, bounded by PendingTimeout.
func (c *Controller) ClickCitation(cit citations.Citation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearLocked()
	c.dropPendingLocked()

	page := cit.PageNumber
	if page < 1 {
		page = 1
	}

	if page == c.currentPage && c.fragments != nil {
		c.runLocatorLocked(page, cit.TextExcerpt)
		return
	}

	c.seq++
	p := &pendingClick{seq: c.seq, page: page, excerpt: cit.TextExcerpt}
	p.timer = time.AfterFunc(c.cfg.PendingTimeout, func() { c.expire(p.seq) })
	c.pending = p

	c.emit(Event{Kind: EventNavigate, Page: page, Excerpt: cit.TextExcerpt})
}

// PageReady is the render-complete signal: the rendering layer finished laying
// out a page and hands over its ordered text fragments. A pending click
// targeting this page resumes here; a pending click targeting a different page
// is stale and is discarded without being applied.
func (c *Controller) PageReady(page int, fragments []textlayer.Fragment) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentPage = page
	c.fragments = fragments

	p := c.pending
	if p == nil {
		return
	}
	if p.page != page {
		c.log.Debug("Discarding stale pending highlight", "pending_page", p.page, "ready_page", page)
		c.dropPendingLocked()
		return
	}
	c.dropPendingLocked()
	c.runLocatorLocked(page, p.excerpt)
}

// PageChange handles any page navigation, user-initiated or otherwise. The
// active highlight is cleared unconditionally; a pending click survives only
// when the change is toward its own target page.
func (c *Controller) PageChange(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentPage = page
	c.fragments = nil
	c.clearLocked()

	if c.pending != nil && c.pending.page != page {
		c.log.Debug("Page changed away from pending highlight target", "pending_page", c.pending.page, "new_page", page)
		c.dropPendingLocked()
	}
}

// State reports the controller's current state for inspection.
func (c *Controller) State() (State, int, textlayer.Range) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.hlPage, c.hlRange
}

func (c *Controller) expire(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pending
	if p == nil || p.seq != seq {
		return
	}
	c.pending = nil
	c.log.Debug("Pending highlight timed out", "page", p.page)
	c.emit(Event{Kind: EventUnavailable, Page: p.page, Excerpt: p.excerpt, Reason: "page render timed out"})
}

func (c *Controller) runLocatorLocked(page int, excerpt string) {
	rng, found, err := textlayer.Locate(c.fragments, excerpt, c.cfg.Locator)
	if err != nil {
		// Corrupt fragment list: abort this attempt only, viewer stays usable.
		c.log.Warn("Locator aborted", "page", page, "error", err)
		c.emit(Event{Kind: EventUnavailable, Page: page, Excerpt: excerpt, Reason: err.Error()})
		return
	}
	if !found {
		c.emit(Event{Kind: EventNotFound, Page: page, Excerpt: excerpt})
		return
	}
	c.state = StateHighlighted
	c.hlPage = page
	c.hlRange = rng
	c.emit(Event{Kind: EventApplied, Page: page, Range: &rng, Excerpt: excerpt})
}

func (c *Controller) clearLocked() {
	if c.state != StateHighlighted {
		return
	}
	c.state = StateIdle
	c.hlPage = 0
	c.hlRange = textlayer.Range{}
	c.emit(Event{Kind: EventCleared})
}

func (c *Controller) dropPendingLocked() {
	if c.pending == nil {
		return
	}
	if c.pending.timer != nil {
		c.pending.timer.Stop()
	}
	c.pending = nil
}
