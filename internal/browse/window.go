package browse

import (
	"sync"

	"CatalogLens/internal/records"
)

const (
	DefaultRowHeight = 100
	DefaultOverscan  = 1

	EmptyMessage = "No matching products."
)

type RenderState int

const (
	Measuring RenderState = iota
	Ready
)

func (s RenderState) String() string {
	if s == Ready {
		return "ready"
	}
	return "measuring"
}

const (
	FrameUnavailable = "unavailable"
	FrameMeasuring   = "measuring"
	FrameEmpty       = "empty"
	FrameReady       = "ready"
)

// Row is one realized row. Every field is rebound when its slot is reused,
// nothing carries over from the record it showed before.
type Row struct {
	Slot    int             `json:"slot"`
	Index   int             `json:"index"`
	Top     int             `json:"top"`
	Product records.Product `json:"product"`
	User    *records.User   `json:"user,omitempty"`
	Liked   bool            `json:"liked"`
}

type Frame struct {
	Status      string `json:"status"`
	Total       int    `json:"total"`
	RowHeight   int    `json:"row_height"`
	TotalHeight int    `json:"total_height"`
	ScrollTop   int    `json:"scroll_top"`
	First       int    `json:"first"`
	Last        int    `json:"last"`
	Rows        []Row  `json:"rows"`
	Message     string `json:"message,omitempty"`
}

// VisibleRange returns the inclusive index range to realize, overscan
// included. ok is false when nothing can be realized.
func VisibleRange(n, rowHeight, viewport, scroll, overscan int) (first, last int, ok bool) {
	if n <= 0 || rowHeight <= 0 || viewport <= 0 {
		return 0, -1, false
	}
	if scroll < 0 {
		scroll = 0
	}

	first = scroll / rowHeight
	last = (scroll + viewport + rowHeight - 1) / rowHeight

	first = clamp(first-overscan, 0, n-1)
	last = clamp(last+overscan, 0, n-1)
	return first, last, true
}

// SlotCount is the arena size that covers any range VisibleRange can return
// for the given viewport.
func SlotCount(rowHeight, viewport, overscan int) int {
	if rowHeight <= 0 || viewport <= 0 {
		return 0
	}
	return (viewport+rowHeight-1)/rowHeight + 2 + 2*overscan
}

// Renderer realizes the rows of a view that intersect the viewport.
type Renderer struct {
	rowHeight int
	overscan  int
	metrics   *Metrics

	mu       sync.Mutex
	state    RenderState
	viewport int
	scroll   int
	slots    []Row
}

func NewRenderer(rowHeight, overscan int, metrics *Metrics) *Renderer {
	if rowHeight <= 0 {
		rowHeight = DefaultRowHeight
	}
	if overscan < 0 {
		overscan = 0
	}
	return &Renderer{rowHeight: rowHeight, overscan: overscan, metrics: metrics}
}

// Resize reports a new container height. A non-positive height drops back
// to Measuring.
func (r *Renderer) Resize(height int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if height <= 0 {
		r.reset()
		return
	}

	r.viewport = height
	r.state = Ready
	if n := SlotCount(r.rowHeight, height, r.overscan); n != len(r.slots) {
		r.slots = make([]Row, n)
	}
}

func (r *Renderer) Scroll(top int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if top < 0 {
		top = 0
	}
	r.scroll = top
}

func (r *Renderer) Unmount() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}

func (r *Renderer) reset() {
	r.state = Measuring
	r.viewport = 0
	r.slots = nil
}

func (r *Renderer) State() RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Renderer) RowHeight() int { return r.rowHeight }

// Render builds the frame for view. It never filters; resize and scroll only
// move the window over the view it is given.
func (r *Renderer) Render(view []JoinedRecord, liked LikedSet) Frame {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(view)
	f := Frame{
		Total:       n,
		RowHeight:   r.rowHeight,
		TotalHeight: n * r.rowHeight,
		First:       0,
		Last:        -1,
		Rows:        []Row{},
	}

	if r.state == Measuring {
		f.Status = FrameMeasuring
		return f
	}
	if n == 0 {
		f.Status = FrameEmpty
		f.Message = EmptyMessage
		return f
	}

	// The view may have shrunk under the current scroll position.
	maxScroll := f.TotalHeight - r.viewport
	if maxScroll < 0 {
		maxScroll = 0
	}
	if r.scroll > maxScroll {
		r.scroll = maxScroll
	}
	f.ScrollTop = r.scroll

	first, last, _ := VisibleRange(n, r.rowHeight, r.viewport, r.scroll, r.overscan)
	f.Status = FrameReady
	f.First, f.Last = first, last

	f.Rows = make([]Row, 0, last-first+1)
	for i := first; i <= last; i++ {
		slot := i % len(r.slots)
		rec := view[i]
		r.slots[slot] = Row{
			Slot:    slot,
			Index:   i,
			Top:     i * r.rowHeight,
			Product: rec.Product,
			User:    rec.User,
			Liked:   liked.Has(rec.Product.ID),
		}
		f.Rows = append(f.Rows, r.slots[slot])
	}

	r.metrics.observeRows(len(f.Rows))
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
