// Package nav implements the history/URL contract: the URL is the source
// of truth for which overlay is open, and back/forward navigation
// re-derives overlay state from the current URL alone.
package nav

import (
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Overlay identifies which overlay a URL opens.
type Overlay string

const (
	OverlayNone          Overlay = "none"
	OverlayProductDetail Overlay = "product_detail"
	OverlaySearch        Overlay = "search"
	OverlayWishlist      Overlay = "wishlist"
	OverlayCart          Overlay = "cart"
)

// State is the overlay state derived from one URL.
type State struct {
	Overlay   Overlay
	ProductID int64
	Slug      string
	Query     string
}

// Derive computes the overlay state from a URL alone.
// Recognized shapes:
//
//	/product/detail/{id}/{slug}/  -> product detail
//	?search={q}                   -> search overlay
//	/wishlist/                    -> wishlist overlay
//	/cart/                        -> cart overlay
func Derive(u *url.URL) State {
	if q := u.Query().Get("search"); q != "" {
		return State{Overlay: OverlaySearch, Query: q}
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case len(segments) >= 3 && segments[0] == "product" && segments[1] == "detail":
		id, err := strconv.ParseInt(segments[2], 10, 64)
		if err != nil {
			return State{Overlay: OverlayNone}
		}
		state := State{Overlay: OverlayProductDetail, ProductID: id}
		if len(segments) >= 4 {
			state.Slug = segments[3]
		}
		return state
	case segments[0] == "wishlist":
		return State{Overlay: OverlayWishlist}
	case segments[0] == "cart":
		return State{Overlay: OverlayCart}
	default:
		return State{Overlay: OverlayNone}
	}
}

// History is the overlay navigation stack. Opening an overlay pushes a
// distinct URL; closing pops back to the remembered prior URL or root.
type History struct {
	mu    sync.Mutex
	stack []string
}

// NewHistory creates a history seeded with the entry URL.
func NewHistory(entry string) *History {
	if entry == "" {
		entry = "/"
	}
	return &History{stack: []string{entry}}
}

// Current returns the URL on top of the stack.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stack[len(h.stack)-1]
}

// Push records a new URL (an overlay opening).
func (h *History) Push(rawURL string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stack = append(h.stack, rawURL)
}

// Pop closes the current overlay, returning the prior URL, or root when
// there is nothing to return to.
func (h *History) Pop() string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.stack) <= 1 {
		h.stack = []string{"/"}
		return "/"
	}

	h.stack = h.stack[:len(h.stack)-1]
	return h.stack[len(h.stack)-1]
}

// CurrentState derives the overlay state for the top of the stack.
func (h *History) CurrentState() (State, error) {
	u, err := url.Parse(h.Current())
	if err != nil {
		return State{Overlay: OverlayNone}, err
	}
	return Derive(u), nil
}
