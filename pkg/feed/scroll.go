package feed

import "context"

// DefaultBottomThreshold is how close to the bottom of the rendered list
// (in pixels) the viewport must be before the next page loads.
const DefaultBottomThreshold = 200

// ScrollObserver translates scroll-position reports into LoadNext calls.
// It needs no debouncing: the controller's Loading and Exhausted guards
// make rapid repeated reports idempotent.
type ScrollObserver struct {
	controller *Controller
	threshold  float64
}

// NewScrollObserver creates an observer for the given controller.
// A threshold <= 0 falls back to DefaultBottomThreshold.
func NewScrollObserver(controller *Controller, threshold float64) *ScrollObserver {
	if threshold <= 0 {
		threshold = DefaultBottomThreshold
	}
	return &ScrollObserver{
		controller: controller,
		threshold:  threshold,
	}
}

// Observe reports a scroll position. When the viewport bottom is within
// the threshold of the content bottom, the next page is requested.
// Returns true if a fetch was started.
func (o *ScrollObserver) Observe(ctx context.Context, viewportHeight, scrollY, contentHeight float64) (bool, error) {
	if viewportHeight+scrollY < contentHeight-o.threshold {
		return false, nil
	}
	return o.controller.LoadNext(ctx)
}
