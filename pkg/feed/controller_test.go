package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"
)

type fetchCall struct {
	filters url.Values
	page    int
}

// stubFetcher serves canned pages and records every call. An optional
// gate blocks FetchPage until released, to hold a fetch in flight.
type stubFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	pages map[int]*Page
	err   error
	gate  chan struct{}
}

func (f *stubFetcher) FetchPage(_ context.Context, filters url.Values, page int) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{filters: cloneFilters(filters), page: page})
	gate := f.gate
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.pages[page]; ok {
		return p, nil
	}
	return &Page{}, nil
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *stubFetcher) lastCall() fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

// recordingRenderer records presentation calls.
type recordingRenderer struct {
	mu        sync.Mutex
	appended  int
	noResults int
}

func (r *recordingRenderer) ShowSkeletons(int, bool) {}
func (r *recordingRenderer) HideLoader()             {}

func (r *recordingRenderer) Append(results []json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.appended += len(results)
}

func (r *recordingRenderer) NoResults() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.noResults++
}

func (r *recordingRenderer) counts() (appended, noResults int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.appended, r.noResults
}

func page(ids []string, more bool) *Page {
	results := make([]json.RawMessage, len(ids))
	for i, id := range ids {
		results[i] = json.RawMessage(`{"id":` + id + `}`)
	}
	p := &Page{Results: results, Count: len(results)}
	if more {
		next := "/products/api/products/?page=next"
		p.Next = &next
	}
	return p
}

func newTestController(fetcher PageFetcher, renderer Renderer) *Controller {
	c := NewController(fetcher, renderer, DefaultConfig("products"))
	c.sleep = func(time.Duration) {} // no latency smoothing in tests
	return c
}

func TestController_LoadNext_AppendsAndAdvances(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int]*Page{
		1: page([]string{"1", "2"}, true),
		2: page([]string{"3"}, false),
	}}
	renderer := &recordingRenderer{}
	c := newTestController(fetcher, renderer)
	ctx := context.Background()

	started, err := c.LoadNext(ctx)
	if err != nil || !started {
		t.Fatalf("LoadNext() = (%v, %v), want (true, nil)", started, err)
	}

	state := c.State()
	if state.Page != 2 {
		t.Errorf("Page = %d, want 2", state.Page)
	}
	if !state.HasMore {
		t.Error("HasMore = false, want true")
	}
	if state.Loading {
		t.Error("Loading = true after completion")
	}

	started, err = c.LoadNext(ctx)
	if err != nil || !started {
		t.Fatalf("LoadNext() page 2 = (%v, %v), want (true, nil)", started, err)
	}

	state = c.State()
	if state.HasMore {
		t.Error("HasMore = true after last page")
	}
	if state.Page != 2 {
		t.Errorf("Page = %d, want 2 (no increment without more pages)", state.Page)
	}

	appended, noResults := renderer.counts()
	if appended != 3 {
		t.Errorf("appended results = %d, want 3", appended)
	}
	if noResults != 0 {
		t.Errorf("noResults calls = %d, want 0", noResults)
	}
}

// TestController_AtMostOneInFlight verifies that LoadNext during Loading
// never issues a second network request.
func TestController_AtMostOneInFlight(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{
		pages: map[int]*Page{1: page([]string{"1"}, true)},
		gate:  gate,
	}
	c := newTestController(fetcher, NoopRenderer{})
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.LoadNext(ctx)
	}()

	// Wait for the fetch to be in flight
	for i := 0; fetcher.callCount() == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if fetcher.callCount() != 1 {
		t.Fatalf("in-flight fetches = %d, want 1", fetcher.callCount())
	}

	// Rapid repeated triggers while Loading are no-ops
	for i := 0; i < 10; i++ {
		started, err := c.LoadNext(ctx)
		if started || err != nil {
			t.Fatalf("concurrent LoadNext() = (%v, %v), want (false, nil)", started, err)
		}
	}

	close(gate)
	<-done

	if fetcher.callCount() != 1 {
		t.Errorf("total fetches = %d, want 1", fetcher.callCount())
	}
}

// TestController_Reset verifies that the next LoadNext after a reset
// requests page 1 with the new filters, regardless of prior state.
func TestController_Reset(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int]*Page{
		1: page([]string{"1"}, true),
		2: page([]string{"2"}, true),
	}}
	c := newTestController(fetcher, NoopRenderer{})
	ctx := context.Background()

	if _, err := c.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext() error = %v", err)
	}
	if got := c.State().Page; got != 2 {
		t.Fatalf("Page = %d, want 2", got)
	}

	filters := url.Values{"category_id": []string{"7"}}
	c.Reset(filters)

	state := c.State()
	if state.Page != 1 || !state.HasMore || state.Loading {
		t.Errorf("state after Reset = %+v, want Idle(page=1, hasMore)", state)
	}

	if _, err := c.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext() after Reset error = %v", err)
	}

	last := fetcher.lastCall()
	if last.page != 1 {
		t.Errorf("page requested after Reset = %d, want 1", last.page)
	}
	if got := last.filters.Get("category_id"); got != "7" {
		t.Errorf("category_id filter = %q, want 7", got)
	}
}

func TestController_EmptyFirstPage(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int]*Page{1: page(nil, false)}}
	renderer := &recordingRenderer{}
	c := newTestController(fetcher, renderer)
	ctx := context.Background()

	if _, err := c.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext() error = %v", err)
	}

	state := c.State()
	if !state.Exhausted() {
		t.Error("feed should be exhausted after empty first page")
	}

	appended, noResults := renderer.counts()
	if noResults != 1 {
		t.Errorf("noResults calls = %d, want 1", noResults)
	}
	if appended != 0 {
		t.Errorf("appended = %d, want 0", appended)
	}

	// Exhaustion is terminal until reset
	started, err := c.LoadNext(ctx)
	if started || err != nil {
		t.Errorf("LoadNext() after exhaustion = (%v, %v), want (false, nil)", started, err)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetches after exhaustion = %d, want 1", fetcher.callCount())
	}
}

func TestController_EmptyLaterPage_PreservesItems(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int]*Page{
		1: page([]string{"1", "2"}, true),
		2: page(nil, false),
	}}
	renderer := &recordingRenderer{}
	c := newTestController(fetcher, renderer)
	ctx := context.Background()

	if _, err := c.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext() page 1 error = %v", err)
	}
	if _, err := c.LoadNext(ctx); err != nil {
		t.Fatalf("LoadNext() page 2 error = %v", err)
	}

	state := c.State()
	if !state.Exhausted() {
		t.Error("feed should be exhausted after empty later page")
	}

	appended, noResults := renderer.counts()
	if appended != 2 {
		t.Errorf("appended = %d, want 2 (page 1 items preserved)", appended)
	}
	if noResults != 0 {
		t.Errorf("noResults calls = %d, want 0 (empty state is page-1 only)", noResults)
	}
}

// TestController_StaleGenerationDiscarded verifies that a result arriving
// from before a Reset is dropped without touching state or renderer.
func TestController_StaleGenerationDiscarded(t *testing.T) {
	gate := make(chan struct{})
	fetcher := &stubFetcher{
		pages: map[int]*Page{1: page([]string{"1"}, true)},
		gate:  gate,
	}
	renderer := &recordingRenderer{}
	c := newTestController(fetcher, renderer)
	ctx := context.Background()

	results := make(chan bool, 1)
	go func() {
		started, _ := c.LoadNext(ctx)
		results <- started
	}()

	for i := 0; fetcher.callCount() == 0 && i < 100; i++ {
		time.Sleep(5 * time.Millisecond)
	}

	// Filter change while the page-1 fetch is still in flight
	c.Reset(url.Values{"q": []string{"laptop"}})
	close(gate)

	if started := <-results; started {
		t.Error("stale fetch reported as applied")
	}

	state := c.State()
	if state.Page != 1 || !state.HasMore || state.Loading {
		t.Errorf("state after stale discard = %+v, want untouched Idle(page=1)", state)
	}

	appended, _ := renderer.counts()
	if appended != 0 {
		t.Errorf("appended = %d, want 0 (stale result must not render)", appended)
	}
}

func TestController_FetchError_ReturnsToIdle(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("connection refused")}
	c := newTestController(fetcher, NoopRenderer{})

	started, err := c.LoadNext(context.Background())
	if started {
		t.Error("failed fetch reported as applied")
	}
	if err == nil {
		t.Error("LoadNext() should surface the fetch error")
	}

	state := c.State()
	if state.Loading {
		t.Error("Loading stuck after fetch error")
	}
	if !state.HasMore {
		t.Error("fetch error must not exhaust the feed")
	}
}

func TestHoldFor(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    time.Duration
	}{
		{"fast fetch gets long hold", 50 * time.Millisecond, 400 * time.Millisecond},
		{"just under fast threshold", 299 * time.Millisecond, 400 * time.Millisecond},
		{"medium fetch gets short hold", 300 * time.Millisecond, 200 * time.Millisecond},
		{"just under slow threshold", 999 * time.Millisecond, 200 * time.Millisecond},
		{"slow fetch gets no hold", 1000 * time.Millisecond, 0},
		{"very slow fetch gets no hold", 5 * time.Second, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := holdFor(tt.elapsed); got != tt.want {
				t.Errorf("holdFor(%v) = %v, want %v", tt.elapsed, got, tt.want)
			}
		})
	}
}

func TestScrollObserver(t *testing.T) {
	fetcher := &stubFetcher{pages: map[int]*Page{1: page([]string{"1"}, true)}}
	c := newTestController(fetcher, NoopRenderer{})
	observer := NewScrollObserver(c, 200)
	ctx := context.Background()

	// Far from the bottom: no fetch
	started, err := observer.Observe(ctx, 800, 0, 5000)
	if started || err != nil {
		t.Errorf("Observe() far from bottom = (%v, %v), want (false, nil)", started, err)
	}
	if fetcher.callCount() != 0 {
		t.Errorf("fetches = %d, want 0", fetcher.callCount())
	}

	// Within threshold of the bottom: fetch
	started, err = observer.Observe(ctx, 800, 4100, 5000)
	if err != nil || !started {
		t.Errorf("Observe() near bottom = (%v, %v), want (true, nil)", started, err)
	}
	if fetcher.callCount() != 1 {
		t.Errorf("fetches = %d, want 1", fetcher.callCount())
	}
}
