// Package store implements the reactive entity stores backing the cart
// and wishlist: a locally authoritative membership set synchronized with
// the server and broadcast to subscribed UI bindings.
//
// Mutations are confirm-then-apply: nothing changes locally until the
// server responds, and the new membership comes from the server's
// authoritative flag rather than the requested intent. A request that
// failed validation server-side but returned 200 with a negative flag
// still reconciles correctly, and no rollback machinery is needed.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Backend issues the store's server mutations. The returned flag is the
// server's authoritative membership after the mutation.
type Backend interface {
	// Add requests membership for id (quantity where the entity carries one).
	Add(ctx context.Context, id int64, quantity int) (bool, error)

	// Remove requests removal of id.
	Remove(ctx context.Context, id int64) (bool, error)

	// Snapshot fetches the authoritative id list.
	Snapshot(ctx context.Context) ([]int64, error)
}

// Subscriber receives the full current id set on every change.
// No partial diffs: every notification is a complete snapshot.
type Subscriber func(ids []int64)

type subscription struct {
	id int
	fn Subscriber
}

// EntityStore is a server-synchronized membership set with ordered
// subscriber notification.
type EntityStore struct {
	mu          sync.Mutex
	ids         map[int64]struct{}
	subscribers []subscription
	nextSubID   int
	backend     Backend
	logger      zerolog.Logger
}

// New creates an empty entity store. name identifies it in logs
// ("cart", "wishlist").
func New(name string, backend Backend) *EntityStore {
	return &EntityStore{
		ids:     make(map[int64]struct{}),
		backend: backend,
		logger:  log.With().Str("component", "entity-store").Str("store", name).Logger(),
	}
}

// Initialize replaces the local set wholly from a server-provided list
// and notifies subscribers once.
func (s *EntityStore) Initialize(ids []int64) {
	s.mu.Lock()
	s.ids = make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	snapshot, subs := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snapshot, subs)
}

// Refresh re-fetches the authoritative state and replaces the local set.
func (s *EntityStore) Refresh(ctx context.Context) error {
	ids, err := s.backend.Snapshot(ctx)
	if err != nil {
		return err
	}
	s.Initialize(ids)
	return nil
}

// Contains reports whether id is in the set.
func (s *EntityStore) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns a sorted snapshot of the current set.
func (s *EntityStore) IDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idsLocked()
}

// Subscribe registers a callback that immediately receives the current
// snapshot, then a new full snapshot on every subsequent change, in
// subscription order. The returned function unregisters it.
func (s *EntityStore) Subscribe(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	s.nextSubID++
	subID := s.nextSubID
	s.subscribers = append(s.subscribers, subscription{id: subID, fn: fn})
	snapshot := s.idsLocked()
	s.mu.Unlock()

	fn(snapshot)

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subscribers {
			if sub.id == subID {
				s.subscribers = append(s.subscribers[:i], s.subscribers[i+1:]...)
				return
			}
		}
	}
}

// Add requests membership for id and reconciles from the server's
// response. On any error the local set is untouched.
func (s *EntityStore) Add(ctx context.Context, id int64, quantity int) error {
	inSet, err := s.backend.Add(ctx, id, quantity)
	if err != nil {
		s.logger.Warn().Err(err).Int64("id", id).Msg("Add mutation failed")
		return err
	}

	s.reconcile(id, inSet)
	return nil
}

// Remove requests removal of id and reconciles from the server's response.
func (s *EntityStore) Remove(ctx context.Context, id int64) error {
	inSet, err := s.backend.Remove(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Int64("id", id).Msg("Remove mutation failed")
		return err
	}

	s.reconcile(id, inSet)
	return nil
}

// Toggle requests the opposite of the current local membership. The
// final membership still comes from the server's response, so a toggle
// that races a server-side change converges on the server's answer.
func (s *EntityStore) Toggle(ctx context.Context, id int64) error {
	if s.Contains(id) {
		return s.Remove(ctx, id)
	}
	return s.Add(ctx, id, 1)
}

// reconcile applies the server's authoritative membership and notifies
// subscribers when the set changed.
func (s *EntityStore) reconcile(id int64, inSet bool) {
	s.mu.Lock()
	_, present := s.ids[id]
	if present == inSet {
		s.mu.Unlock()
		return
	}

	if inSet {
		s.ids[id] = struct{}{}
	} else {
		delete(s.ids, id)
	}
	snapshot, subs := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Debug().
		Int64("id", id).
		Bool("in_set", inSet).
		Int("size", len(snapshot)).
		Msg("Membership reconciled")

	s.notify(snapshot, subs)
}

func (s *EntityStore) idsLocked() []int64 {
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *EntityStore) snapshotLocked() ([]int64, []subscription) {
	subs := make([]subscription, len(s.subscribers))
	copy(subs, s.subscribers)
	return s.idsLocked(), subs
}

// notify delivers the snapshot to subscribers outside the lock so
// callbacks may re-enter the store.
func (s *EntityStore) notify(snapshot []int64, subs []subscription) {
	for _, sub := range subs {
		sub.fn(snapshot)
	}
}
