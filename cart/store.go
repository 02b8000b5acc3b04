// Package cart holds the cart state for one device: a list of product
// entries mirrored to key-value storage after every change.
package cart

import (
	"context"
	"math"
	"slices"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ErrNotFound is returned by Increment and Decrement for an id that is not in the cart.
var ErrNotFound = errors.New("cart entry not found")

// ErrQuantityLimit is returned when one more unit would overflow an entry's quantity.
var ErrQuantityLimit = errors.New("cart entry quantity at limit")

// Storage is the key-value persistence the store mirrors its entries to.
type Storage interface {
	GetItem(ctx context.Context, key string) (string, bool, error)
	SetItem(ctx context.Context, key, value string) error
}

// Store owns the canonical cart. All methods are safe for concurrent use.
type Store struct {
	storage Storage
	key     string
	log     logrus.FieldLogger

	mu      sync.Mutex
	entries []Entry
	loaded  bool
	subs    map[int]chan []Entry
	nextSub int
}

// Option configures a Store.
type Option func(*Store)

// WithStorageKey overrides DefaultStorageKey.
func WithStorageKey(key string) Option {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the logger used for recoverable load problems.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Store) { s.log = log }
}

// NewStore returns an empty, unloaded store.
func NewStore(storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultStorageKey,
		log:     logrus.StandardLogger(),
		subs:    make(map[int]chan []Entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.WithField("cart_key", s.key)
	return s
}

// Key returns the storage key the cart is persisted under.
func (s *Store) Key() string { return s.key }

// Load reads the persisted cart once. A missing or unreadable blob leaves the
// cart empty; only a storage failure is returned, and Load may then be retried.
// Mutations load implicitly, so they never overwrite a cart that was not read yet.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded {
		return nil
	}
	if err := s.loadLocked(ctx); err != nil {
		return err
	}
	s.publishLocked()
	return nil
}

func (s *Store) loadLocked(ctx context.Context) error {
	if s.loaded {
		return nil
	}

	blob, ok, err := s.storage.GetItem(ctx, s.key)
	if err != nil {
		return errors.Wrap(err, "load cart")
	}
	s.loaded = true
	if !ok {
		return nil
	}

	entries, err := Decode(blob)
	if err != nil {
		s.log.WithError(err).Warn("discarding unreadable persisted cart")
		return nil
	}
	s.entries = entries
	s.log.WithField("entries", len(entries)).Debug("cart loaded")
	return nil
}

// Products returns a snapshot of the cart. Changing it does not affect the store.
func (s *Store) Products() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// TotalQuantity is the sum of all entry quantities.
func (s *Store) TotalQuantity() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, e := range s.entries {
		n += e.Quantity
	}
	return n
}

// AddToCart adds one unit of p. A product already in the cart keeps its
// stored title, image and price; only the quantity grows.
func (s *Store) AddToCart(ctx context.Context, p Product) error {
	return s.update(ctx, "add", func(entries []Entry) ([]Entry, error) {
		if i := indexOf(entries, p.ID); i >= 0 {
			return entries, bump(entries, i)
		}
		return append(entries, newEntry(p)), nil
	})
}

// Increment adds one unit to an existing entry.
func (s *Store) Increment(ctx context.Context, id string) error {
	return s.update(ctx, "increment", func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, errors.Wrapf(ErrNotFound, "increment %q", id)
		}
		return entries, bump(entries, i)
	})
}

// Decrement removes one unit from an existing entry, dropping the entry when
// its quantity reaches zero.
func (s *Store) Decrement(ctx context.Context, id string) error {
	return s.update(ctx, "decrement", func(entries []Entry) ([]Entry, error) {
		i := indexOf(entries, id)
		if i < 0 {
			return nil, errors.Wrapf(ErrNotFound, "decrement %q", id)
		}
		if entries[i].Quantity <= 1 {
			return slices.Delete(entries, i, i+1), nil
		}
		entries[i].Quantity--
		return entries, nil
	})
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.update(ctx, "clear", func([]Entry) ([]Entry, error) {
		return []Entry{}, nil
	})
}

// update applies fn to a copy of the latest state, persists the result and
// only then commits it in memory. The lock is held throughout so writes reach
// storage in commit order.
func (s *Store) update(ctx context.Context, op string, fn func([]Entry) ([]Entry, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.loadLocked(ctx); err != nil {
		return err
	}

	next, err := fn(slices.Clone(s.entries))
	if err != nil {
		return err
	}

	blob, err := Encode(next)
	if err != nil {
		return err
	}
	if err := s.storage.SetItem(ctx, s.key, blob); err != nil {
		return errors.Wrapf(err, "persist cart after %s", op)
	}

	s.entries = next
	s.publishLocked()
	return nil
}

// Subscribe returns a channel that holds the latest snapshot: the current one
// immediately, then a new one after every change. A subscriber that falls
// behind only ever sees the newest state. cancel closes the channel.
func (s *Store) Subscribe() (updates <-chan []Entry, cancel func()) {
	ch := make(chan []Entry, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			close(ch)
			s.mu.Unlock()
		})
	}
}

func (s *Store) publishLocked() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s.snapshotLocked():
		default:
		}
	}
}

// snapshotLocked copies the entries; the result is never nil.
func (s *Store) snapshotLocked() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// bump adds one unit to entries[i], refusing to wrap past math.MaxInt.
func bump(entries []Entry, i int) error {
	if entries[i].Quantity == math.MaxInt {
		return errors.Wrapf(ErrQuantityLimit, "%q", entries[i].ID)
	}
	entries[i].Quantity++
	return nil
}

func indexOf(entries []Entry, id string) int {
	return slices.IndexFunc(entries, func(e Entry) bool { return e.ID == id })
}
