// Package viewmodel is the presentation-facing cache over the record store.
package viewmodel

import (
	"context"
	"errors"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stevemurr/school-directory/school"
)

// Repository is the subset of school.RecordStore the adapter needs.
type Repository interface {
	List(ctx context.Context) ([]school.School, error)
	Add(ctx context.Context, f school.FormData) (school.School, error)
	Update(ctx context.Context, id int64, f school.FormData) (school.School, error)
	Delete(ctx context.Context, id int64) error
}

// Adapter holds a transient copy of the collection plus loading and error
// state for display. The cache is only as fresh as the last call through the
// adapter; Refresh re-reads the store.
type Adapter struct {
	repo Repository
	log  zerolog.Logger

	mu       sync.RWMutex
	schools  []school.School
	inflight int
	errMsg   string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(a *Adapter) { a.log = l }
}

// New builds an adapter and seeds its cache from the repository. A failed
// seed leaves the cache empty and the failure in Err.
func New(ctx context.Context, repo Repository, opts ...Option) *Adapter {
	a := &Adapter{repo: repo, log: zerolog.Nop(), schools: []school.School{}}
	for _, opt := range opts {
		opt(a)
	}
	_ = a.Refresh(ctx)
	return a
}

// Schools returns a copy of the cached collection.
func (a *Adapter) Schools() []school.School {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return slices.Clone(a.schools)
}

// Find returns the cached record with id.
func (a *Adapter) Find(id int64) (school.School, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	i := slices.IndexFunc(a.schools, func(s school.School) bool { return s.ID == id })
	if i < 0 {
		return school.School{}, false
	}
	return a.schools[i], true
}

// Loading reports whether a mutation is in flight.
func (a *Adapter) Loading() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.inflight > 0
}

// Err returns the message recorded by the last failed call, or "".
func (a *Adapter) Err() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.errMsg
}

// Refresh replaces the cache with the store's current collection.
func (a *Adapter) Refresh(ctx context.Context) error {
	schools, err := a.repo.List(ctx)
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.fail("refresh", err, "Failed to fetch schools")
		return err
	}
	a.schools = schools
	a.errMsg = ""
	return nil
}

// Create adds a school and appends it to the cache.
func (a *Adapter) Create(ctx context.Context, f school.FormData) (school.School, error) {
	a.begin()
	s, err := a.repo.Add(ctx, f)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight--
	if err != nil {
		a.fail("create", err, "Failed to add school")
		return school.School{}, err
	}
	a.schools = append(a.schools, s)
	return s, nil
}

// Edit updates a school and replaces its cache entry.
func (a *Adapter) Edit(ctx context.Context, id int64, f school.FormData) (school.School, error) {
	a.begin()
	s, err := a.repo.Update(ctx, id, f)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight--
	if err != nil {
		a.fail("edit", err, "Failed to update school")
		return school.School{}, err
	}
	for i := range a.schools {
		if a.schools[i].ID == id {
			a.schools[i] = s
		}
	}
	return s, nil
}

// Remove deletes a school and filters it out of the cache.
func (a *Adapter) Remove(ctx context.Context, id int64) error {
	a.begin()
	err := a.repo.Delete(ctx, id)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.inflight--
	if err != nil {
		a.fail("remove", err, "Failed to delete school")
		return err
	}
	a.schools = slices.DeleteFunc(a.schools, func(s school.School) bool { return s.ID == id })
	return nil
}

func (a *Adapter) begin() {
	a.mu.Lock()
	a.inflight++
	a.errMsg = ""
	a.mu.Unlock()
}

// fail records err. Callers hold a.mu.
func (a *Adapter) fail(op string, err error, fallback string) {
	a.errMsg = school.Message(err, fallback)
	ev := a.log.Warn()
	if school.KindOf(err) == school.KindStorage && !errors.Is(err, context.Canceled) {
		ev = a.log.Error()
	}
	ev.Err(err).Str("op", op).Str("kind", school.KindOf(err).String()).Msg("school operation failed")
}
