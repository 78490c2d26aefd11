package school

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stevemurr/school-directory/dataurl"
	"github.com/stevemurr/school-directory/schema"
	"github.com/stevemurr/school-directory/store"
)

// DefaultKey is the item key the collection is stored under.
const DefaultKey = "schools"

// collectionSchema describes a well-formed persisted collection.
var collectionSchema = map[string]any{
	"type": "array",
	"items": map[string]any{
		"type":     "object",
		"required": []string{"id", "name", "address", "city", "state", "contact", "email", "image"},
		"properties": map[string]any{
			"id":      map[string]any{"type": "integer", "minimum": 1},
			"name":    map[string]any{"type": "string", "minLength": 1},
			"address": map[string]any{"type": "string", "minLength": 1},
			"city":    map[string]any{"type": "string", "minLength": 1},
			"state":   map[string]any{"type": "string", "minLength": 1},
			"contact": map[string]any{"type": "string", "minLength": 1},
			"email":   map[string]any{"type": "string", "minLength": 1},
			"image":   map[string]any{"type": "string", "pattern": "^data:"},
		},
	},
}

// RecordStore owns the persisted collection. Every mutation reads the whole
// collection, changes it and writes it back whole. Mutations commit one at a
// time in the order they were called; image encoding overlaps with earlier
// commits but never reorders them.
//
// Input is expected to have passed Validate already; the store only enforces
// the presence of an image on Add.
type RecordStore struct {
	items store.Store
	enc   *dataurl.Encoder
	key   string
	now   func() time.Time
	log   zerolog.Logger

	mu   sync.Mutex
	tail chan struct{} // closed when the last queued mutation has committed
}

// Option configures a RecordStore.
type Option func(*RecordStore)

// WithKey overrides the item key (default DefaultKey).
func WithKey(key string) Option {
	return func(r *RecordStore) { r.key = key }
}

// WithEncoder sets the image encoder (default: unbounded).
func WithEncoder(enc *dataurl.Encoder) Option {
	return func(r *RecordStore) { r.enc = enc }
}

// WithClock sets the time source used for new ids.
func WithClock(now func() time.Time) Option {
	return func(r *RecordStore) { r.now = now }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *RecordStore) { r.log = l }
}

func NewRecordStore(items store.Store, opts ...Option) *RecordStore {
	r := &RecordStore{
		items: items,
		enc:   dataurl.NewEncoder(0),
		key:   DefaultKey,
		now:   time.Now,
		log:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns the collection in insertion order. A missing key or a blank
// value is an empty collection; unparseable data fails with ErrCorrupt.
func (r *RecordStore) List(ctx context.Context) ([]School, error) {
	return r.load(ctx)
}

// Add encodes the form's image, assigns a new id and appends the record.
func (r *RecordStore) Add(ctx context.Context, f FormData) (School, error) {
	if f.Image == nil {
		return School{}, fmt.Errorf("add school: %w", ErrImageRequired)
	}
	t := r.enqueue()
	defer t.release()

	image, err := r.enc.Encode(ctx, f.Image)
	if err != nil {
		return School{}, fmt.Errorf("add school: %w", err)
	}
	if err := t.wait(ctx); err != nil {
		return School{}, fmt.Errorf("add school: %w", err)
	}

	schools, err := r.load(ctx)
	if err != nil {
		return School{}, fmt.Errorf("add school: %w", err)
	}
	s := f.apply(School{ID: nextID(schools, r.now()), Image: image})
	schools = append(schools, s)
	if err := r.save(ctx, schools); err != nil {
		return School{}, fmt.Errorf("add school: %w", err)
	}
	r.log.Debug().Int64("id", s.ID).Str("name", s.Name).Msg("school added")
	return s, nil
}

// Update overwrites the record's fields with the form values. Without a new
// image the stored image is kept.
func (r *RecordStore) Update(ctx context.Context, id int64, f FormData) (School, error) {
	t := r.enqueue()
	defer t.release()

	var image string
	if f.Image != nil {
		// Fail fast on unknown ids before paying for the encode.
		schools, err := r.load(ctx)
		if err != nil {
			return School{}, fmt.Errorf("update school %d: %w", id, err)
		}
		if indexOf(schools, id) < 0 {
			return School{}, fmt.Errorf("update school %d: %w", id, ErrNotFound)
		}
		if image, err = r.enc.Encode(ctx, f.Image); err != nil {
			return School{}, fmt.Errorf("update school %d: %w", id, err)
		}
	}
	if err := t.wait(ctx); err != nil {
		return School{}, fmt.Errorf("update school %d: %w", id, err)
	}

	schools, err := r.load(ctx)
	if err != nil {
		return School{}, fmt.Errorf("update school %d: %w", id, err)
	}
	i := indexOf(schools, id)
	if i < 0 {
		return School{}, fmt.Errorf("update school %d: %w", id, ErrNotFound)
	}
	s := f.apply(schools[i])
	if f.Image != nil {
		s.Image = image
	}
	schools[i] = s
	if err := r.save(ctx, schools); err != nil {
		return School{}, fmt.Errorf("update school %d: %w", id, err)
	}
	r.log.Debug().Int64("id", id).Bool("image_replaced", f.Image != nil).Msg("school updated")
	return s, nil
}

// Delete removes the record with id. Deleting an unknown id is not an error;
// the collection is still rewritten.
func (r *RecordStore) Delete(ctx context.Context, id int64) error {
	t := r.enqueue()
	defer t.release()
	if err := t.wait(ctx); err != nil {
		return fmt.Errorf("delete school %d: %w", id, err)
	}

	schools, err := r.load(ctx)
	if err != nil {
		return fmt.Errorf("delete school %d: %w", id, err)
	}
	kept := schools[:0]
	for _, s := range schools {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	removed := len(kept) != len(schools)
	if err := r.save(ctx, kept); err != nil {
		return fmt.Errorf("delete school %d: %w", id, err)
	}
	r.log.Debug().Int64("id", id).Bool("removed", removed).Msg("school deleted")
	return nil
}

// Clear removes the collection's key, leaving the store as if nothing had
// ever been added. It reports whether the key existed.
func (r *RecordStore) Clear(ctx context.Context) (bool, error) {
	t := r.enqueue()
	defer t.release()
	if err := t.wait(ctx); err != nil {
		return false, fmt.Errorf("clear schools: %w", err)
	}

	existed, err := r.items.RemoveItem(ctx, r.key)
	if err != nil {
		return false, fmt.Errorf("clear schools: remove %q: %w", r.key, err)
	}
	r.log.Info().Str("key", r.key).Bool("existed", existed).Msg("schools cleared")
	return existed, nil
}

// turn is a mutation's place in the commit queue.
type turn struct {
	prev <-chan struct{}
	done chan struct{}
}

// enqueue takes the next place in the commit queue.
func (r *RecordStore) enqueue() *turn {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := &turn{prev: r.tail, done: make(chan struct{})}
	r.tail = t.done
	return t
}

// wait blocks until every earlier mutation has committed or given up.
func (t *turn) wait(ctx context.Context) error {
	if t.prev == nil {
		return nil
	}
	select {
	case <-t.prev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// release hands the queue to the next mutation. A turn that stopped waiting
// early still passes the queue on only after its predecessor is done.
func (t *turn) release() {
	if t.prev == nil {
		close(t.done)
		return
	}
	select {
	case <-t.prev:
		close(t.done)
	default:
		go func() {
			<-t.prev
			close(t.done)
		}()
	}
}

func (r *RecordStore) load(ctx context.Context) ([]School, error) {
	raw, ok, err := r.items.GetItem(ctx, r.key)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", r.key, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []School{}, nil
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := schema.Validate(collectionSchema, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	var schools []School
	if err := json.Unmarshal([]byte(raw), &schools); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if schools == nil {
		schools = []School{}
	}
	return schools, nil
}

func (r *RecordStore) save(ctx context.Context, schools []School) error {
	b, err := json.Marshal(schools)
	if err != nil {
		return err
	}
	if err := r.items.SetItem(ctx, r.key, string(b)); err != nil {
		return fmt.Errorf("write %q: %w", r.key, err)
	}
	return nil
}

// nextID is the current time in milliseconds, bumped past the largest stored
// id so ids stay unique when the clock stalls or goes backwards.
func nextID(schools []School, now time.Time) int64 {
	id := now.UnixMilli()
	for _, s := range schools {
		if s.ID >= id {
			id = s.ID + 1
		}
	}
	return id
}

func indexOf(schools []School, id int64) int {
	for i, s := range schools {
		if s.ID == id {
			return i
		}
	}
	return -1
}
