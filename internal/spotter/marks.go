package spotter

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrIndexOutOfRange rejects a mark edit referencing a position that
// does not exist. The command fails; store state is unchanged.
var ErrIndexOutOfRange = errors.New("spotter: mark index out of range")

// Mark is a confirmed, persistent hit record. Marks are referenced
// externally by positional index (0..N-1 in creation order); the ID is
// an additional opaque identity that survives re-scoring and position
// correction but not deletion.
type Mark struct {
	ID        string
	PixelX    float64 // centroid in composite pixel space
	PixelY    float64
	XPct      float64 // surface-relative position, 0–100
	YPct      float64
	Ring      int // RingOuter when outside all rings
	CreatedAt time.Time
}

// Resolver converts a pixel position into its surface-relative
// position and ring value under the current calibration. The engine
// supplies one per mutation so the store stays free of geometry.
type Resolver interface {
	Resolve(pixelX, pixelY float64) (xPct, yPct float64, ring int)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(pixelX, pixelY float64) (xPct, yPct float64, ring int)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(pixelX, pixelY float64) (float64, float64, int) {
	return f(pixelX, pixelY)
}

// MarkStore is the ordered, concurrency-safe collection of confirmed
// marks. Detector appends and user edits are serialized; after any
// single mutation completes, indices are a contiguous 0..N-1 sequence
// in creation order.
type MarkStore struct {
	mu    sync.Mutex
	marks []Mark
}

// NewMarkStore returns an empty store.
func NewMarkStore() *MarkStore {
	return &MarkStore{}
}

// Append promotes a candidate centroid to a mark at the end of the
// sequence and returns a copy of it.
func (s *MarkStore) Append(pixelX, pixelY float64, r Resolver) Mark {
	xPct, yPct, ring := r.Resolve(pixelX, pixelY)
	m := Mark{
		ID:        uuid.NewString(),
		PixelX:    pixelX,
		PixelY:    pixelY,
		XPct:      xPct,
		YPct:      yPct,
		Ring:      ring,
		CreatedAt: time.Now(),
	}
	s.mu.Lock()
	s.marks = append(s.marks, m)
	s.mu.Unlock()
	return m
}

// Correct moves the mark at index to a new pixel position, recomputing
// its surface position and ring value in place. Index, identity and
// creation order are preserved.
func (s *MarkStore) Correct(index int, pixelX, pixelY float64, r Resolver) error {
	xPct, yPct, ring := r.Resolve(pixelX, pixelY)
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.marks) {
		return ErrIndexOutOfRange
	}
	m := &s.marks[index]
	m.PixelX = pixelX
	m.PixelY = pixelY
	m.XPct = xPct
	m.YPct = yPct
	m.Ring = ring
	return nil
}

// Copy duplicates the mark at index, appending the duplicate at the
// end with a fresh identity.
func (s *MarkStore) Copy(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.marks) {
		return ErrIndexOutOfRange
	}
	dup := s.marks[index]
	dup.ID = uuid.NewString()
	dup.CreatedAt = time.Now()
	s.marks = append(s.marks, dup)
	return nil
}

// Delete removes the mark at index. Marks at higher positions shift
// down by one to restore contiguity; clients holding stale indices for
// later marks must re-resolve them.
func (s *MarkStore) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.marks) {
		return ErrIndexOutOfRange
	}
	s.marks = append(s.marks[:index], s.marks[index+1:]...)
	return nil
}

// Rescore recomputes every mark's surface position and ring value from
// its stored pixel position. Called at publish time after ring geometry
// changes; stored pixel positions are never mutated by re-scoring.
func (s *MarkStore) Rescore(r Resolver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.marks {
		m := &s.marks[i]
		m.XPct, m.YPct, m.Ring = r.Resolve(m.PixelX, m.PixelY)
	}
}

// Snapshot returns a consistent copy of the mark list.
func (s *MarkStore) Snapshot() []Mark {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Mark, len(s.marks))
	copy(out, s.marks)
	return out
}

// Len returns the number of marks.
func (s *MarkStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.marks)
}

// RingSummary aggregates ring values for display. Each mark
// contributes at most maxRing to the sum; the second return counts
// marks whose raw value exceeded the cap (the elevens on rifle faces).
func (s *MarkStore) RingSummary(maxRing int) (sum, overCap int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.marks {
		v := m.Ring
		if maxRing > 0 && v > maxRing {
			v = maxRing
			overCap++
		}
		sum += v
	}
	return sum, overCap
}
