package spotter

import (
	"sync"
	"sync/atomic"

	"github.com/spotterhq/spotter/internal/monitoring"
)

// DefaultSubscriberBuffer is the per-subscriber update queue depth.
// A subscriber that falls further behind starts losing updates; every
// published bundle is a full snapshot, so a dropped one is recovered by
// the next.
const DefaultSubscriberBuffer = 16

// MarkView is one mark as delivered to subscribers.
type MarkView struct {
	Index     int     `json:"index"`
	ID        string  `json:"id"`
	XPct      float64 `json:"x"`
	YPct      float64 `json:"y"`
	PixelX    float64 `json:"pixel_x"`
	PixelY    float64 `json:"pixel_y"`
	Ring      int     `json:"ring"`
	RingLabel string  `json:"ring_label"`
}

// MarkSize is the fractional overlay size of a munition hole on the
// surface, derived from munition diameter and calibration scale.
type MarkSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Update is one published state bundle: the full settings snapshot,
// workflow state, overlays, the mark list and aggregate statistics.
// Bundles are self-contained snapshots, not diffs.
type Update struct {
	Settings Settings          `json:"settings"`
	State    string            `json:"state"`
	Infos    map[string]string `json:"infos,omitempty"`
	Progress *int              `json:"progress,omitempty"` // 0–100 during COLLECT
	Picker   *FracRect         `json:"picker,omitempty"`   // PREVIEW only
	Rings    []FracRect        `json:"rings,omitempty"`
	Marks    []MarkView        `json:"marks"`
	MarkSize *MarkSize         `json:"mark_size,omitempty"`
	RingSum  int               `json:"ring_sum"`
	OverCap  int               `json:"over_cap"` // marks capped in the sum
	Fault    string            `json:"fault,omitempty"`
}

// Publisher fans state bundles out to any number of subscribers. The
// engine publishes without knowing subscriber count or identity; slow
// subscribers drop updates rather than stalling the pipeline.
type Publisher struct {
	mu      sync.RWMutex
	subs    map[int]chan Update
	nextID  int
	dropped atomic.Uint64
	sent    atomic.Uint64
}

// NewPublisher returns an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{subs: make(map[int]chan Update)}
}

// Subscribe registers a new subscriber and returns its update channel
// plus a cancel function. Cancel is idempotent and closes the channel.
func (p *Publisher) Subscribe() (<-chan Update, func()) {
	ch := make(chan Update, DefaultSubscriberBuffer)
	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	count := len(p.subs)
	p.mu.Unlock()
	monitoring.Logf("[Publisher] subscriber %d attached (total: %d)", id, count)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			if _, ok := p.subs[id]; ok {
				delete(p.subs, id)
				close(ch)
			}
			remaining := len(p.subs)
			p.mu.Unlock()
			monitoring.Logf("[Publisher] subscriber %d detached (remaining: %d)", id, remaining)
		})
	}
	return ch, cancel
}

// Publish delivers an update to every subscriber. Full channels drop
// the update for that subscriber only.
func (p *Publisher) Publish(u Update) {
	p.mu.RLock()
	for _, ch := range p.subs {
		select {
		case ch <- u:
			p.sent.Add(1)
		default:
			p.dropped.Add(1)
		}
	}
	p.mu.RUnlock()
}

// SubscriberCount returns the number of attached subscribers.
func (p *Publisher) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// Dropped returns the total updates lost to slow subscribers.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}
