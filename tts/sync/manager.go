// Package sync tracks the spoken word during playback. A ticker polls
// the player clock and maps the position onto the word spans, so the
// highlight follows the audio rather than a separate timer.
package sync

import (
	"sync"
	"time"

	"readanything/tts"
)

// DefaultUpdateRate is how often the player clock is sampled. 50ms
// keeps the highlight within a word of the audio at any speaking rate.
const DefaultUpdateRate = 50 * time.Millisecond

// Manager implements the word synchronizer. Each Start begins a fresh
// tracking pass from the first word; Stop tears it down.
type Manager struct {
	updateRate time.Duration

	mu      sync.Mutex
	spans   []tts.WordSpan
	current int
	stopCh  chan struct{}
	onWord  func(int)
}

func NewManager(updateRate time.Duration) *Manager {
	if updateRate <= 0 {
		updateRate = DefaultUpdateRate
	}
	return &Manager{updateRate: updateRate, current: -1}
}

// OnWord registers the single word callback. It fires once per word
// change, in order, starting from word 0.
func (m *Manager) OnWord(fn func(int)) {
	m.mu.Lock()
	m.onWord = fn
	m.mu.Unlock()
}

// Start begins tracking spans against the player clock. A previous
// pass still running is stopped first.
func (m *Manager) Start(spans []tts.WordSpan, clock tts.PlayerClock) {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
	}
	m.spans = spans
	m.current = -1
	stopCh := make(chan struct{})
	m.stopCh = stopCh
	m.mu.Unlock()

	if len(spans) == 0 {
		return
	}
	go m.loop(spans, clock, stopCh)
}

// Stop halts tracking. The callback will not fire again until the
// next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopCh != nil {
		close(m.stopCh)
		m.stopCh = nil
	}
	m.spans = nil
	m.current = -1
	m.mu.Unlock()
}

// Current returns the index of the word being spoken, or -1 when
// tracking is inactive or playback has not yet reached the first word.
func (m *Manager) Current() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Manager) loop(spans []tts.WordSpan, clock tts.PlayerClock, stopCh chan struct{}) {
	ticker := time.NewTicker(m.updateRate)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !clock.Playing() {
				continue
			}
			m.advance(spans, clock.Position(), stopCh)
		}
	}
}

// advance emits every word between the last reported index and the
// one under the clock position, so no word is skipped even if a tick
// straddles several short words.
func (m *Manager) advance(spans []tts.WordSpan, pos time.Duration, stopCh chan struct{}) {
	target := wordAt(spans, pos)
	if target < 0 {
		return
	}

	m.mu.Lock()
	if m.stopCh != stopCh {
		m.mu.Unlock()
		return
	}
	from := m.current
	if target <= from {
		m.mu.Unlock()
		return
	}
	m.current = target
	fn := m.onWord
	m.mu.Unlock()

	if fn == nil {
		return
	}
	for i := from + 1; i <= target; i++ {
		fn(i)
	}
}

// wordAt maps a clock position onto a span index. Positions before
// the first span report -1; positions past the end stick to the last
// word.
func wordAt(spans []tts.WordSpan, pos time.Duration) int {
	if len(spans) == 0 || pos < spans[0].Start {
		return -1
	}
	for i, s := range spans {
		if pos < s.End {
			return i
		}
	}
	return len(spans) - 1
}
