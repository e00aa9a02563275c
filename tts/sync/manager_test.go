package sync

import (
	"sync"
	"testing"
	"time"

	"readanything/tts"
)

type fakeClock struct {
	mu      sync.Mutex
	pos     time.Duration
	playing bool
}

func (c *fakeClock) set(pos time.Duration, playing bool) {
	c.mu.Lock()
	c.pos = pos
	c.playing = playing
	c.mu.Unlock()
}

func (c *fakeClock) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos
}

func (c *fakeClock) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

type wordLog struct {
	mu    sync.Mutex
	words []int
}

func (l *wordLog) add(i int) {
	l.mu.Lock()
	l.words = append(l.words, i)
	l.mu.Unlock()
}

func (l *wordLog) snapshot() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.words...)
}

func testSpans() []tts.WordSpan {
	return []tts.WordSpan{
		{Index: 0, Start: 0, End: 100 * time.Millisecond},
		{Index: 1, Start: 100 * time.Millisecond, End: 250 * time.Millisecond},
		{Index: 2, Start: 250 * time.Millisecond, End: 400 * time.Millisecond},
	}
}

func waitWords(t *testing.T, log *wordLog, want []int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := log.snapshot()
		if len(got) == len(want) {
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("words = %v, want %v", got, want)
				}
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("words = %v, want %v", got, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTracksClockThroughWords(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	defer m.Stop()

	clock.set(10*time.Millisecond, true)
	waitWords(t, &log, []int{0})

	clock.set(120*time.Millisecond, true)
	waitWords(t, &log, []int{0, 1})

	clock.set(300*time.Millisecond, true)
	waitWords(t, &log, []int{0, 1, 2})
}

func TestNoSkippedWords(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	defer m.Stop()

	// Jump straight past the second word; both indices still arrive
	// in order.
	clock.set(300*time.Millisecond, true)
	waitWords(t, &log, []int{0, 1, 2})
}

func TestNeverRunsAheadOfClock(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	defer m.Stop()

	clock.set(50*time.Millisecond, true)
	waitWords(t, &log, []int{0})

	// Hold the clock inside the first word and confirm nothing more
	// fires.
	time.Sleep(50 * time.Millisecond)
	waitWords(t, &log, []int{0})
	if got := m.Current(); got != 0 {
		t.Errorf("Current() = %d, want 0", got)
	}
}

func TestPausedClockFreezesHighlight(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	defer m.Stop()

	// Position advances but the clock reports not playing.
	clock.set(300*time.Millisecond, false)
	time.Sleep(50 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Errorf("words emitted while paused: %v", got)
	}
}

func TestRestartBeginsAtWordZero(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	clock.set(300*time.Millisecond, true)
	waitWords(t, &log, []int{0, 1, 2})
	m.Stop()

	// Second pass replays from the first word.
	clock.set(10*time.Millisecond, true)
	m.Start(testSpans(), clock)
	defer m.Stop()
	waitWords(t, &log, []int{0, 1, 2, 0})
}

func TestStopSilencesCallback(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{}
	var log wordLog
	m.OnWord(log.add)

	m.Start(testSpans(), clock)
	clock.set(10*time.Millisecond, true)
	waitWords(t, &log, []int{0})

	m.Stop()
	if got := m.Current(); got != -1 {
		t.Errorf("Current() after Stop = %d, want -1", got)
	}

	clock.set(300*time.Millisecond, true)
	time.Sleep(50 * time.Millisecond)
	waitWords(t, &log, []int{0})
}

func TestStartWithNoSpans(t *testing.T) {
	m := NewManager(5 * time.Millisecond)
	clock := &fakeClock{playing: true, pos: time.Second}
	var log wordLog
	m.OnWord(log.add)

	m.Start(nil, clock)
	time.Sleep(30 * time.Millisecond)
	if got := log.snapshot(); len(got) != 0 {
		t.Errorf("words emitted with no spans: %v", got)
	}
	m.Stop()
}

func TestWordAt(t *testing.T) {
	spans := testSpans()
	tests := []struct {
		pos  time.Duration
		want int
	}{
		{0, 0},
		{99 * time.Millisecond, 0},
		{100 * time.Millisecond, 1},
		{260 * time.Millisecond, 2},
		{time.Hour, 2},
	}
	for _, tt := range tests {
		if got := wordAt(spans, tt.pos); got != tt.want {
			t.Errorf("wordAt(%v) = %d, want %d", tt.pos, got, tt.want)
		}
	}
	if got := wordAt(nil, 0); got != -1 {
		t.Errorf("wordAt(nil) = %d, want -1", got)
	}
}
