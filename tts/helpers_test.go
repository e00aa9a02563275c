package tts

import (
	"context"
	"sync"
	"time"
)

// fakeEngine is a configurable in-package engine double.
type fakeEngine struct {
	kind      EngineKind
	available bool
	voices    []Voice
	voiceErr  error

	synthDelay   time.Duration
	ignoreCancel bool
	synthErr     error
	audio        func(req Request) *Audio

	mu          sync.Mutex
	synthCalls  int
	cancelsSeen int

	probeDelay        time.Duration
	probeIgnoreCancel bool
}

func (f *fakeEngine) Kind() EngineKind { return f.kind }

func (f *fakeEngine) Available(ctx context.Context) bool {
	if f.probeDelay > 0 && f.probeIgnoreCancel {
		// Models a probe that never checks its context.
		time.Sleep(f.probeDelay)
	} else if f.probeDelay > 0 {
		select {
		case <-time.After(f.probeDelay):
		case <-ctx.Done():
			return false
		}
	}
	return f.available
}

func (f *fakeEngine) Voices(ctx context.Context) ([]Voice, error) {
	if f.voiceErr != nil {
		return nil, f.voiceErr
	}
	return f.voices, nil
}

func (f *fakeEngine) Synthesize(ctx context.Context, req Request) (*Audio, error) {
	f.mu.Lock()
	f.synthCalls++
	delay := f.synthDelay
	ignoreCancel := f.ignoreCancel
	f.mu.Unlock()

	if delay > 0 && ignoreCancel {
		// Models a misbehaving adapter that never checks its context.
		time.Sleep(delay)
	} else if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelsSeen++
			f.mu.Unlock()
			return nil, ctx.Err()
		}
	}
	if f.synthErr != nil {
		return nil, f.synthErr
	}
	if f.audio != nil {
		return f.audio(req), nil
	}
	// 100ms of silence at 22050Hz mono.
	return NewAudio(make([]byte, 4410), 22050, 1), nil
}

func (f *fakeEngine) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.synthCalls
}

func (f *fakeEngine) setDelay(d time.Duration, ignoreCancel bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.synthDelay = d
	f.ignoreCancel = ignoreCancel
}

// fakePlayer is an in-package player double with a settable clock.
type fakePlayer struct {
	mu       sync.Mutex
	playing  bool
	position time.Duration
	done     chan struct{}
	playErr  error
	plays    int
	stops    int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{done: make(chan struct{})}
}

func (p *fakePlayer) Play(audio *Audio) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playErr != nil {
		return p.playErr
	}
	p.plays++
	p.playing = true
	p.position = 0
	p.done = make(chan struct{})
	return nil
}

func (p *fakePlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	if p.playing {
		p.playing = false
		close(p.done)
	}
	return nil
}

func (p *fakePlayer) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.playing = false
		close(p.done)
	}
}

func (p *fakePlayer) stopCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) setPosition(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = d
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *fakePlayer) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// fakeSynchronizer records start/stop calls.
type fakeSynchronizer struct {
	mu     sync.Mutex
	starts int
	stops  int
	spans  []WordSpan
	onWord func(int)
}

func (f *fakeSynchronizer) Start(spans []WordSpan, clock PlayerClock) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.spans = spans
}

func (f *fakeSynchronizer) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
}

func (f *fakeSynchronizer) OnWord(fn func(int)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onWord = fn
}

func (f *fakeSynchronizer) lastSpans() []WordSpan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.spans
}

// memCache is a trivial in-memory Cache double.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.data[key]
	return d, ok
}

func (c *memCache) Put(key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

// waitFor polls cond until it is true or the deadline passes.
func waitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}
