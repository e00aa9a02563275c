package audio

import (
	"sync"
	"time"

	"readanything/tts"
)

// TimedPlayer simulates playback on a wall clock without touching an
// audio device. It stands in for the real player when no output device
// can be opened, keeping word progress usable on headless machines.
type TimedPlayer struct {
	mu      sync.Mutex
	start   time.Time
	total   time.Duration
	playing bool
	done    chan struct{}
	timer   *time.Timer
}

func NewTimedPlayer() *TimedPlayer {
	done := make(chan struct{})
	close(done)
	return &TimedPlayer{done: done}
}

func (p *TimedPlayer) Play(a *tts.Audio) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()

	p.start = time.Now()
	p.total = a.Duration
	p.playing = true
	p.done = make(chan struct{})

	done := p.done
	p.timer = time.AfterFunc(a.Duration, func() {
		p.mu.Lock()
		if p.done == done {
			p.playing = false
			close(done)
		}
		p.mu.Unlock()
	})
	return nil
}

func (p *TimedPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.haltLocked()
	return nil
}

func (p *TimedPlayer) haltLocked() {
	if !p.playing {
		return
	}
	p.playing = false
	if p.timer != nil {
		p.timer.Stop()
	}
	close(p.done)
}

func (p *TimedPlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return 0
	}
	pos := time.Since(p.start)
	if pos > p.total {
		pos = p.total
	}
	return pos
}

func (p *TimedPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *TimedPlayer) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}
