package audio

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"readanything/tts"
)

// Player drives the system audio device through a shared oto context.
// One clip plays at a time; starting a new clip stops the current one.
type Player struct {
	ctx *oto.Context

	mu  sync.Mutex
	cur *playback
}

type playback struct {
	player *oto.Player
	src    *countingReader
	total  time.Duration

	done     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// countingReader tracks how many bytes the device has pulled so the
// play position can be derived from consumption minus the unplayed
// buffer.
type countingReader struct {
	r io.Reader
	n atomic.Int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n.Add(int64(n))
	return n, err
}

// NewPlayer opens the device context. Opening fails when no output
// device is usable, so callers can fall back to a silent player.
func NewPlayer() (*Player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   DeviceSampleRate,
		ChannelCount: DeviceChannels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("open audio device: %w", err)
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return nil, fmt.Errorf("audio device not ready")
	}
	return &Player{ctx: ctx}, nil
}

func (p *Player) Play(a *tts.Audio) error {
	pcm := Convert(a)
	if len(pcm) == 0 {
		return fmt.Errorf("empty audio clip")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		p.cur.halt()
	}

	src := &countingReader{r: bytes.NewReader(pcm)}
	pb := &playback{
		player: p.ctx.NewPlayer(src),
		src:    src,
		total:  deviceDuration(len(pcm)),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	p.cur = pb
	pb.player.Play()
	go pb.watch()

	log.Debug("playback started", "duration", pb.total, "bytes", len(pcm))
	return nil
}

// watch closes done once the device drains the clip.
func (pb *playback) watch() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	started := false
	for {
		select {
		case <-pb.stop:
			return
		case <-ticker.C:
			if pb.player.IsPlaying() {
				started = true
				continue
			}
			if started {
				pb.finish()
				return
			}
		}
	}
}

func (pb *playback) halt() {
	pb.stopOnce.Do(func() {
		close(pb.stop)
		pb.player.Pause()
		if err := pb.player.Close(); err != nil {
			log.Debug("player close", "error", err)
		}
	})
	pb.finish()
}

func (pb *playback) finish() {
	pb.doneOnce.Do(func() { close(pb.done) })
}

func (pb *playback) position() time.Duration {
	consumed := pb.src.n.Load() - int64(pb.player.BufferedSize())
	if consumed < 0 {
		consumed = 0
	}
	pos := deviceDuration(int(consumed))
	if pos > pb.total {
		pos = pb.total
	}
	return pos
}

func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur != nil {
		p.cur.halt()
	}
	return nil
}

func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return 0
	}
	return p.cur.position()
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		return false
	}
	select {
	case <-p.cur.done:
		return false
	default:
		return p.cur.player.IsPlaying()
	}
}

func (p *Player) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cur == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return p.cur.done
}
