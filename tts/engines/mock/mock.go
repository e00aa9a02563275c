// Package mock provides a deterministic engine used in tests and for
// exercising the pipeline without a real synthesizer installed.
package mock

import (
	"context"
	"sync"
	"time"

	"readanything/tts"
)

// sampleRate matches the most common local engine output.
const sampleRate = 22050

// Engine produces silent PCM sized to the requested speaking rate.
type Engine struct {
	mu        sync.Mutex
	delay     time.Duration
	err       error
	available bool
	calls     int
}

func New() *Engine {
	return &Engine{available: true}
}

func (e *Engine) Kind() tts.EngineKind { return tts.EngineMock }

func (e *Engine) Available(ctx context.Context) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.available
}

func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	return []tts.Voice{
		{Engine: tts.EngineMock, ID: "mock-en", Name: "Mock English", Locale: "en-US", Offline: true},
		{Engine: tts.EngineMock, ID: "mock-de", Name: "Mock German", Locale: "de-DE", Gender: "female", Offline: true},
	}, nil
}

func (e *Engine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	e.mu.Lock()
	e.calls++
	delay, err := e.delay, e.err
	e.mu.Unlock()

	if err != nil {
		return nil, tts.NewEngineError(tts.EngineMock, "synthesize", err)
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	req = req.Clamp()
	words := len(tts.Tokenize(req.Text))
	if words == 0 {
		words = 1
	}
	// Silence sized as if each word took its share of a minute at the
	// requested rate.
	seconds := float64(words) * 60.0 / float64(req.WPM)
	samples := int(seconds * sampleRate)
	if samples < sampleRate/10 {
		samples = sampleRate / 10
	}
	return tts.NewAudio(make([]byte, samples*2), sampleRate, 1), nil
}

// SetDelay makes synthesis take this long, honoring cancellation.
func (e *Engine) SetDelay(d time.Duration) {
	e.mu.Lock()
	e.delay = d
	e.mu.Unlock()
}

// SetError makes synthesis fail with err until cleared with nil.
func (e *Engine) SetError(err error) {
	e.mu.Lock()
	e.err = err
	e.mu.Unlock()
}

// SetAvailable toggles the availability probe.
func (e *Engine) SetAvailable(ok bool) {
	e.mu.Lock()
	e.available = ok
	e.mu.Unlock()
}

// Calls reports how many synthesis requests were made.
func (e *Engine) Calls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}
