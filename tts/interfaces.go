package tts

import (
	"context"
	"time"
)

// Engine is the uniform adapter contract over a TTS backend. Adapters turn
// a request into a finished audio artifact; streaming backends collect their
// stream into the artifact before returning.
type Engine interface {
	// Kind identifies the backend.
	Kind() EngineKind

	// Available probes whether the backend can synthesize right now:
	// binary present, package importable, credential set. The probe must
	// respect the context deadline and never block past it.
	Available(ctx context.Context) bool

	// Voices enumerates the voices the backend offers. Implementations
	// respect the context deadline; an unreachable backend returns an
	// error rather than hanging.
	Voices(ctx context.Context) ([]Voice, error)

	// Synthesize converts the request into an audio artifact. Failures
	// are classified against the package error taxonomy. Cancelling the
	// context abandons the synthesis; any partial artifact and temp
	// files are cleaned up before returning.
	Synthesize(ctx context.Context, req Request) (*Audio, error)
}

// Player renders one audio artifact at a time and exposes the playback
// clock the synchronizer follows.
type Player interface {
	// Play starts playback of the artifact. It returns ErrPlaybackDevice
	// (wrapped) if the output device cannot be opened.
	Play(audio *Audio) error

	// Stop halts playback immediately. Safe to call when idle.
	Stop() error

	// Position returns the current playback position.
	Position() time.Duration

	// Playing reports whether audio is currently being rendered.
	Playing() bool

	// Done returns a channel closed when the current playback finishes
	// naturally. Each Play call produces a fresh channel.
	Done() <-chan struct{}
}

// PlayerClock is the read-only view of a player the synchronizer needs.
type PlayerClock interface {
	Position() time.Duration
	Playing() bool
}

// Synchronizer emits word-active events in time with the playback clock.
type Synchronizer interface {
	// Start begins tracking. The span list covers the exact text that was
	// dispatched; tracking always begins at word 0.
	Start(spans []WordSpan, clock PlayerClock)

	// Stop halts tracking immediately. A stopped synchronizer emits no
	// further events until the next Start.
	Stop()

	// OnWord registers the highlight callback.
	OnWord(fn func(index int))
}

// Cache stores synthesized audio keyed by request fingerprint. Implemented
// by the cache package; the session treats it as optional.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, data []byte) error
}
