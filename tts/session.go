package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// SessionConfig tunes the playback session.
type SessionConfig struct {
	// SynthesisTimeout bounds every adapter synthesis call. Exceeding it
	// surfaces ErrNetwork for network engines instead of hanging the
	// session in Preparing.
	SynthesisTimeout time.Duration

	// StopTimeout bounds how long a Stop command waits for the playback
	// goroutine to wind down.
	StopTimeout time.Duration

	// CacheEnabled consults and fills the artifact cache.
	CacheEnabled bool
}

// DefaultSessionConfig returns the timeouts used by the CLI.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		SynthesisTimeout: 30 * time.Second,
		StopTimeout:      2 * time.Second,
		CacheEnabled:     true,
	}
}

// Session coordinates engine, player and synchronizer under GUI commands.
// Exactly one request is in flight at a time: a Play issued while the
// session is busy performs an implicit Stop first, never queueing.
type Session struct {
	registry *Registry
	player   Player
	synchro  Synchronizer
	cache    Cache
	cfg      SessionConfig

	machine *StateMachine

	// cmdMu serializes Play/Stop/Shutdown. The playback goroutine never
	// takes it, so a stop can always make progress.
	cmdMu sync.Mutex

	runCancel context.CancelFunc
	runDone   chan struct{}

	// gen identifies the playback goroutine allowed to touch the state
	// machine, player and synchronizer. A goroutine that overruns the
	// stop window is orphaned by bumping the generation, so its late
	// transitions cannot corrupt a newer session.
	gen atomic.Uint64

	cbMu    sync.RWMutex
	onWord  func(int)
	onState func(SessionState)
	onError func(error)
}

// NewSession wires a session over discovered voices, an audio player and a
// word synchronizer. The cache may be nil.
func NewSession(registry *Registry, player Player, synchro Synchronizer, cache Cache, cfg SessionConfig) *Session {
	if cfg.SynthesisTimeout <= 0 {
		cfg.SynthesisTimeout = DefaultSessionConfig().SynthesisTimeout
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultSessionConfig().StopTimeout
	}
	s := &Session{
		registry: registry,
		player:   player,
		synchro:  synchro,
		cache:    cache,
		cfg:      cfg,
		machine:  NewStateMachine(),
	}
	synchro.OnWord(s.notifyWord)
	return s
}

// State returns the current session state.
func (s *Session) State() SessionState { return s.machine.Current() }

// OnWord registers the highlight callback. The host owns rendering.
func (s *Session) OnWord(fn func(int)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onWord = fn
}

// OnStateChange registers a callback for session state changes.
func (s *Session) OnStateChange(fn func(SessionState)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onState = fn
}

// OnError registers a callback for playback-path errors.
func (s *Session) OnError(fn func(error)) {
	s.cbMu.Lock()
	defer s.cbMu.Unlock()
	s.onError = fn
}

// Play starts speaking the request. Validation failures (empty text,
// unknown voice) are returned synchronously; synthesis and playback run on
// a background goroutine and report through the error callback. A Play
// while the session is busy stops the current playback first.
func (s *Session) Play(req Request) error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()

	req = req.Clamp()
	if len(Tokenize(req.Text)) == 0 {
		return ErrNoText
	}
	voice, err := s.registry.Resolve(req.VoiceID)
	if err != nil {
		return err
	}
	eng, err := s.registry.EngineFor(voice)
	if err != nil {
		return err
	}

	if s.machine.Current() != StateIdle {
		s.stopLocked()
	}

	if !s.machine.Transition(StatePreparing) {
		return fmt.Errorf("cannot start playback from state %s", s.machine.Current())
	}
	s.notifyState(StatePreparing)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.runCancel = cancel
	s.runDone = done

	log.Debug("session starting", "engine", eng.Kind(), "voice", voice.ID, "wpm", req.WPM, "words", len(Tokenize(req.Text)))
	go s.run(ctx, done, eng, req, s.gen.Add(1))
	return nil
}

// Stop halts the session, wherever it is in its lifecycle, and returns once
// the state machine is back at Idle (bounded by StopTimeout).
func (s *Session) Stop() error {
	s.cmdMu.Lock()
	defer s.cmdMu.Unlock()
	return s.stopLocked()
}

func (s *Session) stopLocked() error {
	if s.machine.Current() == StateIdle {
		return nil
	}

	if s.machine.Transition(StateStopping) {
		s.notifyState(StateStopping)
	}

	if s.runCancel != nil {
		s.runCancel()
	}
	// Interrupt a blocking device write as well as the in-flight fetch.
	_ = s.player.Stop()

	if s.runDone != nil {
		select {
		case <-s.runDone:
		case <-time.After(s.cfg.StopTimeout):
			// Orphan the overrunning goroutine before forcing Idle so
			// it cannot consume a later session's transitions.
			log.Warn("playback goroutine did not stop within the window")
			s.gen.Add(1)
		}
	}

	// The goroutine lands in Idle on its way out; if it was already gone
	// this transition closes the loop.
	if s.machine.Current() != StateIdle {
		s.machine.Transition(StateIdle)
		s.notifyState(StateIdle)
	}
	s.runCancel = nil
	s.runDone = nil
	return nil
}

// run is the playback goroutine: synthesize, play, synchronize, tear down.
// Every exit path releases the artifact and, while the goroutine still owns
// its generation, returns the machine to Idle.
func (s *Session) run(ctx context.Context, done chan struct{}, eng Engine, req Request, gen uint64) {
	defer close(done)

	audio, err := s.synthesize(ctx, eng, req)
	if err != nil {
		if !errors.Is(err, ErrStopped) && s.owns(gen) {
			log.Error("synthesis failed", "engine", eng.Kind(), "err", err)
			s.notifyError(err)
		}
		s.toIdle(gen)
		return
	}

	if ctx.Err() != nil {
		// Stop arrived between synthesis and playback.
		_ = audio.Release()
		s.toIdle(gen)
		return
	}

	spans := audio.Words
	words := Tokenize(req.Text)
	if !ValidSpans(spans, len(words), audio.Duration) {
		spans = EstimateSpans(req.Text, audio.Duration)
	}

	if !s.owns(gen) || !s.machine.Transition(StatePlaying) {
		_ = audio.Release()
		s.toIdle(gen)
		return
	}
	s.notifyState(StatePlaying)

	if err := s.player.Play(audio); err != nil {
		_ = audio.Release()
		s.notifyError(NewEngineError(eng.Kind(), "play", fmt.Errorf("%w: %v", ErrPlaybackDevice, err)))
		s.toIdle(gen)
		return
	}

	s.synchro.Start(spans, s.player)

	select {
	case <-s.player.Done():
	case <-ctx.Done():
	}

	if s.owns(gen) {
		s.synchro.Stop()
		_ = s.player.Stop()
	}
	_ = audio.Release()
	s.toIdle(gen)
}

// synthesize produces the artifact, consulting the cache first. The adapter
// call runs under the synthesis timeout; a cancelled context maps to
// ErrStopped so stop paths stay quiet.
func (s *Session) synthesize(ctx context.Context, eng Engine, req Request) (*Audio, error) {
	key := CacheKey(eng.Kind(), req.VoiceID, req.WPM, req.Text)
	if s.cfg.CacheEnabled && s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			if audio, err := DecodeAudio(data); err == nil {
				log.Debug("cache hit", "engine", eng.Kind(), "bytes", len(audio.Data))
				return audio, nil
			}
			log.Warn("cache entry corrupt, discarding", "key", key)
		}
	}

	synthCtx, cancel := context.WithTimeout(ctx, s.cfg.SynthesisTimeout)
	defer cancel()

	audio, err := eng.Synthesize(synthCtx, req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrStopped
		}
		return nil, err
	}

	if s.cfg.CacheEnabled && s.cache != nil && len(audio.TempFiles()) == 0 {
		if data, err := EncodeAudio(audio); err == nil {
			if err := s.cache.Put(key, data); err != nil {
				log.Debug("cache store failed", "err", err)
			}
		}
	}
	return audio, nil
}

// owns reports whether the goroutine holding gen is still the session's
// current playback goroutine.
func (s *Session) owns(gen uint64) bool {
	return s.gen.Load() == gen
}

func (s *Session) toIdle(gen uint64) {
	if !s.owns(gen) {
		return
	}
	if s.machine.Current() != StateIdle {
		s.machine.Transition(StateIdle)
		s.notifyState(StateIdle)
	}
}

func (s *Session) notifyWord(index int) {
	s.cbMu.RLock()
	fn := s.onWord
	s.cbMu.RUnlock()
	if fn != nil {
		fn(index)
	}
}

func (s *Session) notifyState(state SessionState) {
	s.cbMu.RLock()
	fn := s.onState
	s.cbMu.RUnlock()
	if fn != nil {
		fn(state)
	}
}

func (s *Session) notifyError(err error) {
	s.cbMu.RLock()
	fn := s.onError
	s.cbMu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// CacheKey fingerprints a synthesis request. Identical text spoken by the
// same voice at the same rate always produces the same key.
func CacheKey(engine EngineKind, voiceID string, wpm int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%d|%s", engine, voiceID, wpm, text)
	return hex.EncodeToString(h.Sum(nil))
}

// cachedAudio is the gob envelope stored in the artifact cache.
type cachedAudio struct {
	Data       []byte
	SampleRate int
	Channels   int
	Words      []WordSpan
}

// EncodeAudio serializes an artifact for the cache. Artifacts with attached
// temp files are never encoded; callers check first.
func EncodeAudio(a *Audio) ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(cachedAudio{
		Data:       a.Data,
		SampleRate: a.SampleRate,
		Channels:   a.Channels,
		Words:      a.Words,
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeAudio rebuilds a fresh artifact from a cache entry.
func DecodeAudio(data []byte) (*Audio, error) {
	var c cachedAudio
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&c); err != nil {
		return nil, err
	}
	if c.SampleRate <= 0 || c.Channels <= 0 || len(c.Data) == 0 {
		return nil, errors.New("invalid cached audio")
	}
	audio := NewAudio(c.Data, c.SampleRate, c.Channels)
	audio.Words = c.Words
	return audio, nil
}
