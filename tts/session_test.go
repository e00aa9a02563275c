package tts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func newTestSession(t *testing.T, eng *fakeEngine, player *fakePlayer, cache Cache) (*Session, *fakeSynchronizer) {
	t.Helper()

	reg := NewRegistry([]Engine{eng}, DefaultRegistryConfig())
	reg.Discover(context.Background())

	synchro := &fakeSynchronizer{}
	cfg := SessionConfig{
		SynthesisTimeout: 2 * time.Second,
		StopTimeout:      time.Second,
		CacheEnabled:     cache != nil,
	}
	return NewSession(reg, player, synchro, cache, cfg), synchro
}

func availableFake() *fakeEngine {
	return &fakeEngine{
		kind:      EngineSystem,
		available: true,
		voices:    []Voice{testVoice(EngineSystem, "alex")},
	}
}

// TestPlayToCompletion tests the happy path: Preparing, Playing, then back
// to Idle when the audio runs out, with the artifact released.
func TestPlayToCompletion(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	player := newFakePlayer()
	session, synchro := newTestSession(t, eng, player, nil)

	var mu sync.Mutex
	var states []SessionState
	session.OnStateChange(func(s SessionState) {
		mu.Lock()
		states = append(states, s)
		mu.Unlock()
	})

	if err := session.Play(Request{Text: "hello there world", VoiceID: "alex", WPM: 150}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if !waitFor(time.Second, func() bool { return player.Playing() }) {
		t.Fatal("playback never started")
	}
	player.finish()

	if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
		t.Fatalf("session stuck in %s", session.State())
	}
	if OpenArtifacts() != before {
		t.Errorf("artifact leaked: %d open, want %d", OpenArtifacts(), before)
	}
	if synchro.lastSpans() == nil {
		t.Error("synchronizer never received spans")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []SessionState{StatePreparing, StatePlaying, StateIdle}
	if len(states) != len(want) {
		t.Fatalf("state sequence %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("state sequence %v, want %v", states, want)
		}
	}
}

// TestPlayThenImmediateStop tests that Stop lands the session in Idle
// within the bounded window and no artifact remains open, even when the
// synthesis is still in flight.
func TestPlayThenImmediateStop(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	eng.synthDelay = 10 * time.Second
	player := newFakePlayer()
	session, _ := newTestSession(t, eng, player, nil)

	if err := session.Play(Request{Text: "some long text", VoiceID: "alex"}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if session.State() != StatePreparing {
		t.Fatalf("state = %s, want preparing", session.State())
	}

	start := time.Now()
	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop took %v, beyond the bounded window", elapsed)
	}
	if session.State() != StateIdle {
		t.Errorf("state after Stop = %s, want idle", session.State())
	}
	if !waitFor(time.Second, func() bool { return OpenArtifacts() == before }) {
		t.Errorf("artifact open after Stop: %d, want %d", OpenArtifacts(), before)
	}
}

// TestStopDuringPlayback tests the Playing -> Stopping -> Idle path.
func TestStopDuringPlayback(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	player := newFakePlayer()
	session, synchro := newTestSession(t, eng, player, nil)

	if err := session.Play(Request{Text: "a b c", VoiceID: "alex"}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if !waitFor(time.Second, func() bool { return session.State() == StatePlaying }) {
		t.Fatalf("never reached playing, state %s", session.State())
	}

	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if session.State() != StateIdle {
		t.Errorf("state = %s, want idle", session.State())
	}
	if OpenArtifacts() != before {
		t.Errorf("artifact leaked after stop")
	}
	if synchro.stops == 0 {
		t.Error("synchronizer was not stopped")
	}
}

// TestNetworkErrorDuringPreparing tests that a network failure surfaces the
// error kind and returns the session to Idle with nothing left open.
func TestNetworkErrorDuringPreparing(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	eng.synthErr = NewEngineError(EngineSystem, "synthesize", fmt.Errorf("%w: connect refused", ErrNetwork))
	player := newFakePlayer()
	session, _ := newTestSession(t, eng, player, nil)

	errCh := make(chan error, 1)
	session.OnError(func(err error) { errCh <- err })

	if err := session.Play(Request{Text: "unreachable", VoiceID: "alex"}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrNetwork) {
			t.Errorf("reported %v, want ErrNetwork", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}

	if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
		t.Fatalf("session stuck in %s", session.State())
	}
	if OpenArtifacts() != before {
		t.Errorf("residual artifact after failure")
	}
}

// TestPlayWhilePlayingImplicitStop tests that a second Play stops the
// current session (old artifact released) before starting the new one,
// without queueing.
func TestPlayWhilePlayingImplicitStop(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	player := newFakePlayer()
	session, _ := newTestSession(t, eng, player, nil)

	if err := session.Play(Request{Text: "first utterance", VoiceID: "alex"}); err != nil {
		t.Fatalf("first Play failed: %v", err)
	}
	if !waitFor(time.Second, func() bool { return session.State() == StatePlaying }) {
		t.Fatalf("first playback never started")
	}

	if err := session.Play(Request{Text: "second utterance", VoiceID: "alex"}); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	if !waitFor(time.Second, func() bool { return session.State() == StatePlaying }) {
		t.Fatalf("second playback never started")
	}

	// Exactly one artifact may be open: the second session's.
	if got := OpenArtifacts(); got != before+1 {
		t.Errorf("open artifacts = %d, want %d", got, before+1)
	}
	if eng.calls() != 2 {
		t.Errorf("synthesis calls = %d, want 2", eng.calls())
	}

	player.finish()
	if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
		t.Fatalf("session stuck in %s", session.State())
	}
	if OpenArtifacts() != before {
		t.Errorf("artifact leaked at end")
	}
}

// TestOverrunGoroutineIsOrphaned tests that a playback goroutine stuck past
// the stop window loses ownership of the session: once Stop has forced Idle,
// a new playback runs undisturbed when the stale goroutine finally wakes up
// and winds down.
func TestOverrunGoroutineIsOrphaned(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	eng.setDelay(300*time.Millisecond, true)
	player := newFakePlayer()
	reg := NewRegistry([]Engine{eng}, DefaultRegistryConfig())
	reg.Discover(context.Background())
	synchro := &fakeSynchronizer{}
	session := NewSession(reg, player, synchro, nil, SessionConfig{
		SynthesisTimeout: 2 * time.Second,
		StopTimeout:      30 * time.Millisecond,
	})

	if err := session.Play(Request{Text: "stuck synthesis", VoiceID: "alex"}); err != nil {
		t.Fatalf("first Play failed: %v", err)
	}
	if err := session.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if session.State() != StateIdle {
		t.Fatalf("state after overrun stop = %s, want idle", session.State())
	}
	stops := player.stopCount()

	eng.setDelay(0, false)
	if err := session.Play(Request{Text: "fresh utterance", VoiceID: "alex"}); err != nil {
		t.Fatalf("second Play failed: %v", err)
	}
	if !waitFor(time.Second, func() bool { return player.Playing() }) {
		t.Fatal("second playback never started")
	}

	// Wait out the stale goroutine's synthesis and teardown.
	time.Sleep(400 * time.Millisecond)

	if session.State() != StatePlaying {
		t.Errorf("state = %s, stale goroutine disturbed the new session", session.State())
	}
	if !player.Playing() {
		t.Error("stale goroutine stopped the new playback")
	}
	if got := player.stopCount(); got != stops {
		t.Errorf("player stops = %d, want %d", got, stops)
	}

	player.finish()
	if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
		t.Fatalf("session stuck in %s", session.State())
	}
	if !waitFor(time.Second, func() bool { return OpenArtifacts() == before }) {
		t.Errorf("artifact leaked: %d open, want %d", OpenArtifacts(), before)
	}
}

// TestPlayValidation tests synchronous validation failures.
func TestPlayValidation(t *testing.T) {
	eng := availableFake()
	session, _ := newTestSession(t, eng, newFakePlayer(), nil)

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{"empty text", Request{Text: "   ", VoiceID: "alex"}, ErrNoText},
		{"unknown voice", Request{Text: "hi", VoiceID: "nobody"}, ErrInvalidVoice},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := session.Play(tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Play = %v, want %v", err, tt.want)
			}
			if session.State() != StateIdle {
				t.Errorf("state = %s, want idle", session.State())
			}
		})
	}
}

// TestPlaybackDeviceError tests that a failing output device forces the
// session back to Idle and reports ErrPlaybackDevice.
func TestPlaybackDeviceError(t *testing.T) {
	before := OpenArtifacts()

	eng := availableFake()
	player := newFakePlayer()
	player.playErr = errors.New("device gone")
	session, _ := newTestSession(t, eng, player, nil)

	errCh := make(chan error, 1)
	session.OnError(func(err error) { errCh <- err })

	if err := session.Play(Request{Text: "hi there", VoiceID: "alex"}); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, ErrPlaybackDevice) {
			t.Errorf("reported %v, want ErrPlaybackDevice", err)
		}
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
	if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
		t.Fatalf("session stuck in %s", session.State())
	}
	if OpenArtifacts() != before {
		t.Errorf("artifact leaked after device failure")
	}
}

// TestSessionCache tests that a second identical request is served from the
// cache without a second synthesis call.
func TestSessionCache(t *testing.T) {
	eng := availableFake()
	player := newFakePlayer()
	cache := newMemCache()
	session, _ := newTestSession(t, eng, player, cache)

	req := Request{Text: "cache me", VoiceID: "alex", WPM: 150}

	play := func() {
		t.Helper()
		if err := session.Play(req); err != nil {
			t.Fatalf("Play failed: %v", err)
		}
		if !waitFor(time.Second, func() bool { return session.State() == StatePlaying }) {
			t.Fatalf("never reached playing")
		}
		player.finish()
		if !waitFor(time.Second, func() bool { return session.State() == StateIdle }) {
			t.Fatalf("never returned to idle")
		}
	}

	play()
	play()

	if eng.calls() != 1 {
		t.Errorf("synthesis calls = %d, want 1 (second should hit cache)", eng.calls())
	}
}

// TestWordCallbackForwarding tests that synchronizer word events reach the
// session's callback.
func TestWordCallbackForwarding(t *testing.T) {
	eng := availableFake()
	session, synchro := newTestSession(t, eng, newFakePlayer(), nil)

	got := make(chan int, 1)
	session.OnWord(func(i int) { got <- i })

	synchro.onWord(3)

	select {
	case i := <-got:
		if i != 3 {
			t.Errorf("word index = %d, want 3", i)
		}
	case <-time.After(time.Second):
		t.Fatal("word event not forwarded")
	}
}

// TestEncodeDecodeAudio tests the cache envelope round trip, including
// native word timings.
func TestEncodeDecodeAudio(t *testing.T) {
	orig := NewAudio([]byte{1, 2, 3, 4}, 22050, 1)
	orig.Words = []WordSpan{{Index: 0, Start: 0, End: orig.Duration}}
	defer orig.Release()

	data, err := EncodeAudio(orig)
	if err != nil {
		t.Fatalf("EncodeAudio failed: %v", err)
	}

	decoded, err := DecodeAudio(data)
	if err != nil {
		t.Fatalf("DecodeAudio failed: %v", err)
	}
	defer decoded.Release()

	if decoded.SampleRate != orig.SampleRate || decoded.Channels != orig.Channels {
		t.Errorf("format mismatch: %d/%d", decoded.SampleRate, decoded.Channels)
	}
	if len(decoded.Words) != 1 {
		t.Errorf("native timings lost in round trip")
	}
	if decoded.Duration != orig.Duration {
		t.Errorf("duration %v, want %v", decoded.Duration, orig.Duration)
	}
}

// TestAudioRelease tests temp file cleanup and counter behavior.
func TestAudioRelease(t *testing.T) {
	before := OpenArtifacts()

	a := NewAudio(make([]byte, 100), 22050, 1)
	if OpenArtifacts() != before+1 {
		t.Fatalf("counter did not increment")
	}

	if err := a.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if OpenArtifacts() != before {
		t.Errorf("counter did not decrement")
	}

	// Idempotent.
	if err := a.Release(); err != nil {
		t.Fatalf("second Release failed: %v", err)
	}
	if OpenArtifacts() != before {
		t.Errorf("double release corrupted the counter")
	}
}
