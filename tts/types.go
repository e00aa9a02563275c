// Package tts provides the text-to-speech core for ReadAnything: engine
// adapters, voice discovery, playback sessions and word synchronization.
package tts

import (
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// EngineKind identifies a TTS backend.
type EngineKind string

const (
	// EngineSystem is the local OS speech synthesizer (say/espeak-ng).
	EngineSystem EngineKind = "system"
	// EngineGTTS is Google Translate TTS via gtts-cli.
	EngineGTTS EngineKind = "gtts"
	// EngineEdge is the Microsoft Edge neural TTS service.
	EngineEdge EngineKind = "edge"
	// EngineOpenAI is the OpenAI speech API.
	EngineOpenAI EngineKind = "openai"
	// EnginePiper is the local Piper neural TTS binary.
	EnginePiper EngineKind = "piper"
	// EngineMock is the in-process engine used by tests.
	EngineMock EngineKind = "mock"
)

// String returns the engine kind as a plain string.
func (k EngineKind) String() string { return string(k) }

// Voice describes a single voice offered by an engine. Descriptors are
// immutable once discovered; the registry replaces them only on rescan.
type Voice struct {
	Engine  EngineKind // owning engine
	ID      string     // identifier unique within the engine
	Name    string     // human-readable name
	Locale  string     // BCP-47 style locale, e.g. "en-US"
	Gender  string     // "male", "female", "neutral" or empty
	Offline bool       // true if synthesis needs no network
}

// Request is a single play command. It is consumed once and not retained
// after the session it started has ended.
type Request struct {
	Text    string
	VoiceID string
	WPM     int // words per minute, clamped to [MinWPM, MaxWPM]
}

// Speech rate limits, in words per minute. BaselineWPM maps to 1.0x
// playback speed.
const (
	MinWPM      = 50
	MaxWPM      = 300
	BaselineWPM = 150
)

// Clamp returns a copy of the request with the WPM forced into the valid
// range. A zero WPM becomes the baseline rate.
func (r Request) Clamp() Request {
	if r.WPM == 0 {
		r.WPM = BaselineWPM
	}
	if r.WPM < MinWPM {
		r.WPM = MinWPM
	}
	if r.WPM > MaxWPM {
		r.WPM = MaxWPM
	}
	return r
}

// WordSpan is the time interval during which one whitespace-delimited word
// of the spoken text is considered active for highlighting.
type WordSpan struct {
	Index int
	Start time.Duration
	End   time.Duration
}

// openArtifacts counts Audio values that have been created but not yet
// released. Tests use it to verify that every exit path frees its artifact.
var openArtifacts int64

// OpenArtifacts reports the number of unreleased audio artifacts.
func OpenArtifacts() int64 { return atomic.LoadInt64(&openArtifacts) }

// Audio is a finished synthesis artifact: 16-bit little-endian PCM plus the
// metadata needed to play it. An Audio is owned by exactly one session and
// must be released when that session ends, on every exit path.
type Audio struct {
	Data       []byte
	SampleRate int
	Channels   int
	Duration   time.Duration

	// Words holds native word-boundary timings when the engine provides
	// them (Edge TTS). Nil means the synchronizer must estimate.
	Words []WordSpan

	mu        sync.Mutex
	tempFiles []string
	released  bool
}

// NewAudio wraps raw PCM data in an artifact and derives its duration from
// the sample rate and channel count.
func NewAudio(data []byte, sampleRate, channels int) *Audio {
	a := &Audio{
		Data:       data,
		SampleRate: sampleRate,
		Channels:   channels,
		Duration:   PCMDuration(len(data), sampleRate, channels),
	}
	atomic.AddInt64(&openArtifacts, 1)
	return a
}

// PCMDuration computes the play time of 16-bit PCM data.
func PCMDuration(dataLen, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := dataLen / (2 * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// AddTempFile registers a temporary file to be deleted when the artifact is
// released.
func (a *Audio) AddTempFile(path string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tempFiles = append(a.tempFiles, path)
}

// TempFiles returns the temporary files currently attached to the artifact.
func (a *Audio) TempFiles() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.tempFiles))
	copy(out, a.tempFiles)
	return out
}

// Release frees the artifact: temp files are deleted and the open-artifact
// counter is decremented. Release is idempotent.
func (a *Audio) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return nil
	}
	a.released = true
	atomic.AddInt64(&openArtifacts, -1)

	var firstErr error
	for _, path := range a.tempFiles {
		if err := removeFile(path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	a.tempFiles = nil
	return firstErr
}

// Released reports whether the artifact has been released.
func (a *Audio) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

func removeFile(path string) error {
	err := os.Remove(path)
	if err != nil && os.IsNotExist(err) {
		return nil
	}
	return err
}
