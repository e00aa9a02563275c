package tts

import (
	"errors"
	"fmt"
)

// Error taxonomy for the TTS core. Engine adapters and the registry wrap
// these sentinels so callers can classify failures with errors.Is.
var (
	// ErrEngineUnavailable means the backend is not installed or reachable
	// at all. Recoverable by choosing another engine.
	ErrEngineUnavailable = errors.New("engine unavailable")

	// ErrNetwork is a transient network failure or timeout from a
	// network-backed engine.
	ErrNetwork = errors.New("network error")

	// ErrAuth means a credential is missing or invalid. User-actionable;
	// never retried automatically.
	ErrAuth = errors.New("authentication failed")

	// ErrQuotaExceeded is a provider-side billing or rate limit. Not
	// retried automatically.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrInvalidVoice means the requested voice identifier is unknown.
	ErrInvalidVoice = errors.New("invalid voice")

	// ErrPlaybackDevice is a local audio output failure.
	ErrPlaybackDevice = errors.New("playback device error")

	// ErrNoText is returned for an empty play request.
	ErrNoText = errors.New("no text to speak")

	// ErrStopped marks a synthesis abandoned by a stop command.
	ErrStopped = errors.New("stopped")
)

// EngineError wraps a failure from a specific engine operation with enough
// context for logs and user messages.
type EngineError struct {
	Engine EngineKind
	Op     string
	Err    error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Engine, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As.
func (e *EngineError) Unwrap() error { return e.Err }

// NewEngineError wraps err with the engine and operation that produced it.
func NewEngineError(engine EngineKind, op string, err error) *EngineError {
	return &EngineError{Engine: engine, Op: op, Err: err}
}

// Retryable reports whether an error category may be retried automatically.
// Auth and quota failures require user action; only transient network
// failures are safe to retry.
func Retryable(err error) bool {
	return err != nil && errors.Is(err, ErrNetwork)
}
