// Package piper runs the Piper neural synthesizer as a local
// subprocess: text on stdin, raw PCM on stdout, one .onnx model per
// voice.
package piper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"readanything/tts"
	"readanything/tts/engines"
)

// Engine speaks through a locally installed piper binary.
type Engine struct {
	sub    *engines.SubprocessManager
	binary string
	dirs   []string

	mu     sync.Mutex
	models []Model
}

// New probes for the piper binary and scans the model directories. An
// explicit binary path from config wins over the search list.
func New(binary string, modelDirs []string, timeout time.Duration) *Engine {
	if len(modelDirs) == 0 {
		modelDirs = DefaultModelDirs()
	}
	return &Engine{
		sub: engines.NewSubprocessManager(timeout),
		binary: engines.FindBinary(
			binary,
			"piper",
			"/usr/local/bin/piper",
			"/usr/bin/piper",
			"/opt/piper/piper",
			filepath.Join(os.Getenv("HOME"), ".local", "bin", "piper"),
		),
		dirs: modelDirs,
	}
}

// DefaultModelDirs lists the voice locations checked when config
// names none.
func DefaultModelDirs() []string {
	home := os.Getenv("HOME")
	return []string{
		filepath.Join(home, ".local", "share", "piper", "voices"),
		filepath.Join(home, ".local", "share", "piper-voices"),
		"/usr/share/piper-voices",
		"/usr/local/share/piper-voices",
	}
}

func (e *Engine) Kind() tts.EngineKind { return tts.EnginePiper }

// Available needs both the binary and at least one voice model.
func (e *Engine) Available(ctx context.Context) bool {
	return e.binary != "" && len(e.Models()) > 0
}

// Models returns the discovered voices, scanning on first use.
func (e *Engine) Models() []Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.models == nil {
		e.models = ScanModels(e.dirs)
	}
	return e.models
}

// Rescan drops the cached model list so the next call walks the
// directories again.
func (e *Engine) Rescan() {
	e.mu.Lock()
	e.models = nil
	e.mu.Unlock()
}

// Watch wires directory notifications to onChange until stop closes.
func (e *Engine) Watch(onChange func(), stop <-chan struct{}) error {
	return WatchModels(e.dirs, func() {
		e.Rescan()
		onChange()
	}, stop)
}

func (e *Engine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EnginePiper, "voices", tts.ErrEngineUnavailable)
	}
	models := e.Models()
	voices := make([]tts.Voice, 0, len(models))
	for _, m := range models {
		voices = append(voices, tts.Voice{
			Engine:  tts.EnginePiper,
			ID:      m.ID,
			Name:    m.ID,
			Locale:  localeFromModelID(m.ID),
			Offline: true,
		})
	}
	return voices, nil
}

// localeFromModelID recovers the language tag from conventional model
// names like en_US-lessac-medium.
func localeFromModelID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return strings.ReplaceAll(id[:i], "_", "-")
	}
	return ""
}

func (e *Engine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EnginePiper, "synthesize", tts.ErrEngineUnavailable)
	}
	req = req.Clamp()

	model, ok := e.findModel(req.VoiceID)
	if !ok {
		return nil, tts.NewEngineError(tts.EnginePiper, "synthesize",
			fmt.Errorf("%w: no model for %q", tts.ErrInvalidVoice, req.VoiceID))
	}

	args := []string{
		"--model", model.Path,
		"--output-raw",
	}
	if model.ConfigPath != "" {
		args = append(args, "--config", model.ConfigPath)
	}
	if req.WPM != tts.BaselineWPM {
		args = append(args, "--length-scale", fmt.Sprintf("%.2f", tts.LengthScale(req.WPM)))
	}

	pcm, err := e.sub.Stream(ctx, req.Text, e.binary, args...)
	if err != nil {
		return nil, tts.NewEngineError(tts.EnginePiper, "synthesize", err)
	}
	if len(pcm) == 0 {
		return nil, tts.NewEngineError(tts.EnginePiper, "synthesize", fmt.Errorf("no audio data generated"))
	}
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	return tts.NewAudio(pcm, model.SampleRate, 1), nil
}

func (e *Engine) findModel(id string) (Model, bool) {
	models := e.Models()
	if id == "" && len(models) > 0 {
		return models[0], true
	}
	for _, m := range models {
		if m.ID == id {
			return m, true
		}
	}
	return Model{}, false
}
