package engines

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"readanything/tts"
)

// SystemEngine speaks through the platform voice stack: `say` on
// macOS, espeak-ng (or espeak) elsewhere. It never touches the
// network, so it is the fallback of last resort.
type SystemEngine struct {
	sub    *SubprocessManager
	binary string
	goos   string
}

// NewSystem probes for a platform synthesizer binary. The returned
// engine may be unavailable; Available reports whether a binary was
// found.
func NewSystem(timeout time.Duration) *SystemEngine {
	e := &SystemEngine{
		sub:  NewSubprocessManager(timeout),
		goos: runtime.GOOS,
	}
	switch e.goos {
	case "darwin":
		e.binary = FindBinary("say", "/usr/bin/say")
	default:
		e.binary = FindBinary(
			"espeak-ng",
			"espeak",
			"/usr/bin/espeak-ng",
			"/usr/local/bin/espeak-ng",
			"/usr/bin/espeak",
		)
	}
	return e
}

func (e *SystemEngine) Kind() tts.EngineKind { return tts.EngineSystem }

func (e *SystemEngine) Available(ctx context.Context) bool {
	return e.binary != ""
}

func (e *SystemEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EngineSystem, "voices", tts.ErrEngineUnavailable)
	}

	var out []byte
	var err error
	if e.goos == "darwin" {
		out, err = e.sub.Run(ctx, "", e.binary, "-v", "?")
	} else {
		out, err = e.sub.Run(ctx, "", e.binary, "--voices")
	}
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineSystem, "voices", err)
	}

	if e.goos == "darwin" {
		return parseSayVoices(string(out)), nil
	}
	return parseEspeakVoices(string(out)), nil
}

// parseSayVoices reads `say -v ?` output. Each line looks like
// "Alex                en_US    # Most people recognize me ...".
func parseSayVoices(out string) []tts.Voice {
	var voices []tts.Voice
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		name, rest := line, ""
		if i := strings.Index(line, "#"); i >= 0 {
			name = line[:i]
		}
		fields := strings.Fields(name)
		if len(fields) < 2 {
			continue
		}
		// The locale is the last field before the comment; the voice
		// name itself may contain spaces.
		locale := fields[len(fields)-1]
		rest = strings.Join(fields[:len(fields)-1], " ")
		voices = append(voices, tts.Voice{
			Engine:  tts.EngineSystem,
			ID:      rest,
			Name:    rest,
			Locale:  strings.ReplaceAll(locale, "_", "-"),
			Offline: true,
		})
	}
	return voices
}

// parseEspeakVoices reads `espeak-ng --voices` output. Columns:
// Pty Language Age/Gender VoiceName File Other Languages.
func parseEspeakVoices(out string) []tts.Voice {
	var voices []tts.Voice
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		if i == 0 || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		lang := fields[1]
		gender := ""
		if parts := strings.SplitN(fields[2], "/", 2); len(parts) == 2 {
			switch parts[1] {
			case "M":
				gender = "male"
			case "F":
				gender = "female"
			}
		}
		name := fields[3]
		voices = append(voices, tts.Voice{
			Engine:  tts.EngineSystem,
			ID:      name,
			Name:    name,
			Locale:  lang,
			Gender:  gender,
			Offline: true,
		})
	}
	return voices
}

func (e *SystemEngine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", tts.ErrEngineUnavailable)
	}
	req = req.Clamp()

	tmp, err := os.CreateTemp("", "readanything-system-*.wav")
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	if e.goos == "darwin" {
		args := []string{
			"-o", path,
			"--data-format=LEI16@22050",
			"-r", strconv.Itoa(tts.SayRate(req.WPM)),
		}
		if req.VoiceID != "" {
			args = append(args, "-v", req.VoiceID)
		}
		if _, err := e.sub.Run(ctx, req.Text, e.binary, args...); err != nil {
			return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", err)
		}
	} else {
		args := []string{
			"-w", path,
			"-s", strconv.Itoa(tts.SayRate(req.WPM)),
			"--stdin",
		}
		if req.VoiceID != "" {
			args = append(args, "-v", req.VoiceID)
		}
		if _, err := e.sub.Run(ctx, req.Text, e.binary, args...); err != nil {
			return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", fmt.Errorf("read %s: %w", filepath.Base(path), err))
	}
	wav, err := decodeWAV(data)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineSystem, "synthesize", err)
	}
	return tts.NewAudio(wav.PCM, wav.SampleRate, wav.Channels), nil
}
