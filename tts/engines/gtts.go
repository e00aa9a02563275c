package engines

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"readanything/tts"
)

// gttsRequestsPerMinute throttles calls to the unauthenticated Google
// Translate endpoint, which blocks clients that hammer it.
const gttsRequestsPerMinute = 50

// gttsLanguages maps the language codes gtts-cli accepts to display
// names. The service exposes one voice per language.
var gttsLanguages = []struct{ code, name string }{
	{"en", "English"},
	{"es", "Spanish"},
	{"fr", "French"},
	{"de", "German"},
	{"it", "Italian"},
	{"pt", "Portuguese"},
	{"nl", "Dutch"},
	{"pl", "Polish"},
	{"ru", "Russian"},
	{"ja", "Japanese"},
	{"ko", "Korean"},
	{"zh-CN", "Chinese (Mandarin)"},
	{"ar", "Arabic"},
	{"hi", "Hindi"},
	{"tr", "Turkish"},
	{"sv", "Swedish"},
}

// GTTSEngine drives the gtts-cli tool, which fetches MP3 audio from
// the Google Translate speech endpoint. Requires network access.
type GTTSEngine struct {
	sub      *SubprocessManager
	binary   string
	language string
	limiter  *rate.Limiter
}

// NewGTTS probes for gtts-cli. An explicit binary path from config
// wins over PATH lookup.
func NewGTTS(binary, language string, timeout time.Duration) *GTTSEngine {
	if language == "" {
		language = "en"
	}
	return &GTTSEngine{
		sub: NewSubprocessManager(timeout),
		binary: FindBinary(
			binary,
			"gtts-cli",
			"/usr/local/bin/gtts-cli",
			"/usr/bin/gtts-cli",
			filepath.Join(os.Getenv("HOME"), ".local", "bin", "gtts-cli"),
		),
		language: language,
		limiter:  rate.NewLimiter(rate.Every(time.Minute/gttsRequestsPerMinute), 1),
	}
}

func (e *GTTSEngine) Kind() tts.EngineKind { return tts.EngineGTTS }

func (e *GTTSEngine) Available(ctx context.Context) bool {
	return e.binary != ""
}

func (e *GTTSEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EngineGTTS, "voices", tts.ErrEngineUnavailable)
	}
	voices := make([]tts.Voice, 0, len(gttsLanguages))
	for _, l := range gttsLanguages {
		voices = append(voices, tts.Voice{
			Engine: tts.EngineGTTS,
			ID:     l.code,
			Name:   l.name,
			Locale: l.code,
		})
	}
	return voices, nil
}

func (e *GTTSEngine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if e.binary == "" {
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", tts.ErrEngineUnavailable)
	}
	req = req.Clamp()

	lang := req.VoiceID
	if lang == "" {
		lang = e.language
	}

	if err := e.limiter.Wait(ctx); err != nil {
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", err)
	}

	tmp, err := os.CreateTemp("", "readanything-gtts-*.mp3")
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", err)
	}
	path := tmp.Name()
	tmp.Close()
	defer os.Remove(path)

	_, err = e.sub.Run(ctx, "", e.binary, req.Text, "--output", path, "--lang", lang)
	if err != nil {
		// The tool only blocks this long when the speech endpoint is
		// unreachable.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize",
				fmt.Errorf("%w: %v", tts.ErrNetwork, err))
		}
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", err)
	}
	dec, err := decodeMP3(data)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineGTTS, "synthesize", err)
	}

	// gtts-cli has no speed control. Scaling the declared sample rate
	// makes the player resample the clip faster or slower instead.
	sampleRate := int(float64(dec.SampleRate) * tts.SpeedMultiplier(req.WPM))
	if sampleRate <= 0 {
		sampleRate = dec.SampleRate
	}
	return tts.NewAudio(dec.PCM, sampleRate, dec.Channels), nil
}
