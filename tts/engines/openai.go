package engines

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"readanything/tts"
)

// openaiSampleRate is the fixed output rate of the PCM response
// format: 24kHz, 16-bit, mono.
const openaiSampleRate = 24000

// openaiVoices are the fixed speech voices the API offers.
var openaiVoices = []openai.SpeechVoice{
	openai.VoiceAlloy,
	openai.VoiceEcho,
	openai.VoiceFable,
	openai.VoiceOnyx,
	openai.VoiceNova,
	openai.VoiceShimmer,
}

// OpenAIEngine synthesizes through the OpenAI speech API.
type OpenAIEngine struct {
	client *openai.Client
	apiKey string
	model  string
}

func NewOpenAI(apiKey, model string) *OpenAIEngine {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	e := &OpenAIEngine{apiKey: apiKey, model: model}
	if apiKey != "" {
		e.client = openai.NewClient(apiKey)
	}
	return e
}

func (e *OpenAIEngine) Kind() tts.EngineKind { return tts.EngineOpenAI }

// Available is a local check only. A bad key surfaces as ErrAuth on
// the first synthesis instead of failing discovery.
func (e *OpenAIEngine) Available(ctx context.Context) bool {
	return e.apiKey != ""
}

func (e *OpenAIEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	if e.apiKey == "" {
		return nil, tts.NewEngineError(tts.EngineOpenAI, "voices", tts.ErrAuth)
	}
	voices := make([]tts.Voice, 0, len(openaiVoices))
	for _, v := range openaiVoices {
		voices = append(voices, tts.Voice{
			Engine: tts.EngineOpenAI,
			ID:     string(v),
			Name:   string(v),
			Locale: "en-US",
		})
	}
	return voices, nil
}

func (e *OpenAIEngine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if e.apiKey == "" {
		return nil, tts.NewEngineError(tts.EngineOpenAI, "synthesize", tts.ErrAuth)
	}
	req = req.Clamp()

	resp, err := e.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(e.model),
		Input:          req.Text,
		Voice:          openai.SpeechVoice(req.VoiceID),
		ResponseFormat: openai.SpeechResponseFormatPcm,
		Speed:          tts.SpeedMultiplier(req.WPM),
	})
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineOpenAI, "synthesize", classifyOpenAIError(err))
	}
	defer resp.Close()

	pcm, err := io.ReadAll(resp)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineOpenAI, "synthesize", fmt.Errorf("%w: %v", tts.ErrNetwork, err))
	}
	if len(pcm) == 0 {
		return nil, tts.NewEngineError(tts.EngineOpenAI, "synthesize", fmt.Errorf("empty response"))
	}
	if len(pcm)%2 == 1 {
		pcm = pcm[:len(pcm)-1]
	}
	return tts.NewAudio(pcm, openaiSampleRate, 1), nil
}

// classifyOpenAIError maps API failures onto the shared sentinels.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", tts.ErrAuth, err)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", tts.ErrQuotaExceeded, err)
		}
		if apiErr.HTTPStatusCode >= 500 {
			return fmt.Errorf("%w: %v", tts.ErrNetwork, err)
		}
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", tts.ErrNetwork, err)
	}
	return fmt.Errorf("%w: %v", tts.ErrNetwork, err)
}
