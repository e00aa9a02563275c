package engines

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"readanything/tts"
)

// Edge TTS speaks the read-aloud protocol of the Edge browser: a
// websocket session carrying a speech.config message, an SSML request,
// then interleaved metadata and binary MP3 frames until turn.end.
const (
	edgeToken     = "6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	edgeWSSBase   = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1"
	edgeVoicesURL = "https://speech.platform.bing.com/consumer/speech/synthesize/readaloud/voices/list?trustedclienttoken=" + edgeToken
	edgeOrigin    = "chrome-extension://jdiccldimpdaibmpdkjnbmckianbfold"
	edgeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/130.0.0.0 Safari/537.36 Edg/130.0.0.0"

	edgeConfigMsg = "Content-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n" +
		`{"context":{"synthesis":{"audio":{"metadataoptions":{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"true"},"outputFormat":"audio-24khz-48kbitrate-mono-mp3"}}}}`
)

// EdgeEngine synthesizes through the Edge neural voices. Every call
// needs the network; word boundaries come back as native timings.
type EdgeEngine struct {
	defaultVoice string

	mu     sync.Mutex
	voices []tts.Voice
}

func NewEdge(defaultVoice string) *EdgeEngine {
	if defaultVoice == "" {
		defaultVoice = "en-US-AriaNeural"
	}
	return &EdgeEngine{defaultVoice: defaultVoice}
}

func (e *EdgeEngine) Kind() tts.EngineKind { return tts.EngineEdge }

// Available probes the voice list endpoint. The result is cached so
// Voices does not hit the network a second time during discovery.
func (e *EdgeEngine) Available(ctx context.Context) bool {
	_, err := e.Voices(ctx)
	return err == nil
}

func (e *EdgeEngine) Voices(ctx context.Context) ([]tts.Voice, error) {
	e.mu.Lock()
	if e.voices != nil {
		cached := e.voices
		e.mu.Unlock()
		return cached, nil
	}
	e.mu.Unlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, edgeVoicesURL, nil)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "voices", err)
	}
	req.Header.Set("User-Agent", edgeUserAgent)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "voices", fmt.Errorf("%w: %v", tts.ErrNetwork, err))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, tts.NewEngineError(tts.EngineEdge, "voices",
			fmt.Errorf("%w: voice list returned %s", tts.ErrNetwork, resp.Status))
	}

	var raw []struct {
		ShortName    string `json:"ShortName"`
		FriendlyName string `json:"FriendlyName"`
		Gender       string `json:"Gender"`
		Locale       string `json:"Locale"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "voices", err)
	}

	voices := make([]tts.Voice, 0, len(raw))
	for _, v := range raw {
		voices = append(voices, tts.Voice{
			Engine: tts.EngineEdge,
			ID:     v.ShortName,
			Name:   v.FriendlyName,
			Locale: v.Locale,
			Gender: strings.ToLower(v.Gender),
		})
	}

	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	return voices, nil
}

func (e *EdgeEngine) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	req = req.Clamp()
	voice := req.VoiceID
	if voice == "" {
		voice = e.defaultVoice
	}

	conn, err := e.dial(ctx)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", fmt.Errorf("%w: %v", tts.ErrNetwork, err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
		conn.SetWriteDeadline(deadline)
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte(edgeConfigMsg)); err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", fmt.Errorf("%w: %v", tts.ErrNetwork, err))
	}

	requestID := newRequestID()
	ssml := buildSSML(voice, tts.RatePercent(req.WPM), req.Text)
	ssmlMsg := fmt.Sprintf(
		"X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		requestID, time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)"), ssml)
	if err := conn.WriteMessage(websocket.TextMessage, []byte(ssmlMsg)); err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", fmt.Errorf("%w: %v", tts.ErrNetwork, err))
	}

	mp3Data, offsets, err := e.consume(ctx, conn)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", err)
	}
	if len(mp3Data) == 0 {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", fmt.Errorf("no audio frames received"))
	}

	dec, err := decodeMP3(mp3Data)
	if err != nil {
		return nil, tts.NewEngineError(tts.EngineEdge, "synthesize", err)
	}

	audio := tts.NewAudio(dec.PCM, dec.SampleRate, dec.Channels)
	words := tts.Tokenize(req.Text)
	audio.Words = boundarySpans(offsets, audio.Duration, len(words))
	if audio.Words == nil {
		log.Debug("edge boundary count mismatch, falling back to estimation",
			"boundaries", len(offsets), "words", len(words))
	}
	return audio, nil
}

func (e *EdgeEngine) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("Origin", edgeOrigin)
	header.Set("User-Agent", edgeUserAgent)
	header.Set("Pragma", "no-cache")
	header.Set("Cache-Control", "no-cache")

	url := fmt.Sprintf("%s?TrustedClientToken=%s&Sec-MS-GEC=%s&Sec-MS-GEC-Version=1-130.0.2849.68&ConnectionId=%s",
		edgeWSSBase, edgeToken, secMSGEC(), newRequestID())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

// consume reads frames until turn.end, splitting out binary audio
// payloads and WordBoundary offsets.
func (e *EdgeEngine) consume(ctx context.Context, conn *websocket.Conn) ([]byte, []time.Duration, error) {
	var audio bytes.Buffer
	var offsets []time.Duration

	for {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return nil, nil, fmt.Errorf("%w: %v", tts.ErrNetwork, err)
			}
			return nil, nil, fmt.Errorf("%w: read frame: %v", tts.ErrNetwork, err)
		}

		switch msgType {
		case websocket.TextMessage:
			header, body := splitFrame(data)
			switch framePath(header) {
			case "audio.metadata":
				offsets = append(offsets, parseBoundaries(body)...)
			case "turn.end":
				return audio.Bytes(), offsets, nil
			}
		case websocket.BinaryMessage:
			if len(data) < 2 {
				continue
			}
			// First two bytes are the big-endian header length.
			headerLen := int(data[0])<<8 | int(data[1])
			if len(data) < 2+headerLen {
				continue
			}
			audio.Write(data[2+headerLen:])
		}
	}
}

func splitFrame(data []byte) (header, body []byte) {
	if i := bytes.Index(data, []byte("\r\n\r\n")); i >= 0 {
		return data[:i], data[i+4:]
	}
	return data, nil
}

func framePath(header []byte) string {
	for _, line := range strings.Split(string(header), "\r\n") {
		if v, ok := strings.CutPrefix(line, "Path:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseBoundaries extracts WordBoundary offsets from an audio.metadata
// body. Offsets arrive in 100-nanosecond ticks.
func parseBoundaries(body []byte) []time.Duration {
	var meta struct {
		Metadata []struct {
			Type string `json:"Type"`
			Data struct {
				Offset int64 `json:"Offset"`
			} `json:"Data"`
		} `json:"Metadata"`
	}
	if err := json.Unmarshal(body, &meta); err != nil {
		return nil
	}
	var offsets []time.Duration
	for _, m := range meta.Metadata {
		if m.Type == "WordBoundary" {
			offsets = append(offsets, time.Duration(m.Data.Offset)*100*time.Nanosecond)
		}
	}
	return offsets
}

// boundarySpans turns per-word start offsets into contiguous spans
// covering the whole clip. Returns nil when the boundary count does
// not match the token count; the caller falls back to estimation.
func boundarySpans(offsets []time.Duration, total time.Duration, wordCount int) []tts.WordSpan {
	if wordCount == 0 || len(offsets) != wordCount || total <= 0 {
		return nil
	}
	spans := make([]tts.WordSpan, wordCount)
	for i := range offsets {
		start := offsets[i]
		if i == 0 {
			start = 0
		}
		end := total
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if end < start {
			return nil
		}
		spans[i] = tts.WordSpan{Index: i, Start: start, End: end}
	}
	return spans
}

func buildSSML(voice, rate, text string) string {
	escaped := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&apos;",
	).Replace(text)
	return fmt.Sprintf(
		"<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>"+
			"<voice name='%s'><prosody pitch='+0Hz' rate='%s' volume='+0%%'>%s</prosody></voice></speak>",
		voice, rate, escaped)
}

// secMSGEC derives the handshake clock token: Windows file time
// floored to 5 minutes, concatenated with the client token and hashed.
func secMSGEC() string {
	ticks := time.Now().Unix() + 11644473600
	ticks -= ticks % 300
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d0000000%s", ticks, edgeToken)))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func newRequestID() string {
	var b [16]byte
	if _, err := io.ReadFull(rand.Reader, b[:]); err != nil {
		return fmt.Sprintf("%032x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
