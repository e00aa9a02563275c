package engines

import (
	"bytes"
	"fmt"
	"io"

	mp3 "github.com/hajimehoshi/go-mp3"
)

// decodeMP3 decompresses an MP3 stream to 16-bit PCM. The decoder
// always emits two interleaved channels regardless of the source
// channel count.
func decodeMP3(data []byte) (*wavAudio, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("mp3: %w", err)
	}

	var pcm bytes.Buffer
	if _, err := io.Copy(&pcm, dec); err != nil {
		return nil, fmt.Errorf("mp3 decode: %w", err)
	}
	out := pcm.Bytes()
	if len(out) == 0 {
		return nil, fmt.Errorf("mp3: empty stream")
	}
	if len(out)%2 == 1 {
		out = out[:len(out)-1]
	}
	return &wavAudio{
		PCM:        out,
		SampleRate: dec.SampleRate(),
		Channels:   2,
	}, nil
}
