// Package audio plays synthesized PCM through the system device. A
// single oto context is opened at a fixed device format and every clip
// is converted to it before playback.
package audio

import (
	"encoding/binary"
	"time"

	"readanything/tts"
)

// Device format shared by all playback. 16-bit stereo at 44.1kHz is
// accepted everywhere oto runs.
const (
	DeviceSampleRate = 44100
	DeviceChannels   = 2
	bytesPerSample   = 2
	deviceFrameSize  = DeviceChannels * bytesPerSample
)

// Convert renders a clip into the device format: mono is duplicated
// across both channels, then the stream is linearly resampled.
func Convert(a *tts.Audio) []byte {
	pcm := a.Data
	if a.Channels == 1 {
		pcm = monoToStereo(pcm)
	}
	if a.SampleRate != DeviceSampleRate {
		pcm = resampleStereo(pcm, a.SampleRate, DeviceSampleRate)
	}
	return pcm
}

func monoToStereo(pcm []byte) []byte {
	samples := len(pcm) / 2
	out := make([]byte, samples*4)
	for i := 0; i < samples; i++ {
		lo, hi := pcm[i*2], pcm[i*2+1]
		out[i*4] = lo
		out[i*4+1] = hi
		out[i*4+2] = lo
		out[i*4+3] = hi
	}
	return out
}

// resampleStereo linearly interpolates interleaved 16-bit stereo
// frames from one rate to another.
func resampleStereo(pcm []byte, from, to int) []byte {
	if from == to || from <= 0 || to <= 0 {
		return pcm
	}
	inFrames := len(pcm) / deviceFrameSize
	if inFrames == 0 {
		return nil
	}
	outFrames := int(int64(inFrames) * int64(to) / int64(from))
	if outFrames == 0 {
		outFrames = 1
	}

	out := make([]byte, outFrames*deviceFrameSize)
	for i := 0; i < outFrames; i++ {
		// Source position for this output frame.
		srcPos := float64(i) * float64(from) / float64(to)
		i0 := int(srcPos)
		if i0 >= inFrames-1 {
			i0 = inFrames - 1
		}
		i1 := i0 + 1
		if i1 >= inFrames {
			i1 = i0
		}
		frac := srcPos - float64(i0)

		for ch := 0; ch < DeviceChannels; ch++ {
			s0 := int16(binary.LittleEndian.Uint16(pcm[i0*deviceFrameSize+ch*2:]))
			s1 := int16(binary.LittleEndian.Uint16(pcm[i1*deviceFrameSize+ch*2:]))
			v := float64(s0) + (float64(s1)-float64(s0))*frac
			binary.LittleEndian.PutUint16(out[i*deviceFrameSize+ch*2:], uint16(int16(v)))
		}
	}
	return out
}

// deviceDuration reports how long a converted buffer plays for.
func deviceDuration(n int) time.Duration {
	frames := n / deviceFrameSize
	return time.Duration(frames) * time.Second / DeviceSampleRate
}
