package engines

import (
	"encoding/binary"
	"fmt"
)

// wavAudio is the decoded payload of a RIFF/WAVE file.
type wavAudio struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

// decodeWAV extracts 16-bit PCM from a RIFF/WAVE byte stream. The
// system voices write canonical little-endian files, so only PCM
// format 1 at 16 bits per sample is accepted.
func decodeWAV(data []byte) (*wavAudio, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE stream")
	}

	var out wavAudio
	var haveFmt bool

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(data) {
			// Some writers leave the final chunk size short of the
			// actual payload. Clamp instead of rejecting the file.
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("wav: fmt chunk too short (%d bytes)", size)
			}
			format := binary.LittleEndian.Uint16(data[body : body+2])
			channels := int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			rate := int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(data[body+14 : body+16])
			if format != 1 {
				return nil, fmt.Errorf("wav: unsupported format code %d", format)
			}
			if bits != 16 {
				return nil, fmt.Errorf("wav: unsupported bit depth %d", bits)
			}
			if channels < 1 || rate <= 0 {
				return nil, fmt.Errorf("wav: bad fmt chunk (channels=%d rate=%d)", channels, rate)
			}
			out.Channels = channels
			out.SampleRate = rate
			haveFmt = true
		case "data":
			out.PCM = data[body : body+size]
		}

		// Chunks are word aligned.
		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt {
		return nil, fmt.Errorf("wav: missing fmt chunk")
	}
	if len(out.PCM) == 0 {
		return nil, fmt.Errorf("wav: missing data chunk")
	}
	if len(out.PCM)%2 == 1 {
		out.PCM = out.PCM[:len(out.PCM)-1]
	}
	return &out, nil
}
