// Package audio slices phrase clips out of master WAV recordings and
// hands finished blobs to ffmpeg for distribution transcoding.
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

// Waveform holds decoded 16-bit PCM audio.
type Waveform struct {
	SampleRate  int
	NumChannels int
	samples     []int16 // interleaved
}

// New builds a waveform from interleaved samples.
func New(sampleRate, numChannels int, samples []int16) *Waveform {
	return &Waveform{SampleRate: sampleRate, NumChannels: numChannels, samples: samples}
}

// ReadFile loads and decodes a PCM wav file.
func ReadFile(path string) (*Waveform, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	return Decode(b)
}

// Decode parses a RIFF/WAVE byte sequence. Only uncompressed 16-bit
// PCM is supported; that is what the field recorders produce.
func Decode(b []byte) (*Waveform, error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, fmt.Errorf("not a RIFF/WAVE file")
	}

	w := &Waveform{}
	var haveFmt, haveData bool

	// Walk the chunk list; order is not guaranteed.
	for off := 12; off+8 <= len(b); {
		id := string(b[off : off+4])
		size := int(binary.LittleEndian.Uint32(b[off+4 : off+8]))
		body := off + 8
		if body+size > len(b) {
			return nil, fmt.Errorf("truncated %q chunk", id)
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, fmt.Errorf("short fmt chunk")
			}
			format := binary.LittleEndian.Uint16(b[body : body+2])
			if format != 1 {
				return nil, fmt.Errorf("unsupported wav format %d (want PCM)", format)
			}
			w.NumChannels = int(binary.LittleEndian.Uint16(b[body+2 : body+4]))
			w.SampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bits := binary.LittleEndian.Uint16(b[body+14 : body+16])
			if bits != 16 {
				return nil, fmt.Errorf("unsupported bit depth %d (want 16)", bits)
			}
			haveFmt = true
		case "data":
			w.samples = make([]int16, size/2)
			for i := range w.samples {
				w.samples[i] = int16(binary.LittleEndian.Uint16(b[body+2*i : body+2*i+2]))
			}
			haveData = true
		}

		// Chunks are word-aligned.
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || !haveData {
		return nil, fmt.Errorf("wav missing fmt or data chunk")
	}
	if w.NumChannels < 1 || w.SampleRate < 1 {
		return nil, fmt.Errorf("nonsense wav header: %d channels at %d Hz", w.NumChannels, w.SampleRate)
	}
	return w, nil
}

// DurationMS is the waveform length in whole milliseconds.
func (w *Waveform) DurationMS() int {
	frames := len(w.samples) / w.NumChannels
	return frames * 1000 / w.SampleRate
}

// Slice returns a copy of the [startMS, endMS) span. Bounds beyond the
// waveform are clamped rather than failing: annotation tiers sometimes
// run a few milliseconds past the recorded audio.
func (w *Waveform) Slice(startMS, endMS int) *Waveform {
	startFrame := startMS * w.SampleRate / 1000
	endFrame := endMS * w.SampleRate / 1000
	totalFrames := len(w.samples) / w.NumChannels

	startFrame = min(max(startFrame, 0), totalFrames)
	endFrame = min(max(endFrame, startFrame), totalFrames)

	out := &Waveform{
		SampleRate:  w.SampleRate,
		NumChannels: w.NumChannels,
		samples:     make([]int16, (endFrame-startFrame)*w.NumChannels),
	}
	copy(out.samples, w.samples[startFrame*w.NumChannels:endFrame*w.NumChannels])
	return out
}

// NormalizePeak scales the clip so its loudest sample sits headroomDB
// below full scale. Some speakers are very quiet; bringing every clip
// to the same ceiling keeps playback volume consistent. Silence is
// left alone.
func (w *Waveform) NormalizePeak(headroomDB float64) {
	var peak int
	for _, s := range w.samples {
		a := int(s)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return
	}

	target := 32767.0 * math.Pow(10, -headroomDB/20)
	gain := target / float64(peak)
	for i, s := range w.samples {
		scaled := math.Round(float64(s) * gain)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		w.samples[i] = int16(scaled)
	}
}

// Encode serializes the waveform back to canonical wav bytes. The
// output is deterministic for a given waveform, which is what makes
// slice fingerprints stable across runs.
func (w *Waveform) Encode() []byte {
	dataSize := len(w.samples) * 2
	buf := make([]byte, 44+dataSize)

	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(w.NumChannels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(w.SampleRate))
	byteRate := w.SampleRate * w.NumChannels * 2
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(w.NumChannels*2)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16)                      // bits per sample

	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	for i, s := range w.samples {
		binary.LittleEndian.PutUint16(buf[44+2*i:46+2*i], uint16(s))
	}
	return buf
}

// Samples exposes the raw interleaved samples, read-only by convention.
func (w *Waveform) Samples() []int16 { return w.samples }
