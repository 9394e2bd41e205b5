package daw

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// WriteWav writes the buffer as a stereo 44100 Hz .wav file, either as int16
// PCM or as float32.
func WriteWav(w io.Writer, buffer AudioBuffer, pcm16 bool) error {
	buf := new(bytes.Buffer)
	samples := buffer.Interleaved()
	wavHeader(len(samples), pcm16, buf)
	if err := writeSamples(buf, samples, pcm16); err != nil {
		return fmt.Errorf("WriteWav failed: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("WriteWav failed: %w", err)
	}
	return nil
}

func writeSamples(buf *bytes.Buffer, samples []float32, pcm16 bool) error {
	var err error
	if pcm16 {
		ints := make([]int16, len(samples))
		for i, v := range samples {
			ints[i] = int16(max(math.MinInt16, min(math.MaxInt16, int(v*math.MaxInt16))))
		}
		err = binary.Write(buf, binary.LittleEndian, ints)
	} else {
		err = binary.Write(buf, binary.LittleEndian, samples)
	}
	if err != nil {
		return fmt.Errorf("could not write samples: %w", err)
	}
	return nil
}

// wavHeader writes the RIFF header for numSamples interleaved stereo samples.
// Float files carry the extended fmt chunk and a fact chunk.
func wavHeader(numSamples int, pcm16 bool, buf *bytes.Buffer) {
	// http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
	const numChannels = 2
	bytesPerSample, fmtChunkSize, waveFormat, chunkSize := 4, 18, 3, 50+4*numSamples
	if pcm16 {
		bytesPerSample, fmtChunkSize, waveFormat, chunkSize = 2, 16, 1, 36+2*numSamples
	}
	le := func(v any) { binary.Write(buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	le(uint32(chunkSize))
	buf.WriteString("WAVEfmt ")
	le(uint32(fmtChunkSize))
	le(uint16(waveFormat))
	le(uint16(numChannels))
	le(uint32(SampleRate))
	le(uint32(SampleRate * numChannels * bytesPerSample))
	le(uint16(numChannels * bytesPerSample))
	le(uint16(8 * bytesPerSample))
	if !pcm16 {
		le(uint16(0)) // extension size
		buf.WriteString("fact")
		le(uint32(4))
		le(uint32(numSamples / numChannels))
	}
	buf.WriteString("data")
	le(uint32(bytesPerSample * numSamples))
}
