// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
)

// fullScale returns the divisor mapping signed integer PCM of the given bit
// depth onto [-1, 1).
func fullScale(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit PCM", ErrUnsupported, bitDepth)
	}
}

// pcmReader is the part of the go-audio wav and aiff decoders used here.
type pcmReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// intStream adapts a go-audio integer PCM decoder to Stream.
type intStream struct {
	format Format
	dec    pcmReader
	scale  float32
	buf    *goaudio.IntBuffer
	done   bool
}

func newIntStream(format Format, dec pcmReader, bitDepth int) (*intStream, error) {
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}
	return &intStream{
		format: format,
		dec:    dec,
		scale:  scale,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			SourceBitDepth: bitDepth,
		},
	}, nil
}

func (s *intStream) Format() Format { return s.format }
func (s *intStream) Close() error   { return nil }

func (s *intStream) Read(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	if cap(s.buf.Data) < len(dst) {
		s.buf.Data = make([]int, len(dst))
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i := range n {
		dst[i] = float32(s.buf.Data[i]) / s.scale
	}
	if err != nil && err != io.EOF {
		return n, err
	}
	if n == 0 || n < len(dst) || err == io.EOF {
		s.done = true
		return n, io.EOF
	}
	return n, nil
}

// int16LEToFloat converts little-endian signed 16-bit PCM to float32. It
// returns the number of samples written.
func int16LEToFloat(dst []float32, src []byte) int {
	n := min(len(dst), len(src)/2)
	for i := range n {
		dst[i] = float32(int16(binary.LittleEndian.Uint16(src[2*i:]))) / 32768.0
	}
	return n
}
