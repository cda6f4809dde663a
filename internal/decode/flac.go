// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"io"

	"github.com/tphakala/flac"
)

type flacDecoder struct{}

func (flacDecoder) Open(r io.Reader) (Stream, error) {
	dec, err := flac.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	scale, err := fullScale(dec.BitsPerSample)
	if err != nil {
		return nil, err
	}
	return &flacStream{
		dec:    dec,
		scale:  scale,
		width:  dec.BitsPerSample / 8,
		format: Format{SampleRate: dec.SampleRate, Channels: dec.NChannels, Codec: FLAC},
	}, nil
}

// flacStream converts the decoder's interleaved little-endian frames into
// float32, carrying any samples that did not fit into dst over to the next
// Read.
type flacStream struct {
	dec     *flac.Decoder
	format  Format
	scale   float32
	width   int
	pending []float32
	eof     bool
}

func (s *flacStream) Format() Format { return s.format }
func (s *flacStream) Close() error   { return nil }

func (s *flacStream) Read(dst []float32) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			if s.eof {
				break
			}
			frame, err := s.dec.Next()
			if err == io.EOF {
				s.eof = true
				break
			}
			if err != nil {
				return n, err
			}
			s.pending = s.convert(frame)
		}
		c := copy(dst[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	if n == 0 && s.eof {
		return 0, io.EOF
	}
	return n, nil
}

func (s *flacStream) convert(frame []byte) []float32 {
	out := make([]float32, 0, len(frame)/s.width)
	for i := 0; i+s.width <= len(frame); i += s.width {
		var sample int32
		switch s.width {
		case 2:
			sample = int32(int16(binary.LittleEndian.Uint16(frame[i:])))
		case 3:
			// Sign-extend from 24 bits.
			sample = (int32(frame[i]) | int32(frame[i+1])<<8 | int32(frame[i+2])<<16) << 8 >> 8
		case 4:
			sample = int32(binary.LittleEndian.Uint32(frame[i:]))
		}
		out = append(out, float32(sample)/s.scale)
	}
	return out
}
