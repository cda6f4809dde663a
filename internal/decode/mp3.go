// SPDX-License-Identifier: MIT
package decode

import (
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
)

// go-mp3 always produces 16-bit little-endian stereo.
const mp3Channels = 2

type mp3Decoder struct{}

func (mp3Decoder) Open(r io.Reader) (Stream, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	return &mp3Stream{
		dec:    dec,
		format: Format{SampleRate: dec.SampleRate(), Channels: mp3Channels, Codec: MP3},
	}, nil
}

type mp3Stream struct {
	dec    *gomp3.Decoder
	format Format
	buf    []byte
}

func (s *mp3Stream) Format() Format { return s.format }
func (s *mp3Stream) Close() error   { return nil }

func (s *mp3Stream) Read(dst []float32) (int, error) {
	bytesNeeded := len(dst) * 2
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	n, err := io.ReadFull(s.dec, s.buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	return int16LEToFloat(dst, s.buf[:n-n%2]), err
}
