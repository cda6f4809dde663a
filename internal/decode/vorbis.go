// SPDX-License-Identifier: MIT
package decode

import (
	"io"

	"github.com/jfreymuth/oggvorbis"
)

type vorbisDecoder struct{}

func (vorbisDecoder) Open(r io.Reader) (Stream, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	return &vorbisStream{
		dec:    dec,
		format: Format{SampleRate: dec.SampleRate(), Channels: dec.Channels(), Codec: Vorbis},
	}, nil
}

type vorbisStream struct {
	dec    *oggvorbis.Reader
	format Format
}

func (s *vorbisStream) Format() Format { return s.format }
func (s *vorbisStream) Close() error   { return nil }

// Read returns whole frames only; the decoder counts interleaved values.
func (s *vorbisStream) Read(dst []float32) (int, error) {
	whole := len(dst) - len(dst)%s.format.Channels
	if whole == 0 {
		return 0, nil
	}
	return s.dec.Read(dst[:whole])
}
