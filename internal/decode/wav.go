// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

type wavDecoder struct{}

func (wavDecoder) Open(r io.Reader) (Stream, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return openWAVStream(r)
	}

	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid wav header", ErrUnrecognized)
	}
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("reading wav info: %w", err)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupported, dec.WavAudioFormat)
	}

	format := Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans), Codec: WAV}
	return newIntStream(format, dec, int(dec.BitDepth))
}
