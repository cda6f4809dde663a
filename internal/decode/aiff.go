// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

type aiffDecoder struct{}

func (aiffDecoder) Open(r io.Reader) (Stream, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		return openAIFFStream(r)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: invalid aiff header", ErrUnrecognized)
	}
	dec.ReadInfo()

	f := dec.Format()
	if f == nil {
		return nil, fmt.Errorf("%w: aiff without common chunk", ErrUnsupported)
	}
	format := Format{SampleRate: f.SampleRate, Channels: f.NumChannels, Codec: AIFF}
	return newIntStream(format, dec, int(dec.BitDepth))
}
