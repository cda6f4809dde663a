// SPDX-License-Identifier: MIT
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
)

// Network streams cannot seek, so WAV and AIFF are parsed forward only:
// chunks ahead of the sample data are read or skipped and the stream then
// decodes PCM straight off the reader. A data chunk with no usable length
// (0 or 0xFFFFFFFF, as live encoders write) is read until the reader ends.

var (
	aiffFormID = [4]byte{'F', 'O', 'R', 'M'}
	aiffID     = [4]byte{'A', 'I', 'F', 'F'}
	aifcID     = [4]byte{'A', 'I', 'F', 'C'}
	aiffCommID = [4]byte{'C', 'O', 'M', 'M'}
	aiffSsndID = [4]byte{'S', 'S', 'N', 'D'}
	aifcNone   = [4]byte{'N', 'O', 'N', 'E'}
	aifcSowt   = [4]byte{'s', 'o', 'w', 't'}
)

const unboundedChunk = 0xFFFFFFFF

func openWAVStream(r io.Reader) (Stream, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	if p.Format != riff.WavFormatID {
		return nil, fmt.Errorf("%w: riff form %q", ErrUnrecognized, p.Format[:])
	}

	haveFmt := false
	for {
		ch, err := p.NextChunk()
		if err != nil {
			return nil, fmt.Errorf("reading wav chunks: %w", err)
		}

		switch ch.ID {
		case riff.FmtID:
			if err := ch.DecodeWavHeader(p); err != nil {
				return nil, fmt.Errorf("reading wav fmt chunk: %w", err)
			}
			ch.Done()
			haveFmt = true
		case riff.DataFormatID:
			if !haveFmt {
				return nil, fmt.Errorf("%w: wav data before fmt", ErrUnsupported)
			}
			if p.WavAudioFormat != wavFormatPCM {
				return nil, fmt.Errorf("%w: wav format tag %d", ErrUnsupported, p.WavAudioFormat)
			}
			var data io.Reader = ch
			if ch.Size > 0 {
				data = io.LimitReader(ch, int64(ch.Size))
			}
			format := Format{SampleRate: int(p.SampleRate), Channels: int(p.NumChannels), Codec: WAV}
			return newPCMStream(format, data, binary.LittleEndian, int(p.BitsPerSample))
		default:
			ch.Done()
		}
	}
}

func openAIFFStream(r io.Reader) (Stream, error) {
	var form struct {
		ID   [4]byte
		Size uint32
		Kind [4]byte
	}
	if err := binary.Read(r, binary.BigEndian, &form); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnrecognized, err)
	}
	if form.ID != aiffFormID || (form.Kind != aiffID && form.Kind != aifcID) {
		return nil, fmt.Errorf("%w: invalid aiff header", ErrUnrecognized)
	}

	var (
		format   Format
		bitDepth int
		order    binary.ByteOrder = binary.BigEndian
		haveComm bool
	)
	for {
		var hdr struct {
			ID   [4]byte
			Size uint32
		}
		if err := binary.Read(r, binary.BigEndian, &hdr); err != nil {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return nil, fmt.Errorf("reading aiff chunks: %w", err)
		}
		size := int64(hdr.Size)
		if size%2 == 1 {
			size++
		}

		switch hdr.ID {
		case aiffCommID:
			var comm struct {
				Channels int16
				Frames   uint32
				BitDepth int16
				Rate     [10]byte
			}
			if err := binary.Read(r, binary.BigEndian, &comm); err != nil {
				return nil, fmt.Errorf("reading aiff comm chunk: %w", err)
			}
			read := int64(binary.Size(comm))
			if form.Kind == aifcID {
				var compression [4]byte
				if err := binary.Read(r, binary.BigEndian, &compression); err != nil {
					return nil, fmt.Errorf("reading aifc compression: %w", err)
				}
				read += 4
				switch compression {
				case aifcNone:
				case aifcSowt:
					order = binary.LittleEndian
				default:
					return nil, fmt.Errorf("%w: aifc compression %q", ErrUnsupported, compression[:])
				}
			}
			if err := skip(r, size-read); err != nil {
				return nil, fmt.Errorf("reading aiff comm chunk: %w", err)
			}
			format = Format{SampleRate: goaudio.IEEEFloatToInt(comm.Rate), Channels: int(comm.Channels), Codec: AIFF}
			bitDepth = int(comm.BitDepth)
			haveComm = true
		case aiffSsndID:
			if !haveComm {
				return nil, fmt.Errorf("%w: aiff sound data before comm chunk", ErrUnsupported)
			}
			var ssnd struct {
				Offset    uint32
				BlockSize uint32
			}
			if err := binary.Read(r, binary.BigEndian, &ssnd); err != nil {
				return nil, fmt.Errorf("reading aiff ssnd chunk: %w", err)
			}
			if err := skip(r, int64(ssnd.Offset)); err != nil {
				return nil, fmt.Errorf("reading aiff ssnd chunk: %w", err)
			}
			data := r
			if hdr.Size != 0 && hdr.Size != unboundedChunk {
				data = io.LimitReader(r, int64(hdr.Size)-8-int64(ssnd.Offset))
			}
			return newPCMStream(format, data, order, bitDepth)
		default:
			if err := skip(r, size); err != nil {
				return nil, fmt.Errorf("skipping aiff chunk %q: %w", hdr.ID[:], err)
			}
		}
	}
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}
	_, err := io.CopyN(io.Discard, r, n)
	return err
}

// pcmStream decodes signed integer PCM read straight from r.
type pcmStream struct {
	format Format
	r      io.Reader
	order  binary.ByteOrder
	width  int
	scale  float32
	buf    []byte
	done   bool
}

func newPCMStream(format Format, r io.Reader, order binary.ByteOrder, bitDepth int) (*pcmStream, error) {
	scale, err := fullScale(bitDepth)
	if err != nil {
		return nil, err
	}
	return &pcmStream{format: format, r: r, order: order, width: bitDepth / 8, scale: scale}, nil
}

func (s *pcmStream) Format() Format { return s.format }
func (s *pcmStream) Close() error   { return nil }

func (s *pcmStream) Read(dst []float32) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	want := len(dst) * s.width
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	m, err := io.ReadFull(s.r, s.buf[:want])
	n := m / s.width
	for i := range n {
		dst[i] = float32(s.sample(s.buf[i*s.width:])) / s.scale
	}

	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		return n, io.EOF
	case err != nil:
		return n, err
	}
	return n, nil
}

func (s *pcmStream) sample(b []byte) int32 {
	switch s.width {
	case 2:
		return int32(int16(s.order.Uint16(b)))
	case 3:
		if s.order == binary.ByteOrder(binary.LittleEndian) {
			return int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
		}
		return int32(int8(b[0]))<<16 | int32(b[1])<<8 | int32(b[2])
	default:
		return int32(s.order.Uint32(b))
	}
}
