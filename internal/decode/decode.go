// SPDX-License-Identifier: MIT

/*
Package decode turns encoded audio (a complete file in memory, or a byte
stream arriving over the network) into interleaved float32 samples.

The container is sniffed from the first bytes, so callers never name a codec:

	RIFF....WAVE   -> wav   (go-audio/wav)
	FORM....AIFF   -> aiff  (go-audio/aiff)
	OggS           -> vorbis (jfreymuth/oggvorbis)
	fLaC           -> flac  (tphakala/flac)
	ID3 / sync     -> mp3   (hajimehoshi/go-mp3)
*/
package decode

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"

	applog "audioviz/internal/log"
)

var (
	// ErrUnrecognized is returned when no decoder claims the input.
	ErrUnrecognized = errors.New("unrecognized audio encoding")
	// ErrUnsupported is returned for a recognized container whose layout
	// (bit depth, sample format) cannot be decoded.
	ErrUnsupported = errors.New("unsupported audio layout")
)

var logger = applog.For("Decode")

// Codec names a container/codec pair.
type Codec string

const (
	WAV    Codec = "wav"
	AIFF   Codec = "aiff"
	MP3    Codec = "mp3"
	Vorbis Codec = "vorbis"
	FLAC   Codec = "flac"
)

// sniffLen is the number of leading bytes Sniff needs.
const sniffLen = 12

// Format describes decoded PCM.
type Format struct {
	SampleRate int
	Channels   int
	Codec      Codec
}

// Buffer is a fully decoded signal. Samples are interleaved, in [-1, 1].
type Buffer struct {
	Format  Format
	Samples []float32
}

// Frames returns the number of sample frames.
func (b *Buffer) Frames() int {
	if b == nil || b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Stream is an incrementally decoded signal.
type Stream interface {
	Format() Format
	// Read fills dst with interleaved samples and returns how many were
	// written. It returns io.EOF once the signal is exhausted.
	Read(dst []float32) (int, error)
	Close() error
}

// Decoder opens a Stream over encoded bytes.
type Decoder interface {
	Open(r io.Reader) (Stream, error)
}

// Sniff identifies the codec from the leading bytes of an input.
func Sniff(header []byte) (Codec, bool) {
	switch {
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return WAV, true
	case len(header) >= 12 && bytes.Equal(header[:4], []byte("FORM")) &&
		(bytes.Equal(header[8:12], []byte("AIFF")) || bytes.Equal(header[8:12], []byte("AIFC"))):
		return AIFF, true
	case bytes.HasPrefix(header, []byte("OggS")):
		return Vorbis, true
	case bytes.HasPrefix(header, []byte("fLaC")):
		return FLAC, true
	case bytes.HasPrefix(header, []byte("ID3")):
		return MP3, true
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return MP3, true
	}
	return "", false
}

// Registry maps codecs to decoders.
type Registry struct {
	decoders map[Codec]Decoder
}

// NewRegistry returns a registry with every built-in decoder.
func NewRegistry() *Registry {
	r := &Registry{decoders: make(map[Codec]Decoder)}
	r.Register(WAV, wavDecoder{})
	r.Register(AIFF, aiffDecoder{})
	r.Register(MP3, mp3Decoder{})
	r.Register(Vorbis, vorbisDecoder{})
	r.Register(FLAC, flacDecoder{})
	return r
}

// Register installs or replaces the decoder for a codec.
func (r *Registry) Register(c Codec, d Decoder) {
	r.decoders[c] = d
}

// Open sniffs rd and opens a stream over it. If rd is an io.Closer it is
// closed together with the stream, including when Open fails.
func (r *Registry) Open(rd io.Reader) (Stream, error) {
	closer, _ := rd.(io.Closer)
	fail := func(err error) (Stream, error) {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	src, header, err := peekHeader(rd)
	if err != nil {
		return fail(fmt.Errorf("reading header: %w", err))
	}

	codec, ok := Sniff(header)
	if !ok {
		return fail(ErrUnrecognized)
	}
	dec, ok := r.decoders[codec]
	if !ok {
		return fail(fmt.Errorf("%w: no decoder registered for %s", ErrUnrecognized, codec))
	}

	s, err := dec.Open(src)
	if err != nil {
		return fail(fmt.Errorf("%s: %w", codec, err))
	}
	f := s.Format()
	if f.SampleRate <= 0 || f.Channels <= 0 {
		s.Close()
		return fail(fmt.Errorf("%s: %w: %d Hz, %d channels", codec, ErrUnsupported, f.SampleRate, f.Channels))
	}

	logger.Debugf("Opened %s stream (%d Hz, %d channels)", codec, f.SampleRate, f.Channels)
	if closer == nil {
		return s, nil
	}
	return &closingStream{Stream: s, closer: closer}, nil
}

// peekHeader returns the leading bytes of rd and a reader that still yields
// them. Seekable inputs stay seekable so decoders can jump between chunks;
// anything else is wrapped in a bufio.Reader and decoded forward only.
func peekHeader(rd io.Reader) (io.Reader, []byte, error) {
	if rs, ok := rd.(io.ReadSeeker); ok {
		header := make([]byte, sniffLen)
		n, err := io.ReadFull(rs, header)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, nil, err
		}
		if _, err := rs.Seek(int64(-n), io.SeekCurrent); err != nil {
			return nil, nil, err
		}
		return rs, header[:n], nil
	}

	br := bufio.NewReader(rd)
	header, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	return br, header, nil
}

// Decode decodes a complete encoded file.
func (r *Registry) Decode(data []byte) (*Buffer, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrUnrecognized)
	}
	s, err := r.Open(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return ReadAll(s)
}

// ReadAll drains a stream into a Buffer. A stream that yields no frames is
// an error.
func ReadAll(s Stream) (*Buffer, error) {
	f := s.Format()
	chunk := make([]float32, 4096*f.Channels)
	var samples []float32
	for {
		n, err := s.Read(chunk)
		samples = append(samples, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: decoding samples: %w", f.Codec, err)
		}
		if n == 0 {
			// Guard against decoders that never report EOF.
			break
		}
	}

	// Drop a trailing partial frame.
	samples = samples[:len(samples)-len(samples)%f.Channels]
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: %w: no audio frames", f.Codec, ErrUnsupported)
	}
	return &Buffer{Format: f, Samples: samples}, nil
}

type closingStream struct {
	Stream
	closer io.Closer
}

func (c *closingStream) Close() error {
	err := c.Stream.Close()
	if cerr := c.closer.Close(); err == nil {
		err = cerr
	}
	return err
}
