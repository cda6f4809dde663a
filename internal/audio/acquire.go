// SPDX-License-Identifier: MIT
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"

	"audioviz/internal/decode"
)

// CaptureOpener opens the microphone. Errors should wrap
// ErrPermissionDenied or ErrDeviceUnavailable.
type CaptureOpener func(ctx context.Context) (Capture, error)

// DefaultAcquirer acquires microphones through an opener, decodes files with
// a decode.Registry and fetches streams over HTTP.
type DefaultAcquirer struct {
	Microphone CaptureOpener
	Registry   *decode.Registry
	Client     *http.Client
}

// NewAcquirer returns an acquirer with every decoder registered.
func NewAcquirer(mic CaptureOpener, client *http.Client) *DefaultAcquirer {
	if client == nil {
		client = http.DefaultClient
	}
	return &DefaultAcquirer{
		Microphone: mic,
		Registry:   decode.NewRegistry(),
		Client:     client,
	}
}

func (a *DefaultAcquirer) RequestMicrophone(ctx context.Context) (Capture, error) {
	if a.Microphone == nil {
		return nil, fmt.Errorf("%w: no capture backend", ErrDeviceUnavailable)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := a.Microphone(ctx)
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrDeviceUnavailable) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	return c, nil
}

func (a *DefaultAcquirer) Decode(ctx context.Context, data []byte) (*decode.Buffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buf, err := a.Registry.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return buf, nil
}

// FetchStream issues the GET and opens a decoder over the body. It returns
// once the container header has been parsed; the body stays open until the
// stream is closed or ctx is cancelled.
func (a *DefaultAcquirer) FetchStream(ctx context.Context, rawURL string) (decode.Stream, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid stream url '%s'", ErrFetch, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrFetch, u.Redacted(), resp.Status)
	}

	body := &readErrRecorder{ReadCloser: resp.Body}
	s, err := a.Registry.Open(body)
	if err != nil {
		if rerr := body.Err(); rerr != nil {
			return nil, fmt.Errorf("%w: %w", ErrFetch, rerr)
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return s, nil
}

// readErrRecorder remembers the first transport error so a failed open can
// be told apart from an undecodable body.
type readErrRecorder struct {
	io.ReadCloser
	mu  sync.Mutex
	err error
}

func (r *readErrRecorder) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && !errors.Is(err, io.EOF) {
		r.mu.Lock()
		if r.err == nil {
			r.err = err
		}
		r.mu.Unlock()
	}
	return n, err
}

func (r *readErrRecorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
