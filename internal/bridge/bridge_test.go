// SPDX-License-Identifier: MIT
package bridge

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"audioviz/internal/analysis"
	"audioviz/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// switchable hands out the device only while connected is set.
type switchable struct {
	device    *analysis.Device
	connected atomic.Bool
}

func (s *switchable) Sampler() (Sampler, bool) {
	if !s.connected.Load() {
		return nil, false
	}
	return s.device, true
}

func newDevice(t *testing.T, size int) *analysis.Device {
	t.Helper()
	cfg := analysis.DefaultConfig()
	cfg.TransformSize = size
	d, err := analysis.New(cfg)
	require.NoError(t, err)
	return d
}

func attachedProvider(t *testing.T, size int) (*switchable, *analysis.Input) {
	t.Helper()
	p := &switchable{device: newDevice(t, size)}
	in, err := p.device.Attach("test", 44100)
	require.NoError(t, err)
	p.connected.Store(true)
	return p, in
}

func TestTickWithoutSamplerEmitsNothing(t *testing.T) {
	p := &switchable{device: newDevice(t, 1024)}
	b := New(p, Options{})
	sub := b.Subscribe("renderer")

	_, ok := b.Tick()
	assert.False(t, ok)
	assert.Empty(t, sub.Frames())

	// Connected to the provider but with nothing attached to the analyser.
	p.connected.Store(true)
	_, ok = b.Tick()
	assert.False(t, ok)
	assert.Empty(t, sub.Frames())
}

func TestProviderFuncNilSampler(t *testing.T) {
	b := New(ProviderFunc(func() (Sampler, bool) { return nil, true }), Options{})
	_, ok := b.Tick()
	assert.False(t, ok)
}

func TestFrameShape(t *testing.T) {
	p, in := attachedProvider(t, 1024)
	in.Write(testutil.GenerateSineWave(1024, 44100, 1000), 1)

	clock := testutil.NewFakeClock()
	b := New(p, Options{Now: clock.Now})
	sub := b.Subscribe("renderer")

	frame, ok := b.Tick()
	require.True(t, ok)
	assert.Len(t, frame.Frequency, 512)
	assert.Len(t, frame.TimeDomain, 512)
	assert.Equal(t, uint64(1), frame.Sequence)
	assert.Equal(t, clock.Now(), frame.Timestamp)

	got := <-sub.Frames()
	assert.Equal(t, frame.Sequence, got.Sequence)
}

func TestSilenceNormalizesToFloorAndMidpoint(t *testing.T) {
	p, in := attachedProvider(t, 256)
	in.Write(make([]float32, 256), 1)

	frame, ok := New(p, Options{}).Tick()
	require.True(t, ok)
	for i, v := range frame.Frequency {
		require.Equal(t, byte(0), v, "bin %d", i)
	}
	for i, v := range frame.TimeDomain {
		require.Equal(t, byte(127), v, "sample %d", i)
	}
}

func TestFramesAreFreshlyAllocated(t *testing.T) {
	p, in := attachedProvider(t, 256)
	in.Write(testutil.GenerateSineWave(256, 44100, 440), 1)
	b := New(p, Options{})

	first, ok := b.Tick()
	require.True(t, ok)
	second, ok := b.Tick()
	require.True(t, ok)

	assert.NotSame(t, &first.Frequency[0], &second.Frequency[0])
	assert.NotSame(t, &first.TimeDomain[0], &second.TimeDomain[0])
	assert.Equal(t, first.Sequence+1, second.Sequence)
}

func TestSlowSubscriberDropsFrames(t *testing.T) {
	p, _ := attachedProvider(t, 256)
	reg := prometheus.NewRegistry()
	metrics, err := NewMetrics(reg)
	require.NoError(t, err)

	b := New(p, Options{Metrics: metrics})
	slow := b.Subscribe("slow")
	fast := b.Subscribe("fast")

	for i := 0; i < 3; i++ {
		_, ok := b.Tick()
		require.True(t, ok)
		<-fast.Frames()
	}

	assert.Equal(t, uint64(2), slow.Dropped())
	assert.Equal(t, uint64(0), fast.Dropped())

	// The slow subscriber still holds the oldest undelivered frame.
	frame := <-slow.Frames()
	assert.Equal(t, uint64(1), frame.Sequence)

	assert.Equal(t, 3.0, promtest.ToFloat64(metrics.framesProduced))
	assert.Equal(t, 2.0, promtest.ToFloat64(metrics.framesDropped.WithLabelValues("slow")))
}

func TestUnsubscribe(t *testing.T) {
	p, _ := attachedProvider(t, 256)
	b := New(p, Options{})
	sub := b.Subscribe("renderer")
	b.Unsubscribe(sub)
	b.Unsubscribe(sub)

	_, ok := b.Tick()
	require.True(t, ok)
	assert.Empty(t, sub.Frames())
}

func TestDetachStopsFrames(t *testing.T) {
	p, in := attachedProvider(t, 256)
	b := New(p, Options{})

	_, ok := b.Tick()
	require.True(t, ok)

	p.device.Detach()
	_, ok = b.Tick()
	assert.False(t, ok)

	// Writes through the stale input are ignored.
	assert.Equal(t, 0, in.Write(make([]float32, 64), 1))
}

func TestStartStopIdempotent(t *testing.T) {
	p, _ := attachedProvider(t, 256)
	b := New(p, Options{Interval: time.Millisecond})
	sub := b.Subscribe("renderer")

	ctx := context.Background()
	b.Start(ctx)
	b.Start(ctx)

	select {
	case <-sub.Frames():
	case <-time.After(2 * time.Second):
		t.Fatal("no frame produced")
	}

	b.Stop()
	b.Stop()

	// Restart after stop.
	b.Start(ctx)
	b.Stop()
}

func TestRunStopsOnCancel(t *testing.T) {
	p, _ := attachedProvider(t, 256)
	b := New(p, Options{Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	sub := b.Subscribe("renderer")
	<-sub.Frames()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestDefaultInterval(t *testing.T) {
	b := New(ProviderFunc(func() (Sampler, bool) { return nil, false }), Options{Interval: -1})
	assert.Equal(t, DefaultInterval, b.Interval())
}

func TestForward(t *testing.T) {
	p, in := attachedProvider(t, 256)
	in.Write(testutil.GenerateSineWave(256, 44100, 440), 1)
	b := New(p, Options{})
	sub := b.Subscribe("mock")
	tr := &testutil.MockTransport{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, Forward(ctx, sub, tr))
	}()

	frame, ok := b.Tick()
	require.True(t, ok)
	require.Eventually(t, func() bool { return len(tr.Sent()) == 2 }, 2*time.Second, time.Millisecond)

	b.Toggle("spectrum", false)
	require.Eventually(t, func() bool { return len(tr.Sent()) == 3 }, 2*time.Second, time.Millisecond)

	cancel()
	<-done

	sent := tr.Sent()
	freq, td := frame.Messages()
	assert.Equal(t, freq, sent[0])
	assert.Equal(t, td, sent[1])
	assert.Equal(t, NewToggle("spectrum", false), sent[2])
}

func TestMessageJSON(t *testing.T) {
	frame := SampleFrame{Frequency: []byte{0, 128, 255}, TimeDomain: nil}
	freq, td := frame.Messages()

	out, err := json.Marshal(freq)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"frequencyData","data":[0,128,255]}`, string(out))

	out, err = json.Marshal(td)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"timeDomainData","data":[]}`, string(out))

	out, err = json.Marshal(NewToggle("waveform", true))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"toggle","element":"waveform","visible":true}`, string(out))
}

func BenchmarkTick(b *testing.B) {
	cfg := analysis.DefaultConfig()
	d, err := analysis.New(cfg)
	if err != nil {
		b.Fatal(err)
	}
	in, _ := d.Attach("bench", 44100)
	in.Write(testutil.GenerateComplexWave(cfg.TransformSize, 44100), 1)
	br := New(ProviderFunc(func() (Sampler, bool) { return d, true }), Options{})
	sub := br.Subscribe("bench")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.Tick()
		<-sub.Frames()
	}
}
