// SPDX-License-Identifier: MIT
package hardware

import "testing"

func TestOutputFIFO(t *testing.T) {
	o := &output{limit: 8}

	o.Write([]float32{1, 2, 3})
	out := make([]float32, 5)
	o.process(out)

	want := []float32{1, 2, 3, 0, 0}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("process() = %v, want %v (underflow plays silence)", out, want)
		}
	}
}

func TestOutputOverflowDropsOldest(t *testing.T) {
	o := &output{limit: 4}

	o.Write([]float32{1, 2, 3})
	o.Write([]float32{4, 5, 6})
	if o.dropped != 2 {
		t.Errorf("dropped = %d, want 2", o.dropped)
	}

	out := make([]float32, 4)
	o.process(out)
	want := []float32{3, 4, 5, 6}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("process() = %v, want %v", out, want)
		}
	}
}

func TestOutputWriteAfterClose(t *testing.T) {
	o := &output{limit: 4, closed: true}
	if err := o.Write([]float32{1}); err != nil {
		t.Errorf("Write() after close = %v", err)
	}
	if len(o.fifo) != 0 {
		t.Error("Write() after close queued samples")
	}
}

func TestCaptureCallback(t *testing.T) {
	c := &capture{sampleRate: 48000, channels: 1}
	var got []float32
	c.fn = func(s []float32) { got = append(got, s...) }

	c.process([]float32{0.1, 0.2})
	if len(got) != 2 {
		t.Fatalf("callback received %d samples, want 2", len(got))
	}

	c.closed = true
	c.process([]float32{0.3})
	if len(got) != 2 {
		t.Error("callback ran after close")
	}
}
