// SPDX-License-Identifier: MIT
package udp

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"audioviz/internal/analysis"
	"audioviz/internal/bridge"
	"audioviz/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func listen(t *testing.T) *net.UDPConn {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func receive(t *testing.T, conn *net.UDPConn) []byte {
	t.Helper()
	buf := make([]byte, 65536)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestPacketRoundTrip(t *testing.T) {
	in := Packet{
		Sequence:   7,
		Timestamp:  1_700_000_000_000_000_000,
		Frequency:  []byte{0, 10, 255},
		TimeDomain: []byte{127, 128},
	}
	b, err := AppendPacket(nil, in)
	require.NoError(t, err)
	assert.Len(t, b, headerSize+3+2+2)

	out, err := DecodePacket(b)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodePacketShort(t *testing.T) {
	b, err := AppendPacket(nil, Packet{Frequency: []byte{1, 2, 3}, TimeDomain: []byte{4}})
	require.NoError(t, err)

	for _, n := range []int{0, headerSize - 1, headerSize + 2, len(b) - 1} {
		_, err := DecodePacket(b[:n])
		assert.ErrorIs(t, err, ErrShortPacket, "length %d", n)
	}
}

func TestAppendPacketTooLong(t *testing.T) {
	_, err := AppendPacket(nil, Packet{Frequency: make([]byte, MaxChannelLength+1)})
	assert.Error(t, err)
}

func TestSender(t *testing.T) {
	conn := listen(t)
	s, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)

	require.NoError(t, s.Send([]byte("hello")))
	assert.Equal(t, []byte("hello"), receive(t, conn))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Send([]byte("x")), ErrSenderClosed)
}

func TestSenderBadAddress(t *testing.T) {
	_, err := NewUDPSender("not-an-address")
	assert.Error(t, err)
}

func TestNewUDPPublisherValidates(t *testing.T) {
	_, err := NewUDPPublisher(nil, nil)
	assert.Error(t, err)
}

func TestPublisherForwardsFrames(t *testing.T) {
	conn := listen(t)
	sender, err := NewUDPSender(conn.LocalAddr().String())
	require.NoError(t, err)

	cfg := analysis.DefaultConfig()
	cfg.TransformSize = 256
	dev, err := analysis.New(cfg)
	require.NoError(t, err)
	input, err := dev.Attach("udp-test", 44100)
	require.NoError(t, err)
	input.Write(testutil.GenerateSineWave(256, 44100, 440), 1)

	b := bridge.New(bridge.ProviderFunc(func() (bridge.Sampler, bool) { return dev, true }), bridge.Options{})
	pub, err := NewUDPPublisher(sender, b.Subscribe("udp"))
	require.NoError(t, err)
	pub.Start()
	pub.Start()

	frame, ok := b.Tick()
	require.True(t, ok)

	p, err := DecodePacket(receive(t, conn))
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.Sequence)
	assert.Equal(t, frame.Timestamp.UnixNano(), p.Timestamp)
	assert.Equal(t, frame.Frequency, p.Frequency)
	assert.Equal(t, frame.TimeDomain, p.TimeDomain)

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Stop())
}
