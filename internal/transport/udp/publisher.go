// SPDX-License-Identifier: MIT
package udp

import (
	"fmt"
	"sync"

	"audioviz/internal/bridge"
)

// UDPPublisher forwards bridge frames as binary datagrams. It runs in a
// separate goroutine managed by Start and Stop.
type UDPPublisher struct {
	sender *UDPSender
	sub    *bridge.Subscription

	running  bool
	doneChan chan struct{}  // Signals the publisher goroutine to stop.
	stopOnce sync.Once      // Ensures the stop logic runs only once per Start/Stop cycle.
	wg       sync.WaitGroup // Waits for the publisher goroutine to finish during Stop.
	mu       sync.Mutex     // Protects running and doneChan during Start/Stop.

	sequenceNum uint32
	sendErrors  uint64

	// Reused for every datagram.
	packet []byte
}

// NewUDPPublisher creates a publisher draining sub into sender.
func NewUDPPublisher(sender *UDPSender, sub *bridge.Subscription) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if sub == nil {
		return nil, fmt.Errorf("UDPPublisher: subscription cannot be nil")
	}
	return &UDPPublisher{sender: sender, sub: sub}, nil
}

// Start launches the publisher goroutine. It is safe to call Start multiple
// times; subsequent calls are no-ops while running.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		logger.Warnf("UDPPublisher: Start called but already running.")
		return
	}
	p.running = true
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Infof("UDPPublisher: Publishing to %s", p.sender.Target())
		for {
			select {
			case frame := <-p.sub.Frames():
				p.publish(frame)
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it. It is
// safe to call Stop multiple times.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.running = false
	})
	p.mu.Unlock()

	p.wg.Wait()
	logger.Infof("UDPPublisher: Stopped after %d packets (%d send errors).", p.sequenceNum, p.sendErrors)
	return nil
}

func (p *UDPPublisher) publish(frame bridge.SampleFrame) {
	p.sequenceNum++
	packet, err := AppendPacket(p.packet[:0], Packet{
		Sequence:   p.sequenceNum,
		Timestamp:  frame.Timestamp.UnixNano(),
		Frequency:  frame.Frequency,
		TimeDomain: frame.TimeDomain,
	})
	if err != nil {
		logger.Errorf("UDPPublisher: Error packing frame %d: %v", frame.Sequence, err)
		return
	}
	p.packet = packet

	if err := p.sender.Send(packet); err != nil {
		p.sendErrors++
		if p.sendErrors%600 == 1 {
			logger.Warnf("UDPPublisher: %v (%d errors so far)", err, p.sendErrors)
		}
		return
	}
	logger.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packet))
}

// Close stops the publisher and closes the sender.
func (p *UDPPublisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

var _ interface{ Close() error } = (*UDPPublisher)(nil)
