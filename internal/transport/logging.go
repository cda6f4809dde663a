// SPDX-License-Identifier: MIT
package transport

import (
	"sync"
	"sync/atomic"

	applog "audioviz/internal/log"
)

var logger = applog.For("Transport")

// LoggingTransport logs message types instead of delivering them. It keeps
// a per-type count that is reported on Close.
type LoggingTransport struct {
	mu     sync.Mutex
	counts map[string]uint64
	closed atomic.Bool
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("Using LoggingTransport")
	return &LoggingTransport{counts: make(map[string]uint64)}
}

// Send records the message type and logs it at debug level.
func (lt *LoggingTransport) Send(data any) error {
	if lt.closed.Load() {
		return ErrClosed
	}
	kind := messageType(data)

	lt.mu.Lock()
	lt.counts[kind]++
	n := lt.counts[kind]
	lt.mu.Unlock()

	logger.Debugf("Logged %s #%d", kind, n)
	return nil
}

// Count returns how many messages of the given type were sent.
func (lt *LoggingTransport) Count(kind string) uint64 {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	return lt.counts[kind]
}

// Close reports totals. Further sends fail with ErrClosed.
func (lt *LoggingTransport) Close() error {
	if !lt.closed.CompareAndSwap(false, true) {
		return nil
	}
	lt.mu.Lock()
	defer lt.mu.Unlock()
	logger.Infof("LoggingTransport closed (%v)", lt.counts)
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
