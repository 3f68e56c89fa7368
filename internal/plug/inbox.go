package plug

import (
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// inbox is the per-session reply slot.
//
// The request path arms it before writing a frame and receives at most one
// reply from the returned channel. The notify path delivers into it only while
// armed; anything arriving while disarmed (late replies after a timeout,
// unsolicited pushes) is dropped.
type inbox struct {
	mu      sync.Mutex
	slot    chan []byte
	armed   bool
	dropped atomic.Uint64
	logger  *logrus.Logger
}

func newInbox(logger *logrus.Logger) *inbox {
	return &inbox{logger: logger}
}

// arm clears the previous slot and returns a fresh one for the next reply
func (b *inbox) arm() <-chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slot = make(chan []byte, 1)
	b.armed = true
	return b.slot
}

// disarm abandons the current slot
func (b *inbox) disarm() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.slot = nil
	b.armed = false
}

// deliver is the notification handler. It copies data since transports may reuse the buffer.
func (b *inbox) deliver(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.armed {
		b.dropped.Add(1)
		b.logger.WithField("data", hexBytes(data)).Debug("Dropping notification with no request in flight")
		return
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	b.slot <- buf
	b.armed = false
}

// Dropped returns the number of notifications discarded so far
func (b *inbox) Dropped() uint64 {
	return b.dropped.Load()
}
