package display

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hedzr/go-ringbuf/v2/mpmc"
)

// DefaultHistorySize is the default number of records kept in memory
const DefaultHistorySize uint32 = 64

// Kind classifies a history record
type Kind int

const (
	KindPower Kind = iota
	KindMessage
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindPower:
		return "power"
	case KindMessage:
		return "message"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Record is one rendered outcome
type Record struct {
	Time    time.Time
	Kind    Kind
	Address string
	Code    string
	Text    string
}

// History is a bounded in-memory log of records. When full, the oldest
// records are overwritten. Nothing is persisted.
//
// All methods are thread-safe.
type History struct {
	ring        mpmc.RichOverlappedRingBuffer[Record]
	overwritten atomic.Uint64
}

// NewHistory creates a history holding about size records (0 = DefaultHistorySize)
func NewHistory(size uint32) *History {
	if size == 0 {
		size = DefaultHistorySize
	}
	return &History{
		ring: mpmc.NewOverlappedRingBuffer[Record](size),
	}
}

// Add appends a record, overwriting the oldest one when full
func (h *History) Add(rec Record) error {
	overwrites, err := h.ring.EnqueueM(rec)
	if err != nil {
		return fmt.Errorf("history enqueue failed: %w", err)
	}
	if overwrites > 0 {
		h.overwritten.Add(uint64(overwrites))
	}
	return nil
}

// Drain removes and returns all held records, oldest first
func (h *History) Drain() []Record {
	var records []Record
	for !h.ring.IsEmpty() {
		rec, err := h.ring.Dequeue()
		if err != nil {
			break
		}
		records = append(records, rec)
	}
	return records
}

// Overwritten returns how many records were lost to overflow
func (h *History) Overwritten() uint64 {
	return h.overwritten.Load()
}
