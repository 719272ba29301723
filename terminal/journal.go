package terminal

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

const (
	// JournalSize is the maximum number of entries kept per connection journal.
	JournalSize = 1000
)

// Entry represents a single connection lifecycle event.
type Entry struct {
	Timestamp time.Time     `json:"timestamp"`
	Level     zerolog.Level `json:"level"`
	Message   string        `json:"message"`
}

// Journal represents a bounded ring of connection lifecycle events.
type Journal struct {
	data    []Entry
	dataMtx sync.RWMutex
	start   atomic.Int32
	count   atomic.Int32
	size    atomic.Int32
}

// NewJournal initializes a new journal.
func NewJournal(size int32) (*Journal, error) {
	if size < 0 {
		return nil, errors.New("journal size cannot be negative")
	}
	if size == 0 {
		return nil, errors.New("journal size cannot be zero")
	}

	journal := &Journal{
		data: make([]Entry, size),
	}

	journal.size.Store(size)
	return journal, nil
}

// Record adds an event to the journal.
func (j *Journal) Record(level zerolog.Level, message string) {
	j.dataMtx.Lock()
	defer j.dataMtx.Unlock()

	start := j.start.Load()
	count := j.count.Load()
	size := j.size.Load()
	end := (start + count) % size
	j.data[end] = Entry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   message,
	}

	if count == size {
		// Overwrite the oldest entry when the journal is at capacity.
		j.start.Store((start + 1) % size)
	} else {
		j.count.Add(1)
	}
}

// Count returns the number of entries in the journal.
func (j *Journal) Count() int32 {
	return j.count.Load()
}

// LastN fetches the last n entries of the journal, oldest first.
func (j *Journal) LastN(n int32) []Entry {
	j.dataMtx.RLock()
	defer j.dataMtx.RUnlock()

	if n <= 0 {
		return nil
	}

	start := j.start.Load()
	count := j.count.Load()
	size := j.size.Load()

	// Clamp the number of entries expected if it is greater than the journal count.
	if n > count {
		n = count
	}

	set := make([]Entry, n)
	start = (start + count - n + size) % size

	for i := range n {
		idx := (start + i) % size
		set[i] = j.data[idx]
	}

	return set
}
