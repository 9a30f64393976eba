package bot

import (
	"fmt"
	"sync"
	"time"
)

const errorRingSize = 50

// ErrorRecord is one retained crawl or persistence error.
type ErrorRecord struct {
	At      time.Time
	Message string
}

// errorRing keeps the most recent errors without unbounded growth. The total
// counter keeps climbing even as old entries are evicted.
type errorRing struct {
	mu      sync.Mutex
	entries []ErrorRecord
	next    int
	total   int
}

func newErrorRing() *errorRing {
	return &errorRing{entries: make([]ErrorRecord, 0, errorRingSize)}
}

func (r *errorRing) Record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := ErrorRecord{At: time.Now(), Message: fmt.Sprintf(format, args...)}
	if len(r.entries) < errorRingSize {
		r.entries = append(r.entries, rec)
	} else {
		r.entries[r.next] = rec
		r.next = (r.next + 1) % errorRingSize
	}
	r.total++
}

func (r *errorRing) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// Recent returns the retained errors oldest first.
func (r *errorRing) Recent() []ErrorRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]ErrorRecord, 0, len(r.entries))
	out = append(out, r.entries[r.next:]...)
	out = append(out, r.entries[:r.next]...)
	return out
}
