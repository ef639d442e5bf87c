package domain

import "time"

// Reassembler accumulates offset-addressed chunks of a challenge write until
// every byte of a MessageLength message has been written.
//
// A chunk at offset 0 starts a new write transaction: if byte 0 was already
// written, the previous partial message is dropped first. Continuation chunks
// may arrive in any order; gaps read as zero until they are filled. Bytes past
// MessageLength are discarded.
//
// A Reassembler is not safe for concurrent use; the owning endpoint serialises
// writes.
type Reassembler struct {
	buf     [MessageLength]byte
	written [MessageLength]bool
	count   int

	staleAfter time.Duration
	now        func() time.Time
	lastWrite  time.Time
}

type ReassemblerOption func(*Reassembler)

// WithStaleAfter drops a partial message when the next chunk arrives more than
// d after the previous one. Zero disables the check.
func WithStaleAfter(d time.Duration, now func() time.Time) ReassemblerOption {
	return func(r *Reassembler) {
		r.staleAfter = d
		if now != nil {
			r.now = now
		}
	}
}

func NewReassembler(opts ...ReassemblerOption) *Reassembler {
	r := &Reassembler{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Write applies chunk at offset and returns the complete message once all of
// its bytes are present. Negative offsets are treated as 0; chunks that start
// at or past MessageLength cannot contribute and are ignored.
func (r *Reassembler) Write(offset int, chunk []byte) ([]byte, bool) {
	if offset < 0 {
		offset = 0
	}
	if offset >= MessageLength {
		return nil, false
	}

	now := r.now()
	if r.isStale(now) {
		r.Reset()
	}
	r.lastWrite = now

	if offset == 0 && r.written[0] {
		r.Reset()
		r.lastWrite = now
	}

	n := min(len(chunk), MessageLength-offset)
	for i := 0; i < n; i++ {
		r.buf[offset+i] = chunk[i]
		if !r.written[offset+i] {
			r.written[offset+i] = true
			r.count++
		}
	}

	if r.count < MessageLength {
		return nil, false
	}

	message := make([]byte, MessageLength)
	copy(message, r.buf[:])
	r.Reset()

	return message, true
}

// Pending returns how many bytes of an incomplete message have been written.
func (r *Reassembler) Pending() int {
	return r.count
}

// InProgress reports whether a partial message is waiting for more chunks and
// has not gone stale.
func (r *Reassembler) InProgress() bool {
	return r.count > 0 && !r.isStale(r.now())
}

func (r *Reassembler) Reset() {
	r.buf = [MessageLength]byte{}
	r.written = [MessageLength]bool{}
	r.count = 0
	r.lastWrite = time.Time{}
}

func (r *Reassembler) isStale(now time.Time) bool {
	if r.staleAfter <= 0 || r.count == 0 || r.lastWrite.IsZero() {
		return false
	}

	return now.Sub(r.lastWrite) > r.staleAfter
}
