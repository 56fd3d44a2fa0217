package process

import (
	"bytes"
	"sync"
)

// limitedBuffer collects writes up to a ceiling and rejects anything beyond it.
type limitedBuffer struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	limit    int64
	exceeded bool
}

func newLimitedBuffer(limit int64) *limitedBuffer {
	return &limitedBuffer{limit: limit}
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if int64(b.buf.Len())+int64(len(p)) > b.limit {
		b.exceeded = true
		return 0, ErrOutputLimit
	}

	return b.buf.Write(p)
}

func (b *limitedBuffer) Exceeded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.exceeded
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
