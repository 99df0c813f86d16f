// Package secret holds key material in memory that is zeroed on close.
//
// On Linux and the BSDs the backing memory is an anonymous mmap region
// outside the Go heap, locked against swapping, so the garbage collector
// never copies it. On Linux it is also excluded from core dumps. Elsewhere
// it is an ordinary heap allocation.
package secret

import (
	"errors"
	"fmt"
	"sync"
)

var errClosed = errors.New("secret: read from closed buffer")

// Buffer holds sensitive data. A Buffer must not be copied after creation
// and must be closed when no longer needed; after Close any access panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zero-filled buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size must be positive, got %d", size)
	}

	data, err := allocate(size)
	if err != nil {
		return nil, err
	}

	return &Buffer{
		data:   data,
		length: size,
	}, nil
}

// NewFromBytes copies source into a new buffer and zeroes source.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, errors.New("secret: cannot create buffer from empty source")
	}

	b, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(b.data, source)
	Zero(source)

	return b, nil
}

// Bytes returns the secret data. The slice points into the locked region and
// must not be retained beyond the lifetime of the Buffer.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic(errClosed)
	}

	return b.data[:b.length]
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.length
}

// Close zeroes and frees the buffer. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)

	err := release(b.data)
	b.data = nil
	return err
}

// Zero overwrites b with zeroes.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
