// Package chunker splits byte streams into fixed-size content blocks, the
// unit of deduplication and storage.
package chunker

import (
	"fmt"
	"io"

	"github.com/docker/go-units"
)

const (
	// DefaultChunkSize is the size of a content block (1 MiB)
	DefaultChunkSize uint32 = 1 * units.MiB

	// MaxChunkSize caps configurable chunk sizes
	MaxChunkSize uint32 = 64 * units.MiB
)

// Chunker reads a stream one fixed-size block at a time. Splitting is
// order-preserving and deterministic: the same input always yields the
// same block sequence. The final block may be shorter than the chunk size
// but is never empty; an empty stream yields no blocks at all.
type Chunker struct {
	r    io.Reader
	size uint32
	done bool
}

// New returns a Chunker over r producing blocks of the given size
func New(r io.Reader, size uint32) (*Chunker, error) {
	if size == 0 {
		return nil, fmt.Errorf("chunk size must be positive")
	}
	if size > MaxChunkSize {
		return nil, fmt.Errorf("chunk size %d exceeds maximum %d", size, MaxChunkSize)
	}
	return &Chunker{r: r, size: size}, nil
}

// Next returns the next block. It returns io.EOF when the stream is
// exhausted; the returned block is owned by the caller.
func (c *Chunker) Next() ([]byte, error) {
	if c.done {
		return nil, io.EOF
	}

	buf := make([]byte, c.size)
	n, err := io.ReadFull(c.r, buf)
	switch err {
	case nil:
		return buf, nil
	case io.ErrUnexpectedEOF:
		// short final block
		c.done = true
		return buf[:n], nil
	case io.EOF:
		c.done = true
		return nil, io.EOF
	default:
		return nil, err
	}
}

// Split consumes the whole stream and returns the ordered block sequence
func Split(r io.Reader, size uint32) ([][]byte, error) {
	c, err := New(r, size)
	if err != nil {
		return nil, err
	}

	var blocks [][]byte
	for {
		b, err := c.Next()
		if err == io.EOF {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
}
