// Package storage abstracts the content-addressed byte store backing the
// dedup engine. Implementations are simple digest-keyed K/V stores,
// assumed write-once per digest: the same key always refers to the same
// bytes, so overwriting is harmless and re-writing is wasted work at worst.
package storage

import (
	"context"
	"io"
)

type errString string

func (e errString) Error() string { return string(e) }

const (
	// ErrNotFound is returned when a key has no stored bytes
	ErrNotFound errString = "not found"

	// ErrNotSupported is returned by stores that do not implement an
	// optional operation
	ErrNotSupported errString = "not supported"
)

// Store implementations persist blobs keyed by digest strings.
//
// Typically something filesystem-like; implementations are assumed to be
// fairly simple and strongly consistent.
type Store interface {
	String() string
	Has(context.Context, string) (bool, error)
	Get(context.Context, string) (io.ReadCloser, error)
	Put(context.Context, string, io.Reader) error
	Delete(context.Context, string) error
	Keys(context.Context) ([]string, error)
	Clear(context.Context) error
}

// PipeIO copies the reader to the writer with a fixed-size buffer
func PipeIO(w io.Writer, r io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	return io.CopyBuffer(w, r, buf)
}

// ReadAll drains and closes a blob reader
func ReadAll(rdr io.ReadCloser) ([]byte, error) {
	b, err := io.ReadAll(rdr)
	if err != nil {
		_ = rdr.Close()
		return nil, err
	}
	if err := rdr.Close(); err != nil {
		return nil, err
	}
	return b, nil
}
