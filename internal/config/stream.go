// SPDX-License-Identifier: MPL-2.0

package config

import (
	"io"
)

type (
	// Source yields configuration units until it signals the end of the
	// sequence with io.EOF.
	Source interface {
		Next() (*Config, error)
	}

	// Stream is a lazy, single-consumer sequence of configuration units.
	// It is pull-based: nothing is produced until Pull is called. Once the
	// underlying source ends, the stream latches exhausted and never touches
	// the source again. Streams are not safe for concurrent pulls.
	Stream struct {
		src       Source
		exhausted bool
		closed    bool
		closer    func() error
	}

	// SliceSource yields a fixed in-memory sequence of units.
	SliceSource struct {
		items []*Config
		pos   int
	}

	// FuncSource adapts a pull function into a Source.
	FuncSource func() (*Config, error)
)

// NewStream wraps a source into a stream.
func NewStream(src Source) *Stream {
	return &Stream{src: src}
}

// FromSlice builds an eager stream over the given units.
func FromSlice(items []*Config) *Stream {
	return NewStream(&SliceSource{items: items})
}

// FromFunc builds a stream over a pull function. The function signals the
// end of the sequence by returning io.EOF.
func FromFunc(fn func() (*Config, error)) *Stream {
	return NewStream(FuncSource(fn))
}

// Pull returns the next configuration unit. After the underlying sequence
// ends it returns ErrStreamExhausted, deterministically, on every call.
// A unit that fails validation surfaces its error without exhausting the
// stream; pulling may continue past it.
func (s *Stream) Pull() (*Config, error) {
	if s.exhausted {
		return nil, ErrStreamExhausted
	}
	cfg, err := s.src.Next()
	switch {
	case err == io.EOF:
		s.exhausted = true
		return nil, ErrStreamExhausted
	case err != nil:
		return nil, err
	case cfg == nil:
		s.exhausted = true
		return nil, ErrStreamExhausted
	}
	cfg.normalize()
	return cfg, nil
}

// Collect drains up to limit units (limit <= 0 drains the whole stream).
// It stops at exhaustion without error; any other pull error aborts the
// drain and is returned alongside the units collected so far.
func (s *Stream) Collect(limit int) ([]*Config, error) {
	var out []*Config
	for limit <= 0 || len(out) < limit {
		cfg, err := s.Pull()
		if err == ErrStreamExhausted {
			break
		}
		if err != nil {
			return out, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

// Exhausted reports whether the underlying sequence has ended.
func (s *Stream) Exhausted() bool {
	return s.exhausted
}

// Close releases the stream's producer, if it has one. A generator blocked
// on an abandoned stream observes ErrStreamClosed and stops. Close is
// idempotent and safe on streams without a producer.
func (s *Stream) Close() error {
	if s.closed || s.closer == nil {
		s.closed = true
		return nil
	}
	s.closed = true
	return s.closer()
}

func (s *Stream) configValue() {}

// Next implements Source.
func (s *SliceSource) Next() (*Config, error) {
	if s.pos >= len(s.items) {
		return nil, io.EOF
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

// Next implements Source.
func (f FuncSource) Next() (*Config, error) {
	return f()
}
