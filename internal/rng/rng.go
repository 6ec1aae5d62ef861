// Package rng produces the random outcomes used by the casino games.
// All draws go through a Source so tests can substitute a deterministic one.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	mrand "math/rand/v2"
	"sync"
	"sync/atomic"
)

// Errors returned by the generator.
var (
	ErrInvalidRange = errors.New("rng: invalid range")
)

// Source draws a uniform integer in [0, n).
type Source interface {
	IntN(n int) (int, error)
}

// CryptoSource draws from crypto/rand using rejection sampling,
// so outcomes cannot be predicted from earlier ones.
type CryptoSource struct {
	entropy io.Reader
	mu      sync.Mutex
	samples atomic.Int64
}

// NewCryptoSource creates a CryptoSource backed by crypto/rand.
func NewCryptoSource() *CryptoSource {
	return &CryptoSource{entropy: rand.Reader}
}

// IntN returns a uniform integer in [0, n) without modulo bias.
func (s *CryptoSource) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidRange, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	max := uint64(n)
	// Largest multiple of n that fits in 63 bits; values at or above it are rejected.
	threshold := uint64(1<<63-1) - (uint64(1<<63-1) % max)

	var buf [8]byte
	for {
		if _, err := io.ReadFull(s.entropy, buf[:]); err != nil {
			return 0, fmt.Errorf("failed to read entropy: %w", err)
		}
		v := binary.BigEndian.Uint64(buf[:]) >> 1
		if v < threshold {
			s.samples.Add(1)
			return int(v % max), nil
		}
	}
}

// Samples returns the number of values produced so far.
func (s *CryptoSource) Samples() int64 {
	return s.samples.Load()
}

// SeededSource is a reproducible PCG-backed source. It is safe for concurrent use.
type SeededSource struct {
	mu sync.Mutex
	r  *mrand.Rand
}

// NewSeededSource creates a SeededSource from a pair of seeds.
func NewSeededSource(seed1, seed2 uint64) *SeededSource {
	return &SeededSource{r: mrand.New(mrand.NewPCG(seed1, seed2))}
}

// IntN returns a uniform integer in [0, n).
func (s *SeededSource) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidRange, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.IntN(n), nil
}

// Constant always returns the same value, clamped into [0, n).
type Constant int

// IntN returns the constant value, or n-1 when the constant does not fit.
func (c Constant) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidRange, n)
	}
	v := int(c)
	if v < 0 {
		return 0, nil
	}
	if v >= n {
		return n - 1, nil
	}
	return v, nil
}

// Sequence replays a fixed list of values, wrapping around at the end.
// Each value is reduced modulo n.
type Sequence struct {
	mu     sync.Mutex
	values []int
	next   int
}

// NewSequence creates a Sequence source.
func NewSequence(values ...int) *Sequence {
	return &Sequence{values: values}
}

// IntN returns the next value of the sequence modulo n.
func (s *Sequence) IntN(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n must be positive, got %d", ErrInvalidRange, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return 0, nil
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	if v < 0 {
		v = -v
	}
	return v % n, nil
}
