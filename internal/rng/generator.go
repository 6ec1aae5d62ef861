package rng

import (
	"fmt"
	"math"
	"sort"
)

// Side is one face of a coin.
type Side string

const (
	Heads Side = "heads"
	Tails Side = "tails"
)

// Valid reports whether s is heads or tails.
func (s Side) Valid() bool {
	return s == Heads || s == Tails
}

// Generator turns a Source into game outcomes.
type Generator struct {
	src Source
}

// NewGenerator creates a Generator. A nil source means crypto/rand.
func NewGenerator(src Source) *Generator {
	if src == nil {
		src = NewCryptoSource()
	}
	return &Generator{src: src}
}

// Flip returns heads or tails with equal probability.
func (g *Generator) Flip() (Side, error) {
	n, err := g.src.IntN(2)
	if err != nil {
		return "", err
	}
	if n == 0 {
		return Heads, nil
	}
	return Tails, nil
}

// PlaceMines draws mineCount distinct cells out of gridSize without replacement.
// The result is sorted ascending.
func (g *Generator) PlaceMines(gridSize, mineCount int) ([]int, error) {
	if gridSize <= 0 || mineCount <= 0 || mineCount >= gridSize {
		return nil, fmt.Errorf("%w: %d mines on %d cells", ErrInvalidRange, mineCount, gridSize)
	}

	cells := make([]int, gridSize)
	for i := range cells {
		cells[i] = i
	}

	// Partial Fisher-Yates: the first mineCount slots end up uniformly chosen.
	for i := 0; i < mineCount; i++ {
		j, err := g.src.IntN(gridSize - i)
		if err != nil {
			return nil, err
		}
		j += i
		cells[i], cells[j] = cells[j], cells[i]
	}

	mines := append([]int(nil), cells[:mineCount]...)
	sort.Ints(mines)
	return mines, nil
}

// PickCorrectBlock returns a uniform index in [0, blockCount).
func (g *Generator) PickCorrectBlock(blockCount int) (int, error) {
	if blockCount <= 0 {
		return 0, fmt.Errorf("%w: %d blocks", ErrInvalidRange, blockCount)
	}
	return g.src.IntN(blockCount)
}

// ChiSquare computes the chi-square statistic of observed bin counts against
// a uniform expectation, and whether it stays under a conservative critical value.
func ChiSquare(counts []int) (float64, bool) {
	if len(counts) < 2 {
		return 0, true
	}
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0, true
	}

	expected := float64(total) / float64(len(counts))
	var chi float64
	for _, c := range counts {
		d := float64(c) - expected
		chi += d * d / expected
	}

	dof := float64(len(counts) - 1)
	critical := dof + 4*math.Sqrt(2*dof)
	return chi, chi < critical
}
