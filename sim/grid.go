package sim

import (
	"fmt"
	"math"
)

// Grid is a W×H field of float64 values stored row-major: cell (i, j) lives at
// index i*W+j. Two grids of identical dimensions form the ping-pong pair of a run.
type Grid struct {
	width, height int
	data          []float64
}

// NewGrid allocates a width×height grid with every cell set to fill.
func NewGrid(width, height int, fill float64) (*Grid, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("%w: grid dimensions must be positive, got %dx%d", ErrInvalidConfig, width, height)
	}
	g := &Grid{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
	g.Fill(fill)
	return g, nil
}

// Width returns the number of columns.
func (g *Grid) Width() int { return g.width }

// Height returns the number of rows.
func (g *Grid) Height() int { return g.height }

// Data exposes the backing row-major slice. Writes through it are visible to the grid.
func (g *Grid) Data() []float64 { return g.data }

// At returns the value at row i, column j.
func (g *Grid) At(i, j int) float64 {
	return g.data[i*g.width+j]
}

// Set writes v at row i, column j.
func (g *Grid) Set(i, j int, v float64) {
	g.data[i*g.width+j] = v
}

// Row returns row i as a sub-slice of the backing storage.
func (g *Grid) Row(i int) []float64 {
	base := i * g.width
	return g.data[base : base+g.width]
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.data {
		g.data[i] = v
	}
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{width: g.width, height: g.height, data: make([]float64, len(g.data))}
	copy(c.data, g.data)
	return c
}

// Equal reports whether both grids have the same dimensions and bit-identical cells.
// Bit comparison keeps NaN payloads and signed zeros significant.
func (g *Grid) Equal(other *Grid) bool {
	if g == nil || other == nil {
		return g == other
	}
	if g.width != other.width || g.height != other.height {
		return false
	}
	for i, v := range g.data {
		if math.Float64bits(v) != math.Float64bits(other.data[i]) {
			return false
		}
	}
	return true
}
