package population

import (
	"fmt"
	"strings"
)

// Grid places organisms on a toroidal width x height lattice. Position
// (x, y) is encoded as y*width + x.
type Grid[O any] struct {
	slots[O]
	width  int
	height int
}

func NewGrid[O any](width, height int) (*Grid[O], error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("grid dimensions must be positive: %dx%d", width, height)
	}
	g := &Grid[O]{width: width, height: height}
	g.resize(width * height)
	return g, nil
}

func (*Grid[O]) Name() string {
	return KindGrid
}

func (g *Grid[O]) Width() int {
	return g.width
}

func (g *Grid[O]) Height() int {
	return g.height
}

func (g *Grid[O]) Pos(x, y int) int {
	return y*g.width + x
}

func (g *Grid[O]) XY(pos int) (int, int) {
	return pos % g.width, pos / g.width
}

// AddExternal fills a uniformly random empty cell, or a random cell when the
// grid is full.
func (g *Grid[O]) AddExternal(org O) int {
	rng := g.random()
	empty := g.emptyPositions()
	var pos int
	if len(empty) > 0 {
		pos = empty[rng.Intn(len(empty))]
	} else {
		pos = rng.Intn(len(g.orgs))
	}
	g.put(pos, org)
	return pos
}

// AddBirth places the offspring in one of the nine Moore-neighborhood cells
// around the parent, its own cell included, wrapping at the edges.
func (g *Grid[O]) AddBirth(org O, parentPos int) int {
	px, py := g.XY(parentPos)
	offset := g.random().Intn(9)
	x := mod(px+offset%3-1, g.width)
	y := mod(py+offset/3-1, g.height)
	pos := g.Pos(x, y)
	g.put(pos, org)
	return pos
}

func (*Grid[O]) Advance() {}

func (g *Grid[O]) Capacity() int {
	return g.width * g.height
}

func (*Grid[O]) SeparateGenerations() bool {
	return false
}

// Clear empties every cell but keeps the lattice dimensions.
func (g *Grid[O]) Clear() {
	g.slots.Clear()
	g.resize(g.width * g.height)
}

func (g *Grid[O]) String() string {
	var b strings.Builder
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			if x > 0 {
				b.WriteByte(' ')
			}
			if org, ok := g.At(g.Pos(x, y)); ok {
				fmt.Fprint(&b, org)
			} else {
				b.WriteByte('-')
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func mod(v, m int) int {
	r := v % m
	if r < 0 {
		r += m
	}
	return r
}
