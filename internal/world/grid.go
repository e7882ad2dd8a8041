package world

import (
	"fmt"
	"slices"
)

// Grid is a toroidal W×H lattice where each cell holds any number of
// occupants, kept in insertion order. T is the occupant identifier type.
type Grid[T comparable] struct {
	Width    int      `json:"width"`
	Height   int      `json:"height"`
	Topology Topology `json:"topology"`

	cells [][]T
	where map[T]Coord
}

// NewGrid creates an empty grid. Non-positive dimensions are raised to 1.
func NewGrid[T comparable](width, height int, topology Topology) *Grid[T] {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	return &Grid[T]{
		Width:    width,
		Height:   height,
		Topology: topology,
		cells:    make([][]T, width*height),
		where:    make(map[T]Coord),
	}
}

// Wrap applies toroidal wrapping to the provided coordinates.
func (g *Grid[T]) Wrap(x, y int) Coord {
	x = (x%g.Width + g.Width) % g.Width
	y = (y%g.Height + g.Height) % g.Height
	return Coord{X: x, Y: y}
}

// InBounds reports whether c addresses a cell without wrapping.
func (g *Grid[T]) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// CellCount returns W×H.
func (g *Grid[T]) CellCount() int {
	return g.Width * g.Height
}

func (g *Grid[T]) index(c Coord) int {
	c = g.Wrap(c.X, c.Y)
	return c.Y*g.Width + c.X
}

// Place puts id on cell c. An id that is already on the grid is moved.
func (g *Grid[T]) Place(id T, c Coord) {
	if _, ok := g.where[id]; ok {
		g.Move(id, c)
		return
	}
	c = g.Wrap(c.X, c.Y)
	i := g.index(c)
	g.cells[i] = append(g.cells[i], id)
	g.where[id] = c
}

// Move relocates id to cell c. Returns false if id is not on the grid.
func (g *Grid[T]) Move(id T, c Coord) bool {
	from, ok := g.where[id]
	if !ok {
		return false
	}
	c = g.Wrap(c.X, c.Y)
	if from == c {
		return true
	}
	g.detach(id, from)
	i := g.index(c)
	g.cells[i] = append(g.cells[i], id)
	g.where[id] = c
	return true
}

// Remove takes id off the grid. Returns false if it was not placed.
func (g *Grid[T]) Remove(id T) bool {
	from, ok := g.where[id]
	if !ok {
		return false
	}
	g.detach(id, from)
	delete(g.where, id)
	return true
}

func (g *Grid[T]) detach(id T, c Coord) {
	i := g.index(c)
	if j := slices.Index(g.cells[i], id); j >= 0 {
		g.cells[i] = slices.Delete(g.cells[i], j, j+1)
	}
}

// Position returns the cell holding id.
func (g *Grid[T]) Position(id T) (Coord, bool) {
	c, ok := g.where[id]
	return c, ok
}

// At returns a copy of the occupants of cell c in insertion order.
func (g *Grid[T]) At(c Coord) []T {
	return slices.Clone(g.cells[g.index(c)])
}

// IsEmpty reports whether cell c has no occupants.
func (g *Grid[T]) IsEmpty(c Coord) bool {
	return len(g.cells[g.index(c)]) == 0
}

// EmptyCellCount returns the number of cells without occupants.
func (g *Grid[T]) EmptyCellCount() int {
	n := 0
	for _, occ := range g.cells {
		if len(occ) == 0 {
			n++
		}
	}
	return n
}

// Occupants returns the number of ids currently placed.
func (g *Grid[T]) Occupants() int {
	return len(g.where)
}

// Each calls fn for every cell in row-major order with its occupants.
// fn must not mutate the grid.
func (g *Grid[T]) Each(fn func(c Coord, occupants []T)) {
	for y := 0; y < g.Height; y++ {
		for x := 0; x < g.Width; x++ {
			fn(Coord{X: x, Y: y}, g.cells[y*g.Width+x])
		}
	}
}

// Neighborhood returns the cells within radius of center, wrapped across
// the torus and de-duplicated. On square grids moore selects the Chebyshev
// ball (8 neighbors at radius 1) instead of the Manhattan ball (4). Hex
// grids ignore moore and return the hex ball (6 neighbors at radius 1).
// Hex adjacency is symmetric only for even widths.
func (g *Grid[T]) Neighborhood(center Coord, includeCenter, moore bool, radius int) []Coord {
	center = g.Wrap(center.X, center.Y)
	if radius < 0 {
		radius = 0
	}
	if g.Topology == TopologyHex {
		return g.hexBall(center, includeCenter, radius)
	}

	seen := make(map[Coord]bool)
	var result []Coord
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if !moore && abs(dx)+abs(dy) > radius {
				continue
			}
			if dx == 0 && dy == 0 && !includeCenter {
				continue
			}
			c := g.Wrap(center.X+dx, center.Y+dy)
			if c == center && !includeCenter {
				continue
			}
			if seen[c] {
				continue
			}
			seen[c] = true
			result = append(result, c)
		}
	}
	return result
}

// String returns a summary of the grid.
func (g *Grid[T]) String() string {
	return fmt.Sprintf("Grid(%s, %dx%d, occupants=%d)", g.Topology, g.Width, g.Height, len(g.where))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
