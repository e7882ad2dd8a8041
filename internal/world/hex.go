// Package world provides the toroidal cell lattice agents live on.
// Square grids use (x, y) cell coordinates; hex grids use the same pair as
// offset columns, where odd columns sit half a cell lower than even ones.
package world

import "fmt"

// Coord is a cell position on the grid.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Topology selects the adjacency rule of a grid.
type Topology uint8

const (
	TopologySquare Topology = iota // 8 (Moore) or 4 (von Neumann) neighbors
	TopologyHex                    // 6 neighbors, offset columns
)

// String returns the topology name.
func (t Topology) String() string {
	if t == TopologyHex {
		return "hex"
	}
	return "square"
}

// MarshalText implements encoding.TextMarshaler.
func (t Topology) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Topology) UnmarshalText(text []byte) error {
	switch string(text) {
	case "square":
		*t = TopologySquare
	case "hex":
		*t = TopologyHex
	default:
		return fmt.Errorf("unknown topology %q", text)
	}
	return nil
}

// Column offsets for the six hex neighbors. Even and odd columns differ in
// which diagonal row they touch.
var (
	hexEvenColumn = [6]Coord{
		{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0},
		{X: -1, Y: 0}, {X: 1, Y: -1}, {X: -1, Y: -1},
	}
	hexOddColumn = [6]Coord{
		{X: 0, Y: 1}, {X: 0, Y: -1}, {X: 1, Y: 0},
		{X: -1, Y: 0}, {X: 1, Y: 1}, {X: -1, Y: 1},
	}
)

// hexAdjacent returns the six wrapped neighbors of c.
func (g *Grid[T]) hexAdjacent(c Coord) [6]Coord {
	dirs := hexEvenColumn
	if c.X%2 != 0 {
		dirs = hexOddColumn
	}
	var result [6]Coord
	for i, d := range dirs {
		result[i] = g.Wrap(c.X+d.X, c.Y+d.Y)
	}
	return result
}

// hexBall collects every cell within radius steps of center, breadth first.
// Order is deterministic: rings in increasing distance, each ring in
// discovery order.
func (g *Grid[T]) hexBall(center Coord, includeCenter bool, radius int) []Coord {
	seen := map[Coord]bool{center: true}
	var result []Coord
	if includeCenter {
		result = append(result, center)
	}

	frontier := []Coord{center}
	for step := 0; step < radius && len(frontier) > 0; step++ {
		var next []Coord
		for _, c := range frontier {
			for _, n := range g.hexAdjacent(c) {
				if seen[n] {
					continue
				}
				seen[n] = true
				result = append(result, n)
				next = append(next, n)
			}
		}
		frontier = next
	}
	return result
}
