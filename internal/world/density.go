// Population density field built from layered simplex noise.
// The field tiles seamlessly across the torus so that clustered placement
// shows no seam at the grid edges.
package world

import (
	"math"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// DensityField maps every cell to a density in [0, 1).
type DensityField struct {
	noise       opensimplex.Noise
	width       int
	height      int
	Octaves     int
	Frequency   float64 // Features per grid width at the first octave
	Persistence float64 // Amplitude falloff per octave
}

// NewDensityField creates a field for a width×height torus.
func NewDensityField(seed int64, width, height int) *DensityField {
	return &DensityField{
		noise:       opensimplex.NewNormalized(seed),
		width:       width,
		height:      height,
		Octaves:     3,
		Frequency:   1.5,
		Persistence: 0.5,
	}
}

// At returns the density of cell c.
func (d *DensityField) At(c Coord) float64 {
	// Map each axis onto a circle and sample 4D noise on the resulting
	// torus, so opposite edges meet smoothly.
	theta := 2 * math.Pi * float64(c.X) / float64(d.width)
	phi := 2 * math.Pi * float64(c.Y) / float64(d.height)

	total := 0.0
	amplitude := 1.0
	maxVal := 0.0
	radius := d.Frequency / (2 * math.Pi) * 4

	for i := 0; i < d.Octaves; i++ {
		total += d.noise.Eval4(
			radius*math.Cos(theta), radius*math.Sin(theta),
			radius*math.Cos(phi), radius*math.Sin(phi),
		) * amplitude
		maxVal += amplitude
		amplitude *= d.Persistence
		radius *= 2
	}
	if maxVal == 0 {
		return 0
	}
	return total / maxVal
}
