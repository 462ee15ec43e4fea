package geo

import (
	"github.com/OCAP2/kartreplay/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// Trajectory builds the XYZ line string through the given positions. Fewer than two
// positions give an empty line string.
func Trajectory(positions []core.Position3D) geom.LineString {
	if len(positions) < 2 {
		return geom.LineString{}
	}

	coords := make([]float64, 0, len(positions)*3)
	for _, p := range positions {
		coords = append(coords, p.X, p.Z, p.Y)
	}
	seq := geom.NewSequence(coords, geom.DimXYZ)
	return geom.NewLineString(seq)
}

// GroundLength is the horizontal distance covered along a trajectory.
func GroundLength(ls geom.LineString) float64 {
	return ls.Length()
}
