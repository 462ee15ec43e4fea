// Package geo maps course positions onto simplefeatures geometry. Courses are Y-up,
// so the horizontal X/Z plane becomes geometry XY and the height becomes Z. All
// lengths and WKT are therefore ground distances with height carried alongside.
package geo

import (
	"errors"
	"strconv"
	"strings"

	"github.com/OCAP2/kartreplay/pkg/core"
	geom "github.com/peterstace/simplefeatures/geom"
)

// ErrInvalidCoordinates is returned when the coordinates are invalid
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// PositionFromString parses "x,y,z" into a course position.
func PositionFromString(coords string) (core.Position3D, error) {
	parts := strings.Split(coords, ",")
	if len(parts) != 3 {
		return core.Position3D{}, ErrInvalidCoordinates
	}
	var v [3]float64
	for i, s := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil {
			return core.Position3D{}, ErrInvalidCoordinates
		}
		v[i] = f
	}
	return core.Position3D{X: v[0], Y: v[1], Z: v[2]}, nil
}

// PointFromPosition converts a course position to an XYZ point.
func PointFromPosition(p core.Position3D) geom.Point {
	return geom.NewPoint(geom.Coordinates{
		XY:   geom.XY{X: p.X, Y: p.Z},
		Z:    p.Y,
		Type: geom.DimXYZ,
	})
}

// PositionFromPoint converts a point back to course space. It reports false for an
// empty point.
func PositionFromPoint(pt geom.Point) (core.Position3D, bool) {
	c, ok := pt.Coordinates()
	if !ok {
		return core.Position3D{}, false
	}
	return core.Position3D{X: c.XY.X, Y: c.Z, Z: c.XY.Y}, true
}
