package kcl

import (
	"bufio"
	"fmt"
	"io"
)

// WriteOBJ dumps the solid surfaces of the course as a Wavefront OBJ mesh, one
// unshared vertex triple per triangle.
func (w *World) WriteOBJ(out io.Writer) error {
	bw := bufio.NewWriter(out)

	var solid []int
	for i := range w.Tris {
		if w.Tris[i].Attribute.KindBit()&MaskSolidSurface != 0 {
			solid = append(solid, i)
		}
	}

	for _, i := range solid {
		for _, v := range w.Tris[i].Vertices() {
			if _, err := fmt.Fprintf(bw, "v %.6f %.6f %.6f\n", v[0], v[1], v[2]); err != nil {
				return err
			}
		}
	}

	for n := range solid {
		base := n*3 + 1
		if _, err := fmt.Fprintf(bw, "f %d %d %d\n", base, base+1, base+2); err != nil {
			return err
		}
	}

	return bw.Flush()
}
