package kcl

import (
	"fmt"
	"math"
	"math/bits"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// BuildOptions tunes BuildOctree. Zero fields take the defaults below.
type BuildOptions struct {
	Thickness      float32
	Margin         float32
	MaxTrisPerLeaf int
	MinCellShift   uint32
}

// Build defaults.
const (
	DefaultThickness      = 300
	DefaultMargin         = 250
	DefaultMaxTrisPerLeaf = 32
	DefaultMinCellShift   = 8
)

func (o *BuildOptions) withDefaults() BuildOptions {
	out := *o
	if out.Thickness == 0 {
		out.Thickness = DefaultThickness
	}
	if out.Margin == 0 {
		out.Margin = DefaultMargin
	}
	if out.MaxTrisPerLeaf == 0 {
		out.MaxTrisPerLeaf = DefaultMaxTrisPerLeaf
	}
	if out.MinCellShift == 0 {
		out.MinCellShift = DefaultMinCellShift
	}
	return out
}

type bounds struct {
	min, max [3]float64
}

func (b bounds) overlaps(lo [3]float64, size float64) bool {
	for i := 0; i < 3; i++ {
		if b.max[i] < lo[i] || b.min[i] > lo[i]+size {
			return false
		}
	}
	return true
}

type octreeBuilder struct {
	opts   BuildOptions
	bounds []bounds
	tree   Octree
	empty  int
}

// BuildOctree indexes tris so that any point within Margin of a triangle's
// bounding box finds that triangle in its leaf.
func BuildOctree(tris []Triangle, opts BuildOptions) (Header, Octree, error) {
	opts = opts.withDefaults()

	if len(tris) == 0 {
		return Header{}, Octree{}, fmt.Errorf("%w: no triangles", ErrInvalidOctree)
	}
	if len(tris) > math.MaxUint16+1 {
		return Header{}, Octree{}, fmt.Errorf("%w: %d triangles exceed the 16-bit index", ErrInvalidOctree, len(tris))
	}

	lo := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for i := range tris {
		for _, v := range tris[i].Vertices() {
			if !v.IsFinite() {
				return Header{}, Octree{}, fmt.Errorf("%w: triangle %d has non-finite vertices", ErrInvalidOctree, i)
			}
			for a := 0; a < 3; a++ {
				lo[a] = math.Min(lo[a], float64(v[a]))
				hi[a] = math.Max(hi[a], float64(v[a]))
			}
		}
	}

	margin := float64(opts.Margin)
	var origin mathf.Vec3
	var sizeShift [3]uint32
	for a := 0; a < 3; a++ {
		origin[a] = float32(math.Floor(lo[a] - margin))
		extent := uint64(math.Ceil(hi[a]+margin-float64(origin[a]))) + 1
		s := uint32(bits.Len64(extent - 1))
		if s < opts.MinCellShift {
			s = opts.MinCellShift
		}
		if s >= 32 {
			return Header{}, Octree{}, fmt.Errorf("%w: course extent too large", ErrInvalidOctree)
		}
		sizeShift[a] = s
	}

	shift := min(sizeShift[0], sizeShift[1], sizeShift[2])
	h := Header{
		Thickness:    opts.Thickness,
		Origin:       origin,
		XMask:        ^uint32(1<<sizeShift[0] - 1),
		YMask:        ^uint32(1<<sizeShift[1] - 1),
		ZMask:        ^uint32(1<<sizeShift[2] - 1),
		Shift:        shift,
		YShift:       sizeShift[0] - shift,
		ZShift:       sizeShift[0] - shift + sizeShift[1] - shift,
		SphereRadius: opts.Margin,
	}

	b := &octreeBuilder{opts: opts, bounds: make([]bounds, len(tris)), empty: -1}
	all := make([]uint16, len(tris))
	for i := range tris {
		var tb bounds
		tb.min = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
		tb.max = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
		for _, v := range tris[i].Vertices() {
			for a := 0; a < 3; a++ {
				rel := float64(v[a]) - float64(origin[a])
				tb.min[a] = math.Min(tb.min[a], rel-margin)
				tb.max[a] = math.Max(tb.max[a], rel+margin)
			}
		}
		b.bounds[i] = tb
		all[i] = uint16(i)
	}

	nx := uint32(1) << (sizeShift[0] - shift)
	ny := uint32(1) << (sizeShift[1] - shift)
	nz := uint32(1) << (sizeShift[2] - shift)
	cell := float64(uint64(1) << shift)

	b.tree.RootNodes = make([]Node, nx*ny*nz)
	for z := uint32(0); z < nz; z++ {
		for y := uint32(0); y < ny; y++ {
			for x := uint32(0); x < nx; x++ {
				cellLo := [3]float64{float64(x) * cell, float64(y) * cell, float64(z) * cell}
				b.tree.RootNodes[z<<h.ZShift|y<<h.YShift|x] = b.build(cellLo, shift, all)
			}
		}
	}

	return h, b.tree, nil
}

func (b *octreeBuilder) build(lo [3]float64, shift uint32, candidates []uint16) Node {
	size := float64(uint64(1) << shift)

	var inside []uint16
	for _, tri := range candidates {
		if b.bounds[tri].overlaps(lo, size) {
			inside = append(inside, tri)
		}
	}

	if len(inside) <= b.opts.MaxTrisPerLeaf || shift <= b.opts.MinCellShift {
		return b.leaf(inside)
	}

	idx := len(b.tree.Branches)
	b.tree.Branches = append(b.tree.Branches, Branch{})

	half := size / 2
	for i := 0; i < 8; i++ {
		childLo := [3]float64{
			lo[0] + float64(i&1)*half,
			lo[1] + float64(i>>1&1)*half,
			lo[2] + float64(i>>2&1)*half,
		}
		child := b.build(childLo, shift-1, inside)
		b.tree.Branches[idx][i] = child
	}

	return Node{Kind: NodeBranch, Index: uint32(idx)}
}

// leaf stores a triangle list; empty cells share one list.
func (b *octreeBuilder) leaf(tris []uint16) Node {
	if len(tris) == 0 {
		if b.empty < 0 {
			b.empty = len(b.tree.TriLists)
			b.tree.TriLists = append(b.tree.TriLists, []uint16{})
		}
		return Node{Kind: NodeLeaf, Index: uint32(b.empty)}
	}

	b.tree.TriLists = append(b.tree.TriLists, tris)
	return Node{Kind: NodeLeaf, Index: uint32(len(b.tree.TriLists) - 1)}
}
