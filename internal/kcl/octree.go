package kcl

import (
	"errors"
	"fmt"
	"math"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// ErrInvalidOctree is returned when an octree fails structural validation.
var ErrInvalidOctree = errors.New("invalid kcl octree")

// Header carries the spatial index parameters of a course.
type Header struct {
	Thickness    float32
	Origin       mathf.Vec3
	XMask        uint32
	YMask        uint32
	ZMask        uint32
	Shift        uint32
	YShift       uint32
	ZShift       uint32
	SphereRadius float32
}

// NodeKind tells a leaf node from a branch node.
type NodeKind uint8

const (
	// NodeLeaf indexes Octree.TriLists.
	NodeLeaf NodeKind = iota
	// NodeBranch indexes Octree.Branches.
	NodeBranch
)

// Node points either at a triangle list (leaf) or at a branch.
type Node struct {
	Kind  NodeKind
	Index uint32
}

// Branch splits a cell into eight children indexed z<<2 | y<<1 | x.
type Branch [8]Node

// Octree is a uniform grid of root nodes, each the top of an octree.
type Octree struct {
	RootNodes []Node
	Branches  []Branch
	TriLists  [][]uint16
}

// cellCoord converts an offset from the origin to an unsigned cell coordinate,
// truncating toward zero. Non-finite and far out of range offsets are rejected.
func cellCoord(d float32, mask uint32) (uint32, bool) {
	if d != d || d <= -(1<<31) || d >= 1<<32 {
		return 0, false
	}
	c := uint32(int64(d))
	if c&mask != 0 {
		return 0, false
	}
	return c, true
}

// Find returns the triangle list of the leaf containing pos.
func (o *Octree) Find(h *Header, pos mathf.Vec3) ([]uint16, bool) {
	x, ok := cellCoord(pos[0]-h.Origin[0], h.XMask)
	if !ok {
		return nil, false
	}
	y, ok := cellCoord(pos[1]-h.Origin[1], h.YMask)
	if !ok {
		return nil, false
	}
	z, ok := cellCoord(pos[2]-h.Origin[2], h.ZMask)
	if !ok {
		return nil, false
	}

	shift := h.Shift
	idx := (z>>shift)<<h.ZShift | (y>>shift)<<h.YShift | x>>shift
	if int(idx) >= len(o.RootNodes) {
		return nil, false
	}

	node := o.RootNodes[idx]
	for node.Kind == NodeBranch {
		if shift == 0 {
			return nil, false
		}
		shift--
		child := (z>>shift&1)<<2 | (y>>shift&1)<<1 | x>>shift&1
		node = o.Branches[node.Index][child]
	}

	return o.TriLists[node.Index], true
}

// rootCount is the number of root cells the header's masks and shifts address.
func (h *Header) rootCount() uint64 {
	nx := uint64(^h.XMask>>h.Shift) + 1
	ny := uint64(^h.YMask>>h.Shift) + 1
	nz := uint64(^h.ZMask>>h.Shift) + 1
	if h.YShift >= 32 || h.ZShift >= 32 {
		return math.MaxUint64
	}
	return (nz-1)<<h.ZShift | (ny-1)<<h.YShift | (nx - 1) + 1
}

// Validate checks that every index is in range, every triangle list refers to one
// of triCount triangles, and no branch chain is deeper than the header's shift.
func (o *Octree) Validate(h *Header, triCount int) error {
	if h.Shift >= 32 {
		return fmt.Errorf("%w: shift %d", ErrInvalidOctree, h.Shift)
	}
	if want := h.rootCount(); uint64(len(o.RootNodes)) < want {
		return fmt.Errorf("%w: %d root nodes, header addresses %d", ErrInvalidOctree, len(o.RootNodes), want)
	}

	for i, list := range o.TriLists {
		for _, tri := range list {
			if int(tri) >= triCount {
				return fmt.Errorf("%w: tri list %d refers to triangle %d of %d", ErrInvalidOctree, i, tri, triCount)
			}
		}
	}

	var walk func(n Node, depth uint32) error
	walk = func(n Node, depth uint32) error {
		switch n.Kind {
		case NodeLeaf:
			if int(n.Index) >= len(o.TriLists) {
				return fmt.Errorf("%w: leaf refers to tri list %d of %d", ErrInvalidOctree, n.Index, len(o.TriLists))
			}
			return nil
		case NodeBranch:
			if depth >= h.Shift {
				return fmt.Errorf("%w: branch depth exceeds shift %d", ErrInvalidOctree, h.Shift)
			}
			if int(n.Index) >= len(o.Branches) {
				return fmt.Errorf("%w: node refers to branch %d of %d", ErrInvalidOctree, n.Index, len(o.Branches))
			}
			for _, child := range o.Branches[n.Index] {
				if err := walk(child, depth+1); err != nil {
					return err
				}
			}
			return nil
		default:
			return fmt.Errorf("%w: node kind %d", ErrInvalidOctree, n.Kind)
		}
	}

	for _, n := range o.RootNodes {
		if err := walk(n, 0); err != nil {
			return err
		}
	}
	return nil
}
