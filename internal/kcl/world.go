package kcl

import (
	"fmt"

	"github.com/OCAP2/kartreplay/internal/mathf"
)

// World is an immutable collision course. It is safe for concurrent queries.
type World struct {
	Header Header
	Tris   []Triangle
	Octree Octree
}

// NewWorld validates the octree against the triangle set.
func NewWorld(h Header, tris []Triangle, octree Octree) (*World, error) {
	if err := octree.Validate(&h, len(tris)); err != nil {
		return nil, err
	}
	if !(h.Thickness > 0) {
		return nil, fmt.Errorf("%w: thickness %v", ErrInvalidOctree, h.Thickness)
	}
	return &World{Header: h, Tris: tris, Octree: octree}, nil
}

// BuildWorld indexes tris with BuildOctree and returns the resulting world.
func BuildWorld(tris []Triangle, opts BuildOptions) (*World, error) {
	h, octree, err := BuildOctree(tris, opts)
	if err != nil {
		return nil, err
	}
	return NewWorld(h, tris, octree)
}

// Find returns the indices of the triangles near pos.
func (w *World) Find(pos mathf.Vec3) ([]uint16, bool) {
	return w.Octree.Find(&w.Header, pos)
}

// CollideHitbox tests every triangle in the hitbox centre's leaf.
func (w *World) CollideHitbox(hb *Hitbox) Collision {
	var c Collision

	tris, ok := w.Find(hb.Pos)
	if !ok {
		return c
	}

	thickness := w.Header.Thickness
	for _, idx := range tris {
		if hit, ok := w.Tris[idx].Collide(hb, thickness); ok {
			c.Add(hit)
		}
	}
	return c
}
