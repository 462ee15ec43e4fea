package scenario

import (
	"errors"
	"fmt"

	"github.com/OCAP2/kartreplay/internal/kcl"
	"github.com/OCAP2/kartreplay/internal/mathf"
)

// ErrEmptyCourse is returned for a course without collision geometry.
var ErrEmptyCourse = errors.New("course has no collision geometry")

// Course is decoded collision geometry. Either Vertices with Faces or precomputed
// Prisms must be set. Without an Octree one is built with Build.
type Course struct {
	Name     string       `json:"name"`
	Vertices []mathf.Vec3 `json:"vertices,omitempty"`
	Faces    []Face       `json:"faces,omitempty"`
	Prisms   []Prism      `json:"prisms,omitempty"`
	Octree   *Octree      `json:"octree,omitempty"`
	Build    BuildConfig  `json:"build"`
}

// Face is a counter-clockwise triangle over course vertices.
type Face struct {
	V         [3]uint32 `json:"v"`
	Attribute uint16    `json:"attr"`
}

// Prism is a triangle in the form stored by course collision files.
type Prism struct {
	Height    float32    `json:"height"`
	Position  mathf.Vec3 `json:"position"`
	Normal    mathf.Vec3 `json:"normal"`
	CANormal  mathf.Vec3 `json:"caNormal"`
	ABNormal  mathf.Vec3 `json:"abNormal"`
	BCNormal  mathf.Vec3 `json:"bcNormal"`
	Attribute uint16     `json:"attr"`
}

// BuildConfig tunes octree construction. Zero fields take the kcl defaults.
type BuildConfig struct {
	Thickness      float32 `json:"thickness,omitempty"`
	Margin         float32 `json:"margin,omitempty"`
	MaxTrisPerLeaf int     `json:"maxTrisPerLeaf,omitempty"`
	MinCellShift   uint32  `json:"minCellShift,omitempty"`
}

// Octree is a precomputed spatial index. Nodes are encoded with the top bit set
// for leaves; the rest is the triangle list or branch index.
type Octree struct {
	Thickness    float32     `json:"thickness"`
	Origin       mathf.Vec3  `json:"origin"`
	XMask        uint32      `json:"xMask"`
	YMask        uint32      `json:"yMask"`
	ZMask        uint32      `json:"zMask"`
	Shift        uint32      `json:"shift"`
	YShift       uint32      `json:"yShift"`
	ZShift       uint32      `json:"zShift"`
	SphereRadius float32     `json:"sphereRadius"`
	Roots        []uint32    `json:"roots"`
	Branches     [][8]uint32 `json:"branches"`
	TriLists     [][]uint16  `json:"triLists"`
}

const leafBit = 1 << 31

func decodeNode(v uint32) kcl.Node {
	if v&leafBit != 0 {
		return kcl.Node{Kind: kcl.NodeLeaf, Index: v &^ leafBit}
	}
	return kcl.Node{Kind: kcl.NodeBranch, Index: v}
}

func encodeNode(n kcl.Node) uint32 {
	if n.Kind == kcl.NodeLeaf {
		return n.Index | leafBit
	}
	return n.Index
}

// Triangles returns the collision prisms of the course.
func (c *Course) Triangles() ([]kcl.Triangle, error) {
	if len(c.Prisms) > 0 {
		tris := make([]kcl.Triangle, len(c.Prisms))
		for i, p := range c.Prisms {
			tris[i] = kcl.Triangle{
				Height:    p.Height,
				Position:  p.Position,
				Normal:    p.Normal,
				CANormal:  p.CANormal,
				ABNormal:  p.ABNormal,
				BCNormal:  p.BCNormal,
				Attribute: kcl.Attribute(p.Attribute),
			}
		}
		return tris, nil
	}

	if len(c.Faces) == 0 {
		return nil, ErrEmptyCourse
	}

	tris := make([]kcl.Triangle, 0, len(c.Faces))
	for i, f := range c.Faces {
		var v [3]mathf.Vec3
		for j, idx := range f.V {
			if int(idx) >= len(c.Vertices) {
				return nil, fmt.Errorf("face %d: vertex %d out of range", i, idx)
			}
			v[j] = c.Vertices[idx]
		}
		tri, err := kcl.NewTriangle(v[0], v[1], v[2], kcl.Attribute(f.Attribute))
		if err != nil {
			return nil, fmt.Errorf("face %d: %w", i, err)
		}
		tris = append(tris, tri)
	}
	return tris, nil
}

// World builds the collision world of the course.
func (c *Course) World() (*kcl.World, error) {
	tris, err := c.Triangles()
	if err != nil {
		return nil, err
	}

	if c.Octree == nil {
		w, err := kcl.BuildWorld(tris, kcl.BuildOptions{
			Thickness:      c.Build.Thickness,
			Margin:         c.Build.Margin,
			MaxTrisPerLeaf: c.Build.MaxTrisPerLeaf,
			MinCellShift:   c.Build.MinCellShift,
		})
		if err != nil {
			return nil, fmt.Errorf("building octree: %w", err)
		}
		return w, nil
	}

	o := c.Octree
	h := kcl.Header{
		Thickness:    o.Thickness,
		Origin:       o.Origin,
		XMask:        o.XMask,
		YMask:        o.YMask,
		ZMask:        o.ZMask,
		Shift:        o.Shift,
		YShift:       o.YShift,
		ZShift:       o.ZShift,
		SphereRadius: o.SphereRadius,
	}
	tree := kcl.Octree{TriLists: o.TriLists}
	for _, v := range o.Roots {
		tree.RootNodes = append(tree.RootNodes, decodeNode(v))
	}
	for _, b := range o.Branches {
		var branch kcl.Branch
		for j, v := range b {
			branch[j] = decodeNode(v)
		}
		tree.Branches = append(tree.Branches, branch)
	}

	w, err := kcl.NewWorld(h, tris, tree)
	if err != nil {
		return nil, fmt.Errorf("loading octree: %w", err)
	}
	return w, nil
}

// CourseFromWorld stores a world as prisms with its octree, so that it loads back
// without rebuilding.
func CourseFromWorld(name string, w *kcl.World) Course {
	c := Course{Name: name, Prisms: make([]Prism, len(w.Tris))}
	for i, t := range w.Tris {
		c.Prisms[i] = Prism{
			Height:    t.Height,
			Position:  t.Position,
			Normal:    t.Normal,
			CANormal:  t.CANormal,
			ABNormal:  t.ABNormal,
			BCNormal:  t.BCNormal,
			Attribute: uint16(t.Attribute),
		}
	}

	h := w.Header
	o := &Octree{
		Thickness:    h.Thickness,
		Origin:       h.Origin,
		XMask:        h.XMask,
		YMask:        h.YMask,
		ZMask:        h.ZMask,
		Shift:        h.Shift,
		YShift:       h.YShift,
		ZShift:       h.ZShift,
		SphereRadius: h.SphereRadius,
		TriLists:     w.Octree.TriLists,
	}
	for _, n := range w.Octree.RootNodes {
		o.Roots = append(o.Roots, encodeNode(n))
	}
	for _, b := range w.Octree.Branches {
		var branch [8]uint32
		for j, n := range b {
			branch[j] = encodeNode(n)
		}
		o.Branches = append(o.Branches, branch)
	}
	c.Octree = o
	return c
}
