package mafia

import (
	"fmt"

	"github.com/pkg/errors"
)

const (
	FourDSMagic   = "4DS\x00"
	FourDSVersion = 0x1d
)

// Model is a decoded 4DS file.
type Model struct {
	Version   uint16
	Timestamp uint64
	Materials []*Material
	Nodes     []*Node
	Warnings  []*Warning `yaml:",omitempty"`
}

type MaterialProps struct {
	UseDiffuseTex bool

	Coloring   bool
	MipMapping bool
	TwoSided   bool

	AddEffect bool

	ColorKey        bool
	AdditiveBlend   bool
	UseAlphaTexture bool

	UseEnvTexture   bool
	EnvDefaultMode  bool
	EnvMultiplyMode bool
	EnvAdditiveMode bool
	EnvYAxisRefl    bool
	EnvYAxisProj    bool
	EnvZAxisProj    bool

	AnimatedDiffuse bool
	AnimatedAlpha   bool
}

const (
	MaterialFlagEnvDefaultMode  uint32 = 0x00000100
	MaterialFlagEnvMultiplyMode uint32 = 0x00000200
	MaterialFlagEnvAdditiveMode uint32 = 0x00000400
	MaterialFlagEnvYAxisRefl    uint32 = 0x00001000
	MaterialFlagEnvYAxisProj    uint32 = 0x00002000
	MaterialFlagEnvZAxisProj    uint32 = 0x00004000
	MaterialFlagAddEffect       uint32 = 0x00008000
	MaterialFlagDiffuseTexture  uint32 = 0x00040000
	MaterialFlagEnvTexture      uint32 = 0x00080000
	MaterialFlagMipMapping      uint32 = 0x00800000
	MaterialFlagAnimatedAlpha   uint32 = 0x02000000
	MaterialFlagAnimatedDiffuse uint32 = 0x04000000
	MaterialFlagColoring        uint32 = 0x08000000
	MaterialFlagTwoSided        uint32 = 0x10000000
	MaterialFlagColorKey        uint32 = 0x20000000
	MaterialFlagAlphaTexture    uint32 = 0x40000000
	MaterialFlagAdditiveBlend   uint32 = 0x80000000
)

func NewMaterialProps(flags uint32) MaterialProps {
	has := func(bit uint32) bool { return flags&bit != 0 }
	return MaterialProps{
		UseDiffuseTex:   has(MaterialFlagDiffuseTexture),
		Coloring:        has(MaterialFlagColoring),
		MipMapping:      has(MaterialFlagMipMapping),
		TwoSided:        has(MaterialFlagTwoSided),
		AddEffect:       has(MaterialFlagAddEffect),
		ColorKey:        has(MaterialFlagColorKey),
		AdditiveBlend:   has(MaterialFlagAdditiveBlend),
		UseAlphaTexture: has(MaterialFlagAlphaTexture),
		UseEnvTexture:   has(MaterialFlagEnvTexture),
		EnvDefaultMode:  has(MaterialFlagEnvDefaultMode),
		EnvMultiplyMode: has(MaterialFlagEnvMultiplyMode),
		EnvAdditiveMode: has(MaterialFlagEnvAdditiveMode),
		EnvYAxisRefl:    has(MaterialFlagEnvYAxisRefl),
		EnvYAxisProj:    has(MaterialFlagEnvYAxisProj),
		EnvZAxisProj:    has(MaterialFlagEnvZAxisProj),
		AnimatedDiffuse: has(MaterialFlagAnimatedDiffuse),
		AnimatedAlpha:   has(MaterialFlagAnimatedAlpha),
	}
}

type Material struct {
	Flags uint32
	Props MaterialProps

	Ambient  Vector3
	Diffuse  Vector3
	Emission Vector3
	Alpha    float32
	Metallic float32

	DiffuseTexture string
	EnvTexture     string           `yaml:",omitempty"`
	AlphaTexture   string           `yaml:",omitempty"`
	Animation      *AnimatedTexture `yaml:",omitempty"`
}

type AnimatedTexture struct {
	Frames      uint32
	Unknown1    uint16
	FrameLength uint32
	Unknown2    uint64
}

type NodeType uint8

const (
	NodeVisual NodeType = 1
	NodeDummy  NodeType = 6
	NodeTarget NodeType = 7
	NodeBone   NodeType = 10
)

func (t NodeType) String() string {
	switch t {
	case NodeVisual:
		return "visual"
	case NodeDummy:
		return "dummy"
	case NodeTarget:
		return "target"
	case NodeBone:
		return "bone"
	}
	return fmt.Sprintf("type%d", uint8(t))
}

type VisualType uint8

const (
	VisualMesh      VisualType = 0
	VisualLitMesh   VisualType = 1
	VisualSkin      VisualType = 2
	VisualSkinMorph VisualType = 3
)

func (t VisualType) HasSkin() bool {
	return t == VisualSkin || t == VisualSkinMorph
}

func (t VisualType) HasMorph() bool {
	return t == VisualSkinMorph
}

type Node struct {
	Type         NodeType
	ParentID     uint16 // 1-based index into Model.Nodes, 0 for the scene root
	Location     Vector3
	Scale        Vector3
	Rotation     Quaternion
	CullingFlags uint8
	Name         string
	Parameters   string
	Frame        Frame
}

// Frame is the type specific payload of a Node. The set of implementations
// is closed: *VisualFrame, *Dummy, *Target, *Bone and *UnknownFrame.
type Frame interface {
	frameType() NodeType
}

type VisualFrame struct {
	VisualType  VisualType
	RenderFlags uint16
	Mesh        *Mesh
}

type Dummy struct {
	Min Vector3
	Max Vector3
}

type Target struct {
	Flags uint16
	Links []uint16
}

type Bone struct {
	Matrix Matrix4
	ID     uint32
}

// UnknownFrame marks a node whose payload could not be decoded.
type UnknownFrame struct {
	Type NodeType
}

func (*VisualFrame) frameType() NodeType    { return NodeVisual }
func (*Dummy) frameType() NodeType          { return NodeDummy }
func (*Target) frameType() NodeType         { return NodeTarget }
func (*Bone) frameType() NodeType           { return NodeBone }
func (f *UnknownFrame) frameType() NodeType { return f.Type }

type Mesh struct {
	// InstanceID is nonzero when the geometry is shared with the visual
	// node of that (1-based) index. Such meshes carry no LODs.
	InstanceID uint16

	LODs []*LOD

	// VertexGroups holds the skin groups of every LOD back to back.
	VertexGroups   []*VertexGroup `yaml:",omitempty"`
	SkinBoneCounts []int          `yaml:",omitempty"`

	Morph *Morph `yaml:",omitempty"`
}

type LOD struct {
	ClippingRange float32
	Vertices      []Vector3
	Normals       []Vector3
	UVs           []Vector2
	FaceGroups    []*FaceGroup
}

type Face [3]uint16

type FaceGroup struct {
	Faces      []Face
	MaterialID uint16 // 1-based index into Model.Materials
}

type VertexGroup struct {
	Matrix    Matrix4
	NumLocked uint32 // vertices with weight 1
	ParentID  uint32
	Min       Vector3
	Max       Vector3
	Weights   []float32
}

func (g *VertexGroup) NumWeighted() int {
	return len(g.Weights)
}

// Morph only describes the block; its layout is reverse engineered from a
// handful of files and the per-region index array flag is unverified.
type Morph struct {
	TargetCount int
	RegionCount int
	LODCount    int
	Regions     []MorphRegion `yaml:",omitempty"`
	Min         Vector3
	Max         Vector3
	Origin      Vector3
	Radius      float32
}

type MorphRegion struct {
	LOD         int
	VertexCount int
	HasIndices  bool
}

// Node returns the node with the given 1-based id, or nil.
func (m *Model) Node(id int) *Node {
	if id <= 0 || id > len(m.Nodes) {
		return nil
	}
	return m.Nodes[id-1]
}

// Children returns the 1-based ids of the direct children of id. Use 0 for the roots.
func (m *Model) Children(id int) []int {
	var ids []int
	for i, n := range m.Nodes {
		if int(n.ParentID) == id {
			ids = append(ids, i+1)
		}
	}
	return ids
}

// BoneByID finds the bone node whose frame carries the given bone id.
func (m *Model) BoneByID(id uint32) *Node {
	for _, n := range m.Nodes {
		if b, ok := n.Frame.(*Bone); ok && b.ID == id {
			return n
		}
	}
	return nil
}

// Bones returns the bone nodes indexed by bone id.
func (m *Model) Bones() map[uint32]*Node {
	bones := map[uint32]*Node{}
	for _, n := range m.Nodes {
		if b, ok := n.Frame.(*Bone); ok {
			bones[b.ID] = n
		}
	}
	return bones
}

// LODVertexGroups returns the skin groups of one LOD.
func (m *Mesh) LODVertexGroups(lod int) []*VertexGroup {
	if lod < 0 || lod >= len(m.SkinBoneCounts) {
		return nil
	}
	start := 0
	for _, n := range m.SkinBoneCounts[:lod] {
		start += n
	}
	end := start + m.SkinBoneCounts[lod]
	if end > len(m.VertexGroups) {
		return nil
	}
	return m.VertexGroups[start:end]
}

// VertexRange is the span of vertices bound to one skin group. Vertices in
// [Start, Start+Locked) have weight 1, the rest up to End carry a weight.
type VertexRange struct {
	Start  int
	Locked int
	End    int
}

// VertexGroupRanges lays the groups of one LOD out over its vertices. Groups
// are disjoint and consecutive; whatever remains is bound to the base.
func (m *Mesh) VertexGroupRanges(lod int) ([]VertexRange, VertexRange, error) {
	if lod < 0 || lod >= len(m.LODs) {
		return nil, VertexRange{}, errors.Errorf("lod %d out of range", lod)
	}
	vertexCount := len(m.LODs[lod].Vertices)
	var ranges []VertexRange
	pos := 0
	for i, g := range m.LODVertexGroups(lod) {
		r := VertexRange{Start: pos, Locked: int(g.NumLocked), End: pos + int(g.NumLocked) + g.NumWeighted()}
		if r.End > vertexCount {
			return nil, VertexRange{}, errors.Errorf("lod %d group %d covers %d vertices, lod has %d", lod, i, r.End, vertexCount)
		}
		ranges = append(ranges, r)
		pos = r.End
	}
	return ranges, VertexRange{Start: pos, Locked: vertexCount - pos, End: vertexCount}, nil
}

// Validate checks the index references inside the model.
func (m *Model) Validate() error {
	for i, n := range m.Nodes {
		if int(n.ParentID) > i {
			return errors.Errorf("node %d %q: parent %d is not listed before it", i+1, n.Name, n.ParentID)
		}
		vf, ok := n.Frame.(*VisualFrame)
		if !ok || vf.Mesh == nil {
			continue
		}
		if id := int(vf.Mesh.InstanceID); id != 0 {
			if src := m.Node(id); src == nil || src.Frame.frameType() != NodeVisual {
				return errors.Errorf("node %d %q: instance %d is not a visual node", i+1, n.Name, id)
			}
			continue
		}
		for l, lod := range vf.Mesh.LODs {
			for _, g := range lod.FaceGroups {
				if int(g.MaterialID) > len(m.Materials) {
					return errors.Errorf("node %d %q lod %d: material %d out of range", i+1, n.Name, l, g.MaterialID)
				}
				for _, f := range g.Faces {
					for _, v := range f {
						if int(v) >= len(lod.Vertices) {
							return errors.Errorf("node %d %q lod %d: vertex %d out of range", i+1, n.Name, l, v)
						}
					}
				}
			}
			if len(vf.Mesh.SkinBoneCounts) > 0 {
				if _, _, err := vf.Mesh.VertexGroupRanges(l); err != nil {
					return errors.Wrapf(err, "node %d %q", i+1, n.Name)
				}
			}
		}
	}
	return nil
}
