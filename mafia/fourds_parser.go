package mafia

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// FourDSParser is parser for .4ds model.
type FourDSParser struct {
	baseParser
	alphaTexture AlphaTexturePolicy
	warnings     []*Warning
}

// NewFourDSParser returns new parser. opts may be nil.
func NewFourDSParser(r io.Reader, opts *Options) *FourDSParser {
	p := &FourDSParser{baseParser: newBaseParser(r, opts)}
	if opts != nil {
		p.alphaTexture = opts.AlphaTexture
	}
	return p
}

func (p *FourDSParser) warn(kind WarningKind, index int, offset int64, msg string) {
	p.warnings = append(p.warnings, &Warning{Kind: kind, Index: index, Offset: offset, Message: msg})
}

// Parse model data.
//
// On an unsupported node type the returned model holds every node up to and
// including that one and the error wraps ErrUnsupportedNodeType. Any other
// error returns a nil model.
func (p *FourDSParser) Parse() (*Model, error) {
	magic := p.readFixedString(4)
	if p.err != nil {
		return nil, p.err
	}
	if magic != FourDSMagic {
		return nil, errors.Wrapf(ErrInvalidFormat, "not a 4ds file (magic %q)", magic)
	}

	var model Model
	model.Version = p.readUint16()
	if p.err != nil {
		return nil, p.err
	}
	if model.Version != FourDSVersion {
		return nil, errors.Wrapf(ErrInvalidFormat, "unsupported 4ds version 0x%x", model.Version)
	}
	model.Timestamp = p.readUint64()

	materials := int(p.readUint16())
	for i := 0; i < materials && p.err == nil; i++ {
		m := p.readMaterial(i)
		if p.err != nil {
			return nil, errors.Wrapf(p.err, "material %d", i)
		}
		model.Materials = append(model.Materials, m)
	}

	nodes := int(p.readUint16())
	if p.err != nil {
		return nil, p.err
	}
	for i := 0; i < nodes; i++ {
		offset := p.pos
		n, err := p.readNode(i)
		if errors.Is(err, ErrUnsupportedNodeType) {
			p.warn(WarnUnsupportedNode, i, offset, err.Error())
			model.Nodes = append(model.Nodes, n)
			model.Warnings = p.warnings
			return &model, err
		}
		if err != nil {
			return nil, errors.Wrapf(err, "node %d", i)
		}
		model.Nodes = append(model.Nodes, n)
	}
	model.Warnings = p.warnings
	return &model, nil
}

// materialLayout lists the optional material fields present for a flag set.
type materialLayout struct {
	env          bool
	alphaTexture bool
	animated     bool
}

func newMaterialLayout(props MaterialProps) materialLayout {
	return materialLayout{
		env:          props.UseEnvTexture,
		alphaTexture: props.AddEffect && props.UseAlphaTexture,
		animated:     props.AnimatedDiffuse,
	}
}

func (p *FourDSParser) readMaterial(index int) *Material {
	offset := p.pos
	m := &Material{Flags: p.readUint32()}
	m.Props = NewMaterialProps(m.Flags)
	layout := newMaterialLayout(m.Props)

	m.Ambient = p.readVector3()
	m.Diffuse = p.readVector3()
	m.Emission = p.readVector3()
	m.Alpha = p.readFloat()

	if layout.env {
		m.Metallic = p.readFloat()
		m.EnvTexture = strings.ToLower(p.readString())
	}

	m.DiffuseTexture = strings.ToLower(p.readString())

	if layout.alphaTexture {
		p.warn(WarnAlphaTexture, index, offset, "add-effect material with alpha texture")
		if p.alphaTexture == AlphaTextureSkipRemainder {
			return m
		}
		m.AlphaTexture = strings.ToLower(p.readString())
	}

	if layout.animated {
		a := &AnimatedTexture{}
		a.Frames = p.readUint32()
		a.Unknown1 = p.readUint16()
		a.FrameLength = p.readUint32()
		a.Unknown2 = p.readUint64()
		m.Animation = a
	}
	return m
}

func (p *FourDSParser) readNode(index int) (*Node, error) {
	n := &Node{Type: NodeType(p.readUint8())}

	var visualType VisualType
	var renderFlags uint16
	if n.Type == NodeVisual {
		visualType = VisualType(p.readUint8())
		renderFlags = p.readUint16()
	}

	n.ParentID = p.readUint16()
	n.Location = Flip3(p.readVector3())
	n.Scale = Flip3(p.readVector3())
	n.Rotation = Flip4(p.readQuaternion())
	n.CullingFlags = p.readUint8()
	n.Name = p.readString()
	n.Parameters = p.readString()
	if p.err != nil {
		return nil, p.err
	}

	switch n.Type {
	case NodeVisual:
		f, err := p.readVisualFrame(visualType, renderFlags)
		if err != nil {
			return nil, errors.Wrapf(err, "%q", n.Name)
		}
		n.Frame = f
	case NodeDummy:
		n.Frame = p.readDummy()
	case NodeTarget:
		n.Frame = p.readTarget()
	case NodeBone:
		n.Frame = p.readBone()
	default:
		n.Frame = &UnknownFrame{Type: n.Type}
		return n, errors.Wrapf(ErrUnsupportedNodeType, "node %d %q has type %d", index, n.Name, n.Type)
	}
	if p.err != nil {
		return nil, errors.Wrapf(p.err, "%v %q", n.Type, n.Name)
	}
	return n, nil
}

func (p *FourDSParser) readDummy() *Dummy {
	return &Dummy{Min: p.readVector3(), Max: p.readVector3()}
}

func (p *FourDSParser) readTarget() *Target {
	t := &Target{Flags: p.readUint16()}
	n := int(p.readUint8())
	t.Links = make([]uint16, n)
	p.read(t.Links)
	return t
}

func (p *FourDSParser) readBone() *Bone {
	b := &Bone{Matrix: p.readMatrix()}
	b.ID = p.readUint32()
	return b
}

func (p *FourDSParser) readVisualFrame(visualType VisualType, renderFlags uint16) (*VisualFrame, error) {
	switch visualType {
	case VisualMesh, VisualLitMesh, VisualSkin, VisualSkinMorph:
	default:
		return nil, errors.Wrapf(ErrInvalidFormat, "unknown visual type %d", visualType)
	}
	f := &VisualFrame{VisualType: visualType, RenderFlags: renderFlags}
	f.Mesh = p.readMesh(visualType.HasSkin(), visualType.HasMorph())
	return f, p.err
}

func (p *FourDSParser) readMesh(skin, morph bool) *Mesh {
	m := &Mesh{InstanceID: p.readUint16()}
	if m.InstanceID != 0 || p.err != nil {
		return m
	}

	lods := int(p.readUint8())
	for i := 0; i < lods && p.err == nil; i++ {
		m.LODs = append(m.LODs, p.readLOD())
	}

	if skin {
		for i := 0; i < lods && p.err == nil; i++ {
			bones := int(p.readUint8())
			p.readUint32() // locked vertices of all groups
			p.readVector3()
			p.readVector3()
			for b := 0; b < bones && p.err == nil; b++ {
				m.VertexGroups = append(m.VertexGroups, p.readVertexGroup())
			}
			m.SkinBoneCounts = append(m.SkinBoneCounts, bones)
		}
	}

	if morph {
		m.Morph = p.readMorph()
	}
	return m
}

type rawVertex struct {
	Pos    Vector3
	Normal Vector3
	UV     Vector2
}

func (p *FourDSParser) readLOD() *LOD {
	lod := &LOD{ClippingRange: p.readFloat()}

	raw := make([]rawVertex, p.readUint16())
	if p.read(raw) != nil {
		return lod
	}
	lod.Vertices = make([]Vector3, len(raw))
	lod.Normals = make([]Vector3, len(raw))
	lod.UVs = make([]Vector2, len(raw))
	for i, v := range raw {
		lod.Vertices[i] = Flip3(v.Pos)
		lod.Normals[i] = Flip3(v.Normal)
		lod.UVs[i] = Flip2(v.UV)
	}

	groups := int(p.readUint8())
	for i := 0; i < groups && p.err == nil; i++ {
		g := &FaceGroup{Faces: make([]Face, p.readUint16())}
		p.read(g.Faces)
		g.MaterialID = p.readUint16()
		lod.FaceGroups = append(lod.FaceGroups, g)
	}
	return lod
}

func (p *FourDSParser) readVertexGroup() *VertexGroup {
	g := &VertexGroup{Matrix: p.readMatrix()}
	g.NumLocked = p.readUint32()
	weighted := p.readUint32()
	g.ParentID = p.readUint32()
	g.Min = p.readVector3()
	g.Max = p.readVector3()
	for i := uint32(0); i < weighted && p.err == nil; i++ {
		g.Weights = append(g.Weights, p.readFloat())
	}
	return g
}

func (p *FourDSParser) readMorph() *Morph {
	m := &Morph{TargetCount: int(p.readUint8())}
	if m.TargetCount == 0 || p.err != nil {
		return m
	}
	m.RegionCount = int(p.readUint8())
	m.LODCount = int(p.readUint8())

	for lod := 0; lod < m.LODCount && p.err == nil; lod++ {
		for i := 0; i < m.RegionCount && p.err == nil; i++ {
			r := MorphRegion{LOD: lod, VertexCount: int(p.readUint16())}
			// position and normal per vertex per target
			p.skip(r.VertexCount * m.TargetCount * 24)
			r.HasIndices = true
			if r.VertexCount*m.TargetCount > 0 && p.readUint8() == 0 {
				r.HasIndices = false
			}
			if r.HasIndices {
				p.skip(r.VertexCount * 2)
			}
			m.Regions = append(m.Regions, r)
		}
	}

	m.Min = p.readVector3()
	m.Max = p.readVector3()
	m.Origin = p.readVector3()
	m.Radius = p.readFloat()
	return m
}

// ParseModel decodes a 4DS stream with default options.
func ParseModel(r io.Reader) (*Model, error) {
	return NewFourDSParser(r, nil).Parse()
}

// ParseModelFile decodes the 4DS file at path.
func ParseModelFile(path string, opts *Options) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	m, err := NewFourDSParser(f, opts).Parse()
	if err != nil {
		return m, errors.Wrap(err, path)
	}
	return m, nil
}
