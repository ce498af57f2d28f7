package converter

import (
	"fmt"
	"log"

	"github.com/binzume/mafiaconv/geom"
	"github.com/binzume/mafiaconv/gltfutil"
	"github.com/binzume/mafiaconv/mafia"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

type FourDSToGLTFOption struct {
	Scale      float32 // Default: 1
	ForceUnlit bool
	ExportLODs bool // LOD 1.. become child nodes named <name>_lod<N>

	TextureDir             string // usually <data path>/maps
	TextureScale           float32
	TextureResolutionLimit int // 0: unlimited

	MaterialSettings map[string]*MaterialSetting
}

type fourDSToGltf struct {
	*FourDSToGLTFOption
	*gltf.Document
	textures  *textureCache
	boneNodes map[uint32]uint32 // bone id => node
	meshes    map[int]*convertedMesh
	world     []*geom.Matrix4
}

type convertedMesh struct {
	mesh *uint32
	skin *uint32
}

func NewFourDSToGLTFConverter(options *FourDSToGLTFOption) *fourDSToGltf {
	if options == nil {
		options = &FourDSToGLTFOption{}
	}
	if options.Scale == 0 {
		options.Scale = 1
	}
	if options.TextureScale == 0 {
		options.TextureScale = 1.0
	}
	return &fourDSToGltf{
		FourDSToGLTFOption: options,
		Document:           gltf.NewDocument(),
		textures:           newTextureCache(options.TextureDir),
		boneNodes:          map[uint32]uint32{},
		meshes:             map[int]*convertedMesh{},
	}
}

// Decoded models are Z-up, glTF is Y-up.
func toGLTFVector(v mafia.Vector3) [3]float32 {
	return [3]float32{v.X, v.Z, -v.Y}
}

func toGLTFScale(v mafia.Vector3) [3]float32 {
	return [3]float32{v.X, v.Z, v.Y}
}

func toGLTFRotation(q mafia.Quaternion) [4]float32 {
	var r [4]float32
	geom.NewQuaternion(q.X, q.Z, -q.Y, q.W).Normalize().ToArray(r[:])
	return r
}

func (c *fourDSToGltf) position(v mafia.Vector3) [3]float32 {
	p := toGLTFVector(v)
	return [3]float32{p[0] * c.Scale, p[1] * c.Scale, p[2] * c.Scale}
}

func (c *fourDSToGltf) box(min, max mafia.Vector3) map[string][3]float32 {
	a, b := geom.NewVector3FromArray(c.position(min)), geom.NewVector3FromArray(c.position(max))
	var lo, hi [3]float32
	a.Min(b).ToArray(lo[:])
	a.Max(b).ToArray(hi[:])
	return map[string][3]float32{"min": lo, "max": hi}
}

// restPose splits a decoded rest matrix (translation in the last row) into
// glTF translation, rotation and scale.
func (c *fourDSToGltf) restPose(m mafia.Matrix4) map[string]interface{} {
	t, r, s := geom.NewMatrix4FromRows(m).Decompose()
	return map[string]interface{}{
		"translation": c.position(mafia.Vector3{X: t.X, Y: t.Y, Z: t.Z}),
		"rotation":    toGLTFRotation(mafia.Quaternion{W: r.W, X: r.X, Y: r.Y, Z: r.Z}),
		"scale":       toGLTFScale(mafia.Vector3{X: s.X, Y: s.Y, Z: s.Z}),
	}
}

func (c *fourDSToGltf) addMatrices(mat [][4][4]float32) uint32 {
	a := make([][4]float32, len(mat)*4)
	for i, m := range mat {
		a[i*4+0] = m[0]
		a[i*4+1] = m[1]
		a[i*4+2] = m[2]
		a[i*4+3] = m[3]
	}
	acc := modeler.WriteTangent(c.Document, a)
	c.Accessors[acc].Type = gltf.AccessorMat4
	c.Accessors[acc].Count /= 4
	c.BufferViews[*c.Accessors[acc].BufferView].ByteStride *= 4
	return acc
}

func (c *fourDSToGltf) convertNode(n *mafia.Node) *gltf.Node {
	node := &gltf.Node{
		Name:        n.Name,
		Translation: c.position(n.Location),
		Rotation:    toGLTFRotation(n.Rotation),
		Scale:       toGLTFScale(n.Scale),
	}
	extras := map[string]interface{}{}
	if n.Parameters != "" {
		extras["parameters"] = n.Parameters
	}
	if n.CullingFlags != 0 {
		extras["cullingFlags"] = n.CullingFlags
	}
	switch f := n.Frame.(type) {
	case *mafia.VisualFrame:
		extras["visualType"] = int(f.VisualType)
		if f.RenderFlags != 0 {
			extras["renderFlags"] = f.RenderFlags
		}
		if f.Mesh != nil && f.Mesh.InstanceID != 0 {
			extras["instanceOf"] = int(f.Mesh.InstanceID) - 1
		}
	case *mafia.Dummy:
		extras["dummy"] = c.box(f.Min, f.Max)
	case *mafia.Target:
		links := make([]int, len(f.Links))
		for i, l := range f.Links {
			links[i] = int(l) - 1
		}
		extras["target"] = map[string]interface{}{"flags": f.Flags, "links": links}
	case *mafia.Bone:
		extras["boneId"] = f.ID
		extras["restPose"] = c.restPose(f.Matrix)
	case *mafia.UnknownFrame:
		extras["unsupportedType"] = int(f.Type)
	}
	if len(extras) > 0 {
		node.Extras = extras
	}
	return node
}

// skinWeights binds every vertex of one LOD. Joint 0 is the base joint;
// group g uses the joint returned by jointOf(g).
func skinWeights(mesh *mafia.Mesh, lod int, jointOf func(group int) uint16) ([][4]uint16, [][4]float32, error) {
	ranges, rest, err := mesh.VertexGroupRanges(lod)
	if err != nil {
		return nil, nil, err
	}
	groups := mesh.LODVertexGroups(lod)
	vertexCount := len(mesh.LODs[lod].Vertices)
	joints := make([][4]uint16, vertexCount)
	weights := make([][4]float32, vertexCount)

	for g, r := range ranges {
		joint := jointOf(g)
		for v := r.Start; v < r.Start+r.Locked; v++ {
			joints[v] = [4]uint16{joint}
			weights[v] = [4]float32{1}
		}
		for i, w := range groups[g].Weights {
			v := r.Start + r.Locked + i
			joints[v] = [4]uint16{joint, 0}
			weights[v] = [4]float32{w, 1 - w}
		}
	}
	for v := rest.Start; v < rest.End; v++ {
		weights[v] = [4]float32{1}
	}
	return joints, weights, nil
}

type lodSkin struct {
	index   uint32
	joints  [][4]uint16
	weights [][4]float32
}

func (c *fourDSToGltf) baseJoint(index int) uint32 {
	node := c.Nodes[index]
	base := uint32(len(c.Nodes))
	c.Nodes = append(c.Nodes, &gltf.Node{
		Name:     node.Name + "_base",
		Rotation: [4]float32{0, 0, 0, 1},
		Scale:    [3]float32{1, 1, 1},
	})
	node.Children = append(node.Children, base)
	return base
}

func (c *fourDSToGltf) buildSkin(index int, mesh *mafia.Mesh, lod int, base uint32) (*lodSkin, error) {
	jointNodes := []uint32{base}
	joints, weights, err := skinWeights(mesh, lod, func(g int) uint16 {
		b, ok := c.boneNodes[uint32(g)]
		if !ok {
			log.Printf("bone %d not found for %q", g, c.Nodes[index].Name)
			return 0
		}
		jointNodes = append(jointNodes, b)
		return uint16(len(jointNodes) - 1)
	})
	if err != nil {
		return nil, err
	}

	meshWorld := c.world[index]
	invmats := make([][4][4]float32, len(jointNodes))
	for i, j := range jointNodes {
		if int(j) < len(c.world) {
			invmats[i] = gltfutil.MatrixColumns(c.world[j].Inverse().Mul(meshWorld))
		} else {
			// the base joint sits at the mesh origin
			invmats[i] = gltfutil.MatrixColumns(geom.NewMatrix4())
		}
	}
	c.Skins = append(c.Skins, &gltf.Skin{
		Name:                fmt.Sprintf("%s_lod%d", c.Nodes[index].Name, lod),
		Joints:              jointNodes,
		InverseBindMatrices: gltf.Index(c.addMatrices(invmats)),
	})
	return &lodSkin{index: uint32(len(c.Skins) - 1), joints: joints, weights: weights}, nil
}

func (c *fourDSToGltf) convertLOD(name string, lod *mafia.LOD, skin *lodSkin) *gltf.Mesh {
	vertexCount := len(lod.Vertices)
	if vertexCount == 0 {
		return nil
	}
	positions := make([][3]float32, vertexCount)
	normals := make([][3]float32, vertexCount)
	texcoords := make([][2]float32, vertexCount)
	for i, v := range lod.Vertices {
		positions[i] = c.position(v)
		normals[i] = toGLTFVector(lod.Normals[i])
		// decoded UVs have a bottom-left origin
		texcoords[i] = [2]float32{lod.UVs[i].X, 1 - lod.UVs[i].Y}
	}

	attributes := map[string]uint32{
		"POSITION":   modeler.WritePosition(c.Document, positions),
		"TEXCOORD_0": modeler.WriteTextureCoord(c.Document, texcoords),
	}
	if !c.ForceUnlit {
		attributes["NORMAL"] = modeler.WriteNormal(c.Document, normals)
	}
	if skin != nil {
		attributes["JOINTS_0"] = modeler.WriteJoints(c.Document, skin.joints)
		attributes["WEIGHTS_0"] = modeler.WriteWeights(c.Document, skin.weights)
	}

	var primitives []*gltf.Primitive
	invalid := 0
	for _, g := range lod.FaceGroups {
		indices := make([]uint16, 0, len(g.Faces)*3)
		for _, f := range g.Faces {
			if int(f[0]) >= vertexCount || int(f[1]) >= vertexCount || int(f[2]) >= vertexCount {
				invalid++
				continue
			}
			indices = append(indices, f[0], f[1], f[2])
		}
		if len(indices) == 0 {
			continue
		}
		p := &gltf.Primitive{
			Indices:    gltf.Index(modeler.WriteIndices(c.Document, indices)),
			Attributes: attributes,
		}
		if id := int(g.MaterialID); id > 0 && id <= len(c.Materials) {
			p.Material = gltf.Index(uint32(id - 1))
		}
		primitives = append(primitives, p)
	}
	if invalid > 0 {
		log.Printf("%s: %d faces with invalid vertex index", name, invalid)
	}
	if len(primitives) == 0 {
		return nil
	}
	return &gltf.Mesh{Name: name, Primitives: primitives}
}

func (c *fourDSToGltf) convertVisual(index int, vf *mafia.VisualFrame) error {
	node := c.Nodes[index]
	converted := &convertedMesh{}
	c.meshes[index] = converted

	var base *uint32
	for l, lod := range vf.Mesh.LODs {
		if l > 0 && !c.ExportLODs {
			break
		}
		name := node.Name
		if l > 0 {
			name = fmt.Sprintf("%s_lod%d", node.Name, l)
		}

		var skin *lodSkin
		if vf.VisualType.HasSkin() && len(vf.Mesh.SkinBoneCounts) > l {
			if base == nil {
				base = gltf.Index(c.baseJoint(index))
			}
			s, err := c.buildSkin(index, vf.Mesh, l, *base)
			if err != nil {
				return errors.Wrapf(err, "node %q", node.Name)
			}
			skin = s
		}

		mesh := c.convertLOD(name, lod, skin)
		if mesh == nil {
			continue
		}
		meshIndex := gltf.Index(uint32(len(c.Meshes)))
		c.Meshes = append(c.Meshes, mesh)

		target := node
		if l > 0 {
			target = &gltf.Node{
				Name:     name,
				Rotation: [4]float32{0, 0, 0, 1},
				Scale:    [3]float32{1, 1, 1},
				Extras:   map[string]interface{}{"lod": l, "clippingRange": lod.ClippingRange, "hidden": true},
			}
			node.Children = append(node.Children, uint32(len(c.Nodes)))
			c.Nodes = append(c.Nodes, target)
		}
		target.Mesh = meshIndex
		if skin != nil {
			target.Skin = gltf.Index(skin.index)
		}
		if l == 0 {
			converted.mesh = target.Mesh
			converted.skin = target.Skin
		}
	}
	return nil
}

// Convert builds a glTF scene with one node per 4DS node, in the same order.
func (c *fourDSToGltf) Convert(model *mafia.Model) (*gltf.Document, error) {
	useUnlit := false
	for i, mat := range model.Materials {
		mm := c.convertMaterial(i, mat)
		if mm.Extensions[unlitMaterialExt] != nil {
			useUnlit = true
		}
		c.Materials = append(c.Materials, mm)
	}
	if useUnlit {
		c.ExtensionsUsed = append(c.ExtensionsUsed, unlitMaterialExt)
	}

	for i, n := range model.Nodes {
		if b, ok := n.Frame.(*mafia.Bone); ok {
			if _, exists := c.boneNodes[b.ID]; !exists {
				c.boneNodes[b.ID] = uint32(i)
			}
		}
		c.Nodes = append(c.Nodes, c.convertNode(n))
	}
	for i, n := range model.Nodes {
		parent := int(n.ParentID)
		if parent > 0 && parent <= i {
			p := c.Nodes[parent-1]
			p.Children = append(p.Children, uint32(i))
			continue
		}
		if parent != 0 {
			log.Printf("node %q: invalid parent %d", n.Name, parent)
		}
		c.Scenes[0].Nodes = append(c.Scenes[0].Nodes, uint32(i))
	}
	c.world = gltfutil.WorldMatrices(c.Document)

	for i, n := range model.Nodes {
		if vf, ok := n.Frame.(*mafia.VisualFrame); ok && vf.Mesh != nil && vf.Mesh.InstanceID == 0 {
			if err := c.convertVisual(i, vf); err != nil {
				return nil, err
			}
		}
	}
	for i, n := range model.Nodes {
		vf, ok := n.Frame.(*mafia.VisualFrame)
		if !ok || vf.Mesh == nil || vf.Mesh.InstanceID == 0 {
			continue
		}
		src := c.meshes[int(vf.Mesh.InstanceID)-1]
		if src == nil {
			log.Printf("node %q: instance source %d not found", n.Name, vf.Mesh.InstanceID)
			continue
		}
		c.Nodes[i].Mesh = src.mesh
		c.Nodes[i].Skin = src.skin
	}

	if len(c.Document.Textures) > 0 {
		c.Document.Samplers = []*gltf.Sampler{{}}
	}
	return c.Document, nil
}
