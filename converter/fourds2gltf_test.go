package converter

import (
	"testing"

	"github.com/binzume/mafiaconv/mafia"
	"github.com/chewxy/math32"
	"github.com/qmuntal/gltf"
)

func triangleLOD(extra int) *mafia.LOD {
	lod := &mafia.LOD{
		ClippingRange: 100,
		Vertices:      []mafia.Vector3{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 0, Z: 0}, {X: 0, Y: 0, Z: 1}},
		Normals:       []mafia.Vector3{{Z: 1}, {Z: 1}, {Z: 1}},
		UVs:           []mafia.Vector2{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}},
		FaceGroups:    []*mafia.FaceGroup{{Faces: []mafia.Face{{0, 1, 2}}, MaterialID: 1}},
	}
	for i := 0; i < extra; i++ {
		lod.Vertices = append(lod.Vertices, mafia.Vector3{X: float32(i)})
		lod.Normals = append(lod.Normals, mafia.Vector3{Z: 1})
		lod.UVs = append(lod.UVs, mafia.Vector2{})
	}
	return lod
}

var identity = mafia.Quaternion{W: 1}

func testModel() *mafia.Model {
	one := mafia.Vector3{X: 1, Y: 1, Z: 1}
	return &mafia.Model{
		Version: mafia.FourDSVersion,
		Materials: []*mafia.Material{
			{Diffuse: mafia.Vector3{X: 1}, Alpha: 1},
			{Alpha: 0.5, Props: mafia.MaterialProps{AdditiveBlend: true, TwoSided: true}},
		},
		Nodes: []*mafia.Node{
			{
				Type: mafia.NodeDummy, Name: "root", Location: mafia.Vector3{X: 1, Y: 2, Z: 3}, Scale: one, Rotation: identity,
				Frame: &mafia.Dummy{Max: mafia.Vector3{X: 1, Y: 2, Z: 3}},
			},
			{
				Type: mafia.NodeVisual, ParentID: 1, Name: "box", Scale: one, Rotation: identity,
				Frame: &mafia.VisualFrame{Mesh: &mafia.Mesh{LODs: []*mafia.LOD{triangleLOD(0), triangleLOD(0)}}},
			},
			{
				Type: mafia.NodeVisual, Name: "box2", Scale: one, Rotation: identity,
				Frame: &mafia.VisualFrame{Mesh: &mafia.Mesh{InstanceID: 2}},
			},
			{
				Type: mafia.NodeBone, Name: "bone0", Location: mafia.Vector3{Z: 1}, Scale: one, Rotation: identity,
				Frame: &mafia.Bone{ID: 0},
			},
			{
				Type: mafia.NodeVisual, Name: "skin", Scale: one, Rotation: identity,
				Frame: &mafia.VisualFrame{
					VisualType: mafia.VisualSkin,
					Mesh: &mafia.Mesh{
						LODs:           []*mafia.LOD{triangleLOD(1)},
						SkinBoneCounts: []int{1},
						VertexGroups:   []*mafia.VertexGroup{{NumLocked: 1, Weights: []float32{0.5}}},
					},
				},
			},
			{
				Type: mafia.NodeTarget, Name: "target", Scale: one, Rotation: identity,
				Frame: &mafia.Target{Links: []uint16{4}},
			},
		},
	}
}

func TestConvertModel(t *testing.T) {
	doc, err := NewFourDSToGLTFConverter(&FourDSToGLTFOption{ExportLODs: true}).Convert(testModel())
	if err != nil {
		t.Fatal(err)
	}

	// 6 model nodes, box_lod1, skin_base
	if len(doc.Nodes) != 8 {
		t.Fatal("nodes: ", len(doc.Nodes))
	}
	if doc.Nodes[5].Name != "target" || doc.Nodes[6].Name != "box_lod1" || doc.Nodes[7].Name != "skin_base" {
		t.Error("node order: ", doc.Nodes[5].Name, doc.Nodes[6].Name, doc.Nodes[7].Name)
	}
	if roots := doc.Scenes[0].Nodes; len(roots) != 5 || roots[0] != 0 || roots[1] != 2 {
		t.Error("roots: ", roots)
	}
	if c := doc.Nodes[0].Children; len(c) != 1 || c[0] != 1 {
		t.Error("root children: ", c)
	}
	if doc.Nodes[0].Translation != [3]float32{1, 3, -2} {
		t.Error("translation: ", doc.Nodes[0].Translation)
	}

	if doc.Nodes[1].Mesh == nil || doc.Nodes[2].Mesh == nil || *doc.Nodes[1].Mesh != *doc.Nodes[2].Mesh {
		t.Error("instance mesh: ", doc.Nodes[1].Mesh, doc.Nodes[2].Mesh)
	}
	if doc.Nodes[6].Mesh == nil || *doc.Nodes[6].Mesh == *doc.Nodes[1].Mesh {
		t.Error("lod mesh: ", doc.Nodes[6].Mesh)
	}
	if c := doc.Nodes[1].Children; len(c) != 1 || c[0] != 6 {
		t.Error("lod node: ", c)
	}
	if len(doc.Meshes) != 3 {
		t.Error("meshes: ", len(doc.Meshes))
	}
	p := doc.Meshes[0].Primitives[0]
	if p.Material == nil || *p.Material != 0 {
		t.Error("primitive material: ", p.Material)
	}
	if doc.Accessors[*p.Indices].Count != 3 {
		t.Error("indices: ", doc.Accessors[*p.Indices].Count)
	}

	if len(doc.Skins) != 1 || doc.Nodes[4].Skin == nil || *doc.Nodes[4].Skin != 0 {
		t.Fatal("skin: ", len(doc.Skins), doc.Nodes[4].Skin)
	}
	if j := doc.Skins[0].Joints; len(j) != 2 || j[0] != 7 || j[1] != 3 {
		t.Error("joints: ", j)
	}
	if doc.Accessors[*doc.Skins[0].InverseBindMatrices].Type != gltf.AccessorMat4 {
		t.Error("inverse bind matrices type")
	}

	extras, _ := doc.Nodes[5].Extras.(map[string]interface{})
	if target, ok := extras["target"].(map[string]interface{}); !ok || target["links"].([]int)[0] != 3 {
		t.Error("target extras: ", doc.Nodes[5].Extras)
	}
	if extras, _ := doc.Nodes[3].Extras.(map[string]interface{}); extras["boneId"] != uint32(0) {
		t.Error("bone extras: ", doc.Nodes[3].Extras)
	}

	if len(doc.Materials) != 2 {
		t.Fatal("materials: ", len(doc.Materials))
	}
	if doc.Materials[0].AlphaMode != gltf.AlphaOpaque || doc.Materials[1].AlphaMode != gltf.AlphaBlend {
		t.Error("alpha mode: ", doc.Materials[0].AlphaMode, doc.Materials[1].AlphaMode)
	}
	if !doc.Materials[1].DoubleSided {
		t.Error("double sided")
	}
}

func TestConvertModelWithoutLODs(t *testing.T) {
	doc, err := NewFourDSToGLTFConverter(nil).Convert(testModel())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Nodes) != 7 || len(doc.Meshes) != 2 {
		t.Error("nodes, meshes: ", len(doc.Nodes), len(doc.Meshes))
	}
}

func TestConvertModelUnlit(t *testing.T) {
	no := false
	conv := NewFourDSToGLTFConverter(&FourDSToGLTFOption{
		MaterialSettings: map[string]*MaterialSetting{
			"*": {ForceUnlit: true, AlphaMode: "opaque", DoubleSided: &no},
		},
	})
	doc, err := conv.Convert(testModel())
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.ExtensionsUsed) != 1 || doc.ExtensionsUsed[0] != unlitMaterialExt {
		t.Error("extensions: ", doc.ExtensionsUsed)
	}
	m := doc.Materials[1]
	if m.Extensions[unlitMaterialExt] == nil || m.AlphaMode != gltf.AlphaOpaque || m.DoubleSided {
		t.Error("material: ", m)
	}
}

func TestSkinWeights(t *testing.T) {
	mesh := testModel().Nodes[4].Frame.(*mafia.VisualFrame).Mesh
	joints, weights, err := skinWeights(mesh, 0, func(g int) uint16 { return uint16(g + 1) })
	if err != nil {
		t.Fatal(err)
	}
	expectedJoints := [][4]uint16{{1}, {1, 0}, {0}, {0}}
	expectedWeights := [][4]float32{{1}, {0.5, 0.5}, {1}, {1}}
	for i := range expectedJoints {
		if joints[i] != expectedJoints[i] || weights[i] != expectedWeights[i] {
			t.Errorf("vertex %d: %v %v", i, joints[i], weights[i])
		}
	}

	mesh.VertexGroups[0].NumLocked = 4
	if _, _, err := skinWeights(mesh, 0, func(g int) uint16 { return 1 }); err == nil {
		t.Error("groups overflowing the lod should fail")
	}
}

func TestToGLTFRotation(t *testing.T) {
	// 90 degrees around the decoded up axis (Z) is 90 degrees around glTF Y.
	const s = 0.70710677
	r := toGLTFRotation(mafia.Quaternion{W: s, Z: s})
	for i, e := range [4]float32{0, s, 0, s} {
		if math32.Abs(r[i]-e) > 0.00001 {
			t.Error("rotation: ", r)
		}
	}
	if v := toGLTFVector(mafia.Vector3{X: 1, Y: 2, Z: 3}); v != [3]float32{1, 3, -2} {
		t.Error("vector: ", v)
	}
	if v := toGLTFScale(mafia.Vector3{X: 1, Y: 2, Z: 3}); v != [3]float32{1, 3, 2} {
		t.Error("scale: ", v)
	}
}

func TestBoneRestPose(t *testing.T) {
	model := testModel()
	// 90 degrees around Z, translated by (1, 2, 3), translation in the last row
	model.Nodes[3].Frame = &mafia.Bone{ID: 0, Matrix: mafia.Matrix4{
		{0, 1, 0, 0},
		{-1, 0, 0, 0},
		{0, 0, 1, 0},
		{1, 2, 3, 1},
	}}
	doc, err := NewFourDSToGLTFConverter(&FourDSToGLTFOption{Scale: 2}).Convert(model)
	if err != nil {
		t.Fatal(err)
	}
	extras, _ := doc.Nodes[3].Extras.(map[string]interface{})
	pose, ok := extras["restPose"].(map[string]interface{})
	if !ok {
		t.Fatal("rest pose: ", doc.Nodes[3].Extras)
	}
	if tr := pose["translation"].([3]float32); tr != [3]float32{2, 6, -4} {
		t.Error("translation: ", tr)
	}
	const s = 0.70710677
	r := pose["rotation"].([4]float32)
	for i, e := range [4]float32{0, s, 0, s} {
		if math32.Abs(r[i]-e) > 0.00001 {
			t.Error("rotation: ", r)
		}
	}
	sc := pose["scale"].([3]float32)
	for _, e := range sc {
		if math32.Abs(e-1) > 0.00001 {
			t.Error("scale: ", sc)
		}
	}
}
