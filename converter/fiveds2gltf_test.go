package converter

import (
	"testing"

	"github.com/binzume/mafiaconv/mafia"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

func testAnimation() *mafia.Animation {
	return &mafia.Animation{
		Version:    mafia.FiveDSVersion,
		FrameCount: 11,
		BoneNames:  []string{"bone0", "missing", "box"},
		Bones: []*mafia.BoneAnimation{
			{
				Flags: mafia.KeyRotation | mafia.KeyPosition,
				Rotation: &mafia.RotationTrack{
					Frames: []uint16{0, 10, 5},
					Keys:   []mafia.Quaternion{identity, identity, identity},
				},
				Position: &mafia.VectorTrack{
					Frames: []uint16{0, 10},
					Keys:   []mafia.Vector3{{}, {X: 1, Y: 2, Z: 3}},
				},
			},
			{Flags: mafia.KeyPosition, Position: &mafia.VectorTrack{Frames: []uint16{0}, Keys: []mafia.Vector3{{}}}},
			{Flags: mafia.KeyScale, Scale: &mafia.VectorTrack{Frames: []uint16{0, 5}, Keys: []mafia.Vector3{{X: 1, Y: 1, Z: 1}, {X: 1, Y: 2, Z: 3}}}},
		},
	}
}

func TestAddAnimation(t *testing.T) {
	doc, err := NewFourDSToGLTFConverter(nil).Convert(testModel())
	if err != nil {
		t.Fatal(err)
	}
	a, err := AddAnimationToGLTF(doc, testAnimation(), &AnimationOption{Name: "walk", FPS: 25, Scale: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Animations) != 1 || doc.Animations[0] != a || a.Name != "walk" {
		t.Fatal("animations: ", doc.Animations)
	}
	if len(a.Channels) != 3 || len(a.Samplers) != 3 {
		t.Fatal("channels: ", len(a.Channels), len(a.Samplers))
	}

	expected := []struct {
		node uint32
		path gltf.TRSProperty
	}{{3, gltf.TRSRotation}, {3, gltf.TRSTranslation}, {1, gltf.TRSScale}}
	for i, e := range expected {
		ch := a.Channels[i]
		if *ch.Target.Node != e.node || ch.Target.Path != e.path || *ch.Sampler != uint32(i) {
			t.Errorf("channel %d: %v %v", i, *ch.Target.Node, ch.Target.Path)
		}
	}

	// the out of order frame is dropped, the remaining keys are shared
	if *a.Samplers[0].Input != *a.Samplers[1].Input {
		t.Error("key accessor not shared")
	}
	keys := doc.Accessors[*a.Samplers[0].Input]
	if keys.Count != 2 || keys.Max[0] != 0.4 || keys.Min[0] != 0 {
		t.Error("keys: ", keys.Count, keys.Min, keys.Max)
	}
	if *a.Samplers[2].Input == *a.Samplers[0].Input {
		t.Error("different frames share keys")
	}
	if out := doc.Accessors[*a.Samplers[0].Output]; out.Count != 2 || out.Type != gltf.AccessorVec4 {
		t.Error("rotation output: ", out.Count, out.Type)
	}
}

func TestAddAnimationNoMatch(t *testing.T) {
	doc, err := NewFourDSToGLTFConverter(nil).Convert(testModel())
	if err != nil {
		t.Fatal(err)
	}
	anim := testAnimation()
	anim.BoneNames = []string{"a", "b", "c"}
	if _, err := AddAnimationToGLTF(doc, anim, nil); !errors.Is(err, ErrNoMatchingNodes) {
		t.Error("expected ErrNoMatchingNodes: ", err)
	}
	if len(doc.Animations) != 0 {
		t.Error("animation added")
	}
}

func TestIncreasing(t *testing.T) {
	idx := increasing([]uint16{0, 3, 3, 2, 7})
	if len(idx) != 3 || idx[0] != 0 || idx[1] != 1 || idx[2] != 4 {
		t.Error("increasing: ", idx)
	}
}
