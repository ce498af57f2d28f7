package converter

import (
	"log"

	"github.com/binzume/mafiaconv/gltfutil"
	"github.com/binzume/mafiaconv/mafia"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

var ErrNoMatchingNodes = errors.New("no animated bone matches a node")

type AnimationOption struct {
	Name  string
	FPS   float32 // Default: 25
	Scale float32 // must match the model conversion scale
}

func keysEquals(a, b []uint16) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// increasing returns the indices of frames that are strictly increasing.
// glTF rejects sampler inputs that go backwards.
func increasing(frames []uint16) []int {
	var idx []int
	for i, f := range frames {
		if len(idx) > 0 && f <= frames[idx[len(idx)-1]] {
			continue
		}
		idx = append(idx, i)
	}
	return idx
}

type animationBuilder struct {
	*AnimationOption
	doc  *gltf.Document
	anim *gltf.Animation

	prevFrames []uint16
	prevAcc    uint32
}

func (b *animationBuilder) keys(frames []uint16) uint32 {
	if b.prevFrames != nil && keysEquals(frames, b.prevFrames) {
		return b.prevAcc
	}
	keys := make([]float32, len(frames))
	for i, f := range frames {
		keys[i] = float32(f) / b.FPS
	}
	acc := modeler.WriteAccessor(b.doc, gltf.TargetNone, keys)
	b.doc.Accessors[acc].Min = []float32{keys[0]}
	b.doc.Accessors[acc].Max = []float32{keys[len(keys)-1]}
	b.prevFrames, b.prevAcc = frames, acc
	return acc
}

func (b *animationBuilder) addChannel(node uint32, path gltf.TRSProperty, input, output uint32) {
	b.anim.Samplers = append(b.anim.Samplers, &gltf.AnimationSampler{
		Input:         gltf.Index(input),
		Output:        gltf.Index(output),
		Interpolation: gltf.InterpolationLinear,
	})
	b.anim.Channels = append(b.anim.Channels, &gltf.Channel{
		Sampler: gltf.Index(uint32(len(b.anim.Samplers) - 1)),
		Target:  gltf.ChannelTarget{Node: gltf.Index(node), Path: path},
	})
}

func (b *animationBuilder) addBone(node uint32, ba *mafia.BoneAnimation) {
	if t := ba.Rotation; t != nil && len(t.Frames) > 0 {
		idx := increasing(t.Frames)
		frames := make([]uint16, len(idx))
		rotations := make([][4]float32, len(idx))
		for i, k := range idx {
			frames[i] = t.Frames[k]
			rotations[i] = toGLTFRotation(mafia.Flip4(t.Keys[k]))
		}
		out := modeler.WriteAccessor(b.doc, gltf.TargetNone, rotations)
		b.addChannel(node, gltf.TRSRotation, b.keys(frames), out)
	}
	if t := ba.Position; t != nil && len(t.Frames) > 0 {
		idx := increasing(t.Frames)
		frames := make([]uint16, len(idx))
		translations := make([][3]float32, len(idx))
		for i, k := range idx {
			frames[i] = t.Frames[k]
			p := toGLTFVector(t.Keys[k])
			translations[i] = [3]float32{p[0] * b.Scale, p[1] * b.Scale, p[2] * b.Scale}
		}
		out := modeler.WriteAccessor(b.doc, gltf.TargetNone, translations)
		b.addChannel(node, gltf.TRSTranslation, b.keys(frames), out)
	}
	if t := ba.Scale; t != nil && len(t.Frames) > 0 {
		idx := increasing(t.Frames)
		frames := make([]uint16, len(idx))
		scales := make([][3]float32, len(idx))
		for i, k := range idx {
			frames[i] = t.Frames[k]
			scales[i] = toGLTFScale(mafia.Flip3(t.Keys[k]))
		}
		out := modeler.WriteAccessor(b.doc, gltf.TargetNone, scales)
		b.addChannel(node, gltf.TRSScale, b.keys(frames), out)
	}
}

// AddAnimationToGLTF adds anim to doc as one glTF animation. Bones are matched
// to nodes by name.
func AddAnimationToGLTF(doc *gltf.Document, anim *mafia.Animation, opts *AnimationOption) (*gltf.Animation, error) {
	o := AnimationOption{FPS: 25, Scale: 1}
	if opts != nil {
		o.Name = opts.Name
		if opts.FPS > 0 {
			o.FPS = opts.FPS
		}
		if opts.Scale != 0 {
			o.Scale = opts.Scale
		}
	}
	b := &animationBuilder{AnimationOption: &o, doc: doc, anim: &gltf.Animation{Name: o.Name}}

	nodes := gltfutil.NodeIndexByName(doc)
	for i, name := range anim.BoneNames {
		if i >= len(anim.Bones) {
			break
		}
		n, ok := nodes[name]
		if !ok {
			log.Printf("animation %q: node %q not found", o.Name, name)
			continue
		}
		b.addBone(n, anim.Bones[i])
	}
	if len(b.anim.Channels) == 0 {
		return nil, errors.Wrapf(ErrNoMatchingNodes, "animation %q", o.Name)
	}
	doc.Animations = append(doc.Animations, b.anim)
	return b.anim, nil
}
