package mafia

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

const (
	FiveDSMagic   = "5DS\x00"
	FiveDSVersion = 20
)

const (
	KeyPosition uint32 = 2
	KeyRotation uint32 = 4
	KeyScale    uint32 = 8
	KeyUnknown  uint32 = 16
)

// Animation is a decoded 5DS file. Links, Bones and BoneNames are parallel.
type Animation struct {
	Version    uint16
	Timestamp  uint64
	Reserved   uint32
	FrameCount int
	Links      [][2]uint32
	Bones      []*BoneAnimation
	BoneNames  []string
}

// BoneAnimation holds the keyframe tracks of one bone. Absent tracks are nil.
type BoneAnimation struct {
	Flags    uint32
	Rotation *RotationTrack `yaml:",omitempty"`
	Position *VectorTrack   `yaml:",omitempty"`
	Scale    *VectorTrack   `yaml:",omitempty"`
	Unknown  *UnknownTrack  `yaml:",omitempty"`
}

type RotationTrack struct {
	Frames []uint16
	Keys   []Quaternion
}

type VectorTrack struct {
	Frames []uint16
	Keys   []Vector3
	Padded bool // a padding u16 followed the frame list
}

type UnknownTrack struct {
	Count int
}

// Bone returns the track set of the named bone, or nil.
func (a *Animation) Bone(name string) *BoneAnimation {
	for i, n := range a.BoneNames {
		if n == name && i < len(a.Bones) {
			return a.Bones[i]
		}
	}
	return nil
}

// FiveDSParser is parser for .5ds animation.
type FiveDSParser struct {
	baseParser
}

// NewFiveDSParser returns new parser. opts may be nil.
func NewFiveDSParser(r io.Reader, opts *Options) *FiveDSParser {
	return &FiveDSParser{baseParser: newBaseParser(r, opts)}
}

// Parse animation data.
func (p *FiveDSParser) Parse() (*Animation, error) {
	magic := p.readFixedString(4)
	if p.err != nil {
		return nil, p.err
	}
	if magic != FiveDSMagic {
		return nil, errors.Wrapf(ErrInvalidFormat, "not a 5ds file (magic %q)", magic)
	}

	var anim Animation
	anim.Version = p.readUint16()
	if p.err != nil {
		return nil, p.err
	}
	if anim.Version != FiveDSVersion {
		return nil, errors.Wrapf(ErrInvalidFormat, "unsupported 5ds version %d", anim.Version)
	}
	anim.Timestamp = p.readUint64()
	anim.Reserved = p.readUint32()

	bones := int(p.readUint16())
	anim.FrameCount = int(p.readUint16())

	anim.Links = make([][2]uint32, bones)
	p.read(anim.Links)

	for i := 0; i < bones && p.err == nil; i++ {
		anim.Bones = append(anim.Bones, p.readBoneAnimation())
		if p.err != nil {
			return nil, errors.Wrapf(p.err, "bone %d", i)
		}
	}

	anim.BoneNames = p.readStringArray()
	if p.err != nil {
		return nil, p.err
	}
	if len(anim.BoneNames) != bones {
		return nil, errors.Wrapf(ErrBoneNameMismatch, "%d names for %d bones", len(anim.BoneNames), bones)
	}
	return &anim, nil
}

func (p *FiveDSParser) readFrames() []uint16 {
	frames := make([]uint16, p.readUint16())
	p.read(frames)
	return frames
}

func (p *FiveDSParser) readVectorTrack(flip bool) *VectorTrack {
	t := &VectorTrack{Frames: p.readFrames()}
	if len(t.Frames)%2 == 0 {
		p.readUint16()
		t.Padded = true
	}
	t.Keys = make([]Vector3, len(t.Frames))
	p.read(t.Keys)
	if flip {
		for i, v := range t.Keys {
			t.Keys[i] = Flip3(v)
		}
	}
	return t
}

func (p *FiveDSParser) readBoneAnimation() *BoneAnimation {
	a := &BoneAnimation{Flags: p.readUint32()}

	if a.Flags&KeyRotation != 0 {
		t := &RotationTrack{Frames: p.readFrames()}
		t.Keys = make([]Quaternion, len(t.Frames))
		p.read(t.Keys)
		a.Rotation = t
	}
	if a.Flags&KeyPosition != 0 {
		a.Position = p.readVectorTrack(true)
	}
	if a.Flags&KeyScale != 0 {
		a.Scale = p.readVectorTrack(false)
	}
	if a.Flags&KeyUnknown != 0 {
		n := int(p.readUint16())
		p.readUint16()
		p.skip(n * 4)
		a.Unknown = &UnknownTrack{Count: n}
	}
	return a
}

// ParseAnimation decodes a 5DS stream with default options.
func ParseAnimation(r io.Reader) (*Animation, error) {
	return NewFiveDSParser(r, nil).Parse()
}

// ParseAnimationFile decodes the 5DS file at path.
func ParseAnimationFile(path string, opts *Options) (*Animation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	a, err := NewFiveDSParser(f, opts).Parse()
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return a, nil
}
