package converter

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/binzume/mafiaconv/mafia"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

const unlitMaterialExt = "KHR_materials_unlit"

// MaterialSetting overrides the converted material. Settings are looked up by
// diffuse texture name, then "*".
type MaterialSetting struct {
	ForceUnlit  bool   `yaml:"unlit"`
	AlphaMode   string `yaml:"alphaMode"` // OPAQUE, MASK or BLEND
	DoubleSided *bool  `yaml:"doubleSided"`
}

func (c *fourDSToGltf) materialSetting(mat *mafia.Material) *MaterialSetting {
	if s := c.MaterialSettings[mat.DiffuseTexture]; s != nil {
		return s
	}
	return c.MaterialSettings["*"]
}

func (c *fourDSToGltf) addTexture(key textureKey) *textureInfo {
	if t, ok := c.textures.textures[key]; ok {
		return t
	}
	t := &textureInfo{}
	c.textures.textures[key] = t

	img, translucent, err := c.textures.compose(key)
	if err != nil {
		t.err = err
		return t
	}
	r, err := encodeTexture(img, c.TextureScale, c.TextureResolutionLimit)
	if err != nil {
		t.err = err
		return t
	}
	name := strings.TrimSuffix(filepath.Base(key.diffuse), filepath.Ext(key.diffuse)) + ".png"
	index, err := modeler.WriteImage(c.Document, name, "image/png", r)
	if err != nil {
		t.err = err
		return t
	}
	c.Buffers[0].ByteLength = uint32(len(c.Buffers[0].Data)) // avoid AddImage bug
	c.Textures = append(c.Textures,
		&gltf.Texture{Sampler: gltf.Index(0), Source: gltf.Index(index)})

	t.id = gltf.Index(uint32(len(c.Textures)) - 1)
	t.translucent = translucent
	return t
}

func (c *fourDSToGltf) convertMaterial(index int, mat *mafia.Material) *gltf.Material {
	name := mat.DiffuseTexture
	if name == "" {
		name = fmt.Sprintf("material%d", index+1)
	}
	var rf float32 = 0.8
	var mf = mat.Metallic
	baseColor := [4]float32{mat.Diffuse.X, mat.Diffuse.Y, mat.Diffuse.Z, mat.Alpha}
	mm := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &baseColor,
			RoughnessFactor: &rf,
			MetallicFactor:  &mf,
		},
		EmissiveFactor: [3]float32{mat.Emission.X, mat.Emission.Y, mat.Emission.Z},
		DoubleSided:    mat.Props.TwoSided,
	}
	if mat.Alpha < 0.99 {
		mm.AlphaMode = gltf.AlphaBlend
	}

	if mat.Props.UseDiffuseTex && mat.DiffuseTexture != "" {
		key := textureKey{diffuse: mat.DiffuseTexture, colorKey: mat.Props.ColorKey}
		if mat.Props.AddEffect && mat.Props.UseAlphaTexture {
			key.alpha = mat.AlphaTexture
		}
		if !mat.Props.Coloring {
			baseColor = [4]float32{1, 1, 1, mat.Alpha}
		}
		if tex := c.addTexture(key); tex.err == nil {
			mm.PBRMetallicRoughness.BaseColorTexture = &gltf.TextureInfo{Index: *tex.id}
			if key.colorKey {
				cutoff := float32(0.5)
				mm.AlphaMode = gltf.AlphaMask
				mm.AlphaCutoff = &cutoff
			} else if tex.translucent {
				mm.AlphaMode = gltf.AlphaBlend
			}
		} else {
			log.Print("Texture read error:", tex.err)
		}
	}

	extras := map[string]interface{}{"flags": mat.Flags}
	if mat.EnvTexture != "" {
		extras["envTexture"] = mat.EnvTexture
	}
	if mat.Props.AdditiveBlend {
		mm.AlphaMode = gltf.AlphaBlend
		extras["additive"] = true
	}
	if a := mat.Animation; a != nil {
		extras["animation"] = map[string]interface{}{"frames": a.Frames, "frameLength": a.FrameLength}
	}
	mm.Extras = extras

	unlit := c.ForceUnlit
	if s := c.materialSetting(mat); s != nil {
		unlit = unlit || s.ForceUnlit
		switch strings.ToUpper(s.AlphaMode) {
		case "OPAQUE":
			mm.AlphaMode = gltf.AlphaOpaque
			mm.AlphaCutoff = nil
		case "MASK":
			mm.AlphaMode = gltf.AlphaMask
		case "BLEND":
			mm.AlphaMode = gltf.AlphaBlend
			mm.AlphaCutoff = nil
		}
		if s.DoubleSided != nil {
			mm.DoubleSided = *s.DoubleSided
		}
	}
	if unlit {
		mm.Extensions = map[string]interface{}{unlitMaterialExt: map[string]string{}}
	}
	return mm
}
