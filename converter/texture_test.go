package converter

import (
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/binzume/mafiaconv/mafia"
	"github.com/blezek/tga"
	"github.com/qmuntal/gltf"
	"golang.org/x/image/bmp"
)

func writeBMP(t *testing.T, path string, img image.Image) {
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := bmp.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// testTextures writes a 4x4 paletted diffuse map (left half color 0) and a
// 2x2 opacity map.
func testTextures(t *testing.T) string {
	dir, err := os.MkdirTemp("", "mafiaconv")
	if err != nil {
		t.Fatal(err)
	}
	pal := color.Palette{color.RGBA{0, 0, 255, 255}, color.RGBA{200, 100, 50, 255}}
	diffuse := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
	for y := 0; y < 4; y++ {
		for x := 2; x < 4; x++ {
			diffuse.SetColorIndex(x, y, 1)
		}
	}
	writeBMP(t, filepath.Join(dir, "WALL.BMP"), diffuse)

	mask := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range mask.Pix {
		mask.Pix[i] = 51
	}
	writeBMP(t, filepath.Join(dir, "wall_a.bmp"), mask)
	return dir
}

func TestTextureCachePath(t *testing.T) {
	dir := testTextures(t)
	defer os.RemoveAll(dir)

	c := newTextureCache(dir)
	if p := c.path("wall.bmp"); p != filepath.Join(dir, "WALL.BMP") {
		t.Error("path: ", p)
	}
	if p := c.path("none.bmp"); p != filepath.Join(dir, "none.bmp") {
		t.Error("missing path: ", p)
	}
	if _, err := c.getImage("none.bmp"); err == nil {
		t.Error("missing file should fail")
	}
}

func TestGetImageFormats(t *testing.T) {
	dir, err := os.MkdirTemp("", "mafiaconv")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	img := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	encoders := map[string]func(io.Writer, image.Image) error{
		"a.bmp": bmp.Encode,
		"a.png": png.Encode,
		"a.jpg": func(w io.Writer, m image.Image) error { return jpeg.Encode(w, m, nil) },
		"a.gif": func(w io.Writer, m image.Image) error { return gif.Encode(w, m, nil) },
		"a.tga": tga.Encode,
	}
	for name, encode := range encoders {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			t.Fatal(err)
		}
		err = encode(f, img)
		f.Close()
		if err != nil {
			t.Fatal(name, err)
		}
	}

	c := newTextureCache(dir)
	for name := range encoders {
		decoded, err := c.getImage(name)
		if err != nil {
			t.Error(name, ": ", err)
			continue
		}
		if s := decoded.Bounds().Size(); s.X != 4 || s.Y != 2 {
			t.Error(name, " size: ", s)
		}
	}
}

func TestComposeColorKey(t *testing.T) {
	dir := testTextures(t)
	defer os.RemoveAll(dir)

	img, translucent, err := newTextureCache(dir).compose(textureKey{diffuse: "wall.bmp", colorKey: true})
	if err != nil {
		t.Fatal(err)
	}
	if !translucent {
		t.Error("color keyed texture should be translucent")
	}
	if _, _, _, a := img.At(0, 0).RGBA(); a != 0 {
		t.Error("keyed pixel alpha: ", a)
	}
	if c := color.NRGBAModel.Convert(img.At(3, 3)).(color.NRGBA); c != (color.NRGBA{200, 100, 50, 255}) {
		t.Error("opaque pixel: ", c)
	}
}

func TestComposeAlphaTexture(t *testing.T) {
	dir := testTextures(t)
	defer os.RemoveAll(dir)

	c := newTextureCache(dir)
	img, translucent, err := c.compose(textureKey{diffuse: "wall.bmp", alpha: "wall_a.bmp"})
	if err != nil {
		t.Fatal(err)
	}
	if !translucent {
		t.Error("masked texture should be translucent")
	}
	if a := color.NRGBAModel.Convert(img.At(3, 0)).(color.NRGBA).A; a != 51 {
		t.Error("alpha: ", a)
	}

	img, translucent, err = c.compose(textureKey{diffuse: "wall.bmp"})
	if err != nil || translucent {
		t.Error("plain texture: ", err, translucent)
	}
	if img.Bounds().Dx() != 4 {
		t.Error("size: ", img.Bounds())
	}
}

func TestEncodeTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 64, 32))
	r, err := encodeTexture(img, 1, 16)
	if err != nil {
		t.Fatal(err)
	}
	scaled, _, err := image.Decode(r)
	if err != nil {
		t.Fatal(err)
	}
	if s := scaled.Bounds().Size(); s.X != 16 || s.Y != 8 {
		t.Error("size: ", s)
	}
}

func TestConvertTexturedMaterial(t *testing.T) {
	dir := testTextures(t)
	defer os.RemoveAll(dir)

	model := testModel()
	model.Materials = append(model.Materials,
		&mafia.Material{
			Alpha:          1,
			Props:          mafia.MaterialProps{UseDiffuseTex: true, ColorKey: true},
			DiffuseTexture: "wall.bmp",
		},
		&mafia.Material{
			Alpha:          1,
			Props:          mafia.MaterialProps{UseDiffuseTex: true, ColorKey: true},
			DiffuseTexture: "wall.bmp",
		},
		&mafia.Material{
			Alpha:          1,
			Props:          mafia.MaterialProps{UseDiffuseTex: true},
			DiffuseTexture: "missing.bmp",
		},
	)
	doc, err := NewFourDSToGLTFConverter(&FourDSToGLTFOption{TextureDir: dir}).Convert(model)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Images) != 1 || len(doc.Textures) != 1 || len(doc.Samplers) != 1 {
		t.Fatal("images, textures, samplers: ", len(doc.Images), len(doc.Textures), len(doc.Samplers))
	}
	if doc.Images[0].Name != "wall.png" || doc.Images[0].MimeType != "image/png" {
		t.Error("image: ", doc.Images[0].Name, doc.Images[0].MimeType)
	}
	for _, m := range doc.Materials[2:4] {
		if m.PBRMetallicRoughness.BaseColorTexture == nil || m.PBRMetallicRoughness.BaseColorTexture.Index != 0 {
			t.Error("base color texture: ", m.Name)
		}
		if m.AlphaMode != gltf.AlphaMask || m.AlphaCutoff == nil || *m.AlphaCutoff != 0.5 {
			t.Error("alpha mode: ", m.AlphaMode)
		}
		if *m.PBRMetallicRoughness.BaseColorFactor != [4]float32{1, 1, 1, 1} {
			t.Error("base color: ", *m.PBRMetallicRoughness.BaseColorFactor)
		}
	}
	if doc.Materials[4].PBRMetallicRoughness.BaseColorTexture != nil {
		t.Error("missing texture attached")
	}
}
