package converter

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"github.com/blezek/tga"
	_ "github.com/oov/psd"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

type textureKey struct {
	diffuse  string
	alpha    string // grayscale opacity map
	colorKey bool
}

type textureCache struct {
	dir      string
	files    map[string]string // lower-case name => name on disk
	images   map[string]*imageInfo
	textures map[textureKey]*textureInfo
}

type imageInfo struct {
	img image.Image
	err error
}

type textureInfo struct {
	id          *uint32
	translucent bool
	err         error
}

func newTextureCache(dir string) *textureCache {
	return &textureCache{
		dir:      dir,
		images:   map[string]*imageInfo{},
		textures: map[textureKey]*textureInfo{},
	}
}

// path resolves name inside dir ignoring case. Game data names are lower-cased
// but the files on disk often are not.
func (c *textureCache) path(name string) string {
	p := filepath.Join(c.dir, name)
	if _, err := os.Stat(p); err == nil {
		return p
	}
	if c.files == nil {
		c.files = map[string]string{}
		entries, _ := os.ReadDir(c.dir)
		for _, e := range entries {
			c.files[strings.ToLower(e.Name())] = e.Name()
		}
	}
	if f, ok := c.files[strings.ToLower(name)]; ok {
		return filepath.Join(c.dir, f)
	}
	return p
}

func (c *textureCache) getImage(name string) (image.Image, error) {
	if t, ok := c.images[name]; ok {
		return t.img, t.err
	}
	t := &imageInfo{}
	c.images[name] = t

	f, err := os.Open(c.path(name))
	if err != nil {
		t.err = err
		return nil, err
	}
	defer f.Close()

	if strings.ToLower(filepath.Ext(name)) != ".tga" {
		t.img, _, t.err = image.Decode(f)
		return t.img, t.err
	}
	// tga has no magic, so it is never registered with image.Decode.
	t.img, t.err = tga.Decode(f)
	return t.img, t.err
}

// colorKeyOf returns the transparent color of a color-keyed texture: palette
// entry 0 for indexed images, black otherwise.
func colorKeyOf(img image.Image) color.NRGBA {
	if p, ok := img.(*image.Paletted); ok && len(p.Palette) > 0 {
		return color.NRGBAModel.Convert(p.Palette[0]).(color.NRGBA)
	}
	return color.NRGBA{A: 255}
}

func hasAlpha(img image.Image) bool {
	if o, ok := img.(interface{ Opaque() bool }); ok {
		return !o.Opaque()
	}
	return false
}

// compose applies the color key and the opacity map of key to the diffuse image.
func (c *textureCache) compose(key textureKey) (image.Image, bool, error) {
	img, err := c.getImage(key.diffuse)
	if err != nil {
		return nil, false, err
	}
	var mask image.Image
	if key.alpha != "" {
		if mask, err = c.getImage(key.alpha); err != nil {
			return nil, false, err
		}
	}
	if !key.colorKey && mask == nil {
		return img, hasAlpha(img), nil
	}

	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)

	if mask != nil && mask.Bounds().Size() != dst.Bounds().Size() {
		scaled := image.NewGray(dst.Bounds())
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), mask, mask.Bounds(), draw.Src, nil)
		mask = scaled
	}
	keyColor := colorKeyOf(img)

	translucent := false
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			px := dst.Pix[dst.PixOffset(x, y):]
			if key.colorKey && px[0] == keyColor.R && px[1] == keyColor.G && px[2] == keyColor.B {
				px[3] = 0
				translucent = true
				continue
			}
			if mask != nil {
				mb := mask.Bounds()
				g := color.GrayModel.Convert(mask.At(mb.Min.X+x, mb.Min.Y+y)).(color.Gray)
				px[3] = uint8(uint16(px[3]) * uint16(g.Y) / 255)
			}
			if px[3] < 255 {
				translucent = true
			}
		}
	}
	return dst, translucent, nil
}

func encodeTexture(img image.Image, scale float32, limit int) (io.Reader, error) {
	rect := img.Bounds()

	if limit > 0 {
		sz := int(float32(rect.Dx()) * scale)
		if sz > limit {
			scale *= float32(limit) / float32(sz)
		}
	}

	if scale != 1.0 {
		dst := image.NewNRGBA(image.Rect(0, 0, int(float32(rect.Dx())*scale), int(float32(rect.Dy())*scale)))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, rect, draw.Src, nil)
		img = dst
	}

	w := new(bytes.Buffer)
	if err := png.Encode(w, img); err != nil {
		return nil, err
	}
	return w, nil
}
