package gltfutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/binzume/mafiaconv/geom"
	"github.com/qmuntal/gltf"
)

func Load(path string) (*gltf.Document, error) {
	return gltf.Open(path)
}

// Save writes doc as .glb, or as .gltf with a sibling .bin buffer file.
func Save(doc *gltf.Document, path string) error {
	if strings.ToLower(filepath.Ext(path)) == ".glb" {
		return gltf.SaveBinary(doc, path)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i, b := range doc.Buffers {
		if b.URI == "" && len(b.Data) > 0 {
			b.URI = base + ".bin"
			if i > 0 {
				b.URI = fmt.Sprintf("%s_%d.bin", base, i)
			}
		}
	}
	w, err := os.Create(path)
	if err != nil {
		return err
	}
	defer w.Close()
	return Encode(doc, w, filepath.Dir(path), false)
}

// dirFS writes external buffers next to the document.
type dirFS struct {
	fs.FS
	dir string
}

func (d dirFS) Create(name string) (io.WriteCloser, error) {
	return os.Create(filepath.Join(d.dir, filepath.FromSlash(name)))
}

// Encode writes doc to w. External buffers are written relative to dir.
func Encode(doc *gltf.Document, w io.Writer, dir string, binary bool) error {
	e := gltf.NewEncoderFS(w, dirFS{FS: os.DirFS(dir), dir: dir})
	e.AsBinary = binary
	return e.Encode(doc)
}

// NodeIndexByName maps node names to indices. The first node wins on duplicates.
func NodeIndexByName(doc *gltf.Document) map[string]uint32 {
	nodes := map[string]uint32{}
	for i, n := range doc.Nodes {
		if _, exists := nodes[n.Name]; !exists && n.Name != "" {
			nodes[n.Name] = uint32(i)
		}
	}
	return nodes
}

func LocalMatrix(n *gltf.Node) *geom.Matrix4 {
	if n.Matrix != gltf.DefaultMatrix && n.Matrix != [16]float32{} {
		return geom.NewMatrix4FromSlice(n.Matrix[:])
	}
	rot := geom.NewQuaternionFromArray(n.Rotation)
	if n.Rotation == [4]float32{} {
		rot.W = 1
	}
	scale := geom.NewVector3FromArray(n.Scale)
	if n.Scale == [3]float32{} {
		scale = geom.NewVector3(1, 1, 1)
	}
	return geom.NewTRSMatrix4(geom.NewVector3FromArray(n.Translation), rot, scale)
}

// WorldMatrices returns the global transform of every node.
func WorldMatrices(doc *gltf.Document) []*geom.Matrix4 {
	world := make([]*geom.Matrix4, len(doc.Nodes))
	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if int(c) < len(hasParent) {
				hasParent[c] = true
			}
		}
	}

	var visit func(i uint32, parent *geom.Matrix4)
	visit = func(i uint32, parent *geom.Matrix4) {
		if int(i) >= len(world) || world[i] != nil {
			return
		}
		world[i] = parent.Mul(LocalMatrix(doc.Nodes[i]))
		for _, c := range doc.Nodes[i].Children {
			visit(c, world[i])
		}
	}
	for i := range doc.Nodes {
		if !hasParent[i] {
			visit(uint32(i), geom.NewMatrix4())
		}
	}
	for i, m := range world {
		if m == nil {
			world[i] = LocalMatrix(doc.Nodes[i])
		}
	}
	return world
}

// MatrixColumns splits a column-major matrix for a MAT4 accessor.
func MatrixColumns(m *geom.Matrix4) [4][4]float32 {
	return [4][4]float32{
		{m[0], m[1], m[2], m[3]},
		{m[4], m[5], m[6], m[7]},
		{m[8], m[9], m[10], m[11]},
		{m[12], m[13], m[14], m[15]},
	}
}
