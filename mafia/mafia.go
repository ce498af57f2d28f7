// Package mafia decodes the 4DS model and 5DS animation formats of the
// LS3D engine (Mafia: The City of Lost Heaven).
package mafia

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
)

type Vector2 struct {
	X float32
	Y float32
}

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

// Quaternion is stored W first, as in the files.
type Quaternion struct {
	W float32
	X float32
	Y float32
	Z float32
}

// Matrix4 is a row-major 4x4 matrix in file row order.
type Matrix4 [4][4]float32

var (
	ErrInvalidFormat       = errors.New("invalid format")
	ErrUnexpectedEOS       = errors.New("unexpected end of stream")
	ErrUnsupportedNodeType = errors.New("unsupported node type")
	ErrBoneNameMismatch    = errors.New("bone name count mismatch")
)

// DefaultCharset is used for all strings unless Options.Charset is set.
// Game files contain Czech and German names.
var DefaultCharset = charmap.ISO8859_2

// AlphaTexturePolicy decides what happens to a material with both the
// add-effect and alpha-texture bits set. At least one shipped model
// (morello.4ds) desynchronizes when the alpha texture name is read.
type AlphaTexturePolicy int

const (
	// AlphaTextureRead reads the alpha texture name.
	AlphaTextureRead AlphaTexturePolicy = iota
	// AlphaTextureSkipRemainder ends the material after the diffuse texture.
	AlphaTextureSkipRemainder
)

type Options struct {
	Charset      *charmap.Charmap
	AlphaTexture AlphaTexturePolicy
}

func (o *Options) charset() *charmap.Charmap {
	if o == nil || o.Charset == nil {
		return DefaultCharset
	}
	return o.Charset
}

// LookupCharset finds a single-byte charmap by name, e.g. "ISO 8859-2" or "Windows 1250".
func LookupCharset(name string) (*charmap.Charmap, error) {
	for _, enc := range charmap.All {
		if cm, ok := enc.(*charmap.Charmap); ok && strings.EqualFold(cm.String(), name) {
			return cm, nil
		}
	}
	return nil, errors.Errorf("unknown charset %q", name)
}

type WarningKind int

const (
	WarnAlphaTexture WarningKind = iota
	WarnUnsupportedNode
)

func (k WarningKind) String() string {
	switch k {
	case WarnAlphaTexture:
		return "alpha-texture"
	case WarnUnsupportedNode:
		return "unsupported-node"
	}
	return fmt.Sprintf("warning(%d)", int(k))
}

// Warning is a recoverable condition met while decoding.
type Warning struct {
	Kind    WarningKind
	Index   int   // material or node index
	Offset  int64 // stream position of the record
	Message string
}

func (w *Warning) String() string {
	return fmt.Sprintf("%v #%d @0x%x: %s", w.Kind, w.Index, w.Offset, w.Message)
}
