package mafia

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// baseParser is a forward-only little-endian reader. The first error sticks:
// later reads return zero values and leave the position unchanged.
type baseParser struct {
	r       *bufio.Reader
	pos     int64
	err     error
	charset *charmap.Charmap
}

func newBaseParser(r io.Reader, opts *Options) baseParser {
	return baseParser{r: bufio.NewReader(r), charset: opts.charset()}
}

// Position returns the number of bytes consumed so far.
func (p *baseParser) Position() int64 {
	return p.pos
}

func (p *baseParser) fail(err error) {
	if p.err != nil {
		return
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = ErrUnexpectedEOS
	}
	p.err = errors.Wrapf(err, "at 0x%x", p.pos)
}

func (p *baseParser) read(v interface{}) error {
	if p.err != nil {
		return p.err
	}
	if err := binary.Read(p.r, binary.LittleEndian, v); err != nil {
		p.fail(err)
		return p.err
	}
	p.pos += int64(binary.Size(v))
	return nil
}

func (p *baseParser) readBytes(n int) []byte {
	if p.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(p.r, b); err != nil {
		p.fail(err)
		return nil
	}
	p.pos += int64(n)
	return b
}

func (p *baseParser) skip(n int) {
	if p.err != nil || n <= 0 {
		return
	}
	d, err := p.r.Discard(n)
	p.pos += int64(d)
	if err != nil {
		p.fail(err)
	}
}

func (p *baseParser) readUint8() uint8 {
	var v uint8
	p.read(&v)
	return v
}

func (p *baseParser) readUint16() uint16 {
	var v uint16
	p.read(&v)
	return v
}

func (p *baseParser) readUint32() uint32 {
	var v uint32
	p.read(&v)
	return v
}

func (p *baseParser) readUint64() uint64 {
	var v uint64
	p.read(&v)
	return v
}

func (p *baseParser) readFloat() float32 {
	var v float32
	p.read(&v)
	return v
}

func (p *baseParser) readVector2() Vector2 {
	var v Vector2
	p.read(&v)
	return v
}

func (p *baseParser) readVector3() Vector3 {
	var v Vector3
	p.read(&v)
	return v
}

func (p *baseParser) readQuaternion() Quaternion {
	var v Quaternion
	p.read(&v)
	return v
}

// readMatrix reads 16 floats and converts them with FlipMatrix.
func (p *baseParser) readMatrix() Matrix4 {
	var m Matrix4
	if p.read(&m) != nil {
		return Matrix4{}
	}
	return FlipMatrix(m)
}

func (p *baseParser) decodeString(b []byte) string {
	s, _, err := transform.Bytes(p.charset.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func (p *baseParser) readFixedString(n int) string {
	b := p.readBytes(n)
	if b == nil {
		return ""
	}
	return p.decodeString(b)
}

// readString reads a string with a one byte length prefix.
func (p *baseParser) readString() string {
	n := p.readUint8()
	if n == 0 {
		return ""
	}
	return p.readFixedString(int(n))
}

// readStringArray reads NUL terminated strings until the end of the stream.
// Bytes after the last terminator are dropped.
func (p *baseParser) readStringArray() []string {
	var list []string
	for p.err == nil {
		b, err := p.r.ReadBytes(0)
		p.pos += int64(len(b))
		if err == io.EOF {
			break
		} else if err != nil {
			p.fail(err)
			break
		}
		list = append(list, p.decodeString(b[:len(b)-1]))
	}
	return list
}
