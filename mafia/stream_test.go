package mafia

import (
	"bytes"
	"encoding/binary"
)

// testStream builds little-endian byte streams for the parser tests.
type testStream struct {
	bytes.Buffer
}

func (s *testStream) put(values ...interface{}) *testStream {
	for _, v := range values {
		if err := binary.Write(&s.Buffer, binary.LittleEndian, v); err != nil {
			panic(err)
		}
	}
	return s
}

func (s *testStream) str(v string) *testStream {
	s.WriteByte(byte(len(v)))
	s.WriteString(v)
	return s
}

func (s *testStream) reader() *bytes.Reader {
	return bytes.NewReader(s.Bytes())
}

var (
	testLocation = [3]float32{1, 2, 3}
	testScale    = [3]float32{1, 1, 2}
	testRotation = [4]float32{0.5, 0.1, 0.2, 0.3}
)

// putNodeCommon writes the fields shared by all node types and returns their size.
func (s *testStream) putNodeCommon(parent uint16, name string) int {
	start := s.Len()
	s.put(parent, testLocation, testScale, testRotation, uint8(9))
	s.str(name)
	s.str("params")
	return s.Len() - start
}

func (s *testStream) putModelHeader() *testStream {
	return s.put([]byte(FourDSMagic), uint16(FourDSVersion), uint64(0x1122334455667788))
}

func (s *testStream) putTriangleLOD(materialID uint16) {
	s.put(float32(100), uint16(3))
	s.put([3]float32{0, 0, 0}, [3]float32{0, 1, 0}, [2]float32{0, 0})
	s.put([3]float32{1, 0, 0}, [3]float32{0, 1, 0}, [2]float32{1, 0})
	s.put([3]float32{0, 1, 2}, [3]float32{0, 1, 0}, [2]float32{0, 0.25})
	s.put(uint8(1))
	s.put(uint16(1), [3]uint16{0, 1, 2}, materialID)
}

func identityMatrix() [16]float32 {
	return [16]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}
