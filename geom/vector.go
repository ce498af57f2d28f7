package geom

import "github.com/chewxy/math32"

type Element = float32

type Vector3 struct {
	X Element
	Y Element
	Z Element
}

func NewVector3(x, y, z Element) *Vector3 {
	return &Vector3{X: x, Y: y, Z: z}
}

func NewVector3FromArray(arr [3]Element) *Vector3 {
	return &Vector3{X: arr[0], Y: arr[1], Z: arr[2]}
}

func NewVector3FromSlice(arr []Element) *Vector3 {
	return &Vector3{X: arr[0], Y: arr[1], Z: arr[2]}
}

func (v *Vector3) Len() Element {
	return math32.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func (v *Vector3) ToArray(array []Element) {
	array[0] = v.X
	array[1] = v.Y
	array[2] = v.Z
}

// Min returns the component-wise minimum.
func (v *Vector3) Min(v2 *Vector3) *Vector3 {
	return &Vector3{X: math32.Min(v.X, v2.X), Y: math32.Min(v.Y, v2.Y), Z: math32.Min(v.Z, v2.Z)}
}

// Max returns the component-wise maximum.
func (v *Vector3) Max(v2 *Vector3) *Vector3 {
	return &Vector3{X: math32.Max(v.X, v2.X), Y: math32.Max(v.Y, v2.Y), Z: math32.Max(v.Z, v2.Z)}
}
