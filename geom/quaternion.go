package geom

import "github.com/chewxy/math32"

type Quaternion struct {
	X Element
	Y Element
	Z Element
	W Element
}

func NewQuaternion(x, y, z, w Element) *Quaternion {
	return &Quaternion{X: x, Y: y, Z: z, W: w}
}

func NewQuaternionFromArray(arr [4]Element) *Quaternion {
	return &Quaternion{X: arr[0], Y: arr[1], Z: arr[2], W: arr[3]}
}

func (q *Quaternion) Len() Element {
	return math32.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalize normalizes q in place. A zero quaternion becomes the identity.
func (q *Quaternion) Normalize() *Quaternion {
	l := q.Len()
	if l > 0 {
		q.X /= l
		q.Y /= l
		q.Z /= l
		q.W /= l
	} else {
		q.W = 1
	}
	return q
}

func (q *Quaternion) ToArray(array []Element) {
	array[0] = q.X
	array[1] = q.Y
	array[2] = q.Z
	array[3] = q.W
}
