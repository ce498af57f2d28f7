package mafia

// The files are Y-up and left-handed. Decoded values are Z-up and
// right-handed: Y and Z swap places everywhere, UVs flip vertically.

func Flip2(v Vector2) Vector2 {
	return Vector2{X: v.X, Y: 1 - v.Y}
}

func Flip3(v Vector3) Vector3 {
	return Vector3{X: v.X, Y: v.Z, Z: v.Y}
}

func Flip4(q Quaternion) Quaternion {
	return Quaternion{W: q.W, X: q.X, Y: q.Z, Z: q.Y}
}

// FlipMatrix swaps columns 1 and 2, then rows 1 and 2. Both steps are required.
func FlipMatrix(m Matrix4) Matrix4 {
	var r Matrix4
	for i, row := range m {
		r[i] = [4]float32{row[0], row[2], row[1], row[3]}
	}
	r[1], r[2] = r[2], r[1]
	return r
}
