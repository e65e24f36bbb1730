package math

func TransformIdentity() Transform {
	return Transform{Position: NewVec3Zero(), Rotation: NewQuatIdentity()}
}

func TransformFromPosition(position Vec3) Transform {
	return Transform{Position: position, Rotation: NewQuatIdentity()}
}

func TransformFromRotation(rotation Quaternion) Transform {
	return Transform{Position: NewVec3Zero(), Rotation: rotation}
}

func TransformFromPositionRotation(position Vec3, rotation Quaternion) Transform {
	return Transform{Position: position, Rotation: rotation}
}

func (t *Transform) SetPosition(position Vec3) {
	t.Position = position
}

func (t *Transform) Translate(translation Vec3) {
	t.Position = t.Position.Add(translation)
}

func (t *Transform) SetRotation(rotation Quaternion) {
	t.Rotation = rotation
}

func (t *Transform) Rotate(rotation Quaternion) {
	t.Rotation = t.Rotation.Mul(rotation)
}

// Compose returns t∘child: the child transform expressed in the space t lives in.
func (t Transform) Compose(child Transform) Transform {
	return Transform{
		Position: t.Position.Add(t.Rotation.RotateVector(child.Position)),
		Rotation: t.Rotation.Mul(child.Rotation).Normalize(),
	}
}

// Inverse returns the transform that undoes t, so that t.Compose(t.Inverse()) is identity.
func (t Transform) Inverse() Transform {
	inv := t.Rotation.Inverse()
	return Transform{
		Position: inv.RotateVector(t.Position).MulScalar(-1),
		Rotation: inv,
	}
}

// Relative expresses t in the space of parent. parent.Compose(t.Relative(parent)) == t.
func (t Transform) Relative(parent Transform) Transform {
	return parent.Inverse().Compose(t)
}

func (t Transform) Compare(other Transform, tolerance float32) bool {
	return t.Position.Compare(other.Position, tolerance) && t.Rotation.Compare(other.Rotation, tolerance)
}
