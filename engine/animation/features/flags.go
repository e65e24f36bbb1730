package features

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownFlag = errors.New("unknown flag")

// BoneFlags selects the bone properties written to a vector.
type BoneFlags uint8

const (
	BonePosition BoneFlags = 1 << iota
	BoneRotation
	BoneVelocity
	BoneAngularVelocity
)

func (f BoneFlags) Has(flag BoneFlags) bool {
	return f&flag != 0
}

// TransformSpace selects local and/or component space. When both are set the
// vectors of the two spaces are concatenated, local first.
type TransformSpace uint8

const (
	ComponentSpace TransformSpace = 1 << iota
	LocalSpace
)

func (s TransformSpace) Has(space TransformSpace) bool {
	return s&space != 0
}

// Spaces lists the enabled spaces in concatenation order.
func (s TransformSpace) Spaces() []TransformSpace {
	var out []TransformSpace
	if s.Has(LocalSpace) {
		out = append(out, LocalSpace)
	}
	if s.Has(ComponentSpace) {
		out = append(out, ComponentSpace)
	}
	return out
}

type TrajectoryFlags uint8

const (
	TrajectoryPosition TrajectoryFlags = 1 << iota
	TrajectoryDirection
)

func (f TrajectoryFlags) Has(flag TrajectoryFlags) bool {
	return f&flag != 0
}

type TrajectoryDimension uint8

const (
	TrajectoryTwo TrajectoryDimension = 1 << iota
	TrajectoryThree
)

// Components is the number of floats emitted per trajectory sample and property.
func (d TrajectoryDimension) Components() int {
	if d&TrajectoryThree != 0 {
		return 3
	}
	return 2
}

// RotationFormat is how a rotation is laid out in a vector.
type RotationFormat uint8

const (
	// RotationQuaternion writes x, y, z, w.
	RotationQuaternion RotationFormat = iota
	// RotationXFormXY writes the first two columns of the rotation matrix.
	RotationXFormXY
)

func (r RotationFormat) Size() int {
	if r == RotationQuaternion {
		return 4
	}
	return 6
}

// BoneVectorSize is the number of floats written for one bone.
func BoneVectorSize(props BoneFlags, format RotationFormat) int {
	size := 0
	if props.Has(BonePosition) {
		size += 3
	}
	if props.Has(BoneRotation) {
		size += format.Size()
	}
	if props.Has(BoneVelocity) {
		size += 3
	}
	if props.Has(BoneAngularVelocity) {
		size += 3
	}
	return size
}

func ParseBoneFlags(names []string) (BoneFlags, error) {
	var flags BoneFlags
	for _, name := range names {
		switch strings.ToLower(name) {
		case "position":
			flags |= BonePosition
		case "rotation":
			flags |= BoneRotation
		case "velocity":
			flags |= BoneVelocity
		case "angular_velocity", "angularvelocity":
			flags |= BoneAngularVelocity
		default:
			return 0, fmt.Errorf("%w: bone property %q", ErrUnknownFlag, name)
		}
	}
	return flags, nil
}

func ParseTransformSpace(names []string) (TransformSpace, error) {
	var space TransformSpace
	for _, name := range names {
		switch strings.ToLower(name) {
		case "local":
			space |= LocalSpace
		case "component", "component_space":
			space |= ComponentSpace
		default:
			return 0, fmt.Errorf("%w: transform space %q", ErrUnknownFlag, name)
		}
	}
	return space, nil
}

func ParseTrajectoryFlags(names []string) (TrajectoryFlags, error) {
	var flags TrajectoryFlags
	for _, name := range names {
		switch strings.ToLower(name) {
		case "position":
			flags |= TrajectoryPosition
		case "direction":
			flags |= TrajectoryDirection
		default:
			return 0, fmt.Errorf("%w: trajectory property %q", ErrUnknownFlag, name)
		}
	}
	return flags, nil
}

func ParseTrajectoryDimension(dims int) (TrajectoryDimension, error) {
	switch dims {
	case 2:
		return TrajectoryTwo, nil
	case 3:
		return TrajectoryThree, nil
	}
	return 0, fmt.Errorf("%w: trajectory dimension %d", ErrUnknownFlag, dims)
}

func ParseRotationFormat(name string) (RotationFormat, error) {
	switch strings.ToLower(name) {
	case "quaternion", "quat":
		return RotationQuaternion, nil
	case "xformxy", "xform_xy", "":
		return RotationXFormXY, nil
	}
	return 0, fmt.Errorf("%w: rotation format %q", ErrUnknownFlag, name)
}
