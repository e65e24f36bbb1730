package features

import (
	"fmt"

	"github.com/spaghettifunk/neuranim/engine/math"
)

// OutputPose is the decoded model output, one entry per output bone. It keeps
// the previous decode around to differentiate velocities.
type OutputPose struct {
	Positions         []math.Vec3
	Rotations         []math.Quaternion
	Velocities        []math.Vec3
	AngularVelocities []math.Vec3

	decoded bool
}

func NewOutputPose(numBones int) *OutputPose {
	p := &OutputPose{
		Positions:         make([]math.Vec3, numBones),
		Rotations:         make([]math.Quaternion, numBones),
		Velocities:        make([]math.Vec3, numBones),
		AngularVelocities: make([]math.Vec3, numBones),
	}
	for i := range p.Rotations {
		p.Rotations[i] = math.NewQuatIdentity()
	}
	return p
}

// Decoded reports whether ProcessOutput succeeded at least once.
func (p *OutputPose) Decoded() bool {
	return p.decoded
}

func (p *OutputPose) NumBones() int {
	return len(p.Positions)
}

// Transform returns the decoded transform of output bone i.
func (p *OutputPose) Transform(i int) math.Transform {
	return math.TransformFromPositionRotation(p.Positions[i], p.Rotations[i].Normalize())
}

// ProcessOutput decodes the model output into pose. The layout per bone is the
// one of the dataset: position, rotation, velocity, angular velocity. When
// velocities are not part of the output they are differentiated against the
// previous decode; the first decode and dt <= 0 leave them at zero.
func (fs *FeatureSet) ProcessOutput(output []float32, pose *OutputPose, dt float32) error {
	if len(output) == 0 {
		return ErrEmptyOutput
	}
	if len(fs.OutputBones) == 0 {
		return ErrNoOutputBones
	}
	if size := fs.OutputVectorSize(); len(output) != size {
		return fmt.Errorf("%w: got %d floats, expected %d", ErrOutputSizeMismatch, len(output), size)
	}
	if pose.NumBones() != len(fs.OutputBones) {
		return fmt.Errorf("%w: output pose has %d bones, expected %d", ErrOutputSizeMismatch, pose.NumBones(), len(fs.OutputBones))
	}

	props := fs.PropertiesToExtract
	differentiate := pose.decoded && dt > 0
	r := vectorReader{data: output}

	for i := range fs.OutputBones {
		position, rotation := pose.Positions[i], pose.Rotations[i]
		if props.Has(BonePosition) {
			position = r.vec3()
		}
		if props.Has(BoneRotation) {
			if fs.RotationFormat == RotationQuaternion {
				rotation = r.quat().Normalize()
			} else {
				x := r.vec3()
				rotation = math.QuatFromXformXY(x, r.vec3())
			}
		}

		if props.Has(BoneVelocity) {
			switch {
			case fs.VelocitiesFromModelOutput:
				pose.Velocities[i] = r.vec3()
			case differentiate:
				pose.Velocities[i] = position.Sub(pose.Positions[i]).DivScalar(dt)
			default:
				pose.Velocities[i] = math.NewVec3Zero()
			}
		}
		if props.Has(BoneAngularVelocity) {
			switch {
			case fs.VelocitiesFromModelOutput:
				pose.AngularVelocities[i] = r.vec3()
			case differentiate:
				pose.AngularVelocities[i] = rotationDelta(pose.Rotations[i], rotation).DivScalar(dt)
			default:
				pose.AngularVelocities[i] = math.NewVec3Zero()
			}
		}

		pose.Positions[i] = position
		pose.Rotations[i] = rotation
	}
	pose.decoded = true
	return nil
}

type vectorReader struct {
	data []float32
	pos  int
}

func (r *vectorReader) vec3() math.Vec3 {
	v := math.NewVec3(r.data[r.pos], r.data[r.pos+1], r.data[r.pos+2])
	r.pos += 3
	return v
}

func (r *vectorReader) quat() math.Quaternion {
	q := math.NewQuat(r.data[r.pos], r.data[r.pos+1], r.data[r.pos+2], r.data[r.pos+3])
	r.pos += 4
	return q
}
