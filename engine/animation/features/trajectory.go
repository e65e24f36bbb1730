package features

import (
	m "math"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
)

const (
	KindTrajectory = "trajectory"

	DefaultNumSamples   = 3
	DefaultSamplingRate = 0.3
)

// TrajectoryFeature samples the future path of a reference bone: NumSamples
// points SamplingRate seconds apart, starting at the current frame.
type TrajectoryFeature struct {
	PositionBoneName  string              `toml:"position_bone"`
	DirectionBoneName string              `toml:"direction_bone"`
	Properties        TrajectoryFlags     `toml:"-"`
	Dimension         TrajectoryDimension `toml:"-"`
	NumSamples        int                 `toml:"num_samples"`
	SamplingRate      float32             `toml:"sampling_rate"`
	FeatureSpace      TransformSpace      `toml:"-"`

	positionIndex  int
	directionIndex int
}

func NewTrajectoryFeature(positionBone, directionBone string) *TrajectoryFeature {
	return &TrajectoryFeature{
		PositionBoneName:  positionBone,
		DirectionBoneName: directionBone,
		Properties:        TrajectoryPosition,
		Dimension:         TrajectoryTwo,
		NumSamples:        DefaultNumSamples,
		SamplingRate:      DefaultSamplingRate,
		FeatureSpace:      LocalSpace,
		positionIndex:     skeleton.IndexNone,
		directionIndex:    skeleton.IndexNone,
	}
}

func (f *TrajectoryFeature) Kind() string {
	return KindTrajectory
}

func (f *TrajectoryFeature) Space() TransformSpace {
	return f.FeatureSpace
}

func (f *TrajectoryFeature) InitialiseOffline(s *skeleton.Skeleton) {
	f.positionIndex = s.FindBoneIndex(f.PositionBoneName)
	f.directionIndex = s.FindBoneIndex(f.DirectionBoneName)
}

func (f *TrajectoryFeature) InitialiseRealTime(bc *skeleton.BoneContainer) {
	f.positionIndex = bc.FindBoneIndex(f.PositionBoneName)
	f.directionIndex = bc.FindBoneIndex(f.DirectionBoneName)
}

func (f *TrajectoryFeature) Size() int {
	size := 0
	if f.Properties.Has(TrajectoryPosition) {
		size += f.Dimension.Components() * f.NumSamples
	}
	if f.Properties.Has(TrajectoryDirection) {
		size += f.Dimension.Components() * f.NumSamples
	}
	return size
}

// ComputeOffline interpolates between the two frames around each sample time.
// Sample indices past the end of the sequence repeat the last frame.
func (f *TrajectoryFeature) ComputeOffline(dst []float32, frames [][]math.Transform, dt float32, index int) []float32 {
	if len(frames) == 0 || dt <= 0 {
		return appendZeros(dst, f.Size())
	}
	offset := f.SamplingRate / dt
	last := len(frames) - 1

	for i := 0; i < f.NumSamples; i++ {
		sample := float32(index) + float32(i)*offset
		floor := float32(m.Floor(float64(sample)))
		fraction := sample - floor
		i1 := math.Clamp(int(floor), 0, last)
		i2 := math.Clamp(int(floor)+1, 0, last)

		if f.Properties.Has(TrajectoryPosition) {
			if p1, p2, ok := boneAt(frames[i1], frames[i2], f.positionIndex); ok {
				dst = f.appendSample(dst, p1.Position.Lerp(p2.Position, fraction))
			} else {
				dst = appendZeros(dst, f.Dimension.Components())
			}
		}
		if f.Properties.Has(TrajectoryDirection) {
			if p1, p2, ok := boneAt(frames[i1], frames[i2], f.directionIndex); ok {
				rotation := p1.Rotation.Slerp(p2.Rotation, fraction)
				dst = f.appendSample(dst, rotation.RotateVector(math.NewVec3Forward()))
			} else {
				dst = appendZeros(dst, f.Dimension.Components())
			}
		}
	}
	return dst
}

// ComputeRealTime takes the first sample from the current pose and the
// following ones from the trajectory predicted by the character controller.
// Missing predictions repeat the last known sample.
func (f *TrajectoryFeature) ComputeRealTime(dst []float32, frame Frame, space TransformSpace, dt float32) []float32 {
	transforms := frame.Transforms(space)

	position, positionOK := boneTransform(transforms, f.positionIndex)
	direction, directionOK := boneTransform(transforms, f.directionIndex)

	for i := 0; i < f.NumSamples; i++ {
		if i > 0 && i-1 < len(frame.Trajectory) {
			predicted := frame.Trajectory[i-1]
			position, positionOK = predicted, true
			direction, directionOK = predicted, true
		}
		if f.Properties.Has(TrajectoryPosition) {
			if positionOK {
				dst = f.appendSample(dst, position.Position)
			} else {
				dst = appendZeros(dst, f.Dimension.Components())
			}
		}
		if f.Properties.Has(TrajectoryDirection) {
			if directionOK {
				dst = f.appendSample(dst, direction.Rotation.RotateVector(math.NewVec3Forward()))
			} else {
				dst = appendZeros(dst, f.Dimension.Components())
			}
		}
	}
	return dst
}

func (f *TrajectoryFeature) appendSample(dst []float32, v math.Vec3) []float32 {
	dst = append(dst, v.X, v.Y)
	if f.Dimension.Components() == 3 {
		dst = append(dst, v.Z)
	}
	return dst
}

func boneTransform(transforms []math.Transform, index int) (math.Transform, bool) {
	if index == skeleton.IndexNone || index >= len(transforms) {
		return math.TransformIdentity(), false
	}
	return transforms[index], true
}

func boneAt(a, b []math.Transform, index int) (math.Transform, math.Transform, bool) {
	ta, ok := boneTransform(a, index)
	if !ok {
		return ta, ta, false
	}
	tb, ok := boneTransform(b, index)
	return ta, tb, ok
}
