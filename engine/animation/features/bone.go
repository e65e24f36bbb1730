package features

import (
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
)

const KindBone = "bone"

// BoneFeature extracts the transform and the derivatives of a single bone.
type BoneFeature struct {
	BoneName       string         `toml:"bone"`
	Properties     BoneFlags      `toml:"-"`
	RotationFormat RotationFormat `toml:"-"`
	FeatureSpace   TransformSpace `toml:"-"`

	boneIndex int
	// previous transform per space for the real time derivatives
	cached map[TransformSpace]math.Transform
}

func NewBoneFeature(boneName string) *BoneFeature {
	return &BoneFeature{
		BoneName:       boneName,
		Properties:     BonePosition,
		RotationFormat: RotationXFormXY,
		FeatureSpace:   LocalSpace,
		boneIndex:      skeleton.IndexNone,
		cached:         make(map[TransformSpace]math.Transform),
	}
}

func (f *BoneFeature) Kind() string {
	return KindBone
}

func (f *BoneFeature) Space() TransformSpace {
	return f.FeatureSpace
}

func (f *BoneFeature) BoneIndex() int {
	return f.boneIndex
}

func (f *BoneFeature) InitialiseOffline(s *skeleton.Skeleton) {
	f.boneIndex = s.FindBoneIndex(f.BoneName)
	f.reset()
}

func (f *BoneFeature) InitialiseRealTime(bc *skeleton.BoneContainer) {
	f.boneIndex = bc.FindBoneIndex(f.BoneName)
	f.reset()
}

func (f *BoneFeature) reset() {
	f.cached = make(map[TransformSpace]math.Transform)
}

func (f *BoneFeature) Size() int {
	return BoneVectorSize(f.Properties, f.RotationFormat)
}

func (f *BoneFeature) ComputeOffline(dst []float32, frames [][]math.Transform, dt float32, index int) []float32 {
	if f.boneIndex == skeleton.IndexNone || index < 0 || index >= len(frames) || f.boneIndex >= len(frames[index]) {
		return appendZeros(dst, f.Size())
	}
	prev, current, next := neighbours(frames, index, f.boneIndex)
	return appendBone(dst, f.Properties, f.RotationFormat, current,
		centralVelocity(prev, current, next, dt),
		centralAngularVelocity(prev, current, next, dt))
}

// ComputeRealTime differentiates against the transform seen on the previous
// call for the same space. The first call after initialisation has zero
// velocities.
func (f *BoneFeature) ComputeRealTime(dst []float32, frame Frame, space TransformSpace, dt float32) []float32 {
	transforms := frame.Transforms(space)
	if f.boneIndex == skeleton.IndexNone || f.boneIndex >= len(transforms) {
		return appendZeros(dst, f.Size())
	}
	current := transforms[f.boneIndex]

	velocity, angularVelocity := math.NewVec3Zero(), math.NewVec3Zero()
	if prev, ok := f.cached[space]; ok && dt > 0 {
		velocity = current.Position.Sub(prev.Position).DivScalar(dt)
		angularVelocity = rotationDelta(prev.Rotation, current.Rotation).DivScalar(dt)
	}
	f.cached[space] = current

	return appendBone(dst, f.Properties, f.RotationFormat, current, velocity, angularVelocity)
}

// appendBone writes the selected properties in the order position, rotation,
// velocity, angular velocity.
func appendBone(dst []float32, props BoneFlags, format RotationFormat, t math.Transform, velocity, angularVelocity math.Vec3) []float32 {
	if props.Has(BonePosition) {
		dst = appendVec3(dst, t.Position)
	}
	if props.Has(BoneRotation) {
		dst = appendRotation(dst, t.Rotation, format)
	}
	if props.Has(BoneVelocity) {
		dst = appendVec3(dst, velocity)
	}
	if props.Has(BoneAngularVelocity) {
		dst = appendVec3(dst, angularVelocity)
	}
	return dst
}
