package features

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
)

var (
	ErrNoOutputBones      = errors.New("feature set has no output bones")
	ErrNoTransformSpace   = errors.New("feature set has no transform space")
	ErrEmptyOutput        = errors.New("model output is empty")
	ErrOutputSizeMismatch = errors.New("model output does not match the output vector size")
	ErrFrameMismatch      = errors.New("local and component sequences differ in length")
)

// BoneFinder resolves bone names, implemented by skeleton.Skeleton and
// skeleton.BoneContainer.
type BoneFinder interface {
	FindBoneIndex(name string) int
}

// FeatureSet is the schema shared by the exporter and the runtime node. The
// order of Features is the order of the input vector.
type FeatureSet struct {
	Name                      string
	Features                  []Feature
	PropertiesToExtract       BoneFlags
	TransformType             TransformSpace
	RotationFormat            RotationFormat
	OutputBones               []string
	VelocitiesFromModelOutput bool
}

func NewFeatureSet(name string) *FeatureSet {
	return &FeatureSet{
		Name:                name,
		PropertiesToExtract: BonePosition,
		TransformType:       LocalSpace,
		RotationFormat:      RotationXFormXY,
	}
}

func (fs *FeatureSet) AddFeature(f Feature) {
	fs.Features = append(fs.Features, f)
}

func (fs *FeatureSet) Validate() error {
	if len(fs.OutputBones) == 0 {
		return ErrNoOutputBones
	}
	if len(fs.TransformType.Spaces()) == 0 {
		return ErrNoTransformSpace
	}
	return nil
}

func (fs *FeatureSet) InitialiseFeaturesOffline(s *skeleton.Skeleton) {
	for _, f := range fs.Features {
		f.InitialiseOffline(s)
	}
}

func (fs *FeatureSet) InitialiseFeaturesRealTime(bc *skeleton.BoneContainer) {
	for _, f := range fs.Features {
		f.InitialiseRealTime(bc)
	}
}

// OutputBoneIndices resolves the output bones, IndexNone for missing ones.
func (fs *FeatureSet) OutputBoneIndices(finder BoneFinder) []int {
	out := make([]int, len(fs.OutputBones))
	for i, name := range fs.OutputBones {
		out[i] = finder.FindBoneIndex(name)
	}
	return out
}

func (fs *FeatureSet) FeatureVectorSize() int {
	size := 0
	for _, f := range fs.Features {
		size += f.Size() * len(f.Space().Spaces())
	}
	return size
}

// BoneVectorSize is the dataset width of one bone in one space.
func (fs *FeatureSet) BoneVectorSize() int {
	return BoneVectorSize(fs.PropertiesToExtract, fs.RotationFormat)
}

// DatasetVectorSize is the number of floats exported per frame.
func (fs *FeatureSet) DatasetVectorSize() int {
	return fs.BoneVectorSize() * len(fs.TransformType.Spaces()) * len(fs.OutputBones)
}

// OutputVectorSize is the width the model is expected to produce. Velocities
// are only part of it when they are read from the model output.
func (fs *FeatureSet) OutputVectorSize() int {
	props := fs.PropertiesToExtract
	if !fs.VelocitiesFromModelOutput {
		props &^= BoneVelocity | BoneAngularVelocity
	}
	return BoneVectorSize(props, fs.RotationFormat) * len(fs.OutputBones)
}

// OutputSpace is the space the decoded transforms are applied in: local when
// enabled, component space otherwise.
func (fs *FeatureSet) OutputSpace() TransformSpace {
	if fs.TransformType.Has(LocalSpace) {
		return LocalSpace
	}
	return ComponentSpace
}

// ComputeFeaturesOffline returns the feature vectors of every frame of a
// sequence, concatenated.
func (fs *FeatureSet) ComputeFeaturesOffline(local, component [][]math.Transform, dt float32) ([]float32, error) {
	if len(local) != len(component) {
		return nil, fmt.Errorf("%w: %d != %d", ErrFrameMismatch, len(local), len(component))
	}
	out := make([]float32, 0, len(local)*fs.FeatureVectorSize())
	for i := range local {
		for _, f := range fs.Features {
			for _, space := range f.Space().Spaces() {
				if space == LocalSpace {
					out = f.ComputeOffline(out, local, dt, i)
				} else {
					out = f.ComputeOffline(out, component, dt, i)
				}
			}
		}
	}
	return out, nil
}

// ComputeFeaturesRealTime returns the feature vector of the current frame.
func (fs *FeatureSet) ComputeFeaturesRealTime(frame Frame, dt float32) []float32 {
	out := make([]float32, 0, fs.FeatureVectorSize())
	for _, f := range fs.Features {
		for _, space := range f.Space().Spaces() {
			out = f.ComputeRealTime(out, frame, space, dt)
		}
	}
	return out
}

// ComputeDatasetOffline returns the ground truth of the given bones for every
// frame: per frame, per bone, per space the properties in the order position,
// rotation, velocity, angular velocity.
func (fs *FeatureSet) ComputeDatasetOffline(local, component [][]math.Transform, boneIndices []int, dt float32) ([]float32, error) {
	if len(local) != len(component) {
		return nil, fmt.Errorf("%w: %d != %d", ErrFrameMismatch, len(local), len(component))
	}
	spaces := fs.TransformType.Spaces()
	boneSize := fs.BoneVectorSize()
	out := make([]float32, 0, len(local)*len(boneIndices)*len(spaces)*boneSize)
	for i := range local {
		for _, bone := range boneIndices {
			for _, space := range spaces {
				frames := local
				if space == ComponentSpace {
					frames = component
				}
				if bone < 0 || bone >= len(frames[i]) {
					out = appendZeros(out, boneSize)
					continue
				}
				prev, current, next := neighbours(frames, i, bone)
				out = appendBone(out, fs.PropertiesToExtract, fs.RotationFormat, current,
					centralVelocity(prev, current, next, dt),
					centralAngularVelocity(prev, current, next, dt))
			}
		}
	}
	return out, nil
}
