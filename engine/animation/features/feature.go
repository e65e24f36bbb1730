package features

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
)

var ErrUnknownFeature = errors.New("unknown feature kind")

// Frame is the pose of one frame evaluated in both spaces, plus the future
// trajectory samples provided by the character controller.
type Frame struct {
	Local      []math.Transform
	Component  []math.Transform
	Trajectory []math.Transform
}

// NewFrame evaluates the component space of pose once for every feature.
func NewFrame(pose *skeleton.Pose) Frame {
	return Frame{
		Local:      pose.Local,
		Component:  pose.ComponentSpace(),
		Trajectory: pose.Trajectory,
	}
}

func (f Frame) Transforms(space TransformSpace) []math.Transform {
	if space == ComponentSpace {
		return f.Component
	}
	return f.Local
}

// Feature is one block of the network input vector. The two compute paths
// must append exactly Size() floats for the same configuration.
type Feature interface {
	Kind() string
	// Space returns the transform spaces the feature is computed in.
	Space() TransformSpace
	// InitialiseOffline resolves bone names against the asset skeleton.
	InitialiseOffline(s *skeleton.Skeleton)
	// InitialiseRealTime resolves bone names against the runtime bone space.
	InitialiseRealTime(bc *skeleton.BoneContainer)
	// ComputeOffline appends the feature of frame index to dst. frames is
	// indexed [frame][bone] in skeleton order.
	ComputeOffline(dst []float32, frames [][]math.Transform, dt float32, index int) []float32
	// ComputeRealTime appends the feature of the current pose to dst.
	ComputeRealTime(dst []float32, frame Frame, space TransformSpace, dt float32) []float32
	Size() int
}

type Constructor func() Feature

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Constructor)
)

// Register makes a feature kind available to New. Registering the same kind
// twice replaces the constructor.
func Register(kind string, ctor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = ctor
}

// New creates an empty feature of the given kind.
func New(kind string) (Feature, error) {
	registryMu.RLock()
	ctor, ok := registry[kind]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q, known kinds are %v", ErrUnknownFeature, kind, Kinds())
	}
	return ctor(), nil
}

// Kinds lists the registered feature kinds.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	Register(KindBone, func() Feature { return NewBoneFeature("") })
	Register(KindTrajectory, func() Feature { return NewTrajectoryFeature("", "") })
}

func appendVec3(dst []float32, v math.Vec3) []float32 {
	return append(dst, v.X, v.Y, v.Z)
}

func appendRotation(dst []float32, q math.Quaternion, format RotationFormat) []float32 {
	if format == RotationQuaternion {
		return append(dst, q.X, q.Y, q.Z, q.W)
	}
	x, y := math.XformXYFromQuat(q)
	return append(appendVec3(dst, x), y.X, y.Y, y.Z)
}

func appendZeros(dst []float32, n int) []float32 {
	for i := 0; i < n; i++ {
		dst = append(dst, 0)
	}
	return dst
}

// centralVelocity is the central difference of the positions around current.
func centralVelocity(prev, current, next math.Transform, dt float32) math.Vec3 {
	if dt <= 0 {
		return math.NewVec3Zero()
	}
	back := current.Position.Sub(prev.Position).DivScalar(dt)
	forward := next.Position.Sub(current.Position).DivScalar(dt)
	return back.MulScalar(0.5).Add(forward.MulScalar(0.5))
}

// centralAngularVelocity is the central difference of the rotations around
// current, in scaled angle axis per second.
func centralAngularVelocity(prev, current, next math.Transform, dt float32) math.Vec3 {
	if dt <= 0 {
		return math.NewVec3Zero()
	}
	sum := rotationDelta(current.Rotation, next.Rotation).Add(rotationDelta(prev.Rotation, current.Rotation))
	return sum.MulScalar(0.5 / dt)
}

// rotationDelta is the scaled angle axis rotating from into to. A sign flip
// between the two quaternions is not a rotation.
func rotationDelta(from, to math.Quaternion) math.Vec3 {
	delta := math.QuatAbs(to.Mul(from.Inverse()).Normalize())
	return math.QuatToScaledAngleAxis(delta)
}

// neighbours returns the frames around index, repeating the boundary frame at
// the first and last frame.
func neighbours(frames [][]math.Transform, index, bone int) (math.Transform, math.Transform, math.Transform) {
	prev, next := index-1, index+1
	if prev < 0 {
		prev = index
	}
	if next >= len(frames) {
		next = index
	}
	return frames[prev][bone], frames[index][bone], frames[next][bone]
}
