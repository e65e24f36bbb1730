package spring

import (
	"errors"
	"fmt"
	m "math"

	"github.com/spaghettifunk/neuranim/engine/math"
)

// halfLifeFactor scales ln(2) / halfLife into the spring decay rate. From rest
// about two thirds of the distance to the goal is covered after one half-life.
const halfLifeFactor = 6.64 * m.Ln2 / 2

// DefaultHalfLife is used by the animation node when none is configured.
const DefaultHalfLife float32 = 0.5

var ErrInvalidHalfLife = errors.New("spring half-life must be positive")

// DecayRate converts a half-life in seconds into the spring decay rate.
func DecayRate(halfLife float32) float32 {
	return float32(halfLifeFactor / float64(halfLife))
}

func validateHalfLife(halfLife float32) error {
	if !(halfLife > 0) {
		return fmt.Errorf("%w: %v", ErrInvalidHalfLife, halfLife)
	}
	return nil
}

// VectorSpring is a critically damped spring on a 3D position.
type VectorSpring struct {
	HalfLife float32
	X        math.Vec3
	V        math.Vec3

	y float32
}

func NewVectorSpring(halfLife float32) (*VectorSpring, error) {
	if err := validateHalfLife(halfLife); err != nil {
		return nil, err
	}
	return &VectorSpring{
		HalfLife: halfLife,
		y:        DecayRate(halfLife),
	}, nil
}

// Reset puts the spring at rest on goal.
func (s *VectorSpring) Reset(goal math.Vec3) {
	s.X = goal
	s.V = math.NewVec3Zero()
}

// Update moves the spring towards goal by dt and returns the new position.
func (s *VectorSpring) Update(goal math.Vec3, dt float32) math.Vec3 {
	if dt <= 0 {
		return s.X
	}
	j0 := s.X.Sub(goal)
	j1 := s.V.Add(j0.MulScalar(s.y))
	eydt := kexp(-s.y * dt)

	s.X = j0.Add(j1.MulScalar(dt)).MulScalar(eydt).Add(goal)
	s.V = s.V.Sub(j1.MulScalar(s.y * dt)).MulScalar(eydt)
	return s.X
}

// QuatSpring is a critically damped spring on a rotation, integrated in the
// scaled angle axis space of the offset to the goal.
type QuatSpring struct {
	HalfLife float32
	Q        math.Quaternion
	V        math.Vec3

	y float32
}

func NewQuatSpring(halfLife float32) (*QuatSpring, error) {
	if err := validateHalfLife(halfLife); err != nil {
		return nil, err
	}
	return &QuatSpring{
		HalfLife: halfLife,
		Q:        math.NewQuatIdentity(),
		y:        DecayRate(halfLife),
	}, nil
}

func (s *QuatSpring) Reset(goal math.Quaternion) {
	s.Q = goal.Normalize()
	s.V = math.NewVec3Zero()
}

func (s *QuatSpring) Update(goal math.Quaternion, dt float32) math.Quaternion {
	if dt <= 0 {
		return s.Q
	}
	// shortest arc
	if s.Q.Dot(goal) < 0 {
		s.Q = s.Q.Negate()
	}
	j0 := math.QuatToScaledAngleAxis(s.Q.Mul(goal.Inverse()))
	j1 := s.V.Add(j0.MulScalar(s.y))
	eydt := kexp(-s.y * dt)

	s.Q = math.QuatFromScaledAngleAxis(j0.Add(j1.MulScalar(dt)).MulScalar(eydt)).Mul(goal).Normalize()
	s.V = s.V.Sub(j1.MulScalar(s.y * dt)).MulScalar(eydt)
	return s.Q
}

// TransformSpring smooths a whole transform, used to inertialize bones.
type TransformSpring struct {
	Position *VectorSpring
	Rotation *QuatSpring
}

func NewTransformSpring(halfLife float32) (*TransformSpring, error) {
	position, err := NewVectorSpring(halfLife)
	if err != nil {
		return nil, err
	}
	rotation, err := NewQuatSpring(halfLife)
	if err != nil {
		return nil, err
	}
	return &TransformSpring{Position: position, Rotation: rotation}, nil
}

func (s *TransformSpring) Reset(goal math.Transform) {
	s.Position.Reset(goal.Position)
	s.Rotation.Reset(goal.Rotation)
}

func (s *TransformSpring) Update(goal math.Transform, dt float32) math.Transform {
	return math.Transform{
		Position: s.Position.Update(goal.Position, dt),
		Rotation: s.Rotation.Update(goal.Rotation, dt),
	}
}

// Current returns the spring state without advancing it.
func (s *TransformSpring) Current() math.Transform {
	return math.Transform{Position: s.Position.X, Rotation: s.Rotation.Q}
}
