package skeleton

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/neuranim/engine/math"
)

// IndexNone marks a bone that has no parent or could not be resolved.
const IndexNone = -1

var (
	ErrInvalidHierarchy = errors.New("invalid bone hierarchy")
	ErrDuplicateBone    = errors.New("duplicate bone name")
	ErrRefPoseMismatch  = errors.New("reference pose does not match bone count")
)

type Bone struct {
	Name        string
	Index       int
	ParentIndex int
}

// Skeleton is the offline bone hierarchy of an asset. Bones are stored so that
// every parent comes before its children.
type Skeleton struct {
	Bones   []Bone
	RefPose []math.Transform

	nameToIndex map[string]int
}

// NewSkeleton validates the hierarchy. refPose holds local transforms and may be
// nil, in which case every bone rests at identity.
func NewSkeleton(bones []Bone, refPose []math.Transform) (*Skeleton, error) {
	if refPose == nil {
		refPose = make([]math.Transform, len(bones))
		for i := range refPose {
			refPose[i] = math.TransformIdentity()
		}
	}
	if len(refPose) != len(bones) {
		return nil, fmt.Errorf("%w: %d bones, %d transforms", ErrRefPoseMismatch, len(bones), len(refPose))
	}

	s := &Skeleton{
		Bones:       make([]Bone, len(bones)),
		RefPose:     make([]math.Transform, len(refPose)),
		nameToIndex: make(map[string]int, len(bones)),
	}
	copy(s.RefPose, refPose)

	for i, b := range bones {
		if b.Index != i {
			return nil, fmt.Errorf("%w: bone %q has index %d at position %d", ErrInvalidHierarchy, b.Name, b.Index, i)
		}
		if b.ParentIndex != IndexNone && (b.ParentIndex < 0 || b.ParentIndex >= i) {
			return nil, fmt.Errorf("%w: bone %q has parent %d", ErrInvalidHierarchy, b.Name, b.ParentIndex)
		}
		if _, ok := s.nameToIndex[b.Name]; ok {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateBone, b.Name)
		}
		s.nameToIndex[b.Name] = i
		s.Bones[i] = b
	}
	return s, nil
}

func (s *Skeleton) NumBones() int {
	return len(s.Bones)
}

// FindBoneIndex returns the index of the named bone or IndexNone.
func (s *Skeleton) FindBoneIndex(name string) int {
	if idx, ok := s.nameToIndex[name]; ok {
		return idx
	}
	return IndexNone
}

func (s *Skeleton) ParentIndex(index int) int {
	return s.Bones[index].ParentIndex
}

// ParentIndices returns the parent of every bone, root bones being -1.
func (s *Skeleton) ParentIndices() []int32 {
	out := make([]int32, len(s.Bones))
	for i, b := range s.Bones {
		out[i] = int32(b.ParentIndex)
	}
	return out
}

// ComponentSpace chains the local transforms down the hierarchy.
func (s *Skeleton) ComponentSpace(local []math.Transform) []math.Transform {
	return composeHierarchy(local, s.ParentIndex)
}

// LocalSpace is the inverse of ComponentSpace.
func (s *Skeleton) LocalSpace(component []math.Transform) []math.Transform {
	return decomposeHierarchy(component, s.ParentIndex)
}

func composeHierarchy(local []math.Transform, parentOf func(int) int) []math.Transform {
	cs := make([]math.Transform, len(local))
	for i := range local {
		parent := parentOf(i)
		if parent == IndexNone {
			cs[i] = local[i]
			continue
		}
		cs[i] = cs[parent].Compose(local[i])
	}
	return cs
}

func decomposeHierarchy(component []math.Transform, parentOf func(int) int) []math.Transform {
	local := make([]math.Transform, len(component))
	for i := range component {
		parent := parentOf(i)
		if parent == IndexNone {
			local[i] = component[i]
			continue
		}
		local[i] = component[i].Relative(component[parent])
	}
	return local
}
