package skeleton

import (
	"github.com/spaghettifunk/neuranim/engine/math"
)

// BoneContainer is the runtime bone index space: the subset of a skeleton's
// bones that are evaluated, renumbered compactly. A required bone always
// brings its ancestors with it so the subset stays a valid hierarchy.
type BoneContainer struct {
	skeleton      *Skeleton
	skeletonIndex []int // compact -> skeleton
	compactIndex  []int // skeleton -> compact, IndexNone when not evaluated
	parents       []int // compact parent of each compact bone
}

// NewBoneContainer builds the runtime index space. With no names every bone is
// kept. Names that do not exist in the skeleton are ignored.
func NewBoneContainer(s *Skeleton, required ...string) *BoneContainer {
	keep := make([]bool, s.NumBones())
	if len(required) == 0 {
		for i := range keep {
			keep[i] = true
		}
	}
	for _, name := range required {
		for idx := s.FindBoneIndex(name); idx != IndexNone && !keep[idx]; idx = s.ParentIndex(idx) {
			keep[idx] = true
		}
	}

	bc := &BoneContainer{
		skeleton:     s,
		compactIndex: make([]int, s.NumBones()),
	}
	for i := range bc.compactIndex {
		bc.compactIndex[i] = IndexNone
	}
	for i, k := range keep {
		if !k {
			continue
		}
		bc.compactIndex[i] = len(bc.skeletonIndex)
		bc.skeletonIndex = append(bc.skeletonIndex, i)
	}
	bc.parents = make([]int, len(bc.skeletonIndex))
	for c, si := range bc.skeletonIndex {
		parent := s.ParentIndex(si)
		if parent == IndexNone {
			bc.parents[c] = IndexNone
			continue
		}
		bc.parents[c] = bc.compactIndex[parent]
	}
	return bc
}

func (bc *BoneContainer) Skeleton() *Skeleton {
	return bc.skeleton
}

func (bc *BoneContainer) NumBones() int {
	return len(bc.skeletonIndex)
}

// FindBoneIndex resolves a bone name to its compact index, or IndexNone.
func (bc *BoneContainer) FindBoneIndex(name string) int {
	idx := bc.skeleton.FindBoneIndex(name)
	if idx == IndexNone {
		return IndexNone
	}
	return bc.compactIndex[idx]
}

func (bc *BoneContainer) CompactIndex(skeletonIndex int) int {
	if skeletonIndex < 0 || skeletonIndex >= len(bc.compactIndex) {
		return IndexNone
	}
	return bc.compactIndex[skeletonIndex]
}

func (bc *BoneContainer) ParentIndex(compactIndex int) int {
	return bc.parents[compactIndex]
}

func (bc *BoneContainer) BoneName(compactIndex int) string {
	return bc.skeleton.Bones[bc.skeletonIndex[compactIndex]].Name
}

// RefPose returns the local reference transforms of the evaluated bones.
func (bc *BoneContainer) RefPose() []math.Transform {
	out := make([]math.Transform, len(bc.skeletonIndex))
	for c, si := range bc.skeletonIndex {
		out[c] = bc.skeleton.RefPose[si]
	}
	return out
}
