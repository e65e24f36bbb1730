package skeleton

import (
	"github.com/spaghettifunk/neuranim/engine/math"
)

// Pose holds one local transform per bone of a BoneContainer. Trajectory is
// optional and carries the future root samples predicted by the character
// controller, spaced by the trajectory sampling rate.
type Pose struct {
	Local      []math.Transform
	Trajectory []math.Transform

	container *BoneContainer
}

func NewPose(bc *BoneContainer) *Pose {
	p := &Pose{container: bc}
	p.ResetToRefPose()
	return p
}

func (p *Pose) Container() *BoneContainer {
	return p.container
}

func (p *Pose) NumBones() int {
	return len(p.Local)
}

func (p *Pose) ResetToRefPose() {
	p.Local = p.container.RefPose()
}

// ComponentSpace returns every bone relative to the root.
func (p *Pose) ComponentSpace() []math.Transform {
	return composeHierarchy(p.Local, p.container.ParentIndex)
}

// SetComponentSpace replaces the pose with component space transforms,
// converting them back to local.
func (p *Pose) SetComponentSpace(component []math.Transform) {
	p.Local = decomposeHierarchy(component, p.container.ParentIndex)
}
