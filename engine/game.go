package engine

import (
	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/node"
)

// Game is the character controller driving the upstream animation of the
// player. Only FnUpdate is required.
type Game struct {
	ApplicationConfig *ApplicationConfig
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnOnPose          OnPose
	FnShutdown        Shutdown
}

type Initialize func(s *skeleton.Skeleton, fs *features.FeatureSet, clips []*skeleton.Clip) error

// Update writes the upstream pose of the frame, trajectory included.
type Update func(deltaTime float64, pose *skeleton.Pose) error

// OnPose receives the pose once the node evaluated it.
type OnPose func(pose *skeleton.Pose, result node.Result) error
type Shutdown func() error
