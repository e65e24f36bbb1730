package testbed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/config"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/node"
)

func testSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	s, err := skeleton.NewSkeleton([]skeleton.Bone{
		{Name: "root", Index: 0, ParentIndex: skeleton.IndexNone},
		{Name: "hand", Index: 1, ParentIndex: 0},
	}, []math.Transform{math.TransformIdentity(), math.TransformFromPosition(math.NewVec3(0, 1, 0))})
	require.NoError(t, err)
	return s
}

// the root moves speed units along x per frame, 4 frames in one second
func testClip(t *testing.T, name string, speed float32) *skeleton.Clip {
	t.Helper()
	frames := make([][]math.Transform, 4)
	for i := range frames {
		frames[i] = []math.Transform{
			math.TransformFromPosition(math.NewVec3(speed*float32(i), 0, 0)),
			math.TransformFromPosition(math.NewVec3(0, 1, 0)),
		}
	}
	c, err := skeleton.NewClip(name, 1, frames)
	require.NoError(t, err)
	return c
}

func trajectoryFeatureSet() *features.FeatureSet {
	fs := features.NewFeatureSet("locomotion")
	fs.OutputBones = []string{"hand"}
	traj := features.NewTrajectoryFeature("root", "root")
	traj.SamplingRate = 0.25
	fs.AddFeature(traj)
	return fs
}

func TestUpdatePredictsTrajectory(t *testing.T) {
	s := testSkeleton(t)
	g := NewTestGame(config.Default())
	require.NoError(t, g.Initialize(s, trajectoryFeatureSet(), []*skeleton.Clip{testClip(t, "walk", 1)}))

	pose := skeleton.NewPose(skeleton.NewBoneContainer(s))
	require.NoError(t, g.Update(0.25, pose))
	assert.InDelta(t, 0, pose.Local[0].Position.X, 1e-5)
	require.Len(t, pose.Trajectory, 2)
	assert.InDelta(t, 1, pose.Trajectory[0].Position.X, 1e-5)
	assert.InDelta(t, 2, pose.Trajectory[1].Position.X, 1e-5)

	require.NoError(t, g.Update(0.25, pose))
	assert.InDelta(t, 1, pose.Local[0].Position.X, 1e-5)
	require.Len(t, pose.Trajectory, 2)
	assert.InDelta(t, 3, pose.Trajectory[1].Position.X, 1e-5)
}

func TestUpdateCyclesClips(t *testing.T) {
	s := testSkeleton(t)
	g := NewTestGame(config.Default())
	clips := []*skeleton.Clip{testClip(t, "walk", 1), testClip(t, "run", 2)}
	require.NoError(t, g.Initialize(s, features.NewFeatureSet("empty"), clips))

	pose := skeleton.NewPose(skeleton.NewBoneContainer(s))
	for i := 0; i < 4; i++ {
		require.NoError(t, g.Update(0.25, pose))
	}
	assert.Empty(t, pose.Trajectory, "no trajectory feature, no prediction")

	// the fifth frame is the first of the run clip
	require.NoError(t, g.Update(0.25, pose))
	require.NoError(t, g.Update(0.25, pose))
	assert.InDelta(t, 2, pose.Local[0].Position.X, 1e-5)
}

func TestInitializeErrors(t *testing.T) {
	s := testSkeleton(t)
	g := NewTestGame(config.Default())
	assert.ErrorIs(t, g.Initialize(s, trajectoryFeatureSet(), nil), ErrNoClips)

	bad, err := skeleton.NewClip("bad", 1, [][]math.Transform{{math.TransformIdentity()}})
	require.NoError(t, err)
	assert.ErrorIs(t, g.Initialize(s, trajectoryFeatureSet(), []*skeleton.Clip{bad}), skeleton.ErrInvalidClip)
}

func TestOnPoseCountsResults(t *testing.T) {
	g := NewTestGame(config.Default())
	require.NoError(t, g.OnPose(nil, node.ResultUpdated))
	require.NoError(t, g.OnPose(nil, node.ResultUpdated))
	require.NoError(t, g.OnPose(nil, node.ResultReused))

	state := g.state()
	assert.Equal(t, uint64(3), state.frames)
	assert.Equal(t, uint64(2), state.results[node.ResultUpdated])
	assert.NoError(t, g.Shutdown())
}
