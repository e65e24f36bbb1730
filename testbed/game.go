package testbed

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/neuranim/engine"
	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/config"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/node"
)

var ErrNoClips = errors.New("testbed needs at least one clip")

// TestGame is a scripted character controller: it plays the clips one after
// the other as the upstream animation and predicts the trajectory from the
// frames ahead.
type TestGame struct {
	*engine.Game
}

type gameState struct {
	skeleton *skeleton.Skeleton
	clips    []*skeleton.Clip

	clip int
	time float32

	// trajectory prediction, taken from the first trajectory feature
	trajectoryBone  int
	trajectorySpace features.TransformSpace
	numPredictions  int
	samplingRate    float32

	frames  uint64
	results map[node.Result]uint64
}

func NewTestGame(cfg *config.Config) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				Name:   "Neuranim Testbed",
				Config: cfg,
			},
			State: &gameState{
				trajectoryBone: skeleton.IndexNone,
				results:        make(map[node.Result]uint64),
			},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnPose = tg.OnPose
	tg.FnShutdown = tg.Shutdown

	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(s *skeleton.Skeleton, fs *features.FeatureSet, clips []*skeleton.Clip) error {
	if len(clips) == 0 {
		return ErrNoClips
	}
	state := g.state()
	for _, c := range clips {
		if err := c.Validate(s); err != nil {
			return err
		}
	}
	state.skeleton = s
	state.clips = clips

	for _, f := range fs.Features {
		t, ok := f.(*features.TrajectoryFeature)
		if !ok {
			continue
		}
		state.trajectoryBone = s.FindBoneIndex(t.PositionBoneName)
		state.trajectorySpace = t.Space()
		state.numPredictions = t.NumSamples - 1
		state.samplingRate = t.SamplingRate
		break
	}

	core.LogInfo("testbed initialized", "clips", len(clips), "first", clips[0].Name,
		"predictions", state.numPredictions, "sampling_rate", state.samplingRate)
	return nil
}

// Update samples the current clip and moves on to the next one once it is
// over.
func (g *TestGame) Update(deltaTime float64, pose *skeleton.Pose) error {
	state := g.state()
	c := state.clips[state.clip]

	pose.Local = c.Sample(state.time)
	pose.Trajectory = state.predict(c, pose.Trajectory[:0])

	state.time += float32(deltaTime)
	if state.time >= c.Duration {
		state.time -= c.Duration
		state.clip = (state.clip + 1) % len(state.clips)
		core.LogDebug("switching clip", "clip", state.clips[state.clip].Name)
	}
	return nil
}

// predict appends the trajectory bone of the frames ahead of the current time,
// in the space of the trajectory feature.
func (s *gameState) predict(c *skeleton.Clip, dst []math.Transform) []math.Transform {
	if s.trajectoryBone == skeleton.IndexNone {
		return dst
	}
	for i := 1; i <= s.numPredictions; i++ {
		local := c.Sample(s.time + float32(i)*s.samplingRate)
		if s.trajectorySpace.Has(features.LocalSpace) {
			dst = append(dst, local[s.trajectoryBone])
		} else {
			dst = append(dst, s.skeleton.ComponentSpace(local)[s.trajectoryBone])
		}
	}
	return dst
}

func (g *TestGame) OnPose(pose *skeleton.Pose, result node.Result) error {
	state := g.state()
	state.frames++
	state.results[result]++
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.state()
	summary := ""
	for _, r := range []node.Result{node.ResultUpdated, node.ResultReused, node.ResultUnchanged, node.ResultReset} {
		summary += fmt.Sprintf("%s=%d ", r, state.results[r])
	}
	core.LogInfo("testbed stopped", "frames", state.frames, "results", summary)
	return nil
}
