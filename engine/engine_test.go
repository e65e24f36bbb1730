package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/assets"
	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/config"
	"github.com/spaghettifunk/neuranim/engine/dataset"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/node"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

const testSkeleton = `
name = "character"

[[bones]]
name = "root"

[[bones]]
name = "hand"
parent = "root"
position = [0.0, 1.0, 0.0]
`

// the root position in, the hand position out
const testFeatureSet = `
name = "locomotion"
output_bones = ["hand"]

[[features]]
kind = "bone"
bone = "root"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// scaleModel maps the 3 inputs to the 3 outputs multiplied by k.
func scaleModel(k float32) *loaders.ModelData {
	return &loaders.ModelData{
		Name: "scale",
		Layers: []loaders.Layer{{
			Weights: &loaders.Tensor{Dims: []int32{3, 3}, Data: []float32{k, 0, 0, 0, k, 0, 0, 0, k}},
			Bias:    &loaders.Tensor{Dims: []int32{3}, Data: []float32{0, 0, 0}},
		}},
	}
}

// walkClip moves the root one unit along x per frame, 4 frames in one second.
func walkClip(t *testing.T) *skeleton.Clip {
	t.Helper()
	frames := make([][]math.Transform, 4)
	for i := range frames {
		frames[i] = []math.Transform{
			math.TransformFromPosition(math.NewVec3(float32(i), 0, 0)),
			math.TransformFromPosition(math.NewVec3(0, 1, 0)),
		}
	}
	c, err := skeleton.NewClip("walk", 1, frames)
	require.NoError(t, err)
	return c
}

func setupAssets(t *testing.T, withModel bool) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "character.skel.toml"), testSkeleton)
	writeFile(t, filepath.Join(dir, "locomotion.features.toml"), testFeatureSet)

	clip, err := loaders.MarshalClip(walkClip(t))
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "walk.clip.toml"), string(clip))

	if withModel {
		require.NoError(t, loaders.SaveModel(filepath.Join(dir, "locomotion.model"), scaleModel(1)))
	}
	return dir
}

type frameRecord struct {
	result node.Result
	hand   math.Vec3
}

// playback samples the first clip into the pose and records every evaluated
// pose.
type playback struct {
	clip    *skeleton.Clip
	time    float32
	records []frameRecord
}

func (p *playback) game(cfg *config.Config) *Game {
	return &Game{
		ApplicationConfig: &ApplicationConfig{Name: "test", Config: cfg},
		State:             p,
		FnInitialize: func(s *skeleton.Skeleton, fs *features.FeatureSet, clips []*skeleton.Clip) error {
			if len(clips) == 0 {
				return errors.New("no clips")
			}
			p.clip = clips[0]
			return nil
		},
		FnUpdate: func(deltaTime float64, pose *skeleton.Pose) error {
			pose.Local = p.clip.Sample(p.time)
			p.time += float32(deltaTime)
			return nil
		},
		FnOnPose: func(pose *skeleton.Pose, result node.Result) error {
			p.records = append(p.records, frameRecord{result: result, hand: pose.Local[1].Position})
			return nil
		},
	}
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Assets.Root = dir
	cfg.Jobs.Workers = 2
	cfg.Node.Inertialised = false
	cfg.Play.FPS = 4
	cfg.Play.Frames = 3
	cfg.Play.DebugEvery = 1
	return cfg
}

func newEngine(t *testing.T, g *Game) *Engine {
	t.Helper()
	e, err := New(g)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Shutdown() })
	require.NoError(t, e.Initialize())
	return e
}

func TestEngineRun(t *testing.T) {
	cfg := testConfig(setupAssets(t, true))
	p := &playback{}
	e := newEngine(t, p.game(cfg))
	assert.Equal(t, EngineStageInitialized, e.Stage())
	assert.Equal(t, 2, e.Skeleton().NumBones())
	assert.Equal(t, "locomotion", e.FeatureSet().Name)

	require.NoError(t, e.Run(context.Background()))
	require.Len(t, p.records, 3)
	for i, r := range p.records {
		assert.Equal(t, node.ResultUpdated, r.result, "frame %d", i)
		// the model copies the root position onto the hand
		assert.InDelta(t, float32(i), r.hand.X, 1e-4, "frame %d", i)
	}

	d := e.Node().GatherDebugData()
	assert.Equal(t, uint64(3), d.Runs)
	assert.Equal(t, uint64(3), d.Evaluations)
}

func TestEngineRunWithoutModel(t *testing.T) {
	cfg := testConfig(setupAssets(t, false))
	p := &playback{}
	e := newEngine(t, p.game(cfg))

	require.NoError(t, e.Run(context.Background()))
	require.Len(t, p.records, 3)
	for _, r := range p.records {
		assert.Equal(t, node.ResultUnchanged, r.result)
		assert.InDelta(t, 0, r.hand.X, 1e-6)
	}
	assert.Empty(t, e.Node().GatherDebugData().ModelID)
}

func TestEngineReloadModel(t *testing.T) {
	dir := setupAssets(t, true)
	cfg := testConfig(dir)
	cfg.Play.Frames = 2
	p := &playback{}
	e := newEngine(t, p.game(cfg))
	require.NoError(t, e.Run(context.Background()))
	first := e.Node().GatherDebugData().ModelID

	path := filepath.Join(dir, "locomotion.model")
	require.NoError(t, loaders.SaveModel(path, scaleModel(2)))
	e.onAssetChanged(assets.AssetInfo{Path: e.assetManager.Resolve(path), Type: resources.ResourceTypeModel})

	// frame 2 samples the root at x=2, doubled by the new model
	require.NoError(t, e.frame(context.Background(), 2, cfg.FrameTime()))
	require.Len(t, p.records, 3)
	assert.InDelta(t, 4, p.records[2].hand.X, 1e-4)
	assert.NotEqual(t, first, e.Node().GatherDebugData().ModelID)
}

func TestEngineReloadBrokenFeatureSetKeepsNode(t *testing.T) {
	dir := setupAssets(t, true)
	cfg := testConfig(dir)
	cfg.Play.Frames = 1
	p := &playback{}
	e := newEngine(t, p.game(cfg))
	require.NoError(t, e.Run(context.Background()))
	n := e.Node()

	path := filepath.Join(dir, "locomotion.features.toml")
	writeFile(t, path, "name = \"broken\"\n")
	e.onAssetChanged(assets.AssetInfo{Path: e.assetManager.Resolve(path), Type: resources.ResourceTypeFeatureSet})
	e.applyReloads()

	assert.Same(t, n, e.Node())
	assert.Equal(t, "locomotion", e.FeatureSet().Name)
}

func TestEngineExport(t *testing.T) {
	cfg := testConfig(setupAssets(t, false))
	cfg.Export.Folder = filepath.Join(t.TempDir(), "export")
	e := newEngine(t, (&playback{}).game(cfg))

	manifest, err := e.Export(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, manifest.TotalFrames)
	require.Len(t, manifest.Clips, 1)
	assert.Equal(t, "walk", manifest.Clips[0].Name)

	for _, name := range []string{dataset.ParentIndicesFile, dataset.DatasetFile, dataset.FeaturesFile, dataset.ManifestFile} {
		assert.FileExists(t, filepath.Join(cfg.Export.Folder, name))
	}
}

func TestEngineStopsOnCancel(t *testing.T) {
	cfg := testConfig(setupAssets(t, true))
	cfg.Play.Frames = 0
	p := &playback{}
	e := newEngine(t, p.game(cfg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, e.Run(ctx))
	assert.Empty(t, p.records)
}

func TestEngineGameErrors(t *testing.T) {
	cfg := testConfig(setupAssets(t, true))
	p := &playback{}
	g := p.game(cfg)
	boom := errors.New("boom")
	g.FnUpdate = func(float64, *skeleton.Pose) error { return boom }
	e := newEngine(t, g)

	assert.ErrorIs(t, e.Run(context.Background()), boom)
}

func TestEngineSetupErrors(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNoGame)

	_, err = New(&Game{FnUpdate: func(float64, *skeleton.Pose) error { return nil }})
	assert.ErrorIs(t, err, ErrNoConfig)

	cfg := testConfig(setupAssets(t, true))
	e, err := New((&playback{}).game(cfg))
	require.NoError(t, err)
	defer e.Shutdown()
	assert.ErrorIs(t, e.Run(context.Background()), ErrNotInitialized)
	_, err = e.Export(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)

	missing := testConfig(t.TempDir())
	e, err = New((&playback{}).game(missing))
	require.NoError(t, err)
	defer e.Shutdown()
	assert.Error(t, e.Initialize())
}
