package dataset

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/savgol"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

// root -> spine -> arm -> hand
func testSkeleton(t *testing.T) *skeleton.Skeleton {
	t.Helper()
	s, err := skeleton.NewSkeleton([]skeleton.Bone{
		{Name: "root", Index: 0, ParentIndex: skeleton.IndexNone},
		{Name: "spine", Index: 1, ParentIndex: 0},
		{Name: "arm", Index: 2, ParentIndex: 1},
		{Name: "hand", Index: 3, ParentIndex: 2},
	}, []math.Transform{
		math.TransformIdentity(),
		math.TransformFromPosition(math.NewVec3(0, 0, 1)),
		math.TransformFromPosition(math.NewVec3(0, 1, 0)),
		math.TransformFromPosition(math.NewVec3(0, 1, 0)),
	})
	require.NoError(t, err)
	return s
}

// the root walks one unit along x per frame
func walkClip(t *testing.T, s *skeleton.Skeleton, name string, frames int, duration float32) *skeleton.Clip {
	t.Helper()
	keys := make([][]math.Transform, frames)
	for f := range keys {
		keys[f] = append([]math.Transform(nil), s.RefPose...)
		keys[f][0] = math.TransformFromPosition(math.NewVec3(float32(f), 0, 0))
	}
	c, err := skeleton.NewClip(name, duration, keys)
	require.NoError(t, err)
	return c
}

func testFeatureSet(outputBones ...string) *features.FeatureSet {
	fs := features.NewFeatureSet("walk")
	fs.OutputBones = outputBones
	fs.AddFeature(features.NewBoneFeature("root"))
	return fs
}

func testJobs(t *testing.T) *systems.JobSystem {
	t.Helper()
	jobs, err := systems.NewJobSystem(2, 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = jobs.Shutdown() })
	return jobs
}

func TestParentIndicesSkipUnexportedBones(t *testing.T) {
	s := testSkeleton(t)
	settings := DefaultSettings()
	settings.Folder = t.TempDir()

	e, err := NewExporter(settings, s, testFeatureSet("root", "hand"), testJobs(t))
	require.NoError(t, err)
	assert.Equal(t, []int32{-1, 0}, e.ParentIndices())

	e, err = NewExporter(settings, s, testFeatureSet("hand", "arm"), testJobs(t))
	require.NoError(t, err)
	assert.Equal(t, []int32{1, -1}, e.ParentIndices())
}

func TestExport(t *testing.T) {
	s := testSkeleton(t)
	settings := DefaultSettings()
	settings.Folder = t.TempDir()

	e, err := NewExporter(settings, s, testFeatureSet("root", "hand"), testJobs(t))
	require.NoError(t, err)

	clips := []*skeleton.Clip{
		walkClip(t, s, "walk", 5, 1),
		walkClip(t, s, "step", 3, 0.75),
	}
	manifest, err := e.Export(context.Background(), clips)
	require.NoError(t, err)

	assert.Equal(t, 8, manifest.TotalFrames)
	assert.Equal(t, 3, manifest.FeatureVectorSize)
	assert.Equal(t, 3, manifest.BoneVectorSize)
	require.Len(t, manifest.Clips, 2)
	assert.Equal(t, ClipEntry{Name: "walk", Offset: 0, Frames: 5, FrameTime: 0.2}, manifest.Clips[0])
	assert.Equal(t, ClipEntry{Name: "step", Offset: 5, Frames: 3, FrameTime: 0.25}, manifest.Clips[1])

	data, err := loaders.LoadTensor(e.path(DatasetFile))
	require.NoError(t, err)
	assert.Equal(t, []int32{8, 2, 3}, data.Dims)
	// frame 2 of "walk": root at x=2, hand in local space
	assert.Equal(t, []float32{2, 0, 0, 0, 1, 0}, data.Data[2*6:3*6])
	// first frame of "step" starts again at the origin
	assert.Equal(t, []float32{0, 0, 0}, data.Data[5*6:5*6+3])

	feats, err := loaders.LoadTensor(e.path(FeaturesFile))
	require.NoError(t, err)
	assert.Equal(t, []int32{8, 3}, feats.Dims)
	assert.Equal(t, []float32{4, 0, 0}, feats.Data[4*3:5*3])

	stored, err := ReadManifest(settings.Folder)
	require.NoError(t, err)
	assert.Equal(t, manifest.RunID, stored.RunID)
	assert.Equal(t, manifest.Clips, stored.Clips)
	_, err = uuid.Parse(stored.RunID)
	assert.NoError(t, err)
}

func TestExportParentIndicesFile(t *testing.T) {
	s := testSkeleton(t)
	settings := DefaultSettings()
	settings.Folder = t.TempDir()

	e, err := NewExporter(settings, s, testFeatureSet("root", "hand"), testJobs(t))
	require.NoError(t, err)
	_, err = e.Export(context.Background(), []*skeleton.Clip{walkClip(t, s, "walk", 4, 1)})
	require.NoError(t, err)

	dims, parents, err := loaders.LoadTensorInt32(e.path(ParentIndicesFile))
	require.NoError(t, err)
	assert.Equal(t, []int32{2}, dims)
	assert.Equal(t, []int32{-1, 0}, parents)
}

func TestExportSmoothing(t *testing.T) {
	s := testSkeleton(t)
	settings := DefaultSettings()
	settings.Folder = t.TempDir()
	settings.SmoothWindow = 5
	settings.SmoothOrder = 2
	settings.SmoothMode = string(savgol.ModeInterp)

	e, err := NewExporter(settings, s, testFeatureSet("root"), testJobs(t))
	require.NoError(t, err)

	// a straight walk is a polynomial and survives smoothing
	_, err = e.Export(context.Background(), []*skeleton.Clip{walkClip(t, s, "walk", 7, 1)})
	require.NoError(t, err)
	data, err := loaders.LoadTensor(e.path(DatasetFile))
	require.NoError(t, err)
	for f := 0; f < 7; f++ {
		assert.InDelta(t, float32(f), data.Data[f*3], 1e-4)
	}

	// too short for the window
	_, err = e.Export(context.Background(), []*skeleton.Clip{walkClip(t, s, "step", 3, 1)})
	assert.ErrorIs(t, err, savgol.ErrWindowTooLong)
}

func TestExportErrors(t *testing.T) {
	s := testSkeleton(t)
	settings := DefaultSettings()
	settings.Folder = t.TempDir()
	jobs := testJobs(t)

	_, err := NewExporter(settings, s, testFeatureSet("tail"), jobs)
	assert.ErrorIs(t, err, ErrMissingBone)
	_, err = NewExporter(settings, s, testFeatureSet(), jobs)
	assert.ErrorIs(t, err, features.ErrNoOutputBones)
	_, err = NewExporter(Settings{}, s, testFeatureSet("root"), jobs)
	assert.ErrorIs(t, err, ErrNoFolder)

	bad := settings
	bad.SmoothWindow = 5
	bad.SmoothMode = "mirror"
	_, err = NewExporter(bad, s, testFeatureSet("root"), jobs)
	assert.ErrorIs(t, err, savgol.ErrInvalidMode)

	e, err := NewExporter(settings, s, testFeatureSet("root"), jobs)
	require.NoError(t, err)
	_, err = e.Export(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoClips)

	short, err := skeleton.NewClip("short", 1, [][]math.Transform{{math.TransformIdentity()}})
	require.NoError(t, err)
	_, err = e.Export(context.Background(), []*skeleton.Clip{short})
	assert.ErrorIs(t, err, skeleton.ErrInvalidClip)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Export(ctx, []*skeleton.Clip{walkClip(t, s, "walk", 4, 1)})
	assert.ErrorIs(t, err, ErrExportAborted)
}
