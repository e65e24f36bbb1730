package assets

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

const skeletonTOML = `
[[bones]]
name = "root"

[[bones]]
name = "hips"
parent = "root"
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetermineResourceType(t *testing.T) {
	tests := map[string]resources.ResourceType{
		"biped.skel.toml":            resources.ResourceTypeSkeleton,
		"a/locomotion.features.toml": resources.ResourceTypeFeatureSet,
		"WALK.CLIP.TOML":             resources.ResourceTypeClip,
		"policy.model":               resources.ResourceTypeModel,
		"features.bin":               resources.ResourceTypeTensor,
		"notes.toml":                 resources.ResourceTypeNone,
	}
	for path, expected := range tests {
		assert.Equal(t, expected, resources.DetermineResourceType(path), path)
	}
	assert.Equal(t, "locomotion", resources.ResourceName("a/locomotion.features.toml"))
}

func TestAssetManagerIndexAndLoad(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "skeletons", "biped.skel.toml"), skeletonTOML)
	writeFile(t, filepath.Join(dir, "readme.txt"), "ignored")
	require.NoError(t, loaders.SaveTensor(filepath.Join(dir, "bias.bin"), []int32{1}, []float32{2}))

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir, false))
	defer am.Shutdown()

	skeletons := am.Assets(resources.ResourceTypeSkeleton)
	require.Len(t, skeletons, 1)
	assert.Equal(t, filepath.Join(am.Root(), "skeletons", "biped.skel.toml"), skeletons[0].Path)
	assert.Len(t, am.Assets(resources.ResourceTypeTensor), 1)

	res, err := am.LoadAsset("skeletons/biped.skel.toml", nil)
	require.NoError(t, err)
	assert.Equal(t, "biped", res.Name)
	assert.Equal(t, 2, res.Data.(*skeleton.Skeleton).NumBones())
	assert.NoError(t, am.UnloadAsset(res))

	_, err = am.LoadAsset("readme.txt", nil)
	assert.ErrorIs(t, err, ErrUnknownAsset)
	_, err = am.LoadAsset("missing.skel.toml", nil)
	assert.Error(t, err)

	require.NoError(t, am.Shutdown())
	_, err = am.LoadAsset("skeletons/biped.skel.toml", nil)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestAssetManagerHotReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "biped.skel.toml")
	writeFile(t, path, skeletonTOML)

	am, err := NewAssetManager()
	require.NoError(t, err)
	require.NoError(t, am.Initialize(dir, true))
	defer am.Shutdown()

	var mu sync.Mutex
	var reloaded []AssetInfo
	am.OnReload(func(info AssetInfo) {
		mu.Lock()
		defer mu.Unlock()
		reloaded = append(reloaded, info)
	})

	writeFile(t, path, skeletonTOML+"\n[[bones]]\nname = \"head\"\nparent = \"hips\"\n")
	writeFile(t, filepath.Join(dir, "ignored.txt"), "x")

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(reloaded) > 0
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	for _, info := range reloaded {
		assert.Equal(t, resources.ResourceTypeSkeleton, info.Type)
	}
	mu.Unlock()

	res, err := am.LoadAsset(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Data.(*skeleton.Skeleton).NumBones())
}
