package dataset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/savgol"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

const (
	ParentIndicesFile = "parent_indices.bin"
	DatasetFile       = "dataset.bin"
	FeaturesFile      = "features.bin"
	ManifestFile      = "manifest.toml"
)

var (
	ErrNoClips       = errors.New("nothing to export")
	ErrMissingBone   = errors.New("output bone not found in skeleton")
	ErrNoFolder      = errors.New("export folder not set")
	ErrExportAborted = errors.New("export aborted")
)

type Settings struct {
	Folder string `toml:"folder"`
	// SmoothWindow enables Savitzky-Golay smoothing of the bone positions
	// before extraction when greater than zero.
	SmoothWindow int    `toml:"smooth_window"`
	SmoothOrder  int    `toml:"smooth_order"`
	SmoothMode   string `toml:"smooth_mode"`
}

func DefaultSettings() Settings {
	return Settings{
		Folder:      "export",
		SmoothOrder: 3,
		SmoothMode:  string(savgol.ModeInterp),
	}
}

// ClipEntry locates the frames of one clip inside the exported tensors.
type ClipEntry struct {
	Name      string  `toml:"name"`
	Offset    int     `toml:"offset"`
	Frames    int     `toml:"frames"`
	FrameTime float32 `toml:"frame_time"`
}

// Manifest describes one export run. It is written next to the tensors.
type Manifest struct {
	RunID             string      `toml:"run_id"`
	CreatedAt         time.Time   `toml:"created_at"`
	FeatureSet        string      `toml:"feature_set"`
	OutputBones       []string    `toml:"output_bones"`
	FeatureVectorSize int         `toml:"feature_vector_size"`
	BoneVectorSize    int         `toml:"bone_vector_size"`
	OutputVectorSize  int         `toml:"output_vector_size"`
	TotalFrames       int         `toml:"total_frames"`
	Clips             []ClipEntry `toml:"clips"`
}

// Exporter turns animation clips into the training tensors of a feature set.
type Exporter struct {
	settings   Settings
	skeleton   *skeleton.Skeleton
	featureSet *features.FeatureSet
	jobs       *systems.JobSystem

	boneIndices []int
}

type clipResult struct {
	dataset  []float32
	features []float32
}

func NewExporter(settings Settings, s *skeleton.Skeleton, fs *features.FeatureSet, jobs *systems.JobSystem) (*Exporter, error) {
	if settings.Folder == "" {
		return nil, ErrNoFolder
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	if settings.SmoothWindow > 0 {
		if _, err := savgol.ParseMode(settings.SmoothMode); err != nil {
			return nil, err
		}
	}
	indices := fs.OutputBoneIndices(s)
	for i, idx := range indices {
		if idx == skeleton.IndexNone {
			return nil, fmt.Errorf("%w: %s", ErrMissingBone, fs.OutputBones[i])
		}
	}
	return &Exporter{
		settings:    settings,
		skeleton:    s,
		featureSet:  fs,
		jobs:        jobs,
		boneIndices: indices,
	}, nil
}

// ParentIndices maps every output bone to the position of its nearest
// exported ancestor in the output bone list, -1 when there is none.
func (e *Exporter) ParentIndices() []int32 {
	position := make(map[int]int32, len(e.boneIndices))
	for i, idx := range e.boneIndices {
		position[idx] = int32(i)
	}
	out := make([]int32, len(e.boneIndices))
	for i, idx := range e.boneIndices {
		out[i] = -1
		for p := e.skeleton.ParentIndex(idx); p != skeleton.IndexNone; p = e.skeleton.ParentIndex(p) {
			if pos, ok := position[p]; ok {
				out[i] = pos
				break
			}
		}
	}
	return out
}

/**
 * @brief Extracts every clip on the job system and writes the parent indices,
 * the pose dataset, the feature dataset and a manifest into the export folder.
 * Clips are laid out in the order given.
 */
func (e *Exporter) Export(ctx context.Context, clips []*skeleton.Clip) (*Manifest, error) {
	if len(clips) == 0 {
		return nil, ErrNoClips
	}
	for _, c := range clips {
		if err := c.Validate(e.skeleton); err != nil {
			return nil, err
		}
	}

	e.featureSet.InitialiseFeaturesOffline(e.skeleton)
	results, err := e.extractAll(ctx, clips)
	if err != nil {
		return nil, err
	}

	manifest := &Manifest{
		RunID:             uuid.New().String(),
		CreatedAt:         time.Now().UTC(),
		FeatureSet:        e.featureSet.Name,
		OutputBones:       e.featureSet.OutputBones,
		FeatureVectorSize: e.featureSet.FeatureVectorSize(),
		BoneVectorSize:    e.featureSet.BoneVectorSize() * len(e.featureSet.TransformType.Spaces()),
		OutputVectorSize:  e.featureSet.OutputVectorSize(),
	}
	var datasetData, featureData []float32
	for i, c := range clips {
		manifest.Clips = append(manifest.Clips, ClipEntry{
			Name:      c.Name,
			Offset:    manifest.TotalFrames,
			Frames:    c.NumFrames(),
			FrameTime: c.FrameTime(),
		})
		manifest.TotalFrames += c.NumFrames()
		datasetData = append(datasetData, results[i].dataset...)
		featureData = append(featureData, results[i].features...)
	}

	if err := os.MkdirAll(e.settings.Folder, 0o755); err != nil {
		return nil, err
	}
	parents := e.ParentIndices()
	if err := loaders.SaveTensorInt32(e.path(ParentIndicesFile), []int32{int32(len(parents))}, parents); err != nil {
		return nil, fmt.Errorf("failed to write parent indices: %w", err)
	}
	datasetDims := []int32{int32(manifest.TotalFrames), int32(len(e.boneIndices)), int32(manifest.BoneVectorSize)}
	if err := loaders.SaveTensor(e.path(DatasetFile), datasetDims, datasetData); err != nil {
		return nil, fmt.Errorf("failed to write dataset: %w", err)
	}
	featureDims := []int32{int32(manifest.TotalFrames), int32(manifest.FeatureVectorSize)}
	if err := loaders.SaveTensor(e.path(FeaturesFile), featureDims, featureData); err != nil {
		return nil, fmt.Errorf("failed to write features: %w", err)
	}
	if err := e.writeManifest(manifest); err != nil {
		return nil, err
	}

	core.LogInfo("dataset exported", "run", manifest.RunID, "folder", e.settings.Folder,
		"clips", len(clips), "frames", manifest.TotalFrames)
	return manifest, nil
}

func (e *Exporter) extractAll(ctx context.Context, clips []*skeleton.Clip) ([]clipResult, error) {
	results := make([]clipResult, len(clips))
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for i, c := range clips {
		i, c := i, c
		wg.Add(1)
		err := e.jobs.Submit(systems.JobTask{
			JobType:     systems.JobTypeExport,
			InputParams: c,
			OnStart: func(params interface{}, out chan<- interface{}) error {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("%w: %v", ErrExportAborted, err)
				}
				r, err := e.extract(params.(*skeleton.Clip))
				if err != nil {
					return err
				}
				out <- r
				return nil
			},
			OnComplete: func(result interface{}) {
				results[i] = result.(clipResult)
				core.LogDebug("clip extracted", "clip", c.Name, "frames", c.NumFrames())
			},
			OnFailure: func(err error) {
				fail(fmt.Errorf("clip %s: %w", c.Name, err))
			},
			OnCompletionCallback: wg.Done,
		})
		if err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return results, nil
}

// extract computes the dataset and feature rows of a single clip.
func (e *Exporter) extract(c *skeleton.Clip) (clipResult, error) {
	local := c.Frames
	if e.settings.SmoothWindow > 0 {
		smoothed, err := savgol.FilterTransforms(local, e.settings.SmoothWindow, e.settings.SmoothOrder, savgol.Mode(e.settings.SmoothMode))
		if err != nil {
			return clipResult{}, err
		}
		local = smoothed
	}
	component := make([][]math.Transform, len(local))
	for i, f := range local {
		component[i] = e.skeleton.ComponentSpace(f)
	}

	dt := c.FrameTime()
	data, err := e.featureSet.ComputeDatasetOffline(local, component, e.boneIndices, dt)
	if err != nil {
		return clipResult{}, err
	}
	feats, err := e.featureSet.ComputeFeaturesOffline(local, component, dt)
	if err != nil {
		return clipResult{}, err
	}
	return clipResult{dataset: data, features: feats}, nil
}

func (e *Exporter) writeManifest(manifest *Manifest) error {
	data, err := toml.Marshal(manifest)
	if err != nil {
		return err
	}
	return os.WriteFile(e.path(ManifestFile), data, 0o644)
}

func (e *Exporter) path(name string) string {
	return filepath.Join(e.settings.Folder, name)
}

// ReadManifest loads the manifest of a previous export run.
func ReadManifest(folder string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(folder, ManifestFile))
	if err != nil {
		return nil, err
	}
	var manifest Manifest
	if err := toml.Unmarshal(data, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}
