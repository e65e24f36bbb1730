package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/assets"
	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/config"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/dataset"
	"github.com/spaghettifunk/neuranim/engine/nn"
	"github.com/spaghettifunk/neuranim/engine/node"
	"github.com/spaghettifunk/neuranim/engine/resources"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

const reloadQueueSize = 16

var (
	ErrNoGame         = errors.New("engine needs a game with an update function")
	ErrNoConfig       = errors.New("engine needs a configuration")
	ErrNotInitialized = errors.New("engine not initialized")
)

type Engine struct {
	currentStage Stage
	gameInstance *Game
	cfg          *config.Config
	isRunning    atomic.Bool
	clock        *core.Clock
	lastTime     float64

	assetManager *assets.AssetManager
	jobs         *systems.JobSystem

	skeleton   *skeleton.Skeleton
	featureSet *features.FeatureSet
	node       *node.Node
	pose       *skeleton.Pose

	// written by the asset watcher, drained at the start of every frame
	reloads chan assets.AssetInfo
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.FnUpdate == nil {
		return nil, ErrNoGame
	}
	if g.ApplicationConfig == nil || g.ApplicationConfig.Config == nil {
		return nil, ErrNoConfig
	}

	am, err := assets.NewAssetManager()
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}

	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		cfg:          g.ApplicationConfig.Config,
		clock:        core.NewClock(),
		assetManager: am,
		reloads:      make(chan assets.AssetInfo, reloadQueueSize),
	}, nil
}

// Stage returns where the engine is in its lifecycle.
func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) Skeleton() *skeleton.Skeleton {
	return e.skeleton
}

func (e *Engine) FeatureSet() *features.FeatureSet {
	return e.featureSet
}

func (e *Engine) Node() *node.Node {
	return e.node
}

/**
 * @brief Boots the subsystems and loads the skeleton and the feature set.
 * Both the player and the exporter need them; the rest is loaded on demand.
 */
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageBooting

	if err := core.LoggingInitialize(e.cfg.Log); err != nil {
		return err
	}
	if err := core.MetricsInitialize(); err != nil {
		return err
	}

	jobs, err := systems.NewJobSystem(e.cfg.Jobs.Workers, e.cfg.Jobs.QueueSize)
	if err != nil {
		return err
	}
	e.jobs = jobs

	if err := e.assetManager.Initialize(e.cfg.Assets.Root, e.cfg.Assets.Watch); err != nil {
		return err
	}
	e.assetManager.OnReload(e.onAssetChanged)

	e.currentStage = EngineStageBootComplete
	e.currentStage = EngineStageInitializing

	s, err := e.loadSkeleton()
	if err != nil {
		return err
	}
	fs, err := e.loadFeatureSet()
	if err != nil {
		return err
	}
	e.skeleton, e.featureSet = s, fs

	core.LogInfo("engine initialized", "app", e.gameInstance.ApplicationConfig.Name,
		"assets", e.assetManager.Root(), "bones", e.skeleton.NumBones(),
		"feature_set", e.featureSet.Name, "workers", e.jobs.NumWorkers())
	e.currentStage = EngineStageInitialized
	return nil
}

// Export writes the training dataset of the configured clips, or of every
// indexed clip when none is configured.
func (e *Engine) Export(ctx context.Context) (*dataset.Manifest, error) {
	if e.currentStage < EngineStageInitialized {
		return nil, ErrNotInitialized
	}
	clips, err := e.loadClips(e.cfg.Assets.Clips)
	if err != nil {
		return nil, err
	}
	exporter, err := dataset.NewExporter(e.cfg.Export, e.skeleton, e.featureSet, e.jobs)
	if err != nil {
		return nil, err
	}
	return exporter.Export(ctx, clips)
}

/**
 * @brief Plays the game for the configured number of frames at a fixed delta
 * time, evaluating the node on every frame.
 * @param ctx Cancelling it stops the loop after the current frame.
 * @return An error if setup or the game fails. Node failures never stop the loop.
 */
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage < EngineStageInitialized {
		return ErrNotInitialized
	}
	if err := e.setupPlayer(); err != nil {
		return err
	}

	e.currentStage = EngineStageRunning
	e.isRunning.Store(true)
	defer e.isRunning.Store(false)

	dt := e.cfg.FrameTime()
	var ticker *time.Ticker
	if e.cfg.Play.Realtime {
		ticker = time.NewTicker(time.Duration(float64(dt) * float64(time.Second)))
		defer ticker.Stop()
	}

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for frame := 0; e.cfg.Play.Frames == 0 || frame < e.cfg.Play.Frames; frame++ {
		if !e.isRunning.Load() {
			break
		}
		if ticker != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		if err := e.frame(ctx, frame, dt); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) frame(ctx context.Context, frame int, dt float32) error {
	e.clock.Update()
	frameStart := e.clock.Elapsed()

	e.applyReloads()

	if err := e.gameInstance.FnUpdate(float64(dt), e.pose); err != nil {
		core.LogError("game update failed, shutting down", "frame", frame, "err", err)
		return err
	}

	result := e.node.Evaluate(ctx, e.pose, dt)

	if e.gameInstance.FnOnPose != nil {
		if err := e.gameInstance.FnOnPose(e.pose, result); err != nil {
			core.LogError("game pose callback failed, shutting down", "frame", frame, "err", err)
			return err
		}
	}

	e.clock.Update()
	e.lastTime = e.clock.Elapsed()
	core.MetricsUpdate(e.lastTime - frameStart)

	if every := e.cfg.Play.DebugEvery; every > 0 && frame%every == 0 {
		e.logDebugData(frame)
	}
	return nil
}

// Stop ends Run after the current frame. Safe to call from any goroutine.
func (e *Engine) Stop() {
	e.isRunning.Store(false)
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning.Store(false)

	var errs []error
	if e.gameInstance.FnShutdown != nil {
		errs = append(errs, e.gameInstance.FnShutdown())
	}
	if e.node != nil {
		e.node.Close()
	}
	if e.jobs != nil {
		if err := e.jobs.Shutdown(); err != nil && !errors.Is(err, systems.ErrJobSystemClosed) {
			errs = append(errs, err)
		}
	}
	if err := e.assetManager.Shutdown(); err != nil && !errors.Is(err, assets.ErrClosed) {
		errs = append(errs, err)
	}
	core.LoggingShutdown()
	return errors.Join(errs...)
}

func (e *Engine) setupPlayer() error {
	var clipPaths []string
	if e.cfg.Play.Clip != "" {
		clipPaths = []string{e.cfg.Play.Clip}
	} else {
		clipPaths = e.cfg.Assets.Clips
	}
	clips, err := e.loadClips(clipPaths)
	if err != nil {
		return err
	}

	if err := e.buildNode(e.skeleton, e.featureSet); err != nil {
		return err
	}
	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(e.skeleton, e.featureSet, clips); err != nil {
			return err
		}
	}
	return nil
}

// buildNode replaces the node with one for s and fs and assigns the model, if
// there is one. On failure the previous node is kept.
func (e *Engine) buildNode(s *skeleton.Skeleton, fs *features.FeatureSet) error {
	n, err := node.New(e.cfg.Node, fs, e.jobs)
	if err != nil {
		return err
	}
	if err := n.Initialize(); err != nil {
		return err
	}
	bc := skeleton.NewBoneContainer(s)
	n.CacheBones(bc)

	if e.node != nil {
		e.node.Close()
	}
	e.node = n
	e.skeleton, e.featureSet = s, fs
	e.pose = skeleton.NewPose(bc)

	if err := e.loadModel(); err != nil {
		core.LogError("model not assigned, the node will not drive the pose", "err", err)
	}
	return nil
}

func (e *Engine) loadModel() error {
	path := e.assetManager.Resolve(e.cfg.Assets.Model)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		core.LogWarn("no model found, the node will not drive the pose", "path", path)
		return nil
	}

	res, err := e.assetManager.LoadAsset(path, nil)
	if err != nil {
		return err
	}
	md, ok := res.Data.(*loaders.ModelData)
	if !ok {
		return fmt.Errorf("%w: %s is not a model", assets.ErrUnexpectedAsset, path)
	}
	dense, err := nn.NewDense(md)
	if err != nil {
		return err
	}
	return e.node.SetModel(dense)
}

func (e *Engine) loadSkeleton() (*skeleton.Skeleton, error) {
	res, err := e.assetManager.LoadAsset(e.cfg.Assets.Skeleton, nil)
	if err != nil {
		return nil, err
	}
	s, ok := res.Data.(*skeleton.Skeleton)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a skeleton", assets.ErrUnexpectedAsset, res.FullPath)
	}
	return s, nil
}

func (e *Engine) loadFeatureSet() (*features.FeatureSet, error) {
	res, err := e.assetManager.LoadAsset(e.cfg.Assets.FeatureSet, nil)
	if err != nil {
		return nil, err
	}
	fs, ok := res.Data.(*features.FeatureSet)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a feature set", assets.ErrUnexpectedAsset, res.FullPath)
	}
	return fs, nil
}

func (e *Engine) loadClips(paths []string) ([]*skeleton.Clip, error) {
	if len(paths) == 0 {
		for _, info := range e.assetManager.Assets(resources.ResourceTypeClip) {
			paths = append(paths, info.Path)
		}
	}

	clips := make([]*skeleton.Clip, 0, len(paths))
	for _, path := range paths {
		res, err := e.assetManager.LoadAsset(path, nil)
		if err != nil {
			return nil, err
		}
		c, ok := res.Data.(*skeleton.Clip)
		if !ok {
			return nil, fmt.Errorf("%w: %s is not a clip", assets.ErrUnexpectedAsset, path)
		}
		clips = append(clips, c)
	}
	return clips, nil
}

// onAssetChanged runs on the watcher goroutine. Changes are queued and
// picked up by the frame loop; a full queue drops them.
func (e *Engine) onAssetChanged(info assets.AssetInfo) {
	select {
	case e.reloads <- info:
	default:
		core.LogWarn("reload queue full, change ignored", "path", info.Path)
	}
}

func (e *Engine) applyReloads() {
	for {
		select {
		case info := <-e.reloads:
			if err := e.reload(info); err != nil {
				core.LogError("asset reload failed, keeping the previous version", "path", info.Path, "err", err)
			}
		default:
			return
		}
	}
}

func (e *Engine) reload(info assets.AssetInfo) error {
	switch info.Path {
	case e.assetManager.Resolve(e.cfg.Assets.Model):
		core.LogInfo("reloading model", "path", info.Path)
		return e.loadModel()
	case e.assetManager.Resolve(e.cfg.Assets.FeatureSet):
		core.LogInfo("reloading feature set", "path", info.Path)
		fs, err := e.loadFeatureSet()
		if err != nil {
			return err
		}
		return e.buildNode(e.skeleton, fs)
	case e.assetManager.Resolve(e.cfg.Assets.Skeleton):
		core.LogInfo("reloading skeleton", "path", info.Path)
		s, err := e.loadSkeleton()
		if err != nil {
			return err
		}
		return e.buildNode(s, e.featureSet)
	}
	return nil
}

func (e *Engine) logDebugData(frame int) {
	d := e.node.GatherDebugData()
	fps, frameMS := core.MetricsFrame()
	core.LogDebug("node",
		"frame", frame,
		"result", d.LastResult,
		"model", d.ModelID,
		"state", d.ModelState,
		"runs", d.Runs,
		"failures", d.Failures,
		"dispatches", d.Dispatches,
		"skipped", d.Skipped,
		"runs_per_second", d.RunsPerSecond,
		"avg_run_ms", d.AvgRunMS,
		"fps", fps,
		"frame_ms", frameMS)
}
