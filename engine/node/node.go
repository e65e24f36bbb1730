package node

import (
	"context"
	"errors"
	"fmt"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/animation/spring"
	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/nn"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

var (
	ErrNoFeatureSet   = errors.New("node has no feature set")
	ErrModelMismatch  = errors.New("model shape does not match the feature set")
	ErrNoJobSystem    = errors.New("async evaluation needs a job system")
	ErrNotInitialized = errors.New("node not initialized")
)

type Settings struct {
	Running      bool    `toml:"running"`
	Async        bool    `toml:"async"`
	Inertialised bool    `toml:"inertialised"`
	HalfLife     float32 `toml:"half_life"`
}

func DefaultSettings() Settings {
	return Settings{
		Running:      true,
		Inertialised: true,
		HalfLife:     spring.DefaultHalfLife,
	}
}

// Result tells what Evaluate did to the pose.
type Result int

const (
	// ResultUnchanged leaves the incoming pose as it is: no model or nothing
	// decoded yet.
	ResultUnchanged Result = iota
	// ResultUpdated applies a freshly decoded model output.
	ResultUpdated
	// ResultReused applies the previous decoded output again.
	ResultReused
	// ResultReset puts the pose back to the reference pose.
	ResultReset
)

func (r Result) String() string {
	switch r {
	case ResultUpdated:
		return "updated"
	case ResultReused:
		return "reused"
	case ResultReset:
		return "reset"
	default:
		return "unchanged"
	}
}

// Node drives the output bones of a pose from a model. Its spring and codec
// state belongs to the goroutine calling Evaluate.
type Node struct {
	settings   Settings
	featureSet *features.FeatureSet
	jobs       *systems.JobSystem

	instance *nn.ModelInstance

	container     *skeleton.BoneContainer
	outputIndices []int
	output        *features.OutputPose

	inertializers []*spring.TransformSpring
	primed        []bool

	initialized bool
	lastResult  Result
	evaluations uint64
	dispatches  uint64
	skipped     uint64
}

func New(settings Settings, fs *features.FeatureSet, jobs *systems.JobSystem) (*Node, error) {
	if fs == nil {
		return nil, ErrNoFeatureSet
	}
	if err := fs.Validate(); err != nil {
		return nil, err
	}
	if settings.Async && jobs == nil {
		return nil, ErrNoJobSystem
	}
	return &Node{
		settings:   settings,
		featureSet: fs,
		jobs:       jobs,
	}, nil
}

func (n *Node) Settings() Settings {
	return n.settings
}

func (n *Node) FeatureSet() *features.FeatureSet {
	return n.featureSet
}

// SetRunning toggles evaluation. A stopped node resets the pose.
func (n *Node) SetRunning(running bool) {
	n.settings.Running = running
}

/**
 * @brief Allocates the decoded output and one inertializer per output bone.
 */
func (n *Node) Initialize() error {
	numBones := len(n.featureSet.OutputBones)
	n.output = features.NewOutputPose(numBones)
	n.inertializers = nil
	n.primed = make([]bool, numBones)
	if n.settings.Inertialised {
		n.inertializers = make([]*spring.TransformSpring, numBones)
		for i := range n.inertializers {
			s, err := spring.NewTransformSpring(n.settings.HalfLife)
			if err != nil {
				return err
			}
			n.inertializers[i] = s
		}
	}
	n.initialized = true
	core.LogDebug("animation node initialized", "feature_set", n.featureSet.Name,
		"output_bones", numBones, "inertialised", n.settings.Inertialised)
	return nil
}

/**
 * @brief Resolves the output bones and the features against the runtime bone
 * index space. Must be called again whenever the required bones change.
 */
func (n *Node) CacheBones(bc *skeleton.BoneContainer) {
	n.container = bc
	n.featureSet.InitialiseFeaturesRealTime(bc)
	n.outputIndices = n.featureSet.OutputBoneIndices(bc)
	for i, idx := range n.outputIndices {
		if idx == skeleton.IndexNone {
			core.LogWarn("output bone not evaluated", "bone", n.featureSet.OutputBones[i])
		}
	}
	for i := range n.primed {
		n.primed[i] = false
	}
}

// SetModel replaces the model instance. The previous instance is closed; an
// evaluation it still has in flight completes but is never picked up.
func (n *Node) SetModel(engine nn.Engine) error {
	mi, err := nn.NewModelInstance(engine)
	if err != nil {
		return err
	}
	if in := n.featureSet.FeatureVectorSize(); len(mi.InputData) != in {
		mi.Close()
		return fmt.Errorf("%w: model takes %d inputs, feature vector has %d", ErrModelMismatch, len(mi.InputData), in)
	}
	if out := n.featureSet.OutputVectorSize(); len(mi.OutputData) != out {
		mi.Close()
		return fmt.Errorf("%w: model produces %d outputs, expected %d", ErrModelMismatch, len(mi.OutputData), out)
	}
	if n.instance != nil {
		n.instance.Close()
	}
	n.instance = mi
	core.LogInfo("model assigned", "id", mi.ID(), "inputs", len(mi.InputData), "outputs", len(mi.OutputData))
	return nil
}

/**
 * @brief Evaluates the model on pose and writes the driven bones back into it.
 * Never fails: configuration problems reset the pose to the reference pose and
 * a model that is not ready yields no update.
 * @param ctx Context handed to the inference engine.
 * @param pose The pose produced by the upstream animation.
 * @param dt The frame delta time in seconds.
 */
func (n *Node) Evaluate(ctx context.Context, pose *skeleton.Pose, dt float32) Result {
	n.evaluations++
	n.lastResult = n.evaluate(ctx, pose, dt)
	return n.lastResult
}

func (n *Node) evaluate(ctx context.Context, pose *skeleton.Pose, dt float32) Result {
	if !n.settings.Running {
		pose.ResetToRefPose()
		return ResultReset
	}
	if !n.initialized || n.container == nil {
		core.LogError("animation node evaluated before setup", "err", ErrNotInitialized)
		pose.ResetToRefPose()
		return ResultReset
	}
	if n.instance == nil {
		return n.reuse(pose, dt)
	}

	input := n.featureSet.ComputeFeaturesRealTime(features.NewFrame(pose), dt)
	if len(input) == 0 {
		pose.ResetToRefPose()
		return ResultReset
	}

	if !n.settings.Async {
		if err := n.instance.RunModel(ctx, input); err != nil {
			core.LogError("model evaluation failed", "id", n.instance.ID(), "err", err)
			return n.reuse(pose, dt)
		}
		return n.decode(n.instance.OutputData, pose, dt)
	}

	if output, ok := n.instance.Poll(); ok {
		return n.decode(output, pose, dt)
	}
	if n.instance.Dispatch(ctx, input, n.jobs) {
		n.dispatches++
	} else {
		n.skipped++
	}
	return n.reuse(pose, dt)
}

func (n *Node) decode(output []float32, pose *skeleton.Pose, dt float32) Result {
	if err := n.featureSet.ProcessOutput(output, n.output, dt); err != nil {
		core.LogError("failed to decode model output", "err", err)
		pose.ResetToRefPose()
		return ResultReset
	}
	n.apply(pose, dt)
	return ResultUpdated
}

func (n *Node) reuse(pose *skeleton.Pose, dt float32) Result {
	if n.output == nil || !n.output.Decoded() {
		return ResultUnchanged
	}
	n.apply(pose, dt)
	return ResultReused
}

// apply writes the decoded transforms in the output space of the feature set.
// Bones absent from the bone container are skipped.
func (n *Node) apply(pose *skeleton.Pose, dt float32) {
	if n.featureSet.OutputSpace() == features.LocalSpace {
		for i, idx := range n.outputIndices {
			if idx == skeleton.IndexNone {
				continue
			}
			pose.Local[idx] = n.inertialize(i, pose.Local[idx], n.output.Transform(i), dt)
		}
		return
	}

	component := pose.ComponentSpace()
	for i, idx := range n.outputIndices {
		if idx == skeleton.IndexNone {
			continue
		}
		component[idx] = n.inertialize(i, component[idx], n.output.Transform(i), dt)
	}
	pose.SetComponentSpace(component)
}

// inertialize blends bone i towards target. The spring starts from the
// incoming transform the first time the bone is driven.
func (n *Node) inertialize(i int, current, target math.Transform, dt float32) math.Transform {
	if n.inertializers == nil {
		return target
	}
	s := n.inertializers[i]
	if !n.primed[i] {
		s.Reset(current)
		n.primed[i] = true
	}
	return s.Update(target, dt)
}

// DebugData is a snapshot of the node for logging and the player HUD.
type DebugData struct {
	FeatureSet    string
	Settings      Settings
	ModelID       string
	ModelState    string
	LastResult    Result
	Evaluations   uint64
	Dispatches    uint64
	Skipped       uint64
	Runs          uint64
	Failures      uint64
	RunsPerSecond float64
	AvgRunMS      float64
	Decoded       bool
}

func (n *Node) GatherDebugData() DebugData {
	d := DebugData{
		FeatureSet:  n.featureSet.Name,
		Settings:    n.settings,
		LastResult:  n.lastResult,
		Evaluations: n.evaluations,
		Dispatches:  n.dispatches,
		Skipped:     n.skipped,
		Decoded:     n.output != nil && n.output.Decoded(),
	}
	if n.instance != nil {
		d.ModelID = n.instance.ID().String()
		d.ModelState = n.instance.State().String()
		d.Runs = n.instance.Runs()
		d.Failures = n.instance.Failures()
		d.RunsPerSecond, d.AvgRunMS = n.instance.Metrics()
	}
	return d
}

func (n *Node) Close() {
	if n.instance != nil {
		n.instance.Close()
		n.instance = nil
	}
}
