package nn

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/spaghettifunk/neuranim/engine/core"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

var (
	ErrInputSizeMismatch = errors.New("input does not match the model input volume")
	ErrNoEngine          = errors.New("model instance has no engine")
	ErrInstanceClosed    = errors.New("model instance closed")
)

// State is the async evaluation state of a ModelInstance.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "idle"
	}
}

// ModelInstance owns the input and output buffers of one model. In async mode
// the output buffer is written by a worker between Dispatch and the Finished
// state, and read by the caller once Poll observed Finished.
type ModelInstance struct {
	id     uuid.UUID
	engine Engine

	InputData  []float32
	OutputData []float32

	state   atomic.Int32
	closed  atomic.Bool
	metrics *core.MetricsState
	// failures counts the runs that returned an error
	failures atomic.Uint64
}

func NewModelInstance(engine Engine) (*ModelInstance, error) {
	if engine == nil {
		return nil, ErrNoEngine
	}
	in, err := NewTensor(engine.InputShape())
	if err != nil {
		return nil, fmt.Errorf("input: %w", err)
	}
	out, err := NewTensor(engine.OutputShape())
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}
	mi := &ModelInstance{
		id:         uuid.New(),
		engine:     engine,
		InputData:  in,
		OutputData: out,
		metrics:    core.NewMetricsState(),
	}
	core.LogDebug("model instance created", "id", mi.id, "inputs", len(in), "outputs", len(out))
	return mi, nil
}

func (mi *ModelInstance) ID() uuid.UUID {
	return mi.id
}

func (mi *ModelInstance) State() State {
	return State(mi.state.Load())
}

// Metrics returns the runs per second and the average run time in ms.
func (mi *ModelInstance) Metrics() (float64, float64) {
	return mi.metrics.Snapshot()
}

func (mi *ModelInstance) Runs() uint64 {
	return mi.metrics.Count()
}

func (mi *ModelInstance) Failures() uint64 {
	return mi.failures.Load()
}

// SetInputData copies in into the input buffer.
func (mi *ModelInstance) SetInputData(in []float32) error {
	if len(in) != len(mi.InputData) {
		return fmt.Errorf("%w: got %d values, expected %d", ErrInputSizeMismatch, len(in), len(mi.InputData))
	}
	copy(mi.InputData, in)
	return nil
}

// RunModel evaluates the model on the calling goroutine. OutputData holds the
// result when it returns nil.
func (mi *ModelInstance) RunModel(ctx context.Context, in []float32) error {
	if mi.closed.Load() {
		return ErrInstanceClosed
	}
	if err := mi.SetInputData(in); err != nil {
		return err
	}
	start := time.Now()
	if err := mi.engine.Run(ctx, mi.InputData, mi.OutputData); err != nil {
		mi.failures.Add(1)
		return err
	}
	mi.metrics.Update(time.Since(start).Seconds())
	return nil
}

// Dispatch starts an evaluation on the job system and returns false when the
// instance is not idle. The input is copied before returning.
func (mi *ModelInstance) Dispatch(ctx context.Context, in []float32, jobs *systems.JobSystem) bool {
	if mi.closed.Load() {
		return false
	}
	if len(in) != len(mi.InputData) {
		core.LogError("model input rejected", "id", mi.id, "err", ErrInputSizeMismatch, "got", len(in), "expected", len(mi.InputData))
		return false
	}
	if !mi.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return false
	}
	input := append([]float32(nil), in...)

	err := jobs.Submit(systems.JobTask{
		JobType:     systems.JobTypeInference,
		InputParams: input,
		OnStart: func(params interface{}, _ chan<- interface{}) error {
			return mi.RunModel(ctx, params.([]float32))
		},
		OnComplete: func(interface{}) {
			mi.state.Store(int32(StateFinished))
		},
		OnFailure: func(err error) {
			core.LogError("model run failed", "id", mi.id, "err", err)
			mi.state.Store(int32(StateIdle))
		},
	})
	if err != nil {
		core.LogError("model dispatch failed", "id", mi.id, "err", err)
		mi.state.Store(int32(StateIdle))
		return false
	}
	return true
}

// Poll picks up a finished evaluation and moves the instance back to idle.
// The returned slice is OutputData and stays valid until the next Dispatch.
func (mi *ModelInstance) Poll() ([]float32, bool) {
	if !mi.state.CompareAndSwap(int32(StateFinished), int32(StateIdle)) {
		return nil, false
	}
	return mi.OutputData, true
}

// Close rejects further runs. An evaluation in flight still completes.
func (mi *ModelInstance) Close() {
	if mi.closed.CompareAndSwap(false, true) {
		core.LogDebug("model instance closed", "id", mi.id, "runs", mi.Runs(), "failures", mi.Failures())
	}
}
