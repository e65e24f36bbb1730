package nn

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/neuranim/engine/assets/loaders"
	"github.com/spaghettifunk/neuranim/engine/systems"
)

// doubler writes twice its input, failing while fail is set
type doubler struct {
	size    int
	fail    atomic.Bool
	release chan struct{}
}

func (d *doubler) InputShape() TensorShape  { return TensorShape{1, d.size} }
func (d *doubler) OutputShape() TensorShape { return TensorShape{1, d.size} }

func (d *doubler) Run(ctx context.Context, in, out []float32) error {
	if d.release != nil {
		<-d.release
	}
	if d.fail.Load() {
		return errors.New("engine failure")
	}
	for i := range in {
		out[i] = 2 * in[i]
	}
	return nil
}

func TestTensorShape(t *testing.T) {
	v, err := TensorShape{2, 3, 4}.Volume()
	require.NoError(t, err)
	assert.Equal(t, 24, v)

	_, err = TensorShape{}.Volume()
	assert.ErrorIs(t, err, ErrInvalidShape)
	_, err = NewTensor(TensorShape{3, 0})
	assert.ErrorIs(t, err, ErrInvalidShape)

	buf, err := NewTensor(TensorShape{1, 5})
	require.NoError(t, err)
	assert.Len(t, buf, 5)
}

func TestModelInstanceSync(t *testing.T) {
	mi, err := NewModelInstance(&doubler{size: 3})
	require.NoError(t, err)
	assert.NotEqual(t, mi.ID().String(), "")

	require.NoError(t, mi.RunModel(context.Background(), []float32{1, 2, 3}))
	assert.Equal(t, []float32{2, 4, 6}, mi.OutputData)
	assert.Equal(t, uint64(1), mi.Runs())

	assert.ErrorIs(t, mi.SetInputData([]float32{1}), ErrInputSizeMismatch)
	assert.ErrorIs(t, mi.RunModel(context.Background(), []float32{1}), ErrInputSizeMismatch)

	mi.Close()
	assert.ErrorIs(t, mi.RunModel(context.Background(), []float32{1, 2, 3}), ErrInstanceClosed)

	_, err = NewModelInstance(nil)
	assert.ErrorIs(t, err, ErrNoEngine)
}

func TestModelInstanceAsync(t *testing.T) {
	jobs, err := systems.NewJobSystem(2, 4)
	require.NoError(t, err)
	defer jobs.Shutdown()

	engine := &doubler{size: 2, release: make(chan struct{})}
	mi, err := NewModelInstance(engine)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, mi.Dispatch(ctx, []float32{1, 2}, jobs))
	assert.Equal(t, StateRunning, mi.State())

	// at most one evaluation in flight
	assert.False(t, mi.Dispatch(ctx, []float32{3, 4}, jobs))
	_, ok := mi.Poll()
	assert.False(t, ok)

	close(engine.release)
	require.Eventually(t, func() bool { return mi.State() == StateFinished }, 5*time.Second, time.Millisecond)

	out, ok := mi.Poll()
	require.True(t, ok)
	assert.Equal(t, []float32{2, 4}, out)
	assert.Equal(t, StateIdle, mi.State())

	// a result is picked up only once
	_, ok = mi.Poll()
	assert.False(t, ok)
}

func TestModelInstanceAsyncFailureRetries(t *testing.T) {
	jobs, err := systems.NewJobSystem(1, 1)
	require.NoError(t, err)
	defer jobs.Shutdown()

	engine := &doubler{size: 1}
	engine.fail.Store(true)
	mi, err := NewModelInstance(engine)
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, mi.Dispatch(ctx, []float32{1}, jobs))
	require.Eventually(t, func() bool { return mi.Failures() == 1 && mi.State() == StateIdle }, 5*time.Second, time.Millisecond)
	_, ok := mi.Poll()
	assert.False(t, ok)

	engine.fail.Store(false)
	require.True(t, mi.Dispatch(ctx, []float32{4}, jobs))
	require.Eventually(t, func() bool { return mi.State() == StateFinished }, 5*time.Second, time.Millisecond)
	out, ok := mi.Poll()
	require.True(t, ok)
	assert.Equal(t, []float32{8}, out)

	// wrong sizes and closed job systems never leave the instance running
	assert.False(t, mi.Dispatch(ctx, []float32{1, 2}, jobs))
	require.NoError(t, jobs.Shutdown())
	assert.False(t, mi.Dispatch(ctx, []float32{1}, jobs))
	assert.Equal(t, StateIdle, mi.State())
}

func TestDense(t *testing.T) {
	md := &loaders.ModelData{Name: "policy", Layers: []loaders.Layer{
		{
			Weights: &loaders.Tensor{Dims: []int32{2, 2}, Data: []float32{1, 0, 0, -1}},
			Bias:    &loaders.Tensor{Dims: []int32{2}, Data: []float32{0, 0}},
		},
		{
			Weights: &loaders.Tensor{Dims: []int32{3, 2}, Data: []float32{1, 1, 2, 0, 0, 2}},
			Bias:    &loaders.Tensor{Dims: []int32{3}, Data: []float32{0.5, 0, 0}},
		},
	}}
	d, err := NewDense(md)
	require.NoError(t, err)
	assert.Equal(t, "policy", d.Name())
	assert.Equal(t, TensorShape{1, 2}, d.InputShape())
	assert.Equal(t, TensorShape{1, 3}, d.OutputShape())

	out := make([]float32, 3)
	// hidden = relu(3, -2) = (3, 0)
	require.NoError(t, d.Run(context.Background(), []float32{3, 2}, out))
	assert.Equal(t, []float32{3.5, 6, 0}, out)

	assert.ErrorIs(t, d.Run(context.Background(), []float32{1}, out), ErrBufferSize)
	assert.ErrorIs(t, d.Run(context.Background(), []float32{1, 2}, out[:1]), ErrBufferSize)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, d.Run(ctx, []float32{1, 2}, out), context.Canceled)

	_, err = NewDense(&loaders.ModelData{})
	assert.ErrorIs(t, err, loaders.ErrInvalidModel)
}
