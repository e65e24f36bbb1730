package systems

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobSystemValidation(t *testing.T) {
	_, err := NewJobSystem(0, 1)
	assert.ErrorIs(t, err, ErrNoWorkers)
	_, err = NewJobSystem(1, -1)
	assert.ErrorIs(t, err, ErrNegativeChannelSize)
}

func TestJobSystemRunsJobs(t *testing.T) {
	js, err := NewJobSystem(4, 8)
	require.NoError(t, err)

	var sum atomic.Int64
	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		require.NoError(t, js.Submit(JobTask{
			InputParams: i,
			OnStart: func(params interface{}, out chan<- interface{}) error {
				out <- params.(int) * 2
				return nil
			},
			OnComplete: func(result interface{}) {
				sum.Add(int64(result.(int)))
			},
			OnCompletionCallback: wg.Done,
		}))
	}
	wg.Wait()
	assert.Equal(t, int64(110), sum.Load())
	require.NoError(t, js.Shutdown())
}

func TestJobSystemFailure(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	require.NoError(t, err)

	boom := errors.New("boom")
	failures := make(chan error, 2)
	var completed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(2)

	require.NoError(t, js.Submit(JobTask{
		JobType: JobTypeInference,
		OnStart: func(interface{}, chan<- interface{}) error {
			return boom
		},
		OnComplete:           func(interface{}) { completed.Store(true) },
		OnFailure:            func(err error) { failures <- err },
		OnCompletionCallback: wg.Done,
	}))
	require.NoError(t, js.Submit(JobTask{
		OnFailure:            func(err error) { failures <- err },
		OnCompletionCallback: wg.Done,
	}))
	wg.Wait()

	close(failures)
	var got []error
	for err := range failures {
		got = append(got, err)
	}
	assert.ElementsMatch(t, []error{boom, ErrNoJobStart}, got)
	assert.False(t, completed.Load())
	require.NoError(t, js.Shutdown())
}

func TestJobSystemShutdown(t *testing.T) {
	js, err := NewJobSystem(2, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, js.NumWorkers())
	require.NoError(t, js.Shutdown())
	require.NoError(t, js.Shutdown())
	assert.ErrorIs(t, js.Submit(JobTask{}), ErrJobSystemClosed)
	assert.Equal(t, "export", JobTypeExport.String())
}
