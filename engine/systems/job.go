package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/neuranim/engine/core"
)

type JobType int

const (
	JobTypeGeneral JobType = iota
	// JobTypeInference runs a model evaluation off the animation thread.
	JobTypeInference
	// JobTypeExport extracts the dataset of one animation clip.
	JobTypeExport
)

func (t JobType) String() string {
	switch t {
	case JobTypeInference:
		return "inference"
	case JobTypeExport:
		return "export"
	default:
		return "general"
	}
}

// JobTask describes a unit of work run by one of the workers. OnStart may
// send a single result on out; it is handed to OnComplete on success.
type JobTask struct {
	JobType     JobType
	InputParams interface{}

	OnStart    func(params interface{}, out chan<- interface{}) error
	OnComplete func(result interface{})
	OnFailure  func(err error)
	// OnCompletionCallback runs after OnComplete or OnFailure.
	OnCompletionCallback func()
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mutex    sync.RWMutex
	isClosed bool
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")
var ErrJobSystemClosed = fmt.Errorf("job system already shut down")
var ErrNoJobStart = fmt.Errorf("job has no start function")

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}

	jq := make(chan JobTask, channelSize)
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   jq,
	}

	js.start()

	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				run(job)
			}
		}()
	}
}

func run(job JobTask) {
	if job.OnCompletionCallback != nil {
		defer job.OnCompletionCallback()
	}
	if job.OnStart == nil {
		if job.OnFailure != nil {
			job.OnFailure(ErrNoJobStart)
		}
		return
	}

	results := make(chan interface{}, 1)
	if err := job.OnStart(job.InputParams, results); err != nil {
		core.LogError("job failed", "type", job.JobType, "err", err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
		return
	}
	if job.OnComplete != nil {
		var result interface{}
		select {
		case result = <-results:
		default:
		}
		job.OnComplete(result)
	}
}

func (js *JobSystem) NumWorkers() int {
	return js.numWorkers
}

/**
 * @brief Shuts the job system down. Queued jobs still run to completion.
 */
func (js *JobSystem) Shutdown() error {
	js.mutex.Lock()
	if js.isClosed {
		js.mutex.Unlock()
		return nil
	}
	js.isClosed = true
	close(js.jobQueue)
	js.mutex.Unlock()

	js.wg.Wait()
	return nil
}

/**
 * @brief Submits the provided job to be queued for execution. Blocks while the
 * queue is full.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) error {
	js.mutex.RLock()
	defer js.mutex.RUnlock()
	if js.isClosed {
		return ErrJobSystemClosed
	}
	js.jobQueue <- jt
	return nil
}
