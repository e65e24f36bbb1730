package core

import "sync"

const AVG_COUNT uint8 = 30

// MetricsState keeps a rolling average of sample durations (frames or model
// runs) and how many samples happen per second.
type MetricsState struct {
	mu            sync.Mutex
	AVGCounter    uint8
	MStimes       [AVG_COUNT]float64
	MSavg         float64
	Samples       int32
	AccumulatedMS float64
	PerSecond     float64
	Total         uint64
}

func NewMetricsState() *MetricsState {
	return &MetricsState{
		MStimes: [AVG_COUNT]float64{0},
	}
}

// Update records one sample that took elapsed seconds.
func (s *MetricsState) Update(elapsed float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Calculate ms average
	ms := elapsed * 1000.0
	s.MStimes[s.AVGCounter] = ms
	if s.AVGCounter == AVG_COUNT-1 {
		s.MSavg = 0
		for i := uint8(0); i < AVG_COUNT; i++ {
			s.MSavg += s.MStimes[i]
		}

		s.MSavg /= float64(AVG_COUNT)
	}
	s.AVGCounter++
	s.AVGCounter %= AVG_COUNT

	// Calculate samples per second.
	s.AccumulatedMS += ms
	if s.AccumulatedMS > 1000 {
		s.PerSecond = float64(s.Samples)
		s.AccumulatedMS -= 1000
		s.Samples = 0
	}

	s.Samples++
	s.Total++
}

// Snapshot returns the samples per second and the average duration in ms.
func (s *MetricsState) Snapshot() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PerSecond, s.MSavg
}

func (s *MetricsState) Count() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Total
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

// MetricsInitialize sets up the frame metrics of the main loop.
func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = NewMetricsState()
	})
	return nil
}

func MetricsUpdate(frame_elapsed_time float64) {
	metricsState.Update(frame_elapsed_time)
}

func MetricsFPS() float64 {
	fps, _ := metricsState.Snapshot()
	return fps
}

func MetricsFrameTime() float64 {
	_, avg := metricsState.Snapshot()
	return avg
}

func MetricsFrame() (float64, float64) {
	return metricsState.Snapshot()
}
