package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsAverage(t *testing.T) {
	s := NewMetricsState()
	for i := 0; i < int(AVG_COUNT); i++ {
		s.Update(0.002)
	}
	_, avg := s.Snapshot()
	assert.InDelta(t, 2.0, avg, 1e-9)
	assert.Equal(t, uint64(AVG_COUNT), s.Count())
}

func TestMetricsPerSecond(t *testing.T) {
	s := NewMetricsState()
	// 0.125s samples: the 9th sample crosses one second
	for i := 0; i < 9; i++ {
		s.Update(0.125)
	}
	perSecond, _ := s.Snapshot()
	assert.Equal(t, float64(8), perSecond)
}

func TestClock(t *testing.T) {
	c := NewClock()
	c.Update()
	assert.Zero(t, c.Elapsed())

	c.Start()
	time.Sleep(5 * time.Millisecond)
	c.Update()
	assert.Greater(t, c.Elapsed(), 0.0)

	c.Stop()
	elapsed := c.Elapsed()
	c.Update()
	assert.Equal(t, elapsed, c.Elapsed())
}

func TestLoggingInitialize(t *testing.T) {
	file := filepath.Join(t.TempDir(), "neuranim.log")
	cfg := DefaultLoggingConfig()
	cfg.Level = "warn"
	cfg.File = file
	cfg.Compress = false
	require.NoError(t, LoggingInitialize(cfg))
	defer LoggingShutdown()

	LogInfof("hidden %d", 1)
	LogWarnf("visible %d", 2)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "visible 2")
	assert.NotContains(t, string(content), "hidden 1")
}

func TestLoggingInvalidLevel(t *testing.T) {
	err := LoggingInitialize(LoggingConfig{Level: "verbose"})
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

func TestLoggingKeyValues(t *testing.T) {
	file := filepath.Join(t.TempDir(), "neuranim.log")
	cfg := DefaultLoggingConfig()
	cfg.File = file
	cfg.Compress = false
	require.NoError(t, LoggingInitialize(cfg))
	defer LoggingShutdown()

	LogInfo("model assigned", "inputs", 12)
	LogInfo("export 100% done", "clips", 3)

	content, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(content), "model assigned")
	assert.Contains(t, string(content), "inputs=12")
	assert.Contains(t, string(content), "export 100% done")
	assert.Contains(t, string(content), "clips=3")
	assert.NotContains(t, string(content), "%!")
}
