package spring

import (
	"errors"
	"fmt"

	"github.com/spaghettifunk/neuranim/engine/containers"
	"github.com/spaghettifunk/neuranim/engine/math"
)

var (
	ErrInvalidGain    = errors.New("spring gains must be in (0, 1)")
	ErrInvalidHistory = errors.New("spring history must hold at least 3 samples")
	ErrInvalidLimit   = errors.New("spring velocity and acceleration limits must be positive")
)

// TrackingMode selects which derivatives of the goal the spring follows.
type TrackingMode uint8

const (
	TrackingPositionVelocityAcceleration TrackingMode = iota
	TrackingPositionVelocity
	TrackingPosition
)

type TrackingSpringConfig struct {
	XGain       float32
	VGain       float32
	AGain       float32
	VMax        float32
	AMax        float32
	HistorySize int
	Mode        TrackingMode
}

func DefaultTrackingSpringConfig() TrackingSpringConfig {
	return TrackingSpringConfig{
		XGain:       0.01,
		VGain:       0.2,
		AGain:       0.1,
		VMax:        500,
		AMax:        500,
		HistorySize: 3,
		Mode:        TrackingPositionVelocityAcceleration,
	}
}

// TrackingSpring follows a scalar goal that is only known as a sequence of
// positions. Velocity and acceleration goals are rebuilt from the goal history
// and fed, together with the gains, to the exact spring solver.
type TrackingSpring struct {
	X float32
	V float32

	cfg     TrackingSpringConfig
	history *containers.RingQueue[float32]
}

func NewTrackingSpring(cfg TrackingSpringConfig) (*TrackingSpring, error) {
	for _, gain := range []float32{cfg.XGain, cfg.VGain, cfg.AGain} {
		if gain <= 0 || gain >= 1 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidGain, gain)
		}
	}
	if cfg.HistorySize < 3 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHistory, cfg.HistorySize)
	}
	if cfg.VMax <= 0 || cfg.AMax <= 0 {
		return nil, ErrInvalidLimit
	}
	return &TrackingSpring{
		cfg:     cfg,
		history: containers.NewRingQueue[float32](cfg.HistorySize),
	}, nil
}

// Reset places the spring at rest on goal and fills the history with it.
func (s *TrackingSpring) Reset(goal float32) {
	s.X = goal
	s.V = 0
	s.history.Fill(goal)
}

// Update pushes a new goal sample and advances the spring by dt. The first
// sample seeds the spring. Non positive dt leaves the state untouched.
func (s *TrackingSpring) Update(goal, dt float32) float32 {
	if s.history.IsEmpty() {
		s.Reset(goal)
		return s.X
	}
	if dt <= 0 {
		return s.X
	}

	s.history.Push(goal)
	prev, _ := s.history.Recent(1)
	prev2, _ := s.history.Recent(2)

	vGoal := math.Clamp(targetVelocity(goal, prev, dt), -s.cfg.VMax, s.cfg.VMax)
	aGoal := math.Clamp(targetAcceleration(goal, prev, prev2, dt), -s.cfg.AMax, s.cfg.AMax)

	switch s.cfg.Mode {
	case TrackingPosition:
		s.updatePosition(goal, dt, dt)
	case TrackingPositionVelocity:
		s.updatePositionVelocity(goal, vGoal, dt, dt)
	default:
		s.updatePositionVelocityAcceleration(goal, vGoal, aGoal, dt, dt)
	}
	return s.X
}

func (s *TrackingSpring) updatePositionVelocityAcceleration(xGoal, vGoal, aGoal, dt, gainDt float32) {
	xg, vg, ag := s.cfg.XGain, s.cfg.VGain, s.cfg.AGain

	t0 := (1.0 - vg) * (1.0 - xg)
	t1 := ag * (1.0 - vg) * (1.0 - xg)
	t2 := (vg * (1.0 - xg)) / gainDt
	t3 := xg / (gainDt * gainDt)

	damping := (1.0 - t0) / gainDt
	s.X, s.V = SpringDamperExact(s.X, s.V, xGoal, (t2*vGoal+t1*aGoal)/damping, t3, damping, dt, DefaultEpsilon)
}

func (s *TrackingSpring) updatePositionVelocity(xGoal, vGoal, dt, gainDt float32) {
	xg, vg := s.cfg.XGain, s.cfg.VGain

	t0 := (1.0 - vg) * (1.0 - xg)
	t2 := (vg * (1.0 - xg)) / gainDt
	t3 := xg / (gainDt * gainDt)

	damping := (1.0 - t0) / gainDt
	s.X, s.V = SpringDamperExact(s.X, s.V, xGoal, t2*vGoal/damping, t3, damping, dt, DefaultEpsilon)
}

func (s *TrackingSpring) updatePosition(xGoal, dt, gainDt float32) {
	xg := s.cfg.XGain

	t0 := 1.0 - xg
	t3 := xg / (gainDt * gainDt)

	damping := (1.0 - t0) / gainDt
	s.X, s.V = SpringDamperExact(s.X, s.V, xGoal, 0, t3, damping, dt, DefaultEpsilon)
}

func targetVelocity(next, curr, dt float32) float32 {
	return (next - curr) / dt
}

func targetAcceleration(next, curr, prev, dt float32) float32 {
	return ((next-curr)/dt - (curr-prev)/dt) / dt
}
