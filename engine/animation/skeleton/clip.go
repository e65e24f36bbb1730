package skeleton

import (
	"errors"
	"fmt"
	m "math"

	"github.com/spaghettifunk/neuranim/engine/math"
)

var ErrInvalidClip = errors.New("invalid animation clip")

// Clip is an animation sampled at a fixed rate. Frames holds the local
// transforms of every skeleton bone, indexed [frame][bone].
type Clip struct {
	Name     string
	Duration float32
	Frames   [][]math.Transform
}

func NewClip(name string, duration float32, frames [][]math.Transform) (*Clip, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s has no frames", ErrInvalidClip, name)
	}
	if duration <= 0 {
		return nil, fmt.Errorf("%w: %s has duration %v", ErrInvalidClip, name, duration)
	}
	numBones := len(frames[0])
	for i, f := range frames {
		if len(f) != numBones {
			return nil, fmt.Errorf("%w: %s frame %d has %d bones, expected %d", ErrInvalidClip, name, i, len(f), numBones)
		}
	}
	return &Clip{Name: name, Duration: duration, Frames: frames}, nil
}

func (c *Clip) NumFrames() int {
	return len(c.Frames)
}

// FrameTime is the duration divided by the number of sampled keys.
func (c *Clip) FrameTime() float32 {
	return c.Duration / float32(len(c.Frames))
}

// Validate checks that the clip animates every bone of s.
func (c *Clip) Validate(s *Skeleton) error {
	if len(c.Frames[0]) != s.NumBones() {
		return fmt.Errorf("%w: %s animates %d bones, skeleton has %d", ErrInvalidClip, c.Name, len(c.Frames[0]), s.NumBones())
	}
	return nil
}

// ComponentSpace returns every frame in component space.
func (c *Clip) ComponentSpace(s *Skeleton) [][]math.Transform {
	out := make([][]math.Transform, len(c.Frames))
	for i, f := range c.Frames {
		out[i] = s.ComponentSpace(f)
	}
	return out
}

// Sample interpolates the local pose at time t, looping over the duration.
func (c *Clip) Sample(t float32) []math.Transform {
	frameTime := c.FrameTime()
	t = float32(m.Mod(float64(t), float64(c.Duration)))
	if t < 0 {
		t += c.Duration
	}
	pos := t / frameTime
	i0 := int(pos)
	fraction := pos - float32(i0)
	i0 = math.Clamp(i0, 0, len(c.Frames)-1)
	i1 := (i0 + 1) % len(c.Frames)

	out := make([]math.Transform, len(c.Frames[i0]))
	for b := range out {
		a, n := c.Frames[i0][b], c.Frames[i1][b]
		out[b] = math.TransformFromPositionRotation(
			a.Position.Lerp(n.Position, fraction),
			a.Rotation.Slerp(n.Rotation, fraction))
	}
	return out
}
