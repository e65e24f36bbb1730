package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

// every bone of a frame is px, py, pz, qx, qy, qz, qw
type frameConfig struct {
	Transforms [][]float32 `toml:"transforms"`
}

type clipConfig struct {
	Name     string        `toml:"name"`
	Duration float32       `toml:"duration"`
	Frames   []frameConfig `toml:"frames"`
}

type ClipLoader struct{}

func (cl *ClipLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := ParseClip(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load clip %s: %w", path, err)
	}
	if c.Name == "" {
		c.Name = resources.ResourceName(path)
	}
	return &resources.Resource{
		Name:     c.Name,
		FullPath: path,
		Type:     resources.ResourceTypeClip,
		DataSize: uint64(len(data)),
		Data:     c,
	}, nil
}

func (cl *ClipLoader) Unload(*resources.Resource) error {
	return nil
}

func ParseClip(data []byte) (*skeleton.Clip, error) {
	var cfg clipConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	frames := make([][]math.Transform, len(cfg.Frames))
	for i, fc := range cfg.Frames {
		frames[i] = make([]math.Transform, len(fc.Transforms))
		for b, values := range fc.Transforms {
			if len(values) != 7 {
				return nil, fmt.Errorf("%w: frame %d bone %d has %d values, expected 7", skeleton.ErrInvalidClip, i, b, len(values))
			}
			t, err := parseTransform(values[:3], values[3:])
			if err != nil {
				return nil, err
			}
			frames[i][b] = t
		}
	}
	return skeleton.NewClip(cfg.Name, cfg.Duration, frames)
}

// MarshalClip encodes a clip in the format read by ParseClip.
func MarshalClip(c *skeleton.Clip) ([]byte, error) {
	cfg := clipConfig{
		Name:     c.Name,
		Duration: c.Duration,
		Frames:   make([]frameConfig, len(c.Frames)),
	}
	for i, frame := range c.Frames {
		cfg.Frames[i].Transforms = make([][]float32, len(frame))
		for b, t := range frame {
			cfg.Frames[i].Transforms[b] = []float32{
				t.Position.X, t.Position.Y, t.Position.Z,
				t.Rotation.X, t.Rotation.Y, t.Rotation.Z, t.Rotation.W,
			}
		}
	}
	return toml.Marshal(cfg)
}
