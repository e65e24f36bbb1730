package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/neuranim/engine/animation/skeleton"
	"github.com/spaghettifunk/neuranim/engine/math"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

type boneConfig struct {
	Name   string `toml:"name"`
	Parent string `toml:"parent"`
	// reference pose, defaults to identity
	Position []float32 `toml:"position"`
	Rotation []float32 `toml:"rotation"`
}

type skeletonConfig struct {
	Name  string       `toml:"name"`
	Bones []boneConfig `toml:"bones"`
}

type SkeletonLoader struct{}

func (sl *SkeletonLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s, err := ParseSkeleton(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load skeleton %s: %w", path, err)
	}
	return &resources.Resource{
		Name:     resources.ResourceName(path),
		FullPath: path,
		Type:     resources.ResourceTypeSkeleton,
		DataSize: uint64(len(data)),
		Data:     s,
	}, nil
}

func (sl *SkeletonLoader) Unload(*resources.Resource) error {
	return nil
}

// ParseSkeleton decodes a skeleton. Parents are referenced by name and must
// be declared before their children.
func ParseSkeleton(data []byte) (*skeleton.Skeleton, error) {
	var cfg skeletonConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(cfg.Bones))
	bones := make([]skeleton.Bone, len(cfg.Bones))
	refPose := make([]math.Transform, len(cfg.Bones))
	for i, b := range cfg.Bones {
		parent := skeleton.IndexNone
		if b.Parent != "" {
			p, ok := index[b.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: parent %q of %q is not declared before it", skeleton.ErrInvalidHierarchy, b.Parent, b.Name)
			}
			parent = p
		}
		index[b.Name] = i
		bones[i] = skeleton.Bone{Name: b.Name, Index: i, ParentIndex: parent}

		t, err := parseTransform(b.Position, b.Rotation)
		if err != nil {
			return nil, fmt.Errorf("bone %q: %w", b.Name, err)
		}
		refPose[i] = t
	}
	return skeleton.NewSkeleton(bones, refPose)
}

func parseTransform(position, rotation []float32) (math.Transform, error) {
	t := math.TransformIdentity()
	switch len(position) {
	case 0:
	case 3:
		t.Position = math.NewVec3(position[0], position[1], position[2])
	default:
		return t, fmt.Errorf("position needs 3 values, got %d", len(position))
	}
	switch len(rotation) {
	case 0:
	case 4:
		t.Rotation = math.NewQuat(rotation[0], rotation[1], rotation[2], rotation[3]).Normalize()
	default:
		return t, fmt.Errorf("rotation needs 4 values, got %d", len(rotation))
	}
	return t, nil
}
