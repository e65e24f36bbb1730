package loaders

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/spaghettifunk/neuranim/engine/animation/features"
	"github.com/spaghettifunk/neuranim/engine/resources"
)

type featureConfig struct {
	Kind           string   `toml:"kind"`
	Space          []string `toml:"space"`
	Properties     []string `toml:"properties"`
	Bone           string   `toml:"bone"`
	RotationFormat string   `toml:"rotation_format"`
	PositionBone   string   `toml:"position_bone"`
	DirectionBone  string   `toml:"direction_bone"`
	Dimension      int      `toml:"dimension"`
	NumSamples     int      `toml:"num_samples"`
	SamplingRate   float32  `toml:"sampling_rate"`
}

type featureSetConfig struct {
	Name                      string          `toml:"name"`
	Properties                []string        `toml:"properties"`
	Transform                 []string        `toml:"transform"`
	RotationFormat            string          `toml:"rotation_format"`
	OutputBones               []string        `toml:"output_bones"`
	VelocitiesFromModelOutput bool            `toml:"velocities_from_model_output"`
	Features                  []featureConfig `toml:"features"`
}

type FeatureSetLoader struct{}

func (fl *FeatureSetLoader) Load(path string, params interface{}) (*resources.Resource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fs, err := ParseFeatureSet(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load feature set %s: %w", path, err)
	}
	if fs.Name == "" {
		fs.Name = resources.ResourceName(path)
	}
	return &resources.Resource{
		Name:     fs.Name,
		FullPath: path,
		Type:     resources.ResourceTypeFeatureSet,
		DataSize: uint64(len(data)),
		Data:     fs,
	}, nil
}

func (fl *FeatureSetLoader) Unload(*resources.Resource) error {
	return nil
}

// ParseFeatureSet decodes a feature set schema. Omitted settings keep the
// defaults of features.NewFeatureSet and of each feature constructor.
func ParseFeatureSet(data []byte) (*features.FeatureSet, error) {
	var cfg featureSetConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	fs := features.NewFeatureSet(cfg.Name)
	fs.OutputBones = cfg.OutputBones
	fs.VelocitiesFromModelOutput = cfg.VelocitiesFromModelOutput

	var err error
	if len(cfg.Properties) > 0 {
		if fs.PropertiesToExtract, err = features.ParseBoneFlags(cfg.Properties); err != nil {
			return nil, err
		}
	}
	if len(cfg.Transform) > 0 {
		if fs.TransformType, err = features.ParseTransformSpace(cfg.Transform); err != nil {
			return nil, err
		}
	}
	if fs.RotationFormat, err = features.ParseRotationFormat(cfg.RotationFormat); err != nil {
		return nil, err
	}

	for i, fc := range cfg.Features {
		f, err := buildFeature(fc)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		fs.AddFeature(f)
	}
	return fs, nil
}

func buildFeature(fc featureConfig) (features.Feature, error) {
	f, err := features.New(fc.Kind)
	if err != nil {
		return nil, err
	}

	var space features.TransformSpace
	if len(fc.Space) > 0 {
		if space, err = features.ParseTransformSpace(fc.Space); err != nil {
			return nil, err
		}
	}

	switch feature := f.(type) {
	case *features.BoneFeature:
		feature.BoneName = fc.Bone
		if space != 0 {
			feature.FeatureSpace = space
		}
		if len(fc.Properties) > 0 {
			if feature.Properties, err = features.ParseBoneFlags(fc.Properties); err != nil {
				return nil, err
			}
		}
		if feature.RotationFormat, err = features.ParseRotationFormat(fc.RotationFormat); err != nil {
			return nil, err
		}
	case *features.TrajectoryFeature:
		feature.PositionBoneName = fc.PositionBone
		feature.DirectionBoneName = fc.DirectionBone
		if space != 0 {
			feature.FeatureSpace = space
		}
		if len(fc.Properties) > 0 {
			if feature.Properties, err = features.ParseTrajectoryFlags(fc.Properties); err != nil {
				return nil, err
			}
		}
		if fc.Dimension != 0 {
			if feature.Dimension, err = features.ParseTrajectoryDimension(fc.Dimension); err != nil {
				return nil, err
			}
		}
		if fc.NumSamples > 0 {
			feature.NumSamples = fc.NumSamples
		}
		if fc.SamplingRate > 0 {
			feature.SamplingRate = fc.SamplingRate
		}
	}
	return f, nil
}
