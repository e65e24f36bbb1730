package resources

import (
	"path/filepath"
	"strings"
)

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Unknown files are not tracked. */
	ResourceTypeNone ResourceType = iota
	/** @brief Skeleton hierarchy and reference pose (.skel.toml). */
	ResourceTypeSkeleton
	/** @brief Feature set schema (.features.toml). */
	ResourceTypeFeatureSet
	/** @brief Sampled animation clip (.clip.toml). */
	ResourceTypeClip
	/** @brief Dense network weights (.model). */
	ResourceTypeModel
	/** @brief Single binary tensor (.bin). */
	ResourceTypeTensor
)

func (t ResourceType) String() string {
	switch t {
	case ResourceTypeSkeleton:
		return "skeleton"
	case ResourceTypeFeatureSet:
		return "feature_set"
	case ResourceTypeClip:
		return "clip"
	case ResourceTypeModel:
		return "model"
	case ResourceTypeTensor:
		return "tensor"
	default:
		return "none"
	}
}

// DetermineResourceType maps a file name to its resource type by extension.
func DetermineResourceType(path string) ResourceType {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.HasSuffix(name, ".skel.toml"):
		return ResourceTypeSkeleton
	case strings.HasSuffix(name, ".features.toml"):
		return ResourceTypeFeatureSet
	case strings.HasSuffix(name, ".clip.toml"):
		return ResourceTypeClip
	case strings.HasSuffix(name, ".model"):
		return ResourceTypeModel
	case strings.HasSuffix(name, ".bin"):
		return ResourceTypeTensor
	default:
		return ResourceTypeNone
	}
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The resource type. */
	Type ResourceType
	/** @brief The size of the file the resource was loaded from, in bytes. */
	DataSize uint64
	/** @brief The resource data, typed per resource type. */
	Data interface{}
}

// ResourceName strips the directory and the resource extension from path.
func ResourceName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".skel.toml", ".features.toml", ".clip.toml", ".model", ".bin"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}
