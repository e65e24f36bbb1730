package math

// Vec3 represents a 3D vector
type Vec3 struct {
	X, Y, Z float32
}

/** @brief A quaternion, used to represent rotational orientation. */
type Quaternion struct {
	X, Y, Z, W float32
}

/**
 * @brief Represents the transform of a bone. Depending on where it comes
 * from it is either relative to the parent bone (local space) or to the
 * skeleton root (component space).
 */
type Transform struct {
	/** @brief The translation of the bone. */
	Position Vec3
	/** @brief The orientation of the bone. Expected to be a unit quaternion. */
	Rotation Quaternion
}
