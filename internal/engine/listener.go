package engine

// Vec3 is a position/direction in listener space.
type Vec3 struct{ X, Y, Z float32 }

// Listener holds the world-space position and orientation the spatializer
// would use to compute per-sound attenuation and panning once it grows
// beyond channel-count conversion. The current spatializer is a placeholder
// (see internal/spatializer), so these fields are stored and returned but
// not yet consumed by processing.
type Listener struct {
	Position Vec3
	Forward  Vec3
	Up       Vec3
}

// NewListener returns a listener facing -Z with +Y up at the origin, the
// conventional default orientation.
func NewListener() Listener {
	return Listener{Forward: Vec3{0, 0, -1}, Up: Vec3{0, 1, 0}}
}
