package audio

// The node provider abstracts the audio-processing backend. Only the
// parameters and the composition order are modeled here; synthesis is
// the provider's business.

// Node is a connectable audio-processing stage.
type Node interface {
	// Connect routes this node's output into dst, replacing any
	// previous routing.
	Connect(dst Node)
	// Disconnect detaches the node from its destination.
	Disconnect()
}

// GainNode scales the signal passing through it.
type GainNode interface {
	Node
	SetGain(value float64)
}

// PannerNode places the signal in the 3D scene.
type PannerNode interface {
	Node
	SetPosition(x, y, z float64)
	SetOrientation(rx, ry, rz float64)
	SetDirectivity(pattern string)
}

// SourceNode feeds a media track into the graph. Without a bound track
// it produces silence.
type SourceNode interface {
	Node
	SetTrack(track Track)
	ClearTrack()
}

// Listener is the spatial reference point of the whole scene.
type Listener interface {
	SetPosition(x, y, z float64)
	SetOrientation(rx, ry, rz float64)
}

// Track is the minimal view of a live media track the graph needs.
type Track interface {
	ID() string
}

// NodeProvider creates nodes and exposes the scene's listener and final
// destination.
type NodeProvider interface {
	NewGain() GainNode
	NewPanner() PannerNode
	NewSource() SourceNode
	Listener() Listener
	Destination() Node
}

// TrackSource hands live media tracks to the reconciler. Local tracks
// come from producers, remote ones from consumers; both are keyed by
// the server-side producer id.
type TrackSource interface {
	LocalTrack(producerID string) (Track, bool)
	RemoteTrack(producerID string) (Track, bool)
}
