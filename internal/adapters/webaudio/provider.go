// Package webaudio is a bookkeeping audio backend. It renders nothing;
// it tracks the node graph and every parameter the reconciler sets, so
// the effective mixer can be inspected over the status API and replayed
// into a real renderer later.
package webaudio

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/audio"
)

const destinationID = 0

// Provider implements audio.NodeProvider over an in-memory scene graph.
type Provider struct {
	mu       sync.RWMutex
	seq      int
	nodes    map[int]*node
	listener listenerState
	logger   zerolog.Logger
}

func NewProvider(logger zerolog.Logger) *Provider {
	return &Provider{
		nodes:  make(map[int]*node),
		logger: logger.With().Str("module", "webaudio").Logger(),
	}
}

type listenerState struct {
	X, Y, Z    float64
	RX, RY, RZ float64
}

// node is one live stage of the graph. A node disappears from the scene
// when the reconciler disconnects it.
type node struct {
	provider *Provider
	id       int
	kind     string

	dst         int
	connected   bool
	gain        float64
	x, y, z     float64
	rx, ry, rz  float64
	directivity string
	trackID     string
	hasTrack    bool
}

func (p *Provider) newNode(kind string) *node {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seq++
	n := &node{provider: p, id: p.seq, kind: kind, gain: 1}
	p.nodes[n.id] = n
	return n
}

func (p *Provider) NewGain() audio.GainNode     { return p.newNode("gain") }
func (p *Provider) NewPanner() audio.PannerNode { return p.newNode("panner") }
func (p *Provider) NewSource() audio.SourceNode { return p.newNode("source") }

func (p *Provider) Listener() audio.Listener { return providerListener{p} }

func (p *Provider) Destination() audio.Node {
	return &node{provider: p, id: destinationID, kind: "destination"}
}

func (n *node) Connect(dst audio.Node) {
	target, ok := dst.(*node)
	if !ok {
		n.provider.logger.Warn().Int("node", n.id).Msg("connect to foreign node ignored")
		return
	}
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.dst = target.id
	n.connected = true
}

func (n *node) Disconnect() {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.connected = false
	delete(n.provider.nodes, n.id)
}

func (n *node) SetGain(value float64) {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.gain = value
}

func (n *node) SetPosition(x, y, z float64) {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.x, n.y, n.z = x, y, z
}

func (n *node) SetOrientation(rx, ry, rz float64) {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.rx, n.ry, n.rz = rx, ry, rz
}

func (n *node) SetDirectivity(pattern string) {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.directivity = pattern
}

func (n *node) SetTrack(track audio.Track) {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.trackID = track.ID()
	n.hasTrack = true
}

func (n *node) ClearTrack() {
	n.provider.mu.Lock()
	defer n.provider.mu.Unlock()
	n.trackID = ""
	n.hasTrack = false
}

type providerListener struct{ p *Provider }

func (l providerListener) SetPosition(x, y, z float64) {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	l.p.listener.X, l.p.listener.Y, l.p.listener.Z = x, y, z
}

func (l providerListener) SetOrientation(rx, ry, rz float64) {
	l.p.mu.Lock()
	defer l.p.mu.Unlock()
	l.p.listener.RX, l.p.listener.RY, l.p.listener.RZ = rx, ry, rz
}

// NodeSnapshot is one node of the scene as exposed to the status API.
type NodeSnapshot struct {
	ID          int     `json:"id"`
	Kind        string  `json:"kind"`
	Destination int     `json:"destination"`
	Gain        float64 `json:"gain,omitempty"`
	X           float64 `json:"x,omitempty"`
	Y           float64 `json:"y,omitempty"`
	Z           float64 `json:"z,omitempty"`
	RX          float64 `json:"rX,omitempty"`
	RY          float64 `json:"rY,omitempty"`
	RZ          float64 `json:"rZ,omitempty"`
	Directivity string  `json:"directivity,omitempty"`
	TrackID     string  `json:"trackId,omitempty"`
}

// ListenerSnapshot is the listener pose as exposed to the status API.
type ListenerSnapshot struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	Z  float64 `json:"z"`
	RX float64 `json:"rX"`
	RY float64 `json:"rY"`
	RZ float64 `json:"rZ"`
}

// MixerSnapshot is the whole live scene.
type MixerSnapshot struct {
	Listener ListenerSnapshot `json:"listener"`
	Nodes    []NodeSnapshot   `json:"nodes"`
}

// Snapshot copies the current scene. Only connected nodes are reported.
func (p *Provider) Snapshot() MixerSnapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snap := MixerSnapshot{
		Listener: ListenerSnapshot{
			X: p.listener.X, Y: p.listener.Y, Z: p.listener.Z,
			RX: p.listener.RX, RY: p.listener.RY, RZ: p.listener.RZ,
		},
		Nodes: make([]NodeSnapshot, 0, len(p.nodes)),
	}
	for _, n := range p.nodes {
		if !n.connected {
			continue
		}
		snap.Nodes = append(snap.Nodes, NodeSnapshot{
			ID:          n.id,
			Kind:        n.kind,
			Destination: n.dst,
			Gain:        n.gain,
			X:           n.x, Y: n.y, Z: n.z,
			RX: n.rx, RY: n.ry, RZ: n.rz,
			Directivity: n.directivity,
			TrackID:     n.trackID,
		})
	}
	sort.Slice(snap.Nodes, func(i, j int) bool { return snap.Nodes[i].ID < snap.Nodes[j].ID })
	return snap
}
