package webaudio

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSnapshotReflectsSceneGraph(t *testing.T) {
	p := NewProvider(zerolog.Nop())

	root := p.NewGain()
	root.Connect(p.Destination())
	root.SetGain(1)

	panner := p.NewPanner()
	panner.Connect(root)
	panner.SetPosition(10, 0, -2)
	panner.SetDirectivity("cardioid")

	p.Listener().SetPosition(1, 2, 3)

	snap := p.Snapshot()
	if len(snap.Nodes) != 2 {
		t.Fatalf("snapshot nodes = %d, want 2", len(snap.Nodes))
	}
	if snap.Nodes[0].Kind != "gain" || snap.Nodes[0].Destination != destinationID {
		t.Fatalf("root node = %+v, want gain into destination", snap.Nodes[0])
	}
	got := snap.Nodes[1]
	if got.Kind != "panner" || got.X != 10 || got.Z != -2 || got.Directivity != "cardioid" {
		t.Fatalf("panner node = %+v", got)
	}
	if snap.Listener.Y != 2 {
		t.Fatalf("listener = %+v, want y=2", snap.Listener)
	}
}

func TestDisconnectedNodesLeaveTheScene(t *testing.T) {
	p := NewProvider(zerolog.Nop())

	root := p.NewGain()
	root.Connect(p.Destination())
	source := p.NewSource()
	source.Connect(root)

	source.Disconnect()

	snap := p.Snapshot()
	if len(snap.Nodes) != 1 {
		t.Fatalf("snapshot nodes = %d after disconnect, want 1", len(snap.Nodes))
	}
	if snap.Nodes[0].Kind != "gain" {
		t.Fatalf("remaining node = %+v, want the root gain", snap.Nodes[0])
	}
}

func TestSourceTracksAppearInSnapshot(t *testing.T) {
	p := NewProvider(zerolog.Nop())

	root := p.NewGain()
	root.Connect(p.Destination())
	source := p.NewSource()
	source.Connect(root)
	source.SetTrack(staticTrack("track-7"))

	snap := p.Snapshot()
	if snap.Nodes[1].TrackID != "track-7" {
		t.Fatalf("source TrackID = %q, want track-7", snap.Nodes[1].TrackID)
	}

	source.ClearTrack()
	snap = p.Snapshot()
	if snap.Nodes[1].TrackID != "" {
		t.Fatalf("source TrackID = %q after clear, want empty", snap.Nodes[1].TrackID)
	}
}

type staticTrack string

func (s staticTrack) ID() string { return string(s) }
