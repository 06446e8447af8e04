package session

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

type fakeEnumerator struct {
	lists DeviceLists
	err   error
}

func (e *fakeEnumerator) Enumerate(context.Context) (DeviceLists, error) {
	return e.lists, e.err
}

func TestRefreshDevicesEmitsOnFirstEnumeration(t *testing.T) {
	signaler := newFakeSignaler()
	m := NewManager(signaler, &fakeEngine{}, zerolog.Nop())
	enum := &fakeEnumerator{lists: DeviceLists{
		AudioInputs: []EnumeratedDevice{{ID: "mic-1", Label: "Microphone"}},
	}}

	changed, err := m.RefreshDevices(context.Background(), enum)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !changed {
		t.Fatal("first enumeration must emit an update")
	}
	if len(signaler.emits) != 1 || signaler.emits[0] != emitDeviceChanged {
		t.Fatalf("expected one %s emit, got %v", emitDeviceChanged, signaler.emits)
	}
}

func TestRefreshDevicesIsQuietWithoutChanges(t *testing.T) {
	signaler := newFakeSignaler()
	m := NewManager(signaler, &fakeEngine{}, zerolog.Nop())
	enum := &fakeEnumerator{lists: DeviceLists{
		AudioInputs:  []EnumeratedDevice{{ID: "mic-1", Label: "Microphone"}},
		AudioOutputs: []EnumeratedDevice{{ID: "spk-1", Label: "Speakers"}},
	}}

	if _, err := m.RefreshDevices(context.Background(), enum); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	changed, err := m.RefreshDevices(context.Background(), enum)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if changed {
		t.Fatal("identical enumeration must not emit")
	}
	if len(signaler.emits) != 1 {
		t.Fatalf("expected no additional emits, got %v", signaler.emits)
	}
}

func TestRefreshDevicesRetriesAfterFailedEmit(t *testing.T) {
	signaler := newFakeSignaler()
	signaler.emitErr = errors.New("socket gone")
	m := NewManager(signaler, &fakeEngine{}, zerolog.Nop())
	enum := &fakeEnumerator{lists: DeviceLists{
		AudioInputs: []EnumeratedDevice{{ID: "mic-1", Label: "Microphone"}},
	}}

	if _, err := m.RefreshDevices(context.Background(), enum); err == nil {
		t.Fatal("refresh must surface the emit failure")
	}

	// The failed emit must not have recorded the enumeration as
	// reported: the same lists are still a change a retry has to send.
	changed, err := m.RefreshDevices(context.Background(), enum)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !changed {
		t.Fatal("retry after a failed emit must re-detect the change")
	}
	if len(signaler.emits) != 1 {
		t.Fatalf("expected the retry to emit once, got %v", signaler.emits)
	}
}

func TestRefreshDevicesEmitsAfterListChange(t *testing.T) {
	signaler := newFakeSignaler()
	m := NewManager(signaler, &fakeEngine{}, zerolog.Nop())
	enum := &fakeEnumerator{lists: DeviceLists{
		AudioInputs: []EnumeratedDevice{{ID: "mic-1", Label: "Microphone"}},
	}}
	if _, err := m.RefreshDevices(context.Background(), enum); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	enum.lists.AudioInputs = append(enum.lists.AudioInputs, EnumeratedDevice{ID: "mic-2", Label: "Headset"})
	changed, err := m.RefreshDevices(context.Background(), enum)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !changed {
		t.Fatal("a new device must trigger an update")
	}
	if len(signaler.emits) != 2 {
		t.Fatalf("expected a second emit, got %v", signaler.emits)
	}
}
