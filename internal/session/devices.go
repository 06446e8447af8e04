package session

import (
	"context"
	"fmt"
)

const emitDeviceChanged = "change-device"

// RefreshDevices re-enumerates the available media devices and notifies
// the server, but only when an actual difference against the last known
// enumeration exists; a no-op refresh emits nothing. The payload
// carries only the lists that changed. Returns whether an update was
// emitted.
func (m *Manager) RefreshDevices(ctx context.Context, enumerator DeviceEnumerator) (bool, error) {
	lists, err := enumerator.Enumerate(ctx)
	if err != nil {
		return false, fmt.Errorf("enumerate devices: %w", err)
	}

	m.mu.Lock()
	last := m.lastDevices
	m.mu.Unlock()

	payload := map[string]any{}
	if last == nil || !devicesEqual(last.AudioInputs, lists.AudioInputs) {
		payload["inputAudioDevices"] = lists.AudioInputs
	}
	if last == nil || !devicesEqual(last.AudioOutputs, lists.AudioOutputs) {
		payload["outputAudioDevices"] = lists.AudioOutputs
	}
	if last == nil || !devicesEqual(last.VideoInputs, lists.VideoInputs) {
		payload["inputVideoDevices"] = lists.VideoInputs
	}
	if len(payload) == 0 {
		return false, nil
	}

	// The enumeration counts as reported only once the server heard it;
	// a failed emit leaves lastDevices untouched so a retry re-detects
	// the same change.
	if err := m.signaler.Emit(emitDeviceChanged, payload); err != nil {
		return false, fmt.Errorf("emit device change: %w", err)
	}
	m.mu.Lock()
	m.lastDevices = &lists
	m.mu.Unlock()
	m.logger.Info().Int("changed_lists", len(payload)).Msg("device enumeration changed")
	return true, nil
}

func devicesEqual(a, b []EnumeratedDevice) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
