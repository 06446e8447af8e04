package store

import (
	"encoding/json"

	"github.com/digital-stage/client-go/internal/domain"
)

// Reduce applies one inbound event and returns the next snapshot. It is
// pure: the input state is left untouched and malformed payloads or
// unknown ids degrade to returning the state unchanged, never an error.
func Reduce(s State, ev Event) State {
	switch ev.Type {
	case EventReset:
		return NewState()

	case EventLocalDeviceReady:
		device, ok := decode[domain.Device](ev.Payload)
		if !ok {
			return s
		}
		s.LocalDeviceID = device.ID
		s.Devices = s.Devices.upsert(device)
		return s

	case EventDeviceAdded:
		device, ok := decode[domain.Device](ev.Payload)
		if !ok {
			return s
		}
		s.Devices = s.Devices.upsert(device)
		return s
	case EventDeviceChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.Devices, _ = s.Devices.patch(id, ev.Payload)
		return s
	case EventDeviceRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		_, devices, _ := s.Devices.remove(id)
		s.Devices = devices
		return s

	case EventStageJoined:
		payload, ok := decode[StageJoinedPayload](ev.Payload)
		if !ok {
			return s
		}
		return s.applyStageJoined(payload)

	case EventStageLeft:
		return s.resetStage()

	case EventStageAdded:
		stage, ok := decode[domain.Stage](ev.Payload)
		if !ok {
			return s
		}
		s.Stages = s.Stages.upsert(stage)
		return s
	case EventStageChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.Stages, _ = s.Stages.patch(id, ev.Payload)
		return s
	case EventStageRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		_, stages, _ := s.Stages.remove(id)
		s.Stages = stages
		if s.StageID == id {
			return s.resetStage()
		}
		return s

	case EventGroupAdded:
		e, ok := decode[domain.Group](ev.Payload)
		if !ok {
			return s
		}
		s.Groups = s.Groups.Add(e)
		return s
	case EventGroupChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.Groups = s.Groups.Patch(id, ev.Payload)
		return s
	case EventGroupRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.Groups = s.Groups.Remove(id)
		return s

	case EventStageMemberAdded:
		e, ok := decode[domain.StageMember](ev.Payload)
		if !ok {
			return s
		}
		s.StageMembers = s.StageMembers.Add(e)
		return s
	case EventStageMemberChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.StageMembers = s.StageMembers.Patch(id, ev.Payload)
		return s
	case EventStageMemberRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.StageMembers = s.StageMembers.Remove(id)
		return s

	case EventStageDeviceAdded:
		e, ok := decode[domain.StageDevice](ev.Payload)
		if !ok {
			return s
		}
		s.StageDevices = s.StageDevices.Add(e)
		return s
	case EventStageDeviceChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.StageDevices = s.StageDevices.Patch(id, ev.Payload)
		return s
	case EventStageDeviceRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.StageDevices = s.StageDevices.Remove(id)
		return s

	case EventAudioTrackAdded:
		e, ok := decode[domain.AudioTrack](ev.Payload)
		if !ok {
			return s
		}
		s.AudioTracks = s.AudioTracks.Add(e)
		return s
	case EventAudioTrackChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.AudioTracks = s.AudioTracks.Patch(id, ev.Payload)
		return s
	case EventAudioTrackRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.AudioTracks = s.AudioTracks.Remove(id)
		return s

	case EventVideoTrackAdded:
		e, ok := decode[domain.VideoTrack](ev.Payload)
		if !ok {
			return s
		}
		s.VideoTracks = s.VideoTracks.Add(e)
		return s
	case EventVideoTrackChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.VideoTracks = s.VideoTracks.Patch(id, ev.Payload)
		return s
	case EventVideoTrackRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.VideoTracks = s.VideoTracks.Remove(id)
		return s

	case EventCustomGroupPositionAdded:
		e, ok := decode[domain.CustomGroupPosition](ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupPositions = s.CustomGroupPositions.Add(e)
		return s
	case EventCustomGroupPositionChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupPositions = s.CustomGroupPositions.Patch(id, ev.Payload)
		return s
	case EventCustomGroupPositionRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupPositions = s.CustomGroupPositions.Remove(id)
		return s

	case EventCustomGroupVolumeAdded:
		e, ok := decode[domain.CustomGroupVolume](ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupVolumes = s.CustomGroupVolumes.Add(e)
		return s
	case EventCustomGroupVolumeChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupVolumes = s.CustomGroupVolumes.Patch(id, ev.Payload)
		return s
	case EventCustomGroupVolumeRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomGroupVolumes = s.CustomGroupVolumes.Remove(id)
		return s

	case EventCustomStageMemberPositionAdded:
		e, ok := decode[domain.CustomStageMemberPosition](ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberPositions = s.CustomStageMemberPositions.Add(e)
		return s
	case EventCustomStageMemberPositionChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberPositions = s.CustomStageMemberPositions.Patch(id, ev.Payload)
		return s
	case EventCustomStageMemberPositionRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberPositions = s.CustomStageMemberPositions.Remove(id)
		return s

	case EventCustomStageMemberVolumeAdded:
		e, ok := decode[domain.CustomStageMemberVolume](ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberVolumes = s.CustomStageMemberVolumes.Add(e)
		return s
	case EventCustomStageMemberVolumeChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberVolumes = s.CustomStageMemberVolumes.Patch(id, ev.Payload)
		return s
	case EventCustomStageMemberVolumeRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageMemberVolumes = s.CustomStageMemberVolumes.Remove(id)
		return s

	case EventCustomStageDevicePositionAdded:
		e, ok := decode[domain.CustomStageDevicePosition](ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDevicePositions = s.CustomStageDevicePositions.Add(e)
		return s
	case EventCustomStageDevicePositionChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDevicePositions = s.CustomStageDevicePositions.Patch(id, ev.Payload)
		return s
	case EventCustomStageDevicePositionRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDevicePositions = s.CustomStageDevicePositions.Remove(id)
		return s

	case EventCustomStageDeviceVolumeAdded:
		e, ok := decode[domain.CustomStageDeviceVolume](ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDeviceVolumes = s.CustomStageDeviceVolumes.Add(e)
		return s
	case EventCustomStageDeviceVolumeChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDeviceVolumes = s.CustomStageDeviceVolumes.Patch(id, ev.Payload)
		return s
	case EventCustomStageDeviceVolumeRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomStageDeviceVolumes = s.CustomStageDeviceVolumes.Remove(id)
		return s

	case EventCustomAudioTrackVolumeAdded:
		e, ok := decode[domain.CustomAudioTrackVolume](ev.Payload)
		if !ok {
			return s
		}
		s.CustomAudioTrackVolumes = s.CustomAudioTrackVolumes.Add(e)
		return s
	case EventCustomAudioTrackVolumeChanged:
		id, ok := changedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomAudioTrackVolumes = s.CustomAudioTrackVolumes.Patch(id, ev.Payload)
		return s
	case EventCustomAudioTrackVolumeRemoved:
		id, ok := removedID(ev.Payload)
		if !ok {
			return s
		}
		s.CustomAudioTrackVolumes = s.CustomAudioTrackVolumes.Remove(id)
		return s
	}
	return s
}

func (s State) applyStageJoined(p StageJoinedPayload) State {
	next := s.resetStage()
	next.StageID = p.Stage.ID
	next.Stages = next.Stages.upsert(p.Stage)
	for _, e := range p.Groups {
		next.Groups = next.Groups.Add(e)
	}
	for _, e := range p.StageMembers {
		next.StageMembers = next.StageMembers.Add(e)
	}
	for _, e := range p.StageDevices {
		next.StageDevices = next.StageDevices.Add(e)
	}
	for _, e := range p.AudioTracks {
		next.AudioTracks = next.AudioTracks.Add(e)
	}
	for _, e := range p.VideoTracks {
		next.VideoTracks = next.VideoTracks.Add(e)
	}
	for _, e := range p.CustomGroupPositions {
		next.CustomGroupPositions = next.CustomGroupPositions.Add(e)
	}
	for _, e := range p.CustomGroupVolumes {
		next.CustomGroupVolumes = next.CustomGroupVolumes.Add(e)
	}
	for _, e := range p.CustomStageMemberPositions {
		next.CustomStageMemberPositions = next.CustomStageMemberPositions.Add(e)
	}
	for _, e := range p.CustomStageMemberVolumes {
		next.CustomStageMemberVolumes = next.CustomStageMemberVolumes.Add(e)
	}
	for _, e := range p.CustomStageDevicePositions {
		next.CustomStageDevicePositions = next.CustomStageDevicePositions.Add(e)
	}
	for _, e := range p.CustomStageDeviceVolumes {
		next.CustomStageDeviceVolumes = next.CustomStageDeviceVolumes.Add(e)
	}
	for _, e := range p.CustomAudioTrackVolumes {
		next.CustomAudioTrackVolumes = next.CustomAudioTrackVolumes.Add(e)
	}
	return next
}

func decode[T any](raw json.RawMessage) (T, bool) {
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		var zero T
		return zero, false
	}
	return out, true
}

func changedID(raw json.RawMessage) (domain.ID, bool) {
	var ref struct {
		ID domain.ID `json:"_id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil || ref.ID == "" {
		return "", false
	}
	return ref.ID, true
}

// removedID accepts either a bare JSON string id or an object with "_id".
func removedID(raw json.RawMessage) (domain.ID, bool) {
	var id domain.ID
	if err := json.Unmarshal(raw, &id); err == nil && id != "" {
		return id, true
	}
	return changedID(raw)
}
