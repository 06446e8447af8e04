package store

import (
	"encoding/json"

	"github.com/digital-stage/client-go/internal/domain"
)

// EventType names a server-to-client store event.
type EventType string

const (
	EventLocalDeviceReady EventType = "local-device-ready"
	EventReset            EventType = "reset"

	EventDeviceAdded   EventType = "device-added"
	EventDeviceChanged EventType = "device-changed"
	EventDeviceRemoved EventType = "device-removed"

	EventStageJoined EventType = "stage-joined"
	EventStageLeft   EventType = "stage-left"

	EventStageAdded   EventType = "stage-added"
	EventStageChanged EventType = "stage-changed"
	EventStageRemoved EventType = "stage-removed"

	EventGroupAdded   EventType = "group-added"
	EventGroupChanged EventType = "group-changed"
	EventGroupRemoved EventType = "group-removed"

	EventStageMemberAdded   EventType = "stage-member-added"
	EventStageMemberChanged EventType = "stage-member-changed"
	EventStageMemberRemoved EventType = "stage-member-removed"

	EventStageDeviceAdded   EventType = "stage-device-added"
	EventStageDeviceChanged EventType = "stage-device-changed"
	EventStageDeviceRemoved EventType = "stage-device-removed"

	EventAudioTrackAdded   EventType = "audio-track-added"
	EventAudioTrackChanged EventType = "audio-track-changed"
	EventAudioTrackRemoved EventType = "audio-track-removed"

	EventVideoTrackAdded   EventType = "video-track-added"
	EventVideoTrackChanged EventType = "video-track-changed"
	EventVideoTrackRemoved EventType = "video-track-removed"

	EventCustomGroupPositionAdded   EventType = "custom-group-position-added"
	EventCustomGroupPositionChanged EventType = "custom-group-position-changed"
	EventCustomGroupPositionRemoved EventType = "custom-group-position-removed"

	EventCustomGroupVolumeAdded   EventType = "custom-group-volume-added"
	EventCustomGroupVolumeChanged EventType = "custom-group-volume-changed"
	EventCustomGroupVolumeRemoved EventType = "custom-group-volume-removed"

	EventCustomStageMemberPositionAdded   EventType = "custom-stage-member-position-added"
	EventCustomStageMemberPositionChanged EventType = "custom-stage-member-position-changed"
	EventCustomStageMemberPositionRemoved EventType = "custom-stage-member-position-removed"

	EventCustomStageMemberVolumeAdded   EventType = "custom-stage-member-volume-added"
	EventCustomStageMemberVolumeChanged EventType = "custom-stage-member-volume-changed"
	EventCustomStageMemberVolumeRemoved EventType = "custom-stage-member-volume-removed"

	EventCustomStageDevicePositionAdded   EventType = "custom-stage-device-position-added"
	EventCustomStageDevicePositionChanged EventType = "custom-stage-device-position-changed"
	EventCustomStageDevicePositionRemoved EventType = "custom-stage-device-position-removed"

	EventCustomStageDeviceVolumeAdded   EventType = "custom-stage-device-volume-added"
	EventCustomStageDeviceVolumeChanged EventType = "custom-stage-device-volume-changed"
	EventCustomStageDeviceVolumeRemoved EventType = "custom-stage-device-volume-removed"

	EventCustomAudioTrackVolumeAdded   EventType = "custom-audio-track-volume-added"
	EventCustomAudioTrackVolumeChanged EventType = "custom-audio-track-volume-changed"
	EventCustomAudioTrackVolumeRemoved EventType = "custom-audio-track-volume-removed"
)

// Event is one inbound store mutation. Added events carry the full
// entity, changed events a partial record including "_id", removed
// events the bare id.
type Event struct {
	Type    EventType
	Payload json.RawMessage
}

// StageJoinedPayload is the full snapshot delivered when this device
// joins a stage.
type StageJoinedPayload struct {
	Stage        domain.Stage         `json:"stage"`
	Groups       []domain.Group       `json:"groups"`
	StageMembers []domain.StageMember `json:"stageMembers"`
	StageDevices []domain.StageDevice `json:"stageDevices"`
	AudioTracks  []domain.AudioTrack  `json:"audioTracks"`
	VideoTracks  []domain.VideoTrack  `json:"videoTracks"`

	CustomGroupPositions       []domain.CustomGroupPosition       `json:"customGroupPositions"`
	CustomGroupVolumes         []domain.CustomGroupVolume         `json:"customGroupVolumes"`
	CustomStageMemberPositions []domain.CustomStageMemberPosition `json:"customStageMemberPositions"`
	CustomStageMemberVolumes   []domain.CustomStageMemberVolume   `json:"customStageMemberVolumes"`
	CustomStageDevicePositions []domain.CustomStageDevicePosition `json:"customStageDevicePositions"`
	CustomStageDeviceVolumes   []domain.CustomStageDeviceVolume   `json:"customStageDeviceVolumes"`
	CustomAudioTrackVolumes    []domain.CustomAudioTrackVolume    `json:"customAudioTrackVolumes"`
}
