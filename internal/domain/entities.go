// Package domain contains stage entities without logic, just meta-data.
package domain

type ID string

// ThreeDimensionalProperties is the intrinsic pose every positionable
// entity carries: position, rotation and a directivity pattern.
type ThreeDimensionalProperties struct {
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Z           float64 `json:"z"`
	RX          float64 `json:"rX"`
	RY          float64 `json:"rY"`
	RZ          float64 `json:"rZ"`
	Directivity string  `json:"directivity,omitempty"`
}

// VolumeProperties is the intrinsic mix state of an audio-bearing entity.
type VolumeProperties struct {
	Volume float64 `json:"volume"`
	Muted  bool    `json:"muted"`
}

const (
	DirectivityOmni     = "omni"
	DirectivityCardioid = "cardioid"
)

type Stage struct {
	ID        ID     `json:"_id"`
	Name      string `json:"name"`
	AudioType string `json:"audioType"`
	VideoType string `json:"videoType"`
	Width     float64 `json:"width,omitempty"`
	Length    float64 `json:"length,omitempty"`
	Height    float64 `json:"height,omitempty"`
}

type Group struct {
	ID      ID     `json:"_id"`
	StageID ID     `json:"stageId"`
	Name    string `json:"name"`
	Color   string `json:"color,omitempty"`
	ThreeDimensionalProperties
	VolumeProperties
}

type StageMember struct {
	ID      ID   `json:"_id"`
	StageID ID   `json:"stageId"`
	GroupID ID   `json:"groupId"`
	UserID  ID   `json:"userId"`
	Active  bool `json:"active"`
	ThreeDimensionalProperties
	VolumeProperties
}

type StageDevice struct {
	ID            ID     `json:"_id"`
	StageID       ID     `json:"stageId"`
	StageMemberID ID     `json:"stageMemberId"`
	// DeviceID links back to the physical device producing this
	// stage presence; it decides local versus remote track binding.
	DeviceID ID     `json:"deviceId"`
	UserID   ID     `json:"userId"`
	Type     string `json:"type,omitempty"`
	Active   bool   `json:"active"`
	ThreeDimensionalProperties
	VolumeProperties
}

type AudioTrack struct {
	ID            ID     `json:"_id"`
	StageID       ID     `json:"stageId"`
	StageMemberID ID     `json:"stageMemberId"`
	StageDeviceID ID     `json:"stageDeviceId"`
	DeviceID      ID     `json:"deviceId"`
	UserID        ID     `json:"userId"`
	ProducerID    string `json:"producerId,omitempty"`
	Type          string `json:"type,omitempty"`
	ThreeDimensionalProperties
	VolumeProperties
}

type VideoTrack struct {
	ID            ID     `json:"_id"`
	StageID       ID     `json:"stageId"`
	StageMemberID ID     `json:"stageMemberId"`
	StageDeviceID ID     `json:"stageDeviceId"`
	DeviceID      ID     `json:"deviceId"`
	UserID        ID     `json:"userId"`
	ProducerID    string `json:"producerId,omitempty"`
	Type          string `json:"type,omitempty"`
}

// MediaDeviceInfo is one enumerated input or output device.
type MediaDeviceInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type Device struct {
	ID       ID     `json:"_id"`
	UserID   ID     `json:"userId"`
	Type     string `json:"type,omitempty"`
	Online   bool   `json:"online"`
	CanAudio bool   `json:"canAudio"`
	CanVideo bool   `json:"canVideo"`

	InputAudioDevices  []MediaDeviceInfo `json:"inputAudioDevices,omitempty"`
	OutputAudioDevices []MediaDeviceInfo `json:"outputAudioDevices,omitempty"`
	InputVideoDevices  []MediaDeviceInfo `json:"inputVideoDevices,omitempty"`
}

// TrackParents returns the ancestor chain references of an audio track.
func (e AudioTrack) TrackParents() (stage, member, stageDevice ID) {
	return e.StageID, e.StageMemberID, e.StageDeviceID
}

// TrackParents returns the ancestor chain references of a video track.
func (e VideoTrack) TrackParents() (stage, member, stageDevice ID) {
	return e.StageID, e.StageMemberID, e.StageDeviceID
}

func (e Stage) EntityID() ID       { return e.ID }
func (e Group) EntityID() ID       { return e.ID }
func (e StageMember) EntityID() ID { return e.ID }
func (e StageDevice) EntityID() ID { return e.ID }
func (e AudioTrack) EntityID() ID  { return e.ID }
func (e VideoTrack) EntityID() ID  { return e.ID }
func (e Device) EntityID() ID      { return e.ID }
