package domain

// Override kinds carry the listening device that owns them plus the id
// of the entity they override. At most one override exists per
// (device, target) pair; the store enforces that.

type CustomGroupPosition struct {
	ID       ID `json:"_id"`
	DeviceID ID `json:"deviceId"`
	GroupID  ID `json:"groupId"`
	ThreeDimensionalProperties
}

type CustomGroupVolume struct {
	ID       ID `json:"_id"`
	DeviceID ID `json:"deviceId"`
	GroupID  ID `json:"groupId"`
	VolumeProperties
}

type CustomStageMemberPosition struct {
	ID            ID `json:"_id"`
	DeviceID      ID `json:"deviceId"`
	StageMemberID ID `json:"stageMemberId"`
	ThreeDimensionalProperties
}

type CustomStageMemberVolume struct {
	ID            ID `json:"_id"`
	DeviceID      ID `json:"deviceId"`
	StageMemberID ID `json:"stageMemberId"`
	VolumeProperties
}

type CustomStageDevicePosition struct {
	ID            ID `json:"_id"`
	DeviceID      ID `json:"deviceId"`
	StageDeviceID ID `json:"stageDeviceId"`
	ThreeDimensionalProperties
}

type CustomStageDeviceVolume struct {
	ID            ID `json:"_id"`
	DeviceID      ID `json:"deviceId"`
	StageDeviceID ID `json:"stageDeviceId"`
	VolumeProperties
}

type CustomAudioTrackVolume struct {
	ID           ID `json:"_id"`
	DeviceID     ID `json:"deviceId"`
	AudioTrackID ID `json:"audioTrackId"`
	VolumeProperties
}

func (e CustomGroupPosition) EntityID() ID       { return e.ID }
func (e CustomGroupVolume) EntityID() ID         { return e.ID }
func (e CustomStageMemberPosition) EntityID() ID { return e.ID }
func (e CustomStageMemberVolume) EntityID() ID   { return e.ID }
func (e CustomStageDevicePosition) EntityID() ID { return e.ID }
func (e CustomStageDeviceVolume) EntityID() ID   { return e.ID }
func (e CustomAudioTrackVolume) EntityID() ID    { return e.ID }

// OverrideKey returns the (listening device, target) pair an override is
// scoped to.
func (e CustomGroupPosition) OverrideKey() (ID, ID)       { return e.DeviceID, e.GroupID }
func (e CustomGroupVolume) OverrideKey() (ID, ID)         { return e.DeviceID, e.GroupID }
func (e CustomStageMemberPosition) OverrideKey() (ID, ID) { return e.DeviceID, e.StageMemberID }
func (e CustomStageMemberVolume) OverrideKey() (ID, ID)   { return e.DeviceID, e.StageMemberID }
func (e CustomStageDevicePosition) OverrideKey() (ID, ID) { return e.DeviceID, e.StageDeviceID }
func (e CustomStageDeviceVolume) OverrideKey() (ID, ID)   { return e.DeviceID, e.StageDeviceID }
func (e CustomAudioTrackVolume) OverrideKey() (ID, ID)    { return e.DeviceID, e.AudioTrackID }
