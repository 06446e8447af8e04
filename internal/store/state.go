package store

import (
	"encoding/json"

	"github.com/digital-stage/client-go/internal/domain"
)

// Groups is the normalized group collection with its stage index.
type Groups struct {
	Collection[domain.Group]
	ByStage Index
}

func newGroups() Groups {
	return Groups{Collection: newCollection[domain.Group](), ByStage: Index{}}
}

func (g Groups) Add(e domain.Group) Groups {
	if old, ok := g.Get(e.ID); ok && old.StageID != e.StageID {
		g.ByStage = g.ByStage.remove(old.StageID, e.ID)
	}
	return Groups{
		Collection: g.Collection.upsert(e),
		ByStage:    g.ByStage.add(e.StageID, e.ID),
	}
}

// Patch never re-indexes parent references even when the payload carries
// one; parent moves arrive from the server as remove followed by add.
func (g Groups) Patch(id domain.ID, partial json.RawMessage) Groups {
	c, _ := g.Collection.patch(id, partial)
	return Groups{Collection: c, ByStage: g.ByStage}
}

func (g Groups) Remove(id domain.ID) Groups {
	old, c, ok := g.Collection.remove(id)
	if !ok {
		return g
	}
	return Groups{Collection: c, ByStage: g.ByStage.remove(old.StageID, id)}
}

// StageMembers indexes members by stage and by group.
type StageMembers struct {
	Collection[domain.StageMember]
	ByStage Index
	ByGroup Index
}

func newStageMembers() StageMembers {
	return StageMembers{
		Collection: newCollection[domain.StageMember](),
		ByStage:    Index{},
		ByGroup:    Index{},
	}
}

func (m StageMembers) Add(e domain.StageMember) StageMembers {
	if old, ok := m.Get(e.ID); ok {
		if old.StageID != e.StageID {
			m.ByStage = m.ByStage.remove(old.StageID, e.ID)
		}
		if old.GroupID != e.GroupID {
			m.ByGroup = m.ByGroup.remove(old.GroupID, e.ID)
		}
	}
	return StageMembers{
		Collection: m.Collection.upsert(e),
		ByStage:    m.ByStage.add(e.StageID, e.ID),
		ByGroup:    m.ByGroup.add(e.GroupID, e.ID),
	}
}

func (m StageMembers) Patch(id domain.ID, partial json.RawMessage) StageMembers {
	c, _ := m.Collection.patch(id, partial)
	return StageMembers{Collection: c, ByStage: m.ByStage, ByGroup: m.ByGroup}
}

func (m StageMembers) Remove(id domain.ID) StageMembers {
	old, c, ok := m.Collection.remove(id)
	if !ok {
		return m
	}
	return StageMembers{
		Collection: c,
		ByStage:    m.ByStage.remove(old.StageID, id),
		ByGroup:    m.ByGroup.remove(old.GroupID, id),
	}
}

// StageDevices indexes stage devices by stage and by stage member.
type StageDevices struct {
	Collection[domain.StageDevice]
	ByStage       Index
	ByStageMember Index
}

func newStageDevices() StageDevices {
	return StageDevices{
		Collection:    newCollection[domain.StageDevice](),
		ByStage:       Index{},
		ByStageMember: Index{},
	}
}

func (d StageDevices) Add(e domain.StageDevice) StageDevices {
	if old, ok := d.Get(e.ID); ok {
		if old.StageID != e.StageID {
			d.ByStage = d.ByStage.remove(old.StageID, e.ID)
		}
		if old.StageMemberID != e.StageMemberID {
			d.ByStageMember = d.ByStageMember.remove(old.StageMemberID, e.ID)
		}
	}
	return StageDevices{
		Collection:    d.Collection.upsert(e),
		ByStage:       d.ByStage.add(e.StageID, e.ID),
		ByStageMember: d.ByStageMember.add(e.StageMemberID, e.ID),
	}
}

func (d StageDevices) Patch(id domain.ID, partial json.RawMessage) StageDevices {
	c, _ := d.Collection.patch(id, partial)
	return StageDevices{Collection: c, ByStage: d.ByStage, ByStageMember: d.ByStageMember}
}

func (d StageDevices) Remove(id domain.ID) StageDevices {
	old, c, ok := d.Collection.remove(id)
	if !ok {
		return d
	}
	return StageDevices{
		Collection:    c,
		ByStage:       d.ByStage.remove(old.StageID, id),
		ByStageMember: d.ByStageMember.remove(old.StageMemberID, id),
	}
}

// Track is an audio or video track with its ancestor references.
type Track interface {
	Entity
	TrackParents() (stage, member, stageDevice domain.ID)
}

// TrackSet holds one media-track kind with the three ancestor indices.
type TrackSet[T Track] struct {
	Collection[T]
	ByStage       Index
	ByStageMember Index
	ByStageDevice Index
}

func newTrackSet[T Track]() TrackSet[T] {
	return TrackSet[T]{
		Collection:    newCollection[T](),
		ByStage:       Index{},
		ByStageMember: Index{},
		ByStageDevice: Index{},
	}
}

func (s TrackSet[T]) Add(e T) TrackSet[T] {
	id := e.EntityID()
	stage, member, sdev := e.TrackParents()
	if old, ok := s.Get(id); ok {
		oStage, oMember, oDev := old.TrackParents()
		if oStage != stage {
			s.ByStage = s.ByStage.remove(oStage, id)
		}
		if oMember != member {
			s.ByStageMember = s.ByStageMember.remove(oMember, id)
		}
		if oDev != sdev {
			s.ByStageDevice = s.ByStageDevice.remove(oDev, id)
		}
	}
	return TrackSet[T]{
		Collection:    s.Collection.upsert(e),
		ByStage:       s.ByStage.add(stage, id),
		ByStageMember: s.ByStageMember.add(member, id),
		ByStageDevice: s.ByStageDevice.add(sdev, id),
	}
}

func (s TrackSet[T]) Patch(id domain.ID, partial json.RawMessage) TrackSet[T] {
	c, _ := s.Collection.patch(id, partial)
	return TrackSet[T]{
		Collection:    c,
		ByStage:       s.ByStage,
		ByStageMember: s.ByStageMember,
		ByStageDevice: s.ByStageDevice,
	}
}

func (s TrackSet[T]) Remove(id domain.ID) TrackSet[T] {
	old, c, ok := s.Collection.remove(id)
	if !ok {
		return s
	}
	stage, member, sdev := old.TrackParents()
	return TrackSet[T]{
		Collection:    c,
		ByStage:       s.ByStage.remove(stage, id),
		ByStageMember: s.ByStageMember.remove(member, id),
		ByStageDevice: s.ByStageDevice.remove(sdev, id),
	}
}

// OverrideSet holds one override kind with the listener index and the
// compound (device, target) index.
type OverrideSet[T Override] struct {
	Collection[T]
	ByDevice          Index
	ByDeviceAndTarget PairIndex
}

func newOverrideSet[T Override]() OverrideSet[T] {
	return OverrideSet[T]{
		Collection:        newCollection[T](),
		ByDevice:          Index{},
		ByDeviceAndTarget: PairIndex{},
	}
}

// Add upserts the override. A second override arriving for a pair that
// is already mapped replaces the previous one entirely; the superseded
// record is dropped from every index so byId stays the single source of
// truth.
func (s OverrideSet[T]) Add(e T) OverrideSet[T] {
	id := e.EntityID()
	device, target := e.OverrideKey()
	key := PairKey{Device: device, Target: target}

	if prevID, ok := s.ByDeviceAndTarget[key]; ok && prevID != id {
		s = s.Remove(prevID)
	}
	if old, ok := s.Get(id); ok {
		oldDevice, oldTarget := old.OverrideKey()
		if oldDevice != device || oldTarget != target {
			s.ByDevice = s.ByDevice.remove(oldDevice, id)
			s.ByDeviceAndTarget = s.ByDeviceAndTarget.delete(PairKey{Device: oldDevice, Target: oldTarget})
		}
	}
	return OverrideSet[T]{
		Collection:        s.Collection.upsert(e),
		ByDevice:          s.ByDevice.add(device, id),
		ByDeviceAndTarget: s.ByDeviceAndTarget.put(key, id),
	}
}

func (s OverrideSet[T]) Patch(id domain.ID, partial json.RawMessage) OverrideSet[T] {
	c, _ := s.Collection.patch(id, partial)
	return OverrideSet[T]{Collection: c, ByDevice: s.ByDevice, ByDeviceAndTarget: s.ByDeviceAndTarget}
}

func (s OverrideSet[T]) Remove(id domain.ID) OverrideSet[T] {
	old, c, ok := s.Collection.remove(id)
	if !ok {
		return s
	}
	device, target := old.OverrideKey()
	return OverrideSet[T]{
		Collection:        c,
		ByDevice:          s.ByDevice.remove(device, id),
		ByDeviceAndTarget: s.ByDeviceAndTarget.delete(PairKey{Device: device, Target: target}),
	}
}

// ForTarget looks up the override a listening device holds for a target.
func (s OverrideSet[T]) ForTarget(device, target domain.ID) (T, bool) {
	id, ok := s.ByDeviceAndTarget[PairKey{Device: device, Target: target}]
	if !ok {
		var zero T
		return zero, false
	}
	return s.Get(id)
}

// State is one immutable snapshot of everything the client knows about
// the stage graph. Reduce returns a fresh State; nothing here is ever
// mutated in place.
type State struct {
	// StageID is the active stage, empty while not on a stage.
	StageID domain.ID
	// LocalDeviceID identifies this client's own device.
	LocalDeviceID domain.ID

	Stages       Collection[domain.Stage]
	Devices      Collection[domain.Device]
	Groups       Groups
	StageMembers StageMembers
	StageDevices StageDevices
	AudioTracks  TrackSet[domain.AudioTrack]
	VideoTracks  TrackSet[domain.VideoTrack]

	CustomGroupPositions       OverrideSet[domain.CustomGroupPosition]
	CustomGroupVolumes         OverrideSet[domain.CustomGroupVolume]
	CustomStageMemberPositions OverrideSet[domain.CustomStageMemberPosition]
	CustomStageMemberVolumes   OverrideSet[domain.CustomStageMemberVolume]
	CustomStageDevicePositions OverrideSet[domain.CustomStageDevicePosition]
	CustomStageDeviceVolumes   OverrideSet[domain.CustomStageDeviceVolume]
	CustomAudioTrackVolumes    OverrideSet[domain.CustomAudioTrackVolume]
}

// NewState returns the empty initial state.
func NewState() State {
	return State{
		Stages:       newCollection[domain.Stage](),
		Devices:      newCollection[domain.Device](),
		Groups:       newGroups(),
		StageMembers: newStageMembers(),
		StageDevices: newStageDevices(),
		AudioTracks:  newTrackSet[domain.AudioTrack](),
		VideoTracks:  newTrackSet[domain.VideoTrack](),

		CustomGroupPositions:       newOverrideSet[domain.CustomGroupPosition](),
		CustomGroupVolumes:         newOverrideSet[domain.CustomGroupVolume](),
		CustomStageMemberPositions: newOverrideSet[domain.CustomStageMemberPosition](),
		CustomStageMemberVolumes:   newOverrideSet[domain.CustomStageMemberVolume](),
		CustomStageDevicePositions: newOverrideSet[domain.CustomStageDevicePosition](),
		CustomStageDeviceVolumes:   newOverrideSet[domain.CustomStageDeviceVolume](),
		CustomAudioTrackVolumes:    newOverrideSet[domain.CustomAudioTrackVolume](),
	}
}

// resetStage drops everything scoped to the active stage but keeps the
// device registry and local device identity.
func (s State) resetStage() State {
	next := NewState()
	next.LocalDeviceID = s.LocalDeviceID
	next.Devices = s.Devices
	return next
}
