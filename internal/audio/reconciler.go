package audio

import (
	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/domain"
	"github.com/digital-stage/client-go/internal/store"
)

// Reconciler owns a live node tree isomorphic to the entity hierarchy
// of the active stage, mixed for exactly one listening device (the
// local one). It is driven from the client's single dispatch goroutine
// and never touches the store; it only reads snapshots.
type Reconciler struct {
	provider NodeProvider
	logger   zerolog.Logger

	root    GainNode
	groups  map[domain.ID]GainNode
	members map[domain.ID]GainNode
	devices map[domain.ID]GainNode
	tracks  map[domain.ID]*trackNode
}

// trackNode is the leaf chain: source -> panner -> gain -> device gain.
type trackNode struct {
	source  SourceNode
	panner  PannerNode
	gain    GainNode
	trackID string
}

func NewReconciler(provider NodeProvider, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		provider: provider,
		logger:   logger.With().Str("module", "audio.reconciler").Logger(),
		groups:   make(map[domain.ID]GainNode),
		members:  make(map[domain.ID]GainNode),
		devices:  make(map[domain.ID]GainNode),
		tracks:   make(map[domain.ID]*trackNode),
	}
}

// Sync brings the node tree in line with the snapshot. It is
// idempotent: an unchanged snapshot leaves node identities and edges
// untouched and only rewrites parameters in place.
func (r *Reconciler) Sync(s store.State, tracks TrackSource) {
	if s.StageID == "" {
		r.Reset()
		return
	}
	if r.root == nil {
		r.root = r.provider.NewGain()
		r.root.SetGain(1)
		r.root.Connect(r.provider.Destination())
	}

	listener := s.LocalDeviceID

	desiredGroups := map[domain.ID]domain.Group{}
	desiredMembers := map[domain.ID]domain.StageMember{}
	desiredDevices := map[domain.ID]domain.StageDevice{}
	desiredTracks := map[domain.ID]domain.AudioTrack{}

	for _, groupID := range s.Groups.ByStage[s.StageID] {
		group, ok := s.Groups.Get(groupID)
		if !ok {
			continue
		}
		desiredGroups[groupID] = group
		for _, memberID := range s.StageMembers.ByGroup[groupID] {
			member, ok := s.StageMembers.Get(memberID)
			if !ok {
				continue
			}
			desiredMembers[memberID] = member
			for _, deviceID := range s.StageDevices.ByStageMember[memberID] {
				sd, ok := s.StageDevices.Get(deviceID)
				if !ok {
					continue
				}
				desiredDevices[deviceID] = sd
				for _, trackID := range s.AudioTracks.ByStageDevice[deviceID] {
					track, ok := s.AudioTracks.Get(trackID)
					if !ok {
						continue
					}
					desiredTracks[trackID] = track
				}
			}
		}
	}

	// Teardown of vanished entities runs leaf-first so no node is ever
	// disconnected before its descendants.
	for id, tn := range r.tracks {
		if _, keep := desiredTracks[id]; !keep {
			r.teardownTrack(id, tn)
		}
	}
	for id, gain := range r.devices {
		if _, keep := desiredDevices[id]; !keep {
			gain.Disconnect()
			delete(r.devices, id)
			r.logger.Debug().Str("stage_device", string(id)).Msg("device node removed")
		}
	}
	for id, gain := range r.members {
		if _, keep := desiredMembers[id]; !keep {
			gain.Disconnect()
			delete(r.members, id)
		}
	}
	for id, gain := range r.groups {
		if _, keep := desiredGroups[id]; !keep {
			gain.Disconnect()
			delete(r.groups, id)
		}
	}

	// Build and parameterize top-down.
	for id, group := range desiredGroups {
		gain, ok := r.groups[id]
		if !ok {
			gain = r.provider.NewGain()
			gain.Connect(r.root)
			r.groups[id] = gain
		}
		gain.SetGain(ResolveGroupMix(s, listener, group).Gain())
	}
	for id, member := range desiredMembers {
		parent, ok := r.groups[member.GroupID]
		if !ok {
			continue
		}
		gain, ok := r.members[id]
		if !ok {
			gain = r.provider.NewGain()
			gain.Connect(parent)
			r.members[id] = gain
		}
		gain.SetGain(ResolveStageMemberMix(s, listener, member).Gain())
	}
	for id, sd := range desiredDevices {
		parent, ok := r.members[sd.StageMemberID]
		if !ok {
			continue
		}
		gain, ok := r.devices[id]
		if !ok {
			gain = r.provider.NewGain()
			gain.Connect(parent)
			r.devices[id] = gain
		}
		gain.SetGain(ResolveStageDeviceMix(s, listener, sd).Gain())
	}
	for id, track := range desiredTracks {
		parent, ok := r.devices[track.StageDeviceID]
		if !ok {
			continue
		}
		tn, ok := r.tracks[id]
		if !ok {
			tn = &trackNode{
				source: r.provider.NewSource(),
				panner: r.provider.NewPanner(),
				gain:   r.provider.NewGain(),
			}
			tn.source.Connect(tn.panner)
			tn.panner.Connect(tn.gain)
			tn.gain.Connect(parent)
			r.tracks[id] = tn
		}
		tn.gain.SetGain(ResolveAudioTrackMix(s, listener, track).Gain())
		pose := ResolveAudioTrackPosition(s, listener, track)
		tn.panner.SetPosition(pose.X, pose.Y, pose.Z)
		tn.panner.SetOrientation(pose.RX, pose.RY, pose.RZ)
		tn.panner.SetDirectivity(pose.Directivity)
		r.bindTrack(s, tn, track, tracks)
	}

	r.syncListener(s)
}

// bindTrack selects the local capture or the remote consumer track by
// comparing the owning device against the local device. Until either is
// available the source stays silent; session failures therefore never
// reshape the topology.
func (r *Reconciler) bindTrack(s store.State, tn *trackNode, track domain.AudioTrack, tracks TrackSource) {
	var (
		live Track
		ok   bool
	)
	if tracks != nil && track.ProducerID != "" {
		if track.DeviceID == s.LocalDeviceID {
			live, ok = tracks.LocalTrack(track.ProducerID)
		} else {
			live, ok = tracks.RemoteTrack(track.ProducerID)
		}
	}
	if !ok {
		if tn.trackID != "" {
			tn.source.ClearTrack()
			tn.trackID = ""
		}
		return
	}
	if tn.trackID != live.ID() {
		tn.source.SetTrack(live)
		tn.trackID = live.ID()
		r.logger.Debug().Str("audio_track", string(track.ID)).Str("media_track", live.ID()).Msg("track bound")
	}
}

// syncListener feeds the local stage device's resolved pose into the
// spatial listener, independent of the mixing tree.
func (r *Reconciler) syncListener(s store.State) {
	if s.LocalDeviceID == "" {
		return
	}
	for _, id := range s.StageDevices.ByStage[s.StageID] {
		sd, ok := s.StageDevices.Get(id)
		if !ok || sd.DeviceID != s.LocalDeviceID {
			continue
		}
		pose := ResolveStageDevicePosition(s, s.LocalDeviceID, sd)
		listener := r.provider.Listener()
		listener.SetPosition(pose.X, pose.Y, pose.Z)
		listener.SetOrientation(pose.RX, pose.RY, pose.RZ)
		return
	}
}

func (r *Reconciler) teardownTrack(id domain.ID, tn *trackNode) {
	tn.source.ClearTrack()
	tn.source.Disconnect()
	tn.panner.Disconnect()
	tn.gain.Disconnect()
	delete(r.tracks, id)
	r.logger.Debug().Str("audio_track", string(id)).Msg("track node removed")
}

// Reset tears the whole tree down leaf-first. Used when the stage is
// left or the connection resets.
func (r *Reconciler) Reset() {
	for id, tn := range r.tracks {
		r.teardownTrack(id, tn)
	}
	for id, gain := range r.devices {
		gain.Disconnect()
		delete(r.devices, id)
	}
	for id, gain := range r.members {
		gain.Disconnect()
		delete(r.members, id)
	}
	for id, gain := range r.groups {
		gain.Disconnect()
		delete(r.groups, id)
	}
	if r.root != nil {
		r.root.Disconnect()
		r.root = nil
	}
}
