// Package audio derives the listener-specific soundscape: pure
// position/volume resolution over the entity hierarchy and the
// reconciler that keeps a live node tree in sync with it.
package audio

import (
	"github.com/digital-stage/client-go/internal/domain"
	"github.com/digital-stage/client-go/internal/store"
)

// Pose is a fully resolved position and orientation.
type Pose struct {
	X, Y, Z     float64
	RX, RY, RZ  float64
	Directivity string
}

// Mix is a fully resolved gain decision. Muted forces silence no matter
// what Volume says.
type Mix struct {
	Volume float64
	Muted  bool
}

// Gain is the effective gain Mix stands for.
func (m Mix) Gain() float64 {
	if m.Muted {
		return 0
	}
	return m.Volume
}

// PositionLevel is one ancestor level's contribution: the entity's own
// pose plus an optional per-listener override that replaces it.
type PositionLevel struct {
	Base     domain.ThreeDimensionalProperties
	Override *domain.ThreeDimensionalProperties
}

// ResolvePosition sums level contributions root-first. When a level
// carries an override, that override fully replaces the level's base
// term; it never blends. Directivity is taken from the closest
// overridden level and falls back to the root's base value.
func ResolvePosition(levels ...PositionLevel) Pose {
	var pose Pose
	for _, lvl := range levels {
		src := lvl.Base
		if lvl.Override != nil {
			src = *lvl.Override
		}
		pose.X += src.X
		pose.Y += src.Y
		pose.Z += src.Z
		pose.RX += src.RX
		pose.RY += src.RY
		pose.RZ += src.RZ
	}
	if len(levels) > 0 {
		pose.Directivity = levels[0].Base.Directivity
	}
	for i := len(levels) - 1; i >= 0; i-- {
		if levels[i].Override != nil && levels[i].Override.Directivity != "" {
			pose.Directivity = levels[i].Override.Directivity
			break
		}
	}
	if pose.Directivity == "" {
		pose.Directivity = domain.DirectivityOmni
	}
	return pose
}

// ResolveMix applies the per-entity precedence: override mute, override
// volume, own mute, own volume. An unmuted override wins outright, even
// over the entity's own mute flag.
func ResolveMix(base domain.VolumeProperties, override *domain.VolumeProperties) Mix {
	if override != nil {
		return Mix{Volume: override.Volume, Muted: override.Muted}
	}
	return Mix{Volume: base.Volume, Muted: base.Muted}
}

// trackChain collects the ancestor levels of an audio track for one
// listening device, root (group) first.
func trackChain(s store.State, listener domain.ID, track domain.AudioTrack) []PositionLevel {
	levels := make([]PositionLevel, 0, 4)

	if group, ok := s.Groups.Get(groupOfTrack(s, track)); ok {
		lvl := PositionLevel{Base: group.ThreeDimensionalProperties}
		if ov, ok := s.CustomGroupPositions.ForTarget(listener, group.ID); ok {
			lvl.Override = &ov.ThreeDimensionalProperties
		}
		levels = append(levels, lvl)
	}
	if member, ok := s.StageMembers.Get(track.StageMemberID); ok {
		lvl := PositionLevel{Base: member.ThreeDimensionalProperties}
		if ov, ok := s.CustomStageMemberPositions.ForTarget(listener, member.ID); ok {
			lvl.Override = &ov.ThreeDimensionalProperties
		}
		levels = append(levels, lvl)
	}
	if sd, ok := s.StageDevices.Get(track.StageDeviceID); ok {
		lvl := PositionLevel{Base: sd.ThreeDimensionalProperties}
		if ov, ok := s.CustomStageDevicePositions.ForTarget(listener, sd.ID); ok {
			lvl.Override = &ov.ThreeDimensionalProperties
		}
		levels = append(levels, lvl)
	}
	// The track's own pose has no override kind; it always contributes
	// its base term.
	levels = append(levels, PositionLevel{Base: track.ThreeDimensionalProperties})
	return levels
}

func groupOfTrack(s store.State, track domain.AudioTrack) domain.ID {
	member, ok := s.StageMembers.Get(track.StageMemberID)
	if !ok {
		return ""
	}
	return member.GroupID
}

// ResolveAudioTrackPosition cascades the full ancestor chain of a track
// into its final pose for the given listening device.
func ResolveAudioTrackPosition(s store.State, listener domain.ID, track domain.AudioTrack) Pose {
	return ResolvePosition(trackChain(s, listener, track)...)
}

// ResolveStageDevicePosition resolves a stage device's pose, used for
// the listener itself.
func ResolveStageDevicePosition(s store.State, listener domain.ID, sd domain.StageDevice) Pose {
	levels := make([]PositionLevel, 0, 3)
	if member, ok := s.StageMembers.Get(sd.StageMemberID); ok {
		if group, ok := s.Groups.Get(member.GroupID); ok {
			lvl := PositionLevel{Base: group.ThreeDimensionalProperties}
			if ov, ok := s.CustomGroupPositions.ForTarget(listener, group.ID); ok {
				lvl.Override = &ov.ThreeDimensionalProperties
			}
			levels = append(levels, lvl)
		}
		lvl := PositionLevel{Base: member.ThreeDimensionalProperties}
		if ov, ok := s.CustomStageMemberPositions.ForTarget(listener, member.ID); ok {
			lvl.Override = &ov.ThreeDimensionalProperties
		}
		levels = append(levels, lvl)
	}
	lvl := PositionLevel{Base: sd.ThreeDimensionalProperties}
	if ov, ok := s.CustomStageDevicePositions.ForTarget(listener, sd.ID); ok {
		lvl.Override = &ov.ThreeDimensionalProperties
	}
	levels = append(levels, lvl)
	return ResolvePosition(levels...)
}

// Per-entity mixes. Each graph level owns one gain stage, so the final
// audible gain is the product of these along the tree.

func ResolveGroupMix(s store.State, listener domain.ID, group domain.Group) Mix {
	var override *domain.VolumeProperties
	if ov, ok := s.CustomGroupVolumes.ForTarget(listener, group.ID); ok {
		override = &ov.VolumeProperties
	}
	return ResolveMix(group.VolumeProperties, override)
}

func ResolveStageMemberMix(s store.State, listener domain.ID, member domain.StageMember) Mix {
	var override *domain.VolumeProperties
	if ov, ok := s.CustomStageMemberVolumes.ForTarget(listener, member.ID); ok {
		override = &ov.VolumeProperties
	}
	return ResolveMix(member.VolumeProperties, override)
}

func ResolveStageDeviceMix(s store.State, listener domain.ID, sd domain.StageDevice) Mix {
	var override *domain.VolumeProperties
	if ov, ok := s.CustomStageDeviceVolumes.ForTarget(listener, sd.ID); ok {
		override = &ov.VolumeProperties
	}
	return ResolveMix(sd.VolumeProperties, override)
}

func ResolveAudioTrackMix(s store.State, listener domain.ID, track domain.AudioTrack) Mix {
	var override *domain.VolumeProperties
	if ov, ok := s.CustomAudioTrackVolumes.ForTarget(listener, track.ID); ok {
		override = &ov.VolumeProperties
	}
	return ResolveMix(track.VolumeProperties, override)
}
