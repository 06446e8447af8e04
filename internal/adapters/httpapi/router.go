// Package httpapi exposes the local status API: liveness, the current
// store snapshot and the effective mixer scene.
package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/digital-stage/client-go/internal/adapters/webaudio"
	"github.com/digital-stage/client-go/internal/config"
	"github.com/digital-stage/client-go/internal/domain"
	"github.com/digital-stage/client-go/internal/store"
)

// StateSource yields the latest store snapshot.
type StateSource interface {
	State() store.State
}

// MixerSource yields the current audio scene.
type MixerSource interface {
	Snapshot() webaudio.MixerSnapshot
}

// stateView is the wire shape of one snapshot.
type stateView struct {
	StageID       domain.ID `json:"stageId"`
	LocalDeviceID domain.ID `json:"localDeviceId"`

	Stages       map[domain.ID]domain.Stage       `json:"stages"`
	Devices      map[domain.ID]domain.Device      `json:"devices"`
	Groups       map[domain.ID]domain.Group       `json:"groups"`
	StageMembers map[domain.ID]domain.StageMember `json:"stageMembers"`
	StageDevices map[domain.ID]domain.StageDevice `json:"stageDevices"`
	AudioTracks  map[domain.ID]domain.AudioTrack  `json:"audioTracks"`
	VideoTracks  map[domain.ID]domain.VideoTrack  `json:"videoTracks"`
}

func viewOf(s store.State) stateView {
	return stateView{
		StageID:       s.StageID,
		LocalDeviceID: s.LocalDeviceID,
		Stages:        s.Stages.ByID,
		Devices:       s.Devices.ByID,
		Groups:        s.Groups.ByID,
		StageMembers:  s.StageMembers.ByID,
		StageDevices:  s.StageDevices.ByID,
		AudioTracks:   s.AudioTracks.ByID,
		VideoTracks:   s.VideoTracks.ByID,
	}
}

func SetupRouter(cfg *config.Config, state StateSource, mixer MixerSource) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/state", func(c *gin.Context) {
		c.JSON(http.StatusOK, viewOf(state.State()))
	})

	api.GET("/mixer", func(c *gin.Context) {
		c.JSON(http.StatusOK, mixer.Snapshot())
	})

	log.Info().Str("module", "adapters.httpapi").Int("port", cfg.StatusPort).Msg("router setup")
	return r
}
