// Package rtc implements the media engine on top of pion/webrtc:
// transports over peer connections, producers as local RTP tracks and
// consumers pumping remote RTP into readable local tracks.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/session"
)

var errNotLoaded = errors.New("rtc: engine not loaded")

// Engine builds transports against a loaded capability profile.
type Engine struct {
	config webrtc.Configuration
	logger zerolog.Logger

	mu   sync.Mutex
	api  *webrtc.API
	caps json.RawMessage
}

var _ session.Engine = (*Engine)(nil)

func NewEngine(iceServers []string, logger zerolog.Logger) *Engine {
	cfg := webrtc.Configuration{}
	if len(iceServers) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: iceServers}}
	}
	return &Engine{
		config: cfg,
		logger: logger.With().Str("module", "rtc").Logger(),
	}
}

// Load prepares the local codec profile against the server's
// capabilities. Must run before any transport is created.
func (e *Engine) Load(routerCapabilities json.RawMessage) error {
	media := &webrtc.MediaEngine{}
	if err := media.RegisterDefaultCodecs(); err != nil {
		return fmt.Errorf("register codecs: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.api = webrtc.NewAPI(webrtc.WithMediaEngine(media))
	e.caps = routerCapabilities
	e.logger.Debug().Msg("capability profile loaded")
	return nil
}

func (e *Engine) Capabilities() json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

func (e *Engine) NewTransport(direction session.Direction, opts session.TransportOptions) (session.Transport, error) {
	e.mu.Lock()
	api := e.api
	e.mu.Unlock()
	if api == nil {
		return nil, errNotLoaded
	}
	pc, err := api.NewPeerConnection(e.config)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return newTransport(pc, direction, opts, e.logger), nil
}
