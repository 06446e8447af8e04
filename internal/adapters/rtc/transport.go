package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/session"
)

var (
	errWrongDirection = errors.New("rtc: operation not valid for this transport direction")
	errTrackType      = errors.New("rtc: track is not a local RTP track")
)

// transport wraps one peer connection for a single media direction. The
// first media flow triggers the connect handshake: local parameters are
// gathered, forwarded through the manager's connect handler and media
// stays blocked until the server acknowledges.
type transport struct {
	id           string
	direction    session.Direction
	pc           *webrtc.PeerConnection
	remoteParams json.RawMessage
	logger       zerolog.Logger

	onConnect session.ConnectHandler
	onProduce session.ProduceHandler

	connectOnce sync.Once
	connectErr  error

	mu      sync.Mutex
	pending []*consumer
	cancel  context.CancelFunc
	closed  bool
	pumpCtx context.Context
}

func newTransport(pc *webrtc.PeerConnection, direction session.Direction, opts session.TransportOptions, logger zerolog.Logger) *transport {
	ctx, cancel := context.WithCancel(context.Background())
	t := &transport{
		id:           opts.ID,
		direction:    direction,
		pc:           pc,
		remoteParams: opts.Parameters,
		logger:       logger.With().Str("transport", opts.ID).Str("direction", string(direction)).Logger(),
		cancel:       cancel,
		pumpCtx:      ctx,
	}
	if direction == session.DirectionRecv {
		pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			t.bindRemoteTrack(remote)
		})
	}
	return t
}

func (t *transport) ID() string                   { return t.id }
func (t *transport) Direction() session.Direction { return t.direction }

var _ session.Transport = (*transport)(nil)

func (t *transport) OnConnect(h session.ConnectHandler) { t.onConnect = h }
func (t *transport) OnProduce(h session.ProduceHandler) { t.onProduce = h }

func (t *transport) OnStateChange(h func(session.TransportState)) {
	t.pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		h(mapState(s))
	})
}

func mapState(s webrtc.PeerConnectionState) session.TransportState {
	switch s {
	case webrtc.PeerConnectionStateConnecting, webrtc.PeerConnectionStateNew:
		return session.TransportConnecting
	case webrtc.PeerConnectionStateConnected:
		return session.TransportConnected
	case webrtc.PeerConnectionStateDisconnected:
		return session.TransportDisconnected
	case webrtc.PeerConnectionStateFailed:
		return session.TransportFailed
	default:
		return session.TransportClosed
	}
}

// ensureConnected runs the handshake exactly once. A server rejection
// is remembered and every later media attempt fails with it.
func (t *transport) ensureConnected() error {
	t.connectOnce.Do(func() {
		if t.onConnect == nil {
			t.connectErr = errors.New("rtc: no connect handler bound")
			return
		}
		local, err := t.localDescription()
		if err != nil {
			t.connectErr = err
			return
		}
		params, err := json.Marshal(local)
		if err != nil {
			t.connectErr = fmt.Errorf("marshal connection parameters: %w", err)
			return
		}
		if err := t.onConnect(params); err != nil {
			t.connectErr = fmt.Errorf("connect handshake rejected: %w", err)
			return
		}
		t.logger.Debug().Msg("transport handshake acknowledged")
	})
	return t.connectErr
}

// localDescription negotiates this side of the connection. A server
// that included its own description in the transport options gets an
// answer; otherwise we offer. ICE gathering completes before the
// description is returned so it carries every candidate.
func (t *transport) localDescription() (*webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if len(t.remoteParams) > 0 {
		var remote webrtc.SessionDescription
		if err := json.Unmarshal(t.remoteParams, &remote); err != nil {
			return nil, fmt.Errorf("decode server description: %w", err)
		}
		if err := t.pc.SetRemoteDescription(remote); err != nil {
			return nil, fmt.Errorf("set remote description: %w", err)
		}
		answer, err := t.pc.CreateAnswer(nil)
		if err != nil {
			return nil, fmt.Errorf("create answer: %w", err)
		}
		desc = answer
	} else {
		if t.direction == session.DirectionRecv {
			if err := t.addRecvTransceivers(); err != nil {
				return nil, err
			}
		}
		offer, err := t.pc.CreateOffer(nil)
		if err != nil {
			return nil, fmt.Errorf("create offer: %w", err)
		}
		desc = offer
	}

	gatherComplete := webrtc.GatheringCompletePromise(t.pc)
	if err := t.pc.SetLocalDescription(desc); err != nil {
		return nil, fmt.Errorf("set local description: %w", err)
	}
	<-gatherComplete
	return t.pc.LocalDescription(), nil
}

// addRecvTransceivers announces receive-only media sections so remote
// tracks have somewhere to land.
func (t *transport) addRecvTransceivers() error {
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		_, err := t.pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		})
		if err != nil {
			return fmt.Errorf("add %s transceiver: %w", kind, err)
		}
	}
	return nil
}

func (t *transport) Produce(track session.MediaTrack) (session.Producer, error) {
	if t.direction != session.DirectionSend {
		return nil, errWrongDirection
	}
	local, ok := track.(*LocalTrack)
	if !ok {
		return nil, errTrackType
	}
	if err := t.ensureConnected(); err != nil {
		return nil, err
	}
	if t.onProduce == nil {
		return nil, errors.New("rtc: no produce handler bound")
	}

	rtpParameters, err := json.Marshal(map[string]any{
		"mimeType":  local.capability.MimeType,
		"clockRate": local.capability.ClockRate,
		"channels":  local.capability.Channels,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal rtp parameters: %w", err)
	}
	id, err := t.onProduce(track.Kind(), rtpParameters)
	if err != nil {
		return nil, err
	}

	sender, err := t.pc.AddTrack(local.rtp)
	if err != nil {
		return nil, fmt.Errorf("add track: %w", err)
	}
	t.logger.Debug().Str("producer", id).Str("kind", track.Kind()).Msg("producer attached")
	return &producer{id: id, track: local, sender: sender}, nil
}

func (t *transport) Consume(opts session.ConsumerOptions) (session.Consumer, error) {
	if t.direction != session.DirectionRecv {
		return nil, errWrongDirection
	}
	if err := t.ensureConnected(); err != nil {
		return nil, err
	}

	out, err := newOutputTrack(opts.Kind, opts.ID)
	if err != nil {
		return nil, err
	}
	c := &consumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		kind:       opts.Kind,
		track:      out,
		logger:     t.logger.With().Str("consumer", opts.ID).Logger(),
	}
	t.mu.Lock()
	t.pending = append(t.pending, c)
	t.mu.Unlock()
	return c, nil
}

// bindRemoteTrack matches an arriving remote track to the oldest
// pending consumer of the same kind and starts its pump.
func (t *transport) bindRemoteTrack(remote *webrtc.TrackRemote) {
	kind := remote.Kind().String()
	t.mu.Lock()
	var target *consumer
	for i, c := range t.pending {
		if c.kind == kind {
			target = c
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	ctx := t.pumpCtx
	t.mu.Unlock()

	if target == nil {
		t.logger.Warn().Str("kind", kind).Str("track", remote.ID()).Msg("remote track without pending consumer")
		return
	}
	t.logger.Debug().Str("consumer", target.id).Str("track", remote.ID()).Msg("remote track bound")
	go target.pump(ctx, remote)
}

func (t *transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancel()
	if err := t.pc.Close(); err != nil {
		t.logger.Error().Err(err).Msg("close peer connection")
		return err
	}
	t.logger.Debug().Msg("transport closed")
	return nil
}
