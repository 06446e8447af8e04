package rtc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/session"
)

// consumer media states. Paused keeps the pump reading so the jitter
// pipeline stays warm while packets are dropped.
const (
	mediaRunning uint32 = iota
	mediaPaused
	mediaClosed
)

// LocalTrack is a capture track the client publishes. Application code
// writes RTP packets into it; a send transport attaches it to its peer
// connection on Produce.
type LocalTrack struct {
	rtp        *webrtc.TrackLocalStaticRTP
	capability webrtc.RTPCodecCapability
}

// NewAudioTrack builds an opus local track with a generated stream id.
func NewAudioTrack(label string) (*LocalTrack, error) {
	capability := webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}
	track, err := webrtc.NewTrackLocalStaticRTP(capability, label, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create local track: %w", err)
	}
	return &LocalTrack{rtp: track, capability: capability}, nil
}

func (t *LocalTrack) ID() string   { return t.rtp.ID() }
func (t *LocalTrack) Kind() string { return t.rtp.Kind().String() }

// WriteRTP forwards one packet to the attached sender.
func (t *LocalTrack) WriteRTP(p *rtp.Packet) error {
	return t.rtp.WriteRTP(p)
}

// producer controls one published track. Pause detaches the track from
// the RTP sender so no media leaves the machine while paused.
type producer struct {
	id     string
	track  *LocalTrack
	sender *webrtc.RTPSender
	paused atomic.Bool
}

func (p *producer) ID() string                { return p.id }
func (p *producer) Track() session.MediaTrack { return p.track }
func (p *producer) Paused() bool              { return p.paused.Load() }

func (p *producer) Pause() error {
	if err := p.sender.ReplaceTrack(nil); err != nil {
		return fmt.Errorf("detach track: %w", err)
	}
	p.paused.Store(true)
	return nil
}

func (p *producer) Resume() error {
	if err := p.sender.ReplaceTrack(p.track.rtp); err != nil {
		return fmt.Errorf("attach track: %w", err)
	}
	p.paused.Store(false)
	return nil
}

func (p *producer) Close() error {
	p.paused.Store(true)
	return p.sender.Stop()
}

// consumer receives one remote producer's media and republishes it on
// a local static track the audio layer can play.
type consumer struct {
	id         string
	producerID string
	kind       string
	track      *outputTrack
	state      atomic.Uint32
	logger     zerolog.Logger
}

func (c *consumer) ID() string                { return c.id }
func (c *consumer) ProducerID() string        { return c.producerID }
func (c *consumer) Track() session.MediaTrack { return c.track }
func (c *consumer) Paused() bool              { return c.state.Load() == mediaPaused }

func (c *consumer) Pause() error {
	c.state.CompareAndSwap(mediaRunning, mediaPaused)
	return nil
}

func (c *consumer) Resume() error {
	c.state.CompareAndSwap(mediaPaused, mediaRunning)
	return nil
}

func (c *consumer) Close() error {
	c.state.Store(mediaClosed)
	return nil
}

// pump relays packets from the remote track onto the output track until
// the consumer closes or the transport shuts down.
func (c *consumer) pump(ctx context.Context, remote *webrtc.TrackRemote) {
	for {
		if ctx.Err() != nil || c.state.Load() == mediaClosed {
			return
		}
		packet, _, err := remote.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.logger.Error().Err(err).Msg("read remote rtp")
			}
			return
		}
		if c.state.Load() == mediaPaused {
			continue
		}
		if err := c.track.writeRTP(packet); err != nil {
			c.logger.Error().Err(err).Msg("write consumer rtp")
			return
		}
	}
}

// outputTrack is the local end of a consumer.
type outputTrack struct {
	rtp *webrtc.TrackLocalStaticRTP
}

func newOutputTrack(kind, consumerID string) (*outputTrack, error) {
	capability := webrtc.RTPCodecCapability{
		MimeType:  webrtc.MimeTypeOpus,
		ClockRate: 48000,
		Channels:  2,
	}
	if kind == "video" {
		capability = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	}
	track, err := webrtc.NewTrackLocalStaticRTP(capability, consumerID, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("create output track: %w", err)
	}
	return &outputTrack{rtp: track}, nil
}

func (t *outputTrack) ID() string   { return t.rtp.ID() }
func (t *outputTrack) Kind() string { return t.rtp.Kind().String() }

func (t *outputTrack) writeRTP(p *rtp.Packet) error {
	return t.rtp.WriteRTP(p)
}
