// Package app drives the client: it consumes the signaling event
// stream, folds every event into the store, keeps the media session in
// step with the active stage and reconciles the audio graph after each
// change.
package app

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/audio"
	"github.com/digital-stage/client-go/internal/session"
	"github.com/digital-stage/client-go/internal/store"
)

// MediaSession is the slice of the session manager the client drives.
type MediaSession interface {
	Connect(ctx context.Context) error
	Close()
	Produce(track session.MediaTrack) (session.Producer, error)
	Consume(ctx context.Context, producerID string) (session.Consumer, error)
	HasConsumerFor(producerID string) bool
	LocalTrackByProducer(producerID string) (session.MediaTrack, bool)
	RemoteTrackByProducer(producerID string) (session.MediaTrack, bool)
}

// Reconciler is the audio-graph side the client drives.
type Reconciler interface {
	Sync(s store.State, tracks audio.TrackSource)
	Reset()
}

// Client is the orchestrator. All event handling runs on one dispatch
// goroutine; State is safe to call from anywhere.
type Client struct {
	events     <-chan store.Event
	sess       MediaSession
	reconciler Reconciler
	logger     zerolog.Logger

	// localTrack, when set, is published as soon as the session is up.
	localTrack session.MediaTrack

	state atomic.Pointer[store.State]
}

func NewClient(events <-chan store.Event, sess MediaSession, reconciler Reconciler, localTrack session.MediaTrack, logger zerolog.Logger) *Client {
	c := &Client{
		events:     events,
		sess:       sess,
		reconciler: reconciler,
		localTrack: localTrack,
		logger:     logger.With().Str("module", "app").Logger(),
	}
	initial := store.NewState()
	c.state.Store(&initial)
	return c
}

// State returns the latest snapshot.
func (c *Client) State() store.State {
	return *c.state.Load()
}

// Run dispatches events until the context is canceled or the event
// stream closes. On exit the session and the audio graph are released.
func (c *Client) Run(ctx context.Context) error {
	defer func() {
		c.sess.Close()
		c.reconciler.Reset()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-c.events:
			if !ok {
				c.logger.Info().Msg("event stream closed")
				return nil
			}
			c.dispatch(ctx, ev)
		}
	}
}

func (c *Client) dispatch(ctx context.Context, ev store.Event) {
	prev := *c.state.Load()
	next := store.Reduce(prev, ev)
	c.state.Store(&next)

	switch {
	case prev.StageID == next.StageID:
	case prev.StageID == "":
		c.logger.Info().Str("stage", string(next.StageID)).Msg("stage joined")
		c.connectSession(ctx)
	case next.StageID == "":
		c.logger.Info().Str("stage", string(prev.StageID)).Msg("stage left")
		c.sess.Close()
		c.reconciler.Reset()
	default:
		// A direct stage switch is leave-then-join: the old session's
		// transports and consumers must not carry over to the new stage.
		c.logger.Info().Str("from", string(prev.StageID)).Str("to", string(next.StageID)).Msg("stage switched")
		c.sess.Close()
		c.reconciler.Reset()
		c.connectSession(ctx)
	}

	if next.StageID != "" {
		c.ensureConsumers(ctx, next)
	}
	c.reconciler.Sync(next, trackSource{c.sess})
}

func (c *Client) connectSession(ctx context.Context) {
	if err := c.sess.Connect(ctx); err != nil {
		c.logger.Error().Err(err).Msg("media session unavailable")
		return
	}
	c.publishLocalTrack()
}

func (c *Client) publishLocalTrack() {
	if c.localTrack == nil {
		return
	}
	if _, err := c.sess.Produce(c.localTrack); err != nil {
		c.logger.Error().Err(err).Msg("publish local track")
	}
}

// ensureConsumers subscribes to every remote audio producer on the
// stage exactly once. A failed subscription is logged and retried on
// the next event; the graph keeps that source silent meanwhile.
func (c *Client) ensureConsumers(ctx context.Context, s store.State) {
	for _, id := range s.AudioTracks.ByStage[s.StageID] {
		track, ok := s.AudioTracks.Get(id)
		if !ok || track.ProducerID == "" {
			continue
		}
		if track.DeviceID == s.LocalDeviceID {
			continue
		}
		if c.sess.HasConsumerFor(track.ProducerID) {
			continue
		}
		if _, err := c.sess.Consume(ctx, track.ProducerID); err != nil {
			c.logger.Warn().Err(err).Str("audio_track", string(id)).Str("producer", track.ProducerID).Msg("track unavailable")
		}
	}
}

// trackSource adapts the session manager's track lookups to the audio
// graph's view.
type trackSource struct {
	sess MediaSession
}

func (t trackSource) LocalTrack(producerID string) (audio.Track, bool) {
	track, ok := t.sess.LocalTrackByProducer(producerID)
	if !ok {
		return nil, false
	}
	return track, true
}

func (t trackSource) RemoteTrack(producerID string) (audio.Track, bool) {
	track, ok := t.sess.RemoteTrackByProducer(producerID)
	if !ok {
		return nil, false
	}
	return track, true
}
