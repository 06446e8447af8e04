package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// ConnectionState is the session lifecycle:
// Disconnected -> Connecting -> Connected -> Closing -> Disconnected.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateClosing      ConnectionState = "closing"
)

// Signaling request kinds issued by the manager.
const (
	requestRouterCapabilities = "router-rtp-capabilities"
	requestCreateTransport    = "create-transport"
	requestConnectTransport   = "connect-transport"
	requestCreateProducer     = "create-producer"
	requestPauseProducer      = "pause-producer"
	requestResumeProducer     = "resume-producer"
	requestCloseProducer      = "close-producer"
	requestCreateConsumer     = "create-consumer"
	requestPauseConsumer      = "pause-consumer"
	requestResumeConsumer     = "resume-consumer"
	requestCloseConsumer      = "close-consumer"
)

// Manager owns one media session: the capability exchange, a send and a
// receive transport, and every producer and consumer derived from them.
type Manager struct {
	signaler Signaler
	engine   Engine
	logger   zerolog.Logger

	mu                  sync.Mutex
	state               ConnectionState
	sendTransport       Transport
	recvTransport       Transport
	producers           map[string]Producer
	consumers           map[string]Consumer
	consumersByProducer map[string]Consumer

	lastDevices *DeviceLists
}

func NewManager(signaler Signaler, engine Engine, logger zerolog.Logger) *Manager {
	return &Manager{
		signaler:            signaler,
		engine:              engine,
		logger:              logger.With().Str("module", "session").Logger(),
		state:               StateDisconnected,
		producers:           make(map[string]Producer),
		consumers:           make(map[string]Consumer),
		consumersByProducer: make(map[string]Consumer),
	}
}

func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect performs the capability exchange and establishes both
// transports concurrently. It fails fast: if either transport cannot be
// created, any transport already created is closed before the error
// surfaces, so a failed connect never leaves one half-open.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateDisconnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	m.state = StateConnecting
	m.mu.Unlock()

	caps, err := m.signaler.Request(ctx, requestRouterCapabilities, nil)
	if err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("request capabilities: %w", err)
	}
	if err := m.engine.Load(caps); err != nil {
		m.setState(StateDisconnected)
		return fmt.Errorf("load capabilities: %w", err)
	}

	var (
		wg      sync.WaitGroup
		send    Transport
		recv    Transport
		sendErr error
		recvErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		send, sendErr = m.createTransport(ctx, DirectionSend)
	}()
	go func() {
		defer wg.Done()
		recv, recvErr = m.createTransport(ctx, DirectionRecv)
	}()
	wg.Wait()

	if sendErr != nil || recvErr != nil {
		if send != nil {
			_ = send.Close()
		}
		if recv != nil {
			_ = recv.Close()
		}
		m.setState(StateDisconnected)
		if sendErr != nil {
			return fmt.Errorf("create send transport: %w", sendErr)
		}
		return fmt.Errorf("create recv transport: %w", recvErr)
	}

	m.mu.Lock()
	m.sendTransport = send
	m.recvTransport = recv
	m.state = StateConnected
	m.mu.Unlock()
	m.logger.Info().Str("send_transport", send.ID()).Str("recv_transport", recv.ID()).Msg("session connected")
	return nil
}

func (m *Manager) createTransport(ctx context.Context, direction Direction) (Transport, error) {
	raw, err := m.signaler.Request(ctx, requestCreateTransport, map[string]any{"direction": direction})
	if err != nil {
		return nil, err
	}
	var opts TransportOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode transport options: %w", err)
	}
	t, err := m.engine.NewTransport(direction, opts)
	if err != nil {
		return nil, err
	}

	// The transport blocks its first media flow until the server has
	// acknowledged our connection parameters. A rejection propagates as
	// a connection failure instead of a silent hang.
	t.OnConnect(func(params json.RawMessage) error {
		_, err := m.signaler.Request(context.Background(), requestConnectTransport, map[string]any{
			"transportId": t.ID(),
			"parameters":  params,
		})
		return err
	})

	if direction == DirectionSend {
		t.OnProduce(func(kind string, rtpParameters json.RawMessage) (string, error) {
			raw, err := m.signaler.Request(context.Background(), requestCreateProducer, map[string]any{
				"transportId":   t.ID(),
				"kind":          kind,
				"rtpParameters": rtpParameters,
			})
			if err != nil {
				return "", err
			}
			var resp struct {
				ID string `json:"id"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				return "", fmt.Errorf("decode producer id: %w", err)
			}
			if resp.ID == "" {
				return "", &ProtocolError{Request: requestCreateProducer, Reason: "no producer id in acknowledgement"}
			}
			return resp.ID, nil
		})
	}

	t.OnStateChange(func(st TransportState) {
		evt := m.logger.Info()
		if st == TransportFailed || st == TransportDisconnected {
			evt = m.logger.Warn()
		}
		evt.Str("transport", t.ID()).Str("direction", string(direction)).Str("state", string(st)).Msg("transport state")
	})
	return t, nil
}

// Produce binds a local media track to the send transport. The engine
// raises the transport's produce signal during this call, so the
// returned producer already carries its server-assigned id; when the
// server-side request fails no local producer is retained.
func (m *Manager) Produce(track MediaTrack) (Producer, error) {
	m.mu.Lock()
	if m.state != StateConnected || m.sendTransport == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	t := m.sendTransport
	m.mu.Unlock()

	producer, err := t.Produce(track)
	if err != nil {
		return nil, fmt.Errorf("produce %s track: %w", track.Kind(), err)
	}

	m.mu.Lock()
	m.producers[producer.ID()] = producer
	m.mu.Unlock()
	m.logger.Info().Str("producer", producer.ID()).Str("kind", track.Kind()).Msg("producer created")
	return producer, nil
}

func (m *Manager) producer(id string) (Producer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.producers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProducer, id)
	}
	return p, nil
}

// PauseProducer is a two-phase commit: the server changes state first,
// the local track follows only after the acknowledgement. Pausing an
// already paused producer fails with ErrRedundant before any request.
func (m *Manager) PauseProducer(ctx context.Context, id string) error {
	p, err := m.producer(id)
	if err != nil {
		return err
	}
	if p.Paused() {
		return fmt.Errorf("pause producer %s: %w", id, ErrRedundant)
	}
	if _, err := m.signaler.Request(ctx, requestPauseProducer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("pause producer %s: %w", id, err)
	}
	if err := p.Pause(); err != nil {
		return &ConsistencyError{Entity: "producer", ID: id, Err: err}
	}
	m.logger.Debug().Str("producer", id).Msg("producer paused")
	return nil
}

func (m *Manager) ResumeProducer(ctx context.Context, id string) error {
	p, err := m.producer(id)
	if err != nil {
		return err
	}
	if !p.Paused() {
		return fmt.Errorf("resume producer %s: %w", id, ErrRedundant)
	}
	if _, err := m.signaler.Request(ctx, requestResumeProducer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("resume producer %s: %w", id, err)
	}
	if err := p.Resume(); err != nil {
		return &ConsistencyError{Entity: "producer", ID: id, Err: err}
	}
	m.logger.Debug().Str("producer", id).Msg("producer resumed")
	return nil
}

func (m *Manager) CloseProducer(ctx context.Context, id string) error {
	p, err := m.producer(id)
	if err != nil {
		return err
	}
	if _, err := m.signaler.Request(ctx, requestCloseProducer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("close producer %s: %w", id, err)
	}
	if err := p.Close(); err != nil {
		return &ConsistencyError{Entity: "producer", ID: id, Err: err}
	}
	m.mu.Lock()
	delete(m.producers, id)
	m.mu.Unlock()
	m.logger.Debug().Str("producer", id).Msg("producer closed")
	return nil
}

// Consume asks the server for a consumer of the given producer and
// instantiates it on the receive transport. A producer that starts
// paused server-side leaves the local consumer paused before Consume
// returns, so there is no audible window of divergence.
func (m *Manager) Consume(ctx context.Context, producerID string) (Consumer, error) {
	m.mu.Lock()
	if m.state != StateConnected || m.recvTransport == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	if _, exists := m.consumersByProducer[producerID]; exists {
		m.mu.Unlock()
		return nil, fmt.Errorf("consume producer %s: %w", producerID, ErrRedundant)
	}
	t := m.recvTransport
	m.mu.Unlock()

	raw, err := m.signaler.Request(ctx, requestCreateConsumer, map[string]any{
		"producerId":      producerID,
		"rtpCapabilities": m.engine.Capabilities(),
	})
	if err != nil {
		return nil, fmt.Errorf("consume producer %s: %w", producerID, err)
	}
	var opts ConsumerOptions
	if err := json.Unmarshal(raw, &opts); err != nil {
		return nil, fmt.Errorf("decode consumer options: %w", err)
	}

	consumer, err := t.Consume(opts)
	if err != nil {
		return nil, fmt.Errorf("consume producer %s: %w", producerID, err)
	}
	if opts.Paused && !consumer.Paused() {
		if err := consumer.Pause(); err != nil {
			_ = consumer.Close()
			return nil, &ConsistencyError{Entity: "consumer", ID: opts.ID, Err: err}
		}
	}

	m.mu.Lock()
	m.consumers[consumer.ID()] = consumer
	m.consumersByProducer[producerID] = consumer
	m.mu.Unlock()
	m.logger.Info().Str("consumer", consumer.ID()).Str("producer", producerID).Bool("paused", consumer.Paused()).Msg("consumer created")
	return consumer, nil
}

func (m *Manager) consumer(id string) (Consumer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consumers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConsumer, id)
	}
	return c, nil
}

func (m *Manager) PauseConsumer(ctx context.Context, id string) error {
	c, err := m.consumer(id)
	if err != nil {
		return err
	}
	if c.Paused() {
		return fmt.Errorf("pause consumer %s: %w", id, ErrRedundant)
	}
	if _, err := m.signaler.Request(ctx, requestPauseConsumer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("pause consumer %s: %w", id, err)
	}
	if err := c.Pause(); err != nil {
		return &ConsistencyError{Entity: "consumer", ID: id, Err: err}
	}
	return nil
}

func (m *Manager) ResumeConsumer(ctx context.Context, id string) error {
	c, err := m.consumer(id)
	if err != nil {
		return err
	}
	if !c.Paused() {
		return fmt.Errorf("resume consumer %s: %w", id, ErrRedundant)
	}
	if _, err := m.signaler.Request(ctx, requestResumeConsumer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("resume consumer %s: %w", id, err)
	}
	if err := c.Resume(); err != nil {
		return &ConsistencyError{Entity: "consumer", ID: id, Err: err}
	}
	return nil
}

func (m *Manager) CloseConsumer(ctx context.Context, id string) error {
	c, err := m.consumer(id)
	if err != nil {
		return err
	}
	if _, err := m.signaler.Request(ctx, requestCloseConsumer, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("close consumer %s: %w", id, err)
	}
	if err := c.Close(); err != nil {
		return &ConsistencyError{Entity: "consumer", ID: id, Err: err}
	}
	m.mu.Lock()
	delete(m.consumers, id)
	delete(m.consumersByProducer, c.ProducerID())
	m.mu.Unlock()
	return nil
}

// HasConsumerFor reports whether a consumer already exists for the
// given producer.
func (m *Manager) HasConsumerFor(producerID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.consumersByProducer[producerID]
	return ok
}

// LocalTrackByProducer returns the track of a local producer.
func (m *Manager) LocalTrackByProducer(producerID string) (MediaTrack, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.producers[producerID]
	if !ok {
		return nil, false
	}
	return p.Track(), true
}

// RemoteTrackByProducer returns the track of the consumer bound to the
// given producer.
func (m *Manager) RemoteTrackByProducer(producerID string) (MediaTrack, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consumersByProducer[producerID]
	if !ok {
		return nil, false
	}
	return c.Track(), true
}

// Close releases every producer, consumer and both transports. It is
// the single reset transition used when the stage is left or the
// connection drops; no per-entity server round trips are issued.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateDisconnected {
		m.mu.Unlock()
		return
	}
	m.state = StateClosing
	producers := m.producers
	consumers := m.consumers
	send := m.sendTransport
	recv := m.recvTransport
	m.producers = make(map[string]Producer)
	m.consumers = make(map[string]Consumer)
	m.consumersByProducer = make(map[string]Consumer)
	m.sendTransport = nil
	m.recvTransport = nil
	m.mu.Unlock()

	for id, c := range consumers {
		if err := c.Close(); err != nil {
			m.logger.Warn().Err(err).Str("consumer", id).Msg("close consumer")
		}
	}
	for id, p := range producers {
		if err := p.Close(); err != nil {
			m.logger.Warn().Err(err).Str("producer", id).Msg("close producer")
		}
	}
	if send != nil {
		_ = send.Close()
	}
	if recv != nil {
		_ = recv.Close()
	}
	m.setState(StateDisconnected)
	m.logger.Info().Msg("session closed")
}

func (m *Manager) setState(s ConnectionState) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}
