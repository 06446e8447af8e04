package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

type fakeSignaler struct {
	mu       sync.Mutex
	requests []string
	handlers map[string]func(payload any) (json.RawMessage, error)
	emits    []string
	emitErr  error
}

func newFakeSignaler() *fakeSignaler {
	return &fakeSignaler{handlers: map[string]func(payload any) (json.RawMessage, error){}}
}

func (s *fakeSignaler) Request(_ context.Context, kind string, payload any) (json.RawMessage, error) {
	s.mu.Lock()
	s.requests = append(s.requests, kind)
	handler := s.handlers[kind]
	s.mu.Unlock()
	if handler == nil {
		return json.RawMessage(`{}`), nil
	}
	return handler(payload)
}

func (s *fakeSignaler) Emit(kind string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.emitErr != nil {
		err := s.emitErr
		s.emitErr = nil
		return err
	}
	s.emits = append(s.emits, kind)
	return nil
}

func (s *fakeSignaler) countRequests(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r == kind {
			n++
		}
	}
	return n
}

type fakeTrack struct {
	id   string
	kind string
}

func (t fakeTrack) ID() string   { return t.id }
func (t fakeTrack) Kind() string { return t.kind }

type fakeProducer struct {
	id       string
	track    MediaTrack
	paused   bool
	pauseErr error
	closed   bool
}

func (p *fakeProducer) ID() string        { return p.id }
func (p *fakeProducer) Track() MediaTrack { return p.track }
func (p *fakeProducer) Paused() bool      { return p.paused }

func (p *fakeProducer) Pause() error {
	if p.pauseErr != nil {
		return p.pauseErr
	}
	p.paused = true
	return nil
}

func (p *fakeProducer) Resume() error {
	p.paused = false
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

type fakeConsumer struct {
	id         string
	producerID string
	track      MediaTrack
	paused     bool
	closed     bool
}

func (c *fakeConsumer) ID() string         { return c.id }
func (c *fakeConsumer) ProducerID() string { return c.producerID }
func (c *fakeConsumer) Track() MediaTrack  { return c.track }
func (c *fakeConsumer) Paused() bool       { return c.paused }

func (c *fakeConsumer) Pause() error {
	c.paused = true
	return nil
}

func (c *fakeConsumer) Resume() error {
	c.paused = false
	return nil
}

func (c *fakeConsumer) Close() error {
	c.closed = true
	return nil
}

type fakeTransport struct {
	id        string
	direction Direction

	onConnect ConnectHandler
	onProduce ProduceHandler
	onState   func(TransportState)

	connectOnce sync.Once
	connectErr  error
	closed      bool
}

func (t *fakeTransport) ID() string                        { return t.id }
func (t *fakeTransport) Direction() Direction              { return t.direction }
func (t *fakeTransport) OnConnect(h ConnectHandler)        { t.onConnect = h }
func (t *fakeTransport) OnProduce(h ProduceHandler)        { t.onProduce = h }
func (t *fakeTransport) OnStateChange(h func(TransportState)) { t.onState = h }

// ensureConnected mimics the engine's lazy handshake on first media
// flow.
func (t *fakeTransport) ensureConnected() error {
	t.connectOnce.Do(func() {
		if t.onConnect != nil {
			t.connectErr = t.onConnect(json.RawMessage(`{"dtls":"params"}`))
		}
	})
	return t.connectErr
}

func (t *fakeTransport) Produce(track MediaTrack) (Producer, error) {
	if err := t.ensureConnected(); err != nil {
		return nil, err
	}
	id, err := t.onProduce(track.Kind(), json.RawMessage(`{"codecs":[]}`))
	if err != nil {
		return nil, err
	}
	return &fakeProducer{id: id, track: track}, nil
}

func (t *fakeTransport) Consume(opts ConsumerOptions) (Consumer, error) {
	if err := t.ensureConnected(); err != nil {
		return nil, err
	}
	return &fakeConsumer{
		id:         opts.ID,
		producerID: opts.ProducerID,
		track:      fakeTrack{id: "remote-" + opts.ProducerID, kind: opts.Kind},
	}, nil
}

func (t *fakeTransport) Close() error {
	t.closed = true
	return nil
}

type fakeEngine struct {
	mu            sync.Mutex
	loaded        json.RawMessage
	loadErr       error
	failDirection Direction
	transports    []*fakeTransport
}

func (e *fakeEngine) Load(caps json.RawMessage) error {
	e.loaded = caps
	return e.loadErr
}

func (e *fakeEngine) Capabilities() json.RawMessage { return json.RawMessage(`{"codecs":[]}`) }

func (e *fakeEngine) NewTransport(direction Direction, opts TransportOptions) (Transport, error) {
	if direction == e.failDirection {
		return nil, errors.New("transport creation refused")
	}
	t := &fakeTransport{id: fmt.Sprintf("%s-%s", opts.ID, direction), direction: direction}
	e.mu.Lock()
	e.transports = append(e.transports, t)
	e.mu.Unlock()
	return t, nil
}

func connectedManager(t *testing.T) (*Manager, *fakeSignaler, *fakeEngine) {
	t.Helper()
	signaler := newFakeSignaler()
	signaler.handlers[requestCreateTransport] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"t1","parameters":{}}`), nil
	}
	signaler.handlers[requestCreateProducer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"prod-42"}`), nil
	}
	engine := &fakeEngine{}
	m := NewManager(signaler, engine, zerolog.Nop())
	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	return m, signaler, engine
}

func TestConnectEstablishesBothTransports(t *testing.T) {
	m, signaler, engine := connectedManager(t)

	if got := m.State(); got != StateConnected {
		t.Fatalf("state = %s, want connected", got)
	}
	if len(engine.transports) != 2 {
		t.Fatalf("expected send and recv transports, got %d", len(engine.transports))
	}
	if engine.loaded == nil {
		t.Fatal("engine must be loaded with the server capabilities")
	}
	if got := signaler.countRequests(requestCreateTransport); got != 2 {
		t.Fatalf("expected 2 create-transport requests, got %d", got)
	}
	if err := m.Connect(context.Background()); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second connect = %v, want ErrAlreadyConnected", err)
	}
}

func TestConnectFailureTearsDownPartialTransport(t *testing.T) {
	signaler := newFakeSignaler()
	signaler.handlers[requestCreateTransport] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"t1","parameters":{}}`), nil
	}
	engine := &fakeEngine{failDirection: DirectionRecv}
	m := NewManager(signaler, engine, zerolog.Nop())

	if err := m.Connect(context.Background()); err == nil {
		t.Fatal("connect must fail when one transport cannot be created")
	}
	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	for _, tr := range engine.transports {
		if !tr.closed {
			t.Fatalf("transport %s left half-open after failed connect", tr.id)
		}
	}
}

func TestConnectCapabilityFailureFailsFast(t *testing.T) {
	signaler := newFakeSignaler()
	signaler.handlers[requestRouterCapabilities] = func(any) (json.RawMessage, error) {
		return nil, &ProtocolError{Request: requestRouterCapabilities, Reason: "unauthorized"}
	}
	m := NewManager(signaler, &fakeEngine{}, zerolog.Nop())

	err := m.Connect(context.Background())
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if got := signaler.countRequests(requestCreateTransport); got != 0 {
		t.Fatalf("no transport may be requested after a capability failure, got %d", got)
	}
}

func TestTransportHandshakeGatesOnServerAck(t *testing.T) {
	m, signaler, _ := connectedManager(t)

	if _, err := m.Produce(fakeTrack{id: "mic", kind: "audio"}); err != nil {
		t.Fatalf("produce: %v", err)
	}
	if got := signaler.countRequests(requestConnectTransport); got != 1 {
		t.Fatalf("first media flow must trigger exactly one connect-transport, got %d", got)
	}

	// A second produce reuses the connected transport.
	signaler.handlers[requestCreateProducer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"prod-43"}`), nil
	}
	if _, err := m.Produce(fakeTrack{id: "line", kind: "audio"}); err != nil {
		t.Fatalf("second produce: %v", err)
	}
	if got := signaler.countRequests(requestConnectTransport); got != 1 {
		t.Fatalf("handshake must run once per transport, got %d", got)
	}
}

func TestTransportHandshakeRejectionPropagates(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	signaler.handlers[requestConnectTransport] = func(any) (json.RawMessage, error) {
		return nil, &ProtocolError{Request: requestConnectTransport, Reason: "bad parameters"}
	}

	_, err := m.Produce(fakeTrack{id: "mic", kind: "audio"})
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("server rejection must surface as a connection failure, got %v", err)
	}
}

func TestProduceInjectsServerAssignedID(t *testing.T) {
	m, _, _ := connectedManager(t)

	p, err := m.Produce(fakeTrack{id: "mic", kind: "audio"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	if p.ID() != "prod-42" {
		t.Fatalf("producer id = %q, want server-assigned prod-42", p.ID())
	}
	if track, ok := m.LocalTrackByProducer("prod-42"); !ok || track.ID() != "mic" {
		t.Fatalf("manager must retain the producer, got %v ok=%v", track, ok)
	}
}

func TestProduceServerErrorRetainsNothing(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	signaler.handlers[requestCreateProducer] = func(any) (json.RawMessage, error) {
		return nil, &ProtocolError{Request: requestCreateProducer, Reason: "limit reached"}
	}

	if _, err := m.Produce(fakeTrack{id: "mic", kind: "audio"}); err == nil {
		t.Fatal("produce must fail when the server rejects producer creation")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.producers) != 0 {
		t.Fatal("a failed produce must not retain a local producer")
	}
}

func TestPauseProducerTwiceFailsPrecondition(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	p, err := m.Produce(fakeTrack{id: "mic", kind: "audio"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}

	if err := m.PauseProducer(context.Background(), p.ID()); err != nil {
		t.Fatalf("first pause: %v", err)
	}
	err = m.PauseProducer(context.Background(), p.ID())
	if !errors.Is(err, ErrRedundant) {
		t.Fatalf("second pause = %v, want ErrRedundant", err)
	}
	if got := signaler.countRequests(requestPauseProducer); got != 1 {
		t.Fatalf("redundant pause must not hit the network, got %d requests", got)
	}
}

func TestPauseProducerDivergenceIsConsistencyError(t *testing.T) {
	m, _, _ := connectedManager(t)
	p, err := m.Produce(fakeTrack{id: "mic", kind: "audio"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}
	p.(*fakeProducer).pauseErr = errors.New("track refused to pause")

	err = m.PauseProducer(context.Background(), p.ID())
	var consistencyErr *ConsistencyError
	if !errors.As(err, &consistencyErr) {
		t.Fatalf("expected ConsistencyError, got %v", err)
	}
}

func TestResumeRunningProducerFailsPrecondition(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	p, err := m.Produce(fakeTrack{id: "mic", kind: "audio"})
	if err != nil {
		t.Fatalf("produce: %v", err)
	}

	if err := m.ResumeProducer(context.Background(), p.ID()); !errors.Is(err, ErrRedundant) {
		t.Fatalf("resume on running producer = %v, want ErrRedundant", err)
	}
	if got := signaler.countRequests(requestResumeProducer); got != 0 {
		t.Fatalf("redundant resume must issue no request, got %d", got)
	}
}

func TestConsumeHonorsServerPausedState(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	signaler.handlers[requestCreateConsumer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"cons-1","producerId":"prod-9","kind":"audio","paused":true}`), nil
	}

	c, err := m.Consume(context.Background(), "prod-9")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if !c.Paused() {
		t.Fatal("consumer must be paused immediately when the producer starts paused")
	}
	if track, ok := m.RemoteTrackByProducer("prod-9"); !ok || track.ID() != "remote-prod-9" {
		t.Fatalf("manager must expose the consumer track, got %v ok=%v", track, ok)
	}
}

func TestConsumeSameProducerTwiceIsRedundant(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	signaler.handlers[requestCreateConsumer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"cons-1","producerId":"prod-9","kind":"audio"}`), nil
	}

	if _, err := m.Consume(context.Background(), "prod-9"); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if _, err := m.Consume(context.Background(), "prod-9"); !errors.Is(err, ErrRedundant) {
		t.Fatalf("second consume = %v, want ErrRedundant", err)
	}
}

func TestResumeRunningConsumerFailsPrecondition(t *testing.T) {
	m, signaler, _ := connectedManager(t)
	signaler.handlers[requestCreateConsumer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"cons-1","producerId":"prod-9","kind":"audio"}`), nil
	}
	c, err := m.Consume(context.Background(), "prod-9")
	if err != nil {
		t.Fatalf("consume: %v", err)
	}

	if err := m.ResumeConsumer(context.Background(), c.ID()); !errors.Is(err, ErrRedundant) {
		t.Fatalf("resume on running consumer = %v, want ErrRedundant", err)
	}
	if err := m.PauseConsumer(context.Background(), c.ID()); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := m.PauseConsumer(context.Background(), c.ID()); !errors.Is(err, ErrRedundant) {
		t.Fatalf("pause on paused consumer = %v, want ErrRedundant", err)
	}
}

func TestCloseReleasesSessionState(t *testing.T) {
	m, signaler, engine := connectedManager(t)
	if _, err := m.Produce(fakeTrack{id: "mic", kind: "audio"}); err != nil {
		t.Fatalf("produce: %v", err)
	}
	signaler.handlers[requestCreateConsumer] = func(any) (json.RawMessage, error) {
		return json.RawMessage(`{"id":"cons-1","producerId":"prod-9","kind":"audio"}`), nil
	}
	if _, err := m.Consume(context.Background(), "prod-9"); err != nil {
		t.Fatalf("consume: %v", err)
	}

	m.Close()

	if got := m.State(); got != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", got)
	}
	for _, tr := range engine.transports {
		if !tr.closed {
			t.Fatalf("transport %s must be closed", tr.id)
		}
	}
	if _, err := m.Produce(fakeTrack{id: "mic2", kind: "audio"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("produce after close = %v, want ErrNotConnected", err)
	}
	if _, ok := m.LocalTrackByProducer("prod-42"); ok {
		t.Fatal("producers must be released on close")
	}
}
