// Package signal implements the request/acknowledge signaling channel
// over a websocket connection. Server-push events are surfaced on a
// channel in arrival order; requests are correlated by id and each
// carries a timeout so a lost acknowledgement can never hang a caller.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/digital-stage/client-go/internal/session"
	"github.com/digital-stage/client-go/internal/store"
)

var (
	// ErrBackpressure reports a full outbound queue.
	ErrBackpressure = errors.New("signal: outbound queue full")
	// ErrClosed reports the connection is gone.
	ErrClosed = errors.New("signal: connection closed")
)

// DefaultRequestTimeout bounds how long a request waits for its
// acknowledgement when the caller's context carries no deadline.
const DefaultRequestTimeout = 10 * time.Second

const (
	writeWait      = 5 * time.Second
	sendBufferSize = 32
	eventBuffer    = 64
)

// envelope is the wire format in both directions. Requests and
// acknowledgements carry an id; events and emits do not.
type envelope struct {
	ID      *uint64         `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type ack struct {
	payload json.RawMessage
	err     string
}

var _ session.Signaler = (*Client)(nil)

// Client is one signaling connection.
type Client struct {
	conn    *websocket.Conn
	logger  zerolog.Logger
	timeout time.Duration

	send   chan []byte
	events chan store.Event
	done   chan struct{}
	once   sync.Once

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan ack

	// Events queue up here before delivery so a slow events consumer
	// never blocks readPump, which also carries acknowledgements.
	evMu    sync.Mutex
	evQueue []store.Event
	evKick  chan struct{}
}

// Dial connects to the signaling server and starts the pumps.
func Dial(ctx context.Context, url string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial signaling server: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	c := &Client{
		conn:    conn,
		logger:  logger.With().Str("module", "signal").Logger(),
		timeout: timeout,
		send:    make(chan []byte, sendBufferSize),
		events:  make(chan store.Event, eventBuffer),
		done:    make(chan struct{}),
		pending: map[uint64]chan ack{},
		evKick:  make(chan struct{}, 1),
	}
	go c.writePump()
	go c.readPump()
	go c.eventPump()
	return c, nil
}

// Events delivers server-push store events in arrival order. The
// channel closes when the connection is gone.
func (c *Client) Events() <-chan store.Event { return c.events }

// Request sends a request and blocks until the acknowledgement, the
// timeout, or the context expires. A server-side error acknowledgement
// surfaces as a ProtocolError.
func (c *Client) Request(ctx context.Context, kind string, payload any) (json.RawMessage, error) {
	id := c.seq.Add(1)
	ch := make(chan ack, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.enqueue(envelope{ID: &id, Type: kind}, payload); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("request %s: %w", kind, ctx.Err())
	case <-timer.C:
		return nil, fmt.Errorf("request %s: acknowledgement timed out after %s", kind, c.timeout)
	case <-c.done:
		return nil, fmt.Errorf("request %s: %w", kind, ErrClosed)
	case a := <-ch:
		if a.err != "" {
			return nil, &session.ProtocolError{Request: kind, Reason: a.err}
		}
		return a.payload, nil
	}
}

// Emit sends a fire-and-forget notification.
func (c *Client) Emit(kind string, payload any) error {
	return c.enqueue(envelope{Type: kind}, payload)
}

func (c *Client) enqueue(env envelope, payload any) error {
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", env.Type, err)
		}
		env.Payload = raw
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", env.Type, err)
	}
	select {
	case <-c.done:
		return ErrClosed
	case c.send <- data:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *Client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("set write deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				c.logger.Error().Err(err).Msg("write message")
				c.Close()
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Warn().Err(err).Msg("read message")
			}
			return
		}
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Warn().Err(err).Msg("bad envelope")
			continue
		}
		if env.ID != nil {
			c.deliverAck(*env.ID, ack{payload: env.Payload, err: env.Error})
			continue
		}
		c.enqueueEvent(store.Event{Type: store.EventType(env.Type), Payload: env.Payload})
	}
}

func (c *Client) enqueueEvent(ev store.Event) {
	c.evMu.Lock()
	c.evQueue = append(c.evQueue, ev)
	c.evMu.Unlock()
	select {
	case c.evKick <- struct{}{}:
	default:
	}
}

// eventPump drains the queue into the events channel in arrival order.
func (c *Client) eventPump() {
	defer close(c.events)
	for {
		select {
		case <-c.done:
			return
		case <-c.evKick:
		}
		for {
			c.evMu.Lock()
			if len(c.evQueue) == 0 {
				c.evMu.Unlock()
				break
			}
			ev := c.evQueue[0]
			c.evQueue = c.evQueue[1:]
			c.evMu.Unlock()
			select {
			case <-c.done:
				return
			case c.events <- ev:
			}
		}
	}
}

func (c *Client) deliverAck(id uint64, a ack) {
	c.mu.Lock()
	ch, ok := c.pending[id]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug().Uint64("id", id).Msg("acknowledgement for unknown request")
		return
	}
	ch <- a
}

// Close shuts the connection down. Pending requests fail with
// ErrClosed.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
