// Package session negotiates and maintains the media session against
// the signaling server: one send and one receive transport, producers
// for local tracks and consumers for remote ones.
package session

import (
	"context"
	"encoding/json"
)

// Signaler is the request/acknowledge channel to the server. Request
// blocks until the server acknowledges or the context/timeout expires;
// Emit is fire-and-forget.
type Signaler interface {
	Request(ctx context.Context, kind string, payload any) (json.RawMessage, error)
	Emit(kind string, payload any) error
}

// MediaTrack is a live local or remote media track.
type MediaTrack interface {
	ID() string
	Kind() string
}

// Direction tells a transport which way media flows.
type Direction string

const (
	DirectionSend Direction = "send"
	DirectionRecv Direction = "recv"
)

// TransportState reports the underlying connection health. Failures
// are surfaced, never auto-retried here.
type TransportState string

const (
	TransportConnecting   TransportState = "connecting"
	TransportConnected    TransportState = "connected"
	TransportDisconnected TransportState = "disconnected"
	TransportFailed       TransportState = "failed"
	TransportClosed       TransportState = "closed"
)

// TransportOptions is the server-assigned transport description.
type TransportOptions struct {
	ID         string          `json:"id"`
	Parameters json.RawMessage `json:"parameters"`
}

// ConnectHandler forwards locally gathered connection parameters to the
// server; the transport's media flow stays blocked until it returns nil.
type ConnectHandler func(params json.RawMessage) error

// ProduceHandler asks the server for a producer counterpart and returns
// the server-assigned producer id.
type ProduceHandler func(kind string, rtpParameters json.RawMessage) (string, error)

// Transport is one negotiated media-carrying channel.
type Transport interface {
	ID() string
	Direction() Direction
	OnConnect(ConnectHandler)
	OnProduce(ProduceHandler)
	OnStateChange(func(TransportState))
	// Produce binds a local track; only valid on send transports. The
	// returned producer already carries its server-assigned id.
	Produce(track MediaTrack) (Producer, error)
	// Consume instantiates a consumer from server-described parameters;
	// only valid on receive transports.
	Consume(opts ConsumerOptions) (Consumer, error)
	Close() error
}

// Producer is the local handle of one outbound track.
type Producer interface {
	ID() string
	Track() MediaTrack
	Paused() bool
	Pause() error
	Resume() error
	Close() error
}

// ConsumerOptions describes a server-created consumer.
type ConsumerOptions struct {
	ID            string          `json:"id"`
	ProducerID    string          `json:"producerId"`
	Kind          string          `json:"kind"`
	RTPParameters json.RawMessage `json:"rtpParameters"`
	Paused        bool            `json:"paused"`
}

// Consumer is the local handle of one inbound track.
type Consumer interface {
	ID() string
	ProducerID() string
	Track() MediaTrack
	Paused() bool
	Pause() error
	Resume() error
	Close() error
}

// Engine is the capability-negotiating media backend.
type Engine interface {
	// Load prepares the local codec/capability profile against the
	// server's capabilities. Must be called before any transport.
	Load(routerCapabilities json.RawMessage) error
	// Capabilities returns the loaded local capability set.
	Capabilities() json.RawMessage
	NewTransport(direction Direction, opts TransportOptions) (Transport, error)
}

// DeviceLists is one enumeration result, categorized the way the
// server expects it.
type DeviceLists struct {
	AudioInputs  []EnumeratedDevice `json:"inputAudioDevices"`
	AudioOutputs []EnumeratedDevice `json:"outputAudioDevices"`
	VideoInputs  []EnumeratedDevice `json:"inputVideoDevices"`
}

// EnumeratedDevice is one input or output device as reported by the
// platform.
type EnumeratedDevice struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// DeviceEnumerator lists the currently available media devices.
type DeviceEnumerator interface {
	Enumerate(ctx context.Context) (DeviceLists, error)
}
