package node

import (
	"fmt"
	"rigelnet/codec"
	"rigelnet/handler"
	"rigelnet/protocol"
	"rigelnet/remote"
	"rigelnet/retransmit"
	"time"

	"go.uber.org/zap"
)

// Options configures a Client or Server. Zero fields take the defaults
// listed next to them.
type Options struct {
	Passphrase        string
	MaxConnections    int           // Server slots, default 8
	LivenessTimeout   time.Duration // Default 10s
	HeartbeatInterval time.Duration // Default 1s
	TickInterval      time.Duration // Used by Client.Connect, default 20ms
	HandshakeRetries  int           // Default 10
	MaxArgs           int           // At most protocol.MaxArgs, which is also the default
	MaxFrameSize      int           // At most protocol.MaxFrameSize, which is also the default
	Window            int           // Receive window, default remote.DefaultWindow
	Latency           remote.LatencyLimits
	Retransmit        retransmit.Policy // Default retransmit.Default

	Codec    codec.Codec       // Argument codec, default binary
	Handlers *handler.Registry // Default: an empty registry
	Logger   *zap.Logger       // Default: no-op
	Clock    func() time.Time  // Default: time.Now

	OnConnect    func(peer *remote.Descriptor)
	OnDisconnect func(peer *remote.Descriptor, reason remote.Reason)
}

func (o Options) withDefaults() (Options, error) {
	if o.MaxConnections <= 0 {
		o.MaxConnections = 8
	}
	if o.LivenessTimeout <= 0 {
		o.LivenessTimeout = 10 * time.Second
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = time.Second
	}
	if o.TickInterval <= 0 {
		o.TickInterval = 20 * time.Millisecond
	}
	if o.HandshakeRetries <= 0 {
		o.HandshakeRetries = 10
	}
	if o.MaxArgs <= 0 {
		o.MaxArgs = protocol.MaxArgs
	}
	if o.MaxArgs > protocol.MaxArgs {
		return o, fmt.Errorf("node: MaxArgs %d exceeds the compiled-in limit %d", o.MaxArgs, protocol.MaxArgs)
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = protocol.MaxFrameSize
	}
	if o.MaxFrameSize < protocol.MinFrameSize || o.MaxFrameSize > protocol.MaxFrameSize {
		return o, fmt.Errorf("node: MaxFrameSize %d outside [%d, %d]", o.MaxFrameSize, protocol.MinFrameSize, protocol.MaxFrameSize)
	}
	if o.Window <= 0 {
		o.Window = remote.DefaultWindow
	}
	if o.Latency == (remote.LatencyLimits{}) {
		o.Latency = remote.DefaultLatencyLimits
	}
	if o.Latency.Initial <= 0 {
		o.Latency.Initial = remote.DefaultLatencyLimits.Initial
	}
	if o.Latency.Min > o.Latency.Max && o.Latency.Max > 0 {
		return o, fmt.Errorf("node: latency min %s above max %s", o.Latency.Min, o.Latency.Max)
	}
	if o.HeartbeatInterval >= o.LivenessTimeout {
		return o, fmt.Errorf("node: heartbeat interval %s must be below liveness timeout %s", o.HeartbeatInterval, o.LivenessTimeout)
	}
	if o.Codec == nil {
		o.Codec = codec.GetCodec(codec.CodecTypeBinary)
	}
	if o.Handlers == nil {
		o.Handlers = handler.NewRegistry()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o, nil
}
