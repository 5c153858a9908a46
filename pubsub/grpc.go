package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/toolink/widgets/limiter"
	"github.com/toolink/widgets/meta"
)

// CodecName is the gRPC content subtype of the channel service.
const CodecName = "json"

const (
	channelServiceName = "widgets.Channel"
	pushMethod         = "/" + channelServiceName + "/Push"
)

// jsonCodec marshals gRPC messages as JSON, so the channel service needs no
// generated protobuf code.
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// PushRequest asks the remote channel to push a value.
type PushRequest struct {
	Envelope
}

// PushReply reports the outcome of a remote push.
// Delivered is false when no listener was registered and the core was
// configured to ignore that.
type PushReply struct {
	ID        string `json:"id"`
	Delivered bool   `json:"delivered"`
}

// ChannelServer is the server API of the widgets.Channel service.
type ChannelServer interface {
	Push(context.Context, *PushRequest) (*PushReply, error)
}

// RegisterChannelServer registers srv on s.
func RegisterChannelServer(s grpc.ServiceRegistrar, srv ChannelServer) {
	s.RegisterService(&channelServiceDesc, srv)
}

var channelServiceDesc = grpc.ServiceDesc{
	ServiceName: channelServiceName,
	HandlerType: (*ChannelServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Push",
			Handler:    pushHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "widgets/channel",
}

func pushHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PushRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChannelServer).Push(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: pushMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ChannelServer).Push(ctx, req.(*PushRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// listenerChecker is implemented by targets that can tell whether a push
// will reach a listener.
type listenerChecker interface {
	Has(name string) bool
}

// Gateway serves widgets.Channel by pushing into a local target.
type Gateway struct {
	target  Pusher
	doer    Doer
	limiter *limiter.RateLimiter
}

// GatewayOption configures a Gateway.
type GatewayOption func(*Gateway)

// WithDoer makes the gateway run pushes through d, normally the host loop.
func WithDoer(d Doer) GatewayOption {
	return func(g *Gateway) {
		g.doer = d
	}
}

// WithGatewayLimiter throttles incoming pushes per event and peer address.
func WithGatewayLimiter(rl *limiter.RateLimiter) GatewayOption {
	return func(g *Gateway) {
		g.limiter = rl
	}
}

// NewGateway creates a Gateway delivering to target.
func NewGateway(target Pusher, opts ...GatewayOption) *Gateway {
	g := &Gateway{target: target}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Push implements ChannelServer.
func (g *Gateway) Push(ctx context.Context, req *PushRequest) (*PushReply, error) {
	if req.Event == "" {
		return nil, status.Error(codes.InvalidArgument, "event is required")
	}
	value, err := req.Decode()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	var addr string
	if p, ok := peer.FromContext(ctx); ok {
		addr = peerHost(p.Addr)
	}
	if g.limiter.Limit(ctx, req.Event, addr) {
		return nil, status.Errorf(codes.ResourceExhausted, "push rate exceeded for %q", req.Event)
	}

	pushCtx := req.Context(ctx, meta.SourceGRPC)
	var delivered bool
	var pushErr error
	push := func() {
		listening := true
		if h, ok := g.target.(listenerChecker); ok {
			listening = h.Has(req.Event)
		}
		pushErr = g.target.Push(pushCtx, req.Event, value)
		delivered = pushErr == nil && listening
	}

	if g.doer == nil {
		push()
	} else if err := g.doer.Do(ctx, push); err != nil {
		return nil, doerStatus(err)
	}

	if pushErr != nil {
		log.Debug().Err(pushErr).Str("event", req.Event).Str("peer", addr).Msg("remote push rejected")
		if errors.Is(pushErr, ErrUnknownListener) {
			return nil, status.Error(codes.NotFound, pushErr.Error())
		}
		return nil, status.Error(codes.Internal, pushErr.Error())
	}
	return &PushReply{ID: req.ID, Delivered: delivered}, nil
}

// peerHost returns the host part of a client address, so that every
// connection from one client shares its rate limit buckets.
func peerHost(addr net.Addr) string {
	switch a := addr.(type) {
	case nil:
		return ""
	case *net.TCPAddr:
		return a.IP.String()
	}
	if host, _, err := net.SplitHostPort(addr.String()); err == nil {
		return host
	}
	return addr.String()
}

// doerStatus maps a failure to schedule a push. The push has not run.
func doerStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}

// ChannelClient pushes events into a remote process over gRPC.
type ChannelClient struct {
	cc grpc.ClientConnInterface
}

// NewChannelClient creates a client on an established connection.
func NewChannelClient(cc grpc.ClientConnInterface) *ChannelClient {
	return &ChannelClient{cc: cc}
}

// Push sends value to the listener of event in the remote process.
func (c *ChannelClient) Push(ctx context.Context, event string, value any, opts ...grpc.CallOption) (*PushReply, error) {
	env, err := NewEnvelope(event, value)
	if err != nil {
		return nil, err
	}
	env.Source = meta.SourceGRPC

	reply := new(PushReply)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.cc.Invoke(ctx, pushMethod, &PushRequest{Envelope: *env}, reply, opts...); err != nil {
		return nil, fmt.Errorf("pubsub: remote push %q: %w", event, err)
	}
	return reply, nil
}
