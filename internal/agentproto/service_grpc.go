package agentproto

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName is the fully-qualified gRPC service name, used as the
// namespace prefix for the single method this service exposes.
const serviceName = "agentplatform.AgentService"

// callFuncMethod is the full gRPC method path for CallFunc.
const callFuncMethod = "/" + serviceName + "/CallFunc"

// AgentServiceServer is implemented by the AgentPlatform RPC servicer
// (internal/platform). It is the server-side half of the single
// call_func(RpcMsg) -> RpcMsg RPC every agent operation is multiplexed over.
type AgentServiceServer interface {
	CallFunc(ctx context.Context, req *RpcMsg) (*RpcMsg, error)
}

// AgentServiceClient is the client-side half, used by
// pkg/rpcagent.RpcAgentClient.
type AgentServiceClient interface {
	CallFunc(ctx context.Context, req *RpcMsg, opts ...grpc.CallOption) (*RpcMsg, error)
}

// ServiceDesc is the hand-written equivalent of what protoc-gen-go-grpc
// would emit for a service with one unary method. Passed to
// grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*AgentServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "CallFunc",
			Handler:    callFuncHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "agentplatform/agent.proto",
}

func callFuncHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(RpcMsg)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AgentServiceServer).CallFunc(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: callFuncMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AgentServiceServer).CallFunc(ctx, req.(*RpcMsg))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAgentServiceServer registers srv on s, mirroring the generated
// proto.RegisterAgentServiceServer function's signature so callers read
// the same as if this were codegen'd.
func RegisterAgentServiceServer(s grpc.ServiceRegistrar, srv AgentServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type agentServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAgentServiceClient builds a typed client stub around an established
// grpc.ClientConn.
func NewAgentServiceClient(cc grpc.ClientConnInterface) AgentServiceClient {
	return &agentServiceClient{cc: cc}
}

func (c *agentServiceClient) CallFunc(ctx context.Context, req *RpcMsg, opts ...grpc.CallOption) (*RpcMsg, error) {
	out := new(RpcMsg)
	if err := c.cc.Invoke(ctx, callFuncMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ServerCodecOption returns the grpc.ServerOption that forces servers to
// use this package's JSON codec instead of the default protobuf codec.
func ServerCodecOption() grpc.ServerOption {
	return grpc.ForceServerCodec(jsonCodec{})
}

// ClientCodecOption returns the grpc.DialOption that forces clients to use
// this package's JSON codec.
func ClientCodecOption() grpc.DialOption {
	return grpc.WithDefaultCallOptions(grpc.ForceCodec(jsonCodec{}))
}
