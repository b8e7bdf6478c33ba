package rescuev1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "rescue.v1.QueueService"

const (
	QueueService_Insert_FullMethodName  = "/rescue.v1.QueueService/Insert"
	QueueService_Poll_FullMethodName    = "/rescue.v1.QueueService/Poll"
	QueueService_Return_FullMethodName  = "/rescue.v1.QueueService/Return"
	QueueService_Solved_FullMethodName  = "/rescue.v1.QueueService/Solved"
	QueueService_Winners_FullMethodName = "/rescue.v1.QueueService/Winners"
	QueueService_Stats_FullMethodName   = "/rescue.v1.QueueService/Stats"
)

// QueueServiceClient is the client API for QueueService.
type QueueServiceClient interface {
	Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error)
	Poll(ctx context.Context, in *PollRequest, opts ...grpc.CallOption) (*PollResponse, error)
	Return(ctx context.Context, in *ReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error)
	Solved(ctx context.Context, in *SolvedRequest, opts ...grpc.CallOption) (*SolvedResponse, error)
	Winners(ctx context.Context, in *WinnersRequest, opts ...grpc.CallOption) (*WinnersResponse, error)
	Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error)
}

type queueServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewQueueServiceClient(cc grpc.ClientConnInterface) QueueServiceClient {
	return &queueServiceClient{cc}
}

func (c *queueServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *queueServiceClient) Insert(ctx context.Context, in *InsertRequest, opts ...grpc.CallOption) (*InsertResponse, error) {
	out := new(InsertResponse)
	if err := c.invoke(ctx, QueueService_Insert_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queueServiceClient) Poll(ctx context.Context, in *PollRequest, opts ...grpc.CallOption) (*PollResponse, error) {
	out := new(PollResponse)
	if err := c.invoke(ctx, QueueService_Poll_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queueServiceClient) Return(ctx context.Context, in *ReturnRequest, opts ...grpc.CallOption) (*ReturnResponse, error) {
	out := new(ReturnResponse)
	if err := c.invoke(ctx, QueueService_Return_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queueServiceClient) Solved(ctx context.Context, in *SolvedRequest, opts ...grpc.CallOption) (*SolvedResponse, error) {
	out := new(SolvedResponse)
	if err := c.invoke(ctx, QueueService_Solved_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queueServiceClient) Winners(ctx context.Context, in *WinnersRequest, opts ...grpc.CallOption) (*WinnersResponse, error) {
	out := new(WinnersResponse)
	if err := c.invoke(ctx, QueueService_Winners_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *queueServiceClient) Stats(ctx context.Context, in *StatsRequest, opts ...grpc.CallOption) (*StatsResponse, error) {
	out := new(StatsResponse)
	if err := c.invoke(ctx, QueueService_Stats_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// QueueServiceServer is the server API for QueueService. Implementations
// embed UnimplementedQueueServiceServer.
type QueueServiceServer interface {
	Insert(context.Context, *InsertRequest) (*InsertResponse, error)
	Poll(context.Context, *PollRequest) (*PollResponse, error)
	Return(context.Context, *ReturnRequest) (*ReturnResponse, error)
	Solved(context.Context, *SolvedRequest) (*SolvedResponse, error)
	Winners(context.Context, *WinnersRequest) (*WinnersResponse, error)
	Stats(context.Context, *StatsRequest) (*StatsResponse, error)
	mustEmbedUnimplementedQueueServiceServer()
}

type UnimplementedQueueServiceServer struct{}

func (UnimplementedQueueServiceServer) Insert(context.Context, *InsertRequest) (*InsertResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Insert not implemented")
}
func (UnimplementedQueueServiceServer) Poll(context.Context, *PollRequest) (*PollResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Poll not implemented")
}
func (UnimplementedQueueServiceServer) Return(context.Context, *ReturnRequest) (*ReturnResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Return not implemented")
}
func (UnimplementedQueueServiceServer) Solved(context.Context, *SolvedRequest) (*SolvedResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Solved not implemented")
}
func (UnimplementedQueueServiceServer) Winners(context.Context, *WinnersRequest) (*WinnersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Winners not implemented")
}
func (UnimplementedQueueServiceServer) Stats(context.Context, *StatsRequest) (*StatsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Stats not implemented")
}
func (UnimplementedQueueServiceServer) mustEmbedUnimplementedQueueServiceServer() {}

func RegisterQueueServiceServer(s grpc.ServiceRegistrar, srv QueueServiceServer) {
	s.RegisterService(&QueueService_ServiceDesc, srv)
}

// unary builds a method handler for a request type Req.
func unary[Req any, Resp any](method string, call func(QueueServiceServer, context.Context, *Req) (*Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(QueueServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(QueueServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// QueueService_ServiceDesc is the grpc.ServiceDesc for QueueService.
var QueueService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*QueueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Insert", Handler: unary(QueueService_Insert_FullMethodName, QueueServiceServer.Insert)},
		{MethodName: "Poll", Handler: unary(QueueService_Poll_FullMethodName, QueueServiceServer.Poll)},
		{MethodName: "Return", Handler: unary(QueueService_Return_FullMethodName, QueueServiceServer.Return)},
		{MethodName: "Solved", Handler: unary(QueueService_Solved_FullMethodName, QueueServiceServer.Solved)},
		{MethodName: "Winners", Handler: unary(QueueService_Winners_FullMethodName, QueueServiceServer.Winners)},
		{MethodName: "Stats", Handler: unary(QueueService_Stats_FullMethodName, QueueServiceServer.Stats)},
	},
	Streams: []grpc.StreamDesc{},
}
