package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// AuctionService messages are google.protobuf.Struct values carrying the same
// JSON shapes as the REST API, so no generated message types are needed.

const AuctionServiceName = "auctionhouse.AuctionService"

// AuctionServiceServer is the server API for AuctionService
type AuctionServiceServer interface {
	PlaceBid(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetMaxBid(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	StreamAuction(*structpb.Struct, AuctionService_StreamAuctionServer) error
}

// UnimplementedAuctionServiceServer can be embedded to have forward compatible implementations
type UnimplementedAuctionServiceServer struct{}

func (UnimplementedAuctionServiceServer) PlaceBid(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method PlaceBid not implemented")
}
func (UnimplementedAuctionServiceServer) SetMaxBid(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method SetMaxBid not implemented")
}
func (UnimplementedAuctionServiceServer) Snapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Snapshot not implemented")
}
func (UnimplementedAuctionServiceServer) StreamAuction(*structpb.Struct, AuctionService_StreamAuctionServer) error {
	return status.Errorf(codes.Unimplemented, "method StreamAuction not implemented")
}

func RegisterAuctionServiceServer(s grpc.ServiceRegistrar, srv AuctionServiceServer) {
	s.RegisterService(&AuctionService_ServiceDesc, srv)
}

func _AuctionService_PlaceBid_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuctionServiceServer).PlaceBid(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + AuctionServiceName + "/PlaceBid",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuctionServiceServer).PlaceBid(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AuctionService_SetMaxBid_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuctionServiceServer).SetMaxBid(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + AuctionServiceName + "/SetMaxBid",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuctionServiceServer).SetMaxBid(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AuctionService_Snapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AuctionServiceServer).Snapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/" + AuctionServiceName + "/Snapshot",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(AuctionServiceServer).Snapshot(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _AuctionService_StreamAuction_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(AuctionServiceServer).StreamAuction(m, &auctionServiceStreamAuctionServer{stream})
}

type AuctionService_StreamAuctionServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type auctionServiceStreamAuctionServer struct {
	grpc.ServerStream
}

func (x *auctionServiceStreamAuctionServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

// AuctionService_ServiceDesc is the grpc.ServiceDesc for AuctionService
var AuctionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: AuctionServiceName,
	HandlerType: (*AuctionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PlaceBid", Handler: _AuctionService_PlaceBid_Handler},
		{MethodName: "SetMaxBid", Handler: _AuctionService_SetMaxBid_Handler},
		{MethodName: "Snapshot", Handler: _AuctionService_Snapshot_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamAuction",
			Handler:       _AuctionService_StreamAuction_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "auctionhouse/auction_service.proto",
}

// AuctionServiceClient is the client API for AuctionService
type AuctionServiceClient interface {
	PlaceBid(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SetMaxBid(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Snapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	StreamAuction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (AuctionService_StreamAuctionClient, error)
}

type auctionServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAuctionServiceClient(cc grpc.ClientConnInterface) AuctionServiceClient {
	return &auctionServiceClient{cc}
}

func (c *auctionServiceClient) PlaceBid(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+AuctionServiceName+"/PlaceBid", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *auctionServiceClient) SetMaxBid(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+AuctionServiceName+"/SetMaxBid", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *auctionServiceClient) Snapshot(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+AuctionServiceName+"/Snapshot", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *auctionServiceClient) StreamAuction(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (AuctionService_StreamAuctionClient, error) {
	stream, err := c.cc.NewStream(ctx, &AuctionService_ServiceDesc.Streams[0], "/"+AuctionServiceName+"/StreamAuction", opts...)
	if err != nil {
		return nil, err
	}
	x := &auctionServiceStreamAuctionClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type AuctionService_StreamAuctionClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type auctionServiceStreamAuctionClient struct {
	grpc.ClientStream
}

func (x *auctionServiceStreamAuctionClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
