package chatpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ServiceName is the fully-qualified gRPC service name, used in method
// strings the way protoc-gen-go-grpc would derive them from the package.
const ServiceName = "chatcluster.chat.v1.Chat"

// ChatServer is the interface node implementations satisfy. It mirrors the
// shape protoc-gen-go-grpc emits: one method per RPC in spec §6.1, with
// ReadMessages modeled as a server-streaming RPC via ChatReadMessagesServer.
type ChatServer interface {
	CreateAccount(context.Context, *CreateAccountRequest) (*StatusResponse, error)
	Login(context.Context, *LoginRequest) (*StatusResponse, error)
	SendMessage(context.Context, *SendMessageRequest) (*StatusResponse, error)
	ReadMessages(*ReadMessagesRequest, ChatReadMessagesServer) error
	ReadConversation(context.Context, *ReadConversationRequest) (*ReadConversationResponse, error)
	ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error)
	ListChatPartners(context.Context, *ListChatPartnersRequest) (*ListChatPartnersResponse, error)
	DeleteMessages(context.Context, *DeleteMessagesRequest) (*StatusResponse, error)
	DeleteAccount(context.Context, *DeleteAccountRequest) (*StatusResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*StatusResponse, error)
	GetLeader(context.Context, *GetLeaderRequest) (*GetLeaderResponse, error)
	HandleReplication(context.Context, *ReplicationMessage) (*ReplicationMessage, error)
}

// UnimplementedChatServer can be embedded by implementations that only
// provide a subset of RPCs, following the forward-compatibility pattern the
// teacher uses for its generated servers (embedding Unimplemented*Server).
type UnimplementedChatServer struct{}

func (UnimplementedChatServer) CreateAccount(context.Context, *CreateAccountRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateAccount not implemented")
}
func (UnimplementedChatServer) Login(context.Context, *LoginRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Login not implemented")
}
func (UnimplementedChatServer) SendMessage(context.Context, *SendMessageRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method SendMessage not implemented")
}
func (UnimplementedChatServer) ReadMessages(*ReadMessagesRequest, ChatReadMessagesServer) error {
	return status.Error(codes.Unimplemented, "method ReadMessages not implemented")
}
func (UnimplementedChatServer) ReadConversation(context.Context, *ReadConversationRequest) (*ReadConversationResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReadConversation not implemented")
}
func (UnimplementedChatServer) ListAccounts(context.Context, *ListAccountsRequest) (*ListAccountsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListAccounts not implemented")
}
func (UnimplementedChatServer) ListChatPartners(context.Context, *ListChatPartnersRequest) (*ListChatPartnersResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListChatPartners not implemented")
}
func (UnimplementedChatServer) DeleteMessages(context.Context, *DeleteMessagesRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteMessages not implemented")
}
func (UnimplementedChatServer) DeleteAccount(context.Context, *DeleteAccountRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteAccount not implemented")
}
func (UnimplementedChatServer) MarkRead(context.Context, *MarkReadRequest) (*StatusResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method MarkRead not implemented")
}
func (UnimplementedChatServer) GetLeader(context.Context, *GetLeaderRequest) (*GetLeaderResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLeader not implemented")
}
func (UnimplementedChatServer) HandleReplication(context.Context, *ReplicationMessage) (*ReplicationMessage, error) {
	return nil, status.Error(codes.Unimplemented, "method HandleReplication not implemented")
}

// ChatReadMessagesServer is the server-side stream handle for ReadMessages.
type ChatReadMessagesServer interface {
	Send(*DeliveredMessage) error
	grpc.ServerStream
}

type chatReadMessagesServer struct {
	grpc.ServerStream
}

func (s *chatReadMessagesServer) Send(m *DeliveredMessage) error {
	return s.ServerStream.SendMsg(m)
}

func _Chat_ReadMessages_Handler(srv interface{}, stream grpc.ServerStream) error {
	req := new(ReadMessagesRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ChatServer).ReadMessages(req, &chatReadMessagesServer{stream})
}

func _Chat_CreateAccount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(CreateAccountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).CreateAccount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/CreateAccount"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).CreateAccount(ctx, req.(*CreateAccountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_Login_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LoginRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).Login(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/Login"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).Login(ctx, req.(*LoginRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_SendMessage_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(SendMessageRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/SendMessage"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).SendMessage(ctx, req.(*SendMessageRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_ReadConversation_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReadConversationRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).ReadConversation(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ReadConversation"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).ReadConversation(ctx, req.(*ReadConversationRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_ListAccounts_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListAccountsRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).ListAccounts(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListAccounts"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).ListAccounts(ctx, req.(*ListAccountsRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_ListChatPartners_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListChatPartnersRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).ListChatPartners(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/ListChatPartners"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).ListChatPartners(ctx, req.(*ListChatPartnersRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_DeleteMessages_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteMessagesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).DeleteMessages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/DeleteMessages"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).DeleteMessages(ctx, req.(*DeleteMessagesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_DeleteAccount_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(DeleteAccountRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).DeleteAccount(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/DeleteAccount"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).DeleteAccount(ctx, req.(*DeleteAccountRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_MarkRead_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(MarkReadRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).MarkRead(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/MarkRead"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).MarkRead(ctx, req.(*MarkReadRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_GetLeader_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetLeaderRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).GetLeader(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/GetLeader"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).GetLeader(ctx, req.(*GetLeaderRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _Chat_HandleReplication_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ReplicationMessage)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ChatServer).HandleReplication(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/HandleReplication"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ChatServer).HandleReplication(ctx, req.(*ReplicationMessage))
	}
	return interceptor(ctx, in, info, handler)
}

// ChatServiceDesc is the hand-declared equivalent of what protoc-gen-go-grpc
// emits for a service definition.
var ChatServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAccount", Handler: _Chat_CreateAccount_Handler},
		{MethodName: "Login", Handler: _Chat_Login_Handler},
		{MethodName: "SendMessage", Handler: _Chat_SendMessage_Handler},
		{MethodName: "ReadConversation", Handler: _Chat_ReadConversation_Handler},
		{MethodName: "ListAccounts", Handler: _Chat_ListAccounts_Handler},
		{MethodName: "ListChatPartners", Handler: _Chat_ListChatPartners_Handler},
		{MethodName: "DeleteMessages", Handler: _Chat_DeleteMessages_Handler},
		{MethodName: "DeleteAccount", Handler: _Chat_DeleteAccount_Handler},
		{MethodName: "MarkRead", Handler: _Chat_MarkRead_Handler},
		{MethodName: "GetLeader", Handler: _Chat_GetLeader_Handler},
		{MethodName: "HandleReplication", Handler: _Chat_HandleReplication_Handler},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ReadMessages",
			Handler:       _Chat_ReadMessages_Handler,
			ServerStreams: true,
		},
	},
	Metadata: "chatcluster/chat/v1/chat.proto",
}

// RegisterChatServer registers an implementation with a grpc.Server, the
// same call shape protoc-gen-go-grpc generates.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ChatServiceDesc, srv)
}
