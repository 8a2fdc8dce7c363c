package chatpb

import (
	"context"

	"google.golang.org/grpc"
)

// ChatClient is the generated-style client stub. The Leader-Aware Client
// (internal/client) wraps one of these per cluster endpoint.
type ChatClient interface {
	CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	ReadMessages(ctx context.Context, in *ReadMessagesRequest, opts ...grpc.CallOption) (ChatReadMessagesClient, error)
	ReadConversation(ctx context.Context, in *ReadConversationRequest, opts ...grpc.CallOption) (*ReadConversationResponse, error)
	ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error)
	ListChatPartners(ctx context.Context, in *ListChatPartnersRequest, opts ...grpc.CallOption) (*ListChatPartnersResponse, error)
	DeleteMessages(ctx context.Context, in *DeleteMessagesRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*StatusResponse, error)
	GetLeader(ctx context.Context, in *GetLeaderRequest, opts ...grpc.CallOption) (*GetLeaderResponse, error)
	HandleReplication(ctx context.Context, in *ReplicationMessage, opts ...grpc.CallOption) (*ReplicationMessage, error)
}

type chatClient struct {
	cc grpc.ClientConnInterface
}

// NewChatClient constructs a ChatClient bound to a single connection, the
// same call shape protoc-gen-go-grpc generates.
func NewChatClient(cc grpc.ClientConnInterface) ChatClient {
	return &chatClient{cc}
}

func (c *chatClient) CreateAccount(ctx context.Context, in *CreateAccountRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/CreateAccount", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/Login", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) SendMessage(ctx context.Context, in *SendMessageRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/SendMessage", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) ReadConversation(ctx context.Context, in *ReadConversationRequest, opts ...grpc.CallOption) (*ReadConversationResponse, error) {
	out := new(ReadConversationResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ReadConversation", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) ListAccounts(ctx context.Context, in *ListAccountsRequest, opts ...grpc.CallOption) (*ListAccountsResponse, error) {
	out := new(ListAccountsResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListAccounts", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) ListChatPartners(ctx context.Context, in *ListChatPartnersRequest, opts ...grpc.CallOption) (*ListChatPartnersResponse, error) {
	out := new(ListChatPartnersResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/ListChatPartners", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) DeleteMessages(ctx context.Context, in *DeleteMessagesRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/DeleteMessages", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) DeleteAccount(ctx context.Context, in *DeleteAccountRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/DeleteAccount", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) MarkRead(ctx context.Context, in *MarkReadRequest, opts ...grpc.CallOption) (*StatusResponse, error) {
	out := new(StatusResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/MarkRead", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) GetLeader(ctx context.Context, in *GetLeaderRequest, opts ...grpc.CallOption) (*GetLeaderResponse, error) {
	out := new(GetLeaderResponse)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/GetLeader", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *chatClient) HandleReplication(ctx context.Context, in *ReplicationMessage, opts ...grpc.CallOption) (*ReplicationMessage, error) {
	out := new(ReplicationMessage)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/HandleReplication", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ChatReadMessagesClient is the client-side stream handle for ReadMessages.
type ChatReadMessagesClient interface {
	Recv() (*DeliveredMessage, error)
	grpc.ClientStream
}

type chatReadMessagesClient struct {
	grpc.ClientStream
}

func (c *chatClient) ReadMessages(ctx context.Context, in *ReadMessagesRequest, opts ...grpc.CallOption) (ChatReadMessagesClient, error) {
	stream, err := c.cc.NewStream(ctx, &ChatServiceDesc.Streams[0], "/"+ServiceName+"/ReadMessages", opts...)
	if err != nil {
		return nil, err
	}
	x := &chatReadMessagesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *chatReadMessagesClient) Recv() (*DeliveredMessage, error) {
	m := new(DeliveredMessage)
	if err := c.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
