package chatservice

import (
	"context"
	"errors"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/chatcluster/chatd/internal/replication"
	"github.com/chatcluster/chatd/internal/store"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// LeaderDialer opens a ChatClient to another node's advertised address, used
// to forward mutations to the current leader. Left as an injected function,
// the same decoupling the replication package uses for PeerClient/Dialer, so
// that Server can be unit tested without a real network.
type LeaderDialer func(addr string) (chatpb.ChatClient, error)

// Server implements chatpb.ChatServer, the request dispatcher (CS) named in
// spec §4.3. Leader-forwards all mutating RPCs, serves reads locally
// regardless of role, and fans out deliveries through a subscriptionTable.
// Grounded on _examples/original_source/replication/src/chat_grpc_server.py's
// ChatServer class, with gRPC embedding following the teacher's
// internal/grpcapi/server.go (Server struct + Unimplemented embedding).
type Server struct {
	chatpb.UnimplementedChatServer

	self string
	st   *store.Store
	rm   *replication.Manager
	subs *subscriptionTable
	dial LeaderDialer
}

// NewServer constructs a Server bound to self's node identity, its local
// store, its Replication Manager, and a dialer used to forward RPCs to
// whichever node is currently leader.
func NewServer(self string, st *store.Store, rm *replication.Manager, dial LeaderDialer) *Server {
	return &Server{
		self: self,
		st:   st,
		rm:   rm,
		subs: newSubscriptionTable(),
		dial: dial,
	}
}

// leaderClient dials the current leader, or returns an error if none is
// known yet (spec §4.3: a node with no known leader rejects forwarding
// rather than guessing).
func (s *Server) leaderClient() (chatpb.ChatClient, error) {
	addr := s.rm.LeaderAddr()
	if addr == "" {
		return nil, status.Error(codes.FailedPrecondition, "no leader known")
	}
	c, err := s.dial(addr)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "dial leader %s: %v", addr, err)
	}
	return c, nil
}

func (s *Server) CreateAccount(ctx context.Context, req *chatpb.CreateAccountRequest) (*chatpb.StatusResponse, error) {
	if req.Username == "" {
		return nil, status.Error(codes.InvalidArgument, "username must not be empty")
	}
	if !s.rm.IsLeader() {
		client, err := s.leaderClient()
		if err != nil {
			return nil, err
		}
		return client.CreateAccount(ctx, req)
	}

	created, err := s.st.CreateAccount(ctx, req.Username, req.Password)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("username", req.Username).Msg("create_account store write failed")
		return nil, status.Error(codes.Internal, "failed to create account locally")
	}
	if !created {
		return &chatpb.StatusResponse{Success: false, Text: "Username already exists"}, nil
	}

	if err := s.rm.ReplicateAccount(ctx, req.Username); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("username", req.Username).Msg("replicate account failed")
		return nil, status.Error(codes.Internal, "failed to replicate account creation")
	}
	return &chatpb.StatusResponse{Success: true, Text: "Account created successfully"}, nil
}

// Login is existence-only: it never checks a password, per SPEC_FULL.md's
// resolved Open Question (the original's Login never does either; verifiers
// exist only for CreateAccount's bcrypt format).
func (s *Server) Login(ctx context.Context, req *chatpb.LoginRequest) (*chatpb.StatusResponse, error) {
	exists, err := s.st.UserExists(ctx, req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to check account")
	}
	if !exists {
		return &chatpb.StatusResponse{Success: false, Text: "User does not exist. Please create an account first."}, nil
	}
	return &chatpb.StatusResponse{Success: true, Text: "Login successful"}, nil
}

func (s *Server) SendMessage(ctx context.Context, req *chatpb.SendMessageRequest) (*chatpb.StatusResponse, error) {
	if req.Recipient == "" {
		return nil, status.Error(codes.InvalidArgument, "recipient must not be empty")
	}
	exists, err := s.st.UserExists(ctx, req.Recipient)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to check recipient")
	}
	if !exists {
		return &chatpb.StatusResponse{Success: false, Text: "Recipient does not exist"}, nil
	}

	if !s.rm.IsLeader() {
		client, err := s.leaderClient()
		if err != nil {
			return nil, err
		}
		return client.SendMessage(ctx, req)
	}

	sender := senderFromContext(ctx)
	id, err := s.st.StoreMessage(ctx, sender, req.Recipient, req.Text, false, nil)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("send_message store write failed")
		return nil, status.Error(codes.Internal, "failed to store message")
	}

	if err := s.rm.ReplicateMessage(ctx, id, sender, req.Recipient, req.Text); err != nil {
		log.Ctx(ctx).Error().Err(err).Int64("id", id).Msg("replicate message failed")
		return nil, status.Error(codes.Internal, "failed to replicate message")
	}

	delivered := s.subs.publish(req.Recipient, &chatpb.DeliveredMessage{ID: id, Text: req.Text})
	if delivered > 0 {
		if _, err := s.st.MarkMessageAsDelivered(ctx, id); err != nil {
			log.Ctx(ctx).Warn().Err(err).Int64("id", id).Msg("mark_message_as_delivered failed after fan-out")
		}
	}

	return &chatpb.StatusResponse{Success: true, Text: "Message sent successfully"}, nil
}

// ReadMessages registers a subscription, drains any backlog of undelivered
// messages in order, then blocks delivering live messages until the stream's
// context is done. Grounded on chat_grpc_server.py's ReadMessages generator:
// register-under-lock, drain-then-block, remove-on-exit.
func (s *Server) ReadMessages(req *chatpb.ReadMessagesRequest, stream chatpb.ChatReadMessagesServer) error {
	if req.Username == "" {
		return status.Error(codes.InvalidArgument, "username must not be empty")
	}
	exists, err := s.st.UserExists(stream.Context(), req.Username)
	if err != nil {
		return status.Error(codes.Internal, "failed to check account")
	}
	if !exists {
		return status.Error(codes.NotFound, "no such account")
	}

	sub := s.subs.register(req.Username)
	defer s.subs.remove(sub)

	sub.setState(stateDraining)
	backlog, err := s.st.GetUndeliveredMessages(stream.Context(), req.Username)
	if err != nil {
		return status.Error(codes.Internal, "failed to load undelivered messages")
	}
	for _, msg := range backlog {
		if err := stream.Send(&chatpb.DeliveredMessage{ID: msg.ID, Text: msg.Content}); err != nil {
			return err
		}
		if _, err := s.st.MarkMessageAsDelivered(stream.Context(), msg.ID); err != nil {
			log.Ctx(stream.Context()).Warn().Err(err).Int64("id", msg.ID).Msg("mark_message_as_delivered failed draining backlog")
		}
	}

	sub.setState(stateLive)
	for {
		select {
		case m, ok := <-sub.queue:
			if !ok {
				return nil
			}
			if err := stream.Send(m); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		}
	}
}

func (s *Server) ReadConversation(ctx context.Context, req *chatpb.ReadConversationRequest) (*chatpb.ReadConversationResponse, error) {
	me := senderFromContext(ctx)
	page, err := s.st.GetMessagesBetweenUsers(ctx, me, req.Partner, req.Offset, req.Limit)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to read conversation")
	}
	out := make([]chatpb.ConversationMessage, 0, len(page.Messages))
	for _, m := range page.Messages {
		out = append(out, chatpb.ConversationMessage{
			ID:          m.ID,
			From:        m.Sender,
			To:          m.Recipient,
			Content:     m.Content,
			Timestamp:   m.Timestamp,
			IsRead:      m.IsRead,
			IsDelivered: m.IsDelivered,
		})
	}
	return &chatpb.ReadConversationResponse{Messages: out, Total: page.Total}, nil
}

func (s *Server) ListAccounts(ctx context.Context, req *chatpb.ListAccountsRequest) (*chatpb.ListAccountsResponse, error) {
	page, err := s.st.ListAccounts(ctx, req.Pattern, req.Page)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to list accounts")
	}
	return &chatpb.ListAccountsResponse{
		Users:   page.Users,
		Total:   page.Total,
		Page:    page.Page,
		PerPage: page.PerPage,
	}, nil
}

func (s *Server) ListChatPartners(ctx context.Context, req *chatpb.ListChatPartnersRequest) (*chatpb.ListChatPartnersResponse, error) {
	partners, err := s.st.GetChatPartners(ctx, req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to list chat partners")
	}
	unread := make(map[string]int32, len(partners))
	for _, p := range partners {
		n, err := s.st.GetUnreadBetweenUsers(ctx, req.Username, p)
		if err != nil {
			return nil, status.Error(codes.Internal, "failed to count unread messages")
		}
		unread[p] = n
	}
	return &chatpb.ListChatPartnersResponse{ChatPartners: partners, UnreadMap: unread}, nil
}

func (s *Server) DeleteMessages(ctx context.Context, req *chatpb.DeleteMessagesRequest) (*chatpb.StatusResponse, error) {
	if !s.rm.IsLeader() {
		client, err := s.leaderClient()
		if err != nil {
			return nil, err
		}
		return client.DeleteMessages(ctx, req)
	}
	ok, err := s.st.DeleteMessages(ctx, req.Username, req.MessageIDs)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to delete messages")
	}
	if !ok {
		return &chatpb.StatusResponse{Success: false, Text: "No such account"}, nil
	}
	if err := s.rm.ReplicateDeleteMessages(ctx, req.Username, req.MessageIDs); err != nil {
		return nil, status.Error(codes.Internal, "failed to replicate delete_messages")
	}
	return &chatpb.StatusResponse{Success: true, Text: "Messages deleted"}, nil
}

func (s *Server) DeleteAccount(ctx context.Context, req *chatpb.DeleteAccountRequest) (*chatpb.StatusResponse, error) {
	if !s.rm.IsLeader() {
		client, err := s.leaderClient()
		if err != nil {
			return nil, err
		}
		return client.DeleteAccount(ctx, req)
	}
	ok, err := s.st.DeleteAccount(ctx, req.Username)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to delete account")
	}
	if !ok {
		return &chatpb.StatusResponse{Success: false, Text: "No such account"}, nil
	}
	if err := s.rm.ReplicateDeleteAccount(ctx, req.Username); err != nil {
		return nil, status.Error(codes.Internal, "failed to replicate delete_account")
	}
	return &chatpb.StatusResponse{Success: true, Text: "Account deleted"}, nil
}

func (s *Server) MarkRead(ctx context.Context, req *chatpb.MarkReadRequest) (*chatpb.StatusResponse, error) {
	if !s.rm.IsLeader() {
		client, err := s.leaderClient()
		if err != nil {
			return nil, err
		}
		return client.MarkRead(ctx, req)
	}
	ok, err := s.st.MarkMessagesAsRead(ctx, req.Username, req.MessageIDs)
	if err != nil {
		return nil, status.Error(codes.Internal, "failed to mark messages read")
	}
	if !ok {
		return &chatpb.StatusResponse{Success: false, Text: "No such account"}, nil
	}
	if err := s.rm.ReplicateMarkRead(ctx, req.Username, req.MessageIDs); err != nil {
		return nil, status.Error(codes.Internal, "failed to replicate mark_read")
	}
	return &chatpb.StatusResponse{Success: true, Text: "Messages marked read"}, nil
}

// GetLeader reports the current leader's advertised address, or "Unknown"
// when none is known yet, matching original_source's exact fallback string.
func (s *Server) GetLeader(ctx context.Context, req *chatpb.GetLeaderRequest) (*chatpb.GetLeaderResponse, error) {
	addr := s.rm.LeaderAddr()
	if addr == "" {
		return &chatpb.GetLeaderResponse{Leader: "Unknown"}, nil
	}
	return &chatpb.GetLeaderResponse{Leader: addr}, nil
}

func (s *Server) HandleReplication(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	resp, err := s.rm.HandleReplication(ctx, msg)
	if err != nil {
		if errors.Is(err, replication.ErrNotLeader) {
			return nil, status.Error(codes.FailedPrecondition, err.Error())
		}
		return nil, status.Error(codes.Internal, err.Error())
	}
	return resp, nil
}

// senderFromContext reads the authenticated username carried by incoming
// request metadata. Request structs carry no explicit sender/username field
// for reads that act "as me" (ReadConversation, SendMessage's sender side);
// spec §6.1's envelope names sender/recipient at the transport layer, so the
// CS recovers it from the "x-username" metadata key set by the client, the
// same correlation-id-style convention CorrelationIDInterceptor uses.
func senderFromContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("x-username")
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
