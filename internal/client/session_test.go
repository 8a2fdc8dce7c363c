package client

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// fakeClient is a minimal chatpb.ChatClient stub: embedding the nil
// interface means any unconfigured method panics if called, which is
// deliberate (tests should only exercise what they set up).
type fakeClient struct {
	chatpb.ChatClient
	endpoint string

	createAccountResp *chatpb.StatusResponse
	createAccountErr  error
	getLeaderResp     *chatpb.GetLeaderResponse
	getLeaderErr      error
}

func (f *fakeClient) CreateAccount(ctx context.Context, in *chatpb.CreateAccountRequest, opts ...grpc.CallOption) (*chatpb.StatusResponse, error) {
	return f.createAccountResp, f.createAccountErr
}

func (f *fakeClient) GetLeader(ctx context.Context, in *chatpb.GetLeaderRequest, opts ...grpc.CallOption) (*chatpb.GetLeaderResponse, error) {
	return f.getLeaderResp, f.getLeaderErr
}

func newTestSession(t *testing.T, endpoints []string, clients map[string]*fakeClient) *Session {
	t.Helper()
	dial := func(endpoint string) (chatpb.ChatClient, io.Closer, error) {
		c, ok := clients[endpoint]
		if !ok {
			return nil, nil, errors.New("no fake client configured for " + endpoint)
		}
		return c, nopCloser{}, nil
	}
	sess, err := NewSession("alice", endpoints, dial, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewSession() error = %v", err)
	}
	t.Cleanup(sess.Close)
	return sess
}

func TestSessionCreateAccountNoRetryOnSuccess(t *testing.T) {
	clients := map[string]*fakeClient{
		"node1:50051": {createAccountResp: &chatpb.StatusResponse{Success: true, Text: "ok"}},
	}
	sess := newTestSession(t, []string{"node1:50051"}, clients)

	resp, err := sess.CreateAccount(context.Background(), "pw")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if !resp.Success {
		t.Errorf("CreateAccount() = %+v, want success", resp)
	}
}

func TestSessionCreateAccountRetriesAgainstDiscoveredLeader(t *testing.T) {
	clients := map[string]*fakeClient{
		"node1:50051": {
			createAccountErr: status.Error(codes.FailedPrecondition, "not leader"),
			getLeaderResp:    &chatpb.GetLeaderResponse{Leader: "node2:50051"},
		},
		"node2:50051": {
			createAccountResp: &chatpb.StatusResponse{Success: true, Text: "created by the real leader"},
		},
	}
	sess := newTestSession(t, []string{"node1:50051"}, clients)

	resp, err := sess.CreateAccount(context.Background(), "pw")
	if err != nil {
		t.Fatalf("CreateAccount() error = %v", err)
	}
	if resp.Text != "created by the real leader" {
		t.Errorf("CreateAccount() = %+v, want the response from the discovered leader", resp)
	}
}

func TestSessionCreateAccountGivesUpAfterMaxRetries(t *testing.T) {
	clients := map[string]*fakeClient{
		"node1:50051": {
			createAccountErr: status.Error(codes.Unavailable, "always down"),
			getLeaderResp:    &chatpb.GetLeaderResponse{Leader: "node1:50051"},
		},
	}
	sess := newTestSession(t, []string{"node1:50051"}, clients)

	_, err := sess.CreateAccount(context.Background(), "pw")
	if err == nil {
		t.Fatal("CreateAccount() error = nil, want an error after exhausting retries")
	}
}

func TestSessionCreateAccountPermanentErrorIsNotRetried(t *testing.T) {
	clients := map[string]*fakeClient{
		"node1:50051": {createAccountErr: status.Error(codes.InvalidArgument, "bad username")},
	}
	sess := newTestSession(t, []string{"node1:50051"}, clients)

	_, err := sess.CreateAccount(context.Background(), "pw")
	if err == nil {
		t.Fatal("CreateAccount() error = nil, want InvalidArgument surfaced directly")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		t.Errorf("CreateAccount() error = %v, want codes.InvalidArgument", err)
	}
}

func TestSessionSwitchToNewEndpointExtendsKnownSet(t *testing.T) {
	clients := map[string]*fakeClient{
		"node1:50051": {createAccountResp: &chatpb.StatusResponse{Success: true}},
		"node2:50051": {createAccountResp: &chatpb.StatusResponse{Success: true}},
	}
	sess := newTestSession(t, []string{"node1:50051"}, clients)

	if err := sess.switchTo("node2:50051"); err != nil {
		t.Fatalf("switchTo() error = %v", err)
	}
	if len(sess.endpoints) != 2 {
		t.Errorf("endpoints = %v, want node2 appended", sess.endpoints)
	}
	if sess.endpoints[sess.current] != "node2:50051" {
		t.Errorf("current endpoint = %q, want node2:50051", sess.endpoints[sess.current])
	}
}
