package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/chatcluster/chatd/internal/chatservice"
	"github.com/chatcluster/chatd/internal/replication"
	"github.com/chatcluster/chatd/internal/store"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func splitPeers(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.With().Str("service", "chatd").Logger()

	if env("ENV", "") == "dev" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	}

	var (
		bindAddr = flag.String("bind", env("BIND_ADDR", "0.0.0.0:50051"), "address this node listens on")
		selfAddr = flag.String("self", env("SELF_ADDR", ""), "this node's advertised host:port (defaults to -bind)")
		dbPath   = flag.String("db", env("DB_PATH", "chat.db"), "path to this node's sqlite database file")
		peers    = flag.String("peers", env("PEERS", ""), "comma-separated host:port list of peer nodes")
	)
	flag.Parse()

	self := *selfAddr
	if self == "" {
		self = *bindAddr
	}
	peerList := splitPeers(*peers)

	log.Info().Str("self", self).Str("bind", *bindAddr).Strs("peers", peerList).Str("db", *dbPath).Msg("starting chatd node")

	ctx := context.Background()

	st, err := store.Open(ctx, *dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	rm := replication.New(self, peerList, st, grpcPeerDialer, log.Logger)
	rm.Start()
	defer rm.Stop()

	srv := chatservice.NewServer(self, st, rm, grpcLeaderDialer)

	chain := chatservice.ChainUnaryServer(
		chatservice.RecoveryInterceptor(),
		chatservice.CorrelationIDInterceptor(),
		chatservice.LoggingInterceptor(),
	)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(chain))
	chatpb.RegisterChatServer(grpcServer, srv)

	lis, err := net.Listen("tcp", *bindAddr)
	if err != nil {
		log.Fatal().Err(err).Str("addr", *bindAddr).Msg("failed to bind listener")
	}

	go func() {
		log.Info().Str("addr", *bindAddr).Msg("grpc server listening")
		if err := grpcServer.Serve(lis); err != nil {
			log.Fatal().Err(err).Msg("grpc server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("shutting down gracefully...")
	// GracefulStop waits for every open ReadMessages stream to end; after the
	// bound, Stop cancels those streams, which closes their subscriptions.
	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(10 * time.Second):
		grpcServer.Stop()
	}
	log.Info().Msg("node stopped")
}

// grpcPeerDialer implements replication.Dialer: a persistent connection to a
// peer node, reused by the Replication Manager's vote/heartbeat/replicate
// calls.
func grpcPeerDialer(addr string) (replication.PeerClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return peerClientAdapter{chatpb.NewChatClient(conn)}, nil
}

type peerClientAdapter struct {
	c chatpb.ChatClient
}

func (p peerClientAdapter) HandleReplication(ctx context.Context, msg *chatpb.ReplicationMessage) (*chatpb.ReplicationMessage, error) {
	return p.c.HandleReplication(ctx, msg)
}

// grpcLeaderDialer implements chatservice.LeaderDialer, dialing whatever
// node the Replication Manager currently believes is leader so the CS can
// forward a mutation.
func grpcLeaderDialer(addr string) (chatpb.ChatClient, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return chatpb.NewChatClient(conn), nil
}
