// Command client is a minimal interactive CLI exercising the Leader-Aware
// Client, grounded on chat_grpc_client.py's __main__ block (argparse
// username/host/port, connect, start the background read loop, then an
// interactive command surface — left as a stub there with the comment
// "Implement interactive commands as needed"; this CLI fills that stub in).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/chatcluster/chatd/internal/chatpb"
	"github.com/chatcluster/chatd/internal/client"
	"github.com/rs/zerolog"
)

func splitEndpoints(s string) []string {
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
	var (
		username  = flag.String("username", "", "your chat username")
		endpoints = flag.String("endpoints", "127.0.0.1:50051", "comma-separated cluster node addresses")
	)
	flag.Parse()

	if *username == "" {
		fmt.Fprintln(os.Stderr, "usage: client -username <name> [-endpoints host:port,...]")
		os.Exit(1)
	}

	log := zerolog.Nop()
	sess, err := client.NewSession(*username, splitEndpoints(*endpoints), client.GrpcDialer, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer sess.Close()

	ctx := context.Background()
	sess.StartLeaderPolling(5 * time.Second)
	sess.StartReadMessages(ctx)

	go func() {
		for msg := range sess.Inbox {
			fmt.Printf("\n[new message #%d] %s\n> ", msg.ID, msg.Text)
		}
	}()

	fmt.Println("connected. commands: login <password> | send <user> <text> | read <user> [offset] [limit] | partners | accounts [pattern] | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		runCommand(ctx, sess, strings.TrimSpace(scanner.Text()))
	}
}

func runCommand(ctx context.Context, sess *client.Session, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}
	switch fields[0] {
	case "quit", "exit":
		os.Exit(0)
	case "login":
		if len(fields) < 2 {
			fmt.Println("usage: login <password>")
			return
		}
		resp, err := sess.Login(ctx, fields[1])
		printResult(resp, err)
	case "signup":
		if len(fields) < 2 {
			fmt.Println("usage: signup <password>")
			return
		}
		resp, err := sess.CreateAccount(ctx, fields[1])
		printResult(resp, err)
	case "send":
		if len(fields) < 3 {
			fmt.Println("usage: send <user> <text...>")
			return
		}
		resp, err := sess.SendMessage(ctx, fields[1], strings.Join(fields[2:], " "))
		printResult(resp, err)
	case "read":
		if len(fields) < 2 {
			fmt.Println("usage: read <user> [offset] [limit]")
			return
		}
		offset, limit := int32(0), int32(50)
		if len(fields) > 2 {
			if v, err := strconv.Atoi(fields[2]); err == nil {
				offset = int32(v)
			}
		}
		if len(fields) > 3 {
			if v, err := strconv.Atoi(fields[3]); err == nil {
				limit = int32(v)
			}
		}
		resp, err := sess.ReadConversation(ctx, fields[1], offset, limit)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, m := range resp.Messages {
			fmt.Printf("[#%d] %s -> %s: %s\n", m.ID, m.From, m.To, m.Content)
		}
		fmt.Printf("(%d total)\n", resp.Total)
	case "partners":
		resp, err := sess.ListChatPartners(ctx)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, p := range resp.ChatPartners {
			fmt.Printf("%s (%d unread)\n", p, resp.UnreadMap[p])
		}
	case "accounts":
		pattern := ""
		if len(fields) > 1 {
			pattern = fields[1]
		}
		resp, err := sess.ListAccounts(ctx, pattern, 1)
		if err != nil {
			fmt.Println("error:", err)
			return
		}
		for _, u := range resp.Users {
			fmt.Println(u)
		}
	default:
		fmt.Println("unknown command:", fields[0])
	}
}

func printResult(resp *chatpb.StatusResponse, err error) {
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(resp.Text)
}
