package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListenAndAcceptConnection(t *testing.T) {
	l, err := Listen(context.Background(), Config{Host: "127.0.0.1", Port: "0", Backlog: 10}, testLogger())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()

	client, err := net.Dial("tcp", l.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	h, err := l.AcceptConnection()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	defer h.Conn.Close()

	if h.ID == "" {
		t.Fatalf("expected connection id")
	}
	if h.Peer == nil || h.Peer.String() != client.LocalAddr().String() {
		t.Fatalf("unexpected peer: %v want %v", h.Peer, client.LocalAddr())
	}
	if h.AcceptedAt.IsZero() {
		t.Fatalf("expected accepted timestamp")
	}
}

func TestAcceptAfterCloseFails(t *testing.T) {
	l, err := Listen(context.Background(), Config{Host: "127.0.0.1", Port: "0"}, testLogger())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := l.AcceptConnection(); !errors.Is(err, net.ErrClosed) {
		t.Fatalf("expected net.ErrClosed, got %v", err)
	}
}

func TestListenPortInUseFails(t *testing.T) {
	first, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer first.Close()

	_, port, _ := net.SplitHostPort(first.Addr().String())
	_, err = Listen(context.Background(), Config{Host: "127.0.0.1", Port: port}, testLogger())
	if !errors.Is(err, ErrNoBindableAddress) {
		t.Fatalf("expected ErrNoBindableAddress, got %v", err)
	}
}

func TestListenRejectsUnknownPort(t *testing.T) {
	if _, err := Listen(context.Background(), Config{Host: "127.0.0.1", Port: "not-a-port"}, testLogger()); err == nil {
		t.Fatalf("expected port resolution error")
	}
}

func TestWildcardCandidatesPreferIPv6(t *testing.T) {
	ips, err := resolveCandidates(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(ips) != 2 || !ips[0].Equal(net.IPv6unspecified) || !ips[1].Equal(net.IPv4zero) {
		t.Fatalf("unexpected candidates: %v", ips)
	}
}
