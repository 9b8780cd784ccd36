// internal/listener/listener.go
package listener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"echo-dispatcher/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultPort    = "3490"
	DefaultBacklog = 10
)

// ErrNoBindableAddress is returned when every candidate address failed to bind.
var ErrNoBindableAddress = errors.New("failed to bind any candidate address")

// errSocketOption marks failures that abort setup instead of moving to the next candidate.
var errSocketOption = errors.New("socket option")

// Config describes where the listener binds.
type Config struct {
	Host    string
	Port    string
	Backlog int
}

// Listener accepts stream connections and wraps them in connection handles.
type Listener struct {
	ln     net.Listener
	logger *slog.Logger
}

// Listen resolves the configured host, binds the first candidate address
// that accepts a bind and starts listening with the configured backlog.
// An empty host binds the wildcard address of every family, IPv6 first.
func Listen(ctx context.Context, cfg Config, logger *slog.Logger) (*Listener, error) {
	logger = logger.With("component", "listener")

	if cfg.Port == "" {
		cfg.Port = DefaultPort
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = DefaultBacklog
	}

	port, err := net.DefaultResolver.LookupPort(ctx, "tcp", cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("resolve port %q: %w", cfg.Port, err)
	}

	candidates, err := resolveCandidates(ctx, cfg.Host)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, ip := range candidates {
		ln, err := listenOn(ip, port, cfg.Backlog)
		if err != nil {
			if errors.Is(err, errSocketOption) {
				return nil, err
			}
			logger.Warn("bind failed", "addr", net.JoinHostPort(ip.String(), fmt.Sprint(port)), "error", err)
			lastErr = err
			continue
		}
		logger.Info("listening", "addr", ln.Addr().String(), "backlog", cfg.Backlog)
		return &Listener{ln: ln, logger: logger}, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoBindableAddress, lastErr)
	}
	return nil, ErrNoBindableAddress
}

func resolveCandidates(ctx context.Context, host string) ([]net.IP, error) {
	if host == "" {
		return []net.IP{net.IPv6unspecified, net.IPv4zero}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, a := range addrs {
		ips = append(ips, a.IP)
	}
	return ips, nil
}

// AcceptConnection blocks until a peer connects.
func (l *Listener) AcceptConnection() (domain.ConnectionHandle, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return domain.ConnectionHandle{}, fmt.Errorf("accept: %w", err)
	}
	return domain.ConnectionHandle{
		ID:         uuid.NewString(),
		Conn:       conn,
		Peer:       conn.RemoteAddr(),
		AcceptedAt: time.Now(),
	}, nil
}

// Addr returns the bound address.
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Close stops the listener. Pending AcceptConnection calls return an error.
func (l *Listener) Close() error {
	return l.ln.Close()
}

var _ domain.Acceptor = (*Listener)(nil)
