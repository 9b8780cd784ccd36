package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"echo-dispatcher/internal/slots"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startHealth(t *testing.T) (*HealthServer, healthpb.HealthClient) {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	hs := NewHealthServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = hs.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() {
		conn.Close()
		hs.Stop()
	})
	return hs, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("check %q: %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealthReflectsSaturation(t *testing.T) {
	hs, client := startHealth(t)

	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected overall status: %v", got)
	}
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("unexpected dispatcher status: %v", got)
	}

	hs.SetSaturated(true)
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING while saturated, got %v", got)
	}
	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("saturation must not change overall status, got %v", got)
	}

	hs.SetSaturated(false)
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING after slots free, got %v", got)
	}
}

func TestHealthFollowsSlotTableWithoutReporter(t *testing.T) {
	hs, client := startHealth(t)
	table := slots.New(2)
	table.SetSaturationSink(hs)

	first, _ := table.Acquire()
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING with a free slot, got %v", got)
	}

	if _, ok := table.Acquire(); !ok {
		t.Fatalf("expected a second free slot")
	}
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING as soon as the table is full, got %v", got)
	}

	if err := table.Release(first); err != nil {
		t.Fatalf("release: %v", err)
	}
	if got := check(t, client, DispatcherService); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING right after a release, got %v", got)
	}
}
