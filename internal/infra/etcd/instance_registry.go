// internal/infra/etcd/instance_registry.go
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"echo-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const (
	// InstanceRegistryPrefix is where dispatchers announce themselves.
	InstanceRegistryPrefix = "/echo/instances/"
)

// LeaseKV is the subset of the etcd client the registry needs.
type LeaseKV interface {
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	KeepAlive(ctx context.Context, id clientv3.LeaseID) (<-chan *clientv3.LeaseKeepAliveResponse, error)
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
}

type instanceRegistry struct {
	client LeaseKV
	logger *slog.Logger

	mu          sync.Mutex
	key         string
	leaseID     clientv3.LeaseID
	stopRenewal context.CancelFunc
	renewalDone chan struct{}
}

// NewInstanceRegistry publishes instance info under /echo/instances/{id}.
func NewInstanceRegistry(client LeaseKV, logger *slog.Logger) domain.InstanceRegistry {
	return &instanceRegistry{
		client: client,
		logger: logger.With("component", "instance-registry"),
	}
}

// Register stores info as JSON under a lease of the given TTL and renews the
// lease until Deregister is called. A lost lease removes the key.
func (r *instanceRegistry) Register(ctx context.Context, info domain.InstanceInfo, ttl time.Duration) error {
	if err := info.Validate(); err != nil {
		return fmt.Errorf("register instance: %w", err)
	}
	ttlSeconds := int64(ttl / time.Second)
	if ttlSeconds < 1 {
		ttlSeconds = 1
	}

	value, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal instance info: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopRenewal != nil {
		return fmt.Errorf("instance %s already registered", info.ID)
	}

	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return fmt.Errorf("failed to grant lease: %w", err)
	}

	key := InstanceRegistryPrefix + info.ID
	if _, err := r.client.Put(ctx, key, string(value), clientv3.WithLease(lease.ID)); err != nil {
		r.revokeQuietly(lease.ID)
		return fmt.Errorf("failed to put instance key %s: %w", key, err)
	}

	renewCtx, stop := context.WithCancel(context.Background())
	keepAlive, err := r.client.KeepAlive(renewCtx, lease.ID)
	if err != nil {
		stop()
		r.revokeQuietly(lease.ID)
		return fmt.Errorf("failed to start lease keep-alive: %w", err)
	}

	done := make(chan struct{})
	go r.drainKeepAlive(renewCtx, keepAlive, done)

	r.key = key
	r.leaseID = lease.ID
	r.stopRenewal = stop
	r.renewalDone = done

	r.logger.Info("instance registered",
		"key", key,
		"listen_addr", info.ListenAddr,
		"pool_capacity", info.PoolCapacity,
		"lease_ttl", ttlSeconds,
	)
	return nil
}

// drainKeepAlive consumes renewals. The channel closes when the lease is lost
// or renewal is stopped.
func (r *instanceRegistry) drainKeepAlive(ctx context.Context, ch <-chan *clientv3.LeaseKeepAliveResponse, done chan<- struct{}) {
	defer close(done)
	for ka := range ch {
		r.logger.Debug("lease renewed", "lease_id", int64(ka.ID), "ttl", ka.TTL)
	}
	if ctx.Err() == nil {
		r.logger.Warn("lease keep-alive stopped, instance key will expire")
	}
}

// Deregister stops renewal and revokes the lease, deleting the instance key.
func (r *instanceRegistry) Deregister(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopRenewal == nil {
		return domain.ErrNotRegistered
	}

	r.stopRenewal()
	<-r.renewalDone
	r.stopRenewal = nil

	r.logger.Info("deregistering instance", "key", r.key)
	if _, err := r.client.Revoke(ctx, r.leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease for %s: %w", r.key, err)
	}
	return nil
}

func (r *instanceRegistry) revokeQuietly(id clientv3.LeaseID) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := r.client.Revoke(ctx, id); err != nil {
		r.logger.Warn("failed to revoke lease after failed registration", "lease_id", int64(id), "error", err)
	}
}
