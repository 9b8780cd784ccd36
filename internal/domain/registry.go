package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotRegistered is returned by Deregister when Register never succeeded.
var ErrNotRegistered = errors.New("instance not registered")

// InstanceInfo is what a dispatcher announces about itself.
type InstanceInfo struct {
	ID             string    `json:"id"`
	ListenAddr     string    `json:"listen_addr"`
	PoolCapacity   int       `json:"pool_capacity"`
	MaxMessageSize int       `json:"max_message_size"`
	StartedAt      time.Time `json:"started_at"`
}

// Validate checks the fields a registry needs to build a key and a value.
func (i InstanceInfo) Validate() error {
	if i.ID == "" {
		return errors.New("instance id is required")
	}
	if i.ListenAddr == "" {
		return errors.New("instance listen address is required")
	}
	if i.PoolCapacity < 1 {
		return errors.New("instance pool capacity must be positive")
	}
	return nil
}

// InstanceRegistry announces a running dispatcher so operators can discover it.
type InstanceRegistry interface {
	Register(ctx context.Context, info InstanceInfo, ttl time.Duration) error
	Deregister(ctx context.Context) error
}
