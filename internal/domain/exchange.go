// internal/domain/exchange.go
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ExchangeStatus defines the outcome of a single echo exchange.
type ExchangeStatus string

const (
	ExchangeStatusRunning    ExchangeStatus = "running"
	ExchangeStatusEchoed     ExchangeStatus = "echoed"
	ExchangeStatusPeerClosed ExchangeStatus = "peer_closed"
	ExchangeStatusRecvFailed ExchangeStatus = "recv_failed"
	ExchangeStatusSendFailed ExchangeStatus = "send_failed"
	ExchangeStatusPanicked   ExchangeStatus = "panicked"
)

// DefaultHistorySize bounds the number of records a repository keeps when no
// size is configured.
const DefaultHistorySize = 256

// ErrExchangeNotFound is returned by repositories when no record matches an ID.
var ErrExchangeNotFound = errors.New("exchange record not found")

// ExchangeRecord represents one connection served by a worker.
type ExchangeRecord struct {
	ID            string         `json:"id"`
	Slot          int            `json:"slot"`
	Peer          string         `json:"peer"`
	StartTime     time.Time      `json:"start_time"`
	EndTime       time.Time      `json:"end_time"`
	Status        ExchangeStatus `json:"status"`
	BytesReceived int            `json:"bytes_received"`
	BytesSent     int            `json:"bytes_sent"`
	Error         string         `json:"error,omitempty"`
}

// Validate checks if the exchange record can be persisted.
func (r *ExchangeRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("exchange record ID cannot be empty")
	}
	if r.Slot < 0 {
		return fmt.Errorf("exchange record slot cannot be negative")
	}
	if r.StartTime.IsZero() {
		return fmt.Errorf("exchange record start time cannot be zero")
	}
	if r.Status == "" {
		return fmt.Errorf("exchange record status cannot be empty")
	}
	return nil
}

// Duration returns how long the exchange held its slot.
func (r *ExchangeRecord) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return 0
	}
	return r.EndTime.Sub(r.StartTime)
}

// ExchangeRepository defines the interface for persisting and retrieving exchange records.
type ExchangeRepository interface {
	// Save persists a single exchange record.
	Save(ctx context.Context, record *ExchangeRecord) error
	// List returns records newest first. Pages start at 1.
	List(ctx context.Context, page, pageSize int) ([]*ExchangeRecord, error)
	// Get retrieves a single record by ID, or ErrExchangeNotFound.
	Get(ctx context.Context, id string) (*ExchangeRecord, error)
}
