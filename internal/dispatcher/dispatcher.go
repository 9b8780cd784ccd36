// internal/dispatcher/dispatcher.go
package dispatcher

import (
	"context"
	"log/slog"
	"time"

	"echo-dispatcher/internal/domain"
	"echo-dispatcher/internal/metrics"
)

// DefaultRejectDelay is the pause after refusing a connection on a full table.
const DefaultRejectDelay = time.Second

// SlotAcquirer claims the lowest free slot atomically.
type SlotAcquirer interface {
	Acquire() (int, bool)
}

// Runner serves one assignment. The dispatcher never waits for it.
type Runner interface {
	Run(a domain.WorkerAssignment)
}

// Dispatcher is the accept loop that matches connections to free slots.
type Dispatcher struct {
	acceptor    domain.Acceptor
	slots       SlotAcquirer
	worker      Runner
	rejectDelay time.Duration
	logger      *slog.Logger
}

// New creates a dispatcher. A negative reject delay is treated as zero.
func New(acceptor domain.Acceptor, slots SlotAcquirer, worker Runner, rejectDelay time.Duration, logger *slog.Logger) *Dispatcher {
	if rejectDelay < 0 {
		rejectDelay = 0
	}
	return &Dispatcher{
		acceptor:    acceptor,
		slots:       slots,
		worker:      worker,
		rejectDelay: rejectDelay,
		logger:      logger.With("component", "dispatcher"),
	}
}

// Run accepts connections until ctx is cancelled. Accept errors are logged
// and never end the loop. Cancelling ctx only stops accepting; workers
// already launched keep running.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("waiting for connections")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := d.acceptor.AcceptConnection()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			metrics.AcceptErrorsTotal.Inc()
			d.logger.Error("accept failed", "error", err)
			continue
		}
		d.logger.Info("got connection", "peer", conn.PeerString(), "conn_id", conn.ID)

		slot, ok := d.slots.Acquire()
		if !ok {
			d.reject(ctx, conn)
			continue
		}
		d.assign(slot, conn)
	}
}

func (d *Dispatcher) assign(slot int, conn domain.ConnectionHandle) {
	a := domain.WorkerAssignment{SlotIndex: slot, Conn: conn}
	metrics.ConnectionsTotal.WithLabelValues(metrics.OutcomeAssigned).Inc()
	d.logger.Debug("assigned slot", "slot", slot, "conn_id", conn.ID)
	go d.worker.Run(a)
}

// reject closes conn without reading from it, then waits out the reject delay.
func (d *Dispatcher) reject(ctx context.Context, conn domain.ConnectionHandle) {
	metrics.ConnectionsTotal.WithLabelValues(metrics.OutcomeRejected).Inc()
	d.logger.Warn("out of available slots, rejecting connection", "peer", conn.PeerString(), "retry_in", d.rejectDelay)
	if err := conn.Conn.Close(); err != nil {
		d.logger.Warn("failed to close rejected connection", "error", err)
	}

	if d.rejectDelay == 0 {
		return
	}
	timer := time.NewTimer(d.rejectDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
