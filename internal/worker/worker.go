// internal/worker/worker.go
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"echo-dispatcher/internal/domain"
	"echo-dispatcher/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxMessageSize is the largest payload read in a single receive.
const DefaultMaxMessageSize = 100

// SlotReleaser returns a claimed slot to the table.
type SlotReleaser interface {
	Release(i int) error
}

// Worker serves one echo exchange per assignment.
type Worker struct {
	slots          SlotReleaser
	history        domain.ExchangeRepository
	maxMessageSize int
	saveTimeout    time.Duration
	logger         *slog.Logger
	tracer         trace.Tracer
}

// New creates a worker. history may be nil.
func New(slots SlotReleaser, history domain.ExchangeRepository, maxMessageSize int, logger *slog.Logger) *Worker {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &Worker{
		slots:          slots,
		history:        history,
		maxMessageSize: maxMessageSize,
		saveTimeout:    3 * time.Second,
		logger:         logger.With("component", "worker"),
		tracer:         otel.Tracer("echo-dispatcher-worker"),
	}
}

// Run performs a single receive and a single send over the assigned
// connection. The connection is closed and the slot released on every path.
// Bytes beyond what arrives in the one receive are never read.
func (w *Worker) Run(a domain.WorkerAssignment) {
	ctx, span := w.tracer.Start(context.Background(), "worker.Exchange",
		trace.WithAttributes(
			attribute.Int("slot.index", a.SlotIndex),
			attribute.String("conn.id", a.Conn.ID),
			attribute.String("net.peer", a.Conn.PeerString()),
		))

	logger := w.logger.With("slot", a.SlotIndex, "conn_id", a.Conn.ID, "peer", a.Conn.PeerString())

	record := &domain.ExchangeRecord{
		ID:        a.Conn.ID,
		Slot:      a.SlotIndex,
		Peer:      a.Conn.PeerString(),
		StartTime: time.Now(),
		Status:    domain.ExchangeStatusRunning,
	}

	// Deferred in reverse: close, release, then record the outcome.
	defer func() {
		if r := recover(); r != nil {
			record.Status = domain.ExchangeStatusPanicked
			record.Error = fmt.Sprintf("panic: %v", r)
			logger.Error("exchange panicked", "panic", r)
		}
		w.finish(ctx, span, logger, record)
	}()
	defer w.release(a.SlotIndex, logger)
	defer w.closeConn(a.Conn, logger)

	buf := make([]byte, w.maxMessageSize)
	n, err := a.Conn.Conn.Read(buf)
	record.BytesReceived = n
	if n == 0 {
		switch {
		case err == nil, errors.Is(err, io.EOF):
			record.Status = domain.ExchangeStatusPeerClosed
			logger.Info("peer closed connection before sending data")
		default:
			record.Status = domain.ExchangeStatusRecvFailed
			record.Error = err.Error()
			logger.Error("recv failed", "error", err)
		}
		return
	}
	if err != nil && !errors.Is(err, io.EOF) {
		logger.Warn("recv returned data with error", "bytes", n, "error", err)
	}

	logger.Info("received", "bytes", n, "payload", string(buf[:n]))

	sent, err := a.Conn.Conn.Write(buf[:n])
	record.BytesSent = sent
	if err != nil {
		record.Status = domain.ExchangeStatusSendFailed
		record.Error = err.Error()
		logger.Error("send failed", "bytes", sent, "error", err)
		return
	}
	record.Status = domain.ExchangeStatusEchoed
}

func (w *Worker) closeConn(h domain.ConnectionHandle, logger *slog.Logger) {
	if h.Conn == nil {
		return
	}
	if err := h.Conn.Close(); err != nil {
		logger.Warn("failed to close connection", "error", err)
	}
}

func (w *Worker) release(slot int, logger *slog.Logger) {
	if err := w.slots.Release(slot); err != nil {
		logger.Error("failed to release slot", "error", err)
		return
	}
	logger.Debug("released slot")
}

func (w *Worker) finish(ctx context.Context, span trace.Span, logger *slog.Logger, record *domain.ExchangeRecord) {
	defer span.End()

	record.EndTime = time.Now()
	metrics.ExchangesTotal.WithLabelValues(string(record.Status)).Inc()
	metrics.BytesEchoedTotal.Add(float64(record.BytesSent))
	metrics.ExchangeDuration.Observe(record.Duration().Seconds())

	span.SetAttributes(
		attribute.String("exchange.status", string(record.Status)),
		attribute.Int("exchange.bytes_received", record.BytesReceived),
		attribute.Int("exchange.bytes_sent", record.BytesSent),
	)
	if record.Status == domain.ExchangeStatusEchoed {
		span.SetStatus(codes.Ok, "echoed")
	} else {
		span.SetStatus(codes.Error, string(record.Status))
		if record.Error != "" {
			span.RecordError(errors.New(record.Error))
		}
	}

	if w.history == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(ctx, w.saveTimeout)
	defer cancel()
	if err := w.history.Save(saveCtx, record); err != nil {
		logger.Error("failed to save exchange record", "error", err)
		span.RecordError(err)
	}
}
