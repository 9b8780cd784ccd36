// internal/infra/etcd/exchange_repository.go
package etcd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"

	"echo-dispatcher/internal/domain"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	ExchangeHistoryDir = "/echo/exchanges/"
)

// KV is the subset of the etcd client the repository needs.
type KV interface {
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

type exchangeRepository struct {
	kv          KV
	prefix      string
	historySize int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewExchangeRepository stores exchange records under
// /echo/exchanges/{instanceID}/{exchangeID}, keeping at most historySize of them.
func NewExchangeRepository(kv KV, instanceID string, historySize int, logger *slog.Logger) domain.ExchangeRepository {
	if historySize <= 0 {
		historySize = domain.DefaultHistorySize
	}
	return &exchangeRepository{
		kv:          kv,
		prefix:      path.Join(ExchangeHistoryDir, instanceID) + "/",
		historySize: historySize,
		logger:      logger.With("component", "etcd-exchange-repo"),
		tracer:      otel.Tracer("echo-dispatcher-etcd-exchange-repo"),
	}
}

// Save persists a single exchange record to etcd.
func (r *exchangeRepository) Save(ctx context.Context, record *domain.ExchangeRecord) error {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.SaveExchange")
	defer span.End()

	if err := record.Validate(); err != nil {
		return fmt.Errorf("save exchange record: %w", err)
	}

	recordJSON, err := json.Marshal(record)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to marshal exchange record")
		return fmt.Errorf("failed to marshal exchange record %s to JSON: %w", record.ID, err)
	}

	key := r.prefix + record.ID
	span.SetAttributes(
		attribute.String("exchange.id", record.ID),
		attribute.String("etcd.key", key),
	)

	if _, err := r.kv.Put(ctx, key, string(recordJSON)); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to put exchange record to etcd")
		return fmt.Errorf("failed to save exchange record %s to etcd: %w", record.ID, err)
	}

	// The record is stored; a failed trim leaves extra keys for the next Save to remove.
	if removed, err := r.trim(ctx); err != nil {
		span.RecordError(err)
		r.logger.Warn("failed to trim exchange history", "error", err)
	} else if removed > 0 {
		span.SetAttributes(attribute.Int("records_trimmed", removed))
	}
	return nil
}

// trim deletes the oldest records beyond historySize.
func (r *exchangeRepository) trim(ctx context.Context) (int, error) {
	resp, err := r.kv.Get(ctx, r.prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
		clientv3.WithKeysOnly(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to list exchange keys: %w", err)
	}
	if len(resp.Kvs) <= r.historySize {
		return 0, nil
	}

	removed := 0
	for _, kv := range resp.Kvs[r.historySize:] {
		if _, err := r.kv.Delete(ctx, string(kv.Key)); err != nil {
			return removed, fmt.Errorf("failed to delete exchange key %s: %w", kv.Key, err)
		}
		removed++
	}
	return removed, nil
}

// Get retrieves a single exchange record by ID.
func (r *exchangeRepository) Get(ctx context.Context, id string) (*domain.ExchangeRecord, error) {
	ctx, span := r.tracer.Start(ctx, "repo.etcd.GetExchange")
	defer span.End()
	span.SetAttributes(attribute.String("exchange.id", id))

	resp, err := r.kv.Get(ctx, r.prefix+id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get exchange record from etcd")
		return nil, fmt.Errorf("failed to get exchange record %s from etcd: %w", id, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("exchange %s: %w", id, domain.ErrExchangeNotFound)
	}

	var record domain.ExchangeRecord
	if err := json.Unmarshal(resp.Kvs[0].Value, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to unmarshal exchange record")
		return nil, fmt.Errorf("failed to unmarshal exchange record %s from JSON: %w", id, err)
	}
	return &record, nil
}

// List returns exchange records newest first.
func (r *exchangeRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ExchangeRecord, error) {
	if page < 1 || pageSize < 1 {
		return nil, errors.New("page and page_size must be positive")
	}

	ctx, span := r.tracer.Start(ctx, "repo.etcd.ListExchanges")
	defer span.End()
	span.SetAttributes(
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	// History never exceeds historySize records, so a page starting past it is
	// empty. Checking in units of pages keeps (page-1)*pageSize from overflowing.
	if page-1 > r.historySize/pageSize {
		return []*domain.ExchangeRecord{}, nil
	}
	start := (page - 1) * pageSize
	if start >= r.historySize {
		return []*domain.ExchangeRecord{}, nil
	}
	end := start + min(pageSize, r.historySize-start)

	// Offset pagination: fetch everything up to the end of the requested page.
	resp, err := r.kv.Get(ctx, r.prefix,
		clientv3.WithPrefix(),
		clientv3.WithSort(clientv3.SortByCreateRevision, clientv3.SortDescend),
		clientv3.WithLimit(int64(end)),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list exchange records from etcd")
		return nil, fmt.Errorf("failed to list exchange records from etcd: %w", err)
	}

	records := make([]*domain.ExchangeRecord, 0, end-start)
	for i, kv := range resp.Kvs {
		if i < start {
			continue
		}
		if i >= end {
			break
		}
		var record domain.ExchangeRecord
		if err := json.Unmarshal(kv.Value, &record); err != nil {
			r.logger.Warn("failed to unmarshal exchange record from etcd", "key", string(kv.Key), "error", err)
			continue
		}
		records = append(records, &record)
	}
	span.SetAttributes(attribute.Int("records_returned", len(records)))
	return records, nil
}
