// internal/infra/memory/exchange_repository.go
package memory

import (
	"context"
	"fmt"
	"sync"

	"echo-dispatcher/internal/domain"
)

// exchangeRepository keeps the most recent records in a ring buffer.
type exchangeRepository struct {
	mu      sync.RWMutex
	records []*domain.ExchangeRecord
	next    int
	count   int
}

// NewExchangeRepository creates an in-process repository holding at most size records.
func NewExchangeRepository(size int) domain.ExchangeRepository {
	if size <= 0 {
		size = domain.DefaultHistorySize
	}
	return &exchangeRepository{records: make([]*domain.ExchangeRecord, size)}
}

func (r *exchangeRepository) Save(ctx context.Context, record *domain.ExchangeRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("save exchange record: %w", err)
	}
	cp := *record

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[r.next] = &cp
	r.next = (r.next + 1) % len(r.records)
	if r.count < len(r.records) {
		r.count++
	}
	return nil
}

func (r *exchangeRepository) List(ctx context.Context, page, pageSize int) ([]*domain.ExchangeRecord, error) {
	if page < 1 || pageSize < 1 {
		return nil, fmt.Errorf("invalid pagination: page=%d page_size=%d", page, pageSize)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	// Compare in units of pages first so (page-1)*pageSize cannot overflow.
	if page-1 > r.count/pageSize {
		return []*domain.ExchangeRecord{}, nil
	}
	start := (page - 1) * pageSize
	if start >= r.count {
		return []*domain.ExchangeRecord{}, nil
	}
	end := start + min(pageSize, r.count-start)

	out := make([]*domain.ExchangeRecord, 0, end-start)
	for i := start; i < end; i++ {
		// i-th newest record
		idx := (r.next - 1 - i + len(r.records)) % len(r.records)
		cp := *r.records[idx]
		out = append(out, &cp)
	}
	return out, nil
}

func (r *exchangeRepository) Get(ctx context.Context, id string) (*domain.ExchangeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := 0; i < r.count; i++ {
		idx := (r.next - 1 - i + len(r.records)) % len(r.records)
		if rec := r.records[idx]; rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("exchange %s: %w", id, domain.ErrExchangeNotFound)
}
