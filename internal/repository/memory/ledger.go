package memory

import (
	"context"
	"sort"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/repository"
)

type ledger struct{ v *view }

func (r ledger) Append(ctx context.Context, entry *model.Transaction) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.IdempotencyKey != nil {
		for _, e := range r.v.visibleEntries() {
			if e.IdempotencyKey != nil && *e.IdempotencyKey == *entry.IdempotencyKey {
				return repository.ErrDuplicateKey
			}
		}
	}

	s.nextEntryID++
	entry.ID = s.nextEntryID
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now()
	}

	cp := *entry
	if r.v.tx != nil {
		r.v.tx.entries = append(r.v.tx.entries, &cp)
		return nil
	}
	s.entries[cp.ID] = &cp
	return nil
}

func (r ledger) GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	for _, e := range r.v.visibleEntries() {
		if e.IdempotencyKey != nil && *e.IdempotencyKey == key {
			return e, nil
		}
	}
	return nil, nil
}

func (r ledger) HistoryForOwner(ctx context.Context, ownerID int64, skip, limit int) ([]*model.Transaction, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	owned := make(map[int64]bool)
	for _, a := range r.v.visibleAccounts() {
		if a.OwnerID == ownerID {
			owned[a.ID] = true
		}
	}

	var matched []*model.Transaction
	for _, e := range r.v.visibleEntries() {
		if owned[e.OriginAccountID] || owned[e.DestinationAccountID] {
			matched = append(matched, e)
		}
	}
	sortNewestFirst(matched)

	if skip >= len(matched) {
		return []*model.Transaction{}, nil
	}
	end := len(matched)
	if limit > 0 && skip+limit < end {
		end = skip + limit
	}
	return matched[skip:end], nil
}

func (r ledger) RangeQuery(ctx context.Context, from, to time.Time) ([]*model.Transaction, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	out := []*model.Transaction{}
	for _, e := range r.v.visibleEntries() {
		if !e.CreatedAt.Before(from) && !e.CreatedAt.After(to) {
			out = append(out, e)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (r ledger) TopOwners(ctx context.Context, limit int) ([]model.OwnerActivity, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()

	ownerOf := make(map[int64]int64)
	for _, a := range r.v.visibleAccounts() {
		ownerOf[a.ID] = a.OwnerID
	}
	counts := make(map[int64]int64)
	for _, e := range r.v.visibleEntries() {
		if owner, ok := ownerOf[e.OriginAccountID]; ok {
			counts[owner]++
		}
	}

	out := make([]model.OwnerActivity, 0, len(counts))
	for ownerID, n := range counts {
		row := model.OwnerActivity{OwnerID: ownerID, TransactionCount: n}
		if o, ok := r.v.s.owners[ownerID]; ok {
			row.DisplayName = o.DisplayName
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TransactionCount != out[j].TransactionCount {
			return out[i].TransactionCount > out[j].TransactionCount
		}
		return out[i].OwnerID < out[j].OwnerID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func sortNewestFirst(entries []*model.Transaction) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}

type outbox struct{ s *Store }

func (r outbox) Create(ctx context.Context, msg *model.OutboxMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.nextOutboxID++
	msg.ID = r.s.nextOutboxID
	now := r.s.now()
	if msg.Status == "" {
		msg.Status = model.OutboxStatusPending
	}
	if msg.NextAttemptAt.IsZero() {
		msg.NextAttemptAt = now
	}
	msg.CreatedAt, msg.UpdatedAt = now, now

	cp := *msg
	r.s.outbox[cp.ID] = &cp
	return nil
}

func (r outbox) GetDue(ctx context.Context, now time.Time, limit int) ([]*model.OutboxMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var due []*model.OutboxMessage
	for _, m := range r.s.outbox {
		if m.Status == model.OutboxStatusPending && !m.NextAttemptAt.After(now) {
			cp := *m
			due = append(due, &cp)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r outbox) MarkSent(ctx context.Context, id int64) error {
	return r.update(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusSent
	})
}

func (r outbox) ScheduleRetry(ctx context.Context, id int64, next time.Time, lastErr string) error {
	return r.update(id, func(m *model.OutboxMessage) {
		m.RetryCount++
		m.NextAttemptAt = next
		m.LastError = repository.TruncateError(lastErr)
	})
}

func (r outbox) MarkDead(ctx context.Context, id int64, lastErr string) error {
	return r.update(id, func(m *model.OutboxMessage) {
		m.Status = model.OutboxStatusDead
		m.RetryCount++
		m.LastError = repository.TruncateError(lastErr)
	})
}

func (r outbox) PurgeSent(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.outbox {
		if m.Status == model.OutboxStatusSent && m.UpdatedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}

func (r outbox) update(id int64, fn func(m *model.OutboxMessage)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.outbox[id]
	if !ok {
		return nil
	}
	fn(m)
	m.UpdatedAt = r.s.now()
	return nil
}
