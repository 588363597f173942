// Package memory is an in-process implementation of the repository contracts.
//
// It keeps the row-locking discipline of the relational store: LockForUpdate
// inside Transaction takes a per-row mutex that is held until the
// transaction commits or rolls back, and writes stay invisible to other
// callers until commit. Values handed out are copies; callers never get a
// pointer into the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"bankcore/internal/model"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu  sync.Mutex
	now func() time.Time

	accounts map[int64]*model.Account
	owners   map[int64]*model.Owner
	entries  map[int64]*model.Transaction
	outbox   map[int64]*model.OutboxMessage

	accountLocks map[int64]*sync.Mutex
	ownerLocks   map[int64]*sync.Mutex

	nextAccountID int64
	nextOwnerID   int64
	nextEntryID   int64
	nextOutboxID  int64
}

func New() *Store {
	return &Store{
		now:          time.Now,
		accounts:     make(map[int64]*model.Account),
		owners:       make(map[int64]*model.Owner),
		entries:      make(map[int64]*model.Transaction),
		outbox:       make(map[int64]*model.OutboxMessage),
		accountLocks: make(map[int64]*sync.Mutex),
		ownerLocks:   make(map[int64]*sync.Mutex),
	}
}

// SetClock replaces the clock used for created_at/updated_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// AddOwner stores an owner, assigning an id when it has none.
func (s *Store) AddOwner(o model.Owner) *model.Owner {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		s.nextOwnerID++
		o.ID = s.nextOwnerID
	} else if o.ID > s.nextOwnerID {
		s.nextOwnerID = o.ID
	}
	s.owners[o.ID] = &o
	cp := o
	return &cp
}

// AddAccount stores an account as-is, bypassing creation rules.
func (s *Store) AddAccount(a model.Account) *model.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == 0 {
		s.nextAccountID++
		a.ID = s.nextAccountID
	} else if a.ID > s.nextAccountID {
		s.nextAccountID = a.ID
	}
	if a.Status == "" {
		a.Status = model.AccountStatusActive
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	s.accounts[a.ID] = &a
	cp := a
	return &cp
}

// OutboxMessages returns a snapshot of every outbox row ordered by id.
func (s *Store) OutboxMessages() []model.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OutboxMessage, 0, len(s.outbox))
	for _, m := range s.outbox {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Accounts() repository.AccountStore { return accounts{&view{s: s}} }
func (s *Store) Ledger() repository.LedgerStore    { return ledger{&view{s: s}} }
func (s *Store) Owners() repository.OwnerStore     { return owners{&view{s: s}} }
func (s *Store) Outbox() repository.OutboxStore    { return outbox{s: s} }

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Repositories) error) error {
	tx := newTxn()
	defer tx.release()

	if err := fn(repos{&view{s: s, tx: tx}}); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range tx.entries {
		if e.IdempotencyKey == nil {
			continue
		}
		for _, existing := range s.entries {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *e.IdempotencyKey {
				return repository.ErrDuplicateKey
			}
		}
	}

	now := s.now()
	for _, a := range tx.created {
		s.accounts[a.ID] = a
	}
	for id, balance := range tx.balances {
		s.accounts[id].Balance = balance
		s.accounts[id].UpdatedAt = now
	}
	for id, status := range tx.statuses {
		s.accounts[id].Status = status
		s.accounts[id].UpdatedAt = now
	}
	for _, e := range tx.entries {
		s.entries[e.ID] = e
	}
	return nil
}

func (s *Store) rowLock(locks map[int64]*sync.Mutex, id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := locks[id]
	if !ok {
		m = &sync.Mutex{}
		locks[id] = m
	}
	return m
}

// txn holds the row locks and staged writes of one transaction.
type txn struct {
	held         []*sync.Mutex
	lockedRows   map[int64]bool
	lockedOwners map[int64]bool
	balances     map[int64]decimal.Decimal
	statuses     map[int64]model.AccountStatus
	created      []*model.Account
	entries      []*model.Transaction
}

func newTxn() *txn {
	return &txn{
		lockedRows:   make(map[int64]bool),
		lockedOwners: make(map[int64]bool),
		balances:     make(map[int64]decimal.Decimal),
		statuses:     make(map[int64]model.AccountStatus),
	}
}

func (t *txn) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
	t.held = nil
}

// view reads committed state overlaid with the staged writes of tx.
// A nil tx means every write is applied immediately.
type view struct {
	s  *Store
	tx *txn
}

type repos struct{ v *view }

func (r repos) Accounts() repository.AccountStore { return accounts{r.v} }
func (r repos) Ledger() repository.LedgerStore    { return ledger{r.v} }
func (r repos) Owners() repository.OwnerStore     { return owners{r.v} }

// visibleAccounts must be called with s.mu held.
func (v *view) visibleAccounts() []*model.Account {
	out := make([]*model.Account, 0, len(v.s.accounts))
	for _, a := range v.s.accounts {
		out = append(out, v.overlay(a))
	}
	if v.tx != nil {
		for _, a := range v.tx.created {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// account must be called with s.mu held.
func (v *view) account(id int64) (*model.Account, bool) {
	if a, ok := v.s.accounts[id]; ok {
		return v.overlay(a), true
	}
	if v.tx != nil {
		for _, a := range v.tx.created {
			if a.ID == id {
				cp := *a
				return &cp, true
			}
		}
	}
	return nil, false
}

func (v *view) overlay(a *model.Account) *model.Account {
	cp := *a
	if v.tx != nil {
		if b, ok := v.tx.balances[a.ID]; ok {
			cp.Balance = b
		}
		if st, ok := v.tx.statuses[a.ID]; ok {
			cp.Status = st
		}
	}
	return &cp
}

// visibleEntries must be called with s.mu held.
func (v *view) visibleEntries() []*model.Transaction {
	out := make([]*model.Transaction, 0, len(v.s.entries))
	for _, e := range v.s.entries {
		cp := *e
		out = append(out, &cp)
	}
	if v.tx != nil {
		for _, e := range v.tx.entries {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}
