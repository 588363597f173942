package memory

import (
	"context"

	"bankcore/internal/model"
	"bankcore/internal/repository"

	"github.com/shopspring/decimal"
)

type accounts struct{ v *view }

func (r accounts) Get(ctx context.Context, id int64) (*model.Account, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	a, ok := r.v.account(id)
	if !ok {
		return nil, repository.ErrAccountNotFound
	}
	return a, nil
}

func (r accounts) LockForUpdate(ctx context.Context, filter repository.AccountFilter) (*model.Account, error) {
	tx := r.v.tx
	if tx != nil && !tx.lockedRows[filter.ID] {
		if _, err := r.match(filter); err != nil {
			return nil, err
		}
		m := r.v.s.rowLock(r.v.s.accountLocks, filter.ID)
		m.Lock()
		tx.held = append(tx.held, m)
		tx.lockedRows[filter.ID] = true
	}
	// re-read after the lock so the previous holder's commit is visible
	return r.match(filter)
}

func (r accounts) match(filter repository.AccountFilter) (*model.Account, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	a, ok := r.v.account(filter.ID)
	if !ok || !filter.Matches(a) {
		return nil, repository.ErrAccountNotFound
	}
	return a, nil
}

func (r accounts) UpdateBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := r.v.account(id); !ok {
		return repository.ErrAccountNotFound
	}
	if r.v.tx != nil {
		if r.stageCreated(id, func(a *model.Account) { a.Balance = balance }) {
			return nil
		}
		r.v.tx.balances[id] = balance
		return nil
	}
	s.accounts[id].Balance = balance
	s.accounts[id].UpdatedAt = s.now()
	return nil
}

func (r accounts) UpdateStatus(ctx context.Context, id int64, status model.AccountStatus) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := r.v.account(id); !ok {
		return repository.ErrAccountNotFound
	}
	if r.v.tx != nil {
		if r.stageCreated(id, func(a *model.Account) { a.Status = status }) {
			return nil
		}
		r.v.tx.statuses[id] = status
		return nil
	}
	s.accounts[id].Status = status
	s.accounts[id].UpdatedAt = s.now()
	return nil
}

// stageCreated applies fn to an account created in the same transaction.
func (r accounts) stageCreated(id int64, fn func(a *model.Account)) bool {
	for _, a := range r.v.tx.created {
		if a.ID == id {
			fn(a)
			return true
		}
	}
	return false
}

func (r accounts) FindByOwner(ctx context.Context, ownerID int64) ([]*model.Account, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	var out []*model.Account
	for _, a := range r.v.visibleAccounts() {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r accounts) ExistsOpenOfType(ctx context.Context, ownerID int64, accountType model.AccountType) (bool, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	for _, a := range r.v.visibleAccounts() {
		if a.OwnerID == ownerID && a.Type == accountType && a.Status != model.AccountStatusInactive {
			return true, nil
		}
	}
	return false, nil
}

func (r accounts) NumberExists(ctx context.Context, number string) (bool, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	return r.numberTaken(number), nil
}

func (r accounts) numberTaken(number string) bool {
	for _, a := range r.v.visibleAccounts() {
		if a.Number == number {
			return true
		}
	}
	return false
}

func (r accounts) Create(ctx context.Context, account *model.Account) error {
	s := r.v.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.numberTaken(account.Number) {
		return repository.ErrDuplicateKey
	}

	s.nextAccountID++
	account.ID = s.nextAccountID
	now := s.now()
	account.CreatedAt, account.UpdatedAt = now, now

	cp := *account
	if r.v.tx != nil {
		r.v.tx.created = append(r.v.tx.created, &cp)
		return nil
	}
	s.accounts[cp.ID] = &cp
	return nil
}

func (r accounts) CountByStatus(ctx context.Context) (map[model.AccountStatus]int64, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	counts := make(map[model.AccountStatus]int64)
	for _, a := range r.v.visibleAccounts() {
		counts[a.Status]++
	}
	return counts, nil
}

func (r accounts) SumBalanceByType(ctx context.Context) (map[model.AccountType]decimal.Decimal, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	totals := make(map[model.AccountType]decimal.Decimal)
	for _, a := range r.v.visibleAccounts() {
		totals[a.Type] = totals[a.Type].Add(a.Balance)
	}
	return totals, nil
}

type owners struct{ v *view }

func (r owners) Get(ctx context.Context, id int64) (*model.Owner, error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	o, ok := r.v.s.owners[id]
	if !ok {
		return nil, repository.ErrOwnerNotFound
	}
	cp := *o
	return &cp, nil
}

func (r owners) CountByActive(ctx context.Context) (active, inactive int64, err error) {
	r.v.s.mu.Lock()
	defer r.v.s.mu.Unlock()
	for _, o := range r.v.s.owners {
		if o.Active {
			active++
		} else {
			inactive++
		}
	}
	return active, inactive, nil
}

func (r owners) LockForUpdate(ctx context.Context, id int64) (*model.Owner, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}
	if tx := r.v.tx; tx != nil && !tx.lockedOwners[id] {
		m := r.v.s.rowLock(r.v.s.ownerLocks, id)
		m.Lock()
		tx.held = append(tx.held, m)
		tx.lockedOwners[id] = true
	}
	return r.Get(ctx, id)
}
