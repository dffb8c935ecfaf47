// Package funds implements the exchange's custodial ledger. Deposits are
// held per escrow and leave only through a settlement or refund payout; no
// other operation can touch a held balance.
package funds

import (
	"context"
	"sync"

	id "provena/pkg/domain"
	dErrors "provena/pkg/domain-errors"
	"provena/pkg/platform/sentinel"
)

// Payout is one leg of a disbursement.
type Payout struct {
	To     id.AccountID `json:"to"`
	Amount uint64       `json:"amount"`
}

// Ledger tracks held balances per escrow and settled balances per account.
// Conservation invariant: a disbursement must pay out exactly the held
// amount; partial releases are not a thing this ledger supports.
type Ledger struct {
	mu       sync.RWMutex
	held     map[id.EscrowID]uint64
	balances map[id.AccountID]uint64
}

func NewLedger() *Ledger {
	return &Ledger{
		held:     make(map[id.EscrowID]uint64),
		balances: make(map[id.AccountID]uint64),
	}
}

// Hold opens a custody position for an escrow.
func (l *Ledger) Hold(_ context.Context, escrowID id.EscrowID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[escrowID]; ok {
		return sentinel.ErrConflict
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "hold amount must be positive")
	}
	l.held[escrowID] = amount
	return nil
}

// AddToHold tops up an existing custody position.
func (l *Ledger) AddToHold(_ context.Context, escrowID id.EscrowID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.held[escrowID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if amount == 0 {
		return dErrors.New(dErrors.CodeValidation, "deposit must be positive")
	}
	l.held[escrowID] = held + amount
	return nil
}

// Held returns the amount currently in custody for an escrow.
func (l *Ledger) Held(_ context.Context, escrowID id.EscrowID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	held, ok := l.held[escrowID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	return held, nil
}

// Disburse closes a custody position by paying out its full amount. The
// payout legs must sum to exactly the held amount; anything else is an
// invariant violation and nothing moves.
func (l *Ledger) Disburse(_ context.Context, escrowID id.EscrowID, payouts []Payout) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.held[escrowID]
	if !ok {
		return sentinel.ErrNotFound
	}
	var total uint64
	for _, payout := range payouts {
		if payout.Amount > 0 && payout.To.IsNil() {
			return dErrors.New(dErrors.CodeInvariantViolation, "payout target cannot be null")
		}
		total += payout.Amount
	}
	if total != held {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payouts total %d but %d is held", total, held)
	}
	delete(l.held, escrowID)
	for _, payout := range payouts {
		if payout.Amount > 0 {
			l.balances[payout.To] += payout.Amount
		}
	}
	return nil
}

// Refund closes a custody position by returning everything to one account.
func (l *Ledger) Refund(_ context.Context, escrowID id.EscrowID, to id.AccountID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	held, ok := l.held[escrowID]
	if !ok {
		return 0, sentinel.ErrNotFound
	}
	if to.IsNil() {
		return 0, dErrors.New(dErrors.CodeInvariantViolation, "refund target cannot be null")
	}
	delete(l.held, escrowID)
	l.balances[to] += held
	return held, nil
}

// BalanceOf returns an account's settled (non-custodial) balance.
func (l *Ledger) BalanceOf(_ context.Context, account id.AccountID) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[account], nil
}

// TotalHeld sums every open custody position.
func (l *Ledger) TotalHeld(_ context.Context) (uint64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var total uint64
	for _, held := range l.held {
		total += held
	}
	return total, nil
}
