package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"budgetflow/internal/core"
	"budgetflow/internal/engine"
	"budgetflow/internal/ledger"
)

// Assignment moves part of a pool entry into a category for a target month.
type Assignment struct {
	Category string
	Amount   core.Money
	Target   core.Month
}

// Reconciler maintains the unassigned-credit pool.
type Reconciler struct {
	store  ledger.Store
	policy SplitPolicy
}

func NewReconciler(store ledger.Store, policy SplitPolicy) *Reconciler {
	if policy == nil {
		policy = ExactSplit{}
	}
	return &Reconciler{store: store, policy: policy}
}

// Policy returns the split policy in force.
func (r *Reconciler) Policy() SplitPolicy { return r.policy }

// AddOrMerge adds amount to the pool entry for month, creating it when
// absent. Calling it twice adds twice.
func (r *Reconciler) AddOrMerge(ctx context.Context, month core.Month, amount core.Money) (core.UnassignedCredit, error) {
	return addOrMerge(ctx, r.store, month, amount)
}

func addOrMerge(ctx context.Context, s ledger.PoolStore, month core.Month, amount core.Money) (core.UnassignedCredit, error) {
	if err := month.Validate(); err != nil {
		return core.UnassignedCredit{}, err
	}
	if err := amount.Validate(); err != nil {
		return core.UnassignedCredit{}, err
	}
	e, err := s.AddToPool(ctx, month, amount)
	if err != nil {
		return core.UnassignedCredit{}, fmt.Errorf("add to pool %s: %w", month, err)
	}
	return e, nil
}

// Entries lists the pool.
func (r *Reconciler) Entries(ctx context.Context) ([]core.UnassignedCredit, error) {
	entries, err := r.store.ListPool(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pool: %w", err)
	}
	return entries, nil
}

// Total sums every pool entry.
func (r *Reconciler) Total(ctx context.Context) (core.Money, error) {
	entries, err := r.Entries(ctx)
	if err != nil {
		return core.Money{}, err
	}
	return engine.PoolTotal(entries), nil
}

// Split turns a pool entry into categorized credits. Assignments with a
// non-positive amount or a blank category are skipped. On a transactional
// store everything commits or nothing does; otherwise the entry is only
// touched after every credit is written, and a failure part way through
// returns a *PartialSplitError.
func (r *Reconciler) Split(ctx context.Context, entryID string, assignments []Assignment) ([]core.Credit, error) {
	entry, err := r.store.GetPoolEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("get pool entry: %w", err)
	}

	usable, assigned, err := usableAssignments(assignments)
	if err != nil {
		return nil, err
	}
	remainder, err := r.policy.Remainder(entry.Amount, assigned)
	if err != nil {
		return nil, err
	}

	if tx, ok := r.store.(ledger.Transactor); ok {
		var written []core.Credit
		err := tx.RunInTx(ctx, func(s ledger.Store) error {
			var err error
			if written, err = writeSplitCredits(ctx, s, entry, usable); err != nil {
				return err
			}
			return settleEntry(ctx, s, entry, remainder)
		})
		if err != nil {
			return nil, fmt.Errorf("split pool entry %s: %w", entry.Month, err)
		}
		r.logSplit(ctx, entry, written, remainder)
		return written, nil
	}

	written, err := writeSplitCredits(ctx, r.store, entry, usable)
	if err != nil {
		if len(written) == 0 {
			return nil, fmt.Errorf("split pool entry %s: %w", entry.Month, err)
		}
		return written, &PartialSplitError{Written: written, Cause: err}
	}
	if err := settleEntry(ctx, r.store, entry, remainder); err != nil {
		// Credits carry SourceMonth, so a forced pool rebuild corrects the entry.
		return written, &PartialSplitError{Written: written, Cause: err}
	}
	r.logSplit(ctx, entry, written, remainder)
	return written, nil
}

func (r *Reconciler) logSplit(ctx context.Context, entry core.UnassignedCredit, written []core.Credit, remainder core.Money) {
	slog.InfoContext(ctx, "Unassigned credit split",
		"month", entry.Month.Key(),
		"credits", len(written),
		"remainder", remainder.String(),
		"policy", r.policy.Name())
}

func usableAssignments(assignments []Assignment) ([]Assignment, core.Money, error) {
	var (
		out   []Assignment
		total core.Money
	)
	for _, a := range assignments {
		if a.Amount.Cents <= 0 || strings.TrimSpace(a.Category) == "" {
			continue
		}
		if err := a.Target.Validate(); err != nil {
			return nil, core.Money{}, fmt.Errorf("assignment %s: %w", a.Category, err)
		}
		out = append(out, a)
		total = total.Add(a.Amount)
	}
	if len(out) == 0 {
		return nil, core.Money{}, ErrEmptySplit
	}
	return out, total, nil
}

// SplitDescription is the description given to credits drawn from the pool
// entry of month.
func SplitDescription(month core.Month) string {
	return "Split from unassigned credit " + month.Key()
}

func writeSplitCredits(ctx context.Context, s ledger.CreditStore, entry core.UnassignedCredit, assignments []Assignment) ([]core.Credit, error) {
	source := entry.Month
	written := make([]core.Credit, 0, len(assignments))
	for _, a := range assignments {
		c, err := s.CreateCredit(ctx, core.Credit{
			Category:    a.Category,
			Amount:      a.Amount,
			Description: SplitDescription(source),
			Date:        core.DateOf(a.Target.FirstDay()),
			SourceMonth: &source,
		})
		if err != nil {
			return written, fmt.Errorf("write credit for %s: %w", a.Category, err)
		}
		written = append(written, c)
	}
	return written, nil
}

func settleEntry(ctx context.Context, s ledger.PoolStore, entry core.UnassignedCredit, remainder core.Money) error {
	if remainder.IsZero() {
		if err := s.DeletePoolEntry(ctx, entry.ID); err != nil {
			return fmt.Errorf("delete pool entry: %w", err)
		}
		return nil
	}
	entry.Amount = remainder
	if err := s.UpdatePoolEntry(ctx, entry); err != nil {
		return fmt.Errorf("update pool entry: %w", err)
	}
	return nil
}
