// Package events carries typed ledger mutation events from the services that
// write the ledger to the refresh coordinator that recomputes aggregates.
package events

import (
	"context"
	"encoding/json"
	"time"

	"budgetflow/internal/core"
)

// Kind names a ledger mutation.
type Kind string

const (
	ExpenseAdded       Kind = "expense.added"
	ExpenseEdited      Kind = "expense.edited"
	ExpenseDeleted     Kind = "expense.deleted"
	CreditAdded        Kind = "credit.added"
	CreditEdited       Kind = "credit.edited"
	CreditDeleted      Kind = "credit.deleted"
	CreditCardAdded    Kind = "credit_card.added"
	CreditCardPaid     Kind = "credit_card.paid"
	UnassignedSplit    Kind = "unassigned.split"
	SalaryRecorded     Kind = "salary.recorded"
	SalaryMonthCleared Kind = "salary.month_cleared"
	BudgetChanged      Kind = "budget.changed"
	CategoryDeleted    Kind = "category.deleted"
	InitialBalanceSet  Kind = "initial_balance.set"
	MonthRollover      Kind = "month.rollover"
)

// ForcesPoolRebuild reports whether events of this kind can desynchronize the
// unassigned pool from the credit table.
func (k Kind) ForcesPoolRebuild() bool {
	switch k {
	case CreditAdded, CreditEdited, CreditDeleted, SalaryRecorded, UnassignedSplit:
		return true
	default:
		return false
	}
}

// Event is a single ledger mutation notice. Months lists the calendar months
// whose summaries the mutation may have changed.
type Event struct {
	Kind      Kind         `json:"kind"`
	Months    []core.Month `json:"months,omitempty"`
	Force     bool         `json:"force,omitempty"`
	EntityID  string       `json:"entity_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// New builds an event; Force follows the kind.
func New(kind Kind, entityID string, months ...core.Month) Event {
	return Event{
		Kind:      kind,
		Months:    dedupe(months),
		Force:     kind.ForcesPoolRebuild(),
		EntityID:  entityID,
		Timestamp: time.Now(),
	}
}

func dedupe(months []core.Month) []core.Month {
	if len(months) < 2 {
		return months
	}
	seen := make(map[core.Month]struct{}, len(months))
	out := months[:0:0]
	for _, m := range months {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// FromJSON decodes an event
func FromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}

// Publisher publishes ledger events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber hands out a channel of events. The channel closes when ctx ends.
type Subscriber interface {
	Subscribe(ctx context.Context) <-chan Event
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ctx context.Context, e Event) error

func (f PublisherFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Multi fans a publish out to several publishers and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
