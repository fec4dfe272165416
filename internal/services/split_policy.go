package services

import (
	"fmt"

	"budgetflow/internal/core"
)

// SplitPolicy decides what happens when split assignments do not add up to
// the pool entry they are drawn from.
type SplitPolicy interface {
	Name() string
	// Remainder returns the amount left in the pool entry after assigning
	// assigned out of available.
	Remainder(available, assigned core.Money) (core.Money, error)
}

// ExactSplit requires the assignments to consume the entry exactly.
type ExactSplit struct{}

func (ExactSplit) Name() string { return "exact" }

func (ExactSplit) Remainder(available, assigned core.Money) (core.Money, error) {
	if assigned != available {
		return core.Money{}, fmt.Errorf("%w: assigned %s of %s", ErrSplitMismatch, assigned, available)
	}
	return core.Money{}, nil
}

// KeepRemainderSplit allows under-assignment; the rest stays in the pool.
type KeepRemainderSplit struct{}

func (KeepRemainderSplit) Name() string { return "keep-remainder" }

func (KeepRemainderSplit) Remainder(available, assigned core.Money) (core.Money, error) {
	rest := available.Sub(assigned)
	if rest.IsNegative() {
		return core.Money{}, fmt.Errorf("%w: assigned %s exceeds %s", ErrSplitMismatch, assigned, available)
	}
	return rest, nil
}

var splitPolicies = map[string]SplitPolicy{
	ExactSplit{}.Name():         ExactSplit{},
	KeepRemainderSplit{}.Name(): KeepRemainderSplit{},
}

// GetSplitPolicy looks a policy up by name; "" selects ExactSplit.
func GetSplitPolicy(name string) (SplitPolicy, error) {
	if name == "" {
		return ExactSplit{}, nil
	}
	p, ok := splitPolicies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPolicy, name)
	}
	return p, nil
}
