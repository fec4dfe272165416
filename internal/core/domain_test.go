package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestExpenseValidate(t *testing.T) {
	good := Expense{
		Date:          NewDate(2025, 1, 1),
		Description:   "ok",
		Amount:        Money{Cents: 100},
		Category:      "Food",
		PaymentMethod: PaymentCash,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Expense{
		{Date: Date{Time: time.Time{}}, Amount: Money{Cents: 1}, Category: "c", PaymentMethod: PaymentCash}, // zero date
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 0}, Category: "c", PaymentMethod: PaymentCash},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: " ", PaymentMethod: PaymentCash},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "c", PaymentMethod: "cheque"},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestCreditUnassigned(t *testing.T) {
	c := Credit{Date: NewDate(2025, 2, 1), Amount: Money{Cents: 100}}
	if !c.Unassigned() {
		t.Fatalf("credit without category should be unassigned")
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("uncategorized credit should validate, got %v", err)
	}
	c.Category = "Food"
	if c.Unassigned() {
		t.Fatalf("categorized credit reported as unassigned")
	}
}

func TestBudgetValidateAllowsZero(t *testing.T) {
	b := Budget{Category: "Food", Month: NewMonth(2025, 1)}
	if err := b.Validate(); err != nil {
		t.Fatalf("zero budget should be valid, got %v", err)
	}
	b.Amount = Money{Cents: -1}
	if err := b.Validate(); err == nil {
		t.Fatalf("negative budget should be rejected")
	}
}

func TestMonthArithmetic(t *testing.T) {
	dec := NewMonth(2024, 12)
	if got := dec.Next(); got != NewMonth(2025, 1) {
		t.Fatalf("next of %s = %s", dec, got)
	}
	if got := NewMonth(2025, 1).Prev(); got != dec {
		t.Fatalf("prev = %s", got)
	}
	if !dec.Before(NewMonth(2025, 1)) || dec.After(NewMonth(2025, 1)) {
		t.Fatalf("ordering broken")
	}
	if !NewMonth(2025, 3).Contains(time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)) {
		t.Fatalf("contains broken")
	}
	m, err := ParseMonth("2025-07")
	if err != nil || m != NewMonth(2025, 7) || m.Key() != "2025-07" {
		t.Fatalf("parse month: %v %v", m, err)
	}
	if _, err := ParseMonth("2025-13"); err == nil {
		t.Fatalf("expected error for bad month key")
	}
}
