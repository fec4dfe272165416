package core

import (
	"errors"
	"strings"
	"time"
)

const (
	PaymentCash          PaymentMethod = "cash"
	PaymentCreditCardDue PaymentMethod = "credit_card_due"
)

// DefaultSalaryCategory is the category whose credits mark a salary month.
const DefaultSalaryCategory = "Salary"

type (
	PaymentMethod string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Category struct {
		ID   string
		Name string
		Icon string
	}

	// Budget is the declared amount for one category in one month.
	Budget struct {
		Category string
		Month    Month
		Amount   Money
	}

	// Expense is money that has left the budget.
	Expense struct {
		ID            string
		Category      string
		Amount        Money
		Description   string
		Date          Date
		CreatedAt     time.Time
		PaymentMethod PaymentMethod
	}

	// Credit is money entering the budget. An empty Category means the amount
	// sits in the unassigned pool for its month until split.
	Credit struct {
		ID          string
		Category    string
		Amount      Money
		Description string
		Date        Date
		CreatedAt   time.Time
		// SourceMonth is set on credits produced by splitting a pool entry.
		SourceMonth *Month
	}

	// CreditCardExpense is a card charge tracked apart from expenses until paid.
	CreditCardExpense struct {
		ID          string
		Category    string
		Amount      Money
		Description string
		Date        Date
		Paid        bool
		PaidAt      time.Time
	}

	// UnassignedCredit is the pool entry for one month.
	UnassignedCredit struct {
		ID     string
		Month  Month
		Amount Money
	}
)

var (
	ErrInvalidDay         = errors.New("invalid day")
	ErrInvalidMonth       = errors.New("invalid month")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyDescription   = errors.New("empty description")
	ErrEmptyCategory      = errors.New("empty category")
	ErrInvalidPayment     = errors.New("invalid payment method")
	ErrDescriptionTooLong = errors.New("description too long (max 200 characters)")
)

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// Month returns the calendar month the date falls in.
func (d Date) Month() Month {
	return MonthOf(d.Time)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to a UTC calendar date.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (p PaymentMethod) Validate() error {
	switch p {
	case PaymentCash, PaymentCreditCardDue:
		return nil
	default:
		return ErrInvalidPayment
	}
}

func validateDescription(s string) error {
	if len(s) > 200 {
		return ErrDescriptionTooLong
	}
	return nil
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrEmptyCategory
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return ErrEmptyCategory
	}
	if err := b.Month.Validate(); err != nil {
		return err
	}
	// A zero budget is allowed; it is how a budget is cleared without deleting it.
	if b.Amount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if err := validateDescription(e.Description); err != nil {
		return err
	}
	return e.PaymentMethod.Validate()
}

// Unassigned reports whether the credit belongs to the pool.
func (c Credit) Unassigned() bool {
	return strings.TrimSpace(c.Category) == ""
}

func (c Credit) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	return validateDescription(c.Description)
}

func (c CreditCardExpense) Validate() error {
	if err := c.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Category) == "" {
		return ErrEmptyCategory
	}
	if err := c.Amount.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Description) == "" {
		return ErrEmptyDescription
	}
	return validateDescription(c.Description)
}
