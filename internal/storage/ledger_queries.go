package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"budgetflow/internal/core"
	"budgetflow/internal/ledger"
)

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.query(ctx, sq.Select("id", "name", "icon").
		From("categories").
		Where(sq.Eq{"user_id": r.userID}).
		OrderBy("name"))
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Icon); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := r.exec(ctx, sq.Insert("categories").
		Columns("user_id", "id", "name", "icon").
		Values(r.userID, c.ID, c.Name, c.Icon))
	if isUniqueViolation(err) {
		return core.Category{}, fmt.Errorf("category %s: %w", c.Name, ledger.ErrConflict)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, name string) error {
	return r.RunInTx(ctx, func(tx ledger.Store) error {
		t := tx.(*SQLiteRepository)
		if err := t.execOne(ctx, sq.Delete("categories").
			Where(sq.Eq{"user_id": t.userID, "name": name}), "category", name); err != nil {
			return err
		}
		if _, err := t.exec(ctx, sq.Delete("budgets").
			Where(sq.Eq{"user_id": t.userID, "category": name})); err != nil {
			return fmt.Errorf("delete budgets for %s: %w", name, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) UpsertBudget(ctx context.Context, b core.Budget) error {
	_, err := r.exec(ctx, sq.Insert("budgets").
		Columns("user_id", "category", "month", "amount_cents").
		Values(r.userID, b.Category, b.Month.Key(), b.Amount.Cents).
		Suffix("ON CONFLICT(user_id, category, month) DO UPDATE SET amount_cents = excluded.amount_cents"))
	if err != nil {
		return fmt.Errorf("upsert budget: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteBudget(ctx context.Context, category string, m core.Month) error {
	return r.execOne(ctx, sq.Delete("budgets").
		Where(sq.Eq{"user_id": r.userID, "category": category, "month": m.Key()}),
		"budget", category+"|"+m.Key())
}

func (r *SQLiteRepository) ListBudgets(ctx context.Context, from, to core.Month) ([]core.Budget, error) {
	rows, err := r.query(ctx, sq.Select("category", "month", "amount_cents").
		From("budgets").
		Where(sq.And{
			sq.Eq{"user_id": r.userID},
			sq.GtOrEq{"month": from.Key()},
			sq.LtOrEq{"month": to.Key()},
		}).
		OrderBy("month", "category"))
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	defer rows.Close()

	var out []core.Budget
	for rows.Next() {
		var (
			b     core.Budget
			month string
		)
		if err := rows.Scan(&b.Category, &month, &b.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		if b.Month, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

var expenseColumns = []string{"id", "category", "amount_cents", "description", "date", "created_at", "payment_method"}

func scanExpense(s interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e             core.Expense
		date, created string
		method        string
	)
	if err := s.Scan(&e.ID, &e.Category, &e.Amount.Cents, &e.Description, &date, &created, &method); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return core.Expense{}, err
	}
	if e.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.Expense{}, err
	}
	e.PaymentMethod = core.PaymentMethod(method)
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PaymentMethod == "" {
		e.PaymentMethod = core.PaymentCash
	}
	_, err := r.exec(ctx, sq.Insert("expenses").
		Columns(append([]string{"user_id"}, expenseColumns...)...).
		Values(r.userID, e.ID, e.Category, e.Amount.Cents, e.Description,
			e.Date.Format(dateLayout), e.CreatedAt.Format(timestampLayout), string(e.PaymentMethod)))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"category", e.Category,
		"amount_cents", e.Amount.Cents,
		"date", e.Date.Format(dateLayout))
	return e, nil
}

func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) error {
	return r.execOne(ctx, sq.Update("expenses").
		Set("category", e.Category).
		Set("amount_cents", e.Amount.Cents).
		Set("description", e.Description).
		Set("date", e.Date.Format(dateLayout)).
		Set("payment_method", string(e.PaymentMethod)).
		Where(sq.Eq{"user_id": r.userID, "id": e.ID}), "expense", e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id string) error {
	return r.execOne(ctx, sq.Delete("expenses").
		Where(sq.Eq{"user_id": r.userID, "id": id}), "expense", id)
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	query, args, err := sq.Select(expenseColumns...).
		From("expenses").
		Where(sq.Eq{"user_id": r.userID, "id": id}).ToSql()
	if err != nil {
		return core.Expense{}, fmt.Errorf("build query: %w", err)
	}
	e, err := scanExpense(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Expense{}, errNoRows(err, "expense", id)
	}
	return e, nil
}

func (r *SQLiteRepository) ListExpenses(ctx context.Context, f ledger.Filter) ([]core.Expense, error) {
	rows, err := r.query(ctx, sq.Select(expenseColumns...).
		From("expenses").
		Where(r.scoped(f)).
		OrderBy("date", "id"))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var creditColumns = []string{"id", "category", "amount_cents", "description", "date", "created_at", "source_month"}

func scanCredit(s interface{ Scan(...any) error }) (core.Credit, error) {
	var (
		c             core.Credit
		date, created string
		source        sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Category, &c.Amount.Cents, &c.Description, &date, &created, &source); err != nil {
		return core.Credit{}, err
	}
	var err error
	if c.Date, err = parseDate(date); err != nil {
		return core.Credit{}, err
	}
	if c.CreatedAt, err = parseTimestamp(created); err != nil {
		return core.Credit{}, err
	}
	if c.SourceMonth, err = scanMonth(source); err != nil {
		return core.Credit{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCredit(ctx context.Context, c core.Credit) (core.Credit, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := r.exec(ctx, sq.Insert("credits").
		Columns(append([]string{"user_id"}, creditColumns...)...).
		Values(r.userID, c.ID, c.Category, c.Amount.Cents, c.Description,
			c.Date.Format(dateLayout), c.CreatedAt.Format(timestampLayout), nullableMonth(c.SourceMonth)))
	if err != nil {
		return core.Credit{}, fmt.Errorf("create credit: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) UpdateCredit(ctx context.Context, c core.Credit) error {
	return r.execOne(ctx, sq.Update("credits").
		Set("category", c.Category).
		Set("amount_cents", c.Amount.Cents).
		Set("description", c.Description).
		Set("date", c.Date.Format(dateLayout)).
		Set("source_month", nullableMonth(c.SourceMonth)).
		Where(sq.Eq{"user_id": r.userID, "id": c.ID}), "credit", c.ID)
}

func (r *SQLiteRepository) DeleteCredit(ctx context.Context, id string) error {
	return r.execOne(ctx, sq.Delete("credits").
		Where(sq.Eq{"user_id": r.userID, "id": id}), "credit", id)
}

func (r *SQLiteRepository) GetCredit(ctx context.Context, id string) (core.Credit, error) {
	query, args, err := sq.Select(creditColumns...).
		From("credits").
		Where(sq.Eq{"user_id": r.userID, "id": id}).ToSql()
	if err != nil {
		return core.Credit{}, fmt.Errorf("build query: %w", err)
	}
	c, err := scanCredit(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.Credit{}, errNoRows(err, "credit", id)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCredits(ctx context.Context, f ledger.Filter) ([]core.Credit, error) {
	return r.listCredits(ctx, r.scoped(f))
}

func (r *SQLiteRepository) ListAllCredits(ctx context.Context) ([]core.Credit, error) {
	return r.listCredits(ctx, sq.Eq{"user_id": r.userID})
}

func (r *SQLiteRepository) listCredits(ctx context.Context, where sq.Sqlizer) ([]core.Credit, error) {
	rows, err := r.query(ctx, sq.Select(creditColumns...).
		From("credits").
		Where(where).
		OrderBy("date", "id"))
	if err != nil {
		return nil, fmt.Errorf("list credits: %w", err)
	}
	defer rows.Close()

	var out []core.Credit
	for rows.Next() {
		c, err := scanCredit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var cardColumns = []string{"id", "category", "amount_cents", "description", "date", "paid", "paid_at"}

func scanCard(s interface{ Scan(...any) error }) (core.CreditCardExpense, error) {
	var (
		c      core.CreditCardExpense
		date   string
		paidAt sql.NullString
	)
	if err := s.Scan(&c.ID, &c.Category, &c.Amount.Cents, &c.Description, &date, &c.Paid, &paidAt); err != nil {
		return core.CreditCardExpense{}, err
	}
	var err error
	if c.Date, err = parseDate(date); err != nil {
		return core.CreditCardExpense{}, err
	}
	if c.PaidAt, err = parseTimestamp(paidAt.String); err != nil {
		return core.CreditCardExpense{}, err
	}
	return c, nil
}

func (r *SQLiteRepository) CreateCreditCardExpense(ctx context.Context, c core.CreditCardExpense) (core.CreditCardExpense, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	var paidAt sql.NullString
	if !c.PaidAt.IsZero() {
		paidAt = sql.NullString{String: c.PaidAt.Format(timestampLayout), Valid: true}
	}
	_, err := r.exec(ctx, sq.Insert("credit_card_expenses").
		Columns(append([]string{"user_id"}, cardColumns...)...).
		Values(r.userID, c.ID, c.Category, c.Amount.Cents, c.Description,
			c.Date.Format(dateLayout), c.Paid, paidAt))
	if err != nil {
		return core.CreditCardExpense{}, fmt.Errorf("create credit card expense: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCreditCardExpense(ctx context.Context, id string) (core.CreditCardExpense, error) {
	query, args, err := sq.Select(cardColumns...).
		From("credit_card_expenses").
		Where(sq.Eq{"user_id": r.userID, "id": id}).ToSql()
	if err != nil {
		return core.CreditCardExpense{}, fmt.Errorf("build query: %w", err)
	}
	c, err := scanCard(r.q.QueryRowContext(ctx, query, args...))
	if err != nil {
		return core.CreditCardExpense{}, errNoRows(err, "credit card expense", id)
	}
	return c, nil
}

func (r *SQLiteRepository) MarkCreditCardPaid(ctx context.Context, id string, at time.Time) error {
	return r.execOne(ctx, sq.Update("credit_card_expenses").
		Set("paid", true).
		Set("paid_at", at.UTC().Format(timestampLayout)).
		Where(sq.Eq{"user_id": r.userID, "id": id}), "credit card expense", id)
}

func (r *SQLiteRepository) ListCreditCardExpenses(ctx context.Context, f ledger.Filter, unpaidOnly bool) ([]core.CreditCardExpense, error) {
	where := r.scoped(f)
	if unpaidOnly {
		where = append(where, sq.Eq{"paid": false})
	}
	rows, err := r.query(ctx, sq.Select(cardColumns...).
		From("credit_card_expenses").
		Where(where).
		OrderBy("date", "id"))
	if err != nil {
		return nil, fmt.Errorf("list credit card expenses: %w", err)
	}
	defer rows.Close()

	var out []core.CreditCardExpense
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credit card expense: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) AddToPool(ctx context.Context, m core.Month, amount core.Money) (core.UnassignedCredit, error) {
	_, err := r.exec(ctx, sq.Insert("unassigned_pool").
		Columns("user_id", "id", "month", "amount_cents").
		Values(r.userID, uuid.NewString(), m.Key(), amount.Cents).
		Suffix("ON CONFLICT(user_id, month) DO UPDATE SET amount_cents = amount_cents + excluded.amount_cents"))
	if err != nil {
		return core.UnassignedCredit{}, fmt.Errorf("add to pool: %w", err)
	}
	return r.poolEntry(ctx, sq.Eq{"user_id": r.userID, "month": m.Key()}, m.Key())
}

func (r *SQLiteRepository) GetPoolEntry(ctx context.Context, id string) (core.UnassignedCredit, error) {
	return r.poolEntry(ctx, sq.Eq{"user_id": r.userID, "id": id}, id)
}

func (r *SQLiteRepository) poolEntry(ctx context.Context, where sq.Eq, key string) (core.UnassignedCredit, error) {
	query, args, err := sq.Select("id", "month", "amount_cents").
		From("unassigned_pool").
		Where(where).ToSql()
	if err != nil {
		return core.UnassignedCredit{}, fmt.Errorf("build query: %w", err)
	}
	var (
		e     core.UnassignedCredit
		month string
	)
	if err := r.q.QueryRowContext(ctx, query, args...).Scan(&e.ID, &month, &e.Amount.Cents); err != nil {
		return core.UnassignedCredit{}, errNoRows(err, "pool entry", key)
	}
	if e.Month, err = core.ParseMonth(month); err != nil {
		return core.UnassignedCredit{}, err
	}
	return e, nil
}

func (r *SQLiteRepository) ListPool(ctx context.Context) ([]core.UnassignedCredit, error) {
	rows, err := r.query(ctx, sq.Select("id", "month", "amount_cents").
		From("unassigned_pool").
		Where(sq.Eq{"user_id": r.userID}).
		OrderBy("month"))
	if err != nil {
		return nil, fmt.Errorf("list pool: %w", err)
	}
	defer rows.Close()

	var out []core.UnassignedCredit
	for rows.Next() {
		var (
			e     core.UnassignedCredit
			month string
		)
		if err := rows.Scan(&e.ID, &month, &e.Amount.Cents); err != nil {
			return nil, fmt.Errorf("scan pool entry: %w", err)
		}
		if e.Month, err = core.ParseMonth(month); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdatePoolEntry(ctx context.Context, e core.UnassignedCredit) error {
	return r.execOne(ctx, sq.Update("unassigned_pool").
		Set("amount_cents", e.Amount.Cents).
		Where(sq.Eq{"user_id": r.userID, "id": e.ID}), "pool entry", e.ID)
}

func (r *SQLiteRepository) DeletePoolEntry(ctx context.Context, id string) error {
	return r.execOne(ctx, sq.Delete("unassigned_pool").
		Where(sq.Eq{"user_id": r.userID, "id": id}), "pool entry", id)
}

// ReplacePool deletes the months missing from entries and upserts the rest,
// so surviving months keep their ids.
func (r *SQLiteRepository) ReplacePool(ctx context.Context, entries []core.UnassignedCredit) error {
	return r.RunInTx(ctx, func(tx ledger.Store) error {
		t := tx.(*SQLiteRepository)
		keep := make([]string, 0, len(entries))
		for _, e := range entries {
			keep = append(keep, e.Month.Key())
		}
		del := sq.Delete("unassigned_pool").Where(sq.Eq{"user_id": t.userID})
		if len(keep) > 0 {
			del = del.Where(sq.NotEq{"month": keep})
		}
		if _, err := t.exec(ctx, del); err != nil {
			return fmt.Errorf("prune pool: %w", err)
		}
		if len(entries) == 0 {
			return nil
		}

		ins := sq.Insert("unassigned_pool").Columns("user_id", "id", "month", "amount_cents")
		for _, e := range entries {
			id := e.ID
			if id == "" {
				id = uuid.NewString()
			}
			ins = ins.Values(t.userID, id, e.Month.Key(), e.Amount.Cents)
		}
		ins = ins.Suffix("ON CONFLICT(user_id, month) DO UPDATE SET amount_cents = excluded.amount_cents")
		if _, err := t.exec(ctx, ins); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) SetSalaryMonth(ctx context.Context, m core.Month) error {
	_, err := r.exec(ctx, sq.Insert("salary_months").
		Columns("user_id", "month").
		Values(r.userID, m.Key()).
		Suffix("ON CONFLICT(user_id, month) DO NOTHING"))
	if err != nil {
		return fmt.Errorf("set salary month: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ClearSalaryMonth(ctx context.Context, m core.Month) error {
	_, err := r.exec(ctx, sq.Delete("salary_months").
		Where(sq.Eq{"user_id": r.userID, "month": m.Key()}))
	if err != nil {
		return fmt.Errorf("clear salary month: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListSalaryMonths(ctx context.Context) ([]core.Month, error) {
	rows, err := r.query(ctx, sq.Select("month").
		From("salary_months").
		Where(sq.Eq{"user_id": r.userID}).
		OrderBy("month"))
	if err != nil {
		return nil, fmt.Errorf("list salary months: %w", err)
	}
	defer rows.Close()

	var out []core.Month
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan salary month: %w", err)
		}
		m, err := core.ParseMonth(key)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InitialBalance(ctx context.Context) (core.Money, error) {
	query, args, err := sq.Select("value").
		From("settings").
		Where(sq.Eq{"user_id": r.userID, "key": settingInitialBalance}).ToSql()
	if err != nil {
		return core.Money{}, fmt.Errorf("build query: %w", err)
	}
	var value string
	err = r.q.QueryRowContext(ctx, query, args...).Scan(&value)
	if err == sql.ErrNoRows {
		return core.Money{}, nil
	}
	if err != nil {
		return core.Money{}, fmt.Errorf("get initial balance: %w", err)
	}
	cents, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return core.Money{}, fmt.Errorf("parse initial balance %q: %w", value, err)
	}
	return core.Cents(cents), nil
}

func (r *SQLiteRepository) SetInitialBalance(ctx context.Context, m core.Money) error {
	_, err := r.exec(ctx, sq.Insert("settings").
		Columns("user_id", "key", "value").
		Values(r.userID, settingInitialBalance, formatCents(m.Cents)).
		Suffix("ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value"))
	if err != nil {
		return fmt.Errorf("set initial balance: %w", err)
	}
	return nil
}
