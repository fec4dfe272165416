package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"budgetflow/internal/amqp"
	"budgetflow/internal/backend"
	"budgetflow/internal/config"
	"budgetflow/internal/core"
	"budgetflow/internal/events"
	"budgetflow/internal/ledger"
	"budgetflow/internal/log"
	"budgetflow/internal/refresh"
	"budgetflow/internal/services"
)

// ledgerApp bundles what a subcommand needs to mutate or read the ledger.
type ledgerApp struct {
	cfg     *config.Config
	store   ledger.Store
	service *services.LedgerService
	reader  *refresh.Reader
	closers []func() error
}

func (a *ledgerApp) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Cleanup failed", log.FieldError, err)
		}
	}
}

// loadConfig reads the server's environment configuration and applies the
// budgetctl overrides from flags, BUDGETFLOW_* variables or the config file.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if v := viper.GetString("ledger.backend"); v != "" {
		cfg.LedgerBackend = v
	}
	if v := viper.GetString("ledger.db"); v != "" {
		cfg.SQLiteDBPath = v
	}
	if v := viper.GetString("ledger.user"); v != "" {
		cfg.LedgerUser = v
	}
	if v := viper.GetString("amqp.url"); v != "" {
		cfg.AMQPURL = v
	}
	if v := viper.GetString("split_policy"); v != "" {
		cfg.SplitPolicy = v
	}
	if v := viper.GetString("salary_category"); v != "" {
		cfg.SalaryCategory = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openLedger opens the configured store and wires the ledger service to AMQP
// when it is enabled, so a running server sees the mutation.
func openLedger(ctx context.Context) (*ledgerApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(log.ForComponent(log.ComponentBackend)).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	app := &ledgerApp{cfg: cfg, store: res.Store}
	if res.Cleanup != nil {
		app.closers = append(app.closers, res.Cleanup)
	}

	var publisher events.Publisher = events.PublisherFunc(func(ctx context.Context, e events.Event) error {
		slog.DebugContext(ctx, "AMQP disabled, event not forwarded", log.FieldEventKind, e.Kind)
		return nil
	})
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to connect to AMQP: %w", err)
		}
		publisher = client.WithUser(cfg.LedgerUser)
		app.closers = append(app.closers, client.Close)
	}

	policy, err := services.GetSplitPolicy(cfg.SplitPolicy)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.service = services.NewLedgerService(res.Store, publisher,
		services.NewReconciler(res.Store, policy),
		services.WithSalaryCategory(cfg.SalaryCategory))
	app.reader = refresh.NewReader(res.Store, refresh.NewResults(cfg.SummaryCacheSize), time.Now)
	return app, nil
}

// parseDateFlag parses YYYY-MM-DD, defaulting to today.
func parseDateFlag(s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.DateOf(time.Now()), nil
	}
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return core.Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return core.DateOf(t), nil
}

// parseMonthArg parses YYYY-MM, defaulting to the current month.
func parseMonthArg(s string) (core.Month, error) {
	if strings.TrimSpace(s) == "" {
		return core.MonthOf(time.Now()), nil
	}
	m, err := core.ParseMonth(strings.TrimSpace(s))
	if err != nil {
		return core.Month{}, fmt.Errorf("invalid month %q: want YYYY-MM", s)
	}
	return m, nil
}

// parseSignedMoney accepts zero and negative amounts, unlike core.ParseMoney.
func parseSignedMoney(s string) (core.Money, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if strings.Trim(s, "0.,") == "" && s != "" {
		return core.Money{}, nil
	}
	m, err := core.ParseMoney(s)
	if err != nil {
		return core.Money{}, err
	}
	if neg {
		return m.Neg(), nil
	}
	return m, nil
}

// parseAssignments parses CATEGORY=AMOUNT[@YYYY-MM] arguments. The target
// month defaults to def.
func parseAssignments(args []string, def core.Month) ([]services.Assignment, error) {
	out := make([]services.Assignment, 0, len(args))
	for _, arg := range args {
		category, rest, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(category) == "" {
			return nil, fmt.Errorf("invalid assignment %q: want CATEGORY=AMOUNT[@YYYY-MM]", arg)
		}
		amountStr, monthStr, hasMonth := strings.Cut(rest, "@")
		amount, err := core.ParseMoney(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid amount in %q: %w", arg, err)
		}
		target := def
		if hasMonth {
			if target, err = core.ParseMonth(monthStr); err != nil {
				return nil, fmt.Errorf("invalid month in %q: %w", arg, err)
			}
		}
		out = append(out, services.Assignment{Category: strings.TrimSpace(category), Amount: amount, Target: target})
	}
	return out, nil
}
