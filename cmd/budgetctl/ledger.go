package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"budgetflow/internal/core"
	"budgetflow/internal/services"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
	}

	var icon string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.service.CreateCategory(cmd.Context(), args[0], icon)
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created category %s\n", c.Name)
			return nil
		},
	}
	add.Flags().StringVar(&icon, "icon", "", "display icon")

	list := &cobra.Command{
		Use:   "list",
		Short: "List categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			cats, err := app.service.ListCategories(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list categories: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "NAME\tICON")
			for _, c := range cats {
				fmt.Fprintf(w, "%s\t%s\n", c.Name, c.Icon)
			}
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.DeleteCategory(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete category: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted category %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, list, del)
	return cmd
}

func budgetsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budgets",
		Short: "Declare monthly category budgets",
	}

	set := &cobra.Command{
		Use:   "set CATEGORY YYYY-MM AMOUNT",
		Short: "Declare the budget of a category for a month",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := parseMonthArg(args[1])
			if err != nil {
				return err
			}
			amount, err := core.ParseMoney(args[2])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[2], err)
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.SetBudget(cmd.Context(), core.Budget{Category: args[0], Month: month, Amount: amount}); err != nil {
				return fmt.Errorf("failed to set budget: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Budget %s %s = %s\n", args[0], month, amount)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete CATEGORY YYYY-MM",
		Short: "Remove the budget of a category for a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			month, err := parseMonthArg(args[1])
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.DeleteBudget(cmd.Context(), args[0], month); err != nil {
				return fmt.Errorf("failed to delete budget: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted budget %s %s\n", args[0], month)
			return nil
		},
	}

	cmd.AddCommand(set, del)
	return cmd
}

func expensesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "expenses",
		Short: "Record money leaving the budget",
	}

	var date, desc string
	add := &cobra.Command{
		Use:   "add CATEGORY AMOUNT",
		Short: "Record an expense",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			day, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			e, err := app.service.AddExpense(cmd.Context(), core.Expense{
				Category:    args[0],
				Amount:      amount,
				Description: desc,
				Date:        day,
			})
			if err != nil {
				return fmt.Errorf("failed to add expense: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded expense %s\n", e.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	add.Flags().StringVar(&desc, "desc", "", "description")
	_ = add.MarkFlagRequired("desc")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.DeleteExpense(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete expense: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted expense %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func creditsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credits",
		Short: "Record money entering the budget",
	}

	var date, desc, category string
	add := &cobra.Command{
		Use:   "add AMOUNT",
		Short: "Record a credit; without --category it joins the unassigned pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			day, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.service.AddCredit(cmd.Context(), core.Credit{
				Category:    category,
				Amount:      amount,
				Description: desc,
				Date:        day,
			})
			if err != nil {
				return fmt.Errorf("failed to add credit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded credit %s\n", c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	add.Flags().StringVar(&desc, "desc", "", "description")
	add.Flags().StringVar(&category, "category", "", "category (empty means unassigned)")
	_ = add.MarkFlagRequired("desc")

	del := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.DeleteCredit(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("failed to delete credit: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted credit %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(add, del)
	return cmd
}

func cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Track credit card charges until they are paid",
	}

	var date, desc string
	add := &cobra.Command{
		Use:   "add CATEGORY AMOUNT",
		Short: "Record a card charge",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			day, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			c, err := app.service.AddCreditCardExpense(cmd.Context(), core.CreditCardExpense{
				Category:    args[0],
				Amount:      amount,
				Description: desc,
				Date:        day,
			})
			if err != nil {
				return fmt.Errorf("failed to add card charge: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded card charge %s\n", c.ID)
			return nil
		},
	}
	add.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	add.Flags().StringVar(&desc, "desc", "", "description")
	_ = add.MarkFlagRequired("desc")

	pay := &cobra.Command{
		Use:   "pay ID...",
		Short: "Pay card charges, turning each into an expense dated today",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			expenses, err := app.service.PayCreditCard(cmd.Context(), args...)
			if err != nil {
				return fmt.Errorf("failed to pay card charges: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Paid %d card charges\n", len(expenses))
			return nil
		},
	}

	cmd.AddCommand(add, pay)
	return cmd
}

func salaryCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "salary AMOUNT",
		Short: "Record a salary; any excess over the month's budgets joins the pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := core.ParseMoney(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			day, err := parseDateFlag(date)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			res, err := app.service.RecordSalary(cmd.Context(), amount, day)
			if err != nil {
				return fmt.Errorf("failed to record salary: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Salary credit %s for %s\n", res.Credit.Amount, day.Month())
			if res.Overflow != nil {
				fmt.Fprintf(out, "Overflow %s moved to the unassigned pool\n", res.Overflow.Amount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date as YYYY-MM-DD (default today)")
	return cmd
}

func unassignedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unassigned",
		Short: "Inspect and split the unassigned credit pool",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pool entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			entries, err := app.service.Reconciler().Entries(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list pool: %w", err)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintln(w, "ID\tMONTH\tAMOUNT")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.ID, e.Month, e.Amount)
			}
			return nil
		},
	}

	var target string
	split := &cobra.Command{
		Use:   "split ENTRY_ID CATEGORY=AMOUNT[@YYYY-MM]...",
		Short: "Split a pool entry into categorized credits",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := parseMonthArg(target)
			if err != nil {
				return err
			}
			assignments, err := parseAssignments(args[1:], def)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			written, err := app.service.SplitUnassigned(cmd.Context(), args[0], assignments)
			var partial *services.PartialSplitError
			if errors.As(err, &partial) {
				fmt.Fprintf(cmd.ErrOrStderr(), "Split stopped after %d credits\n", len(partial.Written))
			}
			if err != nil {
				return fmt.Errorf("failed to split entry: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d credits\n", len(written))
			return nil
		},
	}
	split.Flags().StringVar(&target, "month", "", "default target month as YYYY-MM (default current month)")

	cmd.AddCommand(list, split)
	return cmd
}

func initialBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "initial-balance AMOUNT",
		Short: "Set the opening bank balance (may be zero or negative)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := parseSignedMoney(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.service.SetInitialBalance(cmd.Context(), amount); err != nil {
				return fmt.Errorf("failed to set initial balance: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initial balance %s\n", amount)
			return nil
		},
	}
}
