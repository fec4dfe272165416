package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"budgetflow/internal/core"
)

func reportCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show aggregates derived from the ledger",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")

	var month string
	summaries := &cobra.Command{
		Use:   "summaries",
		Short: "Per-category budget, spending and remaining for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseMonthArg(month)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			rows, err := app.reader.CategorySummaries(cmd.Context(), m)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			defer w.Flush()
			fmt.Fprintln(w, "CATEGORY\tDECLARED\tCREDITED\tBUDGET\tSPENT\tREMAINING\t")
			for _, s := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", s.Category, s.Declared, s.Credited, s.Budget, s.Spent, s.Remaining)
			}
			return nil
		},
	}
	summaries.Flags().StringVar(&month, "month", "", "month as YYYY-MM (default current month)")

	var year int
	var category string
	accumulated := &cobra.Command{
		Use:   "accumulated",
		Short: "Carry-forward balances over the accumulation window of a year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if year == 0 {
				year = time.Now().Year()
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			if category != "" {
				bal, err := app.reader.AccumulatedBalance(cmd.Context(), category, year)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), map[string]any{"category": category, "year": year, "balance": bal})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s\n", category, year, bal)
				return nil
			}

			yb, err := app.reader.YearBalances(cmd.Context(), year)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), yb)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			defer w.Flush()
			fmt.Fprintln(w, "CATEGORY\tACCUMULATED\t")
			for _, b := range yb.Balances {
				fmt.Fprintf(w, "%s\t%s\t\n", b.Category, b.Total)
			}
			fmt.Fprintf(w, "TOTAL\t%s\t\n", yb.Total)
			return nil
		},
	}
	accumulated.Flags().IntVar(&year, "year", 0, "year (default current year)")
	accumulated.Flags().StringVar(&category, "category", "", "single category")

	var remMonth string
	remaining := &cobra.Command{
		Use:   "remaining CATEGORY",
		Short: "Remaining budget of a category for a month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := parseMonthArg(remMonth)
			if err != nil {
				return err
			}
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			r, err := app.reader.RemainingForMonth(cmd.Context(), args[0], m)
			if err != nil {
				return err
			}
			return printAmount(cmd.OutOrStdout(), asJSON, fmt.Sprintf("%s %s", args[0], m), r)
		},
	}
	remaining.Flags().StringVar(&remMonth, "month", "", "month as YYYY-MM (default current month)")

	unassigned := &cobra.Command{
		Use:   "unassigned",
		Short: "Total of the unassigned credit pool",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			total, err := app.reader.UnassignedCreditsTotal(cmd.Context())
			if err != nil {
				return err
			}
			return printAmount(cmd.OutOrStdout(), asJSON, "Unassigned", total)
		},
	}

	bank := &cobra.Command{
		Use:   "bank",
		Short: "Bank balance: accumulated balances plus the pool plus the opening balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			balance, err := app.reader.BankBalance(cmd.Context())
			if err != nil {
				return err
			}
			return printAmount(cmd.OutOrStdout(), asJSON, "Bank balance", balance)
		},
	}

	debt := &cobra.Command{
		Use:   "debt",
		Short: "Unpaid credit card charges by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer app.Close()

			rows, err := app.reader.OutstandingDebt(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			defer w.Flush()
			fmt.Fprintln(w, "CATEGORY\tUNPAID\t")
			var total core.Money
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t\n", r.Name, r.Amount)
				total = total.Add(r.Amount)
			}
			fmt.Fprintf(w, "TOTAL\t%s\t\n", total)
			return nil
		},
	}

	cmd.AddCommand(summaries, accumulated, remaining, unassigned, bank, debt)
	return cmd
}

func printAmount(w io.Writer, asJSON bool, label string, m core.Money) error {
	if asJSON {
		return writeJSON(w, map[string]any{"cents": m.Cents, "amount": m.String()})
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", label, m)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
