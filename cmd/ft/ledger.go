package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fintrack/internal/domain"
	"fintrack/internal/engine"
)

type entryFlags struct {
	amount, category, description, date, kind string
}

func (f *entryFlags) register(cmd *cobra.Command, withKind bool) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount")
	cmd.Flags().StringVar(&f.category, "category", "", "category")
	cmd.Flags().StringVar(&f.description, "description", "", "description")
	cmd.Flags().StringVar(&f.date, "date", "", "entry date, defaults to today")
	if withKind {
		cmd.Flags().StringVar(&f.kind, "kind", "once", "once, daily, weekly, monthly or yearly")
	}
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
}

func (f entryFlags) input(e engine.Engine, owner int64) (engine.EntryInput, error) {
	amount, err := engine.ParseAmount(f.amount)
	if err != nil {
		return engine.EntryInput{}, err
	}
	in := engine.EntryInput{
		OwnerID:     owner,
		Amount:      amount,
		Category:    f.category,
		Description: f.description,
		ActorID:     actorID(),
	}
	if f.date != "" {
		d, err := engine.ParseDate(f.date, e.Today())
		if err != nil {
			return engine.EntryInput{}, err
		}
		in.Date = &d
	}
	if f.kind != "" {
		kind, err := domain.ParseExpenseKind(f.kind)
		if err != nil {
			return engine.EntryInput{}, err
		}
		in.Kind = kind
	}
	return in, nil
}

type rangeFlags struct {
	from, to string
}

func (f *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "start date (inclusive)")
	cmd.Flags().StringVar(&f.to, "to", "", "end date (inclusive)")
}

func (f rangeFlags) set() bool { return f.from != "" || f.to != "" }

func (f rangeFlags) resolve(today time.Time) (time.Time, time.Time, error) {
	var from, to time.Time
	var err error
	if f.from != "" {
		if from, err = engine.ParseDate(f.from, today); err != nil {
			return from, to, err
		}
	}
	if f.to != "" {
		if to, err = engine.ParseDate(f.to, today); err != nil {
			return from, to, err
		}
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return from, to, fmt.Errorf("--to %s is before --from %s", formatDate(to), formatDate(from))
	}
	return from, to, nil
}

func expenseCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "expense", Short: "Record and list expenses"}
	cmd.AddCommand(expenseAddCmd())
	cmd.AddCommand(expenseListCmd())
	cmd.AddCommand(expenseDeleteCmd())
	return cmd
}

func expenseAddCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an expense",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				in, err := f.input(e, owner)
				if err != nil {
					return explain(err, "expense", "")
				}
				exp, err := e.AddExpense(ctx, in)
				if err != nil {
					return explain(err, "expense", "")
				}
				return printExpenses([]domain.Expense{exp})
			})
		},
	}
	f.register(cmd, true)
	return cmd
}

func expenseListCmd() *cobra.Command {
	var r rangeFlags
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses in a range, or the newest ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				var items []domain.Expense
				if r.set() {
					from, to, err := r.resolve(e.Today())
					if err != nil {
						return explain(err, "expense", "")
					}
					if items, err = e.ListExpenses(ctx, owner, from, to); err != nil {
						return err
					}
				} else {
					var err error
					if items, err = e.LastExpenses(ctx, owner, limit); err != nil {
						return err
					}
				}
				return printExpenses(items)
			})
		},
	}
	r.register(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10, "newest entries to show without a range")
	return cmd
}

func expenseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				deleted, err := e.DeleteExpense(ctx, args[0], owner, actorID())
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("expense %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func incomeCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "income", Short: "Record and list incomes"}
	cmd.AddCommand(incomeAddCmd())
	cmd.AddCommand(incomeListCmd())
	cmd.AddCommand(incomeDeleteCmd())
	return cmd
}

func incomeAddCmd() *cobra.Command {
	var f entryFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record an income",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				in, err := f.input(e, owner)
				if err != nil {
					return explain(err, "income", "")
				}
				inc, err := e.AddIncome(ctx, in)
				if err != nil {
					return explain(err, "income", "")
				}
				return printIncomes([]domain.Income{inc})
			})
		},
	}
	f.register(cmd, false)
	return cmd
}

func incomeListCmd() *cobra.Command {
	var r rangeFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List incomes, this month by default",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				today := e.Today()
				from, to := engine.MonthRange(today.Year(), today.Month())
				if r.set() {
					var err error
					if from, to, err = r.resolve(today); err != nil {
						return explain(err, "income", "")
					}
				}
				items, err := e.ListIncomes(ctx, owner, from, to)
				if err != nil {
					return err
				}
				return printIncomes(items)
			})
		},
	}
	r.register(cmd)
	return cmd
}

func incomeDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an income",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				deleted, err := e.DeleteIncome(ctx, args[0], owner, actorID())
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("income %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func balanceCmd() *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Monthly balance with carry-over, or a whole year with --year alone",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				today := e.Today()
				if cmd.Flags().Changed("year") && !cmd.Flags().Changed("month") {
					yb, err := e.YearlyBalance(ctx, owner, year)
					if err != nil {
						return err
					}
					return printJSONOrTable(yb, func(tw table.Writer) {
						tw.SetTitle(fmt.Sprintf("%d", yb.Year))
						balanceRows(tw, yb.Months)
						tw.AppendFooter(table.Row{"Total", yb.Income.String(), yb.Expenses.String(), yb.Balance.String(), "", ""})
					})
				}
				if year == 0 {
					year = today.Year()
				}
				if month == 0 {
					month = int(today.Month())
				}
				if month < 1 || month > 12 {
					return fmt.Errorf("--month must be 1 to 12, got %d", month)
				}
				b, err := e.MonthlyBalance(ctx, owner, year, time.Month(month))
				if err != nil {
					return err
				}
				return printJSONOrTable(b, func(tw table.Writer) {
					balanceRows(tw, []engine.MonthBalance{b})
				})
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year, defaults to the current one")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12, defaults to the current one")
	return cmd
}

func balanceRows(tw table.Writer, months []engine.MonthBalance) {
	tw.AppendHeader(table.Row{"Month", "Income", "Expenses", "Available", "Carry-over", "Closing"})
	for _, m := range months {
		tw.AppendRow(table.Row{
			fmt.Sprintf("%d-%02d", m.Year, int(m.Month)),
			m.Income.String(), m.Expenses.String(), m.Available.String(),
			m.CarryOver.String(), m.Closing.String(),
		})
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Expense reports by category"}
	for _, period := range []string{engine.PeriodDaily, engine.PeriodWeekly, engine.PeriodMonthly, engine.PeriodYearly} {
		cmd.AddCommand(periodReportCmd(period))
	}
	cmd.AddCommand(customReportCmd())
	return cmd
}

func periodReportCmd(period string) *cobra.Command {
	return &cobra.Command{
		Use:   period,
		Short: fmt.Sprintf("Expenses for the %s period containing today", period),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				r, err := e.ReportFor(ctx, owner, period)
				if err != nil {
					return explain(err, "report", "")
				}
				return printReport(r)
			})
		},
	}
}

func customReportCmd() *cobra.Command {
	var r rangeFlags
	cmd := &cobra.Command{
		Use:   "custom",
		Short: "Expenses for an explicit date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				from, to, err := r.resolve(e.Today())
				if err != nil {
					return explain(err, "report", "")
				}
				rep, err := e.Report(ctx, owner, from, to)
				if err != nil {
					return explain(err, "report", "")
				}
				return printReport(rep)
			})
		},
	}
	r.register(cmd)
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func printReport(r engine.ExpenseReport) error {
	return printJSONOrTable(r, func(tw table.Writer) {
		tw.SetTitle(r.String())
		tw.AppendHeader(table.Row{"Category", "Total", "Share"})
		for _, c := range r.Categories {
			tw.AppendRow(table.Row{c.Category, c.Total.String(), fmt.Sprintf("%.1f%%", c.Percent)})
		}
		for _, m := range r.Months {
			tw.AppendRow(table.Row{fmt.Sprintf("%d-%02d", m.Year, int(m.Month)), m.Total.String(), ""})
		}
		tw.AppendFooter(table.Row{"Total", r.Total.String(), fmt.Sprintf("%d expenses", r.Count)})
	})
}

func printExpenses(items []domain.Expense) error {
	return printJSONOrTable(items, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Date", "Amount", "Category", "Kind", "Description"})
		for _, x := range items {
			tw.AppendRow(table.Row{x.ID, formatDate(x.Date), x.Amount.String(), x.Category, string(x.Kind), derefString(x.Description)})
		}
	})
}

func printIncomes(items []domain.Income) error {
	return printJSONOrTable(items, func(tw table.Writer) {
		tw.AppendHeader(table.Row{"ID", "Date", "Amount", "Category", "Description"})
		for _, x := range items {
			tw.AppendRow(table.Row{x.ID, formatDate(x.Date), x.Amount.String(), x.Category, derefString(x.Description)})
		}
	})
}
