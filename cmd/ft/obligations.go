package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"fintrack/internal/app"
	"fintrack/internal/domain"
	"fintrack/internal/engine"
)

func obligationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "obligation",
		Aliases: []string{"ob"},
		Short:   "Manage planned payments",
	}
	cmd.AddCommand(obligationAddCmd())
	cmd.AddCommand(obligationListCmd())
	cmd.AddCommand(obligationShowCmd())
	cmd.AddCommand(obligationPayCmd())
	cmd.AddCommand(obligationSkipCmd())
	cmd.AddCommand(obligationDeleteCmd())
	cmd.AddCommand(obligationUpcomingCmd())
	cmd.AddCommand(obligationOverdueCmd())
	cmd.AddCommand(obligationSummaryCmd())
	return cmd
}

func obligationAddCmd() *cobra.Command {
	var f engine.DraftFields
	var weekday, dayOfMonth, occurrences int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an obligation",
		Example: `  ft obligation add --amount "500 000" --category rent --frequency monthly --day-of-month 10
  ft obligation add --amount 120000 --category internet --due tomorrow`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f.Weekday = optionalInt(cmd, "weekday", weekday)
			f.DayOfMonth = optionalInt(cmd, "day-of-month", dayOfMonth)
			f.Occurrences = optionalInt(cmd, "occurrences", occurrences)
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				draft, err := f.Draft(e.Today())
				if err != nil {
					return explain(err, "obligation", "")
				}
				o, err := e.CreateObligation(ctx, owner, draft, actorID())
				if err != nil {
					return explain(err, "obligation", "")
				}
				return printObligations([]domain.Obligation{o})
			})
		},
	}
	cmd.Flags().StringVar(&f.Amount, "amount", "", "planned amount")
	cmd.Flags().StringVar(&f.Category, "category", "", "category")
	cmd.Flags().StringVar(&f.Description, "description", "", "description")
	cmd.Flags().StringVar(&f.Frequency, "frequency", "once", "once, weekly, biweekly, monthly, quarterly or yearly")
	cmd.Flags().StringVar(&f.DueDate, "due", "", "first due date (DD.MM.YYYY, YYYY-MM-DD, today, tomorrow, +N)")
	cmd.Flags().IntVar(&weekday, "weekday", 0, "weekday anchor, 0 = Monday")
	cmd.Flags().IntVar(&dayOfMonth, "day-of-month", 0, "day-of-month anchor for monthly obligations")
	cmd.Flags().IntVar(&occurrences, "occurrences", 0, "number of payments before the obligation retires")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

func obligationListCmd() *cobra.Command {
	var opts engine.ListOptions
	var frequency string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List obligations by due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			if frequency != "" {
				f, err := domain.ParseFrequency(frequency)
				if err != nil {
					return err
				}
				opts.Frequency = f
			}
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				items, err := e.ListObligations(ctx, owner, opts)
				if err != nil {
					return err
				}
				return printObligations(items)
			})
		},
	}
	cmd.Flags().BoolVar(&opts.IncludeSettled, "all", false, "include paid and skipped obligations")
	cmd.Flags().StringVar(&frequency, "frequency", "", "frequency filter")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum rows")
	return cmd
}

func obligationShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one obligation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				o, err := e.GetObligation(ctx, args[0], owner)
				if err != nil {
					return explain(err, "obligation", args[0])
				}
				return printObligations([]domain.Obligation{o})
			})
		},
	}
}

func obligationPayCmd() *cobra.Command {
	var amount string
	cmd := &cobra.Command{
		Use:   "pay <id>",
		Short: "Pay the current occurrence and record the expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				opts := engine.PayOptions{ObligationID: args[0], OwnerID: owner, ActorID: actorID()}
				if amount != "" {
					a, err := engine.ParseAmount(amount)
					if err != nil {
						return explain(err, "obligation", args[0])
					}
					opts.Amount = &a
				}
				res, err := e.Pay(ctx, opts)
				if err != nil {
					return explain(err, "obligation", args[0])
				}
				if isJSON() {
					return printJSON(res)
				}
				fmt.Printf("Paid %s for %s on %s\n", res.Expense.Amount.String(), res.Obligation.Label(), formatDate(res.Expense.Date))
				switch {
				case res.Retired:
					fmt.Println("No payments left; the obligation is settled.")
				case res.Obligation.Active():
					fmt.Printf("Next due %s\n", formatDate(res.Obligation.DueDate))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "amount actually paid, defaults to the planned amount")
	return cmd
}

func obligationSkipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <id>",
		Short: "Skip the current occurrence without recording an expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				o, err := e.Skip(ctx, args[0], owner, actorID())
				if err != nil {
					return explain(err, "obligation", args[0])
				}
				return printObligations([]domain.Obligation{o})
			})
		},
	}
}

func obligationDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an obligation in any state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				deleted, err := e.Delete(ctx, args[0], owner, actorID())
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("obligation %s not found", args[0])
				}
				fmt.Println("deleted", args[0])
				return nil
			})
		},
	}
}

func obligationUpcomingCmd() *cobra.Command {
	var days, next int
	var thisMonth bool
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "Active obligations due soon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				var (
					items []domain.Obligation
					err   error
				)
				switch {
				case next > 0:
					items, err = e.FutureObligations(ctx, owner, next)
				case thisMonth:
					items, err = e.UpcomingThisMonth(ctx, owner)
				default:
					items, err = e.UpcomingObligations(ctx, owner, days)
				}
				if err != nil {
					return err
				}
				return printObligations(items)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "look-ahead window in days")
	cmd.Flags().BoolVar(&thisMonth, "this-month", false, "until the end of the current month")
	cmd.Flags().IntVar(&next, "next", 0, "the next N obligations regardless of date")
	return cmd
}

func obligationOverdueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "overdue",
		Short: "Active obligations past their due date",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				items, err := e.OverdueObligations(ctx, owner)
				if err != nil {
					return err
				}
				return printObligations(items)
			})
		},
	}
}

func obligationSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Total planned for the current month",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOwner(cmd.Context(), func(ctx context.Context, e engine.Engine, owner int64) error {
				sum, err := e.MonthlyObligationSummary(ctx, owner)
				if err != nil {
					return err
				}
				return printJSONOrTable(sum, func(tw table.Writer) {
					tw.SetTitle(fmt.Sprintf("%s %d", sum.Month, sum.Year))
					obligationRows(tw, sum.Obligations)
					tw.AppendFooter(table.Row{"", "", sum.Total.String(), fmt.Sprintf("%d obligations", sum.Count)})
				})
			})
		},
	}
}

func normalizeCmd() *cobra.Command {
	var everyone bool
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Roll stale recurring due dates forward to today or later",
		RunE: func(cmd *cobra.Command, args []string) error {
			var owner *int64
			if !everyone {
				id, err := ownerID()
				if err != nil {
					return err
				}
				owner = &id
			}
			return withWorkspace(cmd.Context(), func(ctx context.Context, ws *app.Workspace) error {
				n, err := ws.Engine.Normalize(ctx, owner)
				if err != nil {
					return err
				}
				if isJSON() {
					return printJSON(map[string]int{"advanced": n})
				}
				fmt.Printf("advanced %d obligations\n", n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&everyone, "all-owners", false, "normalize every owner")
	return cmd
}

func printObligations(items []domain.Obligation) error {
	return printJSONOrTable(items, func(tw table.Writer) {
		obligationRows(tw, items)
	})
}

func obligationRows(tw table.Writer, items []domain.Obligation) {
	tw.AppendHeader(table.Row{"ID", "Due", "Amount", "Obligation", "Frequency", "Left", "Status"})
	for _, o := range items {
		left := ""
		if o.OccurrencesLeft != nil {
			left = strconv.Itoa(*o.OccurrencesLeft)
		}
		tw.AppendRow(table.Row{o.ID, formatDate(o.DueDate), o.Amount.String(), o.Label(), string(o.Frequency), left, obligationStatus(o)})
	}
}

func obligationStatus(o domain.Obligation) string {
	var parts []string
	if o.IsPaid {
		parts = append(parts, "paid")
	}
	if o.IsSkipped {
		parts = append(parts, "skipped")
	}
	if len(parts) == 0 {
		return "active"
	}
	return strings.Join(parts, ",")
}
