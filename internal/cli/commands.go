package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fintrack/internal/app"
	"fintrack/internal/core"
)

func newProcessCommand(rt *session) *cobra.Command {
	var templateID string
	cmd := &cobra.Command{
		Use:   "process",
		Short: "Emit due recurring transactions, or one template with --template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			return rt.withApp(ctx, func(a *app.Application) error {
				tracker := a.Backend.Tracker
				if templateID != "" {
					tx, err := tracker.ProcessNow(ctx, templateID)
					if err != nil {
						return err
					}
					printEntries(out, tracker.Currency(ctx), []core.Transaction{tx})
					return nil
				}
				res, err := tracker.ProcessDue(ctx)
				if err != nil {
					return err
				}
				printEntries(out, tracker.Currency(ctx), res.Emitted)
				for _, f := range res.Failures {
					fmt.Fprintf(cmd.ErrOrStderr(), "template %s: %v\n", f.TemplateID, f.Err)
				}
				if len(res.Failures) > 0 {
					return fmt.Errorf("%d templates failed", len(res.Failures))
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Process this template now regardless of its due date")
	return cmd
}

func newEntriesCommand(rt *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entries",
		Short: "List, add and delete entries",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				entries, err := a.Backend.Tracker.Entries.List(ctx)
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), a.Backend.Tracker.Currency(ctx), entries)
				return nil
			})
		},
	}

	var (
		entryType   string
		amount      string
		category    string
		description string
		date        string
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Record an income or expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			d, err := core.ParseDate(date)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				created, err := a.Backend.Tracker.Entries.Create(ctx, core.Transaction{
					Type:        core.EntryType(entryType),
					Amount:      amt,
					Category:    category,
					Description: description,
					Date:        d,
				})
				if err != nil {
					return err
				}
				printEntries(cmd.OutOrStdout(), a.Backend.Tracker.Currency(ctx), []core.Transaction{created})
				return nil
			})
		},
	}
	add.Flags().StringVar(&entryType, "type", string(core.Expense), "income or expense")
	add.Flags().StringVar(&amount, "amount", "", "Positive amount, e.g. 12.50")
	add.Flags().StringVar(&category, "category", "", "Category name")
	add.Flags().StringVar(&description, "description", "", "Short description")
	add.Flags().StringVar(&date, "date", "", "Date as YYYY-MM-DD")
	for _, f := range []string{"amount", "category", "description", "date"} {
		_ = add.MarkFlagRequired(f)
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				if err := a.Backend.Tracker.Entries.Delete(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(list, add, del)
	return cmd
}

func newTotalsCommand(rt *session) *cobra.Command {
	return &cobra.Command{
		Use:   "totals",
		Short: "Print income, expense and balance over all entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				tracker := a.Backend.Tracker
				totals, err := tracker.Totals(ctx)
				if err != nil {
					return err
				}
				currency := tracker.Currency(ctx)
				writeLines(cmd.OutOrStdout(),
					"income  "+core.FormatAmount(totals.Income, currency),
					"expense "+core.FormatAmount(totals.Expense, currency),
					"balance "+core.FormatAmount(totals.Balance, currency),
				)
				return nil
			})
		},
	}
}

func newUpcomingCommand(rt *session) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "upcoming",
		Short: "List the next due recurring templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return rt.withApp(ctx, func(a *app.Application) error {
				templates, err := a.Backend.Tracker.Upcoming(ctx, limit)
				if err != nil {
					return err
				}
				currency := a.Backend.Tracker.Currency(ctx)
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNEXT DUE\tFREQUENCY\tTYPE\tAMOUNT\tDESCRIPTION")
				for _, t := range templates {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
						t.ID, t.DueDate(), t.Frequency, t.Type, core.FormatAmount(t.Amount, currency), t.Description)
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "Maximum number of templates")
	return cmd
}

func printEntries(w io.Writer, currency string, entries []core.Transaction) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTYPE\tAMOUNT\tCATEGORY\tDESCRIPTION")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Date, e.Type, core.FormatAmount(e.Amount, currency), e.Category, e.Description)
	}
	_ = tw.Flush()
}
