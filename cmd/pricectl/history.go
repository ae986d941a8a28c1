package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pricecache/internal/storage/historical"
)

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "history TICKER",
		Short: "Print stored daily history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			recs, err := a.Histories.Get(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				return fmt.Errorf("no history stored for %s; try backfill", args[0])
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tPRICE\tADJ\tVOLUME")
			for _, r := range recs {
				adj, vol := "-", "-"
				if r.AdjPrice != nil {
					adj = fmt.Sprintf("%.4f", *r.AdjPrice)
				}
				if r.Volume != nil {
					vol = fmt.Sprint(*r.Volume)
				}
				fmt.Fprintf(tw, "%s\t%.4f\t%s\t%s\n", r.Date.Format(historical.DateLayout), r.Price, adj, vol)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default today)")
	return cmd
}

func newBackfillCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "backfill TICKER",
		Short: "Fetch daily history from the sources and store it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := parseRange(from, to)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Histories.Backfill(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, w := range res.Warnings {
				fmt.Fprintln(out, "warning:", w)
			}
			if res.Inserted == 0 {
				fmt.Fprintln(out, "no history available")
				return nil
			}
			fmt.Fprintf(out, "stored %d rows from %s\n", res.Inserted, res.Source)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last date, YYYY-MM-DD (default today)")
	return cmd
}
