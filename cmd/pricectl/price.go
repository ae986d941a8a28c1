package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newPriceCmd(opts *rootOptions) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "price TICKER",
		Short: "Resolve a price through the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(typ)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.Engine.Resolve(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			stale := ""
			if q.Stale {
				stale = " (stale)"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %.4f at %s%s\n",
				q.Ticker, t.Partition(), q.Price, q.UpdatedAt.UTC().Format(time.RFC3339), stale)
			return nil
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "instrument type: acciones|cedears|bonos|monedas")
	return cmd
}

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "sources TICKER",
		Short: "Ask every eligible source directly, bypassing the cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := parseType(typ)
			if err != nil {
				return err
			}
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Engine.Sources(cmd.Context(), args[0], t)
			if err != nil {
				return err
			}
			if len(res) == 0 {
				return fmt.Errorf("no source supports type %s", t.Partition())
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SOURCE\tPRICE\tTOOK\tERROR")
			for _, r := range res {
				price, errText := fmt.Sprintf("%.4f", r.Price), ""
				if r.Err != nil {
					price, errText = "-", r.Err.Error()
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Fetcher, price, r.Took.Round(time.Millisecond), errText)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "instrument type: acciones|cedears|bonos|monedas")
	return cmd
}

func newRefreshCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Run one refresh sweep over every cached ticker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			st := a.Sweeper().SweepOnce(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "tickers=%d fresh=%d stale=%d failed=%d took=%s\n",
				st.Tickers, st.Fresh, st.Stale, st.Failed, st.Duration.Round(time.Millisecond))
			return nil
		},
	}
}
