package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Simplici0/estimator/internal/apperr"
	"github.com/Simplici0/estimator/internal/estimates"
	"github.com/Simplici0/estimator/internal/export"
	"github.com/Simplici0/estimator/internal/market"
	"github.com/Simplici0/estimator/internal/pricing"
	"github.com/Simplici0/estimator/internal/settings"
)

type estimateOptions struct {
	trade       string
	size        string
	county      string
	state       string
	description string
	overhead    float64
	profit      float64
	tax         float64
	margin      float64
	rates       string
	format      string
}

func newEstimateCmd() *cobra.Command {
	opts := estimateOptions{}
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Price a job from the static rate table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var margin *float64
			if cmd.Flags().Changed("margin") {
				margin = &opts.margin
			}
			return runEstimate(cmd.OutOrStdout(), opts, margin, time.Now())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.trade, "trade", "t", "", "trade type (hvac, plumbing, electrical, roofing, drywall, painting)")
	f.StringVarP(&opts.size, "size", "s", string(pricing.SizeMedium), "project size (small, medium, large, xlarge)")
	f.StringVar(&opts.county, "county", "", "county of the job site")
	f.StringVar(&opts.state, "state", "", "two-letter state code of the job site")
	f.StringVar(&opts.description, "description", "", "short job description")
	f.Float64Var(&opts.overhead, "overhead", settings.DefaultOverheadRate, "overhead rate as a fraction")
	f.Float64Var(&opts.profit, "profit", settings.DefaultProfitRate, "profit rate as a fraction")
	f.Float64Var(&opts.tax, "tax", 0.0825, "sales tax rate as a fraction")
	f.Float64Var(&opts.margin, "margin", 0, "profit margin in percent, overriding --profit")
	f.StringVar(&opts.rates, "rates", "", "YAML rate table (default built-in table)")
	f.StringVarP(&opts.format, "format", "f", "text", "output format (text, json)")
	_ = cmd.MarkFlagRequired("trade")
	return cmd
}

func runEstimate(w io.Writer, opts estimateOptions, margin *float64, now time.Time) error {
	if opts.format != "text" && opts.format != "json" {
		return apperr.InvalidInput("format", "must be text or json (got %q)", opts.format)
	}

	table, err := pricing.LoadRateTable(opts.rates)
	if err != nil {
		return err
	}

	markup := pricing.MarkupConfig{OverheadRate: opts.overhead, ProfitRate: opts.profit, TaxRate: opts.tax}
	if margin != nil {
		if err := pricing.ValidateMargin(*margin); err != nil {
			return err
		}
		markup = markup.WithMargin(*margin)
	}

	est, err := table.Estimate(opts.trade, opts.size, markup)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(market.NewPricingResult(est, pricing.SourceFallback, 0))
	}

	return export.RenderText(w, export.Document{
		Number: "DRAFT",
		Project: estimates.ProjectData{
			TradeType:   opts.trade,
			County:      opts.county,
			State:       settings.NormalizeState(opts.state),
			ProjectSize: opts.size,
			Description: opts.description,
		},
		Result:    est,
		CreatedAt: now,
	})
}

func newTradesCmd() *cobra.Command {
	var rates string
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "List trades, reference costs and size factors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table, err := pricing.LoadRateTable(rates)
			if err != nil {
				return err
			}
			return writeTrades(cmd.OutOrStdout(), table)
		},
	}
	cmd.Flags().StringVar(&rates, "rates", "", "YAML rate table (default built-in table)")
	return cmd
}

func writeTrades(w io.Writer, table *pricing.RateTable) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "TRADE\tMATERIALS\tLABOR\tEQUIPMENT\t")
	for _, r := range table.Trades() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", r.Trade,
			pricing.FormatMoney(r.Materials), pricing.FormatMoney(r.Labor), pricing.FormatMoney(r.Equipment))
	}
	fmt.Fprintln(tw, "\t\t\t\t")
	fmt.Fprintln(tw, "SIZE\tFACTOR\t\t\t")
	for _, s := range pricing.Sizes {
		f, _ := table.Factor(s)
		fmt.Fprintf(tw, "%s\t%gx\t\t\t\n", s, f)
	}
	return tw.Flush()
}
