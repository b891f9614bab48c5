// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/guptarohit/asciigraph"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vicanso/go-charts/v2"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/portfolio"
)

var (
	backtestChartFn string
	backtestPlot    bool
)

func init() {
	backtestCmd.Flags().StringVar(&backtestChartFn, "chart", "", "Write a PNG chart of the portfolio values to this file")
	backtestCmd.Flags().BoolVar(&backtestPlot, "plot", true, "Plot portfolio values in the terminal")
	rootCmd.AddCommand(backtestCmd)
}

var backtestCmd = &cobra.Command{
	Use:   "backtest [flags] REQUEST_FILE",
	Short: "Backtest the portfolios described in a JSON or YAML request file",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := backtest.Request{}
		if err := readRequest(args[0], &req); err != nil {
			log.Fatal().Err(err).Str("FileName", args[0]).Msg("could not read backtest request")
		}

		ctx := context.Background()
		backtester, _ := newBacktester(ctx)

		resp, err := backtester.Run(ctx, &req)
		if err != nil {
			log.Fatal().Err(err).Msg("backtest failed")
		}

		if resp.Warning != nil {
			fmt.Printf("WARNING: %s\n\n", *resp.Warning)
		}

		results := resp.Data
		if resp.Benchmark != nil {
			results = append(results, resp.Benchmark)
		}

		printMetricsTable(results)

		if backtestPlot {
			for _, res := range results {
				fmt.Println()
				fmt.Println(plotHistory(res))
			}
		}

		if backtestChartFn != "" {
			if err := writeChart(backtestChartFn, results); err != nil {
				log.Fatal().Err(err).Str("FileName", backtestChartFn).Msg("could not write chart")
			}
			log.Info().Str("FileName", backtestChartFn).Msg("wrote chart")
		}
	},
}

func pct(v float64) string {
	return strconv.FormatFloat(v*100, 'f', 2, 64) + "%"
}

func ratio(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func optRatio(v *float64) string {
	if v == nil {
		return "-"
	}
	return ratio(*v)
}

func metricsRow(name string, m *portfolio.Metrics) []string {
	return []string{
		name,
		pct(m.CAGR),
		pct(m.MaxDrawDown),
		pct(m.Volatility),
		ratio(m.SharpeRatio),
		ratio(m.SortinoRatio),
		optRatio(m.Beta),
		optRatio(m.Alpha),
	}
}

var metricsHeader = []string{"Name", "CAGR", "Max Drawdown", "Volatility", "Sharpe", "Sortino", "Beta", "Alpha"}

func printMetricsTable(results []*backtest.PortfolioResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(metricsHeader)
	for _, res := range results {
		row := metricsRow(res.Name, &res.Metrics)
		if len(res.History) > 0 {
			row[0] = fmt.Sprintf("%s (%s to %s)", res.Name, res.History[0].Date, res.History[len(res.History)-1].Date)
		}
		table.Append(row)
	}
	table.Render()
}

func plotHistory(res *backtest.PortfolioResult) string {
	values := make([]float64, len(res.History))
	for idx, point := range res.History {
		values[idx] = point.Value
	}

	if len(values) == 0 {
		return res.Name + ": no history"
	}

	return asciigraph.Plot(values,
		asciigraph.Height(12),
		asciigraph.Width(80),
		asciigraph.Caption(res.Name))
}

// writeChart renders every history on the dates all of them share
func writeChart(fn string, results []*backtest.PortfolioResult) error {
	if len(results) == 0 {
		return backtest.ErrNoCommonTradingDays
	}

	seen := make(map[string]int, len(results[0].History))
	for _, res := range results {
		for _, point := range res.History {
			seen[point.Date]++
		}
	}

	labels := make([]string, 0, len(results[0].History))
	for _, point := range results[0].History {
		if seen[point.Date] == len(results) {
			labels = append(labels, point.Date)
		}
	}

	if len(labels) == 0 {
		return backtest.ErrNoCommonTradingDays
	}

	names := make([]string, len(results))
	series := make([][]float64, len(results))
	for idx, res := range results {
		names[idx] = res.Name
		series[idx] = make([]float64, 0, len(labels))
		for _, point := range res.History {
			if seen[point.Date] == len(results) {
				series[idx] = append(series[idx], point.Value)
			}
		}
	}

	splitNum := 6
	if len(labels) <= 30 {
		splitNum = len(labels)/3 + 1
	}

	p, err := charts.LineRender(
		series,
		charts.TitleTextOptionFunc("Portfolio Value"),
		charts.XAxisOptionFunc(charts.XAxisOption{
			Data:        labels,
			SplitNumber: splitNum,
			BoundaryGap: charts.FalseFlag(),
		}),
		charts.LegendLabelsOptionFunc(names, charts.PositionRight),
		charts.ThemeOptionFunc(charts.ThemeLight),
	)
	if err != nil {
		return fmt.Errorf("failed to render chart: %w", err)
	}

	buf, err := p.Bytes()
	if err != nil {
		return fmt.Errorf("failed to generate chart bytes: %w", err)
	}

	return os.WriteFile(fn, buf, 0o644)
}
