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
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/common"
)

var (
	scanBenchmark string
	scanStart     string
	scanEnd       string
)

func init() {
	scanCmd.Flags().StringVar(&scanBenchmark, "benchmark", "SPY", "Ticker that beta and alpha are measured against")
	scanCmd.Flags().StringVar(&scanStart, "start", "2010-01", "First month of the scan as YYYY-MM")
	scanCmd.Flags().StringVar(&scanEnd, "end", "", "Last month of the scan as YYYY-MM (default current month)")
	rootCmd.AddCommand(scanCmd)
}

// parseMonth splits a YYYY-MM string
func parseMonth(s string) (year, month int, err error) {
	if len(s) != 7 || s[4] != '-' {
		return 0, 0, strconv.ErrSyntax
	}
	if year, err = strconv.Atoi(s[:4]); err != nil {
		return 0, 0, err
	}
	if month, err = strconv.Atoi(s[5:]); err != nil {
		return 0, 0, err
	}
	return year, month, nil
}

var scanCmd = &cobra.Command{
	Use:   "scan [flags] TICKER...",
	Short: "Compute performance metrics of individual tickers",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		req := backtest.ScanRequest{
			Tickers:   args,
			Benchmark: scanBenchmark,
		}

		year, month, err := parseMonth(scanStart)
		if err != nil {
			log.Fatal().Err(err).Str("Start", scanStart).Msg("could not parse start month")
		}
		req.StartYear, req.StartMonth = backtest.FlexInt(year), backtest.FlexInt(month)

		if scanEnd == "" {
			scanEnd = common.Today().Format("2006-01")
		}
		if year, month, err = parseMonth(scanEnd); err != nil {
			log.Fatal().Err(err).Str("End", scanEnd).Msg("could not parse end month")
		}
		req.EndYear, req.EndMonth = backtest.FlexInt(year), backtest.FlexInt(month)

		ctx := context.Background()
		backtester, _ := newBacktester(ctx)

		results, err := backtester.Scan(ctx, &req, loadCatalog())
		if err != nil {
			log.Fatal().Err(err).Msg("scan failed")
		}

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader(append(metricsHeader, "Note"))
		for _, res := range results {
			if res.Metrics == nil {
				row := []string{res.Ticker, "-", "-", "-", "-", "-", "-", "-", res.Error}
				table.Append(row)
				continue
			}

			note := ""
			if res.Note != nil {
				note = *res.Note
			}
			table.Append(append(metricsRow(res.Ticker, res.Metrics), note))
		}
		table.Render()
	},
}
