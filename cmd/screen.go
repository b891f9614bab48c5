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
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/penny-vault/pvbt/data"
)

var (
	screenIndex        string
	screenSector       string
	screenMinMarketCap float64
	screenFile         string
)

func init() {
	screenCmd.Flags().StringVar(&screenIndex, "index", data.IndexSP500, "Index to screen one of: sp500, nasdaq100, russell3000, or all")
	screenCmd.Flags().StringVar(&screenSector, "sector", data.AnySector, "Sector to keep")
	screenCmd.Flags().Float64Var(&screenMinMarketCap, "min-market-cap", 0, "Minimum market capitalization")
	screenCmd.Flags().StringVar(&screenFile, "filters", "", "JSON or YAML screen request; overrides the other flags")
	rootCmd.AddCommand(screenCmd)
}

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "List catalog tickers matching index, sector and fundamental filters",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		catalog := loadCatalog()
		if catalog == nil {
			log.Fatal().Err(data.ErrCatalogNotLoaded).Msg("screen requires a stock catalog")
		}

		req := data.ScreenRequest{
			Index:  screenIndex,
			Sector: screenSector,
		}
		if screenMinMarketCap > 0 {
			req.MinMarketCap = &screenMinMarketCap
		}

		if screenFile != "" {
			req = data.ScreenRequest{}
			if err := readRequest(screenFile, &req); err != nil {
				log.Fatal().Err(err).Str("FileName", screenFile).Msg("could not read screen request")
			}
		}

		tickers, err := catalog.Screen(&req)
		if err != nil {
			log.Fatal().Err(err).Msg("screen failed")
		}

		fmt.Println(strings.Join(tickers, "\n"))
		log.Info().Int("NumMatches", len(tickers)).Msg("screen finished")
	},
}
