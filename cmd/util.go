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
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/dataframe"
	"github.com/penny-vault/pvbt/portfolio"
)

// metricOptions reads the metrics.* settings
func metricOptions() (portfolio.MetricOptions, error) {
	opts := portfolio.DefaultMetricOptions()
	opts.RiskFreeRate = viper.GetFloat64("metrics.risk_free_rate")

	freq, err := dataframe.ParseFrequency(viper.GetString("metrics.frequency"))
	if err != nil {
		return opts, err
	}
	opts.Frequency = freq

	return opts, nil
}

// newBacktester wires the configured price provider, cache and metric
// options together
func newBacktester(ctx context.Context) (*backtest.Backtester, *common.Cache) {
	opts, err := metricOptions()
	if err != nil {
		log.Fatal().Err(err).Str("Frequency", viper.GetString("metrics.frequency")).Msg("invalid metrics.frequency")
	}

	cache, err := common.NewCacheFromConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("could not create price cache")
	}

	provider, err := data.NewProviderFromConfig(ctx, cache)
	if err != nil {
		log.Fatal().Err(err).Msg("could not create price provider")
	}

	bt := backtest.New(provider, opts).WithConcurrency(viper.GetInt("backtest.concurrency"))
	return bt, cache
}

// loadCatalog returns nil when the catalog cannot be read
func loadCatalog() *data.Catalog {
	fn := viper.GetString("data.catalog")
	if fn == "" {
		return nil
	}

	catalog, err := data.LoadCatalog(fn)
	if err != nil {
		log.Warn().Err(err).Str("FileName", fn).Msg("stock catalog unavailable; ticker checks disabled")
		return nil
	}
	return catalog
}

// readRequest decodes fn as YAML (.yaml, .yml), TOML (.toml) or, for any other
// extension, JSON
func readRequest(fn string, v interface{}) error {
	raw, err := os.ReadFile(fn)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(fn)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(raw, v)
	case ".toml":
		return toml.Unmarshal(raw, v)
	default:
		return json.Unmarshal(raw, v)
	}
}
