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
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/common"
)

func init() {
	cobra.OnInitialize(common.SetupLogging)

	// Logging configuration
	viper.BindEnv("log.level", "PVBT_LOG_LEVEL")
	rootCmd.PersistentFlags().String("log-level", "warning", "Logging level")
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.BindEnv("log.report_caller", "PVBT_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.output", "PVBT_LOG_OUTPUT")
	rootCmd.PersistentFlags().String("log-output", "stdout", "Write logs to specified output one of: file path, `stdout`, or `stderr`")
	viper.BindPFlag("log.output", rootCmd.PersistentFlags().Lookup("log-output"))

	viper.BindEnv("log.pretty", "PVBT_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", false, "Write human readable log messages instead of JSON")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))

	// Price data
	viper.BindEnv("data.provider", "PVBT_DATA_PROVIDER")
	rootCmd.PersistentFlags().String("data-provider", "csv", "Source of price data one of: csv, parquet, tiingo, or pvdb")
	viper.BindPFlag("data.provider", rootCmd.PersistentFlags().Lookup("data-provider"))

	viper.BindEnv("data.dir", "PVBT_DATA_DIR")
	rootCmd.PersistentFlags().String("data-dir", "data/prices", "Directory of the csv and parquet price stores")
	viper.BindPFlag("data.dir", rootCmd.PersistentFlags().Lookup("data-dir"))

	viper.BindEnv("data.catalog", "PVBT_CATALOG")
	rootCmd.PersistentFlags().String("catalog", "data/preprocessed_data.json", "Stock catalog used by the scanner and screener")
	viper.BindPFlag("data.catalog", rootCmd.PersistentFlags().Lookup("catalog"))

	viper.BindEnv("tiingo.token", "TIINGO_TOKEN")
	rootCmd.PersistentFlags().String("tiingo-token", "", "Tiingo API token")
	viper.BindPFlag("tiingo.token", rootCmd.PersistentFlags().Lookup("tiingo-token"))

	// Database
	viper.BindEnv("database.url", "DATABASE_URL")
	rootCmd.PersistentFlags().String("database-url", "", "PostgreSQL connection string")
	viper.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("database-url"))

	// Cache
	viper.BindEnv("cache.local_size", "PVBT_CACHE_LOCAL_SIZE")
	rootCmd.PersistentFlags().Int("cache-local-size", 128, "Number of price tables kept in memory")
	viper.BindPFlag("cache.local_size", rootCmd.PersistentFlags().Lookup("cache-local-size"))

	viper.BindEnv("cache.ttl", "PVBT_CACHE_TTL")
	rootCmd.PersistentFlags().Duration("cache-ttl", 30*time.Minute, "How long cached price tables stay fresh")
	viper.BindPFlag("cache.ttl", rootCmd.PersistentFlags().Lookup("cache-ttl"))

	viper.BindEnv("cache.redis", "PVBT_CACHE_REDIS")
	rootCmd.PersistentFlags().Bool("cache-redis", false, "Share cached price tables through redis")
	viper.BindPFlag("cache.redis", rootCmd.PersistentFlags().Lookup("cache-redis"))

	viper.BindEnv("cache.redis_url", "REDIS_URL")
	rootCmd.PersistentFlags().String("redis-url", "redis://localhost:6379/0", "Redis connection string")
	viper.BindPFlag("cache.redis_url", rootCmd.PersistentFlags().Lookup("redis-url"))

	// Metrics
	viper.BindEnv("metrics.risk_free_rate", "PVBT_RISK_FREE_RATE")
	rootCmd.PersistentFlags().Float64("risk-free-rate", 0, "Annual risk free rate used by the Sharpe and Sortino ratios")
	viper.BindPFlag("metrics.risk_free_rate", rootCmd.PersistentFlags().Lookup("risk-free-rate"))

	viper.BindEnv("metrics.frequency", "PVBT_METRICS_FREQUENCY")
	rootCmd.PersistentFlags().String("metrics-frequency", "daily", "Frequency of returns used for the risk metrics one of: daily or monthly")
	viper.BindPFlag("metrics.frequency", rootCmd.PersistentFlags().Lookup("metrics-frequency"))

	viper.BindEnv("backtest.concurrency", "PVBT_BACKTEST_CONCURRENCY")
	rootCmd.PersistentFlags().Int("concurrency", backtest.DefaultConcurrency, "Number of portfolios simulated in parallel")
	viper.BindPFlag("backtest.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))

	// Tracing
	viper.BindEnv("otlp.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
	viper.BindEnv("otlp.http", "PVBT_OTLP_HTTP")
	viper.BindEnv("otlp.service_name", "OTEL_SERVICE_NAME")
	viper.BindEnv("otlp.sample_ratio", "PVBT_OTLP_SAMPLE_RATIO")
}

var rootCmd = &cobra.Command{
	Use:     "pvbt",
	Version: common.CurrentVersion.String(),
	Short:   "Backtest fixed weight portfolios",
	Long: `pvbt simulates fixed weight portfolios with periodic rebalancing and reports
their CAGR, maximum drawdown, volatility, Sharpe, Sortino, beta and alpha.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
