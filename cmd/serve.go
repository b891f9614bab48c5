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
	"os/signal"
	"runtime/pprof"
	"runtime/trace"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/penny-vault/pvbt/common"
	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/handler"
	"github.com/penny-vault/pvbt/middleware"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
	"github.com/penny-vault/pvbt/router"
	"github.com/penny-vault/pvbt/tradecron"
)

// historyBegin is the first date requested when a price file is rebuilt
var historyBegin = time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)

var (
	profile     bool
	traceOutput bool
)

func init() {
	viper.BindEnv("server.port", "PORT")
	serveCmd.Flags().IntP("port", "p", 3000, "Port to run application server on")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))

	viper.BindEnv("server.cors_origins", "PVBT_CORS_ORIGINS")
	serveCmd.Flags().String("cors-origins", "*", "Comma separated list of origins allowed to call the API")
	viper.BindPFlag("server.cors_origins", serveCmd.Flags().Lookup("cors-origins"))

	viper.BindEnv("data.refresh_schedule", "PVBT_REFRESH_SCHEDULE")
	serveCmd.Flags().String("refresh-schedule", "", "Cron schedule for refreshing catalog prices from Tiingo; empty disables refresh")
	viper.BindPFlag("data.refresh_schedule", serveCmd.Flags().Lookup("refresh-schedule"))

	serveCmd.Flags().BoolVar(&profile, "cpu-profile", false, "Run pprof and save in profile.out")
	serveCmd.Flags().BoolVar(&traceOutput, "trace", false, "Trace program execution and save in trace.out")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the pvbt HTTP server",
	Long:  `Run HTTP server that serves backtests, scans and the stock screener`,
	Run: func(cmd *cobra.Command, args []string) {
		if profile {
			f, err := os.Create("profile.out")
			if err != nil {
				log.Fatal().Err(err).Msg("could not create profile output file")
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				log.Fatal().Err(err).Msg("could not start cpu profile")
			}
			defer pprof.StopCPUProfile()
		}

		if traceOutput {
			f, err := os.Create("trace.out")
			if err != nil {
				log.Fatal().Err(err).Msg("failed to create trace output file")
			}
			defer func() {
				if err := f.Close(); err != nil {
					log.Fatal().Err(err).Msg("failed to close trace file")
				}
			}()

			if err := trace.Start(f); err != nil {
				log.Fatal().Err(err).Msg("failed to start trace")
			}
			defer trace.Stop()
		}

		ctx := context.Background()

		shutdownTracing, err := opentelemetry.Setup()
		if err != nil {
			log.Fatal().Err(err).Msg("could not setup tracing")
		}
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Error().Err(err).Msg("could not flush traces")
			}
		}()

		backtester, cache := newBacktester(ctx)
		api := &handler.API{
			Backtester: backtester,
			Catalog:    loadCatalog(),
		}
		log.Info().Msg("initialized data framework")

		app := router.NewApp()

		// shutdown cleanly on interrupt
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		go func() {
			sig := <-c
			fmt.Printf("Received signal: '%s'; shutting down...\n", sig.String())
			if err := app.Shutdown(); err != nil {
				log.Fatal().Err(err).Msg("could not shutdown server")
			}
		}()

		app.Use(cors.New(cors.Config{
			AllowOrigins: viper.GetString("server.cors_origins"),
			AllowHeaders: "*",
			AllowMethods: "GET,POST,HEAD,OPTIONS",
		}))
		app.Use(middleware.NewLogger())

		router.SetupRoutes(app, api)

		if spec := viper.GetString("data.refresh_schedule"); spec != "" {
			scheduleRefresh(spec, api.Catalog, cache)
		}

		if err := app.Listen(":" + viper.GetString("server.port")); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	},
}

// scheduleRefresh downloads every catalog ticker on spec and purges cached
// price tables afterwards
func scheduleRefresh(spec string, catalog *data.Catalog, cache *common.Cache) {
	subLog := log.With().Str("Schedule", spec).Logger()

	if _, err := tradecron.New(spec); err != nil {
		subLog.Fatal().Err(err).Msg("invalid refresh schedule")
	}

	if catalog == nil {
		subLog.Warn().Msg("no stock catalog; price refresh disabled")
		return
	}

	refresh := func() {
		ctx := context.Background()
		res, err := refreshPrices(ctx, catalog.Tickers(), historyBegin, common.Today())
		if err != nil {
			subLog.Error().Err(err).Msg("scheduled price refresh failed")
			return
		}

		if err := cache.Purge(ctx, data.PriceCachePrefix+"*"); err != nil {
			subLog.Error().Err(err).Msg("could not purge price cache")
		}

		subLog.Info().Int("NumUpdated", len(res.Updated)).Int("NumFailed", len(res.Failed)).Msg("scheduled price refresh finished")
	}

	scheduler := gocron.NewScheduler(common.GetTimezone())
	if _, err := scheduler.Cron(spec).Do(refresh); err != nil {
		subLog.Fatal().Err(err).Msg("could not schedule price refresh")
	}
	scheduler.StartAsync()
	subLog.Info().Msg("scheduled price refresh")
}
