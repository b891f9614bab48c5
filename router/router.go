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

package router

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/penny-vault/pvbt/handler"
)

// NewApp creates a fiber app that encodes JSON with goccy/go-json
func NewApp() *fiber.App {
	return fiber.New(fiber.Config{
		AppName:               "pvbt",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})
}

func SetupRoutes(app *fiber.App, api *handler.API) {
	grp := app.Group("/api")
	grp.Get("/ping", api.Ping)

	grp.Post("/backtest", api.Backtest)
	grp.Post("/scan", api.Scan)
	grp.Post("/screener", api.Screener)
	grp.Get("/all-tickers", api.AllTickers)
}
