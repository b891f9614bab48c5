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

package handler

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"github.com/penny-vault/pvbt/data"
)

// Screener returns the catalog tickers that match the posted criteria
func (api *API) Screener(c *fiber.Ctx) error {
	if api.Catalog == nil {
		return sendError(c, data.ErrCatalogNotLoaded)
	}

	req := data.ScreenRequest{}
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return sendBadRequest(c, err)
		}
	}

	tickers, err := api.Catalog.Screen(&req)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(tickers)
}

// AllTickers lists every ticker in the catalog
func (api *API) AllTickers(c *fiber.Ctx) error {
	if api.Catalog == nil {
		return sendError(c, data.ErrCatalogNotLoaded)
	}

	return c.JSON(api.Catalog.Tickers())
}
