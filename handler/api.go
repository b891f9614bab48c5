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
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/data"
	"github.com/penny-vault/pvbt/portfolio"
)

// API serves backtests and catalog queries over HTTP
type API struct {
	Backtester *backtest.Backtester
	Catalog    *data.Catalog
}

type PingResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"API is alive"`
	Time    string `json:"time" example:"2021-06-19T08:09:10.115924-05:00"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// Ping reports that the server is up
func (api *API) Ping(c *fiber.Ctx) error {
	now, err := time.Now().MarshalText()
	if err != nil {
		log.Error().Err(err).Msg("error while getting time in ping")
		return c.JSON(PingResponse{
			Status:  "error",
			Message: err.Error(),
			Time:    string(now),
		})
	}

	return c.JSON(PingResponse{
		Status:  "success",
		Message: "API is alive",
		Time:    string(now),
	})
}

// statusCode maps err to the HTTP status returned to the client
func statusCode(err error) int {
	switch {
	case errors.Is(err, backtest.ErrInvalidRequest),
		errors.Is(err, backtest.ErrNoCommonTradingDays),
		errors.Is(err, portfolio.ErrInvalidConfig),
		errors.Is(err, portfolio.ErrUnknownRebalance),
		errors.Is(err, portfolio.ErrInvalidInitialAmt),
		errors.Is(err, data.ErrNoData),
		errors.Is(err, data.ErrTickersNotFound),
		errors.Is(err, data.ErrInvalidTimeRange),
		errors.Is(err, data.ErrUnknownIndex),
		errors.Is(err, data.ErrInvalidTicker):
		return fiber.StatusBadRequest
	case errors.Is(err, data.ErrCatalogNotLoaded):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func sendError(c *fiber.Ctx, err error) error {
	code := statusCode(err)
	if code >= fiber.StatusInternalServerError {
		log.Error().Err(err).Str("Path", c.Path()).Msg("request failed")
	}
	return c.Status(code).JSON(ErrorResponse{Error: err.Error()})
}

func sendBadRequest(c *fiber.Ctx, err error) error {
	log.Warn().Err(err).Str("Path", c.Path()).Msg("could not parse request body")
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body: " + err.Error()})
}
