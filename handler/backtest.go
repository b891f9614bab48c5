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
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/penny-vault/pvbt/backtest"
	"github.com/penny-vault/pvbt/observability/opentelemetry"
)

// Backtest simulates the portfolios posted in the request body
func (api *API) Backtest(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "handler.Backtest")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	req := backtest.Request{}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		span.SetStatus(codes.Error, "invalid request body")
		return sendBadRequest(c, err)
	}

	resp, err := api.Backtester.Run(ctx, &req)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(resp)
}

// Scan computes the metrics of each ticker posted in the request body
func (api *API) Scan(c *fiber.Ctx) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(c.UserContext(), "handler.Scan")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	req := backtest.ScanRequest{}
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		span.SetStatus(codes.Error, "invalid request body")
		return sendBadRequest(c, err)
	}

	results, err := api.Backtester.Scan(ctx, &req, api.Catalog)
	if err != nil {
		return sendError(c, err)
	}

	return c.JSON(results)
}
