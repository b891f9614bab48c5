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

package data

import "errors"

var (
	ErrNoData            = errors.New("no price data found for the requested tickers and range")
	ErrTickersNotFound   = errors.New("could not find data for tickers")
	ErrInvalidTimeRange  = errors.New("start must be before end")
	ErrUnknownProvider   = errors.New("unknown data provider")
	ErrMissingToken      = errors.New("tiingo token is not configured")
	ErrHTTPStatus        = errors.New("data provider returned an invalid status code")
	ErrNotWritable       = errors.New("data provider does not support writing prices")
	ErrMalformedCSV      = errors.New("malformed price file")
	ErrCatalogNotLoaded  = errors.New("stock catalog is not loaded")
	ErrUnknownIndex      = errors.New("unknown index")
	ErrDatabaseNotOpened = errors.New("database connection has not been established")
	ErrInvalidTicker     = errors.New("invalid ticker symbol")
)
