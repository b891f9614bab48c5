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

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

const (
	IndexSP500       = "sp500"
	IndexNasdaq100   = "nasdaq100"
	IndexRussell3000 = "russell3000"
	IndexAll         = "all"

	AnySector = "any"
)

// Stock is a catalog entry of reference data for one ticker. Numeric
// attributes are nil when unknown.
type Stock struct {
	Ticker           string   `json:"ticker"`
	Sector           *string  `json:"sector"`
	Industry         *string  `json:"industry"`
	MarketCap        *float64 `json:"marketCap"`
	AverageVolume    *float64 `json:"averageVolume"`
	TrailingPE       *float64 `json:"trailingPE"`
	ForwardPE        *float64 `json:"forwardPE"`
	PriceToBook      *float64 `json:"priceToBook"`
	PEGRatio         *float64 `json:"pegRatio"`
	PriceToSales     *float64 `json:"priceToSales"`
	RevenueGrowth    *float64 `json:"revenueGrowth"`
	EarningsGrowth   *float64 `json:"earningsGrowth"`
	ReturnOnEquity   *float64 `json:"returnOnEquity"`
	GrossMargins     *float64 `json:"grossMargins"`
	OperatingMargins *float64 `json:"operatingMargins"`
	DividendYield    *float64 `json:"dividendYield"`
	InSP500          bool     `json:"in_sp500"`
	InNasdaq100      bool     `json:"in_nasdaq100"`
	InRussell3000    bool     `json:"in_russell3000"`
}

// Field returns the numeric attribute with the given json name
func (s *Stock) Field(name string) (float64, bool) {
	var val *float64
	switch name {
	case "marketCap":
		val = s.MarketCap
	case "averageVolume":
		val = s.AverageVolume
	case "trailingPE":
		val = s.TrailingPE
	case "forwardPE":
		val = s.ForwardPE
	case "priceToBook":
		val = s.PriceToBook
	case "pegRatio":
		val = s.PEGRatio
	case "priceToSales":
		val = s.PriceToSales
	case "revenueGrowth":
		val = s.RevenueGrowth
	case "earningsGrowth":
		val = s.EarningsGrowth
	case "returnOnEquity":
		val = s.ReturnOnEquity
	case "grossMargins":
		val = s.GrossMargins
	case "operatingMargins":
		val = s.OperatingMargins
	case "dividendYield":
		val = s.DividendYield
	}

	if val == nil {
		return 0, false
	}
	return *val, true
}

func (s *Stock) inIndex(index string) bool {
	switch index {
	case IndexSP500:
		return s.InSP500
	case IndexNasdaq100:
		return s.InNasdaq100
	case IndexRussell3000:
		return s.InRussell3000
	case IndexAll:
		return true
	default:
		return false
	}
}

// Range bounds a numeric attribute; nil bounds are open
type Range struct {
	Min *float64 `json:"min" yaml:"min" toml:"min"`
	Max *float64 `json:"max" yaml:"max" toml:"max"`
}

// ScreenRequest selects catalog tickers by index membership, sector, market
// cap and numeric attribute ranges
type ScreenRequest struct {
	Index        string           `json:"index" yaml:"index" toml:"index"`
	Sector       string           `json:"sector" yaml:"sector" toml:"sector"`
	MinMarketCap *float64         `json:"minMarketCap" yaml:"minMarketCap" toml:"minMarketCap"`
	Filters      map[string]Range `json:"filters" yaml:"filters" toml:"filters"`
}

// Catalog is the in-memory reference data of every known ticker
type Catalog struct {
	stocks   []*Stock
	byTicker map[string]*Stock
}

// NewCatalog indexes stocks by ticker
func NewCatalog(stocks []*Stock) *Catalog {
	c := &Catalog{
		stocks:   make([]*Stock, 0, len(stocks)),
		byTicker: make(map[string]*Stock, len(stocks)),
	}

	for _, stock := range stocks {
		if stock == nil || stock.Ticker == "" {
			continue
		}
		stock.Ticker = strings.ToUpper(stock.Ticker)
		if _, ok := c.byTicker[stock.Ticker]; ok {
			continue
		}
		c.stocks = append(c.stocks, stock)
		c.byTicker[stock.Ticker] = stock
	}

	return c
}

// LoadCatalog reads a JSON array of stocks from fn
func LoadCatalog(fn string) (*Catalog, error) {
	raw, err := os.ReadFile(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not read stock catalog")
		return nil, err
	}

	stocks := make([]*Stock, 0, 4096)
	if err := json.Unmarshal(raw, &stocks); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("could not parse stock catalog")
		return nil, err
	}

	catalog := NewCatalog(stocks)
	log.Info().Int("NumStocks", catalog.Len()).Str("FileName", fn).Msg("loaded stock catalog")
	return catalog, nil
}

// Len is the number of stocks in the catalog
func (c *Catalog) Len() int {
	return len(c.stocks)
}

// Has returns true if ticker is in the catalog
func (c *Catalog) Has(ticker string) bool {
	_, ok := c.byTicker[strings.ToUpper(ticker)]
	return ok
}

// Get returns the stock for ticker
func (c *Catalog) Get(ticker string) (*Stock, bool) {
	stock, ok := c.byTicker[strings.ToUpper(ticker)]
	return stock, ok
}

// Tickers returns every ticker in catalog order
func (c *Catalog) Tickers() []string {
	tickers := make([]string, len(c.stocks))
	for idx, stock := range c.stocks {
		tickers[idx] = stock.Ticker
	}
	return tickers
}

// Screen returns the tickers matching every criterion of req in catalog
// order. A stock missing a filtered attribute does not match; unknown filter
// names never match.
func (c *Catalog) Screen(req *ScreenRequest) ([]string, error) {
	index := strings.ToLower(strings.TrimSpace(req.Index))
	if index == "" {
		index = IndexSP500
	}

	switch index {
	case IndexSP500, IndexNasdaq100, IndexRussell3000, IndexAll:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndex, req.Index)
	}

	sector := req.Sector
	if sector == "" {
		sector = AnySector
	}

	res := make([]string, 0)
	for _, stock := range c.stocks {
		if !stock.inIndex(index) {
			continue
		}

		if sector != AnySector && (stock.Sector == nil || *stock.Sector != sector) {
			continue
		}

		if req.MinMarketCap != nil && (stock.MarketCap == nil || *stock.MarketCap < *req.MinMarketCap) {
			continue
		}

		if matchesFilters(stock, req.Filters) {
			res = append(res, stock.Ticker)
		}
	}

	return res, nil
}

func matchesFilters(stock *Stock, filters map[string]Range) bool {
	for field, limits := range filters {
		val, ok := stock.Field(field)
		if !ok {
			return false
		}
		if limits.Min != nil && val < *limits.Min {
			return false
		}
		if limits.Max != nil && val > *limits.Max {
			return false
		}
	}
	return true
}
