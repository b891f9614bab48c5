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

package portfolio

import (
	"fmt"
	"math"
	"strings"

	"github.com/penny-vault/pvbt/common"
)

// RebalancePeriod is how often target weights are re-applied
type RebalancePeriod int

const (
	Never RebalancePeriod = iota
	Monthly
	Quarterly
	Annually
)

// String returns the wire name of the period
func (p RebalancePeriod) String() string {
	switch p {
	case Never:
		return "never"
	case Monthly:
		return "monthly"
	case Quarterly:
		return "quarterly"
	case Annually:
		return "annually"
	default:
		return fmt.Sprintf("RebalancePeriod(%d)", int(p))
	}
}

// ParseRebalancePeriod converts a period name to a RebalancePeriod. An empty
// string is Never.
func ParseRebalancePeriod(s string) (RebalancePeriod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "never":
		return Never, nil
	case "monthly":
		return Monthly, nil
	case "quarterly":
		return Quarterly, nil
	case "annually", "yearly":
		return Annually, nil
	default:
		return Never, fmt.Errorf("%w: %q", ErrUnknownRebalance, s)
	}
}

func (p RebalancePeriod) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *RebalancePeriod) UnmarshalText(text []byte) error {
	period, err := ParseRebalancePeriod(string(text))
	if err != nil {
		return err
	}
	*p = period
	return nil
}

// Config describes a weighted portfolio. Weights are percentages parallel to
// Tickers.
type Config struct {
	Name            string          `json:"name" yaml:"name" toml:"name"`
	Tickers         []string        `json:"tickers" yaml:"tickers" toml:"tickers"`
	Weights         []float64       `json:"weights" yaml:"weights" toml:"weights"`
	RebalancePeriod RebalancePeriod `json:"rebalancingPeriod" yaml:"rebalancingPeriod" toml:"rebalancingPeriod"`
}

// Validate checks the structural invariants of the config. Weights summing to
// 100 is not enforced.
func (cfg *Config) Validate() error {
	if len(cfg.Tickers) == 0 {
		return fmt.Errorf("%w: portfolio %q has no tickers", ErrInvalidConfig, cfg.Name)
	}

	if len(cfg.Tickers) != len(cfg.Weights) {
		return fmt.Errorf("%w: portfolio %q has %d tickers but %d weights", ErrInvalidConfig, cfg.Name, len(cfg.Tickers), len(cfg.Weights))
	}

	seen := make(map[string]bool, len(cfg.Tickers))
	for idx, ticker := range cfg.Tickers {
		if ticker == "" {
			return fmt.Errorf("%w: portfolio %q has an empty ticker", ErrInvalidConfig, cfg.Name)
		}
		if !common.ValidTicker(strings.ToUpper(strings.TrimSpace(ticker))) {
			return fmt.Errorf("%w: portfolio %q has an invalid ticker %q", ErrInvalidConfig, cfg.Name, ticker)
		}
		if seen[ticker] {
			return fmt.Errorf("%w: portfolio %q lists %s more than once", ErrInvalidConfig, cfg.Name, ticker)
		}
		seen[ticker] = true

		w := cfg.Weights[idx]
		if math.IsNaN(w) || w < 0 || w > 100 {
			return fmt.Errorf("%w: portfolio %q weight for %s must be between 0 and 100", ErrInvalidConfig, cfg.Name, ticker)
		}
	}

	switch cfg.RebalancePeriod {
	case Never, Monthly, Quarterly, Annually:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownRebalance, cfg.RebalancePeriod)
	}

	return nil
}

// fractions returns the weights converted from percentages
func (cfg *Config) fractions() []float64 {
	w := make([]float64, len(cfg.Weights))
	for idx, pct := range cfg.Weights {
		w[idx] = pct / 100.0
	}
	return w
}
