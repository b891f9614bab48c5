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

package tradecron

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

var (
	ErrMalformedSchedule = errors.New("malformed schedule")
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is a validated standard 5 field cron spec (or @daily style descriptor)
type Schedule struct {
	Spec     string
	schedule cron.Schedule
}

// New parses spec; the spec is later handed to the job scheduler verbatim
func New(spec string) (*Schedule, error) {
	sched, err := parser.Parse(spec)
	if err != nil {
		log.Error().Err(err).Str("Schedule", spec).Msg("could not parse cron schedule")
		return nil, fmt.Errorf("%w: %s", ErrMalformedSchedule, err.Error())
	}

	return &Schedule{
		Spec:     spec,
		schedule: sched,
	}, nil
}

// Next returns the next activation time after t
func (s *Schedule) Next(t time.Time) time.Time {
	return s.schedule.Next(t)
}

// NextTradeDay returns the next activation after t that falls on a trade day
func (s *Schedule) NextTradeDay(t time.Time) time.Time {
	next := s.schedule.Next(t)
	for ii := 0; ii < 366 && !IsTradeDay(next); ii++ {
		next = s.schedule.Next(next)
	}
	return next
}
