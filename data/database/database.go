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

package database

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog/log"
)

// PgxIface is the subset of a pgx pool used by the price provider;
// satisfied by *pgxpool.Pool and pgxmock connections
type PgxIface interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

var pool PgxIface

// SetPool replaces the shared connection pool
func SetPool(myPool PgxIface) {
	pool = myPool
}

// Pool returns the shared connection pool or nil if Connect has not been called
func Pool() PgxIface {
	return pool
}

// Connect opens a connection pool to url and verifies the server is reachable
func Connect(ctx context.Context, url string) error {
	myPool, err := pgxpool.Connect(ctx, url)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not connect to pool")
		return err
	}

	if err = myPool.Ping(ctx); err != nil {
		log.Error().Stack().Err(err).Msg("could not ping database server")
		myPool.Close()
		return err
	}

	SetPool(myPool)
	return nil
}
