// Copyright 2026 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package tsdb implements the time-series store the merge pipeline persists
// into: tables of rows bucketed into date partitions, where an upload fully
// replaces every partition it touches. Callers must therefore supply the
// complete row set for every touched partition - a partial upload silently
// drops the prior rows of that partition.
package tsdb

import (
	"context"
	"encoding/gob"
	"sort"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/db"
	"github.com/stockparfait/logging"
)

func init() {
	// Cell values cross the gob boundary as interfaces.
	gob.Register(db.Date{})
	gob.Register("")
	gob.Register(float64(0))
	gob.Register(int64(0))
	gob.Register(false)
}

// Row is a single persisted data point. Symbol tags the data source, DT is a
// naive timestamp (no timezone), and PartitionDT names the partition the row
// belongs to, typically the month start of DT. All three are required; the
// remaining columns live in Values.
type Row struct {
	Symbol      string
	DT          time.Time
	PartitionDT db.Date
	Values      map[string]interface{}
}

// Store is the persistence interface of the merge pipeline.
type Store interface {
	// Query returns all rows of the table with DT at or after startDT,
	// restricted to the given symbols, sorted by DT ascending.
	Query(ctx context.Context, table string, startDT time.Time, symbols []string) ([]Row, error)
	// Upload persists rows into the table, fully replacing every partition
	// that the rows touch.
	Upload(ctx context.Context, table string, rows []Row) error
}

// ReadOnly wraps a store for dry runs: queries pass through, uploads are
// logged and discarded.
func ReadOnly(s Store) Store { return &readOnly{Store: s} }

type readOnly struct {
	Store
}

func (s *readOnly) Upload(ctx context.Context, table string, rows []Row) error {
	if err := validate(rows); err != nil {
		return errors.Annotate(err, "invalid upload to table '%s'", table)
	}
	logging.Infof(ctx, "dry run: discarding %d rows for table '%s'", len(rows), table)
	return nil
}

// validate checks the required columns of every row before an upload.
func validate(rows []Row) error {
	for i, r := range rows {
		if r.Symbol == "" {
			return errors.Reason("row %d has no symbol", i)
		}
		if r.DT.IsZero() {
			return errors.Reason("row %d has no dt", i)
		}
		if r.PartitionDT.IsZero() {
			return errors.Reason("row %d has no partition_dt", i)
		}
	}
	return nil
}

type partitionKey struct {
	partition db.Date
	symbol    string
}

// groupByPartition buckets rows by (partition, symbol), each bucket sorted by
// DT ascending.
func groupByPartition(rows []Row) map[partitionKey][]Row {
	groups := make(map[partitionKey][]Row)
	for _, r := range rows {
		k := partitionKey{partition: r.PartitionDT, symbol: r.Symbol}
		groups[k] = append(groups[k], r)
	}
	for _, g := range groups {
		sortByDT(g)
	}
	return groups
}

func sortByDT(rows []Row) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].DT.Before(rows[j].DT) })
}

func symbolSet(symbols []string) map[string]bool {
	m := make(map[string]bool, len(symbols))
	for _, s := range symbols {
		m[s] = true
	}
	return m
}
