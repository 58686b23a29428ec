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

package tsdb

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/db"
)

// LocalStore persists tables as gob files on the local filesystem, one file
// per partition and symbol: <dir>/<table>/<partition>/<symbol>.gob. Partition
// files are replaced atomically, so the previous artifact survives a failed
// write.
type LocalStore struct {
	dir string
}

var _ Store = &LocalStore{}

// NewLocalStore creates a store rooted at dir.
func NewLocalStore(dir string) *LocalStore {
	return &LocalStore{dir: dir}
}

// Upload implements Store.
func (s *LocalStore) Upload(ctx context.Context, table string, rows []Row) error {
	if err := validate(rows); err != nil {
		return errors.Annotate(err, "invalid upload to table '%s'", table)
	}
	for k, g := range groupByPartition(rows) {
		if err := ctx.Err(); err != nil {
			return errors.Annotate(err, "upload to '%s' canceled", table)
		}
		dir := filepath.Join(s.dir, table, k.partition.String())
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Annotate(err, "failed to create partition dir '%s'", dir)
		}
		fileName := filepath.Join(dir, k.symbol+".gob")
		if err := db.WriteGobFile(fileName, g); err != nil {
			return errors.Annotate(err, "failed to write partition '%s'", fileName)
		}
	}
	return nil
}

// Query implements Store.
func (s *LocalStore) Query(ctx context.Context, table string, startDT time.Time, symbols []string) ([]Row, error) {
	tableDir := filepath.Join(s.dir, table)
	entries, err := os.ReadDir(tableDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Row{}, nil
		}
		return nil, errors.Annotate(err, "failed to read table dir '%s'", tableDir)
	}
	startMonth := db.NewDateFromTime(startDT).MonthStart()
	result := []Row{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		partition, err := db.NewDateFromString(e.Name())
		if err != nil {
			return nil, errors.Annotate(err,
				"unexpected partition dir '%s' in table '%s'", e.Name(), table)
		}
		if partition.Before(startMonth) {
			continue
		}
		for _, symbol := range symbols {
			if err := ctx.Err(); err != nil {
				return nil, errors.Annotate(err, "query of '%s' canceled", table)
			}
			fileName := filepath.Join(tableDir, e.Name(), symbol+".gob")
			if _, err := os.Stat(fileName); err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return nil, errors.Annotate(err, "failed to stat '%s'", fileName)
			}
			var rows []Row
			if err := db.ReadGobFile(fileName, &rows); err != nil {
				return nil, errors.Annotate(err, "failed to read partition '%s'", fileName)
			}
			for _, r := range rows {
				if !r.DT.Before(startDT) {
					result = append(result, r)
				}
			}
		}
	}
	sortByDT(result)
	return result, nil
}
