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

package jq

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/db"
)

// Value is an arbitrary value of a dataset cell: db.Date, float64, int64 or
// string, or nil for a missing value. It is an alias, so {column -> value}
// records interchange freely with the store's row values.
type Value = interface{}

// dateFormat is the only date format the upstream API is contracted to emit.
const dateFormat = "2006-01-02"

// Dataset is an ordered sequence of normalized rows with a fixed column
// schema. An empty fetch yields zero rows but the full column schema, so
// datasets of the same endpoint and plan always concatenate cleanly.
type Dataset struct {
	Endpoint EndpointID
	Schema   Schema
	Rows     [][]Value
}

// Normalize converts raw endpoint records into a Dataset with the endpoint's
// declared schema for the given plan. Date fields must be in YYYY-MM-DD
// format; any other format is a SchemaError. Rows are sorted by the
// endpoint's sort key, ascending, stable.
func Normalize(id EndpointID, plan Plan, records []map[string]interface{}) (*Dataset, error) {
	e, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	schema := e.Schema(plan)
	d := &Dataset{Endpoint: id, Schema: schema, Rows: [][]Value{}}
	for i, rec := range records {
		row := make([]Value, len(schema))
		for j, col := range schema {
			v, err := normalizeValue(col, rec[col.Name])
			if err != nil {
				return nil, errors.Annotate(err, "record %d of %s", i, id)
			}
			row[j] = v
		}
		d.Rows = append(d.Rows, row)
	}
	d.Sort()
	return d, nil
}

func normalizeValue(col Column, raw interface{}) (Value, error) {
	if raw == nil {
		return nil, nil
	}
	switch col.Type {
	case ColDate:
		s, ok := raw.(string)
		if !ok {
			return nil, &SchemaError{Message: fmt.Sprintf(
				"column %s: expected a date string, got %T", col.Name, raw)}
		}
		if s == "" || s == "-" {
			return nil, nil
		}
		t, err := time.Parse(dateFormat, s)
		if err != nil {
			return nil, &SchemaError{Message: fmt.Sprintf(
				"column %s: '%s' is not a %s date", col.Name, s, dateFormat)}
		}
		return db.NewDateFromTime(t), nil
	case ColFloat:
		switch v := raw.(type) {
		case float64:
			return v, nil
		case string:
			if v == "" || v == "-" {
				return nil, nil
			}
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, &SchemaError{Message: fmt.Sprintf(
					"column %s: '%s' is not a number", col.Name, v)}
			}
			return f, nil
		}
		return nil, &SchemaError{Message: fmt.Sprintf(
			"column %s: expected a number, got %T", col.Name, raw)}
	case ColInt:
		switch v := raw.(type) {
		case float64:
			return int64(v), nil
		case string:
			if v == "" || v == "-" {
				return nil, nil
			}
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, &SchemaError{Message: fmt.Sprintf(
					"column %s: '%s' is not an integer", col.Name, v)}
			}
			return n, nil
		}
		return nil, &SchemaError{Message: fmt.Sprintf(
			"column %s: expected an integer, got %T", col.Name, raw)}
	case ColString:
		switch v := raw.(type) {
		case string:
			return v, nil
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		case bool:
			return strconv.FormatBool(v), nil
		}
		return nil, &SchemaError{Message: fmt.Sprintf(
			"column %s: expected a string, got %T", col.Name, raw)}
	}
	return nil, &SchemaError{Message: fmt.Sprintf(
		"column %s has unknown type %d", col.Name, col.Type)}
}

// Append adds the rows of d2 to d. The schemas must be identical.
func (d *Dataset) Append(d2 *Dataset) error {
	if !d.Schema.Equal(d2.Schema) {
		return &SchemaError{Message: fmt.Sprintf(
			"cannot append %s dataset with %d columns to one with %d columns",
			d.Endpoint, len(d2.Schema), len(d.Schema))}
	}
	d.Rows = append(d.Rows, d2.Rows...)
	return nil
}

// Sort orders the rows by the endpoint's sort key, ascending, stable. Rows
// with a nil key cell sort before non-nil values of that cell.
func (d *Dataset) Sort() {
	e, err := Lookup(d.Endpoint)
	if err != nil {
		return
	}
	idx := d.Schema.MapColumns()
	keys := []int{}
	for _, name := range e.SortKey {
		if i, ok := idx[name]; ok {
			keys = append(keys, i)
		}
	}
	sort.SliceStable(d.Rows, func(i, j int) bool {
		for _, k := range keys {
			if lessValue(d.Rows[i][k], d.Rows[j][k]) {
				return true
			}
			if lessValue(d.Rows[j][k], d.Rows[i][k]) {
				return false
			}
		}
		return false
	})
}

// lessValue is a strict ordering of cell values of the same column. Nil sorts
// first; otherwise values compare within their type.
func lessValue(a, b Value) bool {
	if a == nil {
		return b != nil
	}
	if b == nil {
		return false
	}
	switch av := a.(type) {
	case db.Date:
		bv, ok := b.(db.Date)
		return ok && av.Before(bv)
	case float64:
		bv, ok := b.(float64)
		return ok && av < bv
	case int64:
		bv, ok := b.(int64)
		return ok && av < bv
	case string:
		bv, ok := b.(string)
		return ok && av < bv
	}
	return false
}

// ColumnIndex returns the index of the named column, or -1.
func (d *Dataset) ColumnIndex(name string) int {
	for i, c := range d.Schema {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Record converts row i into a {column name -> value} mapping.
func (d *Dataset) Record(i int) map[string]Value {
	rec := make(map[string]Value, len(d.Schema))
	for j, c := range d.Schema {
		rec[c.Name] = d.Rows[i][j]
	}
	return rec
}

// Date returns the value of the endpoint's date column in row i.
func (d *Dataset) Date(i int) (db.Date, error) {
	e, err := Lookup(d.Endpoint)
	if err != nil {
		return db.Date{}, err
	}
	j := d.ColumnIndex(e.DateColumn)
	if j < 0 {
		return db.Date{}, &SchemaError{Message: fmt.Sprintf(
			"%s dataset has no date column %s", d.Endpoint, e.DateColumn)}
	}
	date, ok := d.Rows[i][j].(db.Date)
	if !ok {
		return db.Date{}, &SchemaError{Message: fmt.Sprintf(
			"%s row %d has no parsable %s", d.Endpoint, i, e.DateColumn)}
	}
	return date, nil
}
