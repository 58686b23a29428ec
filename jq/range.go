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
	"context"
	"net/url"
	"sort"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/iterator"
	"github.com/stockparfait/jquants/db"
)

// fetchParallelism is the number of concurrent per-date-unit fetches in
// FetchRange. The work is network-bound; the upstream rate limit matters more
// than CPU count.
const fetchParallelism = 4

// FetchDate fetches and normalizes one endpoint for a single date.
func FetchDate(ctx context.Context, id EndpointID, date db.Date) (*Dataset, error) {
	e, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	switch e.DateParam {
	case DateParamDate:
		query.Set("date", date.Compact())
	case DateParamFromTo:
		query.Set("from", date.Compact())
		query.Set("to", date.Compact())
	case DateParamNone:
	}
	return fetchQuery(ctx, e, query)
}

// FetchCode fetches and normalizes one endpoint for a single security code
// over an optional inclusive date range. Zero dates are omitted from the
// query, in which case the server returns its full history for the code.
func FetchCode(ctx context.Context, id EndpointID, code string, from, to db.Date) (*Dataset, error) {
	e, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	query := url.Values{}
	query.Set("code", code)
	if !from.IsZero() {
		query.Set("from", from.Compact())
	}
	if !to.IsZero() {
		query.Set("to", to.Compact())
	}
	return fetchQuery(ctx, e, query)
}

func fetchQuery(ctx context.Context, e *Endpoint, query url.Values) (*Dataset, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("no client in context")
	}
	records, err := FetchAll(ctx, e.Path(), query, e.ResultKey)
	if err != nil {
		return nil, errors.Annotate(err, "failed to fetch %s", e.ID)
	}
	d, err := Normalize(e.ID, c.Plan(), records)
	if err != nil {
		return nil, errors.Annotate(err, "failed to normalize %s", e.ID)
	}
	return d, nil
}

type rangeUnit struct {
	index int
	date  db.Date
}

type rangeResult struct {
	index int
	data  *Dataset
	err   error
}

// FetchRange fetches an endpoint over the inclusive date range [start, end],
// one date unit at a time (daily, or weekly-Monday for the listing endpoint;
// from/to endpoints are fetched as a single unit covering the whole range).
// Units are fetched concurrently; the first failure cancels the remaining
// units and aborts the whole range, since a silently skipped date would
// corrupt the incremental watermark. A range with zero total rows returns
// (nil, nil) - the no-data sentinel, a normal outcome for weekend-only
// ranges - never an error.
func FetchRange(ctx context.Context, id EndpointID, start, end db.Date) (*Dataset, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("no client in context")
	}
	e, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	if start.After(end) {
		return nil, nil
	}
	if e.DateParam != DateParamDate {
		// A single query covers the whole range.
		query := url.Values{}
		if e.DateParam == DateParamFromTo {
			query.Set("from", start.Compact())
			query.Set("to", end.Compact())
		}
		d, err := fetchQuery(ctx, e, query)
		if err != nil {
			return nil, err
		}
		if len(d.Rows) == 0 {
			return nil, nil
		}
		return d, nil
	}

	var dates []db.Date
	switch e.Step {
	case StepWeeklyMonday:
		dates = db.MondaysInRange(start, end)
	default:
		dates = db.DatesInRange(start, end)
	}
	units := make([]rangeUnit, len(dates))
	for i, date := range dates {
		units[i] = rangeUnit{index: i, date: date}
	}

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()
	f := func(u rangeUnit) rangeResult {
		d, err := FetchDate(cctx, id, u.date)
		if err != nil {
			cancel() // abort the in-flight sibling fetches
			return rangeResult{index: u.index, err: errors.Annotate(
				err, "failed to fetch %s for %s", id, u.date)}
		}
		return rangeResult{index: u.index, data: d}
	}
	pm := iterator.ParallelMap(cctx, fetchParallelism, iterator.FromSlice(units), f)
	defer iterator.Flush(pm)
	results := iterator.Reduce[rangeResult, []rangeResult](pm, []rangeResult{},
		func(r rangeResult, acc []rangeResult) []rangeResult {
			return append(acc, r)
		})
	sort.Slice(results, func(i, j int) bool { return results[i].index < results[j].index })

	// Prefer the error of the earliest unit that failed on its own, rather
	// than a sibling aborted by the cancellation.
	var firstErr error
	for _, r := range results {
		if r.err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = r.err
		}
		if !errors.Is(r.err, context.Canceled) {
			firstErr = r.err
			break
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	// An externally canceled run may have fetched nothing; that must not
	// look like a no-data range.
	if err := ctx.Err(); err != nil {
		return nil, errors.Annotate(err, "range fetch of %s canceled", id)
	}

	total := &Dataset{Endpoint: id, Schema: e.Schema(c.Plan()), Rows: [][]Value{}}
	for _, r := range results {
		if err := total.Append(r.data); err != nil {
			return nil, err
		}
	}
	if len(total.Rows) == 0 {
		return nil, nil
	}
	total.Sort()
	return total, nil
}
