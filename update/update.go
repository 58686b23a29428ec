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

// Package update implements the incremental merge pipeline: it loads the
// prior persisted rows of a table, computes the fetch window past the last
// persisted date, fetches the window from the API, merges the result into
// the prior rows deduplicated on the business key, and persists complete
// partitions back to the store. Persisting is the single commit point: any
// earlier failure leaves the stored data untouched.
package update

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/db"
	"github.com/stockparfait/jquants/jq"
	"github.com/stockparfait/jquants/notify"
	"github.com/stockparfait/jquants/tsdb"
	"github.com/stockparfait/logging"
)

// Pipeline updates tables incrementally. The zero value of the optional
// fields is replaced by defaults: symbol "jquants_api", Asia/Tokyo location,
// a 5:00 availability cutoff, the real clock and a log-only notifier.
type Pipeline struct {
	Store        tsdb.Store
	Notifier     notify.Notifier // best-effort; failures are only logged
	Symbol       string          // constant symbol tag of persisted rows
	InitialStart db.Date         // fetch start for a table with no prior data
	CutoffHour   *int            // local hour before which today is not yet published; nil means 5, 0 means midnight
	Location     *time.Location
	Now          func() time.Time
}

// Table binds a store table name to the endpoint that feeds it.
type Table struct {
	Name     string
	Endpoint jq.EndpointID
}

const defaultCutoffHour = 5

func (p *Pipeline) symbol() string {
	if p.Symbol == "" {
		return "jquants_api"
	}
	return p.Symbol
}

func (p *Pipeline) initialStart() db.Date {
	if p.InitialStart.IsZero() {
		return db.NewDate(2024, 1, 1)
	}
	return p.InitialStart
}

func (p *Pipeline) cutoffHour() int {
	if p.CutoffHour == nil {
		return defaultCutoffHour
	}
	return *p.CutoffHour
}

func (p *Pipeline) location() *time.Location {
	if p.Location == nil {
		return db.Tokyo()
	}
	return p.Location
}

func (p *Pipeline) now() time.Time {
	if p.Now == nil {
		return time.Now()
	}
	return p.Now()
}

// notify sends a best-effort notification; a delivery failure is logged and
// otherwise ignored.
func (p *Pipeline) notify(ctx context.Context, format string, args ...interface{}) {
	n := p.Notifier
	if n == nil {
		n = notify.Log{}
	}
	text := fmt.Sprintf(format, args...)
	if err := n.Send(ctx, text); err != nil {
		logging.Warningf(ctx, "failed to send notification '%s': %s", text, err.Error())
	}
}

// Run updates one table: load prior rows, compute the fetch window since the
// last persisted date, fetch, merge and persist. Returns nil both on a
// successful update and when there is nothing new to fetch.
func (p *Pipeline) Run(ctx context.Context, table Table) error {
	w, err := p.run(ctx, table)
	if err != nil {
		if w.start.IsZero() { // failed before the window was computed
			p.notify(ctx, "Failed to update %s: %s", table.Name, err.Error())
			return errors.Annotate(err, "failed to update table '%s'", table.Name)
		}
		p.notify(ctx, "Failed to update %s. (%s): %s", table.Name, w, err.Error())
		return errors.Annotate(err, "failed to update table '%s' (%s)", table.Name, w)
	}
	return nil
}

// window is the attempted fetch window, for logs and notifications.
type window struct {
	start, end db.Date
}

func (w window) String() string {
	return w.start.Compact() + " to " + w.end.Compact()
}

func (p *Pipeline) run(ctx context.Context, table Table) (window, error) {
	e, err := jq.Lookup(table.Endpoint)
	if err != nil {
		return window{}, err
	}
	now := p.now().In(p.location())

	// LOAD_PRIOR: query from the start of the previous month, which covers
	// every partition the merge below may touch.
	queryStart := db.NewDateFromTime(now).MonthStart().AddMonths(-1)
	prior, err := p.Store.Query(ctx, table.Name, queryStart.ToTime(), []string{p.symbol()})
	if err != nil {
		return window{}, errors.Annotate(err, "failed to load prior rows")
	}

	// COMPUTE_WINDOW: continue one day past the watermark; today's data is
	// not yet published before the cutoff hour.
	w := window{start: p.initialStart(), end: db.NewDateFromTime(now)}
	if len(prior) > 0 {
		var watermark db.Date
		for _, r := range prior {
			watermark = db.MaxDate(watermark, db.NewDateFromTime(r.DT))
		}
		w.start = watermark.AddDays(1)
	}
	if now.Hour() < p.cutoffHour() {
		w.end = w.end.AddDays(-1)
	}
	if w.start.After(w.end) {
		logging.Infof(ctx, "%s: already up to date (%s)", table.Name, w)
		p.notify(ctx, "It's already the latest data in %s. (%s)", table.Name, w)
		return w, nil
	}

	// FETCH
	logging.Infof(ctx, "%s: fetching %s for %s", table.Name, table.Endpoint, w)
	ds, err := jq.FetchRange(ctx, table.Endpoint, w.start, w.end)
	if err != nil {
		return w, errors.Annotate(err, "failed to fetch %s", table.Endpoint)
	}
	if ds == nil {
		logging.Infof(ctx, "%s: no new data (%s)", table.Name, w)
		p.notify(ctx, "There's no new data in %s. (%s)", table.Name, w)
		return w, nil
	}
	if table.Endpoint == jq.DailyQuotes {
		p.checkAdjustmentFactor(ctx, table.Name, ds)
	}

	// MERGE + PERSIST
	merged, err := mergeRows(e, prior, ds, p.symbol())
	if err != nil {
		return w, errors.Annotate(err, "failed to merge new rows")
	}
	if err := p.Store.Upload(ctx, table.Name, merged); err != nil {
		return w, errors.Annotate(err, "failed to upload %d rows", len(merged))
	}
	logging.Infof(ctx, "%s: uploaded %d rows (%d new)", table.Name, len(merged), len(ds.Rows))
	p.notify(ctx, "Renewed and uploaded: %s (%s)", table.Name, w)
	return w, nil
}

// checkAdjustmentFactor reports the codes whose price rows carry an
// adjustment factor other than 1 - a split or a similar corporate action
// that downstream consumers of unadjusted prices need to know about.
func (p *Pipeline) checkAdjustmentFactor(ctx context.Context, table string, ds *jq.Dataset) {
	fi := ds.ColumnIndex("AdjustmentFactor")
	ci := ds.ColumnIndex("Code")
	if fi < 0 || ci < 0 {
		return
	}
	seen := map[string]bool{}
	codes := []string{}
	for _, row := range ds.Rows {
		f, ok := row[fi].(float64)
		if !ok || f == 1 {
			continue
		}
		code, _ := row[ci].(string)
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		return
	}
	sort.Strings(codes)
	logging.Warningf(ctx, "%s: AdjustmentFactor is not 1 for %v", table, codes)
	p.notify(ctx, "AdjustmentFactor is not 1 in %s: %v", table, codes)
}

// mergeRows concatenates the prior store rows with the newly fetched dataset,
// deduplicates on the endpoint's business key keeping the last occurrence
// (new rows come after prior rows, so the newest fetch wins), and re-sorts by
// the endpoint's sort key. The resulting column count must match the prior
// rows' column count; a mismatch means the schema drifted and is a
// SchemaError before anything is persisted.
func mergeRows(e *jq.Endpoint, prior []tsdb.Row, ds *jq.Dataset, symbol string) ([]tsdb.Row, error) {
	if len(prior) > 0 && len(prior[0].Values) != len(ds.Schema) {
		return nil, &jq.SchemaError{Message: fmt.Sprintf(
			"merged schema has %d columns, prior rows have %d",
			len(ds.Schema), len(prior[0].Values))}
	}

	records := make([]map[string]jq.Value, 0, len(prior)+len(ds.Rows))
	for _, r := range prior {
		records = append(records, r.Values)
	}
	for i := range ds.Rows {
		records = append(records, ds.Record(i))
	}

	kept := map[string]int{} // business key -> index in deduped
	deduped := []map[string]jq.Value{}
	for _, rec := range records {
		k := businessKey(e, rec)
		if i, ok := kept[k]; ok {
			deduped[i] = rec // last occurrence wins
			continue
		}
		kept[k] = len(deduped)
		deduped = append(deduped, rec)
	}

	// Rebuild a dataset to reuse its sort key ordering.
	merged := &jq.Dataset{Endpoint: e.ID, Schema: ds.Schema, Rows: [][]jq.Value{}}
	for _, rec := range deduped {
		row := make([]jq.Value, len(ds.Schema))
		for j, col := range ds.Schema {
			row[j] = rec[col.Name]
		}
		merged.Rows = append(merged.Rows, row)
	}
	merged.Sort()

	rows := make([]tsdb.Row, len(merged.Rows))
	for i := range merged.Rows {
		date, err := merged.Date(i)
		if err != nil {
			return nil, errors.Annotate(err, "merged row %d has no date", i)
		}
		rows[i] = tsdb.Row{
			Symbol:      symbol,
			DT:          date.ToTime(),
			PartitionDT: date.MonthStart(),
			Values:      merged.Record(i),
		}
	}
	return rows, nil
}

// businessKey builds the deduplication key of a record from the endpoint's
// key columns.
func businessKey(e *jq.Endpoint, rec map[string]jq.Value) string {
	k := ""
	for _, name := range e.Key {
		k += "|" + valueKey(rec[name])
	}
	return k
}

func valueKey(v jq.Value) string {
	switch t := v.(type) {
	case nil:
		return ""
	case db.Date:
		return t.String()
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return fmt.Sprintf("%v", v)
}
