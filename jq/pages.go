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
	"fmt"
	"net/url"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// maxPages bounds the pagination loop. The upstream service is expected to
// terminate pagination on its own; the bound turns a buggy server into a
// ProtocolError instead of an infinite loop.
const maxPages = 10000

// paginationKey is the response field carrying the cursor for the next page.
// Its presence means more pages exist for the same logical query.
const paginationKey = "pagination_key"

// FetchAll drains all pages of a single logical query to path, collecting the
// records under resultKey from every page. The same resultKey is read on
// every page, including continuation pages. The result is an empty (never
// nil) slice when the endpoint has no data for the query.
func FetchAll(ctx context.Context, path string, query url.Values, resultKey string) ([]map[string]interface{}, error) {
	c := GetClient(ctx)
	if c == nil {
		return nil, errors.Reason("FetchAll: no client in context")
	}
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	records := []map[string]interface{}{}
	for page := 1; ; page++ {
		if page > maxPages {
			return nil, &ProtocolError{Message: fmt.Sprintf(
				"pagination of %s exceeded %d pages", path, maxPages)}
		}
		body, err := c.getJSON(ctx, path, q)
		if err != nil {
			return nil, errors.Annotate(err, "failed to fetch %s page %d", path, page)
		}
		raw, ok := body[resultKey]
		if !ok {
			return nil, &ProtocolError{Message: fmt.Sprintf(
				"%s page %d has no '%s' field", path, page, resultKey)}
		}
		list, ok := raw.([]interface{})
		if !ok {
			return nil, &ProtocolError{Message: fmt.Sprintf(
				"'%s' field of %s page %d is not a list", resultKey, path, page)}
		}
		for i, r := range list {
			rec, ok := r.(map[string]interface{})
			if !ok {
				return nil, &ProtocolError{Message: fmt.Sprintf(
					"record %d of %s page %d is not an object", i, path, page)}
			}
			records = append(records, rec)
		}
		cursor, _ := body[paginationKey].(string)
		logging.Infof(ctx, "J-Quants: %s: fetched page %d with %d records; cursor: %s",
			path, page, len(list), cursor)
		if cursor == "" {
			break
		}
		q.Set(paginationKey, cursor)
	}
	return records, nil
}
