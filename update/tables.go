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

package update

import (
	"sort"
	"strings"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/jquants/jq"
)

// tableEndpoints maps the updatable table names to endpoints. The earnings
// announcement endpoint is deliberately absent: it returns only the upcoming
// schedule and cannot be updated incrementally by date.
var tableEndpoints = map[string]jq.EndpointID{
	"list":            jq.ListedInfo,
	"price":           jq.DailyQuotes,
	"topix":           jq.Topix,
	"statements":      jq.Statements,
	"dividend":        jq.Dividend,
	"option":          jq.IndexOption,
	"trades_spec":     jq.TradesSpec,
	"margin_interest": jq.WeeklyMarginInterest,
	"short_selling":   jq.ShortSelling,
	"breakdown":       jq.Breakdown,
}

// TableByName resolves an updatable table by its name.
func TableByName(name string) (Table, error) {
	e, ok := tableEndpoints[name]
	if !ok {
		return Table{}, errors.Reason("unknown table '%s'; supported tables: %s",
			name, strings.Join(TableNames(), ", "))
	}
	return Table{Name: name, Endpoint: e}, nil
}

// TableNames lists the supported table names in alphabetical order.
func TableNames() []string {
	names := make([]string, 0, len(tableEndpoints))
	for name := range tableEndpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultTables are the tables updated when the config does not list any.
func DefaultTables() []Table {
	return []Table{
		{Name: "list", Endpoint: jq.ListedInfo},
		{Name: "price", Endpoint: jq.DailyQuotes},
		{Name: "topix", Endpoint: jq.Topix},
	}
}
