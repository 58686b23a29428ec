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
	"testing"

	"github.com/stockparfait/jquants/jq"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTables(t *testing.T) {
	t.Parallel()

	Convey("TableByName", t, func() {
		table, err := TableByName("price")
		So(err, ShouldBeNil)
		So(table, ShouldResemble, Table{Name: "price", Endpoint: jq.DailyQuotes})

		_, err = TableByName("announcement")
		So(err, ShouldNotBeNil)
	})

	Convey("every table maps to a registered endpoint with a date window", t, func() {
		for name := range tableEndpoints {
			table, err := TableByName(name)
			So(err, ShouldBeNil)
			e, err := jq.Lookup(table.Endpoint)
			So(err, ShouldBeNil)
			// Incremental updates need a date-parameterized endpoint.
			So(e.DateParam, ShouldNotEqual, jq.DateParamNone)
		}
	})

	Convey("DefaultTables", t, func() {
		names := []string{}
		for _, table := range DefaultTables() {
			names = append(names, table.Name)
		}
		So(names, ShouldResemble, []string{"list", "price", "topix"})
	})
}
