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
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSchema(t *testing.T) {
	t.Parallel()

	Convey("Endpoint registry", t, func() {
		Convey("every endpoint declares a consistent configuration", func() {
			for id, e := range endpoints {
				So(e.ID, ShouldEqual, id)
				So(e.ResultKey, ShouldNotEqual, "")
				So(len(e.Columns), ShouldBeGreaterThan, 0)
				So(len(e.SortKey), ShouldBeGreaterThan, 0)
				So(len(e.Key), ShouldBeGreaterThan, 0)
				idx := Schema(e.Columns).MapColumns()
				_, ok := idx[e.DateColumn]
				So(ok, ShouldBeTrue)
				So(e.Columns[idx[e.DateColumn]].Type, ShouldEqual, ColDate)
				for _, name := range append(append([]string{}, e.SortKey...), e.Key...) {
					_, ok := idx[name]
					So(ok, ShouldBeTrue)
				}
			}
		})

		Convey("Lookup", func() {
			e, err := Lookup(Topix)
			So(err, ShouldBeNil)
			So(e.Path(), ShouldEqual, "/indices/topix")
			_, err = Lookup(EndpointID("no/such/endpoint"))
			So(err, ShouldNotBeNil)
		})
	})

	Convey("Plan gating", t, func() {
		e, err := Lookup(ListedInfo)
		So(err, ShouldBeNil)

		Convey("light plan drops the margin columns", func() {
			s := e.Schema(PlanLight)
			So(len(s), ShouldEqual, 8)
			_, ok := s.MapColumns()["MarginCode"]
			So(ok, ShouldBeFalse)
		})

		Convey("standard plan includes the margin columns", func() {
			s := e.Schema(PlanStandard)
			So(len(s), ShouldEqual, 10)
			_, ok := s.MapColumns()["MarginCode"]
			So(ok, ShouldBeTrue)
		})

		Convey("premium quotes include the session columns", func() {
			q, err := Lookup(DailyQuotes)
			So(err, ShouldBeNil)
			light := q.Schema(PlanLight)
			prem := q.Schema(PlanPremium)
			So(len(prem)-len(light), ShouldEqual, 25)
			_, ok := light.MapColumns()["MorningOpen"]
			So(ok, ShouldBeFalse)
			_, ok = prem.MapColumns()["MorningOpen"]
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Schema methods", t, func() {
		s := Schema{{Name: "a", Type: ColString}, {Name: "b", Type: ColFloat}}

		Convey("Equal", func() {
			So(s.Equal(Schema{{Name: "a", Type: ColString}, {Name: "b", Type: ColFloat}}),
				ShouldBeTrue)
			So(s.Equal(Schema{{Name: "b", Type: ColFloat}, {Name: "a", Type: ColString}}),
				ShouldBeFalse)
			So(s.Equal(s[:1]), ShouldBeFalse)
		})

		Convey("MapColumns", func() {
			So(s.MapColumns(), ShouldResemble, map[string]int{"a": 0, "b": 1})
		})
	})

	Convey("PlanFromString", t, func() {
		p, err := PlanFromString("premium")
		So(err, ShouldBeNil)
		So(p, ShouldEqual, PlanPremium)
		_, err = PlanFromString("platinum")
		So(err, ShouldNotBeNil)
	})
}
