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
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stockparfait/logging"

	. "github.com/smartystreets/goconvey/convey"
)

// testServer simulates the upstream API: it serves the token exchanges,
// counts requests per path, and replays canned responses for data paths.
type testServer struct {
	*httptest.Server

	mu        sync.Mutex
	counts    map[string]int
	responses []response // consumed in order by data requests
}

type response struct {
	status int
	body   string
}

func newTestServer() *testServer {
	s := &testServer{counts: make(map[string]int)}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.counts[r.URL.Path]++
		switch r.URL.Path {
		case "/token/auth_user":
			fmt.Fprintf(w, `{"refreshToken": "refresh-%d"}`, s.counts[r.URL.Path])
		case "/token/auth_refresh":
			fmt.Fprintf(w, `{"idToken": "id-%d"}`, s.counts[r.URL.Path])
		default:
			if len(s.responses) == 0 {
				fmt.Fprint(w, "{}")
				return
			}
			resp := s.responses[0]
			s.responses = s.responses[1:]
			if resp.status != 0 {
				w.WriteHeader(resp.status)
			}
			fmt.Fprint(w, resp.body)
		}
	}))
	return s
}

func (s *testServer) count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

func (s *testServer) respond(responses ...response) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses = responses
}

func testContext(server *testServer) context.Context {
	URL = server.URL
	ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Info))
	creds := Credentials{MailAddress: "test@example.com", Password: "secret"}
	return UseClient(ctx, creds, PlanLight)
}

func TestClient(t *testing.T) {
	Convey("Token lifecycle", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := testContext(server)
		c := GetClient(ctx)
		So(c, ShouldNotBeNil)

		now := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
		c.tokens.now = func() time.Time { return now }

		Convey("first call exchanges both tokens exactly once", func() {
			server.respond(response{body: "{}"}, response{body: "{}"})
			_, err := c.getJSON(ctx, "/prices/daily_quotes", nil)
			So(err, ShouldBeNil)
			So(server.count("/token/auth_user"), ShouldEqual, 1)
			So(server.count("/token/auth_refresh"), ShouldEqual, 1)

			Convey("a subsequent call reuses both tokens", func() {
				_, err := c.getJSON(ctx, "/prices/daily_quotes", nil)
				So(err, ShouldBeNil)
				So(server.count("/token/auth_user"), ShouldEqual, 1)
				So(server.count("/token/auth_refresh"), ShouldEqual, 1)
			})

			Convey("an expired id token is re-derived without re-auth", func() {
				now = now.Add(24 * time.Hour)
				_, err := c.getJSON(ctx, "/prices/daily_quotes", nil)
				So(err, ShouldBeNil)
				So(server.count("/token/auth_user"), ShouldEqual, 1)
				So(server.count("/token/auth_refresh"), ShouldEqual, 2)
			})
		})

		Convey("a failed credential exchange is an AuthError", func() {
			badServer := httptest.NewServer(http.HandlerFunc(
				func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(http.StatusForbidden)
					fmt.Fprint(w, `{"message": "bad credentials"}`)
				}))
			defer badServer.Close()
			URL = badServer.URL
			ctx := UseClient(context.Background(), Credentials{}, PlanLight)
			_, err := GetClient(ctx).getJSON(ctx, "/prices/daily_quotes", nil)
			So(err, ShouldNotBeNil)
			_, ok := err.(*AuthError)
			So(ok, ShouldBeTrue)
		})
	})

	Convey("Retry policy", t, func() {
		server := newTestServer()
		defer server.Close()
		ctx := testContext(server)
		c := GetClient(ctx)

		Convey("transient statuses are retried until success", func() {
			server.respond(
				response{status: http.StatusServiceUnavailable},
				response{status: http.StatusTooManyRequests},
				response{body: `{"ok": true}`},
			)
			body, err := c.getJSON(ctx, "/indices/topix", nil)
			So(err, ShouldBeNil)
			So(body["ok"], ShouldEqual, true)
			So(server.count("/indices/topix"), ShouldEqual, 3)
		})

		Convey("a persistent transient status fails after max attempts", func() {
			server.respond(
				response{status: http.StatusBadGateway},
				response{status: http.StatusBadGateway},
				response{status: http.StatusBadGateway},
				response{status: http.StatusBadGateway},
			)
			_, err := c.getJSON(ctx, "/indices/topix", nil)
			So(err, ShouldNotBeNil)
			So(server.count("/indices/topix"), ShouldEqual, 3)
		})

		Convey("a client error is not retried", func() {
			server.respond(response{status: http.StatusBadRequest, body: "bad request"})
			_, err := c.getJSON(ctx, "/indices/topix", nil)
			So(err, ShouldNotBeNil)
			herr, ok := err.(*HttpError)
			So(ok, ShouldBeTrue)
			So(herr.Status, ShouldEqual, http.StatusBadRequest)
			So(server.count("/indices/topix"), ShouldEqual, 1)
		})

		Convey("malformed JSON is a ProtocolError", func() {
			server.respond(response{body: "not json"})
			_, err := c.getJSON(ctx, "/indices/topix", nil)
			So(err, ShouldNotBeNil)
			_, ok := err.(*ProtocolError)
			So(ok, ShouldBeTrue)
		})
	})
}
