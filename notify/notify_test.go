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

package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stockparfait/logging"

	. "github.com/smartystreets/goconvey/convey"
)

// formSink records the form posts it receives and answers with a canned
// status.
type formSink struct {
	*httptest.Server

	mu       sync.Mutex
	status   int
	messages []string
	auths    []string
	field    string // form field holding the message text
}

func newFormSink(field string, status int) *formSink {
	s := &formSink{status: status, field: field}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.messages = append(s.messages, r.PostForm.Get(s.field))
		s.auths = append(s.auths, r.Header.Get("Authorization"))
		status := s.status
		s.mu.Unlock()
		w.WriteHeader(status)
	}))
	return s
}

func (s *formSink) received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.messages...)
}

func (s *formSink) auth(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.auths[i]
}

func TestNotify(t *testing.T) {
	ctx := logging.Use(context.Background(), logging.DefaultGoLogger(logging.Info))

	Convey("Log notifier always succeeds", t, func() {
		So(Log{}.Send(ctx, "hello"), ShouldBeNil)
	})

	Convey("Discord notifier", t, func() {

		Convey("delivers to the webhook", func() {
			discord := newFormSink("content", http.StatusNoContent)
			defer discord.Close()
			n := &Discord{WebhookURL: discord.URL}
			So(n.Send(ctx, "all good"), ShouldBeNil)
			So(discord.received(), ShouldResemble, []string{"all good"})
		})

		Convey("falls back to LINE when the webhook fails", func() {
			discord := newFormSink("content", http.StatusInternalServerError)
			defer discord.Close()
			line := newFormSink("message", http.StatusOK)
			defer line.Close()
			LineURL = line.URL

			n := &Discord{WebhookURL: discord.URL, LineToken: "line-token"}
			So(n.Send(ctx, "heads up"), ShouldBeNil)
			So(line.received(), ShouldResemble, []string{"heads up"})
			So(line.auth(0), ShouldEqual, "Bearer line-token")
		})

		Convey("fails without a LINE token when the webhook fails", func() {
			discord := newFormSink("content", http.StatusInternalServerError)
			defer discord.Close()
			n := &Discord{WebhookURL: discord.URL}
			So(n.Send(ctx, "lost"), ShouldNotBeNil)
		})

		Convey("fails when both deliveries fail", func() {
			discord := newFormSink("content", http.StatusInternalServerError)
			defer discord.Close()
			line := newFormSink("message", http.StatusUnauthorized)
			defer line.Close()
			LineURL = line.URL

			n := &Discord{WebhookURL: discord.URL, LineToken: "bad-token"}
			err := n.Send(ctx, "lost")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "both Discord")
		})
	})
}
