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

// Package notify implements best-effort run notifications. Delivery failures
// never abort the pipeline; the caller logs them and moves on.
package notify

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stockparfait/errors"
	"github.com/stockparfait/logging"
)

// LineURL is the LINE Notify endpoint. It may be overwritten in tests.
var LineURL = "https://notify-api.line.me/api/notify"

const sendTimeout = 10 * time.Second

// Notifier is a best-effort message sink.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// Log is a Notifier that only writes to the log. Used for dry runs and as
// the default when no webhook is configured.
type Log struct{}

var _ Notifier = Log{}

// Send implements Notifier.
func (Log) Send(ctx context.Context, text string) error {
	logging.Infof(ctx, "notification: %s", text)
	return nil
}

// Discord posts messages to a Discord webhook, falling back to LINE Notify
// when the webhook delivery fails and a LINE token is configured.
type Discord struct {
	WebhookURL string
	LineToken  string
	HTTPClient *http.Client // optional; defaults to a 10s-timeout client
}

var _ Notifier = &Discord{}

func (d *Discord) client() *http.Client {
	if d.HTTPClient != nil {
		return d.HTTPClient
	}
	return &http.Client{Timeout: sendTimeout}
}

// Send implements Notifier.
func (d *Discord) Send(ctx context.Context, text string) error {
	err := d.postForm(ctx, d.WebhookURL, url.Values{"content": {text}}, "")
	if err == nil {
		return nil
	}
	if d.LineToken == "" {
		return errors.Annotate(err, "failed to notify Discord")
	}
	lineErr := d.postForm(ctx, LineURL, url.Values{"message": {text}},
		"Bearer "+d.LineToken)
	if lineErr != nil {
		return errors.Annotate(lineErr,
			"failed to notify both Discord (%s) and LINE", err.Error())
	}
	return nil
}

func (d *Discord) postForm(ctx context.Context, u string, form url.Values, auth string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Annotate(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := d.client().Do(req)
	if err != nil {
		return errors.Annotate(err, "request failed")
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode/100 != 2 {
		return errors.Reason("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
