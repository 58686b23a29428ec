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

// Package jq implements a client for the J-Quants API.
//
// Official documentation is at https://jpx.gitbook.io/j-quants-api/ .
//
// Every data endpoint requires a bearer id token, which the client derives
// from a long-lived refresh token obtained with the account credentials. Both
// exchanges happen lazily on the first authenticated call; the id token is
// re-derived when its 23-hour validity window runs out. Transient failures
// (HTTP 429 and most 5xx, as well as request timeouts) are retried with
// exponential backoff inside the transport.
//
// Large responses arrive in pages linked by an opaque pagination_key; paging
// is drained transparently, bounded by a maximum page count. Each endpoint
// has a declared schema - an ordered list of named, typed columns - in the
// registry in schema.go; raw records are normalized into a Dataset with that
// schema, and date ranges are fetched one date unit at a time through
// FetchRange.
package jq
