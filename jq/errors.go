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

import "fmt"

// AuthError indicates bad credentials or an expired refresh token. It is
// fatal: the caller must re-authenticate with a fresh client.
type AuthError struct {
	Message string
	Err     error // the underlying exchange failure, if any
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("auth error: %s: %s", e.Message, e.Err.Error())
	}
	return "auth error: " + e.Message
}

func (e *AuthError) Unwrap() error { return e.Err }

// HttpError is a non-2xx HTTP response that is not retryable, or a retryable
// one that survived the entire retry budget.
type HttpError struct {
	Status int
	Body   string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Body)
}

// ProtocolError indicates a malformed response or unbounded pagination - the
// upstream server broke its contract.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string { return "protocol error: " + e.Message }

// SchemaError indicates a field value that cannot be parsed into its declared
// column type, or a column-set mismatch between datasets.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return "schema error: " + e.Message }
