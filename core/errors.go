/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package core

// EngineFailure and MalformedFact are fatal for the current cycle:
// the session goes to Failed and only Restart gets it going again.
// InvalidAnswer and SessionClosed leave the session alone.

import (
	"errors"
	"fmt"
)

// EngineFailure occurs when an Engine's Init or Fire returns an
// error.
type EngineFailure struct {
	// Op is "init" or "fire".
	Op  string
	Err error
}

func (e *EngineFailure) Error() string {
	return "engine " + e.Op + " failed: " + e.Err.Error()
}

func (e *EngineFailure) Unwrap() error {
	return e.Err
}

// MalformedFact occurs when a fact looks like it plays some role but
// doesn't have the right fields.
type MalformedFact struct {
	Role Role

	// Field names the offending property.
	Field string

	Fact   Fact
	Reason string
}

func (e *MalformedFact) Error() string {
	return fmt.Sprintf("malformed %s fact: field %q %s", e.Role, e.Field, e.Reason)
}

// InvalidAnswer occurs when Submit is called without any selected
// options.
type InvalidAnswer struct {
	QuestionID string
}

func (e *InvalidAnswer) Error() string {
	return `no options selected for question "` + e.QuestionID + `"`
}

// SessionClosed occurs when an answer is submitted to a session that
// has finished (or failed).
type SessionClosed struct {
	State State
}

func (e *SessionClosed) Error() string {
	return "session is " + e.State.String()
}

var (
	ErrNoEngine       = errors.New("no engine")
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownKB      = errors.New("unknown knowledge base")
)

// IsFatal reports whether the error leaves a session Failed.
func IsFatal(err error) bool {
	var ef *EngineFailure
	var mf *MalformedFact
	return errors.As(err, &ef) || errors.As(err, &mf)
}
