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

package service

import (
	"context"
	"fmt"

	"github.com/Comcast/sage/storage"
)

// Op names.
const (
	OpOpen    = "open"
	OpView    = "view"
	OpSubmit  = "submit"
	OpRestart = "restart"
	OpClose   = "close"
	OpKBs     = "kbs"
	OpHistory = "history"
)

// Op is a service operation.  The same Op is used by every transport.
//
// The request fields are filled in by the client.  Do fills in the
// result fields.
type Op struct {
	// Id is an optional client-provided id that's echoed back.
	Id string `json:"id,omitempty"`

	Op       string   `json:"op"`
	Session  string   `json:"session,omitempty"`
	KB       string   `json:"kb,omitempty"`
	Question string   `json:"question,omitempty"`
	Selected []string `json:"selected,omitempty"`
	Limit    int      `json:"limit,omitempty"`

	Snapshot *Snapshot         `json:"snapshot,omitempty"`
	KBs      []string          `json:"kbs,omitempty"`
	History  []*storage.Record `json:"history,omitempty"`

	// Error will hold an error (if any) that results from
	// processing this operation.
	Error error `json:"-" yaml:"-"`

	// Err will hold a string representation of an error (if any)
	// that results from processing this operation.
	Err string `json:"err,omitempty" yaml:",omitempty"`
}

// erred is a utility function to return values to assign to operation
// Error and Err fields.
func erred(err error) (error, string) {
	if err == nil {
		return nil, ""
	}
	return err, err.Error()
}

// Do performs the operation.  The returned error is also in o.Error.
func (o *Op) Do(ctx context.Context, s *Service) error {
	var err error
	switch o.Op {
	case OpOpen:
		o.Snapshot, err = s.Open(ctx, o.KB)
	case OpView:
		o.Snapshot, err = s.View(ctx, o.Session)
	case OpSubmit:
		o.Snapshot, err = s.Submit(ctx, o.Session, o.Question, o.Selected)
	case OpRestart:
		o.Snapshot, err = s.Restart(ctx, o.Session)
	case OpClose:
		err = s.Close(ctx, o.Session)
	case OpKBs:
		o.KBs = s.Library.Names()
	case OpHistory:
		o.History, err = s.History(ctx, o.KB, o.Limit)
	default:
		err = fmt.Errorf("unknown op %q", o.Op)
	}
	if o.Snapshot != nil {
		o.Session = o.Snapshot.Session
		o.KB = o.Snapshot.KB
	}
	o.Error, o.Err = erred(err)
	return err
}
