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

// Package storage keeps a history of finished consultations.
//
// Sessions themselves live in memory.  A Record is written when a
// session reaches a final outcome.
package storage

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Comcast/sage/core"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned by Get when there's no such record.
var ErrNotFound = errors.New("record not found")

// Record is one finished consultation.
type Record struct {
	// ID is a ULID, so IDs sort by creation time.
	ID string `json:"id"`

	// KB is the name of the knowledge base.
	KB string `json:"kb"`

	// Session is the id of the session that produced this record.
	Session string `json:"session,omitempty"`

	Answers         []core.Answer         `json:"answers"`
	Recommendations []core.Recommendation `json:"recommendations"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Storage is a history of Records.
type Storage interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error

	// Put writes the record.  If the record has no ID, Put assigns
	// one.
	Put(ctx context.Context, r *Record) error

	Get(ctx context.Context, kb, id string) (*Record, error)

	// List returns at most limit records for the KB, oldest first.
	// A limit of zero means no limit.
	List(ctx context.Context, kb string, limit int) ([]*Record, error)
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a new ULID string for the given time.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Prepare checks the record and gives it an ID if needed.
func Prepare(r *Record) error {
	if r == nil {
		return errors.New("nil record")
	}
	if r.KB == "" {
		return fmt.Errorf("record %s has no KB", r.ID)
	}
	if r.ID == "" {
		t := r.Finished
		if t.IsZero() {
			t = time.Now()
		}
		r.ID = NewID(t)
	}
	return nil
}
