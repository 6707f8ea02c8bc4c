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

// Package service runs many consultations at once.
//
// Sessions are kept in memory and identified by ULIDs.  Every
// operation on a session holds that session's lock, so a session
// never sees two cycles at once.  When a session reaches a final
// outcome, the Service writes a storage.Record.
//
// The same operations are available over HTTP (JSON and HTML),
// WebSockets, and MQTT.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/present"
	"github.com/Comcast/sage/storage"
	"github.com/Comcast/sage/text"

	"go.uber.org/zap"
)

// DefaultIdle is how long a session can sit untouched before Sweep
// drops it.
var DefaultIdle = 30 * time.Minute

// Service is a multi-session service.
type Service struct {
	sync.Mutex

	Library *kb.Library
	Storage storage.Storage

	// Text overrides every KB's own text.
	Text *text.Resources

	// Idle is the age (since last use) at which Sweep drops a
	// session.
	Idle time.Duration

	Logger *zap.Logger

	// OutSubs get a Snapshot (keyed by session id) whenever a
	// session changes.
	OutSubs *Subs

	// Now defaults to time.Now.
	Now func() time.Time

	sessions map[string]*entry
}

// entry is a live session.
type entry struct {
	sync.Mutex

	id        string
	kb        *kb.Compiled
	resources *text.Resources
	session   *core.Session
	started   time.Time

	// touched is guarded by the Service's lock.
	touched time.Time

	// recorded is whether the current final outcome has been
	// written to storage.
	recorded bool
}

// Snapshot is what clients see after an operation.
type Snapshot struct {
	Session string        `json:"session"`
	KB      string        `json:"kb"`
	State   core.State    `json:"state"`
	View    *present.View `json:"view"`
	Outcome *core.Outcome `json:"outcome,omitempty"`
}

// NewService makes a Service for the KBs in the given Library.  A nil
// Storage means storage.Noop.
func NewService(lib *kb.Library, st storage.Storage) (*Service, error) {
	if lib == nil {
		return nil, errors.New("no library")
	}
	if st == nil {
		st = storage.NewNoop()
	}
	return &Service{
		Library:  lib,
		Storage:  st,
		Idle:     DefaultIdle,
		Logger:   zap.NewNop(),
		OutSubs:  NewSubs(),
		Now:      time.Now,
		sessions: make(map[string]*entry, 32),
	}, nil
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// get finds the session and marks it as used.
func (s *Service) get(id string) (*entry, error) {
	s.Lock()
	defer s.Unlock()
	e, have := s.sessions[id]
	if !have {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownSession, id)
	}
	e.touched = s.now()
	return e, nil
}

// Open starts a session with the named KB and runs the first cycle.
//
// If the first cycle fails, the session still exists (in state
// Failed), and the error is returned along with the Snapshot.
func (s *Service) Open(ctx context.Context, kbName string) (*Snapshot, error) {
	c, err := s.Library.Get(kbName)
	if err != nil {
		return nil, err
	}

	t := NewTimer("open")

	sess, err := c.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	sess.Logger = s.log().With(zap.String("kb", c.Name))

	now := s.now()
	e := &entry{
		id:        storage.NewID(now),
		kb:        c,
		resources: c.Resources(s.Text),
		session:   sess,
		started:   now,
		touched:   now,
	}
	sess.Logger = sess.Logger.With(zap.String("session", e.id))

	// Published locked, so nobody sees it before its first cycle.
	e.Lock()
	defer e.Unlock()

	s.Lock()
	s.sessions[e.id] = e
	s.Unlock()

	o, err := sess.Advance(ctx)
	snap := s.settle(ctx, e, o, err)

	s.log().Info("opened",
		zap.String("session", e.id),
		zap.String("kb", c.Name),
		zap.Stringer("state", snap.State),
		zap.Duration("elapsed", t.Stop()))

	return snap, err
}

// View returns the session's current Snapshot without running a
// cycle.
func (s *Service) View(ctx context.Context, id string) (*Snapshot, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	e.Lock()
	defer e.Unlock()
	return e.snapshot(e.session.Last(), e.session.Err()), nil
}

// Submit answers a question.  An InvalidAnswer or SessionClosed error
// comes with a Snapshot of the unchanged session.
func (s *Service) Submit(ctx context.Context, id, questionID string, selected []string) (*Snapshot, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	e.Lock()
	defer e.Unlock()

	t := NewTimer("submit")
	o, err := e.session.Submit(ctx, questionID, selected)
	if o == nil && !core.IsFatal(err) {
		// Nothing changed, so report the current outcome.
		o = e.session.Last()
	}
	snap := s.settle(ctx, e, o, err)

	s.log().Debug("submitted",
		zap.String("session", id),
		zap.String("question", questionID),
		zap.Stringer("state", snap.State),
		zap.Duration("elapsed", t.Stop()))

	return snap, err
}

// Restart starts the session over.
func (s *Service) Restart(ctx context.Context, id string) (*Snapshot, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	e.Lock()
	defer e.Unlock()

	e.recorded = false
	e.started = s.now()
	o, err := e.session.Restart(ctx)
	return s.settle(ctx, e, o, err), err
}

// Close forgets the session.
func (s *Service) Close(ctx context.Context, id string) error {
	s.Lock()
	_, have := s.sessions[id]
	delete(s.sessions, id)
	s.Unlock()
	if !have {
		return fmt.Errorf("%w: %q", core.ErrUnknownSession, id)
	}
	s.OutSubs.RemAll(id)
	s.log().Info("closed", zap.String("session", id))
	return nil
}

// Sweep drops sessions that haven't been used since now minus Idle.
// Returns the ids of the dropped sessions.
func (s *Service) Sweep(now time.Time) []string {
	idle := s.Idle
	if idle <= 0 {
		idle = DefaultIdle
	}
	cutoff := now.Add(-idle)

	var dropped []string
	s.Lock()
	for id, e := range s.sessions {
		if e.touched.Before(cutoff) {
			delete(s.sessions, id)
			dropped = append(dropped, id)
		}
	}
	s.Unlock()

	sort.Strings(dropped)
	for _, id := range dropped {
		s.OutSubs.RemAll(id)
	}
	if 0 < len(dropped) {
		s.log().Info("swept", zap.Int("sessions", len(dropped)))
	}
	return dropped
}

// Sessions returns the ids of the live sessions in order.
func (s *Service) Sessions() []string {
	s.Lock()
	acc := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		acc = append(acc, id)
	}
	s.Unlock()
	sort.Strings(acc)
	return acc
}

// History lists the stored records for a KB.
func (s *Service) History(ctx context.Context, kbName string, limit int) ([]*storage.Record, error) {
	return s.Storage.List(ctx, kbName, limit)
}

// settle makes the Snapshot, records a new final outcome, and tells
// subscribers.  The caller holds e's lock.
func (s *Service) settle(ctx context.Context, e *entry, o *core.Outcome, err error) *Snapshot {
	snap := e.snapshot(o, err)

	if snap.State == core.Finalized && !e.recorded && o != nil {
		r := &storage.Record{
			KB:              e.kb.Name,
			Session:         e.id,
			Answers:         o.Answers,
			Recommendations: o.Recommendations,
			Started:         e.started,
			Finished:        s.now(),
		}
		if perr := s.Storage.Put(ctx, r); perr != nil {
			s.log().Warn("history not recorded",
				zap.String("session", e.id),
				zap.Error(perr))
		} else {
			e.recorded = true
			s.log().Debug("recorded", zap.String("session", e.id), zap.String("record", r.ID))
		}
	}

	s.OutSubs.Do(e.id, snap)

	return snap
}

func (e *entry) snapshot(o *core.Outcome, err error) *Snapshot {
	return &Snapshot{
		Session: e.id,
		KB:      e.kb.Name,
		State:   e.session.State(),
		View:    present.Render(o, err, e.resources),
		Outcome: o,
	}
}

// Resources returns the text used for the session.
func (s *Service) Resources(id string) (*text.Resources, error) {
	e, err := s.get(id)
	if err != nil {
		return nil, err
	}
	return e.resources, nil
}
