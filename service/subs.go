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
	"sync"
)

// Hook receives a Snapshot.  Hooks are called synchronously, so they
// shouldn't block.
type Hook func(*Snapshot)

// Subs are hooks by session id.
type Subs struct {
	sync.Mutex
	hooks map[string]map[int]Hook
	n     int
}

func NewSubs() *Subs {
	return &Subs{
		hooks: make(map[string]map[int]Hook, 32),
	}
}

// Add registers the hook for the session and returns a function that
// removes it.
func (s *Subs) Add(sid string, h Hook) func() {
	s.Lock()
	s.n++
	n := s.n
	hooks, have := s.hooks[sid]
	if !have {
		hooks = make(map[int]Hook)
		s.hooks[sid] = hooks
	}
	hooks[n] = h
	s.Unlock()

	return func() {
		s.Lock()
		if hooks, have := s.hooks[sid]; have {
			delete(hooks, n)
			if len(hooks) == 0 {
				delete(s.hooks, sid)
			}
		}
		s.Unlock()
	}
}

// RemAll removes every hook for the session.
func (s *Subs) RemAll(sid string) {
	if s == nil {
		return
	}
	s.Lock()
	delete(s.hooks, sid)
	s.Unlock()
}

// Count returns the number of hooks for the session.
func (s *Subs) Count(sid string) int {
	s.Lock()
	defer s.Unlock()
	return len(s.hooks[sid])
}

// Do calls the session's hooks.
func (s *Subs) Do(sid string, snap *Snapshot) {
	if s == nil {
		return
	}
	var acc []Hook
	s.Lock()
	if hooks, have := s.hooks[sid]; have {
		acc = make([]Hook, 0, len(hooks))
		for _, h := range hooks {
			acc = append(acc, h)
		}
	}
	s.Unlock()
	for _, h := range acc {
		h(snap)
	}
}
