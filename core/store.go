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

import (
	"reflect"
)

// Fact is an untyped, JSON-ish record.
type Fact = map[string]interface{}

// Store is working memory: an ordered collection of facts.
//
// Facts are kept in insertion order, and that's the order Facts
// reports.  Retracting a fact doesn't disturb the order of the
// others.
type Store struct {
	facts []Fact
}

// NewStore makes a Store holding copies of the given facts.
func NewStore(initial []Fact) *Store {
	s := &Store{}
	s.Reset(initial)
	return s
}

// copyFact makes a shallow copy.  Nested values are shared.
func copyFact(f Fact) Fact {
	acc := make(Fact, len(f))
	for k, v := range f {
		acc[k] = v
	}
	return acc
}

// Facts returns a snapshot of the store's facts in insertion order.
//
// Each fact is a shallow copy, so adding or removing properties
// doesn't affect the store.
func (s *Store) Facts() []Fact {
	acc := make([]Fact, len(s.facts))
	for i, f := range s.facts {
		acc[i] = copyFact(f)
	}
	return acc
}

// Insert appends a copy of the fact.
func (s *Store) Insert(f Fact) {
	s.facts = append(s.facts, copyFact(f))
}

// Reset discards every fact and then loads copies of the given
// facts.
func (s *Store) Reset(initial []Fact) {
	s.facts = make([]Fact, 0, len(initial))
	for _, f := range initial {
		s.facts = append(s.facts, copyFact(f))
	}
}

// Retract removes every fact for which pred returns true.  pred sees
// each fact once, in store order.  Returns the number of facts
// removed.
func (s *Store) Retract(pred func(Fact) bool) int {
	kept := s.facts[:0]
	n := 0
	for _, f := range s.facts {
		if pred(f) {
			n++
			continue
		}
		kept = append(kept, f)
	}
	for i := len(kept); i < len(s.facts); i++ {
		s.facts[i] = nil
	}
	s.facts = kept
	return n
}

// Contains reports whether some fact in the store is equal to the
// given fact.  Equality is JSON equality, so 1 and 1.0 are the same.
func (s *Store) Contains(f Fact) bool {
	want, err := Canonicalize(f)
	if err != nil {
		return false
	}
	for _, g := range s.facts {
		if SameFact(want, g) {
			return true
		}
	}
	return false
}

// SameFact reports whether the two values are equal as JSON.
func SameFact(x, y interface{}) bool {
	if reflect.DeepEqual(x, y) {
		return true
	}
	cx, err := Canonicalize(x)
	if err != nil {
		return false
	}
	cy, err := Canonicalize(y)
	if err != nil {
		return false
	}
	return reflect.DeepEqual(cx, cy)
}

// Len returns the number of facts in the store.
func (s *Store) Len() int {
	return len(s.facts)
}
