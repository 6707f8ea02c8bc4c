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

// Package match implements the structural pattern matcher used to
// recognize facts.
//
// A pattern is a JSON-like value.  Strings that start with '?' are
// variables.  A map pattern matches any map that has (at least) the
// pattern's properties with matching values, so {"systemKey":"?k"}
// matches every record that carries a "systemKey".  A property whose
// pattern value is an optional variable ("??x") may be absent.
//
// An array pattern represents a set: each element of the pattern must
// match a distinct element of the fact, in any order.  That ambiguity
// is why Match returns a slice of Bindings.
package match

import (
	"errors"
	"strings"
)

// Bindings is a map from variables (strings starting with a '?') to
// their values.
type Bindings map[string]interface{}

func NewBindings() Bindings {
	return make(Bindings, 8)
}

// Extend adds the property; modifies and returns the Bindings.
func (bs Bindings) Extend(p string, v interface{}) Bindings {
	bs[p] = v
	return bs
}

// Copy makes a shallow copy of the Bindings.
func (bs Bindings) Copy() Bindings {
	acc := make(Bindings, len(bs))
	for k, v := range bs {
		acc[k] = v
	}
	return acc
}

// Get returns the binding for the variable, which may be given with
// or without its leading '?'.
func (bs Bindings) Get(v string) (interface{}, bool) {
	if !strings.HasPrefix(v, "?") {
		v = "?" + v
	}
	x, have := bs[v]
	return x, have
}

// Matcher holds matching switches.
type Matcher struct {
	// StrictArrays makes array patterns match only arrays of the
	// same length.  By default an array pattern matches any array
	// that contains matches for all of the pattern's elements.
	StrictArrays bool
}

var DefaultMatcher = &Matcher{}

// IsVariable reports if the string represents a pattern variable.
//
// All pattern variables start with a '?'.
func IsVariable(s string) bool {
	return strings.HasPrefix(s, "?")
}

// IsOptionalVariable reports if x is a string of the form "??x".
func IsOptionalVariable(x interface{}) bool {
	if s, is := x.(string); is {
		return strings.HasPrefix(s, "??")
	}
	return false
}

// IsAnonymousVariable detects the variable '?', which matches
// anything and never makes it into bindings.
func IsAnonymousVariable(s string) bool {
	return s == "?" || s == "??"
}

// UnknownPatternType is an error that includes the thing that's
// causing the trouble.
type UnknownPatternType struct {
	Pattern interface{}
}

func (e *UnknownPatternType) Error() string {
	return "unknown pattern type"
}

var ErrVariableKey = errors.New("variables are not supported as property names")

// fudge is a hack to cast numbers to float64s.
func fudge(x interface{}) interface{} {
	switch vv := x.(type) {
	case float32:
		return float64(vv)
	case int64:
		return float64(vv)
	case int32:
		return float64(vv)
	case int:
		return float64(vv)
	case []string:
		acc := make([]interface{}, len(vv))
		for i, s := range vv {
			acc[i] = s
		}
		return acc
	default:
		return x
	}
}

// Matches attempts to match the given fact with the given pattern.
func (m *Matcher) Matches(pattern interface{}, fact interface{}) ([]Bindings, error) {
	return m.Match(pattern, fact, NewBindings())
}

// Match is a version of Matches that takes initial bindings, which
// are not modified.
//
// A nil result means no match.
func (m *Matcher) Match(pattern interface{}, fact interface{}, bindings Bindings) ([]Bindings, error) {
	if bindings == nil {
		bindings = NewBindings()
	}
	return m.match(pattern, fact, bindings.Copy())
}

func (m *Matcher) match(pattern interface{}, fact interface{}, bs Bindings) ([]Bindings, error) {
	pattern = fudge(pattern)
	fact = fudge(fact)

	switch vv := pattern.(type) {
	case nil:
		if fact == nil {
			return []Bindings{bs}, nil
		}
		return nil, nil

	case bool, float64:
		if vv == fact {
			return []Bindings{bs}, nil
		}
		return nil, nil

	case string:
		if !IsVariable(vv) {
			if s, is := fact.(string); is && s == vv {
				return []Bindings{bs}, nil
			}
			return nil, nil
		}
		if IsAnonymousVariable(vv) {
			return []Bindings{bs}, nil
		}
		v := strings.TrimPrefix(vv, "?")
		v = "?" + strings.TrimPrefix(v, "?")
		if bound, have := bs[v]; have {
			return m.match(bound, fact, bs)
		}
		bs[v] = fact
		return []Bindings{bs}, nil

	case map[string]interface{}:
		fm, is := fact.(map[string]interface{})
		if !is {
			return nil, nil
		}
		return m.matchMap(vv, fm, bs)

	case []interface{}:
		fa, is := fact.([]interface{})
		if !is {
			return nil, nil
		}
		if m.StrictArrays && len(fa) != len(vv) {
			return nil, nil
		}
		return m.matchSet(vv, fa, make([]bool, len(fa)), bs)

	default:
		return nil, &UnknownPatternType{pattern}
	}
}

// matchMap extends the bindings with each of the pattern's properties
// in turn.
func (m *Matcher) matchMap(pattern, fact map[string]interface{}, bs Bindings) ([]Bindings, error) {
	bss := []Bindings{bs}
	for k, pv := range pattern {
		if IsVariable(k) {
			return nil, ErrVariableKey
		}
		fv, found := fact[k]
		if !found {
			if IsOptionalVariable(pv) {
				continue
			}
			return nil, nil
		}
		acc := make([]Bindings, 0, len(bss))
		for _, bs := range bss {
			more, err := m.match(pv, fv, bs.Copy())
			if err != nil {
				return nil, err
			}
			acc = append(acc, more...)
		}
		if len(acc) == 0 {
			return nil, nil
		}
		bss = acc
	}
	return bss, nil
}

// matchSet matches the first pattern element against every unused
// fact element and recurses on the rest.  Backtracks.
func (m *Matcher) matchSet(pattern, fact []interface{}, used []bool, bs Bindings) ([]Bindings, error) {
	if len(pattern) == 0 {
		return []Bindings{bs}, nil
	}
	var acc []Bindings
	for i, x := range fact {
		if used[i] {
			continue
		}
		bss, err := m.match(pattern[0], x, bs.Copy())
		if err != nil {
			return nil, err
		}
		if len(bss) == 0 {
			continue
		}
		used[i] = true
		for _, b := range bss {
			more, err := m.matchSet(pattern[1:], fact, used, b)
			if err != nil {
				used[i] = false
				return nil, err
			}
			acc = append(acc, more...)
		}
		used[i] = false
	}
	return acc, nil
}

// Missing returns the properties of a map pattern that are absent
// from the fact.  Optional properties are never missing.
//
// The result follows the order of the given keys, so callers that
// need a stable report should pass them explicitly.
func Missing(keys []string, pattern map[string]interface{}, fact map[string]interface{}) []string {
	var acc []string
	for _, k := range keys {
		pv, want := pattern[k]
		if !want || IsOptionalVariable(pv) {
			continue
		}
		if _, have := fact[k]; !have {
			acc = append(acc, k)
		}
	}
	return acc
}

// Match uses the DefaultMatcher.
func Match(pattern interface{}, fact interface{}, bindings Bindings) ([]Bindings, error) {
	return DefaultMatcher.Match(pattern, fact, bindings)
}
