/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package testutil has a few helpers for tests that juggle JSON-ish
// facts.
package testutil

import (
	"encoding/json"
	"fmt"
)

// JS renders its argument as compact JSON.  Anything that can't be
// marshalled comes back as "!" followed by its Go syntax, so a
// comparison with expected JSON fails loudly.
func JS(x interface{}) string {
	bs, err := json.Marshal(&x)
	if err != nil {
		return fmt.Sprintf("!%#v", x)
	}
	return string(bs)
}

// Dwimjs parses a string or bytes as JSON, so a fact can be written
// as a literal.  A string that isn't JSON comes back unchanged, and
// so does anything else.
func Dwimjs(x interface{}) interface{} {
	switch vv := x.(type) {
	case []byte:
		return Dwimjs(string(vv))
	case string:
		var v interface{}
		if err := json.Unmarshal([]byte(vv), &v); err != nil {
			return vv
		}
		return v
	default:
		return x
	}
}

// Maps parses a JSON array of objects.  Panics on anything else, so
// only use it with literal test data.
func Maps(js string) []map[string]interface{} {
	var acc []map[string]interface{}
	if err := json.Unmarshal([]byte(js), &acc); err != nil {
		panic(fmt.Errorf("testutil.Maps: %w: %s", err, js))
	}
	return acc
}
