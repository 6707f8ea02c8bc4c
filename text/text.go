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

// Package text resolves display-text keys.
//
// Questions, options, and recommendations carry keys rather than
// text.  A Resources maps those keys to what people actually read.
// A missing key never fails; it just resolves to a placeholder.
package text

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	md "github.com/russross/blackfriday/v2"
	"gopkg.in/yaml.v3"
)

// MissingPrefix starts the text for a key that has no text.
const MissingPrefix = "MISSING TEXT: "

// Resources is an immutable map from keys to text.
//
// The zero value (and nil) resolves every key to a placeholder.
type Resources struct {
	m map[string]string
}

// New makes Resources from a copy of the given map.
func New(m map[string]string) *Resources {
	r := &Resources{m: make(map[string]string, len(m))}
	for k, v := range m {
		r.m[k] = v
	}
	return r
}

// Parse reads a flat JSON or YAML object.  Syntax is "json" or
// "yaml".
func Parse(bs []byte, syntax string) (*Resources, error) {
	m := make(map[string]string)
	switch strings.ToLower(syntax) {
	case "json":
		if err := json.Unmarshal(bs, &m); err != nil {
			return nil, err
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(bs, &m); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown text syntax %q", syntax)
	}
	return &Resources{m: m}, nil
}

// Load reads a .json, .yaml, or .yml file.
func Load(filename string) (*Resources, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	syntax := strings.TrimPrefix(filepath.Ext(filename), ".")
	r, err := Parse(bs, syntax)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return r, nil
}

// Merge returns new Resources with the texts of all of the given
// Resources.  Later ones win.
func Merge(rs ...*Resources) *Resources {
	acc := &Resources{m: make(map[string]string)}
	for _, r := range rs {
		if r == nil {
			continue
		}
		for k, v := range r.m {
			acc.m[k] = v
		}
	}
	return acc
}

// Resolve returns the text for the key or MissingPrefix + key.
func (r *Resources) Resolve(key string) string {
	if s, have := r.lookup(key); have {
		return s
	}
	return MissingPrefix + key
}

func (r *Resources) lookup(key string) (string, bool) {
	if r == nil {
		return "", false
	}
	s, have := r.m[key]
	return s, have
}

// Has reports whether there's text for the key.
func (r *Resources) Has(key string) bool {
	_, have := r.lookup(key)
	return have
}

// Keys returns the keys in sorted order.
func (r *Resources) Keys() []string {
	if r == nil {
		return nil
	}
	acc := make([]string, 0, len(r.m))
	for k := range r.m {
		acc = append(acc, k)
	}
	sort.Strings(acc)
	return acc
}

// Len returns the number of keys.
func (r *Resources) Len() int {
	if r == nil {
		return 0
	}
	return len(r.m)
}

// HTML renders the resolved text as Markdown.
func (r *Resources) HTML(key string) string {
	return string(md.Run([]byte(r.Resolve(key))))
}
