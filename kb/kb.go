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

// Package kb loads knowledge bases.
//
// A knowledge base is a YAML (or JSON) document that names an engine
// and gives it initial facts and rules.  It can also carry text and
// override the schemas used to classify facts.
//
//	name: rpg
//	version: "1.0"
//	doc: |
//	  Markdown.
//	engine: goja
//	facts:
//	  - {id: q1, textKey: q.magic, type: SINGLE, options: [...], optionIds: [...]}
//	rules:
//	  - name: sword
//	    code: |
//	      if (_.exists({questionId: "q1", selectedOptions: ["Y"]})) {
//	        _.assert({systemKey: "rec.sword"});
//	      }
//	libraries:
//	  helpers: |
//	    function answered(q) { return _.exists({questionId: q}); }
//	text:
//	  q.magic: Do you like magic?
//	roles:
//	  recommendation:
//	    signature: [result]
//	    pattern: {result: "?systemKey"}
package kb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/engines"
	"github.com/Comcast/sage/text"

	"github.com/jsccast/yaml"
	"go.uber.org/zap"
)

// KB is a knowledge base.
type KB struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// Doc is Markdown.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Engine names an engine in an engines.Registry.  Defaults to
	// "goja" if there are rules and "noop" otherwise.
	Engine string `json:"engine,omitempty" yaml:"engine,omitempty"`

	Facts     []map[string]interface{} `json:"facts,omitempty" yaml:"facts,omitempty"`
	Rules     interface{}              `json:"rules,omitempty" yaml:"rules,omitempty"`
	Libraries map[string]string        `json:"libraries,omitempty" yaml:"libraries,omitempty"`
	Text      map[string]string        `json:"text,omitempty" yaml:"text,omitempty"`

	// Roles override classification schemas.  Keys are role names
	// ("question", "answer", "recommendation").
	Roles map[string]core.RoleSchema `json:"roles,omitempty" yaml:"roles,omitempty"`

	// Dir is the directory the KB came from (if any).
	Dir string `json:"-" yaml:"-"`
}

// Parse reads a KB.  Syntax is "yaml" or "json".
func Parse(bs []byte, syntax string) (*KB, error) {
	var kb KB
	switch strings.ToLower(syntax) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(bs, &kb); err != nil {
			return nil, err
		}
	case "json":
		if err := json.Unmarshal(bs, &kb); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown knowledge base syntax %q", syntax)
	}
	if kb.Engine == "" {
		if kb.Rules == nil {
			kb.Engine = "noop"
		} else {
			kb.Engine = "goja"
		}
	}
	if kb.Dir == "" {
		kb.Dir = "."
	}
	return &kb, nil
}

// Load reads a KB from a file.  A KB without a name gets one from
// the filename.
func Load(filename string) (*KB, error) {
	bs, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	kb, err := Parse(bs, strings.TrimPrefix(filepath.Ext(filename), "."))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	kb.Dir = filepath.Dir(filename)
	if kb.Name == "" {
		kb.Name = baseName(filename)
	}
	return kb, nil
}

// baseName strips the directory and every extension.
func baseName(filename string) string {
	name := filepath.Base(filename)
	if i := strings.Index(name, "."); 0 < i {
		name = name[:i]
	}
	return name
}

// InitialFacts returns the KB's facts as core.Facts.
func (kb *KB) InitialFacts() []core.Fact {
	acc := make([]core.Fact, len(kb.Facts))
	for i, f := range kb.Facts {
		acc[i] = core.Fact(f)
	}
	return acc
}

// Classifier makes a Classifier using any role overrides.
func (kb *KB) Classifier() (*core.Classifier, error) {
	schemas := make([]core.RoleSchema, 0, len(kb.Roles))
	for name, s := range kb.Roles {
		r, err := core.ParseRole(name)
		if err != nil {
			return nil, err
		}
		if r == core.Other {
			return nil, errors.New("can't override the Other role")
		}
		s.Role = r
		schemas = append(schemas, s)
	}
	return core.NewClassifier(schemas...)
}

// Resources merges the KB's text with the given Resources, which take
// precedence.
func (kb *KB) Resources(over *text.Resources) *text.Resources {
	return text.Merge(text.New(kb.Text), over)
}

// Options for Compile.
type Options struct {
	PassLimit int
	Logger    *zap.Logger
}

// Source makes the engines.Source for the KB.
func (kb *KB) Source(opts Options, c *core.Classifier) *engines.Source {
	return &engines.Source{
		Name:       kb.Name,
		Dir:        kb.Dir,
		Facts:      kb.InitialFacts(),
		Rules:      kb.Rules,
		Libraries:  kb.Libraries,
		PassLimit:  opts.PassLimit,
		Classifier: c,
		Logger:     opts.Logger,
	}
}

// Compile builds the KB's engine.  A nil Registry means
// engines.Standard().
func (kb *KB) Compile(ctx context.Context, reg engines.Registry, opts Options) (core.Engine, error) {
	c, err := kb.Prepare(ctx, reg, opts)
	if err != nil {
		return nil, err
	}
	return c.Engine, nil
}

// Compiled is a KB with its engine and classifier ready to go.
type Compiled struct {
	*KB
	Engine     core.Engine
	Classifier *core.Classifier
}

// Prepare makes the classifier and compiles the engine.  A nil
// Registry means engines.Standard().
func (kb *KB) Prepare(ctx context.Context, reg engines.Registry, opts Options) (*Compiled, error) {
	c, err := kb.Classifier()
	if err != nil {
		return nil, fmt.Errorf("%s roles: %w", kb.Name, err)
	}
	if reg == nil {
		reg = engines.Standard()
	}
	e, err := reg.Build(ctx, kb.Engine, kb.Source(opts, c))
	if err != nil {
		return nil, err
	}
	return &Compiled{
		KB:         kb,
		Engine:     e,
		Classifier: c,
	}, nil
}

// NewSession starts a session.
func (c *Compiled) NewSession(ctx context.Context) (*core.Session, error) {
	return core.NewSession(ctx, c.Engine, c.Classifier)
}
