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

// Package goja is a core.Engine with rules written in ECMAScript and
// run by Goja.
//
// See https://github.com/dop251/goja.
package goja

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/match"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by Fire if the execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)
)

// DefaultPassLimit is the PassLimit for an Engine that doesn't
// specify one.
const DefaultPassLimit = 100

// PassLimitExceeded occurs when rules keep changing working memory
// pass after pass.
type PassLimitExceeded struct {
	Limit int
}

func (e *PassLimitExceeded) Error() string {
	return fmt.Sprintf("no fixed point after %d passes", e.Limit)
}

// Rule is a named piece of ECMAScript.
//
// The code runs as the body of a function, with the environment
// described at Engine available at "_".
type Rule struct {
	Name     string   `json:"name" yaml:"name"`
	Doc      string   `json:"doc,omitempty" yaml:"doc,omitempty"`
	Code     string   `json:"code" yaml:"code"`
	Requires []string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

type compiledRule struct {
	Rule
	program *goja.Program
}

// Engine implements core.Engine.
//
// Fire runs every rule, in order, and then does it again until a
// pass changes nothing.  Each rule sees these properties at "_":
//
//	facts: a snapshot of working memory.
//	assert(fact): add the fact (unless an equal fact is present).
//	retract(pattern): remove every fact that matches the pattern.
//	match(pat, obj): run the pattern matcher.
//	exists(pat): whether some fact matches the pattern.
//	log(x): log the given value.
//	gensym(): generate a random string.
//
// Asserts and retracts take effect after the rule returns, so the
// next rule sees them.
type Engine struct {
	// Initial is working memory at the start of a session.
	Initial []core.Fact

	// PassLimit bounds the number of passes per Fire.
	PassLimit int

	// LibraryProvider resolves the names in Rule.Requires.
	LibraryProvider func(ctx context.Context, name string) (string, error)

	Logger *zap.Logger

	rules []*compiledRule
}

// NewEngine compiles the rules.  Libraries are resolved with the
// given provider, which can be nil if no rule requires anything.
func NewEngine(ctx context.Context, initial []core.Fact, rules []Rule, provider func(context.Context, string) (string, error)) (*Engine, error) {
	e := &Engine{
		Initial:         initial,
		PassLimit:       DefaultPassLimit,
		LibraryProvider: provider,
		Logger:          zap.NewNop(),
	}
	for i, r := range rules {
		if r.Name == "" {
			r.Name = fmt.Sprintf("rule%d", i)
		}
		p, err := e.compile(ctx, r)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.Name, err)
		}
		e.rules = append(e.rules, &compiledRule{Rule: r, program: p})
	}
	return e, nil
}

// Rules returns the engine's rules.
func (e *Engine) Rules() []Rule {
	acc := make([]Rule, len(e.rules))
	for i, r := range e.rules {
		acc[i] = r.Rule
	}
	return acc
}

// MakeFileLibraryProvider resolves "file://" names relative to the
// given directory.
func MakeFileLibraryProvider(dir string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, name string) (string, error) {
		parts := strings.SplitN(name, "://", 2)
		if 2 != len(parts) {
			return "", fmt.Errorf("bad link '%s'", name)
		}
		switch parts[0] {
		case "file":
			filename := filepath.Clean(parts[1])
			if filepath.IsAbs(filename) || strings.HasPrefix(filename, "..") {
				return "", fmt.Errorf("library '%s' is outside %s", name, dir)
			}
			bs, err := os.ReadFile(filepath.Join(dir, filename))
			if err != nil {
				return "", err
			}
			return string(bs), nil
		default:
			return "", fmt.Errorf("unknown protocol '%s'", parts[0])
		}
	}
}

func MakeMapLibraryProvider(srcs map[string]string) func(context.Context, string) (string, error) {
	return func(ctx context.Context, name string) (string, error) {
		src, have := srcs[name]
		if !have {
			return "", fmt.Errorf("undefined library '%s'", name)
		}
		return src, nil
	}
}

// ChainLibraryProviders tries each provider in turn.
func ChainLibraryProviders(ps ...func(context.Context, string) (string, error)) func(context.Context, string) (string, error) {
	return func(ctx context.Context, name string) (string, error) {
		var err error
		for _, p := range ps {
			var src string
			if src, err = p(ctx, name); err == nil {
				return src, nil
			}
		}
		if err == nil {
			err = fmt.Errorf("undefined library '%s'", name)
		}
		return "", err
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// compile prepends required libraries to the wrapped rule code.
func (e *Engine) compile(ctx context.Context, r Rule) (*goja.Program, error) {
	var libsSrc string
	for _, lib := range r.Requires {
		if e.LibraryProvider == nil {
			return nil, fmt.Errorf("no provider for library '%s'", lib)
		}
		libSrc, err := e.LibraryProvider(ctx, lib)
		if err != nil {
			return nil, err
		}
		libsSrc += libSrc + "\n"
	}

	code := libsSrc + wrapSrc(r.Code)

	p, err := goja.Compile(r.Name, code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return p, nil
}

func (e *Engine) log() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Init returns copies of the initial facts.
func (e *Engine) Init(ctx core.Context) ([]core.Fact, error) {
	acc := make([]core.Fact, 0, len(e.Initial))
	for _, f := range e.Initial {
		x, err := core.Canonicalize(f)
		if err != nil {
			return nil, err
		}
		m, is := x.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("initial fact %T isn't a map", x)
		}
		acc = append(acc, m)
	}
	return acc, nil
}

// Fire runs the rules to a fixed point.
func (e *Engine) Fire(ctx core.Context, store *core.Store) error {
	limit := e.PassLimit
	if limit <= 0 {
		limit = DefaultPassLimit
	}
	for pass := 0; pass < limit; pass++ {
		changed := false
		for _, r := range e.rules {
			c, err := e.exec(ctx, r, store)
			if err != nil {
				return fmt.Errorf("rule %s: %w", r.Name, err)
			}
			changed = changed || c
		}
		if !changed {
			e.log().Debug("fixed point", zap.Int("passes", pass+1))
			return nil
		}
	}
	return &PassLimitExceeded{Limit: limit}
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

func export(x interface{}) interface{} {
	if v, is := x.(goja.Value); is {
		if v == nil {
			return nil
		}
		return v.Export()
	}
	return x
}

// effects are what a rule wants done to working memory.
type effects struct {
	asserts  []core.Fact
	retracts []interface{}
}

func (e *Engine) exec(ctx core.Context, r *compiledRule, store *core.Store) (bool, error) {
	var (
		facts = store.Facts()
		fx    = &effects{}
		o     = goja.New()
		env   = make(map[string]interface{})
	)

	snapshot := make([]interface{}, len(facts))
	for i, f := range facts {
		x, err := core.Canonicalize(f)
		if err != nil {
			return false, err
		}
		snapshot[i] = x
	}
	env["facts"] = snapshot

	env["gensym"] = func() interface{} {
		return core.Gensym(32)
	}

	env["assert"] = func(x goja.Value) interface{} {
		y, err := core.Canonicalize(export(x))
		if err != nil {
			protest(o, err.Error())
		}
		f, is := y.(map[string]interface{})
		if !is {
			protest(o, fmt.Sprintf("can't assert a %T", y))
		}
		fx.asserts = append(fx.asserts, f)
		return f
	}

	env["retract"] = func(x goja.Value) interface{} {
		pat, err := core.Canonicalize(export(x))
		if err != nil {
			protest(o, err.Error())
		}
		fx.retracts = append(fx.retracts, pat)
		return nil
	}

	env["match"] = func(pat, mess goja.Value) interface{} {
		p, err := core.Canonicalize(export(pat))
		if err != nil {
			protest(o, err.Error())
		}
		m, err := core.Canonicalize(export(mess))
		if err != nil {
			protest(o, err.Error())
		}
		bss, err := match.Match(p, m, nil)
		if err != nil {
			protest(o, err.Error())
		}
		x, err := core.Canonicalize(bss)
		if err != nil {
			protest(o, err.Error())
		}
		return x
	}

	env["exists"] = func(pat goja.Value) interface{} {
		p, err := core.Canonicalize(export(pat))
		if err != nil {
			protest(o, err.Error())
		}
		for _, f := range snapshot {
			bss, err := match.Match(p, f, nil)
			if err != nil {
				protest(o, err.Error())
			}
			if 0 < len(bss) {
				return true
			}
		}
		return false
	}

	env["log"] = func(x goja.Value) interface{} {
		y := export(x)
		js, err := json.Marshal(&y)
		if err != nil {
			e.log().Warn("rule log", zap.String("rule", r.Name), zap.Error(err))
		} else {
			e.log().Info("rule log", zap.String("rule", r.Name), zap.String("value", string(js)))
		}
		return y
	}

	o.Set("_", env)

	// We want to make sure that the following goroutine is
	// terminated as soon as possible.
	ictx, cancel := context.WithCancel(ctx)
	go func() {
		<-ictx.Done()
		// If exec calls cancel() after RunProgram returns, then
		// we'll never see this InterruptedMessage, which is
		// actually the behavior we want.
		o.Interrupt(InterruptedMessage)
	}()

	_, err := o.RunProgram(r.program)
	cancel()

	if err != nil {
		if _, is := err.(*goja.InterruptedError); is {
			return false, Interrupted
		}
		return false, err
	}

	return apply(fx, store)
}

// apply does the retracts and then the asserts.  Every retract
// pattern is matched before anything is removed, so a pattern the
// matcher rejects leaves the store alone.
func apply(fx *effects, store *core.Store) (bool, error) {
	changed := false
	if 0 < len(fx.retracts) {
		facts := store.Facts()
		drop := make([]bool, len(facts))
		for i, f := range facts {
			for _, pat := range fx.retracts {
				bss, err := match.Match(pat, map[string]interface{}(f), nil)
				if err != nil {
					return false, err
				}
				if 0 < len(bss) {
					drop[i] = true
					break
				}
			}
		}
		i := 0
		n := store.Retract(func(core.Fact) bool {
			d := drop[i]
			i++
			return d
		})
		changed = 0 < n
	}
	for _, f := range fx.asserts {
		if store.Contains(f) {
			continue
		}
		store.Insert(f)
		changed = true
	}
	return changed, nil
}
