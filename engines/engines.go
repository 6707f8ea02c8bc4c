// Package engines has the registry of inference engines that
// knowledge bases can name.
package engines

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/engines/goja"
	"github.com/Comcast/sage/engines/mangle"
	"github.com/Comcast/sage/engines/noop"

	"go.uber.org/zap"
)

// Source is what a knowledge base gives an engine.
type Source struct {
	// Name of the knowledge base.
	Name string

	// Dir is where the knowledge base lives.  Files the rules
	// refer to are relative to Dir.
	Dir string

	// Facts are the initial facts.
	Facts []core.Fact

	// Rules are engine-specific.
	Rules interface{}

	// Libraries are named ECMAScript sources that goja rules can
	// require.
	Libraries map[string]string

	// PassLimit bounds goja passes.  Zero means the default.
	PassLimit int

	// Classifier gives the shapes of the facts the engine reads and
	// writes.  Nil means core.DefaultClassifier.
	Classifier *core.Classifier

	Logger *zap.Logger
}

func (s *Source) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

// Factory builds an Engine.
type Factory func(ctx context.Context, src *Source) (core.Engine, error)

// Registry maps engine names to Factories.
type Registry map[string]Factory

// UnknownEngine occurs when a knowledge base names an engine that
// isn't in the Registry.
type UnknownEngine struct {
	Name string
}

func (e *UnknownEngine) Error() string {
	return `unknown engine "` + e.Name + `"`
}

// Build makes the named engine.
func (r Registry) Build(ctx context.Context, name string, src *Source) (core.Engine, error) {
	f, have := r[name]
	if !have {
		return nil, &UnknownEngine{Name: name}
	}
	e, err := f(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("%s engine for %s: %w", name, src.Name, err)
	}
	return e, nil
}

// Names returns the names in the registry.
func (r Registry) Names() []string {
	acc := make([]string, 0, len(r))
	for name := range r {
		acc = append(acc, name)
	}
	return acc
}

func Standard() Registry {
	r := make(Registry)

	r["goja"] = Goja
	r["ecmascript"] = Goja

	r["mangle"] = Mangle
	r["datalog"] = Mangle

	r["noop"] = Noop

	return r
}

// Goja builds a goja.Engine.
func Goja(ctx context.Context, src *Source) (core.Engine, error) {
	rules, err := goja.AsRules(src.Rules)
	if err != nil {
		return nil, err
	}
	dir := src.Dir
	if dir == "" {
		dir = "."
	}
	provider := goja.ChainLibraryProviders(
		goja.MakeMapLibraryProvider(src.Libraries),
		goja.MakeFileLibraryProvider(filepath.Clean(dir)),
	)
	e, err := goja.NewEngine(ctx, src.Facts, rules, provider)
	if err != nil {
		return nil, err
	}
	if 0 < src.PassLimit {
		e.PassLimit = src.PassLimit
	}
	e.Logger = src.logger().With(zap.String("engine", "goja"), zap.String("kb", src.Name))
	return e, nil
}

// Mangle builds a mangle.Engine.
func Mangle(ctx context.Context, src *Source) (core.Engine, error) {
	srcs, err := mangle.AsSources(src.Rules, src.Dir)
	if err != nil {
		return nil, err
	}
	e, err := mangle.NewEngine(src.Facts, srcs...)
	if err != nil {
		return nil, err
	}
	e.Classifier = src.Classifier
	e.Logger = src.logger().With(zap.String("engine", "mangle"), zap.String("kb", src.Name))
	return e, nil
}

// Noop builds a noop.Engine, which ignores any rules.
func Noop(ctx context.Context, src *Source) (core.Engine, error) {
	e := noop.NewEngine(src.Facts)
	e.Logger = src.logger()
	return e, nil
}
