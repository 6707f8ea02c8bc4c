package kb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/engines"

	"go.uber.org/zap"
)

// Suffixes of the files that Library loads.
var Suffixes = []string{".kb.yaml", ".kb.yml", ".kb.json"}

// IsKBFile reports whether the filename has one of the Suffixes.
func IsKBFile(filename string) bool {
	for _, s := range Suffixes {
		if strings.HasSuffix(filename, s) {
			return true
		}
	}
	return false
}

// Library is a set of compiled knowledge bases, by name.
//
// Safe for concurrent use.
type Library struct {
	sync.RWMutex

	Registry engines.Registry
	Options  Options

	kbs map[string]*Compiled
}

func NewLibrary(reg engines.Registry, opts Options) *Library {
	if reg == nil {
		reg = engines.Standard()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Library{
		Registry: reg,
		Options:  opts,
		kbs:      make(map[string]*Compiled),
	}
}

// Add compiles the KB and adds it, replacing any KB with the same
// name.
func (l *Library) Add(ctx context.Context, kb *KB) (*Compiled, error) {
	c, err := kb.Prepare(ctx, l.Registry, l.Options)
	if err != nil {
		return nil, err
	}
	l.Lock()
	l.kbs[kb.Name] = c
	l.Unlock()
	l.Options.Logger.Info("loaded knowledge base",
		zap.String("kb", kb.Name),
		zap.String("version", kb.Version),
		zap.String("engine", kb.Engine))
	return c, nil
}

// LoadDir loads every KB file (see Suffixes) in the directory.
func (l *Library) LoadDir(ctx context.Context, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !IsKBFile(e.Name()) {
			continue
		}
		kb, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if _, err = l.Add(ctx, kb); err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
	}
	return nil
}

// LoadFile loads a single KB file.
func (l *Library) LoadFile(ctx context.Context, filename string) (*Compiled, error) {
	kb, err := Load(filename)
	if err != nil {
		return nil, err
	}
	return l.Add(ctx, kb)
}

// Get returns the named KB.  The error wraps core.ErrUnknownKB.
func (l *Library) Get(name string) (*Compiled, error) {
	l.RLock()
	c, have := l.kbs[name]
	l.RUnlock()
	if !have {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownKB, name)
	}
	return c, nil
}

// Names returns the names of the KBs in sorted order.
func (l *Library) Names() []string {
	l.RLock()
	acc := make([]string, 0, len(l.kbs))
	for name := range l.kbs {
		acc = append(acc, name)
	}
	l.RUnlock()
	sort.Strings(acc)
	return acc
}
