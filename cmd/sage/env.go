package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/storage"
	"github.com/Comcast/sage/storage/bolt"
	"github.com/Comcast/sage/storage/sqlite"
	"github.com/Comcast/sage/text"

	"go.uber.org/zap"
)

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadLibrary compiles the --kb file or every KB in the configured
// directory.  The Compiled is the --kb KB (if given).
func loadLibrary(ctx context.Context) (*kb.Library, *kb.Compiled, error) {
	lib := kb.NewLibrary(nil, kb.Options{
		PassLimit: cfg.Engine.PassLimit,
		Logger:    logger,
	})
	if kbFile != "" {
		c, err := lib.LoadFile(ctx, kbFile)
		return lib, c, err
	}
	if err := lib.LoadDir(ctx, cfg.KB.Dir); err != nil {
		return nil, nil, err
	}
	if len(lib.Names()) == 0 {
		return nil, nil, fmt.Errorf("no knowledge bases in %s", cfg.KB.Dir)
	}
	return lib, nil, nil
}

// pickKB returns the KB named by the first arg, the --kb KB, or the
// configured default.
func pickKB(ctx context.Context, args []string) (*kb.Compiled, error) {
	lib, c, err := loadLibrary(ctx)
	if err != nil {
		return nil, err
	}
	switch {
	case 0 < len(args):
		return lib.Get(args[0])
	case c != nil:
		return c, nil
	default:
		return lib.Get(cfg.KB.Default)
	}
}

// loadText reads the configured text file (if any).
func loadText() (*text.Resources, error) {
	if cfg.Text.Path == "" {
		return nil, nil
	}
	return text.Load(cfg.Text.Path)
}

// resources merges the KB's text with the configured text.
func resources(c *kb.Compiled) (*text.Resources, error) {
	over, err := loadText()
	if err != nil {
		return nil, err
	}
	return c.Resources(over), nil
}

// openStorage makes (but doesn't open) the configured Storage.
func openStorage() (storage.Storage, error) {
	switch cfg.Storage.Kind {
	case "", "none":
		return storage.NewNoop(), nil
	case "bolt":
		s, err := bolt.NewStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		s.Logger = logger
		return s, nil
	case "sqlite":
		s, err := sqlite.NewStorage(cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		s.Logger = logger
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage kind %q", cfg.Storage.Kind)
	}
}

// record writes a finished consultation to the configured Storage.
// Failures are only logged.
func record(ctx context.Context, kbName string, started time.Time, o *core.Outcome) {
	if o == nil || o.State != core.Finalized {
		return
	}
	st, err := openStorage()
	if err == nil {
		err = st.Open(ctx)
	}
	if err != nil {
		logger.Warn("history unavailable", zap.Error(err))
		return
	}
	defer st.Close(ctx)

	r := &storage.Record{
		KB:              kbName,
		Answers:         o.Answers,
		Recommendations: o.Recommendations,
		Started:         started,
		Finished:        time.Now(),
	}
	if err := st.Put(ctx, r); err != nil {
		logger.Warn("history put", zap.Error(err))
		return
	}
	logger.Debug("recorded", zap.String("kb", kbName), zap.String("id", r.ID))
}
