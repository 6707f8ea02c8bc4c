package noop

import (
	"github.com/Comcast/sage/core"

	"go.uber.org/zap"
)

// Engine is a core.Engine without any rules: working memory is just
// the initial facts and whatever answers get added.
type Engine struct {
	Initial []core.Fact

	// Silent, if false, will log a warning on every Fire.
	Silent bool

	Logger *zap.Logger
}

func NewEngine(initial []core.Fact) *Engine {
	return &Engine{
		Initial: initial,
		Silent:  true,
		Logger:  zap.NewNop(),
	}
}

func (e *Engine) Init(ctx core.Context) ([]core.Fact, error) {
	acc := make([]core.Fact, len(e.Initial))
	copy(acc, e.Initial)
	return acc, nil
}

func (e *Engine) Fire(ctx core.Context, store *core.Store) error {
	if !e.Silent && e.Logger != nil {
		e.Logger.Warn("using the noop engine", zap.Int("facts", store.Len()))
	}
	return nil
}
