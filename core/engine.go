package core

// Engine is the rule-evaluation step that a Session drives.
//
// Fire runs synchronously to completion.  It can Insert and Retract
// facts in the Store it's given, but it shouldn't hang on to the
// Store after it returns.
type Engine interface {
	// Init returns the facts that make up a fresh working memory.
	Init(ctx Context) ([]Fact, error)

	// Fire evaluates rules against the store.
	Fire(ctx Context, store *Store) error
}
