// Package mangle is a core.Engine whose rules are a Google Mangle
// (Datalog) program.
//
// Every Fire starts from scratch.  Each Answer in working memory
// becomes answer(QuestionId, OptionId) facts, one per selected
// option.  The program is then evaluated to its fixed point, and the
// derived predicates
//
//	question(Id, TextKey, Type)
//	option(QuestionId, Position, TextKey, OptionId)
//	recommend(SystemKey)
//
// are turned back into Question and Recommendation records.  Type is
// /single or /multi (or the strings "SINGLE" and "MULTI").
//
// The engine declares answer/2 itself, so programs must not.
//
// Facts are read and written in the shapes given by the Classifier, so
// knowledge bases that rename fields work here too.
//
// See https://github.com/google/mangle.
package mangle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Comcast/sage/core"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"
	"go.uber.org/zap"
)

const (
	AnswerPredicate    = "answer"
	QuestionPredicate  = "question"
	OptionPredicate    = "option"
	RecommendPredicate = "recommend"
)

// prelude declares the extensional predicate that carries answers.
const prelude = "Decl answer(QuestionId, OptionId).\n"

var (
	answerSym    = ast.PredicateSym{Symbol: AnswerPredicate, Arity: 2}
	questionSym  = ast.PredicateSym{Symbol: QuestionPredicate, Arity: 3}
	optionSym    = ast.PredicateSym{Symbol: OptionPredicate, Arity: 4}
	recommendSym = ast.PredicateSym{Symbol: RecommendPredicate, Arity: 1}
)

// Engine implements core.Engine.
type Engine struct {
	// Initial is working memory at the start of a session.  Usually
	// empty, since the program has the questions.  Fire never
	// retracts these facts.
	Initial []core.Fact

	// Classifier gives the shapes of answers, questions, and
	// recommendations.  Nil means core.DefaultClassifier.
	Classifier *core.Classifier

	Logger *zap.Logger

	programInfo *analysis.ProgramInfo
}

// NewEngine parses and analyzes the given sources as one program.
func NewEngine(initial []core.Fact, sources ...string) (*Engine, error) {
	var (
		clauses []ast.Clause
		decls   []ast.Decl
	)
	for i, src := range append([]string{prelude}, sources...) {
		unit, err := parse.Unit(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("parse error in source %d: %w", i, err)
		}
		clauses = append(clauses, unit.Clauses...)
		decls = append(decls, unit.Decls...)
	}

	programInfo, err := analysis.AnalyzeOneUnit(parse.SourceUnit{
		Clauses: clauses,
		Decls:   decls,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("analysis error: %w", err)
	}

	return &Engine{
		Initial:     initial,
		Logger:      zap.NewNop(),
		programInfo: programInfo,
	}, nil
}

func (e *Engine) classifier() *core.Classifier {
	if e.Classifier == nil {
		return core.DefaultClassifier
	}
	return e.Classifier
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
		g := make(core.Fact, len(f))
		for k, v := range f {
			g[k] = v
		}
		acc = append(acc, g)
	}
	return acc, nil
}

// Fire evaluates the program and brings working memory in line with
// what it derived.
//
// Derived records that are no longer derived are retracted.  Records
// that are still derived stay where they are.  New records are
// appended: questions (by id) and then recommendations (by key).
func (e *Engine) Fire(ctx core.Context, store *core.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c := e.classifier()
	fs := factstore.NewSimpleInMemoryStore()
	n := 0
	for _, f := range store.Facts() {
		// Malformed facts are the session's to report.
		cl, err := c.Classify(f)
		if err != nil || cl.Role != core.AnswerRole {
			continue
		}
		for _, o := range cl.Answer.Selected {
			fs.Add(ast.Atom{
				Predicate: answerSym,
				Args:      []ast.BaseTerm{ast.String(cl.Answer.QuestionID), ast.String(o)},
			})
			n++
		}
	}

	stats, err := mengine.EvalProgramWithStats(e.programInfo, fs)
	if err != nil {
		return fmt.Errorf("evaluation error: %w", err)
	}
	e.log().Debug("evaluated", zap.Int("answers", n), zap.Any("stats", stats))

	questions, recs, err := derive(fs)
	if err != nil {
		return err
	}
	derived := make([]core.Fact, 0, len(questions)+len(recs))
	for _, q := range questions {
		derived = append(derived, c.QuestionFact(q))
	}
	for _, key := range recs {
		derived = append(derived, c.RecommendationFact(key))
	}
	e.sync(store, derived)
	return nil
}

// value converts a constant to a string.  Names lose their leading
// slash.
func value(t ast.BaseTerm) (string, error) {
	c, is := t.(ast.Constant)
	if !is {
		return "", fmt.Errorf("%v isn't a constant", t)
	}
	switch c.Type {
	case ast.StringType:
		return c.Symbol, nil
	case ast.NameType:
		return strings.TrimPrefix(c.Symbol, "/"), nil
	case ast.NumberType:
		return fmt.Sprintf("%d", c.NumValue), nil
	default:
		return c.String(), nil
	}
}

func position(t ast.BaseTerm) (int64, error) {
	c, is := t.(ast.Constant)
	if !is || c.Type != ast.NumberType {
		return 0, fmt.Errorf("option position %v isn't a number", t)
	}
	return c.NumValue, nil
}

type option struct {
	pos     int64
	textKey string
	id      string
}

// derive reads the questions, sorted by id, and the recommendation
// keys, sorted, from the evaluated store.
func derive(fs factstore.FactStore) ([]*core.Question, []string, error) {
	opts := make(map[string][]option)
	err := fs.GetFacts(ast.NewQuery(optionSym), func(a ast.Atom) error {
		var (
			o   option
			qid string
			err error
		)
		if qid, err = value(a.Args[0]); err != nil {
			return err
		}
		if o.pos, err = position(a.Args[1]); err != nil {
			return err
		}
		if o.textKey, err = value(a.Args[2]); err != nil {
			return err
		}
		if o.id, err = value(a.Args[3]); err != nil {
			return err
		}
		opts[qid] = append(opts[qid], o)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var questions []*core.Question
	err = fs.GetFacts(ast.NewQuery(questionSym), func(a ast.Atom) error {
		var vals [3]string
		for i := range vals {
			v, err := value(a.Args[i])
			if err != nil {
				return err
			}
			vals[i] = v
		}
		qopts := opts[vals[0]]
		sort.SliceStable(qopts, func(i, j int) bool {
			if qopts[i].pos != qopts[j].pos {
				return qopts[i].pos < qopts[j].pos
			}
			return qopts[i].id < qopts[j].id
		})
		q := &core.Question{
			ID:        vals[0],
			TextKey:   vals[1],
			Type:      core.QuestionType(strings.ToUpper(vals[2])),
			Options:   make([]string, len(qopts)),
			OptionIDs: make([]string, len(qopts)),
		}
		for i, o := range qopts {
			q.Options[i] = o.textKey
			q.OptionIDs[i] = o.id
		}
		questions = append(questions, q)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].ID < questions[j].ID
	})

	var recs []string
	err = fs.GetFacts(ast.NewQuery(recommendSym), func(a ast.Atom) error {
		key, err := value(a.Args[0])
		if err != nil {
			return err
		}
		recs = append(recs, key)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	sort.Strings(recs)

	return questions, recs, nil
}

// isDerived reports whether the fact is something the engine derives:
// a question or recommendation that isn't one of the initial facts.
func (e *Engine) isDerived(f core.Fact) bool {
	cl, err := e.classifier().Classify(f)
	if err != nil {
		return false
	}
	if cl.Role != core.QuestionRole && cl.Role != core.RecommendationRole {
		return false
	}
	for _, g := range e.Initial {
		if core.SameFact(f, g) {
			return false
		}
	}
	return true
}

func (e *Engine) sync(store *core.Store, derived []core.Fact) {
	store.Retract(func(f core.Fact) bool {
		if !e.isDerived(f) {
			return false
		}
		for _, d := range derived {
			if core.SameFact(f, d) {
				return false
			}
		}
		return true
	})
	for _, d := range derived {
		if !store.Contains(d) {
			store.Insert(d)
		}
	}
}
