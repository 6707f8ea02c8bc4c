package core

import (
	"context"
	"errors"
	"testing"

	. "github.com/Comcast/sage/util/testutil"
	"github.com/google/go-cmp/cmp"
)

// testEngine is a deterministic Engine for tests.
type testEngine struct {
	initial string
	rules   func(s *Store) error
	fired   int
	inits   int
	initErr error
}

func (e *testEngine) Init(ctx Context) ([]Fact, error) {
	e.inits++
	if e.initErr != nil {
		return nil, e.initErr
	}
	return Maps(e.initial), nil
}

func (e *testEngine) Fire(ctx Context, s *Store) error {
	e.fired++
	if e.rules == nil {
		return nil
	}
	return e.rules(s)
}

// answeredWith reports whether the store has an answer to the
// question that includes the option.
func answeredWith(s *Store, qid, opt string) bool {
	for _, f := range s.Facts() {
		if f["questionId"] != qid {
			continue
		}
		opts, _ := stringList(f["selectedOptions"])
		for _, o := range opts {
			if o == opt {
				return true
			}
		}
	}
	return false
}

const q1 = `{"id":"q1","textKey":"q.one","type":"SINGLE","options":["opt.yes","opt.no"],"optionIds":["Y","N"]}`

// swordEngine recommends a sword when q1 is answered with Y.
func swordEngine() *testEngine {
	return &testEngine{
		initial: `[` + q1 + `]`,
		rules: func(s *Store) error {
			rec := Fact{"systemKey": "rec.sword"}
			if answeredWith(s, "q1", "Y") && !s.Contains(rec) {
				s.Insert(rec)
			}
			return nil
		},
	}
}

func newSession(t *testing.T, e Engine) *Session {
	s, err := NewSession(context.Background(), e, nil)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSessionScenario(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, swordEngine())

	if s.State() != AwaitingQuestion {
		t.Fatal(s.State())
	}

	o, err := s.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.State != HasPendingQuestion || o.Question == nil || o.Question.ID != "q1" {
		t.Fatal(JS(o))
	}
	want := &Question{
		ID:        "q1",
		TextKey:   "q.one",
		Type:      Single,
		Options:   []string{"opt.yes", "opt.no"},
		OptionIDs: []string{"Y", "N"},
	}
	if diff := cmp.Diff(want, o.Question); diff != "" {
		t.Fatal(diff)
	}
	if o.Recommendations != nil {
		t.Fatal(JS(o.Recommendations))
	}

	if o, err = s.Submit(ctx, "q1", []string{"Y"}); err != nil {
		t.Fatal(err)
	}
	if o.State != Finalized {
		t.Fatal(JS(o))
	}
	if diff := cmp.Diff([]Recommendation{{SystemKey: "rec.sword"}}, o.Recommendations); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff([]Answer{{QuestionID: "q1", Selected: []string{"Y"}}}, o.Answers); diff != "" {
		t.Fatal(diff)
	}
	if s.State() != Finalized {
		t.Fatal(s.State())
	}
}

func TestSessionEmptyFinalized(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, swordEngine())
	if _, err := s.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	o, err := s.Submit(ctx, "q1", []string{"N"})
	if err != nil {
		t.Fatal(err)
	}
	if o.State != Finalized || o.Recommendations == nil || len(o.Recommendations) != 0 {
		t.Fatal(JS(o))
	}
}

func TestSessionSelectionDeterminism(t *testing.T) {
	ctx := context.Background()
	e := &testEngine{
		initial: `[
{"id":"q2","textKey":"q.two","type":"MULTI","options":["a"],"optionIds":["A"]},
{"unrelated":true},
{"id":"q1","textKey":"q.one","type":"SINGLE","options":["a"],"optionIds":["A"]},
{"id":"q3","textKey":"q.three","type":"SINGLE","options":["a"],"optionIds":["A"]}
]`,
	}
	s := newSession(t, e)
	for i := 0; i < 10; i++ {
		o, err := s.Advance(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if o.Question.ID != "q2" {
			t.Fatalf("iteration %d chose %s", i, o.Question.ID)
		}
	}
	if e.fired != 10 {
		t.Fatalf("fired %d times", e.fired)
	}

	o, err := s.Submit(ctx, "q2", []string{"A"})
	if err != nil {
		t.Fatal(err)
	}
	if o.Question.ID != "q1" {
		t.Fatal(o.Question.ID)
	}
}

func TestSessionAnsweredIffExists(t *testing.T) {
	ctx := context.Background()
	e := &testEngine{
		initial: `[` + q1 + `,{"systemKey":"rec.early"}]`,
	}
	s := newSession(t, e)

	// An answer to some other question doesn't answer q1.
	o, err := s.Submit(ctx, "q9", []string{"Y"})
	if err != nil {
		t.Fatal(err)
	}
	if o.State != HasPendingQuestion || o.Question.ID != "q1" {
		t.Fatal(JS(o))
	}
	// No premature harvesting.
	if len(o.Recommendations) != 0 {
		t.Fatal(JS(o))
	}

	// Any answer with the right id answers q1, even with options
	// that q1 doesn't offer.
	if o, err = s.Submit(ctx, "q1", []string{"whatever"}); err != nil {
		t.Fatal(err)
	}
	if o.State != Finalized {
		t.Fatal(JS(o))
	}
	if diff := cmp.Diff([]Recommendation{{SystemKey: "rec.early"}}, o.Recommendations); diff != "" {
		t.Fatal(diff)
	}
}

func TestSessionAnsweredTwice(t *testing.T) {
	ctx := context.Background()
	e := &testEngine{
		initial: `[
{"id":"q1","textKey":"q.one","type":"MULTI","options":["a","b"],"optionIds":["A","B"]},
{"questionId":"q1","selectedOptions":["A"]},
{"questionId":"q1","selectedOptions":["B","B"]}
]`,
	}
	s := newSession(t, e)
	o, err := s.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.State != Finalized {
		t.Fatal(JS(o))
	}
	if diff := cmp.Diff([]string{"B"}, o.Answers[1].Selected); diff != "" {
		t.Fatal(diff)
	}
}

func TestSessionEmptySelection(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, swordEngine())
	if _, err := s.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	n := s.Store().Len()
	for _, selected := range [][]string{nil, {}} {
		_, err := s.Submit(ctx, "q1", selected)
		var ia *InvalidAnswer
		if !errors.As(err, &ia) {
			t.Fatalf("expected InvalidAnswer, got %v", err)
		}
		if ia.QuestionID != "q1" {
			t.Fatal(ia.QuestionID)
		}
	}
	if s.Store().Len() != n {
		t.Fatalf("store size changed from %d to %d", n, s.Store().Len())
	}
	if s.State() != HasPendingQuestion {
		t.Fatal(s.State())
	}
}

func TestSessionRestartIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, swordEngine())
	if _, err := s.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Submit(ctx, "q1", []string{"Y"}); err != nil {
		t.Fatal(err)
	}

	o1, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	facts1 := s.Store().Facts()
	o2, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(o1, o2); diff != "" {
		t.Fatal(diff)
	}
	if diff := cmp.Diff(facts1, s.Store().Facts()); diff != "" {
		t.Fatal(diff)
	}
	if o2.State != HasPendingQuestion || o2.Question.ID != "q1" {
		t.Fatal(JS(o2))
	}
}

func TestSessionRestartFinalizedEmpty(t *testing.T) {
	ctx := context.Background()
	s := newSession(t, &testEngine{initial: `[]`})
	o1, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	o2, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o1.State != Finalized || len(o1.Recommendations) != 0 {
		t.Fatal(JS(o1))
	}
	if diff := cmp.Diff(o1, o2); diff != "" {
		t.Fatal(diff)
	}
}

func TestSessionFinalizedIsTerminal(t *testing.T) {
	ctx := context.Background()
	e := swordEngine()
	s := newSession(t, e)
	if _, err := s.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	final, err := s.Submit(ctx, "q1", []string{"Y"})
	if err != nil {
		t.Fatal(err)
	}
	fired := e.fired

	o, err := s.Advance(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o != final {
		t.Fatal("expected the same outcome")
	}
	if e.fired != fired {
		t.Fatal("fired after finalization")
	}

	_, err = s.Submit(ctx, "q1", []string{"N"})
	var sc *SessionClosed
	if !errors.As(err, &sc) || sc.State != Finalized {
		t.Fatalf("expected SessionClosed, got %v", err)
	}
}

func TestSessionEngineFailure(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	e := &testEngine{
		initial: `[` + q1 + `]`,
		rules: func(s *Store) error {
			if answeredWith(s, "q1", "N") {
				return boom
			}
			return nil
		},
	}
	s := newSession(t, e)
	if _, err := s.Advance(ctx); err != nil {
		t.Fatal(err)
	}
	_, err := s.Submit(ctx, "q1", []string{"N"})
	var ef *EngineFailure
	if !errors.As(err, &ef) || ef.Op != "fire" {
		t.Fatalf("expected EngineFailure, got %v", err)
	}
	if !errors.Is(err, boom) || !IsFatal(err) {
		t.Fatal(err)
	}
	if s.State() != Failed || s.Err() != err || s.Last() != nil {
		t.Fatal(s.State())
	}

	if _, err = s.Advance(ctx); err == nil {
		t.Fatal("expected an error")
	}
	if _, err = s.Submit(ctx, "q1", []string{"Y"}); err == nil {
		t.Fatal("expected an error")
	}

	o, err := s.Restart(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if o.State != HasPendingQuestion || s.Err() != nil {
		t.Fatal(JS(o))
	}
}

func TestSessionInitFailure(t *testing.T) {
	ctx := context.Background()
	e := &testEngine{initial: `[]`}
	s := newSession(t, e)
	e.initErr = errors.New("no rules")
	_, err := s.Restart(ctx)
	var ef *EngineFailure
	if !errors.As(err, &ef) || ef.Op != "init" {
		t.Fatalf("expected EngineFailure, got %v", err)
	}
	if s.State() != Failed {
		t.Fatal(s.State())
	}

	if _, err = NewSession(ctx, e, nil); err == nil {
		t.Fatal("expected an error")
	}
	if _, err = NewSession(ctx, nil, nil); err != ErrNoEngine {
		t.Fatal(err)
	}
}

func TestSessionMalformedFact(t *testing.T) {
	ctx := context.Background()
	e := &testEngine{
		initial: `[{"id":"q1","textKey":"q.one","type":"SINGLE","options":["a"]}]`,
	}
	s := newSession(t, e)
	_, err := s.Advance(ctx)
	var mf *MalformedFact
	if !errors.As(err, &mf) {
		t.Fatalf("expected MalformedFact, got %v", err)
	}
	if mf.Field != "optionIds" || mf.Role != QuestionRole {
		t.Fatal(mf)
	}
	if s.State() != Failed {
		t.Fatal(s.State())
	}
}

func TestStateText(t *testing.T) {
	var s State
	if err := s.UnmarshalText([]byte("finalized")); err != nil {
		t.Fatal(err)
	}
	if s != Finalized {
		t.Fatal(s)
	}
	if JS(Outcome{State: HasPendingQuestion}) != `{"state":"pending"}` {
		t.Fatal(JS(Outcome{State: HasPendingQuestion}))
	}
}
