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

package core

import (
	"fmt"

	"go.uber.org/zap"
)

// State is where a Session is in its lifecycle.
type State int

const (
	// AwaitingQuestion is the state before the first Advance (and
	// right after Reset).
	AwaitingQuestion State = iota

	// HasPendingQuestion means some Question hasn't been answered.
	HasPendingQuestion

	// Finalized means nothing else needs asking.  Terminal until
	// Restart.
	Finalized

	// Failed follows an EngineFailure or a MalformedFact.  Only
	// Restart leaves this state.
	Failed
)

func (s State) String() string {
	switch s {
	case AwaitingQuestion:
		return "awaiting"
	case HasPendingQuestion:
		return "pending"
	case Finalized:
		return "finalized"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(bs []byte) error {
	for _, x := range []State{AwaitingQuestion, HasPendingQuestion, Finalized, Failed} {
		if x.String() == string(bs) {
			*s = x
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", bs)
}

// Outcome is the result of one cycle.
//
// When State is HasPendingQuestion, Question is set and
// Recommendations is nil.  When State is Finalized, Question is nil
// and Recommendations (which might be empty) are in store order.
type Outcome struct {
	State           State            `json:"state"`
	Question        *Question        `json:"question,omitempty"`
	Recommendations []Recommendation `json:"recommendations,omitempty"`

	// Answers are the answers in the store, in store order.
	Answers []Answer `json:"answers,omitempty"`
}

// Session drives an Engine.
type Session struct {
	engine     Engine
	classifier *Classifier
	store      *Store
	state      State
	last       *Outcome
	err        error

	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// NewSession asks the engine for its initial facts and returns a
// Session in state AwaitingQuestion.
//
// A nil Classifier means DefaultClassifier.
func NewSession(ctx Context, e Engine, c *Classifier) (*Session, error) {
	if e == nil {
		return nil, ErrNoEngine
	}
	if c == nil {
		c = DefaultClassifier
	}
	initial, err := e.Init(ctx)
	if err != nil {
		return nil, &EngineFailure{Op: "init", Err: err}
	}
	return &Session{
		engine:     e,
		classifier: c,
		store:      NewStore(initial),
		state:      AwaitingQuestion,
		Logger:     zap.NewNop(),
	}, nil
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Last returns the most recent Outcome, which is nil before the first
// successful Advance and after a failure.
func (s *Session) Last() *Outcome {
	return s.last
}

// Err returns the error that put the session in Failed, if any.
func (s *Session) Err() error {
	return s.err
}

// Store gives access to working memory.  The session doesn't expect
// anybody other than the engine to change it.
func (s *Session) Store() *Store {
	return s.store
}

// Classifier returns the session's Classifier.
func (s *Session) Classifier() *Classifier {
	return s.classifier
}

func (s *Session) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Session) fail(err error) error {
	s.state = Failed
	s.last = nil
	s.err = err
	s.log().Warn("session failed", zap.Error(err))
	return err
}

// Advance fires the engine once and then looks for a pending
// question.
//
// The first Question (in store order) without a corresponding Answer
// is the pending question.  If there isn't one, the session is
// Finalized and the Outcome has all the Recommendations.
//
// Advance on a Finalized session returns the same Outcome without
// firing.  Advance on a Failed session returns a *SessionClosed.
func (s *Session) Advance(ctx Context) (*Outcome, error) {
	switch s.state {
	case Finalized:
		return s.last, nil
	case Failed:
		return nil, &SessionClosed{State: s.state}
	}

	if err := s.engine.Fire(ctx, s.store); err != nil {
		return nil, s.fail(&EngineFailure{Op: "fire", Err: err})
	}

	facts := s.store.Facts()
	cs := make([]*Classified, 0, len(facts))
	for _, f := range facts {
		c, err := s.classifier.Classify(f)
		if err != nil {
			return nil, s.fail(err)
		}
		cs = append(cs, c)
	}

	var (
		answered = make(map[string]bool)
		answers  []Answer
	)
	for _, c := range cs {
		if c.Role == AnswerRole {
			answered[c.Answer.QuestionID] = true
			answers = append(answers, *c.Answer)
		}
	}

	o := &Outcome{Answers: answers}
	for _, c := range cs {
		if c.Role == QuestionRole && !answered[c.Question.ID] {
			o.State = HasPendingQuestion
			o.Question = c.Question
			break
		}
	}

	if o.Question == nil {
		o.State = Finalized
		o.Recommendations = make([]Recommendation, 0, 4)
		for _, c := range cs {
			if c.Role == RecommendationRole {
				o.Recommendations = append(o.Recommendations, *c.Recommendation)
			}
		}
	}

	s.state = o.State
	s.last = o
	s.err = nil

	if ce := s.log().Check(zap.DebugLevel, "advanced"); ce != nil {
		fields := []zap.Field{
			zap.Int("facts", len(facts)),
			zap.Stringer("state", o.State),
		}
		if o.Question != nil {
			fields = append(fields, zap.String("question", o.Question.ID))
		} else {
			fields = append(fields, zap.Int("recommendations", len(o.Recommendations)))
		}
		ce.Write(fields...)
	}

	return o, nil
}

// Submit records an answer and then Advances.
//
// Nothing checks that the question is pending or that the options
// belong to it.  That's up to the engine's rules.
func (s *Session) Submit(ctx Context, questionID string, selected []string) (*Outcome, error) {
	if len(selected) == 0 {
		return nil, &InvalidAnswer{QuestionID: questionID}
	}
	switch s.state {
	case Finalized, Failed:
		return nil, &SessionClosed{State: s.state}
	}
	s.store.Insert(s.classifier.AnswerFact(questionID, selected))
	s.log().Debug("submitted",
		zap.String("question", questionID),
		zap.Strings("selected", selected))
	return s.Advance(ctx)
}

// Restart resets working memory to the engine's initial facts and
// Advances.  Works in any state.
func (s *Session) Restart(ctx Context) (*Outcome, error) {
	initial, err := s.engine.Init(ctx)
	if err != nil {
		return nil, s.fail(&EngineFailure{Op: "init", Err: err})
	}
	s.store.Reset(initial)
	s.state = AwaitingQuestion
	s.last = nil
	s.err = nil
	s.log().Debug("restarted", zap.Int("facts", len(initial)))
	return s.Advance(ctx)
}
