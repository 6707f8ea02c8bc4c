/* Copyright 2018 Comcast Cable Communications Management, LLC
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

// Package tools has utilities for checking and documenting knowledge
// bases.
package tools

import (
	"context"
	"sort"
	"strings"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/text"
)

const (
	// DefaultMaxRuns bounds the number of sessions Analyze runs.
	DefaultMaxRuns = 256

	// DefaultMaxDepth bounds the number of answers on a path.
	DefaultMaxDepth = 32

	// FailedNode is the ID of the node for any path that ends in a
	// failure.
	FailedNode = "failed"
)

// Options for Analyze.
type Options struct {
	MaxRuns  int
	MaxDepth int
}

// Node is a question or an end of a consultation.
type Node struct {
	ID string `json:"id"`

	// Question is nil for ends.
	Question *core.Question `json:"question,omitempty"`

	// Recommendations are the keys at an end.
	Recommendations []string `json:"recommendations,omitempty"`

	// Error is set for the FailedNode.
	Error string `json:"error,omitempty"`
}

// IsEnd reports whether the node isn't a question.
func (n *Node) IsEnd() bool {
	return n.Question == nil
}

// Edge says that answering From with Options led to To.
type Edge struct {
	From    string   `json:"from"`
	Options []string `json:"options"`
	To      string   `json:"to"`
}

// Analysis reports what a knowledge base's initial facts contain and
// what running it with every answer (within limits) does.
type Analysis struct {
	KB     string `json:"kb"`
	Engine string `json:"engine"`

	// Counts of initial facts by role.
	InitialQuestions       int `json:"initialQuestions"`
	InitialAnswers         int `json:"initialAnswers"`
	InitialRecommendations int `json:"initialRecommendations"`
	InitialOther           int `json:"initialOther"`

	Runs      int  `json:"runs"`
	Truncated bool `json:"truncated,omitempty"`

	// Start is the ID of the node the first Advance reaches.
	Start string  `json:"start"`
	Nodes []*Node `json:"nodes"`
	Edges []*Edge `json:"edges"`

	// Questions are the IDs of the questions seen, sorted.
	Questions []string `json:"questions"`

	// Recommendations are the keys of the recommendations seen,
	// sorted.
	Recommendations []string `json:"recommendations"`

	// MissingText are the text keys seen that have no text.
	MissingText []string `json:"missingText,omitempty"`

	Errors []string `json:"errors,omitempty"`
}

// Node returns the node with the given ID.
func (a *Analysis) Node(id string) *Node {
	for _, n := range a.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Ends returns the nodes that aren't questions.
func (a *Analysis) Ends() []*Node {
	var acc []*Node
	for _, n := range a.Nodes {
		if n.IsEnd() {
			acc = append(acc, n)
		}
	}
	return acc
}

// EndID is the node ID for the given recommendation keys.
func EndID(keys []string) string {
	return "end:" + strings.Join(keys, ",")
}

// choices returns the selections Analyze tries for a question: each
// option alone and, for a multi question, all of them together.
func choices(q *core.Question) [][]string {
	acc := make([][]string, 0, len(q.OptionIDs)+1)
	for _, id := range q.OptionIDs {
		acc = append(acc, []string{id})
	}
	if q.Type == core.Multi && 1 < len(q.OptionIDs) {
		all := make([]string, len(q.OptionIDs))
		copy(all, q.OptionIDs)
		acc = append(acc, all)
	}
	return acc
}

type path struct {
	answers []core.Answer
	from    string
}

type analyzer struct {
	a         *Analysis
	c         *kb.Compiled
	r         *text.Resources
	keys      map[string]bool
	questions map[string]bool
	recs      map[string]bool
	edges     map[string]bool
}

// Analyze looks at the KB's initial facts and then explores the KB by
// running sessions, breadth first, with every choice for every
// question it encounters.
//
// Engine failures and invalid answers are reported in the Analysis.
// The error is only for a cancelled context or a KB that can't start
// a session.
func Analyze(ctx context.Context, c *kb.Compiled, r *text.Resources, opts *Options) (*Analysis, error) {
	if opts == nil {
		opts = &Options{}
	}
	maxRuns, maxDepth := opts.MaxRuns, opts.MaxDepth
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	z := &analyzer{
		a: &Analysis{
			KB:     c.Name,
			Engine: c.KB.Engine,
		},
		c:         c,
		r:         r,
		keys:      make(map[string]bool),
		questions: make(map[string]bool),
		recs:      make(map[string]bool),
		edges:     make(map[string]bool),
	}

	z.initial()

	queue := []*path{{}}
	for 0 < len(queue) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if maxRuns <= z.a.Runs {
			z.a.Truncated = true
			break
		}
		p := queue[0]
		queue = queue[1:]

		o, err := z.run(ctx, p)
		if err != nil {
			if p.from == "" {
				return nil, err
			}
			z.a.Errors = append(z.a.Errors, err.Error())
			continue
		}

		var to string
		switch {
		case o == nil:
			to = FailedNode
		case o.State == core.HasPendingQuestion:
			to = o.Question.ID
		default:
			to = EndID(keys(o.Recommendations))
		}

		if p.from == "" {
			z.a.Start = to
		} else {
			last := p.answers[len(p.answers)-1]
			z.edge(p.from, last.Selected, to)
		}

		if o == nil || o.State != core.HasPendingQuestion {
			continue
		}
		if maxDepth <= len(p.answers) {
			z.a.Truncated = true
			continue
		}
		for _, selected := range choices(o.Question) {
			next := make([]core.Answer, len(p.answers), len(p.answers)+1)
			copy(next, p.answers)
			next = append(next, core.Answer{
				QuestionID: o.Question.ID,
				Selected:   selected,
			})
			queue = append(queue, &path{answers: next, from: o.Question.ID})
		}
	}

	z.finish()

	return z.a, nil
}

// initial classifies the initial facts.
func (z *analyzer) initial() {
	for _, f := range z.c.KB.InitialFacts() {
		cl, err := z.c.Classifier.Classify(f)
		if err != nil {
			z.a.Errors = append(z.a.Errors, "initial fact: "+err.Error())
			continue
		}
		switch cl.Role {
		case core.QuestionRole:
			z.a.InitialQuestions++
			z.question(cl.Question)
		case core.AnswerRole:
			z.a.InitialAnswers++
		case core.RecommendationRole:
			z.a.InitialRecommendations++
			z.key(cl.Recommendation.SystemKey)
		default:
			z.a.InitialOther++
		}
	}
}

// run replays the path in a new session.  A nil Outcome means the
// session failed, in which case the FailedNode has the error.
func (z *analyzer) run(ctx context.Context, p *path) (*core.Outcome, error) {
	z.a.Runs++

	s, err := z.c.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.Advance(ctx)
	for _, ans := range p.answers {
		if err != nil {
			break
		}
		o, err = s.Submit(ctx, ans.QuestionID, ans.Selected)
	}
	if err != nil {
		if core.IsFatal(err) {
			z.failed(err)
			return nil, nil
		}
		return nil, err
	}

	z.node(o)
	return o, nil
}

func (z *analyzer) failed(err error) {
	if n := z.a.Node(FailedNode); n != nil {
		return
	}
	z.a.Nodes = append(z.a.Nodes, &Node{
		ID:    FailedNode,
		Error: err.Error(),
	})
	z.a.Errors = append(z.a.Errors, err.Error())
}

func (z *analyzer) node(o *core.Outcome) {
	var n *Node
	switch o.State {
	case core.HasPendingQuestion:
		z.question(o.Question)
		if z.a.Node(o.Question.ID) != nil {
			return
		}
		n = &Node{
			ID:       o.Question.ID,
			Question: o.Question,
		}
	default:
		ks := keys(o.Recommendations)
		for _, k := range ks {
			z.recs[k] = true
			z.key(k)
		}
		id := EndID(ks)
		if z.a.Node(id) != nil {
			return
		}
		n = &Node{
			ID:              id,
			Recommendations: ks,
		}
	}
	z.a.Nodes = append(z.a.Nodes, n)
}

func (z *analyzer) question(q *core.Question) {
	z.questions[q.ID] = true
	z.key(q.TextKey)
	for _, k := range q.Options {
		z.key(k)
	}
}

func (z *analyzer) key(k string) {
	z.keys[k] = true
}

func (z *analyzer) edge(from string, options []string, to string) {
	id := from + "|" + strings.Join(options, ",") + "|" + to
	if z.edges[id] {
		return
	}
	z.edges[id] = true
	z.a.Edges = append(z.a.Edges, &Edge{
		From:    from,
		Options: options,
		To:      to,
	})
}

func (z *analyzer) finish() {
	z.a.Questions = sortedKeys(z.questions)
	z.a.Recommendations = sortedKeys(z.recs)
	for _, k := range sortedKeys(z.keys) {
		if !z.r.Has(k) {
			z.a.MissingText = append(z.a.MissingText, k)
		}
	}
}

func keys(rs []core.Recommendation) []string {
	acc := make([]string, len(rs))
	for i, r := range rs {
		acc[i] = r.SystemKey
	}
	return acc
}

// sortedKeys converts the keys from a map into a sorted slice.
func sortedKeys(m map[string]bool) []string {
	acc := make([]string, 0, len(m))
	for key := range m {
		acc = append(acc, key)
	}
	sort.Strings(acc)
	return acc
}
