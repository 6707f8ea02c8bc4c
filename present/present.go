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

// Package present turns session outcomes into views with resolved
// text.
//
// Every front end (console, terminal UI, HTTP, WebSockets, MQTT)
// renders a View.
package present

import (
	"errors"
	"fmt"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/text"
)

type Kind string

const (
	KindQuestion        Kind = "question"
	KindRecommendations Kind = "recommendations"
	KindEmpty           Kind = "empty"
	KindFailed          Kind = "failed"
)

// Actions a front end can offer.
const (
	ActionSubmit  = "submit"
	ActionRestart = "restart"
)

const (
	// NoResults is the message for a session that finished without
	// any recommendations.
	NoResults = "I don't know what else to ask and found no results."

	// SelectOne is the notice for an answer without any options.
	SelectOne = "Please select at least one option."
)

// FoundMessage is the headline for a list of recommendations.
func FoundMessage(n int) string {
	return fmt.Sprintf("Found %d recommendation(s):", n)
}

type Option struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

type Question struct {
	ID      string            `json:"id"`
	Key     string            `json:"key"`
	Text    string            `json:"text"`
	Type    core.QuestionType `json:"type"`
	Options []Option          `json:"options"`
}

// Multi reports whether more than one option may be selected.
func (q *Question) Multi() bool {
	return q.Type == core.Multi
}

type Item struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// View is a presentation state.
type View struct {
	Kind            Kind      `json:"kind"`
	Message         string    `json:"message"`
	Question        *Question `json:"question,omitempty"`
	Recommendations []Item    `json:"recommendations,omitempty"`
	Actions         []string  `json:"actions"`

	// Notice reports a recoverable problem (like an empty selection)
	// alongside the current state.
	Notice string `json:"notice,omitempty"`
}

// Render makes a View.
//
// A fatal error (see core.IsFatal), or any error without an outcome,
// results in a failed view that only offers restart.  Any other error becomes a
// Notice on the view of the outcome, which should be the session's
// last good outcome.
func Render(o *core.Outcome, err error, r *text.Resources) *View {
	var notice string
	if err != nil {
		var ia *core.InvalidAnswer
		switch {
		case errors.As(err, &ia):
			notice = SelectOne
		case core.IsFatal(err) || o == nil:
			return Failed(err)
		default:
			notice = err.Error()
		}
	}
	if o == nil {
		return &View{
			Kind:    KindFailed,
			Message: "no outcome",
			Actions: []string{ActionRestart},
			Notice:  notice,
		}
	}

	v := renderOutcome(o, r)
	v.Notice = notice
	return v
}

// Failed makes the view for a failed session.
func Failed(err error) *View {
	return &View{
		Kind:    KindFailed,
		Message: err.Error(),
		Actions: []string{ActionRestart},
	}
}

func renderOutcome(o *core.Outcome, r *text.Resources) *View {
	if o.Question != nil {
		q := o.Question
		qv := &Question{
			ID:      q.ID,
			Key:     q.TextKey,
			Text:    r.Resolve(q.TextKey),
			Type:    q.Type,
			Options: make([]Option, len(q.Options)),
		}
		for i, key := range q.Options {
			qv.Options[i] = Option{
				ID:   q.OptionIDs[i],
				Key:  key,
				Text: r.Resolve(key),
			}
		}
		return &View{
			Kind:     KindQuestion,
			Message:  qv.Text,
			Question: qv,
			Actions:  []string{ActionSubmit, ActionRestart},
		}
	}

	if len(o.Recommendations) == 0 {
		return &View{
			Kind:    KindEmpty,
			Message: NoResults,
			Actions: []string{ActionRestart},
		}
	}

	items := make([]Item, len(o.Recommendations))
	for i, rec := range o.Recommendations {
		items[i] = Item{
			Key:  rec.SystemKey,
			Text: r.Resolve(rec.SystemKey),
		}
	}
	return &View{
		Kind:            KindRecommendations,
		Message:         FoundMessage(len(items)),
		Recommendations: items,
		Actions:         []string{ActionRestart},
	}
}
