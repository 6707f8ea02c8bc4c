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

// Package sio couples a session to a line-oriented console.
package sio

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/present"
	"github.com/Comcast/sage/text"

	"go.uber.org/zap"
)

// Stdio runs a session with a reader for input and a writer for
// output.
//
// Input lines:
//
//	1         select option 1
//	1,3       select options 1 and 3 (multi-select questions)
//	1 3       same
//	r         restart (also "restart")
//	q         quit (also "quit")
//	facts     print working memory as JSON
//
// Anything else gets a complaint and the same prompt again.
type Stdio struct {
	In  io.Reader
	Out io.Writer

	Resources *text.Resources

	// Timestamps prepends a timestamp to each output line.
	Timestamps bool

	// EchoInput writes input lines (prepended with "input") to
	// the output.
	EchoInput bool

	// Tags prefixes tags indicating type of output ("question",
	// "result", "notice").
	Tags bool

	// PadTags adds some padding to tags.
	PadTags bool

	// JSONStore, if its StateOutputFilename is set, gets working
	// memory after every cycle.
	JSONStore

	Logger *zap.Logger
}

// NewStdio creates a new Stdio.
//
// In and Out are initialized with os.Stdin and os.Stdout
// respectively.
func NewStdio(r *text.Resources) *Stdio {
	return &Stdio{
		In:        os.Stdin,
		Out:       os.Stdout,
		Resources: r,
		Logger:    zap.NewNop(),
	}
}

func (s *Stdio) printf(tag, format string, args ...interface{}) {
	if s.PadTags {
		tag = fmt.Sprintf("% 10s", tag)
	}
	if s.Tags {
		format = tag + " " + format
	}
	if s.Timestamps {
		ts := fmt.Sprintf("%-31s", time.Now().UTC().Format(time.RFC3339Nano))
		format = ts + " " + format
	}
	fmt.Fprintf(s.Out, format, args...)
}

// Show writes the view.
func (s *Stdio) Show(v *present.View) {
	if v.Notice != "" {
		s.printf("notice", "! %s\n", v.Notice)
	}
	switch v.Kind {
	case present.KindQuestion:
		q := v.Question
		s.printf("question", "%s\n", v.Message)
		for i, o := range q.Options {
			s.printf("question", "  %d) %s\n", i+1, o.Text)
		}
		if q.Multi() {
			s.printf("prompt", "Choose one or more (like 1,3), r to restart, q to quit: ")
		} else {
			s.printf("prompt", "Choose one (1-%d), r to restart, q to quit: ", len(q.Options))
		}
	case present.KindRecommendations:
		s.printf("result", "%s\n", v.Message)
		for _, item := range v.Recommendations {
			s.printf("result", "  - %s\n", item.Text)
		}
		s.printf("prompt", "Start Over? (r to restart, q to quit): ")
	default:
		s.printf("result", "%s\n", v.Message)
		s.printf("prompt", "Start Over? (r to restart, q to quit): ")
	}
}

// ParseSelection turns input like "1,3" into option ids.  Options are
// numbered from one.  An empty line gives an empty selection.
func ParseSelection(line string, q *present.Question) ([]string, error) {
	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	if 1 < len(fields) && !q.Multi() {
		return nil, fmt.Errorf("choose just one option")
	}
	acc := make([]string, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("%q isn't an option number", f)
		}
		if n < 1 || len(q.Options) < n {
			return nil, fmt.Errorf("no option %d", n)
		}
		acc = append(acc, q.Options[n-1].ID)
	}
	return acc, nil
}

// Run advances the session and then takes input until "quit" or the
// end of input.  Returns the last outcome.
func (s *Stdio) Run(ctx context.Context, sess *core.Session) (*core.Outcome, error) {
	o, err := sess.Advance(ctx)
	view := present.Render(o, err, s.Resources)
	if err := s.Update(sess.Store()); err != nil {
		return o, err
	}
	s.Show(view)

	in := bufio.NewReader(s.In)
	for {
		if err := ctx.Err(); err != nil {
			return sess.Last(), err
		}
		line, rerr := in.ReadString('\n')
		if rerr != nil && rerr != io.EOF {
			return sess.Last(), rerr
		}
		if rerr == io.EOF && line == "" {
			fmt.Fprintln(s.Out)
			return sess.Last(), nil
		}
		if s.EchoInput {
			s.printf("input", "%s\n", strings.TrimRight(line, "\r\n"))
		}
		line = strings.TrimSpace(line)

		switch strings.ToLower(line) {
		case "q", "quit":
			return sess.Last(), nil
		case "r", "restart":
			o, err = sess.Restart(ctx)
			view = present.Render(o, err, s.Resources)
		case "facts":
			s.printf("facts", "%s\n", JSON(sess.Store().Facts()))
			s.Show(view)
			continue
		default:
			if view.Kind != present.KindQuestion {
				v := *view
				v.Notice = "Type r to start over or q to quit."
				s.Show(&v)
				continue
			}
			selected, perr := ParseSelection(line, view.Question)
			if perr != nil {
				v := *view
				v.Notice = perr.Error()
				s.Show(&v)
				continue
			}
			o, err = sess.Submit(ctx, view.Question.ID, selected)
			if o == nil && !core.IsFatal(err) {
				o = sess.Last()
			}
			view = present.Render(o, err, s.Resources)
		}

		if err != nil {
			s.Logger.Debug("cycle", zap.Error(err))
		}
		if err := s.Update(sess.Store()); err != nil {
			return o, err
		}
		s.Show(view)
		// The notice is for this prompt only.
		view.Notice = ""

		if rerr == io.EOF {
			fmt.Fprintln(s.Out)
			return sess.Last(), nil
		}
	}
}
