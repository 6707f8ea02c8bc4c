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

package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"html"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/text"
)

// Dot makes a Graphviz dot file for the explored questions.
//
// Labels use the given Resources, which can be nil.  If current isn't
// zero, that node is red.
func Dot(a *Analysis, w io.Writer, r *text.Resources, current string) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(w, format+"\n", args...)
	}

	f("digraph G {")
	f(`  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]`)

	for _, n := range a.Nodes {
		var (
			label     string
			shape     = "record"
			style     = "filled"
			color     = "black"
			fillcolor = "#99ddc8"
		)
		switch {
		case n.ID == FailedNode:
			label = "failed<BR/><FONT POINT-SIZE='8'>" + html.EscapeString(n.Error) + "</FONT>"
			fillcolor = "#f9d38b"
			style += ",dashed"
		case n.IsEnd():
			shape = "note"
			fillcolor = "#52aa5e"
			if len(n.Recommendations) == 0 {
				label = "no recommendations"
			}
			for i, k := range n.Recommendations {
				if 0 < i {
					label += `<BR ALIGN="LEFT"/>`
				}
				label += html.EscapeString(short(r, k))
			}
		default:
			label = html.EscapeString(n.ID) +
				"<BR/><FONT POINT-SIZE='8'>" + html.EscapeString(short(r, n.Question.TextKey)) + "</FONT>"
			if n.Question.Type == core.Multi {
				fillcolor = "#2d93ad"
			}
		}
		if n.ID == a.Start {
			style += ",bold"
		}
		if n.ID == current {
			color = "red"
			fillcolor = "#f98b8b"
		}
		f("  %q [shape=\"%s\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]",
			n.ID, shape, style, color, fillcolor, label)
	}

	for _, e := range a.Edges {
		f("  %q -> %q [ label = <%s> ]", e.From, e.To, html.EscapeString(strings.Join(e.Options, ",")))
	}

	f("}")
	return nil
}

// short returns the text for the key up to the first sentence (or
// the key itself if there's no text).
func short(r *text.Resources, key string) string {
	if !r.Has(key) {
		return key
	}
	s := r.Resolve(key)
	if 40 < len(s) {
		if period := strings.Index(s, ". "); 0 < period {
			s = s[0 : period+1]
		}
	}
	return s
}

// PNG generates a PNG image based on output from Dot.
//
// This function with write two files: basename.dot and basename.png,
// where the basename is the given string.
func PNG(a *Analysis, r *text.Resources, basename string) (string, error) {
	dotname := basename + ".dot"
	pngname := basename + ".png"

	dotfile, err := os.Create(dotname)
	if err != nil {
		return pngname, err
	}
	if err := Dot(a, dotfile, r, ""); err != nil {
		dotfile.Close()
		return pngname, err
	}
	if err = dotfile.Close(); err != nil {
		return pngname, err
	}
	if err := exec.Command("dot", "-Tpng", "-o", pngname, dotname).Run(); err != nil {
		return pngname, err
	}
	return pngname, nil
}
