/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
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

import (
	"fmt"
	"io"
	"strings"

	"github.com/Comcast/sage/text"
)

type MermaidOpts struct {
	// ShowText labels questions and ends with their text rather
	// than their keys.
	ShowText bool `json:"showText"`

	// EndFill is the fill color of for end nodes.  Does not apply
	// if EndClass is set.
	EndFill string `json:"endFill,omitempty"`

	// EndClass will be the CSS class for end nodes.
	EndClass string `json:"endClass,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the explored questions.
func Mermaid(a *Analysis, w io.Writer, r *text.Resources, opts *MermaidOpts) error {

	if opts == nil {
		opts = &MermaidOpts{
			ShowText: true,
			EndFill:  "#bcf2db",
		}
	}

	label := func(key string) string {
		if opts.ShowText {
			key = short(r, key)
		}
		return strings.Replace(key, `"`, `'`, -1)
	}

	fmt.Fprintf(w, "graph TB\n")

	nids := make(map[string]string, len(a.Nodes))
	for i, n := range a.Nodes {
		nid := fmt.Sprintf("n%d", i+1)
		nids[n.ID] = nid

		switch {
		case n.ID == FailedNode:
			fmt.Fprintf(w, "  %s{{\"failed\"}}\n", nid)
		case n.IsEnd():
			ls := make([]string, len(n.Recommendations))
			for i, k := range n.Recommendations {
				ls[i] = label(k)
			}
			if len(ls) == 0 {
				ls = []string{"no recommendations"}
			}
			fmt.Fprintf(w, "  %s[\"%s\"]\n", nid, strings.Join(ls, "<br/>"))
			switch {
			case opts.EndClass != "":
				fmt.Fprintf(w, "  class %s %s\n", nid, opts.EndClass)
			case opts.EndFill != "":
				fmt.Fprintf(w, "  style %s fill:%s\n", nid, opts.EndFill)
			}
		default:
			fmt.Fprintf(w, "  %s(\"%s\")\n", nid, label(n.Question.TextKey))
		}
	}

	for _, e := range a.Edges {
		from, have := nids[e.From]
		if !have {
			return fmt.Errorf("edge from unknown node '%s'", e.From)
		}
		to, have := nids[e.To]
		if !have {
			return fmt.Errorf("edge to unknown node '%s'", e.To)
		}
		fmt.Fprintf(w, "  %s -- \"%s\" --> %s\n", from, strings.Join(e.Options, ","), to)
	}

	fmt.Fprintf(w, "\n")

	return nil
}
