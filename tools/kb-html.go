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

package tools

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"io"

	"github.com/Comcast/sage/engines/goja"
	"github.com/Comcast/sage/engines/mangle"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/text"
	. "github.com/Comcast/sage/util/testutil"

	md "github.com/russross/blackfriday/v2"
)

// RenderKBHTML writes an HTML fragment that documents the KB: its
// doc, initial facts, rules, and text.
func RenderKBHTML(k *kb.KB, r *text.Resources, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}
	esc := html.EscapeString

	f(`<div class="kbDoc doc">%s</div>`, md.Run([]byte(k.Doc)))

	f(`<table class="kbInfo">`)
	f(`<tr><td>name</td><td><code>%s</code></td></tr>`, esc(k.Name))
	if k.Version != "" {
		f(`<tr><td>version</td><td><code>%s</code></td></tr>`, esc(k.Version))
	}
	f(`<tr><td>engine</td><td><code>%s</code></td></tr>`, esc(k.Engine))
	f(`</table>`)

	if 0 < len(k.Facts) {
		f(`<h2>Initial facts</h2>`)
		f(`<div class="facts"><table>`)
		for i, fact := range k.Facts {
			f(`<tr class="fact"><td><div class="factNum">%d</div></td><td><code>%s</code></td></tr>`, i, esc(JS(fact)))
		}
		f(`</table></div>`)
	}

	switch k.Engine {
	case "goja", "ecmascript":
		rules, err := goja.AsRules(k.Rules)
		if err != nil {
			return err
		}
		if 0 < len(rules) {
			f(`<h2>Rules</h2>`)
			f(`<div class="rules"><table>`)
			for i, rule := range rules {
				name := rule.Name
				if name == "" {
					name = fmt.Sprintf("rule%d", i)
				}
				f(`<tr class="rule"><td><span id="%s" class="ruleName">%s</span></td><td>`, esc(name), esc(name))
				if rule.Doc != "" {
					f(`<div class="ruleDoc doc">%s</div>`, md.Run([]byte(rule.Doc)))
				}
				if 0 < len(rule.Requires) {
					f(`<div>requires: <code>%s</code></div>`, esc(JS(rule.Requires)))
				}
				f(`<div class="code"><pre>%s</pre></div>`, esc(rule.Code))
				f(`</td></tr>`)
			}
			f(`</table></div>`)
		}
		if 0 < len(k.Libraries) {
			f(`<h2>Libraries</h2>`)
			f(`<div class="libraries"><table>`)
			for _, name := range sortedStrings(k.Libraries) {
				f(`<tr class="library"><td><span class="libraryName">%s</span></td>`, esc(name))
				f(`<td><div class="code"><pre>%s</pre></div></td></tr>`, esc(k.Libraries[name]))
			}
			f(`</table></div>`)
		}
	case "mangle", "datalog":
		srcs, err := mangle.AsSources(k.Rules, k.Dir)
		if err != nil {
			return err
		}
		if 0 < len(srcs) {
			f(`<h2>Program</h2>`)
			for _, src := range srcs {
				f(`<div class="code"><pre>%s</pre></div>`, esc(src))
			}
		}
	}

	if keys := r.Keys(); 0 < len(keys) {
		f(`<h2>Text</h2>`)
		f(`<div class="text"><table>`)
		for _, key := range keys {
			f(`<tr><td><code>%s</code></td><td>%s</td></tr>`, esc(key), r.HTML(key))
		}
		f(`</table></div>`)
	}

	return nil
}

func sortedStrings(m map[string]string) []string {
	set := make(map[string]bool, len(m))
	for k := range m {
		set[k] = true
	}
	return sortedKeys(set)
}

// RenderKBPage writes a complete HTML page for the KB.  If the
// Analysis isn't nil, the page includes a Mermaid graph of the
// explored questions.
func RenderKBPage(k *kb.KB, r *text.Resources, a *Analysis, out io.Writer, cssFiles []string) error {

	if cssFiles == nil {
		cssFiles = []string{"/static/kb-html.css"}
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s</title>
`, html.EscapeString(k.Name))

	if a != nil {
		fmt.Fprintf(out, `
  <script src="https://cdn.jsdelivr.net/npm/mermaid@10/dist/mermaid.min.js"></script>
  <script>mermaid.initialize({startOnLoad: true});</script>
`)
	}

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, "  <link href=\"%s\" rel=\"stylesheet\">\n", cssFile)
	}

	fmt.Fprintf(out, `
  </head>
  <body>
    <h1>%s</h1>
`, html.EscapeString(k.Name))

	if a != nil {
		var g bytes.Buffer
		if err := Mermaid(a, &g, r, nil); err != nil {
			return err
		}
		fmt.Fprintf(out, "<pre class=\"mermaid\">\n%s</pre>\n", html.EscapeString(g.String()))
		if 0 < len(a.MissingText) {
			fmt.Fprintf(out, "<div class=\"missingText\">missing text: <code>%s</code></div>\n",
				html.EscapeString(JS(a.MissingText)))
		}
	}

	if err := RenderKBHTML(k, r, out); err != nil {
		return err
	}

	fmt.Fprintf(out, `
  </body>
</html>
`)

	return nil
}

// ReadAndRenderKBPage loads and compiles the KB file, analyzes it if
// includeGraph, and renders its page.  The KB's own text is merged
// with r.
func ReadAndRenderKBPage(ctx context.Context, filename string, r *text.Resources, cssFiles []string, out io.Writer, includeGraph bool) error {
	k, err := kb.Load(filename)
	if err != nil {
		return err
	}
	r = k.Resources(r)

	var a *Analysis
	if includeGraph {
		c, err := k.Prepare(ctx, nil, kb.Options{})
		if err != nil {
			return err
		}
		if a, err = Analyze(ctx, c, r, nil); err != nil {
			return err
		}
	}

	return RenderKBPage(k, r, a, out, cssFiles)
}
