package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/text"
	. "github.com/Comcast/sage/util/testutil"
)

const rpgDir = "../examples/rpg"

func compile(t *testing.T, name string) *kb.Compiled {
	k, err := kb.Load(filepath.Join(rpgDir, name))
	if err != nil {
		t.Fatal(err)
	}
	c, err := k.Prepare(context.Background(), nil, kb.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func resources(t *testing.T) *text.Resources {
	r, err := text.Load(filepath.Join(rpgDir, "strings.json"))
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestAnalysis(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := resources(t)

	for _, name := range []string{"rpg.kb.yaml", "rpg-datalog.kb.yaml"} {
		t.Run(name, func(t *testing.T) {
			a, err := Analyze(ctx, compile(t, name), r, nil)
			if err != nil {
				t.Fatal(err)
			}

			if a.Start != "style" {
				t.Fatal(a.Start)
			}
			if a.Runs != 12 {
				t.Fatalf("runs: %d", a.Runs)
			}
			if a.Truncated {
				t.Fatal("truncated")
			}
			if len(a.Errors) != 0 {
				t.Fatal(a.Errors)
			}
			if got := JS(a.Questions); got != `["armor","companion","schools","style"]` {
				t.Fatal(got)
			}
			if n := len(a.Recommendations); n != 8 {
				t.Fatalf("recommendations: %d", n)
			}
			if len(a.MissingText) != 0 {
				t.Fatal(a.MissingText)
			}
			if n := len(a.Edges); n != 11 {
				t.Fatalf("edges: %d", n)
			}
			if n := len(a.Ends()); n != 8 {
				t.Fatalf("ends: %d", n)
			}

			n := a.Node("schools")
			if n == nil || n.Question == nil || n.Question.Type != core.Multi {
				t.Fatal(JS(n))
			}
		})
	}
}

func TestAnalysisInitialFacts(t *testing.T) {
	ctx := context.Background()

	a, err := Analyze(ctx, compile(t, "rpg.kb.yaml"), resources(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.InitialQuestions != 1 || a.Engine != "goja" || a.KB != "rpg" {
		t.Fatal(JS(a))
	}

	a, err = Analyze(ctx, compile(t, "rpg-datalog.kb.yaml"), resources(t), nil)
	if err != nil {
		t.Fatal(err)
	}
	if a.InitialQuestions != 0 || a.Engine != "mangle" {
		t.Fatal(JS(a))
	}
}

func TestAnalysisMissingText(t *testing.T) {
	a, err := Analyze(context.Background(), compile(t, "rpg.kb.yaml"), text.New(map[string]string{
		"q.style": "How do you like to fight?",
	}), nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range a.MissingText {
		if k == "q.style" {
			t.Fatal("q.style has text")
		}
	}
	want := map[string]bool{"opt.melee": true, "q.armor": true, "rec.paladin": true}
	for _, k := range a.MissingText {
		delete(want, k)
	}
	if len(want) != 0 {
		t.Fatalf("not reported: %v", want)
	}
}

func TestAnalysisLimits(t *testing.T) {
	ctx := context.Background()
	c := compile(t, "rpg.kb.yaml")

	a, err := Analyze(ctx, c, nil, &Options{MaxRuns: 3})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Truncated || a.Runs != 3 {
		t.Fatal(JS(a))
	}

	if a, err = Analyze(ctx, c, nil, &Options{MaxDepth: 1}); err != nil {
		t.Fatal(err)
	}
	if !a.Truncated {
		t.Fatal("expected truncation")
	}
	if len(a.Ends()) != 0 {
		t.Fatal(JS(a.Ends()))
	}

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	if _, err = Analyze(cctx, c, nil, nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestAnalysisFailure(t *testing.T) {
	k, err := kb.Parse([]byte(`
name: broken
facts:
  - {id: q1, textKey: q.one, type: SINGLE, options: [opt.yes], optionIds: [Y]}
rules:
  - name: bad
    code: |
      if (_.exists({questionId: "q1"})) { _.assert("oops"); }
`), "yaml")
	if err != nil {
		t.Fatal(err)
	}
	c, err := k.Prepare(context.Background(), nil, kb.Options{})
	if err != nil {
		t.Fatal(err)
	}

	a, err := Analyze(context.Background(), c, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Edges) != 1 || a.Edges[0].To != FailedNode {
		t.Fatal(JS(a.Edges))
	}
	if n := a.Node(FailedNode); n == nil || n.Error == "" {
		t.Fatal(JS(a.Nodes))
	}
	if len(a.Errors) != 1 {
		t.Fatal(a.Errors)
	}
}
