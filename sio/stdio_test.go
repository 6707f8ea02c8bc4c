package sio

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/kb"
	"github.com/Comcast/sage/present"
	"github.com/Comcast/sage/text"
)

const rpgDir = "../examples/rpg"

func run(t *testing.T, name, input string) (*core.Outcome, string, *Stdio) {
	t.Helper()
	ctx := context.Background()

	k, err := kb.Load(filepath.Join(rpgDir, name))
	if err != nil {
		t.Fatal(err)
	}
	c, err := k.Prepare(ctx, nil, kb.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := c.NewSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	r, err := text.Load(filepath.Join(rpgDir, "strings.json"))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	s := NewStdio(r)
	s.In = strings.NewReader(input)
	s.Out = &out
	o, err := s.Run(ctx, sess)
	if err != nil {
		t.Fatal(err)
	}
	return o, out.String(), s
}

func TestStdioConsultation(t *testing.T) {
	for _, name := range []string{"rpg.kb.yaml", "rpg-datalog.kb.yaml"} {
		t.Run(name, func(t *testing.T) {
			o, out, _ := run(t, name, "3\n1 3\n")
			if o.State != core.Finalized {
				t.Fatal(o.State)
			}
			for _, want := range []string{
				"How do you like to fight?",
				"  3) With magic",
				"Choose one or more",
				"Found 2 recommendation(s):",
				"**Pyromancer**: master of fire.",
				"**Illusionist**",
				"Start Over?",
			} {
				if !strings.Contains(out, want) {
					t.Fatalf("missing %q in\n%s", want, out)
				}
			}
		})
	}
}

func TestStdioBadInput(t *testing.T) {
	o, out, _ := run(t, "rpg.kb.yaml", "\n7\n1,2\nsword\n2\n2\nagain\n")
	if o.State != core.Finalized {
		t.Fatal(o.State)
	}
	for _, want := range []string{
		"! " + present.SelectOne,
		"! no option 7",
		"! choose just one option",
		`! "sword" isn't an option number`,
		"Do you want an animal companion?",
		"**Archer**",
		"! Type r to start over or q to quit.",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in\n%s", want, out)
		}
	}
}

func TestStdioRestartQuit(t *testing.T) {
	o, out, _ := run(t, "rpg.kb.yaml", "1\nr\n2\nq\n1\n")
	if o.State != core.HasPendingQuestion || o.Question.ID != "companion" {
		t.Fatal(o.State)
	}
	if n := strings.Count(out, "How do you like to fight?"); n != 2 {
		t.Fatalf("asked %d times:\n%s", n, out)
	}
}

func TestStdioState(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "state.json")

	k, err := kb.Load(filepath.Join(rpgDir, "rpg.kb.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	c, err := k.Prepare(ctx, nil, kb.Options{})
	if err != nil {
		t.Fatal(err)
	}
	sess, err := c.NewSession(ctx)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	s := NewStdio(nil)
	s.In = strings.NewReader("1\nfacts\n")
	s.Out = &out
	s.Tags = true
	s.StateOutputFilename = filename
	if _, err = s.Run(ctx, sess); err != nil {
		t.Fatal(err)
	}

	js, err := os.ReadFile(filename)
	if err != nil {
		t.Fatal(err)
	}
	var facts []map[string]interface{}
	if err = json.Unmarshal(js, &facts); err != nil {
		t.Fatal(err)
	}
	if len(facts) != 3 {
		t.Fatal(string(js))
	}
	if !strings.Contains(out.String(), "facts [") {
		t.Fatal(out.String())
	}
	// Without text, keys are reported as missing.
	if !strings.Contains(out.String(), text.MissingPrefix+"q.armor") {
		t.Fatal(out.String())
	}
}

func TestParseSelection(t *testing.T) {
	q := &present.Question{
		Type:    core.Multi,
		Options: []present.Option{{ID: "A"}, {ID: "B"}, {ID: "C"}},
	}
	got, err := ParseSelection(" 1, 3 ", q)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got, ",") != "A,C" {
		t.Fatal(got)
	}
	if got, err = ParseSelection("", q); err != nil || len(got) != 0 {
		t.Fatal(got, err)
	}
	if _, err = ParseSelection("0", q); err == nil {
		t.Fatal("expected an error")
	}
}
