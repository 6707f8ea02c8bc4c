package tools

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestDot(t *testing.T) {
	a, err := Analyze(context.Background(), compile(t, "rpg.kb.yaml"), resources(t), nil)
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := Dot(a, &out, resources(t), "armor"); err != nil {
		t.Fatal(err)
	}

	s := out.String()
	if !strings.HasPrefix(s, "digraph G {") || !strings.HasSuffix(s, "}\n") {
		t.Fatal(s)
	}
	for _, want := range []string{
		`"style" -> "armor" [ label = <MELEE> ]`,
		`"schools" -> "end:rec.pyromancer,rec.cleric,rec.illusionist" [ label = <FIRE,HEAL,ILLUSION> ]`,
		`How do you like to fight?`,
		`color="red"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in\n%s", want, s)
		}
	}
}

func TestShort(t *testing.T) {
	r := resources(t)
	if got := short(r, "rec.sword"); got != "Magic Sword" {
		t.Fatal(got)
	}
	if got := short(r, "rec.rogue"); got != "**Rogue**: quick, quiet, and lightly armored." {
		t.Fatal(got)
	}
	if got := short(r, "rec.nope"); got != "rec.nope" {
		t.Fatal(got)
	}
}
