package kb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/text"
	"github.com/stretchr/testify/require"
)

const rpgDir = "../examples/rpg"

// play answers each question with the given options, in order, and
// returns the final outcome.
func play(t *testing.T, c *Compiled, answers map[string][]string) *core.Outcome {
	ctx := context.Background()
	s, err := c.NewSession(ctx)
	require.NoError(t, err)
	o, err := s.Advance(ctx)
	require.NoError(t, err)
	for i := 0; o.State == core.HasPendingQuestion; i++ {
		require.Less(t, i, 10, "too many questions")
		opts, have := answers[o.Question.ID]
		require.True(t, have, "unexpected question %s", o.Question.ID)
		o, err = s.Submit(ctx, o.Question.ID, opts)
		require.NoError(t, err)
	}
	return o
}

func keys(o *core.Outcome) []string {
	acc := make([]string, len(o.Recommendations))
	for i, r := range o.Recommendations {
		acc[i] = r.SystemKey
	}
	return acc
}

func TestRPG(t *testing.T) {
	ctx := context.Background()
	for _, name := range []string{"rpg.kb.yaml", "rpg-datalog.kb.yaml"} {
		t.Run(name, func(t *testing.T) {
			kb, err := Load(filepath.Join(rpgDir, name))
			require.NoError(t, err)
			c, err := kb.Prepare(ctx, nil, Options{})
			require.NoError(t, err)

			o := play(t, c, map[string][]string{
				"style": {"MELEE"},
				"armor": {"HEAVY"},
			})
			require.Equal(t, []string{"rec.paladin", "rec.sword"}, keys(o))

			o = play(t, c, map[string][]string{
				"style":   {"MAGIC"},
				"schools": {"ILLUSION", "FIRE"},
			})
			require.ElementsMatch(t, []string{"rec.pyromancer", "rec.illusionist"}, keys(o))

			o = play(t, c, map[string][]string{
				"style":     {"RANGED"},
				"companion": {"N"},
			})
			require.Equal(t, []string{"rec.archer"}, keys(o))
		})
	}
}

func TestLoad(t *testing.T) {
	kb, err := Load(filepath.Join(rpgDir, "rpg.kb.yaml"))
	require.NoError(t, err)
	require.Equal(t, "rpg", kb.Name)
	require.Equal(t, "goja", kb.Engine)
	require.Equal(t, rpgDir, kb.Dir)
	require.Len(t, kb.Facts, 1)
	require.Contains(t, kb.Libraries, "helpers")

	_, err = Load(filepath.Join(rpgDir, "missing.kb.yaml"))
	require.Error(t, err)
}

func TestParseDefaults(t *testing.T) {
	kb, err := Parse([]byte(`{"facts":[{"systemKey":"rec.sword"}],"text":{"rec.sword":"Magic Sword"}}`), "json")
	require.NoError(t, err)
	require.Equal(t, "noop", kb.Engine)

	r := kb.Resources(text.New(map[string]string{"rec.axe": "Axe"}))
	require.Equal(t, "Magic Sword", r.Resolve("rec.sword"))
	require.Equal(t, "Axe", r.Resolve("rec.axe"))

	_, err = Parse([]byte(`name: x`), "toml")
	require.Error(t, err)
}

func TestRoles(t *testing.T) {
	ctx := context.Background()
	kb, err := Parse([]byte(`
name: renamed
facts:
  - {ask: q1, label: q.one, kind: SINGLE, choices: [opt.yes], codes: [Y]}
  - {result: rec.sword}
roles:
  question:
    signature: [ask]
    pattern: {ask: "?id", label: "?textKey", kind: "?type", choices: "?options", codes: "?optionIds"}
  recommendation:
    signature: [result]
    pattern: {result: "?systemKey"}
`), "yaml")
	require.NoError(t, err)

	c, err := kb.Prepare(ctx, nil, Options{})
	require.NoError(t, err)
	o := play(t, c, map[string][]string{"q1": {"Y"}})
	require.Equal(t, []string{"rec.sword"}, keys(o))

	kb.Roles["other"] = core.RoleSchema{}
	_, err = kb.Classifier()
	require.Error(t, err)
}

func TestMangleRoles(t *testing.T) {
	ctx := context.Background()
	kb, err := Parse([]byte(`
name: renamed-datalog
engine: mangle
rules: |
  question("q1", "q.magic", /single).
  option("q1", 0, "opt.yes", "Y").
  option("q1", 1, "opt.no", "N").
  recommend("rec.sword") :- answer("q1", "Y").
roles:
  question:
    signature: [ask]
    pattern: {ask: "?id", label: "?textKey", kind: "?type", choices: "?options", codes: "?optionIds"}
  answer:
    signature: [qid]
    pattern: {qid: "?questionId", picks: "?selectedOptions"}
  recommendation:
    signature: [result]
    pattern: {result: "?systemKey"}
`), "yaml")
	require.NoError(t, err)

	c, err := kb.Prepare(ctx, nil, Options{})
	require.NoError(t, err)

	s, err := c.NewSession(ctx)
	require.NoError(t, err)
	o, err := s.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, core.HasPendingQuestion, o.State)
	require.Equal(t, "q1", o.Question.ID)
	require.Equal(t, []string{"Y", "N"}, o.Question.OptionIDs)

	o, err = s.Submit(ctx, "q1", []string{"Y"})
	require.NoError(t, err)
	require.Equal(t, core.Finalized, o.State)
	require.Equal(t, []string{"rec.sword"}, keys(o))

	// Derived facts are in the renamed shapes.
	for _, f := range s.Store().Facts() {
		_, old := f["systemKey"]
		require.False(t, old, "%v", f)
		_, old = f["optionIds"]
		require.False(t, old, "%v", f)
	}
}

func TestLibrary(t *testing.T) {
	ctx := context.Background()
	l := NewLibrary(nil, Options{})
	require.NoError(t, l.LoadDir(ctx, rpgDir))
	require.Equal(t, []string{"rpg", "rpg-datalog"}, l.Names())

	c, err := l.Get("rpg")
	require.NoError(t, err)
	require.Equal(t, "rpg", c.Name)

	_, err = l.Get("chess")
	require.True(t, errors.Is(err, core.ErrUnknownKB))
}

func TestIsKBFile(t *testing.T) {
	require.True(t, IsKBFile("rpg.kb.yaml"))
	require.True(t, IsKBFile("x/rpg.kb.json"))
	require.False(t, IsKBFile("strings.json"))
	require.False(t, IsKBFile("rpg.mg"))
}
