package goja

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/sage/core"
	. "github.com/Comcast/sage/util/testutil"
	"github.com/stretchr/testify/require"
)

const q1 = `{"id":"q1","textKey":"q.one","type":"SINGLE","options":["opt.yes","opt.no"],"optionIds":["Y","N"]}`

var swordRules = []Rule{
	{
		Name: "sword",
		Code: `if (_.exists({questionId:"q1", selectedOptions:["Y"]})) { _.assert({systemKey:"rec.sword"}); }`,
	},
	{
		Name: "shield",
		Code: `if (_.exists({systemKey:"rec.sword"})) { _.assert({systemKey:"rec.shield"}); }`,
	},
}

func TestEngineScenario(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, Maps(`[`+q1+`]`), swordRules, nil)
	require.NoError(t, err)

	s, err := core.NewSession(ctx, e, nil)
	require.NoError(t, err)

	o, err := s.Advance(ctx)
	require.NoError(t, err)
	require.Equal(t, core.HasPendingQuestion, o.State)
	require.Equal(t, "q1", o.Question.ID)

	o, err = s.Submit(ctx, "q1", []string{"Y"})
	require.NoError(t, err)
	require.Equal(t, core.Finalized, o.State)
	require.Equal(t, []core.Recommendation{{SystemKey: "rec.sword"}, {SystemKey: "rec.shield"}}, o.Recommendations)
}

func TestEngineAssertIdempotent(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{Code: `_.assert({systemKey:"rec.sword"}); _.assert({systemKey:"rec.sword"});`},
	}, nil)
	require.NoError(t, err)

	store := core.NewStore(nil)
	require.NoError(t, e.Fire(ctx, store))
	require.NoError(t, e.Fire(ctx, store))
	require.Equal(t, 1, store.Len())
}

func TestEngineRetract(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{
			Name: "forget",
			Code: `if (_.exists({questionId:"q1"})) { _.retract({questionId:"q1"}); _.assert({forgot:"q1"}); }`,
		},
	}, nil)
	require.NoError(t, err)

	store := core.NewStore(Maps(`[{"questionId":"q1","selectedOptions":["Y"]},{"questionId":"q2","selectedOptions":["N"]}]`))
	require.NoError(t, e.Fire(ctx, store))
	require.Equal(t, `[{"questionId":"q2","selectedOptions":["N"]},{"forgot":"q1"}]`, JS(store.Facts()))
}

func TestEngineRetractBadPattern(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{
			Name: "forget",
			Code: `_.retract({questionId:"q1"}); _.retract({"?k":1});`,
		},
	}, nil)
	require.NoError(t, err)

	facts := `[{"questionId":"q1","selectedOptions":["Y"]},{"questionId":"q2","selectedOptions":["N"]}]`
	store := core.NewStore(Maps(facts))
	require.Error(t, e.Fire(ctx, store))
	require.Equal(t, facts, JS(store.Facts()))
}

func TestEngineMatch(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{
			Code: `
for (var i = 0; i < _.facts.length; i++) {
  var bss = _.match({questionId:"?q", selectedOptions:["?o"]}, _.facts[i]);
  for (var j = 0; j < bss.length; j++) {
    _.assert({picked: bss[j]["?q"] + "/" + bss[j]["?o"]});
  }
}`,
		},
	}, nil)
	require.NoError(t, err)

	store := core.NewStore(Maps(`[{"questionId":"q1","selectedOptions":["A","B"]}]`))
	require.NoError(t, e.Fire(ctx, store))
	require.True(t, store.Contains(core.Fact{"picked": "q1/A"}))
	require.True(t, store.Contains(core.Fact{"picked": "q1/B"}))
	require.Equal(t, 3, store.Len())
}

func TestEnginePassLimit(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{Name: "forever", Code: `_.assert({n:_.gensym()});`},
	}, nil)
	require.NoError(t, err)
	e.PassLimit = 5

	err = e.Fire(ctx, core.NewStore(nil))
	var ple *PassLimitExceeded
	require.True(t, errors.As(err, &ple), "got %v", err)
	require.Equal(t, 5, ple.Limit)
}

func TestEngineError(t *testing.T) {
	ctx := context.Background()
	e, err := NewEngine(ctx, nil, []Rule{
		{Name: "bad", Code: `_.assert("not an object");`},
	}, nil)
	require.NoError(t, err)
	require.Error(t, e.Fire(ctx, core.NewStore(nil)))

	_, err = NewEngine(ctx, nil, []Rule{{Code: `this won't compile {`}}, nil)
	require.Error(t, err)
}

func TestEngineInterrupted(t *testing.T) {
	e, err := NewEngine(context.Background(), nil, []Rule{
		{Name: "spin", Code: `for (;;) {}`},
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = e.Fire(ctx, core.NewStore(nil))
	require.True(t, errors.Is(err, Interrupted), "got %v", err)
}

func TestEngineInitCopies(t *testing.T) {
	ctx := context.Background()
	initial := Maps(`[` + q1 + `]`)
	e, err := NewEngine(ctx, initial, nil, nil)
	require.NoError(t, err)

	fs, err := e.Init(ctx)
	require.NoError(t, err)
	fs[0]["id"] = "changed"

	again, err := e.Init(ctx)
	require.NoError(t, err)
	require.Equal(t, "q1", again[0]["id"])
}

func TestEngineRequires(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "recs.js"),
		[]byte(`function recommend(key) { return {systemKey: key}; }`), 0644))

	provider := ChainLibraryProviders(
		MakeMapLibraryProvider(map[string]string{
			"answered": `function answered(qid) { return _.exists({questionId: qid}); }`,
		}),
		MakeFileLibraryProvider(dir),
	)

	e, err := NewEngine(ctx, nil, []Rule{
		{
			Name:     "libs",
			Requires: []string{"answered", "file://recs.js"},
			Code:     `if (answered("q1")) { _.assert(recommend("rec.sword")); }`,
		},
	}, provider)
	require.NoError(t, err)

	store := core.NewStore(Maps(`[{"questionId":"q1","selectedOptions":["Y"]}]`))
	require.NoError(t, e.Fire(ctx, store))
	require.True(t, store.Contains(core.Fact{"systemKey": "rec.sword"}))

	_, err = NewEngine(ctx, nil, []Rule{{Requires: []string{"file://../etc/passwd"}}}, provider)
	require.Error(t, err)
	_, err = NewEngine(ctx, nil, []Rule{{Requires: []string{"nope"}}}, nil)
	require.Error(t, err)
}
