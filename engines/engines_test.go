package engines

import (
	"context"
	"errors"
	"testing"

	"github.com/Comcast/sage/core"
	. "github.com/Comcast/sage/util/testutil"
	"github.com/stretchr/testify/require"
)

func TestStandard(t *testing.T) {
	ctx := context.Background()
	r := Standard()

	for _, name := range []string{"goja", "mangle", "noop"} {
		var src *Source
		switch name {
		case "goja":
			src = &Source{
				Name:  "test",
				Facts: Maps(`[{"id":"q1","textKey":"q.one","type":"SINGLE","options":["a"],"optionIds":["A"]}]`),
				Rules: Dwimjs(`[{"name":"r","code":"if (_.exists({questionId:\"q1\"})) _.assert({systemKey:\"rec.sword\"});"}]`),
			}
		case "mangle":
			src = &Source{
				Name: "test",
				Rules: `question("q1", "q.one", /single).
option("q1", 0, "a", "A").
recommend("rec.sword") :- answer("q1", "A").`,
			}
		case "noop":
			src = &Source{
				Name:  "test",
				Facts: Maps(`[{"id":"q1","textKey":"q.one","type":"SINGLE","options":["a"],"optionIds":["A"]},{"systemKey":"rec.sword"}]`),
			}
		}
		t.Run(name, func(t *testing.T) {
			e, err := r.Build(ctx, name, src)
			require.NoError(t, err)

			s, err := core.NewSession(ctx, e, nil)
			require.NoError(t, err)
			o, err := s.Advance(ctx)
			require.NoError(t, err)
			require.Equal(t, "q1", o.Question.ID)

			o, err = s.Submit(ctx, "q1", []string{"A"})
			require.NoError(t, err)
			require.Equal(t, []core.Recommendation{{SystemKey: "rec.sword"}}, o.Recommendations)
		})
	}
}

func TestUnknownEngine(t *testing.T) {
	_, err := Standard().Build(context.Background(), "rete", &Source{Name: "test"})
	var ue *UnknownEngine
	require.True(t, errors.As(err, &ue))
	require.Equal(t, "rete", ue.Name)
}

func TestBadRules(t *testing.T) {
	_, err := Standard().Build(context.Background(), "goja", &Source{Name: "test", Rules: 42})
	require.Error(t, err)
}
