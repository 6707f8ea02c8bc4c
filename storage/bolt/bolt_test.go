package bolt

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/storage"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestImpl(t *testing.T) {
	var _ storage.Storage = &Storage{}
}

func TestBasics(t *testing.T) {
	ctx := context.Background()

	s, err := NewStorage(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	s.Debug = true
	s.Logger = zaptest.NewLogger(t)

	require.True(t, errors.Is(s.Put(ctx, &storage.Record{KB: "rpg"}), NotOpen))

	require.NoError(t, s.Open(ctx))
	defer s.Close(ctx)

	start := time.Now().UTC().Truncate(time.Millisecond)
	var ids []string
	for i, rec := range []string{"rec.sword", "rec.bow", "rec.staff"} {
		r := &storage.Record{
			KB:              "rpg",
			Answers:         []core.Answer{{QuestionID: "q.style", Selected: []string{"MELEE"}}},
			Recommendations: []core.Recommendation{{SystemKey: rec}},
			Started:         start,
			Finished:        start.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, s.Put(ctx, r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, s.Put(ctx, &storage.Record{KB: "other"}))

	r, err := s.Get(ctx, "rpg", ids[1])
	require.NoError(t, err)
	require.Equal(t, "rec.bow", r.Recommendations[0].SystemKey)
	require.Equal(t, []string{"MELEE"}, r.Answers[0].Selected)
	require.True(t, start.Equal(r.Started))

	_, err = s.Get(ctx, "rpg", "nope")
	require.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.Get(ctx, "nokb", ids[0])
	require.True(t, errors.Is(err, storage.ErrNotFound))

	rs, err := s.List(ctx, "rpg", 0)
	require.NoError(t, err)
	require.Len(t, rs, 3)
	for i, r := range rs {
		require.Equal(t, ids[i], r.ID)
	}

	rs, err = s.List(ctx, "rpg", 2)
	require.NoError(t, err)
	require.Len(t, rs, 2)

	rs, err = s.List(ctx, "nokb", 0)
	require.NoError(t, err)
	require.Empty(t, rs)
}

func TestReopen(t *testing.T) {
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "history.db")

	s, err := NewStorage(filename)
	require.NoError(t, err)
	require.NoError(t, s.Open(ctx))
	r := &storage.Record{KB: "rpg", Recommendations: []core.Recommendation{{SystemKey: "rec.rogue"}}}
	require.NoError(t, s.Put(ctx, r))
	require.NoError(t, s.Close(ctx))

	require.NoError(t, s.Open(ctx))
	defer s.Close(ctx)
	got, err := s.Get(ctx, "rpg", r.ID)
	require.NoError(t, err)
	require.Equal(t, "rec.rogue", got.Recommendations[0].SystemKey)
}
