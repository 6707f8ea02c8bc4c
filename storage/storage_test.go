package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNoopImpl(t *testing.T) {
	var s Storage = NewNoop()
	ctx := context.Background()
	require.NoError(t, s.Open(ctx))
	defer s.Close(ctx)

	r := &Record{KB: "rpg"}
	require.NoError(t, s.Put(ctx, r))
	require.NotEmpty(t, r.ID)

	_, err := s.Get(ctx, "rpg", r.ID)
	require.True(t, errors.Is(err, ErrNotFound))

	rs, err := s.List(ctx, "rpg", 0)
	require.NoError(t, err)
	require.Empty(t, rs)
}

func TestPrepare(t *testing.T) {
	require.Error(t, Prepare(nil))
	require.Error(t, Prepare(&Record{}))

	r := &Record{KB: "rpg", ID: "given"}
	require.NoError(t, Prepare(r))
	require.Equal(t, "given", r.ID)
}

func TestNewIDOrder(t *testing.T) {
	now := time.Now()
	a := NewID(now)
	b := NewID(now)
	c := NewID(now.Add(time.Second))
	require.Less(t, a, b)
	require.Less(t, b, c)
}
