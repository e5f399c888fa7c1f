package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dlovans/econsheet/pkg/document"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tick := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}
	return s
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := &document.Document{
		Kind:          "pricing",
		Name:          "Base case",
		SchemaVersion: "1.2.0",
		Options:       map[string]any{"flat_price": 50.0, "model_type": map[string]any{"label": "Flat", "value": "flat"}},
		EconFunction:  map[string]any{"flat_price": 50.0, "model_type": "flat"},
		Fingerprint:   "abc",
	}
	require.NoError(t, s.Save(ctx, doc))
	require.NotEmpty(t, doc.ID)

	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	doc.Name = "Renamed"
	require.NoError(t, s.Save(ctx, doc))
	got, err = s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
}

func TestGetWithoutPayload(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	doc := &document.Document{Kind: "tax", Options: map[string]any{}}
	require.NoError(t, s.Save(ctx, doc))
	got, err := s.Get(ctx, doc.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EconFunction)
	assert.Equal(t, map[string]any{}, got.Options)
}

func TestListAndDelete(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	a := &document.Document{Kind: "pricing", Name: "a", Options: map[string]any{}}
	b := &document.Document{Kind: "tax", Name: "b", Options: map[string]any{}}
	c := &document.Document{Kind: "pricing", Name: "c", Options: map[string]any{}}
	for _, d := range []*document.Document{a, b, c} {
		require.NoError(t, s.Save(ctx, d))
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Name, "newest first")
	assert.True(t, all[0].UpdatedAt.After(all[2].UpdatedAt))

	pricing, err := s.List(ctx, "pricing")
	require.NoError(t, err)
	require.Len(t, pricing, 2)
	assert.Equal(t, []string{"c", "a"}, []string{pricing[0].Name, pricing[1].Name})

	require.NoError(t, s.Delete(ctx, a.ID))
	_, err = s.Get(ctx, a.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(s.Delete(ctx, a.ID), ErrNotFound))
}
