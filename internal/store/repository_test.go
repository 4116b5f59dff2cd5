package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Micheline922/kairo/internal/metrics"
)

type note struct {
	Meta
	Title string `json:"title" validate:"required,min=3"`
	Done  bool   `json:"done"`
}

func newNoteRepo(t *testing.T) (*Repository[note, *note], *metrics.Metrics) {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return NewRepository[note](b, "notes", validator.New(), m), m
}

func TestRepositoryAddAssignsMeta(t *testing.T) {
	repo, m := newNoteRepo(t)
	ctx := context.Background()

	n, err := repo.Add(ctx, "user-1", &note{Title: "Psaume 23", Meta: Meta{ID: "client-chosen"}})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.NotEqual(t, "client-chosen", n.ID)
	assert.False(t, n.CreatedAt.IsZero())
	assert.Equal(t, n.CreatedAt, n.UpdatedAt)

	got, err := repo.Get(ctx, "user-1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Psaume 23", got.Title)
	assert.Equal(t, n.ID, got.ID)
	assert.True(t, n.CreatedAt.Equal(got.CreatedAt))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("create", "notes", "success")))
}

func TestRepositoryValidation(t *testing.T) {
	repo, _ := newNoteRepo(t)

	_, err := repo.Add(context.Background(), "user-1", &note{Title: "ab"})
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Title", verrs[0].Field())

	list, err := repo.List(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepositoryRequiresUser(t *testing.T) {
	repo, _ := newNoteRepo(t)
	_, err := repo.Add(context.Background(), "", &note{Title: "Psaume 23"})
	assert.Error(t, err)
}

func TestRepositoryListNewestFirst(t *testing.T) {
	repo, _ := newNoteRepo(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, title := range []string{"premier", "second", "troisième"} {
		_, err := repo.Add(ctx, "user-1", &note{Title: title})
		require.NoError(t, err)
	}
	_, err := repo.Add(ctx, "user-2", &note{Title: "autre utilisateur"})
	require.NoError(t, err)

	list, err := repo.List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "troisième", list[0].Title)
	assert.Equal(t, "premier", list[2].Title)
}

func TestRepositoryUpdate(t *testing.T) {
	repo, _ := newNoteRepo(t)
	ctx := context.Background()

	clock := time.Date(2026, 5, 1, 6, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return clock }

	n, err := repo.Add(ctx, "user-1", &note{Title: "Psaume 23"})
	require.NoError(t, err)
	created := n.CreatedAt

	clock = clock.Add(time.Hour)
	updated, err := repo.Update(ctx, "user-1", n.ID, func(rec *note) error {
		rec.Done = true
		rec.ID = "hijacked"
		rec.CreatedAt = time.Time{}
		return nil
	})
	require.NoError(t, err)
	assert.True(t, updated.Done)
	assert.Equal(t, n.ID, updated.ID)
	assert.True(t, created.Equal(updated.CreatedAt))
	assert.True(t, clock.Equal(updated.UpdatedAt))

	got, err := repo.Get(ctx, "user-1", n.ID)
	require.NoError(t, err)
	assert.True(t, got.Done)
	assert.True(t, clock.Equal(got.UpdatedAt))
}

func TestRepositoryUpdateRejectsInvalid(t *testing.T) {
	repo, _ := newNoteRepo(t)
	ctx := context.Background()

	n, err := repo.Add(ctx, "user-1", &note{Title: "Psaume 23"})
	require.NoError(t, err)

	_, err = repo.Update(ctx, "user-1", n.ID, func(rec *note) error {
		rec.Title = ""
		return nil
	})
	assert.Error(t, err)

	got, err := repo.Get(ctx, "user-1", n.ID)
	require.NoError(t, err)
	assert.Equal(t, "Psaume 23", got.Title)
}

func TestRepositoryUpdateMutateError(t *testing.T) {
	repo, _ := newNoteRepo(t)
	ctx := context.Background()

	n, err := repo.Add(ctx, "user-1", &note{Title: "Psaume 23"})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = repo.Update(ctx, "user-1", n.ID, func(*note) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestRepositoryDelete(t *testing.T) {
	repo, m := newNoteRepo(t)
	ctx := context.Background()

	n, err := repo.Add(ctx, "user-1", &note{Title: "Psaume 23"})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Delete(ctx, "user-2", n.ID), ErrNotFound)
	require.NoError(t, repo.Delete(ctx, "user-1", n.ID))

	_, err = repo.Get(ctx, "user-1", n.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.Update(ctx, "user-1", n.ID, func(*note) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOperations.WithLabelValues("delete", "notes", "success")))
}
