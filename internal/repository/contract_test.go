package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todolist/internal/domain"
)

// runRepositoryContract exercises behavior every store must share.
func runRepositoryContract(t *testing.T, todos TodoRepository, users UserRepository) {
	ctx := context.Background()

	alice := &domain.User{Name: "alice", Email: "alice@example.com", PasswordHash: "x"}
	bob := &domain.User{Name: "bob", Email: "bob@example.com", PasswordHash: "x"}
	require.NoError(t, users.Create(ctx, alice))
	require.NoError(t, users.Create(ctx, bob))

	t.Run("users", func(t *testing.T) {
		dup := &domain.User{Name: "again", Email: "alice@example.com", PasswordHash: "y"}
		assert.ErrorIs(t, users.Create(ctx, dup), ErrDuplicate)

		got, err := users.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, alice.ID, got.ID)

		got, err = users.FindByID(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob", got.Name)

		_, err = users.FindByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	newTodo := func(owner uuid.UUID, name string, expiryMs int64, p domain.Priority) *domain.Todo {
		todo := &domain.Todo{Name: name, Priority: p, AlarmEnabled: true, UserID: owner}
		if expiryMs != 0 {
			exp := time.UnixMilli(expiryMs).UTC()
			todo.ExpiryAt = &exp
		}
		require.NoError(t, todos.Create(ctx, todo))
		require.NotEqual(t, uuid.Nil, todo.ID)
		return todo
	}

	t.Run("list order", func(t *testing.T) {
		newTodo(alice.ID, "two hundred", 200, domain.PriorityLow)
		newTodo(alice.ID, "no expiry", 0, domain.PriorityHigh)
		newTodo(alice.ID, "one hundred", 100, domain.PriorityMedium)

		list, err := todos.List(ctx, alice.ID, TodoFilter{})
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "one hundred", list[0].Name)
		assert.Equal(t, "two hundred", list[1].Name)
		assert.Equal(t, "no expiry", list[2].Name)
	})

	t.Run("owner scoping", func(t *testing.T) {
		secret := newTodo(alice.ID, "alice only", 0, domain.PriorityLow)

		_, err := todos.FindByID(ctx, bob.ID, secret.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		name := "hijacked"
		_, err = todos.Update(ctx, bob.ID, secret.ID, domain.TodoPatch{Name: &name})
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, todos.Delete(ctx, bob.ID, secret.ID), ErrNotFound)

		bobs, err := todos.List(ctx, bob.ID, TodoFilter{})
		require.NoError(t, err)
		assert.Empty(t, bobs)

		got, err := todos.FindByID(ctx, alice.ID, secret.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice only", got.Name)
	})

	t.Run("partial update", func(t *testing.T) {
		todo := newTodo(alice.ID, "patch me", 5000, domain.PriorityLow)

		done := true
		updated, err := todos.Update(ctx, alice.ID, todo.ID, domain.TodoPatch{IsDone: &done})
		require.NoError(t, err)
		assert.True(t, updated.IsDone)
		assert.Equal(t, "patch me", updated.Name)
		assert.Equal(t, domain.PriorityLow, updated.Priority)
		require.NotNil(t, updated.ExpiryAt)
		assert.Equal(t, int64(5000), updated.ExpiryAt.UnixMilli())

		unchanged, err := todos.Update(ctx, alice.ID, todo.ID, domain.TodoPatch{})
		require.NoError(t, err)
		assert.True(t, unchanged.IsDone)

		cleared, err := todos.Update(ctx, alice.ID, todo.ID, domain.TodoPatch{ClearExpiry: true})
		require.NoError(t, err)
		assert.Nil(t, cleared.ExpiryAt)

		_, err = todos.Update(ctx, alice.ID, uuid.New(), domain.TodoPatch{IsDone: &done})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("filters", func(t *testing.T) {
		done := true
		high := domain.PriorityHigh

		doneList, err := todos.List(ctx, alice.ID, TodoFilter{IsDone: &done})
		require.NoError(t, err)
		for _, td := range doneList {
			assert.True(t, td.IsDone)
		}
		assert.NotEmpty(t, doneList)

		highList, err := todos.List(ctx, alice.ID, TodoFilter{Priority: &high})
		require.NoError(t, err)
		require.Len(t, highList, 1)
		assert.Equal(t, "no expiry", highList[0].Name)
	})

	t.Run("alarms between", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Millisecond)
		soon := newTodo(bob.ID, "soon", now.Add(time.Minute).UnixMilli(), domain.PriorityHigh)
		newTodo(bob.ID, "later", now.Add(time.Hour).UnixMilli(), domain.PriorityHigh)
		newTodo(bob.ID, "past", now.Add(-time.Minute).UnixMilli(), domain.PriorityHigh)
		muted := newTodo(bob.ID, "muted", now.Add(2*time.Minute).UnixMilli(), domain.PriorityHigh)
		off := false
		_, err := todos.Update(ctx, bob.ID, muted.ID, domain.TodoPatch{AlarmEnabled: &off})
		require.NoError(t, err)

		due, err := todos.ListAlarmsBetween(ctx, now, now.Add(10*time.Minute))
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, soon.ID, due[0].ID)
	})

	t.Run("delete", func(t *testing.T) {
		todo := newTodo(bob.ID, "delete me", 0, domain.PriorityLow)
		require.NoError(t, todos.Delete(ctx, bob.ID, todo.ID))
		assert.ErrorIs(t, todos.Delete(ctx, bob.ID, todo.ID), ErrNotFound)
	})

	t.Run("delete all", func(t *testing.T) {
		before, err := todos.List(ctx, alice.ID, TodoFilter{})
		require.NoError(t, err)
		bobsBefore, err := todos.List(ctx, bob.ID, TodoFilter{})
		require.NoError(t, err)

		n, err := todos.DeleteAll(ctx, alice.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(len(before)), n)

		after, err := todos.List(ctx, alice.ID, TodoFilter{})
		require.NoError(t, err)
		assert.Empty(t, after)

		bobsAfter, err := todos.List(ctx, bob.ID, TodoFilter{})
		require.NoError(t, err)
		assert.Len(t, bobsAfter, len(bobsBefore))

		n, err = todos.DeleteAll(ctx, alice.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
