package users

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablyhq/tably/pkg/apperrors"
	"github.com/tablyhq/tably/pkg/auth"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Upsert(t *testing.T) {
	t.Run("new user with organization", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()
		orgID := int64(7)

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("auth0|abc", "chef@harbor.test", "Sam Cook", "CHEF",
				sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(12), now, now))

		user := &User{
			Auth0ID:        "auth0|abc",
			Email:          "chef@harbor.test",
			Name:           "Sam Cook",
			Role:           auth.RoleChef,
			OrganizationID: &orgID,
		}
		err := store.Upsert(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, int64(12), user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("user without organization", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
			WithArgs("auth0|solo", "owner@new.test", "", "OWNER", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(int64(1), now, now))

		user := &User{Auth0ID: "auth0|solo", Email: "owner@new.test", Role: auth.RoleOwner}
		err := store.Upsert(context.Background(), user)
		require.NoError(t, err)
		assert.Equal(t, int64(1), user.ID)
	})
}

func TestPostgresStore_GetByID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
			WithArgs(int64(12)).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}).
				AddRow(int64(12), "auth0|abc", "chef@harbor.test", "Sam Cook", "CHEF", int64(7), now, now))

		user, err := store.GetByID(context.Background(), 12)
		require.NoError(t, err)
		assert.Equal(t, "auth0|abc", user.Auth0ID)
		assert.Equal(t, auth.RoleChef, user.Role)
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
			WithArgs(int64(99)).
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}))

		_, err := store.GetByID(context.Background(), 99)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestPostgresStore_GetByAuth0ID(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()

		mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
			WithArgs("auth0|abc").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}).
				AddRow(int64(12), "auth0|abc", "chef@harbor.test", "Sam Cook", "CHEF", int64(7), now, now))

		user, err := store.GetByAuth0ID(context.Background(), "auth0|abc")
		require.NoError(t, err)
		assert.Equal(t, auth.RoleChef, user.Role)
		require.NotNil(t, user.OrganizationID)
		assert.Equal(t, int64(7), *user.OrganizationID)
	})

	t.Run("not found", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
			WithArgs("auth0|missing").
			WillReturnRows(sqlmock.NewRows(
				[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}))

		user, err := store.GetByAuth0ID(context.Background(), "auth0|missing")
		assert.Nil(t, user)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestPostgresStore_GetByEmail(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
		WithArgs("chef@harbor.test").
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}).
			AddRow(int64(12), "auth0|abc", "chef@harbor.test", "Sam Cook", "WAITER", nil, now, now))

	user, err := store.GetByEmail(context.Background(), "chef@harbor.test")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleWaiter, user.Role)
	assert.Nil(t, user.OrganizationID)
}

func TestPostgresStore_ListByOrganization(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()

	mock.ExpectQuery("SELECT id, auth0_id, email, name, role").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "auth0_id", "email", "name", "role", "organization_id", "created_at", "updated_at"}).
			AddRow(int64(1), "auth0|a", "owner@harbor.test", "A", "OWNER", int64(7), now, now).
			AddRow(int64(2), "auth0|b", "chef@harbor.test", "B", "CHEF", int64(7), now, now))

	result, err := store.ListByOrganization(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, auth.RoleOwner, result[0].Role)
	assert.Equal(t, auth.RoleChef, result[1].Role)
}

func TestPostgresStore_UpdateRole(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("UPDATE users SET role = ").
			WithArgs("MANAGER", int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.UpdateRole(context.Background(), 12, "MANAGER"))
	})

	t.Run("missing user", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("UPDATE users SET role = ").
			WithArgs("MANAGER", int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateRole(context.Background(), 99, "MANAGER")
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestPostgresStore_Delete(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("DELETE FROM users").
			WithArgs(int64(12)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, store.Delete(context.Background(), 12))
	})

	t.Run("missing user", func(t *testing.T) {
		store, mock := newMockStore(t)

		mock.ExpectExec("DELETE FROM users").
			WithArgs(int64(99)).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.Delete(context.Background(), 99)
		assert.True(t, apperrors.IsNotFound(err))
	})
}
