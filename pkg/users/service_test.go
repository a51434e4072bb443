package users

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/auth"
	"github.com/platinummonkey/helpdesk/pkg/httputil"
)

func newMockService(t *testing.T) (*PostgresService, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresService(db), mock
}

var userRowColumns = []string{
	"id", "name", "email", "password_hash", "role_id", "role", "company_id", "company",
	"is_active", "projects", "created_at", "updated_at",
}

func validSignup() SignupRequest {
	return SignupRequest{
		Name:       "Dana Scully",
		Email:      "dana@acme.test",
		Password:   "secret1",
		RoleID:     3,
		CompanyID:  2,
		ProjectIDs: httputil.IDList{7, 8, 7},
	}
}

func TestCreateUser(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, mock := newMockService(t)
		now := time.Now()
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT company_id FROM roles").
			WithArgs(int64(3)).
			WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(2))
		mock.ExpectQuery("INSERT INTO users").
			WithArgs("Dana Scully", "dana@acme.test", sqlmock.AnyArg(), int64(3), int64(2)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))
		mock.ExpectExec("DELETE FROM user_projects").
			WithArgs(int64(11)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("INSERT INTO user_projects").
			WithArgs(int64(11), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectCommit()

		u, err := svc.CreateUser(context.Background(), validSignup())
		require.NoError(t, err)
		assert.Equal(t, int64(11), u.ID)
		assert.Equal(t, []int64{7, 8}, u.ProjectIDs)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("role from another company", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT company_id FROM roles").
			WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(5))
		mock.ExpectRollback()

		_, err := svc.CreateUser(context.Background(), validSignup())
		assert.Equal(t, "Selected role does not belong to the selected company", apperr.MessageOf(err))
	})

	t.Run("duplicate email", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT company_id FROM roles").
			WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(2))
		mock.ExpectQuery("INSERT INTO users").
			WillReturnError(&pq.Error{Code: "23505"})
		mock.ExpectRollback()

		_, err := svc.CreateUser(context.Background(), validSignup())
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
		assert.Equal(t, "User with this email already exists", apperr.MessageOf(err))
	})

	t.Run("field rules", func(t *testing.T) {
		svc, mock := newMockService(t)
		req := validSignup()
		req.Name = "Al"
		req.Password = "abcdefg"
		req.ProjectIDs = httputil.IDList{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}

		_, err := svc.CreateUser(context.Background(), req)
		fields := apperr.FieldsOf(err)
		assert.Equal(t, "must be at least 3 characters", fields["name"])
		assert.Equal(t, "must contain at least one letter and one number", fields["password"])
		assert.Equal(t, "must have at most 10 items", fields["projectIds"])
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestUpdateUser_KeepsPasswordWhenBlank(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT company_id FROM roles").
		WillReturnRows(sqlmock.NewRows([]string{"company_id"}).AddRow(2))
	mock.ExpectExec("UPDATE users").
		WithArgs("Dana Scully", "dana@acme.test", nil, int64(3), int64(2), sqlmock.AnyArg(), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM user_projects").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := svc.UpdateUser(context.Background(), UpdateRequest{
		ID: 11, Name: "Dana Scully", Email: "dana@acme.test", RoleID: 3, CompanyID: 2,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteUser(t *testing.T) {
	t.Run("self", func(t *testing.T) {
		svc, mock := newMockService(t)
		ctx := auth.WithContext(context.Background(), &auth.AuthContext{UserID: 4})
		err := svc.DeleteUser(ctx, 4)
		assert.Equal(t, "You cannot delete your own account", apperr.MessageOf(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec("DELETE FROM users").
			WithArgs(int64(9)).
			WillReturnResult(sqlmock.NewResult(0, 0))
		assert.True(t, errors.Is(svc.DeleteUser(context.Background(), 9), apperr.ErrNotFound))
	})
}

func TestListUsers(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now()
	mock.ExpectQuery("FROM users u").
		WithArgs(int64(2), int64(0)).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "Dana", "dana@acme.test", "hash", 3, "Agent", 2, "Acme", true, "{7}", now, now))

	users, err := svc.ListUsers(context.Background(), Filter{ViewerCompanyID: 2})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, []int64{7}, users[0].ProjectIDs)
	assert.Equal(t, "hash", users[0].passwordHash)
}
