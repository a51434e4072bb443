package users

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

func bootstrapRequest() BootstrapRequest {
	return BootstrapRequest{
		CompanyName: "Helpdesk HQ",
		RoleName:    "Admin",
		Name:        "Site Admin",
		Email:       "admin@helpdesk.test",
		Password:    "changeme1",
	}
}

func TestBootstrap(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("INSERT INTO companies").
		WithArgs("Helpdesk HQ").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery("INSERT INTO roles").
		WithArgs("Admin", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO role_permissions").
		WithArgs(int64(1), int64(1), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("Site Admin", "admin@helpdesk.test", sqlmock.AnyArg(), int64(1), int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(1, now, now))
	mock.ExpectCommit()

	u, err := Bootstrap(context.Background(), db, bootstrapRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(1), u.ID)
	assert.Equal(t, "Admin", u.RoleName)
	assert.True(t, u.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_AlreadySeeded(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err = Bootstrap(context.Background(), db, bootstrapRequest())
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBootstrap_WeakPassword(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	req := bootstrapRequest()
	req.Password = "lettersonly"
	_, err = Bootstrap(context.Background(), db, req)
	assert.Contains(t, apperr.FieldsOf(err), "password")
}
