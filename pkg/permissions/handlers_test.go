package permissions

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/auth"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func setupHandlers(t *testing.T, caller Matrix) (*mux.Router, sqlmock.Sqlmock) {
	db, mock := setupMockDB(t)
	svc := NewService(NewStore(db), nil, time.Minute, nil)
	guard := NewGuard(&staticResolver{matrix: caller}, nil)

	router := mux.NewRouter()
	NewHandlers(svc, guard).RegisterRoutes(router)
	return router, mock
}

func do(t *testing.T, router *mux.Router, method, target string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req = req.WithContext(auth.WithContext(req.Context(), &auth.AuthContext{UserID: 1, RoleID: 1, CompanyID: 1}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func adminMatrix() Matrix {
	return DefaultCatalog().FullMatrix()
}

func TestHandlers_ListRolesGrouped(t *testing.T) {
	router, mock := setupHandlers(t, Matrix{})
	now := time.Now()
	mock.ExpectQuery("SELECT r.id").WillReturnRows(sqlmock.NewRows(roleColumns).
		AddRow(1, "Admin", 10, "Acme", now, now).
		AddRow(2, "Agent", 11, "", now, now).
		AddRow(3, "Agent", 10, "Acme", now, now))

	rec, env := do(t, router, "GET", "/roles?grouped=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var groups []RoleGroup
	require.NoError(t, json.Unmarshal(env.Data, &groups))
	require.Len(t, groups, 2)
	assert.Equal(t, "Acme", groups[0].Label)
	assert.Len(t, groups[0].Roles, 2)
	assert.Equal(t, UnassignedGroup, groups[1].Label)
}

func TestHandlers_CreateRole(t *testing.T) {
	t.Run("forbidden without create", func(t *testing.T) {
		router, _ := setupHandlers(t, Matrix{PagePermissions: {ActionEdit: 1}})
		rec, _ := do(t, router, "POST", "/roles", CreateRoleRequest{Name: "Agent", CompanyID: 1})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("created", func(t *testing.T) {
		router, mock := setupHandlers(t, adminMatrix())
		mock.ExpectQuery("INSERT INTO roles").WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))

		rec, env := do(t, router, "POST", "/roles", CreateRoleRequest{Name: "Agent", CompanyID: 1})
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "Role created successfully!", env.Message)
	})

	t.Run("validation", func(t *testing.T) {
		router, _ := setupHandlers(t, adminMatrix())
		rec, env := do(t, router, "POST", "/roles", CreateRoleRequest{CompanyID: 1})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "is required", env.Errors["name"])
	})
}

func TestHandlers_DeleteRole(t *testing.T) {
	router, mock := setupHandlers(t, adminMatrix())
	now := time.Now()
	mock.ExpectQuery("WHERE r.id = \\$1").WillReturnRows(sqlmock.NewRows(roleColumns).AddRow(4, "Temp", 1, "Acme", now, now))
	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM role_permissions").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM roles").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec, env := do(t, router, "POST", "/roles/delete", map[string]int64{"id": 4})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `Role "Temp" deleted.`, env.Message)
}

func TestHandlers_GetPermissions(t *testing.T) {
	router, mock := setupHandlers(t, adminMatrix())
	mock.ExpectQuery("SELECT permissions FROM role_permissions").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"permissions"}))

	rec, env := do(t, router, "GET", "/permissions?companyId=1&roleId=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var data []storedPermissions
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Len(t, data, 1)
	assert.Equal(t, 0, data[0].Permissions[PageTickets][ActionView])

	rec, _ = do(t, router, "GET", "/permissions?companyId=1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_SavePermissions(t *testing.T) {
	router, mock := setupHandlers(t, adminMatrix())
	now := time.Now()
	mock.ExpectQuery("WHERE r.id = \\$1").WillReturnRows(sqlmock.NewRows(roleColumns).AddRow(2, "Agent", 1, "Acme", now, now))
	mock.ExpectQuery("SELECT permissions FROM role_permissions").WillReturnRows(sqlmock.NewRows([]string{"permissions"}))
	mock.ExpectExec("INSERT INTO role_permissions").WillReturnResult(sqlmock.NewResult(0, 1))

	rec, env := do(t, router, "POST", "/permissions", map[string]interface{}{
		"company_id":  1,
		"role_id":     2,
		"permissions": map[string]map[string]int{"Tickets": {"view": 1}},
	})
	require.Equal(t, http.StatusOK, rec.Code, env.Message)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_SavePermissionsRejectsBadBody(t *testing.T) {
	router, _ := setupHandlers(t, adminMatrix())

	rec, env := do(t, router, "POST", "/permissions", map[string]interface{}{"company_id": 1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Please select a company and a role before saving.", env.Message)
}
