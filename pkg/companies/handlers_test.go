package companies

import (
	"bytes"
	"context"
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
	"github.com/platinummonkey/helpdesk/pkg/permissions"
)

type envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func setupRouter(t *testing.T, caller permissions.Matrix) (*mux.Router, sqlmock.Sqlmock) {
	svc, mock := newMockService(t)
	guard := permissions.NewGuard(permissions.ResolverFunc(func(context.Context, int64, int64) (permissions.Matrix, error) {
		return caller, nil
	}), nil)

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

func fullMatrix() permissions.Matrix {
	return permissions.DefaultCatalog().FullMatrix()
}

func TestHandlers_ListCompanies(t *testing.T) {
	router, mock := setupRouter(t, permissions.Matrix{})
	now := time.Now()
	mock.ExpectQuery("FROM companies c").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows(companyRowColumns).
			AddRow(1, "Acme", "", "", "", true, true, "{}", now, now))

	rec, env := do(t, router, "GET", "/companies", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)

	var companies []Company
	require.NoError(t, json.Unmarshal(env.Data, &companies))
	require.Len(t, companies, 1)
	assert.Equal(t, "Acme", companies[0].Name)
}

func TestHandlers_CreateCompanyForbidden(t *testing.T) {
	router, mock := setupRouter(t, permissions.Matrix{permissions.PageCompanies: {permissions.ActionEdit: 1}})

	rec, env := do(t, router, "POST", "/companies", CompanyRequest{Name: "Acme"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, env.Success)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlers_CreateCompany(t *testing.T) {
	router, mock := setupRouter(t, fullMatrix())
	now := time.Now()
	mock.ExpectQuery("INSERT INTO companies").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(5, now, now))

	rec, env := do(t, router, "POST", "/companies", CompanyRequest{Name: "Acme"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Company created successfully!", env.Message)
}

func TestHandlers_Link(t *testing.T) {
	t.Run("self link", func(t *testing.T) {
		router, _ := setupRouter(t, fullMatrix())
		rec, env := do(t, router, "POST", "/companies/link", LinkRequest{CompanyID1: 2, CompanyID2: 2})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "A company cannot be linked to itself", env.Message)
	})

	t.Run("requires link permission", func(t *testing.T) {
		router, _ := setupRouter(t, permissions.Matrix{permissions.PageCompanies: {permissions.ActionEdit: 1}})
		rec, _ := do(t, router, "POST", "/companies/link", LinkRequest{CompanyID1: 2, CompanyID2: 3})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestHandlers_ListMembers(t *testing.T) {
	columns := []string{"id", "name", "email", "role", "is_active"}

	t.Run("query parameter", func(t *testing.T) {
		router, mock := setupRouter(t, permissions.Matrix{})
		mock.ExpectQuery("FROM users u").WithArgs(int64(4)).
			WillReturnRows(sqlmock.NewRows(columns).AddRow(1, "Dana", "d@x.test", "Agent", true))

		rec, _ := do(t, router, "GET", "/companies/users?companyId=4", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("post body", func(t *testing.T) {
		router, mock := setupRouter(t, permissions.Matrix{})
		mock.ExpectQuery("FROM users u").WithArgs(int64(6)).
			WillReturnRows(sqlmock.NewRows(columns))

		rec, _ := do(t, router, "POST", "/companies/users", CompanyUsersRequest{CompanyID: 6})
		assert.Equal(t, http.StatusOK, rec.Code)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing company", func(t *testing.T) {
		router, _ := setupRouter(t, permissions.Matrix{})
		rec, env := do(t, router, "GET", "/companies/users", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "companyId is required", env.Message)
	})
}

func TestHandlers_CreateLocation(t *testing.T) {
	router, mock := setupRouter(t, fullMatrix())
	now := time.Now()
	mock.ExpectQuery("INSERT INTO company_locations").
		WithArgs(int64(3), "Depot").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(8, now, now))

	rec, env := do(t, router, "POST", "/companies/3/addresses", LocationRequest{LocationName: "Depot"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Address added successfully!", env.Message)
}

func TestHandlers_DeleteLocationRequiresID(t *testing.T) {
	router, _ := setupRouter(t, fullMatrix())
	rec, env := do(t, router, "POST", "/companies/addresses/delete", map[string]int{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "id is required", env.Message)
}
