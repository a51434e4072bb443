package companies

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

func TestLinkRequest_Normalize(t *testing.T) {
	tests := []struct {
		name    string
		req     LinkRequest
		a, b    int64
		wantErr string
	}{
		{name: "ordered", req: LinkRequest{CompanyID1: 2, CompanyID2: 7}, a: 2, b: 7},
		{name: "reversed", req: LinkRequest{CompanyID1: 7, CompanyID2: 2}, a: 2, b: 7},
		{name: "self link", req: LinkRequest{CompanyID1: 4, CompanyID2: 4}, wantErr: "A company cannot be linked to itself"},
		{name: "missing", req: LinkRequest{CompanyID1: 4}, wantErr: "Please select two companies"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b, err := tt.req.Normalize()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantErr, apperr.MessageOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.a, a)
			assert.Equal(t, tt.b, b)
		})
	}
}

func TestLink(t *testing.T) {
	svc, mock := newMockService(t)
	mock.ExpectExec("INSERT INTO company_links").
		WithArgs(int64(3), int64(8)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.Link(context.Background(), LinkRequest{CompanyID1: 8, CompanyID2: 3}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLink_SelfRejectedBeforeQuery(t *testing.T) {
	svc, mock := newMockService(t)
	err := svc.Link(context.Background(), LinkRequest{CompanyID1: 3, CompanyID2: 3})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUnlink(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec("DELETE FROM company_links").
			WithArgs(int64(3), int64(8)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, svc.Unlink(context.Background(), LinkRequest{CompanyID1: 8, CompanyID2: 3}))
	})

	t.Run("not linked", func(t *testing.T) {
		svc, mock := newMockService(t)
		mock.ExpectExec("DELETE FROM company_links").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := svc.Unlink(context.Background(), LinkRequest{CompanyID1: 8, CompanyID2: 3})
		assert.Equal(t, "These companies are not linked", apperr.MessageOf(err))
	})
}
