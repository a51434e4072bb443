//go:build integration

package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_CreatesSchema(t *testing.T) {
	db := SetupPostgresContainer(t)
	ctx := context.Background()

	for _, table := range []string{
		"companies", "company_links", "company_locations", "roles", "role_permissions",
		"users", "projects", "project_locations", "user_projects", "password_resets",
		"tickets", "ticket_history", "ticket_assignments", "ticket_comments",
		"purchase_orders", "invoices", "attachments", "audit_events",
	} {
		var exists bool
		err := db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "table %s", table)
	}
}

func TestMigrate_CompanyLinkOrdering(t *testing.T) {
	db := SetupPostgresContainer(t)
	ctx := context.Background()

	var a, b int64
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO companies (name) VALUES ('A') RETURNING id`).Scan(&a))
	require.NoError(t, db.QueryRowContext(ctx, `INSERT INTO companies (name) VALUES ('B') RETURNING id`).Scan(&b))

	_, err := db.ExecContext(ctx, `INSERT INTO company_links (company_id1, company_id2) VALUES ($1, $2)`, b, a)
	assert.Error(t, err, "links must be stored as (min, max)")

	_, err = db.ExecContext(ctx, `INSERT INTO company_links (company_id1, company_id2) VALUES ($1, $2)`, a, b)
	assert.NoError(t, err)
}
