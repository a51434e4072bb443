package companies

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
	"github.com/platinummonkey/helpdesk/pkg/audit"
	"github.com/platinummonkey/helpdesk/pkg/storage"
)

// Link records an undirected link between two companies. Linking an already
// linked pair is a no-op.
func (s *PostgresService) Link(ctx context.Context, req LinkRequest) error {
	a, b, err := req.Normalize()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO company_links (company_id1, company_id2) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		a, b,
	)
	if err != nil {
		return storage.TranslateError(fmt.Errorf("failed to link companies: %w", err), "Company")
	}

	audit.Record(ctx, audit.EventTypeDataLink, audit.ResourceTypeCompany,
		linkID(a, b), "companies linked", nil)
	return nil
}

// Unlink removes the link between two companies.
func (s *PostgresService) Unlink(ctx context.Context, req LinkRequest) error {
	a, b, err := req.Normalize()
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM company_links WHERE company_id1 = $1 AND company_id2 = $2`,
		a, b,
	)
	if err != nil {
		return fmt.Errorf("failed to unlink companies: %w", err)
	}
	if err := storage.RequireRow(result, "Company link"); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Validation("These companies are not linked")
		}
		return err
	}

	audit.Record(ctx, audit.EventTypeDataUnlink, audit.ResourceTypeCompany,
		linkID(a, b), "companies unlinked", nil)
	return nil
}

func linkID(a, b int64) string {
	return strconv.FormatInt(a, 10) + ":" + strconv.FormatInt(b, 10)
}
