package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/platinummonkey/helpdesk/pkg/apperr"
)

// Postgres error codes the services translate.
const (
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// TranslateError maps driver errors onto apperr kinds: missing rows become
// NotFound and constraint violations become Conflict. Other errors are
// returned unchanged.
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(entity)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " already exists", Err: err}
		case pqForeignKeyViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " is referenced by other records", Err: err}
		}
	}
	return err
}

// RequireRow returns NotFound for entity when result affected no rows.
func RequireRow(result sql.Result, entity string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}
