package datatable

import (
	"context"

	"github.com/platinummonkey/helpdesk/pkg/session"
)

// DefaultPerPage is the page size used when none is given.
const DefaultPerPage = 10

// Paginate returns page (1-based) of the visible rows. Pages past the end
// are empty.
func (t *Table[T]) Paginate(page, perPage int) []T {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= len(t.filtered) {
		return []T{}
	}
	end := start + perPage
	if end > len(t.filtered) {
		end = len(t.filtered)
	}
	return t.filtered[start:end]
}

// PageCount returns the number of pages of visible rows.
func (t *Table[T]) PageCount(perPage int) int {
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	return (len(t.filtered) + perPage - 1) / perPage
}

// Markers remember where the user was in a list: the current page and the
// last clicked row id.
type Markers struct {
	Page int
	Row  int64
}

// LoadMarkers reads the markers from s. A fresh session starts on page 1.
func LoadMarkers(ctx context.Context, s *session.Session) Markers {
	page, row := s.Markers(ctx)
	if page < 1 {
		page = 1
	}
	return Markers{Page: page, Row: row}
}

// Save stores the markers in s.
func (m Markers) Save(ctx context.Context, s *session.Session) error {
	return s.SetMarkers(ctx, m.Page, m.Row)
}
