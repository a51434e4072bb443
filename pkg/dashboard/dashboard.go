// Package dashboard computes the headline ticket and entity counts shown on
// the landing page.
package dashboard

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/helpdesk/pkg/tickets"
)

// Months is the number of calendar months in the historical series,
// including the current one.
const Months = 6

// Stats is the payload of GET /dashboard/dashboard-stats.
type Stats struct {
	TicketStats     TicketStats     `json:"ticketStats"`
	GeneralStats    GeneralStats    `json:"generalStats"`
	HistoricalStats HistoricalStats `json:"historicalStats"`
}

// TicketStats counts visible tickets per status.
type TicketStats struct {
	Open       int64 `json:"open"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Reopened   int64 `json:"reopened"`
}

// GeneralStats counts active entities in the viewer's scope.
type GeneralStats struct {
	TotalCompanies int64 `json:"totalCompanies"`
	TotalProjects  int64 `json:"totalProjects"`
	TotalUsers     int64 `json:"totalUsers"`
}

// HistoricalStats counts tickets created and resolved in recent periods.
type HistoricalStats struct {
	CreatedToday      int64        `json:"createdToday"`
	ResolvedToday     int64        `json:"resolvedToday"`
	CreatedThisWeek   int64        `json:"createdThisWeek"`
	ResolvedThisWeek  int64        `json:"resolvedThisWeek"`
	CreatedThisMonth  int64        `json:"createdThisMonth"`
	ResolvedThisMonth int64        `json:"resolvedThisMonth"`
	Months            []MonthStats `json:"months"`
}

// MonthStats is one point of the monthly series. Month is YYYY-MM.
type MonthStats struct {
	Month    string `json:"month"`
	Created  int64  `json:"created"`
	Resolved int64  `json:"resolved"`
}

// Filter scopes the stats. Zero CompanyID or ProjectID means any.
type Filter struct {
	Viewer    tickets.Actor
	CompanyID int64
	ProjectID int64
}

// Periods are the UTC starts of the windows counted in HistoricalStats.
// Weeks start on Monday.
type Periods struct {
	Today      time.Time
	Week       time.Time
	Month      time.Time
	SeriesFrom time.Time
}

// PeriodsAt returns the windows that contain now.
func PeriodsAt(now time.Time) Periods {
	now = now.UTC()
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	offset := (int(today.Weekday()) + 6) % 7
	month := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return Periods{
		Today:      today,
		Week:       today.AddDate(0, 0, -offset),
		Month:      month,
		SeriesFrom: month.AddDate(0, -(Months - 1), 0),
	}
}

// Service reads dashboard stats from PostgreSQL.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService creates a new Service
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

const ticketScope = `
	FROM tickets t
	JOIN projects p ON p.id = t.project_id
	WHERE ` + tickets.VisibleClause + `
	  AND ($3 = 0 OR p.company_id = $3)
	  AND ($4 = 0 OR t.project_id = $4)`

// Stats loads the three stat groups concurrently.
func (s *Service) Stats(ctx context.Context, filter Filter) (*Stats, error) {
	periods := PeriodsAt(s.now())
	out := &Stats{}
	scope := []interface{}{filter.Viewer.CompanyID, filter.Viewer.UserID, filter.CompanyID, filter.ProjectID}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ticketStats(gctx, scope, &out.TicketStats)
	})
	g.Go(func() error {
		return s.generalStats(gctx, filter, &out.GeneralStats)
	})
	g.Go(func() error {
		return s.periodStats(gctx, scope, periods, &out.HistoricalStats)
	})
	var months []MonthStats
	g.Go(func() (err error) {
		months, err = s.monthlyStats(gctx, scope, periods)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out.HistoricalStats.Months = months
	return out, nil
}

func (s *Service) ticketStats(ctx context.Context, scope []interface{}, out *TicketStats) error {
	rows, err := s.db.QueryContext(ctx, `SELECT t.status, COUNT(*)`+ticketScope+` GROUP BY t.status`, scope...)
	if err != nil {
		return fmt.Errorf("failed to count tickets by status: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status string
			n      int64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return fmt.Errorf("failed to scan ticket count: %w", err)
		}
		switch tickets.Status(status) {
		case tickets.StatusOpen:
			out.Open = n
		case tickets.StatusInProgress:
			out.InProgress = n
		case tickets.StatusResolved:
			out.Resolved = n
		case tickets.StatusReopened:
			out.Reopened = n
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate ticket counts: %w", err)
	}
	return nil
}

func (s *Service) generalStats(ctx context.Context, filter Filter, out *GeneralStats) error {
	query := `
		WITH viewer AS (SELECT EXISTS (SELECT 1 FROM companies v WHERE v.id = $1 AND v.is_internal) AS internal)
		SELECT
			(SELECT COUNT(*) FROM companies c, viewer
			 WHERE c.is_active AND (viewer.internal OR c.id = $1) AND ($2 = 0 OR c.id = $2)),
			(SELECT COUNT(*) FROM projects p, viewer
			 WHERE p.is_active AND (viewer.internal OR p.company_id = $1)
			   AND ($2 = 0 OR p.company_id = $2) AND ($3 = 0 OR p.id = $3)),
			(SELECT COUNT(*) FROM users u, viewer
			 WHERE u.is_active AND (viewer.internal OR u.company_id = $1) AND ($2 = 0 OR u.company_id = $2))
	`
	err := s.db.QueryRowContext(ctx, query, filter.Viewer.CompanyID, filter.CompanyID, filter.ProjectID).
		Scan(&out.TotalCompanies, &out.TotalProjects, &out.TotalUsers)
	if err != nil {
		return fmt.Errorf("failed to count entities: %w", err)
	}
	return nil
}

func (s *Service) periodStats(ctx context.Context, scope []interface{}, p Periods, out *HistoricalStats) error {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE t.created_at >= $5),
			COUNT(*) FILTER (WHERE t.resolved_at >= $5),
			COUNT(*) FILTER (WHERE t.created_at >= $6),
			COUNT(*) FILTER (WHERE t.resolved_at >= $6),
			COUNT(*) FILTER (WHERE t.created_at >= $7),
			COUNT(*) FILTER (WHERE t.resolved_at >= $7)` + ticketScope
	args := append(append([]interface{}{}, scope...), p.Today, p.Week, p.Month)
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&out.CreatedToday, &out.ResolvedToday,
		&out.CreatedThisWeek, &out.ResolvedThisWeek,
		&out.CreatedThisMonth, &out.ResolvedThisMonth,
	)
	if err != nil {
		return fmt.Errorf("failed to count recent tickets: %w", err)
	}
	return nil
}

func (s *Service) monthlyStats(ctx context.Context, scope []interface{}, p Periods) ([]MonthStats, error) {
	query := `
		SELECT to_char(date_trunc('month', e.at), 'YYYY-MM'),
		       COUNT(*) FILTER (WHERE e.kind = 'created'),
		       COUNT(*) FILTER (WHERE e.kind = 'resolved')
		FROM (
			SELECT t.created_at AS at, 'created' AS kind` + ticketScope + `
			UNION ALL
			SELECT t.resolved_at AS at, 'resolved' AS kind` + ticketScope + ` AND t.resolved_at IS NOT NULL
		) e
		WHERE e.at >= $5
		GROUP BY 1
	`
	args := append(append([]interface{}{}, scope...), p.SeriesFrom)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load monthly ticket counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]MonthStats)
	for rows.Next() {
		var m MonthStats
		if err := rows.Scan(&m.Month, &m.Created, &m.Resolved); err != nil {
			return nil, fmt.Errorf("failed to scan monthly ticket count: %w", err)
		}
		counts[m.Month] = m
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate monthly ticket counts: %w", err)
	}
	return Series(p.SeriesFrom, counts), nil
}

// Series returns Months consecutive points starting at from, oldest first.
// Months absent from counts are zero.
func Series(from time.Time, counts map[string]MonthStats) []MonthStats {
	out := make([]MonthStats, 0, Months)
	for i := 0; i < Months; i++ {
		key := from.AddDate(0, i, 0).Format("2006-01")
		m := counts[key]
		m.Month = key
		out = append(out, m)
	}
	return out
}
