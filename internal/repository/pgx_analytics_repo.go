package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/model"
)

// AnalyticsRepository holds the read-only aggregate queries behind
// dashboards, exports and generated reports.
type AnalyticsRepository interface {
	// BidAnalytics aggregates every bid placed on the council's packages.
	BidAnalytics(ctx context.Context, councilID string) (*model.BidAnalytics, error)
	ExportRows(ctx context.Context, councilID string) ([]*model.BidExportRow, error)
	ProjectExportRows(ctx context.Context, councilID string) ([]*model.ProjectExportRow, error)
	ProjectFigures(ctx context.Context, projectID string) (*model.ProjectFigures, error)
	CouncilDashboard(ctx context.Context, councilID string) (*model.CouncilDashboard, error)
	ContractorDashboard(ctx context.Context, contractorID string) (*model.ContractorDashboard, error)
}

type pgxAnalyticsRepository struct {
	pool *pgxpool.Pool
}

func NewPgxAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &pgxAnalyticsRepository{pool: pool}
}

func (p *pgxAnalyticsRepository) BidAnalytics(ctx context.Context, councilID string) (*model.BidAnalytics, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	res := &model.BidAnalytics{
		CouncilID: councilID,
		ByStatus:  make(map[model.BidStatus]int64),
	}

	totals := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("coalesce(avg(b.price), 0)::float8"),
			psql.Raw("coalesce(sum(b.price), 0)::bigint"),
		),
		sm.From("bid").As("b"),
		sm.InnerJoin("package").As("p").On(
			psql.Quote("p", "id").EQ(psql.Quote("b", "package_id")),
		),
		sm.Where(psql.Quote("p", "council_id").EQ(psql.Arg(councilID))),
	)

	sql, args, err := totals.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.QueryRow(ctx, sql, args...).Scan(&res.Total, &res.AveragePrice, &res.TotalValue); err != nil {
		return nil, err
	}

	byStatus := psql.Select(
		sm.Columns(psql.Quote("b", "status"), psql.Raw("count(*)")),
		sm.From("bid").As("b"),
		sm.InnerJoin("package").As("p").On(
			psql.Quote("p", "id").EQ(psql.Quote("b", "package_id")),
		),
		sm.Where(psql.Quote("p", "council_id").EQ(psql.Arg(councilID))),
		sm.GroupBy(psql.Quote("b", "status")),
	)

	sql, args, err = byStatus.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			status model.BidStatus
			count  int64
		)
		if err = rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res.ByStatus[status] = count
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}

	return res, nil
}

func (p *pgxAnalyticsRepository) ExportRows(ctx context.Context, councilID string) ([]*model.BidExportRow, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(
			psql.Quote("p", "title"),
			psql.Quote("b", "contractor_id"),
			psql.Quote("b", "price"),
			psql.Quote("b", "duration_days"),
			psql.Quote("b", "status"),
			psql.Quote("b", "submitted_at"),
		),
		sm.From("bid").As("b"),
		sm.InnerJoin("package").As("p").On(
			psql.Quote("p", "id").EQ(psql.Quote("b", "package_id")),
		),
		sm.Where(psql.Quote("p", "council_id").EQ(psql.Arg(councilID))),
		sm.OrderBy(psql.Quote("b", "submitted_at")).Desc(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.BidExportRow, error) {
		r := &model.BidExportRow{}
		if err := row.Scan(&r.PackageTitle, &r.ContractorID, &r.Price, &r.DurationDays, &r.Status, &r.SubmittedAt); err != nil {
			return nil, err
		}
		return r, nil
	})
}

func (p *pgxAnalyticsRepository) ProjectExportRows(ctx context.Context, councilID string) ([]*model.ProjectExportRow, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(
			psql.Quote("pr", "title"),
			psql.Quote("pr", "location"),
			psql.Quote("pr", "status"),
			psql.Raw("count(pk.id)"),
			psql.Quote("pr", "start_date"),
			psql.Quote("pr", "end_date"),
		),
		sm.From("project").As("pr"),
		sm.LeftJoin("package").As("pk").On(
			psql.Quote("pk", "project_id").EQ(psql.Quote("pr", "id")),
		),
		sm.Where(psql.Quote("pr", "council_id").EQ(psql.Arg(councilID))),
		sm.GroupBy(psql.Quote("pr", "id")),
		sm.OrderBy(psql.Quote("pr", "created_at")).Desc(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.ProjectExportRow, error) {
		r := &model.ProjectExportRow{}
		if err := row.Scan(&r.Title, &r.Location, &r.Status, &r.Packages, &r.StartDate, &r.EndDate); err != nil {
			return nil, err
		}
		return r, nil
	})
}

func (p *pgxAnalyticsRepository) ProjectFigures(ctx context.Context, projectID string) (*model.ProjectFigures, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	res := &model.ProjectFigures{ProjectID: projectID}

	project := psql.Select(
		sm.Columns("title", "status", "start_date", "end_date"),
		sm.From("project"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(projectID))),
	)

	sql, args, err := project.Build(ctx)
	if err != nil {
		return nil, err
	}
	err = e.QueryRow(ctx, sql, args...).Scan(&res.Title, &res.Status, &res.StartDate, &res.EndDate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}

	packages := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE status = 'open')"),
			psql.Raw("count(*) FILTER (WHERE status = 'awarded')"),
			psql.Raw("count(*) FILTER (WHERE status = 'closed')"),
			psql.Raw("coalesce(sum(estimated_cost), 0)::bigint"),
		),
		sm.From("package"),
		sm.Where(psql.Quote("project_id").EQ(psql.Arg(projectID))),
	)

	sql, args, err = packages.Build(ctx)
	if err != nil {
		return nil, err
	}
	err = e.QueryRow(ctx, sql, args...).Scan(
		&res.TotalPackages,
		&res.OpenPackages,
		&res.AwardedPackages,
		&res.ClosedPackages,
		&res.EstimatedCost,
	)
	if err != nil {
		return nil, err
	}

	bids := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE b.status IN ('submitted', 'under_review'))"),
			psql.Raw("count(*) FILTER (WHERE b.status = 'awarded')"),
			psql.Raw("count(*) FILTER (WHERE b.status = 'rejected')"),
			psql.Raw("count(*) FILTER (WHERE b.status = 'withdrawn')"),
			psql.Raw("coalesce(sum(b.price) FILTER (WHERE b.status = 'awarded'), 0)::bigint"),
			psql.Raw("coalesce(avg(b.price), 0)::float8"),
		),
		sm.From("bid").As("b"),
		sm.InnerJoin("package").As("p").On(
			psql.Quote("p", "id").EQ(psql.Quote("b", "package_id")),
		),
		sm.Where(psql.Quote("p", "project_id").EQ(psql.Arg(projectID))),
	)

	sql, args, err = bids.Build(ctx)
	if err != nil {
		return nil, err
	}
	err = e.QueryRow(ctx, sql, args...).Scan(
		&res.TotalBids,
		&res.ActiveBids,
		&res.AwardedBids,
		&res.RejectedBids,
		&res.WithdrawnBids,
		&res.AwardedValue,
		&res.AverageBid,
	)
	if err != nil {
		return nil, err
	}

	team := psql.Select(
		sm.Columns(
			psql.Quote("t", "name"),
			psql.Quote("t", "status"),
			psql.Raw("(SELECT count(*) FROM team_member m WHERE m.team_id = t.id)"),
		),
		sm.From("contractor_team").As("t"),
		sm.Where(psql.Quote("t", "project_id").EQ(psql.Arg(projectID))),
	)

	sql, args, err = team.Build(ctx)
	if err != nil {
		return nil, err
	}
	err = e.QueryRow(ctx, sql, args...).Scan(&res.TeamName, &res.TeamStatus, &res.TeamMembers)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	return res, nil
}

func (p *pgxAnalyticsRepository) CouncilDashboard(ctx context.Context, councilID string) (*model.CouncilDashboard, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	res := &model.CouncilDashboard{}

	projects := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE status = 'published')"),
			psql.Raw("count(*) FILTER (WHERE status = 'in_progress')"),
		),
		sm.From("project"),
		sm.Where(psql.Quote("council_id").EQ(psql.Arg(councilID))),
	)

	sql, args, err := projects.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.QueryRow(ctx, sql, args...).Scan(&res.TotalProjects, &res.PublishedProjects, &res.ActiveProjects); err != nil {
		return nil, err
	}

	packages := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE status = 'open')"),
		),
		sm.From("package"),
		sm.Where(psql.Quote("council_id").EQ(psql.Arg(councilID))),
	)

	sql, args, err = packages.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.QueryRow(ctx, sql, args...).Scan(&res.TotalPackages, &res.OpenPackages); err != nil {
		return nil, err
	}

	bids := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE b.status IN ('submitted', 'under_review'))"),
			psql.Raw("count(*) FILTER (WHERE b.status = 'awarded')"),
		),
		sm.From("bid").As("b"),
		sm.InnerJoin("package").As("p").On(
			psql.Quote("p", "id").EQ(psql.Quote("b", "package_id")),
		),
		sm.Where(psql.Quote("p", "council_id").EQ(psql.Arg(councilID))),
	)

	sql, args, err = bids.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err = e.QueryRow(ctx, sql, args...).Scan(&res.TotalBids, &res.PendingBids, &res.AwardedBids); err != nil {
		return nil, err
	}

	return res, nil
}

// ContractorDashboard leaves SuccessRate to the caller.
func (p *pgxAnalyticsRepository) ContractorDashboard(ctx context.Context, contractorID string) (*model.ContractorDashboard, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(
			psql.Raw("count(*)"),
			psql.Raw("count(*) FILTER (WHERE status IN ('submitted', 'under_review'))"),
			psql.Raw("count(*) FILTER (WHERE status = 'awarded')"),
		),
		sm.From("bid"),
		sm.Where(psql.Quote("contractor_id").EQ(psql.Arg(contractorID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	res := &model.ContractorDashboard{}
	if err = e.QueryRow(ctx, sql, args...).Scan(&res.TotalBids, &res.ActiveBids, &res.AwardedBids); err != nil {
		return nil, err
	}
	return res, nil
}
