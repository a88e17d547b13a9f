package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/model"
)

var reportColumns = []any{
	"id", "title", "report_type", "content", "project_id", "package_id", "bid_id",
	"created_by", "created_at", "updated_at",
}

type ReportPatch struct {
	ID        string            `db:"id"`
	Title     *string           `db:"title"`
	Type      *model.ReportType `db:"report_type"`
	Content   *string           `db:"content"`
	UpdatedAt time.Time         `db:"updated_at"`
}

type ReportRepository interface {
	Create(ctx context.Context, report *model.Report) error
	Get(ctx context.Context, reportID string) (*model.Report, error)
	// ListVisible returns reports the user wrote plus reports attached to
	// the user's own projects.
	ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Report, error)
	Update(ctx context.Context, patch *ReportPatch) (*model.Report, error)
	Delete(ctx context.Context, reportID string) error
}

type pgxReportRepository struct {
	pool *pgxpool.Pool
}

func NewPgxReportRepository(pool *pgxpool.Pool) ReportRepository {
	return &pgxReportRepository{pool: pool}
}

func scanReport(row scanner) (*model.Report, error) {
	r := &model.Report{}
	err := row.Scan(
		&r.ID,
		&r.Title,
		&r.Type,
		&r.Content,
		&r.ProjectID,
		&r.PackageID,
		&r.BidID,
		&r.CreatedBy,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	return r, err
}

func (p *pgxReportRepository) Create(ctx context.Context, report *model.Report) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("report", "id", "title", "report_type", "content", "project_id", "package_id", "bid_id", "created_by", "created_at", "updated_at"),
		im.Values(
			psql.Arg(report.ID),
			psql.Arg(report.Title),
			psql.Arg(report.Type),
			psql.Arg(report.Content),
			psql.Arg(report.ProjectID),
			psql.Arg(report.PackageID),
			psql.Arg(report.BidID),
			psql.Arg(report.CreatedBy),
			psql.Arg(report.CreatedAt),
			psql.Arg(report.UpdatedAt),
		),
		im.Returning(reportColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanReport(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return translatePgError(err)
	}
	*report = *stored
	return nil
}

func (p *pgxReportRepository) Get(ctx context.Context, reportID string) (*model.Report, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(reportColumns...),
		sm.From("report"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(reportID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	report, err := scanReport(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return report, nil
}

func (p *pgxReportRepository) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Report, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(reportColumns...),
		sm.From("report"),
		sm.Where(
			psql.Quote("created_by").EQ(psql.Arg(userID)).Or(
				psql.Raw("project_id IN (SELECT id FROM project WHERE council_id = ?)", userID),
			),
		),
		sm.OrderBy("created_at").Desc(),
		sm.Limit(psql.Arg(limit)),
		sm.Offset(psql.Arg(offset)),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Report, error) {
		return scanReport(row)
	})
}

func (p *pgxReportRepository) Update(ctx context.Context, patch *ReportPatch) (*model.Report, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 4)
	if patch.Title != nil {
		sets = append(sets, um.SetCol("title").ToArg(*patch.Title))
	}
	if patch.Type != nil {
		sets = append(sets, um.SetCol("report_type").ToArg(*patch.Type))
	}
	if patch.Content != nil {
		sets = append(sets, um.SetCol("content").ToArg(*patch.Content))
	}
	sets = append(sets, um.SetCol("updated_at").ToArg(patch.UpdatedAt))

	q := psql.Update(
		um.Table("report"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(reportColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	report, err := scanReport(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return report, nil
}

func (p *pgxReportRepository) Delete(ctx context.Context, reportID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("report"),
		dm.Where(psql.Quote("id").EQ(psql.Arg(reportID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	tag, err := e.Exec(ctx, sql, args...)
	if err != nil {
		return translatePgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
