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
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/model"
)

var packageColumns = []any{
	"id", "project_id", "council_id", "title", "description", "package_type",
	"estimated_cost", "deadline", "status", "awarded_bid_id", "created_at", "updated_at",
}

type PackageRepository interface {
	Create(ctx context.Context, pkg *model.Package) error
	Get(ctx context.Context, packageID string) (*model.Package, error)
	GetForShare(ctx context.Context, packageID string) (*model.Package, error)
	GetForUpdate(ctx context.Context, packageID string) (*model.Package, error)
	ListByProject(ctx context.Context, projectID string) ([]*model.Package, error)
	// SetStatus moves an open package to status. It returns ErrStaleState
	// when the package is no longer open.
	SetStatus(ctx context.Context, packageID string, status model.PackageStatus, awardedBidID *string, at time.Time) (*model.Package, error)
}

type pgxPackageRepository struct {
	pool *pgxpool.Pool
}

func NewPgxPackageRepository(pool *pgxpool.Pool) PackageRepository {
	return &pgxPackageRepository{pool: pool}
}

func scanPackage(row scanner) (*model.Package, error) {
	p := &model.Package{}
	err := row.Scan(
		&p.ID,
		&p.ProjectID,
		&p.CouncilID,
		&p.Title,
		&p.Description,
		&p.Type,
		&p.EstimatedCost,
		&p.Deadline,
		&p.Status,
		&p.AwardedBidID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (p *pgxPackageRepository) Create(ctx context.Context, pkg *model.Package) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("package", "id", "project_id", "council_id", "title", "description", "package_type", "estimated_cost", "deadline", "status", "created_at", "updated_at"),
		im.Values(
			psql.Arg(pkg.ID),
			psql.Arg(pkg.ProjectID),
			psql.Arg(pkg.CouncilID),
			psql.Arg(pkg.Title),
			psql.Arg(pkg.Description),
			psql.Arg(pkg.Type),
			psql.Arg(pkg.EstimatedCost),
			psql.Arg(pkg.Deadline),
			psql.Arg(pkg.Status),
			psql.Arg(pkg.CreatedAt),
			psql.Arg(pkg.UpdatedAt),
		),
		im.Returning(packageColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanPackage(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return translatePgError(err)
	}
	*pkg = *stored
	return nil
}

func (p *pgxPackageRepository) get(ctx context.Context, packageID string, lock bob.Mod[*dialect.SelectQuery]) (*model.Package, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(packageColumns...),
		sm.From("package"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(packageID))),
	)
	if lock != nil {
		q.Apply(lock)
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	pkg, err := scanPackage(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return pkg, nil
}

func (p *pgxPackageRepository) Get(ctx context.Context, packageID string) (*model.Package, error) {
	return p.get(ctx, packageID, nil)
}

// GetForShare blocks concurrent awards and closes of the package while the
// surrounding transaction is open.
func (p *pgxPackageRepository) GetForShare(ctx context.Context, packageID string) (*model.Package, error) {
	return p.get(ctx, packageID, sm.ForShare("package"))
}

// GetForUpdate takes the exclusive package lock that serializes awards.
func (p *pgxPackageRepository) GetForUpdate(ctx context.Context, packageID string) (*model.Package, error) {
	return p.get(ctx, packageID, sm.ForUpdate("package"))
}

func (p *pgxPackageRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Package, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(packageColumns...),
		sm.From("package"),
		sm.Where(psql.Quote("project_id").EQ(psql.Arg(projectID))),
		sm.OrderBy("deadline"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Package, error) {
		return scanPackage(row)
	})
}

func (p *pgxPackageRepository) SetStatus(ctx context.Context, packageID string, status model.PackageStatus, awardedBidID *string, at time.Time) (*model.Package, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("package"),
		um.SetCol("status").ToArg(status),
		um.SetCol("awarded_bid_id").ToArg(awardedBidID),
		um.SetCol("updated_at").ToArg(at),
		um.Where(
			psql.Quote("id").EQ(psql.Arg(packageID)).
				And(psql.Quote("status").EQ(psql.Arg(model.PackageStatusOpen))),
		),
		um.Returning(packageColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	pkg, err := scanPackage(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleState
		}
		return nil, translatePgError(err)
	}
	return pkg, nil
}
