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

var projectColumns = []any{
	"id", "council_id", "title", "description", "location", "budget_range",
	"start_date", "end_date", "status", "is_public", "created_at", "updated_at",
}

type ProjectPatch struct {
	ID          string               `db:"id"`
	Title       *string              `db:"title"`
	Description *string              `db:"description"`
	Location    *string              `db:"location"`
	BudgetRange *string              `db:"budget_range"`
	Status      *model.ProjectStatus `db:"status"`
	IsPublic    *bool                `db:"is_public"`
	UpdatedAt   time.Time            `db:"updated_at"`
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	Get(ctx context.Context, projectID string) (*model.Project, error)
	Patch(ctx context.Context, patch *ProjectPatch) (*model.Project, error)
	ListPublic(ctx context.Context, limit, offset int) ([]*model.Project, error)
	ListByCouncil(ctx context.Context, councilID string, limit, offset int) ([]*model.Project, error)
}

type pgxProjectRepository struct {
	pool *pgxpool.Pool
}

func NewPgxProjectRepository(pool *pgxpool.Pool) ProjectRepository {
	return &pgxProjectRepository{pool: pool}
}

func scanProject(row scanner) (*model.Project, error) {
	p := &model.Project{}
	err := row.Scan(
		&p.ID,
		&p.CouncilID,
		&p.Title,
		&p.Description,
		&p.Location,
		&p.BudgetRange,
		&p.StartDate,
		&p.EndDate,
		&p.Status,
		&p.IsPublic,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

func (p *pgxProjectRepository) Create(ctx context.Context, project *model.Project) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("project", "id", "council_id", "title", "description", "location", "budget_range", "start_date", "end_date", "status", "is_public", "created_at", "updated_at"),
		im.Values(
			psql.Arg(project.ID),
			psql.Arg(project.CouncilID),
			psql.Arg(project.Title),
			psql.Arg(project.Description),
			psql.Arg(project.Location),
			psql.Arg(project.BudgetRange),
			psql.Arg(project.StartDate),
			psql.Arg(project.EndDate),
			psql.Arg(project.Status),
			psql.Arg(project.IsPublic),
			psql.Arg(project.CreatedAt),
			psql.Arg(project.UpdatedAt),
		),
		im.Returning(projectColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanProject(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return translatePgError(err)
	}
	*project = *stored
	return nil
}

func (p *pgxProjectRepository) Get(ctx context.Context, projectID string) (*model.Project, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(projectColumns...),
		sm.From("project"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(projectID))),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	project, err := scanProject(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return project, nil
}

func (p *pgxProjectRepository) Patch(ctx context.Context, patch *ProjectPatch) (*model.Project, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := make([]bob.Mod[*dialect.UpdateQuery], 0, 7)
	if patch.Title != nil {
		sets = append(sets, um.SetCol("title").ToArg(*patch.Title))
	}
	if patch.Description != nil {
		sets = append(sets, um.SetCol("description").ToArg(*patch.Description))
	}
	if patch.Location != nil {
		sets = append(sets, um.SetCol("location").ToArg(*patch.Location))
	}
	if patch.BudgetRange != nil {
		sets = append(sets, um.SetCol("budget_range").ToArg(*patch.BudgetRange))
	}
	if patch.Status != nil {
		sets = append(sets, um.SetCol("status").ToArg(*patch.Status))
	}
	if patch.IsPublic != nil {
		sets = append(sets, um.SetCol("is_public").ToArg(*patch.IsPublic))
	}
	sets = append(sets, um.SetCol("updated_at").ToArg(patch.UpdatedAt))

	q := psql.Update(
		um.Table("project"),
		um.Where(psql.Quote("id").EQ(psql.Arg(patch.ID))),
		um.Returning(projectColumns...),
	)

	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	project, err := scanProject(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return project, nil
}

func (p *pgxProjectRepository) list(ctx context.Context, where dialect.Expression, limit, offset int) ([]*model.Project, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(projectColumns...),
		sm.From("project"),
		sm.Where(where),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Project, error) {
		return scanProject(row)
	})
}

func (p *pgxProjectRepository) ListPublic(ctx context.Context, limit, offset int) ([]*model.Project, error) {
	return p.list(ctx,
		psql.Quote("is_public").EQ(psql.Arg(true)).
			And(psql.Quote("status").NE(psql.Arg(model.ProjectStatusDraft))),
		limit, offset)
}

func (p *pgxProjectRepository) ListByCouncil(ctx context.Context, councilID string, limit, offset int) ([]*model.Project, error) {
	return p.list(ctx, psql.Quote("council_id").EQ(psql.Arg(councilID)), limit, offset)
}
