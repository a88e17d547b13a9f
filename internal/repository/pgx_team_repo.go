package repository

import (
	"context"

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

var teamColumns = []any{
	"id", "project_id", "name", "lead_contractor_id", "status", "notes", "assigned_by", "created_at",
}

type TeamRepository interface {
	Create(ctx context.Context, team *model.Team) error
	Get(ctx context.Context, teamID string) (*model.Team, error)
	// GetByProjectForUpdate locks the project's team row. It returns
	// ErrNotFound when the project has no team yet.
	GetByProjectForUpdate(ctx context.Context, projectID string) (*model.Team, error)
	// EnsureForProject creates team unless its project already has one and
	// returns the project's team locked for update.
	EnsureForProject(ctx context.Context, team *model.Team) (*model.Team, error)
	GetMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error)
	// AddMember returns ErrAlreadyExists when the contractor is already on
	// the team. It never aborts the surrounding transaction.
	AddMember(ctx context.Context, teamID string, member *model.TeamMember) error
	RemoveMember(ctx context.Context, teamID, contractorID string) error
	// SetLead replaces the team lead; nil clears it.
	SetLead(ctx context.Context, teamID string, contractorID *string) error
	SetStatus(ctx context.Context, teamID string, status model.TeamStatus) (*model.Team, error)
	ListByContractor(ctx context.Context, contractorID string) ([]*model.Team, error)
}

type pgxTeamRepository struct {
	pool *pgxpool.Pool
}

func NewPgxTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &pgxTeamRepository{pool: pool}
}

func scanTeam(row scanner) (*model.Team, error) {
	t := &model.Team{}
	err := row.Scan(
		&t.ID,
		&t.ProjectID,
		&t.Name,
		&t.LeadContractorID,
		&t.Status,
		&t.Notes,
		&t.AssignedBy,
		&t.CreatedAt,
	)
	return t, err
}

func (p *pgxTeamRepository) Create(ctx context.Context, team *model.Team) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("contractor_team", "id", "project_id", "name", "lead_contractor_id", "status", "notes", "assigned_by", "created_at"),
		im.Values(
			psql.Arg(team.ID),
			psql.Arg(team.ProjectID),
			psql.Arg(team.Name),
			psql.Arg(team.LeadContractorID),
			psql.Arg(team.Status),
			psql.Arg(team.Notes),
			psql.Arg(team.AssignedBy),
			psql.Arg(team.CreatedAt),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return translatePgError(err)
}

func (p *pgxTeamRepository) EnsureForProject(ctx context.Context, team *model.Team) (*model.Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("contractor_team", "id", "project_id", "name", "lead_contractor_id", "status", "notes", "assigned_by", "created_at"),
		im.Values(
			psql.Arg(team.ID),
			psql.Arg(team.ProjectID),
			psql.Arg(team.Name),
			psql.Arg(team.LeadContractorID),
			psql.Arg(team.Status),
			psql.Arg(team.Notes),
			psql.Arg(team.AssignedBy),
			psql.Arg(team.CreatedAt),
		),
		im.OnConflict(psql.Quote("project_id")).DoNothing(),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	if _, err = e.Exec(ctx, sql, args...); err != nil {
		return nil, translatePgError(err)
	}
	return p.GetByProjectForUpdate(ctx, team.ProjectID)
}

func (p *pgxTeamRepository) get(ctx context.Context, where dialect.Expression, lock bob.Mod[*dialect.SelectQuery]) (*model.Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(teamColumns...),
		sm.From("contractor_team"),
		sm.Where(where),
	)
	if lock != nil {
		q.Apply(lock)
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return team, nil
}

func (p *pgxTeamRepository) Get(ctx context.Context, teamID string) (*model.Team, error) {
	return p.get(ctx, psql.Quote("id").EQ(psql.Arg(teamID)), nil)
}

func (p *pgxTeamRepository) GetByProjectForUpdate(ctx context.Context, projectID string) (*model.Team, error) {
	return p.get(ctx, psql.Quote("project_id").EQ(psql.Arg(projectID)), sm.ForUpdate("contractor_team"))
}

func (p *pgxTeamRepository) GetMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("contractor_id", "role", "assigned_at"),
		sm.From("team_member"),
		sm.Where(psql.Quote("team_id").EQ(psql.Arg(teamID))),
		sm.OrderBy("assigned_at"),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.TeamMember, error) {
		m := &model.TeamMember{}
		if err := row.Scan(&m.ContractorID, &m.Role, &m.AssignedAt); err != nil {
			return nil, err
		}
		return m, nil
	})
}

func (p *pgxTeamRepository) AddMember(ctx context.Context, teamID string, member *model.TeamMember) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("team_member", "team_id", "contractor_id", "role", "assigned_at"),
		im.Values(
			psql.Arg(teamID),
			psql.Arg(member.ContractorID),
			psql.Arg(member.Role),
			psql.Arg(member.AssignedAt),
		),
		im.OnConflict(psql.Quote("team_id"), psql.Quote("contractor_id")).DoNothing(),
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
		return ErrAlreadyExists
	}
	return nil
}

func (p *pgxTeamRepository) RemoveMember(ctx context.Context, teamID, contractorID string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Delete(
		dm.From("team_member"),
		dm.Where(
			psql.Quote("team_id").EQ(psql.Arg(teamID)).
				And(psql.Quote("contractor_id").EQ(psql.Arg(contractorID))),
		),
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

func (p *pgxTeamRepository) SetLead(ctx context.Context, teamID string, contractorID *string) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("contractor_team"),
		um.SetCol("lead_contractor_id").ToArg(contractorID),
		um.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
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

func (p *pgxTeamRepository) SetStatus(ctx context.Context, teamID string, status model.TeamStatus) (*model.Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("contractor_team"),
		um.SetCol("status").ToArg(status),
		um.Where(psql.Quote("id").EQ(psql.Arg(teamID))),
		um.Returning(teamColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	team, err := scanTeam(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return team, nil
}

func (p *pgxTeamRepository) ListByContractor(ctx context.Context, contractorID string) ([]*model.Team, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	columns := make([]any, 0, len(teamColumns))
	for _, c := range teamColumns {
		columns = append(columns, psql.Quote("t", c.(string)))
	}

	q := psql.Select(
		sm.Columns(columns...),
		sm.From("contractor_team").As("t"),
		sm.InnerJoin("team_member").As("m").On(
			psql.Quote("m", "team_id").EQ(psql.Quote("t", "id")),
		),
		sm.Where(psql.Quote("m", "contractor_id").EQ(psql.Arg(contractorID))),
		sm.OrderBy(psql.Quote("t", "created_at")).Desc(),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Team, error) {
		return scanTeam(row)
	})
}
