package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/model"
)

type ActivityRepository interface {
	Create(ctx context.Context, entry *model.ActivityEntry) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*model.ActivityEntry, error)
}

type pgxActivityRepository struct {
	pool *pgxpool.Pool
}

func NewPgxActivityRepository(pool *pgxpool.Pool) ActivityRepository {
	return &pgxActivityRepository{pool: pool}
}

// Create joins the caller's transaction, so an entry is only kept when the
// change it describes commits.
func (p *pgxActivityRepository) Create(ctx context.Context, entry *model.ActivityEntry) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("activity_log", "id", "actor_id", "action", "entity_id", "details", "created_at"),
		im.Values(
			psql.Arg(entry.ID),
			psql.Arg(entry.ActorID),
			psql.Arg(entry.Action),
			psql.Arg(entry.EntityID),
			psql.Arg(entry.Details),
			psql.Arg(entry.CreatedAt),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = e.Exec(ctx, sql, args...)
	return translatePgError(err)
}

func (p *pgxActivityRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*model.ActivityEntry, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "actor_id", "action", "entity_id", "details", "created_at"),
		sm.From("activity_log"),
		sm.Where(psql.Quote("actor_id").EQ(psql.Arg(actorID))),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.ActivityEntry, error) {
		a := &model.ActivityEntry{}
		if err := row.Scan(&a.ID, &a.ActorID, &a.Action, &a.EntityID, &a.Details, &a.CreatedAt); err != nil {
			return nil, err
		}
		return a, nil
	})
}
