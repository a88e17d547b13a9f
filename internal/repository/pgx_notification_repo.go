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

type NotificationRepository interface {
	Create(ctx context.Context, n *model.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error)
}

type pgxNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPgxNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &pgxNotificationRepository{pool: pool}
}

// Create always writes through the pool so a notification never joins the
// caller's transaction.
func (p *pgxNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	q := psql.Insert(
		im.Into("notification", "id", "recipient_id", "kind", "entity_id", "message", "created_at"),
		im.Values(
			psql.Arg(n.ID),
			psql.Arg(n.RecipientID),
			psql.Arg(n.Kind),
			psql.Arg(n.EntityID),
			psql.Arg(n.Message),
			psql.Arg(n.CreatedAt),
		),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, sql, args...)
	return translatePgError(err)
}

func (p *pgxNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns("id", "recipient_id", "kind", "entity_id", "message", "created_at"),
		sm.From("notification"),
		sm.Where(psql.Quote("recipient_id").EQ(psql.Arg(recipientID))),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Notification, error) {
		n := &model.Notification{}
		if err := row.Scan(&n.ID, &n.RecipientID, &n.Kind, &n.EntityID, &n.Message, &n.CreatedAt); err != nil {
			return nil, err
		}
		return n, nil
	})
}
