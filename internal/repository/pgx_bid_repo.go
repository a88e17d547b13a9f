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

var bidColumns = []any{
	"id", "package_id", "contractor_id", "price", "duration_days", "proposal",
	"status", "review_notes", "reviewed_by", "submitted_at", "reviewed_at", "updated_at",
}

// BidTransition moves one bid to To, but only while it is still in one of From.
type BidTransition struct {
	ID          string
	From        []model.BidStatus
	To          model.BidStatus
	ReviewerID  *string
	ReviewNotes *string
	At          time.Time
}

type BidRepository interface {
	Create(ctx context.Context, bid *model.Bid) error
	Get(ctx context.Context, bidID string) (*model.Bid, error)
	GetForUpdate(ctx context.Context, bidID string) (*model.Bid, error)
	FindLive(ctx context.Context, packageID, contractorID string) (*model.Bid, error)
	ListByContractor(ctx context.Context, contractorID string, filter model.BidFilter) ([]*model.Bid, error)
	ListByPackage(ctx context.Context, packageID string, filter model.BidFilter) ([]*model.Bid, error)
	Transition(ctx context.Context, t *BidTransition) (*model.Bid, error)
	RejectActive(ctx context.Context, packageID, exceptBidID, reviewerID, notes string, at time.Time) ([]*model.Bid, error)
	UpdateProposal(ctx context.Context, bidID string, p model.BidProposal, at time.Time) (*model.Bid, error)
}

type pgxBidRepository struct {
	pool *pgxpool.Pool
}

func NewPgxBidRepository(pool *pgxpool.Pool) BidRepository {
	return &pgxBidRepository{pool: pool}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBid(row scanner) (*model.Bid, error) {
	b := &model.Bid{}
	err := row.Scan(
		&b.ID,
		&b.PackageID,
		&b.ContractorID,
		&b.Price,
		&b.DurationDays,
		&b.Proposal,
		&b.Status,
		&b.ReviewNotes,
		&b.ReviewedBy,
		&b.SubmittedAt,
		&b.ReviewedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func statusArgs(statuses []model.BidStatus) []bob.Expression {
	args := make([]bob.Expression, 0, len(statuses))
	for _, s := range statuses {
		args = append(args, psql.Arg(s))
	}
	return args
}

// Create inserts a bid and refreshes it with the stored values.
func (p *pgxBidRepository) Create(ctx context.Context, bid *model.Bid) error {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Insert(
		im.Into("bid", "id", "package_id", "contractor_id", "price", "duration_days", "proposal", "status", "submitted_at", "updated_at"),
		im.Values(
			psql.Arg(bid.ID),
			psql.Arg(bid.PackageID),
			psql.Arg(bid.ContractorID),
			psql.Arg(bid.Price),
			psql.Arg(bid.DurationDays),
			psql.Arg(bid.Proposal),
			psql.Arg(bid.Status),
			psql.Arg(bid.SubmittedAt),
			psql.Arg(bid.UpdatedAt),
		),
		im.Returning(bidColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return err
	}

	stored, err := scanBid(e.QueryRow(ctx, sql, args...))
	if err != nil {
		return translatePgError(err)
	}
	*bid = *stored
	return nil
}

func (p *pgxBidRepository) get(ctx context.Context, bidID string, lock bob.Mod[*dialect.SelectQuery]) (*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(bidColumns...),
		sm.From("bid"),
		sm.Where(psql.Quote("id").EQ(psql.Arg(bidID))),
	)
	if lock != nil {
		q.Apply(lock)
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	b, err := scanBid(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return b, nil
}

func (p *pgxBidRepository) Get(ctx context.Context, bidID string) (*model.Bid, error) {
	return p.get(ctx, bidID, nil)
}

// GetForUpdate locks the bid row until the surrounding transaction ends.
func (p *pgxBidRepository) GetForUpdate(ctx context.Context, bidID string) (*model.Bid, error) {
	return p.get(ctx, bidID, sm.ForUpdate("bid"))
}

// FindLive returns the contractor's non-withdrawn bid on the package.
func (p *pgxBidRepository) FindLive(ctx context.Context, packageID, contractorID string) (*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Select(
		sm.Columns(bidColumns...),
		sm.From("bid"),
		sm.Where(
			psql.Quote("package_id").EQ(psql.Arg(packageID)).
				And(psql.Quote("contractor_id").EQ(psql.Arg(contractorID))).
				And(psql.Quote("status").NE(psql.Arg(model.BidStatusWithdrawn))),
		),
		sm.Limit(1),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	b, err := scanBid(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, translatePgError(err)
	}
	return b, nil
}

func (p *pgxBidRepository) list(ctx context.Context, where dialect.Expression, filter model.BidFilter) ([]*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	if len(filter.Statuses) > 0 {
		where = where.And(psql.Quote("status").In(statusArgs(filter.Statuses)...))
	}

	q := psql.Select(
		sm.Columns(bidColumns...),
		sm.From("bid"),
		sm.Where(where),
		sm.OrderBy("submitted_at").Desc(),
		sm.OrderBy("id"),
	)
	if filter.Limit > 0 {
		q.Apply(sm.Limit(psql.Arg(filter.Limit)), sm.Offset(psql.Arg(filter.Offset)))
	}

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := e.Query(ctx, sql, args...)
	if err != nil {
		return nil, translatePgError(err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Bid, error) {
		return scanBid(row)
	})
}

func (p *pgxBidRepository) ListByContractor(ctx context.Context, contractorID string, filter model.BidFilter) ([]*model.Bid, error) {
	return p.list(ctx, psql.Quote("contractor_id").EQ(psql.Arg(contractorID)), filter)
}

func (p *pgxBidRepository) ListByPackage(ctx context.Context, packageID string, filter model.BidFilter) ([]*model.Bid, error) {
	return p.list(ctx, psql.Quote("package_id").EQ(psql.Arg(packageID)), filter)
}

// Transition is a compare-and-swap on the bid status. It returns ErrStaleState
// when the bid is missing or no longer in one of t.From.
func (p *pgxBidRepository) Transition(ctx context.Context, t *BidTransition) (*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	sets := []bob.Mod[*dialect.UpdateQuery]{
		um.SetCol("status").ToArg(t.To),
		um.SetCol("updated_at").ToArg(t.At),
	}
	if t.ReviewerID != nil {
		sets = append(sets,
			um.SetCol("reviewed_by").ToArg(*t.ReviewerID),
			um.SetCol("reviewed_at").ToArg(t.At),
		)
	}
	if t.ReviewNotes != nil {
		sets = append(sets, um.SetCol("review_notes").ToArg(*t.ReviewNotes))
	}

	q := psql.Update(
		um.Table("bid"),
		um.Where(
			psql.Quote("id").EQ(psql.Arg(t.ID)).
				And(psql.Quote("status").In(statusArgs(t.From)...)),
		),
		um.Returning(bidColumns...),
	)
	q.Apply(sets...)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	b, err := scanBid(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleState
		}
		return nil, translatePgError(err)
	}
	return b, nil
}

// RejectActive rejects every submitted or under-review bid of the package
// except exceptBidID and returns the rejected bids.
func (p *pgxBidRepository) RejectActive(ctx context.Context, packageID, exceptBidID, reviewerID, notes string, at time.Time) ([]*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	where := psql.Quote("package_id").EQ(psql.Arg(packageID)).
		And(psql.Quote("status").In(statusArgs(model.ActiveBidStatuses)...))
	if exceptBidID != "" {
		where = where.And(psql.Quote("id").NE(psql.Arg(exceptBidID)))
	}

	q := psql.Update(
		um.Table("bid"),
		um.SetCol("status").ToArg(model.BidStatusRejected),
		um.SetCol("reviewed_by").ToArg(reviewerID),
		um.SetCol("reviewed_at").ToArg(at),
		um.SetCol("review_notes").ToArg(notes),
		um.SetCol("updated_at").ToArg(at),
		um.Where(where),
		um.Returning(bidColumns...),
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

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.Bid, error) {
		return scanBid(row)
	})
}

// UpdateProposal edits a bid that is still submitted.
func (p *pgxBidRepository) UpdateProposal(ctx context.Context, bidID string, prop model.BidProposal, at time.Time) (*model.Bid, error) {
	e := db.GetPgxExecutorFromContext(ctx, p.pool)

	q := psql.Update(
		um.Table("bid"),
		um.SetCol("price").ToArg(prop.Price),
		um.SetCol("duration_days").ToArg(prop.DurationDays),
		um.SetCol("proposal").ToArg(prop.Proposal),
		um.SetCol("updated_at").ToArg(at),
		um.Where(
			psql.Quote("id").EQ(psql.Arg(bidID)).
				And(psql.Quote("status").EQ(psql.Arg(model.BidStatusSubmitted))),
		),
		um.Returning(bidColumns...),
	)

	sql, args, err := q.Build(ctx)
	if err != nil {
		return nil, err
	}

	b, err := scanBid(e.QueryRow(ctx, sql, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStaleState
		}
		return nil, translatePgError(err)
	}
	return b, nil
}
