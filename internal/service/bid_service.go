package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/db"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
	"github.com/yakoovad/council-tenders/pkg/logger"
	"go.uber.org/zap"
)

// BidService owns every bid transition except award and reject,
// which belong to AwardService.
type BidService struct {
	tx db.Transactor

	bids     repository.BidRepository
	packages repository.PackageRepository
	activity repository.ActivityRepository
	notifier Notifier

	now func() time.Time
}

func NewBidService(tx db.Transactor) *BidService {
	return &BidService{
		tx:  tx,
		now: time.Now,
	}
}

func validateProposal(p model.BidProposal) *Error {
	switch {
	case p.Price < 0:
		return NewError(ErrorCodeValidation, "price must not be negative")
	case p.DurationDays < 1:
		return NewError(ErrorCodeValidation, "duration_days must be at least 1")
	case strings.TrimSpace(p.Proposal) == "":
		return NewError(ErrorCodeValidation, "proposal is required")
	}
	return nil
}

func validateFilter(f model.BidFilter) (model.BidFilter, *Error) {
	for _, s := range f.Statuses {
		if !s.Valid() {
			return f, NewError(ErrorCodeValidation, "unknown bid status "+string(s))
		}
	}
	f.Limit, f.Offset = clampPage(f.Limit, f.Offset)
	return f, nil
}

// Submit places a new bid on an open package.
func (s *BidService) Submit(ctx context.Context, actor auth.Actor, packageID string, p model.BidProposal) (*model.Bid, *Error) {
	if e := authorize(actor, auth.CapSubmitBid); e != nil {
		return nil, e
	}
	if e := validateProposal(p); e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(zap.String("package_id", packageID), zap.String("contractor_id", actor.ID))

	var (
		bid    *model.Bid
		events []event
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		pkg, err := s.packages.GetForShare(txCtx, packageID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "package not found")
		case err != nil:
			l.Error("failed to get package", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get package")
		}

		now := s.now().UTC()
		if !pkg.AcceptsBids(now) {
			return NewError(ErrorCodeState, "package is not accepting bids")
		}

		_, err = s.bids.FindLive(txCtx, packageID, actor.ID)
		switch {
		case err == nil:
			return NewError(ErrorCodeValidation, "contractor already has an active bid on this package")
		case !errors.Is(err, repository.ErrNotFound):
			l.Error("failed to look up existing bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to look up existing bid")
		}

		bid = &model.Bid{
			ID:           uuid.NewString(),
			PackageID:    packageID,
			ContractorID: actor.ID,
			Price:        p.Price,
			DurationDays: p.DurationDays,
			Proposal:     p.Proposal,
			Status:       model.BidStatusSubmitted,
			SubmittedAt:  now,
			UpdatedAt:    now,
		}
		err = s.bids.Create(txCtx, bid)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeValidation, "contractor already has an active bid on this package")
		case err != nil:
			l.Error("failed to create bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create bid")
		}

		details := fmt.Sprintf("Submitted bid on %s: %s", pkg.Title, formatMinor(bid.Price))
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionBidSubmitted, bid.ID, details); e != nil {
			return e
		}

		events = append(events, event{recipientID: pkg.CouncilID, kind: model.EventBidSubmitted, entityID: bid.ID})
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("bid submitted", zap.String("bid_id", bid.ID))
	emit(ctx, s.notifier, events)
	return bid, nil
}

// Review moves a submitted bid under review. Only the council owning the
// package may review.
func (s *BidService) Review(ctx context.Context, actor auth.Actor, bidID, notes string) (*model.Bid, *Error) {
	if e := authorize(actor, auth.CapReviewBid); e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(zap.String("bid_id", bidID), zap.String("council_id", actor.ID))

	var (
		bid    *model.Bid
		events []event
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.bids.Get(txCtx, bidID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "bid not found")
		case err != nil:
			l.Error("failed to get bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get bid")
		}

		pkg, err := s.packages.GetForShare(txCtx, current.PackageID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "package not found")
		case err != nil:
			l.Error("failed to get package", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get package")
		}
		if pkg.CouncilID != actor.ID {
			return NewError(ErrorCodeForbidden, "package belongs to another council")
		}

		if current.Status != model.BidStatusSubmitted {
			return NewError(ErrorCodeState, "bid cannot be reviewed from status "+string(current.Status))
		}

		now := s.now().UTC()
		bid, err = s.bids.Transition(txCtx, &repository.BidTransition{
			ID:          bidID,
			From:        []model.BidStatus{model.BidStatusSubmitted},
			To:          model.BidStatusUnderReview,
			ReviewerID:  &actor.ID,
			ReviewNotes: &notes,
			At:          now,
		})
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeState, "bid changed state concurrently")
		case err != nil:
			l.Error("failed to review bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to review bid")
		}

		details := fmt.Sprintf("Reviewing bid from %s on %s", bid.ContractorID, pkg.Title)
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionBidReviewed, bid.ID, details); e != nil {
			return e
		}

		events = append(events, event{recipientID: bid.ContractorID, kind: model.EventBidUnderReview, entityID: bid.ID})
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("bid under review")
	emit(ctx, s.notifier, events)
	return bid, nil
}

// Withdraw is a compare-and-swap from an active status, so it either lands
// before a concurrent award or fails with STATE.
func (s *BidService) Withdraw(ctx context.Context, actor auth.Actor, bidID string) (*model.Bid, *Error) {
	if e := authorize(actor, auth.CapWithdrawBid); e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(zap.String("bid_id", bidID), zap.String("contractor_id", actor.ID))

	var (
		bid    *model.Bid
		events []event
	)
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.bids.Get(txCtx, bidID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "bid not found")
		case err != nil:
			l.Error("failed to get bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get bid")
		}
		if current.ContractorID != actor.ID {
			return NewError(ErrorCodeForbidden, "bid belongs to another contractor")
		}
		if !current.Status.CanTransitionTo(model.BidStatusWithdrawn) {
			return NewError(ErrorCodeState, "bid cannot be withdrawn from status "+string(current.Status))
		}

		pkg, err := s.packages.Get(txCtx, current.PackageID)
		if err != nil {
			l.Error("failed to get package", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get package")
		}

		now := s.now().UTC()
		bid, err = s.bids.Transition(txCtx, &repository.BidTransition{
			ID:   bidID,
			From: model.ActiveBidStatuses,
			To:   model.BidStatusWithdrawn,
			At:   now,
		})
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeState, "bid changed state concurrently")
		case err != nil:
			l.Error("failed to withdraw bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to withdraw bid")
		}

		if e := record(txCtx, s.activity, now, actor.ID, model.ActionBidWithdrawn, bid.ID, "Withdrew bid on "+pkg.Title); e != nil {
			return e
		}

		events = append(events, event{recipientID: pkg.CouncilID, kind: model.EventBidWithdrawn, entityID: bid.ID})
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("bid withdrawn")
	emit(ctx, s.notifier, events)
	return bid, nil
}

// Update lets a contractor revise a bid that has not been picked up for review.
func (s *BidService) Update(ctx context.Context, actor auth.Actor, bidID string, p model.BidProposal) (*model.Bid, *Error) {
	if e := authorize(actor, auth.CapEditBid); e != nil {
		return nil, e
	}
	if e := validateProposal(p); e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(zap.String("bid_id", bidID), zap.String("contractor_id", actor.ID))

	var bid *model.Bid
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.bids.Get(txCtx, bidID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "bid not found")
		case err != nil:
			l.Error("failed to get bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get bid")
		}
		if current.ContractorID != actor.ID {
			return NewError(ErrorCodeForbidden, "bid belongs to another contractor")
		}
		if current.Status != model.BidStatusSubmitted {
			return NewError(ErrorCodeState, "only submitted bids can be edited")
		}

		pkg, err := s.packages.GetForShare(txCtx, current.PackageID)
		if err != nil {
			l.Error("failed to get package", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get package")
		}
		now := s.now().UTC()
		if !pkg.AcceptsBids(now) {
			return NewError(ErrorCodeState, "package is not accepting bids")
		}

		bid, err = s.bids.UpdateProposal(txCtx, bidID, p, now)
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeState, "bid changed state concurrently")
		case err != nil:
			l.Error("failed to update bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update bid")
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("bid updated")
	return bid, nil
}

// Get returns a bid to its contractor or to the council owning its package.
func (s *BidService) Get(ctx context.Context, actor auth.Actor, bidID string) (*model.Bid, *Error) {
	l := logger.FromContext(ctx)

	bid, err := s.bids.Get(ctx, bidID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "bid not found")
	case err != nil:
		l.Error("failed to get bid", zap.String("bid_id", bidID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get bid")
	}

	switch actor.Role {
	case auth.RoleContractor:
		if bid.ContractorID == actor.ID {
			return bid, nil
		}
	case auth.RoleCouncil:
		pkg, err := s.packages.Get(ctx, bid.PackageID)
		if err != nil {
			l.Error("failed to get package", zap.String("package_id", bid.PackageID), zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to get package")
		}
		if pkg.CouncilID == actor.ID {
			return bid, nil
		}
	}
	return nil, NewError(ErrorCodeForbidden, "bid is not visible to this actor")
}

func (s *BidService) ListMine(ctx context.Context, actor auth.Actor, filter model.BidFilter) ([]*model.Bid, *Error) {
	if e := authorize(actor, auth.CapSubmitBid); e != nil {
		return nil, e
	}
	filter, e := validateFilter(filter)
	if e != nil {
		return nil, e
	}

	res, err := s.bids.ListByContractor(ctx, actor.ID, filter)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list bids", zap.String("contractor_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list bids")
	}
	return res, nil
}

func (s *BidService) ListForPackage(ctx context.Context, actor auth.Actor, packageID string, filter model.BidFilter) ([]*model.Bid, *Error) {
	if e := authorize(actor, auth.CapReviewBid); e != nil {
		return nil, e
	}
	filter, e := validateFilter(filter)
	if e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(zap.String("package_id", packageID))

	pkg, err := s.packages.Get(ctx, packageID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "package not found")
	case err != nil:
		l.Error("failed to get package", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get package")
	}
	if pkg.CouncilID != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "package belongs to another council")
	}

	res, err := s.bids.ListByPackage(ctx, packageID, filter)
	if err != nil {
		l.Error("failed to list bids", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list bids")
	}
	return res, nil
}

func (s *BidService) WithBidRepo(r repository.BidRepository) *BidService {
	s.bids = r
	return s
}

func (s *BidService) WithPackageRepo(r repository.PackageRepository) *BidService {
	s.packages = r
	return s
}

func (s *BidService) WithActivityRepo(r repository.ActivityRepository) *BidService {
	s.activity = r
	return s
}

func (s *BidService) WithNotifier(n Notifier) *BidService {
	s.notifier = n
	return s
}

func (s *BidService) WithClock(now func() time.Time) *BidService {
	s.now = now
	return s
}
