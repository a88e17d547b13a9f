package service

import (
	"context"
	"fmt"
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

const (
	awardRejectionNotes = "Another bid was awarded for this package"
	closeRejectionNotes = "Package closed without award"
)

type AwardResult struct {
	Package  *model.Package `json:"package"`
	Awarded  *model.Bid     `json:"awarded_bid"`
	Rejected []*model.Bid   `json:"rejected_bids"`
	TeamID   string         `json:"team_id"`
}

type CloseResult struct {
	Package  *model.Package `json:"package"`
	Rejected []*model.Bid   `json:"rejected_bids"`
}

// AwardService is the single place where bids become awarded or rejected.
// The package row lock taken at the start of each operation serializes
// awards and closes of the same package.
type AwardService struct {
	tx db.Transactor

	bids     repository.BidRepository
	packages repository.PackageRepository
	projects repository.ProjectRepository
	teams    repository.TeamRepository
	activity repository.ActivityRepository
	notifier Notifier

	now func() time.Time
}

func NewAwardService(tx db.Transactor) *AwardService {
	return &AwardService{
		tx:  tx,
		now: time.Now,
	}
}

// lockOpenPackage locks the package and checks that the actor owns it and
// that it is still open.
func (s *AwardService) lockOpenPackage(ctx context.Context, l *zap.Logger, actor auth.Actor, packageID string) (*model.Package, error) {
	pkg, err := s.packages.GetForUpdate(ctx, packageID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "package not found")
	case err != nil:
		l.Error("failed to lock package", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to lock package")
	}
	if pkg.CouncilID != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "package belongs to another council")
	}
	if pkg.Status != model.PackageStatusOpen {
		return nil, NewError(ErrorCodeConflict, "package is no longer open")
	}
	return pkg, nil
}

// Award marks bidID as the winner of packageID, rejects every other active
// bid and moves the package to awarded, all in one transaction. The
// winning contractor joins the project's team.
func (s *AwardService) Award(ctx context.Context, actor auth.Actor, packageID, bidID string) (*AwardResult, *Error) {
	if e := authorize(actor, auth.CapAwardPackage); e != nil {
		return nil, e
	}

	l := logger.FromContext(ctx).With(
		zap.String("package_id", packageID),
		zap.String("bid_id", bidID),
		zap.String("council_id", actor.ID),
	)

	res := &AwardResult{}
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		pkg, err := s.lockOpenPackage(txCtx, l, actor, packageID)
		if err != nil {
			return err
		}

		bid, err := s.bids.GetForUpdate(txCtx, bidID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "bid not found")
		case err != nil:
			l.Error("failed to lock bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to lock bid")
		}
		if bid.PackageID != packageID {
			return NewError(ErrorCodeNotFound, "bid not found for this package")
		}
		if !bid.Status.CanTransitionTo(model.BidStatusAwarded) {
			return NewError(ErrorCodeState, "bid cannot be awarded from status "+string(bid.Status))
		}

		now := s.now().UTC()
		res.Awarded, err = s.bids.Transition(txCtx, &repository.BidTransition{
			ID:         bidID,
			From:       model.ActiveBidStatuses,
			To:         model.BidStatusAwarded,
			ReviewerID: &actor.ID,
			At:         now,
		})
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeState, "bid changed state concurrently")
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeConflict, "package already has an awarded bid")
		case err != nil:
			l.Error("failed to award bid", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to award bid")
		}

		res.Rejected, err = s.bids.RejectActive(txCtx, packageID, bidID, actor.ID, awardRejectionNotes, now)
		if err != nil {
			l.Error("failed to reject competing bids", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to reject competing bids")
		}

		res.Package, err = s.packages.SetStatus(txCtx, packageID, model.PackageStatusAwarded, &bidID, now)
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeConflict, "package was awarded or closed concurrently")
		case err != nil:
			l.Error("failed to mark package awarded", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to mark package awarded")
		}

		details := fmt.Sprintf("Awarded %s to %s: %s", pkg.Title, res.Awarded.ContractorID, formatMinor(res.Awarded.Price))
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionBidAwarded, bidID, details); e != nil {
			return e
		}
		for _, b := range res.Rejected {
			if e := record(txCtx, s.activity, now, actor.ID, model.ActionBidRejected, b.ID, awardRejectionNotes); e != nil {
				return e
			}
		}

		res.TeamID, err = s.assembleTeam(txCtx, l, pkg, res.Awarded.ContractorID, actor.ID, now)
		return err
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("package awarded", zap.Int("rejected", len(res.Rejected)))

	events := make([]event, 0, len(res.Rejected)+1)
	events = append(events, event{recipientID: res.Awarded.ContractorID, kind: model.EventBidAwarded, entityID: res.Awarded.ID})
	for _, b := range res.Rejected {
		events = append(events, event{recipientID: b.ContractorID, kind: model.EventBidRejected, entityID: b.ID})
	}
	emit(ctx, s.notifier, events)

	return res, nil
}

// assembleTeam adds the winning contractor to the project's team, creating
// the team on the first award. The first contractor to join leads the team.
func (s *AwardService) assembleTeam(ctx context.Context, l *zap.Logger, pkg *model.Package, contractorID, councilID string, now time.Time) (string, error) {
	team, err := s.teams.GetByProjectForUpdate(ctx, pkg.ProjectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		project, err := s.projects.Get(ctx, pkg.ProjectID)
		if err != nil {
			l.Error("failed to get project", zap.String("project_id", pkg.ProjectID), zap.Error(err))
			return "", NewError(ErrorCodeUnspecified, "failed to get project")
		}
		team, err = s.teams.EnsureForProject(ctx, &model.Team{
			ID:         uuid.NewString(),
			ProjectID:  project.ID,
			Name:       project.Title + " Team",
			Status:     model.TeamStatusForming,
			AssignedBy: councilID,
			CreatedAt:  now,
		})
		if err != nil {
			l.Error("failed to create team", zap.String("project_id", pkg.ProjectID), zap.Error(err))
			return "", NewError(ErrorCodeUnspecified, "failed to create team")
		}
	case err != nil:
		l.Error("failed to lock team", zap.String("project_id", pkg.ProjectID), zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to lock team")
	}

	role := model.MemberRoleMember
	if team.LeadContractorID == nil {
		role = model.MemberRoleLead
	}

	err = s.teams.AddMember(ctx, team.ID, &model.TeamMember{
		ContractorID: contractorID,
		Role:         role,
		AssignedAt:   now,
	})
	switch {
	case errors.Is(err, repository.ErrAlreadyExists):
		// Already on the team from an earlier package of the same project.
		return team.ID, nil
	case err != nil:
		l.Error("failed to add team member", zap.String("team_id", team.ID), zap.Error(err))
		return "", NewError(ErrorCodeUnspecified, "failed to add team member")
	}

	details := fmt.Sprintf("Added %s to %s as %s", contractorID, team.Name, role)
	if e := record(ctx, s.activity, now, councilID, model.ActionTeamMemberAdded, team.ID, details); e != nil {
		return "", e
	}

	if role == model.MemberRoleLead {
		if err = s.teams.SetLead(ctx, team.ID, &contractorID); err != nil {
			l.Error("failed to set team lead", zap.String("team_id", team.ID), zap.Error(err))
			return "", NewError(ErrorCodeUnspecified, "failed to set team lead")
		}
	}
	return team.ID, nil
}

// Close ends bidding on an open package without a winner.
func (s *AwardService) Close(ctx context.Context, actor auth.Actor, packageID, notes string) (*CloseResult, *Error) {
	if e := authorize(actor, auth.CapAwardPackage); e != nil {
		return nil, e
	}
	if notes == "" {
		notes = closeRejectionNotes
	}

	l := logger.FromContext(ctx).With(zap.String("package_id", packageID), zap.String("council_id", actor.ID))

	res := &CloseResult{}
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := s.lockOpenPackage(txCtx, l, actor, packageID); err != nil {
			return err
		}

		now := s.now().UTC()
		var err error
		res.Rejected, err = s.bids.RejectActive(txCtx, packageID, "", actor.ID, notes, now)
		if err != nil {
			l.Error("failed to reject bids", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to reject bids")
		}

		res.Package, err = s.packages.SetStatus(txCtx, packageID, model.PackageStatusClosed, nil, now)
		switch {
		case errors.Is(err, repository.ErrStaleState):
			return NewError(ErrorCodeConflict, "package was awarded or closed concurrently")
		case err != nil:
			l.Error("failed to close package", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to close package")
		}

		details := fmt.Sprintf("Closed %s, %d bids rejected", res.Package.Title, len(res.Rejected))
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionPackageClosed, packageID, details); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("package closed", zap.Int("rejected", len(res.Rejected)))

	events := make([]event, 0, len(res.Rejected))
	for _, b := range res.Rejected {
		events = append(events, event{recipientID: b.ContractorID, kind: model.EventPackageClosed, entityID: packageID})
	}
	emit(ctx, s.notifier, events)

	return res, nil
}

func (s *AwardService) WithBidRepo(r repository.BidRepository) *AwardService {
	s.bids = r
	return s
}

func (s *AwardService) WithPackageRepo(r repository.PackageRepository) *AwardService {
	s.packages = r
	return s
}

func (s *AwardService) WithProjectRepo(r repository.ProjectRepository) *AwardService {
	s.projects = r
	return s
}

func (s *AwardService) WithTeamRepo(r repository.TeamRepository) *AwardService {
	s.teams = r
	return s
}

func (s *AwardService) WithActivityRepo(r repository.ActivityRepository) *AwardService {
	s.activity = r
	return s
}

func (s *AwardService) WithNotifier(n Notifier) *AwardService {
	s.notifier = n
	return s
}

func (s *AwardService) WithClock(now func() time.Time) *AwardService {
	s.now = now
	return s
}
