package service

import (
	"context"
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

type TeamService struct {
	tx db.Transactor

	teams    repository.TeamRepository
	projects repository.ProjectRepository

	now func() time.Time
}

func NewTeamService(tx db.Transactor) *TeamService {
	return &TeamService{
		tx:  tx,
		now: time.Now,
	}
}

func (t *TeamService) CreateTeam(ctx context.Context, actor auth.Actor, d model.TeamDraft) (*model.Team, *Error) {
	if e := authorize(actor, auth.CapManageTeams); e != nil {
		return nil, e
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, NewError(ErrorCodeValidation, "name is required")
	}

	l := logger.FromContext(ctx).With(zap.String("project_id", d.ProjectID))
	l.Info("creating team", zap.String("team_name", d.Name))

	var team *model.Team
	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		project, err := t.projects.Get(txCtx, d.ProjectID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "project not found")
		case err != nil:
			l.Error("failed to get project", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get project")
		}
		if project.CouncilID != actor.ID {
			return NewError(ErrorCodeForbidden, "project belongs to another council")
		}

		team = &model.Team{
			ID:         uuid.NewString(),
			ProjectID:  d.ProjectID,
			Name:       d.Name,
			Status:     model.TeamStatusForming,
			Notes:      d.Notes,
			AssignedBy: actor.ID,
			CreatedAt:  t.now().UTC(),
			Members:    []*model.TeamMember{},
		}
		err = t.teams.Create(txCtx, team)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			l.Warn("project already has a team")
			return NewError(ErrorCodeConflict, "project already has a team")
		case err != nil:
			l.Error("failed to create team", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create team")
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return team, nil
}

// ownedTeam loads a team and checks that actor's council owns its project.
func (t *TeamService) ownedTeam(ctx context.Context, actor auth.Actor, teamID string) (*model.Team, error) {
	l := logger.FromContext(ctx)

	team, err := t.teams.Get(ctx, teamID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "team not found")
	case err != nil:
		l.Error("failed to get team", zap.String("team_id", teamID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	project, err := t.projects.Get(ctx, team.ProjectID)
	if err != nil {
		l.Error("failed to get project", zap.String("project_id", team.ProjectID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get project")
	}
	if project.CouncilID != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "team belongs to another council")
	}
	return team, nil
}

func (t *TeamService) AddMember(ctx context.Context, actor auth.Actor, teamID string, m model.TeamMember) (*model.Team, *Error) {
	if e := authorize(actor, auth.CapManageTeams); e != nil {
		return nil, e
	}
	if m.ContractorID == "" {
		return nil, NewError(ErrorCodeValidation, "contractor_id is required")
	}
	if m.Role == "" {
		m.Role = model.MemberRoleMember
	}

	l := logger.FromContext(ctx).With(zap.String("team_id", teamID), zap.String("contractor_id", m.ContractorID))

	var team *model.Team
	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		var err error
		if team, err = t.ownedTeam(txCtx, actor, teamID); err != nil {
			return err
		}

		m.AssignedAt = t.now().UTC()
		err = t.teams.AddMember(txCtx, teamID, &m)
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			return NewError(ErrorCodeConflict, "contractor is already a team member")
		case err != nil:
			l.Error("failed to add member", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to add member")
		}

		if m.Role == model.MemberRoleLead {
			if err = t.teams.SetLead(txCtx, teamID, &m.ContractorID); err != nil {
				l.Error("failed to set team lead", zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to set team lead")
			}
			team.LeadContractorID = &m.ContractorID
		}

		team.Members, err = t.teams.GetMembers(txCtx, teamID)
		if err != nil {
			l.Error("failed to get members", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to get members")
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Debug("team member added")
	return team, nil
}

func (t *TeamService) RemoveMember(ctx context.Context, actor auth.Actor, teamID, contractorID string) *Error {
	if e := authorize(actor, auth.CapManageTeams); e != nil {
		return e
	}

	l := logger.FromContext(ctx).With(zap.String("team_id", teamID), zap.String("contractor_id", contractorID))

	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		team, err := t.ownedTeam(txCtx, actor, teamID)
		if err != nil {
			return err
		}

		err = t.teams.RemoveMember(txCtx, teamID, contractorID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "contractor is not a team member")
		case err != nil:
			l.Error("failed to remove member", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to remove member")
		}

		if team.LeadContractorID != nil && *team.LeadContractorID == contractorID {
			if err = t.teams.SetLead(txCtx, teamID, nil); err != nil {
				l.Error("failed to clear team lead", zap.Error(err))
				return NewError(ErrorCodeUnspecified, "failed to clear team lead")
			}
		}
		return nil
	})
	return asError(err)
}

func (t *TeamService) SetStatus(ctx context.Context, actor auth.Actor, teamID string, status model.TeamStatus) (*model.Team, *Error) {
	if e := authorize(actor, auth.CapManageTeams); e != nil {
		return nil, e
	}
	if !status.Valid() {
		return nil, NewError(ErrorCodeValidation, "unknown team status")
	}

	var team *model.Team
	err := t.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, err := t.ownedTeam(txCtx, actor, teamID); err != nil {
			return err
		}

		var err error
		team, err = t.teams.SetStatus(txCtx, teamID, status)
		if err != nil {
			logger.FromContext(ctx).Error("failed to set team status", zap.String("team_id", teamID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to set team status")
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return team, nil
}

// GetTeam returns the team with its members to the owning council or to any member.
func (t *TeamService) GetTeam(ctx context.Context, actor auth.Actor, teamID string) (*model.Team, *Error) {
	l := logger.FromContext(ctx).With(zap.String("team_id", teamID))

	team, err := t.teams.Get(ctx, teamID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "team not found")
	case err != nil:
		l.Error("failed to get team", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get team")
	}

	team.Members, err = t.teams.GetMembers(ctx, teamID)
	if err != nil {
		l.Error("failed to get members", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get members")
	}

	switch actor.Role {
	case auth.RoleContractor:
		for _, m := range team.Members {
			if m.ContractorID == actor.ID {
				return team, nil
			}
		}
	case auth.RoleCouncil:
		project, err := t.projects.Get(ctx, team.ProjectID)
		if err != nil {
			l.Error("failed to get project", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to get project")
		}
		if project.CouncilID == actor.ID {
			return team, nil
		}
	}
	return nil, NewError(ErrorCodeForbidden, "team is not visible to this actor")
}

func (t *TeamService) ListMine(ctx context.Context, actor auth.Actor) ([]*model.Team, *Error) {
	if actor.Role != auth.RoleContractor || actor.ID == "" {
		return nil, NewError(ErrorCodeForbidden, "only contractors belong to teams")
	}

	res, err := t.teams.ListByContractor(ctx, actor.ID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list teams", zap.String("contractor_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list teams")
	}
	return res, nil
}

func (t *TeamService) WithTeamRepo(r repository.TeamRepository) *TeamService {
	t.teams = r
	return t
}

func (t *TeamService) WithProjectRepo(r repository.ProjectRepository) *TeamService {
	t.projects = r
	return t
}

func (t *TeamService) WithClock(now func() time.Time) *TeamService {
	t.now = now
	return t
}
