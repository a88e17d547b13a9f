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

type ProjectService struct {
	tx db.Transactor

	projects repository.ProjectRepository
	packages repository.PackageRepository
	activity repository.ActivityRepository

	now func() time.Time
}

func NewProjectService(tx db.Transactor) *ProjectService {
	return &ProjectService{
		tx:  tx,
		now: time.Now,
	}
}

func visibleTo(p *model.Project, actor auth.Actor) bool {
	if p.CouncilID == actor.ID {
		return true
	}
	return p.IsPublic && p.Status != model.ProjectStatusDraft
}

func (s *ProjectService) CreateProject(ctx context.Context, actor auth.Actor, d model.ProjectDraft) (*model.Project, *Error) {
	if e := authorize(actor, auth.CapManageProjects); e != nil {
		return nil, e
	}
	if strings.TrimSpace(d.Title) == "" {
		return nil, NewError(ErrorCodeValidation, "title is required")
	}
	if d.EndDate.Before(d.StartDate) {
		return nil, NewError(ErrorCodeValidation, "end_date must not be before start_date")
	}

	now := s.now().UTC()
	project := &model.Project{
		ID:          uuid.NewString(),
		CouncilID:   actor.ID,
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		BudgetRange: d.BudgetRange,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Status:      model.ProjectStatusDraft,
		IsPublic:    d.IsPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := s.projects.Create(txCtx, project); err != nil {
			logger.FromContext(ctx).Error("failed to create project", zap.String("council_id", actor.ID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create project")
		}
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionProjectCreated, project.ID, "Created project "+project.Title); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return project, nil
}

// ownedProject loads a project and checks that actor's council owns it.
func (s *ProjectService) ownedProject(ctx context.Context, actor auth.Actor, projectID string) (*model.Project, error) {
	project, err := s.projects.Get(ctx, projectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "project not found")
	case err != nil:
		logger.FromContext(ctx).Error("failed to get project", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get project")
	}
	if project.CouncilID != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "project belongs to another council")
	}
	return project, nil
}

func (s *ProjectService) UpdateProject(ctx context.Context, actor auth.Actor, projectID string, patch model.ProjectPatch) (*model.Project, *Error) {
	if e := authorize(actor, auth.CapManageProjects); e != nil {
		return nil, e
	}
	if patch.Status != nil && !patch.Status.Valid() {
		return nil, NewError(ErrorCodeValidation, "unknown project status")
	}

	var project *model.Project
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		before, err := s.ownedProject(txCtx, actor, projectID)
		if err != nil {
			return err
		}

		now := s.now().UTC()
		project, err = s.projects.Patch(txCtx, &repository.ProjectPatch{
			ID:          projectID,
			Title:       patch.Title,
			Description: patch.Description,
			Location:    patch.Location,
			BudgetRange: patch.BudgetRange,
			Status:      patch.Status,
			IsPublic:    patch.IsPublic,
			UpdatedAt:   now,
		})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "project not found")
		case err != nil:
			logger.FromContext(ctx).Error("failed to update project", zap.String("project_id", projectID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update project")
		}

		action, details := model.ActionProjectUpdated, "Updated project "+project.Title
		if before.Status != model.ProjectStatusPublished && project.Status == model.ProjectStatusPublished {
			action, details = model.ActionProjectPublished, "Published project "+project.Title
		}
		if e := record(txCtx, s.activity, now, actor.ID, action, projectID, details); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return project, nil
}

func (s *ProjectService) GetProject(ctx context.Context, actor auth.Actor, projectID string) (*model.Project, *Error) {
	project, err := s.projects.Get(ctx, projectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "project not found")
	case err != nil:
		logger.FromContext(ctx).Error("failed to get project", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get project")
	}
	if !visibleTo(project, actor) {
		return nil, NewError(ErrorCodeNotFound, "project not found")
	}
	return project, nil
}

func (s *ProjectService) ListPublicProjects(ctx context.Context, limit, offset int) ([]*model.Project, *Error) {
	limit, offset = clampPage(limit, offset)
	res, err := s.projects.ListPublic(ctx, limit, offset)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list public projects", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list projects")
	}
	return res, nil
}

func (s *ProjectService) ListMyProjects(ctx context.Context, actor auth.Actor, limit, offset int) ([]*model.Project, *Error) {
	if e := authorize(actor, auth.CapManageProjects); e != nil {
		return nil, e
	}
	limit, offset = clampPage(limit, offset)
	res, err := s.projects.ListByCouncil(ctx, actor.ID, limit, offset)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list council projects", zap.String("council_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list projects")
	}
	return res, nil
}

// CreatePackage opens a new package for bidding under one of the council's projects.
func (s *ProjectService) CreatePackage(ctx context.Context, actor auth.Actor, projectID string, d model.PackageDraft) (*model.Package, *Error) {
	if e := authorize(actor, auth.CapManageProjects); e != nil {
		return nil, e
	}
	if strings.TrimSpace(d.Title) == "" {
		return nil, NewError(ErrorCodeValidation, "title is required")
	}
	if d.EstimatedCost != nil && *d.EstimatedCost < 0 {
		return nil, NewError(ErrorCodeValidation, "estimated_cost must not be negative")
	}
	now := s.now().UTC()
	if !d.Deadline.After(now) {
		return nil, NewError(ErrorCodeValidation, "deadline must be in the future")
	}

	var pkg *model.Package
	err := s.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		project, err := s.ownedProject(txCtx, actor, projectID)
		if err != nil {
			return err
		}
		if project.Status == model.ProjectStatusCompleted || project.Status == model.ProjectStatusCancelled {
			return NewError(ErrorCodeState, "project is "+string(project.Status))
		}

		pkg = &model.Package{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			CouncilID:     project.CouncilID,
			Title:         d.Title,
			Description:   d.Description,
			Type:          d.Type,
			EstimatedCost: d.EstimatedCost,
			Deadline:      d.Deadline.UTC(),
			Status:        model.PackageStatusOpen,
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		if err = s.packages.Create(txCtx, pkg); err != nil {
			logger.FromContext(ctx).Error("failed to create package", zap.String("project_id", projectID), zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create package")
		}

		details := "Created work package " + pkg.Title + " in " + project.Title
		if e := record(txCtx, s.activity, now, actor.ID, model.ActionPackageCreated, pkg.ID, details); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return pkg, nil
}

func (s *ProjectService) ListPackages(ctx context.Context, actor auth.Actor, projectID string) ([]*model.Package, *Error) {
	if _, e := s.GetProject(ctx, actor, projectID); e != nil {
		return nil, e
	}

	res, err := s.packages.ListByProject(ctx, projectID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list packages", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list packages")
	}
	return res, nil
}

func (s *ProjectService) GetPackage(ctx context.Context, packageID string) (*model.Package, *Error) {
	pkg, err := s.packages.Get(ctx, packageID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "package not found")
	case err != nil:
		logger.FromContext(ctx).Error("failed to get package", zap.String("package_id", packageID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get package")
	}
	return pkg, nil
}

func (s *ProjectService) WithProjectRepo(r repository.ProjectRepository) *ProjectService {
	s.projects = r
	return s
}

func (s *ProjectService) WithPackageRepo(r repository.PackageRepository) *ProjectService {
	s.packages = r
	return s
}

func (s *ProjectService) WithActivityRepo(r repository.ActivityRepository) *ProjectService {
	s.activity = r
	return s
}

func (s *ProjectService) WithClock(now func() time.Time) *ProjectService {
	s.now = now
	return s
}
