package service

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"
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

var (
	exportHeader        = []string{"package", "contractor_id", "price", "duration_days", "status", "submitted_at"}
	projectExportHeader = []string{"title", "location", "status", "packages", "start_date", "end_date"}
)

// ReportService serves council reporting: stored reports, reports generated
// from live project figures, CSV exports and dashboards.
type ReportService struct {
	tx db.Transactor

	analytics repository.AnalyticsRepository
	reports   repository.ReportRepository
	projects  repository.ProjectRepository
	activity  repository.ActivityRepository

	now func() time.Time
}

func NewReportService(tx db.Transactor) *ReportService {
	return &ReportService{
		tx:  tx,
		now: time.Now,
	}
}

func (r *ReportService) BidAnalytics(ctx context.Context, actor auth.Actor) (*model.BidAnalytics, *Error) {
	if e := authorize(actor, auth.CapViewAnalytics); e != nil {
		return nil, e
	}

	res, err := r.analytics.BidAnalytics(ctx, actor.ID)
	if err != nil {
		logger.FromContext(ctx).Error("failed to compute bid analytics", zap.String("council_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to compute bid analytics")
	}
	return res, nil
}

// writeCSV writes header and records to w, mapping any write failure to
// one UNSPECIFIED error carrying failMsg.
func writeCSV(w io.Writer, l *zap.Logger, failMsg string, header []string, records [][]string) *Error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		l.Error("failed to write export", zap.Error(err))
		return NewError(ErrorCodeUnspecified, failMsg)
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			l.Error("failed to write export", zap.Error(err))
			return NewError(ErrorCodeUnspecified, failMsg)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		l.Error("failed to flush export", zap.Error(err))
		return NewError(ErrorCodeUnspecified, failMsg)
	}
	return nil
}

// ExportBids writes every bid on the council's packages to w as CSV.
// Prices are in minor currency units.
func (r *ReportService) ExportBids(ctx context.Context, actor auth.Actor, w io.Writer) *Error {
	if e := authorize(actor, auth.CapViewAnalytics); e != nil {
		return e
	}

	l := logger.FromContext(ctx).With(zap.String("council_id", actor.ID))

	rows, err := r.analytics.ExportRows(ctx, actor.ID)
	if err != nil {
		l.Error("failed to load export rows", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to export bids")
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.PackageTitle,
			row.ContractorID,
			strconv.FormatInt(row.Price, 10),
			strconv.Itoa(row.DurationDays),
			string(row.Status),
			row.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	if e := writeCSV(w, l, "failed to export bids", exportHeader, records); e != nil {
		return e
	}

	l.Debug("bids exported", zap.Int("rows", len(rows)))
	return nil
}

// ExportProjects writes the council's projects with their package counts to w as CSV.
func (r *ReportService) ExportProjects(ctx context.Context, actor auth.Actor, w io.Writer) *Error {
	if e := authorize(actor, auth.CapViewAnalytics); e != nil {
		return e
	}

	l := logger.FromContext(ctx).With(zap.String("council_id", actor.ID))

	rows, err := r.analytics.ProjectExportRows(ctx, actor.ID)
	if err != nil {
		l.Error("failed to load project export rows", zap.Error(err))
		return NewError(ErrorCodeUnspecified, "failed to export projects")
	}

	records := make([][]string, 0, len(rows))
	for _, row := range rows {
		records = append(records, []string{
			row.Title,
			row.Location,
			string(row.Status),
			strconv.FormatInt(row.Packages, 10),
			row.StartDate.Format(time.DateOnly),
			row.EndDate.Format(time.DateOnly),
		})
	}
	if e := writeCSV(w, l, "failed to export projects", projectExportHeader, records); e != nil {
		return e
	}

	l.Debug("projects exported", zap.Int("rows", len(rows)))
	return nil
}

// Dashboard returns the summary for the actor's role.
func (r *ReportService) Dashboard(ctx context.Context, actor auth.Actor) (*model.Dashboard, *Error) {
	l := logger.FromContext(ctx).With(zap.String("actor_id", actor.ID))

	switch actor.Role {
	case auth.RoleCouncil:
		d, err := r.analytics.CouncilDashboard(ctx, actor.ID)
		if err != nil {
			l.Error("failed to load council dashboard", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to load dashboard")
		}
		return &model.Dashboard{Council: d}, nil

	case auth.RoleContractor:
		d, err := r.analytics.ContractorDashboard(ctx, actor.ID)
		if err != nil {
			l.Error("failed to load contractor dashboard", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to load dashboard")
		}
		d.SuccessRate = percent(d.AwardedBids, d.TotalBids)
		return &model.Dashboard{Contractor: d}, nil
	}
	return nil, NewError(ErrorCodeForbidden, "operation not permitted for this role")
}

// ownedProject loads a project the actor's council owns.
func (r *ReportService) ownedProject(ctx context.Context, l *zap.Logger, actor auth.Actor, projectID string) (*model.Project, *Error) {
	project, err := r.projects.Get(ctx, projectID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "project not found")
	case err != nil:
		l.Error("failed to get project", zap.String("project_id", projectID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get project")
	}
	if project.CouncilID != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "project belongs to another council")
	}
	return project, nil
}

func (r *ReportService) CreateReport(ctx context.Context, actor auth.Actor, d model.ReportDraft) (*model.Report, *Error) {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return nil, e
	}
	if strings.TrimSpace(d.Title) == "" {
		return nil, NewError(ErrorCodeValidation, "title is required")
	}
	if !d.Type.Valid() {
		return nil, NewError(ErrorCodeValidation, "unknown report type "+string(d.Type))
	}

	l := logger.FromContext(ctx).With(zap.String("council_id", actor.ID))

	now := r.now().UTC()
	report := &model.Report{
		ID:        uuid.NewString(),
		Title:     d.Title,
		Type:      d.Type,
		Content:   d.Content,
		ProjectID: d.ProjectID,
		PackageID: d.PackageID,
		BidID:     d.BidID,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if d.ProjectID != nil {
			if _, e := r.ownedProject(txCtx, l, actor, *d.ProjectID); e != nil {
				return e
			}
		}

		err := r.reports.Create(txCtx, report)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "referenced package or bid not found")
		case err != nil:
			l.Error("failed to create report", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to create report")
		}

		if e := record(txCtx, r.activity, now, actor.ID, model.ActionReportCreated, report.ID, "Created report "+report.Title); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("report created", zap.String("report_id", report.ID))
	return report, nil
}

// GenerateReport renders a report from the project's current packages,
// bids and team, and stores it under the actor.
func (r *ReportService) GenerateReport(ctx context.Context, actor auth.Actor, req model.ReportRequest) (*model.Report, *Error) {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return nil, e
	}
	if !req.Type.Valid() {
		return nil, NewError(ErrorCodeValidation, "unknown report type "+string(req.Type))
	}

	l := logger.FromContext(ctx).With(zap.String("council_id", actor.ID), zap.String("project_id", req.ProjectID))

	var report *model.Report
	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		project, e := r.ownedProject(txCtx, l, actor, req.ProjectID)
		if e != nil {
			return e
		}

		figures, err := r.analytics.ProjectFigures(txCtx, project.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "project not found")
		case err != nil:
			l.Error("failed to load project figures", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to generate report")
		}

		now := r.now().UTC()
		report = &model.Report{
			ID:        uuid.NewString(),
			Title:     reportTitle(req.Type, project.Title),
			Type:      req.Type,
			Content:   renderReport(req.Type, figures),
			ProjectID: &project.ID,
			CreatedBy: actor.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = r.reports.Create(txCtx, report); err != nil {
			l.Error("failed to store generated report", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to generate report")
		}

		if e := record(txCtx, r.activity, now, actor.ID, model.ActionReportGenerated, report.ID, "Generated "+report.Title); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}

	l.Info("report generated", zap.String("report_id", report.ID), zap.String("report_type", string(req.Type)))
	return report, nil
}

// visibleReport loads a report its author or the owning council may see.
// Anyone else gets NOT_FOUND.
func (r *ReportService) visibleReport(ctx context.Context, l *zap.Logger, actor auth.Actor, reportID string) (*model.Report, *Error) {
	report, err := r.reports.Get(ctx, reportID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil, NewError(ErrorCodeNotFound, "report not found")
	case err != nil:
		l.Error("failed to get report", zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to get report")
	}
	if report.CreatedBy == actor.ID {
		return report, nil
	}
	if report.ProjectID != nil {
		project, err := r.projects.Get(ctx, *report.ProjectID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			l.Error("failed to get project", zap.Error(err))
			return nil, NewError(ErrorCodeUnspecified, "failed to get report")
		}
		if err == nil && project.CouncilID == actor.ID {
			return report, nil
		}
	}
	return nil, NewError(ErrorCodeNotFound, "report not found")
}

func (r *ReportService) GetReport(ctx context.Context, actor auth.Actor, reportID string) (*model.Report, *Error) {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return nil, e
	}
	l := logger.FromContext(ctx).With(zap.String("report_id", reportID))
	return r.visibleReport(ctx, l, actor, reportID)
}

func (r *ReportService) ListReports(ctx context.Context, actor auth.Actor, limit, offset int) ([]*model.Report, *Error) {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return nil, e
	}

	limit, offset = clampPage(limit, offset)
	res, err := r.reports.ListVisible(ctx, actor.ID, limit, offset)
	if err != nil {
		logger.FromContext(ctx).Error("failed to list reports", zap.String("council_id", actor.ID), zap.Error(err))
		return nil, NewError(ErrorCodeUnspecified, "failed to list reports")
	}
	return res, nil
}

// authoredReport loads a visible report and checks that actor wrote it.
func (r *ReportService) authoredReport(ctx context.Context, l *zap.Logger, actor auth.Actor, reportID string) (*model.Report, *Error) {
	report, e := r.visibleReport(ctx, l, actor, reportID)
	if e != nil {
		return nil, e
	}
	if report.CreatedBy != actor.ID {
		return nil, NewError(ErrorCodeForbidden, "only the author may change a report")
	}
	return report, nil
}

func (r *ReportService) UpdateReport(ctx context.Context, actor auth.Actor, reportID string, patch model.ReportPatch) (*model.Report, *Error) {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return nil, e
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, NewError(ErrorCodeValidation, "title must not be empty")
	}
	if patch.Type != nil && !patch.Type.Valid() {
		return nil, NewError(ErrorCodeValidation, "unknown report type "+string(*patch.Type))
	}

	l := logger.FromContext(ctx).With(zap.String("report_id", reportID), zap.String("council_id", actor.ID))

	var report *model.Report
	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, e := r.authoredReport(txCtx, l, actor, reportID); e != nil {
			return e
		}

		var err error
		report, err = r.reports.Update(txCtx, &repository.ReportPatch{
			ID:        reportID,
			Title:     patch.Title,
			Type:      patch.Type,
			Content:   patch.Content,
			UpdatedAt: r.now().UTC(),
		})
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "report not found")
		case err != nil:
			l.Error("failed to update report", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to update report")
		}
		return nil
	})
	if err != nil {
		return nil, asError(err)
	}
	return report, nil
}

func (r *ReportService) DeleteReport(ctx context.Context, actor auth.Actor, reportID string) *Error {
	if e := authorize(actor, auth.CapManageReports); e != nil {
		return e
	}

	l := logger.FromContext(ctx).With(zap.String("report_id", reportID), zap.String("council_id", actor.ID))

	err := r.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if _, e := r.authoredReport(txCtx, l, actor, reportID); e != nil {
			return e
		}

		err := r.reports.Delete(txCtx, reportID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return NewError(ErrorCodeNotFound, "report not found")
		case err != nil:
			l.Error("failed to delete report", zap.Error(err))
			return NewError(ErrorCodeUnspecified, "failed to delete report")
		}
		return nil
	})
	if err != nil {
		return asError(err)
	}

	l.Info("report deleted")
	return nil
}

func (r *ReportService) WithAnalyticsRepo(repo repository.AnalyticsRepository) *ReportService {
	r.analytics = repo
	return r
}

func (r *ReportService) WithReportRepo(repo repository.ReportRepository) *ReportService {
	r.reports = repo
	return r
}

func (r *ReportService) WithProjectRepo(repo repository.ProjectRepository) *ReportService {
	r.projects = repo
	return r
}

func (r *ReportService) WithActivityRepo(repo repository.ActivityRepository) *ReportService {
	r.activity = repo
	return r
}

func (r *ReportService) WithClock(now func() time.Time) *ReportService {
	r.now = now
	return r
}
