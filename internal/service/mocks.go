package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
)

type MockTransactor struct {
	mock.Mock
}

func (m *MockTransactor) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) Create(ctx context.Context, bid *model.Bid) error {
	args := m.Called(ctx, bid)
	return args.Error(0)
}

func (m *MockBidRepository) Get(ctx context.Context, bidID string) (*model.Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Bid), args.Error(1)
}

func (m *MockBidRepository) GetForUpdate(ctx context.Context, bidID string) (*model.Bid, error) {
	args := m.Called(ctx, bidID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Bid), args.Error(1)
}

func (m *MockBidRepository) FindLive(ctx context.Context, packageID, contractorID string) (*model.Bid, error) {
	args := m.Called(ctx, packageID, contractorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Bid), args.Error(1)
}

func (m *MockBidRepository) ListByContractor(ctx context.Context, contractorID string, filter model.BidFilter) ([]*model.Bid, error) {
	args := m.Called(ctx, contractorID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Bid), args.Error(1)
}

func (m *MockBidRepository) ListByPackage(ctx context.Context, packageID string, filter model.BidFilter) ([]*model.Bid, error) {
	args := m.Called(ctx, packageID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Bid), args.Error(1)
}

func (m *MockBidRepository) Transition(ctx context.Context, t *repository.BidTransition) (*model.Bid, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Bid), args.Error(1)
}

func (m *MockBidRepository) RejectActive(ctx context.Context, packageID, exceptBidID, reviewerID, notes string, at time.Time) ([]*model.Bid, error) {
	args := m.Called(ctx, packageID, exceptBidID, reviewerID, notes, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Bid), args.Error(1)
}

func (m *MockBidRepository) UpdateProposal(ctx context.Context, bidID string, p model.BidProposal, at time.Time) (*model.Bid, error) {
	args := m.Called(ctx, bidID, p, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Bid), args.Error(1)
}

type MockPackageRepository struct {
	mock.Mock
}

func (m *MockPackageRepository) Create(ctx context.Context, pkg *model.Package) error {
	args := m.Called(ctx, pkg)
	return args.Error(0)
}

func (m *MockPackageRepository) Get(ctx context.Context, packageID string) (*model.Package, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Package), args.Error(1)
}

func (m *MockPackageRepository) GetForShare(ctx context.Context, packageID string) (*model.Package, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Package), args.Error(1)
}

func (m *MockPackageRepository) GetForUpdate(ctx context.Context, packageID string) (*model.Package, error) {
	args := m.Called(ctx, packageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Package), args.Error(1)
}

func (m *MockPackageRepository) ListByProject(ctx context.Context, projectID string) ([]*model.Package, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Package), args.Error(1)
}

func (m *MockPackageRepository) SetStatus(ctx context.Context, packageID string, status model.PackageStatus, awardedBidID *string, at time.Time) (*model.Package, error) {
	args := m.Called(ctx, packageID, status, awardedBidID, at)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Package), args.Error(1)
}

type MockProjectRepository struct {
	mock.Mock
}

func (m *MockProjectRepository) Create(ctx context.Context, project *model.Project) error {
	args := m.Called(ctx, project)
	return args.Error(0)
}

func (m *MockProjectRepository) Get(ctx context.Context, projectID string) (*model.Project, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepository) Patch(ctx context.Context, patch *repository.ProjectPatch) (*model.Project, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Project), args.Error(1)
}

func (m *MockProjectRepository) ListPublic(ctx context.Context, limit, offset int) ([]*model.Project, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Project), args.Error(1)
}

func (m *MockProjectRepository) ListByCouncil(ctx context.Context, councilID string, limit, offset int) ([]*model.Project, error) {
	args := m.Called(ctx, councilID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Project), args.Error(1)
}

type MockTeamRepository struct {
	mock.Mock
}

func (m *MockTeamRepository) Create(ctx context.Context, team *model.Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockTeamRepository) Get(ctx context.Context, teamID string) (*model.Team, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Team), args.Error(1)
}

func (m *MockTeamRepository) GetByProjectForUpdate(ctx context.Context, projectID string) (*model.Team, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Team), args.Error(1)
}

func (m *MockTeamRepository) EnsureForProject(ctx context.Context, team *model.Team) (*model.Team, error) {
	args := m.Called(ctx, team)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Team), args.Error(1)
}

func (m *MockTeamRepository) GetMembers(ctx context.Context, teamID string) ([]*model.TeamMember, error) {
	args := m.Called(ctx, teamID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.TeamMember), args.Error(1)
}

func (m *MockTeamRepository) AddMember(ctx context.Context, teamID string, member *model.TeamMember) error {
	args := m.Called(ctx, teamID, member)
	return args.Error(0)
}

func (m *MockTeamRepository) RemoveMember(ctx context.Context, teamID, contractorID string) error {
	args := m.Called(ctx, teamID, contractorID)
	return args.Error(0)
}

func (m *MockTeamRepository) SetLead(ctx context.Context, teamID string, contractorID *string) error {
	args := m.Called(ctx, teamID, contractorID)
	return args.Error(0)
}

func (m *MockTeamRepository) SetStatus(ctx context.Context, teamID string, status model.TeamStatus) (*model.Team, error) {
	args := m.Called(ctx, teamID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Team), args.Error(1)
}

func (m *MockTeamRepository) ListByContractor(ctx context.Context, contractorID string) ([]*model.Team, error) {
	args := m.Called(ctx, contractorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Team), args.Error(1)
}

type MockNotificationRepository struct {
	mock.Mock
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepository) ListByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]*model.Notification, error) {
	args := m.Called(ctx, recipientID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Notification), args.Error(1)
}

type MockAnalyticsRepository struct {
	mock.Mock
}

func (m *MockAnalyticsRepository) BidAnalytics(ctx context.Context, councilID string) (*model.BidAnalytics, error) {
	args := m.Called(ctx, councilID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BidAnalytics), args.Error(1)
}

func (m *MockAnalyticsRepository) ExportRows(ctx context.Context, councilID string) ([]*model.BidExportRow, error) {
	args := m.Called(ctx, councilID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.BidExportRow), args.Error(1)
}

func (m *MockAnalyticsRepository) ProjectExportRows(ctx context.Context, councilID string) ([]*model.ProjectExportRow, error) {
	args := m.Called(ctx, councilID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ProjectExportRow), args.Error(1)
}

func (m *MockAnalyticsRepository) ProjectFigures(ctx context.Context, projectID string) (*model.ProjectFigures, error) {
	args := m.Called(ctx, projectID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ProjectFigures), args.Error(1)
}

func (m *MockAnalyticsRepository) CouncilDashboard(ctx context.Context, councilID string) (*model.CouncilDashboard, error) {
	args := m.Called(ctx, councilID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.CouncilDashboard), args.Error(1)
}

func (m *MockAnalyticsRepository) ContractorDashboard(ctx context.Context, contractorID string) (*model.ContractorDashboard, error) {
	args := m.Called(ctx, contractorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContractorDashboard), args.Error(1)
}

type MockReportRepository struct {
	mock.Mock
}

func (m *MockReportRepository) Create(ctx context.Context, report *model.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockReportRepository) Get(ctx context.Context, reportID string) (*model.Report, error) {
	args := m.Called(ctx, reportID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportRepository) ListVisible(ctx context.Context, userID string, limit, offset int) ([]*model.Report, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Report), args.Error(1)
}

func (m *MockReportRepository) Update(ctx context.Context, patch *repository.ReportPatch) (*model.Report, error) {
	args := m.Called(ctx, patch)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Report), args.Error(1)
}

func (m *MockReportRepository) Delete(ctx context.Context, reportID string) error {
	args := m.Called(ctx, reportID)
	return args.Error(0)
}

type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Create(ctx context.Context, entry *model.ActivityEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockActivityRepository) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]*model.ActivityEntry, error) {
	args := m.Called(ctx, actorID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.ActivityEntry), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipientID string, kind model.EventKind, entityID string) {
	m.Called(ctx, recipientID, kind, entityID)
}
