package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
)

type awardMocks struct {
	bids     *MockBidRepository
	packages *MockPackageRepository
	projects *MockProjectRepository
	teams    *MockTeamRepository
	notifier *MockNotifier
}

func newAwardMocks() *awardMocks {
	return &awardMocks{
		bids:     new(MockBidRepository),
		packages: new(MockPackageRepository),
		projects: new(MockProjectRepository),
		teams:    new(MockTeamRepository),
		notifier: new(MockNotifier),
	}
}

func (m *awardMocks) service() *AwardService {
	return NewAwardService(new(MockTransactor)).
		WithBidRepo(m.bids).
		WithPackageRepo(m.packages).
		WithProjectRepo(m.projects).
		WithTeamRepo(m.teams).
		WithNotifier(m.notifier).
		WithClock(fixedClock)
}

func (m *awardMocks) assertExpectations(t *testing.T) {
	m.bids.AssertExpectations(t)
	m.packages.AssertExpectations(t)
	m.projects.AssertExpectations(t)
	m.teams.AssertExpectations(t)
	m.notifier.AssertExpectations(t)
}

func winningBid(status model.BidStatus) *model.Bid {
	b := bidIn(status)
	b.ID = "bid-2"
	b.ContractorID = "contractor-2"
	b.Price = 900
	return b
}

func awardedPackage() *model.Package {
	pkg := openPackage()
	pkg.Status = model.PackageStatusAwarded
	winner := "bid-2"
	pkg.AwardedBidID = &winner
	return pkg
}

func TestAwardService_Award(t *testing.T) {
	tests := []struct {
		name          string
		actor         auth.Actor
		setupMocks    func(*awardMocks)
		expectedError bool
		errorCode     ErrorCode
		check         func(*testing.T, *AwardResult)
	}{
		{
			name:  "success: first award forms the team with the winner as lead",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusUnderReview), nil)
				m.bids.On("Transition", mock.Anything, mock.MatchedBy(func(tr *repository.BidTransition) bool {
					return tr.ID == "bid-2" && tr.To == model.BidStatusAwarded
				})).Return(winningBid(model.BidStatusAwarded), nil)
				m.bids.On("RejectActive", mock.Anything, "pkg-1", "bid-2", council.ID, awardRejectionNotes, testNow).
					Return([]*model.Bid{bidIn(model.BidStatusRejected)}, nil)
				m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusAwarded, mock.Anything, testNow).
					Return(awardedPackage(), nil)

				m.teams.On("GetByProjectForUpdate", mock.Anything, "project-1").Return(nil, repository.ErrNotFound)
				m.projects.On("Get", mock.Anything, "project-1").Return(&model.Project{ID: "project-1", Title: "Main Street", CouncilID: council.ID}, nil)
				m.teams.On("EnsureForProject", mock.Anything, mock.MatchedBy(func(tm *model.Team) bool {
					return tm.Name == "Main Street Team" && tm.Status == model.TeamStatusForming && tm.AssignedBy == council.ID
				})).Return(&model.Team{ID: "team-1", ProjectID: "project-1"}, nil)
				m.teams.On("AddMember", mock.Anything, "team-1", mock.MatchedBy(func(tm *model.TeamMember) bool {
					return tm.ContractorID == "contractor-2" && tm.Role == model.MemberRoleLead
				})).Return(nil)
				m.teams.On("SetLead", mock.Anything, "team-1", mock.Anything).Return(nil)

				m.notifier.On("Notify", mock.Anything, "contractor-2", model.EventBidAwarded, "bid-2").Return().Once()
				m.notifier.On("Notify", mock.Anything, contractor.ID, model.EventBidRejected, "bid-1").Return().Once()
			},
			check: func(t *testing.T, res *AwardResult) {
				assert.Equal(t, model.BidStatusAwarded, res.Awarded.Status)
				assert.Equal(t, model.PackageStatusAwarded, res.Package.Status)
				require.Len(t, res.Rejected, 1)
				assert.Equal(t, "team-1", res.TeamID)
			},
		},
		{
			name:  "success: existing team gains a regular member",
			actor: council,
			setupMocks: func(m *awardMocks) {
				lead := "contractor-9"
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusSubmitted), nil)
				m.bids.On("Transition", mock.Anything, mock.Anything).Return(winningBid(model.BidStatusAwarded), nil)
				m.bids.On("RejectActive", mock.Anything, "pkg-1", "bid-2", council.ID, awardRejectionNotes, testNow).
					Return([]*model.Bid{}, nil)
				m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusAwarded, mock.Anything, testNow).
					Return(awardedPackage(), nil)
				m.teams.On("GetByProjectForUpdate", mock.Anything, "project-1").
					Return(&model.Team{ID: "team-1", ProjectID: "project-1", LeadContractorID: &lead}, nil)
				m.teams.On("AddMember", mock.Anything, "team-1", mock.MatchedBy(func(tm *model.TeamMember) bool {
					return tm.Role == model.MemberRoleMember
				})).Return(nil)
				m.notifier.On("Notify", mock.Anything, "contractor-2", model.EventBidAwarded, "bid-2").Return().Once()
			},
			check: func(t *testing.T, res *AwardResult) {
				assert.Empty(t, res.Rejected)
			},
		},
		{
			name:          "failure: contractor cannot award",
			actor:         contractor,
			setupMocks:    func(*awardMocks) {},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:  "failure: package not found",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:  "failure: package already awarded",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(awardedPackage(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
		{
			name:  "failure: package of another council",
			actor: auth.Actor{ID: "council-2", Role: auth.RoleCouncil},
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:  "failure: bid not found",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:  "failure: bid of another package",
			actor: council,
			setupMocks: func(m *awardMocks) {
				b := winningBid(model.BidStatusSubmitted)
				b.PackageID = "pkg-9"
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(b, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:  "failure: withdrawn bid",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusWithdrawn), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:  "failure: package changed before status swap",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusSubmitted), nil)
				m.bids.On("Transition", mock.Anything, mock.Anything).Return(winningBid(model.BidStatusAwarded), nil)
				m.bids.On("RejectActive", mock.Anything, "pkg-1", "bid-2", council.ID, awardRejectionNotes, testNow).
					Return([]*model.Bid{}, nil)
				m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusAwarded, mock.Anything, testNow).
					Return(nil, repository.ErrStaleState)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
		{
			name:  "failure: reject siblings error",
			actor: council,
			setupMocks: func(m *awardMocks) {
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusSubmitted), nil)
				m.bids.On("Transition", mock.Anything, mock.Anything).Return(winningBid(model.BidStatusAwarded), nil)
				m.bids.On("RejectActive", mock.Anything, "pkg-1", "bid-2", council.ID, awardRejectionNotes, testNow).
					Return(nil, errors.New("db error"))
			},
			expectedError: true,
			errorCode:     ErrorCodeUnspecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newAwardMocks()
			tt.setupMocks(m)

			got, err := m.service().Award(context.Background(), tt.actor, "pkg-1", "bid-2")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
				m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.Nil(t, err)
				require.NotNil(t, got)
				tt.check(t, got)
			}

			m.assertExpectations(t)
		})
	}
}

func TestAwardService_Close(t *testing.T) {
	tests := []struct {
		name          string
		setupMocks    func(*awardMocks)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success",
			setupMocks: func(m *awardMocks) {
				closed := openPackage()
				closed.Status = model.PackageStatusClosed
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
				m.bids.On("RejectActive", mock.Anything, "pkg-1", "", council.ID, closeRejectionNotes, testNow).
					Return([]*model.Bid{bidIn(model.BidStatusRejected)}, nil)
				m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusClosed, (*string)(nil), testNow).
					Return(closed, nil)
				m.notifier.On("Notify", mock.Anything, contractor.ID, model.EventPackageClosed, "pkg-1").Return().Once()
			},
		},
		{
			name: "failure: already closed",
			setupMocks: func(m *awardMocks) {
				closed := openPackage()
				closed.Status = model.PackageStatusClosed
				m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(closed, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newAwardMocks()
			tt.setupMocks(m)

			got, err := m.service().Close(context.Background(), council, "pkg-1", "")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				assert.Equal(t, model.PackageStatusClosed, got.Package.Status)
				assert.Len(t, got.Rejected, 1)
			}

			m.assertExpectations(t)
		})
	}
}

func TestAwardService_Award_RecordsActivity(t *testing.T) {
	lead := "contractor-9"
	setup := func(m *awardMocks) {
		m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
		m.bids.On("GetForUpdate", mock.Anything, "bid-2").Return(winningBid(model.BidStatusSubmitted), nil)
		m.bids.On("Transition", mock.Anything, mock.Anything).Return(winningBid(model.BidStatusAwarded), nil)
		m.bids.On("RejectActive", mock.Anything, "pkg-1", "bid-2", council.ID, awardRejectionNotes, testNow).
			Return([]*model.Bid{bidIn(model.BidStatusRejected)}, nil)
		m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusAwarded, mock.Anything, testNow).
			Return(awardedPackage(), nil)
	}

	tests := []struct {
		name          string
		setupMocks    func(*awardMocks, *MockActivityRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name: "success: award, rejection and membership are logged",
			setupMocks: func(m *awardMocks, a *MockActivityRepository) {
				setup(m)
				m.teams.On("GetByProjectForUpdate", mock.Anything, "project-1").
					Return(&model.Team{ID: "team-1", Name: "Main Street Team", ProjectID: "project-1", LeadContractorID: &lead}, nil)
				m.teams.On("AddMember", mock.Anything, "team-1", mock.Anything).Return(nil)
				m.notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return()

				a.On("Create", mock.Anything, mock.MatchedBy(func(e *model.ActivityEntry) bool {
					return e.Action == model.ActionBidAwarded && e.EntityID == "bid-2" &&
						e.ActorID == council.ID && e.Details == "Awarded Street lighting to contractor-2: 9.00"
				})).Return(nil).Once()
				a.On("Create", mock.Anything, mock.MatchedBy(func(e *model.ActivityEntry) bool {
					return e.Action == model.ActionBidRejected && e.EntityID == "bid-1"
				})).Return(nil).Once()
				a.On("Create", mock.Anything, mock.MatchedBy(func(e *model.ActivityEntry) bool {
					return e.Action == model.ActionTeamMemberAdded && e.EntityID == "team-1" &&
						e.Details == "Added contractor-2 to Main Street Team as member"
				})).Return(nil).Once()
			},
		},
		{
			name: "failure: activity write aborts the award",
			setupMocks: func(m *awardMocks, a *MockActivityRepository) {
				setup(m)
				a.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error")).Once()
			},
			expectedError: true,
			errorCode:     ErrorCodeUnspecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newAwardMocks()
			activity := new(MockActivityRepository)
			tt.setupMocks(m, activity)

			_, err := m.service().WithActivityRepo(activity).Award(context.Background(), council, "pkg-1", "bid-2")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				m.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.Nil(t, err)
			}

			m.assertExpectations(t)
			activity.AssertExpectations(t)
		})
	}
}

func TestAwardService_Close_RecordsActivity(t *testing.T) {
	m := newAwardMocks()
	activity := new(MockActivityRepository)

	closed := openPackage()
	closed.Status = model.PackageStatusClosed
	m.packages.On("GetForUpdate", mock.Anything, "pkg-1").Return(openPackage(), nil)
	m.bids.On("RejectActive", mock.Anything, "pkg-1", "", council.ID, closeRejectionNotes, testNow).Return([]*model.Bid{}, nil)
	m.packages.On("SetStatus", mock.Anything, "pkg-1", model.PackageStatusClosed, (*string)(nil), testNow).Return(closed, nil)
	activity.On("Create", mock.Anything, mock.MatchedBy(func(e *model.ActivityEntry) bool {
		return e.Action == model.ActionPackageClosed && e.EntityID == "pkg-1" &&
			e.Details == "Closed Street lighting, 0 bids rejected" && e.CreatedAt.Equal(testNow)
	})).Return(nil).Once()

	_, err := m.service().WithActivityRepo(activity).Close(context.Background(), council, "pkg-1", "")
	require.Nil(t, err)

	m.assertExpectations(t)
	activity.AssertExpectations(t)
}
