package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/yakoovad/council-tenders/internal/auth"
	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
)

var (
	testNow    = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	council    = auth.Actor{ID: "council-1", Role: auth.RoleCouncil}
	contractor = auth.Actor{ID: "contractor-1", Role: auth.RoleContractor}
)

func fixedClock() time.Time { return testNow }

func openPackage() *model.Package {
	return &model.Package{
		ID:        "pkg-1",
		ProjectID: "project-1",
		CouncilID: council.ID,
		Title:     "Street lighting",
		Deadline:  testNow.Add(72 * time.Hour),
		Status:    model.PackageStatusOpen,
	}
}

func bidIn(status model.BidStatus) *model.Bid {
	return &model.Bid{
		ID:           "bid-1",
		PackageID:    "pkg-1",
		ContractorID: contractor.ID,
		Price:        1000,
		DurationDays: 30,
		Proposal:     "LED retrofit",
		Status:       status,
	}
}

func validProposal() model.BidProposal {
	return model.BidProposal{Price: 1000, DurationDays: 30, Proposal: "LED retrofit"}
}

func TestBidService_Submit(t *testing.T) {
	tests := []struct {
		name          string
		actor         auth.Actor
		proposal      model.BidProposal
		setupMocks    func(*MockBidRepository, *MockPackageRepository, *MockNotifier)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:     "success",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("FindLive", mock.Anything, "pkg-1", contractor.ID).Return(nil, repository.ErrNotFound)
				br.On("Create", mock.Anything, mock.MatchedBy(func(b *model.Bid) bool {
					return b.Status == model.BidStatusSubmitted &&
						b.ContractorID == contractor.ID &&
						b.PackageID == "pkg-1" &&
						b.SubmittedAt.Equal(testNow)
				})).Return(nil)
				n.On("Notify", mock.Anything, council.ID, model.EventBidSubmitted, mock.AnythingOfType("string")).Return()
			},
		},
		{
			name:          "failure: council cannot submit",
			actor:         council,
			proposal:      validProposal(),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:          "failure: zero duration",
			actor:         contractor,
			proposal:      model.BidProposal{Price: 10, DurationDays: 0, Proposal: "x"},
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name:     "failure: package not found",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:     "failure: package awarded",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pkg := openPackage()
				pkg.Status = model.PackageStatusAwarded
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(pkg, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:     "failure: deadline passed",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pkg := openPackage()
				pkg.Deadline = testNow.Add(-time.Minute)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(pkg, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:     "failure: duplicate live bid",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("FindLive", mock.Anything, "pkg-1", contractor.ID).Return(bidIn(model.BidStatusUnderReview), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name:     "failure: duplicate caught by unique index",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("FindLive", mock.Anything, "pkg-1", contractor.ID).Return(nil, repository.ErrNotFound)
				br.On("Create", mock.Anything, mock.Anything).Return(repository.ErrAlreadyExists)
			},
			expectedError: true,
			errorCode:     ErrorCodeValidation,
		},
		{
			name:     "failure: create error",
			actor:    contractor,
			proposal: validProposal(),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("FindLive", mock.Anything, "pkg-1", contractor.ID).Return(nil, repository.ErrNotFound)
				br.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error"))
			},
			expectedError: true,
			errorCode:     ErrorCodeUnspecified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBidRepo := new(MockBidRepository)
			mockPackageRepo := new(MockPackageRepository)
			mockNotifier := new(MockNotifier)

			tt.setupMocks(mockBidRepo, mockPackageRepo, mockNotifier)

			service := NewBidService(new(MockTransactor)).
				WithBidRepo(mockBidRepo).
				WithPackageRepo(mockPackageRepo).
				WithNotifier(mockNotifier).
				WithClock(fixedClock)

			got, err := service.Submit(context.Background(), tt.actor, "pkg-1", tt.proposal)

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
				mockNotifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			} else {
				require.Nil(t, err)
				require.NotNil(t, got)
				assert.Equal(t, model.BidStatusSubmitted, got.Status)
				assert.NotEmpty(t, got.ID)
			}

			mockBidRepo.AssertExpectations(t)
			mockPackageRepo.AssertExpectations(t)
			mockNotifier.AssertExpectations(t)
		})
	}
}

func TestBidService_Review(t *testing.T) {
	reviewed := bidIn(model.BidStatusUnderReview)

	tests := []struct {
		name          string
		actor         auth.Actor
		setupMocks    func(*MockBidRepository, *MockPackageRepository, *MockNotifier)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:  "success",
			actor: council,
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusSubmitted), nil)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("Transition", mock.Anything, mock.MatchedBy(func(tr *repository.BidTransition) bool {
					return tr.To == model.BidStatusUnderReview &&
						*tr.ReviewerID == council.ID &&
						*tr.ReviewNotes == "looks complete"
				})).Return(reviewed, nil)
				n.On("Notify", mock.Anything, contractor.ID, model.EventBidUnderReview, "bid-1").Return()
			},
		},
		{
			name:          "failure: contractor cannot review",
			actor:         contractor,
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:  "failure: bid not found",
			actor: council,
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(nil, repository.ErrNotFound)
			},
			expectedError: true,
			errorCode:     ErrorCodeNotFound,
		},
		{
			name:  "failure: other council",
			actor: auth.Actor{ID: "council-2", Role: auth.RoleCouncil},
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusSubmitted), nil)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:  "failure: already under review",
			actor: council,
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusUnderReview), nil)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:  "failure: terminal bid",
			actor: council,
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusWithdrawn), nil)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:  "failure: withdrawn concurrently",
			actor: council,
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				br.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusSubmitted), nil)
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("Transition", mock.Anything, mock.Anything).Return(nil, repository.ErrStaleState)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBidRepo := new(MockBidRepository)
			mockPackageRepo := new(MockPackageRepository)
			mockNotifier := new(MockNotifier)

			tt.setupMocks(mockBidRepo, mockPackageRepo, mockNotifier)

			service := NewBidService(new(MockTransactor)).
				WithBidRepo(mockBidRepo).
				WithPackageRepo(mockPackageRepo).
				WithNotifier(mockNotifier).
				WithClock(fixedClock)

			got, err := service.Review(context.Background(), tt.actor, "bid-1", "looks complete")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				assert.Equal(t, model.BidStatusUnderReview, got.Status)
			}

			mockBidRepo.AssertExpectations(t)
			mockPackageRepo.AssertExpectations(t)
			mockNotifier.AssertExpectations(t)
		})
	}
}

func TestBidService_Withdraw(t *testing.T) {
	tests := []struct {
		name          string
		actor         auth.Actor
		current       *model.Bid
		setupMocks    func(*MockBidRepository, *MockPackageRepository, *MockNotifier)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:    "success: from submitted",
			actor:   contractor,
			current: bidIn(model.BidStatusSubmitted),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("Transition", mock.Anything, mock.MatchedBy(func(tr *repository.BidTransition) bool {
					return tr.To == model.BidStatusWithdrawn && len(tr.From) == 2
				})).Return(bidIn(model.BidStatusWithdrawn), nil)
				n.On("Notify", mock.Anything, council.ID, model.EventBidWithdrawn, "bid-1").Return()
			},
		},
		{
			name:    "success: from under review",
			actor:   contractor,
			current: bidIn(model.BidStatusUnderReview),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("Transition", mock.Anything, mock.Anything).Return(bidIn(model.BidStatusWithdrawn), nil)
				n.On("Notify", mock.Anything, council.ID, model.EventBidWithdrawn, "bid-1").Return()
			},
		},
		{
			name:          "failure: awarded",
			actor:         contractor,
			current:       bidIn(model.BidStatusAwarded),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:          "failure: rejected",
			actor:         contractor,
			current:       bidIn(model.BidStatusRejected),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:          "failure: already withdrawn",
			actor:         contractor,
			current:       bidIn(model.BidStatusWithdrawn),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:          "failure: another contractor",
			actor:         auth.Actor{ID: "contractor-2", Role: auth.RoleContractor},
			current:       bidIn(model.BidStatusSubmitted),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository, *MockNotifier) {},
			expectedError: true,
			errorCode:     ErrorCodeForbidden,
		},
		{
			name:    "failure: lost race with award",
			actor:   contractor,
			current: bidIn(model.BidStatusSubmitted),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository, n *MockNotifier) {
				pr.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
				br.On("Transition", mock.Anything, mock.Anything).Return(nil, repository.ErrStaleState)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBidRepo := new(MockBidRepository)
			mockPackageRepo := new(MockPackageRepository)
			mockNotifier := new(MockNotifier)

			mockBidRepo.On("Get", mock.Anything, "bid-1").Return(tt.current, nil)
			tt.setupMocks(mockBidRepo, mockPackageRepo, mockNotifier)

			service := NewBidService(new(MockTransactor)).
				WithBidRepo(mockBidRepo).
				WithPackageRepo(mockPackageRepo).
				WithNotifier(mockNotifier).
				WithClock(fixedClock)

			got, err := service.Withdraw(context.Background(), tt.actor, "bid-1")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
				assert.Nil(t, got)
			} else {
				require.Nil(t, err)
				assert.Equal(t, model.BidStatusWithdrawn, got.Status)
			}

			mockBidRepo.AssertExpectations(t)
			mockPackageRepo.AssertExpectations(t)
			mockNotifier.AssertExpectations(t)
		})
	}
}

func TestBidService_Update(t *testing.T) {
	revised := model.BidProposal{Price: 950, DurationDays: 28, Proposal: "LED retrofit, revised"}

	tests := []struct {
		name          string
		current       *model.Bid
		setupMocks    func(*MockBidRepository, *MockPackageRepository)
		expectedError bool
		errorCode     ErrorCode
	}{
		{
			name:    "success",
			current: bidIn(model.BidStatusSubmitted),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository) {
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
				updated := bidIn(model.BidStatusSubmitted)
				updated.Price = revised.Price
				br.On("UpdateProposal", mock.Anything, "bid-1", revised, testNow).Return(updated, nil)
			},
		},
		{
			name:          "failure: under review",
			current:       bidIn(model.BidStatusUnderReview),
			setupMocks:    func(*MockBidRepository, *MockPackageRepository) {},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
		{
			name:    "failure: package closed",
			current: bidIn(model.BidStatusSubmitted),
			setupMocks: func(br *MockBidRepository, pr *MockPackageRepository) {
				pkg := openPackage()
				pkg.Status = model.PackageStatusClosed
				pr.On("GetForShare", mock.Anything, "pkg-1").Return(pkg, nil)
			},
			expectedError: true,
			errorCode:     ErrorCodeState,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBidRepo := new(MockBidRepository)
			mockPackageRepo := new(MockPackageRepository)

			mockBidRepo.On("Get", mock.Anything, "bid-1").Return(tt.current, nil)
			tt.setupMocks(mockBidRepo, mockPackageRepo)

			service := NewBidService(new(MockTransactor)).
				WithBidRepo(mockBidRepo).
				WithPackageRepo(mockPackageRepo).
				WithClock(fixedClock)

			got, err := service.Update(context.Background(), contractor, "bid-1", revised)

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, tt.errorCode, err.Code)
			} else {
				require.Nil(t, err)
				assert.Equal(t, revised.Price, got.Price)
			}

			mockBidRepo.AssertExpectations(t)
			mockPackageRepo.AssertExpectations(t)
		})
	}
}

func TestBidService_Get(t *testing.T) {
	tests := []struct {
		name          string
		actor         auth.Actor
		setupMocks    func(*MockPackageRepository)
		expectedError bool
	}{
		{
			name:       "owner contractor",
			actor:      contractor,
			setupMocks: func(*MockPackageRepository) {},
		},
		{
			name:  "owning council",
			actor: council,
			setupMocks: func(pr *MockPackageRepository) {
				pr.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
		},
		{
			name:          "other contractor",
			actor:         auth.Actor{ID: "contractor-2", Role: auth.RoleContractor},
			setupMocks:    func(*MockPackageRepository) {},
			expectedError: true,
		},
		{
			name:  "other council",
			actor: auth.Actor{ID: "council-2", Role: auth.RoleCouncil},
			setupMocks: func(pr *MockPackageRepository) {
				pr.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
			},
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockBidRepo := new(MockBidRepository)
			mockPackageRepo := new(MockPackageRepository)

			mockBidRepo.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusSubmitted), nil)
			tt.setupMocks(mockPackageRepo)

			service := NewBidService(new(MockTransactor)).
				WithBidRepo(mockBidRepo).
				WithPackageRepo(mockPackageRepo)

			got, err := service.Get(context.Background(), tt.actor, "bid-1")

			if tt.expectedError {
				require.NotNil(t, err)
				assert.Equal(t, ErrorCodeForbidden, err.Code)
			} else {
				require.Nil(t, err)
				assert.Equal(t, "bid-1", got.ID)
			}
			mockPackageRepo.AssertExpectations(t)
		})
	}
}

func TestBidService_ListMine(t *testing.T) {
	t.Run("applies default page and status filter", func(t *testing.T) {
		mockBidRepo := new(MockBidRepository)
		filter := model.BidFilter{
			Statuses: []model.BidStatus{model.BidStatusSubmitted},
			Limit:    defaultPageSize,
		}
		mockBidRepo.On("ListByContractor", mock.Anything, contractor.ID, filter).
			Return([]*model.Bid{bidIn(model.BidStatusSubmitted)}, nil)

		service := NewBidService(new(MockTransactor)).WithBidRepo(mockBidRepo)

		got, err := service.ListMine(context.Background(), contractor, model.BidFilter{
			Statuses: []model.BidStatus{model.BidStatusSubmitted},
		})

		require.Nil(t, err)
		assert.Len(t, got, 1)
		mockBidRepo.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		service := NewBidService(new(MockTransactor)).WithBidRepo(new(MockBidRepository))

		_, err := service.ListMine(context.Background(), contractor, model.BidFilter{
			Statuses: []model.BidStatus{"pending"},
		})

		require.NotNil(t, err)
		assert.Equal(t, ErrorCodeValidation, err.Code)
	})
}

func TestBidService_ListForPackage(t *testing.T) {
	t.Run("other council is forbidden", func(t *testing.T) {
		mockPackageRepo := new(MockPackageRepository)
		mockPackageRepo.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)

		service := NewBidService(new(MockTransactor)).
			WithBidRepo(new(MockBidRepository)).
			WithPackageRepo(mockPackageRepo)

		_, err := service.ListForPackage(context.Background(), auth.Actor{ID: "council-2", Role: auth.RoleCouncil}, "pkg-1", model.BidFilter{})

		require.NotNil(t, err)
		assert.Equal(t, ErrorCodeForbidden, err.Code)
	})

	t.Run("owner sees bids", func(t *testing.T) {
		mockPackageRepo := new(MockPackageRepository)
		mockBidRepo := new(MockBidRepository)
		mockPackageRepo.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
		mockBidRepo.On("ListByPackage", mock.Anything, "pkg-1", model.BidFilter{Limit: 10, Offset: 20}).
			Return([]*model.Bid{bidIn(model.BidStatusSubmitted), bidIn(model.BidStatusRejected)}, nil)

		service := NewBidService(new(MockTransactor)).
			WithBidRepo(mockBidRepo).
			WithPackageRepo(mockPackageRepo)

		got, err := service.ListForPackage(context.Background(), council, "pkg-1", model.BidFilter{Limit: 10, Offset: 20})

		require.Nil(t, err)
		assert.Len(t, got, 2)
		mockBidRepo.AssertExpectations(t)
	})
}

func TestBidService_RecordsActivity(t *testing.T) {
	t.Run("submit", func(t *testing.T) {
		bids := new(MockBidRepository)
		packages := new(MockPackageRepository)
		activity := new(MockActivityRepository)

		packages.On("GetForShare", mock.Anything, "pkg-1").Return(openPackage(), nil)
		bids.On("FindLive", mock.Anything, "pkg-1", contractor.ID).Return(nil, repository.ErrNotFound)
		bids.On("Create", mock.Anything, mock.Anything).Return(nil)
		activity.On("Create", mock.Anything, mock.MatchedBy(func(e *model.ActivityEntry) bool {
			return e.Action == model.ActionBidSubmitted &&
				e.ActorID == contractor.ID &&
				e.Details == "Submitted bid on Street lighting: 10.00" &&
				e.CreatedAt.Equal(testNow)
		})).Return(nil).Once()

		got, err := NewBidService(new(MockTransactor)).
			WithBidRepo(bids).
			WithPackageRepo(packages).
			WithActivityRepo(activity).
			WithClock(fixedClock).
			Submit(context.Background(), contractor, "pkg-1", validProposal())

		require.Nil(t, err)
		require.NotNil(t, got)
		activity.AssertExpectations(t)
	})

	t.Run("withdraw fails when the log cannot be written", func(t *testing.T) {
		bids := new(MockBidRepository)
		packages := new(MockPackageRepository)
		activity := new(MockActivityRepository)
		notifier := new(MockNotifier)

		bids.On("Get", mock.Anything, "bid-1").Return(bidIn(model.BidStatusSubmitted), nil)
		packages.On("Get", mock.Anything, "pkg-1").Return(openPackage(), nil)
		bids.On("Transition", mock.Anything, mock.Anything).Return(bidIn(model.BidStatusWithdrawn), nil)
		activity.On("Create", mock.Anything, mock.Anything).Return(errors.New("db error"))

		got, err := NewBidService(new(MockTransactor)).
			WithBidRepo(bids).
			WithPackageRepo(packages).
			WithActivityRepo(activity).
			WithNotifier(notifier).
			WithClock(fixedClock).
			Withdraw(context.Background(), contractor, "bid-1")

		require.NotNil(t, err)
		assert.Equal(t, ErrorCodeUnspecified, err.Code)
		assert.Nil(t, got)
		notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
