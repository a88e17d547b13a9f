package model

import "time"

type BidStatus string

const (
	BidStatusSubmitted   BidStatus = "submitted"
	BidStatusUnderReview BidStatus = "under_review"
	BidStatusAwarded     BidStatus = "awarded"
	BidStatusRejected    BidStatus = "rejected"
	BidStatusWithdrawn   BidStatus = "withdrawn"
)

// bidTransitions lists the states reachable from each non-terminal state.
var bidTransitions = map[BidStatus][]BidStatus{
	BidStatusSubmitted:   {BidStatusUnderReview, BidStatusAwarded, BidStatusRejected, BidStatusWithdrawn},
	BidStatusUnderReview: {BidStatusAwarded, BidStatusRejected, BidStatusWithdrawn},
}

// ActiveBidStatuses are the states a bid can still leave.
var ActiveBidStatuses = []BidStatus{BidStatusSubmitted, BidStatusUnderReview}

func (s BidStatus) Valid() bool {
	switch s {
	case BidStatusSubmitted, BidStatusUnderReview, BidStatusAwarded, BidStatusRejected, BidStatusWithdrawn:
		return true
	}
	return false
}

func (s BidStatus) IsTerminal() bool {
	_, ok := bidTransitions[s]
	return !ok
}

func (s BidStatus) CanTransitionTo(next BidStatus) bool {
	for _, st := range bidTransitions[s] {
		if st == next {
			return true
		}
	}
	return false
}

type Bid struct {
	ID           string     `json:"id"`
	PackageID    string     `json:"package_id"`
	ContractorID string     `json:"contractor_id"`
	Price        int64      `json:"price"`
	DurationDays int        `json:"duration_days"`
	Proposal     string     `json:"proposal"`
	Status       BidStatus  `json:"status"`
	ReviewNotes  string     `json:"review_notes,omitempty"`
	ReviewedBy   *string    `json:"reviewed_by,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// BidProposal is what a contractor supplies when submitting or editing a bid.
type BidProposal struct {
	Price        int64  `json:"price" validate:"gte=0"`
	DurationDays int    `json:"duration_days" validate:"required,gte=1"`
	Proposal     string `json:"proposal" validate:"required"`
}

type BidFilter struct {
	Statuses []BidStatus
	Limit    int
	Offset   int
}
