package model

import "time"

type BidAnalytics struct {
	CouncilID    string              `json:"council_id"`
	Total        int64               `json:"total_bids"`
	ByStatus     map[BidStatus]int64 `json:"by_status"`
	AveragePrice float64             `json:"average_price"`
	TotalValue   int64               `json:"total_value"`
}

// BidExportRow is one line of the council bid export.
type BidExportRow struct {
	PackageTitle string
	ContractorID string
	Price        int64
	DurationDays int
	Status       BidStatus
	SubmittedAt  time.Time
}

// ProjectExportRow is one line of the council project export.
type ProjectExportRow struct {
	Title     string
	Location  string
	Status    ProjectStatus
	Packages  int64
	StartDate time.Time
	EndDate   time.Time
}

type CouncilDashboard struct {
	TotalProjects     int64 `json:"total_projects"`
	PublishedProjects int64 `json:"published_projects"`
	ActiveProjects    int64 `json:"active_projects"`
	TotalPackages     int64 `json:"total_packages"`
	OpenPackages      int64 `json:"open_packages"`
	TotalBids         int64 `json:"total_bids"`
	PendingBids       int64 `json:"pending_bids"`
	AwardedBids       int64 `json:"awarded_bids"`
}

type ContractorDashboard struct {
	TotalBids   int64   `json:"total_bids"`
	ActiveBids  int64   `json:"active_bids"`
	AwardedBids int64   `json:"awarded_bids"`
	SuccessRate float64 `json:"success_rate"`
}

// Dashboard carries the summary matching the caller's role; the other
// field stays nil.
type Dashboard struct {
	Council    *CouncilDashboard    `json:"council,omitempty"`
	Contractor *ContractorDashboard `json:"contractor,omitempty"`
}
