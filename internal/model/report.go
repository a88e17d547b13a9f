package model

import "time"

type ReportType string

const (
	ReportTypeProgress   ReportType = "progress"
	ReportTypeFinancial  ReportType = "financial"
	ReportTypeQuality    ReportType = "quality"
	ReportTypeCompletion ReportType = "completion"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeProgress, ReportTypeFinancial, ReportTypeQuality, ReportTypeCompletion:
		return true
	}
	return false
}

// Report is a council-authored document, optionally tied to a project,
// package or bid.
type Report struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Type      ReportType `json:"report_type"`
	Content   string     `json:"content"`
	ProjectID *string    `json:"project_id,omitempty"`
	PackageID *string    `json:"package_id,omitempty"`
	BidID     *string    `json:"bid_id,omitempty"`
	CreatedBy string     `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ReportDraft struct {
	Title     string     `json:"title" validate:"required,max=255"`
	Type      ReportType `json:"report_type" validate:"required,oneof=progress financial quality completion"`
	Content   string     `json:"content" validate:"required"`
	ProjectID *string    `json:"project_id" validate:"omitempty,uuid"`
	PackageID *string    `json:"package_id" validate:"omitempty,uuid"`
	BidID     *string    `json:"bid_id" validate:"omitempty,uuid"`
}

// ReportPatch carries the fields an author may change; nil means unchanged.
type ReportPatch struct {
	Title   *string     `json:"title" validate:"omitempty,max=255"`
	Type    *ReportType `json:"report_type" validate:"omitempty,oneof=progress financial quality completion"`
	Content *string     `json:"content"`
}

// ReportRequest asks for a report generated from a project's current figures.
type ReportRequest struct {
	ProjectID string     `json:"project_id" validate:"required,uuid"`
	Type      ReportType `json:"report_type" validate:"required,oneof=progress financial quality completion"`
}

// ProjectFigures is the snapshot a generated report is rendered from.
type ProjectFigures struct {
	ProjectID string
	Title     string
	Status    ProjectStatus
	StartDate time.Time
	EndDate   time.Time

	TotalPackages   int64
	OpenPackages    int64
	AwardedPackages int64
	ClosedPackages  int64
	EstimatedCost   int64

	TotalBids     int64
	ActiveBids    int64
	AwardedBids   int64
	RejectedBids  int64
	WithdrawnBids int64
	AwardedValue  int64
	AverageBid    float64

	TeamName    string
	TeamStatus  TeamStatus
	TeamMembers int64
}
