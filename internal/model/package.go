package model

import "time"

type PackageStatus string

const (
	PackageStatusOpen    PackageStatus = "open"
	PackageStatusAwarded PackageStatus = "awarded"
	PackageStatusClosed  PackageStatus = "closed"
)

type PackageType string

const (
	PackageTypeWiring      PackageType = "wiring"
	PackageTypePlumbing    PackageType = "plumbing"
	PackageTypeTraffic     PackageType = "traffic"
	PackageTypeWater       PackageType = "water"
	PackageTypeRoad        PackageType = "road"
	PackageTypeSanitation  PackageType = "sanitation"
	PackageTypeLandscaping PackageType = "landscaping"
	PackageTypeStructural  PackageType = "structural"
	PackageTypeOther       PackageType = "other"
)

// Package is the unit contractors bid on.
type Package struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	CouncilID     string        `json:"council_id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Type          PackageType   `json:"package_type"`
	EstimatedCost *int64        `json:"estimated_cost,omitempty"`
	Deadline      time.Time     `json:"deadline"`
	Status        PackageStatus `json:"status"`
	AwardedBidID  *string       `json:"awarded_bid_id,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (p *Package) AcceptsBids(now time.Time) bool {
	return p.Status == PackageStatusOpen && now.Before(p.Deadline)
}

type PackageDraft struct {
	Title         string      `json:"title" validate:"required,max=255"`
	Description   string      `json:"description" validate:"required"`
	Type          PackageType `json:"package_type" validate:"required,oneof=wiring plumbing traffic water road sanitation landscaping structural other"`
	EstimatedCost *int64      `json:"estimated_cost" validate:"omitempty,gte=0"`
	Deadline      time.Time   `json:"deadline" validate:"required"`
}
