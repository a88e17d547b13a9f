package model

import "time"

type ProjectStatus string

const (
	ProjectStatusDraft      ProjectStatus = "draft"
	ProjectStatusPublished  ProjectStatus = "published"
	ProjectStatusInProgress ProjectStatus = "in_progress"
	ProjectStatusCompleted  ProjectStatus = "completed"
	ProjectStatusCancelled  ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusDraft, ProjectStatusPublished, ProjectStatusInProgress, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	}
	return false
}

type Project struct {
	ID          string        `json:"id"`
	CouncilID   string        `json:"council_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Location    string        `json:"location"`
	BudgetRange string        `json:"budget_range"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     time.Time     `json:"end_date"`
	Status      ProjectStatus `json:"status"`
	IsPublic    bool          `json:"is_public"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

type ProjectDraft struct {
	Title       string    `json:"title" validate:"required,max=255"`
	Description string    `json:"description" validate:"required"`
	Location    string    `json:"location" validate:"required,max=255"`
	BudgetRange string    `json:"budget_range" validate:"max=100"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	IsPublic    bool      `json:"is_public"`
}

// ProjectPatch carries the fields a council may change; nil means unchanged.
type ProjectPatch struct {
	Title       *string        `json:"title" validate:"omitempty,max=255"`
	Description *string        `json:"description"`
	Location    *string        `json:"location" validate:"omitempty,max=255"`
	BudgetRange *string        `json:"budget_range" validate:"omitempty,max=100"`
	Status      *ProjectStatus `json:"status" validate:"omitempty,oneof=draft published in_progress completed cancelled"`
	IsPublic    *bool          `json:"is_public"`
}
