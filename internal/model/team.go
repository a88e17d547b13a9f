package model

import "time"

type TeamStatus string

const (
	TeamStatusForming   TeamStatus = "forming"
	TeamStatusActive    TeamStatus = "active"
	TeamStatusCompleted TeamStatus = "completed"
	TeamStatusDisbanded TeamStatus = "disbanded"
)

type MemberRole string

const (
	MemberRoleLead       MemberRole = "lead"
	MemberRoleMember     MemberRole = "member"
	MemberRoleSpecialist MemberRole = "specialist"
)

type Team struct {
	ID               string        `json:"id"`
	ProjectID        string        `json:"project_id"`
	Name             string        `json:"name"`
	LeadContractorID *string       `json:"lead_contractor_id,omitempty"`
	Status           TeamStatus    `json:"status"`
	Notes            string        `json:"notes"`
	AssignedBy       string        `json:"assigned_by"`
	CreatedAt        time.Time     `json:"created_at"`
	Members          []*TeamMember `json:"members"`
}

type TeamMember struct {
	ContractorID string     `json:"contractor_id" validate:"required"`
	Role         MemberRole `json:"role" validate:"omitempty,oneof=lead member specialist"`
	AssignedAt   time.Time  `json:"assigned_at"`
}

func (s TeamStatus) Valid() bool {
	switch s {
	case TeamStatusForming, TeamStatusActive, TeamStatusCompleted, TeamStatusDisbanded:
		return true
	}
	return false
}

type TeamDraft struct {
	ProjectID string `json:"project_id" validate:"required,uuid"`
	Name      string `json:"name" validate:"required,max=255"`
	Notes     string `json:"notes"`
}
