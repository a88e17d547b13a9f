package model

import "time"

type ActivityAction string

const (
	ActionProjectCreated   ActivityAction = "project_created"
	ActionProjectUpdated   ActivityAction = "project_updated"
	ActionProjectPublished ActivityAction = "project_published"
	ActionPackageCreated   ActivityAction = "package_created"
	ActionPackageClosed    ActivityAction = "package_closed"
	ActionBidSubmitted     ActivityAction = "bid_submitted"
	ActionBidReviewed      ActivityAction = "bid_reviewed"
	ActionBidWithdrawn     ActivityAction = "bid_withdrawn"
	ActionBidAwarded       ActivityAction = "bid_awarded"
	ActionBidRejected      ActivityAction = "bid_rejected"
	ActionTeamMemberAdded  ActivityAction = "team_member_added"
	ActionReportCreated    ActivityAction = "report_created"
	ActionReportGenerated  ActivityAction = "report_generated"
)

// ActivityEntry is one line of the audit trail. It is written in the same
// transaction as the change it describes and never updated.
type ActivityEntry struct {
	ID        string         `json:"id"`
	ActorID   string         `json:"actor_id"`
	Action    ActivityAction `json:"action"`
	EntityID  string         `json:"entity_id"`
	Details   string         `json:"details"`
	CreatedAt time.Time      `json:"created_at"`
}
