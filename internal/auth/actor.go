package auth

import "context"

type Role string

const (
	RoleUndefined  Role = ""
	RoleCouncil    Role = "council"
	RoleContractor Role = "contractor"
)

func (r Role) Valid() bool {
	return r == RoleCouncil || r == RoleContractor
}

type Capability string

const (
	CapSubmitBid      Capability = "bid:submit"
	CapWithdrawBid    Capability = "bid:withdraw"
	CapEditBid        Capability = "bid:edit"
	CapReviewBid      Capability = "bid:review"
	CapAwardPackage   Capability = "package:award"
	CapManageProjects Capability = "project:manage"
	CapManageTeams    Capability = "team:manage"
	CapViewAnalytics  Capability = "analytics:view"
	CapManageReports  Capability = "report:manage"
)

// CapabilitySet is the set of operations a role may attempt.
// Ownership of the affected records is checked separately.
type CapabilitySet map[Capability]struct{}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func newSet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

var roleCapabilities = map[Role]CapabilitySet{
	RoleCouncil: newSet(
		CapReviewBid,
		CapAwardPackage,
		CapManageProjects,
		CapManageTeams,
		CapViewAnalytics,
		CapManageReports,
	),
	RoleContractor: newSet(
		CapSubmitBid,
		CapWithdrawBid,
		CapEditBid,
	),
}

// Actor is an authenticated caller. It is passed explicitly into every service call.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) Can(c Capability) bool {
	caps, ok := roleCapabilities[a.Role]
	if !ok || a.ID == "" {
		return false
	}
	return caps.Has(c)
}

type actorKey struct{}

// WithActor stores the actor resolved by the auth middleware.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
