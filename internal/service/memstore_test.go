package service

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/yakoovad/council-tenders/internal/model"
	"github.com/yakoovad/council-tenders/internal/repository"
)

// memStore is an in-memory stand-in for Postgres. Its transactor runs one
// transaction at a time and restores a snapshot when fn fails. Concurrent
// callers are therefore serialized before they reach the repositories, so
// races here only check the service re-reads state inside the transaction.
// The row locks themselves are covered by TestPostgres_ConcurrentAward.
type memStore struct {
	mu sync.Mutex

	projects map[string]model.Project
	packages map[string]model.Package
	bids     map[string]model.Bid
	teams    map[string]model.Team
	members  map[string][]model.TeamMember
	activity []model.ActivityEntry
}

func newMemStore() *memStore {
	return &memStore{
		projects: make(map[string]model.Project),
		packages: make(map[string]model.Package),
		bids:     make(map[string]model.Bid),
		teams:    make(map[string]model.Team),
		members:  make(map[string][]model.TeamMember),
	}
}

type memSnapshot struct {
	projects map[string]model.Project
	packages map[string]model.Package
	bids     map[string]model.Bid
	teams    map[string]model.Team
	members  map[string][]model.TeamMember
	activity []model.ActivityEntry
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *memStore) snapshot() memSnapshot {
	members := make(map[string][]model.TeamMember, len(s.members))
	for k, v := range s.members {
		members[k] = slices.Clone(v)
	}
	return memSnapshot{
		projects: cloneMap(s.projects),
		packages: cloneMap(s.packages),
		bids:     cloneMap(s.bids),
		teams:    cloneMap(s.teams),
		members:  members,
		activity: slices.Clone(s.activity),
	}
}

func (s *memStore) restore(snap memSnapshot) {
	s.projects = snap.projects
	s.packages = snap.packages
	s.bids = snap.bids
	s.teams = snap.teams
	s.members = snap.members
	s.activity = snap.activity
}

func (s *memStore) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

// view runs fn under the store lock for reads made outside a transaction.
func (s *memStore) view(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

type memBids struct{ s *memStore }

func (r memBids) Create(_ context.Context, bid *model.Bid) error {
	for _, b := range r.s.bids {
		if b.PackageID == bid.PackageID && b.ContractorID == bid.ContractorID && b.Status != model.BidStatusWithdrawn {
			return repository.ErrAlreadyExists
		}
	}
	r.s.bids[bid.ID] = *bid
	return nil
}

func (r memBids) Get(_ context.Context, bidID string) (*model.Bid, error) {
	b, ok := r.s.bids[bidID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &b, nil
}

func (r memBids) GetForUpdate(ctx context.Context, bidID string) (*model.Bid, error) {
	return r.Get(ctx, bidID)
}

func (r memBids) FindLive(_ context.Context, packageID, contractorID string) (*model.Bid, error) {
	for _, b := range r.s.bids {
		if b.PackageID == packageID && b.ContractorID == contractorID && b.Status != model.BidStatusWithdrawn {
			return &b, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memBids) list(keep func(model.Bid) bool, filter model.BidFilter) []*model.Bid {
	res := make([]*model.Bid, 0)
	for _, b := range r.s.bids {
		if keep(b) && (len(filter.Statuses) == 0 || slices.Contains(filter.Statuses, b.Status)) {
			res = append(res, &b)
		}
	}
	return res
}

func (r memBids) ListByContractor(_ context.Context, contractorID string, filter model.BidFilter) ([]*model.Bid, error) {
	return r.list(func(b model.Bid) bool { return b.ContractorID == contractorID }, filter), nil
}

func (r memBids) ListByPackage(_ context.Context, packageID string, filter model.BidFilter) ([]*model.Bid, error) {
	return r.list(func(b model.Bid) bool { return b.PackageID == packageID }, filter), nil
}

func (r memBids) Transition(_ context.Context, t *repository.BidTransition) (*model.Bid, error) {
	b, ok := r.s.bids[t.ID]
	if !ok || !slices.Contains(t.From, b.Status) {
		return nil, repository.ErrStaleState
	}
	if t.To == model.BidStatusAwarded {
		for _, other := range r.s.bids {
			if other.PackageID == b.PackageID && other.Status == model.BidStatusAwarded {
				return nil, repository.ErrAlreadyExists
			}
		}
	}
	b.Status = t.To
	b.UpdatedAt = t.At
	if t.ReviewerID != nil {
		reviewer, at := *t.ReviewerID, t.At
		b.ReviewedBy = &reviewer
		b.ReviewedAt = &at
	}
	if t.ReviewNotes != nil {
		b.ReviewNotes = *t.ReviewNotes
	}
	r.s.bids[b.ID] = b
	return &b, nil
}

func (r memBids) RejectActive(_ context.Context, packageID, exceptBidID, reviewerID, notes string, at time.Time) ([]*model.Bid, error) {
	res := make([]*model.Bid, 0)
	for id, b := range r.s.bids {
		if b.PackageID != packageID || id == exceptBidID || b.Status.IsTerminal() {
			continue
		}
		reviewer, ts := reviewerID, at
		b.Status = model.BidStatusRejected
		b.ReviewedBy = &reviewer
		b.ReviewedAt = &ts
		b.ReviewNotes = notes
		b.UpdatedAt = at
		r.s.bids[id] = b
		res = append(res, &b)
	}
	return res, nil
}

func (r memBids) UpdateProposal(_ context.Context, bidID string, p model.BidProposal, at time.Time) (*model.Bid, error) {
	b, ok := r.s.bids[bidID]
	if !ok || b.Status != model.BidStatusSubmitted {
		return nil, repository.ErrStaleState
	}
	b.Price, b.DurationDays, b.Proposal, b.UpdatedAt = p.Price, p.DurationDays, p.Proposal, at
	r.s.bids[bidID] = b
	return &b, nil
}

type memPackages struct{ s *memStore }

func (r memPackages) Create(_ context.Context, pkg *model.Package) error {
	r.s.packages[pkg.ID] = *pkg
	return nil
}

func (r memPackages) Get(_ context.Context, packageID string) (*model.Package, error) {
	p, ok := r.s.packages[packageID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memPackages) GetForShare(ctx context.Context, packageID string) (*model.Package, error) {
	return r.Get(ctx, packageID)
}

func (r memPackages) GetForUpdate(ctx context.Context, packageID string) (*model.Package, error) {
	return r.Get(ctx, packageID)
}

func (r memPackages) ListByProject(_ context.Context, projectID string) ([]*model.Package, error) {
	res := make([]*model.Package, 0)
	for _, p := range r.s.packages {
		if p.ProjectID == projectID {
			res = append(res, &p)
		}
	}
	return res, nil
}

func (r memPackages) SetStatus(_ context.Context, packageID string, status model.PackageStatus, awardedBidID *string, at time.Time) (*model.Package, error) {
	p, ok := r.s.packages[packageID]
	if !ok || p.Status != model.PackageStatusOpen {
		return nil, repository.ErrStaleState
	}
	p.Status = status
	p.AwardedBidID = awardedBidID
	p.UpdatedAt = at
	r.s.packages[packageID] = p
	return &p, nil
}

type memProjects struct{ s *memStore }

func (r memProjects) Create(_ context.Context, project *model.Project) error {
	r.s.projects[project.ID] = *project
	return nil
}

func (r memProjects) Get(_ context.Context, projectID string) (*model.Project, error) {
	p, ok := r.s.projects[projectID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (r memProjects) Patch(_ context.Context, patch *repository.ProjectPatch) (*model.Project, error) {
	p, ok := r.s.projects[patch.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	r.s.projects[patch.ID] = p
	return &p, nil
}

func (r memProjects) ListPublic(context.Context, int, int) ([]*model.Project, error) {
	return nil, nil
}

func (r memProjects) ListByCouncil(context.Context, string, int, int) ([]*model.Project, error) {
	return nil, nil
}

type memTeams struct{ s *memStore }

func (r memTeams) Create(_ context.Context, team *model.Team) error {
	for _, t := range r.s.teams {
		if t.ProjectID == team.ProjectID {
			return repository.ErrAlreadyExists
		}
	}
	r.s.teams[team.ID] = *team
	return nil
}

func (r memTeams) Get(_ context.Context, teamID string) (*model.Team, error) {
	t, ok := r.s.teams[teamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r memTeams) GetByProjectForUpdate(_ context.Context, projectID string) (*model.Team, error) {
	for _, t := range r.s.teams {
		if t.ProjectID == projectID {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r memTeams) EnsureForProject(ctx context.Context, team *model.Team) (*model.Team, error) {
	if err := r.Create(ctx, team); err != nil && err != repository.ErrAlreadyExists {
		return nil, err
	}
	return r.GetByProjectForUpdate(ctx, team.ProjectID)
}

func (r memTeams) GetMembers(_ context.Context, teamID string) ([]*model.TeamMember, error) {
	res := make([]*model.TeamMember, 0, len(r.s.members[teamID]))
	for _, m := range r.s.members[teamID] {
		res = append(res, &m)
	}
	return res, nil
}

func (r memTeams) AddMember(_ context.Context, teamID string, member *model.TeamMember) error {
	for _, m := range r.s.members[teamID] {
		if m.ContractorID == member.ContractorID {
			return repository.ErrAlreadyExists
		}
	}
	r.s.members[teamID] = append(r.s.members[teamID], *member)
	return nil
}

func (r memTeams) RemoveMember(_ context.Context, teamID, contractorID string) error {
	ms := r.s.members[teamID]
	for i, m := range ms {
		if m.ContractorID == contractorID {
			r.s.members[teamID] = slices.Delete(slices.Clone(ms), i, i+1)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r memTeams) SetLead(_ context.Context, teamID string, contractorID *string) error {
	t, ok := r.s.teams[teamID]
	if !ok {
		return repository.ErrNotFound
	}
	t.LeadContractorID = contractorID
	r.s.teams[teamID] = t
	return nil
}

func (r memTeams) SetStatus(_ context.Context, teamID string, status model.TeamStatus) (*model.Team, error) {
	t, ok := r.s.teams[teamID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	t.Status = status
	r.s.teams[teamID] = t
	return &t, nil
}

func (r memTeams) ListByContractor(_ context.Context, contractorID string) ([]*model.Team, error) {
	res := make([]*model.Team, 0)
	for id, ms := range r.s.members {
		for _, m := range ms {
			if m.ContractorID == contractorID {
				t := r.s.teams[id]
				res = append(res, &t)
			}
		}
	}
	return res, nil
}

type memActivity struct{ s *memStore }

func (r memActivity) Create(_ context.Context, entry *model.ActivityEntry) error {
	r.s.activity = append(r.s.activity, *entry)
	return nil
}

func (r memActivity) ListByActor(_ context.Context, actorID string, limit, offset int) ([]*model.ActivityEntry, error) {
	var res []*model.ActivityEntry
	for i := len(r.s.activity) - 1; i >= 0; i-- {
		if r.s.activity[i].ActorID == actorID {
			a := r.s.activity[i]
			res = append(res, &a)
		}
	}
	if offset >= len(res) {
		return nil, nil
	}
	return res[offset:min(len(res), offset+limit)], nil
}

// actions lists the recorded actions in write order.
func (s *memStore) actions() []model.ActivityAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.ActivityAction, 0, len(s.activity))
	for _, a := range s.activity {
		res = append(res, a.Action)
	}
	return res
}

// recordingNotifier keeps every notification it was asked to send.
type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (n *recordingNotifier) Notify(_ context.Context, recipientID string, kind model.EventKind, entityID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event{recipientID: recipientID, kind: kind, entityID: entityID})
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

func (n *recordingNotifier) snapshot() []event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.events)
}
