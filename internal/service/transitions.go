package service

import (
	"github.com/civicdesk/grievance-service/internal/domain"
)

// transitionTable is the complete role-gated state machine. Rows absent from
// the table mean "no transitions for that role from that status"; CLOSED has
// no outgoing edges for any role.
var transitionTable = map[domain.Role]map[domain.ComplaintStatus][]domain.ComplaintStatus{
	domain.RoleCitizen: {
		domain.StatusResolved: {domain.StatusClosed},
	},
	domain.RoleOfficer: {
		domain.StatusAssigned:   {domain.StatusInProgress, domain.StatusRejected},
		domain.StatusInProgress: {domain.StatusResolved, domain.StatusAssigned},
	},
	domain.RoleAdmin: {
		domain.StatusNew:        {domain.StatusAssigned, domain.StatusRejected},
		domain.StatusInProgress: {domain.StatusAssigned},
		domain.StatusResolved:   {domain.StatusClosed, domain.StatusInProgress},
		domain.StatusRejected:   {domain.StatusNew},
	},
}

// IsTransitionAllowed reports whether the role may move a complaint from one
// status to another. Unknown roles or statuses are simply not in the table.
func IsTransitionAllowed(role domain.Role, from, to domain.ComplaintStatus) bool {
	for _, candidate := range AllowedNextStatuses(role, from) {
		if candidate == to {
			return true
		}
	}
	return false
}

// AllowedNextStatuses returns the legal target statuses for a role at the
// given status. The slice is nil when the role has no outgoing edges.
func AllowedNextStatuses(role domain.Role, from domain.ComplaintStatus) []domain.ComplaintStatus {
	edges, ok := transitionTable[role]
	if !ok {
		return nil
	}
	return edges[from]
}
