package model

// Status is the lifecycle state of a loan application.
type Status string

const (
	StatusDraft             Status = "DRAFT"
	StatusPendingKamReview  Status = "PENDING_KAM_REVIEW"
	StatusKamQueryRaised    Status = "KAM_QUERY_RAISED"
	StatusForwardedToCredit Status = "FORWARDED_TO_CREDIT"
	StatusCreditQueryRaised Status = "CREDIT_QUERY_RAISED"
	StatusInNegotiation     Status = "IN_NEGOTIATION"
	StatusSentToNbfc        Status = "SENT_TO_NBFC"
	StatusApproved          Status = "APPROVED"
	StatusRejected          Status = "REJECTED"
	StatusDisbursed         Status = "DISBURSED"
	StatusWithdrawn         Status = "WITHDRAWN"
	StatusClosed            Status = "CLOSED"
)

// ValidStatus reports whether s names a known application status.
func ValidStatus(s Status) bool {
	_, ok := transitionTable[s]
	if ok {
		return true
	}
	switch s {
	case StatusRejected, StatusWithdrawn, StatusClosed:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return len(transitionTable[s]) == 0
}

// transitionTable is the single authority on who may move an application
// between statuses. Guards that depend on entity state (open queries,
// assigned NBFCs, approved amount) are enforced by the application service on
// top of this table.
var transitionTable = map[Status]map[Status][]Role{
	StatusDraft: {
		StatusPendingKamReview: {RoleClient},
		StatusWithdrawn:        {RoleClient},
	},
	StatusPendingKamReview: {
		StatusWithdrawn:         {RoleClient},
		StatusKamQueryRaised:    {RoleKam},
		StatusForwardedToCredit: {RoleKam},
	},
	StatusKamQueryRaised: {
		StatusPendingKamReview:  {RoleKam},
		StatusForwardedToCredit: {RoleKam},
	},
	StatusForwardedToCredit: {
		StatusCreditQueryRaised: {RoleCreditTeam},
		StatusInNegotiation:     {RoleCreditTeam},
	},
	StatusCreditQueryRaised: {
		StatusForwardedToCredit: {RoleCreditTeam},
		StatusInNegotiation:     {RoleCreditTeam},
	},
	StatusInNegotiation: {
		StatusSentToNbfc: {RoleCreditTeam},
	},
	StatusSentToNbfc: {
		StatusApproved: {RoleNbfc},
		StatusRejected: {RoleNbfc},
	},
	StatusApproved: {
		StatusDisbursed: {RoleCreditTeam},
	},
	StatusDisbursed: {
		StatusClosed: {RoleCreditTeam},
	},
}

// TransitionDefined reports whether from→to appears in the table for any role.
func TransitionDefined(from, to Status) bool {
	_, ok := transitionTable[from][to]
	return ok
}

// TransitionAllowed reports whether role may move an application from→to.
// admin inherits credit_team's transitions.
func TransitionAllowed(from, to Status, role Role) bool {
	for _, r := range transitionTable[from][to] {
		if r == role {
			return true
		}
		if r == RoleCreditTeam && role == RoleAdmin {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s, in no particular order.
func NextStatuses(s Status) []Status {
	out := make([]Status, 0, len(transitionTable[s]))
	for to := range transitionTable[s] {
		out = append(out, to)
	}
	return out
}
