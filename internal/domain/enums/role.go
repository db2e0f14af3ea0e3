package enums

import "strings"

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleNone      Role = "NONE"
)

func ParseRole(raw string) Role {
	switch r := Role(strings.ToUpper(strings.TrimSpace(raw))); r {
	case RoleAdmin, RoleModerator:
		return r
	}
	return RoleNone
}

type TimelineEvent string

const (
	TimelineAssigned     TimelineEvent = "ASSIGNED"
	TimelineReviewed     TimelineEvent = "REVIEW"
	TimelineClosed       TimelineEvent = "CLOSED"
	TimelineResolved     TimelineEvent = "RESOLVED"
	TimelineFutureQueued TimelineEvent = "FUTURE"
	TimelineActivated    TimelineEvent = "ACTIVATED"
	TimelinePolicyCheck  TimelineEvent = "POLICY"
	TimelineAccepted     TimelineEvent = "ACCEPTED"
	TimelineRejected     TimelineEvent = "REJECTED"
	TimelineExpired      TimelineEvent = "EXPIRED"
)
