package enums

import "strings"

type AppealStatus string

const (
	AppealStatusOpen            AppealStatus = "OPN"
	AppealStatusUnderReview     AppealStatus = "URV"
	AppealStatusAccepted        AppealStatus = "ACP"
	AppealStatusAcceptedRelated AppealStatus = "ACR"
	AppealStatusRejected        AppealStatus = "REJ"
	AppealStatusRejectedRelated AppealStatus = "RJR"
	AppealStatusClosed          AppealStatus = "CSD"
)

func ParseAppealStatus(raw string) (AppealStatus, bool) {
	s := AppealStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case AppealStatusOpen, AppealStatusUnderReview, AppealStatusAccepted, AppealStatusAcceptedRelated,
		AppealStatusRejected, AppealStatusRejectedRelated, AppealStatusClosed:
		return s, true
	}
	return "", false
}

func (s AppealStatus) Accepted() bool {
	return s == AppealStatusAccepted || s == AppealStatusAcceptedRelated
}

func (s AppealStatus) Rejected() bool {
	return s == AppealStatusRejected || s == AppealStatusRejectedRelated
}

func (s AppealStatus) Final() bool {
	return s.Accepted() || s.Rejected() || s == AppealStatusClosed
}

type AppealAction string

const (
	AppealActionAccept AppealAction = "accept"
	AppealActionReject AppealAction = "reject"
)

func ParseAppealAction(raw string) (AppealAction, bool) {
	a := AppealAction(strings.ToLower(strings.TrimSpace(raw)))
	switch a {
	case AppealActionAccept, AppealActionReject:
		return a, true
	}
	return "", false
}
