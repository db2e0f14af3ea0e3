package enums

import "strings"

// SanctionAction is the enforcement outcome of a score lookup.
type SanctionAction string

const (
	SanctionNoAction        SanctionAction = "NA"
	SanctionPartialRestrict SanctionAction = "RSP"
	SanctionFullRestrict    SanctionAction = "RSF"
	SanctionTempBan         SanctionAction = "TBN"
	SanctionPermBan         SanctionAction = "PBN"
)

func ParseSanctionAction(raw string) (SanctionAction, bool) {
	a := SanctionAction(strings.ToUpper(strings.TrimSpace(raw)))
	switch a {
	case SanctionNoAction, SanctionPartialRestrict, SanctionFullRestrict, SanctionTempBan, SanctionPermBan:
		return a, true
	}
	return "", false
}

func (a SanctionAction) Restriction() bool {
	return a == SanctionPartialRestrict || a == SanctionFullRestrict
}

func (a SanctionAction) Ban() bool {
	return a == SanctionTempBan || a == SanctionPermBan
}

// UserStatus is the account status a sanction of this kind imposes.
func (a SanctionAction) UserStatus() UserStatus {
	switch a {
	case SanctionPartialRestrict:
		return UserStatusPartialRestrict
	case SanctionFullRestrict:
		return UserStatusFullRestrict
	case SanctionTempBan:
		return UserStatusTempBan
	case SanctionPermBan:
		return UserStatusPermBan
	}
	return UserStatusActive
}
