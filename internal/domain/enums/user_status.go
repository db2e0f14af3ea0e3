package enums

type UserStatus string

const (
	UserStatusActive             UserStatus = "ACT"
	UserStatusInactive           UserStatus = "INA"
	UserStatusPartialRestrict    UserStatus = "RSP"
	UserStatusFullRestrict       UserStatus = "RSF"
	UserStatusTempBan            UserStatus = "TBN"
	UserStatusPermBan            UserStatus = "PBN"
	UserStatusDeactivatedHide    UserStatus = "DAH"
	UserStatusDeactivatedKeep    UserStatus = "DAK"
	UserStatusPendingDeleteHide  UserStatus = "PDH"
	UserStatusPendingDeleteKeep  UserStatus = "PDK"
	UserStatusPendingDeleteBan   UserStatus = "PDB"
	UserStatusPendingDeleteInact UserStatus = "PDI"
	UserStatusDeleted            UserStatus = "DEL"
)

var userStatuses = map[UserStatus]struct{}{
	UserStatusActive:             {},
	UserStatusInactive:           {},
	UserStatusPartialRestrict:    {},
	UserStatusFullRestrict:       {},
	UserStatusTempBan:            {},
	UserStatusPermBan:            {},
	UserStatusDeactivatedHide:    {},
	UserStatusDeactivatedKeep:    {},
	UserStatusPendingDeleteHide:  {},
	UserStatusPendingDeleteKeep:  {},
	UserStatusPendingDeleteBan:   {},
	UserStatusPendingDeleteInact: {},
	UserStatusDeleted:            {},
}

func (s UserStatus) Valid() bool {
	_, ok := userStatuses[s]
	return ok
}

// Masking reports whether the status hides a sanction-driven status change.
// Such users keep their status when a restriction or temp ban starts or ends.
func (s UserStatus) Masking() bool {
	switch s {
	case UserStatusInactive,
		UserStatusDeactivatedHide,
		UserStatusDeactivatedKeep,
		UserStatusPendingDeleteHide,
		UserStatusPendingDeleteKeep,
		UserStatusPendingDeleteInact:
		return true
	}
	return false
}

// Terminal statuses are never overwritten by enforcement.
func (s UserStatus) Terminal() bool {
	return s == UserStatusDeleted || s == UserStatusPendingDeleteBan
}

func (s UserStatus) Sanctioned() bool {
	switch s {
	case UserStatusPartialRestrict, UserStatusFullRestrict, UserStatusTempBan, UserStatusPermBan:
		return true
	}
	return false
}
