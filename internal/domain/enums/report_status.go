package enums

import "strings"

type ReportStatus string

const (
	ReportStatusOpen                  ReportStatus = "OPN"
	ReportStatusUnderReview           ReportStatus = "URV"
	ReportStatusResolved              ReportStatus = "RSD"
	ReportStatusResolvedRelated       ReportStatus = "RSR"
	ReportStatusFutureResolved        ReportStatus = "FRS"
	ReportStatusFutureResolvedRelated ReportStatus = "FRR"
	ReportStatusClosed                ReportStatus = "CSD"
)

func ParseReportStatus(raw string) (ReportStatus, bool) {
	s := ReportStatus(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case ReportStatusOpen, ReportStatusUnderReview, ReportStatusResolved, ReportStatusResolvedRelated,
		ReportStatusFutureResolved, ReportStatusFutureResolvedRelated, ReportStatusClosed:
		return s, true
	}
	return "", false
}

func (s ReportStatus) Resolved() bool {
	switch s {
	case ReportStatusResolved, ReportStatusResolvedRelated, ReportStatusFutureResolved, ReportStatusFutureResolvedRelated:
		return true
	}
	return false
}

func (s ReportStatus) Final() bool {
	return s.Resolved() || s == ReportStatusClosed
}

// Mirror returns the status a related report takes when its primary lands in s.
func (s ReportStatus) Mirror() ReportStatus {
	switch s {
	case ReportStatusResolved:
		return ReportStatusResolvedRelated
	case ReportStatusFutureResolved:
		return ReportStatusFutureResolvedRelated
	}
	return s
}
