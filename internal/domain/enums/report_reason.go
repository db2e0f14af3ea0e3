package enums

import "strings"

type ReportReason string

const (
	ReportReasonIDontLike     ReportReason = "IDONTLIKE"
	ReportReasonSpam          ReportReason = "SPAM"
	ReportReasonFalseInfo     ReportReason = "FALSEINFO"
	ReportReasonIPViolation   ReportReason = "IPVIOLATE"
	ReportReasonBullying      ReportReason = "BULLYHARAS"
	ReportReasonScam          ReportReason = "SCAMFRAUD"
	ReportReasonHateSymbols   ReportReason = "HATESPHSYM"
	ReportReasonViolentSpeech ReportReason = "VIOLENTSPH"
	ReportReasonNudity        ReportReason = "NUDESEXACT"
	ReportReasonSelfHarm      ReportReason = "SUICIDESH"
	ReportReasonTerrorism     ReportReason = "TERRORISM"
	ReportReasonChildAbuse    ReportReason = "CHILDABUSE"
	ReportReasonIllegalGoods  ReportReason = "SELLILLEGAL"
	ReportReasonImpersonation ReportReason = "IMPERSONATE"
	ReportReasonUnderage      ReportReason = "UNDERAGE"
	ReportReasonOther         ReportReason = "OTHER"
)

func NormalizeReportReason(raw string) ReportReason {
	return ReportReason(strings.ToUpper(strings.TrimSpace(raw)))
}
