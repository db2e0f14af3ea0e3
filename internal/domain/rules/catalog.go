package rules

import (
	"math"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
)

// PermBanDurationHours is the duration sentinel stored for permanent bans.
const PermBanDurationHours = 99999

var reasonSeverity = map[enums.ReportReason]enums.Severity{
	enums.ReportReasonIDontLike:     enums.SeverityMinimal,
	enums.ReportReasonSpam:          enums.SeverityModerate,
	enums.ReportReasonFalseInfo:     enums.SeverityModerate,
	enums.ReportReasonIPViolation:   enums.SeverityModeratelySevere,
	enums.ReportReasonBullying:      enums.SeverityModeratelySevere,
	enums.ReportReasonScam:          enums.SeverityModeratelySevere,
	enums.ReportReasonHateSymbols:   enums.SeveritySevere,
	enums.ReportReasonViolentSpeech: enums.SeveritySevere,
	enums.ReportReasonNudity:        enums.SeveritySevere,
	enums.ReportReasonSelfHarm:      enums.SeveritySeverelyNegative,
	enums.ReportReasonTerrorism:     enums.SeverityHighlySevere,
	enums.ReportReasonChildAbuse:    enums.SeverityHighlySevere,
	enums.ReportReasonIllegalGoods:  enums.SeverityHighlySevere,
	enums.ReportReasonImpersonation: enums.SeverityContentModeratorDecision,
	enums.ReportReasonUnderage:      enums.SeverityContentModeratorDecision,
	enums.ReportReasonOther:         enums.SeverityContentModeratorDecision,
}

var severityScore = map[enums.Severity]int{
	enums.SeveritySevere:           375,
	enums.SeverityHighlySevere:     325,
	enums.SeveritySeverelyNegative: 300,
	enums.SeverityModeratelySevere: 175,
	enums.SeverityModerate:         75,
	enums.SeverityMinimal:          1,
}

// Content weights in hundredths so that weighting stays in integer arithmetic.
var contentWeight = map[enums.ContentType]int{
	enums.ContentTypePost:    50,
	enums.ContentTypeComment: 35,
	enums.ContentTypeMessage: 15,
}

// ActionBand maps the half-open score interval [From, To) to an action.
type ActionBand struct {
	From          int
	To            int
	Action        enums.SanctionAction
	DurationHours int
}

var actionBands = []ActionBand{
	{From: 0, To: 150, Action: enums.SanctionNoAction, DurationHours: 0},
	{From: 150, To: 250, Action: enums.SanctionPartialRestrict, DurationHours: 24},
	{From: 250, To: 300, Action: enums.SanctionPartialRestrict, DurationHours: 72},
	{From: 300, To: 350, Action: enums.SanctionPartialRestrict, DurationHours: 168},
	{From: 350, To: 400, Action: enums.SanctionFullRestrict, DurationHours: 24},
	{From: 400, To: 500, Action: enums.SanctionFullRestrict, DurationHours: 72},
	{From: 500, To: 600, Action: enums.SanctionFullRestrict, DurationHours: 168},
	{From: 600, To: 650, Action: enums.SanctionTempBan, DurationHours: 72},
	{From: 650, To: 750, Action: enums.SanctionTempBan, DurationHours: 168},
	{From: 750, To: 850, Action: enums.SanctionTempBan, DurationHours: 504},
	{From: 850, To: math.MaxInt, Action: enums.SanctionPermBan, DurationHours: PermBanDurationHours},
}

type actionKey struct {
	action   enums.SanctionAction
	duration int
}

var minimumScore = func() map[actionKey]int {
	out := make(map[actionKey]int, len(actionBands))
	for _, band := range actionBands {
		if band.Action == enums.SanctionNoAction {
			continue
		}
		out[actionKey{action: band.Action, duration: band.DurationHours}] = band.From
	}
	return out
}()

func SeverityOf(reason enums.ReportReason) (enums.Severity, bool) {
	sev, ok := reasonSeverity[reason]
	return sev, ok
}

func SeverityScore(sev enums.Severity) (int, bool) {
	score, ok := severityScore[sev]
	return score, ok
}

// WeightedScore is floor(weight[contentType] * score).
func WeightedScore(contentType enums.ContentType, score int) (int, bool) {
	w, ok := contentWeight[contentType]
	if !ok {
		return 0, false
	}
	return w * score / 100, true
}

// ActionForScore looks up the band holding finalScore. Negative scores have
// no band and report ok=false.
func ActionForScore(finalScore int) (enums.SanctionAction, int, bool) {
	for _, band := range actionBands {
		if finalScore >= band.From && finalScore < band.To {
			return band.Action, band.DurationHours, true
		}
	}
	return "", 0, false
}

// MinimumScore is the lowest final score that yields the action/duration pair.
func MinimumScore(action enums.SanctionAction, durationHours int) (int, bool) {
	score, ok := minimumScore[actionKey{action: action, duration: durationHours}]
	return score, ok
}

func ActionBands() []ActionBand {
	return append([]ActionBand(nil), actionBands...)
}

func ReportReasons() []enums.ReportReason {
	out := make([]enums.ReportReason, 0, len(reasonSeverity))
	for reason := range reasonSeverity {
		out = append(out, reason)
	}
	return out
}
