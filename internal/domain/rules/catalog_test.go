package rules

import (
	"testing"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
)

func TestActionForScoreBoundariesPickHigherBand(t *testing.T) {
	cases := []struct {
		score    int
		action   enums.SanctionAction
		duration int
	}{
		{0, enums.SanctionNoAction, 0},
		{149, enums.SanctionNoAction, 0},
		{150, enums.SanctionPartialRestrict, 24},
		{249, enums.SanctionPartialRestrict, 24},
		{250, enums.SanctionPartialRestrict, 72},
		{300, enums.SanctionPartialRestrict, 168},
		{350, enums.SanctionFullRestrict, 24},
		{374, enums.SanctionFullRestrict, 24},
		{400, enums.SanctionFullRestrict, 72},
		{500, enums.SanctionFullRestrict, 168},
		{600, enums.SanctionTempBan, 72},
		{650, enums.SanctionTempBan, 168},
		{750, enums.SanctionTempBan, 504},
		{849, enums.SanctionTempBan, 504},
		{850, enums.SanctionPermBan, PermBanDurationHours},
		{100000, enums.SanctionPermBan, PermBanDurationHours},
	}

	for _, tc := range cases {
		action, duration, ok := ActionForScore(tc.score)
		if !ok {
			t.Fatalf("score %d: expected a band", tc.score)
		}
		if action != tc.action || duration != tc.duration {
			t.Fatalf("score %d: got %s/%d want %s/%d", tc.score, action, duration, tc.action, tc.duration)
		}
	}
}

func TestActionForNegativeScoreHasNoBand(t *testing.T) {
	if _, _, ok := ActionForScore(-1); ok {
		t.Fatalf("negative score must not map to a band")
	}
}

func TestMinimumScoreIsInverseOfBands(t *testing.T) {
	for _, band := range ActionBands() {
		if band.Action == enums.SanctionNoAction {
			continue
		}
		got, ok := MinimumScore(band.Action, band.DurationHours)
		if !ok {
			t.Fatalf("missing minimum score for %s/%d", band.Action, band.DurationHours)
		}
		if got != band.From {
			t.Fatalf("minimum score for %s/%d: got %d want %d", band.Action, band.DurationHours, got, band.From)
		}
	}

	if _, ok := MinimumScore(enums.SanctionTempBan, 24); ok {
		t.Fatalf("temp ban 24h is not a catalog entry")
	}
}

func TestWeightedScoreFloors(t *testing.T) {
	got, _ := WeightedScore(enums.ContentTypePost, 375)
	if got != 187 {
		t.Fatalf("post severe: got %d want 187", got)
	}
	got, _ = WeightedScore(enums.ContentTypeComment, 375)
	if got != 131 {
		t.Fatalf("comment severe: got %d want 131", got)
	}
	got, _ = WeightedScore(enums.ContentTypeMessage, 1)
	if got != 0 {
		t.Fatalf("message minimal: got %d want 0", got)
	}
	if _, ok := WeightedScore(enums.ContentTypeAccount, 375); ok {
		t.Fatalf("account has no content weight")
	}
}

func TestEveryReasonHasSeverity(t *testing.T) {
	for _, reason := range ReportReasons() {
		sev, ok := SeverityOf(reason)
		if !ok {
			t.Fatalf("reason %s has no severity", reason)
		}
		if sev == enums.SeverityContentModeratorDecision {
			continue
		}
		if _, ok := SeverityScore(sev); !ok {
			t.Fatalf("severity %s has no score", sev)
		}
	}
}
