package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ivankudzin/trustsafety/internal/domain/enums"
	"github.com/ivankudzin/trustsafety/internal/domain/faults"
	"github.com/ivankudzin/trustsafety/internal/domain/model"
)

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		reason      enums.ReportReason
		contentType enums.ContentType
		final       int
		want        Decision
	}{
		{
			name:        "minimal post rounds to zero",
			reason:      enums.ReportReasonIDontLike,
			contentType: enums.ContentTypePost,
			want:        Decision{Action: enums.SanctionNoAction},
		},
		{
			name:        "minimal message rounds to zero",
			reason:      enums.ReportReasonIDontLike,
			contentType: enums.ContentTypeMessage,
			final:       40,
			want:        Decision{NewFinal: 40, Action: enums.SanctionNoAction},
		},
		{
			name:        "first severe post",
			reason:      enums.ReportReasonHateSymbols,
			contentType: enums.ContentTypePost,
			want:        Decision{Delta: 187, NewFinal: 187, Action: enums.SanctionPartialRestrict, DurationHours: 24},
		},
		{
			name:        "second severe post",
			reason:      enums.ReportReasonHateSymbols,
			contentType: enums.ContentTypePost,
			final:       187,
			want:        Decision{Delta: 187, NewFinal: 374, Action: enums.SanctionFullRestrict, DurationHours: 24},
		},
		{
			name:        "moderate comment below first band",
			reason:      enums.ReportReasonSpam,
			contentType: enums.ContentTypeComment,
			want:        Decision{Delta: 26, NewFinal: 26, Action: enums.SanctionNoAction},
		},
		{
			name:        "highly severe post into perm ban",
			reason:      enums.ReportReasonTerrorism,
			contentType: enums.ContentTypePost,
			final:       700,
			want:        Decision{Delta: 162, NewFinal: 862, Action: enums.SanctionPermBan, DurationHours: 99999},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Score(tt.reason, tt.contentType, model.ViolationScore{FinalViolationScore: tt.final})
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestScoreRejectsModeratorDecisionReasons(t *testing.T) {
	_, err := Score(enums.ReportReasonImpersonation, enums.ContentTypePost, model.ViolationScore{})
	require.True(t, errors.Is(err, ErrRequiresManual))
}

func TestScoreRejectsAccountReports(t *testing.T) {
	_, err := Score(enums.ReportReasonSpam, enums.ContentTypeAccount, model.ViolationScore{})
	require.True(t, faults.Is(err, faults.KindValidation))
}

func TestScoreRejectsUnknownReason(t *testing.T) {
	_, err := Score("NOPE", enums.ContentTypePost, model.ViolationScore{})
	require.True(t, faults.Is(err, faults.KindValidation))
}

func TestManualScore(t *testing.T) {
	t.Run("lifts to minimum", func(t *testing.T) {
		got, err := ManualScore(enums.SanctionFullRestrict, 72, model.ViolationScore{FinalViolationScore: 120}, 0)
		require.NoError(t, err)
		require.Equal(t, Decision{Delta: 280, NewFinal: 400, Action: enums.SanctionFullRestrict, DurationHours: 72}, got)
	})

	t.Run("already above minimum", func(t *testing.T) {
		got, err := ManualScore(enums.SanctionPartialRestrict, 24, model.ViolationScore{FinalViolationScore: 420}, 0)
		require.NoError(t, err)
		require.Equal(t, 0, got.Delta)
		require.Equal(t, 420, got.NewFinal)
	})

	t.Run("account report rounds up to flagged count", func(t *testing.T) {
		got, err := ManualScore(enums.SanctionTempBan, 72, model.ViolationScore{FinalViolationScore: 400}, 3)
		require.NoError(t, err)
		require.Equal(t, 203, got.Delta)
		require.Equal(t, 603, got.NewFinal)
		require.Equal(t, 400+got.Delta, got.NewFinal)
	})

	t.Run("account report off a multiple rounds to the nearest one above", func(t *testing.T) {
		got, err := ManualScore(enums.SanctionTempBan, 72, model.ViolationScore{FinalViolationScore: 400}, 7)
		require.NoError(t, err)
		require.Equal(t, 602, got.NewFinal)
		require.Zero(t, got.NewFinal%7)
	})

	t.Run("unknown duration", func(t *testing.T) {
		_, err := ManualScore(enums.SanctionTempBan, 5, model.ViolationScore{}, 0)
		require.True(t, faults.Is(err, faults.KindValidation))
	})

	t.Run("no action keeps score", func(t *testing.T) {
		got, err := ManualScore(enums.SanctionNoAction, 0, model.ViolationScore{FinalViolationScore: 90}, 2)
		require.NoError(t, err)
		require.Equal(t, Decision{NewFinal: 90, Action: enums.SanctionNoAction}, got)
	})
}

func TestShareSumsToDelta(t *testing.T) {
	delta, n := 203, 3
	total := 0
	for restored := 0; restored < n; restored++ {
		total += Share(delta, n, restored)
	}
	require.Equal(t, delta, total)
	require.Equal(t, 67, Share(delta, n, 0))
	require.Equal(t, 69, Share(delta, n, 2))
	require.Equal(t, delta, Share(delta, 1, 0))
}
