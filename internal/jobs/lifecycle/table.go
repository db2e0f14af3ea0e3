package lifecycle

import (
	"time"

	"github.com/ivankudzin/trustsafety/internal/jobs/scheduler"
)

const (
	JobRemoveRestriction   = "remove_restriction"
	JobRemoveTempBan       = "remove_temp_ban"
	JobInactivateIdle      = "inactivate_idle"
	JobScheduleDeleteIdle  = "schedule_delete_idle"
	JobDeleteAfterGrace    = "delete_after_grace"
	JobCloseExpiredAppeals = "close_expired_appeals"
	JobFinalizePermBans    = "finalize_perm_bans"
	JobFinalizeContentBans = "finalize_content_bans"
	JobQuarterlyDecay      = "quarterly_decay"
)

type Intervals struct {
	RemoveRestriction   time.Duration `yaml:"remove_restriction"`
	RemoveTempBan       time.Duration `yaml:"remove_temp_ban"`
	InactivateIdle      time.Duration `yaml:"inactivate_idle"`
	ScheduleDeleteIdle  time.Duration `yaml:"schedule_delete_idle"`
	DeleteAfterGrace    time.Duration `yaml:"delete_after_grace"`
	CloseExpiredAppeals time.Duration `yaml:"close_expired_appeals"`
	FinalizePermBans    time.Duration `yaml:"finalize_perm_bans"`
	FinalizeContentBans time.Duration `yaml:"finalize_content_bans"`
	QuarterlyDecay      time.Duration `yaml:"quarterly_decay"`
}

func DefaultIntervals() Intervals {
	return Intervals{
		RemoveRestriction:   5 * time.Second,
		RemoveTempBan:       5 * time.Second,
		InactivateIdle:      7 * time.Second,
		ScheduleDeleteIdle:  7 * time.Second,
		DeleteAfterGrace:    10 * time.Second,
		CloseExpiredAppeals: 3 * time.Second,
		FinalizePermBans:    3 * time.Second,
		FinalizeContentBans: 3 * time.Second,
		QuarterlyDecay:      10 * time.Second,
	}
}

// Table lists every lifecycle job with its interval. A zero interval
// disables the job.
func (j *Jobs) Table(iv Intervals) []scheduler.Job {
	return []scheduler.Job{
		{Name: JobRemoveRestriction, Interval: iv.RemoveRestriction, Run: j.RemoveRestriction},
		{Name: JobRemoveTempBan, Interval: iv.RemoveTempBan, Run: j.RemoveTempBan},
		{Name: JobInactivateIdle, Interval: iv.InactivateIdle, Run: j.InactivateIdle},
		{Name: JobScheduleDeleteIdle, Interval: iv.ScheduleDeleteIdle, Run: j.ScheduleDeleteIdle},
		{Name: JobDeleteAfterGrace, Interval: iv.DeleteAfterGrace, Run: j.DeleteAfterGrace},
		{Name: JobCloseExpiredAppeals, Interval: iv.CloseExpiredAppeals, Run: j.CloseExpiredAppeals},
		{Name: JobFinalizePermBans, Interval: iv.FinalizePermBans, Run: j.FinalizePermBans},
		{Name: JobFinalizeContentBans, Interval: iv.FinalizeContentBans, Run: j.FinalizeContentBans},
		{Name: JobQuarterlyDecay, Interval: iv.QuarterlyDecay, Run: j.QuarterlyDecay},
	}
}
