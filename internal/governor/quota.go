package governor

import "fmt"

// QuotaState carries the two action counters of one run. It is a plain
// value owned by the run that created it; there is no shared instance.
//
// DailyActions is an in-process counter. It starts at zero for every run and
// is not persisted, so separate runs on the same day do not share it.
type QuotaState struct {
	RunCap       int
	DailyCap     int
	RunSuccess   int
	DailyActions int
}

// NewQuota returns a zeroed quota with the given caps.
func NewQuota(runCap, dailyCap int) QuotaState {
	return QuotaState{RunCap: runCap, DailyCap: dailyCap}
}

// Allow reports whether a new action chain may start, and if not, which
// cap stopped it.
func (q QuotaState) Allow() (bool, string) {
	if q.RunCap > 0 && q.RunSuccess >= q.RunCap {
		return false, fmt.Sprintf("run cap of %d reached", q.RunCap)
	}
	if q.DailyCap > 0 && q.DailyActions >= q.DailyCap {
		return false, fmt.Sprintf("daily action cap of %d reached", q.DailyCap)
	}
	return true, ""
}

// RecordSuccess is the only way the counters move. Both counters are
// incremented together on a confirmed success.
func (q *QuotaState) RecordSuccess() {
	q.RunSuccess++
	q.DailyActions++
}
