package scheduler

import (
	"math"
	"time"
)

// EtaEstimator keeps two smoothed rates, items/ms and bytes/ms, and reports
// the more pessimistic of the two remaining-time estimates.
type EtaEstimator struct {
	Alpha       float64
	MinInterval time.Duration // rates are resampled at most this often
	MinSamples  int           // no estimate before this many completions

	itemRate float64
	byteRate float64
	seeded   bool

	lastCompleted int
	lastBytes     int64
	lastElapsed   time.Duration
}

func NewEtaEstimator() *EtaEstimator {
	return &EtaEstimator{Alpha: 0.25, MinInterval: 200 * time.Millisecond, MinSamples: 6}
}

// Update feeds the current totals and returns the estimated remaining time.
// The second result is false while there is no trustworthy estimate.
func (e *EtaEstimator) Update(completed, total int, bytesDone int64, elapsed time.Duration) (time.Duration, bool) {
	progressed := completed > e.lastCompleted || bytesDone > e.lastBytes
	if progressed && elapsed-e.lastElapsed >= e.MinInterval {
		dt := float64(elapsed-e.lastElapsed) / float64(time.Millisecond)
		ir := float64(completed-e.lastCompleted) / dt
		br := float64(bytesDone-e.lastBytes) / dt
		if e.seeded {
			e.itemRate = e.Alpha*ir + (1-e.Alpha)*e.itemRate
			e.byteRate = e.Alpha*br + (1-e.Alpha)*e.byteRate
		} else {
			e.itemRate, e.byteRate, e.seeded = ir, br, true
		}
		e.lastCompleted, e.lastBytes, e.lastElapsed = completed, bytesDone, elapsed
	}

	if !e.seeded || completed < e.MinSamples {
		return 0, false
	}
	remaining := total - completed
	if remaining <= 0 {
		return 0, true
	}

	etaMs := 0.0
	if e.itemRate > 0 {
		etaMs = float64(remaining) / e.itemRate
	}
	if e.byteRate > 0 && bytesDone > 0 {
		perItem := float64(bytesDone) / float64(completed)
		etaMs = math.Max(etaMs, float64(remaining)*perItem/e.byteRate)
	}
	if etaMs <= 0 {
		return 0, false
	}
	return time.Duration(etaMs * float64(time.Millisecond)), true
}
