package usecase

import (
	"sync"

	"telegram-campaign-bot/internal/domain/model"
)

// reportAggregator accumulates delivery outcomes as workers complete.
// Single-writer discipline: every append goes through the mutex, so the
// invariant sent+failed+skipped == completed holds at every observable point.
type reportAggregator struct {
	mu sync.Mutex

	total   int
	sent    int
	failed  int
	skipped int
	details []model.DeliveryOutcome
	seen    map[int64]struct{}
}

func newReportAggregator(total int) *reportAggregator {
	return &reportAggregator{
		total:   total,
		details: make([]model.DeliveryOutcome, 0, total),
		seen:    make(map[int64]struct{}, total),
	}
}

// Append records one outcome. A second outcome for the same recipient within
// the run is dropped; the dispatcher emits exactly one per recipient, so a
// duplicate here means a programming error upstream, not data to count twice.
func (a *reportAggregator) Append(o model.DeliveryOutcome) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, dup := a.seen[o.RecipientID]; dup {
		return false
	}
	a.seen[o.RecipientID] = struct{}{}
	switch o.Status {
	case model.DeliverySent:
		a.sent++
	case model.DeliveryFailed:
		a.failed++
	case model.DeliverySkipped:
		a.skipped++
	}
	a.details = append(a.details, o)
	return true
}

// Progress is safe to call mid-run from any goroutine.
func (a *reportAggregator) Progress() model.Progress {
	a.mu.Lock()
	defer a.mu.Unlock()
	return model.Progress{
		Total:     a.total,
		Completed: a.sent + a.failed + a.skipped,
		Sent:      a.sent,
		Failed:    a.failed,
		Skipped:   a.skipped,
	}
}

// Report projects the accumulated counts into the final report. The detail
// slice is copied so callers cannot alias internal state.
func (a *reportAggregator) Report(runID string, state model.RunState) model.BroadcastReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	details := make([]model.DeliveryOutcome, len(a.details))
	copy(details, a.details)
	return model.BroadcastReport{
		RunID:       runID,
		State:       state,
		Total:       a.total,
		Sent:        a.sent,
		Failed:      a.failed,
		Skipped:     a.skipped,
		SuccessRate: model.SuccessRate(a.sent, a.total),
		Details:     details,
	}
}
