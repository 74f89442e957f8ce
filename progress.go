package mdx

// ProgressReportFunc receives periodic updates during a long-running
// build operation. Returning true cancels the operation. Grounded on
// original_source's utils::progress_report::ProgressReportFn.
type ProgressReportFunc func(state *ProgressState) bool

// ProgressState tracks one phase of a build operation and throttles
// calls into the caller's ProgressReportFunc to roughly
// reportIntervalPercent of total. Grounded on
// original_source's utils::progress_report::ProgressState.
type ProgressState struct {
	StateID        string
	Total          uint64
	Current        uint64
	ErrorMsg       string
	last           uint64
	reportInterval uint64
	reporter       ProgressReportFunc
}

// newProgressState mirrors ProgressState::new: reportIntervalPercent is
// the percentage of Total between calls into reporter (e.g. 10 reports
// roughly every 10% of items).
func newProgressState(stateID string, total uint64, reportIntervalPercent uint64, reporter ProgressReportFunc) *ProgressState {
	return &ProgressState{
		StateID:        stateID,
		Total:          total,
		reportInterval: total * reportIntervalPercent / 100,
		reporter:       reporter,
	}
}

// report notifies the reporter if enough progress has been made since
// the last call (or this is the final item), returning true if the
// operation should be cancelled. Grounded on ProgressState::report.
func (s *ProgressState) report(current uint64) bool {
	if s.reporter == nil {
		return false
	}
	if s.Total == 0 {
		return false
	}
	if current-s.last > s.reportInterval || current == s.Total-1 {
		s.Current = current
		cancelled := s.reporter(s)
		s.last = current
		return cancelled
	}
	return false
}
