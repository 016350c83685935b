package pipeline

// Event is one progress notification for the operational UI. Events are
// observability only; dropping them never affects correctness.
type Event struct {
	Step    string
	Percent int
	Detail  string
	IssueNo int
}

// ProgressFunc receives progress events in order.
type ProgressFunc func(Event)

// Summary is the outcome of one batch run.
type Summary struct {
	Processed int
	Skipped   int
	Failed    int

	// FirstFailure describes the first failing unit, for re-running just
	// the failed subset.
	FirstFailure string

	// Remaining counts issues left unprocessed after a stop request.
	Remaining int

	// QuotaExhausted is set when embedding quota ran out mid-run; the
	// operator should not retry immediately.
	QuotaExhausted bool

	Stopped bool
}

func (s *Summary) recordFailure(detail string) {
	s.Failed++
	if s.FirstFailure == "" {
		s.FirstFailure = detail
	}
}
